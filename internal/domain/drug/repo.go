package drug

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Search(ctx context.Context, keyword string, limit, offset int) ([]*Drug, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Drug, error)
}
