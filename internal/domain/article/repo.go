package article

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	List(ctx context.Context, category, keyword string, limit, offset int) ([]*Article, int, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Article, error)
	IncrementViewCount(ctx context.Context, id uuid.UUID) error
}
