package drug

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("drug not found")

type Service struct {
	drugs Repository
}

func NewService(drugs Repository) *Service {
	return &Service{drugs: drugs}
}

// Search returns a page of catalog entries in their trimmed list shape.
func (s *Service) Search(ctx context.Context, keyword string, limit, offset int) ([]*ListItem, int, error) {
	drugs, total, err := s.drugs.Search(ctx, keyword, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items := make([]*ListItem, 0, len(drugs))
	for _, d := range drugs {
		items = append(items, d.ToListItem())
	}
	return items, total, nil
}

func (s *Service) GetDetail(ctx context.Context, id uuid.UUID) (*Drug, error) {
	d, err := s.drugs.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	return d, nil
}
