package article

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("article not found")

type Service struct {
	articles Repository
}

func NewService(articles Repository) *Service {
	return &Service{articles: articles}
}

func (s *Service) List(ctx context.Context, category, keyword string, limit, offset int) ([]*ListItem, int, error) {
	articles, total, err := s.articles.List(ctx, category, keyword, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	items := make([]*ListItem, 0, len(articles))
	for _, a := range articles {
		items = append(items, a.ToListItem())
	}
	return items, total, nil
}

// GetDetail returns the full article and bumps its view counter. The counter
// update is fire-and-forget from the reader's perspective: the returned view
// count already includes this visit.
func (s *Service) GetDetail(ctx context.Context, id uuid.UUID) (*Article, error) {
	a, err := s.articles.GetByID(ctx, id)
	if err != nil {
		return nil, ErrNotFound
	}
	if err := s.articles.IncrementViewCount(ctx, id); err != nil {
		return nil, err
	}
	a.ViewCount++
	return a, nil
}
