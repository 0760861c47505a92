package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/SudharsunRavi/etracker-drive/internal/storage"
)

func (s *Service) AddCategory(ctx context.Context, req AddCategoryRequest) (*storage.Category, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: category name is required", ErrValidation)
	}

	// Kind is passed through so the storage-level CHECK constraint is the
	// authority; an invalid value surfaces as storage.ErrConstraint.
	category := &storage.Category{Name: name, Kind: storage.Kind(req.Kind)}
	if err := s.store.Categories.Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

func (s *Service) UpdateCategory(ctx context.Context, req UpdateCategoryRequest) error {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return fmt.Errorf("%w: category name is required", ErrValidation)
	}

	affected, err := s.store.Categories.Update(ctx, &storage.Category{
		ID:   req.ID,
		Name: name,
		Kind: storage.Kind(req.Kind),
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	affected, err := s.store.Categories.Delete(ctx, id)
	if err != nil {
		return err
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *Service) ListCategories(ctx context.Context, kind string) ([]storage.Category, error) {
	return s.store.Categories.List(ctx, kind)
}
