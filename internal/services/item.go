package services

import (
	"context"

	"github.com/campusfind/apiserver/types"
)

// ItemRepository defines persistence operations for items.
type ItemRepository interface {
	List(ctx context.Context) ([]types.Item, error)
	Get(ctx context.Context, id int) (types.Item, error)
	Create(ctx context.Context, item types.Item) (types.Item, error)
	Update(ctx context.Context, item types.Item) (types.Item, error)
	Delete(ctx context.Context, id int) error
	TryClaim(ctx context.Context, itemID, claimantID int) (types.Item, error)
}

// ItemService encapsulates report use-cases. Claiming is handled by the
// ClaimService; this service never writes claim state.
type ItemService struct {
	repo ItemRepository
}

func NewItemService(repo ItemRepository) *ItemService {
	return &ItemService{repo: repo}
}

func (s *ItemService) List(ctx context.Context) ([]types.Item, error) {
	return s.repo.List(ctx)
}

func (s *ItemService) Get(ctx context.Context, id int) (types.Item, error) {
	return s.repo.Get(ctx, id)
}

func (s *ItemService) Create(ctx context.Context, item types.Item) (types.Item, error) {
	return s.repo.Create(ctx, item)
}

func (s *ItemService) Update(ctx context.Context, item types.Item) (types.Item, error) {
	return s.repo.Update(ctx, item)
}

func (s *ItemService) Delete(ctx context.Context, id int) error {
	return s.repo.Delete(ctx, id)
}
