package api

import (
	"context"

	"shoplist/domain"
	"shoplist/hub"
	"shoplist/popularity"
)

// Service is the list coordinator the handlers call into.
type Service interface {
	CreateList(ctx context.Context, name string) (domain.List, error)
	GetList(ctx context.Context, id string) (domain.List, error)
	RenameList(ctx context.Context, id, name string) (domain.List, error)
	AddItem(ctx context.Context, listID, name string) (domain.Item, error)
	ToggleItem(ctx context.Context, listID, itemID string) (domain.Item, error)
	RenameItem(ctx context.Context, listID, itemID, name string) (domain.Item, error)
	RemoveItem(ctx context.Context, listID, itemID string) error
	Suggest(ctx context.Context, query string) ([]string, error)
	Popular(ctx context.Context, limit int) ([]popularity.Entry, error)
}

// Subscriber registers live viewers. It is implemented by *hub.Hub.
type Subscriber interface {
	Subscribe(listID string) *hub.Subscription
	Unsubscribe(sub *hub.Subscription)
}
