package repository

import (
	"context"
	"errors"

	"github.com/Humancodes/mystore/internal/domain"
)

var (
	ErrOrderNotFound  = errors.New("order not found")
	ErrDuplicateOrder = errors.New("order with this id already exists")
)

// StateGateway loads and replaces a user's remote cart or wishlist.
// A user with no stored document loads as an empty snapshot.
type StateGateway interface {
	Load(ctx context.Context, userID string, kind domain.CollectionKind) (*domain.RemoteSnapshot, error)
	Save(ctx context.Context, userID string, kind domain.CollectionKind, items []domain.RemoteItem) error
}

// StateRepository is the storage side of StateGateway. Find returns
// ErrSnapshotNotFound when nothing was ever saved.
type StateRepository interface {
	Find(ctx context.Context, userID string, kind domain.CollectionKind) (*domain.RemoteSnapshot, error)
	Replace(ctx context.Context, userID string, kind domain.CollectionKind, items []domain.RemoteItem) error
}

var ErrSnapshotNotFound = errors.New("snapshot not found")

type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.Order) error
	GetOrder(ctx context.Context, id string) (*domain.Order, error)
	ListOrdersByBuyer(ctx context.Context, buyerID string) ([]*domain.Order, error)
}

type Credentials struct {
	Host              string
	Port              int
	User              string
	Password          string
	DBName            string
	MigrationsDirPath string
}
