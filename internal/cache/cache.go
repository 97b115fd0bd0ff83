package cache

import (
	"context"
	"errors"

	"github.com/Humancodes/mystore/internal/domain"
)

type SnapshotCache interface {
	Get(ctx context.Context, userID string, kind domain.CollectionKind) (*domain.RemoteSnapshot, error)
	Set(ctx context.Context, snap *domain.RemoteSnapshot) error
	Delete(ctx context.Context, userID string, kind domain.CollectionKind) error
}

var ErrCacheMiss = errors.New("cache miss")
