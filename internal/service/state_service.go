package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Humancodes/mystore/internal/cache"
	"github.com/Humancodes/mystore/internal/domain"
	"github.com/Humancodes/mystore/internal/repository"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// StateService is the remote state gateway: a repository behind a
// read-through cache. Cache failures are logged and never fail a call.
type StateService struct {
	repo  repository.StateRepository
	cache cache.SnapshotCache
	log   *zap.Logger
	sfg   singleflight.Group // Prevents cache stampede

	// saves counts writes per key; a cache fill is dropped if a save landed
	// after its repository read started.
	mu    sync.Mutex
	saves map[string]uint64
}

var _ repository.StateGateway = (*StateService)(nil)

func NewStateService(repo repository.StateRepository, c cache.SnapshotCache, log *zap.Logger) *StateService {
	if log == nil {
		log = zap.NewNop()
	}
	return &StateService{
		repo:  repo,
		cache: c,
		log:   log,
		saves: make(map[string]uint64),
	}
}

func (s *StateService) Load(ctx context.Context, userID string, kind domain.CollectionKind) (*domain.RemoteSnapshot, error) {
	key := cacheKeyFor(userID, kind)
	v, err, _ := s.sfg.Do(key, func() (interface{}, error) {
		snap, err := s.cache.Get(ctx, userID, kind)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}

		gen := s.generation(key)
		snap, err = s.repo.Find(ctx, userID, kind)
		if errors.Is(err, repository.ErrSnapshotNotFound) {
			return domain.EmptySnapshot(userID, kind), nil
		}
		if err != nil {
			return nil, err
		}

		go s.fill(key, gen, snap)

		return snap, nil
	})
	if err != nil {
		return nil, err
	}

	// callers sharing a flight must not share the item slice
	shared := v.(*domain.RemoteSnapshot)
	out := *shared
	out.Items = append([]domain.RemoteItem(nil), shared.Items...)
	return &out, nil
}

func (s *StateService) Save(ctx context.Context, userID string, kind domain.CollectionKind, items []domain.RemoteItem) error {
	if err := s.repo.Replace(ctx, userID, kind, items); err != nil {
		s.log.Error("state save failed", zap.String("user_id", userID), zap.Stringer("kind", kind), zap.Error(err))
		return err
	}

	s.invalidate(userID, kind)
	return nil
}

func (s *StateService) generation(key string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves[key]
}

// fill caches snap unless the key was saved since gen was read. The check and
// the write happen under mu so invalidate cannot slip between them.
func (s *StateService) fill(key string, gen uint64, snap *domain.RemoteSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saves[key] != gen {
		s.log.Debug("skipping stale cache fill", zap.String("key", key))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Set(ctx, snap); err != nil {
		s.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *StateService) invalidate(userID string, kind domain.CollectionKind) {
	key := cacheKeyFor(userID, kind)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves[key]++

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := s.cache.Delete(ctx, userID, kind); err != nil {
		s.log.Warn("cache invalidate failed", zap.String("key", key), zap.Error(err))
	}
}

func cacheKeyFor(userID string, kind domain.CollectionKind) string {
	return string(kind) + ":" + userID
}
