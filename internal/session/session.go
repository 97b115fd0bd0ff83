package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Humancodes/mystore/internal/catalog"
	"github.com/Humancodes/mystore/internal/checkout"
	"github.com/Humancodes/mystore/internal/domain"
	"github.com/Humancodes/mystore/internal/payment"
	"github.com/Humancodes/mystore/internal/repository"
	"github.com/Humancodes/mystore/internal/syncer"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNotAuthenticated    = errors.New("session is not logged in")
	ErrNoCheckout          = errors.New("no checkout in progress")
	ErrCheckoutInProgress  = checkout.ErrInProgress
	ErrNotInCart           = errors.New("product is not in the cart")
	ErrNotInWishlist       = errors.New("product is not in the wishlist")
	ErrNeedsReconciliation = errors.New("a paid order is awaiting reconciliation")
)

// Deps are the collaborators shared by every session.
type Deps struct {
	Gateway   repository.StateGateway
	Catalog   catalog.Catalog
	Payments  *payment.Registry
	Committer checkout.Committer
	Sync      syncer.Config
	Log       *zap.Logger
}

// Session owns one visitor's cart, wishlist, their sync engines and the
// current checkout.
type Session struct {
	ID       string
	Ledger   *domain.Ledger
	Wishlist *domain.Wishlist

	deps         Deps
	log          *zap.Logger
	cartSync     *syncer.Engine
	wishlistSync *syncer.Engine

	mu       sync.Mutex
	userID   string
	checkout *checkout.Machine
	lastSeen time.Time
	// set once a paid order failed to record; survives logout
	reconciling bool
}

func New(id string, deps Deps) *Session {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("session_id", id))

	ledger := domain.NewLedger()
	wishlist := domain.NewWishlist()
	return &Session{
		ID:           id,
		Ledger:       ledger,
		Wishlist:     wishlist,
		deps:         deps,
		log:          log,
		cartSync:     syncer.NewEngine(deps.Gateway, deps.Catalog, syncer.CartBinding(ledger), deps.Sync, log),
		wishlistSync: syncer.NewEngine(deps.Gateway, deps.Catalog, syncer.WishlistBinding(wishlist), deps.Sync, log),
		lastSeen:     time.Now(),
	}
}

func (s *Session) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Login attaches userID and loads both remote collections concurrently. A
// different user already logged in is logged out first.
func (s *Session) Login(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNotAuthenticated
	}

	s.mu.Lock()
	current := s.userID
	s.mu.Unlock()
	if current != "" && current != userID {
		if err := s.Logout(ctx); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.userID = userID
	s.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.cartSync.Login(gctx, userID) })
	g.Go(func() error { return s.wishlistSync.Login(gctx, userID) })
	if err := g.Wait(); err != nil {
		return fmt.Errorf("login %s: %w", userID, err)
	}

	s.log.Info("session logged in", zap.String("user_id", userID))
	return nil
}

// Logout flushes pending writes and empties the local collections so nothing
// leaks into the next login. It is refused while an order is being placed.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	m := s.checkout
	s.mu.Unlock()
	if m != nil && m.State().Step == checkout.StepProcessing {
		return ErrCheckoutInProgress
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); s.cartSync.Logout(ctx) }()
	go func() { defer wg.Done(); s.wishlistSync.Logout(ctx) }()
	wg.Wait()

	err := s.editCollections(func() error {
		s.Ledger.Clear()
		s.Wishlist.Clear()
		return nil
	})
	if err != nil {
		return err
	}

	s.mu.Lock()
	userID := s.userID
	s.reconciling = s.needsReconciliationLocked()
	s.userID = ""
	s.checkout = nil
	s.mu.Unlock()

	s.log.Info("session logged out", zap.String("user_id", userID))
	return nil
}

func (s *Session) AddToCart(ctx context.Context, ref domain.ProductRef, qty int) (*domain.Product, error) {
	p, err := s.deps.Catalog.GetProduct(ctx, ref)
	if err != nil {
		return nil, err
	}
	err = s.editCollections(func() error {
		s.Ledger.Add(*p, qty)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// SetCartQuantity changes a line's quantity; qty below 1 removes it.
func (s *Session) SetCartQuantity(ref domain.ProductRef, qty int) error {
	return s.editCollections(func() error {
		if _, ok := s.Ledger.Get(ref); !ok {
			return ErrNotInCart
		}
		s.Ledger.SetQuantity(ref, qty)
		return nil
	})
}

func (s *Session) RemoveFromCart(ref domain.ProductRef) error {
	return s.editCollections(func() error {
		if !s.Ledger.Remove(ref) {
			return ErrNotInCart
		}
		return nil
	})
}

func (s *Session) ClearCart() error {
	return s.editCollections(func() error {
		s.Ledger.Clear()
		return nil
	})
}

func (s *Session) AddToWishlist(ctx context.Context, ref domain.ProductRef) (bool, error) {
	p, err := s.deps.Catalog.GetProduct(ctx, ref)
	if err != nil {
		return false, err
	}
	var added bool
	err = s.editCollections(func() error {
		added = s.Wishlist.Add(*p)
		return nil
	})
	return added, err
}

func (s *Session) RemoveFromWishlist(ref domain.ProductRef) error {
	return s.editCollections(func() error {
		if !s.Wishlist.Remove(ref) {
			return ErrNotInWishlist
		}
		return nil
	})
}

// MoveToCart adds one unit of a wishlisted product to the cart and removes it
// from the wishlist.
func (s *Session) MoveToCart(_ context.Context, ref domain.ProductRef) error {
	return s.editCollections(func() error {
		entry, ok := s.Wishlist.Get(ref)
		if !ok {
			return ErrNotInWishlist
		}
		s.Ledger.Add(entry.Product, 1)
		s.Wishlist.Remove(ref)
		return nil
	})
}

// editCollections runs fn unless the current checkout is processing.
func (s *Session) editCollections(fn func() error) error {
	s.mu.Lock()
	m := s.checkout
	s.mu.Unlock()
	if m == nil {
		return fn()
	}
	return m.Guard(fn)
}

// BeginCheckout starts a fresh checkout over the current cart, replacing any
// previous one that is not processing. A session whose paid order failed to
// record can never start another checkout.
func (s *Session) BeginCheckout() (*checkout.Machine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.userID == "" {
		return nil, ErrNotAuthenticated
	}
	if s.needsReconciliationLocked() {
		return nil, ErrNeedsReconciliation
	}
	if s.checkout != nil && s.checkout.State().Step == checkout.StepProcessing {
		return nil, ErrCheckoutInProgress
	}

	m, err := checkout.New(s.userID, s.Ledger, s.deps.Payments, s.deps.Committer, s.log)
	if err != nil {
		return nil, err
	}
	s.checkout = m
	return m, nil
}

func (s *Session) Checkout() (*checkout.Machine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkout == nil {
		return nil, ErrNoCheckout
	}
	return s.checkout, nil
}

func (s *Session) AbandonCheckout() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.checkout == nil {
		return ErrNoCheckout
	}
	if s.needsReconciliationLocked() {
		return ErrNeedsReconciliation
	}
	if s.checkout.State().Step == checkout.StepProcessing {
		return ErrCheckoutInProgress
	}
	s.checkout = nil
	return nil
}

func (s *Session) needsReconciliationLocked() bool {
	if s.reconciling {
		return true
	}
	return s.checkout != nil && s.checkout.State().Step == checkout.StepNeedsReconciliation
}

// Flush pushes both collections' pending writes now.
func (s *Session) Flush(ctx context.Context) error {
	return errors.Join(s.cartSync.Flush(ctx), s.wishlistSync.Flush(ctx))
}

func (s *Session) Close() {
	s.cartSync.Close()
	s.wishlistSync.Close()
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}
