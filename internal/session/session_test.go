package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Humancodes/mystore/internal/catalog"
	"github.com/Humancodes/mystore/internal/checkout"
	"github.com/Humancodes/mystore/internal/domain"
	"github.com/Humancodes/mystore/internal/order"
	"github.com/Humancodes/mystore/internal/payment"
	"github.com/Humancodes/mystore/internal/syncer"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memGateway struct {
	mu    sync.Mutex
	docs  map[string][]domain.RemoteItem
	saves int
}

func newMemGateway() *memGateway {
	return &memGateway{docs: make(map[string][]domain.RemoteItem)}
}

func docKey(userID string, kind domain.CollectionKind) string {
	return string(kind) + ":" + userID
}

func (m *memGateway) Load(_ context.Context, userID string, kind domain.CollectionKind) (*domain.RemoteSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return &domain.RemoteSnapshot{UserID: userID, Kind: kind, Items: m.docs[docKey(userID, kind)]}, nil
}

func (m *memGateway) Save(_ context.Context, userID string, kind domain.CollectionKind, items []domain.RemoteItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[docKey(userID, kind)] = items
	m.saves++
	return nil
}

func (m *memGateway) doc(userID string, kind domain.CollectionKind) []domain.RemoteItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.docs[docKey(userID, kind)]
}

func (m *memGateway) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves
}

type memCatalog map[domain.ProductRef]domain.Product

func (c memCatalog) GetProduct(_ context.Context, ref domain.ProductRef) (*domain.Product, error) {
	p, ok := c[ref]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &p, nil
}

type memStore struct {
	mu     sync.Mutex
	err    error
	orders []*domain.Order
}

func (m *memStore) CreateOrder(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.orders = append(m.orders, o)
	return nil
}

func (m *memStore) setErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

// gatedPayment blocks in Confirm until release is closed.
type gatedPayment struct {
	entered chan struct{}
	release chan struct{}
}

func (g *gatedPayment) Method() payment.Method { return "gated" }

func (g *gatedPayment) CollectDetails(context.Context, payment.Input, payment.Amount) (payment.Selection, error) {
	return payment.Selection{Method: "gated"}, nil
}

func (g *gatedPayment) Confirm(context.Context, payment.Selection, payment.Amount) payment.Result {
	close(g.entered)
	<-g.release
	return payment.Succeeded("gated-token")
}

func testAddress() domain.Address {
	return domain.Address{
		FullName: "Jane Doe", Phone: "+15550100", Line1: "1 Main St",
		City: "Springfield", State: "IL", PostalCode: "62701", Country: "US",
	}
}

// toReview begins a checkout and walks it to review with method.
func toReview(t *testing.T, s *Session, method payment.Method) *checkout.Machine {
	t.Helper()
	m, err := s.BeginCheckout()
	require.NoError(t, err)
	require.NoError(t, m.SubmitShipping(testAddress()))
	require.NoError(t, m.SelectPayment(context.Background(), method, payment.Input{}))
	return m
}

func testDeps(gw *memGateway, debounce time.Duration) (Deps, *memStore) {
	store := &memStore{}
	return Deps{
		Gateway: gw,
		Catalog: memCatalog{
			"p1": {Ref: "p1", Name: "Mug", Price: decimal.NewFromInt(10)},
			"p2": {Ref: "p2", Name: "Tote", Price: decimal.NewFromInt(15)},
		},
		Payments:  payment.NewRegistry(payment.PayOnDelivery{}),
		Committer: order.NewCommitter(store, nil, order.DefaultPricing(), nil),
		Sync:      syncer.Config{Debounce: debounce},
	}, store
}

func newTestSession(t *testing.T, gw *memGateway, debounce time.Duration) (*Session, *memStore) {
	deps, store := testDeps(gw, debounce)
	s := New("s1", deps)
	t.Cleanup(s.Close)
	return s, store
}

func TestLogin_LoadsBothCollections(t *testing.T) {
	gw := newMemGateway()
	gw.docs[docKey("u1", domain.KindCart)] = []domain.RemoteItem{{ProductRef: "p1", Quantity: 3}}
	gw.docs[docKey("u1", domain.KindWishlist)] = []domain.RemoteItem{{ProductRef: "p2"}}
	s, _ := newTestSession(t, gw, time.Hour)

	require.NoError(t, s.Login(context.Background(), "u1"))

	assert.Equal(t, "u1", s.UserID())
	assert.Equal(t, 3, s.Ledger.TotalItems())
	assert.True(t, s.Wishlist.Contains("p2"))
}

func TestLogin_RequiresUser(t *testing.T) {
	s, _ := newTestSession(t, newMemGateway(), time.Hour)
	assert.ErrorIs(t, s.Login(context.Background(), ""), ErrNotAuthenticated)
}

func TestLogout_FlushesAndClears(t *testing.T) {
	gw := newMemGateway()
	s, _ := newTestSession(t, gw, time.Hour)

	require.NoError(t, s.Login(context.Background(), "u1"))
	_, err := s.AddToCart(context.Background(), "p1", 2)
	require.NoError(t, err)

	require.NoError(t, s.Logout(context.Background()))

	assert.Equal(t, "", s.UserID())
	assert.Equal(t, 0, s.Ledger.Len())
	require.Len(t, gw.doc("u1", domain.KindCart), 1)
	assert.Equal(t, 2, gw.doc("u1", domain.KindCart)[0].Quantity)
}

func TestLogin_SwitchUserDoesNotLeakCart(t *testing.T) {
	gw := newMemGateway()
	s, _ := newTestSession(t, gw, time.Hour)

	require.NoError(t, s.Login(context.Background(), "u1"))
	_, err := s.AddToCart(context.Background(), "p1", 1)
	require.NoError(t, err)

	require.NoError(t, s.Login(context.Background(), "u2"))
	assert.Equal(t, 0, s.Ledger.Len())
	assert.Len(t, gw.doc("u1", domain.KindCart), 1)
}

func TestAddToCart_UnknownProduct(t *testing.T) {
	s, _ := newTestSession(t, newMemGateway(), time.Hour)
	_, err := s.AddToCart(context.Background(), "missing", 1)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)
}

func TestMoveToCart(t *testing.T) {
	s, _ := newTestSession(t, newMemGateway(), time.Hour)

	added, err := s.AddToWishlist(context.Background(), "p2")
	require.NoError(t, err)
	assert.True(t, added)

	require.NoError(t, s.MoveToCart(context.Background(), "p2"))
	assert.False(t, s.Wishlist.Contains("p2"))
	item, ok := s.Ledger.Get("p2")
	require.True(t, ok)
	assert.Equal(t, 1, item.Quantity)

	assert.ErrorIs(t, s.MoveToCart(context.Background(), "p2"), ErrNotInWishlist)
}

func TestBeginCheckout(t *testing.T) {
	s, _ := newTestSession(t, newMemGateway(), time.Hour)

	_, err := s.BeginCheckout()
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	require.NoError(t, s.Login(context.Background(), "u1"))
	_, err = s.BeginCheckout()
	assert.ErrorIs(t, err, checkout.ErrEmptyCart)

	_, err = s.Checkout()
	assert.ErrorIs(t, err, ErrNoCheckout)

	_, err = s.AddToCart(context.Background(), "p1", 1)
	require.NoError(t, err)
	m, err := s.BeginCheckout()
	require.NoError(t, err)

	got, err := s.Checkout()
	require.NoError(t, err)
	assert.Same(t, m, got)

	require.NoError(t, s.AbandonCheckout())
	assert.ErrorIs(t, s.AbandonCheckout(), ErrNoCheckout)
}

func TestCheckout_PlacedOrderEmptiesRemoteCart(t *testing.T) {
	gw := newMemGateway()
	s, store := newTestSession(t, gw, 20*time.Millisecond)
	ctx := context.Background()

	require.NoError(t, s.Login(ctx, "u1"))
	_, err := s.AddToCart(ctx, "p1", 2)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return len(gw.doc("u1", domain.KindCart)) == 1 }, time.Second, 5*time.Millisecond)

	m, err := s.BeginCheckout()
	require.NoError(t, err)
	require.NoError(t, m.SubmitShipping(testAddress()))
	require.NoError(t, m.SelectPayment(ctx, payment.MethodCOD, payment.Input{}))
	o, err := m.PlaceOrder(ctx)
	require.NoError(t, err)
	assert.Equal(t, "u1", o.BuyerID)
	assert.Len(t, store.orders, 1)

	require.Eventually(t, func() bool { return len(gw.doc("u1", domain.KindCart)) == 0 }, time.Second, 5*time.Millisecond)
}

func TestSession_EditsRefusedWhileProcessing(t *testing.T) {
	gate := &gatedPayment{entered: make(chan struct{}), release: make(chan struct{})}
	deps, store := testDeps(newMemGateway(), time.Hour)
	deps.Payments = payment.NewRegistry(payment.PayOnDelivery{}, gate)
	s := New("s1", deps)
	t.Cleanup(s.Close)
	ctx := context.Background()

	require.NoError(t, s.Login(ctx, "u1"))
	_, err := s.AddToCart(ctx, "p1", 2)
	require.NoError(t, err)
	_, err = s.AddToWishlist(ctx, "p2")
	require.NoError(t, err)
	m := toReview(t, s, "gated")

	done := make(chan error, 1)
	go func() {
		_, err := m.PlaceOrder(ctx)
		done <- err
	}()
	<-gate.entered

	_, err = s.AddToCart(ctx, "p2", 1)
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	assert.ErrorIs(t, s.SetCartQuantity("p1", 9), ErrCheckoutInProgress)
	assert.ErrorIs(t, s.RemoveFromCart("p1"), ErrCheckoutInProgress)
	assert.ErrorIs(t, s.ClearCart(), ErrCheckoutInProgress)
	assert.ErrorIs(t, s.MoveToCart(ctx, "p2"), ErrCheckoutInProgress)
	_, err = s.AddToWishlist(ctx, "p1")
	assert.ErrorIs(t, err, ErrCheckoutInProgress)
	assert.ErrorIs(t, s.RemoveFromWishlist("p2"), ErrCheckoutInProgress)
	assert.ErrorIs(t, s.Logout(ctx), ErrCheckoutInProgress)
	assert.Equal(t, "u1", s.UserID())

	item, ok := s.Ledger.Get("p1")
	require.True(t, ok)
	assert.Equal(t, 2, item.Quantity)

	close(gate.release)
	require.NoError(t, <-done)

	require.Equal(t, 1, store.count())
	o := store.orders[0]
	require.Len(t, o.Items, 1)
	assert.Equal(t, 2, o.Items[0].Quantity)

	// editing works again once the order is recorded
	_, err = s.AddToCart(ctx, "p2", 1)
	assert.NoError(t, err)
}

func TestSession_CartEdits(t *testing.T) {
	s, _ := newTestSession(t, newMemGateway(), time.Hour)
	ctx := context.Background()

	_, err := s.AddToCart(ctx, "p1", 1)
	require.NoError(t, err)

	require.NoError(t, s.SetCartQuantity("p1", 4))
	assert.Equal(t, 4, s.Ledger.TotalItems())
	assert.ErrorIs(t, s.SetCartQuantity("p2", 1), ErrNotInCart)

	require.NoError(t, s.RemoveFromCart("p1"))
	assert.ErrorIs(t, s.RemoveFromCart("p1"), ErrNotInCart)

	_, err = s.AddToCart(ctx, "p2", 2)
	require.NoError(t, err)
	require.NoError(t, s.ClearCart())
	assert.Equal(t, 0, s.Ledger.Len())

	assert.ErrorIs(t, s.RemoveFromWishlist("p1"), ErrNotInWishlist)
}

func TestCheckout_FailedRecordingBlocksAnotherCheckout(t *testing.T) {
	s, store := newTestSession(t, newMemGateway(), time.Hour)
	ctx := context.Background()
	store.setErr(errors.New("primary stepped down"))

	require.NoError(t, s.Login(ctx, "u1"))
	_, err := s.AddToCart(ctx, "p1", 1)
	require.NoError(t, err)

	m := toReview(t, s, payment.MethodCOD)
	_, err = m.PlaceOrder(ctx)
	var ce *order.CommitError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, checkout.StepNeedsReconciliation, m.State().Step)

	// the store recovers, but this session must not pay again
	store.setErr(nil)

	_, err = s.BeginCheckout()
	assert.ErrorIs(t, err, ErrNeedsReconciliation)
	assert.ErrorIs(t, s.AbandonCheckout(), ErrNeedsReconciliation)

	require.NoError(t, s.Logout(ctx))
	require.NoError(t, s.Login(ctx, "u1"))
	_, err = s.AddToCart(ctx, "p1", 1)
	require.NoError(t, err)
	_, err = s.BeginCheckout()
	assert.ErrorIs(t, err, ErrNeedsReconciliation)

	assert.Equal(t, 0, store.count())
}
