package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Humancodes/mystore/internal/catalog"
	"github.com/Humancodes/mystore/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type saveCall struct {
	userID string
	kind   domain.CollectionKind
	items  []domain.RemoteItem
}

type mockGateway struct {
	mu       sync.Mutex
	remote   map[string][]domain.RemoteItem
	loadErr  error
	saveErr  error
	loadGate chan struct{}
	loads    int
	attempts int
	saves    []saveCall
}

func newMockGateway() *mockGateway {
	return &mockGateway{remote: make(map[string][]domain.RemoteItem)}
}

func (m *mockGateway) Load(_ context.Context, userID string, kind domain.CollectionKind) (*domain.RemoteSnapshot, error) {
	m.mu.Lock()
	m.loads++
	gate := m.loadGate
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	return &domain.RemoteSnapshot{UserID: userID, Kind: kind, Items: m.remote[userID]}, nil
}

func (m *mockGateway) Save(_ context.Context, userID string, kind domain.CollectionKind, items []domain.RemoteItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts++
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saves = append(m.saves, saveCall{userID: userID, kind: kind, items: items})
	m.remote[userID] = items
	return nil
}

func (m *mockGateway) saveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.saves)
}

func (m *mockGateway) attemptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts
}

func (m *mockGateway) loadCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loads
}

func (m *mockGateway) lastSave() saveCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saves[len(m.saves)-1]
}

func (m *mockGateway) setSaveErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveErr = err
}

type mockCatalog struct {
	products map[domain.ProductRef]domain.Product
}

func (m mockCatalog) GetProduct(_ context.Context, ref domain.ProductRef) (*domain.Product, error) {
	p, ok := m.products[ref]
	if !ok {
		return nil, catalog.ErrProductNotFound
	}
	return &p, nil
}

func product(ref string, price string) domain.Product {
	return domain.Product{Ref: domain.ProductRef(ref), Name: "Product " + ref, Price: decimal.RequireFromString(price)}
}

func testCatalog(products ...domain.Product) mockCatalog {
	m := mockCatalog{products: make(map[domain.ProductRef]domain.Product)}
	for _, p := range products {
		m.products[p.Ref] = p
	}
	return m
}

const testDebounce = 30 * time.Millisecond

func newCartEngine(t *testing.T, gw *mockGateway, cat catalog.Catalog, debounce time.Duration) (*Engine, *domain.Ledger) {
	ledger := domain.NewLedger()
	e := NewEngine(gw, cat, CartBinding(ledger), Config{Debounce: debounce}, nil)
	t.Cleanup(e.Close)
	return e, ledger
}

func TestLogin_MergesRemoteIntoLedger(t *testing.T) {
	gw := newMockGateway()
	gw.remote["u1"] = []domain.RemoteItem{{ProductRef: "p1", Quantity: 2}}
	e, ledger := newCartEngine(t, gw, testCatalog(product("p1", "10")), testDebounce)

	require.NoError(t, e.Login(context.Background(), "u1"))

	assert.Equal(t, StateSyncing, e.State())
	assert.True(t, e.HasLoaded())
	assert.Equal(t, 2, ledger.TotalItems())
	assert.True(t, decimal.NewFromInt(20).Equal(ledger.TotalPrice()))
}

func TestLogin_SecondLoginIsNoop(t *testing.T) {
	gw := newMockGateway()
	gw.remote["u1"] = []domain.RemoteItem{{ProductRef: "p1", Quantity: 2}}
	e, ledger := newCartEngine(t, gw, testCatalog(product("p1", "10")), testDebounce)

	require.NoError(t, e.Login(context.Background(), "u1"))
	totalsAfterFirst := ledger.TotalPrice()
	require.NoError(t, e.Login(context.Background(), "u1"))

	assert.Equal(t, 1, gw.loadCount())
	assert.Equal(t, 2, ledger.TotalItems())
	assert.True(t, totalsAfterFirst.Equal(ledger.TotalPrice()))
}

func TestDebounce_CoalescesRapidMutations(t *testing.T) {
	gw := newMockGateway()
	p1 := product("p1", "10")
	e, ledger := newCartEngine(t, gw, testCatalog(p1), testDebounce)

	require.NoError(t, e.Login(context.Background(), "u1"))
	// the post-load push
	require.Eventually(t, func() bool { return gw.saveCount() == 1 }, time.Second, 5*time.Millisecond)

	for i := 0; i < 5; i++ {
		ledger.Add(p1, 1)
	}

	require.Eventually(t, func() bool { return gw.saveCount() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(4 * testDebounce)
	assert.Equal(t, 2, gw.saveCount())

	last := gw.lastSave()
	require.Len(t, last.items, 1)
	assert.Equal(t, 5, last.items[0].Quantity)
	assert.Equal(t, domain.KindCart, last.kind)
	assert.Equal(t, "u1", last.userID)
}

func TestLogin_NewUserKeepsLocalAdditions(t *testing.T) {
	gw := newMockGateway()
	p1 := product("p1", "10")
	e, ledger := newCartEngine(t, gw, testCatalog(p1), testDebounce)

	ledger.Add(p1, 3)
	require.NoError(t, e.Login(context.Background(), "brand-new"))

	assert.Equal(t, 3, ledger.TotalItems())
	require.Eventually(t, func() bool { return gw.saveCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, gw.lastSave().items[0].Quantity)
}

func TestLogin_MutationsBeforeLoginDoNotPush(t *testing.T) {
	gw := newMockGateway()
	p1 := product("p1", "10")
	_, ledger := newCartEngine(t, gw, testCatalog(p1), testDebounce)

	ledger.Add(p1, 1)
	ledger.Add(p1, 1)
	time.Sleep(4 * testDebounce)

	assert.Equal(t, 0, gw.attemptCount())
}

func TestLogin_LoadFailure(t *testing.T) {
	gw := newMockGateway()
	gw.loadErr = errors.New("store unavailable")
	p1 := product("p1", "10")
	e, ledger := newCartEngine(t, gw, testCatalog(p1), testDebounce)

	require.NoError(t, e.Login(context.Background(), "u1"))
	assert.True(t, e.HasLoaded())
	assert.Equal(t, StateSyncing, e.State())

	time.Sleep(4 * testDebounce)
	assert.Equal(t, 0, gw.attemptCount(), "no push right after a failed load")

	ledger.Add(p1, 1)
	require.Eventually(t, func() bool { return gw.saveCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestLogin_DropsUnresolvableProducts(t *testing.T) {
	gw := newMockGateway()
	gw.remote["u1"] = []domain.RemoteItem{
		{ProductRef: "gone", Quantity: 4},
		{ProductRef: "p1", Quantity: 1},
	}
	e, ledger := newCartEngine(t, gw, testCatalog(product("p1", "10")), testDebounce)

	require.NoError(t, e.Login(context.Background(), "u1"))

	items := ledger.Items()
	require.Len(t, items, 1)
	assert.Equal(t, domain.ProductRef("p1"), items[0].ProductRef)
}

func TestLogin_NoPushWhileLoading(t *testing.T) {
	gw := newMockGateway()
	gw.remote["u1"] = []domain.RemoteItem{{ProductRef: "p1", Quantity: 1}}
	gw.loadGate = make(chan struct{})
	p1, p2 := product("p1", "10"), product("p2", "5")
	e, ledger := newCartEngine(t, gw, testCatalog(p1, p2), testDebounce)

	done := make(chan error, 1)
	go func() { done <- e.Login(context.Background(), "u1") }()

	require.Eventually(t, func() bool { return e.State() == StateLoading }, time.Second, time.Millisecond)
	ledger.Add(p2, 1)
	time.Sleep(4 * testDebounce)
	assert.Equal(t, 0, gw.attemptCount())

	close(gw.loadGate)
	require.NoError(t, <-done)

	require.Eventually(t, func() bool { return gw.saveCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Len(t, gw.lastSave().items, 2)
}

func TestLogout_FlushesPendingAndResets(t *testing.T) {
	gw := newMockGateway()
	p1 := product("p1", "10")
	e, ledger := newCartEngine(t, gw, testCatalog(p1), time.Hour)

	require.NoError(t, e.Login(context.Background(), "u1"))
	ledger.Add(p1, 2)
	assert.Equal(t, 0, gw.attemptCount())

	e.Logout(context.Background())

	assert.Equal(t, 1, gw.saveCount())
	assert.Equal(t, 2, gw.lastSave().items[0].Quantity)
	assert.Equal(t, StateIdle, e.State())
	assert.False(t, e.HasLoaded())

	require.NoError(t, e.Login(context.Background(), "u1"))
	assert.Equal(t, 2, gw.loadCount())
}

func TestLogin_DifferentUserLogsOutFirst(t *testing.T) {
	gw := newMockGateway()
	e, _ := newCartEngine(t, gw, testCatalog(), testDebounce)

	require.NoError(t, e.Login(context.Background(), "u1"))
	require.NoError(t, e.Login(context.Background(), "u2"))

	assert.Equal(t, "u2", e.UserID())
	assert.Equal(t, 2, gw.loadCount())
}

func TestSaveFailure_RetriedByNextMutation(t *testing.T) {
	gw := newMockGateway()
	p1 := product("p1", "10")
	e, ledger := newCartEngine(t, gw, testCatalog(p1), testDebounce)

	require.NoError(t, e.Login(context.Background(), "u1"))
	require.Eventually(t, func() bool { return gw.saveCount() == 1 }, time.Second, 5*time.Millisecond)

	gw.setSaveErr(errors.New("timeout"))
	ledger.Add(p1, 1)
	require.Eventually(t, func() bool { return gw.attemptCount() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, gw.saveCount())

	gw.setSaveErr(nil)
	ledger.Add(p1, 1)
	require.Eventually(t, func() bool { return gw.saveCount() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 2, gw.lastSave().items[0].Quantity)
}

func TestFlush_WritesImmediately(t *testing.T) {
	gw := newMockGateway()
	p1 := product("p1", "10")
	e, ledger := newCartEngine(t, gw, testCatalog(p1), time.Hour)

	require.NoError(t, e.Login(context.Background(), "u1"))
	ledger.Add(p1, 1)

	require.NoError(t, e.Flush(context.Background()))
	assert.Equal(t, 1, gw.saveCount())

	// nothing pending now
	require.NoError(t, e.Flush(context.Background()))
	assert.Equal(t, 1, gw.saveCount())
}

func TestClose_DropsPendingWrite(t *testing.T) {
	gw := newMockGateway()
	p1 := product("p1", "10")
	e, ledger := newCartEngine(t, gw, testCatalog(p1), testDebounce)

	require.NoError(t, e.Login(context.Background(), "u1"))
	e.Close()
	ledger.Add(p1, 1)

	time.Sleep(4 * testDebounce)
	assert.Equal(t, 0, gw.attemptCount())
	assert.ErrorIs(t, e.Login(context.Background(), "u2"), ErrClosed)
}

func TestWishlistEngine_LoadAndPush(t *testing.T) {
	gw := newMockGateway()
	gw.remote["u1"] = []domain.RemoteItem{{ProductRef: "w1"}}
	w1, w2 := product("w1", "3"), product("w2", "4")
	wishlist := domain.NewWishlist()
	e := NewEngine(gw, testCatalog(w1, w2), WishlistBinding(wishlist), Config{Debounce: testDebounce}, nil)
	t.Cleanup(e.Close)

	require.NoError(t, e.Login(context.Background(), "u1"))
	assert.True(t, wishlist.Contains("w1"))

	wishlist.Add(w2)
	require.Eventually(t, func() bool {
		return gw.saveCount() > 0 && len(gw.lastSave().items) == 2
	}, time.Second, 5*time.Millisecond)

	last := gw.lastSave()
	assert.Equal(t, domain.KindWishlist, last.kind)
	assert.Zero(t, last.items[1].Quantity)
}

func TestLogin_KeepsRemoteAddedAt(t *testing.T) {
	addedAt := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	gw := newMockGateway()
	gw.remote["u1"] = []domain.RemoteItem{{ProductRef: "p1", Quantity: 1, AddedAt: addedAt}}
	e, ledger := newCartEngine(t, gw, testCatalog(product("p1", "10"), product("p2", "5")), time.Hour)

	require.NoError(t, e.Login(context.Background(), "u1"))
	item, ok := ledger.Get("p1")
	require.True(t, ok)
	assert.True(t, addedAt.Equal(item.AddedAt))

	ledger.Add(product("p2", "5"), 1)
	require.NoError(t, e.Flush(context.Background()))

	saved := gw.lastSave().items
	require.Len(t, saved, 2)
	assert.True(t, addedAt.Equal(saved[0].AddedAt), "got %s", saved[0].AddedAt)
	assert.False(t, saved[1].AddedAt.IsZero())
}

func TestWishlistMerge_KeepsRemoteAddedAt(t *testing.T) {
	addedAt := time.Date(2026, 2, 14, 0, 0, 0, 0, time.UTC)
	w := domain.NewWishlist()

	WishlistBinding(w).Merge(product("p1", "10"), domain.RemoteItem{ProductRef: "p1", AddedAt: addedAt})

	e, ok := w.Get("p1")
	require.True(t, ok)
	assert.True(t, addedAt.Equal(e.AddedAt))
}
