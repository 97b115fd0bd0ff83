package syncer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/Humancodes/mystore/internal/catalog"
	"github.com/Humancodes/mystore/internal/domain"
	"github.com/Humancodes/mystore/internal/repository"
	"go.uber.org/zap"
)

type State int

const (
	StateIdle State = iota
	StateLoading
	StateSyncing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoading:
		return "loading"
	case StateSyncing:
		return "syncing"
	default:
		return "unknown"
	}
}

var ErrClosed = errors.New("sync engine closed")

type Config struct {
	// Debounce is the quiet period after the last mutation before a push.
	Debounce time.Duration
	// SaveTimeout bounds a timer-driven save.
	SaveTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Debounce:    500 * time.Millisecond,
		SaveTimeout: 10 * time.Second,
	}
}

type pendingWrite struct {
	gen    uint64
	userID string
	items  []domain.RemoteItem
}

// Engine keeps one local collection in step with its remote snapshot.
// The remote copy is loaded once per login and every later local change is
// pushed after a quiet period, coalescing bursts into one save.
type Engine struct {
	gateway repository.StateGateway
	catalog catalog.Catalog
	binding Binding
	cfg     Config
	log     *zap.Logger

	mu        sync.Mutex
	state     State
	hasLoaded bool
	userID    string
	epoch     uint64 // bumped on logout so in-flight loads can tell they are stale
	gen       uint64
	pending   *pendingWrite
	timer     *time.Timer
	closed    bool
	unsub     func()

	saveMu   sync.Mutex
	savedGen uint64
}

func NewEngine(gateway repository.StateGateway, cat catalog.Catalog, binding Binding, cfg Config, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	def := DefaultConfig()
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.SaveTimeout <= 0 {
		cfg.SaveTimeout = def.SaveTimeout
	}

	e := &Engine{
		gateway: gateway,
		catalog: cat,
		binding: binding,
		cfg:     cfg,
		log:     log.With(zap.Stringer("kind", binding.Kind())),
	}
	e.unsub = binding.Subscribe(e.onChange)
	return e
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Engine) HasLoaded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.hasLoaded
}

func (e *Engine) UserID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.userID
}

// Login loads the user's remote snapshot into the local collection. It runs
// at most once per login; repeated calls for the same user are no-ops. A load
// failure is logged and the engine proceeds with local state only.
func (e *Engine) Login(ctx context.Context, userID string) error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.state != StateIdle && e.userID == userID {
		e.mu.Unlock()
		return nil
	}
	switchingUser := e.state != StateIdle
	e.mu.Unlock()

	if switchingUser {
		e.Logout(ctx)
	}

	e.mu.Lock()
	if e.state != StateIdle {
		// another login won the race
		e.mu.Unlock()
		return nil
	}
	e.state = StateLoading
	e.userID = userID
	epoch := e.epoch
	e.mu.Unlock()

	log := e.log.With(zap.String("user_id", userID))

	snap, err := e.gateway.Load(ctx, userID, e.binding.Kind())
	if err != nil {
		log.Warn("remote load failed, continuing with local state", zap.Error(err))
		e.mu.Lock()
		if e.epoch == epoch {
			e.hasLoaded = true
			e.state = StateSyncing
		}
		e.mu.Unlock()
		return nil
	}

	products := e.hydrate(ctx, log, snap)

	e.mu.Lock()
	stale := e.epoch != epoch
	e.mu.Unlock()
	if stale {
		log.Info("discarding load for logged out session")
		return nil
	}

	for i, p := range products {
		if p != nil {
			e.binding.Merge(*p, snap.Items[i])
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.epoch != epoch {
		return nil
	}
	e.hasLoaded = true
	e.state = StateSyncing
	// persist anything added locally before login
	e.schedulePushLocked()

	log.Info("remote state loaded", zap.Int("remote_items", len(snap.Items)))
	return nil
}

func (e *Engine) hydrate(ctx context.Context, log *zap.Logger, snap *domain.RemoteSnapshot) []*domain.Product {
	products := make([]*domain.Product, len(snap.Items))
	for i, item := range snap.Items {
		p, err := e.catalog.GetProduct(ctx, item.ProductRef)
		if err != nil {
			log.Warn("dropping remote item, product lookup failed",
				zap.String("product_ref", string(item.ProductRef)),
				zap.Error(err))
			continue
		}
		products[i] = p
	}
	return products
}

// Logout writes any pending change and resets the engine so the next login
// performs a fresh load.
func (e *Engine) Logout(ctx context.Context) {
	if err := e.Flush(ctx); err != nil {
		e.log.Warn("flush on logout failed", zap.Error(err))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.stopTimerLocked()
	e.pending = nil
	e.epoch++
	e.hasLoaded = false
	e.state = StateIdle
	e.userID = ""
}

// Flush saves the pending write now, if there is one.
func (e *Engine) Flush(ctx context.Context) error {
	e.mu.Lock()
	p := e.pending
	e.pending = nil
	e.stopTimerLocked()
	e.mu.Unlock()

	if p == nil {
		return nil
	}
	return e.save(ctx, p)
}

// Close detaches the engine from its collection and drops any pending write.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return
	}
	e.closed = true
	e.stopTimerLocked()
	e.pending = nil
	if e.unsub != nil {
		e.unsub()
	}
}

func (e *Engine) onChange() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.state != StateSyncing {
		return
	}
	e.schedulePushLocked()
}

func (e *Engine) schedulePushLocked() {
	e.gen++
	gen := e.gen
	e.pending = &pendingWrite{
		gen:    gen,
		userID: e.userID,
		items:  e.binding.Snapshot(),
	}
	e.stopTimerLocked()
	e.timer = time.AfterFunc(e.cfg.Debounce, func() { e.fire(gen) })
}

func (e *Engine) stopTimerLocked() {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

func (e *Engine) fire(gen uint64) {
	e.mu.Lock()
	p := e.pending
	if p == nil || p.gen != gen || e.state != StateSyncing {
		e.mu.Unlock()
		return
	}
	e.pending = nil
	e.timer = nil
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), e.cfg.SaveTimeout)
	defer cancel()
	_ = e.save(ctx, p)
}

func (e *Engine) save(ctx context.Context, p *pendingWrite) error {
	e.saveMu.Lock()
	defer e.saveMu.Unlock()

	if p.gen <= e.savedGen {
		return nil
	}

	if err := e.gateway.Save(ctx, p.userID, e.binding.Kind(), p.items); err != nil {
		// the next mutation schedules a fresh push with the latest state
		e.log.Warn("remote save failed",
			zap.String("user_id", p.userID),
			zap.Int("items", len(p.items)),
			zap.Error(err))
		return err
	}
	e.savedGen = p.gen
	e.log.Debug("remote state saved", zap.String("user_id", p.userID), zap.Int("items", len(p.items)))
	return nil
}
