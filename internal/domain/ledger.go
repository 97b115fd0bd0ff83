package domain

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type LineItem struct {
	ProductRef ProductRef      `json:"product_ref"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Quantity   int             `json:"quantity"`
	AddedAt    time.Time       `json:"added_at"`
}

func (i LineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Ledger is the session-local cart. Line items are unique by ProductRef and
// never hold a quantity below 1. Totals are recomputed inside every mutation.
type Ledger struct {
	mu         sync.RWMutex
	items      map[ProductRef]*LineItem
	order      []ProductRef
	totalItems int
	totalPrice decimal.Decimal

	subs listeners
	now  func() time.Time
}

func NewLedger() *Ledger {
	return &Ledger{
		items: make(map[ProductRef]*LineItem),
		now:   time.Now,
	}
}

// Add inserts p or increments its quantity. A qty below 1 counts as 1.
func (l *Ledger) Add(p Product, qty int) {
	l.AddAt(p, qty, time.Time{})
}

// AddAt is Add for a line first added at addedAt, as when restoring a stored
// cart. A zero addedAt means now. An existing line keeps its own time.
func (l *Ledger) AddAt(p Product, qty int, addedAt time.Time) {
	if qty < 1 {
		qty = 1
	}
	if addedAt.IsZero() {
		addedAt = l.now()
	}

	l.mu.Lock()
	if item, ok := l.items[p.Ref]; ok {
		item.Quantity += qty
	} else {
		l.items[p.Ref] = &LineItem{
			ProductRef: p.Ref,
			Name:       p.Name,
			UnitPrice:  p.Price,
			Quantity:   qty,
			AddedAt:    addedAt,
		}
		l.order = append(l.order, p.Ref)
	}
	l.recompute()
	l.mu.Unlock()

	l.subs.notify()
}

// Remove reports whether ref was present.
func (l *Ledger) Remove(ref ProductRef) bool {
	l.mu.Lock()
	removed := l.remove(ref)
	if removed {
		l.recompute()
	}
	l.mu.Unlock()

	if removed {
		l.subs.notify()
	}
	return removed
}

// SetQuantity sets the quantity of an existing line. qty < 1 removes the line.
// It reports whether the ledger changed.
func (l *Ledger) SetQuantity(ref ProductRef, qty int) bool {
	if qty < 1 {
		return l.Remove(ref)
	}

	l.mu.Lock()
	item, ok := l.items[ref]
	changed := ok && item.Quantity != qty
	if changed {
		item.Quantity = qty
		l.recompute()
	}
	l.mu.Unlock()

	if changed {
		l.subs.notify()
	}
	return changed
}

func (l *Ledger) Clear() {
	l.mu.Lock()
	changed := len(l.items) > 0
	l.items = make(map[ProductRef]*LineItem)
	l.order = nil
	l.recompute()
	l.mu.Unlock()

	if changed {
		l.subs.notify()
	}
}

// Items returns a copy of the line items in insertion order.
func (l *Ledger) Items() []LineItem {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]LineItem, 0, len(l.order))
	for _, ref := range l.order {
		out = append(out, *l.items[ref])
	}
	return out
}

func (l *Ledger) Get(ref ProductRef) (LineItem, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	item, ok := l.items[ref]
	if !ok {
		return LineItem{}, false
	}
	return *item, true
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.items)
}

func (l *Ledger) TotalItems() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalItems
}

func (l *Ledger) TotalPrice() decimal.Decimal {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totalPrice
}

// Subscribe registers fn to run after every change. The returned func removes it.
func (l *Ledger) Subscribe(fn func()) func() {
	return l.subs.subscribe(fn)
}

func (l *Ledger) remove(ref ProductRef) bool {
	if _, ok := l.items[ref]; !ok {
		return false
	}
	delete(l.items, ref)
	for i, r := range l.order {
		if r == ref {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return true
}

// recompute must be called with mu held.
func (l *Ledger) recompute() {
	count := 0
	price := decimal.Zero
	for _, item := range l.items {
		count += item.Quantity
		price = price.Add(item.Subtotal())
	}
	l.totalItems = count
	l.totalPrice = price
}
