package domain

import (
	"sync"
	"time"
)

type WishlistEntry struct {
	Product Product   `json:"product"`
	AddedAt time.Time `json:"added_at"`
}

// Wishlist is a deduplicated, insertion-ordered set of products.
type Wishlist struct {
	mu      sync.RWMutex
	entries map[ProductRef]WishlistEntry
	order   []ProductRef

	subs listeners
	now  func() time.Time
}

func NewWishlist() *Wishlist {
	return &Wishlist{
		entries: make(map[ProductRef]WishlistEntry),
		now:     time.Now,
	}
}

// Add reports false when p was already present.
func (w *Wishlist) Add(p Product) bool {
	return w.AddAt(p, time.Time{})
}

// AddAt is Add with the time p was first wishlisted. A zero addedAt means now.
func (w *Wishlist) AddAt(p Product, addedAt time.Time) bool {
	if addedAt.IsZero() {
		addedAt = w.now()
	}

	w.mu.Lock()
	_, exists := w.entries[p.Ref]
	if !exists {
		w.entries[p.Ref] = WishlistEntry{Product: p, AddedAt: addedAt}
		w.order = append(w.order, p.Ref)
	}
	w.mu.Unlock()

	if !exists {
		w.subs.notify()
	}
	return !exists
}

func (w *Wishlist) Remove(ref ProductRef) bool {
	w.mu.Lock()
	_, ok := w.entries[ref]
	if ok {
		delete(w.entries, ref)
		for i, r := range w.order {
			if r == ref {
				w.order = append(w.order[:i], w.order[i+1:]...)
				break
			}
		}
	}
	w.mu.Unlock()

	if ok {
		w.subs.notify()
	}
	return ok
}

func (w *Wishlist) Contains(ref ProductRef) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.entries[ref]
	return ok
}

func (w *Wishlist) Get(ref ProductRef) (WishlistEntry, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	e, ok := w.entries[ref]
	return e, ok
}

func (w *Wishlist) Clear() {
	w.mu.Lock()
	changed := len(w.entries) > 0
	w.entries = make(map[ProductRef]WishlistEntry)
	w.order = nil
	w.mu.Unlock()

	if changed {
		w.subs.notify()
	}
}

func (w *Wishlist) Items() []WishlistEntry {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]WishlistEntry, 0, len(w.order))
	for _, ref := range w.order {
		out = append(out, w.entries[ref])
	}
	return out
}

func (w *Wishlist) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.entries)
}

func (w *Wishlist) Subscribe(fn func()) func() {
	return w.subs.subscribe(fn)
}
