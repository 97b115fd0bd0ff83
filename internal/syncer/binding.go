package syncer

import "github.com/Humancodes/mystore/internal/domain"

// Binding adapts a local collection to the engine.
type Binding interface {
	Kind() domain.CollectionKind
	// Merge adds a hydrated remote item to the local collection.
	Merge(p domain.Product, item domain.RemoteItem)
	// Snapshot returns the local collection in remote shape.
	Snapshot() []domain.RemoteItem
	Subscribe(fn func()) func()
}

type cartBinding struct {
	ledger *domain.Ledger
}

func CartBinding(l *domain.Ledger) Binding {
	return cartBinding{ledger: l}
}

func (b cartBinding) Kind() domain.CollectionKind { return domain.KindCart }

func (b cartBinding) Merge(p domain.Product, item domain.RemoteItem) {
	b.ledger.AddAt(p, item.Quantity, item.AddedAt)
}

func (b cartBinding) Snapshot() []domain.RemoteItem {
	items := b.ledger.Items()
	out := make([]domain.RemoteItem, 0, len(items))
	for _, it := range items {
		out = append(out, domain.RemoteItem{
			ProductRef: it.ProductRef,
			Quantity:   it.Quantity,
			AddedAt:    it.AddedAt,
		})
	}
	return out
}

func (b cartBinding) Subscribe(fn func()) func() {
	return b.ledger.Subscribe(fn)
}

type wishlistBinding struct {
	wishlist *domain.Wishlist
}

func WishlistBinding(w *domain.Wishlist) Binding {
	return wishlistBinding{wishlist: w}
}

func (b wishlistBinding) Kind() domain.CollectionKind { return domain.KindWishlist }

func (b wishlistBinding) Merge(p domain.Product, item domain.RemoteItem) {
	b.wishlist.AddAt(p, item.AddedAt)
}

func (b wishlistBinding) Snapshot() []domain.RemoteItem {
	entries := b.wishlist.Items()
	out := make([]domain.RemoteItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, domain.RemoteItem{
			ProductRef: e.Product.Ref,
			AddedAt:    e.AddedAt,
		})
	}
	return out
}

func (b wishlistBinding) Subscribe(fn func()) func() {
	return b.wishlist.Subscribe(fn)
}
