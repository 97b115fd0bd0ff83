package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWishlist_Dedupes(t *testing.T) {
	w := NewWishlist()

	assert.True(t, w.Add(testProduct("p1", "1")))
	assert.False(t, w.Add(testProduct("p1", "1")))
	assert.Equal(t, 1, w.Len())
	assert.True(t, w.Contains("p1"))
}

func TestWishlist_RemoveAndOrder(t *testing.T) {
	w := NewWishlist()
	w.Add(testProduct("a", "1"))
	w.Add(testProduct("b", "1"))
	w.Add(testProduct("c", "1"))

	assert.True(t, w.Remove("b"))
	assert.False(t, w.Remove("b"))

	items := w.Items()
	require.Len(t, items, 2)
	assert.Equal(t, ProductRef("a"), items[0].Product.Ref)
	assert.Equal(t, ProductRef("c"), items[1].Product.Ref)
	assert.False(t, items[0].AddedAt.IsZero())
}

func TestWishlist_Notifications(t *testing.T) {
	w := NewWishlist()
	calls := 0
	w.Subscribe(func() { calls++ })

	w.Add(testProduct("a", "1"))
	w.Add(testProduct("a", "1"))
	w.Remove("missing")
	w.Clear()
	w.Clear()

	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, w.Len())
}
