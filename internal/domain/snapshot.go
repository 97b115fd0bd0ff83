package domain

import "time"

type CollectionKind string

const (
	KindCart     CollectionKind = "cart"
	KindWishlist CollectionKind = "wishlist"
)

func (k CollectionKind) String() string {
	return string(k)
}

type RemoteItem struct {
	ProductRef ProductRef `json:"product_ref" bson:"product_ref"`
	Quantity   int        `json:"quantity,omitempty" bson:"quantity,omitempty"`
	AddedAt    time.Time  `json:"added_at" bson:"added_at"`
}

// RemoteSnapshot is the persisted projection of a user's cart or wishlist.
type RemoteSnapshot struct {
	UserID             string         `json:"user_id" bson:"user_id"`
	Kind               CollectionKind `json:"kind" bson:"-"`
	Items              []RemoteItem   `json:"items" bson:"items"`
	LastWriteTimestamp time.Time      `json:"last_write" bson:"updated_at"`
}

func EmptySnapshot(userID string, kind CollectionKind) *RemoteSnapshot {
	return &RemoteSnapshot{UserID: userID, Kind: kind}
}

func (s *RemoteSnapshot) IsEmpty() bool {
	return s == nil || len(s.Items) == 0
}
