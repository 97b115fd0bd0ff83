package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Humancodes/mystore/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const snapshotTTL = 90 * 24 * time.Hour

// MongoStateRepository keeps one document per user in "carts" and one in
// "wishlists". Replace overwrites the item list wholesale.
type MongoStateRepository struct {
	collections map[domain.CollectionKind]*mongo.Collection
	now         func() time.Time
}

func NewMongoStateRepository(db *mongo.Database) *MongoStateRepository {
	return &MongoStateRepository{
		collections: map[domain.CollectionKind]*mongo.Collection{
			domain.KindCart:     db.Collection("carts"),
			domain.KindWishlist: db.Collection("wishlists"),
		},
		now: time.Now,
	}
}

func (m *MongoStateRepository) Find(ctx context.Context, userID string, kind domain.CollectionKind) (*domain.RemoteSnapshot, error) {
	coll, err := m.collection(kind)
	if err != nil {
		return nil, err
	}

	var snap domain.RemoteSnapshot
	err = coll.FindOne(ctx, bson.M{"user_id": userID}).Decode(&snap)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("failed to get %s: %w", kind, err)
	}

	snap.Kind = kind
	return &snap, nil
}

func (m *MongoStateRepository) Replace(ctx context.Context, userID string, kind domain.CollectionKind, items []domain.RemoteItem) error {
	coll, err := m.collection(kind)
	if err != nil {
		return err
	}
	if items == nil {
		items = []domain.RemoteItem{}
	}

	now := m.now()
	filter := bson.M{"user_id": userID}
	update := bson.M{
		"$set":         bson.M{"items": items, "updated_at": now},
		"$setOnInsert": bson.M{"created_at": now},
	}
	opts := options.Update().SetUpsert(true)

	if _, err := coll.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to upsert %s: %w", kind, err)
	}
	return nil
}

func (m *MongoStateRepository) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "user_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "updated_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(snapshotTTL.Seconds())),
		},
	}

	for kind, coll := range m.collections {
		if _, err := coll.Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("failed to create %s indexes: %w", kind, err)
		}
	}
	return nil
}

func (m *MongoStateRepository) collection(kind domain.CollectionKind) (*mongo.Collection, error) {
	coll, ok := m.collections[kind]
	if !ok {
		return nil, fmt.Errorf("unknown collection kind %q", kind)
	}
	return coll, nil
}
