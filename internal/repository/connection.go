package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const (
	mongoPingAttempts = 5
	mongoPingBackoff  = time.Second
)

// ConnectMongoDB connects to uri and returns database. The primary is pinged
// a few times with growing backoff, since the server may still be starting.
func ConnectMongoDB(ctx context.Context, uri, database string, log *zap.Logger) (*mongo.Database, error) {
	if log == nil {
		log = zap.NewNop()
	}

	client, err := mongo.Connect(ctx, options.Client().
		ApplyURI(uri).
		SetAppName("storefront").
		SetConnectTimeout(10*time.Second).
		SetServerSelectionTimeout(5*time.Second).
		SetMaxPoolSize(100).
		SetMinPoolSize(10).
		SetRetryWrites(true))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	backoff := mongoPingBackoff
	for attempt := 1; ; attempt++ {
		err = client.Ping(ctx, readpref.Primary())
		if err == nil {
			break
		}
		if attempt == mongoPingAttempts {
			_ = client.Disconnect(context.Background())
			return nil, fmt.Errorf("failed to ping MongoDB after %d attempts: %w", attempt, err)
		}
		log.Warn("mongo ping failed, retrying",
			zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(err))

		select {
		case <-ctx.Done():
			_ = client.Disconnect(context.Background())
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	return client.Database(database), nil
}
