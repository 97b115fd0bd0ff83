package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/Humancodes/mystore/internal/cache"
	"github.com/Humancodes/mystore/internal/catalog"
	"github.com/Humancodes/mystore/internal/config"
	"github.com/Humancodes/mystore/internal/consumer"
	storegrpc "github.com/Humancodes/mystore/internal/grpc"
	h "github.com/Humancodes/mystore/internal/http"
	"github.com/Humancodes/mystore/internal/order"
	"github.com/Humancodes/mystore/internal/payment"
	"github.com/Humancodes/mystore/internal/publisher"
	"github.com/Humancodes/mystore/internal/repository"
	"github.com/Humancodes/mystore/internal/service"
	"github.com/Humancodes/mystore/internal/session"
	"github.com/Humancodes/mystore/internal/syncer"
	"github.com/Humancodes/mystore/pkg/circuitbreaker"
	"github.com/Humancodes/mystore/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const dependencyCheckInterval = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(logger.Options{Service: "storefront", Env: cfg.Env, Level: cfg.LogLevel})
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()
	zap.ReplaceGlobals(zl)

	if err := run(cfg, zl); err != nil {
		zl.Fatal("storefront stopped with error", zap.Error(err))
	}
	zl.Info("storefront stopped")
}

type orderStore interface {
	order.Store
	h.OrderReader
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set up MongoDB connection
	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName, zl)
	if err != nil {
		return err
	}
	defer mongoDB.Client().Disconnect(context.Background())
	zl.Info("connected to MongoDB", zap.String("db", cfg.MongoDBName))

	stateRepo := repository.NewMongoStateRepository(mongoDB)
	if err := stateRepo.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("create state indexes: %w", err)
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	zl.Info("redis ping succeeded", zap.String("addr", cfg.RedisAddr))

	gateway := service.NewStateService(stateRepo, cache.NewRedisSnapshotCache(redisClient), zl)

	orders, closeOrders, err := openOrderStore(ctx, cfg, mongoDB, zl)
	if err != nil {
		return err
	}
	defer closeOrders()

	products, err := catalog.NewSQLiteRepository(cfg.CatalogDBPath)
	if err != nil {
		return err
	}
	defer products.Close()
	if err := products.RunMigrations(cfg.CatalogMigrationsPath); err != nil {
		return fmt.Errorf("catalog migrations: %w", err)
	}
	cat := catalog.NewBreakerCatalog(products, circuitbreaker.DefaultConfig("catalog"), zl)

	payments := payment.NewRegistry(
		payment.PayOnDelivery{},
		payment.NewPushPayment(
			payment.NewSimulatedPushRequester(payment.RandomStatus{}, 2*time.Second),
			cfg.PushPaymentTimeout, zl),
		payment.NewHostedCardForm(
			payment.NewBreakerProcessor(payment.NewSimulatedProcessor(payment.RandomStatus{}),
				circuitbreaker.DefaultConfig("card-processor"), zl),
			zl),
	)

	var pub interface {
		order.Publisher
		Close() error
	} = publisher.Nop{}
	if len(cfg.KafkaBrokers) > 0 {
		pub = publisher.NewKafkaPublisher(zl, cfg.KafkaBrokers...)
		zl.Info("publishing order events", zap.Strings("brokers", cfg.KafkaBrokers))
	}
	defer pub.Close()

	committer := order.NewCommitter(orders, pub, order.Pricing{
		Currency:         cfg.Currency,
		FlatShipping:     cfg.ShippingFlat,
		FreeShippingOver: cfg.FreeShippingOver,
		TaxRate:          cfg.TaxRate,
	}, zl)

	sessions := session.NewManager(session.Deps{
		Gateway:   gateway,
		Catalog:   cat,
		Payments:  payments,
		Committer: committer,
		Sync:      syncer.Config{Debounce: cfg.SyncDebounce, SaveTimeout: cfg.SyncSaveTimeout},
		Log:       zl,
	}, cfg.SessionTTL)

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: h.NewRouter(h.RouterConfig{
			Sessions:       sessions,
			Products:       products,
			Orders:         orders,
			Quoter:         committer,
			RequestTimeout: cfg.RequestTimeout,
			Log:            zl,
		}),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	grpcServer := storegrpc.NewServer(zl)
	lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		zl.Info("http server listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return grpcServer.Serve(lis)
	})
	g.Go(func() error {
		grpcServer.MonitorDependencies(gctx, dependencyCheckInterval, map[string]storegrpc.Check{
			"mongo": func(ctx context.Context) error { return mongoDB.Client().Ping(ctx, nil) },
			"redis": func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		})
		return nil
	})
	if len(cfg.KafkaBrokers) > 0 {
		cleaner := consumer.NewCartCleaner(gateway, zl, cfg.KafkaBrokers...)
		defer cleaner.Close()
		g.Go(func() error {
			cleaner.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		zl.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		grpcServer.Shutdown(shutdownCtx)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zl.Warn("http shutdown", zap.Error(err))
		}
		// sessions go last so no request can dirty them after the flush
		if err := sessions.Close(shutdownCtx); err != nil {
			zl.Warn("flushing sessions on shutdown", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}

// openOrderStore returns the configured order store and its cleanup.
func openOrderStore(ctx context.Context, cfg *config.Config, db *mongo.Database, zl *zap.Logger) (orderStore, func(), error) {
	if cfg.OrderStore == config.OrderStoreMongo {
		repo := repository.NewMongoOrderRepository(db)
		if err := repo.CreateIndexes(ctx); err != nil {
			return nil, nil, fmt.Errorf("create order indexes: %w", err)
		}
		return repo, func() {}, nil
	}

	cred := &repository.Credentials{
		Host:              cfg.DBHost,
		Port:              cfg.DBPort,
		User:              cfg.DBUser,
		Password:          cfg.DBPassword,
		DBName:            cfg.DBName,
		MigrationsDirPath: cfg.OrdersMigrationsPath,
	}
	repo, err := repository.NewPostgresOrderRepository(cred)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := repo.RunMigrations(cred); err != nil {
		repo.Close()
		return nil, nil, fmt.Errorf("order migrations: %w", err)
	}
	zl.Info("orders stored in postgres", zap.String("host", cfg.DBHost), zap.String("db", cfg.DBName))
	return repo, func() {
		if err := repo.Close(); err != nil {
			zl.Warn("close postgres", zap.Error(err))
		}
	}, nil
}
