package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"storefront/internal/backend"
	"storefront/internal/config"
	"storefront/internal/db"
	"storefront/internal/httpserver"
	"storefront/internal/logging"
	"storefront/internal/migrate"
	"storefront/internal/repository/blob"
	"storefront/internal/service/account"
	"storefront/internal/service/admin"
	"storefront/internal/service/catalog"
	"storefront/internal/service/checkout"
	"storefront/internal/session"
)

func main() {
	cfg := config.FromEnv()
	logger := logging.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openBlobStore(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("open session store")
	}
	defer closeStore()

	api := backend.New(cfg.BackendURL, &http.Client{Timeout: cfg.BackendTimeout}, logger)
	sessions := session.NewManager(store, api, session.Options{
		SyncTimeout: cfg.BackendTimeout,
		Durable:     true,
		IdleTimeout: cfg.SessionIdle,
	}, logger)

	ready, _ := store.(blob.Pinger)
	srv, err := httpserver.New(cfg.HTTPAddr, logger, httpserver.Deps{
		Sessions:    sessions,
		CatalogSvc:  catalog.New(api),
		AccountSvc:  account.New(api, sessions, logger),
		CheckoutSvc: checkout.New(api, logger),
		AdminSvc:    admin.New(api, logger),
		Ready:       ready,
	}, httpserver.Options{
		SessionCookie: cfg.SessionCookie,
		SessionTTL:    cfg.SessionTTL,
		CORSOrigins:   cfg.CORSOrigins,
	})
	if err != nil {
		logger.WithError(err).Fatal("init server")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.WithFields(logrus.Fields{
			"addr":    cfg.HTTPAddr,
			"backend": cfg.BackendURL,
			"store":   cfg.BlobDriver,
		}).Info("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return sessions.Run(gctx, sweepInterval(cfg.SessionIdle))
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		// Stop accepting requests first, then drain pending basket syncs.
		httpErr := srv.Shutdown(shutdownCtx)
		return errors.Join(httpErr, sessions.Close(shutdownCtx))
	})

	if err := g.Wait(); err != nil {
		logger.WithError(err).Error("server stopped with error")
		return
	}
	logger.Info("server stopped")
}

// openBlobStore builds the session store selected by BLOB_DRIVER. The returned
// func releases its connections.
func openBlobStore(ctx context.Context, cfg config.Config, logger *logrus.Logger) (blob.Repository, func(), error) {
	switch cfg.BlobDriver {
	case config.BlobMemory:
		return blob.NewMemory(), func() {}, nil
	case config.BlobPostgres:
		pool, err := db.Connect(ctx, cfg.DBConnString, db.Options{MaxConns: cfg.DBMaxConns})
		if err != nil {
			return nil, nil, fmt.Errorf("connect db: %w", err)
		}
		if err := migrate.Apply(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("apply migrations: %w", err)
		}
		return blob.NewPostgres(pool, logger), pool.Close, nil
	case config.BlobRedis:
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("ping redis: %w", err)
		}
		return blob.NewRedis(client, "storefront:", cfg.SessionTTL, logger), func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown blob driver %q", cfg.BlobDriver)
	}
}

func sweepInterval(idle time.Duration) time.Duration {
	if idle <= 0 || idle > time.Minute {
		return time.Minute
	}
	return idle
}
