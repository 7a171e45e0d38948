package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Overland-East-Bay/stockroom/internal/adapters/httpapi"
	memcatalog "github.com/Overland-East-Bay/stockroom/internal/adapters/memory/catalogrepo"
	memidempotency "github.com/Overland-East-Bay/stockroom/internal/adapters/memory/idempotency"
	"github.com/Overland-East-Bay/stockroom/internal/adapters/postgres"
	pgcatalog "github.com/Overland-East-Bay/stockroom/internal/adapters/postgres/catalogrepo"
	pgidempotency "github.com/Overland-East-Bay/stockroom/internal/adapters/postgres/idempotency"
	"github.com/Overland-East-Bay/stockroom/internal/app/catalog"
	platformclock "github.com/Overland-East-Bay/stockroom/internal/platform/clock"
	"github.com/Overland-East-Bay/stockroom/internal/platform/config"
	"github.com/Overland-East-Bay/stockroom/internal/platform/logging"
	categoryrepoport "github.com/Overland-East-Bay/stockroom/internal/ports/out/categoryrepo"
	idempotencyport "github.com/Overland-East-Bay/stockroom/internal/ports/out/idempotency"
	productrepoport "github.com/Overland-East-Bay/stockroom/internal/ports/out/productrepo"
)

func main() {
	cfg, err := config.LoadAPIConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}
	log, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid logging config: %v\n", err)
		os.Exit(1)
	}
	if err := run(cfg, log); err != nil {
		log.WithError(err).Fatal("api exited")
	}
}

func run(cfg config.APIConfig, log *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := platformclock.NewSystemClock()

	var (
		products   productrepoport.Repository
		categories categoryrepoport.Repository
		idemStore  idempotencyport.Store
	)
	switch cfg.StorageBackend {
	case config.StoragePostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pool.Close()
		if err := postgres.Migrate(ctx, pool); err != nil {
			return err
		}
		products = pgcatalog.NewProductRepo(pool)
		categories = pgcatalog.NewCategoryRepo(pool)
		idemStore = pgidempotency.NewStore(pool, cfg.IdempotencyTTL)
	default:
		store := memcatalog.NewStore()
		products = store.Products()
		categories = store.Categories()
		idemStore = memidempotency.NewStore(cfg.IdempotencyTTL, clk.Now)
	}

	svc := catalog.NewService(products, categories, clk)
	api := httpapi.NewServer(svc, idemStore, log)
	handler := httpapi.NewRouterWithOptions(api, httpapi.RouterOptions{
		AuthMiddleware: httpapi.NewDevAuthMiddleware(cfg.DevOwner),
		Log:            log,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Port, "storage": cfg.StorageBackend}).Info("api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
