package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ratemate/ratemate/internal/cache"
	"github.com/ratemate/ratemate/internal/config"
	"github.com/ratemate/ratemate/internal/domain"
	httpserver "github.com/ratemate/ratemate/internal/http"
	"github.com/ratemate/ratemate/internal/match"
	"github.com/ratemate/ratemate/internal/payment"
	"github.com/ratemate/ratemate/internal/profile"
	"github.com/ratemate/ratemate/internal/rating"
	"github.com/ratemate/ratemate/internal/repository"
	"github.com/ratemate/ratemate/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := log.New(os.Stdout, "[ratemate] ", log.LstdFlags|log.Lshortfile)

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	storeOpts := store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	}

	st, err := store.New(dbCtx, cfg.DBURL, storeOpts)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer st.Close()

	repo := repository.New(st)

	profiles := profile.New(
		repo.Profiles,
		repo.Ratings,
		cache.New[int64, domain.Profile](time.Duration(cfg.EntityTTLSecs)*time.Second),
		cache.New[string, []domain.ProfileSummary](time.Duration(cfg.BulkTTLSecs)*time.Second),
		cache.New[string, int64](time.Duration(cfg.BulkTTLSecs)*time.Second),
		logger,
	)
	selector := match.New(repo.Profiles, logger)
	aggregator := rating.New(repo.Profiles, repo.Ratings, profiles, logger)

	gateway, err := payment.NewHTTPClient(cfg.GatewayURL, cfg.GatewayAPIKey, time.Duration(cfg.GatewayTimeoutSecs)*time.Second, logger)
	if err != nil {
		log.Fatalf("init payment gateway client: %v", err)
	}
	poller := payment.NewPoller(gateway, time.Duration(cfg.IntentTTLSecs)*time.Second, cfg.VIPPrice, logger)

	server := httpserver.New(cfg, st, profiles, selector, aggregator, poller, logger)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			log.Printf("server error: %v", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("graceful shutdown error: %v", err)
	}
}
