package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/rs/zerolog/log"

	amqpad "luxury_villas/internal/adapters/amqp"
	server "luxury_villas/internal/adapters/http_server"
	"luxury_villas/internal/adapters/observability"
	redisad "luxury_villas/internal/adapters/redis"
	"luxury_villas/internal/adapters/sheets"
	"luxury_villas/internal/app"
	"luxury_villas/internal/domain"
	"luxury_villas/internal/shared"
	boltstore "luxury_villas/internal/storage/bolt"
)

func main() {
	cfg := shared.Load()

	// set global logger (console in dev, JSON otherwise)
	log.Logger = observability.NewLogger(cfg.AppEnv, "api")

	reg := observability.InitRegistry()
	observability.Serve(cfg.MetricsAddr, reg)

	// cache tier
	cache, closeCache := openCache(cfg)
	defer closeCache()
	coll := app.NewCollections(cache)

	// remote tier (optional)
	var sheet domain.SheetClient
	if cfg.SheetsURL != "" {
		c, err := sheets.New(cfg.SheetsURL, cfg.RemoteRPS)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize sheet client")
		}
		sheet = c
	}

	var events domain.EventPublisher
	if cfg.AMQPURL != "" {
		p, err := amqpad.NewPublisher(cfg.AMQPURL)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize event publisher")
		}
		defer p.Close()
		events = p
	}

	// services
	store := app.NewStore()
	listings := app.NewListingService(sheet, coll, store, cfg.RemoteTimeout, shared.DefaultListings)
	accounts, err := app.NewAccountService(sheet, coll, cfg.AdminEmail, cfg.AdminPassword, cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize accounts")
	}
	reservations := app.NewReservationService(sheet, listings, accounts, coll, events)

	ctx := context.Background()
	if err := accounts.EnsureAdmin(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to seed admin account")
	}
	res := listings.List(ctx)
	log.Info().Str("served_by", string(res.ServedBy)).Int("count", len(res.Collection)).Bool("ok", res.OK).Msg("initial listings resolved")

	// http
	srv := server.New(15 * time.Second)
	srv.Mount("/metrics", observability.MetricsHandler(reg))
	srv.MountHandlers(&server.Handlers{
		Listings:     listings,
		Accounts:     accounts,
		Reservations: reservations,
		Sessions:     app.NewSessions(cfg.SessionSecret),
	})
	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: srv.Mux(), ReadHeaderTimeout: 5 * time.Second}

	g := &run.Group{}
	g.Add(func() error {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("API listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("http shutdown failed")
		}
	})
	g.Add(run.SignalHandler(context.Background(), syscall.SIGINT, syscall.SIGTERM))

	err = g.Run()
	// let in-flight reservation events go out before the publisher closes
	reservations.Wait()

	var sig run.SignalError
	switch {
	case errors.As(err, &sig):
		log.Info().Str("signal", sig.Signal.String()).Msg("shutting down")
	case err != nil:
		log.Error().Err(err).Msg("api stopped")
		closeCache()
		os.Exit(1)
	}
}

// openCache picks the persistent cache backend from CACHE_BACKEND.
func openCache(cfg shared.Config) (domain.Cache, func()) {
	switch cfg.CacheBackend {
	case "redis":
		c := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := c.Ping(ctx); err != nil {
			log.Fatal().Err(err).Str("addr", cfg.RedisAddr).Msg("redis ping failed")
		}
		log.Info().Str("addr", cfg.RedisAddr).Msg("cache: redis")
		return c, func() { _ = c.Close() }
	case "bolt", "":
		c, err := boltstore.New(cfg.BoltPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.BoltPath).Msg("bolt open failed")
		}
		log.Info().Str("path", cfg.BoltPath).Msg("cache: bolt")
		return c, func() { _ = c.Close() }
	}
	log.Fatal().Str("backend", cfg.CacheBackend).Msg("unknown CACHE_BACKEND (want bolt or redis)")
	return nil, nil
}
