package main

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"luxury_villas/internal/adapters/observability"
	redisad "luxury_villas/internal/adapters/redis"
	"luxury_villas/internal/adapters/sheets"
	"luxury_villas/internal/app"
	"luxury_villas/internal/domain"
	"luxury_villas/internal/shared"
	boltstore "luxury_villas/internal/storage/bolt"
)

// warmer resolves every record kind once so the persistent cache holds the
// latest remote state before the site starts serving.
func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv, "warmer")
	log.Info().
		Str("sheets", cfg.SheetsURL).
		Str("cache", cfg.CacheBackend).
		Int("workers", cfg.Workers).
		Msg("warmer starting")

	var cache domain.Cache
	switch cfg.CacheBackend {
	case "redis":
		c := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
		defer c.Close()
		if err := c.Ping(ctx); err != nil {
			log.Fatal().Err(err).Msg("redis ping failed")
		}
		cache = c
	default:
		c, err := boltstore.New(cfg.BoltPath)
		if err != nil {
			log.Fatal().Err(err).Msg("bolt open failed")
		}
		defer c.Close()
		cache = c
	}
	coll := app.NewCollections(cache)

	var sheet domain.SheetClient
	if cfg.SheetsURL != "" {
		c, err := sheets.New(cfg.SheetsURL, cfg.RemoteRPS)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize sheet client")
		}
		sheet = c
	}

	listings := app.NewListingService(sheet, coll, app.NewStore(), cfg.RemoteTimeout, shared.DefaultListings)
	accounts, err := app.NewAccountService(sheet, coll, cfg.AdminEmail, cfg.AdminPassword, cfg.BcryptCost)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize accounts")
	}
	reservations := app.NewReservationService(sheet, listings, accounts, coll, nil)

	jobs := map[domain.Kind]func(context.Context) (app.Tier, int){
		domain.KindListings: func(ctx context.Context) (app.Tier, int) {
			r := listings.List(ctx)
			return r.ServedBy, len(r.Collection)
		},
		domain.KindAccounts: func(ctx context.Context) (app.Tier, int) {
			if err := accounts.EnsureAdmin(ctx); err != nil {
				log.Warn().Err(err).Msg("admin seed failed")
			}
			r := accounts.Accounts(ctx)
			return r.ServedBy, len(r.Collection)
		},
		domain.KindReservations: func(ctx context.Context) (app.Tier, int) {
			r := reservations.All(ctx)
			return r.ServedBy, len(r.Collection)
		},
	}

	sem := semaphore.NewWeighted(int64(max(cfg.Workers, 1)))
	var wg sync.WaitGroup

	for kind, job := range jobs {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Fatal().Err(err).Msg("semaphore acquire failed")
		}

		wg.Add(1)
		go func(kind domain.Kind, job func(context.Context) (app.Tier, int)) {
			defer wg.Done()
			defer sem.Release(1)

			tier, n := job(ctx)
			if tier == app.TierNone {
				log.Warn().Str("kind", string(kind)).Msg("warm failed: every tier came back empty")
				return
			}
			log.Info().Str("kind", string(kind)).Str("served_by", string(tier)).Int("count", n).Msg("warm ok")
		}(kind, job)
	}

	wg.Wait()
	log.Info().Msg("warming completed")
}
