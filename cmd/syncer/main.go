package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"

	"hotel_rates/internal/adapters/observability"
	"hotel_rates/internal/adapters/pms"
	redisad "hotel_rates/internal/adapters/redis"
	"hotel_rates/internal/app"
	"hotel_rates/internal/shared"
	mysqlrepo "hotel_rates/internal/storage/mysql"
)

// syncer refreshes each configured hotel's rate_id_map from its PMS catalog.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cfg := shared.Load()

	log.Logger = observability.NewLogger(cfg.AppEnv)

	log.Info().
		Str("base", cfg.PMSBase).
		Int("workers", cfg.SyncWorkers).
		Int("hotels", len(cfg.SyncHotels)).
		Msg("syncer starting")
	if len(cfg.SyncHotels) == 0 {
		log.Warn().Msg("SYNC_HOTELS is empty; nothing to do")
		return
	}

	db, err := sql.Open("mysql", cfg.MySQLDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("sql.Open failed")
	}
	if err := db.Ping(); err != nil {
		log.Fatal().Err(err).Msg("db.Ping failed")
	}
	log.Info().Msg("db ping ok")

	repo := mysqlrepo.New(db)
	client, err := pms.New(cfg.PMSBase, cfg.PMSToken, cfg.PMSRPS)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize PMS client")
	}
	cache := redisad.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	configs := app.NewConfigService(repo, client, cache)

	workers := cfg.SyncWorkers
	if workers <= 0 {
		workers = 1
	}
	sem := semaphore.NewWeighted(int64(workers))
	var (
		wg     sync.WaitGroup
		failed atomic.Int32
	)

	for _, ref := range cfg.SyncHotels {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Warn().Err(err).Msg("sync interrupted")
			break
		}

		wg.Add(1)
		go func(ref shared.HotelRef) {
			defer wg.Done()
			defer sem.Release(1)

			m, err := configs.SyncRatePlans(ctx, ref.HotelID, ref.PMSPropertyID)
			if err != nil {
				failed.Add(1)
				log.Warn().Str("hotel_id", ref.HotelID).Str("pms_property_id", ref.PMSPropertyID).Err(err).Msg("rate plan sync failed")
				return
			}
			log.Info().Str("hotel_id", ref.HotelID).Int("mapped", len(m)).Msg("rate plan sync ok")
		}(ref)
	}

	wg.Wait()
	_ = cache.Close()
	_ = db.Close()
	n := failed.Load()
	log.Info().Int32("failed", n).Msg("sync completed")
	if n > 0 {
		os.Exit(1)
	}
}
