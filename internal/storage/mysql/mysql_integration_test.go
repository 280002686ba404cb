//go:build integration || !unit

package mysql_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	"hotel_rates/internal/domain"
	mysqlrepo "hotel_rates/internal/storage/mysql"
)

// ---------- small helpers ----------
func pfloat(f float64) *float64 { return &f }

func mustEnv(t *testing.T, k string) string {
	t.Helper()
	v := os.Getenv(k)
	if v == "" {
		t.Fatalf("%s not set; export it (e.g. MIGRATIONS_DIR=/path/to/sql)", k)
	}
	return v
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := mustEnv(t, "MIGRATIONS_DIR")

	st, err := os.Stat(dir)
	if err != nil || !st.IsDir() {
		t.Fatalf("MIGRATIONS_DIR=%s is not a directory or missing", dir)
	}

	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)

	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

// ---------- the tests ----------
func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Fatalf("dockertest: %v", err)
	}

	runOpts := &dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env: []string{
			"MYSQL_ROOT_PASSWORD=root",
			"MYSQL_DATABASE=rates",
		},
	}
	resource, err := pool.RunWithOptions(runOpts, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Fatalf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	hostPort := resource.GetPort("3306/tcp")
	dsn := fmt.Sprintf("root:%s@tcp(127.0.0.1:%s)/%s?parseTime=true&multiStatements=true&charset=utf8mb4,utf8&loc=UTC",
		"root", hostPort, "rates")

	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	applyMigrations(t, db)
	return db
}

func TestRepo_MySQL(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	t.Run("config round trip", func(t *testing.T) {
		if _, err := repo.GetConfig(ctx, "nope"); !errors.Is(err, domain.ErrConfigMissing) {
			t.Fatalf("want ErrConfigMissing, got %v", err)
		}

		cfg := domain.HotelPricingConfig{
			HotelID:    "h1",
			Multiplier: 1.25,
			Tax:        domain.Tax{Type: domain.TaxExclusive, Percent: 10},
			Campaigns: []domain.Campaign{
				{Slug: "early-deal", Discount: 15, StartDate: "2025-01-01", EndDate: "2025-01-31", Active: true},
			},
			Mobile:           domain.Discount{Active: true, Percent: 5},
			RateFreezePeriod: 2,
			LastMinuteFloor:  domain.LastMinuteFloor{Enabled: true, Days: 3, Rate: 80, DaysOfWeek: []string{"fri", "sat"}},
			DailyMaxRates:    map[string]float64{"2025-01-10": 300},
			BaseRoomTypeID:   "dbl",
			RoomDifferentials: []domain.RoomDifferentialRule{
				{RoomTypeID: "ste", Operator: domain.DiffPlus, Value: 20},
			},
			RateIDMap: map[string]string{"dbl": "rp-dbl"},
		}
		cfg.MonthlyMinRates[0] = 90
		if err := repo.SaveConfig(ctx, cfg); err != nil {
			t.Fatalf("SaveConfig: %v", err)
		}

		got, err := repo.GetConfig(ctx, "h1")
		if err != nil {
			t.Fatalf("GetConfig: %v", err)
		}
		if got.Multiplier != 1.25 || got.Tax.Type != domain.TaxExclusive || got.MonthlyMinRates[0] != 90 {
			t.Fatalf("unexpected config: %+v", got)
		}
		if len(got.Campaigns) != 1 || got.Campaigns[0].Slug != "early-deal" || !got.Campaigns[0].Active {
			t.Fatalf("campaigns: %+v", got.Campaigns)
		}
		if v, ok := got.DailyMax("2025-01-10"); !ok || v != 300 {
			t.Fatalf("daily max: %v %v", v, ok)
		}
		if len(got.RoomDifferentials) != 1 || got.RoomDifferentials[0].Value != 20 {
			t.Fatalf("differentials: %+v", got.RoomDifferentials)
		}

		err = repo.UpdateConfig(ctx, "h1", func(c *domain.HotelPricingConfig) error {
			c.RateIDMap = map[string]string{"dbl": "rp-dbl-2", "ste": "rp-ste"}
			return nil
		})
		if err != nil {
			t.Fatalf("UpdateConfig: %v", err)
		}
		got, _ = repo.GetConfig(ctx, "h1")
		if got.RateIDMap["dbl"] != "rp-dbl-2" || got.RateIDMap["ste"] != "rp-ste" {
			t.Fatalf("rate id map: %+v", got.RateIDMap)
		}
		if got.Multiplier != 1.25 {
			t.Fatalf("update clobbered multiplier: %v", got.Multiplier)
		}
	})

	t.Run("calendar and history", func(t *testing.T) {
		if _, err := repo.GetCalendarEntry(ctx, "h1", "dbl", "2025-01-10"); !errors.Is(err, domain.ErrNotFound) {
			t.Fatalf("want ErrNotFound, got %v", err)
		}
		t0 := time.Date(2025, 1, 4, 10, 0, 0, 0, time.UTC)
		for i, rate := range []float64{120, 135} {
			at := t0.Add(time.Duration(i) * time.Minute)
			if err := repo.UpsertCalendarEntry(ctx, domain.CalendarEntry{
				HotelID: "h1", RoomTypeID: "dbl", StayDate: "2025-01-10", Rate: rate, Source: domain.SourceManual, LastUpdatedAt: at,
			}); err != nil {
				t.Fatalf("UpsertCalendarEntry: %v", err)
			}
			var old *float64
			if i > 0 {
				old = pfloat(120)
			}
			if err := repo.InsertPriceHistory(ctx, domain.PriceHistoryRecord{
				HotelID: "h1", RoomTypeID: "dbl", StayDate: "2025-01-10", OldPrice: old, NewPrice: rate, Source: domain.SourceManual, CreatedAt: at,
			}); err != nil {
				t.Fatalf("InsertPriceHistory: %v", err)
			}
		}

		e, err := repo.GetCalendarEntry(ctx, "h1", "dbl", "2025-01-10")
		if err != nil || e.Rate != 135 || e.Source != domain.SourceManual {
			t.Fatalf("calendar entry: %+v %v", e, err)
		}
		list, err := repo.ListCalendar(ctx, "h1", "", "2025-01-01", "")
		if err != nil || len(list) != 1 {
			t.Fatalf("ListCalendar: %+v %v", list, err)
		}

		hist, err := repo.LatestPriceHistory(ctx, "h1", "2025-01-01")
		if err != nil {
			t.Fatalf("LatestPriceHistory: %v", err)
		}
		if len(hist) != 1 || hist[0].NewPrice != 135 || hist[0].OldPrice == nil || *hist[0].OldPrice != 120 {
			t.Fatalf("latest history: %+v", hist)
		}
	})

	t.Run("predictions", func(t *testing.T) {
		ps := []domain.RatePrediction{
			{HotelID: "h1", RoomTypeID: "dbl", StayDate: "2025-01-10", SuggestedRate: 140, Confidence: 0.8, ModelVersion: "v1"},
			{HotelID: "h1", RoomTypeID: "dbl", StayDate: "2025-01-11", SuggestedRate: 150, Confidence: 0.7, ModelVersion: "v1"},
		}
		if err := repo.UpsertPredictions(ctx, ps); err != nil {
			t.Fatalf("UpsertPredictions: %v", err)
		}
		if err := repo.MarkPredictionsApplied(ctx, "h1", "dbl", []string{"2025-01-10"}); err != nil {
			t.Fatalf("MarkPredictionsApplied: %v", err)
		}
		pending, err := repo.ListPendingPredictions(ctx, "h1", "dbl", "2025-01-01", "2025-01-31")
		if err != nil || len(pending) != 1 || pending[0].StayDate != "2025-01-11" {
			t.Fatalf("pending: %+v %v", pending, err)
		}

		// a refreshed suggestion is pending again
		if err := repo.UpsertPredictions(ctx, ps[:1]); err != nil {
			t.Fatalf("UpsertPredictions: %v", err)
		}
		pending, _ = repo.ListPendingPredictions(ctx, "h1", "dbl", "2025-01-01", "2025-01-31")
		if len(pending) != 2 {
			t.Fatalf("want 2 pending after refresh, got %d", len(pending))
		}
	})
}
