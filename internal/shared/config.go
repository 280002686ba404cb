package shared

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// HotelRef pairs an internal hotel id with its PMS property id.
type HotelRef struct {
	HotelID       string
	PMSPropertyID string
}

type Config struct {
	AppEnv      string
	HTTPAddr    string
	MetricsAddr string
	MySQLDSN    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string

	PMSBase      string
	PMSToken     string
	PMSRPS       int
	PushInterval time.Duration

	WriteWorkers int
	SyncWorkers  int
	SyncHotels   []HotelRef

	ContextCacheTTL time.Duration
	RequestTimeout  time.Duration
	AIBridgeSecret  string
	CORSOrigins     []string
}

func Load() Config {
	atoi := func(k string, def int) int {
		if v := os.Getenv(k); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				return n
			}
			log.Warn().Str("key", k).Str("value", v).Msg("ignoring non-integer env value")
		}
		return def
	}
	c := Config{
		AppEnv:      env("APP_ENV", "prod"),
		HTTPAddr:    env("HTTP_ADDR", ":8080"),
		MetricsAddr: env("METRICS_ADDR", ":9100"),
		MySQLDSN:    env("MYSQL_DSN", "root:root@tcp(localhost:3306)/rates?parseTime=true&charset=utf8mb4,utf8&loc=UTC"),
		RedisAddr:   env("REDIS_ADDR", "localhost:6379"),
		RedisPass:   env("REDIS_PASSWORD", ""),
		RedisDB:     atoi("REDIS_DB", 0),

		PMSBase:      env("PMS_BASE_URL", "https://api.pms.example.com/v1"),
		PMSToken:     env("PMS_TOKEN", ""),
		PMSRPS:       atoi("PMS_RPS", 5),
		PushInterval: time.Duration(atoi("PUSH_INTERVAL_MS", 250)) * time.Millisecond,

		WriteWorkers: atoi("WRITE_WORKERS", 8),
		SyncWorkers:  atoi("SYNC_WORKERS", 4),
		SyncHotels:   ParseHotelRefs(env("SYNC_HOTELS", "")),

		ContextCacheTTL: time.Duration(atoi("CONTEXT_CACHE_TTL_SECONDS", 300)) * time.Second,
		RequestTimeout:  time.Duration(atoi("REQUEST_TIMEOUT_SECONDS", 60)) * time.Second,
		AIBridgeSecret:  env("AI_BRIDGE_SECRET", ""),
		CORSOrigins:     splitList(env("CORS_ORIGINS", "")),
	}
	if c.PMSToken == "" {
		log.Warn().Msg("PMS_TOKEN is empty")
	}
	if c.AIBridgeSecret == "" {
		log.Warn().Msg("AI_BRIDGE_SECRET is empty; AI bridge routes are disabled")
	}
	return c
}

// ParseHotelRefs parses "hotelID:pmsPropertyID" pairs separated by commas.
// Malformed entries are logged and skipped.
func ParseHotelRefs(s string) []HotelRef {
	var out []HotelRef
	for _, part := range splitList(s) {
		hotel, prop, ok := strings.Cut(part, ":")
		hotel, prop = strings.TrimSpace(hotel), strings.TrimSpace(prop)
		if !ok || hotel == "" || prop == "" {
			log.Warn().Str("entry", part).Msg("skipping malformed SYNC_HOTELS entry")
			continue
		}
		out = append(out, HotelRef{HotelID: hotel, PMSPropertyID: prop})
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func env(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
