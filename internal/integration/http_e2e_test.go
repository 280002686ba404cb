//go:build integration || !unit

package integration

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"

	server "hotel_rates/internal/adapters/http_server"
	"hotel_rates/internal/adapters/pms"
	redisad "hotel_rates/internal/adapters/redis"
	"hotel_rates/internal/app"
	"hotel_rates/internal/domain"
	mysqlrepo "hotel_rates/internal/storage/mysql"
)

// ---------- helpers ----------
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

// ---------- PMS stub ----------
type pmsStub struct {
	mu    sync.Mutex
	posts []map[string]any
}

func (p *pmsStub) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/properties/P1/room-types", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"roomTypeID":"dbl","roomTypeName":"Double"},{"roomTypeID":"ste","roomTypeName":"Suite"}]}`))
	})
	mux.HandleFunc("/properties/P1/rate-plans", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[
			{"rateID":"rp-net","ratePlanName":"Net Agent","roomTypeID":"dbl","isDerived":false},
			{"rateID":"rp-dbl","ratePlanName":"Base Rate","roomTypeID":"dbl","isDerived":false},
			{"rateID":"rp-ste-d","ratePlanName":"Suite Derived","roomTypeID":"ste","isDerived":true},
			{"rateID":"rp-ste","ratePlanName":"Standard Suite","roomTypeID":"ste","isDerived":false}
		]}`))
	})
	mux.HandleFunc("/properties/P1/rates", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			p.mu.Lock()
			p.posts = append(p.posts, body)
			n := len(p.posts)
			p.mu.Unlock()
			_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "jobReferenceID": fmt.Sprintf("job-%d", n)})
			return
		}
		start := r.URL.Query().Get("start")
		_ = json.NewEncoder(w).Encode(map[string]any{"data": []map[string]any{{"date": start, "rate": 100}}})
	})
	return mux
}

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

func call(t *testing.T, method, url string, body any, hdr ...string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	res, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

// ---------- the test ----------
func TestHTTP_EndToEnd_OverrideAndPush(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	stub := &pmsStub{}
	pmsSrv := httptest.NewServer(stub.handler())
	defer pmsSrv.Close()
	client, err := pms.New(pmsSrv.URL, "token", 100)
	if err != nil {
		t.Fatal(err)
	}

	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0)
	defer cache.Close()

	srv := server.New(server.Options{})
	srv.MountHandlers(&server.Handlers{
		Rates:    app.NewRateService(repo, client, cache, 4),
		Config:   app.NewConfigService(repo, client, cache),
		Context:  app.NewContextService(repo, cache, 0),
		Pusher:   app.NewPusher(client, app.NewIntervalPacer(0)),
		AISecret: "s3cret",
	})
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()
	base := ts.URL + "/v1/hotels/h1"

	// config, then catalog sync
	res := call(t, http.MethodPut, base+"/config", map[string]any{
		"multiplier":        1.3,
		"base_room_type_id": "dbl",
		"room_differentials": []map[string]any{
			{"room_type_id": "ste", "operator": "+", "value": 20},
		},
	})
	if res.StatusCode != http.StatusNoContent {
		t.Fatalf("PUT config: %d", res.StatusCode)
	}
	res = call(t, http.MethodPost, base+"/rate-plans/sync", map[string]any{"pms_property_id": "P1"})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("sync: %d", res.StatusCode)
	}
	cfg, err := repo.GetConfig(ctx, "h1")
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if cfg.RateIDMap["dbl"] != "rp-dbl" || cfg.RateIDMap["ste"] != "rp-ste" {
		t.Fatalf("rate id map: %+v", cfg.RateIDMap)
	}

	// override with push
	res = call(t, http.MethodPost, base+"/overrides", map[string]any{
		"pms_property_id": "P1",
		"push":            true,
		"overrides": []map[string]any{
			{"date": "2030-01-10", "rate": 150},
			{"date": "2030-01-11", "rate": "abc"},
		},
	})
	if res.StatusCode != http.StatusOK {
		t.Fatalf("overrides: %d", res.StatusCode)
	}
	var out struct {
		Batch domain.BatchReport `json:"batch"`
		Push  *domain.PushReport `json:"push"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Batch.Count(domain.OutcomeApplied) != 1 || out.Batch.Count(domain.OutcomeInvalid) != 1 {
		t.Fatalf("batch: %+v", out.Batch.Items)
	}
	if out.Push == nil || out.Push.Count(domain.PushOK) != 2 {
		t.Fatalf("push: %+v", out.Push)
	}
	stub.mu.Lock()
	posts := append([]map[string]any(nil), stub.posts...)
	stub.mu.Unlock()
	sort.Slice(posts, func(i, j int) bool { return posts[i]["ratePlanId"].(string) < posts[j]["ratePlanId"].(string) })
	if len(posts) != 2 || posts[0]["rate"] != 150.0 || posts[1]["rate"] != 180.0 {
		t.Fatalf("PMS posts: %+v", posts)
	}

	hist, err := repo.LatestPriceHistory(ctx, "h1", "2030-01-01")
	if err != nil || len(hist) != 1 || hist[0].NewPrice != 150 || hist[0].OldPrice != nil {
		t.Fatalf("history: %+v %v", hist, err)
	}

	// the AI bridge sees the new calendar row
	res = call(t, http.MethodGet, ts.URL+"/v1/ai/hotels/h1/context", nil, "X-AI-Bridge-Secret", "s3cret")
	if res.StatusCode != http.StatusOK {
		t.Fatalf("context: %d", res.StatusCode)
	}
	var hc domain.HotelContext
	if err := json.NewDecoder(res.Body).Decode(&hc); err != nil {
		t.Fatalf("decode context: %v", err)
	}
	if len(hc.Calendar) != 1 || hc.Calendar[0].Rate != 150 || hc.Calendar[0].Source != domain.SourceManual {
		t.Fatalf("context calendar: %+v", hc.Calendar)
	}
}
