// README: Bench cases for the fee API; covers connectivity, validation, surge zones, consistency and throughput.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const (
	statusPass = "PASS"
	statusFail = "FAIL"
	statusSkip = "SKIP"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
}

type Result struct {
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
			defer db.Close()
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
		defer r.redis.Close()
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))
	for _, tc := range tests {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}
	return results
}

var taipeiQuote = map[string]any{
	"restaurantId":  "bench-restaurant",
	"pickup":        map[string]any{"lat": 25.0330, "lng": 121.5654},
	"drop":          map[string]any{"lat": 25.0478, "lng": 121.5318},
	"orderSubtotal": 120,
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: checkPostgres},
		{Name: "Env: Redis connect", Run: checkRedis},
		{Name: "Migration: tables exist", Run: checkTables},
		expectStatus("API: health", http.MethodGet, "/health", nil, "", http.StatusOK),
		expectStatus("Fee: valid quote", http.MethodPost, "/delivery/fee", taipeiQuote, "", http.StatusOK),
		expectStatus("Fee: missing drop -> 400", http.MethodPost, "/delivery/fee", map[string]any{
			"pickup": map[string]any{"lat": 25.03, "lng": 121.56},
		}, "", http.StatusBadRequest),
		expectStatus("Fee: out-of-range latitude -> 400", http.MethodPost, "/delivery/fee", map[string]any{
			"pickup": map[string]any{"lat": 123.0, "lng": 121.56},
			"drop":   map[string]any{"lat": 25.04, "lng": 121.57},
		}, "", http.StatusBadRequest),
		expectStatus("Fee: negative subtotal -> 400", http.MethodPost, "/delivery/fee", map[string]any{
			"pickup":        map[string]any{"lat": 25.03, "lng": 121.56},
			"drop":          map[string]any{"lat": 25.04, "lng": 121.57},
			"orderSubtotal": -1,
		}, "", http.StatusBadRequest),
		expectStatus("Admin: zones without token -> 401", http.MethodGet, "/admin/zones", nil, "", http.StatusUnauthorized),
		{Name: "Zone: surge applies inside polygon", Run: checkZoneSurge},
		{Name: "Consistency: concurrent quotes agree", Run: checkConsistentQuotes},
		{Name: "Perf: fee quote throughput", Run: feeThroughput},
	}
}

func checkPostgres(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func checkRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusFail, Note: "redis not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func checkTables(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	for _, t := range []string{"goose_db_version", "surge_zones", "delivery_settings"} {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
			t,
		).Scan(&exists)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if !exists {
			return Result{Status: statusFail, Note: "missing table: " + t}
		}
	}
	return Result{Status: statusPass}
}

func expectStatus(name, method, path string, body any, token string, want int) TestCase {
	return TestCase{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			start := time.Now()
			status, _, err := r.do(ctx, method, path, body, token)
			latency := time.Since(start)
			if err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			if status != want {
				return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d want=%d", status, want)}
			}
			return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("status=%d", status)}
		},
	}
}

func checkZoneSurge(ctx context.Context, r *Runner) Result {
	if r.cfg.AdminToken == "" {
		return Result{Status: statusSkip, Note: "admin-token not set"}
	}
	zone := map[string]any{
		"name":       "bench surge",
		"category":   "bench",
		"multiplier": 1.8,
		"polygon": [][]float64{
			{121.55, 25.02}, {121.58, 25.02}, {121.58, 25.04}, {121.55, 25.04},
		},
	}
	status, raw, err := r.do(ctx, http.MethodPost, "/admin/zones", zone, r.cfg.AdminToken)
	if err != nil || status != http.StatusCreated {
		return Result{Status: statusFail, Note: fmt.Sprintf("create zone: status=%d err=%v", status, err)}
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	defer func() {
		_, _, _ = r.do(context.Background(), http.MethodDelete, "/admin/zones/"+created.ID, nil, r.cfg.AdminToken)
	}()

	start := time.Now()
	quote, err := r.quote(ctx)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	latency := time.Since(start)
	if quote.AppliedZoneID == nil {
		return Result{Status: statusFail, Latency: latency, Note: "no zone applied"}
	}
	return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("source=%s surge=%.2f", quote.SurgeSource, quote.AppliedMultiplier)}
}

type quoteResult struct {
	FinalCharge         float64 `json:"finalCharge"`
	AppliedMultiplier   float64 `json:"appliedMultiplier"`
	SurgeSource         string  `json:"surgeSource"`
	AppliedZoneID       *string `json:"appliedZoneId"`
	ZoneSnapshotVersion int64   `json:"zoneSnapshotVersion"`
	SettingsVersion     int64   `json:"settingsVersion"`
}

func (r *Runner) quote(ctx context.Context) (quoteResult, error) {
	body := map[string]any{"requestTime": time.Now().UTC().Format(time.RFC3339)}
	for k, v := range taipeiQuote {
		body[k] = v
	}
	var out quoteResult
	status, raw, err := r.do(ctx, http.MethodPost, "/delivery/fee", body, "")
	if err != nil {
		return out, err
	}
	if status != http.StatusOK {
		return out, fmt.Errorf("quote status=%d", status)
	}
	err = json.Unmarshal(raw, &out)
	return out, err
}

// Quotes answered from the same snapshot pair must agree on the total.
func checkConsistentQuotes(ctx context.Context, r *Runner) Result {
	type key struct{ zones, settings int64 }
	var (
		mu     sync.Mutex
		totals = map[key]float64{}
		bad    string
		wg     sync.WaitGroup
	)
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			q, err := r.quote(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				bad = err.Error()
				return
			}
			k := key{q.ZoneSnapshotVersion, q.SettingsVersion}
			if prev, ok := totals[k]; ok && prev != q.FinalCharge {
				bad = fmt.Sprintf("versions %v returned %.2f and %.2f", k, prev, q.FinalCharge)
			}
			totals[k] = q.FinalCharge
		}()
	}
	wg.Wait()
	if bad != "" {
		return Result{Status: statusFail, Note: bad}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("snapshots=%d", len(totals))}
}

func feeThroughput(ctx context.Context, r *Runner) Result {
	end := time.Now().Add(r.cfg.Duration)
	var count, errCount atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				status, _, err := r.do(ctx, http.MethodPost, "/delivery/fee", taipeiQuote, "")
				if err != nil || status != http.StatusOK {
					errCount.Add(1)
					continue
				}
				count.Add(1)
			}
		}()
	}
	wg.Wait()

	if count.Load() == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	rps := float64(count.Load()) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Note: fmt.Sprintf("rps=%.1f errors=%d", rps, errCount.Load())}
}

func (r *Runner) do(ctx context.Context, method, path string, body any, token string) (int, []byte, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, nil, err
		}
		reader = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	return resp.StatusCode, raw, err
}
