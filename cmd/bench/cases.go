// README: Runner and check cases: environment, schema, HTTP surface, event stream, inventory race and load.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"bloodlink/internal/events"
	"bloodlink/internal/infra"
	"bloodlink/internal/types"
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

type Case struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{cfg: cfg, httpc: &http.Client{Timeout: 10 * time.Second}}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := infra.NewDB(ctx, r.cfg.DSN); err == nil {
			r.db = db
			defer db.Close()
		} else {
			fmt.Printf("db: %v\n", err)
		}
	}
	if r.cfg.RedisAddr != "" {
		if rdb, err := infra.NewRedis(ctx, r.cfg.RedisAddr); err == nil {
			r.redis = rdb
			defer rdb.Close()
		} else {
			fmt.Printf("redis: %v\n", err)
		}
	}

	cases := r.cases()
	results := make([]Result, 0, len(cases))
	for _, tc := range cases {
		res := tc.Run(ctx, r)
		results = append(results, res)
		fmt.Printf("%-5s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency.Round(time.Microsecond))
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}
	return results
}

func (r *Runner) cases() []Case {
	base := r.cfg.BaseURL
	unknown := string(types.NewID())
	return []Case{
		{Name: "Env: Postgres connect", Run: checkDB},
		{Name: "Migration: apply", Run: applyMigrations},
		{Name: "Migration: tables exist", Run: checkTables},
		{Name: "Env: Redis relay round trip", Run: checkRelay},

		httpCase("API: health", http.MethodGet, base+"/health", "", nil, http.StatusOK),
		httpCase("API: metrics", http.MethodGet, base+"/metrics", "", nil, http.StatusOK),

		httpCase("Inventory: public list of unknown hospital", http.MethodGet, base+"/api/inventory/"+unknown, "", nil, http.StatusOK),
		httpCase("Inventory: malformed hospital id -> 400", http.MethodGet, base+"/api/inventory/not-a-uuid", "", nil, http.StatusBadRequest),
		httpCase("Inventory: replace without token -> 401", http.MethodPut, base+"/api/inventory/"+unknown, "", []any{}, http.StatusUnauthorized),
		httpCase("Inventory: expiry is public", http.MethodGet, base+"/api/inventory/"+unknown+"/expiry", "", nil, http.StatusOK),

		httpCase("Requests: list", http.MethodGet, base+"/api/requests", "", nil, http.StatusOK),
		httpCase("Requests: bad status filter -> 400", http.MethodGet, base+"/api/requests?status=bogus", "", nil, http.StatusBadRequest),
		httpCase("Requests: unknown id -> 404", http.MethodGet, base+"/api/requests/"+unknown, "", nil, http.StatusNotFound),
		httpCase("Requests: create without token -> 401", http.MethodPost, base+"/api/requests", "", map[string]any{}, http.StatusUnauthorized),
		httpCase("Matches: unknown request lists nothing", http.MethodGet, base+"/api/requests/"+unknown+"/matches", "", nil, http.StatusOK),
		httpCase("Donors: nearby without token -> 401", http.MethodGet, base+"/api/donors/nearby?lat=1&lng=1", "", nil, http.StatusUnauthorized),

		{Name: "Stream: connected acknowledgement", Run: checkStream},
		{Name: "Concurrency: inventory adjust loses no update", Run: raceAdjust},
		{Name: "Perf: request list throughput", Run: func(ctx context.Context, r *Runner) Result {
			return perfLoad(ctx, r, base+"/api/requests")
		}},
	}
}

func checkDB(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "db not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	start := time.Now()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass, Latency: time.Since(start)}
}

func applyMigrations(ctx context.Context, r *Runner) Result {
	if !r.cfg.Migrate {
		return Result{Status: statusSkip, Note: "migrate=false"}
	}
	if r.db == nil {
		return Result{Status: statusFail, Note: "db not configured"}
	}
	if err := infra.ApplyMigrations(ctx, r.db, r.cfg.Migrations); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	return Result{Status: statusPass}
}

func checkTables(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: statusSkip, Note: "db not configured"}
	}
	tables, err := extractTables(r.cfg.Migrations)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for _, t := range tables {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = $1)",
			t,
		).Scan(&exists)
		if err != nil {
			return Result{Status: statusFail, Note: err.Error()}
		}
		if !exists {
			return Result{Status: statusFail, Note: "missing table: " + t}
		}
	}
	return Result{Status: statusPass, Note: fmt.Sprintf("%d tables", len(tables))}
}

// checkRelay publishes a probe frame straight to the relay channel and waits
// for the API to forward it to an open stream.
func checkRelay(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: statusSkip, Note: "redis not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	frames, err := openStream(ctx, r)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	<-frames // connected

	frame, err := events.EncodeFrame("bench.probe", map[string]int64{"ts": time.Now().UnixMilli()})
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	start := time.Now()
	if err := r.redis.Publish(ctx, events.DefaultChannel, frame).Err(); err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	for {
		select {
		case f, ok := <-frames:
			if !ok {
				return Result{Status: statusFail, Note: "stream closed"}
			}
			if strings.Contains(f, `"bench.probe"`) {
				return Result{Status: statusPass, Latency: time.Since(start)}
			}
		case <-ctx.Done():
			return Result{Status: statusFail, Note: "probe not relayed"}
		}
	}
}

func checkStream(ctx context.Context, r *Runner) Result {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	start := time.Now()
	frames, err := openStream(ctx, r)
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	select {
	case f := <-frames:
		if !strings.Contains(f, `"type":"connected"`) {
			return Result{Status: statusFail, Note: "first frame: " + f}
		}
		return Result{Status: statusPass, Latency: time.Since(start)}
	case <-ctx.Done():
		return Result{Status: statusFail, Note: "no connected frame"}
	}
}

// openStream yields complete SSE frames until ctx ends.
func openStream(ctx context.Context, r *Runner) (<-chan string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.BaseURL+"/api/requests/stream", nil)
	if err != nil {
		return nil, err
	}
	// The shared client's timeout would cut the stream.
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("status=%d", resp.StatusCode)
	}
	out := make(chan string, 16)
	go func() {
		defer close(out)
		defer resp.Body.Close()
		rd := bufio.NewReader(resp.Body)
		var sb strings.Builder
		for {
			line, err := rd.ReadString('\n')
			if err != nil {
				return
			}
			if line != "\n" {
				sb.WriteString(line)
				continue
			}
			select {
			case out <- sb.String():
			case <-ctx.Done():
				return
			}
			sb.Reset()
		}
	}()
	return out, nil
}

// raceAdjust fires Concurrency +1 adjustments at one line and checks the
// final count, then gives the units back.
func raceAdjust(ctx context.Context, r *Runner) Result {
	if r.cfg.Token == "" || r.cfg.HospitalID == "" {
		return Result{Status: statusSkip, Note: "token/hospital not configured"}
	}
	itemURL := r.cfg.BaseURL + "/api/inventory/" + r.cfg.HospitalID + "/item"
	adjust := func(delta int) (int, error) {
		return r.do(ctx, http.MethodPatch, itemURL, r.cfg.Token,
			map[string]any{"bloodGroup": "O", "rh": "-", "deltaUnits": delta})
	}
	before, err := r.unitsOf(ctx, "O", "-")
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}

	var wg sync.WaitGroup
	errs := make(chan error, r.cfg.Concurrency)
	start := time.Now()
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			status, err := adjust(1)
			if err == nil && status != http.StatusOK {
				err = fmt.Errorf("status=%d", status)
			}
			if err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	latency := time.Since(start)
	failed := 0
	for range errs {
		failed++
	}

	after, err := r.unitsOf(ctx, "O", "-")
	if err != nil {
		return Result{Status: statusFail, Note: err.Error()}
	}
	if _, err := adjust(-(after - before)); err != nil {
		return Result{Status: statusFail, Note: "restore: " + err.Error()}
	}
	want := before + r.cfg.Concurrency - failed
	if after != want {
		return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("units=%d want=%d", after, want)}
	}
	return Result{Status: statusPass, Latency: latency, Note: fmt.Sprintf("calls=%d rejected=%d", r.cfg.Concurrency, failed)}
}

func (r *Runner) unitsOf(ctx context.Context, group, rh string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.BaseURL+"/api/inventory/"+r.cfg.HospitalID, nil)
	if err != nil {
		return 0, err
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	var lines []struct {
		BloodGroup string `json:"bloodGroup"`
		Rh         string `json:"rh"`
		Units      int    `json:"units"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&lines); err != nil {
		return 0, err
	}
	for _, l := range lines {
		if l.BloodGroup == group && l.Rh == rh {
			return l.Units, nil
		}
	}
	return 0, nil
}

func perfLoad(ctx context.Context, r *Runner, url string) Result {
	end := time.Now().Add(r.cfg.Duration)
	var (
		mu        sync.Mutex
		latencies []time.Duration
		errCount  int
	)
	var wg sync.WaitGroup
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for time.Now().Before(end) && ctx.Err() == nil {
				start := time.Now()
				status, err := r.do(ctx, http.MethodGet, url, "", nil)
				d := time.Since(start)
				mu.Lock()
				if err != nil || status != http.StatusOK {
					errCount++
				} else {
					latencies = append(latencies, d)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(latencies) == 0 {
		return Result{Status: statusFail, Note: "no requests completed"}
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
	p95 := latencies[len(latencies)*95/100]
	rps := float64(len(latencies)) / r.cfg.Duration.Seconds()
	return Result{Status: statusPass, Latency: p95, Note: fmt.Sprintf("rps=%.1f p95 errors=%d", rps, errCount)}
}

func httpCase(name, method, url, token string, body any, want int) Case {
	return Case{
		Name: name,
		Run: func(ctx context.Context, r *Runner) Result {
			start := time.Now()
			status, err := r.do(ctx, method, url, token, body)
			if err != nil {
				return Result{Status: statusFail, Note: err.Error()}
			}
			latency := time.Since(start)
			if status != want {
				return Result{Status: statusFail, Latency: latency, Note: fmt.Sprintf("status=%d want=%d", status, want)}
			}
			return Result{Status: statusPass, Latency: latency}
		},
	}
}

func (r *Runner) do(ctx context.Context, method, url, token string, body any) (int, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode, nil
}

var createTableRe = regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)

func extractTables(dir string) ([]string, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}
	var tables []string
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}
		for _, m := range createTableRe.FindAllStringSubmatch(string(b), -1) {
			tables = append(tables, m[1])
		}
	}
	if len(tables) == 0 {
		return nil, fmt.Errorf("no CREATE TABLE statements under %s", dir)
	}
	return tables, nil
}
