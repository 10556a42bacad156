// README: Smoke and load runner for a deployed API; executes HTTP/DB/Redis/stream checks and prints results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

func main() {
	cfg := loadConfig()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	runner := NewRunner(cfg)
	results := runner.RunAll(ctx)

	fmt.Println("\n== Summary ==")
	counts := map[string]int{}
	for _, r := range results {
		counts[r.Status]++
	}
	fmt.Printf("PASS=%d FAIL=%d SKIP=%d\n", counts[statusPass], counts[statusFail], counts[statusSkip])

	if counts[statusFail] > 0 || (cfg.Strict && counts[statusSkip] > 0) {
		os.Exit(1)
	}
}

type Config struct {
	BaseURL     string
	DSN         string
	RedisAddr   string
	Migrations  string
	Migrate     bool
	Strict      bool
	Timeout     time.Duration
	Concurrency int
	Duration    time.Duration
	// Token and HospitalID enable the authenticated inventory race check.
	Token      string
	HospitalID string
}

func loadConfig() Config {
	var cfg Config
	flag.StringVar(&cfg.BaseURL, "base-url", envOrDefault("BLOODLINK_BENCH_BASE_URL", "http://localhost:8080"), "API base URL")
	flag.StringVar(&cfg.DSN, "dsn", os.Getenv("BLOODLINK_DB_DSN"), "Postgres DSN (empty skips DB checks)")
	flag.StringVar(&cfg.RedisAddr, "redis", os.Getenv("BLOODLINK_REDIS_ADDR"), "Redis address (empty skips the relay check)")
	flag.StringVar(&cfg.Migrations, "migrations", envOrDefault("BLOODLINK_BENCH_MIGRATIONS", "migrations"), "Migrations directory")
	flag.BoolVar(&cfg.Migrate, "migrate", envOrDefaultBool("BLOODLINK_BENCH_MIGRATE", false), "Apply migrations before the checks")
	flag.BoolVar(&cfg.Strict, "strict", envOrDefaultBool("BLOODLINK_BENCH_STRICT", false), "Treat skipped checks as failures")
	flag.DurationVar(&cfg.Timeout, "timeout", envOrDefaultDuration("BLOODLINK_BENCH_TIMEOUT", 60*time.Second), "Total timeout")
	flag.IntVar(&cfg.Concurrency, "concurrency", envOrDefaultInt("BLOODLINK_BENCH_CONCURRENCY", 20), "Goroutines for race and load checks")
	flag.DurationVar(&cfg.Duration, "duration", envOrDefaultDuration("BLOODLINK_BENCH_DURATION", 10*time.Second), "Load check duration")
	flag.StringVar(&cfg.Token, "token", os.Getenv("BLOODLINK_BENCH_TOKEN"), "Bearer token of the hospital owner or an admin")
	flag.StringVar(&cfg.HospitalID, "hospital", os.Getenv("BLOODLINK_BENCH_HOSPITAL_ID"), "Hospital used by the inventory race check")
	flag.Parse()
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return cfg
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
