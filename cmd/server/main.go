package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/david/b2-radar/internal/api"
	"github.com/david/b2-radar/internal/db"
	"github.com/david/b2-radar/internal/ingest"
)

type runStore interface {
	ingest.RunRecorder
	api.RunLister
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8081"
	}

	reg, err := ingest.LoadRegistry(os.Getenv("SOURCES_FILE"))
	if err != nil {
		log.Fatalf("Failed to load sources: %v", err)
	}

	ttl := ingest.DefaultCacheTTL
	if v := os.Getenv("CACHE_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			log.Fatalf("Invalid CACHE_TTL %q: %v", v, err)
		}
		ttl = d
	}

	ctx := context.Background()
	store, closeStore, err := openRunStore(ctx, os.Getenv("RUN_STORE"))
	if err != nil {
		log.Fatalf("Failed to open run store: %v", err)
	}
	defer closeStore()

	cfg := api.Config{
		Registry:    reg,
		Factory:     ingest.DefaultReaderFactory,
		Cache:       ingest.NewCache(ttl, nil),
		AdminSecret: os.Getenv("ADMIN_SECRET"),
	}
	if origins := os.Getenv("CORS_ORIGINS"); origins != "" {
		cfg.CORSOrigins = strings.Split(origins, ",")
	}
	if store != nil {
		cfg.Recorder = store
		cfg.Runs = store
	}

	srv := api.NewServer(cfg)

	stop, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go func() {
		<-stop.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("[Warn] Shutdown: %v", err)
		}
	}()

	log.Printf("Server starting on port %s with %d sources (cache TTL %s)...", port, len(reg.Sources), ttl)
	if err := srv.Start(port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

// openRunStore selects where pipeline run history goes: "pg" (default when DATABASE_URL is
// set), "sqlite" or "none".
func openRunStore(ctx context.Context, kind string) (runStore, func(), error) {
	if kind == "" {
		kind = "none"
		if os.Getenv("DATABASE_URL") != "" {
			kind = "pg"
		}
	}

	switch kind {
	case "pg":
		pool, err := db.Connect(ctx)
		if err != nil {
			return nil, nil, err
		}
		if err := db.ApplyMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return db.NewStore(pool), pool.Close, nil
	case "sqlite":
		path := os.Getenv("SQLITE_PATH")
		if path == "" {
			path = "data/b2_radar.db"
		}
		s, err := db.NewSQLiteStore(path)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	case "none":
		log.Print("[Warn] RUN_STORE=none; pipeline run history is not persisted")
		return nil, func() {}, nil
	default:
		log.Fatalf("Unknown RUN_STORE %q (expected pg, sqlite or none)", kind)
		return nil, nil, nil
	}
}
