package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/samirrijal/groundwatch/internal/pkg/config"
	"github.com/samirrijal/groundwatch/internal/pkg/logging"
)

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down> [dir]")
	}

	cfg, err := config.Load("groundwatch-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup("groundwatch-migrate", "info", "text")

	dir := "migrations"
	if len(os.Args) > 2 {
		dir = os.Args[2]
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer pool.Close()

	var files []string
	switch os.Args[1] {
	case "up":
		files, err = migrationFiles(dir, false)
	case "down":
		files, err = migrationFiles(dir, true)
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
	if err != nil {
		log.Fatalf("list migrations: %v", err)
	}

	for _, f := range files {
		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}
		if _, err := pool.Exec(ctx, string(data)); err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}
		slog.Info("applied", "file", f)
	}

	slog.Info("migrations complete", "direction", os.Args[1], "count", len(files))
}

// migrationFiles lists forward migrations in name order, or the .down.sql
// files in reverse order.
func migrationFiles(dir string, down bool) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.sql"))
	if err != nil {
		return nil, err
	}

	var out []string
	for _, m := range matches {
		if strings.HasSuffix(m, ".down.sql") == down {
			out = append(out, m)
		}
	}
	sort.Strings(out)
	if down {
		for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
			out[i], out[j] = out[j], out[i]
		}
	}
	return out, nil
}
