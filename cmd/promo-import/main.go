package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/go-faster/errors"

	"github.com/xenking/sacola/internal/storage/postgres"
)

func main() {
	var (
		dataDir     string
		pattern     string
		databaseURL string
		dryRun      bool
	)

	flag.StringVar(&dataDir, "data-dir", "data", "directory containing promotion exports")
	flag.StringVar(&pattern, "pattern", "promotions*.csv.gz", "glob matching export files inside data-dir")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.BoolVar(&dryRun, "dry-run", false, "validate exports without writing to the database")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !dryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, filepath.Join(dataDir, pattern), databaseURL, dryRun); err != nil {
		slog.Error("promotion import failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("promotion import completed successfully")
}

func run(ctx context.Context, glob, databaseURL string, dryRun bool) error {
	files, err := filepath.Glob(glob)
	if err != nil {
		return errors.Wrap(err, "match export files")
	}
	if len(files) == 0 {
		return errors.Errorf("no files match %s", glob)
	}

	slog.Info("reading exports", slog.Int("files", len(files)))

	results, err := readExports(ctx, files)
	if err != nil {
		return errors.Wrap(err, "read exports")
	}

	rules, stats := dedupe(results)
	slog.Info("promotions collected",
		slog.Int("unique", len(rules)),
		slog.Int("duplicates", stats.duplicates),
		slog.Int("rejected", stats.rejected),
	)

	if dryRun || len(rules) == 0 {
		slog.Info("nothing written", slog.Bool("dry_run", dryRun))
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := writeRules(ctx, postgres.NewCouponRepository(pool), rules); err != nil {
		return errors.Wrap(err, "write coupons to database")
	}

	return nil
}
