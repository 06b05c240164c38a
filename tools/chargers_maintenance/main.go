package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"livecharge-api/internal/maintenance"
	"livecharge-api/internal/platform/database"
	"livecharge-api/internal/platform/logger"
)

type config struct {
	dbURL   string
	dryRun  bool
	timeout time.Duration
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(2)
	}

	log, err := logger.New(logger.Options{Level: "info", Format: "console"})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.timeout)
	defer cancel()

	db, err := database.Open(ctx, cfg.dbURL, database.Options{MaxOpenConns: 2})
	if err != nil {
		fmt.Fprintln(os.Stderr, "db open:", err)
		os.Exit(2)
	}
	defer db.Close()

	service, err := maintenance.NewService(maintenance.NewRepository(db), log)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	result, err := service.Clean(ctx, cfg.dryRun)
	if err != nil {
		log.Error("charger maintenance failed", zap.Error(err))
		os.Exit(1)
	}

	fmt.Println(result.Report.Message())
	for _, group := range result.Report.Groups {
		fmt.Printf("station=%d network=%s ocpi_ids=[%s] count=%d\n",
			group.StationID, group.Network, strings.Join(group.OCPIIDs, ","), group.Count)
	}
	if cfg.dryRun {
		fmt.Printf("dry run: %d rows would be deleted\n", result.Report.Redundant())
		return
	}
	fmt.Printf("deleted %d rows\n", result.Deleted)
}

func parseFlags() (config, error) {
	var cfg config
	flag.StringVar(&cfg.dbURL, "db", getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")), "Postgres DSN")
	flag.BoolVar(&cfg.dryRun, "dry-run", false, "only report duplicate charger groups")
	flag.DurationVar(&cfg.timeout, "timeout", 5*time.Minute, "overall timeout")
	flag.Parse()

	if cfg.dbURL == "" {
		return cfg, errors.New("missing --db or DATABASE_URL/PG_DSN")
	}
	if cfg.timeout <= 0 {
		return cfg, errors.New("--timeout must be positive")
	}
	return cfg, nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}
