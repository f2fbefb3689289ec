package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"stockledger/internal/config"
	"stockledger/internal/db"
	"stockledger/internal/excel"
	"stockledger/internal/logging"
	"stockledger/internal/repository/postgres"
	"stockledger/internal/service"

	"go.uber.org/zap"
)

type options struct {
	path   string
	dryRun bool
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.path, "file", "", "catalog spreadsheet (.xlsx or .csv)")
	flag.BoolVar(&opts.dryRun, "dry-run", false, "parse and validate the file without writing")
	flag.Parse()
	if opts.path == "" {
		flag.Usage()
		os.Exit(2)
	}
	return opts
}

func main() {
	opts := parseFlags()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Encoding: "console", Development: cfg.Development()})
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer logger.Sync()

	file, err := os.Open(opts.path)
	if err != nil {
		logger.Fatal("open file", zap.Error(err))
	}
	defer file.Close()
	name := filepath.Base(opts.path)

	if opts.dryRun {
		rows, err := excel.ParseProductRows(name, file)
		if err != nil {
			logger.Fatal("invalid catalog file", zap.Error(err))
		}
		fmt.Printf("%s: %d valid rows\n", name, len(rows))
		return
	}

	if cfg.Store != config.StorePostgres {
		logger.Fatal("importing requires STORE=postgres; use -dry-run to only validate the file")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: 4})
	if err != nil {
		logger.Fatal("database error", zap.Error(err))
	}
	defer pool.Close()
	if err := db.RunMigrations(ctx, pool, logger); err != nil {
		logger.Fatal("migration error", zap.Error(err))
	}

	svc := service.New(postgres.New(pool), service.WithLogger(logger))
	summary, err := svc.ImportProducts(ctx, name, file)
	if err != nil {
		logger.Fatal("import failed", zap.Error(err))
	}
	fmt.Printf("%s: %d rows, %d created, %d updated\n", name, summary.Rows, summary.Created, summary.Updated)
}
