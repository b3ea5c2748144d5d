package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/reseller/backend/internal/infrastructure/cache"
	"github.com/reseller/backend/internal/infrastructure/config"
	"github.com/reseller/backend/internal/infrastructure/logger"
	"github.com/reseller/backend/internal/infrastructure/persistence"
	"github.com/reseller/backend/internal/infrastructure/persistence/models"
	"go.uber.org/zap"
)

func main() {
	var (
		logLevel string
		reason   string
	)
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.StringVar(&reason, "reason", "reference data updated", "Reason sent with the invalidate command")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}
	command := args[0]

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewForEnvironment(cfg.App.Env, logLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	log.Info("Migration CLI started", zap.String("command", command))

	switch command {
	case "up":
		db := openDatabase(cfg, log)
		defer db.Close()
		if err := db.AutoMigrate(ctx); err != nil {
			log.Fatal("Migration failed", zap.Error(err))
		}
		log.Info("Migrations applied successfully", zap.Int("tables", len(models.All())))

	case "status":
		db := openDatabase(cfg, log)
		defer db.Close()
		migrator := db.DB.Migrator()
		missing := 0
		for _, model := range models.All() {
			stmt := db.DB.Model(model).Statement
			if err := stmt.Parse(model); err != nil {
				log.Fatal("Failed to parse model", zap.Error(err))
			}
			exists := migrator.HasTable(model)
			if !exists {
				missing++
			}
			fmt.Printf("%-32s %v\n", stmt.Schema.Table, exists)
		}
		if missing > 0 {
			log.Warn("Schema is not up to date", zap.Int("missing_tables", missing))
			os.Exit(2)
		}

	case "invalidate":
		if !cfg.Redis.Enabled {
			log.Fatal("invalidate requires redis.enabled")
		}
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		invalidator := cache.NewRedisInvalidator(rdb,
			cache.WithInvalidatorChannel(cfg.Cache.InvalidationChannel),
			cache.WithInvalidatorLogger(log),
		)
		if err := invalidator.Publish(ctx, cache.InvalidationMessage{
			Reason:    reason,
			Source:    "migrate",
			Timestamp: time.Now().UnixNano(),
		}); err != nil {
			log.Fatal("Failed to publish invalidation", zap.Error(err))
		}
		log.Info("Reference cache invalidation published")

	default:
		log.Error("Unknown command", zap.String("command", command))
		printUsage()
		os.Exit(1)
	}
}

func openDatabase(cfg *config.Config, log *zap.Logger) *persistence.Database {
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	return db
}

func printUsage() {
	fmt.Println(`Pricing engine schema tool

Usage:
  migrate [flags] <command>

Commands:
  up           Create or update every engine table
  status       Report which engine tables exist
  invalidate   Tell running workers to reload reference data

Flags:
  -log-level   Log level (debug, info, warn, error)
  -reason      Reason sent with the invalidate command

Environment:
  Configuration is read from config.toml and PRICING_* variables.`)
}
