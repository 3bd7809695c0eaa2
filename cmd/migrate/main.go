// ABOUTME: Standalone schema migration tool for deployments that do not ship the full CLI
// ABOUTME: Supports dry runs, rollbacks, and a file backup before touching a SQLite database

package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/harperreed/cellsync/config"
	"github.com/harperreed/cellsync/db"
	"github.com/harperreed/cellsync/logging"
	"go.uber.org/zap"
)

func main() {
	configFile := flag.String("config", "", "Config file (default: cellsync.yaml lookup)")
	driver := flag.String("driver", "", "Database driver, postgres or sqlite3 (default: from config)")
	dsn := flag.String("dsn", "", "Database DSN or SQLite path (default: from config)")
	down := flag.Int("down", 0, "Roll back this many migrations instead of migrating up")
	dryRun := flag.Bool("dry-run", false, "Show what would happen without making changes")
	backup := flag.Bool("backup", true, "Copy a SQLite database file before migrating")
	flag.Parse()

	logger, err := logging.New("info", "auto", "cellsync-migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load(*configFile)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}
	if *driver != "" {
		cfg.Database.Driver = *driver
	}
	if *dsn != "" {
		cfg.Database.DSN = *dsn
	}

	if err := run(logger, cfg.Database.DriverName(), cfg.Database.DSN, *down, *dryRun, *backup); err != nil {
		logger.Fatal("migration failed", zap.Error(err))
	}
}

func run(logger *zap.Logger, driver, dsn string, down int, dryRun, backup bool) error {
	current, dirty, err := db.SchemaVersion(driver, dsn)
	if err != nil {
		return err
	}
	latest, err := db.LatestVersion(driver)
	if err != nil {
		return err
	}
	logger.Info("schema state",
		zap.String("driver", driver),
		zap.Uint("current", current),
		zap.Uint("latest", latest),
		zap.Bool("dirty", dirty),
	)

	if dirty {
		return fmt.Errorf("schema version %d is dirty; fix the database by hand before migrating", current)
	}

	if dryRun {
		switch {
		case down > 0:
			logger.Info("[DRY RUN] would roll back migrations", zap.Int("steps", down))
		case current < latest:
			logger.Info("[DRY RUN] would apply migrations", zap.Uint("from", current), zap.Uint("to", latest))
		default:
			logger.Info("[DRY RUN] schema is up to date")
		}
		return nil
	}

	if backup && driver == db.DriverSQLite {
		if err := backupFile(logger, dsn); err != nil {
			return err
		}
	}

	if down > 0 {
		err = db.MigrateDown(driver, dsn, down)
	} else {
		err = db.Migrate(driver, dsn)
	}
	if err != nil {
		return err
	}

	version, _, err := db.SchemaVersion(driver, dsn)
	if err != nil {
		return err
	}
	logger.Info("migration completed", zap.Uint("version", version))
	return nil
}

func backupFile(logger *zap.Logger, path string) error {
	input, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read database: %w", err)
	}

	backupPath := fmt.Sprintf("%s.backup.%s", path, time.Now().Format("20060102-150405"))
	if err := os.WriteFile(backupPath, input, 0644); err != nil {
		return fmt.Errorf("failed to create backup: %w", err)
	}
	logger.Info("backup created", zap.String("path", backupPath))
	return nil
}
