package main

import (
	"database/sql"
	"errors"
	"flag"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/lib/pq"

	"github.com/extrace/notify/internal/config"
	"github.com/extrace/notify/internal/pkg/logger"
	"github.com/extrace/notify/internal/repository/postgres"
)

func main() {
	down := flag.Bool("down", false, "roll back the most recent migration")
	version := flag.Bool("version", false, "print the current schema version and exit")
	flag.Parse()

	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(path)
	if err != nil {
		fatal("load config", err)
	}
	if cfg.Database.URL == "" {
		fatal("config", errors.New("DATABASE_URL is required"))
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		fatal("open database", err)
	}
	if err := db.Ping(); err != nil {
		fatal("ping database", err)
	}

	m, err := postgres.NewMigrator(db)
	if err != nil {
		fatal("create migrator", err)
	}
	defer m.Close()

	before := currentVersion(m)
	if *version {
		logger.Info("schema version", "version", before)
		return
	}

	if *down {
		err = m.Steps(-1)
	} else {
		err = m.Up()
	}
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		fatal("migrate", err)
	}

	logger.Info("migration complete", "from_version", before, "to_version", currentVersion(m))
}

func currentVersion(m *migrate.Migrate) uint {
	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0
	}
	if err != nil {
		fatal("read version", err)
	}
	if dirty {
		logger.Warn("schema is dirty; fix the failed migration and force the version", "version", v)
	}
	return v
}

func fatal(msg string, err error) {
	logger.Error(msg, "error", err.Error())
	os.Exit(1)
}
