package test_utils

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/buildledger/buildledger/internal/config"
	"github.com/buildledger/buildledger/internal/database"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

const (
	postgresImage = "postgres:18.1-alpine"
	dbName        = "buildledger"
	dbUser        = "test_buildledger"
	dbPassword    = "test_buildledger"
	snapshotName  = "buildledger-migrated"
)

// TestWithDB starts a Postgres container, applies all migrations and snapshots the
// result. The returned function opens a fresh pool; restore the snapshot between tests
// with container.Restore.
func TestWithDB() (*postgres.PostgresContainer, func() *pgxpool.Pool) {
	ctx := context.Background()

	root, err := findProjectRoot()
	if err != nil {
		log.Fatalf("failed to find project root: %v", err)
	}

	container, cfg, err := startPostgres(ctx, root)
	if err != nil {
		log.Fatalf("failed to start postgres container: %v", err)
	}

	if err := database.MigrateFrom(cfg, filepath.Join(root, "migrations")); err != nil {
		log.Fatalf("failed to apply migrations: %v", err)
	}
	if err := container.Snapshot(ctx, postgres.WithSnapshotName(snapshotName)); err != nil {
		log.Fatalf("failed to snapshot postgres container: %v", err)
	}

	return container, func() *pgxpool.Pool {
		db, err := database.Open(cfg)
		if err != nil {
			log.Fatalf("failed to open database connection: %v", err)
		}
		return db
	}
}

func startPostgres(ctx context.Context, root string) (*postgres.PostgresContainer, config.Database, error) {
	container, err := postgres.Run(
		ctx, postgresImage,
		postgres.WithInitScripts(filepath.Join(root, "dev", "init.sql")),
		postgres.WithDatabase(dbName),
		postgres.WithUsername(dbUser),
		postgres.WithPassword(dbPassword),
		postgres.BasicWaitStrategies(),
	)
	if err != nil {
		return nil, config.Database{}, err
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, config.Database{}, err
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		return nil, config.Database{}, err
	}
	log.Infof("postgres container started at %s:%d", host, port.Int())

	return container, config.Database{
		Host:     host,
		Port:     port.Int(),
		User:     dbUser,
		Pass:     dbPassword,
		Name:     dbName,
		Schema:   "buildledger",
		MaxConns: 4,
		MinConns: 1,
	}, nil
}

// findProjectRoot walks up from the working directory to the directory holding go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("no go.mod above the working directory")
		}
		dir = parent
	}
}
