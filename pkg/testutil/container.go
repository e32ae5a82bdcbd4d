// Package testutil holds the pharmacy test harness: a disposable PostgreSQL
// with the pharmacy schema, sqlmock helpers, fixtures and HTTP helpers.
package testutil

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresOptions selects the image and credentials of the test database
type PostgresOptions struct {
	Image    string
	Database string
	Username string
	Password string
}

func (o PostgresOptions) withDefaults() PostgresOptions {
	if o.Image == "" {
		o.Image = "postgres:15-alpine"
	}
	if o.Database == "" {
		o.Database = "pharmacy_test"
	}
	if o.Username == "" {
		o.Username = "pharmacy"
	}
	if o.Password == "" {
		o.Password = "pharmacy"
	}
	return o
}

// PostgresContainer is a running PostgreSQL with the pharmacy schema applied
type PostgresContainer struct {
	container *postgres.PostgresContainer
	DSN       string
	DB        *sqlx.DB
}

// StartPostgres runs a container, connects to it and creates the pharmacy tables.
// It fails fast when Docker is not reachable.
func StartPostgres(ctx context.Context, opts PostgresOptions) (*PostgresContainer, error) {
	opts = opts.withDefaults()

	c, err := postgres.RunContainer(ctx,
		testcontainers.WithImage(opts.Image),
		postgres.WithDatabase(opts.Database),
		postgres.WithUsername(opts.Username),
		postgres.WithPassword(opts.Password),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres container: %w", err)
	}

	pg := &PostgresContainer{container: c}
	if err := pg.init(ctx); err != nil {
		_ = pg.Stop(ctx)
		return nil, err
	}
	return pg, nil
}

func (pg *PostgresContainer) init(ctx context.Context) error {
	dsn, err := pg.container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return fmt.Errorf("failed to get connection string: %w", err)
	}
	pg.DSN = dsn

	pg.DB, err = sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return fmt.Errorf("failed to connect to test database: %w", err)
	}

	if err := ApplyMigrations(ctx, pg.DB, PharmacyMigrations()); err != nil {
		return fmt.Errorf("failed to create pharmacy schema: %w", err)
	}
	return nil
}

// Stop closes the connection and removes the container
func (pg *PostgresContainer) Stop(ctx context.Context) error {
	if pg.DB != nil {
		pg.DB.Close()
	}
	return pg.container.Terminate(ctx)
}
