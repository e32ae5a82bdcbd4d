package testutil

import (
	"context"
	"sync"
	"testing"

	"github.com/medflow/pharmacy-backend/pkg/database"
	"github.com/medflow/pharmacy-backend/pkg/logger"
)

var (
	sharedOnce      sync.Once
	sharedContainer *PostgresContainer
	sharedErr       error
)

// IntegrationSuite gives a test package one PostgreSQL for all of its tests.
//
//	func TestMain(m *testing.M) {
//	    suite, err = testutil.NewIntegrationSuite(ctx)
//	    ...
//	    code := m.Run()
//	    suite.Cleanup(ctx)
//	    os.Exit(code)
//	}
type IntegrationSuite struct {
	Container *PostgresContainer
	DB        *database.DB
	Fixtures  *FixtureFactory
	Seeder    *Seeder
	Logger    *logger.Logger
}

// NewIntegrationSuite starts the shared container on first use
func NewIntegrationSuite(ctx context.Context) (*IntegrationSuite, error) {
	sharedOnce.Do(func() {
		sharedContainer, sharedErr = StartPostgres(ctx, PostgresOptions{})
	})
	if sharedErr != nil {
		return nil, sharedErr
	}

	log := logger.Nop()
	db, err := database.Open(ctx, sharedContainer.DSN, log)
	if err != nil {
		return nil, err
	}

	return &IntegrationSuite{
		Container: sharedContainer,
		DB:        db,
		Fixtures:  NewFixtureFactory(),
		Seeder:    NewSeeder(sharedContainer.DB),
		Logger:    log,
	}, nil
}

// Reset empties every pharmacy table
func (s *IntegrationSuite) Reset(t *testing.T, ctx context.Context) {
	t.Helper()
	if err := TruncateAll(ctx, s.Container.DB); err != nil {
		t.Fatalf("failed to truncate tables: %v", err)
	}
}

// Cleanup closes the suite's pool and stops the shared container
func (s *IntegrationSuite) Cleanup(ctx context.Context) error {
	if err := s.DB.Close(); err != nil {
		return err
	}
	return s.Container.Stop(ctx)
}
