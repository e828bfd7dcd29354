package testutil

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/pantrymind/pantrymind-backend/pkg/database"
	"github.com/pantrymind/pantrymind-backend/pkg/logger"
)

// IntegrationSuite runs repositories and services against a real PostgreSQL
//
//	var (
//	    suite    *testutil.IntegrationSuite
//	    suiteErr error
//	)
//
//	func TestMain(m *testing.M) {
//	    flag.Parse()
//	    ctx := context.Background()
//	    if !testing.Short() {
//	        suite, suiteErr = testutil.NewIntegrationSuite(ctx, repository.Migrations, repository.Tables)
//	    }
//	    code := m.Run()
//	    testutil.TerminateContainer(ctx)
//	    os.Exit(code)
//	}
type IntegrationSuite struct {
	DB       *database.DB
	Fixtures *FixtureFactory
	tables   []string
}

// NewIntegrationSuite connects to the shared container and migrates it.
// tables lists what Reset truncates between tests.
func NewIntegrationSuite(ctx context.Context, migrations, tables []string) (*IntegrationSuite, error) {
	dsn, err := postgresDSN(ctx)
	if err != nil {
		return nil, err
	}

	db, err := database.NewWithDSN(dsn, logger.NewWithWriter(io.Discard, "test"))
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, migrations); err != nil {
		db.Close()
		return nil, err
	}

	return &IntegrationSuite{
		DB:       db,
		Fixtures: NewFixtureFactory(),
		tables:   tables,
	}, nil
}

// RequireSuite skips in -short mode or when the container could not start,
// and otherwise hands back s with empty tables
func RequireSuite(t *testing.T, s *IntegrationSuite, setupErr error) *IntegrationSuite {
	t.Helper()
	SkipIfShort(t)
	if s == nil {
		t.Skipf("integration database unavailable: %v", setupErr)
	}
	s.Reset(t)
	return s
}

// Reset truncates every suite table
func (s *IntegrationSuite) Reset(t *testing.T) {
	t.Helper()
	if len(s.tables) == 0 {
		return
	}
	query := fmt.Sprintf("TRUNCATE %s CASCADE", strings.Join(s.tables, ", "))
	if _, err := s.DB.Exec(query); err != nil {
		t.Fatalf("failed to reset test database: %v", err)
	}
}

// UnitTestSuite backs a database.DB with sqlmock
type UnitTestSuite struct {
	MockDB   *MockDB
	DB       *database.DB
	Fixtures *FixtureFactory
	t        *testing.T
}

func NewUnitTestSuite(t *testing.T) *UnitTestSuite {
	mockDB := NewMockDB(t)
	return &UnitTestSuite{
		MockDB:   mockDB,
		DB:       database.Wrap(mockDB.DB, logger.NewWithWriter(io.Discard, "test")),
		Fixtures: NewFixtureFactory(),
		t:        t,
	}
}

// Cleanup fails the test on unmet expectations and closes the mock
func (s *UnitTestSuite) Cleanup() {
	if err := s.MockDB.Mock.ExpectationsWereMet(); err != nil {
		s.t.Errorf("unfulfilled mock expectations: %v", err)
	}
	s.MockDB.DB.Close()
}
