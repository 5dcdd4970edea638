package testutil

import (
	"context"
	"log/slog"
	"os"

	"github.com/stretchr/testify/suite"
	"github.com/uptrace/bun"

	"github.com/soldey/graph-api/internal/bulkload"
	"github.com/soldey/graph-api/pkg/pgutils"
)

// BaseSuite provides a migrated database per suite and empty tables per
// test. It skips when POSTGRES_HOST is not set.
//
// Usage:
//
//	type MySuite struct {
//	    testutil.BaseSuite
//	}
//
//	func (s *MySuite) SetupSuite() {
//	    s.SetDBSuffix("mine")
//	    s.BaseSuite.SetupSuite()
//	}
type BaseSuite struct {
	suite.Suite
	TestDB *TestDB
	Ctx    context.Context
	Log    *slog.Logger
	Loader *bulkload.Loader

	dbSuffix string
}

// SetDBSuffix sets the database name suffix. Call it before
// BaseSuite.SetupSuite.
func (s *BaseSuite) SetDBSuffix(suffix string) {
	s.dbSuffix = suffix
}

// SetupSuite creates the test database and a loader writing artifacts into
// a temporary directory.
func (s *BaseSuite) SetupSuite() {
	if !Enabled() {
		s.T().Skip("POSTGRES_HOST not set, skipping database tests")
	}
	s.Ctx = context.Background()
	s.Log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelWarn}))

	suffix := s.dbSuffix
	if suffix == "" {
		suffix = "test"
	}
	testDB, err := SetupTestDB(s.Ctx, suffix)
	s.Require().NoError(err, "Failed to setup test database")
	s.TestDB = testDB

	s.Loader = bulkload.NewLoader(
		bulkload.NewPgxCopier(testDB.Pool),
		pgutils.PgConflictParser{},
		s.T().TempDir(),
		s.Log,
	)
}

// TearDownSuite drops the test database.
func (s *BaseSuite) TearDownSuite() {
	if s.TestDB != nil {
		s.TestDB.Close()
	}
}

// SetupTest empties the domain tables.
func (s *BaseSuite) SetupTest() {
	s.Require().NoError(TruncateTables(s.Ctx, s.TestDB.DB))
}

// DB returns the test database.
func (s *BaseSuite) DB() bun.IDB {
	return s.TestDB.DB
}
