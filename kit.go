package fixturekit

import (
	"context"
	"database/sql"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/veiloq/fixturekit/fixture"
)

// Kit runs the fixture scripts of one test suite around the tests of that suite.
type Kit interface {
	// Attend runs the prepare script of the test t belongs to and registers its cleanup
	// script with t.Cleanup. A missing or failing script fails t.
	Attend(ctx context.Context, t testing.TB, opts ...AttendOption)
	// Execute runs the script with the given full name, e.g. "prepare4_findBooks".
	Execute(ctx context.Context, name string) error
	// Scripts returns the scripts read for the suite.
	Scripts() *fixture.Set
	// Suite returns the suite name, the top-level test name unless configured otherwise.
	Suite() string
	// Pool returns the pgx pool, nil when the kit runs without a database.
	Pool() *pgxpool.Pool
	// DB returns the database/sql handle, nil when the kit runs without a database.
	DB() *sql.DB
	// Cleanup closes connections and unregisters the suite. It runs once; with a
	// *testing.T it is registered through t.Cleanup.
	Cleanup() error
}
