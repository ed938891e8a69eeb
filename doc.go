/*
Package fixturekit seeds and clears test data with scripts kept next to the tests.

A suite's scripts live in testdata/<TestName>.js. Each fixture is a named function whose
name starts with "prepare4_" or "cleanup4_" followed by the test method it belongs to;
the statements between the braces are run against the database:

	// testdata/TestBooksRepo.js
	prepare4_findBooks = function() {
	    INSERT INTO books (title) VALUES ('Go in Practice');
	};

	cleanup4_findBooks = function() {
	    DELETE FROM books; // everything the prepare step wrote
	};

Lines are joined without a separator when a function is read, so a statement must not
be split across lines. A "//" comment is cut from the end of every line. A SQL "--"
comment would hide every statement joined after it, so the executors reject scripts
holding "--" outside a quoted literal (executor.ErrSQLLineComment); use "//" instead.

Example usage:

	func TestBooksRepo(t *testing.T) {
		ctx := context.Background()
		cfg := config.DefaultConfig()
		cfg.DSN = os.Getenv("DATABASE_URL")

		k, err := fixturekit.NewKit(ctx, t, cfg, atlas.WithAtlas())
		if err != nil {
			t.Fatalf("Failed to initialize fixturekit: %v", err)
		}

		t.Run("findBooks", func(t *testing.T) {
			k.Attend(ctx, t) // prepare4_findBooks now, cleanup4_findBooks when the subtest ends
			// ... exercise the repository through k.Pool() or k.DB() ...
		})
	}

The script reader itself lives in the script package and can be used on its own.
*/
package fixturekit
