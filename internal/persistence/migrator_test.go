package persistence_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/edwardmadi/eurodollar-protocol/internal/persistence"
	"github.com/edwardmadi/eurodollar-protocol/internal/testutil"
)

func countUpFiles(t *testing.T, dir string) int {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir: %v", err)
	}
	n := 0
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".up.sql") {
			n++
		}
	}
	return n
}

func TestMigratorUpIsIdempotent(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	dir := testutil.MigrationsDir()
	m := persistence.NewMigrator(db, dir, zerolog.Nop())

	if err := m.Up(ctx); err != nil {
		t.Fatalf("first Up: %v", err)
	}
	if err := m.Up(ctx); err != nil {
		t.Fatalf("second Up: %v", err)
	}

	var recorded int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM command_log.schema_migrations`).Scan(&recorded)
	if err != nil {
		t.Fatalf("count recorded versions: %v", err)
	}
	if want := countUpFiles(t, dir); recorded != want {
		t.Errorf("schema_migrations has %d rows, want %d (one per up file)", recorded, want)
	}

	// The command log itself must exist after Up.
	if _, err := db.ExecContext(ctx, `SELECT 1 FROM command_log.commands LIMIT 1`); err != nil {
		t.Errorf("command_log.commands not queryable after Up: %v", err)
	}
}

func TestMigratorRecordsVersionAndFilename(t *testing.T) {
	testutil.RequireIntegration(t)
	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	m := persistence.NewMigrator(db, testutil.MigrationsDir(), zerolog.Nop())
	if err := m.Up(ctx); err != nil {
		t.Fatalf("Up: %v", err)
	}

	var version, filename string
	err := db.QueryRowContext(ctx, `
		SELECT version, filename
		FROM command_log.schema_migrations
		ORDER BY version ASC
		LIMIT 1
	`).Scan(&version, &filename)
	if err != nil {
		t.Fatalf("read first version record: %v", err)
	}
	if version == "" || !strings.HasSuffix(filename, ".up.sql") {
		t.Errorf("malformed version record: version=%q filename=%q", version, filename)
	}
	if !strings.HasPrefix(filename, version+"_") {
		t.Errorf("filename %q does not carry version prefix %q", filename, version)
	}
}
