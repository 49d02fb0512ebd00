package database

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestScanMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"000010_stats.up.sql", "000002_b.up.sql", "000001_a.up.sql", "000001_a.down.sql", "README.up.sql"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("--"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	files, err := scanMigrations(dir)
	if err != nil {
		t.Fatal(err)
	}
	want := []migrationFile{{1, "000001_a.up.sql"}, {2, "000002_b.up.sql"}, {10, "000010_stats.up.sql"}}
	if !reflect.DeepEqual(files, want) {
		t.Fatalf("scanMigrations = %v, want %v", files, want)
	}

	if got := between(files, 1, 10); !reflect.DeepEqual(got, []string{"000002_b.up.sql", "000010_stats.up.sql"}) {
		t.Fatalf("between = %v", got)
	}
	if got := between(files, 10, 10); got != nil {
		t.Fatalf("no change = %v", got)
	}
}

func TestScanMigrationsMissingDir(t *testing.T) {
	if _, err := scanMigrations(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("missing dir must fail")
	}
}

func TestRepositoryMigrationsParse(t *testing.T) {
	files, err := scanMigrations(filepath.Join("..", "..", "migrations"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) == 0 || files[0].version != 1 {
		t.Fatalf("migrations = %v", files)
	}
}
