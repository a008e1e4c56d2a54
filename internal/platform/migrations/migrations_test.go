package migrations

import (
	"testing"

	"github.com/golang-migrate/migrate/v4/source/iofs"
)

// TestEmbeddedMigrationsParse verifies the embedded SQL files are valid
// golang-migrate sources (correctly named, paired up/down, readable) without
// requiring a live postgres connection. Apply and Down need a real database
// and are not exercised by this test.
func TestEmbeddedMigrationsParse(t *testing.T) {
	source, err := iofs.New(files, ".")
	if err != nil {
		t.Fatalf("load embedded migrations: %v", err)
	}
	defer source.Close()

	first, err := source.First()
	if err != nil {
		t.Fatalf("first migration: %v", err)
	}
	if first != 1 {
		t.Fatalf("expected first migration version 1, got %d", first)
	}

	up, identifier, err := source.ReadUp(first)
	if err != nil {
		t.Fatalf("read up migration: %v", err)
	}
	defer up.Close()
	if identifier == "" {
		t.Fatal("expected a non-empty migration identifier")
	}

	down, _, err := source.ReadDown(first)
	if err != nil {
		t.Fatalf("read down migration: %v", err)
	}
	defer down.Close()
}
