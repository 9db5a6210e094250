package db

import (
	"testing"
)

func TestInit(t *testing.T) {
	db, err := Init()
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	// Verify schema was created
	for _, table := range []string{"sessions", "label_content"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Fatalf("%s table not found: %v", table, err)
		}
	}

	version, err := GetUserVersion(db)
	if err != nil {
		t.Fatalf("GetUserVersion() error = %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, CurrentSchemaVersion)
	}
}

func TestInit_ForeignKeysEnabled(t *testing.T) {
	db, err := Init()
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	var enabled int
	if err := db.QueryRow("PRAGMA foreign_keys;").Scan(&enabled); err != nil {
		t.Fatalf("failed to query foreign_keys: %v", err)
	}
	if enabled != 1 {
		t.Errorf("foreign_keys = %d, want 1", enabled)
	}
}

func TestInit_Isolated(t *testing.T) {
	a, err := Init()
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer a.Close()
	b, err := Init()
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer b.Close()

	if _, err := a.Exec(`INSERT INTO sessions (id, created_at, last_seen_at) VALUES ('s1', 1, 1)`); err != nil {
		t.Fatalf("insert: %v", err)
	}

	var n int
	if err := b.QueryRow(`SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Errorf("second database sees %d sessions, want 0", n)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db, err := Init()
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	defer db.Close()

	if err := migrate(db); err != nil {
		t.Fatalf("second migrate() error = %v", err)
	}
	version, err := GetUserVersion(db)
	if err != nil {
		t.Fatalf("GetUserVersion() error = %v", err)
	}
	if version != CurrentSchemaVersion {
		t.Errorf("user_version = %d, want %d", version, CurrentSchemaVersion)
	}
}
