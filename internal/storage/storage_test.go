package storage

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
)

// testDB creates a temporary database for testing.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenDB(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "sub", "dir", "gestured.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("OpenDB failed: %v", err)
	}
	defer db.Close()

	if _, err := os.Stat(dbPath); err != nil {
		t.Fatalf("database file not found: %v", err)
	}

	// Verify tables exist.
	if _, err := db.Exec(`INSERT INTO kv (key, value) VALUES ('smoke', '1')`); err != nil {
		t.Fatalf("insert into kv: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO config_archive (id, source, raw) VALUES ('a', 'connection', X'00')`); err != nil {
		t.Fatalf("insert into config_archive: %v", err)
	}
}

func TestOpenDB_Reentrant(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "gestured.db")

	db, err := OpenDB(dbPath)
	if err != nil {
		t.Fatalf("first OpenDB: %v", err)
	}
	db.Close()

	// Reopening must not re-run applied migrations.
	db, err = OpenDB(dbPath)
	if err != nil {
		t.Fatalf("second OpenDB: %v", err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("schema_migrations has %d rows, want %d", count, len(migrations))
	}
}

func TestSetGetValue(t *testing.T) {
	db := testDB(t)

	type gesture struct {
		GestureID string  `json:"gesture_id"`
		ActionID  string  `json:"action_id"`
		Timestamp float64 `json:"timestamp"`
	}

	in := gesture{GestureID: "FIST", ActionID: "tab_close", Timestamp: 1708166400.5}
	if err := SetValue(db, "lastGesture", in); err != nil {
		t.Fatalf("SetValue: %v", err)
	}

	var out gesture
	found, err := GetValue(db, "lastGesture", &out)
	if err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if !found {
		t.Fatal("GetValue: key not found after SetValue")
	}
	if out != in {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}

	var missing gesture
	found, err = GetValue(db, "noSuchKey", &missing)
	if err != nil {
		t.Fatalf("GetValue missing key: %v", err)
	}
	if found {
		t.Error("GetValue reported a missing key as found")
	}
}

func TestSetValueOverwrites(t *testing.T) {
	db := testDB(t)

	if err := SetValue(db, "gesturesEnabled", true); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if err := SetValue(db, "gesturesEnabled", false); err != nil {
		t.Fatalf("SetValue overwrite: %v", err)
	}

	var enabled bool
	if _, err := GetValue(db, "gesturesEnabled", &enabled); err != nil {
		t.Fatalf("GetValue: %v", err)
	}
	if enabled {
		t.Error("overwrite did not take: gesturesEnabled is still true")
	}

	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM kv WHERE key = 'gesturesEnabled'").Scan(&count); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if count != 1 {
		t.Errorf("kv has %d rows for one key, want 1", count)
	}
}

func TestLoadAll(t *testing.T) {
	db := testDB(t)

	SetValue(db, "fps", 28.4)
	SetValue(db, "pipelineStatus", "running")

	all, err := LoadAll(db)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("LoadAll returned %d keys, want 2", len(all))
	}
	if string(all["pipelineStatus"]) != `"running"` {
		t.Errorf("pipelineStatus raw = %s", all["pipelineStatus"])
	}
}
