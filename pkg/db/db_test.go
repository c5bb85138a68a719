package db

import (
	"path/filepath"
	"testing"
	"time"
)

func TestInitMigrates(t *testing.T) {
	d, err := Init(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	defer d.Close()

	for _, table := range []string{"episodes", "persistent_state", "cache"} {
		var name string
		err := d.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %s missing: %v", table, err)
		}
	}
}

func TestInitIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	d1, err := Init(path)
	if err != nil {
		t.Fatal(err)
	}
	d1.Close()

	d2, err := Init(path)
	if err != nil {
		t.Fatalf("second Init failed: %v", err)
	}
	d2.Close()
}

func TestPruneCache(t *testing.T) {
	d, err := Init(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	old := time.Now().Add(-48 * time.Hour).UTC().Format("2006-01-02 15:04:05")
	if _, err := d.Exec("INSERT INTO cache (key, value, created_at) VALUES (?, ?, ?)", "stale", []byte("x"), old); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Exec("INSERT INTO cache (key, value) VALUES (?, ?)", "fresh", []byte("y")); err != nil {
		t.Fatal(err)
	}

	if err := d.PruneCache(24 * time.Hour); err != nil {
		t.Fatal(err)
	}

	var n int
	if err := d.QueryRow("SELECT count(*) FROM cache").Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("expected 1 cache row after prune, got %d", n)
	}
}
