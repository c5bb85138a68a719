package cache

import (
	"context"
	"path/filepath"
	"testing"

	"wanderpod/pkg/db"
)

func TestSQLiteCacheRoundTrip(t *testing.T) {
	d, err := db.Init(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	c := NewSQLiteCache(d)
	ctx := context.Background()

	if _, hit := c.GetCache(ctx, "missing"); hit {
		t.Error("expected miss for unknown key")
	}

	if err := c.SetCache(ctx, "k", []byte("hello")); err != nil {
		t.Fatal(err)
	}
	val, hit := c.GetCache(ctx, "k")
	if !hit {
		t.Fatal("expected hit after set")
	}
	if string(val) != "hello" {
		t.Errorf("got %q", val)
	}

	// Overwrite
	if err := c.SetCache(ctx, "k", []byte("world")); err != nil {
		t.Fatal(err)
	}
	val, _ = c.GetCache(ctx, "k")
	if string(val) != "world" {
		t.Errorf("expected overwrite, got %q", val)
	}
}
