package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/iWorld-y/invest_radar/pkg/search"
)

func TestKeyDeterministic(t *testing.T) {
	k1 := Key("q", "union", 5, "news", "basic")
	k2 := Key("q", "union", 5, "news", "basic")
	if k1 != k2 {
		t.Errorf("same args produced different keys: %s vs %s", k1, k2)
	}
	if len(k1) != 64 {
		t.Errorf("key length = %d, want 64 hex chars", len(k1))
	}

	variants := []string{
		Key("q2", "union", 5, "news", "basic"),
		Key("q", "tavily", 5, "news", "basic"),
		Key("q", "union", 6, "news", "basic"),
		Key("q", "union", 5, "general", "basic"),
		Key("q", "union", 5, "news", "advanced"),
	}
	for i, v := range variants {
		if v == k1 {
			t.Errorf("variant %d collided with base key", i)
		}
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir(), time.Hour)
	results := []search.Result{
		{Title: "A", URL: "https://a.com", Snippet: "a", Provider: "p1", Published: "2026-01-02", Score: 0.9},
		{Title: "B", URL: "https://b.com", Provider: "p2"},
	}

	key := Key("q", "union", 5, "news", "basic")
	if err := store.Write(key, results); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, ok := store.Read(key)
	if !ok {
		t.Fatal("Read() ok = false, want hit")
	}
	if len(got) != 2 || got[0].URL != "https://a.com" || got[1].Title != "B" {
		t.Errorf("Read() = %+v", got)
	}
	if got[0].Score != 0.9 {
		t.Errorf("Score = %v, want 0.9", got[0].Score)
	}
}

func TestFileStoreEmptyResults(t *testing.T) {
	store := NewFileStore(t.TempDir(), time.Hour)
	if err := store.Write("empty", nil); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	got, ok := store.Read("empty")
	if !ok {
		t.Fatal("empty result set should still be a cache hit")
	}
	if len(got) != 0 {
		t.Errorf("Read() = %+v, want empty", got)
	}
}

func TestFileStoreTTLExpiry(t *testing.T) {
	store := NewFileStore(t.TempDir(), time.Hour)
	if err := store.Write("k", []search.Result{{Title: "A", URL: "https://a.com"}}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if _, ok := store.Read("k"); !ok {
		t.Fatal("fresh entry should hit")
	}

	// 时钟拨快 2 小时，条目应视为不存在
	store.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	if _, ok := store.Read("k"); ok {
		t.Error("stale entry should be treated as absent")
	}
}

func TestFileStoreMissAndCorrupt(t *testing.T) {
	dir := t.TempDir()
	store := NewFileStore(dir, time.Hour)

	if _, ok := store.Read("missing"); ok {
		t.Error("missing key should not hit")
	}

	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, ok := store.Read("bad"); ok {
		t.Error("corrupt entry should not hit")
	}
}

func TestFileStoreLazyDirCreation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	store := NewFileStore(dir, time.Hour)

	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatal("directory should not exist before first write")
	}
	if err := store.Write("k", nil); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("directory should exist after write: %v", err)
	}
}
