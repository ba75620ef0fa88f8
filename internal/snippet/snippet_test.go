package snippet_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mwiktor/apigen/internal/snippet"
)

func TestCachePutGet(t *testing.T) {
	c, err := snippet.NewCache(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := c.Get("list pets", "petstore", "go"); ok {
		t.Fatal("expected miss on empty cache")
	}

	code := "func ListPets(ctx context.Context) error { return nil }"
	if err := c.Put("list pets", "petstore", "go", code); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s, ok := c.Get("list pets", "petstore", "go")
	if !ok {
		t.Fatal("expected hit after put")
	}
	if s.Code != code {
		t.Errorf("got %q, expected stored code", s.Code)
	}
	if s.Language != "go" {
		t.Errorf("got language %q, expected 'go'", s.Language)
	}

	// same query for another language is a distinct entry
	if _, ok := c.Get("list pets", "petstore", "python"); ok {
		t.Error("expected miss for different language")
	}
}

func TestCacheCorruptEntryIsMiss(t *testing.T) {
	dir := t.TempDir()
	c, err := snippet.NewCache(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.Put("list pets", "petstore", "go", "code"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d cache entries, expected 1", len(entries))
	}

	path := filepath.Join(dir, entries[0].Name())
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := c.Get("list pets", "petstore", "go"); ok {
		t.Error("expected corrupt entry to read as miss")
	}
}

func TestCacheDelete(t *testing.T) {
	c, err := snippet.NewCache(t.TempDir())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := c.Delete("never", "stored", "go"); err != nil {
		t.Fatalf("delete of missing entry should not error: %v", err)
	}

	if err := c.Put("list pets", "petstore", "go", "code"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := c.Delete("list pets", "petstore", "go"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := c.Get("list pets", "petstore", "go"); ok {
		t.Error("expected miss after delete")
	}
}
