// Package snippet caches generated client code on disk so repeated
// requests for the same endpoint and language skip the model call.
package snippet

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

type Snippet struct {
	Query      string    `json:"query"`
	Collection string    `json:"collection"`
	Language   string    `json:"language"`
	Code       string    `json:"code"`
	CreatedAt  time.Time `json:"created_at"`
}

type Cache struct {
	dir string
}

func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create snippet cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Get returns the cached snippet for the request, if any. Unreadable
// or corrupt entries are treated as misses.
func (c *Cache) Get(query, collection, language string) (*Snippet, bool) {
	data, err := os.ReadFile(c.path(query, collection, language))
	if err != nil {
		return nil, false
	}

	var s Snippet
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false
	}

	return &s, true
}

func (c *Cache) Put(query, collection, language, code string) error {
	s := Snippet{
		Query:      query,
		Collection: collection,
		Language:   language,
		Code:       code,
		CreatedAt:  time.Now().UTC(),
	}

	data, err := json.Marshal(s)
	if err != nil {
		return err
	}

	return os.WriteFile(c.path(query, collection, language), data, 0o644)
}

func (c *Cache) Delete(query, collection, language string) error {
	err := os.Remove(c.path(query, collection, language))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

func (c *Cache) path(query, collection, language string) string {
	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write([]byte(collection))
	h.Write([]byte{0})
	h.Write([]byte(language))

	name := hex.EncodeToString(h.Sum(nil)) + ".json"
	return filepath.Join(c.dir, name)
}
