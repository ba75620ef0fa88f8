package vector_test

import (
	"testing"

	"github.com/mwiktor/apigen/internal/api"
	"github.com/mwiktor/apigen/internal/vector"
)

func TestCreatePoints(t *testing.T) {
	docs := []*api.DocumentEmbedding{
		{
			Title:  "pets/List pets",
			Chunks: []string{"chunk one", "chunk two"},
			Values: [][]float32{{0.1, 0.2}, {0.3, 0.4}},
			Meta: map[string]string{
				"method": "GET",
				"path":   "/v1/pets",
			},
		},
		{
			Title:  "Create pet",
			Chunks: []string{"chunk three"},
			Values: [][]float32{{0.5, 0.6}},
		},
	}

	points := vector.CreatePoints(docs)
	if len(points) != 3 {
		t.Fatalf("got %d points, expected 3", len(points))
	}

	seen := make(map[string]bool)
	for _, p := range points {
		if p.ID == "" {
			t.Error("point has empty id")
		}
		if seen[p.ID] {
			t.Errorf("duplicate point id '%s'", p.ID)
		}
		seen[p.ID] = true
	}

	first := points[0]
	if first.Payload["title"] != "pets/List pets" {
		t.Errorf("got title '%v'", first.Payload["title"])
	}
	if first.Payload["text"] != "chunk one" {
		t.Errorf("got text '%v'", first.Payload["text"])
	}
	if first.Payload["method"] != "GET" {
		t.Errorf("expected meta copied to payload, got '%v'", first.Payload["method"])
	}
	if len(first.Vector) != 2 || first.Vector[0] != 0.1 {
		t.Errorf("unexpected vector %v", first.Vector)
	}

	last := points[2]
	if last.Payload["title"] != "Create pet" {
		t.Errorf("got title '%v'", last.Payload["title"])
	}
	if _, ok := last.Payload["method"]; ok {
		t.Error("unexpected meta on document without meta")
	}
}

func TestNewStoreDefaults(t *testing.T) {
	// the qdrant client dials lazily, construction needs no server
	s, err := vector.NewStore("qdrant", "", 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer s.Close()
}

func TestNewStoreInvalidType(t *testing.T) {
	_, err := vector.NewStore("not-a-store", "", 0)
	if err != vector.ErrInvalidStoreType {
		t.Errorf("got %v, expected ErrInvalidStoreType", err)
	}
}
