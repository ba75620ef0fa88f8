package api_test

import (
	"context"
	"errors"
	"io"
	"runtime"
	"testing"
	"time"

	"github.com/mwiktor/apigen/internal/api"
)

type fakeStream struct {
	chunks []string
	err    error
	pos    int
}

func (s *fakeStream) Recv() (string, error) {
	if s.pos >= len(s.chunks) {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

func (s *fakeStream) Close() error { return nil }

// endlessStream never finishes, like a completion that keeps
// producing after the caller has given up.
type endlessStream struct{}

func (s *endlessStream) Recv() (string, error) { return "chunk ", nil }
func (s *endlessStream) Close() error          { return nil }

func TestStreamReadAll(t *testing.T) {
	stream := &fakeStream{chunks: []string{"const pets = ", "await client.", "listPets();"}}

	out, err := api.StreamReadAll(context.Background(), stream)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "const pets = await client.listPets();" {
		t.Errorf("got accumulated text %q", out)
	}
}

func TestStreamReadAllError(t *testing.T) {
	upstream := errors.New("upstream failed")
	stream := &fakeStream{chunks: []string{"partial"}, err: upstream}

	out, err := api.StreamReadAll(context.Background(), stream)
	if !errors.Is(err, upstream) {
		t.Fatalf("got %v, expected upstream error", err)
	}
	if out != "partial" {
		t.Errorf("got accumulated text %q, expected 'partial'", out)
	}
}

func TestStreamReadAllCancelled(t *testing.T) {
	before := runtime.NumGoroutine()

	for range 10 {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := api.StreamReadAll(ctx, &endlessStream{})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("got %v, expected context.Canceled", err)
		}
	}

	// producers must observe the cancellation and exit
	deadline := time.Now().Add(2 * time.Second)
	for runtime.NumGoroutine() > before && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	if got := runtime.NumGoroutine(); got > before {
		t.Errorf("%d goroutines before, %d after, reader goroutines leaked", before, got)
	}
}
