package generation_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/mwiktor/apigen/internal/api"
	"github.com/mwiktor/apigen/internal/executor"
	"github.com/mwiktor/apigen/internal/modules/generation"
	"github.com/mwiktor/apigen/internal/snippet"
	"github.com/mwiktor/apigen/internal/transport"
)

type fakeStream struct {
	chunks []string
	pos    int
}

func (s *fakeStream) Recv() (string, error) {
	if s.pos >= len(s.chunks) {
		return "", io.EOF
	}
	chunk := s.chunks[s.pos]
	s.pos++
	return chunk, nil
}

func (s *fakeStream) Close() error { return nil }

type fakeLM struct {
	chunks   []string
	calls    int
	requests []api.ChatRequest
}

func (l *fakeLM) Generate(ctx context.Context, req api.GenerationRequest) (api.CompletionStream, error) {
	l.calls++
	return &fakeStream{chunks: l.chunks}, nil
}

func (l *fakeLM) Chat(ctx context.Context, req api.ChatRequest) (api.CompletionStream, error) {
	l.calls++
	l.requests = append(l.requests, req)
	return &fakeStream{chunks: l.chunks}, nil
}

func newTestExecutor(t *testing.T, lm *fakeLM) *generation.CodeExecutor {
	t.Helper()

	exec, err := generation.NewCodeExecutor()
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}

	cache, err := snippet.NewCache(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create snippet cache: %v", err)
	}

	exec.DefaultLMProvider = lm
	exec.SnippetCache = cache
	return exec
}

func contextDocs() []*api.ScoredDocument {
	return []*api.ScoredDocument{
		{
			Content: "# pets/List pets\nGET https://api.petstore.dev/v1/pets",
			Title:   "pets/List pets",
			Source:  "pets/List pets",
			Score:   0.9,
		},
	}
}

func TestGenerateClient(t *testing.T) {
	lm := &fakeLM{chunks: []string{"const pets = ", "await client.listPets();"}}
	exec := newTestExecutor(t, lm)
	lt := transport.NewLocalTransport(nil)

	params := executor.NewExecutorParams("task-1", "list all pets",
		executor.WithTransport(lt),
		executor.WithArgs(map[string]any{
			"context_docs":    contextDocs(),
			"collection_name": "petstore",
			"language":        "typescript",
		}),
	)

	res := exec.Execute(context.Background(), params)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}

	output, ok := executor.GetTypedResult[string](res, "generation_results")
	if !ok {
		t.Fatal("expected generation_results in result values")
	}
	want := "const pets = await client.listPets();"
	if output != want {
		t.Errorf("got %q, expected %q", output, want)
	}

	hit, ok := executor.GetTypedResult[bool](res, "cache_hit")
	if !ok || hit {
		t.Error("expected cache_hit to be false on first generation")
	}

	if len(lm.requests) != 1 {
		t.Fatalf("got %d chat requests, expected 1", len(lm.requests))
	}
	if !strings.Contains(lm.requests[0].SystemPrompt, "GET https://api.petstore.dev/v1/pets") {
		t.Error("expected system prompt to contain retrieved endpoint documentation")
	}
	if !strings.Contains(lm.requests[0].SystemPrompt, "typescript") {
		t.Error("expected system prompt to name the target language")
	}
}

func TestGenerateClientCacheHit(t *testing.T) {
	lm := &fakeLM{chunks: []string{"client.listPets()"}}
	exec := newTestExecutor(t, lm)
	lt := transport.NewLocalTransport(nil)

	newParams := func(id string) *executor.ExecutorParams {
		return executor.NewExecutorParams(id, "list all pets",
			executor.WithTransport(lt),
			executor.WithArgs(map[string]any{
				"context_docs":    contextDocs(),
				"collection_name": "petstore",
			}),
		)
	}

	res := exec.Execute(context.Background(), newParams("task-1"))
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}

	res = exec.Execute(context.Background(), newParams("task-2"))
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}

	hit, ok := executor.GetTypedResult[bool](res, "cache_hit")
	if !ok || !hit {
		t.Error("expected cache_hit on repeated request")
	}

	output, _ := executor.GetTypedResult[string](res, "generation_results")
	if output != "client.listPets()" {
		t.Errorf("got %q, expected cached code", output)
	}

	// no second model call for the cached request
	if lm.calls != 1 {
		t.Errorf("got %d model calls, expected 1", lm.calls)
	}
}

func TestRefactor(t *testing.T) {
	lm := &fakeLM{chunks: []string{"fetch('/v1/pets')"}}
	exec := newTestExecutor(t, lm)
	lt := transport.NewLocalTransport(nil)

	params := executor.NewExecutorParams("task-1", "use the documented path",
		executor.WithOperator("refactor"),
		executor.WithTransport(lt),
		executor.WithArgs(map[string]any{
			"context_docs": contextDocs(),
			"source_code":  "fetch('/pets')",
			"language":     "javascript",
		}),
	)

	res := exec.Execute(context.Background(), params)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}

	output, ok := executor.GetTypedResult[string](res, "generation_results")
	if !ok || output != "fetch('/v1/pets')" {
		t.Errorf("got %q, expected rewritten code", output)
	}

	if len(lm.requests) != 1 {
		t.Fatalf("got %d chat requests, expected 1", len(lm.requests))
	}
	if !strings.Contains(lm.requests[0].SystemPrompt, "fetch('/pets')") {
		t.Error("expected system prompt to contain the source code")
	}
}

func TestRefactorMissingSource(t *testing.T) {
	lm := &fakeLM{chunks: []string{"irrelevant"}}
	exec := newTestExecutor(t, lm)
	lt := transport.NewLocalTransport(nil)

	params := executor.NewExecutorParams("task-1", "use the documented path",
		executor.WithOperator("refactor"),
		executor.WithTransport(lt),
		executor.WithArgs(map[string]any{
			"context_docs": contextDocs(),
		}),
	)

	res := exec.Execute(context.Background(), params)
	var argErr executor.ErrArgMissing
	if !errors.As(res.Err, &argErr) {
		t.Errorf("got %T, expected ErrArgMissing", res.Err)
	}
}
