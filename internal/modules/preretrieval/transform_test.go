package preretrieval_test

import (
	"context"
	"io"
	"testing"

	"github.com/mwiktor/apigen/internal/api"
	"github.com/mwiktor/apigen/internal/executor"
	"github.com/mwiktor/apigen/internal/modules/preretrieval"
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
	response string
	prompts  []string
}

func (l *fakeLM) Generate(ctx context.Context, req api.GenerationRequest) (api.CompletionStream, error) {
	l.prompts = append(l.prompts, req.Prompt)
	return &fakeStream{chunks: []string{l.response}}, nil
}

func (l *fakeLM) Chat(ctx context.Context, req api.ChatRequest) (api.CompletionStream, error) {
	return &fakeStream{chunks: []string{l.response}}, nil
}

func TestRewrite(t *testing.T) {
	exec, err := preretrieval.NewTransformExecutor()
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}

	lm := &fakeLM{response: "GET endpoint listing all pets with pagination"}
	exec.DefaultLMProvider = lm

	params := executor.NewExecutorParams("task-1", "show me the pets")

	res := exec.Execute(context.Background(), params)
	if res.Err != nil {
		t.Fatalf("unexpected error: %v", res.Err)
	}

	transformed, ok := executor.GetTypedResult[string](res, "query_transformed")
	if !ok {
		t.Fatal("expected query_transformed in result values")
	}
	if transformed != lm.response {
		t.Errorf("got %q, expected model response", transformed)
	}

	original, ok := executor.GetTypedResult[string](res, "query_original")
	if !ok || original != "show me the pets" {
		t.Errorf("got original query %q, expected 'show me the pets'", original)
	}

	if len(lm.prompts) != 1 {
		t.Fatalf("got %d prompts, expected 1", len(lm.prompts))
	}
}
