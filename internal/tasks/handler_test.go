package tasks

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/hibiken/asynq"

	"github.com/mwiktor/apigen/internal/executor"
	"github.com/mwiktor/apigen/internal/registry"
	"github.com/mwiktor/apigen/internal/transport"
)

// stub executors delegate to swappable functions so every test can
// install its own behaviour behind the fixed registry names.
var (
	indexFn    func(p *executor.ExecutorParams) *executor.ExecutorResult
	generateFn func(p *executor.ExecutorParams) *executor.ExecutorResult
)

type stubIndexer struct{}

func (stubIndexer) Execute(ctx context.Context, p *executor.ExecutorParams) *executor.ExecutorResult {
	return indexFn(p)
}

type stubGenerator struct{}

func (stubGenerator) Execute(ctx context.Context, p *executor.ExecutorParams) *executor.ExecutorResult {
	return generateFn(p)
}

func init() {
	if err := registry.RegisterExecutor(IndexingExecutorName, stubIndexer{}); err != nil {
		panic(err)
	}

	pipeline := executor.NewPipeline(DefaultPipelineGenerate, "", "default", []executor.PipelineNode{
		executor.NewPipelineNode(stubGenerator{}, "generate_client", nil),
	})
	if err := registry.RegisterPipeline(DefaultPipelineGenerate, pipeline); err != nil {
		panic(err)
	}
}

type memStream struct {
	id       string
	payloads []transport.MessageStreamPayload
}

func (s *memStream) Send(ctx context.Context, payload transport.MessageStreamPayload) error {
	s.payloads = append(s.payloads, payload)
	return nil
}

func (s *memStream) Recv(ctx context.Context) (*transport.MessageStreamPayload, error) {
	return nil, fmt.Errorf("not supported")
}

func (s *memStream) Text(ctx context.Context) (string, error) {
	var sb strings.Builder
	for _, p := range s.payloads {
		if p.Type == transport.MessageTypeContent {
			sb.WriteString(p.Content)
		}
	}
	return sb.String(), nil
}

func (s *memStream) GetID() string { return s.id }

type memTransport struct {
	streams  map[string]*memStream
	statuses map[string][]int
}

func newMemTransport() *memTransport {
	return &memTransport{
		streams:  make(map[string]*memStream),
		statuses: make(map[string][]int),
	}
}

func (t *memTransport) GetMessageStream(id string) (transport.MessageStream, error) {
	if s, ok := t.streams[id]; ok {
		return s, nil
	}
	s := &memStream{id: id}
	t.streams[id] = s
	return s, nil
}

func (t *memTransport) SetTrace(ctx context.Context, trace *transport.RequestTrace) error {
	t.statuses[trace.ID] = append(t.statuses[trace.ID], trace.Status)
	return nil
}

func (t *memTransport) GetTrace(ctx context.Context, traceId string) (*transport.RequestTrace, error) {
	return nil, transport.ErrTraceNotFound
}

func (t *memTransport) lastStatus(id string) int {
	ss := t.statuses[id]
	if len(ss) == 0 {
		return transport.TraceStatusUnspecified
	}
	return ss[len(ss)-1]
}

func TestRunIngestEmitsTerminalMessage(t *testing.T) {
	tr := newMemTransport()
	h := NewTaskHandler(tr, nil)

	indexFn = func(p *executor.ExecutorParams) *executor.ExecutorResult {
		return &executor.ExecutorResult{
			Name: IndexingExecutorName,
			Values: map[string]any{
				"endpoints_indexed": 2,
				"points_indexed":    5,
			},
		}
	}

	err := h.runIngest(context.Background(), "task-1", IngestTaskPayload{
		CollectionName: "petstore",
		CollectionJSON: "{}",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stream := tr.streams["task-1"]
	if stream == nil || len(stream.payloads) != 1 {
		t.Fatal("expected exactly one terminal payload on the stream")
	}

	last := stream.payloads[0]
	if last.Status != transport.StatusDone {
		t.Errorf("got status %q, expected DONE", last.Status)
	}
	if !strings.Contains(last.Content, "2 endpoints") {
		t.Errorf("got content %q, expected the ingest summary", last.Content)
	}

	if tr.lastStatus("task-1") != transport.TraceStatusCompleted {
		t.Errorf("got trace status %d, expected completed", tr.lastStatus("task-1"))
	}
}

func TestRunIngestFailure(t *testing.T) {
	tr := newMemTransport()
	h := NewTaskHandler(tr, nil)

	indexFn = func(p *executor.ExecutorParams) *executor.ExecutorResult {
		return &executor.ExecutorResult{
			Name: IndexingExecutorName,
			Err:  errors.New("collection is malformed"),
		}
	}

	err := h.runIngest(context.Background(), "task-2", IngestTaskPayload{
		CollectionName: "petstore",
		CollectionJSON: "not json",
	})
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("got %v, expected a SkipRetry error", err)
	}
	if !strings.Contains(err.Error(), "collection is malformed") {
		t.Errorf("got %q, expected the executor error to be included", err.Error())
	}

	stream := tr.streams["task-2"]
	if stream == nil || len(stream.payloads) == 0 {
		t.Fatal("expected an ERR payload on the stream")
	}
	if got := stream.payloads[len(stream.payloads)-1].Status; got != transport.StatusErr {
		t.Errorf("got status %q, expected ERR", got)
	}

	if tr.lastStatus("task-2") != transport.TraceStatusFailed {
		t.Errorf("got trace status %d, expected failed", tr.lastStatus("task-2"))
	}
}

func TestRunGenerate(t *testing.T) {
	tr := newMemTransport()
	h := NewTaskHandler(tr, nil)

	var seenQuery string
	generateFn = func(p *executor.ExecutorParams) *executor.ExecutorResult {
		seenQuery = p.GetQuery()
		return &executor.ExecutorResult{Name: "generation.Code"}
	}

	err := h.runGenerate(context.Background(), "task-3", GenerateTaskPayload{
		Query: "list all pets",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seenQuery != "list all pets" {
		t.Errorf("executor got query %q", seenQuery)
	}

	stream := tr.streams["task-3"]
	if stream == nil || len(stream.payloads) == 0 {
		t.Fatal("expected a terminal payload on the stream")
	}
	if got := stream.payloads[len(stream.payloads)-1].Status; got != transport.StatusDone {
		t.Errorf("got status %q, expected DONE", got)
	}
}

func TestRunGenerateFailureKeepsCause(t *testing.T) {
	tr := newMemTransport()
	h := NewTaskHandler(tr, nil)

	generateFn = func(p *executor.ExecutorParams) *executor.ExecutorResult {
		return &executor.ExecutorResult{
			Name: "generation.Code",
			Err:  errors.New("completion request rejected"),
		}
	}

	err := h.runGenerate(context.Background(), "task-4", GenerateTaskPayload{
		Query: "list all pets",
	})
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("got %v, expected a SkipRetry error", err)
	}
	if !strings.Contains(err.Error(), "completion request rejected") {
		t.Errorf("got %q, expected the pipeline error to be included", err.Error())
	}

	if tr.lastStatus("task-4") != transport.TraceStatusFailed {
		t.Errorf("got trace status %d, expected failed", tr.lastStatus("task-4"))
	}
}

func TestRunGenerateUnknownPipeline(t *testing.T) {
	tr := newMemTransport()
	h := NewTaskHandler(tr, nil)

	err := h.runGenerate(context.Background(), "task-5", GenerateTaskPayload{
		Query:      "list all pets",
		PipelineId: "does-not-exist",
	})
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("got %v, expected a SkipRetry error", err)
	}

	stream := tr.streams["task-5"]
	if stream == nil || len(stream.payloads) == 0 {
		t.Fatal("expected an ERR payload on the stream")
	}
	if got := stream.payloads[len(stream.payloads)-1].Status; got != transport.StatusErr {
		t.Errorf("got status %q, expected ERR", got)
	}
}
