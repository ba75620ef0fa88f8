package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/mwiktor/apigen/internal/executor"
	"github.com/mwiktor/apigen/internal/registry"
	"github.com/mwiktor/apigen/internal/transport"
	"github.com/mwiktor/apigen/internal/vector"
)

type TaskHandler struct {
	transport   transport.Transport
	vectorStore vector.Store
}

func NewTaskHandler(transport transport.Transport, vectorStore vector.Store) *TaskHandler {
	return &TaskHandler{
		transport:   transport,
		vectorStore: vectorStore,
	}
}

func (h TaskHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	switch t.Type() {
	case TypeIngest:
		var p IngestTaskPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return err
		}
		return h.runIngest(ctx, t.ResultWriter().TaskID(), p)
	case TypeGenerate:
		var p GenerateTaskPayload
		if err := json.Unmarshal(t.Payload(), &p); err != nil {
			return err
		}
		return h.runGenerate(ctx, t.ResultWriter().TaskID(), p)
	default:
		return fmt.Errorf("unrecognized task type (%w)", asynq.SkipRetry)
	}
}

func (h TaskHandler) runIngest(ctx context.Context, id string, p IngestTaskPayload) error {
	slog.Info("received ingest task", "collection", p.CollectionName, "enrich", p.Enrich)

	ms, err := h.transport.GetMessageStream(id)
	if err != nil {
		slog.Error("failed to initialize message stream", "err", err)
		return fmt.Errorf("failed to initialize message stream: %v (%w)", err, asynq.SkipRetry)
	}

	trace := &transport.RequestTrace{
		ID:         id,
		Status:     transport.TraceStatusRunning,
		StartedAt:  time.Now().UnixNano(),
		Query:      "ingest",
		Collection: p.CollectionName,
	}
	if err := h.transport.SetTrace(ctx, trace); err != nil {
		slog.Error("failed to set trace", "id", id, "err", err)
	}

	exec, err := registry.GetExecutor(IndexingExecutorName)
	if err != nil {
		h.failStream(ctx, ms, "indexing executor not found")
		h.failTrace(ctx, trace)
		return fmt.Errorf("indexing executor not found: %v (%w)", err, asynq.SkipRetry)
	}

	args := map[string]any{
		"collection_name": p.CollectionName,
		"enrich":          p.Enrich,
	}
	if p.CollectionJSON != "" {
		args["collection_json"] = p.CollectionJSON
	}
	if p.FilePath != "" {
		args["file_path"] = p.FilePath
	}
	for k, v := range p.Args {
		args[k] = v
	}

	params := executor.NewExecutorParams(
		id,
		"",
		executor.WithTransport(h.transport),
		executor.WithVectorStore(h.vectorStore),
		executor.WithArgs(args),
	)

	res := exec.Execute(ctx, params)
	if res.Err != nil {
		h.failStream(ctx, ms, "failed to index collection")
		h.failTrace(ctx, trace)
		return fmt.Errorf("ingest failed: %v (%w)", res.Err, asynq.SkipRetry)
	}

	// trace stream replays need a terminal payload even though
	// indexing produces no incremental output
	endpoints, _ := executor.GetTypedResult[int](res, "endpoints_indexed")
	points, _ := executor.GetTypedResult[int](res, "points_indexed")
	err = ms.Send(ctx, transport.MessageStreamPayload{
		Type:    transport.MessageTypeContent,
		Status:  transport.StatusDone,
		Content: fmt.Sprintf("indexed %d endpoints (%d points) into collection '%s'", endpoints, points, p.CollectionName),
	})
	if err != nil {
		slog.Warn("failed to write DONE message to stream", "id", id)
	}

	trace.CompletedAt = time.Now().UnixNano()
	trace.Status = transport.TraceStatusCompleted
	if err := h.transport.SetTrace(ctx, trace); err != nil {
		slog.Error("failed to set trace", "id", id, "err", err)
	}

	return nil
}

func (h TaskHandler) runGenerate(ctx context.Context, id string, p GenerateTaskPayload) error {
	slog.Info("received generate task", "query", p.Query, "pipelineId", p.PipelineId, "language", p.Language)

	pipelineId := p.PipelineId
	if pipelineId == "" {
		pipelineId = DefaultPipelineGenerate
	}

	ms, err := h.transport.GetMessageStream(id)
	if err != nil {
		slog.Error("failed to initialize message stream", "err", err)
		return fmt.Errorf("failed to initialize message stream: %v (%w)", err, asynq.SkipRetry)
	}

	trace := &transport.RequestTrace{
		ID:         id,
		Status:     transport.TraceStatusRunning,
		StartedAt:  time.Now().UnixNano(),
		Query:      p.Query,
		Collection: p.CollectionName,
	}
	if err := h.transport.SetTrace(ctx, trace); err != nil {
		slog.Error("failed to set trace", "id", id, "err", err)
	}

	pipeline, err := registry.GetPipeline(pipelineId)
	if err != nil {
		h.failStream(ctx, ms, "pipeline not found")
		h.failTrace(ctx, trace)
		return fmt.Errorf("pipeline '%s' not found: %v (%w)", pipelineId, err, asynq.SkipRetry)
	}

	args := make(map[string]any)
	if p.CollectionName != "" {
		args["collection_name"] = p.CollectionName
	}
	if p.Language != "" {
		args["language"] = p.Language
	}
	if p.SourceCode != "" {
		args["source_code"] = p.SourceCode
	}
	for k, v := range p.Args {
		args[k] = v
	}

	params := executor.NewExecutorParams(
		id,
		p.Query,
		executor.WithTransport(h.transport),
		executor.WithVectorStore(h.vectorStore),
		executor.WithArgs(args),
	)

	res := pipeline.Execute(ctx, params)
	if res.Err != nil {
		h.failStream(ctx, ms, "pipeline execution failed")
		h.failTrace(ctx, trace)
		return fmt.Errorf("pipeline execution failed: %v (%w)", res.Err, asynq.SkipRetry)
	}

	err = ms.Send(ctx, transport.MessageStreamPayload{
		Content: "task finished",
		Status:  transport.StatusDone,
	})
	if err != nil {
		slog.Warn("failed to write DONE message to stream", "id", id)
	}

	trace.CompletedAt = time.Now().UnixNano()
	trace.Status = transport.TraceStatusCompleted
	if err := h.transport.SetTrace(ctx, trace); err != nil {
		slog.Error("failed to set trace", "id", id, "err", err)
	}

	return nil
}

func (h TaskHandler) failStream(ctx context.Context, ms transport.MessageStream, msg string) {
	err := ms.Send(ctx, transport.MessageStreamPayload{
		Content: msg,
		Status:  transport.StatusErr,
	})
	if err != nil {
		slog.Warn("failed to write ERR message to stream", "id", ms.GetID())
	}
}

func (h TaskHandler) failTrace(ctx context.Context, trace *transport.RequestTrace) {
	trace.CompletedAt = time.Now().UnixNano()
	trace.Status = transport.TraceStatusFailed
	if err := h.transport.SetTrace(ctx, trace); err != nil {
		slog.Error("failed to set trace", "id", trace.ID, "err", err)
	}
}
