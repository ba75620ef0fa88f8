package retrieval

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mwiktor/apigen/internal/api"
	"github.com/mwiktor/apigen/internal/executor"
	"github.com/mwiktor/apigen/internal/provider"
	"github.com/mwiktor/apigen/internal/registry"
	"github.com/mwiktor/apigen/internal/vector"
)

var semanticExecutorDescriptor = "retrieval.Semantic"

// DefaultRetrievalLimit caps how many endpoint chunks are pulled
// from the vector store per query.
const DefaultRetrievalLimit = 8

func init() {
	exec, err := NewSemanticExecutor()
	if err != nil {
		slog.Error("failed to initialize executor", "name", semanticExecutorDescriptor, "err", err)
		return
	}

	err = registry.RegisterExecutor(semanticExecutorDescriptor, exec)
	if err != nil {
		slog.Error("failed to register executor", "name", semanticExecutorDescriptor)
	}
}

type SemanticExecutor struct {
	DefaultEmbedProvider provider.Embedder
	operators            map[string]func(context.Context, *executor.ExecutorParams) (map[string]any, error)
}

func NewSemanticExecutor() (*SemanticExecutor, error) {
	ep, err := provider.NewEmbedder(provider.EmbedderTypeOpenAI)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize default providers: %w", err)
	}

	e := &SemanticExecutor{
		DefaultEmbedProvider: ep,
	}
	e.operators = map[string]func(context.Context, *executor.ExecutorParams) (map[string]any, error){
		"dense": e.denseRetrieval,
	}
	return e, nil
}

func (e *SemanticExecutor) Execute(ctx context.Context, p *executor.ExecutorParams) *executor.ExecutorResult {
	if p.Operator == "" {
		p.Operator = "dense"
	}
	slog.Info("executing", "name", semanticExecutorDescriptor, "op", p.Operator, "query", p.GetQuery(), "id", p.GetTaskID())

	opFunc, exists := e.operators[p.Operator]
	if !exists {
		return e.buildResult(p.Operator, executor.ErrOperatorNotFound{
			ExecutorName: semanticExecutorDescriptor, OperatorName: p.Operator}, nil)
	}

	vals, err := opFunc(ctx, p)

	return e.buildResult(p.Operator, err, vals)
}

func (e *SemanticExecutor) denseRetrieval(ctx context.Context, p *executor.ExecutorParams) (map[string]any, error) {
	// 'dense' requires following parameter args:
	// collection_name - name of the collection to use for the vector store
	//
	// Optional args:
	// limit - maximum number of chunks to retrieve
	// method - restrict results to endpoints with this HTTP method
	// folder - restrict results to endpoints under this folder path
	collectionName, err := executor.GetTypedArg[string](p, "collection_name")
	if err != nil {
		return nil, err
	}

	if p.VectorStore == nil {
		return nil, fmt.Errorf("operator failed: vector store is not initialized")
	}

	vec, err := e.DefaultEmbedProvider.EmbedQuery(ctx, p.GetQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to embed query '%s': %w", p.GetQuery(), err)
	}

	limit := uint(DefaultRetrievalLimit)
	if l, err := executor.GetTypedArg[uint64](p, "limit"); err == nil && l > 0 {
		limit = uint(l)
	}

	opts := []vector.QueryParamsOption{
		vector.WithPayload(true),
		vector.WithLimit(limit),
	}

	if method, err := executor.GetTypedArg[string](p, "method"); err == nil && method != "" {
		opts = append(opts, vector.WithFilter(&vector.QueryMatch{Key: "method", Value: method}))
	}
	if folder, err := executor.GetTypedArg[string](p, "folder"); err == nil && folder != "" {
		opts = append(opts, vector.WithFilter(&vector.QueryMatch{Key: "folder", Value: folder}))
	}

	queryParams := vector.NewQueryParams(collectionName, vec, opts...)

	points, err := p.VectorStore.Query(ctx, queryParams)
	if err != nil {
		return nil, fmt.Errorf("failed to get results for query '%s': %w", p.GetQuery(), err)
	}

	scoredDocs := make([]*api.ScoredDocument, 0, len(points))
	for _, pt := range points {
		t, ok := pt.Payload["text"]
		if !ok {
			slog.Warn("malformed retrieved context point: missing 'text' field in payload", "id", pt.ID, "payload", pt.Payload)
			continue
		}
		scoredDocs = append(scoredDocs, &api.ScoredDocument{
			Content: t,
			Score:   float64(pt.Score),
			Title:   pt.Payload["title"],
			Source:  pt.Payload["endpoint"],
		})
	}

	return map[string]any{
		"context_points": points,
		"context_docs":   scoredDocs,
	}, nil
}

func (e *SemanticExecutor) buildResult(operator string, err error, values map[string]any) *executor.ExecutorResult {
	return &executor.ExecutorResult{
		Name:     semanticExecutorDescriptor,
		Operator: operator,
		Err:      err,
		Values:   values,
	}
}
