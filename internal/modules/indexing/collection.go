// Copyright 2025 Marcin Wiktor
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to use,
// copy, modify, merge, publish, distribute, sublicense, and/or sell copies of the
// Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND,
// EXPRESS OR IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES
// OF MERCHANTABILITY, FITNESS FOR A PARTICULAR PURPOSE AND
// NONINFRINGEMENT. IN NO EVENT SHALL THE AUTHORS OR COPYRIGHT
// HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER LIABILITY,
// WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING
// FROM, OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR
// OTHER DEALINGS IN THE SOFTWARE.

package indexing

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"text/template"

	"github.com/mwiktor/apigen/internal/api"
	"github.com/mwiktor/apigen/internal/collection"
	"github.com/mwiktor/apigen/internal/executor"
	"github.com/mwiktor/apigen/internal/provider"
	"github.com/mwiktor/apigen/internal/registry"
	"github.com/mwiktor/apigen/internal/splitter"
	"github.com/mwiktor/apigen/internal/vector"
)

var collectionExecutorDescriptor = "indexing.Collection"

// DefaultEnrichThreshold is the minimum description length, in
// characters, below which an endpoint is considered undocumented
// and eligible for model enrichment.
const DefaultEnrichThreshold = 40

const promptEnrich = `You are an expert API technical writer. Write a concise, factual description of the HTTP endpoint below based on its method, path, parameters and example responses. Describe what the endpoint does, its inputs and what it returns. Answer only with the description, no additional preamble or suffix.

Endpoint:
{{.Document}}

Description:
`

func init() {
	exec, err := NewCollectionExecutor()
	if err != nil {
		slog.Error("failed to initialize executor", "name", collectionExecutorDescriptor, "err", err)
		return
	}

	err = registry.RegisterExecutor(collectionExecutorDescriptor, exec)
	if err != nil {
		slog.Error("failed to register executor", "name", collectionExecutorDescriptor, "err", err)
	}
}

type CollectionExecutor struct {
	DefaultEmbedProvider provider.Embedder
	DefaultLMProvider    provider.LM

	// Splitter is created on first use, the default tokenizer
	// fetches its vocabulary lazily.
	Splitter *splitter.Splitter

	promptEnrich *template.Template
	operators    map[string]func(context.Context, *executor.ExecutorParams) (map[string]any, error)
}

func NewCollectionExecutor() (*CollectionExecutor, error) {
	ep, err1 := provider.NewEmbedder(provider.EmbedderTypeOpenAI)
	lp, err2 := provider.NewLM(provider.LMTypeOpenAI)
	joinedErr := errors.Join(err1, err2)
	if joinedErr != nil {
		return nil, fmt.Errorf("failed to initialize default providers: %w", joinedErr)
	}

	templ := template.Must(template.New("promptEnrich").Parse(promptEnrich))

	e := &CollectionExecutor{
		DefaultEmbedProvider: ep,
		DefaultLMProvider:    lp,
		promptEnrich:         templ,
	}
	e.operators = map[string]func(context.Context, *executor.ExecutorParams) (map[string]any, error){
		"index_collection": e.indexCollection,
	}
	return e, nil
}

func (e *CollectionExecutor) Execute(ctx context.Context, p *executor.ExecutorParams) *executor.ExecutorResult {
	if p.Operator == "" {
		p.Operator = "index_collection"
	}
	slog.Info("executing", "name", collectionExecutorDescriptor, "op", p.Operator, "id", p.GetTaskID())

	opFunc, exists := e.operators[p.Operator]
	if !exists {
		return e.buildResult(p.Operator, executor.ErrOperatorNotFound{
			ExecutorName: collectionExecutorDescriptor, OperatorName: p.Operator}, nil)
	}

	vals, err := opFunc(ctx, p)
	if err == nil {
		slog.Info("indexing results", "values", vals)
	}

	return e.buildResult(p.Operator, err, vals)
}

func (e *CollectionExecutor) indexCollection(ctx context.Context, p *executor.ExecutorParams) (map[string]any, error) {
	// 'index_collection' requires following parameter args:
	// collection_name - name of the collection to use for the vector store
	// and one of:
	// collection_json - raw collection export content
	// file_path - path to a collection export on disk
	collectionName, err := executor.GetTypedArg[string](p, "collection_name")
	if err != nil {
		return nil, err
	}

	data, err := e.readCollectionData(p)
	if err != nil {
		return nil, err
	}

	col, err := collection.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse collection: %w", err)
	}

	endpoints := col.Flatten()
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("collection '%s' contains no endpoints", col.Info.Name)
	}

	enrich, _ := executor.GetTypedArg[bool](p, "enrich")
	if enrich {
		threshold := DefaultEnrichThreshold
		if t, err := executor.GetTypedArg[uint64](p, "enrich_threshold"); err == nil {
			threshold = int(t)
		}
		e.enrichEndpoints(ctx, endpoints, threshold)
	}

	if p.VectorStore == nil {
		return nil, fmt.Errorf("operator failed: vector store is not initialized")
	}

	exists, err := p.VectorStore.CollectionExists(ctx, collectionName)
	if err != nil {
		return nil, fmt.Errorf("failed to communicate with vector store: %w", err)
	}
	if !exists {
		slog.Info("requested collection not found, creating", "name", collectionName)

		err := p.VectorStore.CreateCollection(ctx, vector.Collection{
			Name:       collectionName,
			Dimensions: e.DefaultEmbedProvider.GetDimensions(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create collection: %w", err)
		}
	}

	if e.Splitter == nil {
		sp, err := splitter.New()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize splitter: %w", err)
		}
		e.Splitter = sp
	}

	docRequests := make([]*api.EmbedDocumentRequest, 0, len(endpoints))
	for _, ep := range endpoints {
		chunks := e.Splitter.Split(ep.Document())
		if len(chunks) == 0 {
			continue
		}

		docRequests = append(docRequests, &api.EmbedDocumentRequest{
			Title:  ep.Title(),
			Chunks: chunks,
			Meta:   ep.Meta(),
		})
	}

	if len(docRequests) == 0 {
		return nil, fmt.Errorf("failed to index collection: no endpoints chunked")
	}

	embeddings, err := e.DefaultEmbedProvider.EmbedDocuments(ctx, docRequests)
	if err != nil {
		return nil, fmt.Errorf("failed to embed %d documents: %w", len(docRequests), err)
	}

	points := vector.CreatePoints(embeddings)
	err = p.VectorStore.Upsert(ctx, collectionName, points)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert points to vector store: %w", err)
	}

	return map[string]any{
		"points_indexed":    len(points),
		"endpoints_indexed": len(docRequests),
	}, nil
}

func (e *CollectionExecutor) readCollectionData(p *executor.ExecutorParams) ([]byte, error) {
	if raw, err := executor.GetTypedArg[string](p, "collection_json"); err == nil {
		return []byte(raw), nil
	}

	path, err := executor.GetTypedArg[string](p, "file_path")
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read collection file: %w", err)
	}
	return data, nil
}

// enrichEndpoints asks the model to describe endpoints whose own
// description is missing or too short to retrieve against. Failures
// are logged and the original description kept.
func (e *CollectionExecutor) enrichEndpoints(ctx context.Context, endpoints []*collection.Endpoint, threshold int) {
	for _, ep := range endpoints {
		if len(ep.Description) >= threshold {
			continue
		}

		type templatePayload struct {
			Document string
		}
		tp := templatePayload{Document: ep.Document()}

		var buf bytes.Buffer
		if err := e.promptEnrich.Execute(&buf, tp); err != nil {
			slog.Error("failed to parse enrich prompt template", "endpoint", ep.Title(), "err", err)
			continue
		}

		cs, err := e.DefaultLMProvider.Generate(ctx, api.GenerationRequest{
			Prompt:      buf.String(),
			Temperature: 0.2,
		})
		if err != nil {
			slog.Error("failed to enrich endpoint, keeping original description", "endpoint", ep.Title(), "err", err)
			continue
		}

		desc, err := api.StreamReadAll(ctx, cs)
		if err != nil {
			slog.Error("failed to read enrichment stream, keeping original description", "endpoint", ep.Title(), "err", err)
			continue
		}

		ep.Description = desc
	}
}

func (e *CollectionExecutor) buildResult(operator string, err error, values map[string]any) *executor.ExecutorResult {
	return &executor.ExecutorResult{
		Name:     collectionExecutorDescriptor,
		Operator: operator,
		Err:      err,
		Values:   values,
	}
}
