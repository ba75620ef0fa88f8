package jina

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mwiktor/apigen/internal/api"
	"github.com/mwiktor/apigen/internal/http"
)

const (
	Endpoint            = "https://api.jina.ai"
	EmbedItemsMaxLength = 2048
)

type embeddingResponse struct {
	Model     string `json:"model"`
	UsageInfo struct {
		TotalTokens  int `json:"total_tokens"`
		PromptTokens int `json:"prompt_tokens"`
	} `json:"usage"`
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type JinaAIProvider struct {
	client     http.Client
	vectorDims uint
}

func New() *JinaAIProvider {
	c := http.NewClient(
		Endpoint,
		http.WithMaxRetries(3),
		http.WithApiKey(os.Getenv("JINA_API_KEY")),
	)
	p := &JinaAIProvider{
		client:     c,
		vectorDims: 1024,
	}
	return p
}

func (p JinaAIProvider) EmbedQuery(ctx context.Context, q string) ([]float32, error) {
	resp, err := p.requestEmbedding(ctx, []string{q}, "retrieval.query")
	if err != nil {
		return nil, err
	}

	if len(resp.Data) == 0 {
		return nil, errors.New("failed to deserialize embeddings")
	}

	return resp.Data[0].Embedding, nil
}

func (p JinaAIProvider) EmbedDocuments(ctx context.Context, docs []*api.EmbedDocumentRequest) ([]*api.DocumentEmbedding, error) {
	docs = p.splitDocsReqLen(EmbedItemsMaxLength, docs)

	var mu sync.Mutex
	embeddings := make([]*api.DocumentEmbedding, 0, len(docs))

	var g errgroup.Group
	for _, doc := range docs {
		g.Go(func() error {
			resp, err := p.requestEmbedding(ctx, doc.Chunks, "retrieval.passage")
			if err != nil {
				return err
			}

			vals := make([][]float32, len(resp.Data))
			for _, e := range resp.Data {
				vals[e.Index] = e.Embedding
			}

			mu.Lock()
			embeddings = append(embeddings, &api.DocumentEmbedding{
				Title:  doc.Title,
				Chunks: doc.Chunks,
				Values: vals,
				Meta:   doc.Meta,
			})
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return embeddings, nil
}

func (p JinaAIProvider) GetDimensions() uint {
	return p.vectorDims
}

func (p JinaAIProvider) requestEmbedding(ctx context.Context, input []string, task string) (*embeddingResponse, error) {
	requestData := map[string]any{
		"input":      input,
		"model":      "jina-embeddings-v3",
		"task":       task,
		"dimensions": p.vectorDims,
	}

	resp, err := p.client.Request(ctx, http.MethodPost, "/v1/embeddings", requestData)
	if err != nil {
		return nil, err
	}

	jsonData, err := json.Marshal(resp)
	if err != nil {
		return nil, err
	}

	var embeddingResponse embeddingResponse
	err = json.Unmarshal(jsonData, &embeddingResponse)
	if err != nil {
		return nil, err
	}

	return &embeddingResponse, nil
}

func (p JinaAIProvider) splitDocsReqLen(maxLen int, docs []*api.EmbedDocumentRequest) []*api.EmbedDocumentRequest {
	newDocs := make([]*api.EmbedDocumentRequest, 0, len(docs))

	for _, doc := range docs {
		if len(doc.Chunks) < maxLen {
			newDocs = append(newDocs, doc)
			continue
		}

		nParts := (len(doc.Chunks) / maxLen) + 1
		for i := range nParts {
			start, end := i*maxLen, (i+1)*maxLen
			if end > len(doc.Chunks) {
				end = len(doc.Chunks)
			}

			newDocs = append(newDocs, &api.EmbedDocumentRequest{
				Title:  doc.Title,
				Chunks: doc.Chunks[start:end],
				Meta:   doc.Meta,
			})
		}
	}

	return newDocs
}
