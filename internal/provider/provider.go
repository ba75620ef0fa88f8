package provider

import (
	"context"
	"errors"

	"github.com/mwiktor/apigen/internal/api"
	"github.com/mwiktor/apigen/internal/provider/cohere"
	"github.com/mwiktor/apigen/internal/provider/gemini"
	"github.com/mwiktor/apigen/internal/provider/jina"
	"github.com/mwiktor/apigen/internal/provider/openai"
)

var (
	ErrInvalidLMType       = errors.New("no language model provider found for given type")
	ErrInvalidEmbedderType = errors.New("no embeddings provider found for given type")
	ErrInvalidRerankerType = errors.New("no reranker provider found for given type")
)

type LMType int
type EmbedderType int
type RerankerType int

const (
	LMTypeOpenAI LMType = iota
	LMTypeGemini
)

const (
	EmbedderTypeOpenAI EmbedderType = iota
	EmbedderTypeGemini
	EmbedderTypeCohere
	EmbedderTypeJina
)

const (
	RerankerTypeCohere RerankerType = iota
)

var lmTypeMap = map[string]LMType{
	"openai": LMTypeOpenAI,
	"gemini": LMTypeGemini,
}

var embedderTypeMap = map[string]EmbedderType{
	"openai": EmbedderTypeOpenAI,
	"gemini": EmbedderTypeGemini,
	"cohere": EmbedderTypeCohere,
	"jina":   EmbedderTypeJina,
}

// LM generates text through a hosted chat-completion API.
type LM interface {
	Generate(ctx context.Context, req api.GenerationRequest) (api.CompletionStream, error)
	Chat(ctx context.Context, req api.ChatRequest) (api.CompletionStream, error)
}

// Embedder embeds queries and documents through a hosted embedding API.
type Embedder interface {
	EmbedQuery(ctx context.Context, q string) ([]float32, error)
	EmbedDocuments(ctx context.Context, docs []*api.EmbedDocumentRequest) ([]*api.DocumentEmbedding, error)
	GetDimensions() uint
}

type Reranker interface {
	Rerank(ctx context.Context, req api.RerankRequest) (*api.RerankResponse, error)
}

func NewLM(t LMType) (LM, error) {
	switch t {
	case LMTypeOpenAI:
		return openai.New(), nil
	case LMTypeGemini:
		return gemini.New(), nil
	default:
		return nil, ErrInvalidLMType
	}
}

func NewLMByName(name string) (LM, error) {
	t, ok := lmTypeMap[name]
	if !ok {
		return nil, ErrInvalidLMType
	}
	return NewLM(t)
}

func NewEmbedder(t EmbedderType) (Embedder, error) {
	switch t {
	case EmbedderTypeOpenAI:
		return openai.New(), nil
	case EmbedderTypeGemini:
		return gemini.New(), nil
	case EmbedderTypeCohere:
		return cohere.New(), nil
	case EmbedderTypeJina:
		return jina.New(), nil
	default:
		return nil, ErrInvalidEmbedderType
	}
}

func NewEmbedderByName(name string) (Embedder, error) {
	t, ok := embedderTypeMap[name]
	if !ok {
		return nil, ErrInvalidEmbedderType
	}
	return NewEmbedder(t)
}

func NewReranker(t RerankerType) (Reranker, error) {
	switch t {
	case RerankerTypeCohere:
		return cohere.New(), nil
	default:
		return nil, ErrInvalidRerankerType
	}
}
