package tasks

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	TypeIngest   = "apigen:ingest"
	TypeGenerate = "apigen:generate"
)

const (
	// DefaultPipelineGenerate is used when a generate request does
	// not name a pipeline.
	DefaultPipelineGenerate = "generate"

	// IndexingExecutorName handles ingest tasks, they run a single
	// executor rather than a full pipeline.
	IndexingExecutorName = "indexing.Collection"
)

type IngestTaskPayload struct {
	CollectionName string            `json:"collection_name"`
	CollectionJSON string            `json:"collection_json,omitempty"`
	FilePath       string            `json:"file_path,omitempty"`
	Enrich         bool              `json:"enrich"`
	Args           map[string]string `json:"args,omitempty"`
}

func NewIngestTask(p IngestTaskPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeIngest, payload), nil
}

type GenerateTaskPayload struct {
	Query          string            `json:"query"`
	PipelineId     string            `json:"pipeline_id,omitempty"`
	CollectionName string            `json:"collection_name,omitempty"`
	Language       string            `json:"language,omitempty"`
	SourceCode     string            `json:"source_code,omitempty"`
	Args           map[string]string `json:"args,omitempty"`
}

func NewGenerateTask(p GenerateTaskPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeGenerate, payload), nil
}
