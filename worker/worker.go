package worker

import (
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/mwiktor/apigen/internal/config"
	"github.com/mwiktor/apigen/internal/registry"
	"github.com/mwiktor/apigen/internal/tasks"
	"github.com/mwiktor/apigen/internal/transport"
	"github.com/mwiktor/apigen/internal/vector"

	_ "github.com/mwiktor/apigen/internal/modules/generation"
	_ "github.com/mwiktor/apigen/internal/modules/indexing"
	_ "github.com/mwiktor/apigen/internal/modules/postretrieval"
	_ "github.com/mwiktor/apigen/internal/modules/preretrieval"
	_ "github.com/mwiktor/apigen/internal/modules/retrieval"
)

type WorkerConfig struct {
	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisDB       int

	QdrantHost string
	QdrantPort int

	Concurrency int
}

func DefaultConfig() WorkerConfig {
	return WorkerConfig{
		RedisAddr:   "localhost:6379",
		Concurrency: 10,
	}
}

type Worker struct {
	config WorkerConfig

	rdb         *redis.Client
	asynqServer *asynq.Server

	transport   transport.Transport
	vectorStore vector.Store
}

func New(config WorkerConfig) *Worker {
	return &Worker{
		config: config,
	}
}

func (w Worker) RegisterPipelines(path string) error {
	pc, err := config.ReadConfig(path)
	if err != nil {
		return err
	}

	pipelines, err := config.ParsePipelines(pc)
	if err != nil {
		return fmt.Errorf("failed to parse pipelines config: %v", err)
	}

	err = registry.BatchRegisterPipelines(pipelines)
	if err != nil {
		return fmt.Errorf("failed to register pipelines: %v", err)
	}
	return nil
}

func (w *Worker) Start() error {
	w.rdb = redis.NewClient(&redis.Options{
		Addr:     w.config.RedisAddr,
		Username: w.config.RedisUsername,
		Password: w.config.RedisPassword,
		DB:       w.config.RedisDB,
	})
	defer w.rdb.Close()

	w.asynqServer = asynq.NewServerFromRedisClient(
		w.rdb,
		asynq.Config{
			Concurrency: w.config.Concurrency,
		},
	)

	w.transport = transport.NewRedisTransport(w.rdb)

	vs, err := vector.NewStore("qdrant", w.config.QdrantHost, w.config.QdrantPort)
	if err != nil {
		return fmt.Errorf("failed to initialize vector store: %w", err)
	}
	w.vectorStore = vs
	defer w.vectorStore.Close()

	handler := tasks.NewTaskHandler(w.transport, w.vectorStore)

	mux := asynq.NewServeMux()
	mux.Handle(tasks.TypeIngest, handler)
	mux.Handle(tasks.TypeGenerate, handler)

	if err := w.asynqServer.Run(mux); err != nil {
		return err
	}
	return nil
}
