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

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/alexflint/go-arg"
	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/mwiktor/apigen/internal/executor"
	"github.com/mwiktor/apigen/internal/registry"
	"github.com/mwiktor/apigen/internal/tasks"
	"github.com/mwiktor/apigen/internal/transport"
	"github.com/mwiktor/apigen/internal/vector"
	"github.com/mwiktor/apigen/server"
	"github.com/mwiktor/apigen/worker"

	_ "github.com/mwiktor/apigen/internal/modules/generation"
	_ "github.com/mwiktor/apigen/internal/modules/indexing"
	_ "github.com/mwiktor/apigen/internal/modules/postretrieval"
	_ "github.com/mwiktor/apigen/internal/modules/preretrieval"
	_ "github.com/mwiktor/apigen/internal/modules/retrieval"
)

const (
	ProgramName   = "apigen"
	Version       = "v0.1.0"
	RepositoryUrl = "github.com/mwiktor/apigen"
)

type serveCmd struct{}

type workerCmd struct{}

type ingestCmd struct {
	File       string `arg:"positional,required" help:"path to a collection export file"`
	Collection string `arg:"--collection,-c" help:"vector store collection name (defaults to the export name)"`
	Enrich     bool   `arg:"--enrich" help:"describe undocumented endpoints with the language model"`
}

type generateCmd struct {
	Query      string `arg:"positional,required" help:"what the generated code should do"`
	Collection string `arg:"--collection,-c" default:"default" help:"vector store collection name"`
	Language   string `arg:"--language,-l" help:"target language for the generated code"`
	Source     string `arg:"--source,-s" help:"path to existing code to refactor"`
	Output     string `arg:"--output,-o" help:"write the generated code to a file instead of stdout"`
}

type args struct {
	Serve    *serveCmd    `arg:"subcommand:serve" help:"start the apigen server"`
	Worker   *workerCmd   `arg:"subcommand:work" help:"start the apigen worker"`
	Ingest   *ingestCmd   `arg:"subcommand:ingest" help:"index a collection export into the vector store"`
	Generate *generateCmd `arg:"subcommand:generate" help:"generate client code for an indexed collection"`

	Config string `arg:"--config" default:"apigen.yaml" help:"path to the app config file"`
}

func (args) Version() string {
	return fmt.Sprintf("%s %s", ProgramName, Version)
}

func (args) Epilogue() string {
	return fmt.Sprintf("For more information visit %s", RepositoryUrl)
}

func main() {
	var args args

	p, err := arg.NewParser(arg.Config{Program: strings.ToLower(ProgramName)}, &args)
	if err != nil {
		log.Fatalf("there was an error in the definition of the Go struct: %v", err)
	}
	p.MustParse(os.Args[1:])

	if p.Subcommand() == nil {
		p.WriteUsage(os.Stdout)
		os.Exit(0)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "err", err)
	}

	conf, err := ReadConfig(args.Config)
	if err != nil {
		log.Fatalf("failed to read config: %v", err)
	}

	switch cmd := p.Subcommand().(type) {
	case *serveCmd:
		err = startServer(conf)
	case *workerCmd:
		err = startWorker(conf)
	case *ingestCmd:
		err = runIngest(conf, cmd)
	case *generateCmd:
		err = runGenerate(conf, cmd)
	default:
		p.FailSubcommand("unrecognized command", p.SubcommandNames()...)
	}

	if err != nil {
		log.Fatal(err)
	}
}

func startServer(conf *config) error {
	srv := server.New(server.ServerConfig{
		ListenHost:    conf.Server.ListenHost,
		ListenPort:    conf.Server.ListenPort,
		RedisAddr:     conf.Transport.Addr,
		RedisUsername: conf.Transport.Username,
		RedisPassword: conf.Transport.Password,
		RedisDB:       conf.Transport.DB,
	})
	return srv.Serve()
}

func startWorker(conf *config) error {
	w := worker.New(worker.WorkerConfig{
		RedisAddr:     conf.Transport.Addr,
		RedisUsername: conf.Transport.Username,
		RedisPassword: conf.Transport.Password,
		RedisDB:       conf.Transport.DB,
		QdrantHost:    conf.VectorStore.Host,
		QdrantPort:    conf.VectorStore.Port,
		Concurrency:   conf.Worker.Workers,
	})

	if err := w.RegisterPipelines(conf.PipelineConfigPath); err != nil {
		return err
	}
	return w.Start()
}

// runIngest indexes a collection export without going through the
// task queue, for local use against a running vector store.
func runIngest(conf *config, cmd *ingestCmd) error {
	vs, err := newVectorStore(conf)
	if err != nil {
		return err
	}
	defer vs.Close()

	exec, err := registry.GetExecutor(tasks.IndexingExecutorName)
	if err != nil {
		return fmt.Errorf("indexing executor not found: %w", err)
	}

	collectionName := cmd.Collection
	if collectionName == "" {
		collectionName = "default"
	}

	params := executor.NewExecutorParams(
		uuid.NewString(),
		"",
		executor.WithTransport(transport.NewLocalTransport(os.Stdout)),
		executor.WithVectorStore(vs),
		executor.WithArgs(map[string]any{
			"collection_name": collectionName,
			"file_path":       cmd.File,
			"enrich":          cmd.Enrich,
		}),
	)

	res := exec.Execute(context.Background(), params)
	if res.Err != nil {
		return fmt.Errorf("ingest failed: %w", res.Err)
	}

	points, _ := executor.GetTypedResult[int](res, "points_indexed")
	endpoints, _ := executor.GetTypedResult[int](res, "endpoints_indexed")
	fmt.Printf("indexed %d endpoints (%d points) into collection '%s'\n", endpoints, points, collectionName)
	return nil
}

// runGenerate runs the retrieval and generation executors directly,
// streaming the model output to stdout or the requested file.
func runGenerate(conf *config, cmd *generateCmd) error {
	vs, err := newVectorStore(conf)
	if err != nil {
		return err
	}
	defer vs.Close()

	retrieve, err := registry.GetExecutor("retrieval.Semantic")
	if err != nil {
		return fmt.Errorf("retrieval executor not found: %w", err)
	}
	generate, err := registry.GetExecutor("generation.Code")
	if err != nil {
		return fmt.Errorf("generation executor not found: %w", err)
	}

	args := make(map[string]any)
	if cmd.Language != "" {
		args["language"] = cmd.Language
	}

	operator := "generate_client"
	if cmd.Source != "" {
		source, err := os.ReadFile(cmd.Source)
		if err != nil {
			return fmt.Errorf("failed to read source file: %w", err)
		}
		args["source_code"] = string(source)
		operator = "refactor"
	}

	out := os.Stdout
	if cmd.Output != "" {
		f, err := os.Create(cmd.Output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	pipeline := executor.NewPipeline(
		"local",
		"ad-hoc retrieval and generation",
		cmd.Collection,
		[]executor.PipelineNode{
			executor.NewPipelineNode(retrieve, "dense", nil),
			executor.NewPipelineNode(generate, operator, nil),
		},
	)

	params := executor.NewExecutorParams(
		uuid.NewString(),
		cmd.Query,
		executor.WithTransport(transport.NewLocalTransport(out)),
		executor.WithVectorStore(vs),
		executor.WithArgs(args),
	)

	res := pipeline.Execute(context.Background(), params)
	if res.Err != nil {
		return fmt.Errorf("generation failed: %w", res.Err)
	}

	fmt.Fprintln(out)
	return nil
}

func newVectorStore(conf *config) (vector.Store, error) {
	return vector.NewStore("qdrant", conf.VectorStore.Host, conf.VectorStore.Port)
}
