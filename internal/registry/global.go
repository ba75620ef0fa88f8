package registry

import (
	"fmt"
	"log/slog"

	"github.com/mwiktor/apigen/internal/executor"
)

var (
	executors = New[string, executor.Executor]()
	pipelines = New[string, *executor.Pipeline]()
)

func RegisterExecutor(name string, exec executor.Executor) error {
	if executors.Exists(name) {
		return fmt.Errorf("failed to register, executor with name '%s' already exists", name)
	}
	slog.Info("registering executor", "name", name)
	executors.Register(name, exec)
	return nil
}

func GetExecutor(name string) (executor.Executor, error) {
	exec, exists := executors.Get(name)
	if !exists {
		return nil, fmt.Errorf("executor with name '%s' does not exist", name)
	}
	return exec, nil
}

func ListExecutors() []string {
	return executors.List()
}

func BatchRegisterPipelines(ps map[string]*executor.Pipeline) error {
	for name, p := range ps {
		err := RegisterPipeline(name, p)
		if err != nil {
			return err
		}
	}
	slog.Info("registered pipelines", "names", ListPipelines())
	return nil
}

func RegisterPipeline(name string, p *executor.Pipeline) error {
	if pipelines.Exists(name) {
		return fmt.Errorf("failed to register, pipeline with name '%s' already exists", name)
	}
	slog.Info("registering pipeline", "name", name)
	pipelines.Register(name, p)
	return nil
}

func GetPipeline(name string) (*executor.Pipeline, error) {
	p, exists := pipelines.Get(name)
	if !exists {
		return nil, fmt.Errorf("pipeline with name '%s' does not exist", name)
	}
	return p, nil
}

func ListPipelines() []string {
	return pipelines.List()
}
