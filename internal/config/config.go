// Package config reads the pipeline definition file and turns it
// into executable pipelines backed by registered executors.
package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/mwiktor/apigen/internal/executor"
	"github.com/mwiktor/apigen/internal/registry"
)

var (
	ErrNodeMissingChildren = errors.New("pipeline must contain at least one node")
	ErrInvalidExecutor     = errors.New("invalid executor")
)

func ReadConfig(path string) (PipelineConfig, error) {
	var pc PipelineConfig

	file, err := os.ReadFile(path)
	if err != nil {
		return pc, fmt.Errorf("failed to read pipeline config: %w", err)
	}

	if err := yaml.Unmarshal(file, &pc); err != nil {
		return pc, fmt.Errorf("failed to parse pipeline config: %w", err)
	}

	return pc, nil
}

func ParsePipelines(conf PipelineConfig) (map[string]*executor.Pipeline, error) {
	pipelines := make(map[string]*executor.Pipeline)

	for _, cp := range conf.Pipelines {
		nodes, err := parsePipelineNodes(cp.Nodes)
		if err != nil {
			return nil, fmt.Errorf("failed to parse node on '%s' pipeline: %w", cp.Identifier, err)
		}

		collectionName := cp.CollectionName
		if collectionName == "" {
			collectionName = "default"
		}

		pipeline := executor.NewPipeline(
			cp.Identifier,
			cp.Description,
			collectionName,
			nodes,
		)

		pipelines[cp.Identifier] = pipeline
	}

	return pipelines, nil
}

func parsePipelineNodes(nodes []PipelineNode) ([]executor.PipelineNode, error) {
	if len(nodes) == 0 {
		return nil, ErrNodeMissingChildren
	}

	execNodes := make([]executor.PipelineNode, 0, len(nodes))
	for _, cnode := range nodes {
		exec, err := registry.GetExecutor(cnode.Module)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidExecutor, err)
		}

		execNodes = append(execNodes, executor.NewPipelineNode(exec, cnode.Operator, cnode.Args))
	}

	return execNodes, nil
}
