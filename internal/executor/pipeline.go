package executor

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/mwiktor/apigen/internal/api"
)

type PipelineNode struct {
	executor Executor
	operator string
	args     map[string]any
}

func NewPipelineNode(executor Executor, operator string, args map[string]any) PipelineNode {
	node := PipelineNode{
		executor: executor,
		operator: operator,
		args:     args,
	}
	return node
}

func (n *PipelineNode) Execute(ctx context.Context, params *ExecutorParams) *ExecutorResult {
	return n.executor.Execute(ctx, params)
}

// Pipeline runs a linear sequence of executor nodes. Each node
// receives a copy of the shared params extended with its own
// operator and args, and may feed a transformed query or retrieved
// context documents forward to the remaining nodes.
type Pipeline struct {
	identifier     string
	description    string
	collectionName string

	nodes []PipelineNode
}

func NewPipeline(identifier string, description string, collectionName string, nodes []PipelineNode) *Pipeline {
	pipeline := &Pipeline{
		identifier:     identifier,
		description:    description,
		collectionName: collectionName,
		nodes:          nodes,
	}
	return pipeline
}

func (p *Pipeline) Identifier() string {
	return p.identifier
}

func (p *Pipeline) Execute(ctx context.Context, params *ExecutorParams) *ExecutorResult {
	nodeIdx := 0
	// callers may pin a collection per request, otherwise the
	// pipeline default applies
	if _, ok := params.Args["collection_name"]; !ok {
		params.Args["collection_name"] = p.collectionName
	}

	slog.Info("executing pipeline", "pipelineId", p.identifier, "taskId", params.GetTaskID())

	for {
		node := p.nodes[nodeIdx]
		nodeParams := params.Copy()
		nodeParams.Operator = node.operator
		maps.Copy(nodeParams.Args, node.args)

		result := node.executor.Execute(ctx, nodeParams)

		if result.Err != nil {
			slog.Error("failed to execute node", "error", fmt.Sprintf("(%T): %v", result.Err, result.Err))
			return result
		}

		nodeIdx++
		if nodeIdx >= len(p.nodes) {
			break
		}

		if queryTransformed, ok := result.Values["query_transformed"].(string); ok {
			// node returned a rewritten query, carry it forward
			params = params.WithQuery(queryTransformed)
		}

		if newContext, ok := result.Values["context_docs"].([]*api.ScoredDocument); ok {
			if replace, ok := result.Values["replace_context"].(bool); ok && replace {
				params.Args["context_docs"] = newContext
			} else {
				current, ok := params.Args["context_docs"]
				if !ok {
					params.Args["context_docs"] = newContext
				} else {
					currentTyped, ok := current.([]*api.ScoredDocument)
					if !ok {
						slog.Error("pipeline error", "msg", "invalid type of context docs in params")
					}
					params.Args["context_docs"] = append(currentTyped, newContext...)
				}
			}
		}
	}

	return &ExecutorResult{
		Name: p.identifier,
		Err:  nil,
	}
}
