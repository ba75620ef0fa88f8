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

package generation

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/mwiktor/apigen/internal/api"
	"github.com/mwiktor/apigen/internal/executor"
	"github.com/mwiktor/apigen/internal/provider"
	"github.com/mwiktor/apigen/internal/registry"
	"github.com/mwiktor/apigen/internal/snippet"
	"github.com/mwiktor/apigen/internal/transport"
)

var codeExecutorDescriptor = "generation.Code"

const DefaultLanguage = "typescript"

const (
	promptGenerateClient = `You are an expert software engineer generating API client code. You have been provided with documentation for the API endpoints most relevant to the user's request.

**INSTRUCTIONS:**

1.  Read the ENDPOINT DOCUMENTATION and identify the endpoints needed to fulfil the REQUEST.
2.  Write idiomatic {{.Language}} code that calls those endpoints: correct HTTP method, URL path, headers, query parameters and request body.
3.  Define typed request and response structures where the documentation describes them.
4.  Handle error responses the documentation mentions.
5.  Only use endpoints present in the documentation. If none match the request, say so instead of inventing endpoints.
6.  Answer with a single code block and a short usage note, nothing else.

**ENDPOINT DOCUMENTATION:**
{{.Context}}

**REQUEST:**
`

	promptRefactor = `You are an expert software engineer refactoring API client code. You have been provided with documentation for the API endpoints most relevant to the user's request, and the user's existing source code.

**INSTRUCTIONS:**

1.  Read the ENDPOINT DOCUMENTATION and the SOURCE CODE.
2.  Rewrite the source code in {{.Language}} according to the REQUEST, keeping its observable behaviour unless the request says otherwise.
3.  Correct any calls that disagree with the documentation: wrong methods, paths, parameters or body shapes.
4.  Preserve the surrounding code style and naming.
5.  Answer with the full rewritten code in a single code block and a short summary of the changes, nothing else.

**ENDPOINT DOCUMENTATION:**
{{.Context}}

**SOURCE CODE:**
{{.Source}}

**REQUEST:**
`
)

func init() {
	exec, err := NewCodeExecutor()
	if err != nil {
		slog.Error("failed to initialize executor", "name", codeExecutorDescriptor, "err", err)
		return
	}

	err = registry.RegisterExecutor(codeExecutorDescriptor, exec)
	if err != nil {
		slog.Error("failed to register executor", "name", codeExecutorDescriptor)
	}
}

type CodeExecutor struct {
	DefaultLMProvider provider.LM
	SnippetCache      *snippet.Cache

	operators map[string]func(context.Context, *executor.ExecutorParams) (map[string]any, error)

	templateGenerateClient *template.Template
	templateRefactor       *template.Template
}

func NewCodeExecutor() (*CodeExecutor, error) {
	lp, err := provider.NewLM(provider.LMTypeOpenAI)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize default providers: %w", err)
	}

	e := &CodeExecutor{
		DefaultLMProvider:      lp,
		SnippetCache:           openSnippetCache(),
		templateGenerateClient: template.Must(template.New("promptGenerateClient").Parse(promptGenerateClient)),
		templateRefactor:       template.Must(template.New("promptRefactor").Parse(promptRefactor)),
	}
	e.operators = map[string]func(context.Context, *executor.ExecutorParams) (map[string]any, error){
		"generate_client": e.generateClient,
		"refactor":        e.refactor,
	}
	return e, nil
}

// openSnippetCache sets up the on-disk snippet cache. A missing or
// unwritable cache dir disables caching rather than failing the
// executor.
func openSnippetCache() *snippet.Cache {
	dir := os.Getenv("APIGEN_CACHE_DIR")
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			slog.Warn("failed to resolve user cache dir, snippet cache disabled", "err", err)
			return nil
		}
		dir = filepath.Join(base, "apigen", "snippets")
	}

	cache, err := snippet.NewCache(dir)
	if err != nil {
		slog.Warn("failed to open snippet cache, caching disabled", "dir", dir, "err", err)
		return nil
	}
	return cache
}

func (e *CodeExecutor) Execute(ctx context.Context, p *executor.ExecutorParams) *executor.ExecutorResult {
	if p.Operator == "" {
		p.Operator = "generate_client"
	}
	slog.Info("executing", "name", codeExecutorDescriptor, "op", p.Operator, "query", p.GetQuery(), "id", p.GetTaskID())

	opFunc, exists := e.operators[p.Operator]
	if !exists {
		return e.buildResult(p.Operator, executor.ErrOperatorNotFound{
			ExecutorName: codeExecutorDescriptor, OperatorName: p.Operator}, nil)
	}

	vals, err := opFunc(ctx, p)

	return e.buildResult(p.Operator, err, vals)
}

func (e *CodeExecutor) generateClient(ctx context.Context, p *executor.ExecutorParams) (map[string]any, error) {
	// 'generate_client' requires following parameter args:
	// context_docs - slice of scored documents describing candidate endpoints
	//
	// Optional args:
	// language - target language for the generated client
	contextDocs, err := executor.GetTypedArg[[]*api.ScoredDocument](p, "context_docs")
	if err != nil {
		return nil, err
	}

	language := DefaultLanguage
	if l, err := executor.GetTypedArg[string](p, "language"); err == nil && l != "" {
		language = l
	}

	collectionName, _ := executor.GetTypedArg[string](p, "collection_name")

	msgStream, err := p.Transport.GetMessageStream(p.GetTaskID())
	if err != nil {
		slog.Warn("failed to create message stream", "id", p.GetTaskID())
		return nil, err
	}

	if e.SnippetCache != nil {
		if s, ok := e.SnippetCache.Get(p.GetQuery(), collectionName, language); ok {
			slog.Info("snippet cache hit", "id", p.GetTaskID(), "language", language)

			msgStream.Send(ctx, transport.MessageStreamPayload{
				Type:    transport.MessageTypeContent,
				Status:  transport.StatusOK,
				Content: s.Code,
			})

			return map[string]any{
				"generation_results": s.Code,
				"cache_hit":          true,
			}, nil
		}
	}

	e.sendContextDocuments(ctx, msgStream, contextDocs)

	type templatePayload struct {
		Context  string
		Language string
	}
	tp := templatePayload{
		Context:  renderContext(contextDocs),
		Language: language,
	}

	var buf bytes.Buffer
	if err := e.templateGenerateClient.Execute(&buf, tp); err != nil {
		return nil, fmt.Errorf("failed to parse prompt template for query '%s': %w", p.GetQuery(), err)
	}

	output, err := e.chat(ctx, p, msgStream, buf.String())
	if err != nil {
		return nil, err
	}

	if e.SnippetCache != nil {
		if err := e.SnippetCache.Put(p.GetQuery(), collectionName, language, output); err != nil {
			slog.Warn("failed to store generated snippet", "err", err)
		}
	}

	return map[string]any{
		"generation_results": output,
		"cache_hit":          false,
	}, nil
}

func (e *CodeExecutor) refactor(ctx context.Context, p *executor.ExecutorParams) (map[string]any, error) {
	// 'refactor' requires following parameter args:
	// context_docs - slice of scored documents describing candidate endpoints
	// source_code - the code to refactor
	//
	// Optional args:
	// language - target language for the rewritten code
	contextDocs, err := executor.GetTypedArg[[]*api.ScoredDocument](p, "context_docs")
	if err != nil {
		return nil, err
	}

	sourceCode, err := executor.GetTypedArg[string](p, "source_code")
	if err != nil {
		return nil, err
	}

	language := DefaultLanguage
	if l, err := executor.GetTypedArg[string](p, "language"); err == nil && l != "" {
		language = l
	}

	msgStream, err := p.Transport.GetMessageStream(p.GetTaskID())
	if err != nil {
		slog.Warn("failed to create message stream", "id", p.GetTaskID())
		return nil, err
	}

	e.sendContextDocuments(ctx, msgStream, contextDocs)

	type templatePayload struct {
		Context  string
		Source   string
		Language string
	}
	tp := templatePayload{
		Context:  renderContext(contextDocs),
		Source:   sourceCode,
		Language: language,
	}

	var buf bytes.Buffer
	if err := e.templateRefactor.Execute(&buf, tp); err != nil {
		return nil, fmt.Errorf("failed to parse prompt template for query '%s': %w", p.GetQuery(), err)
	}

	output, err := e.chat(ctx, p, msgStream, buf.String())
	if err != nil {
		return nil, err
	}

	return map[string]any{
		"generation_results": output,
	}, nil
}

func (e *CodeExecutor) chat(ctx context.Context, p *executor.ExecutorParams, msgStream transport.MessageStream, systemPrompt string) (string, error) {
	stream, err := e.DefaultLMProvider.Chat(ctx, api.ChatRequest{
		Query:        p.GetQuery(),
		SystemPrompt: systemPrompt,
	})
	if err != nil {
		slog.Warn("error creating chat completion stream, cancelling task")
		msgStream.Send(ctx, transport.MessageStreamPayload{
			Content: "something went wrong",
			Status:  transport.StatusErr,
		})
		return "", err
	}
	defer stream.Close()

	output, err := transport.ProcessCompletionStream(ctx, msgStream, stream)
	if err != nil {
		return "", fmt.Errorf("failed to process completion stream: %w", err)
	}
	return output, nil
}

// sendContextDocuments surfaces the retrieved endpoint docs on the
// message stream so clients can show which endpoints informed the
// generated code.
func (e *CodeExecutor) sendContextDocuments(ctx context.Context, msgStream transport.MessageStream, docs []*api.ScoredDocument) {
	for i, doc := range docs {
		err := msgStream.Send(ctx, transport.MessageStreamPayload{
			ID:     i,
			Type:   transport.MessageTypeDocument,
			Status: transport.StatusOK,
			Document: transport.Document{
				Title:   doc.Title,
				Content: doc.Content,
				Source:  doc.Source,
			},
		})
		if err != nil {
			slog.Debug("failed sending context document to message stream", "title", doc.Title)
		}
	}
}

func renderContext(docs []*api.ScoredDocument) string {
	var sb strings.Builder
	for _, doc := range docs {
		sb.WriteString(strings.TrimSpace(doc.Content))
		sb.WriteString("\n---\n")
	}
	return sb.String()
}

func (e *CodeExecutor) buildResult(operator string, err error, values map[string]any) *executor.ExecutorResult {
	return &executor.ExecutorResult{
		Name:     codeExecutorDescriptor,
		Operator: operator,
		Err:      err,
		Values:   values,
	}
}
