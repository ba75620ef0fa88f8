package transport

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// LocalTransport backs CLI runs where no broker is available. Stream
// content is written straight to the configured writer and traces are
// kept in memory for the lifetime of the process.
type LocalTransport struct {
	w io.Writer

	mu     sync.RWMutex
	traces map[string]*RequestTrace
}

func NewLocalTransport(w io.Writer) *LocalTransport {
	return &LocalTransport{
		w:      w,
		traces: make(map[string]*RequestTrace),
	}
}

func (t *LocalTransport) GetMessageStream(id string) (MessageStream, error) {
	if len(id) == 0 {
		return nil, fmt.Errorf("invalid stream ID")
	}
	return &LocalStream{
		id: id,
		w:  t.w,
	}, nil
}

func (t *LocalTransport) SetTrace(ctx context.Context, trace *RequestTrace) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.traces[trace.ID] = trace
	return nil
}

func (t *LocalTransport) GetTrace(ctx context.Context, traceId string) (*RequestTrace, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	trace, ok := t.traces[traceId]
	if !ok {
		return nil, ErrTraceNotFound
	}
	return trace, nil
}

type LocalStream struct {
	id string
	w  io.Writer

	mu  sync.Mutex
	acc strings.Builder
}

func (s *LocalStream) Send(ctx context.Context, payload MessageStreamPayload) error {
	if payload.Type != MessageTypeContent {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.acc.WriteString(payload.Content)
	if s.w != nil {
		_, err := io.WriteString(s.w, payload.Content)
		return err
	}
	return nil
}

func (s *LocalStream) Recv(ctx context.Context) (*MessageStreamPayload, error) {
	return nil, fmt.Errorf("local streams do not support receiving")
}

func (s *LocalStream) Text(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acc.String(), nil
}

func (s *LocalStream) GetID() string {
	return s.id
}
