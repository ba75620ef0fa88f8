// Package splitter provides deterministic, token-bounded text
// chunking with overlap for embedding pipelines.
package splitter

import (
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

const (
	DefaultChunkSize = 400
	DefaultOverlap   = 40
	DefaultEncoding  = "cl100k_base"
)

// TokenCounter reports the token length of a text segment.
type TokenCounter func(text string) int

type Splitter struct {
	chunkSize int
	overlap   int
	count     TokenCounter
}

type Option func(*Splitter)

func New(opts ...Option) (*Splitter, error) {
	s := &Splitter{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultOverlap,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.count == nil {
		enc, err := tiktoken.GetEncoding(DefaultEncoding)
		if err != nil {
			return nil, err
		}
		s.count = func(text string) int {
			return len(enc.Encode(text, nil, nil))
		}
	}

	return s, nil
}

func WithChunkSize(size int) Option {
	return func(s *Splitter) {
		s.chunkSize = size
	}
}

func WithOverlap(overlap int) Option {
	return func(s *Splitter) {
		s.overlap = overlap
	}
}

// WithTokenCounter overrides the default tiktoken counter.
func WithTokenCounter(count TokenCounter) Option {
	return func(s *Splitter) {
		s.count = count
	}
}

// Split breaks text into chunks of at most the configured token size,
// preferring paragraph boundaries, then line boundaries, then plain
// word windows. Consecutive chunks share roughly the configured
// overlap of trailing tokens.
func (s *Splitter) Split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	if s.count(text) <= s.chunkSize {
		return []string{text}
	}

	pieces := s.breakDown(text)
	return s.merge(pieces)
}

func (s *Splitter) breakDown(text string) []string {
	pieces := make([]string, 0)

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if s.count(para) <= s.chunkSize {
			pieces = append(pieces, para)
			continue
		}

		for _, line := range strings.Split(para, "\n") {
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}

			if s.count(line) <= s.chunkSize {
				pieces = append(pieces, line)
				continue
			}

			pieces = append(pieces, s.splitWords(line)...)
		}
	}

	return pieces
}

func (s *Splitter) splitWords(line string) []string {
	words := strings.Fields(line)
	pieces := make([]string, 0)

	var acc []string
	accTokens := 0
	for _, w := range words {
		wt := s.count(w)
		if accTokens+wt > s.chunkSize && len(acc) > 0 {
			pieces = append(pieces, strings.Join(acc, " "))
			acc = acc[:0]
			accTokens = 0
		}
		acc = append(acc, w)
		accTokens += wt
	}

	if len(acc) > 0 {
		pieces = append(pieces, strings.Join(acc, " "))
	}
	return pieces
}

func (s *Splitter) merge(pieces []string) []string {
	chunks := make([]string, 0)

	var acc []string
	accTokens := 0

	flush := func() {
		if len(acc) == 0 {
			return
		}
		chunks = append(chunks, strings.Join(acc, "\n"))

		// seed the next chunk with trailing pieces up to the overlap budget
		var tail []string
		tailTokens := 0
		for i := len(acc) - 1; i >= 0; i-- {
			pt := s.count(acc[i])
			if tailTokens+pt > s.overlap {
				break
			}
			tail = append([]string{acc[i]}, tail...)
			tailTokens += pt
		}
		acc = tail
		accTokens = tailTokens
	}

	for _, p := range pieces {
		pt := s.count(p)
		if accTokens+pt > s.chunkSize && len(acc) > 0 {
			flush()
		}
		acc = append(acc, p)
		accTokens += pt
	}

	if len(acc) > 0 {
		chunks = append(chunks, strings.Join(acc, "\n"))
	}

	return chunks
}
