package splitter_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwiktor/apigen/internal/splitter"
)

func wordCounter(text string) int {
	return len(strings.Fields(text))
}

func newWordSplitter(t *testing.T, size, overlap int) *splitter.Splitter {
	t.Helper()
	s, err := splitter.New(
		splitter.WithChunkSize(size),
		splitter.WithOverlap(overlap),
		splitter.WithTokenCounter(wordCounter),
	)
	require.NoError(t, err)
	return s
}

func TestSplitEmpty(t *testing.T) {
	s := newWordSplitter(t, 10, 2)
	assert.Nil(t, s.Split(""))
	assert.Nil(t, s.Split("  \n\n  "))
}

func TestSplitShortText(t *testing.T) {
	s := newWordSplitter(t, 10, 2)
	chunks := s.Split("a short text")
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short text", chunks[0])
}

func TestSplitParagraphs(t *testing.T) {
	s := newWordSplitter(t, 6, 0)

	text := "one two three four\n\nfive six seven eight\n\nnine ten"
	chunks := s.Split(text)
	require.Len(t, chunks, 2)
	assert.Equal(t, "one two three four", chunks[0])
	assert.Equal(t, "five six seven eight\nnine ten", chunks[1])
}

func TestSplitOverlap(t *testing.T) {
	s := newWordSplitter(t, 4, 2)

	text := "alpha beta\n\ngamma delta\n\nepsilon zeta"
	chunks := s.Split(text)
	require.True(t, len(chunks) >= 2)

	// every chunk after the first starts with the tail of its predecessor
	for i := 1; i < len(chunks); i++ {
		prev := strings.Split(chunks[i-1], "\n")
		assert.True(t, strings.HasPrefix(chunks[i], prev[len(prev)-1]),
			"chunk %d does not overlap with its predecessor", i)
	}
}

func TestSplitLongLine(t *testing.T) {
	s := newWordSplitter(t, 5, 0)

	words := make([]string, 17)
	for i := range words {
		words[i] = fmt.Sprintf("w%d", i)
	}
	chunks := s.Split(strings.Join(words, " "))

	require.Len(t, chunks, 4)
	for _, c := range chunks {
		assert.LessOrEqual(t, wordCounter(c), 5)
	}

	joined := strings.Join(chunks, " ")
	for _, w := range words {
		assert.Contains(t, joined, w)
	}
}
