package summarizer

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeKeepsDocumentOrder(t *testing.T) {
	s := New()
	text := "Revenue grew twelve percent on services strength. " +
		"The weather in the cafeteria was pleasant. " +
		"Services revenue reached a record on subscription growth. " +
		"Revenue guidance for next year assumes continued services momentum."

	out, err := s.Summarize(text, 2)
	require.NoError(t, err)

	sentences := strings.SplitAfter(out, ". ")
	require.NotEmpty(t, sentences)
	// Selected sentences appear in their original relative order.
	first := strings.Index(text, strings.TrimSpace(sentences[0]))
	last := strings.Index(text, strings.TrimSpace(strings.TrimSuffix(sentences[len(sentences)-1], " ")))
	assert.LessOrEqual(t, first, last)
}

func TestSummarizeBoundsSentenceCount(t *testing.T) {
	s := New()
	text := "One fact here. Two facts here. Three facts here. Four facts here. Five facts here."

	out, err := s.Summarize(text, 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, strings.Count(out, "."), 2)
}

func TestSummarizeShortInputPassesThrough(t *testing.T) {
	s := New()

	out, err := s.Summarize("no terminal punctuation at all", 3)
	require.NoError(t, err)
	assert.Equal(t, "no terminal punctuation at all", out)

	out, err = s.Summarize("Just one sentence.", 5)
	require.NoError(t, err)
	assert.Equal(t, "Just one sentence.", out)
}

func TestSummarizeDeterministic(t *testing.T) {
	s := New()
	text := "Margins expanded again. Costs fell across segments. Margins benefited from mix. Cash flow stayed strong."

	a, err := s.Summarize(text, 2)
	require.NoError(t, err)
	b, err := s.Summarize(text, 2)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSummarizeNonPositiveBudgetUsesDefault(t *testing.T) {
	s := New()
	text := "One. Two. Three. Four. Five. Six."

	out, err := s.Summarize(text, 0)
	require.NoError(t, err)
	assert.LessOrEqual(t, strings.Count(out, "."), 3)
}
