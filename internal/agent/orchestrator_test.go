package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"finrag/internal/domain"
	"finrag/internal/extract"
	"finrag/internal/index"
	"finrag/internal/retriever"
	"finrag/internal/summarizer"
)

type scriptedGenerator struct {
	responses []string
	prompts   []string
}

func (g *scriptedGenerator) Complete(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if len(g.responses) == 0 {
		return "", errors.New("script exhausted")
	}
	out := g.responses[0]
	g.responses = g.responses[1:]
	return out, nil
}

func (g *scriptedGenerator) Model() string { return "scripted" }

type fixedEmbedder struct{ vec []float64 }

func (e fixedEmbedder) Embed(context.Context, string) ([]float64, error) { return e.vec, nil }
func (e fixedEmbedder) Dimension() int                                   { return len(e.vec) }
func (e fixedEmbedder) Model() string                                    { return "fixed" }

var testTask = domain.AgentTask{
	Description: "Analyze the fiscal 2024 annual report",
	Key:         domain.EntityKey{Ticker: "AAPL", FilingType: "10-K", Year: 2024},
}

// newOrchestrator wires an orchestrator whose extractor runs against a
// one-chunk index, with separate scripted providers for planning and
// extraction.
func newOrchestrator(t *testing.T, planner, extractGen *scriptedGenerator, maxIters int) *Orchestrator {
	t.Helper()
	store, err := index.NewStore(2, nil, zap.NewNop())
	require.NoError(t, err)
	chunks := []domain.Chunk{{
		Text:       "Revenue was $391.0B. Key risks include competition and regulation.",
		TokenCount: 14,
		Position:   0,
	}}
	_, err = store.Build(context.Background(), testTask.Key, chunks, [][]float64{{1, 0}}, index.ModeReplace, "fixed")
	require.NoError(t, err)
	retr := retriever.New(store, fixedEmbedder{vec: []float64{1, 0}}, zap.NewNop())

	extractor, err := extract.New(retr, extractGen, 5, 1000, zap.NewNop())
	require.NoError(t, err)

	o, err := New(planner, retr, extractor, summarizer.New(), 5, maxIters, zap.NewNop())
	require.NoError(t, err)
	return o
}

func TestRunFullAnalysisSequence(t *testing.T) {
	planner := &scriptedGenerator{responses: []string{
		`{"tool": "extract_kpis", "args": {}}`,
		`{"tool": "summarize_risks", "args": {}}`,
		`{"tool": "generate_memo", "args": {"kpis": "Revenue $391.0B", "risks": "competition"}}`,
		`{"tool": "finish", "args": {"final_answer": "Memo complete. Revenue grew; risks are manageable."}}`,
	}}
	extractGen := &scriptedGenerator{responses: []string{
		`{"kpis": [{"metric_name": "Revenue", "value": "$391.0B", "unit": "USD", "period": "FY2024", "source_chunk": 0, "confidence": 0.9}]}`,
		`{"market": [], "operational": [], "financial": [], "regulatory": ["regulation"], "competitive": ["competition"], "other": []}`,
		"## Investment Memo\nStrong performance with manageable risks.",
	}}
	o := newOrchestrator(t, planner, extractGen, 8)

	res, err := o.Run(context.Background(), testTask)
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	assert.Equal(t, "Memo complete. Revenue grew; risks are manageable.", res.FinalText)
	assert.Equal(t, 4, res.Iterations)
	assert.NotEmpty(t, res.RunID)

	require.Len(t, res.Trace, 4)
	assert.Equal(t, string(ToolExtractKPIs), res.Trace[0].Tool)
	assert.Equal(t, string(ToolSummarizeRisks), res.Trace[1].Tool)
	assert.Equal(t, string(ToolGenerateMemo), res.Trace[2].Tool)
	assert.Equal(t, string(ToolFinish), res.Trace[3].Tool)
	for _, call := range res.Trace {
		assert.NotEmpty(t, call.OutputSummary)
		assert.False(t, call.At.IsZero())
	}

	// Later planning prompts see the earlier steps.
	require.Len(t, planner.prompts, 4)
	assert.Contains(t, planner.prompts[0], "(none)")
	assert.Contains(t, planner.prompts[1], "1. extract_kpis")
	assert.Contains(t, planner.prompts[3], "3. generate_memo")
}

func TestRunRetrieveTool(t *testing.T) {
	planner := &scriptedGenerator{responses: []string{
		`{"tool": "retrieve", "args": {"query": "revenue growth"}}`,
		`{"tool": "finish", "args": {"final_answer": "Revenue was $391.0B."}}`,
	}}
	o := newOrchestrator(t, planner, &scriptedGenerator{}, 4)

	res, err := o.Run(context.Background(), testTask)
	require.NoError(t, err)
	assert.Equal(t, StateDone, res.State)
	require.Len(t, res.Trace, 2)
	assert.Equal(t, string(ToolRetrieve), res.Trace[0].Tool)
	assert.Equal(t, "revenue growth", res.Trace[0].Input)
}

func TestRunPlannerParseFailure(t *testing.T) {
	planner := &scriptedGenerator{responses: []string{"I think we should look at revenue first."}}
	o := newOrchestrator(t, planner, &scriptedGenerator{}, 4)

	res, err := o.Run(context.Background(), testTask)
	assert.ErrorIs(t, err, domain.ErrExtractionParse)
	require.NotNil(t, res)
	assert.Equal(t, StateFailed, res.State)
	assert.Empty(t, res.Trace)
}

func TestRunUnknownToolIsParseFailure(t *testing.T) {
	planner := &scriptedGenerator{responses: []string{`{"tool": "browse_web", "args": {}}`}}
	o := newOrchestrator(t, planner, &scriptedGenerator{}, 4)

	res, err := o.Run(context.Background(), testTask)
	assert.ErrorIs(t, err, domain.ErrExtractionParse)
	assert.Equal(t, StateFailed, res.State)
}

func TestRunToolFailureAbortsWithTracePreserved(t *testing.T) {
	planner := &scriptedGenerator{responses: []string{
		`{"tool": "retrieve", "args": {"query": "revenue"}}`,
		`{"tool": "extract_kpis", "args": {}}`,
	}}
	// The extraction provider never produces parseable JSON, so the
	// second tool fails after its one retry.
	extractGen := &scriptedGenerator{responses: []string{"prose", "more prose"}}
	o := newOrchestrator(t, planner, extractGen, 4)

	res, err := o.Run(context.Background(), testTask)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrExtractionParse)
	assert.Contains(t, err.Error(), "tool extract_kpis")
	assert.Equal(t, StateFailed, res.State)

	require.Len(t, res.Trace, 1, "the successful first step survives the failure")
	assert.Equal(t, string(ToolRetrieve), res.Trace[0].Tool)
}

func TestRunExceedsIterationBudget(t *testing.T) {
	planner := &scriptedGenerator{responses: []string{
		`{"tool": "retrieve", "args": {"query": "a"}}`,
		`{"tool": "retrieve", "args": {"query": "b"}}`,
	}}
	o := newOrchestrator(t, planner, &scriptedGenerator{}, 2)

	res, err := o.Run(context.Background(), testTask)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded 2 iterations")
	assert.Equal(t, StateFailed, res.State)
	assert.Equal(t, 2, res.Iterations)
	assert.Len(t, res.Trace, 2)
}

func TestRunEmptyRetrieveQueryFallsBackToTask(t *testing.T) {
	planner := &scriptedGenerator{responses: []string{
		`{"tool": "retrieve", "args": {}}`,
		`{"tool": "finish", "args": {"final_answer": "done"}}`,
	}}
	o := newOrchestrator(t, planner, &scriptedGenerator{}, 4)

	res, err := o.Run(context.Background(), testTask)
	require.NoError(t, err)
	assert.Equal(t, testTask.Description, res.Trace[0].Input)
}

func TestParseDecision(t *testing.T) {
	t.Run("fenced", func(t *testing.T) {
		d, err := parseDecision("```json\n{\"tool\": \"finish\", \"args\": {\"final_answer\": \"ok\"}}\n```")
		require.NoError(t, err)
		assert.Equal(t, ToolFinish, d.Tool)
		assert.Equal(t, "ok", d.Args.FinalAnswer)
	})
	t.Run("unknown tool", func(t *testing.T) {
		_, err := parseDecision(`{"tool": "deploy", "args": {}}`)
		assert.Error(t, err)
	})
	t.Run("not json", func(t *testing.T) {
		_, err := parseDecision("let me think about it")
		assert.Error(t, err)
	})
}

func TestNewValidation(t *testing.T) {
	gen := &scriptedGenerator{}
	_, err := New(gen, nil, nil, summarizer.New(), 5, 0, zap.NewNop())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
	_, err = New(gen, nil, nil, summarizer.New(), -1, 4, zap.NewNop())
	assert.ErrorIs(t, err, domain.ErrConfiguration)
}
