// Package agent runs a finite tool-calling loop over the engine's
// retrieval and extraction components. Each iteration asks the LLM to
// pick one tool given the task description and the step trace so far,
// executes it, and appends a summarized record to the trace. The
// planner holds no other mutable state, so a scripted provider replays
// a run deterministically.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"finrag/internal/domain"
	"finrag/internal/extract"
	"finrag/internal/retriever"
)

// State is the terminal state of an agent run.
type State string

const (
	StateDone   State = "done"
	StateFailed State = "failed"
)

// Result carries the outcome of one run together with the full
// append-only step trace for auditing.
type Result struct {
	RunID      string
	State      State
	FinalText  string
	Trace      []domain.ToolCall
	Iterations int
}

const planningPrompt = `You are orchestrating financial document analysis tools to complete a task.

Task: %s
Entity: %s

Available tools:
- retrieve: fetch document passages. args: {"query": "..."}
- extract_kpis: extract key performance indicators from the entity's filing. args: {}
- summarize_risks: categorize the risks stated in the entity's filing. args: {}
- generate_memo: draft an investment memo. args: {"kpis": "...", "risks": "...", "context": "..."}
- finish: stop and report the result. args: {"final_answer": "..."}

Steps taken so far:
%s

Choose the single next tool. Respond with ONLY a JSON object:
{"tool": "<name>", "args": {...}}`

const traceSummarySentences = 3

// Orchestrator coordinates planner completions and tool execution.
type Orchestrator struct {
	gen       domain.TextGenerator
	retr      *retriever.Retriever
	extractor *extract.Extractor
	sum       domain.Summarizer
	topK      int
	maxIters  int
	now       func() time.Time
	log       *zap.Logger
}

// New creates an orchestrator bounded at maxIters planning iterations.
func New(gen domain.TextGenerator, retr *retriever.Retriever, extractor *extract.Extractor, sum domain.Summarizer, topK, maxIters int, log *zap.Logger) (*Orchestrator, error) {
	if maxIters <= 0 {
		return nil, fmt.Errorf("%w: max iterations must be positive, got %d", domain.ErrConfiguration, maxIters)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrConfiguration, topK)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		gen:       gen,
		retr:      retr,
		extractor: extractor,
		sum:       sum,
		topK:      topK,
		maxIters:  maxIters,
		now:       time.Now,
		log:       log,
	}, nil
}

// Run executes task until the planner finishes, an iteration budget is
// exhausted, or a tool fails. The step trace is preserved on every
// path, including failures.
func (o *Orchestrator) Run(ctx context.Context, task domain.AgentTask) (*Result, error) {
	res := &Result{RunID: uuid.NewString()}
	log := o.log.With(zap.String("run_id", res.RunID), zap.String("entity", task.Key.String()))
	log.Info("agent run started", zap.String("task", task.Description))

	for iter := 0; iter < o.maxIters; iter++ {
		res.Iterations = iter + 1

		d, err := o.plan(ctx, task, res.Trace)
		if err != nil {
			res.State = StateFailed
			return res, err
		}
		log.Info("tool selected", zap.Int("iteration", iter+1), zap.String("tool", string(d.Tool)))

		if d.Tool == ToolFinish {
			res.State = StateDone
			res.FinalText = d.Args.FinalAnswer
			res.Trace = append(res.Trace, domain.ToolCall{
				Tool:          string(ToolFinish),
				Input:         d.Args.FinalAnswer,
				OutputSummary: "run finished",
				At:            o.now().UTC(),
			})
			log.Info("agent run done", zap.Int("steps", len(res.Trace)))
			return res, nil
		}

		input, output, err := o.execute(ctx, task, d)
		if err != nil {
			// Tool failures abort the run without retrying the tool;
			// the trace up to this point stays intact for diagnosis.
			res.State = StateFailed
			log.Error("tool failed", zap.String("tool", string(d.Tool)), zap.Error(err))
			return res, fmt.Errorf("tool %s: %w", d.Tool, err)
		}

		summary, sumErr := o.sum.Summarize(output, traceSummarySentences)
		if sumErr != nil || summary == "" {
			summary = clip(output, 400)
		}
		res.Trace = append(res.Trace, domain.ToolCall{
			Tool:          string(d.Tool),
			Input:         input,
			OutputSummary: summary,
			At:            o.now().UTC(),
		})
	}

	res.State = StateFailed
	return res, fmt.Errorf("agent exceeded %d iterations without finishing", o.maxIters)
}

// plan derives the next decision purely from the task and trace.
func (o *Orchestrator) plan(ctx context.Context, task domain.AgentTask, trace []domain.ToolCall) (decision, error) {
	out, err := o.gen.Complete(ctx, fmt.Sprintf(planningPrompt, task.Description, task.Key, renderTrace(trace)))
	if err != nil {
		return decision{}, err
	}
	d, err := parseDecision(out)
	if err != nil {
		return decision{}, fmt.Errorf("%w: %v", domain.ErrExtractionParse, err)
	}
	return d, nil
}

func (o *Orchestrator) execute(ctx context.Context, task domain.AgentTask, d decision) (input, output string, err error) {
	switch d.Tool {
	case ToolRetrieve:
		query := d.Args.Query
		if query == "" {
			query = task.Description
		}
		res, err := o.retr.Query(ctx, task.Key, query, o.topK)
		if err != nil {
			return query, "", err
		}
		var b strings.Builder
		for i, sc := range res.Chunks {
			if i > 0 {
				b.WriteString("\n\n")
			}
			b.WriteString(sc.Chunk.Text)
		}
		return query, b.String(), nil

	case ToolExtractKPIs:
		records, err := o.extractor.ExtractKPIs(ctx, task.Key)
		if err != nil {
			return "", "", err
		}
		return "", renderKPIs(records), nil

	case ToolSummarizeRisks:
		summary, err := o.extractor.SummarizeRisks(ctx, task.Key)
		if err != nil {
			return "", "", err
		}
		return "", renderRisks(summary), nil

	case ToolGenerateMemo:
		in := extract.MemoInput{
			Company: task.Key.Ticker,
			Period:  fmt.Sprintf("%s %d", task.Key.FilingType, task.Key.Year),
			KPIs:    d.Args.KPIs,
			Risks:   d.Args.Risks,
			Context: d.Args.Context,
		}
		memo, err := o.extractor.GenerateMemo(ctx, in)
		if err != nil {
			return "", "", err
		}
		return clip(d.Args.KPIs+"\n"+d.Args.Risks, 400), memo, nil

	case ToolFinish:
		// Handled before execute; kept for switch exhaustiveness.
		return "", "", nil

	default:
		return "", "", fmt.Errorf("%w: unknown tool %q", domain.ErrInvalidArgument, d.Tool)
	}
}

func renderTrace(trace []domain.ToolCall) string {
	if len(trace) == 0 {
		return "(none)"
	}
	var b strings.Builder
	for i, call := range trace {
		fmt.Fprintf(&b, "%d. %s", i+1, call.Tool)
		if call.Input != "" {
			fmt.Fprintf(&b, " (input: %s)", clip(call.Input, 120))
		}
		fmt.Fprintf(&b, " -> %s\n", call.OutputSummary)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderKPIs(records []domain.KPIRecord) string {
	payload, err := json.Marshal(records)
	if err != nil {
		return fmt.Sprintf("%d KPI records extracted", len(records))
	}
	return string(payload)
}

func renderRisks(summary domain.RiskSummary) string {
	var b strings.Builder
	for _, c := range domain.RiskCategories {
		statements := summary[c]
		fmt.Fprintf(&b, "%s: ", c)
		if len(statements) == 0 {
			b.WriteString("none identified.")
		} else {
			b.WriteString(strings.Join(statements, " "))
		}
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
