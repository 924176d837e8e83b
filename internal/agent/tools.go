package agent

import (
	"encoding/json"
	"fmt"

	"finrag/internal/llm"
)

// Tool is one member of the orchestrator's closed tool set.
type Tool string

const (
	ToolRetrieve       Tool = "retrieve"
	ToolExtractKPIs    Tool = "extract_kpis"
	ToolSummarizeRisks Tool = "summarize_risks"
	ToolGenerateMemo   Tool = "generate_memo"
	ToolFinish         Tool = "finish"
)

// knownTools guards decision parsing; dispatch itself is an exhaustive
// switch in the run loop.
var knownTools = map[Tool]struct{}{
	ToolRetrieve:       {},
	ToolExtractKPIs:    {},
	ToolSummarizeRisks: {},
	ToolGenerateMemo:   {},
	ToolFinish:         {},
}

// decision is the planner's structured choice for one iteration.
type decision struct {
	Tool Tool         `json:"tool"`
	Args decisionArgs `json:"args"`
}

// decisionArgs is the union of every tool's arguments; each tool reads
// only its own fields.
type decisionArgs struct {
	// Query is the retrieval query (retrieve).
	Query string `json:"query,omitempty"`
	// KPIs, Risks and Context feed memo generation (generate_memo).
	KPIs    string `json:"kpis,omitempty"`
	Risks   string `json:"risks,omitempty"`
	Context string `json:"context,omitempty"`
	// FinalAnswer is the synthesized result (finish).
	FinalAnswer string `json:"final_answer,omitempty"`
}

func parseDecision(out string) (decision, error) {
	var d decision
	if err := json.Unmarshal([]byte(llm.ExtractJSON(out)), &d); err != nil {
		return decision{}, fmt.Errorf("decode tool decision: %w", err)
	}
	if _, ok := knownTools[d.Tool]; !ok {
		return decision{}, fmt.Errorf("unknown tool %q", d.Tool)
	}
	return d, nil
}
