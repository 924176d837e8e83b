// Package extract turns retrieved financial context into structured
// records via one LLM completion per task. Model output that fails to
// parse is retried exactly once with a stricter formatting instruction;
// a second failure surfaces domain.ErrExtractionParse so callers can
// tell "no KPIs found" from "could not parse the provider's output".
package extract

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"finrag/internal/chunker"
	"finrag/internal/domain"
	"finrag/internal/retriever"
)

// Extractor runs KPI extraction, risk summarization and memo drafting.
type Extractor struct {
	retr              *retriever.Retriever
	gen               domain.TextGenerator
	topK              int
	contextTokenLimit int
	log               *zap.Logger
}

// New creates an extractor. topK bounds retrieval per task;
// contextTokenLimit bounds raw-text inputs sent without retrieval.
func New(retr *retriever.Retriever, gen domain.TextGenerator, topK, contextTokenLimit int, log *zap.Logger) (*Extractor, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrConfiguration, topK)
	}
	if contextTokenLimit <= 0 {
		return nil, fmt.Errorf("%w: context token limit must be positive, got %d", domain.ErrConfiguration, contextTokenLimit)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Extractor{retr: retr, gen: gen, topK: topK, contextTokenLimit: contextTokenLimit, log: log}, nil
}

// ExtractKPIs retrieves the chunks most relevant to the fixed KPI query
// terms for key and extracts structured KPI records from them.
func (e *Extractor) ExtractKPIs(ctx context.Context, key domain.EntityKey) ([]domain.KPIRecord, error) {
	res, err := e.retr.Query(ctx, key, kpiQueryTerms, e.topK)
	if err != nil {
		return nil, err
	}
	contextText, refs := labelChunks(res.Chunks)
	return e.kpisFromContext(ctx, contextText, refs)
}

// ExtractKPIsFromText extracts KPI records directly from raw text,
// skipping retrieval. Text beyond the context budget is truncated.
func (e *Extractor) ExtractKPIsFromText(ctx context.Context, text string) ([]domain.KPIRecord, error) {
	contextText := fmt.Sprintf("[chunk 0]\n%s", e.truncate(text))
	return e.kpisFromContext(ctx, contextText, nil)
}

func (e *Extractor) kpisFromContext(ctx context.Context, contextText string, refs []domain.ChunkRef) ([]domain.KPIRecord, error) {
	prompt := fmt.Sprintf(kpiPrompt, contextText)
	raw, err := e.completeStructured(ctx, prompt, func(out string) error {
		_, err := parseKPIResponse(out, refs)
		return err
	})
	if err != nil {
		return nil, err
	}
	records, err := parseKPIResponse(raw, refs)
	if err != nil {
		return nil, err
	}
	records = dedupeKPIs(records)
	e.log.Info("kpi extraction complete", zap.Int("records", len(records)))
	return records, nil
}

// SummarizeRisks retrieves risk-relevant chunks for key and classifies
// the risks they state. The result always carries all six categories.
func (e *Extractor) SummarizeRisks(ctx context.Context, key domain.EntityKey) (domain.RiskSummary, error) {
	res, err := e.retr.Query(ctx, key, riskQueryTerms, e.topK)
	if err != nil {
		return nil, err
	}
	contextText, _ := labelChunks(res.Chunks)
	return e.risksFromContext(ctx, contextText)
}

// SummarizeRisksFromText classifies risks directly from raw text,
// skipping retrieval.
func (e *Extractor) SummarizeRisksFromText(ctx context.Context, text string) (domain.RiskSummary, error) {
	return e.risksFromContext(ctx, e.truncate(text))
}

func (e *Extractor) risksFromContext(ctx context.Context, contextText string) (domain.RiskSummary, error) {
	prompt := fmt.Sprintf(riskPrompt, contextText)
	raw, err := e.completeStructured(ctx, prompt, func(out string) error {
		_, err := parseRiskResponse(out)
		return err
	})
	if err != nil {
		return nil, err
	}
	summary, err := parseRiskResponse(raw)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

// GenerateMemo drafts an investment memo from previously extracted
// KPIs, risks and free-form context.
func (e *Extractor) GenerateMemo(ctx context.Context, in MemoInput) (string, error) {
	prompt := fmt.Sprintf(memoPrompt, in.Company, in.Period, in.KPIs, in.Risks, e.truncate(in.Context))
	out, err := e.gen.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// MemoInput carries the memo building blocks as display strings.
type MemoInput struct {
	Company string
	Period  string
	KPIs    string
	Risks   string
	Context string
}

// completeStructured issues the completion and, when validate rejects
// the output, re-asks once with the stricter instruction. The second
// failure is domain.ErrExtractionParse.
func (e *Extractor) completeStructured(ctx context.Context, prompt string, validate func(string) error) (string, error) {
	out, err := e.gen.Complete(ctx, prompt)
	if err != nil {
		return "", err
	}
	if validate(out) == nil {
		return out, nil
	}
	e.log.Warn("structured output unparseable, retrying with strict instruction")

	out, err = e.gen.Complete(ctx, prompt+strictRetryInstruction)
	if err != nil {
		return "", err
	}
	if vErr := validate(out); vErr != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrExtractionParse, vErr)
	}
	return out, nil
}

func (e *Extractor) truncate(text string) string {
	limit := e.contextTokenLimit * chunker.DefaultAvgCharsPerToken
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

// labelChunks renders retrieved chunks as "[chunk N]" passages so the
// model can attribute each record to its source.
func labelChunks(chunks []domain.ScoredChunk) (string, []domain.ChunkRef) {
	var b strings.Builder
	refs := make([]domain.ChunkRef, len(chunks))
	for i, sc := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[chunk %d]\n%s", i, sc.Chunk.Text)
		refs[i] = sc.Chunk.Ref()
	}
	return b.String(), refs
}
