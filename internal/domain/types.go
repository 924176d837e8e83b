package domain

import (
	"fmt"
	"time"
)

// EntityKey identifies one logical document/index unit: a single filing
// for a single company in a single year.
type EntityKey struct {
	Ticker     string
	FilingType string
	Year       int
}

// String renders the key in the canonical TICKER_TYPE_YEAR form used for
// persisted index addressing and raw document file names.
func (k EntityKey) String() string {
	return fmt.Sprintf("%s_%s_%d", k.Ticker, k.FilingType, k.Year)
}

// IsZero reports whether the key has no fields set.
func (k EntityKey) IsZero() bool {
	return k.Ticker == "" && k.FilingType == "" && k.Year == 0
}

// Chunk is a token-bounded slice of a document's text, the unit of
// retrieval. Chunks within one document are totally ordered by Position.
type Chunk struct {
	Key        EntityKey
	Text       string
	TokenCount int
	Position   int
	SourcePage int // 0 when unknown
}

// Ref returns a stable reference for citing this chunk as a source.
func (c Chunk) Ref() ChunkRef {
	return ChunkRef{Key: c.Key, Position: c.Position}
}

// ChunkRef identifies a chunk inside an entity's index.
type ChunkRef struct {
	Key      EntityKey
	Position int
}

func (r ChunkRef) String() string {
	return fmt.Sprintf("%s#%d", r.Key, r.Position)
}

// ScoredChunk pairs a chunk with its similarity score for one query.
type ScoredChunk struct {
	Chunk Chunk
	Score float64
}

// RetrievalResult is a ranked list of scored chunks, descending by
// score with ties broken by ascending chunk position.
type RetrievalResult struct {
	Key    EntityKey
	Query  string
	Chunks []ScoredChunk
}

// KPIRecord is one extracted financial metric. Value is nil when the
// source text was ambiguous or non-numeric; RawValue always preserves
// the text form.
type KPIRecord struct {
	MetricName string
	Value      *float64
	RawValue   string
	Unit       string
	Period     string
	Source     ChunkRef
	Confidence float64
}

// RiskCategory classifies a risk statement.
type RiskCategory string

const (
	RiskMarket      RiskCategory = "market"
	RiskOperational RiskCategory = "operational"
	RiskFinancial   RiskCategory = "financial"
	RiskRegulatory  RiskCategory = "regulatory"
	RiskCompetitive RiskCategory = "competitive"
	RiskOther       RiskCategory = "other"
)

// RiskCategories lists every category in stable order. A risk summary
// always carries all of them, possibly with empty statement lists.
var RiskCategories = []RiskCategory{
	RiskMarket,
	RiskOperational,
	RiskFinancial,
	RiskRegulatory,
	RiskCompetitive,
	RiskOther,
}

// RiskSummary maps every risk category to its extracted statements.
type RiskSummary map[RiskCategory][]string

// NewRiskSummary returns a summary with all six categories present.
func NewRiskSummary() RiskSummary {
	s := make(RiskSummary, len(RiskCategories))
	for _, c := range RiskCategories {
		s[c] = []string{}
	}
	return s
}

// ToolCall is one entry in an agent run's step trace.
type ToolCall struct {
	Tool          string
	Input         string
	OutputSummary string
	At            time.Time
}

// AgentTask describes one agent run request.
type AgentTask struct {
	Description string
	Key         EntityKey
}
