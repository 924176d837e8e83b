package extract

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"finrag/internal/domain"
	"finrag/internal/llm"
)

type kpiResponse struct {
	KPIs []kpiEntry `json:"kpis"`
}

type kpiEntry struct {
	MetricName  string  `json:"metric_name"`
	Value       string  `json:"value"`
	Unit        string  `json:"unit"`
	Period      string  `json:"period"`
	SourceChunk int     `json:"source_chunk"`
	Confidence  float64 `json:"confidence"`
}

// parseKPIResponse decodes model output into KPI records. Numeric
// values are normalized to a base unit scale where unambiguous;
// anything else is kept as a text record rather than dropped.
func parseKPIResponse(out string, refs []domain.ChunkRef) ([]domain.KPIRecord, error) {
	var resp kpiResponse
	payload := llm.ExtractJSON(out)
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		return nil, fmt.Errorf("decode kpi response: %w", err)
	}

	records := make([]domain.KPIRecord, 0, len(resp.KPIs))
	for _, entry := range resp.KPIs {
		name := strings.TrimSpace(entry.MetricName)
		if name == "" {
			continue
		}
		rec := domain.KPIRecord{
			MetricName: name,
			RawValue:   strings.TrimSpace(entry.Value),
			Unit:       strings.TrimSpace(entry.Unit),
			Period:     strings.TrimSpace(entry.Period),
			Confidence: entry.Confidence,
		}
		if entry.SourceChunk >= 0 && entry.SourceChunk < len(refs) {
			rec.Source = refs[entry.SourceChunk]
		}
		if value, unit, ok := normalizeValue(rec.RawValue); ok {
			rec.Value = &value
			if rec.Unit == "" {
				rec.Unit = unit
			}
		}
		if rec.Unit == "" {
			rec.Unit = inferUnit(name)
		}
		records = append(records, rec)
	}
	return records, nil
}

var numericValueRe = regexp.MustCompile(`^\(?\$?€?£?\s*(-?\d[\d,]*(?:\.\d+)?)\)?\s*(%|[A-Za-z]+)?\)?$`)

// normalizeValue parses figures like "$1.2B", "(3,450) million" or
// "12.5%" into a single base-unit number. Values it cannot parse
// unambiguously are reported as not normalizable.
func normalizeValue(raw string) (float64, string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, "", false
	}
	negative := strings.HasPrefix(s, "(") && strings.Contains(s, ")")

	m := numericValueRe.FindStringSubmatch(s)
	if m == nil {
		return 0, "", false
	}
	value, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64)
	if err != nil {
		return 0, "", false
	}
	if negative && value > 0 {
		value = -value
	}

	unit := ""
	switch strings.ToLower(m[2]) {
	case "":
	case "%", "percent":
		unit = "%"
	case "t", "tn", "trillion":
		value *= 1e12
	case "b", "bn", "billion":
		value *= 1e9
	case "m", "mm", "mn", "million":
		value *= 1e6
	case "k", "thousand":
		value *= 1e3
	case "x":
		unit = "ratio"
	default:
		// Unknown magnitude word: too ambiguous to normalize.
		return 0, "", false
	}
	if unit == "" {
		switch {
		case strings.Contains(s, "€"):
			unit = "EUR"
		case strings.Contains(s, "£"):
			unit = "GBP"
		case strings.Contains(s, "$"):
			unit = "USD"
		}
	}
	return value, unit, true
}

// inferUnit guesses a unit from the metric name when neither the model
// nor normalization supplied one.
func inferUnit(metricName string) string {
	name := strings.ToLower(metricName)
	switch {
	case strings.Contains(name, "per share"):
		return "USD/share"
	case strings.Contains(name, "margin"), strings.Contains(name, "percent"), strings.Contains(name, "rate"):
		return "%"
	case strings.Contains(name, "ratio"), strings.Contains(name, "to equity"):
		return "ratio"
	case strings.Contains(name, "revenue"), strings.Contains(name, "income"),
		strings.Contains(name, "cash flow"), strings.Contains(name, "debt"),
		strings.Contains(name, "earnings"):
		return "USD"
	default:
		return ""
	}
}

// dedupeKPIs keeps one record per metric name, preferring higher
// confidence and, on ties, the most recent period. Output order is the
// first appearance of each surviving metric.
func dedupeKPIs(records []domain.KPIRecord) []domain.KPIRecord {
	type slot struct {
		rec   domain.KPIRecord
		order int
	}
	best := make(map[string]slot, len(records))
	for i, rec := range records {
		name := strings.ToLower(rec.MetricName)
		cur, ok := best[name]
		if !ok {
			best[name] = slot{rec: rec, order: i}
			continue
		}
		if rec.Confidence > cur.rec.Confidence ||
			(rec.Confidence == cur.rec.Confidence && periodYear(rec.Period) > periodYear(cur.rec.Period)) {
			best[name] = slot{rec: rec, order: cur.order}
		}
	}

	ranked := make([]slot, 0, len(best))
	for _, s := range best {
		ranked = append(ranked, s)
	}
	sort.Slice(ranked, func(i, j int) bool { return ranked[i].order < ranked[j].order })
	out := make([]domain.KPIRecord, 0, len(ranked))
	for _, s := range ranked {
		out = append(out, s.rec)
	}
	return out
}

var yearRe = regexp.MustCompile(`(19|20)\d{2}`)

func periodYear(period string) int {
	m := yearRe.FindString(period)
	if m == "" {
		return 0
	}
	y, _ := strconv.Atoi(m)
	return y
}
