package extract

import (
	"encoding/json"
	"fmt"
	"strings"

	"finrag/internal/domain"
	"finrag/internal/llm"
)

// parseRiskResponse decodes model output into a risk summary carrying
// every category, including the ones the model left out or emptied.
func parseRiskResponse(out string) (domain.RiskSummary, error) {
	var decoded map[string][]string
	payload := llm.ExtractJSON(out)
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return nil, fmt.Errorf("decode risk response: %w", err)
	}

	summary := domain.NewRiskSummary()
	for rawCategory, statements := range decoded {
		category, ok := matchCategory(rawCategory)
		if !ok {
			category = domain.RiskOther
		}
		for _, st := range statements {
			st = strings.TrimSpace(st)
			if st != "" {
				summary[category] = append(summary[category], st)
			}
		}
	}
	return summary, nil
}

// matchCategory tolerates label variants like "market_risks" or
// "Market Risks".
func matchCategory(raw string) (domain.RiskCategory, bool) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.TrimSuffix(normalized, "_risks")
	normalized = strings.TrimSuffix(normalized, "_risk")
	for _, c := range domain.RiskCategories {
		if normalized == string(c) {
			return c, true
		}
	}
	return "", false
}
