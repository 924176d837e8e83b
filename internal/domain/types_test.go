package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEntityKeyString(t *testing.T) {
	key := EntityKey{Ticker: "AAPL", FilingType: "10-K", Year: 2023}
	assert.Equal(t, "AAPL_10-K_2023", key.String())
}

func TestEntityKeyIsZero(t *testing.T) {
	assert.True(t, EntityKey{}.IsZero())
	assert.False(t, EntityKey{Ticker: "AAPL"}.IsZero())
	assert.False(t, EntityKey{Year: 2023}.IsZero())
}

func TestChunkRef(t *testing.T) {
	c := Chunk{
		Key:      EntityKey{Ticker: "MSFT", FilingType: "10-Q", Year: 2024},
		Position: 7,
	}
	ref := c.Ref()
	assert.Equal(t, "MSFT_10-Q_2024#7", ref.String())
}

func TestNewRiskSummaryCarriesEveryCategory(t *testing.T) {
	s := NewRiskSummary()
	assert.Len(t, s, len(RiskCategories))
	for _, c := range RiskCategories {
		statements, ok := s[c]
		assert.True(t, ok)
		assert.Empty(t, statements)
	}
}
