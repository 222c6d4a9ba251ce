package internal

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestComputePerformance(t *testing.T) {
	at := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		positions []Position
		value     float64
		cost      float64
		pnl       float64
		pct       float64
		defined   bool
	}{
		{
			name:      "gain",
			positions: []Position{{CurrentValue: 150, CostBasis: 100}, {CurrentValue: 50, CostBasis: 50}},
			value:     200, cost: 150, pnl: 50, pct: 100.0 / 3, defined: true,
		},
		{
			name:      "loss",
			positions: []Position{{CurrentValue: 80, CostBasis: 100}},
			value:     80, cost: 100, pnl: -20, pct: -20, defined: true,
		},
		{
			name:  "no positions",
			value: 0, cost: 0, pnl: 0, defined: false,
		},
		{
			name:      "zero cost with value",
			positions: []Position{{CurrentValue: 10, CostBasis: 0}},
			value:     10, cost: 0, pnl: 10, defined: false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := ComputePerformance(&Portfolio{ID: "P", Positions: tc.positions}, at)

			assert.Equal(t, "P", m.PortfolioID)
			assert.InDelta(t, tc.value, m.TotalValue, 1e-9)
			assert.InDelta(t, tc.cost, m.TotalCost, 1e-9)
			assert.Equal(t, m.TotalValue-m.TotalCost, m.PnL)
			assert.InDelta(t, tc.pnl, m.PnL, 1e-9)
			assert.Equal(t, tc.defined, m.PnLPercentage.Defined)
			if tc.defined {
				assert.InDelta(t, tc.pct, m.PnLPercentage.Value, 1e-9)
			}
			assert.False(t, math.IsNaN(m.PnLPercentage.Value))
			assert.False(t, math.IsInf(m.PnLPercentage.Value, 0))
			assert.Equal(t, at, m.CalculatedAt)
		})
	}
}

func TestAssessRisk_ZeroValue(t *testing.T) {
	r := AssessRisk(&Portfolio{ID: "P2"}, time.Time{})

	assert.Equal(t, 0.0, r.VaR1Day)
	assert.Equal(t, RiskUndefined, r.RiskLevel)
	assert.Equal(t, DailyVolatility, r.Volatility)
}

func TestRiskLevel(t *testing.T) {
	assert.Equal(t, RiskLow, riskLevel(0.5))
	assert.Equal(t, RiskMedium, riskLevel(1))
	assert.Equal(t, RiskMedium, riskLevel(2.99))
	assert.Equal(t, RiskHigh, riskLevel(3))
	assert.Equal(t, RiskHigh, riskLevel(4.66))
}
