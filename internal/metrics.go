package internal

import "time"

const (
	// DailyVolatility is the fixed daily volatility used for VaR.
	DailyVolatility = 0.02
	// VaRZScore is the one-tailed z-score for 99% confidence.
	VaRZScore = 2.33
)

// ComputePerformance sums value and cost over the positions. The percentage
// is undefined when the total cost is zero.
func ComputePerformance(p *Portfolio, at time.Time) PerformanceMetrics {
	var totalValue, totalCost float64
	for _, pos := range p.Positions {
		totalValue += pos.CurrentValue
		totalCost += pos.CostBasis
	}
	pnl := totalValue - totalCost

	pct := UndefinedPercentage()
	if totalCost != 0 {
		pct = DefinedPercentage(pnl / totalCost * 100)
	}

	return PerformanceMetrics{
		PortfolioID:   p.ID,
		TotalValue:    totalValue,
		TotalCost:     totalCost,
		PnL:           pnl,
		PnLPercentage: pct,
		CalculatedAt:  at,
	}
}

// AssessRisk computes a one-day VaR and buckets it by its share of the
// portfolio value.
func AssessRisk(p *Portfolio, at time.Time) RiskAssessment {
	var value float64
	for _, pos := range p.Positions {
		value += pos.CurrentValue
	}
	r := RiskAssessment{
		PortfolioID:    p.ID,
		PortfolioValue: value,
		Volatility:     DailyVolatility,
		VaR1Day:        value * DailyVolatility * VaRZScore,
		RiskLevel:      RiskUndefined,
		CalculatedAt:   at,
	}
	if value == 0 {
		return r
	}
	r.RiskLevel = riskLevel(r.VaR1Day / value * 100)
	return r
}

func riskLevel(varPct float64) RiskLevel {
	switch {
	case varPct < 1:
		return RiskLow
	case varPct < 3:
		return RiskMedium
	default:
		return RiskHigh
	}
}
