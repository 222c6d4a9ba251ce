package internal

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrPortfolioNotFound = errors.New("portfolio not found")
	ErrEmptyPortfolioID  = errors.New("empty portfolio id")
	ErrInvalidPortfolio  = errors.New("invalid portfolio")
)

// Portfolio is a named, ordered collection of positions.
type Portfolio struct {
	ID        string     `json:"portfolio_id"`
	Name      string     `json:"name"`
	Positions []Position `json:"positions"`
}

// Position is a single holding.
type Position struct {
	Symbol       string  `json:"symbol"`
	Quantity     float64 `json:"quantity"`
	CurrentValue float64 `json:"current_value"`
	CostBasis    float64 `json:"cost_basis"`
}

// Validate checks the fields the store and the metrics rely on.
func (p *Portfolio) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidPortfolio, ErrEmptyPortfolioID)
	}
	for i, pos := range p.Positions {
		if pos.CurrentValue < 0 || pos.CostBasis < 0 {
			return fmt.Errorf("%w: position %d (%s) has negative value or cost", ErrInvalidPortfolio, i, pos.Symbol)
		}
	}
	return nil
}

// Percentage is either a defined value or undefined (e.g. zero denominator).
type Percentage struct {
	Value   float64
	Defined bool
}

func DefinedPercentage(v float64) Percentage { return Percentage{Value: v, Defined: true} }

func UndefinedPercentage() Percentage { return Percentage{} }

func (p Percentage) MarshalJSON() ([]byte, error) {
	if !p.Defined {
		return []byte("null"), nil
	}
	return json.Marshal(p.Value)
}

func (p *Percentage) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*p = UndefinedPercentage()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*p = DefinedPercentage(v)
	return nil
}

// PerformanceMetrics is a snapshot of a portfolio's profit and loss.
type PerformanceMetrics struct {
	PortfolioID   string     `json:"portfolio_id"`
	TotalValue    float64    `json:"total_value"`
	TotalCost     float64    `json:"total_cost"`
	PnL           float64    `json:"pnl"`
	PnLPercentage Percentage `json:"pnl_percentage"`
	CalculatedAt  time.Time  `json:"calculated_at"`
}

type RiskLevel string

const (
	RiskLow       RiskLevel = "LOW"
	RiskMedium    RiskLevel = "MEDIUM"
	RiskHigh      RiskLevel = "HIGH"
	RiskUndefined RiskLevel = "UNDEFINED"
)

// RiskAssessment is a one-day value-at-risk snapshot.
type RiskAssessment struct {
	PortfolioID    string    `json:"portfolio_id"`
	PortfolioValue float64   `json:"portfolio_value"`
	Volatility     float64   `json:"volatility"`
	VaR1Day        float64   `json:"var_1day"`
	RiskLevel      RiskLevel `json:"risk_level"`
	CalculatedAt   time.Time `json:"calculated_at"`
}

// PortfolioRetrievalError is returned when a portfolio cannot be loaded.
type PortfolioRetrievalError struct {
	PortfolioID string
	Err         error
}

func (e *PortfolioRetrievalError) Error() string {
	return fmt.Sprintf("failed to retrieve portfolio %q: %v", e.PortfolioID, e.Err)
}

func (e *PortfolioRetrievalError) Unwrap() error {
	return e.Err
}
