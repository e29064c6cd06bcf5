package service

import (
	"context"
	"math"

	"github.com/caliphsdev/waterbalance/internal/model"
	"github.com/caliphsdev/waterbalance/internal/waterbalance"
)

// TrendService compares a period's BalanceResult against one or two prior
// years of the same month, the way the teacher's AnalyticsService compares
// an irrigation period against its own year-over-year history.
type TrendService interface {
	GetTrend(ctx context.Context, period model.Period, mode model.CalculationMode) (*TrendResponse, error)
}

// TrendResponse mirrors the teacher's AnalyticsResponse shape: the current
// period's result plus however many prior-year comparisons produced data.
type TrendResponse struct {
	Period           model.Period          `json:"period"`
	Mode             model.CalculationMode `json:"mode"`
	Current          model.BalanceResult   `json:"current"`
	PeriodComparison PeriodComparison      `json:"period_comparison"`
}

// PeriodComparison holds however many prior-year comparisons were available.
type PeriodComparison struct {
	OneYearAgo  *YearMetrics `json:"one_year_ago,omitempty"`
	TwoYearsAgo *YearMetrics `json:"two_years_ago,omitempty"`
}

// YearMetrics is one prior year's figures plus percentage change against
// the current period, grounded on the teacher's PeriodMetrics struct.
type YearMetrics struct {
	Period                model.Period `json:"period"`
	TotalInflowsM3        float64      `json:"total_inflows_m3"`
	TotalOutflowsM3       float64      `json:"total_outflows_m3"`
	RecycledPct           float64      `json:"recycled_pct"`
	BalanceErrorPct       float64      `json:"balance_error_pct"`
	InflowsChangePercent  float64      `json:"inflows_change_percent"`
	OutflowsChangePercent float64      `json:"outflows_change_percent"`
	RecycledChangePercent float64      `json:"recycled_change_percent"`
}

type trendService struct {
	orchestrator *waterbalance.Orchestrator
}

// NewTrendService wires the already-constructed core orchestrator rather
// than re-deriving a parallel calculation path.
func NewTrendService(orchestrator *waterbalance.Orchestrator) TrendService {
	return &trendService{orchestrator: orchestrator}
}

func (s *trendService) GetTrend(ctx context.Context, period model.Period, mode model.CalculationMode) (*TrendResponse, error) {
	current, err := s.orchestrator.Calculate(ctx, period, mode, false)
	if err != nil {
		return nil, err
	}

	response := &TrendResponse{
		Period:  period,
		Mode:    mode,
		Current: current,
	}

	oneYearAgo := period.AddYears(-1)
	if result, err := s.orchestrator.Calculate(ctx, oneYearAgo, mode, false); err == nil {
		response.PeriodComparison.OneYearAgo = s.compare(oneYearAgo, current, result)
	}

	twoYearsAgo := period.AddYears(-2)
	if result, err := s.orchestrator.Calculate(ctx, twoYearsAgo, mode, false); err == nil {
		response.PeriodComparison.TwoYearsAgo = s.compare(twoYearsAgo, current, result)
	}

	return response, nil
}

func (s *trendService) compare(priorPeriod model.Period, current, prior model.BalanceResult) *YearMetrics {
	return &YearMetrics{
		Period:                priorPeriod,
		TotalInflowsM3:        prior.Inflows.TotalM3,
		TotalOutflowsM3:       prior.Outflows.TotalM3,
		RecycledPct:           prior.KPIs.RecycledPct,
		BalanceErrorPct:       prior.ErrorPct,
		InflowsChangePercent:  calculateChangePercent(current.Inflows.TotalM3, prior.Inflows.TotalM3),
		OutflowsChangePercent: calculateChangePercent(current.Outflows.TotalM3, prior.Outflows.TotalM3),
		RecycledChangePercent: calculateChangePercent(current.KPIs.RecycledPct, prior.KPIs.RecycledPct),
	}
}

// calculateChangePercent mirrors the teacher's own divide-by-zero
// convention: no prior and no current is "no change", no prior but a
// nonzero current is reported as a flat 100% increase.
func calculateChangePercent(current, previous float64) float64 {
	if previous == 0 {
		if current == 0 {
			return 0.0
		}
		return 100.0
	}
	change := ((current - previous) / previous) * 100
	return math.Round(change*100) / 100
}
