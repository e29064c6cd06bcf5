package model

import "time"

// CalculationMode discriminates the cache key; the spec treats all three
// identically in computation today but reserves room for future divergence
// in what gets flagged per mode.
type CalculationMode string

const (
	ModeRegulator CalculationMode = "REGULATOR"
	ModeInternal  CalculationMode = "INTERNAL"
	ModeAudit     CalculationMode = "AUDIT"
)

// BalanceStatus is the traffic-light verdict on closure quality.
type BalanceStatus string

const (
	StatusGreen BalanceStatus = "GREEN"
	StatusRed   BalanceStatus = "RED"
)

// MinBalanceErrorPct is the default threshold below which a balance is
// considered closed (spec §6 constant min_balance_error_pct).
const MinBalanceErrorPct = 5.0

// BalanceResult is the top-level output of a single orchestrator run.
type BalanceResult struct {
	CalculationID string          `json:"calculation_id"`
	Period        Period          `json:"period"`
	Mode          CalculationMode `json:"mode"`

	Inflows  InflowResult        `json:"inflows"`
	Outflows OutflowResult       `json:"outflows"`
	Storage  StorageChange       `json:"storage"`
	Recycled RecycledWaterResult `json:"recycled"`
	KPIs     KPIResult           `json:"kpis"`

	BalanceErrorM3 float64       `json:"balance_error_m3"`
	ErrorPct       float64       `json:"error_pct"`
	Status         BalanceStatus `json:"status"`
	IsBalanced     bool          `json:"is_balanced"`

	QualityFlags *DataQualityFlags `json:"quality_flags,omitempty"`
	CalculatedAt time.Time         `json:"calculated_at"`
}
