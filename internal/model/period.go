package model

import (
	"fmt"
	"time"
)

// Period identifies a single calendar month a balance is calculated for.
type Period struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// NewPeriod validates month/year and returns a Period.
// A month outside 1..12 is an unrecoverable input per the orchestrator's
// error taxonomy: the returned error is a plain fmt error, which
// Orchestrator.CalculateForDate wraps in a CalculationError rather than
// degrading it.
func NewPeriod(year, month int) (Period, error) {
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("invalid period: month %d out of range 1..12", month)
	}
	return Period{Year: year, Month: month}, nil
}

// StartDate is the first instant of the period's month, UTC.
func (p Period) StartDate() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

// EndDate is the last day of the period's month, UTC.
func (p Period) EndDate() time.Time {
	return p.StartDate().AddDate(0, 1, 0).Add(-24 * time.Hour)
}

// DaysInPeriod returns the number of days in the period's month.
func (p Period) DaysInPeriod() int {
	return p.StartDate().AddDate(0, 1, 0).Add(-time.Second).Day()
}

// PeriodShort renders e.g. "2025-10".
func (p Period) PeriodShort() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// PeriodLabel renders e.g. "October 2025".
func (p Period) PeriodLabel() string {
	return p.StartDate().Format("January 2006")
}

// Previous returns the preceding calendar month, wrapping the year at
// January per spec: month=1's previous is (12, year-1).
func (p Period) Previous() Period {
	if p.Month == 1 {
		return Period{Year: p.Year - 1, Month: 12}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// AddYears returns the same calendar month offset by delta years (negative
// for prior years), used for year-over-year trend comparisons.
func (p Period) AddYears(delta int) Period {
	return Period{Year: p.Year + delta, Month: p.Month}
}

func (p Period) String() string {
	return p.PeriodShort()
}
