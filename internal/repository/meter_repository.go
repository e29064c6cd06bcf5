package repository

import (
	"context"
	"time"

	"github.com/caliphsdev/waterbalance/internal/model"

	"gorm.io/gorm"
)

// meterRepository implements waterbalance.MeterRepository over a single
// meter_readings table shared by every named series, grounded on the
// teacher's raw-SQL aggregation style in its own irrigation-data repository
// (one table, one SUM-by-period query shape, reused per aggregation level).
type meterRepository struct {
	db *gorm.DB
}

func NewMeterRepository(db *gorm.DB) *meterRepository {
	return &meterRepository{db: db}
}

// monthlySum is the scan target for the SUM(value) aggregation query.
type monthlySum struct {
	Total float64 `gorm:"column:total"`
	Found int     `gorm:"column:found"`
}

// MonthlyValue sums every reading recorded for column within [start, end).
// A column with zero matching rows is reported not-found rather than 0, so
// calculators can distinguish "no data" from "measured zero" (spec §4.1).
func (r *meterRepository) MonthlyValue(ctx context.Context, column string, start, end time.Time) (float64, bool, error) {
	var result monthlySum
	err := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(value), 0) AS total, COUNT(*) AS found
		FROM meter_readings
		WHERE column_name = ? AND recorded_at >= ? AND recorded_at < ?
	`, column, start, end).Scan(&result).Error
	if err != nil {
		return 0, false, err
	}
	if result.Found == 0 {
		return 0, false, nil
	}
	return result.Total, true, nil
}

// ListColumns returns every distinct column_name ever recorded; the
// calculators do not call it.
func (r *meterRepository) ListColumns(ctx context.Context) ([]string, error) {
	var columns []string
	err := r.db.WithContext(ctx).
		Model(&model.MeterReading{}).
		Distinct("column_name").
		Pluck("column_name", &columns).Error
	return columns, err
}
