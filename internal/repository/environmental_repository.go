package repository

import (
	"context"
	"errors"

	"github.com/caliphsdev/waterbalance/internal/model"

	"gorm.io/gorm"
)

// environmentalRepository implements waterbalance.EnvironmentalRepository
// over the environment_readings table.
type environmentalRepository struct {
	db *gorm.DB
}

func NewEnvironmentalRepository(db *gorm.DB) *environmentalRepository {
	return &environmentalRepository{db: db}
}

func (r *environmentalRepository) MonthlyEnvironment(ctx context.Context, year, month int) (float64, float64, bool, error) {
	var reading model.EnvironmentReading
	err := r.db.WithContext(ctx).
		Where("year = ? AND month = ?", year, month).
		First(&reading).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, err
	}
	return reading.RainfallMM, reading.EvaporationMM, true, nil
}
