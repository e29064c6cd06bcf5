package repository

import (
	"context"

	"github.com/caliphsdev/waterbalance/internal/model"

	"gorm.io/gorm"
)

// facilityRepository implements waterbalance.FacilityRepository over the
// storage_facilities table.
type facilityRepository struct {
	db *gorm.DB
}

func NewFacilityRepository(db *gorm.DB) *facilityRepository {
	return &facilityRepository{db: db}
}

func (r *facilityRepository) ListActiveFacilities(ctx context.Context) ([]model.Facility, error) {
	var facilities []model.Facility
	err := r.db.WithContext(ctx).
		Where("status = ?", model.FacilityActive).
		Order("code ASC").
		Find(&facilities).Error
	return facilities, err
}

// UpdateCurrentVolume overwrites a single facility's current_volume_m3, the
// one piece of state the core writes back to this repository (spec §6
// "Persisted state").
func (r *facilityRepository) UpdateCurrentVolume(ctx context.Context, facilityCode string, closingM3 float64) error {
	return r.db.WithContext(ctx).
		Model(&model.Facility{}).
		Where("code = ?", facilityCode).
		Update("current_volume_m3", closingM3).Error
}
