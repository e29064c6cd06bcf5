package repository

import (
	"context"
	"errors"

	"github.com/caliphsdev/waterbalance/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// storageHistoryRepository implements waterbalance.StorageHistoryRepository
// over the storage_history table.
type storageHistoryRepository struct {
	db *gorm.DB
}

func NewStorageHistoryRepository(db *gorm.DB) *storageHistoryRepository {
	return &storageHistoryRepository{db: db}
}

func (r *storageHistoryRepository) Get(ctx context.Context, facilityCode string, year, month int) (*model.StorageHistoryRow, error) {
	var row model.StorageHistoryRow
	err := r.db.WithContext(ctx).
		Where("facility_code = ? AND year = ? AND month = ?", facilityCode, year, month).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// Upsert writes one facility's opening/closing for a period in a single
// statement, conflicting on the (facility_code, year, month) primary key
// (spec §5 "a single transaction per facility upsert").
func (r *storageHistoryRepository) Upsert(ctx context.Context, row model.StorageHistoryRow) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "facility_code"}, {Name: "year"}, {Name: "month"}},
			DoUpdates: clause.AssignmentColumns([]string{"opening_m3", "closing_m3", "data_source", "updated_at"}),
		}).
		Create(&row).Error
}
