package model

import "time"

// StorageChange is the opening/closing volume for a facility, or for the
// whole system when FacilityCode is empty (with FacilityBreakdown populated).
type StorageChange struct {
	FacilityCode      string           `json:"facility_code,omitempty"`
	FacilityName      string           `json:"facility_name,omitempty"`
	OpeningM3         float64          `json:"opening_m3"`
	ClosingM3         float64          `json:"closing_m3"`
	CapacityM3        float64          `json:"capacity_m3"`
	Source            DataQualityLevel `json:"source"`
	FacilityBreakdown []StorageChange  `json:"facility_breakdown,omitempty"`
}

// DeltaM3 is ClosingM3 - OpeningM3.
func (s StorageChange) DeltaM3() float64 { return s.ClosingM3 - s.OpeningM3 }

// IsSystemTotal reports whether this is a system-level rollup rather than a
// single facility's record.
func (s StorageChange) IsSystemTotal() bool { return s.FacilityCode == "" }

// StorageHistoryRow is a persisted monthly opening/closing snapshot for one
// facility, the only durable state the core owns besides facility volumes.
type StorageHistoryRow struct {
	FacilityCode string    `gorm:"column:facility_code;primaryKey;size:32" json:"facility_code"`
	Year         int       `gorm:"column:year;primaryKey" json:"year"`
	Month        int       `gorm:"column:month;primaryKey" json:"month"`
	OpeningM3    float64   `gorm:"column:opening_m3;type:decimal(14,2)" json:"opening_m3"`
	ClosingM3    float64   `gorm:"column:closing_m3;type:decimal(14,2)" json:"closing_m3"`
	DataSource   string    `gorm:"column:data_source;size:16" json:"data_source"`
	UpdatedAt    time.Time `gorm:"column:updated_at" json:"updated_at"`
}

func (StorageHistoryRow) TableName() string {
	return "storage_history"
}
