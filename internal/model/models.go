package model

import (
	"time"

	"gorm.io/gorm"
)

// MeterReading is one named meter/production series value for a single
// calendar month — the row type behind MeterRepository.MonthlyValue (spec
// §6.2). ColumnName is the site-configured meter identifier (e.g.
// "RiverA", "tonnes_milled"), not a literal database column: many named
// series share this one table.
type MeterReading struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	ColumnName string    `gorm:"not null;size:128;index:idx_column_recorded,priority:1" json:"column_name"`
	RecordedAt time.Time `gorm:"not null;index:idx_column_recorded,priority:2" json:"recorded_at"`
	Value      float64   `gorm:"type:decimal(16,4);not null" json:"value"`
}

func (MeterReading) TableName() string {
	return "meter_readings"
}

// BeforeCreate defaults RecordedAt to the start of the current month when
// left zero, mirroring how a timestamp-only ingestion feed would land a
// reading without an explicit period.
func (r *MeterReading) BeforeCreate(tx *gorm.DB) error {
	if r.RecordedAt.IsZero() {
		now := time.Now().UTC()
		r.RecordedAt = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	}
	return nil
}

// EnvironmentReading is one month's rainfall/evaporation record, the row
// type behind EnvironmentalRepository.MonthlyEnvironment (spec §6.5).
type EnvironmentReading struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Year           int     `gorm:"not null;uniqueIndex:idx_env_year_month,priority:1" json:"year"`
	Month          int     `gorm:"not null;uniqueIndex:idx_env_year_month,priority:2" json:"month"`
	RainfallMM     float64 `gorm:"type:decimal(8,2)" json:"rainfall_mm"`
	EvaporationMM  float64 `gorm:"type:decimal(8,2)" json:"evaporation_mm"`
}

func (EnvironmentReading) TableName() string {
	return "environment_readings"
}

// SiteConstant is one named entry of site configuration — a coefficient, a
// feature toggle, a seasonal table, or a meter column name list — stored as
// JSON so a single table can back the whole heterogeneous ConstantsProvider
// catalogue (spec §6.1).
type SiteConstant struct {
	Name      string    `gorm:"primaryKey;size:128" json:"name"`
	ValueJSON string    `gorm:"column:value_json;type:text;not null" json:"value_json"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SiteConstant) TableName() string {
	return "site_constants"
}
