package model

import "time"

// FacilityStatus is the operating state of a storage facility.
type FacilityStatus string

const (
	FacilityActive     FacilityStatus = "active"
	FacilityInactive   FacilityStatus = "inactive"
	FacilityDecommiss  FacilityStatus = "decommissioned"
)

// Facility is a storage dam/pond/TSF tracked by the balance. Facilities are
// keyed by Code (a short string), not by pointer identity — cross-references
// such as a StorageChange facility breakdown copy Facility data by value.
type Facility struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`

	Code             string         `gorm:"uniqueIndex;not null;size:32" json:"code"`
	Name             string         `gorm:"not null;size:255" json:"name"`
	Status           FacilityStatus `gorm:"not null;size:32" json:"status"`
	SurfaceAreaM2    float64        `gorm:"type:decimal(14,2)" json:"surface_area_m2"`
	CatchmentAreaM2  float64        `gorm:"type:decimal(14,2)" json:"catchment_area_m2"`
	CapacityM3       float64        `gorm:"type:decimal(14,2)" json:"capacity_m3"`
	CurrentVolumeM3  float64        `gorm:"type:decimal(14,2)" json:"current_volume_m3"`
	IsLined          bool           `gorm:"not null;default:false" json:"is_lined"`
}

func (Facility) TableName() string {
	return "storage_facilities"
}

// IsActive reports whether the facility should be counted in active-facility
// sums (rainfall, evaporation, seepage).
func (f Facility) IsActive() bool {
	return f.Status == FacilityActive
}
