package repository

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/caliphsdev/waterbalance/internal/model"

	"gorm.io/gorm"
)

// SeedRepository handles database seeding operations.
type SeedRepository struct {
	db *gorm.DB
}

func NewSeedRepository(db *gorm.DB) *SeedRepository {
	return &SeedRepository{db: db}
}

// SeedDatabase seeds storage facilities, the site constant catalogue, and
// twelve months of meter and environmental readings so the balance can be
// recalculated for any period in the seeded year without further setup.
func (s *SeedRepository) SeedDatabase() error {
	if err := s.clearExistingData(); err != nil {
		return fmt.Errorf("failed to clear existing data: %w", err)
	}

	facilities, err := s.createFacilities()
	if err != nil {
		return fmt.Errorf("failed to create facilities: %w", err)
	}

	constants, err := s.createConstants(facilities)
	if err != nil {
		return fmt.Errorf("failed to create site constants: %w", err)
	}

	readings, err := s.createMeterReadings()
	if err != nil {
		return fmt.Errorf("failed to create meter readings: %w", err)
	}

	environment, err := s.createEnvironmentReadings()
	if err != nil {
		return fmt.Errorf("failed to create environment readings: %w", err)
	}

	fmt.Printf("Seeded database successfully:\n")
	fmt.Printf("  - Facilities: %d\n", len(facilities))
	fmt.Printf("  - Site constants: %d\n", constants)
	fmt.Printf("  - Meter readings: %d\n", readings)
	fmt.Printf("  - Environment readings: %d\n", environment)

	return nil
}

func (s *SeedRepository) clearExistingData() error {
	if err := s.db.Exec("TRUNCATE TABLE storage_history CASCADE").Error; err != nil {
		return err
	}
	if err := s.db.Exec("TRUNCATE TABLE storage_facilities CASCADE").Error; err != nil {
		return err
	}
	if err := s.db.Exec("TRUNCATE TABLE meter_readings CASCADE").Error; err != nil {
		return err
	}
	if err := s.db.Exec("TRUNCATE TABLE environment_readings CASCADE").Error; err != nil {
		return err
	}
	if err := s.db.Exec("TRUNCATE TABLE site_constants CASCADE").Error; err != nil {
		return err
	}
	return nil
}

// createFacilities creates the storage dams/ponds/TSF tracked by the balance.
func (s *SeedRepository) createFacilities() ([]model.Facility, error) {
	facilities := []model.Facility{
		{
			Code:            "TSF1",
			Name:            "Tailings Storage Facility 1",
			Status:          model.FacilityActive,
			SurfaceAreaM2:   850000,
			CatchmentAreaM2: 1200000,
			CapacityM3:      4500000,
			CurrentVolumeM3: 2800000,
			IsLined:         true,
		},
		{
			Code:            "RWD1",
			Name:            "Return Water Dam 1",
			Status:          model.FacilityActive,
			SurfaceAreaM2:   120000,
			CatchmentAreaM2: 300000,
			CapacityM3:      900000,
			CurrentVolumeM3: 540000,
			IsLined:         true,
		},
		{
			Code:            "PCD1",
			Name:            "Pollution Control Dam 1",
			Status:          model.FacilityActive,
			SurfaceAreaM2:   45000,
			CatchmentAreaM2: 180000,
			CapacityM3:      250000,
			CurrentVolumeM3: 90000,
			IsLined:         false,
		},
	}

	if err := s.db.Create(&facilities).Error; err != nil {
		return nil, err
	}
	return facilities, nil
}

// createConstants seeds the site_constants catalogue the ConstantsProvider
// reads from, covering the keys the calculators look up
// (internal/waterbalance/constants.go) except the seasonal rainfall and
// evaporation tables and the PGM/chromite product column names, which are
// left unset so their defaults and fallbacks apply.
func (s *SeedRepository) createConstants(facilities []model.Facility) (int, error) {
	runoffCoefficients := map[string]float64{"default": 0.30, "TSF1": 0.25, "RWD1": 0.15}

	entries := map[string]any{
		"evap_pan_coefficient":                   0.7,
		"seepage_rate_lined_pct":                 0.1,
		"seepage_rate_unlined_pct":                0.5,
		"ore_moisture_pct":                        3.5,
		"tailings_moisture_pct":                   45.0,
		"tailings_solids_density":                 2.7,
		"dust_suppression_rate_l_per_t":            1.0,
		"mining_water_rate_m3_per_t":               0.0,
		"domestic_consumption_l_per_person_day":   150.0,
		"workforce":                                2000.0,
		"recovery_rate_pct":                       8.0,
		"product_moisture_pct":                    2.0,
		"tsf_return_water_pct":                    0.0,
		"abstraction_license_annual_m3":           450000.0,
		"runoff_enabled":                          true,
		"runoff_coefficients":                     runoffCoefficients,
		"mining_consumption_enabled":              true,
		"domestic_consumption_enabled":            true,
		"classify_underground_as_fresh":           true,
		"reserve_storage_pct":                     10.0,
		"min_balance_error_pct":                   5.0,
		"surface_water_meter_columns":             []string{"river_abstraction", "dam_transfer"},
		"groundwater_meter_columns":                []string{"borehole_1", "borehole_2"},
		"dewatering_meter_columns":                 []string{"underground_dewatering"},
		"tonnes_milled_meter_column":               "tonnes_milled",
		"rwd_volume_meter_column":                  "rwd_volume",
		"rwd_intensity_meter_column":                "rwd_intensity_measured",
		"total_recycled_meter_column":              "total_recycled",
		"rwd_circulation_meter_column":              "rwd_circulation",
		"plant_consumption_meter_column":            "plant_consumption",
		"tailings_density_meter_column":             "tailings_density",
	}

	count := 0
	for name, value := range entries {
		raw, err := json.Marshal(value)
		if err != nil {
			return count, err
		}
		row := model.SiteConstant{Name: name, ValueJSON: string(raw), UpdatedAt: time.Now().UTC()}
		if err := s.db.Create(&row).Error; err != nil {
			return count, err
		}
		count++
	}
	return count, nil
}

// meterProfile is a named series and the monthly base value/seasonal swing
// used to generate a year of synthetic readings for it.
type meterProfile struct {
	column  string
	base    float64
	swing   float64
	summer  float64
}

// createMeterReadings writes one row per named series per month of the
// seeded year, mirroring the teacher's "one table, many generated rows"
// synthetic-data approach from its own irrigation-event seed.
func (s *SeedRepository) createMeterReadings() (int, error) {
	profiles := []meterProfile{
		{column: "river_abstraction", base: 10000, swing: 2000, summer: 1.1},
		{column: "dam_transfer", base: 2000, swing: 500, summer: 1.0},
		{column: "borehole_1", base: 1800, swing: 200, summer: 1.0},
		{column: "borehole_2", base: 1200, swing: 150, summer: 1.0},
		{column: "underground_dewatering", base: 6000, swing: 800, summer: 0.9},
		{column: "tonnes_milled", base: 180000, swing: 15000, summer: 1.0},
		{column: "tailings_density", base: 1.8, swing: 0.05, summer: 1.0},
		{column: "rwd_volume", base: 9300, swing: 600, summer: 1.0},
		{column: "rwd_intensity_measured", base: 0.05, swing: 0.01, summer: 1.0},
		{column: "total_recycled", base: 12000, swing: 1000, summer: 1.0},
		{column: "rwd_circulation", base: 3000, swing: 400, summer: 1.0},
		{column: "plant_consumption", base: 20000, swing: 1500, summer: 1.0},
	}

	rng := rand.New(rand.NewSource(1))
	count := 0
	batch := make([]model.MeterReading, 0, 128)

	for month := 1; month <= 12; month++ {
		recordedAt := time.Date(2025, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
		seasonal := 1.0
		if month >= 12 || month <= 2 {
			seasonal = 1.25
		}
		for _, p := range profiles {
			jitter := (rng.Float64()*2 - 1) * p.swing
			value := p.base + jitter
			if seasonal != 1.0 {
				value *= p.summer
			}
			batch = append(batch, model.MeterReading{
				ColumnName: p.column,
				RecordedAt: recordedAt,
				Value:      value,
			})
			count++
		}
	}

	if err := s.db.Create(&batch).Error; err != nil {
		return 0, fmt.Errorf("failed to create meter reading batch: %w", err)
	}
	return count, nil
}

// createEnvironmentReadings writes one rainfall/evaporation row per month of
// the seeded year, with a summer-wet/winter-dry seasonal shape typical of a
// southern-hemisphere mine site.
func (s *SeedRepository) createEnvironmentReadings() (int, error) {
	rainfallByMonth := map[int]float64{
		1: 120, 2: 110, 3: 80, 4: 40, 5: 15, 6: 8,
		7: 5, 8: 10, 9: 25, 10: 55, 11: 90, 12: 130,
	}
	evaporationByMonth := map[int]float64{
		1: 180, 2: 170, 3: 150, 4: 120, 5: 95, 6: 80,
		7: 85, 8: 100, 9: 130, 10: 155, 11: 170, 12: 185,
	}

	readings := make([]model.EnvironmentReading, 0, 12)
	for month := 1; month <= 12; month++ {
		readings = append(readings, model.EnvironmentReading{
			Year:          2025,
			Month:         month,
			RainfallMM:    rainfallByMonth[month],
			EvaporationMM: evaporationByMonth[month],
		})
	}

	if err := s.db.Create(&readings).Error; err != nil {
		return 0, err
	}
	return len(readings), nil
}
