package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/caliphsdev/waterbalance/internal/model"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupTestDB connects to a real Postgres instance and migrates the
// repository layer's tables, the same env-gated integration pattern
// pilillo-oleamind's irrigation_service_test.go uses: skip entirely when no
// test database is configured rather than fake the driver.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("skipping: TEST_DATABASE_DSN not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&model.Facility{},
		&model.StorageHistoryRow{},
		&model.MeterReading{},
		&model.EnvironmentReading{},
		&model.SiteConstant{},
	))

	db.Exec("DELETE FROM storage_history")
	db.Exec("DELETE FROM storage_facilities")
	db.Exec("DELETE FROM meter_readings")
	db.Exec("DELETE FROM environment_readings")
	db.Exec("DELETE FROM site_constants")

	return db
}

func TestFacilityRepository_ListActiveFacilities(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFacilityRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.Facility{
		Code: "TSF1", Name: "Tailings Storage Facility 1", Status: model.FacilityActive,
		CapacityM3: 1000000, CurrentVolumeM3: 400000, IsLined: true,
	}).Error)
	require.NoError(t, db.Create(&model.Facility{
		Code: "PCD1", Name: "Pollution Control Dam 1", Status: model.FacilityDecommiss,
		CapacityM3: 50000, CurrentVolumeM3: 1000, IsLined: false,
	}).Error)

	facilities, err := repo.ListActiveFacilities(ctx)
	require.NoError(t, err)
	require.Len(t, facilities, 1)
	require.Equal(t, "TSF1", facilities[0].Code)
}

func TestFacilityRepository_UpdateCurrentVolume(t *testing.T) {
	db := setupTestDB(t)
	repo := NewFacilityRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.Facility{
		Code: "TSF1", Name: "Tailings Storage Facility 1", Status: model.FacilityActive,
		CapacityM3: 1000000, CurrentVolumeM3: 400000,
	}).Error)

	require.NoError(t, repo.UpdateCurrentVolume(ctx, "TSF1", 425000))

	var updated model.Facility
	require.NoError(t, db.Where("code = ?", "TSF1").First(&updated).Error)
	require.Equal(t, 425000.0, updated.CurrentVolumeM3)
}

func TestMeterRepository_MonthlyValue(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMeterRepository(db)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	require.NoError(t, db.Create(&model.MeterReading{
		ColumnName: "river_abstraction", RecordedAt: start.AddDate(0, 0, 4), Value: 1200,
	}).Error)
	require.NoError(t, db.Create(&model.MeterReading{
		ColumnName: "river_abstraction", RecordedAt: start.AddDate(0, 0, 18), Value: 800,
	}).Error)
	require.NoError(t, db.Create(&model.MeterReading{
		ColumnName: "river_abstraction", RecordedAt: end.AddDate(0, 0, 2), Value: 9999,
	}).Error)

	total, found, err := repo.MonthlyValue(ctx, "river_abstraction", start, end)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 2000.0, total)

	_, found, err = repo.MonthlyValue(ctx, "no_such_column", start, end)
	require.NoError(t, err)
	require.False(t, found)
}

func TestMeterRepository_ListColumns(t *testing.T) {
	db := setupTestDB(t)
	repo := NewMeterRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.MeterReading{
		ColumnName: "river_abstraction", RecordedAt: time.Now(), Value: 100,
	}).Error)
	require.NoError(t, db.Create(&model.MeterReading{
		ColumnName: "borehole_abstraction", RecordedAt: time.Now(), Value: 50,
	}).Error)

	columns, err := repo.ListColumns(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"river_abstraction", "borehole_abstraction"}, columns)
}

func TestStorageHistoryRepository_GetReturnsNilWhenAbsent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStorageHistoryRepository(db)
	ctx := context.Background()

	row, err := repo.Get(ctx, "TSF1", 2026, 3)
	require.NoError(t, err)
	require.Nil(t, row)
}

func TestStorageHistoryRepository_UpsertThenGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewStorageHistoryRepository(db)
	ctx := context.Background()

	row := model.StorageHistoryRow{
		FacilityCode: "TSF1", Year: 2026, Month: 3,
		OpeningM3: 400000, ClosingM3: 425000, DataSource: "CALCULATED",
		UpdatedAt: time.Now(),
	}
	require.NoError(t, repo.Upsert(ctx, row))

	got, err := repo.Get(ctx, "TSF1", 2026, 3)
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, 425000.0, got.ClosingM3)

	row.ClosingM3 = 430000
	require.NoError(t, repo.Upsert(ctx, row))

	got, err = repo.Get(ctx, "TSF1", 2026, 3)
	require.NoError(t, err)
	require.Equal(t, 430000.0, got.ClosingM3)
}

func TestEnvironmentalRepository_MonthlyEnvironment(t *testing.T) {
	db := setupTestDB(t)
	repo := NewEnvironmentalRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.EnvironmentReading{
		Year: 2026, Month: 3, RainfallMM: 85.5, EvaporationMM: 140.2,
	}).Error)

	rainfall, evaporation, found, err := repo.MonthlyEnvironment(ctx, 2026, 3)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, 85.5, rainfall)
	require.Equal(t, 140.2, evaporation)

	_, _, found, err = repo.MonthlyEnvironment(ctx, 2025, 1)
	require.NoError(t, err)
	require.False(t, found)
}

func TestConstantsRepository_AllConstantsDecodesEveryShape(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConstantsRepository(db)
	ctx := context.Background()

	seed := []model.SiteConstant{
		{Name: "evap_pan_coefficient", ValueJSON: `0.7`},
		{Name: "runoff_enabled", ValueJSON: `true`},
		{Name: "surface_water_meter_columns", ValueJSON: `["river_abstraction"]`},
		{Name: "seasonal_factor", ValueJSON: `{"1": 0.8, "2": 0.9, "3": 1.1}`},
		{Name: "seepage_rate_lined_pct", ValueJSON: `{"TSF1": 0.01, "RWD1": 0.02}`},
	}
	for _, row := range seed {
		require.NoError(t, db.Create(&row).Error)
	}

	all, err := repo.AllConstants(ctx)
	require.NoError(t, err)

	require.Equal(t, 0.7, all["evap_pan_coefficient"])
	require.Equal(t, true, all["runoff_enabled"])
	require.Equal(t, []string{"river_abstraction"}, all["surface_water_meter_columns"])

	monthly, ok := all["seasonal_factor"].(map[int]float64)
	require.True(t, ok, "seasonal_factor should decode as a monthly table")
	require.Equal(t, 1.1, monthly[3])

	byFacility, ok := all["seepage_rate_lined_pct"].(map[string]float64)
	require.True(t, ok, "seepage_rate_lined_pct should decode as a string-keyed map")
	require.Equal(t, 0.02, byFacility["RWD1"])
}

func TestConstantsRepository_RefreshDropsCache(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConstantsRepository(db)
	ctx := context.Background()

	require.NoError(t, db.Create(&model.SiteConstant{Name: "workforce", ValueJSON: `500`}).Error)

	v, ok := repo.Constant(ctx, "workforce")
	require.True(t, ok)
	require.Equal(t, 500.0, v)

	require.NoError(t, db.Exec(`UPDATE site_constants SET value_json = '750' WHERE name = ?`, "workforce").Error)

	// Still cached until Refresh is called.
	v, _ = repo.Constant(ctx, "workforce")
	require.Equal(t, 500.0, v)

	require.NoError(t, repo.Refresh(ctx))

	v, ok = repo.Constant(ctx, "workforce")
	require.True(t, ok)
	require.Equal(t, 750.0, v)
}
