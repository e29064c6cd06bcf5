package waterbalance

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/caliphsdev/waterbalance/internal/model"
)

// fakeConstants is an in-memory ConstantsProvider used across calculator
// tests. It never errors; missing names simply return ok=false, exercising
// the defaulted siteConstants accessors the same way a bare site config
// with a missing key would.
type fakeConstants struct {
	values map[string]any
}

func newFakeConstants(values map[string]any) *fakeConstants {
	if values == nil {
		values = map[string]any{}
	}
	return &fakeConstants{values: values}
}

func (f *fakeConstants) Constant(_ context.Context, name string) (any, bool) {
	v, ok := f.values[name]
	return v, ok
}

func (f *fakeConstants) AllConstants(_ context.Context) (map[string]any, error) {
	out := make(map[string]any, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out, nil
}

// fakeMeters is an in-memory MeterRepository keyed by column name; values
// not present simulate a column with no reading for the period.
type fakeMeters struct {
	values map[string]float64
	errs   map[string]error
}

func newFakeMeters(values map[string]float64) *fakeMeters {
	return &fakeMeters{values: values, errs: map[string]error{}}
}

func (f *fakeMeters) MonthlyValue(_ context.Context, column string, _, _ time.Time) (float64, bool, error) {
	if err, ok := f.errs[column]; ok {
		return 0, false, err
	}
	v, ok := f.values[column]
	return v, ok, nil
}

func (f *fakeMeters) ListColumns(_ context.Context) ([]string, error) {
	cols := make([]string, 0, len(f.values))
	for k := range f.values {
		cols = append(cols, k)
	}
	return cols, nil
}

// fakeFacilities is an in-memory FacilityRepository; UpdateCurrentVolume
// mutates the backing slice so tests can assert persistence took effect.
type fakeFacilities struct {
	facilities []model.Facility
}

func newFakeFacilities(facilities ...model.Facility) *fakeFacilities {
	return &fakeFacilities{facilities: facilities}
}

func (f *fakeFacilities) ListActiveFacilities(_ context.Context) ([]model.Facility, error) {
	var active []model.Facility
	for _, fac := range f.facilities {
		if fac.IsActive() {
			active = append(active, fac)
		}
	}
	return active, nil
}

func (f *fakeFacilities) UpdateCurrentVolume(_ context.Context, facilityCode string, closingM3 float64) error {
	for i := range f.facilities {
		if f.facilities[i].Code == facilityCode {
			f.facilities[i].CurrentVolumeM3 = closingM3
		}
	}
	return nil
}

// fakeStorageHistory is an in-memory StorageHistoryRepository.
type fakeStorageHistory struct {
	rows map[string]model.StorageHistoryRow
}

func newFakeStorageHistory() *fakeStorageHistory {
	return &fakeStorageHistory{rows: map[string]model.StorageHistoryRow{}}
}

func historyKey(facilityCode string, year, month int) string {
	return facilityCode + ":" + model.Period{Year: year, Month: month}.PeriodShort()
}

func (f *fakeStorageHistory) Get(_ context.Context, facilityCode string, year, month int) (*model.StorageHistoryRow, error) {
	row, ok := f.rows[historyKey(facilityCode, year, month)]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (f *fakeStorageHistory) Upsert(_ context.Context, row model.StorageHistoryRow) error {
	f.rows[historyKey(row.FacilityCode, row.Year, row.Month)] = row
	return nil
}

// fakeEnvironment is an in-memory EnvironmentalRepository.
type fakeEnvironment struct {
	rainfallMM, evaporationMM float64
	ok                        bool
}

func (f fakeEnvironment) MonthlyEnvironment(_ context.Context, _, _ int) (float64, float64, bool, error) {
	return f.rainfallMM, f.evaporationMM, f.ok, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
