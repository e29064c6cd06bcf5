// Package waterbalance is the mine-site water balance calculation core: five
// composed calculators plus an orchestrator and a runway projector. It
// depends only on the narrow collaborator interfaces declared in this file
// and the value types in internal/model — it must never import a concrete
// repository, gorm, or gin. Production wires concrete repositories (see
// internal/repository) over this package; tests wire in-memory fakes.
package waterbalance

import (
	"context"
	"time"

	"github.com/caliphsdev/waterbalance/internal/model"
)

// ConstantsProvider is the read-only catalogue of site coefficients,
// feature toggles, and seasonal tables (spec §6.1).
type ConstantsProvider interface {
	Constant(ctx context.Context, name string) (any, bool)
	AllConstants(ctx context.Context) (map[string]any, error)
}

// Refreshable is implemented by ConstantsProvider adapters that cache
// their backing store and can be told to drop that cache. Orchestrator's
// ClearCache calls it opportunistically (spec §3's "constants loader
// refresh on cache clear" coupling, carried over from the original).
type Refreshable interface {
	Refresh(ctx context.Context) error
}

// MeterRepository exposes named monthly meter/production series (spec §6.2).
// Column names are site configuration, supplied by ConstantsProvider, never
// hard-coded in the core.
type MeterRepository interface {
	MonthlyValue(ctx context.Context, column string, start, end time.Time) (float64, bool, error)
	ListColumns(ctx context.Context) ([]string, error)
}

// FacilityRepository lists the storage facilities participating in the
// balance (spec §6.3) and owns the one other piece of persisted state the
// core writes: each facility's current_volume_m3, overwritten with the
// latest closing after every successful balance (spec §6 "Persisted state").
type FacilityRepository interface {
	ListActiveFacilities(ctx context.Context) ([]model.Facility, error)
	UpdateCurrentVolume(ctx context.Context, facilityCode string, closingM3 float64) error
}

// StorageHistoryRepository is the per-facility monthly opening/closing
// ledger the core writes to directly (spec §6.4).
type StorageHistoryRepository interface {
	Get(ctx context.Context, facilityCode string, year, month int) (*model.StorageHistoryRow, error)
	Upsert(ctx context.Context, row model.StorageHistoryRow) error
}

// EnvironmentalRepository exposes monthly rainfall/evaporation readings
// (spec §6.5).
type EnvironmentalRepository interface {
	MonthlyEnvironment(ctx context.Context, year, month int) (rainfallMM, evaporationMM float64, ok bool, err error)
}
