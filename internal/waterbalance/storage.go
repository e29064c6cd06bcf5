package waterbalance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caliphsdev/waterbalance/internal/model"
)

// StorageCalculator computes opening/closing volumes for the system and
// each facility (spec §4.3). It supports a dual mode: balance-derived
// (preferred, when inflows/outflows are supplied) and measured.
type StorageCalculator struct {
	facilities FacilityRepository
	history    StorageHistoryRepository
	logger     *slog.Logger
}

func NewStorageCalculator(facilities FacilityRepository, history StorageHistoryRepository, logger *slog.Logger) *StorageCalculator {
	return &StorageCalculator{facilities: facilities, history: history, logger: logger}
}

// Calculate returns the system-level StorageChange with FacilityBreakdown
// populated. inflowsM3/outflowsM3 are nil in measured mode.
func (c *StorageCalculator) Calculate(ctx context.Context, period model.Period, flags *model.DataQualityFlags, inflowsM3, outflowsM3 *float64) model.StorageChange {
	facilities, err := c.facilities.ListActiveFacilities(ctx)
	if err != nil {
		c.logger.Warn("storage: failed to list facilities", "period", period.String(), "error", err)
		flags.AddWarning("storage: failed to list facilities: " + err.Error())
		facilities = nil
	}

	openings := make([]float64, len(facilities))
	totalOpening := 0.0
	for i, f := range facilities {
		opening := c.openingVolume(ctx, period, f, flags)
		openings[i] = opening
		totalOpening += opening
	}

	totalCapacity := 0.0
	for _, f := range facilities {
		totalCapacity += f.CapacityM3
	}

	balanceDerived := inflowsM3 != nil && outflowsM3 != nil

	var totalClosing float64
	var quality model.DataQualityLevel
	if balanceDerived {
		totalClosing = totalOpening + *inflowsM3 - *outflowsM3
		quality = model.Calculated

		if totalClosing < 0 {
			flags.AddWarning("storage_negative: balance-derived closing would be negative, clamped to 0")
			totalClosing = 0
		}
		if totalCapacity > 0 && totalClosing > totalCapacity {
			flags.AddWarning(fmt.Sprintf("storage_overflow: closing exceeds total capacity by %.2f m3", totalClosing-totalCapacity))
		}
	} else {
		for _, f := range facilities {
			totalClosing += f.CurrentVolumeM3
		}
		quality = model.Measured
	}

	breakdown := c.distribute(facilities, openings, totalOpening, totalClosing, balanceDerived)

	return model.StorageChange{
		FacilityCode:      "",
		FacilityName:      "system",
		OpeningM3:         totalOpening,
		ClosingM3:         totalClosing,
		CapacityM3:        totalCapacity,
		Source:            quality,
		FacilityBreakdown: breakdown,
	}
}

// openingVolume implements the lookup order from spec §4.3: prior month's
// recorded closing, else the facility's current volume (estimated, with a
// note), else 0 with a warning.
func (c *StorageCalculator) openingVolume(ctx context.Context, period model.Period, f model.Facility, flags *model.DataQualityFlags) float64 {
	prev := period.Previous()

	row, err := c.history.Get(ctx, f.Code, prev.Year, prev.Month)
	if err == nil && row != nil {
		return row.ClosingM3
	}
	if err != nil {
		flags.AddWarning("storage: history lookup failed for " + f.Code + ": " + err.Error())
	}

	if f.CurrentVolumeM3 != 0 {
		flags.AddEstimated("opening_" + f.Code)
		flags.AddNote("opening_"+f.Code, "no storage history row, using current facility volume")
		return f.CurrentVolumeM3
	}

	flags.AddWarning("storage: no opening volume available for " + f.Code + ", defaulting to 0")
	return 0
}

// distribute applies the proportional redistribution from spec §4.3's
// "Per-facility distribution": each facility's closing share follows its
// opening share of the total, falling back to an equal split when the
// system has no recorded opening volume at all.
func (c *StorageCalculator) distribute(facilities []model.Facility, openings []float64, totalOpening, totalClosing float64, balanceDerived bool) []model.StorageChange {
	breakdown := make([]model.StorageChange, 0, len(facilities))

	if !balanceDerived {
		for i, f := range facilities {
			breakdown = append(breakdown, model.StorageChange{
				FacilityCode: f.Code,
				FacilityName: f.Name,
				OpeningM3:    openings[i],
				ClosingM3:    f.CurrentVolumeM3,
				CapacityM3:   f.CapacityM3,
				Source:       model.Measured,
			})
		}
		return breakdown
	}

	totalDelta := totalClosing - totalOpening
	n := len(facilities)
	for i, f := range facilities {
		var closing float64
		if totalOpening > 0 {
			closing = openings[i] + totalDelta*(openings[i]/totalOpening)
		} else if n > 0 {
			closing = openings[i] + totalDelta/float64(n)
		} else {
			closing = openings[i]
		}
		breakdown = append(breakdown, model.StorageChange{
			FacilityCode: f.Code,
			FacilityName: f.Name,
			OpeningM3:    openings[i],
			ClosingM3:    closing,
			CapacityM3:   f.CapacityM3,
			Source:       model.Calculated,
		})
	}
	return breakdown
}

// RecordAllFacilitiesHistory upserts each facility's opening/closing for
// period and updates its current_volume_m3 to the new closing, supplying
// next month's opening (spec §4.3 "History persistence"). Non-fatal: the
// orchestrator logs and continues if this fails.
func (c *StorageCalculator) RecordAllFacilitiesHistory(ctx context.Context, period model.Period, storage model.StorageChange) error {
	now := time.Now()
	for _, fb := range storage.FacilityBreakdown {
		row := model.StorageHistoryRow{
			FacilityCode: fb.FacilityCode,
			Year:         period.Year,
			Month:        period.Month,
			OpeningM3:    fb.OpeningM3,
			ClosingM3:    fb.ClosingM3,
			DataSource:   fb.Source.String(),
			UpdatedAt:    now,
		}
		if err := c.history.Upsert(ctx, row); err != nil {
			return err
		}
		if err := c.facilities.UpdateCurrentVolume(ctx, fb.FacilityCode, fb.ClosingM3); err != nil {
			return err
		}
	}
	return nil
}
