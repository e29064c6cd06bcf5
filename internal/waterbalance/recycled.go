package waterbalance

import (
	"context"
	"log/slog"
	"time"

	"github.com/caliphsdev/waterbalance/internal/model"
)

// RecycledCalculator computes the informational recycled/dirty-water
// stream (spec §4.4). Its total is never added to inflows in the main
// closure — the system treats recycling as internal circulation rather
// than a boundary inflow.
type RecycledCalculator struct {
	meters    MeterRepository
	constants *siteConstants
	logger    *slog.Logger
}

func NewRecycledCalculator(meters MeterRepository, constants ConstantsProvider, logger *slog.Logger) *RecycledCalculator {
	return &RecycledCalculator{meters: meters, constants: newSiteConstants(constants), logger: logger}
}

// Calculate returns the recycled result. dewateringM3 is the underground
// dewatering component already computed by the Inflows Calculator, needed
// here to apply the classify_underground_as_fresh toggle (spec §9 open
// question 1, §4.4): when the site classifies dewatering as dirty, it is
// additionally reported in DirtyInflowsM3 but still contributes to IN on
// the closure side via Inflows — this calculator never subtracts it back
// out.
func (c *RecycledCalculator) Calculate(ctx context.Context, period model.Period, dewateringM3 float64, flags *model.DataQualityFlags) model.RecycledWaterResult {
	start, end := period.StartDate(), period.EndDate()

	classifyAsFresh := c.constants.boolean(ctx, constClassifyUndergroundAsFresh, defaultClassifyUndergroundAsFresh)
	dirtyInflows := 0.0
	if !classifyAsFresh {
		dirtyInflows = dewateringM3
	}

	if col, ok := c.constants.string(ctx, constTotalRecycledColumn); ok {
		if v, found, err := c.meters.MonthlyValue(ctx, col, start, end); err == nil && found && v > 0 {
			return model.RecycledWaterResult{
				TotalM3:        v,
				DirtyInflowsM3: dirtyInflows,
				Quality:        model.Measured,
			}
		}
	}

	tsfReturn := c.estimatedTSFReturn(ctx, start, end, flags)
	rwdCirculation := c.rwdCirculation(ctx, start, end)

	return model.RecycledWaterResult{
		TotalM3:          tsfReturn + rwdCirculation,
		TSFReturnM3:      tsfReturn,
		RWDCirculationM3: rwdCirculation,
		DirtyInflowsM3:   dirtyInflows,
		Quality:          model.Estimated,
	}
}

func (c *RecycledCalculator) estimatedTSFReturn(ctx context.Context, start, end time.Time, flags *model.DataQualityFlags) float64 {
	col, ok := c.constants.string(ctx, constPlantConsumptionColumn)
	if !ok {
		flags.AddMissing("tsf_return")
		return 0
	}
	plantConsumption, found, err := c.meters.MonthlyValue(ctx, col, start, end)
	if err != nil || !found {
		flags.AddMissing("tsf_return")
		return 0
	}
	pct := c.constants.float(ctx, constTSFReturnWaterPct, 0)
	flags.AddEstimated("tsf_return")
	return plantConsumption * pct / 100.0
}

func (c *RecycledCalculator) rwdCirculation(ctx context.Context, start, end time.Time) float64 {
	col, ok := c.constants.string(ctx, constRWDCirculationColumn)
	if !ok {
		return 0
	}
	v, found, err := c.meters.MonthlyValue(ctx, col, start, end)
	if err != nil || !found {
		return 0
	}
	return v
}
