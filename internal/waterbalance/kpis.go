package waterbalance

import (
	"context"
	"log/slog"
	"math"

	"github.com/caliphsdev/waterbalance/internal/model"
)

// rwdIntensityMatchTolerancePct is the cross-check tolerance from spec
// §4.5: a measured-vs-calculated mismatch under this is not a warning.
const rwdIntensityMatchTolerancePct = 5.0

// KPICalculator derives recycled %, water intensity, abstraction-vs-license
// %, storage days, and the RWD/tailings cross-checks (spec §4.5).
type KPICalculator struct {
	meters    MeterRepository
	constants *siteConstants
	logger    *slog.Logger
}

func NewKPICalculator(meters MeterRepository, constants ConstantsProvider, logger *slog.Logger) *KPICalculator {
	return &KPICalculator{meters: meters, constants: newSiteConstants(constants), logger: logger}
}

// Calculate needs all four upstream results plus the moisture percentage
// the Outflows Calculator actually used for tailings lockup and the
// measured slurry density behind it (nil when the constant fallback fired),
// so the tailings-moisture cross-check reports the same figures exposed via
// tailings_lockup (spec §4.5's "exposed for reporting alongside...").
func (c *KPICalculator) Calculate(ctx context.Context, period model.Period, inflows model.InflowResult, outflows model.OutflowResult, storage model.StorageChange, recycled model.RecycledWaterResult, tailingsMoistureUsedPct float64, tailingsDensityMeasured *float64, flags *model.DataQualityFlags) model.KPIResult {
	fresh := inflows.TotalM3
	totalWater := fresh + recycled.TotalM3

	recycledPct := 0.0
	freshPct := 0.0
	if totalWater > 0 {
		recycledPct = recycled.TotalM3 / totalWater * 100.0
		freshPct = 100.0 - recycledPct
	}

	tonnesMilled, tonnesOK := c.tonnesMilled(ctx, period)

	waterIntensity := 0.0
	if tonnesOK && tonnesMilled > 0 {
		waterIntensity = totalWater / tonnesMilled
	} else {
		flags.AddMissing("water_intensity")
	}

	abstraction := inflows.AbstractionM3()

	var licenseM3, pctOfLicense *float64
	withinLicense := true
	license := c.constants.float(ctx, constAbstractionLicenseAnnualM3, 0)
	if license > 0 {
		monthlyLimit := license / 12.0
		pct := 0.0
		if monthlyLimit > 0 {
			pct = abstraction / monthlyLimit * 100.0
		}
		licenseM3 = &license
		pctOfLicense = &pct
		withinLicense = pct <= 100.0
	}

	storageDays := c.storageDays(period, outflows, storage)

	rwdMeasured, rwdCalculated, rwdMatch := c.rwdIntensityCheck(ctx, period, recycled, tonnesMilled, tonnesOK, flags)

	result := model.KPIResult{
		RecycledPct:              round4(recycledPct),
		FreshPct:                 round4(freshPct),
		WaterIntensityM3PerTonne: round4(waterIntensity),
		AbstractionM3:            abstraction,
		AbstractionLicenseM3:     licenseM3,
		AbstractionPctOfLicense:  pctOfLicense,
		StorageDays:              storageDays,
		AbstractionWithinLicense: withinLicense,
		RWDIntensityMeasured:     rwdMeasured,
		RWDIntensityCalculated:   rwdCalculated,
		RWDIntensityMatch:        rwdMatch,
	}

	if tailingsMoistureUsedPct > 0 {
		v := round4(tailingsMoistureUsedPct)
		result.TailingsMoistureFromDensity = &v
	}
	if tailingsDensityMeasured != nil {
		v := round4(*tailingsDensityMeasured)
		result.TailingsDensityMeasured = &v
	}

	return result
}

func (c *KPICalculator) tonnesMilled(ctx context.Context, period model.Period) (float64, bool) {
	column, ok := c.constants.string(ctx, constTonnesMilledColumn)
	if !ok {
		return 0, false
	}
	v, found, err := c.meters.MonthlyValue(ctx, column, period.StartDate(), period.EndDate())
	if err != nil || !found {
		return 0, false
	}
	return v, true
}

// storageDays is undefined (nil), not infinity, when outflows are zero or
// negative (spec §4.5, §8 boundary behaviors).
func (c *KPICalculator) storageDays(period model.Period, outflows model.OutflowResult, storage model.StorageChange) *float64 {
	if outflows.TotalM3 <= 0 {
		return nil
	}
	dailyOutflow := outflows.TotalM3 / float64(period.DaysInPeriod())
	if dailyOutflow <= 0 {
		return nil
	}
	days := storage.ClosingM3 / dailyOutflow
	return &days
}

// rwdIntensityCheck cross-checks measured rwd_intensity against
// rwd_volume/tonnes_milled; a mismatch never fails the balance, only warns.
func (c *KPICalculator) rwdIntensityCheck(ctx context.Context, period model.Period, recycled model.RecycledWaterResult, tonnesMilled float64, tonnesOK bool, flags *model.DataQualityFlags) (measured, calculated *float64, match bool) {
	start, end := period.StartDate(), period.EndDate()

	intensityCol, hasIntensityCol := c.constants.string(ctx, constRWDIntensityColumn)
	volumeCol, hasVolumeCol := c.constants.string(ctx, constRWDVolumeColumn)
	if !hasIntensityCol || !hasVolumeCol || !tonnesOK || tonnesMilled <= 0 {
		return nil, nil, true
	}

	measuredVal, measuredFound, err1 := c.meters.MonthlyValue(ctx, intensityCol, start, end)
	rwdVolume, volumeFound, err2 := c.meters.MonthlyValue(ctx, volumeCol, start, end)
	if err1 != nil || err2 != nil || !measuredFound || !volumeFound || measuredVal == 0 {
		return nil, nil, true
	}

	calculatedVal := rwdVolume / tonnesMilled
	diffPct := math.Abs(measuredVal-calculatedVal) / measuredVal * 100.0
	isMatch := diffPct < rwdIntensityMatchTolerancePct
	if !isMatch {
		flags.AddWarning("rwd_intensity mismatch: measured and calculated differ by more than 5%")
	}
	return &measuredVal, &calculatedVal, isMatch
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
