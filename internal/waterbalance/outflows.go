package waterbalance

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/caliphsdev/waterbalance/internal/model"
)

// OutflowsCalculator composes evaporation, seepage, dust suppression,
// tailings lockup, mining/domestic consumption, and product moisture into a
// totaled OutflowResult (spec §4.2).
type OutflowsCalculator struct {
	meters      MeterRepository
	facilities  FacilityRepository
	environment EnvironmentalRepository
	constants   *siteConstants
	logger      *slog.Logger
}

func NewOutflowsCalculator(meters MeterRepository, facilities FacilityRepository, environment EnvironmentalRepository, constants ConstantsProvider, logger *slog.Logger) *OutflowsCalculator {
	return &OutflowsCalculator{
		meters:      meters,
		facilities:  facilities,
		environment: environment,
		constants:   newSiteConstants(constants),
		logger:      logger,
	}
}

// Calculate returns the totaled OutflowResult plus the tailings moisture
// percentage actually used (measured-density derived or constant fallback)
// and, when a slurry density reading was available, the measured density
// itself — both exposed for the KPI Calculator's cross-check (spec §4.5).
func (c *OutflowsCalculator) Calculate(ctx context.Context, period model.Period, flags *model.DataQualityFlags) (model.OutflowResult, float64, *float64) {
	start, end := period.StartDate(), period.EndDate()

	facilities, err := c.facilities.ListActiveFacilities(ctx)
	if err != nil {
		c.logger.Warn("outflows: failed to list facilities", "period", period.String(), "error", err)
		flags.AddWarning("outflows: failed to list facilities: " + err.Error())
		facilities = nil
	}

	var components []model.OutflowComponent
	components = append(components, c.evaporation(ctx, period, facilities, c.environment, flags))
	components = append(components, c.seepage(ctx, facilities, flags))

	tonnesMilled, tonnesOK := c.tonnesMilled(ctx, start, end)
	components = append(components, c.dustSuppression(ctx, tonnesMilled, tonnesOK, flags))

	tailingsComp, moisturePct, densityMeasured := c.tailingsLockup(ctx, start, end, tonnesMilled, tonnesOK, flags)
	components = append(components, tailingsComp)

	if c.constants.boolean(ctx, constMiningConsumptionEnabled, defaultMiningConsumptionEnabled) {
		components = append(components, c.miningConsumption(ctx, tonnesMilled, tonnesOK))
	}

	if c.constants.boolean(ctx, constDomesticConsumptionEnabled, defaultDomesticConsumptionEnabled) {
		components = append(components, c.domesticConsumption(ctx, period))
	}

	components = append(components, c.productMoisture(ctx, start, end, tonnesMilled, tonnesOK, flags))

	total := 0.0
	componentMap := make(map[string]float64, len(components))
	quality := model.Measured
	for _, comp := range components {
		total += comp.ValueM3
		componentMap[comp.Name] = comp.ValueM3
		quality = model.Min(quality, comp.Quality)
	}

	return model.OutflowResult{
		TotalM3:          total,
		Components:       componentMap,
		ComponentDetails: components,
		Quality:          quality,
	}, moisturePct, densityMeasured
}

// evaporation sums pan-coefficient evaporation per active facility, clamped
// to that facility's current volume so a facility can never evaporate more
// water than it holds (spec §4.2 "Evaporation clamping").
func (c *OutflowsCalculator) evaporation(ctx context.Context, period model.Period, facilities []model.Facility, environment EnvironmentalRepository, flags *model.DataQualityFlags) model.OutflowComponent {
	_, evapMM, ok, err := environment.MonthlyEnvironment(ctx, period.Year, period.Month)
	if err != nil || !ok {
		flags.AddMissing("evaporation")
		return model.OutflowComponent{Name: "evaporation", ValueM3: 0, Quality: model.Missing, Notes: "no environmental record for period"}
	}

	panCoeff := c.constants.float(ctx, constEvapPanCoefficient, 0.7)

	total := 0.0
	for _, f := range facilities {
		if !f.IsActive() || f.SurfaceAreaM2 <= 0 {
			continue
		}
		evapM3 := evapMM * panCoeff * f.SurfaceAreaM2 / 1000.0
		if evapM3 > f.CurrentVolumeM3 {
			evapM3 = f.CurrentVolumeM3
		}
		total += evapM3
	}

	return model.OutflowComponent{
		Name:        "evaporation",
		ValueM3:     total,
		Quality:     model.Calculated,
		SourceLabel: "environmental repository + constants",
		Notes:       "clamped to facility current volume",
	}
}

// seepage sums lined/unlined seepage loss per active facility with volume.
func (c *OutflowsCalculator) seepage(ctx context.Context, facilities []model.Facility, flags *model.DataQualityFlags) model.OutflowComponent {
	linedRate := c.constants.float(ctx, constSeepageRateLinedPct, 0.1)
	unlinedRate := c.constants.float(ctx, constSeepageRateUnlinedPct, 0.5)

	total := 0.0
	for _, f := range facilities {
		if !f.IsActive() || f.CurrentVolumeM3 <= 0 {
			continue
		}
		rate := unlinedRate
		if f.IsLined {
			rate = linedRate
		}
		total += f.CurrentVolumeM3 * rate / 100.0
	}

	return model.OutflowComponent{
		Name:        "seepage",
		ValueM3:     total,
		Quality:     model.Calculated,
		SourceLabel: "facility volumes + constants",
		Notes:       fmt.Sprintf("lined=%.2f%%, unlined=%.2f%% of volume", linedRate, unlinedRate),
	}
}

func (c *OutflowsCalculator) tonnesMilled(ctx context.Context, start, end time.Time) (float64, bool) {
	column, ok := c.constants.string(ctx, constTonnesMilledColumn)
	if !ok {
		return 0, false
	}
	v, found, err := c.meters.MonthlyValue(ctx, column, start, end)
	if err != nil || !found {
		return 0, false
	}
	return v, true
}

func (c *OutflowsCalculator) dustSuppression(ctx context.Context, tonnesMilled float64, tonnesOK bool, flags *model.DataQualityFlags) model.OutflowComponent {
	if !tonnesOK || tonnesMilled <= 0 {
		flags.AddMissing("dust_suppression")
		return model.OutflowComponent{Name: "dust_suppression", ValueM3: 0, Quality: model.Missing}
	}
	rate := c.constants.float(ctx, constDustSuppressionRateLPerT, 1.0)
	flags.AddEstimated("dust_suppression")
	return model.OutflowComponent{
		Name:        "dust_suppression",
		ValueM3:     tonnesMilled * rate / 1000.0,
		Quality:     model.Estimated,
		SourceLabel: "tonnes_milled × constant rate",
	}
}

// tailingsLockup derives moisture from measured slurry density when valid,
// else falls back to the constant moisture %. Returns the component, the
// moisture percentage actually used, and the measured density behind it
// (nil when the constant fallback was used), for reuse by the KPI
// cross-check.
func (c *OutflowsCalculator) tailingsLockup(ctx context.Context, start, end time.Time, tonnesMilled float64, tonnesOK bool, flags *model.DataQualityFlags) (model.OutflowComponent, float64, *float64) {
	moisturePct, quality, notes, densityMeasured := c.moistureFromDensityOrConstant(ctx, start, end, flags)

	if !tonnesOK || tonnesMilled <= 0 {
		flags.AddMissing("tailings_lockup")
		return model.OutflowComponent{Name: "tailings_lockup", ValueM3: 0, Quality: model.Missing}, moisturePct, densityMeasured
	}

	value := tonnesMilled * moisturePct / 100.0
	return model.OutflowComponent{
		Name:        "tailings_lockup",
		ValueM3:     value,
		Quality:     quality,
		SourceLabel: "tailings tonnes (≈tonnes_milled)",
		Notes:       notes,
	}, moisturePct, densityMeasured
}

// moistureFromDensityOrConstant implements the Cw derivation from spec §4.2:
//
//	Cw = solids_density × (slurry_density − 1) / (slurry_density × (solids_density − 1))
//	moisture_pct = (1 − Cw) × 100
//
// valid only for 1.0 < slurry_density < solids_density; otherwise falls back
// to the constant moisture percentage. The measured density return is nil
// whenever the constant fallback fired, including the out-of-bounds case —
// an implausible reading should not masquerade as a trustworthy measurement.
func (c *OutflowsCalculator) moistureFromDensityOrConstant(ctx context.Context, start, end time.Time, flags *model.DataQualityFlags) (moisturePct float64, quality model.DataQualityLevel, notes string, densityMeasured *float64) {
	constantMoisture := c.constants.float(ctx, constTailingsMoisturePct, 45.0)

	column, ok := c.constants.string(ctx, constTailingsDensityCol)
	if !ok {
		return constantMoisture, model.Estimated, "density unavailable, using constant moisture %", nil
	}

	density, found, err := c.meters.MonthlyValue(ctx, column, start, end)
	if err != nil || !found {
		return constantMoisture, model.Estimated, "density unavailable, using constant moisture %", nil
	}

	solidsDensity := c.constants.float(ctx, constTailingsSolidsDensity, defaultTailingsSolidsDensity)
	if density <= 1.0 || density >= solidsDensity {
		flags.AddWarning("tailings density out of physical bounds, falling back to constant moisture %")
		return constantMoisture, model.Estimated, "density out of bounds, using constant moisture %", nil
	}

	cw := solidsDensity * (density - 1.0) / (density * (solidsDensity - 1.0))
	moisturePct = (1.0 - cw) * 100.0
	return moisturePct, model.Calculated, "moisture derived from measured slurry density", &density
}

func (c *OutflowsCalculator) miningConsumption(ctx context.Context, tonnesMilled float64, tonnesOK bool) model.OutflowComponent {
	if !tonnesOK || tonnesMilled <= 0 {
		return model.OutflowComponent{Name: "mining_consumption", ValueM3: 0, Quality: model.Missing}
	}
	rate := c.constants.float(ctx, constMiningWaterRateM3PerT, 0)
	return model.OutflowComponent{
		Name:        "mining_consumption",
		ValueM3:     tonnesMilled * rate,
		Quality:     model.Calculated,
		SourceLabel: "tonnes_milled × constant rate",
	}
}

func (c *OutflowsCalculator) domesticConsumption(ctx context.Context, period model.Period) model.OutflowComponent {
	workforce := c.constants.float(ctx, constWorkforce, defaultWorkforce)
	lPerPersonDay := c.constants.float(ctx, constDomesticConsumptionLPerPD, 150.0)
	value := workforce * float64(period.DaysInPeriod()) * lPerPersonDay / 1000.0
	return model.OutflowComponent{
		Name:        "domestic_consumption",
		ValueM3:     value,
		Quality:     model.Calculated,
		SourceLabel: "workforce × days × constant rate",
	}
}

// productMoisture implements the two-tier fallback from spec §4.2.
func (c *OutflowsCalculator) productMoisture(ctx context.Context, start, end time.Time, tonnesMilled float64, tonnesOK bool, flags *model.DataQualityFlags) model.OutflowComponent {
	pgmTonnesCol, hasPGM := c.constants.string(ctx, constPGMWetTonnesColumn)
	pgmMoistureCol, hasPGMMoisture := c.constants.string(ctx, constPGMMoistureColumn)

	if hasPGM && hasPGMMoisture {
		pgmTonnes, pgmFound, err1 := c.meters.MonthlyValue(ctx, pgmTonnesCol, start, end)
		pgmMoisture, pgmMoistFound, err2 := c.meters.MonthlyValue(ctx, pgmMoistureCol, start, end)
		if err1 == nil && err2 == nil && pgmFound && pgmMoistFound {
			total := pgmTonnes * pgmMoisture / 100.0

			if chromiteCol, ok := c.constants.string(ctx, constChromiteWetColumn); ok {
				if chromiteMoistCol, ok2 := c.constants.string(ctx, constChromiteMoistColumn); ok2 {
					chromiteTonnes, cFound, errC := c.meters.MonthlyValue(ctx, chromiteCol, start, end)
					chromiteMoisture, cmFound, errCM := c.meters.MonthlyValue(ctx, chromiteMoistCol, start, end)
					if errC == nil && errCM == nil && cFound && cmFound {
						total += chromiteTonnes * chromiteMoisture / 100.0
					}
				}
			}

			return model.OutflowComponent{
				Name:        "product_moisture",
				ValueM3:     total,
				Quality:     model.Calculated,
				SourceLabel: "PGM + chromite wet tonnes × moisture %",
			}
		}
	}

	if !tonnesOK || tonnesMilled <= 0 {
		flags.AddMissing("product_moisture")
		return model.OutflowComponent{Name: "product_moisture", ValueM3: 0, Quality: model.Missing}
	}

	recoveryPct := c.constants.float(ctx, constRecoveryRatePct, 8.0)
	productMoisturePct := c.constants.float(ctx, constProductMoisturePct, 2.0)
	flags.AddEstimated("product_moisture")
	return model.OutflowComponent{
		Name:        "product_moisture",
		ValueM3:     tonnesMilled * recoveryPct * productMoisturePct / 10000.0,
		Quality:     model.Estimated,
		SourceLabel: "tonnes_milled × recovery % × product moisture %",
	}
}

