package waterbalance

import (
	"context"
	"log/slog"
	"time"

	"github.com/caliphsdev/waterbalance/internal/model"
)

// InflowsCalculator composes rainfall, surface/ground abstraction,
// underground dewatering, ore moisture, and optional catchment runoff into
// a totaled InflowResult (spec §4.1).
type InflowsCalculator struct {
	meters       MeterRepository
	facilities   FacilityRepository
	environment  EnvironmentalRepository
	constants    *siteConstants
	logger       *slog.Logger
}

// NewInflowsCalculator wires the calculator's collaborators explicitly —
// no global state, per spec §9.
func NewInflowsCalculator(meters MeterRepository, facilities FacilityRepository, environment EnvironmentalRepository, constants ConstantsProvider, logger *slog.Logger) *InflowsCalculator {
	return &InflowsCalculator{
		meters:      meters,
		facilities:  facilities,
		environment: environment,
		constants:   newSiteConstants(constants),
		logger:      logger,
	}
}

// Calculate never returns an error: per-component failures degrade to 0.0
// and are recorded in flags (spec §4.1 "Error handling").
func (c *InflowsCalculator) Calculate(ctx context.Context, period model.Period, flags *model.DataQualityFlags) model.InflowResult {
	start, end := period.StartDate(), period.EndDate()

	facilities, err := c.facilities.ListActiveFacilities(ctx)
	if err != nil {
		c.logger.Warn("inflows: failed to list facilities", "period", period.String(), "error", err)
		flags.AddWarning("inflows: failed to list facilities: " + err.Error())
		facilities = nil
	}

	components := make([]model.InflowComponent, 0, 6)

	rainfallComp := c.rainfall(ctx, period, facilities, flags)
	components = append(components, rainfallComp)

	surfaceComp := c.sumColumns(ctx, "surface_water", c.constants.strings(ctx, constSurfaceWaterColumns), start, end, flags, "named river meter columns")
	components = append(components, surfaceComp)

	groundComp := c.sumColumns(ctx, "groundwater", c.constants.strings(ctx, constGroundwaterColumns), start, end, flags, "named borehole meter columns")
	components = append(components, groundComp)

	dewateringComp := c.sumColumns(ctx, "dewatering", c.constants.strings(ctx, constDewateringColumns), start, end, flags, "named underground-pump meter columns")
	components = append(components, dewateringComp)

	oreMoistureComp := c.oreMoisture(ctx, start, end, flags)
	components = append(components, oreMoistureComp)

	if c.constants.boolean(ctx, constRunoffEnabled, defaultRunoffEnabled) {
		runoffComp := c.runoff(ctx, period, facilities, rainfallComp.Notes, flags)
		components = append(components, runoffComp)
	}

	total := 0.0
	componentMap := make(map[string]float64, len(components))
	quality := model.Measured
	for _, comp := range components {
		total += comp.ValueM3
		componentMap[comp.Name] = comp.ValueM3
		quality = model.Min(quality, comp.Quality)
	}

	return model.InflowResult{
		TotalM3:          total,
		Components:       componentMap,
		ComponentDetails: components,
		Quality:          quality,
	}
}

func (c *InflowsCalculator) rainfall(ctx context.Context, period model.Period, facilities []model.Facility, flags *model.DataQualityFlags) model.InflowComponent {
	rainfallMM, evapMM, ok, err := c.environment.MonthlyEnvironment(ctx, period.Year, period.Month)
	_ = evapMM
	if err != nil || !ok {
		flags.AddMissing("rainfall")
		return model.InflowComponent{Name: "rainfall", ValueM3: 0, Quality: model.Missing, Notes: "no environmental record for period"}
	}

	surfaceArea := 0.0
	for _, f := range facilities {
		if f.IsActive() && f.SurfaceAreaM2 > 0 {
			surfaceArea += f.SurfaceAreaM2
		}
	}

	value := rainfallMM * surfaceArea / 1000.0
	return model.InflowComponent{
		Name:        "rainfall",
		ValueM3:     value,
		Quality:     model.Measured,
		SourceLabel: "environmental repository",
		Notes:       "",
	}
}

// runoffSurfaceKey is the runoff-coefficient key applied to the combined
// catchment when the constants provider does not distinguish per-facility
// surface type. The external Facility record (spec §6.3) carries only a
// single optional catchment_area_m2, not a surface-type tag, so runoff uses
// one site-wide coefficient rather than per-facility ones; see DESIGN.md.
const runoffSurfaceKey = "default"

func (c *InflowsCalculator) runoff(ctx context.Context, period model.Period, facilities []model.Facility, _ string, flags *model.DataQualityFlags) model.InflowComponent {
	rainfallMM, _, ok, err := c.environment.MonthlyEnvironment(ctx, period.Year, period.Month)
	if err != nil || !ok {
		return model.InflowComponent{Name: "runoff", ValueM3: 0, Quality: model.Missing}
	}

	catchment := 0.0
	for _, f := range facilities {
		if f.IsActive() {
			catchment += f.CatchmentAreaM2
		}
	}

	coeffs := c.constants.floatMap(ctx, constRunoffCoefficients)
	coeff, hasCoeff := coeffs[runoffSurfaceKey]
	if !hasCoeff {
		coeff = 0.30 // vegetated-surface default per spec §4.1's coefficient table
	}

	if catchment <= 0 {
		flags.AddEstimated("runoff")
		return model.InflowComponent{Name: "runoff", ValueM3: 0, Quality: model.Estimated, Notes: "no catchment area configured"}
	}

	value := rainfallMM * catchment * coeff / 1000.0
	return model.InflowComponent{
		Name:        "runoff",
		ValueM3:     value,
		Quality:     model.Calculated,
		SourceLabel: "environmental repository + constants",
	}
}

func (c *InflowsCalculator) oreMoisture(ctx context.Context, start, end time.Time, flags *model.DataQualityFlags) model.InflowComponent {
	column, ok := c.constants.string(ctx, constTonnesMilledColumn)
	if !ok {
		flags.AddMissing("ore_moisture")
		return model.InflowComponent{Name: "ore_moisture", ValueM3: 0, Quality: model.Missing}
	}

	tonnes, found, err := c.meters.MonthlyValue(ctx, column, start, end)
	if err != nil || !found {
		flags.AddMissing("ore_moisture")
		return model.InflowComponent{Name: "ore_moisture", ValueM3: 0, Quality: model.Missing, Notes: "tonnes_milled unavailable"}
	}

	moisturePct := c.constants.float(ctx, constOreMoisturePct, 3.5)
	value := tonnes * moisturePct / 100.0
	return model.InflowComponent{
		Name:        "ore_moisture",
		ValueM3:     value,
		Quality:     model.Calculated,
		SourceLabel: column,
	}
}

// sumColumns sums a set of named meter columns, treating an individual
// missing column as a 0 contribution rather than a flagged failure (spec
// §4.1: "missing columns contribute 0").
func (c *InflowsCalculator) sumColumns(ctx context.Context, name string, columns []string, start, end time.Time, flags *model.DataQualityFlags, sourceLabel string) model.InflowComponent {
	if len(columns) == 0 {
		flags.AddMissing(name)
		return model.InflowComponent{Name: name, ValueM3: 0, Quality: model.Missing, Notes: "no meter columns configured"}
	}

	total := 0.0
	anyFound := false
	for _, col := range columns {
		v, found, err := c.meters.MonthlyValue(ctx, col, start, end)
		if err != nil {
			flags.AddWarning(name + ": meter read failed for " + col + ": " + err.Error())
			continue
		}
		if !found {
			continue
		}
		anyFound = true
		total += v
	}

	quality := model.Measured
	if !anyFound {
		flags.AddMissing(name)
		quality = model.Missing
	}

	return model.InflowComponent{
		Name:        name,
		ValueM3:     total,
		Quality:     quality,
		SourceLabel: sourceLabel,
	}
}
