package waterbalance

import "context"

// Constant names required of a ConstantsProvider (spec §6.1). Column-name
// lists are themselves constants — site configuration, never hard-coded.
const (
	constEvapPanCoefficient          = "evap_pan_coefficient"
	constSeepageRateLinedPct         = "seepage_rate_lined_pct"
	constSeepageRateUnlinedPct       = "seepage_rate_unlined_pct"
	constOreMoisturePct              = "ore_moisture_pct"
	constTailingsMoisturePct         = "tailings_moisture_pct"
	constTailingsSolidsDensity       = "tailings_solids_density"
	constDustSuppressionRateLPerT    = "dust_suppression_rate_l_per_t"
	constMiningWaterRateM3PerT       = "mining_water_rate_m3_per_t"
	constDomesticConsumptionLPerPD   = "domestic_consumption_l_per_person_day"
	constWorkforce                   = "workforce"
	constRecoveryRatePct             = "recovery_rate_pct"
	constProductMoisturePct          = "product_moisture_pct"
	constTSFReturnWaterPct           = "tsf_return_water_pct"
	constAbstractionLicenseAnnualM3  = "abstraction_license_annual_m3"
	constRunoffEnabled               = "runoff_enabled"
	constRunoffCoefficients          = "runoff_coefficients"
	constMiningConsumptionEnabled    = "mining_consumption_enabled"
	constDomesticConsumptionEnabled  = "domestic_consumption_enabled"
	constClassifyUndergroundAsFresh  = "classify_underground_as_fresh"
	constReserveStoragePct           = "reserve_storage_pct"
	constMinBalanceErrorPct          = "min_balance_error_pct"
	constRainfallSeasonalTable       = "rainfall_mm_by_month"
	constEvaporationSeasonalTable    = "evaporation_mm_by_month"

	// Site configuration: the named meter columns contributing to each
	// component (spec §4.1 "not hard-coded").
	constSurfaceWaterColumns = "surface_water_meter_columns"
	constGroundwaterColumns  = "groundwater_meter_columns"
	constDewateringColumns   = "dewatering_meter_columns"
	constTonnesMilledColumn  = "tonnes_milled_meter_column"
	constPGMWetTonnesColumn  = "pgm_wet_tonnes_meter_column"
	constPGMMoistureColumn   = "pgm_moisture_pct_meter_column"
	constChromiteWetColumn   = "chromite_wet_tonnes_meter_column"
	constChromiteMoistColumn = "chromite_moisture_pct_meter_column"
	constTailingsDensityCol  = "tailings_density_meter_column"
	constRWDVolumeColumn     = "rwd_volume_meter_column"
	constRWDIntensityColumn  = "rwd_intensity_meter_column"
	constTotalRecycledColumn = "total_recycled_meter_column"
	constRWDCirculationColumn = "rwd_circulation_meter_column"
	constPlantConsumptionColumn = "plant_consumption_meter_column"
)

// defaults documented per spec §9's open questions: these are the defaults
// a site's ConstantsProvider may override, never values hard-coded into a
// calculation path.
const (
	defaultReserveStoragePct          = 10.0
	defaultMinBalanceErrorPct         = 5.0
	defaultWorkforce                  = 2000.0 // open question 3: source hardcodes this with a TODO
	defaultClassifyUndergroundAsFresh = true    // open question 1: documented default, not hardcoded logic
	defaultMiningConsumptionEnabled   = false
	defaultDomesticConsumptionEnabled = true
	defaultRunoffEnabled              = false
	defaultTailingsSolidsDensity      = 2.7
)

// siteConstants wraps a ConstantsProvider with typed, defaulted accessors so
// calculators never repeat type assertions.
type siteConstants struct {
	provider ConstantsProvider
}

func newSiteConstants(p ConstantsProvider) *siteConstants {
	return &siteConstants{provider: p}
}

func (s *siteConstants) float(ctx context.Context, name string, def float64) float64 {
	v, ok := s.provider.Constant(ctx, name)
	if !ok {
		return def
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return def
	}
}

func (s *siteConstants) boolean(ctx context.Context, name string, def bool) bool {
	v, ok := s.provider.Constant(ctx, name)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func (s *siteConstants) strings(ctx context.Context, name string) []string {
	v, ok := s.provider.Constant(ctx, name)
	if !ok {
		return nil
	}
	out, ok := v.([]string)
	if !ok {
		return nil
	}
	return out
}

func (s *siteConstants) string(ctx context.Context, name string) (string, bool) {
	v, ok := s.provider.Constant(ctx, name)
	if !ok {
		return "", false
	}
	str, ok := v.(string)
	if !ok || str == "" {
		return "", false
	}
	return str, true
}

func (s *siteConstants) floatMap(ctx context.Context, name string) map[string]float64 {
	v, ok := s.provider.Constant(ctx, name)
	if !ok {
		return nil
	}
	out, ok := v.(map[string]float64)
	if !ok {
		return nil
	}
	return out
}

// monthlyTable reads a seasonal table keyed by calendar month (1..12).
func (s *siteConstants) monthlyTable(ctx context.Context, name string) map[int]float64 {
	v, ok := s.provider.Constant(ctx, name)
	if !ok {
		return nil
	}
	out, ok := v.(map[int]float64)
	if !ok {
		return nil
	}
	return out
}
