package waterbalance

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/caliphsdev/waterbalance/internal/model"
)

// consumptionLookbackMonths is how far back the storage-history fallback
// looks for a monthly delta (spec §4.7 "last 3 months").
const consumptionLookbackMonths = 3

// estimatedConsumptionPctOfCapacity is the last-resort fallback when neither
// a balance result nor storage history is available (spec §4.7 rank 3).
const estimatedConsumptionPctOfCapacity = 0.05

// RunwayProjector estimates days of operation remaining and a monthly
// depletion timeline of projectionMonths rows, 12 by default (spec §4.7). Grounded directly on the spec: the
// original's runway logic lives only in UI/dashboard code out of scope here.
type RunwayProjector struct {
	facilities FacilityRepository
	history    StorageHistoryRepository
	constants  *siteConstants
	logger     *slog.Logger
}

func NewRunwayProjector(facilities FacilityRepository, history StorageHistoryRepository, constants ConstantsProvider, logger *slog.Logger) *RunwayProjector {
	return &RunwayProjector{
		facilities: facilities,
		history:    history,
		constants:  newSiteConstants(constants),
		logger:     logger,
	}
}

// Project implements the spec §4.7 contract. balanceResult is optional
// (nil when none is available); projectionMonths defaults to 12 at the
// caller's discretion.
func (p *RunwayProjector) Project(ctx context.Context, period model.Period, projectionMonths int, balanceResult *model.BalanceResult) model.SystemRunway {
	if projectionMonths <= 0 {
		projectionMonths = 12
	}

	facilities, err := p.facilities.ListActiveFacilities(ctx)
	if err != nil {
		p.logger.Warn("runway: failed to list facilities", "error", err)
		facilities = nil
	}

	reservePct := p.constants.float(ctx, constReserveStoragePct, defaultReserveStoragePct)

	totalCurrent := 0.0
	totalCapacity := 0.0
	for _, f := range facilities {
		totalCurrent += f.CurrentVolumeM3
		totalCapacity += f.CapacityM3
	}

	usableStorage := totalCurrent - totalCapacity*reservePct/100.0
	if usableStorage < 0 {
		usableStorage = 0
	}

	dailyDemand, source, perFacilityMonthly := p.dailyNetDemand(ctx, period, facilities, balanceResult, totalCapacity)

	// combined_days_remaining is the scalar answer to "how long until the
	// system runs dry" and is not truncated to the 12-row timeline window;
	// projection_months bounds how far forward the monthly timeline itself
	// extrapolates, not this figure.
	combinedDays := 0.0
	if dailyDemand > 0 {
		combinedDays = math.Round(usableStorage / dailyDemand)
	}

	facilityRunways := make([]model.FacilityRunway, 0, len(facilities))
	for _, f := range facilities {
		monthlyConsumption := perFacilityMonthly[f.Code]
		dailyFacilityConsumption := monthlyConsumption / 30.0

		reserveVolume := f.CapacityM3 * reservePct / 100.0
		daysRemaining := 0.0
		if dailyFacilityConsumption > 0 {
			daysRemaining = (f.CurrentVolumeM3 - reserveVolume) / dailyFacilityConsumption
		}
		if daysRemaining < 0 {
			daysRemaining = 0
		}

		utilization := 0.0
		if f.CapacityM3 > 0 {
			utilization = f.CurrentVolumeM3 / f.CapacityM3 * 100.0
		}

		var emptyDate *time.Time
		if dailyFacilityConsumption > 0 {
			d := period.StartDate().AddDate(0, 0, int(daysRemaining))
			emptyDate = &d
		}

		facilityRunways = append(facilityRunways, model.FacilityRunway{
			FacilityCode:              f.Code,
			FacilityName:              f.Name,
			CurrentVolumeM3:           f.CurrentVolumeM3,
			CapacityM3:                f.CapacityM3,
			UtilizationPct:            round4(utilization),
			MonthlyConsumptionM3:      monthlyConsumption,
			DaysRemainingConservative: round4(daysRemaining),
			ProjectedEmptyDate:        emptyDate,
		})
	}

	var totalOutflows, recycledWater, evapLoss, seepLoss float64
	if balanceResult != nil {
		totalOutflows = balanceResult.Outflows.TotalM3
		recycledWater = balanceResult.Recycled.TotalM3
		evapLoss = balanceResult.Outflows.EvaporationM3()
		seepLoss = balanceResult.Outflows.SeepageM3()
	}

	return model.SystemRunway{
		CombinedDaysRemaining: combinedDays,
		UsableStorageM3:       usableStorage,
		DailyNetFreshDemandM3: round4(dailyDemand),
		TotalOutflowsM3:       totalOutflows,
		RecycledWaterM3:       recycledWater,
		EvaporationLossM3:     evapLoss,
		SeepageLossM3:         seepLoss,
		ConsumptionSource:     source,
		Facilities:            facilityRunways,
		MonthlyTimeline:       p.monthlyTimeline(ctx, period, facilities, totalCapacity, reservePct, dailyDemand, projectionMonths),
	}
}

// dailyNetDemand implements the consumption-source ranking (spec §4.7):
// balance result first, storage-history delta second, 5%-of-capacity last.
// It also returns a per-facility monthly consumption map for the
// per-facility days-remaining calculation.
func (p *RunwayProjector) dailyNetDemand(ctx context.Context, period model.Period, facilities []model.Facility, balanceResult *model.BalanceResult, totalCapacity float64) (float64, model.ConsumptionSource, map[string]float64) {
	perFacility := make(map[string]float64, len(facilities))

	if balanceResult != nil {
		demand := (balanceResult.Outflows.TotalM3 - balanceResult.Recycled.TotalM3) / 30.0
		if demand < 0 {
			demand = 0
		}
		monthlyTotal := demand * 30.0
		p.splitByCapacity(facilities, monthlyTotal, totalCapacity, perFacility)
		return demand, model.ConsumptionFromOutflows, perFacility
	}

	if historyTotal, ok := p.historyDerivedMonthly(ctx, period, facilities, perFacility); ok {
		return historyTotal / 30.0, model.ConsumptionFromStorageHistory, perFacility
	}

	monthlyTotal := 0.0
	for _, f := range facilities {
		monthly := f.CapacityM3 * estimatedConsumptionPctOfCapacity
		perFacility[f.Code] = monthly
		monthlyTotal += monthly
	}
	return monthlyTotal / 30.0, model.ConsumptionEstimated, perFacility
}

// historyDerivedMonthly averages each facility's opening-minus-closing
// delta over those of the 3 preceding calendar months that have a history
// row with a positive delta (older rows are not searched); returns
// ok=false if no facility has any usable history.
func (p *RunwayProjector) historyDerivedMonthly(ctx context.Context, period model.Period, facilities []model.Facility, perFacility map[string]float64) (float64, bool) {
	anyFound := false
	total := 0.0

	for _, f := range facilities {
		cursor := period
		sum := 0.0
		count := 0
		for i := 0; i < consumptionLookbackMonths; i++ {
			cursor = cursor.Previous()
			row, err := p.history.Get(ctx, f.Code, cursor.Year, cursor.Month)
			if err != nil || row == nil {
				continue
			}
			delta := row.OpeningM3 - row.ClosingM3
			if delta > 0 {
				sum += delta
				count++
			}
		}
		if count == 0 {
			perFacility[f.Code] = 0
			continue
		}
		avg := sum / float64(count)
		perFacility[f.Code] = avg
		total += avg
		anyFound = true
	}

	return total, anyFound
}

// splitByCapacity apportions a monthly system-wide demand figure across
// facilities by their share of total capacity, matching the proportional
// redistribution idiom used by the Storage Calculator.
func (p *RunwayProjector) splitByCapacity(facilities []model.Facility, monthlyTotal, totalCapacity float64, perFacility map[string]float64) {
	n := len(facilities)
	for _, f := range facilities {
		if totalCapacity > 0 {
			perFacility[f.Code] = monthlyTotal * (f.CapacityM3 / totalCapacity)
		} else if n > 0 {
			perFacility[f.Code] = monthlyTotal / float64(n)
		}
	}
}

// monthlyTimeline simulates the requested number of calendar months forward
// using seasonal rainfall/evaporation tables (spec §4.7's "Monthly
// timeline"), applying the same per-facility evaporation clamp Outflows
// uses so the system total is never overstated (spec §9 open question 4).
func (p *RunwayProjector) monthlyTimeline(ctx context.Context, period model.Period, facilities []model.Facility, totalCapacity, reservePct, dailyDemand float64, months int) []model.MonthlyTimelineEntry {
	rainfallTable := p.constants.monthlyTable(ctx, constRainfallSeasonalTable)
	evapTable := p.constants.monthlyTable(ctx, constEvaporationSeasonalTable)
	panCoeff := p.constants.float(ctx, constEvapPanCoefficient, 0.7)

	facilityOpening := make(map[string]float64, len(facilities))
	opening := 0.0
	for _, f := range facilities {
		facilityOpening[f.Code] = f.CurrentVolumeM3
		opening += f.CurrentVolumeM3
	}
	reserveVolume := totalCapacity * reservePct / 100.0

	monthlyConsumption := dailyDemand * 30.0

	entries := make([]model.MonthlyTimelineEntry, 0, months)
	for i := 1; i <= months; i++ {
		month := ((period.Month - 1 + i) % 12) + 1

		rainfallMM := rainfallTable[month]
		evapMM := evapTable[month]

		inflow := 0.0
		evapLoss := 0.0
		for _, f := range facilities {
			if f.SurfaceAreaM2 <= 0 {
				continue
			}
			inflow += rainfallMM * f.SurfaceAreaM2 / 1000.0
			facilityEvap := evapMM * panCoeff * f.SurfaceAreaM2 / 1000.0
			if facilityEvap > facilityOpening[f.Code] {
				facilityEvap = facilityOpening[f.Code]
			}
			evapLoss += facilityEvap
		}
		outflow := monthlyConsumption + evapLoss

		closing := opening + inflow - outflow
		if closing < 0 {
			closing = 0
		}
		if totalCapacity > 0 && closing > totalCapacity {
			closing = totalCapacity
		}

		entries = append(entries, model.MonthlyTimelineEntry{
			Month:      month,
			Opening:    opening,
			Closing:    closing,
			Inflow:     inflow,
			Outflow:    outflow,
			IsDepleted: closing <= reserveVolume,
		})

		if opening > 0 {
			scale := closing / opening
			for code := range facilityOpening {
				facilityOpening[code] *= scale
			}
		}
		opening = closing
	}

	return entries
}
