package waterbalance

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caliphsdev/waterbalance/internal/model"
)

// cacheKey identifies one memoized balance result (spec §5 "concurrency
// model": caching is keyed by period and mode, a recalculation for REGULATOR
// never invalidates an already-computed AUDIT result for the same period).
type cacheKey struct {
	year  int
	month int
	mode  model.CalculationMode
}

// Orchestrator runs the five calculators in DAG order and assembles the
// BalanceResult, memoizing by period+mode behind a mutex (spec §4.6, §5).
type Orchestrator struct {
	inflows   *InflowsCalculator
	outflows  *OutflowsCalculator
	storage   *StorageCalculator
	recycled  *RecycledCalculator
	kpis      *KPICalculator
	constants *siteConstants
	provider  ConstantsProvider
	logger    *slog.Logger

	mu    sync.Mutex
	cache map[cacheKey]model.BalanceResult
}

func NewOrchestrator(
	inflows *InflowsCalculator,
	outflows *OutflowsCalculator,
	storage *StorageCalculator,
	recycled *RecycledCalculator,
	kpis *KPICalculator,
	constants ConstantsProvider,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		inflows:   inflows,
		outflows:  outflows,
		storage:   storage,
		recycled:  recycled,
		kpis:      kpis,
		constants: newSiteConstants(constants),
		provider:  constants,
		logger:    logger,
		cache:     make(map[cacheKey]model.BalanceResult),
	}
}

// Calculate runs the full water balance for period and mode (spec §4.6's
// ten-step algorithm), returning the cached result unless forceRecalculate
// is set. A *CalculationError surfaces only for unrecoverable assembly
// failures — per-component degradation never reaches this level (spec §7).
func (o *Orchestrator) Calculate(ctx context.Context, period model.Period, mode model.CalculationMode, forceRecalculate bool) (model.BalanceResult, error) {
	if !forceRecalculate {
		if cached, ok := o.GetCached(ctx, period, mode); ok {
			return *cached, nil
		}
	}

	result, err := o.runCalculation(ctx, period, mode)
	if err != nil {
		return model.BalanceResult{}, err
	}

	key := cacheKey{year: period.Year, month: period.Month, mode: mode}
	o.mu.Lock()
	o.cache[key] = result
	o.mu.Unlock()

	return result, nil
}

// CalculateForDate builds and validates a Period from raw year/month ints
// before delegating to Calculate, surfacing an out-of-range month as a
// *CalculationError rather than a plain error (spec §7's taxonomy reserves
// CalculationError for exactly this unrecoverable case).
func (o *Orchestrator) CalculateForDate(ctx context.Context, year, month int, mode model.CalculationMode, forceRecalculate bool) (model.BalanceResult, error) {
	period, err := model.NewPeriod(year, month)
	if err != nil {
		return model.BalanceResult{}, newCalculationError("orchestrator", err.Error(), map[string]any{
			"year":  year,
			"month": month,
		})
	}
	return o.Calculate(ctx, period, mode, forceRecalculate)
}

// GetCached peeks the memoized result for period and mode without running
// or affecting the DAG, the read-only half of spec §6's "Result contract".
func (o *Orchestrator) GetCached(_ context.Context, period model.Period, mode model.CalculationMode) (*model.BalanceResult, bool) {
	key := cacheKey{year: period.Year, month: period.Month, mode: mode}

	o.mu.Lock()
	defer o.mu.Unlock()

	cached, ok := o.cache[key]
	if !ok {
		return nil, false
	}
	result := cached
	return &result, true
}

func (o *Orchestrator) runCalculation(ctx context.Context, period model.Period, mode model.CalculationMode) (model.BalanceResult, error) {
	flags := model.NewDataQualityFlags()

	// Steps 1-2: inflows, then outflows (outflows needs nothing from
	// inflows directly, but dewatering's classification feeds recycled).
	inflows := o.inflows.Calculate(ctx, period, flags)
	outflows, tailingsMoisturePct, tailingsDensityMeasured := o.outflows.Calculate(ctx, period, flags)

	// Step 3: storage, balance-derived when both totals are available —
	// which they always are by this point (spec §4.3, §4.6).
	inflowsTotal := inflows.TotalM3
	outflowsTotal := outflows.TotalM3
	storage := o.storage.Calculate(ctx, period, flags, &inflowsTotal, &outflowsTotal)

	// Step 4: recycled water, using the dewatering component already
	// computed inside inflows (spec §4.4).
	dewateringM3 := inflows.Components["dewatering"]
	recycled := o.recycled.Calculate(ctx, period, dewateringM3, flags)

	// Step 5: KPIs, consuming everything computed so far.
	kpis := o.kpis.Calculate(ctx, period, inflows, outflows, storage, recycled, tailingsMoisturePct, tailingsDensityMeasured, flags)

	// Step 6: mass-conservation check — IN − OUT − ΔStorage ≈ 0 (spec §4.6,
	// §8 invariant 1).
	delta := storage.DeltaM3()
	balanceError := inflowsTotal - outflowsTotal - delta
	errorPct := 0.0
	if inflowsTotal > 0 {
		errorPct = (balanceError / inflowsTotal) * 100.0
	}

	minErrorPct := o.constants.float(ctx, constMinBalanceErrorPct, defaultMinBalanceErrorPct)
	status := model.StatusGreen
	isBalanced := true
	if absFloat(errorPct) >= minErrorPct {
		status = model.StatusRed
		isBalanced = false
		flags.AddWarning(fmt.Sprintf("balance error %.2f%% exceeds tolerance %.2f%%", errorPct, minErrorPct))
	}

	result := model.BalanceResult{
		CalculationID:  uuid.NewString(),
		Period:         period,
		Mode:           mode,
		Inflows:        inflows,
		Outflows:       outflows,
		Storage:        storage,
		Recycled:       recycled,
		KPIs:           kpis,
		BalanceErrorM3: balanceError,
		ErrorPct:       round4(errorPct),
		Status:         status,
		IsBalanced:     isBalanced,
		QualityFlags:   flags,
		CalculatedAt:   time.Now(),
	}

	// Step 7: persist facility history/current-volume so next month's
	// opening is available (spec §4.3 "History persistence"). Non-fatal:
	// a write failure degrades to a warning, it never fails the balance.
	if err := o.storage.RecordAllFacilitiesHistory(ctx, period, storage); err != nil {
		o.logger.Warn("failed to persist storage history", "period", period.String(), "error", err)
		flags.AddWarning("storage history persistence failed: " + err.Error())
	}

	return result, nil
}

// ClearCache drops every memoized result and, when the constants provider
// supports it, tells it to drop its own cache too — carrying forward the
// constants-loader/cache-clear coupling (spec §3, §9 open question 5).
func (o *Orchestrator) ClearCache(ctx context.Context) error {
	o.mu.Lock()
	o.cache = make(map[cacheKey]model.BalanceResult)
	o.mu.Unlock()

	if refreshable, ok := o.provider.(Refreshable); ok {
		return refreshable.Refresh(ctx)
	}
	return nil
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
