package controller

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/caliphsdev/waterbalance/internal/middleware"
	"github.com/caliphsdev/waterbalance/internal/model"
	"github.com/caliphsdev/waterbalance/internal/service"
	"github.com/caliphsdev/waterbalance/internal/waterbalance"

	"github.com/gin-gonic/gin"
)

// BalanceController handles water balance HTTP requests, grounded on the
// teacher's AnalyticsController: gin.Context handlers, slog structured
// logging, and per-request latency tracking.
type BalanceController struct {
	orchestrator *waterbalance.Orchestrator
	runway       *waterbalance.RunwayProjector
	trends       service.TrendService
	logger       *slog.Logger
}

func NewBalanceController(orchestrator *waterbalance.Orchestrator, runway *waterbalance.RunwayProjector, trends service.TrendService, logger *slog.Logger) *BalanceController {
	return &BalanceController{
		orchestrator: orchestrator,
		runway:       runway,
		trends:       trends,
		logger:       logger,
	}
}

// GetBalance handles GET /v1/balance
// Query parameters:
//   - year (required): calendar year, e.g. 2025
//   - month (required): calendar month, 1-12
//   - mode (optional): REGULATOR, INTERNAL, or AUDIT (default: INTERNAL)
//   - force_recalculate (optional): bypass the orchestrator's result cache
func (c *BalanceController) GetBalance(ctx *gin.Context) {
	startTime := time.Now()

	year, month, ok := c.parseYearMonth(ctx)
	if !ok {
		return
	}

	mode := parseMode(ctx.DefaultQuery("mode", string(model.ModeInternal)))
	force := ctx.Query("force_recalculate") == "true"

	result, err := c.orchestrator.CalculateForDate(ctx.Request.Context(), year, month, mode, force)
	if err != nil {
		c.writeCalculateError(ctx, startTime, year, month, mode, err)
		return
	}

	middleware.RecordBalanceResult(result)

	latency := time.Since(startTime)
	c.logger.Info("balance request completed",
		"period", result.Period.PeriodShort(),
		"mode", mode,
		"status", result.Status,
		"is_balanced", result.IsBalanced,
		"latency_ms", latency.Milliseconds(),
	)

	ctx.JSON(http.StatusOK, result)
}

// writeCalculateError maps a CalculateForDate failure onto an HTTP response:
// an out-of-range period surfaces as the *CalculationError the orchestrator
// raises for it (spec §7), anything else is an opaque 500.
func (c *BalanceController) writeCalculateError(ctx *gin.Context, startTime time.Time, year, month int, mode model.CalculationMode, err error) {
	latency := time.Since(startTime)

	var calcErr *waterbalance.CalculationError
	if errors.As(err, &calcErr) {
		c.logger.Warn("invalid period",
			"year", year, "month", month, "mode", mode,
			"error", calcErr.Error(), "latency_ms", latency.Milliseconds(),
		)
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid period",
			"message": calcErr.Message,
		})
		return
	}

	c.logger.Error("failed to calculate balance",
		"year", year, "month", month, "mode", mode,
		"error", err.Error(), "latency_ms", latency.Milliseconds(),
	)
	ctx.JSON(http.StatusInternalServerError, gin.H{
		"error":   "Internal server error",
		"message": "Failed to calculate water balance",
	})
}

// GetTrend handles GET /v1/balance/trend, taking GetBalance's year, month
// and mode query parameters (force_recalculate is not read), returning the
// current period alongside its year-over-year comparisons.
func (c *BalanceController) GetTrend(ctx *gin.Context) {
	startTime := time.Now()

	period, ok := c.parsePeriod(ctx)
	if !ok {
		return
	}
	mode := parseMode(ctx.DefaultQuery("mode", string(model.ModeInternal)))

	trend, err := c.trends.GetTrend(ctx.Request.Context(), period, mode)
	if err != nil {
		latency := time.Since(startTime)
		c.logger.Error("failed to calculate trend",
			"period", period.PeriodShort(),
			"mode", mode,
			"error", err.Error(),
			"latency_ms", latency.Milliseconds(),
		)
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"message": "Failed to calculate balance trend",
		})
		return
	}

	ctx.JSON(http.StatusOK, trend)
}

// GetRunway handles GET /v1/balance/runway.
// Query parameters add projection_months (optional, default: 12) on top of
// GetBalance's period/mode parameters.
func (c *BalanceController) GetRunway(ctx *gin.Context) {
	startTime := time.Now()

	year, month, ok := c.parseYearMonth(ctx)
	if !ok {
		return
	}
	mode := parseMode(ctx.DefaultQuery("mode", string(model.ModeInternal)))

	projectionMonths := 12
	if raw := ctx.Query("projection_months"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			ctx.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid projection_months",
				"message": "projection_months must be a positive integer",
			})
			return
		}
		projectionMonths = n
	}

	balance, err := c.orchestrator.CalculateForDate(ctx.Request.Context(), year, month, mode, false)
	if err != nil {
		c.writeCalculateError(ctx, startTime, year, month, mode, err)
		return
	}

	runway := c.runway.Project(ctx.Request.Context(), balance.Period, projectionMonths, &balance)
	middleware.RecordRunway(balance.Period, runway.CombinedDaysRemaining)

	latency := time.Since(startTime)
	c.logger.Info("runway request completed",
		"period", balance.Period.PeriodShort(),
		"projection_months", projectionMonths,
		"combined_days_remaining", runway.CombinedDaysRemaining,
		"latency_ms", latency.Milliseconds(),
	)

	ctx.JSON(http.StatusOK, runway)
}

// ClearCache handles POST /v1/balance/cache/clear, forcing the next
// GetBalance call for any period to recompute rather than serve a cached
// result.
func (c *BalanceController) ClearCache(ctx *gin.Context) {
	if err := c.orchestrator.ClearCache(ctx.Request.Context()); err != nil {
		c.logger.Error("failed to clear balance cache", "error", err.Error())
		ctx.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal server error",
			"message": "Failed to clear balance cache",
		})
		return
	}
	c.logger.Info("balance cache cleared")
	ctx.JSON(http.StatusOK, gin.H{"message": "cache cleared"})
}

// parsePeriod parses and validates the year/month query parameters GetTrend
// needs as a model.Period up front (its TrendService collaborator takes one
// directly, unlike CalculateForDate's raw ints), writing the error response
// itself on failure.
func (c *BalanceController) parsePeriod(ctx *gin.Context) (model.Period, bool) {
	year, month, ok := c.parseYearMonth(ctx)
	if !ok {
		return model.Period{}, false
	}

	period, err := model.NewPeriod(year, month)
	if err != nil {
		c.logger.Warn("invalid period", "year", year, "month", month, "error", err.Error())
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid period",
			"message": err.Error(),
		})
		return model.Period{}, false
	}

	return period, true
}

// parseYearMonth parses the year/month query parameters without validating
// the month range — CalculateForDate does that and reports an out-of-range
// month as a *CalculationError, writing the error response itself on parse
// failure.
func (c *BalanceController) parseYearMonth(ctx *gin.Context) (int, int, bool) {
	yearStr := ctx.Query("year")
	monthStr := ctx.Query("month")
	if yearStr == "" || monthStr == "" {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Missing required parameter",
			"message": "year and month are required",
		})
		return 0, 0, false
	}

	year, err := strconv.Atoi(yearStr)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid year",
			"message": "year must be an integer",
		})
		return 0, 0, false
	}

	month, err := strconv.Atoi(monthStr)
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid month",
			"message": "month must be an integer",
		})
		return 0, 0, false
	}

	return year, month, true
}

// parseMode maps a case-sensitive mode query value onto a CalculationMode,
// defaulting to internal-mode semantics for anything unrecognized rather
// than rejecting the request.
func parseMode(raw string) model.CalculationMode {
	switch model.CalculationMode(raw) {
	case model.ModeRegulator:
		return model.ModeRegulator
	case model.ModeAudit:
		return model.ModeAudit
	default:
		return model.ModeInternal
	}
}
