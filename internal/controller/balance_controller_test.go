package controller

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/caliphsdev/waterbalance/internal/model"
	"github.com/caliphsdev/waterbalance/internal/service"
	"github.com/caliphsdev/waterbalance/internal/waterbalance"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConstants struct {
	values map[string]any
}

func (f fakeConstants) Constant(_ context.Context, name string) (any, bool) {
	v, ok := f.values[name]
	return v, ok
}

func (f fakeConstants) AllConstants(_ context.Context) (map[string]any, error) {
	return f.values, nil
}

type fakeMeters struct {
	values map[string]float64
}

func (f fakeMeters) MonthlyValue(_ context.Context, column string, _, _ time.Time) (float64, bool, error) {
	v, ok := f.values[column]
	return v, ok, nil
}

func (f fakeMeters) ListColumns(_ context.Context) ([]string, error) {
	return nil, nil
}

type fakeFacilities struct {
	facilities []model.Facility
}

func (f fakeFacilities) ListActiveFacilities(_ context.Context) ([]model.Facility, error) {
	return f.facilities, nil
}

func (f fakeFacilities) UpdateCurrentVolume(_ context.Context, _ string, _ float64) error {
	return nil
}

type fakeStorageHistory struct{}

func (fakeStorageHistory) Get(_ context.Context, _ string, _, _ int) (*model.StorageHistoryRow, error) {
	return nil, nil
}

func (fakeStorageHistory) Upsert(_ context.Context, _ model.StorageHistoryRow) error {
	return nil
}

type fakeEnvironment struct{}

func (fakeEnvironment) MonthlyEnvironment(_ context.Context, _, _ int) (float64, float64, bool, error) {
	return 0, 0, false, nil
}

func newTestController() *BalanceController {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	constants := fakeConstants{values: map[string]any{
		"surface_water_meter_columns": []string{"river_abstraction"},
	}}
	meters := fakeMeters{values: map[string]float64{"river_abstraction": 12000}}
	facilities := fakeFacilities{facilities: []model.Facility{
		{Code: "TSF1", Status: model.FacilityActive, CapacityM3: 1000000, CurrentVolumeM3: 500000},
	}}
	history := fakeStorageHistory{}
	environment := fakeEnvironment{}

	inflows := waterbalance.NewInflowsCalculator(meters, facilities, environment, constants, logger)
	outflows := waterbalance.NewOutflowsCalculator(meters, facilities, environment, constants, logger)
	storage := waterbalance.NewStorageCalculator(facilities, history, logger)
	recycled := waterbalance.NewRecycledCalculator(meters, constants, logger)
	kpis := waterbalance.NewKPICalculator(meters, constants, logger)
	orch := waterbalance.NewOrchestrator(inflows, outflows, storage, recycled, kpis, constants, logger)
	runway := waterbalance.NewRunwayProjector(facilities, history, constants, logger)
	trends := service.NewTrendService(orch)

	return NewBalanceController(orch, runway, trends, logger)
}

func setupRouter(controller *BalanceController) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	v1 := r.Group("/v1")
	{
		balance := v1.Group("/balance")
		{
			balance.GET("", controller.GetBalance)
			balance.GET("/trend", controller.GetTrend)
			balance.GET("/runway", controller.GetRunway)
			balance.POST("/cache/clear", controller.ClearCache)
		}
	}
	return r
}

func TestGetBalance_Success(t *testing.T) {
	router := setupRouter(newTestController())

	req, _ := http.NewRequest("GET", "/v1/balance?year=2026&month=3&mode=INTERNAL", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var result model.BalanceResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.Equal(t, 2026, result.Period.Year)
	assert.Equal(t, 3, result.Period.Month)
}

func TestGetBalance_MissingYearReturnsBadRequest(t *testing.T) {
	router := setupRouter(newTestController())

	req, _ := http.NewRequest("GET", "/v1/balance?month=3", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetBalance_InvalidMonthReturnsBadRequest(t *testing.T) {
	router := setupRouter(newTestController())

	req, _ := http.NewRequest("GET", "/v1/balance?year=2026&month=13", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetRunway_Success(t *testing.T) {
	router := setupRouter(newTestController())

	req, _ := http.NewRequest("GET", "/v1/balance/runway?year=2026&month=3&projection_months=6", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var runway model.SystemRunway
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &runway))
	assert.Len(t, runway.MonthlyTimeline, 6)
}

func TestClearCache_Success(t *testing.T) {
	router := setupRouter(newTestController())

	req, _ := http.NewRequest("POST", "/v1/balance/cache/clear", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}
