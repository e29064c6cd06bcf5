package repository

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"

	"github.com/caliphsdev/waterbalance/internal/model"

	"gorm.io/gorm"
)

// constantsRepository implements waterbalance.ConstantsProvider (and its
// optional Refreshable hook) over the site_constants table. Every value is
// stored as JSON text so one table backs the provider's heterogeneous
// catalogue — coefficients, booleans, meter-column-name lists, and
// calendar-keyed seasonal tables alike (spec §6.1). Values are cached
// in-memory after the first load; Refresh drops the cache, letting the
// Orchestrator's ClearCache propagate down to this layer (spec §3's
// "constants loader refresh on cache clear" coupling).
//
// No dedicated config/JSON library from the example pack fits this shape
// (it is persisted application data, not process startup configuration), so
// encoding/json is used directly; see DESIGN.md.
type constantsRepository struct {
	db *gorm.DB

	mu    sync.RWMutex
	cache map[string]any
}

func NewConstantsRepository(db *gorm.DB) *constantsRepository {
	return &constantsRepository{db: db}
}

func (r *constantsRepository) Constant(ctx context.Context, name string) (any, bool) {
	all, err := r.AllConstants(ctx)
	if err != nil {
		return nil, false
	}
	v, ok := all[name]
	return v, ok
}

func (r *constantsRepository) AllConstants(ctx context.Context) (map[string]any, error) {
	r.mu.RLock()
	if r.cache != nil {
		cached := r.cache
		r.mu.RUnlock()
		return cached, nil
	}
	r.mu.RUnlock()

	var rows []model.SiteConstant
	if err := r.db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}

	decoded := make(map[string]any, len(rows))
	for _, row := range rows {
		v, err := decodeConstantValue(row.ValueJSON)
		if err != nil {
			continue
		}
		decoded[row.Name] = v
	}

	r.mu.Lock()
	r.cache = decoded
	r.mu.Unlock()

	return decoded, nil
}

// Refresh drops the in-memory cache so the next read re-queries the table.
func (r *constantsRepository) Refresh(_ context.Context) error {
	r.mu.Lock()
	r.cache = nil
	r.mu.Unlock()
	return nil
}

// decodeConstantValue maps a raw JSON value onto the concrete Go types the
// siteConstants accessors expect: numbers to float64, a JSON object whose
// keys all parse as 1..12 to a monthly table (map[int]float64), any other
// object to a string-keyed map (map[string]float64, e.g. runoff
// coefficients), a JSON array to []string, everything else via
// the standard JSON decode (bool, string, []string).
func decodeConstantValue(raw string) (any, error) {
	var generic any
	if err := json.Unmarshal([]byte(raw), &generic); err != nil {
		return nil, err
	}

	obj, isObject := generic.(map[string]any)
	if !isObject {
		if arr, isArray := generic.([]any); isArray {
			strs := make([]string, 0, len(arr))
			for _, v := range arr {
				if s, ok := v.(string); ok {
					strs = append(strs, s)
				}
			}
			return strs, nil
		}
		return generic, nil
	}

	if monthly, ok := asMonthlyTable(obj); ok {
		return monthly, nil
	}

	floats := make(map[string]float64, len(obj))
	for k, v := range obj {
		if f, ok := v.(float64); ok {
			floats[k] = f
		}
	}
	return floats, nil
}

func asMonthlyTable(obj map[string]any) (map[int]float64, bool) {
	table := make(map[int]float64, len(obj))
	for k, v := range obj {
		month, err := strconv.Atoi(k)
		if err != nil || month < 1 || month > 12 {
			return nil, false
		}
		f, ok := v.(float64)
		if !ok {
			return nil, false
		}
		table[month] = f
	}
	return table, len(table) > 0
}
