// Package discovery populates the complex catalog from the upstream portal
// and audits the static endpoint registry against the portal's deployed
// frontend.
package discovery

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/parkmj/kbland-collector/internal/kb"
	"github.com/parkmj/kbland-collector/internal/store"
)

// Seoul city hall, the search fallback when a region has no known center.
const (
	defaultLat = 37.5665
	defaultLng = 126.9780
)

// searchSpanDeg is the half-width of the bounding box sent to the map search.
const searchSpanDeg = 0.03

// Caller issues one upstream API call. Satisfied by *kb.APIClient.
type Caller interface {
	Call(ctx context.Context, endpoint kb.Endpoint, params map[string]any) (any, error)
}

// Registrar persists discovered complexes and areas. Satisfied by
// store.Catalog implementations.
type Registrar interface {
	RegisterComplex(ctx context.Context, c store.Complex) (int64, error)
	RegisterArea(ctx context.Context, a store.Area) (int64, error)
}

// DiscoveredComplex summarizes one registered complex.
type DiscoveredComplex struct {
	ID          int64  `json:"id"`
	KBComplexID string `json:"kb_complex_id"`
	Name        string `json:"name"`
	AreaCount   int    `json:"area_count"`
}

// Result reports one discovery pass.
type Result struct {
	RegionCode string              `json:"region_code"`
	Found      int                 `json:"found"`
	Complexes  []DiscoveredComplex `json:"complexes"`
}

// ComplexDiscovery finds apartment complexes for a legal-district code and
// registers them in the catalog.
type ComplexDiscovery struct {
	api       Caller
	registrar Registrar
	logger    *zap.Logger
}

// NewComplexDiscovery constructs a ComplexDiscovery.
func NewComplexDiscovery(api Caller, registrar Registrar, logger *zap.Logger) *ComplexDiscovery {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ComplexDiscovery{api: api, registrar: registrar, logger: logger}
}

// Discover searches the portal's map API around the region's center and
// registers every complex found, together with its area types. Registration
// is idempotent; re-running a region refreshes names and areas.
func (d *ComplexDiscovery) Discover(ctx context.Context, regionCode string) (Result, error) {
	if len(regionCode) < 5 {
		return Result{}, fmt.Errorf("region code %q must have at least 5 digits", regionCode)
	}
	lawdCode := regionCode[:5]

	lat, lng := d.regionCenter(ctx, regionCode)
	params := map[string]any{
		"selectCode":         "1,2,3",
		"zoomLevel":          14,
		kb.ParamPropertyType: "01",
		kb.ParamTradeType:    "1,2,3",
		"webCheck":           "Y",
		"startLat":           lat - searchSpanDeg,
		"startLng":           lng - searchSpanDeg,
		"endLat":             lat + searchSpanDeg,
		"endLng":             lng + searchSpanDeg,
	}
	raw, err := d.api.Call(ctx, kb.LookupEndpoint("complex_search"), params)
	if err != nil {
		return Result{}, fmt.Errorf("search complexes for region %s: %w", regionCode, err)
	}

	summaries := kb.ParseComplexSummaries(raw)
	result := Result{RegionCode: regionCode, Found: len(summaries)}
	for _, summary := range summaries {
		registered, err := d.register(ctx, summary, lawdCode)
		if err != nil {
			d.logger.Warn("skipping complex",
				zap.String("kb_complex_id", summary.KBComplexID),
				zap.Error(err),
			)
			continue
		}
		result.Complexes = append(result.Complexes, registered)
	}
	return result, nil
}

// regionCenter resolves the map center for a region code, falling back to
// the default when the region endpoints cannot help.
func (d *ComplexDiscovery) regionCenter(ctx context.Context, regionCode string) (float64, float64) {
	raw, err := d.api.Call(ctx, kb.LookupEndpoint("region_sigungu"), map[string]any{kb.ParamSido: kb.SidoName(regionCode)})
	if err != nil {
		d.logger.Warn("region center lookup failed, using default", zap.Error(err))
		return defaultLat, defaultLng
	}
	for _, center := range kb.ParseRegionCenters(raw) {
		if strings.HasPrefix(center.LawdCode, regionCode[:5]) && center.Lat != 0 && center.Lng != 0 {
			return center.Lat, center.Lng
		}
	}
	return defaultLat, defaultLng
}

func (d *ComplexDiscovery) register(ctx context.Context, summary kb.ComplexSummary, lawdCode string) (DiscoveredComplex, error) {
	id, err := d.registrar.RegisterComplex(ctx, store.Complex{
		KBComplexID: summary.KBComplexID,
		Name:        summary.Name,
		Address:     summary.Address,
		LawdCode:    lawdCode,
	})
	if err != nil {
		return DiscoveredComplex{}, fmt.Errorf("register complex: %w", err)
	}

	areas := summary.Areas
	if len(areas) == 0 {
		raw, err := d.api.Call(ctx, kb.LookupEndpoint("complex_type_info"), map[string]any{kb.ParamComplexNo: summary.KBComplexID})
		if err != nil {
			d.logger.Warn("area type lookup failed",
				zap.String("kb_complex_id", summary.KBComplexID),
				zap.Error(err),
			)
		} else {
			areas = kb.ParseAreaTypes(raw)
		}
	}
	registered := 0
	for _, area := range areas {
		if area.KBAreaCode == "" {
			continue
		}
		if _, err := d.registrar.RegisterArea(ctx, store.Area{
			ComplexID:   id,
			KBAreaCode:  area.KBAreaCode,
			Name:        area.Name,
			ExclusiveM2: area.ExclusiveM2,
			SupplyM2:    area.SupplyM2,
		}); err != nil {
			d.logger.Warn("register area failed",
				zap.String("kb_area_code", area.KBAreaCode),
				zap.Error(err),
			)
			continue
		}
		registered++
	}

	return DiscoveredComplex{
		ID:          id,
		KBComplexID: summary.KBComplexID,
		Name:        summary.Name,
		AreaCount:   registered,
	}, nil
}
