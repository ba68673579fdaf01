// Package kb implements connectors for the KB부동산 (kbland.kr) portal: a
// static catalog of its internal API endpoints, a hybrid direct-HTTP /
// browser-intercept fetch engine, and defensive parsers for its valuation,
// transaction, and listing payloads.
package kb

import "fmt"

// Endpoint is an immutable descriptor of one upstream API route. Identity is
// the name; descriptors are defined once at startup and never mutated.
type Endpoint struct {
	Name        string
	BaseURL     string
	Path        string
	Method      string // GET or POST
	Description string
}

// URL returns the absolute request URL.
func (e Endpoint) URL() string {
	return e.BaseURL + e.Path
}

const apiBase = "https://api.kbland.kr"

// Known upstream endpoints. Paths were confirmed by endpoint discovery scans
// against the portal's JS bundles; descriptions summarize the observed
// response shape.
var (
	// ComplexSearch lists complexes inside a map region (coordinate based).
	ComplexSearch = Endpoint{
		Name:        "complex_search",
		BaseURL:     apiBase,
		Path:        "/land-complex/map/map250mBlwInfoList",
		Method:      "POST",
		Description: "Complexes within a map area. Response: dataBody.data.단지리스트[]",
	}

	// ComplexDetail returns a complex's main detail record.
	ComplexDetail = Endpoint{
		Name:        "complex_detail",
		BaseURL:     apiBase,
		Path:        "/land-complex/complex/main",
		Method:      "GET",
		Description: "Complex detail. Params: 단지기본일련번호, 물건종류 (01=apartment)",
	}

	// ComplexTypeInfo lists the area types offered within a complex.
	ComplexTypeInfo = Endpoint{
		Name:        "complex_type_info",
		BaseURL:     apiBase,
		Path:        "/land-complex/complex/typInfo",
		Method:      "GET",
		Description: "Area types per complex. Params: 단지기본일련번호. Response: dataBody.data[]",
	}

	// ComplexPrice returns the KB valuation snapshot for a complex/area pair.
	ComplexPrice = Endpoint{
		Name:    "complex_price",
		BaseURL: apiBase,
		Path:    "/land-price/price/BasePrcInfoNew",
		Method:  "GET",
		Description: "KB valuation per complex/area. Params: 단지기본일련번호, 면적일련번호. " +
			"Response: dataBody.data.시세[].{매매일반거래가, 매매상한가, 매매하한가, 시세기준년월일}",
	}

	// ComplexTransaction returns the closed-deal history for a complex.
	ComplexTransaction = Endpoint{
		Name:        "complex_transaction",
		BaseURL:     apiBase,
		Path:        "/land-complex/vlaHscmDtail/vlaDealDtailPriceInq",
		Method:      "GET",
		Description: "Closed deals per complex. Params: 단지기본일련번호, 면적일련번호, 거래유형 (1=sale)",
	}

	// ComplexTransactionYearly returns past deals grouped by year.
	ComplexTransactionYearly = Endpoint{
		Name:        "complex_transaction_yearly",
		BaseURL:     apiBase,
		Path:        "/land-complex/vlaHscmDtail/vlaDealPricePastYearInq",
		Method:      "GET",
		Description: "Past deals by year. Params: 단지기본일련번호, 면적일련번호, 거래유형",
	}

	// ComplexBrif returns the brief record used as the propList POST body.
	ComplexBrif = Endpoint{
		Name:        "complex_brif",
		BaseURL:     apiBase,
		Path:        "/land-complex/complex/brif",
		Method:      "GET",
		Description: "Complex brief. Params: 단지기본일련번호. Used as POST body for propList/main.",
	}

	// ComplexPropList returns individual listings for a complex, paged.
	ComplexPropList = Endpoint{
		Name:        "complex_prop_list",
		BaseURL:     apiBase,
		Path:        "/land-property/propList/main",
		Method:      "POST",
		Description: "Listings per complex. POST body: brif data + page params. Response: propertyList[]",
	}

	// ComplexListingCount returns per-trade-kind listing counts.
	ComplexListingCount = Endpoint{
		Name:        "complex_listing_count",
		BaseURL:     apiBase,
		Path:        "/land-complex/complexResteBrhs/propCountByTradeKind",
		Method:      "GET",
		Description: "Listing counts per complex. Response: {매매건수, 전세건수, 월세건수}",
	}

	// RegionSigungu lists districts for a province.
	RegionSigungu = Endpoint{
		Name:        "region_sigungu",
		BaseURL:     apiBase,
		Path:        "/land-complex/map/siGunGuAreaNameList",
		Method:      "GET",
		Description: "Districts per province. Params: 시도명. Response: [{법정동코드, 시군구명}]",
	}

	// RegionDong lists legal neighborhoods for a district.
	RegionDong = Endpoint{
		Name:        "region_dong",
		BaseURL:     apiBase,
		Path:        "/land-complex/map/stutDongAreaNameList",
		Method:      "GET",
		Description: "Neighborhoods per district. Params: 시도명, 시군구명. Response: [{법정동명, 법정동코드}]",
	}
)

// The upstream API uses Korean parameter names.
const (
	ParamComplexNo    = "단지기본일련번호"
	ParamAreaNo       = "면적일련번호"
	ParamPropertyType = "물건종류" // "01" = apartment
	ParamTradeType    = "거래유형"  // "1"=sale, "2"=jeonse, "3"=monthly
	ParamSido         = "시도명"
	ParamSigungu      = "시군구명"
)

var registry = func() map[string]Endpoint {
	all := []Endpoint{
		ComplexSearch, ComplexDetail, ComplexTypeInfo, ComplexPrice,
		ComplexTransaction, ComplexTransactionYearly, ComplexBrif,
		ComplexPropList, ComplexListingCount, RegionSigungu, RegionDong,
	}
	m := make(map[string]Endpoint, len(all))
	for _, e := range all {
		m[e.Name] = e
	}
	return m
}()

// LookupEndpoint returns the descriptor registered under name. The catalog is
// a compiled constant; panicking on an unknown name is a programming error,
// not a runtime condition.
func LookupEndpoint(name string) Endpoint {
	e, ok := registry[name]
	if !ok {
		panic(fmt.Sprintf("kb: unknown endpoint %q", name))
	}
	return e
}

// Endpoints returns the full catalog, keyed by name.
func Endpoints() map[string]Endpoint {
	out := make(map[string]Endpoint, len(registry))
	for k, v := range registry {
		out[k] = v
	}
	return out
}
