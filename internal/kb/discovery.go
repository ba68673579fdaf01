package kb

// Parsers for the region and complex-search payloads used by catalog
// discovery. The same defensive key-candidate rules as the collection
// parsers apply.

// RegionCenter is one district row from the region endpoints, carrying the
// map center coordinates the complex search needs.
type RegionCenter struct {
	LawdCode string
	Name     string
	Lat      float64
	Lng      float64
}

// ComplexSummary is one complex row from a search response, with any area
// types inlined in the row.
type ComplexSummary struct {
	KBComplexID string
	Name        string
	Address     string
	Areas       []AreaType
}

// AreaType is one exclusive-area type of a complex.
type AreaType struct {
	KBAreaCode  string
	Name        string
	ExclusiveM2 float64
	SupplyM2    float64
}

// sidoByPrefix maps the two leading digits of a legal-district code to the
// province name the region endpoints expect.
var sidoByPrefix = map[string]string{
	"11": "서울시", "26": "부산시", "27": "대구시", "28": "인천시",
	"29": "광주시", "30": "대전시", "31": "울산시", "36": "세종시",
	"41": "경기도", "42": "강원도", "43": "충청북도", "44": "충청남도",
	"45": "전라북도", "46": "전라남도", "47": "경상북도", "48": "경상남도",
	"50": "제주도",
}

// SidoName returns the province name for a legal-district code, defaulting
// to Seoul when the prefix is unknown.
func SidoName(regionCode string) string {
	if len(regionCode) >= 2 {
		if name, ok := sidoByPrefix[regionCode[:2]]; ok {
			return name
		}
	}
	return "서울시"
}

// ParseRegionCenters extracts district rows from a region response.
func ParseRegionCenters(raw any) []RegionCenter {
	data := unwrapBody(raw)
	list := pickList(data, "list", "items")
	out := make([]RegionCenter, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		code, ok := firstString(m, "법정동코드", "lawdCd", "regionCode")
		if !ok {
			continue
		}
		name, _ := firstString(m, "시군구명", "법정동명", "name")
		lat, _ := firstFloat(m, "wgs84중심위도", "중심위도", "lat")
		lng, _ := firstFloat(m, "wgs84중심경도", "중심경도", "lng")
		out = append(out, RegionCenter{LawdCode: code, Name: name, Lat: lat, Lng: lng})
	}
	return out
}

// ParseComplexSummaries extracts complex rows from a search response.
// Rows without a portal identifier are dropped.
func ParseComplexSummaries(raw any) []ComplexSummary {
	data := unwrapBody(raw)
	list := pickList(data, "단지리스트", "complexList", "list", "items")
	out := make([]ComplexSummary, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		kbID, ok := firstString(m, "단지기본일련번호", "hscmNo", "complexNo", "단지번호", "id")
		if !ok {
			continue
		}
		name, ok := firstString(m, "단지명", "hscmNm", "complexName", "danjiNm", "name")
		if !ok {
			name = "Unknown_" + kbID
		}
		address, _ := firstString(m, "주소", "addrNm", "address", "addr", "roadAddr")
		summary := ComplexSummary{KBComplexID: kbID, Name: name, Address: address}
		if inline := pickList(m, "areaList", "면적목록", "areas"); inline != nil {
			summary.Areas = parseAreaTypes(inline)
		}
		out = append(out, summary)
	}
	return out
}

// ParseAreaTypes extracts area-type rows from a typInfo response.
func ParseAreaTypes(raw any) []AreaType {
	data := unwrapBody(raw)
	return parseAreaTypes(pickList(data, "list", "items"))
}

func parseAreaTypes(list []any) []AreaType {
	out := make([]AreaType, 0, len(list))
	for _, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		exclusive, ok := firstFloat(m, "전용면적", "excArea", "exclusiveArea")
		if !ok || exclusive <= 0 {
			continue
		}
		area := AreaType{ExclusiveM2: exclusive}
		area.KBAreaCode, _ = firstString(m, "면적일련번호", "areaNo", "면적코드", "areaCode")
		area.Name, _ = firstString(m, "면적명칭", "타입명", "areaName", "typeName")
		area.SupplyM2, _ = firstFloat(m, "공급면적", "supArea", "supplyArea")
		out = append(out, area)
	}
	return out
}
