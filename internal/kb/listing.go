package kb

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/parkmj/kbland-collector/internal/collector"
)

// ListingStatus is the closed internal status enumeration for listings.
type ListingStatus string

// Listing statuses.
const (
	ListingActive  ListingStatus = "active"
	ListingSold    ListingStatus = "sold"
	ListingRemoved ListingStatus = "removed"
)

// statusByCode maps the portal's numeric 매물상태구분 codes to internal
// statuses. Unmapped codes default to active.
var statusByCode = map[string]ListingStatus{
	"1": ListingActive,  // awaiting registration
	"2": ListingActive,  // registered
	"3": ListingSold,    // deal closed
	"4": ListingRemoved, // deleted
	"5": ListingRemoved, // expired
}

// listingPageSize is the maximum page size the propList endpoint accepts.
const listingPageSize = 50

// Listing is one published asking-price record. Only publicly visible fields
// are represented; contact and agent information present in the raw payload
// is excluded by construction.
type Listing struct {
	SourceListingID string        `json:"source_listing_id"`
	AskPrice        int64         `json:"ask_price"`
	ExclusiveM2     *float64      `json:"exclusive_m2,omitempty"`
	Floor           *int          `json:"floor,omitempty"`
	Status          ListingStatus `json:"status"`
	PostedAt        string        `json:"posted_at,omitempty"`
	TradeType       string        `json:"trade_type"`
	Source          string        `json:"source"`
}

// ListingConnector collects published listings for a complex. The direct path
// is a two-step flow: GET the complex brief, then POST it back page by page
// to the propList endpoint.
type ListingConnector struct {
	engine   *client
	resolver Resolver
}

// NewListingConnector builds a listing connector. Each instance owns its own
// escalation state and HTTP client; give each worker its own instance so
// throughput pacing stays per-instance.
func NewListingConnector(resolver Resolver, intercept Interceptor, cfg Config, logger *zap.Logger) *ListingConnector {
	return &ListingConnector{
		engine:   newClient("kb_listing", intercept, cfg, logger),
		resolver: resolver,
	}
}

// Name identifies the connector in logs and metrics.
func (c *ListingConnector) Name() string { return "kb_listing" }

// Close releases the connector's HTTP client.
func (c *ListingConnector) Close() { c.engine.Close() }

// Fetch retrieves all listing pages for one complex. The two-step direct flow
// participates in the same escalation accounting as single-endpoint
// connectors: any auth/network failure inside it counts toward fallback.
func (c *ListingConnector) Fetch(ctx context.Context, target collector.Target) (any, collector.Metadata, error) {
	kbComplexID, err := resolveComplexID(ctx, c.resolver, target.ComplexID)
	if err != nil {
		return nil, collector.Metadata{}, err
	}

	if !c.engine.engaged() {
		data, err := c.fetchAllPages(ctx, kbComplexID)
		if err == nil {
			c.engine.noteDirectSuccess()
			return data, collector.Metadata{Method: collector.MethodDirect, Source: "kb"}, nil
		}
		if !c.engine.noteDirectFailure(err) {
			return nil, collector.Metadata{Method: collector.MethodDirect, Source: "kb"}, err
		}
	}

	data, err := c.engine.fetchBrowser(ctx, browserPlan{
		pageURL:    "https://kbland.kr/pl/" + kbComplexID,
		urlPattern: "propList/main",
	})
	if err != nil {
		return nil, collector.Metadata{Method: collector.MethodBrowser, Source: "kb"}, err
	}
	return data, collector.Metadata{Method: collector.MethodBrowser, Source: "kb"}, nil
}

// fetchAllPages runs the brief+pages flow and folds the results into a single
// payload shaped like one propList response.
func (c *ListingConnector) fetchAllPages(ctx context.Context, kbComplexID string) (any, error) {
	rawBrif, err := c.engine.fetchDirect(ctx, ComplexBrif, map[string]any{ParamComplexNo: kbComplexID})
	if err != nil {
		return nil, err
	}
	brif, ok := unwrapBody(rawBrif).(map[string]any)
	if !ok || len(brif) == 0 {
		return nil, collector.Errorf(collector.KindNetwork, "brif returned empty data for %s", kbComplexID)
	}

	total := 0
	for _, key := range []string{"매매건수", "전세건수", "월세건수"} {
		if n, found := firstInt(brif, key); found {
			total += n
		}
	}
	c.engine.logger.Info("listing counts",
		zap.String("kb_complex_id", kbComplexID),
		zap.Int("total", total),
	)
	if total == 0 {
		return map[string]any{"propertyList": []any{}}, nil
	}

	allItems := make([]any, 0, total)
	totalPages := int(math.Ceil(float64(total) / float64(listingPageSize)))
	if totalPages < 1 {
		totalPages = 1
	}

	for pageNo := 1; pageNo <= totalPages; pageNo++ {
		body := make(map[string]any, len(brif)+10)
		for k, v := range brif {
			body[k] = v
		}
		body["페이지번호"] = pageNo
		body["페이지목록수"] = listingPageSize
		body["중복타입"] = "02"
		body["정렬타입"] = "date"
		body["매물거래구분"] = ""
		body["면적일련번호"] = ""
		body["전자계약여부"] = "0"
		body["비대면대출여부"] = "0"
		body["클린주택여부"] = "0"
		body["honeyYn"] = "0"

		rawPage, err := c.engine.fetchDirect(ctx, ComplexPropList, body)
		if err != nil {
			return nil, err
		}
		pageData, _ := unwrapBody(rawPage).(map[string]any)
		items := pickList(pageData, "propertyList")
		if len(items) == 0 {
			break
		}
		allItems = append(allItems, items...)

		// The server reports the real page count; trust it over our estimate.
		if serverPages, found := firstInt(pageData, "페이지개수"); found && pageNo >= serverPages {
			break
		}
	}

	return map[string]any{"propertyList": allItems}, nil
}

// Parse extracts normalized listings, deduplicated by source listing ID
// within the pass (first occurrence wins). Entries without an identifier or
// without any usable price are dropped.
func (c *ListingConnector) Parse(raw any) ([]Listing, error) {
	data := unwrapBody(raw)

	propList := pickList(data, "propertyList")
	if propList == nil {
		if data == nil {
			return nil, nil
		}
		if _, ok := data.(map[string]any); ok {
			return nil, nil
		}
		return nil, collector.Errorf(collector.KindParse, "listing payload not traversable: %T", data)
	}

	parsed := make([]Listing, 0, len(propList))
	seen := make(map[string]bool, len(propList))
	for _, entry := range propList {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		listing := parseListing(item)
		if listing == nil || seen[listing.SourceListingID] {
			continue
		}
		seen[listing.SourceListingID] = true
		parsed = append(parsed, *listing)
	}
	return parsed, nil
}

// parseListing normalizes one raw entry. The returned struct is a fixed
// allow-list of public fields: contact and agent data never crosses this
// boundary.
func parseListing(item map[string]any) *Listing {
	id, found := firstString(item, "매물일련번호")
	if !found {
		return nil
	}

	price, found := firstPrice(item, "매매가", "최소매매가", "전세가")
	if !found || price == 0 {
		return nil
	}

	listing := &Listing{
		SourceListingID: "KB" + id,
		AskPrice:        price,
		Status:          ListingActive,
		TradeType:       "매매",
		Source:          "kb",
	}

	// 순전용면적 is the more precise figure when present.
	if area, found := firstFloat(item, "순전용면적", "전용면적"); found && area > 0 {
		listing.ExclusiveM2 = &area
	}
	if floor, found := firstInt(item, "해당층수"); found {
		listing.Floor = &floor
	}
	if code, found := firstString(item, "매물상태구분"); found {
		if status, ok := statusByCode[code]; ok {
			listing.Status = status
		}
	}
	if posted, found := firstString(item, "등록년월일"); found {
		listing.PostedAt = normalizeDate(posted)
	}
	if trade, found := firstString(item, "매물거래구분명"); found {
		listing.TradeType = trade
	}
	return listing
}
