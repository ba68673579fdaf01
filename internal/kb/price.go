package kb

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/parkmj/kbland-collector/internal/collector"
)

// Valuation is one KB valuation snapshot for a complex/area pair. Prices are
// integers in the upstream's native 만원 unit; absent fields stay nil.
type Valuation struct {
	AsOfDate     string `json:"as_of_date"`
	GeneralPrice *int64 `json:"general_price"`
	HighAvgPrice *int64 `json:"high_avg_price"`
	LowAvgPrice  *int64 `json:"low_avg_price"`
	Source       string `json:"source"`
}

// RecentTransaction is the most-recent-deal substructure embedded in a
// valuation response.
type RecentTransaction struct {
	ContractDate string `json:"contract_date"`
	Price        int64  `json:"price"`
	Floor        *int   `json:"floor,omitempty"`
	Source       string `json:"source"`
}

// ListingCounts are the per-trade-kind listing counts embedded in a valuation
// response.
type ListingCounts struct {
	Sale    int `json:"sale"`
	Jeonse  int `json:"jeonse"`
	Monthly int `json:"monthly"`
}

// PriceConnector collects KB valuation snapshots (general / upper-average /
// lower-average sale prices).
type PriceConnector struct {
	engine   *client
	resolver Resolver
	clock    collector.Clock
}

// NewPriceConnector builds a valuation connector. Each instance owns its own
// escalation state and HTTP client; give each worker its own instance so
// throughput pacing stays per-instance.
func NewPriceConnector(resolver Resolver, intercept Interceptor, cfg Config, logger *zap.Logger) *PriceConnector {
	return &PriceConnector{
		engine:   newClient("kb_price", intercept, cfg, logger),
		resolver: resolver,
		clock:    collector.SystemClock{},
	}
}

// Name identifies the connector in logs and metrics.
func (c *PriceConnector) Name() string { return "kb_price" }

// Close releases the connector's HTTP client.
func (c *PriceConnector) Close() { c.engine.Close() }

// Fetch retrieves the raw valuation payload for one complex/area pair.
func (c *PriceConnector) Fetch(ctx context.Context, target collector.Target) (any, collector.Metadata, error) {
	kbComplexID, err := resolveComplexID(ctx, c.resolver, target.ComplexID)
	if err != nil {
		return nil, collector.Metadata{}, err
	}
	kbAreaCode, err := resolveAreaCode(ctx, c.resolver, target.AreaID)
	if err != nil {
		return nil, collector.Metadata{}, err
	}

	params := map[string]any{
		ParamComplexNo: kbComplexID,
		ParamAreaNo:    kbAreaCode,
	}
	plan := browserPlan{
		pageURL:    "https://kbland.kr/map?complexNo=" + kbComplexID,
		urlPattern: "price",
		interact:   clickFirstVisible(`//*[text()="시세"]`, `//*[text()="KB시세"]`, `[data-tab="price"]`),
	}
	return c.engine.fetch(ctx, ComplexPrice, params, plan)
}

// Parse extracts the current valuation snapshot. The snapshot list may sit
// under several wrappers; the first entry is taken as current. Invalid or
// empty input yields an empty result, not an error.
func (c *PriceConnector) Parse(raw any) ([]Valuation, error) {
	data := unwrapBody(raw)

	siseList := pickList(data, "시세")
	if siseList == nil {
		// Some payload variants carry the price fields at the top level.
		if m, ok := data.(map[string]any); ok {
			siseList = []any{m}
		}
	}
	if len(siseList) == 0 {
		return nil, nil
	}
	info, ok := siseList[0].(map[string]any)
	if !ok {
		return nil, nil
	}

	asOf := ""
	if s, found := firstString(info, "시세기준년월일", "baseDate", "as_of_date", "stdDate"); found {
		asOf = normalizeDate(s)
	}
	if asOf == "" {
		asOf = c.clock.Now().Format("2006-01-02")
	}

	v := Valuation{AsOfDate: asOf, Source: "kb"}
	if p, found := firstPrice(info, "매매일반거래가", "매매거래금액", "dealAmt", "general_price"); found {
		v.GeneralPrice = &p
	}
	if p, found := firstPrice(info, "매매상한가", "dealAmtUpper", "high_avg_price"); found {
		v.HighAvgPrice = &p
	}
	if p, found := firstPrice(info, "매매하한가", "dealAmtLower", "low_avg_price"); found {
		v.LowAvgPrice = &p
	}
	return []Valuation{v}, nil
}

// ParseRecentTransaction extracts the embedded most-recent-deal block from an
// already-fetched valuation payload. Pure; returns nil on absent or malformed
// data.
func (c *PriceConnector) ParseRecentTransaction(raw any) *RecentTransaction {
	data, ok := unwrapBody(raw).(map[string]any)
	if !ok {
		return nil
	}
	recent, ok := data["최근실거래가"].(map[string]any)
	if !ok {
		return nil
	}

	date, found := firstString(recent, "계약년월일")
	if !found {
		return nil
	}
	price, found := firstPrice(recent, "거래금액")
	if !found || price == 0 {
		return nil
	}

	tx := &RecentTransaction{
		ContractDate: normalizeDate(date),
		Price:        price,
		Source:       "kb",
	}
	if floor, found := firstInt(recent, "거래층"); found {
		tx.Floor = &floor
	}
	return tx
}

// ParseListingCounts extracts listing counts from an already-fetched
// valuation payload. Pure; returns zero counts on absent or malformed data.
func (c *PriceConnector) ParseListingCounts(raw any) ListingCounts {
	data, ok := unwrapBody(raw).(map[string]any)
	if !ok {
		return ListingCounts{}
	}
	var counts ListingCounts
	if n, found := firstInt(data, "매매건수"); found {
		counts.Sale = n
	}
	if n, found := firstInt(data, "전세건수"); found {
		counts.Jeonse = n
	}
	if n, found := firstInt(data, "월세건수"); found {
		counts.Monthly = n
	}
	return counts
}

// clickFirstVisible tries each selector in order with a short per-selector
// deadline; the first successful click wins. Missing tabs are not an error —
// some pages load the data without interaction.
func clickFirstVisible(selectors ...string) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		for _, sel := range selectors {
			clickCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err := chromedp.Click(sel, chromedp.BySearch).Do(clickCtx)
			cancel()
			if err == nil {
				return chromedp.Sleep(2 * time.Second).Do(ctx)
			}
		}
		return nil
	}
}
