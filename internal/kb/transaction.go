package kb

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/parkmj/kbland-collector/internal/collector"
)

// Transaction is one closed deal for a complex. Price is in the upstream's
// native 만원 unit.
type Transaction struct {
	ContractDate string  `json:"contract_date"`
	Price        int64   `json:"price"`
	ExclusiveM2  float64 `json:"exclusive_m2"`
	Floor        *int    `json:"floor,omitempty"`
	IsCancelled  bool    `json:"is_cancelled"`
	Source       string  `json:"source"`
}

// TransactionConnector collects the closed-deal history for a complex,
// optionally scoped to one area type.
type TransactionConnector struct {
	engine   *client
	resolver Resolver
}

// NewTransactionConnector builds a deal-history connector. Each instance owns
// its own escalation state and HTTP client; give each worker its own instance
// so throughput pacing stays per-instance.
func NewTransactionConnector(resolver Resolver, intercept Interceptor, cfg Config, logger *zap.Logger) *TransactionConnector {
	return &TransactionConnector{
		engine:   newClient("kb_transaction", intercept, cfg, logger),
		resolver: resolver,
	}
}

// Name identifies the connector in logs and metrics.
func (c *TransactionConnector) Name() string { return "kb_transaction" }

// Close releases the connector's HTTP client.
func (c *TransactionConnector) Close() { c.engine.Close() }

// Fetch retrieves the raw deal history for one complex. The area scope is
// optional; a zero AreaID fetches all areas.
func (c *TransactionConnector) Fetch(ctx context.Context, target collector.Target) (any, collector.Metadata, error) {
	kbComplexID, err := resolveComplexID(ctx, c.resolver, target.ComplexID)
	if err != nil {
		return nil, collector.Metadata{}, err
	}

	params := map[string]any{
		ParamComplexNo: kbComplexID,
		ParamTradeType: "1", // sales only
	}
	if target.AreaID != 0 {
		kbAreaCode, err := resolveAreaCode(ctx, c.resolver, target.AreaID)
		if err != nil {
			return nil, collector.Metadata{}, err
		}
		params[ParamAreaNo] = kbAreaCode
	}

	plan := browserPlan{
		pageURL:    "https://kbland.kr/map?complexNo=" + kbComplexID,
		urlPattern: "deal",
		interact:   clickFirstVisible(`//*[text()="실거래가"]`, `//*[text()="실거래"]`, `[data-tab="deal"]`),
	}
	return c.engine.fetch(ctx, ComplexTransaction, params, plan)
}

// Parse extracts normalized deals. The deal list may hide under several
// candidate keys; per entry, date and price are extracted independently and
// entries missing both a valid date and a valid price are silently dropped.
func (c *TransactionConnector) Parse(raw any) ([]Transaction, error) {
	data := unwrapBody(raw)

	dealList := pickList(data, "dealList", "list", "items", "tradeList", "거래목록")
	if dealList == nil {
		if data == nil {
			return nil, nil
		}
		if _, ok := data.(map[string]any); ok {
			// A map with no recognizable deal list means no deals, not drift.
			return nil, nil
		}
		return nil, collector.Errorf(collector.KindParse, "transaction payload not traversable: %T", data)
	}

	parsed := make([]Transaction, 0, len(dealList))
	for _, entry := range dealList {
		item, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		contractDate := extractDealDate(item)
		price, hasPrice := firstPrice(item, "dealAmt", "price", "거래금액", "거래가", "tradeAmt")
		if contractDate == "" || !hasPrice {
			continue
		}

		tx := Transaction{
			ContractDate: contractDate,
			Price:        price,
			IsCancelled:  extractCancelFlag(item),
			Source:       "kb",
		}
		if area, found := firstFloat(item, "excArea", "exclusive_m2", "전용면적", "exclusiveArea"); found {
			tx.ExclusiveM2 = area
		}
		if floor, found := firstInt(item, "floor", "층", "floorInfo"); found {
			tx.Floor = &floor
		}
		parsed = append(parsed, tx)
	}
	return parsed, nil
}

// extractDealDate derives the contract date from either a single compact
// field or split year/month/day fields, defaulting a missing day to the 1st.
func extractDealDate(item map[string]any) string {
	if s, found := firstString(item, "dealDate", "contract_date", "거래일", "계약일", "tradeDate"); found {
		return normalizeDate(s)
	}

	year, hasYear := firstInt(item, "년", "year", "dealYear")
	month, hasMonth := firstInt(item, "월", "month", "dealMonth")
	if !hasYear || !hasMonth {
		return ""
	}
	day, hasDay := firstInt(item, "일", "day", "dealDay")
	if !hasDay {
		day = 1
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day)
}

func extractCancelFlag(item map[string]any) bool {
	for _, key := range []string{"cancelYn", "is_cancelled", "해제여부", "cancelDealYn"} {
		if v, ok := item[key]; ok {
			return isTruthy(v)
		}
	}
	return false
}
