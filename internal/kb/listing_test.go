package kb

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parkmj/kbland-collector/internal/collector"
)

func newTestListingConnector() *ListingConnector {
	return NewListingConnector(stubResolver{complexID: "103206"}, nil, Config{}, nil)
}

func rawListing(id string, extra map[string]any) map[string]any {
	item := map[string]any{
		"매물일련번호": id,
		"매매가":    "142,000",
		"전용면적":   84.97,
		"순전용면적":  59.92,
		"해당층수":   "9층",
		"매물상태구분": "2",
		"등록년월일":  "20260201",
		"매물거래구분명": "매매",
	}
	for k, v := range extra {
		item[k] = v
	}
	return item
}

func TestListingParse(t *testing.T) {
	c := newTestListingConnector()
	defer c.Close()

	raw := map[string]any{"dataBody": map[string]any{"data": map[string]any{
		"propertyList": []any{rawListing("55510001", nil)},
	}}}

	listings, err := c.Parse(raw)
	require.NoError(t, err)
	require.Len(t, listings, 1)

	l := listings[0]
	assert.Equal(t, "KB55510001", l.SourceListingID)
	assert.Equal(t, int64(142000), l.AskPrice)
	require.NotNil(t, l.ExclusiveM2)
	assert.InDelta(t, 59.92, *l.ExclusiveM2, 0.001) // net area preferred
	require.NotNil(t, l.Floor)
	assert.Equal(t, 9, *l.Floor)
	assert.Equal(t, ListingActive, l.Status)
	assert.Equal(t, "2026-02-01", l.PostedAt)
	assert.Equal(t, "매매", l.TradeType)
	assert.Equal(t, "kb", l.Source)
}

func TestListingParseDeduplicates(t *testing.T) {
	c := newTestListingConnector()
	defer c.Close()

	// The portal repeats a listing once per advertising agent; the first
	// occurrence wins.
	raw := map[string]any{"propertyList": []any{
		rawListing("777", map[string]any{"매매가": "142,000"}),
		rawListing("777", map[string]any{"매매가": "143,000"}),
		rawListing("888", nil),
	}}

	listings, err := c.Parse(raw)
	require.NoError(t, err)
	require.Len(t, listings, 2)
	assert.Equal(t, "KB777", listings[0].SourceListingID)
	assert.Equal(t, int64(142000), listings[0].AskPrice)
	assert.Equal(t, "KB888", listings[1].SourceListingID)
}

func TestListingParseStatusMapping(t *testing.T) {
	c := newTestListingConnector()
	defer c.Close()

	tests := []struct {
		code string
		want ListingStatus
	}{
		{"1", ListingActive},
		{"2", ListingActive},
		{"3", ListingSold},
		{"4", ListingRemoved},
		{"5", ListingRemoved},
		{"99", ListingActive}, // unknown codes stay visible
	}
	for _, tt := range tests {
		raw := map[string]any{"propertyList": []any{
			rawListing("1", map[string]any{"매물상태구분": tt.code}),
		}}
		listings, err := c.Parse(raw)
		require.NoError(t, err)
		require.Len(t, listings, 1)
		assert.Equal(t, tt.want, listings[0].Status, "code %s", tt.code)
	}
}

func TestListingParseDropsUnusable(t *testing.T) {
	c := newTestListingConnector()
	defer c.Close()

	raw := map[string]any{"propertyList": []any{
		map[string]any{"매매가": "142,000"},                         // no ID
		rawListing("1", map[string]any{"매매가": nil, "최소매매가": nil, "전세가": nil}),
		rawListing("2", map[string]any{"매매가": 0.0}),             // zero price
		rawListing("3", nil),
	}}
	listings, err := c.Parse(raw)
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "KB3", listings[0].SourceListingID)
}

func TestListingExcludesContactFields(t *testing.T) {
	c := newTestListingConnector()
	defer c.Close()

	raw := map[string]any{"propertyList": []any{
		rawListing("1", map[string]any{
			"중개업소명":    "XX공인중개사",
			"중개업소전화번호": "02-1234-5678",
			"중개사명":     "홍길동",
		}),
	}}
	listings, err := c.Parse(raw)
	require.NoError(t, err)
	require.Len(t, listings, 1)

	out, err := json.Marshal(listings[0])
	require.NoError(t, err)
	var keys map[string]any
	require.NoError(t, json.Unmarshal(out, &keys))

	allowed := map[string]bool{
		"source_listing_id": true, "ask_price": true, "exclusive_m2": true,
		"floor": true, "status": true, "posted_at": true,
		"trade_type": true, "source": true,
	}
	for k := range keys {
		assert.True(t, allowed[k], "unexpected field %q in output", k)
	}
	assert.NotContains(t, string(out), "1234-5678")
	assert.NotContains(t, string(out), "홍길동")
}

func TestListingFetchPages(t *testing.T) {
	page1 := make([]any, 0, listingPageSize)
	for i := 0; i < listingPageSize; i++ {
		page1 = append(page1, rawListing(string(rune('A'+i%26))+"1", nil))
	}
	page2 := []any{rawListing("last", nil)}

	var postBodies []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			// Brief: 60 sale listings, plus fields echoed into the POST body.
			require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
				"dataBody": map[string]any{"data": map[string]any{
					"매매건수":     60,
					"단지기본일련번호": "103206",
					"법정동코드":    "1168010300",
				}},
			}))
			return
		}
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		postBodies = append(postBodies, body)

		items := page1
		if body["페이지번호"] == 2.0 {
			items = page2
		}
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"dataBody": map[string]any{"data": map[string]any{
				"propertyList": items,
				"페이지개수":       2,
			}},
		}))
	}))
	defer srv.Close()

	origBrif, origProp := ComplexBrif, ComplexPropList
	ComplexBrif.BaseURL = srv.URL
	ComplexPropList.BaseURL = srv.URL
	defer func() { ComplexBrif, ComplexPropList = origBrif, origProp }()

	c := newTestListingConnector()
	defer c.Close()

	raw, meta, err := c.Fetch(context.Background(), collector.Target{ComplexID: 1})
	require.NoError(t, err)
	assert.Equal(t, collector.MethodDirect, meta.Method)

	require.Len(t, postBodies, 2)
	// The POST body is the brief data plus the paging parameters.
	first := postBodies[0]
	assert.Equal(t, "1168010300", first["법정동코드"])
	assert.Equal(t, 1.0, first["페이지번호"])
	assert.Equal(t, float64(listingPageSize), first["페이지목록수"])
	assert.Equal(t, "02", first["중복타입"])
	assert.Equal(t, "date", first["정렬타입"])
	assert.Equal(t, 2.0, postBodies[1]["페이지번호"])

	merged, ok := raw.(map[string]any)
	require.True(t, ok)
	assert.Len(t, merged["propertyList"], listingPageSize+1)
}

func TestListingFetchNoListings(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method, "no page fetch expected for empty complex")
		require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
			"dataBody": map[string]any{"data": map[string]any{
				"매매건수": 0, "전세건수": 0, "월세건수": 0,
			}},
		}))
	}))
	defer srv.Close()

	orig := ComplexBrif
	ComplexBrif.BaseURL = srv.URL
	defer func() { ComplexBrif = orig }()

	c := newTestListingConnector()
	defer c.Close()

	raw, _, err := c.Fetch(context.Background(), collector.Target{ComplexID: 1})
	require.NoError(t, err)

	listings, err := c.Parse(raw)
	require.NoError(t, err)
	assert.Empty(t, listings)
}
