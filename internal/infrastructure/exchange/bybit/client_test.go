package bybit

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frmon/internal/domain/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *APIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAPIClient(NewCredentials("key", "secret"), Options{BaseURL: srv.URL})
}

func TestNormalizeSide(t *testing.T) {
	tests := []struct {
		in   string
		want model.Side
		ok   bool
	}{
		{"Buy", model.SideLong, true},
		{"Sell", model.SideShort, true},
		{"", "", false},
		{"None", "", false},
	}
	for _, tt := range tests {
		got, ok := NormalizeSide(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestGetPositionsSignedAndPaged(t *testing.T) {
	calls := 0
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/v5/position/list", r.URL.Path)
		assert.Equal(t, "linear", r.URL.Query().Get("category"))
		assert.Equal(t, "USDT", r.URL.Query().Get("settleCoin"))
		assert.Equal(t, "key", r.Header.Get("X-BAPI-API-KEY"))
		assert.Equal(t, "5000", r.Header.Get("X-BAPI-RECV-WINDOW"))
		assert.Len(t, r.Header.Get("X-BAPI-SIGN"), 64)

		if r.URL.Query().Get("cursor") == "" {
			_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"category":"linear","nextPageCursor":"p2","list":[
				{"symbol":"BTCUSDT","side":"Sell","size":"1.02","avgPrice":"60000","markPrice":"60100","unrealisedPnl":"-10"},
				{"symbol":"XRPUSDT","side":"","size":"0","avgPrice":"0","markPrice":"0.5","unrealisedPnl":"0"}
			]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"category":"linear","nextPageCursor":"","list":[
			{"symbol":"ETHUSDT","side":"Buy","size":"10","avgPrice":"3000","markPrice":"3010","unrealisedPnl":"100"}
		]}}`))
	})

	positions, err := NewPositionClient(c).GetPositions(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, positions, 2)
	assert.Equal(t, model.Position{
		Exchange: model.ExchangeBybit, Symbol: "BTCUSDT", Side: model.SideShort, Size: 1.02,
		EntryPrice: 60000, MarkPrice: 60100, UnrealizedPnL: -10,
	}, positions[0])
	assert.Equal(t, model.SideLong, positions[1].Side)
}

func TestGetPositionsRetCode(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":10003,"retMsg":"API key is invalid.","result":{}}`))
	})

	_, err := NewPositionClient(c).GetPositions(context.Background())
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 10003, apiErr.RetCode)
}

func TestGetFundingRate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v5/market/tickers", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Empty(t, r.Header.Get("X-BAPI-SIGN"))
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"category":"linear","list":[
			{"symbol":"BTCUSDT","markPrice":"60000","fundingRate":"0.000442","nextFundingTime":"1700000000000"}
		]}}`))
	})

	s, err := NewFundingRateClient(c).GetFundingRate(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	assert.Equal(t, model.ExchangeBybit, s.Exchange)
	assert.Equal(t, 0.0442, s.Rate)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), s.NextFundingTime)
}

func TestGetFundingRateEmptyList(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"retCode":0,"retMsg":"OK","result":{"category":"linear","list":[]}}`))
	})

	_, err := NewFundingRateClient(c).GetFundingRate(context.Background(), "NOPEUSDT")
	assert.Error(t, err)
}

func TestTickerFeedHandleMessage(t *testing.T) {
	f := NewTickerFeed("")
	var got []*model.FundingRateSample
	emit := func(s *model.FundingRateSample) { got = append(got, s) }

	f.HandleMessage([]byte(`{"success":true,"ret_msg":"","op":"subscribe"}`), emit)
	f.HandleMessage([]byte(`{"topic":"tickers.BTCUSDT","type":"snapshot","ts":1,"data":{"symbol":"BTCUSDT","markPrice":"60000","fundingRate":"-0.0001","nextFundingTime":"1700000000000"}}`), emit)
	f.HandleMessage([]byte(`{"topic":"tickers.BTCUSDT","type":"delta","ts":2,"data":{"symbol":"BTCUSDT","markPrice":"60001"}}`), emit)

	require.Len(t, got, 1)
	assert.Equal(t, "BTCUSDT", got[0].Symbol)
	assert.Equal(t, -0.01, got[0].Rate)
}

func TestTickerFeedWatchDedupes(t *testing.T) {
	f := NewTickerFeed("")
	f.Watch("btcusdt", "BTCUSDT", "ETHUSDT", "")
	assert.ElementsMatch(t, []string{"tickers.BTCUSDT", "tickers.ETHUSDT"}, f.currentTopics())
}
