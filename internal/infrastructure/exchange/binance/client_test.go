package binance

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
	"frmon/internal/infrastructure/exchange"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *APIClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAPIClient(NewCredentials("key", "secret"), Options{BaseURL: srv.URL})
}

func TestNormalizePosition(t *testing.T) {
	tests := []struct {
		amt  string
		ok   bool
		side model.Side
		size float64
	}{
		{"0.500", true, model.SideLong, 0.5},
		{"-12", true, model.SideShort, 12},
		{"0.000", false, "", 0},
	}
	for _, tt := range tests {
		p, ok, err := NormalizePosition(PositionRisk{Symbol: "btcusdt", PositionAmt: tt.amt})
		require.NoError(t, err)
		assert.Equal(t, tt.ok, ok, tt.amt)
		if ok {
			assert.Equal(t, tt.side, p.Side)
			assert.Equal(t, tt.size, p.Size)
			assert.Equal(t, "BTCUSDT", p.Symbol)
			assert.Equal(t, model.ExchangeBinance, p.Exchange)
		}
	}

	_, _, err := NormalizePosition(PositionRisk{PositionAmt: "abc"})
	assert.Error(t, err)
}

func TestGetPositionsSigned(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v2/positionRisk", r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("X-MBX-APIKEY"))
		q := r.URL.Query()
		assert.NotEmpty(t, q.Get("timestamp"))
		assert.Equal(t, "5000", q.Get("recvWindow"))
		assert.Len(t, q.Get("signature"), 64)
		_, _ = w.Write([]byte(`[
			{"symbol":"BTCUSDT","positionAmt":"1.000","entryPrice":"60000","markPrice":"60100","unRealizedProfit":"100","positionSide":"BOTH"},
			{"symbol":"ETHUSDT","positionAmt":"0.000","entryPrice":"0","markPrice":"3000","unRealizedProfit":"0","positionSide":"BOTH"},
			{"symbol":"SOLUSDT","positionAmt":"-20","entryPrice":"150","markPrice":"149","unRealizedProfit":"20","positionSide":"BOTH"}
		]`))
	})

	positions, err := NewPositionClient(c).GetPositions(context.Background())
	require.NoError(t, err)
	require.Len(t, positions, 2)
	assert.Equal(t, model.SideLong, positions[0].Side)
	assert.Equal(t, 60100.0, positions[0].MarkPrice)
	assert.Equal(t, model.SideShort, positions[1].Side)
	assert.Equal(t, 20.0, positions[1].Size)
}

func TestGetPositionsAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"code":-2015,"msg":"Invalid API-key"}`))
	})

	_, err := NewPositionClient(c).GetPositions(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, -2015, apiErr.Code)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestGetPositionsNoCredentials(t *testing.T) {
	c := NewAPIClient(NewCredentials("", ""), Options{BaseURL: "http://127.0.0.1:1"})
	_, err := NewPositionClient(c).GetPositions(context.Background())
	assert.ErrorIs(t, err, exchange.ErrNoCredentials)
}

func TestGetFundingRate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/premiumIndex", r.URL.Path)
		assert.Equal(t, "BTCUSDT", r.URL.Query().Get("symbol"))
		assert.Empty(t, r.Header.Get("X-MBX-APIKEY"))
		_, _ = w.Write([]byte(`{"symbol":"BTCUSDT","markPrice":"60000.1","lastFundingRate":"0.00010000","nextFundingTime":1700000000000,"time":1699999999000}`))
	})

	s, err := NewFundingRateClient(c).GetFundingRate(context.Background(), "btcusdt")
	require.NoError(t, err)
	assert.Equal(t, model.ExchangeBinance, s.Exchange)
	assert.Equal(t, "BTCUSDT", s.Symbol)
	assert.Equal(t, 0.01, s.Rate)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), s.NextFundingTime)
	assert.Equal(t, 60000.1, s.MarkPrice)
}

func TestGetFundingRateUnknownSymbol(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":-1121,"msg":"Invalid symbol."}`))
	})

	_, err := NewFundingRateClient(c).GetFundingRate(context.Background(), "NOPEUSDT")
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fapi/v1/ping", r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	})
	assert.NoError(t, c.Ping(context.Background()))
}

func TestMarkPriceFeedHandleMessage(t *testing.T) {
	f := NewMarkPriceFeed("")
	var got []*model.FundingRateSample
	f.HandleMessage([]byte(`[
		{"e":"markPriceUpdate","E":1,"s":"BTCUSDT","p":"60000","r":"-0.00025","T":1700000000000},
		{"e":"markPriceUpdate","E":1,"s":"ETHUSDT","p":"3000","r":"","T":0}
	]`), func(s *model.FundingRateSample) { got = append(got, s) })

	require.Len(t, got, 1)
	assert.Equal(t, "BTCUSDT", got[0].Symbol)
	assert.Equal(t, -0.025, got[0].Rate)

	got = nil
	f.HandleMessage([]byte(`not json`), func(s *model.FundingRateSample) { got = append(got, s) })
	assert.Empty(t, got)
}
