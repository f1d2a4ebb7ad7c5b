package monitor

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"frmon/internal/domain/model"
	dsvc "frmon/internal/domain/service"
)

func TestExchangeTitle(t *testing.T) {
	assert.Equal(t, "Binance", ExchangeTitle(model.ExchangeBinance))
	assert.Equal(t, "Bybit", ExchangeTitle(model.ExchangeBybit))
	assert.Equal(t, "", ExchangeTitle(""))
}

func TestWindowLabel(t *testing.T) {
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, "2024-01-01 10:00-11:00 UTC", WindowLabel(start, start.Add(time.Hour)))
}

func TestRenderAlert(t *testing.T) {
	f := NewFormatter(0)
	pair := model.ArbitragePair{Symbol: "ALCHUSDT", LongExchange: model.ExchangeBinance, ShortExchange: model.ExchangeBybit}
	ev := dsvc.EvaluatePairs([]model.ArbitragePair{pair}, RateBook{
		model.ExchangeBinance: {"ALCHUSDT": {Rate: 0.034}},
		model.ExchangeBybit:   {"ALCHUSDT": {Rate: 0.005}},
	}, 0)

	out := f.RenderAlert(time.Date(2024, 1, 1, 10, 5, 0, 0, time.UTC), ev)
	want := "Funding spread alert\n" +
		"  2024-01-01 10:05 UTC\n" +
		"\n" +
		"    ALCHUSDT (ALERT)\n" +
		"    ├ Binance (long): +0.0340%\n" +
		"    ├ Bybit (short): +0.0050%\n" +
		"    └ Spread: -0.0290%"
	assert.Equal(t, want, out)
}

func TestRenderSummaryEmpty(t *testing.T) {
	f := NewFormatter(0)
	start := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	out := f.RenderSummary(WindowSummary{Start: start, End: start.Add(time.Hour), TotalChecks: 3, FailedChecks: 1})

	assert.Contains(t, out, "2024-01-01 10:00-11:00 UTC")
	assert.Contains(t, out, "├ Checks: 3")
	assert.Contains(t, out, "├ Failed checks: 1")
	assert.Contains(t, out, "no monitored hedges")
}

func TestRenderCycleRateUnavailable(t *testing.T) {
	f := NewFormatter(0)
	pairs := []model.ArbitragePair{{Symbol: "BTCUSDT", LongExchange: model.ExchangeBinance, ShortExchange: model.ExchangeBybit}}
	evals := dsvc.EvaluatePairs(pairs, RateBook{}, 0)

	out := f.RenderCycle(time.Now(), evals)
	assert.Contains(t, out, "rate unavailable (Binance, Bybit)")
	assert.NotContains(t, out, "[ALERT]")
}

func TestRenderError(t *testing.T) {
	out := NewFormatter(0).RenderError(time.Now(), errors.New("boom"))
	assert.Contains(t, out, "boom")
}
