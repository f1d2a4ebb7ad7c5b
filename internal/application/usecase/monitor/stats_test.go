package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frmon/internal/domain/model"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func pair(sym string) model.ArbitragePair {
	return model.ArbitragePair{Symbol: sym, LongExchange: model.ExchangeBinance, ShortExchange: model.ExchangeBybit, LongSize: 1, ShortSize: 1}
}

func result(sym string, spread float64) map[string]model.DifferentialResult {
	return map[string]model.DifferentialResult{sym: {Symbol: sym, Spread: spread, AlertTriggered: spread <= 0}}
}

func TestAggregatorTwoAlertCycles(t *testing.T) {
	agg := NewAggregator(newClock().Now)
	pairs := []model.ArbitragePair{pair("XUSDT")}

	for range 2 {
		agg.RecordCheck(true, pairs, result("XUSDT", -0.01))
		agg.RecordAlert("XUSDT")
	}

	st, ok := agg.Symbol("XUSDT")
	require.True(t, ok)
	assert.Equal(t, 2, st.AlertCount)
	assert.Equal(t, 2, st.CheckCount)
	assert.Equal(t, 100.0, st.AlertRate())

	sum := agg.Summary()
	assert.Equal(t, 2, sum.TotalChecks)
	assert.Equal(t, 2, sum.TotalAlerts)
	assert.Equal(t, 100.0, sum.AlertRate())
}

func TestAggregatorAlertOncePerCycle(t *testing.T) {
	agg := NewAggregator(nil)
	agg.RecordCheck(true, []model.ArbitragePair{pair("XUSDT")}, result("XUSDT", -1))
	agg.RecordAlert("XUSDT")
	agg.RecordAlert("XUSDT")

	st, _ := agg.Symbol("XUSDT")
	assert.Equal(t, 1, st.AlertCount)
}

func TestAggregatorAlertCreatesEntry(t *testing.T) {
	agg := NewAggregator(nil)
	agg.RecordAlert("NEWUSDT")

	st, ok := agg.Symbol("NEWUSDT")
	require.True(t, ok)
	assert.Equal(t, 1, st.AlertCount)
	assert.Equal(t, 0, st.CheckCount)
	assert.Equal(t, 0.0, st.AlertRate(), "no checks must not divide by zero")
}

func TestAggregatorSpreadStats(t *testing.T) {
	agg := NewAggregator(nil)
	pairs := []model.ArbitragePair{pair("BTCUSDT")}
	for _, s := range []float64{0.02, -0.01, 0.05} {
		agg.RecordCheck(true, pairs, result("BTCUSDT", s))
	}

	sum := agg.Summary()
	require.Len(t, sum.Symbols, 1)
	sym := sum.Symbols[0]
	assert.Equal(t, 3, sym.CheckCount)
	assert.InDelta(t, 0.02, sym.AvgSpread, 1e-12)
	assert.Equal(t, -0.01, sym.MinSpread)
	assert.Equal(t, 0.05, sym.MaxSpread)
	assert.Equal(t, 0.05, sym.CurrentSpread)
}

func TestAggregatorSkipsPairsWithoutResult(t *testing.T) {
	agg := NewAggregator(nil)
	agg.RecordCheck(true, []model.ArbitragePair{pair("BTCUSDT"), pair("ETHUSDT")}, result("BTCUSDT", 0.1))

	_, ok := agg.Symbol("ETHUSDT")
	assert.False(t, ok)
	assert.Equal(t, []string{"BTCUSDT"}, agg.Symbols())
	assert.Equal(t, 1, agg.Summary().TotalChecks)
}

func TestAggregatorFailedAndEmptyChecks(t *testing.T) {
	agg := NewAggregator(nil)
	agg.RecordCheck(false, nil, nil)
	agg.RecordCheck(true, nil, nil)

	sum := agg.Summary()
	assert.Equal(t, 2, sum.TotalChecks)
	assert.Equal(t, 1, sum.FailedChecks)
	assert.Equal(t, 1, sum.SuccessfulChecks)
	assert.Equal(t, 2, sum.NoPairChecks)
	assert.Empty(t, sum.Symbols)
	assert.Equal(t, 0.0, sum.AlertRate())
}

func TestAggregatorResetStartsNewWindow(t *testing.T) {
	clock := newClock()
	agg := NewAggregator(clock.Now)
	agg.RecordCheck(true, []model.ArbitragePair{pair("BTCUSDT")}, result("BTCUSDT", 0.1))

	before := agg.Summary()
	clock.Advance(time.Hour)
	agg.Reset()
	agg.Reset()

	after := agg.Summary()
	assert.Equal(t, 0, after.TotalChecks)
	assert.Empty(t, after.Symbols)
	assert.Equal(t, clock.Now(), after.Start)

	// snapshots taken before the reset are not affected
	assert.Equal(t, 1, before.TotalChecks)
	require.Len(t, before.Symbols, 1)
}

func TestAggregatorSnapshotIsCopy(t *testing.T) {
	agg := NewAggregator(nil)
	agg.RecordCheck(true, []model.ArbitragePair{pair("BTCUSDT")}, result("BTCUSDT", 0.1))

	st, _ := agg.Symbol("BTCUSDT")
	st.Spreads[0] = 99

	again, _ := agg.Symbol("BTCUSDT")
	assert.Equal(t, 0.1, again.Spreads[0])
}

func TestAggregatorMonotonic(t *testing.T) {
	agg := NewAggregator(nil)
	prevChecks, prevAlerts := 0, 0
	for i := range 20 {
		success := i%3 != 0
		agg.RecordCheck(success, []model.ArbitragePair{pair("BTCUSDT")}, result("BTCUSDT", float64(i%4)-2))
		if i%2 == 0 {
			agg.RecordAlert("BTCUSDT")
		}
		sum := agg.Summary()
		st, _ := agg.Symbol("BTCUSDT")
		assert.GreaterOrEqual(t, sum.TotalChecks, prevChecks)
		assert.GreaterOrEqual(t, st.AlertCount, prevAlerts)
		prevChecks, prevAlerts = sum.TotalChecks, st.AlertCount
	}
	assert.Equal(t, 20, prevChecks)
	assert.Equal(t, 10, prevAlerts)
}
