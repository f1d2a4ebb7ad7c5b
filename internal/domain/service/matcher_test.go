package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"frmon/internal/domain/model"
)

func binancePos(sym string, side model.Side, size float64) model.Position {
	return model.Position{Exchange: model.ExchangeBinance, Symbol: sym, Side: side, Size: size}
}

func bybitPos(sym string, side model.Side, size float64) model.Position {
	return model.Position{Exchange: model.ExchangeBybit, Symbol: sym, Side: side, Size: size}
}

func TestMatchPairsWithinTolerance(t *testing.T) {
	pairs := MatchPairs(
		[]model.Position{binancePos("BTCUSDT", model.SideLong, 1.0)},
		[]model.Position{bybitPos("BTCUSDT", model.SideShort, 1.02)},
	)
	require.Len(t, pairs, 1)

	p := pairs[0]
	assert.Equal(t, "BTCUSDT", p.Symbol)
	assert.Equal(t, model.ExchangeBinance, p.LongExchange)
	assert.Equal(t, model.ExchangeBybit, p.ShortExchange)
	assert.Equal(t, 1.0, p.LongSize)
	assert.Equal(t, 1.02, p.ShortSize)
	assert.InDelta(t, 0.02, p.SizeDifference, 1e-12)

	ratio, rejected := SizeMismatch(1.0, 1.02)
	assert.False(t, rejected)
	assert.InDelta(t, 0.0198, ratio, 1e-4)
}

func TestMatchPairsOutsideTolerance(t *testing.T) {
	pairs := MatchPairs(
		[]model.Position{binancePos("BTCUSDT", model.SideLong, 1.0)},
		[]model.Position{bybitPos("BTCUSDT", model.SideShort, 1.2)},
	)
	assert.Empty(t, pairs)
}

func TestMatchPairsRejections(t *testing.T) {
	tests := []struct {
		name string
		a, b []model.Position
	}{
		{
			name: "same side is not a hedge",
			a:    []model.Position{binancePos("ETHUSDT", model.SideLong, 3)},
			b:    []model.Position{bybitPos("ETHUSDT", model.SideLong, 3)},
		},
		{
			name: "symbol only on one exchange",
			a:    []model.Position{binancePos("ETHUSDT", model.SideLong, 3)},
			b:    []model.Position{bybitPos("SOLUSDT", model.SideShort, 3)},
		},
		{
			name: "one source unavailable",
			a:    []model.Position{binancePos("ETHUSDT", model.SideLong, 3)},
			b:    nil,
		},
		{
			name: "both legs on the same exchange",
			a:    []model.Position{binancePos("ETHUSDT", model.SideLong, 3)},
			b:    []model.Position{binancePos("ETHUSDT", model.SideShort, 3)},
		},
		{
			name: "empty legs",
			a:    []model.Position{binancePos("ETHUSDT", model.SideLong, 0)},
			b:    []model.Position{bybitPos("ETHUSDT", model.SideShort, 0)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, MatchPairs(tt.a, tt.b))
		})
	}
}

func TestMatchPairsSymmetric(t *testing.T) {
	a := []model.Position{
		binancePos("BTCUSDT", model.SideShort, 0.5),
		binancePos("ethusdt ", model.SideLong, 10),
		binancePos("XRPUSDT", model.SideLong, 100),
	}
	b := []model.Position{
		bybitPos("BTCUSDT", model.SideLong, 0.51),
		bybitPos("ETHUSDT", model.SideShort, 10.3),
		bybitPos("XRPUSDT", model.SideShort, 150),
	}

	ab := MatchPairs(a, b)
	ba := MatchPairs(b, a)
	require.Len(t, ab, 2)
	assert.Equal(t, ab, ba)

	assert.Equal(t, "BTCUSDT", ab[0].Symbol)
	assert.Equal(t, model.ExchangeBybit, ab[0].LongExchange)
	assert.Equal(t, model.ExchangeBinance, ab[0].ShortExchange)
	assert.Equal(t, "ETHUSDT", ab[1].Symbol)
	assert.Equal(t, model.ExchangeBinance, ab[1].LongExchange)
}

func TestMatchPairsLastWriteWins(t *testing.T) {
	a := []model.Position{
		binancePos("BTCUSDT", model.SideLong, 5),
		binancePos("BTCUSDT", model.SideLong, 1),
	}
	b := []model.Position{bybitPos("BTCUSDT", model.SideShort, 1)}

	pairs := MatchPairs(a, b)
	require.Len(t, pairs, 1)
	assert.Equal(t, 1.0, pairs[0].LongSize)
}

func TestMatchPairsLegsAlwaysOpposite(t *testing.T) {
	sizes := []float64{0.1, 0.5, 0.97, 1, 1.03, 1.049, 1.051, 1.2, 2}
	sides := []model.Side{model.SideLong, model.SideShort}

	for _, sa := range sizes {
		for _, sb := range sizes {
			for _, da := range sides {
				for _, db := range sides {
					pairs := MatchPairs(
						[]model.Position{binancePos("BTCUSDT", da, sa)},
						[]model.Position{bybitPos("BTCUSDT", db, sb)},
					)
					_, rejected := SizeMismatch(sa, sb)
					if rejected || da == db {
						assert.Empty(t, pairs, "a=%v/%s b=%v/%s", sa, da, sb, db)
						continue
					}
					require.Len(t, pairs, 1)
					p := pairs[0]
					assert.NotEqual(t, p.LongExchange, p.ShortExchange)
					assert.Equal(t, "BTCUSDT", p.Symbol)
				}
			}
		}
	}
}
