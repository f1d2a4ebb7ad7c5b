package service

import (
	"math"
	"sort"

	"frmon/internal/domain/model"
)

// SizeTolerance is the maximum relative size gap |a-b| / ((a+b)/2) for two legs
// to count as one hedged position. Independent fills rarely match exactly.
const SizeTolerance = 0.05

type leg struct {
	exchange string
	side     model.Side
	size     float64
}

// indexPositions 按交易对索引持仓，重复时后者覆盖前者
func indexPositions(positions []model.Position) map[string]leg {
	out := make(map[string]leg, len(positions))
	for _, p := range positions {
		sym := model.NormalizeSymbol(p.Symbol)
		if sym == "" || !p.Side.Valid() {
			continue
		}
		out[sym] = leg{exchange: p.Exchange, side: p.Side, size: p.Size}
	}
	return out
}

// SizeMismatch returns the relative size gap of two legs and whether it is
// outside SizeTolerance. Two empty legs are always a mismatch.
func SizeMismatch(a, b float64) (ratio float64, rejected bool) {
	avg := (a + b) / 2
	if avg <= 0 {
		return 0, true
	}
	ratio = math.Abs(a-b) / avg
	return ratio, ratio > SizeTolerance
}

// MatchPairs 找出套利组合：交易对相同、方向相反、数量在容差内
// A nil slice (failed source) is simply an empty side; the result is sorted by symbol.
func MatchPairs(positionsA, positionsB []model.Position) []model.ArbitragePair {
	idxA := indexPositions(positionsA)
	idxB := indexPositions(positionsB)

	pairs := make([]model.ArbitragePair, 0)
	for sym, a := range idxA {
		b, ok := idxB[sym]
		if !ok {
			continue
		}
		if a.side == b.side || a.exchange == b.exchange {
			continue
		}
		if _, rejected := SizeMismatch(a.size, b.size); rejected {
			continue
		}

		long, short := a, b
		if a.side == model.SideShort {
			long, short = b, a
		}
		pairs = append(pairs, model.ArbitragePair{
			Symbol:         sym,
			LongExchange:   long.exchange,
			ShortExchange:  short.exchange,
			LongSize:       long.size,
			ShortSize:      short.size,
			SizeDifference: math.Abs(a.size - b.size),
		})
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].Symbol < pairs[j].Symbol })
	return pairs
}

// PairSymbols returns the instrument ids of the given pairs, in order.
func PairSymbols(pairs []model.ArbitragePair) []string {
	out := make([]string, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, p.Symbol)
	}
	return out
}
