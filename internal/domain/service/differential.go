package service

import (
	"errors"
	"fmt"

	"frmon/internal/domain/model"
)

// ErrRateUnavailable 某一腿的资金费率无法取得
var ErrRateUnavailable = errors.New("funding rate unavailable")

// Spread 费率差值 = 做空交易所资金费率 - 做多交易所资金费率
func Spread(longRate, shortRate float64) float64 {
	return shortRate - longRate
}

// Triggered reports whether a spread crosses the alert threshold. The boundary
// itself counts as triggered.
func Triggered(spread, threshold float64) bool {
	return spread <= threshold
}

// Evaluate computes the differential for one pair whose two rates are known.
func Evaluate(pair model.ArbitragePair, longRate, shortRate, threshold float64) model.DifferentialResult {
	spread := Spread(longRate, shortRate)
	return model.DifferentialResult{
		Symbol:         pair.Symbol,
		LongRate:       longRate,
		ShortRate:      shortRate,
		Spread:         spread,
		AlertTriggered: Triggered(spread, threshold),
	}
}

// RateLookup resolves the funding rate (percent) of a symbol on one exchange.
type RateLookup interface {
	Rate(exchange, symbol string) (float64, bool)
}

type EvalStatus int

const (
	StatusOK EvalStatus = iota
	StatusRateUnavailable
)

func (s EvalStatus) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusRateUnavailable:
		return "rate_unavailable"
	default:
		return fmt.Sprintf("status(%d)", int(s))
	}
}

// Evaluation 单个套利组合的评估结果；Status 非 OK 时 Result 不可用于警示
type Evaluation struct {
	Pair    model.ArbitragePair
	Result  model.DifferentialResult
	Status  EvalStatus
	Missing []string // exchanges whose rate could not be resolved
}

func (e Evaluation) Usable() bool { return e.Status == StatusOK }

func (e Evaluation) Alert() bool { return e.Usable() && e.Result.AlertTriggered }

// Err returns ErrRateUnavailable (wrapped with the missing legs) for incomplete data.
func (e Evaluation) Err() error {
	if e.Usable() {
		return nil
	}
	return fmt.Errorf("%s %v: %w", e.Pair.Symbol, e.Missing, ErrRateUnavailable)
}

// EvaluatePairs evaluates every pair independently. Missing rates never turn into
// zeros; such pairs come back with StatusRateUnavailable.
func EvaluatePairs(pairs []model.ArbitragePair, rates RateLookup, threshold float64) []Evaluation {
	out := make([]Evaluation, 0, len(pairs))
	for _, pair := range pairs {
		longRate, okLong := rates.Rate(pair.LongExchange, pair.Symbol)
		shortRate, okShort := rates.Rate(pair.ShortExchange, pair.Symbol)

		ev := Evaluation{Pair: pair, Status: StatusOK}
		if !okLong {
			ev.Missing = append(ev.Missing, pair.LongExchange)
		}
		if !okShort {
			ev.Missing = append(ev.Missing, pair.ShortExchange)
		}
		if len(ev.Missing) > 0 {
			ev.Status = StatusRateUnavailable
			ev.Result = model.DifferentialResult{Symbol: pair.Symbol}
			out = append(out, ev)
			continue
		}

		ev.Result = Evaluate(pair, longRate, shortRate, threshold)
		out = append(out, ev)
	}
	return out
}

// Alerts filters the evaluations that triggered.
func Alerts(evals []Evaluation) []Evaluation {
	var out []Evaluation
	for _, ev := range evals {
		if ev.Alert() {
			out = append(out, ev)
		}
	}
	return out
}

// UsableResults maps symbol -> result for every evaluation with complete data.
func UsableResults(evals []Evaluation) map[string]model.DifferentialResult {
	out := make(map[string]model.DifferentialResult, len(evals))
	for _, ev := range evals {
		if ev.Usable() {
			out[ev.Pair.Symbol] = ev.Result
		}
	}
	return out
}
