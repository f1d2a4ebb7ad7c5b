package monitor

import (
	"context"
	"fmt"

	"frmon/internal/application/port"
	"frmon/internal/domain/model"

	"golang.org/x/sync/errgroup"
)

// RateBook exchange -> symbol -> 资金费率样本
type RateBook map[string]map[string]*model.FundingRateSample

func (b RateBook) Put(s *model.FundingRateSample) {
	if s == nil {
		return
	}
	m := b[s.Exchange]
	if m == nil {
		m = make(map[string]*model.FundingRateSample)
		b[s.Exchange] = m
	}
	m[s.Symbol] = s
}

func (b RateBook) Sample(exchange, symbol string) (*model.FundingRateSample, bool) {
	s, ok := b[exchange][symbol]
	return s, ok && s != nil
}

// Rate implements service.RateLookup.
func (b RateBook) Rate(exchange, symbol string) (float64, bool) {
	s, ok := b.Sample(exchange, symbol)
	if !ok {
		return 0, false
	}
	return s.Rate, true
}

// SourceError 单个来源（或单个交易对）的失败
type SourceError struct {
	Exchange string
	Symbol   string
	Err      error
}

func (e *SourceError) Error() string {
	if e.Symbol == "" {
		return fmt.Sprintf("%s: %v", e.Exchange, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Exchange, e.Symbol, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// PositionFetch 一个交易所的持仓抓取结果；Err 非空时 Positions 为空
type PositionFetch struct {
	Exchange  string
	Positions []model.Position
	Err       error
}

// FetchPositions queries every source concurrently. A failing source never
// cancels the others.
func FetchPositions(ctx context.Context, sources []port.PositionSource) []PositionFetch {
	out := make([]PositionFetch, len(sources))
	var g errgroup.Group
	for i, src := range sources {
		g.Go(func() error {
			positions, err := src.GetPositions(ctx)
			out[i] = PositionFetch{Exchange: src.Name(), Positions: positions, Err: err}
			if err != nil {
				out[i].Positions = nil
			}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// FetchRates fetches the funding rate of each symbol on each source. At most
// limit requests are in flight; limit <= 0 means one request per source at a time.
func FetchRates(ctx context.Context, sources []port.RateSource, symbols []string, limit int) (RateBook, []*SourceError) {
	if limit <= 0 {
		limit = len(sources)
	}
	type result struct {
		sample *model.FundingRateSample
		err    *SourceError
	}
	results := make([]result, len(sources)*len(symbols))

	var g errgroup.Group
	g.SetLimit(max(limit, 1))
	for i, src := range sources {
		for j, sym := range symbols {
			slot := i*len(symbols) + j
			g.Go(func() error {
				if err := ctx.Err(); err != nil {
					results[slot].err = &SourceError{Exchange: src.Name(), Symbol: sym, Err: err}
					return nil
				}
				s, err := src.GetFundingRate(ctx, sym)
				if err == nil && s == nil {
					err = fmt.Errorf("empty response")
				}
				if err != nil {
					results[slot].err = &SourceError{Exchange: src.Name(), Symbol: sym, Err: err}
					return nil
				}
				results[slot].sample = s
				return nil
			})
		}
	}
	_ = g.Wait()

	book := make(RateBook, len(sources))
	var errs []*SourceError
	for _, r := range results {
		if r.err != nil {
			errs = append(errs, r.err)
			continue
		}
		book.Put(r.sample)
	}
	return book, errs
}
