package ratefeed

import (
	"context"
	"sync"
	"time"

	"frmon/internal/application/port"
	"frmon/internal/domain/model"

	"github.com/rs/zerolog/log"
)

// Source answers funding-rate queries from the stream cache and falls back to
// REST when the cached sample is missing or stale.
type Source struct {
	feed     Feed
	cache    *Cache
	fallback port.RateSource
	maxAge   time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSource(feed Feed, cache *Cache, fallback port.RateSource, maxAge time.Duration) *Source {
	if cache == nil {
		cache = NewCache()
	}
	return &Source{feed: feed, cache: cache, fallback: fallback, maxAge: maxAge}
}

func (s *Source) Name() string { return s.fallback.Name() }

// Start runs the feed in the background. Calling it twice is a no-op.
func (s *Source) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		s.feed.Run(ctx, s.cache.Put)
	}()
}

// Close stops the feed and waits for it to exit.
func (s *Source) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

func (s *Source) GetFundingRate(ctx context.Context, symbol string) (*model.FundingRateSample, error) {
	symbol = model.NormalizeSymbol(symbol)
	s.feed.Watch(symbol)

	if sample, ok := s.cache.Get(s.Name(), symbol, s.maxAge); ok {
		return sample, nil
	}

	log.Debug().Str("exchange", s.Name()).Str("symbol", symbol).Msg("stream sample missing or stale, using rest")
	sample, err := s.fallback.GetFundingRate(ctx, symbol)
	if err != nil {
		return nil, err
	}
	s.cache.Put(sample)
	return sample, nil
}

// Ping delegates to the REST fallback when it supports it.
func (s *Source) Ping(ctx context.Context) error {
	if p, ok := s.fallback.(port.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

var (
	_ port.RateSource = (*Source)(nil)
	_ port.Pinger     = (*Source)(nil)
)
