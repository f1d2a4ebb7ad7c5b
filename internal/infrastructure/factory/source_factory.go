package factory

import (
	"context"
	"fmt"
	"time"

	"frmon/internal/application/port"
	"frmon/internal/domain/model"
	"frmon/internal/infrastructure/config"
	"frmon/internal/infrastructure/exchange/binance"
	"frmon/internal/infrastructure/exchange/bybit"
	"frmon/internal/infrastructure/ratefeed"

	"github.com/rs/zerolog/log"
)

// Sources 监控所需的持仓源与费率源，顺序固定为 Binance, Bybit
type Sources struct {
	Positions []port.PositionSource
	Rates     []port.RateSource

	streams []*ratefeed.Source
}

// NewSources builds the position and rate sources. With the stream mode the
// rate sources are backed by websocket feeds and started on ctx.
func NewSources(ctx context.Context, cfg *config.Config, clients *APIClients) (*Sources, error) {
	s := &Sources{
		Positions: []port.PositionSource{
			binance.NewPositionClient(clients.Binance),
			bybit.NewPositionClient(clients.Bybit),
		},
	}
	rest := []port.RateSource{
		binance.NewFundingRateClient(clients.Binance),
		bybit.NewFundingRateClient(clients.Bybit),
	}

	switch cfg.App.RateSource {
	case config.RateSourceStream:
		cache := ratefeed.NewCache()
		wsURLs := map[string]string{
			model.ExchangeBinance: cfg.Exchange.Binance.WsURL,
			model.ExchangeBybit:   cfg.Exchange.Bybit.WsURL,
		}
		for _, fallback := range rest {
			feed, err := newFeed(fallback.Name(), wsURLs[fallback.Name()])
			if err != nil {
				return nil, err
			}
			src := ratefeed.NewSource(feed, cache, fallback, cfg.StreamMaxAge())
			src.Start(ctx)
			s.streams = append(s.streams, src)
			s.Rates = append(s.Rates, src)
		}
		log.Info().Dur("max_age", cfg.StreamMaxAge()).Msg("✓ funding rate streams started")
	default:
		s.Rates = rest
	}
	return s, nil
}

func newFeed(exchangeName, wsURL string) (ratefeed.Feed, error) {
	factory, ok := ratefeed.Get(exchangeName)
	if !ok {
		return nil, fmt.Errorf("no rate feed registered for %s", exchangeName)
	}
	return factory(wsURL), nil
}

// Close stops the stream-backed sources.
func (s *Sources) Close() error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, src := range s.streams {
			_ = src.Close()
		}
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("rate streams did not stop in time")
	}
	return nil
}
