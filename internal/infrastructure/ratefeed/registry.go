package ratefeed

import (
	"context"

	"frmon/internal/domain/model"

	"github.com/rs/zerolog/log"
)

// Feed 交易所资金费率推送
type Feed interface {
	Name() string
	// Watch asks the feed to deliver the given symbols. Feeds that push the
	// whole market ignore it.
	Watch(symbols ...string)
	// Run blocks until ctx is done, reconnecting as needed.
	Run(ctx context.Context, emit func(*model.FundingRateSample))
}

// Factory builds a feed from its websocket URL.
type Factory func(wsURL string) Feed

// registry maps exchange names to their respective feed factories
var registry = make(map[string]Factory)

// Register 由各交易所包的 init() 调用
func Register(exchangeName string, factory Factory) {
	if factory == nil {
		log.Warn().Str("exchange", exchangeName).Msg("invalid rate feed factory")
		return
	}
	if _, exists := registry[exchangeName]; exists {
		log.Warn().Str("exchange", exchangeName).Msg("rate feed factory already registered, overwriting")
	}
	registry[exchangeName] = factory
}

// Get 获取已注册的 feed factory
func Get(exchangeName string) (Factory, bool) {
	factory, ok := registry[exchangeName]
	return factory, ok
}
