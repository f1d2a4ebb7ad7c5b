package bybit

import (
	"frmon/internal/domain/model"
	"frmon/internal/infrastructure/ratefeed"
)

// init() registers the ticker stream so svc can build it by exchange name
func init() {
	ratefeed.Register(model.ExchangeBybit, func(wsURL string) ratefeed.Feed {
		return NewTickerFeed(wsURL)
	})
}
