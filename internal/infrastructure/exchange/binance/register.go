package binance

import (
	"frmon/internal/domain/model"
	"frmon/internal/infrastructure/ratefeed"
)

// init() registers the mark price stream so svc can build it by exchange name
func init() {
	ratefeed.Register(model.ExchangeBinance, func(wsURL string) ratefeed.Feed {
		return NewMarkPriceFeed(wsURL)
	})
}
