package binance

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"frmon/internal/domain/model"
	"frmon/internal/infrastructure/exchange"

	"github.com/rs/zerolog/log"
)

const DefaultStreamURL = "wss://fstream.binance.com/ws/!markPrice@arr"

// MarkPriceEvent markPriceUpdate 事件（!markPrice@arr 推送数组）
type MarkPriceEvent struct {
	EventType       string `json:"e"`
	EventTime       int64  `json:"E"`
	Symbol          string `json:"s"`
	MarkPrice       string `json:"p"`
	FundingRate     string `json:"r"`
	NextFundingTime int64  `json:"T"`
}

// NormalizeMarkPriceEvent converts one stream event to a sample.
func NormalizeMarkPriceEvent(ev MarkPriceEvent, now time.Time) (*model.FundingRateSample, error) {
	rate, err := exchange.RateToPercent(ev.FundingRate)
	if err != nil {
		return nil, err
	}
	mark, _ := exchange.ParseNumber(ev.MarkPrice)
	return &model.FundingRateSample{
		Exchange:        model.ExchangeBinance,
		Symbol:          model.NormalizeSymbol(ev.Symbol),
		Rate:            rate,
		NextFundingTime: exchange.MillisToTime(ev.NextFundingTime),
		MarkPrice:       mark,
		FetchedAt:       now,
	}, nil
}

// MarkPriceFeed streams funding rates of every USDⓈ-M perpetual. Binance pushes
// the whole market every few seconds, so no per-symbol subscription is needed.
type MarkPriceFeed struct {
	wsURL string
}

func NewMarkPriceFeed(wsURL string) *MarkPriceFeed {
	wsURL = strings.TrimSpace(wsURL)
	if wsURL == "" {
		wsURL = DefaultStreamURL
	}
	return &MarkPriceFeed{wsURL: wsURL}
}

func (f *MarkPriceFeed) Name() string { return model.ExchangeBinance }

// Watch is a no-op: the array stream already carries every symbol.
func (f *MarkPriceFeed) Watch(...string) {}

// HandleMessage decodes one stream frame and emits every sample in it.
func (f *MarkPriceFeed) HandleMessage(b []byte, emit func(*model.FundingRateSample)) {
	var events []MarkPriceEvent
	if err := json.Unmarshal(b, &events); err != nil {
		log.Error().Str("feed", f.Name()).Err(err).Msg("json unmarshal failed")
		return
	}
	now := time.Now()
	for _, ev := range events {
		if ev.Symbol == "" || ev.FundingRate == "" {
			continue
		}
		s, err := NormalizeMarkPriceEvent(ev, now)
		if err != nil {
			log.Debug().Str("feed", f.Name()).Str("symbol", ev.Symbol).Err(err).Msg("skip event")
			continue
		}
		emit(s)
	}
}

// Run keeps the stream connected until ctx is done.
func (f *MarkPriceFeed) Run(ctx context.Context, emit func(*model.FundingRateSample)) {
	backoff := exchange.NewBackoff()
	for ctx.Err() == nil {
		log.Info().Str("feed", f.Name()).Str("url", f.wsURL).Msg("ws connecting")
		conn, err := exchange.DialWS(ctx, f.wsURL)
		if err != nil {
			log.Error().Str("feed", f.Name()).Err(err).Msg("ws dial failed")
			if !exchange.Sleep(ctx, backoff.Next()) {
				return
			}
			continue
		}
		backoff.Reset()
		log.Info().Str("feed", f.Name()).Msg("ws connected")

		err = exchange.ReadWithPing(ctx, conn, func(b []byte) { f.HandleMessage(b, emit) })
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		log.Warn().Str("feed", f.Name()).Err(err).Msg("ws disconnected, reconnecting")
		if !exchange.Sleep(ctx, backoff.Next()) {
			return
		}
	}
}
