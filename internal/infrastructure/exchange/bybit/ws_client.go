package bybit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"frmon/internal/domain/model"
	"frmon/internal/infrastructure/exchange"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const DefaultStreamURL = "wss://stream.bybit.com/v5/public/linear"

type subReq struct {
	Op   string   `json:"op"`
	Args []string `json:"args"`
}

type tickerItem struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"markPrice"`
	FundingRate     string `json:"fundingRate"`
	NextFundingTime string `json:"nextFundingTime"`
}

// TickerDataList data can be object OR array
type TickerDataList []tickerItem

func (d *TickerDataList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*d = nil
		return nil
	}
	switch b[0] {
	case '[':
		var arr []tickerItem
		if err := json.Unmarshal(b, &arr); err != nil {
			return err
		}
		*d = arr
		return nil
	case '{':
		var one tickerItem
		if err := json.Unmarshal(b, &one); err != nil {
			return err
		}
		*d = TickerDataList{one}
		return nil
	default:
		return fmt.Errorf("unexpected data json: %s", string(b))
	}
}

type tickerMsg struct {
	Topic string         `json:"topic"`
	Type  string         `json:"type"`
	Ts    int64          `json:"ts"`
	Data  TickerDataList `json:"data"`

	Success *bool  `json:"success,omitempty"`
	RetMsg  string `json:"ret_msg,omitempty"`
	Op      string `json:"op,omitempty"`
}

func topic(symbol string) string { return "tickers." + model.NormalizeSymbol(symbol) }

// TickerFeed streams linear tickers for the symbols passed to Watch. Delta
// frames without a funding rate are ignored.
type TickerFeed struct {
	wsURL string

	mu     sync.Mutex
	topics map[string]struct{}
	conn   *websocket.Conn
}

func NewTickerFeed(wsURL string) *TickerFeed {
	wsURL = strings.TrimSpace(wsURL)
	if wsURL == "" {
		wsURL = DefaultStreamURL
	}
	return &TickerFeed{wsURL: wsURL, topics: make(map[string]struct{})}
}

func (f *TickerFeed) Name() string { return model.ExchangeBybit }

// Watch adds symbols to the subscription set and subscribes them right away
// when connected.
func (f *TickerFeed) Watch(symbols ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var added []string
	for _, s := range symbols {
		t := topic(s)
		if _, ok := f.topics[t]; ok || t == "tickers." {
			continue
		}
		f.topics[t] = struct{}{}
		added = append(added, t)
	}
	if len(added) == 0 || f.conn == nil {
		return
	}
	if err := f.conn.WriteJSON(subReq{Op: "subscribe", Args: added}); err != nil {
		log.Warn().Str("feed", f.Name()).Err(err).Msg("subscribe failed, retried on reconnect")
	}
}

func (f *TickerFeed) currentTopics() []string {
	out := make([]string, 0, len(f.topics))
	for t := range f.topics {
		out = append(out, t)
	}
	return out
}

// HandleMessage decodes one frame and emits the samples that carry a rate.
func (f *TickerFeed) HandleMessage(b []byte, emit func(*model.FundingRateSample)) {
	var msg tickerMsg
	if err := json.Unmarshal(b, &msg); err != nil {
		log.Error().Str("feed", f.Name()).Err(err).Msg("json unmarshal failed")
		return
	}
	// ack
	if msg.Success != nil {
		if !*msg.Success {
			log.Error().Str("feed", f.Name()).Str("ret_msg", msg.RetMsg).Msg("subscribe not success")
		}
		return
	}

	now := time.Now()
	for _, d := range msg.Data {
		if d.FundingRate == "" {
			continue
		}
		if d.Symbol == "" {
			d.Symbol = strings.TrimPrefix(msg.Topic, "tickers.")
		}
		s, err := NormalizeTicker(Ticker(d), now)
		if err != nil {
			log.Debug().Str("feed", f.Name()).Str("symbol", d.Symbol).Err(err).Msg("skip ticker")
			continue
		}
		emit(s)
	}
}

// Run keeps the stream connected until ctx is done, resubscribing every watched
// topic after each reconnect.
func (f *TickerFeed) Run(ctx context.Context, emit func(*model.FundingRateSample)) {
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

		f.mu.Lock()
		topics := f.currentTopics()
		if len(topics) > 0 {
			err = conn.WriteJSON(subReq{Op: "subscribe", Args: topics})
		}
		if err == nil {
			f.conn = conn
		}
		f.mu.Unlock()
		if err != nil {
			_ = conn.Close()
			log.Error().Str("feed", f.Name()).Err(err).Msg("subscribe failed")
			if !exchange.Sleep(ctx, backoff.Next()) {
				return
			}
			continue
		}

		backoff.Reset()
		log.Info().Str("feed", f.Name()).Int("topics", len(topics)).Msg("ws connected & subscribed")

		err = exchange.ReadWithPing(ctx, conn, func(b []byte) { f.HandleMessage(b, emit) })

		f.mu.Lock()
		f.conn = nil
		f.mu.Unlock()
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
