package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"frmon/internal/application/port"
	"frmon/internal/domain/model"
	"frmon/internal/infrastructure/exchange"

	"github.com/rs/zerolog/log"
)

// PositionItem /v5/position/list 的单条记录
type PositionItem struct {
	Symbol        string `json:"symbol"`
	Side          string `json:"side"`
	Size          string `json:"size"`
	AvgPrice      string `json:"avgPrice"`
	MarkPrice     string `json:"markPrice"`
	UnrealisedPnl string `json:"unrealisedPnl"`
	PositionIdx   int    `json:"positionIdx"`
}

type positionList struct {
	Category       string         `json:"category"`
	List           []PositionItem `json:"list"`
	NextPageCursor string         `json:"nextPageCursor"`
}

// NormalizeSide maps Bybit's Buy/Sell to LONG/SHORT. Empty side (flat
// position in one-way mode) and unknown values report ok=false.
func NormalizeSide(side string) (model.Side, bool) {
	switch side {
	case "Buy":
		return model.SideLong, true
	case "Sell":
		return model.SideShort, true
	default:
		return "", false
	}
}

// NormalizePosition 原始记录 -> Position；空仓返回 ok=false
func NormalizePosition(raw PositionItem) (model.Position, bool, error) {
	size, err := exchange.ParseNumber(raw.Size)
	if err != nil {
		return model.Position{}, false, err
	}
	side, ok := NormalizeSide(raw.Side)
	if !ok || size <= 0 {
		return model.Position{}, false, nil
	}
	entry, _ := exchange.ParseNumber(raw.AvgPrice)
	mark, _ := exchange.ParseNumber(raw.MarkPrice)
	upnl, _ := exchange.ParseNumber(raw.UnrealisedPnl)
	return model.Position{
		Exchange:      model.ExchangeBybit,
		Symbol:        model.NormalizeSymbol(raw.Symbol),
		Side:          side,
		Size:          size,
		EntryPrice:    entry,
		MarkPrice:     mark,
		UnrealizedPnL: upnl,
	}, true, nil
}

// PositionClient Bybit USDT 永续持仓
type PositionClient struct {
	*APIClient
}

func NewPositionClient(client *APIClient) *PositionClient {
	return &PositionClient{APIClient: client}
}

func (c *PositionClient) Name() string { return model.ExchangeBybit }

// GetPositions GET /v5/position/list?category=linear&settleCoin=USDT, following
// nextPageCursor until exhausted.
func (c *PositionClient) GetPositions(ctx context.Context) ([]model.Position, error) {
	var out []model.Position
	cursor := ""
	for page := 0; page < 20; page++ {
		params := url.Values{}
		params.Set("category", "linear")
		params.Set("settleCoin", "USDT")
		params.Set("limit", "200")
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		result, err := c.signedQueryRequest(ctx, http.MethodGet, "/v5/position/list", params)
		if err != nil {
			return nil, fmt.Errorf("failed to get bybit positions: %w", err)
		}
		var list positionList
		if err := json.Unmarshal(result, &list); err != nil {
			return nil, fmt.Errorf("failed to unmarshal bybit positions: %w", err)
		}

		for _, raw := range list.List {
			p, ok, err := NormalizePosition(raw)
			if err != nil {
				log.Warn().Err(err).Str("exchange", c.Name()).Str("symbol", raw.Symbol).Msg("skip malformed position")
				continue
			}
			if ok {
				out = append(out, p)
			}
		}
		if list.NextPageCursor == "" || list.NextPageCursor == cursor {
			break
		}
		cursor = list.NextPageCursor
	}
	return out, nil
}

var (
	_ port.PositionSource = (*PositionClient)(nil)
	_ port.Pinger         = (*PositionClient)(nil)
)
