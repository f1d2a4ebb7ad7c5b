package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"

	"frmon/internal/application/port"
	"frmon/internal/domain/model"
	"frmon/internal/infrastructure/exchange"

	"github.com/rs/zerolog/log"
)

// PositionRisk /fapi/v2/positionRisk 的单条记录
type PositionRisk struct {
	Symbol           string `json:"symbol"`
	PositionAmt      string `json:"positionAmt"`
	EntryPrice       string `json:"entryPrice"`
	MarkPrice        string `json:"markPrice"`
	UnRealizedProfit string `json:"unRealizedProfit"`
	PositionSide     string `json:"positionSide"`
}

// NormalizePosition maps a raw record to a Position. The sign of positionAmt
// gives the side; flat records report ok=false.
func NormalizePosition(raw PositionRisk) (model.Position, bool, error) {
	amt, err := exchange.ParseNumber(raw.PositionAmt)
	if err != nil {
		return model.Position{}, false, err
	}
	if amt == 0 {
		return model.Position{}, false, nil
	}
	side := model.SideLong
	if amt < 0 {
		side = model.SideShort
	}
	entry, _ := exchange.ParseNumber(raw.EntryPrice)
	mark, _ := exchange.ParseNumber(raw.MarkPrice)
	upnl, _ := exchange.ParseNumber(raw.UnRealizedProfit)
	return model.Position{
		Exchange:      model.ExchangeBinance,
		Symbol:        model.NormalizeSymbol(raw.Symbol),
		Side:          side,
		Size:          math.Abs(amt),
		EntryPrice:    entry,
		MarkPrice:     mark,
		UnrealizedPnL: upnl,
	}, true, nil
}

// PositionClient Binance U 本位合约持仓
type PositionClient struct {
	*APIClient
}

func NewPositionClient(client *APIClient) *PositionClient {
	return &PositionClient{APIClient: client}
}

func (c *PositionClient) Name() string { return model.ExchangeBinance }

// GetPositions GET /fapi/v2/positionRisk, only non-zero positions.
func (c *PositionClient) GetPositions(ctx context.Context) ([]model.Position, error) {
	body, err := c.signedRequest(ctx, http.MethodGet, "/fapi/v2/positionRisk", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get binance positions: %w", err)
	}

	var raws []PositionRisk
	if err := json.Unmarshal(body, &raws); err != nil {
		return nil, fmt.Errorf("failed to unmarshal binance positions: %w", err)
	}

	out := make([]model.Position, 0, len(raws))
	for _, raw := range raws {
		p, ok, err := NormalizePosition(raw)
		if err != nil {
			log.Warn().Err(err).Str("exchange", c.Name()).Str("symbol", raw.Symbol).Msg("skip malformed position")
			continue
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}

var (
	_ port.PositionSource = (*PositionClient)(nil)
	_ port.Pinger         = (*PositionClient)(nil)
)
