package model

import (
	"strings"
	"time"
)

// Exchange identifiers. The monitor only ever pairs these two venues.
const (
	ExchangeBinance = "BINANCE"
	ExchangeBybit   = "BYBIT"
)

// Side 持仓方向（统一后的方向，交易所原生的 Buy/Sell 等映射到这里）
type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

func (s Side) Valid() bool { return s == SideLong || s == SideShort }

// Position 单个交易所的持仓，每个检查周期重新拉取，不持久化
type Position struct {
	Exchange string  `json:"exchange"`
	Symbol   string  `json:"symbol"`
	Side     Side    `json:"side"`
	Size     float64 `json:"size"`

	EntryPrice    float64 `json:"entry_price,omitempty"`
	MarkPrice     float64 `json:"mark_price,omitempty"`
	UnrealizedPnL float64 `json:"unrealized_pnl,omitempty"`
}

// NormalizeSymbol upper-cases and trims an exchange-native symbol.
// Both venues quote USDT perpetuals as BTCUSDT, so no further mapping is needed.
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// FundingRateSample 资金费率样本，Rate 为百分比（0.01 表示 0.01%）
type FundingRateSample struct {
	Exchange        string    `json:"exchange"`
	Symbol          string    `json:"symbol"`
	Rate            float64   `json:"rate"`
	NextFundingTime time.Time `json:"next_funding_time"`
	MarkPrice       float64   `json:"mark_price,omitempty"`
	FetchedAt       time.Time `json:"fetched_at"`
}
