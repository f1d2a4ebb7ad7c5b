package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"frmon/internal/application/port"
	"frmon/internal/domain/model"
	"frmon/internal/infrastructure/exchange"
)

// Ticker /v5/market/tickers (linear) 中用到的字段
type Ticker struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"markPrice"`
	FundingRate     string `json:"fundingRate"`
	NextFundingTime string `json:"nextFundingTime"`
}

type tickerList struct {
	Category string   `json:"category"`
	List     []Ticker `json:"list"`
}

// NormalizeTicker converts the raw fractional rate into a percent sample.
func NormalizeTicker(raw Ticker, fetchedAt time.Time) (*model.FundingRateSample, error) {
	rate, err := exchange.RateToPercent(raw.FundingRate)
	if err != nil {
		return nil, err
	}
	mark, _ := exchange.ParseNumber(raw.MarkPrice)
	return &model.FundingRateSample{
		Exchange:        model.ExchangeBybit,
		Symbol:          model.NormalizeSymbol(raw.Symbol),
		Rate:            rate,
		NextFundingTime: exchange.ParseMillis(raw.NextFundingTime),
		MarkPrice:       mark,
		FetchedAt:       fetchedAt,
	}, nil
}

// FundingRateClient Bybit 资金费率 REST 客户端
type FundingRateClient struct {
	*APIClient
}

func NewFundingRateClient(client *APIClient) *FundingRateClient {
	return &FundingRateClient{APIClient: client}
}

func (c *FundingRateClient) Name() string { return model.ExchangeBybit }

// GetFundingRate 当前资金费率（tickers 接口的 fundingRate 即本期费率）
func (c *FundingRateClient) GetFundingRate(ctx context.Context, symbol string) (*model.FundingRateSample, error) {
	params := url.Values{}
	params.Set("category", "linear")
	params.Set("symbol", model.NormalizeSymbol(symbol))

	result, err := c.publicRequest(ctx, "/v5/market/tickers", params)
	if err != nil {
		return nil, fmt.Errorf("bybit tickers %s: %w", symbol, err)
	}
	var list tickerList
	if err := json.Unmarshal(result, &list); err != nil {
		return nil, fmt.Errorf("bybit tickers %s: %w", symbol, err)
	}
	if len(list.List) == 0 || list.List[0].FundingRate == "" {
		return nil, fmt.Errorf("bybit tickers %s: no funding rate", symbol)
	}
	return NormalizeTicker(list.List[0], time.Now())
}

var _ port.RateSource = (*FundingRateClient)(nil)
