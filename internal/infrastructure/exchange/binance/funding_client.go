package binance

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

// PremiumIndex /fapi/v1/premiumIndex 响应
type PremiumIndex struct {
	Symbol          string `json:"symbol"`
	MarkPrice       string `json:"markPrice"`
	LastFundingRate string `json:"lastFundingRate"`
	NextFundingTime int64  `json:"nextFundingTime"`
	Time            int64  `json:"time"`
}

// NormalizePremiumIndex converts the raw fraction into a percent sample.
func NormalizePremiumIndex(raw PremiumIndex, fetchedAt time.Time) (*model.FundingRateSample, error) {
	rate, err := exchange.RateToPercent(raw.LastFundingRate)
	if err != nil {
		return nil, err
	}
	mark, _ := exchange.ParseNumber(raw.MarkPrice)
	return &model.FundingRateSample{
		Exchange:        model.ExchangeBinance,
		Symbol:          model.NormalizeSymbol(raw.Symbol),
		Rate:            rate,
		NextFundingTime: exchange.MillisToTime(raw.NextFundingTime),
		MarkPrice:       mark,
		FetchedAt:       fetchedAt,
	}, nil
}

// FundingRateClient Binance 资金费率 REST 客户端
type FundingRateClient struct {
	*APIClient
}

func NewFundingRateClient(client *APIClient) *FundingRateClient {
	return &FundingRateClient{APIClient: client}
}

func (c *FundingRateClient) Name() string { return model.ExchangeBinance }

// GetFundingRate 获取单个合约的当前资金费率
func (c *FundingRateClient) GetFundingRate(ctx context.Context, symbol string) (*model.FundingRateSample, error) {
	params := url.Values{}
	params.Set("symbol", model.NormalizeSymbol(symbol))
	body, err := c.publicRequest(ctx, "/fapi/v1/premiumIndex", params)
	if err != nil {
		return nil, fmt.Errorf("binance premiumIndex %s: %w", symbol, err)
	}

	var raw PremiumIndex
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("binance premiumIndex %s: %w", symbol, err)
	}
	if raw.Symbol == "" {
		return nil, fmt.Errorf("binance premiumIndex %s: empty response", symbol)
	}
	return NormalizePremiumIndex(raw, time.Now())
}

var _ port.RateSource = (*FundingRateClient)(nil)
