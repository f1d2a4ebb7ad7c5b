package factory

import (
	"fmt"

	"frmon/internal/domain/model"
	"frmon/internal/infrastructure/config"
	"frmon/internal/infrastructure/exchange"
	"frmon/internal/infrastructure/exchange/binance"
	"frmon/internal/infrastructure/exchange/bybit"

	"github.com/rs/zerolog/log"
)

// APIClients 两个交易所共享的 REST 客户端
// 职责: 只管理客户端的初始化（凭证、限流、地址）
type APIClients struct {
	Binance *binance.APIClient
	Bybit   *bybit.APIClient
}

// NewAPIClients 按配置初始化 Binance 与 Bybit 客户端
func NewAPIClients(cfg *config.Config) (*APIClients, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	bn := cfg.Exchange.Binance
	bb := cfg.Exchange.Bybit
	if !bn.HasCredentials() {
		return nil, fmt.Errorf("%s: %w", model.ExchangeBinance, exchange.ErrNoCredentials)
	}
	if !bb.HasCredentials() {
		return nil, fmt.Errorf("%s: %w", model.ExchangeBybit, exchange.ErrNoCredentials)
	}

	clients := &APIClients{
		Binance: binance.NewAPIClient(binance.NewCredentials(bn.APIKey, bn.APISecret), binance.Options{
			BaseURL:      bn.RestURL,
			RecvWindowMs: bn.RecvWindowMs,
			Limiter:      exchange.NewLimiter(bn.RequestsPerSecond, bn.Burst),
		}),
		Bybit: bybit.NewAPIClient(bybit.NewCredentials(bb.APIKey, bb.APISecret), bybit.Options{
			BaseURL:      bb.RestURL,
			RecvWindowMs: bb.RecvWindowMs,
			Limiter:      exchange.NewLimiter(bb.RequestsPerSecond, bb.Burst),
		}),
	}
	log.Info().
		Str("binance", bn.RestURL).
		Str("bybit", bb.RestURL).
		Msg("✓ exchange clients initialized")
	return clients, nil
}
