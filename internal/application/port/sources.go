package port

import (
	"context"

	"frmon/internal/domain/model"
)

// PositionSource 单个交易所的持仓来源
type PositionSource interface {
	Name() string
	GetPositions(ctx context.Context) ([]model.Position, error)
}

// RateSource 单个交易所的资金费率来源
type RateSource interface {
	Name() string
	GetFundingRate(ctx context.Context, symbol string) (*model.FundingRateSample, error)
}

// Pinger is implemented by collaborators that expose a connectivity check.
type Pinger interface {
	Ping(ctx context.Context) error
}
