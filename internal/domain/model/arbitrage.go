package model

// ArbitragePair 跨交易所对冲组合：同一交易对、方向相反、数量接近
type ArbitragePair struct {
	Symbol         string  `json:"symbol"`
	LongExchange   string  `json:"long_exchange"`
	ShortExchange  string  `json:"short_exchange"`
	LongSize       float64 `json:"long_size"`
	ShortSize      float64 `json:"short_size"`
	SizeDifference float64 `json:"size_difference"`
}

// DifferentialResult 资金费率差值结果，Spread = ShortRate - LongRate
type DifferentialResult struct {
	Symbol         string  `json:"symbol"`
	LongRate       float64 `json:"long_rate"`
	ShortRate      float64 `json:"short_rate"`
	Spread         float64 `json:"spread"`
	AlertTriggered bool    `json:"alert_triggered"`
}
