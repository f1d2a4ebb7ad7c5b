package port

// Metrics receives monitor events. Implementations must be safe for concurrent use.
type Metrics interface {
	ObserveCheck(success bool)
	ObserveSpread(symbol string, spread float64)
	ObserveAlert(symbol string)
	ObserveRateUnavailable(symbol string)
	ObserveSourceError(exchange, kind string)
	ObserveReport(kind ReportKind, delivered bool)
}

type noopMetrics struct{}

// NoopMetrics discards every observation.
func NoopMetrics() Metrics { return noopMetrics{} }

func (noopMetrics) ObserveCheck(bool) {}
func (noopMetrics) ObserveSpread(string, float64) {}
func (noopMetrics) ObserveAlert(string) {}
func (noopMetrics) ObserveRateUnavailable(string) {}
func (noopMetrics) ObserveSourceError(string, string) {}
func (noopMetrics) ObserveReport(ReportKind, bool) {}
