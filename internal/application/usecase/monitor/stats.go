package monitor

import (
	"time"

	"frmon/internal/domain/model"
)

// SymbolStats 单个交易对在当前汇总窗口内的统计
type SymbolStats struct {
	Symbol        string
	CheckCount    int
	AlertCount    int
	Spreads       []float64
	CurrentSpread float64

	lastAlertCheck int
}

// AlertRate 警示率（百分比），没有检查时为 0
func (s *SymbolStats) AlertRate() float64 {
	if s.CheckCount == 0 {
		return 0
	}
	return float64(s.AlertCount) / float64(s.CheckCount) * 100
}

func (s *SymbolStats) AvgSpread() float64 {
	if len(s.Spreads) == 0 {
		return 0
	}
	var sum float64
	for _, v := range s.Spreads {
		sum += v
	}
	return sum / float64(len(s.Spreads))
}

func (s *SymbolStats) MinSpread() float64 {
	if len(s.Spreads) == 0 {
		return 0
	}
	m := s.Spreads[0]
	for _, v := range s.Spreads[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func (s *SymbolStats) MaxSpread() float64 {
	if len(s.Spreads) == 0 {
		return 0
	}
	m := s.Spreads[0]
	for _, v := range s.Spreads[1:] {
		if v > m {
			m = v
		}
	}
	return m
}

// CheckRecord 单次检查的记录
type CheckRecord struct {
	At      time.Time
	Success bool
	Pairs   int
}

type window struct {
	start        time.Time
	totalChecks  int
	failedChecks int
	history      []CheckRecord
	symbols      map[string]*SymbolStats
	order        []string
}

func newWindow(start time.Time) *window {
	return &window{start: start, symbols: make(map[string]*SymbolStats)}
}

func (w *window) symbol(sym string) *SymbolStats {
	st := w.symbols[sym]
	if st == nil {
		st = &SymbolStats{Symbol: sym, lastAlertCheck: -1}
		w.symbols[sym] = st
		w.order = append(w.order, sym)
	}
	return st
}

// Aggregator accumulates check outcomes over one reporting window.
//
// It is a plain accumulator and is not safe for concurrent use; the monitor
// serializes every call.
type Aggregator struct {
	now func() time.Time
	w   *window
}

func NewAggregator(now func() time.Time) *Aggregator {
	if now == nil {
		now = time.Now
	}
	return &Aggregator{now: now, w: newWindow(now())}
}

// RecordCheck 记录一次检查结果；results 中只包含数据完整的交易对
func (a *Aggregator) RecordCheck(success bool, pairs []model.ArbitragePair, results map[string]model.DifferentialResult) {
	w := a.w
	w.totalChecks++
	if !success {
		w.failedChecks++
	}
	w.history = append(w.history, CheckRecord{At: a.now(), Success: success, Pairs: len(pairs)})

	for _, pair := range pairs {
		res, ok := results[pair.Symbol]
		if !ok {
			continue
		}
		st := w.symbol(pair.Symbol)
		st.CheckCount++
		st.Spreads = append(st.Spreads, res.Spread)
		st.CurrentSpread = res.Spread
	}
}

// RecordAlert 记录警示触发。同一检查周期内对同一交易对只计一次。
func (a *Aggregator) RecordAlert(symbol string) {
	st := a.w.symbol(symbol)
	if st.lastAlertCheck == a.w.totalChecks {
		return
	}
	st.lastAlertCheck = a.w.totalChecks
	st.AlertCount++
}

// Reset starts a new window. Call it only after the summary was delivered.
func (a *Aggregator) Reset() {
	a.w = newWindow(a.now())
}

// SymbolSummary 交易对统计快照
type SymbolSummary struct {
	Symbol        string
	CheckCount    int
	AlertCount    int
	CurrentSpread float64
	AvgSpread     float64
	MinSpread     float64
	MaxSpread     float64
	AlertRate     float64
}

// WindowSummary is a read-only snapshot of the current window.
type WindowSummary struct {
	Start            time.Time
	End              time.Time
	TotalChecks      int
	FailedChecks     int
	SuccessfulChecks int
	NoPairChecks     int
	TotalAlerts      int
	Symbols          []SymbolSummary
}

// AlertRate 整体警示率 = 总警示次数 / 成功检查次数
func (s WindowSummary) AlertRate() float64 {
	if s.SuccessfulChecks == 0 {
		return 0
	}
	return float64(s.TotalAlerts) / float64(s.SuccessfulChecks) * 100
}

func (a *Aggregator) Summary() WindowSummary {
	w := a.w
	sum := WindowSummary{
		Start:        w.start,
		End:          a.now(),
		TotalChecks:  w.totalChecks,
		FailedChecks: w.failedChecks,
		Symbols:      make([]SymbolSummary, 0, len(w.order)),
	}
	sum.SuccessfulChecks = sum.TotalChecks - sum.FailedChecks
	for _, rec := range w.history {
		if rec.Pairs == 0 {
			sum.NoPairChecks++
		}
	}
	for _, sym := range w.order {
		st := w.symbols[sym]
		sum.TotalAlerts += st.AlertCount
		sum.Symbols = append(sum.Symbols, SymbolSummary{
			Symbol:        st.Symbol,
			CheckCount:    st.CheckCount,
			AlertCount:    st.AlertCount,
			CurrentSpread: st.CurrentSpread,
			AvgSpread:     st.AvgSpread(),
			MinSpread:     st.MinSpread(),
			MaxSpread:     st.MaxSpread(),
			AlertRate:     st.AlertRate(),
		})
	}
	return sum
}

// Symbol returns a copy of one symbol's statistics.
func (a *Aggregator) Symbol(symbol string) (SymbolStats, bool) {
	st, ok := a.w.symbols[symbol]
	if !ok {
		return SymbolStats{}, false
	}
	cp := *st
	cp.Spreads = append([]float64(nil), st.Spreads...)
	return cp, true
}

// Symbols lists the symbols seen in this window in first-seen order.
func (a *Aggregator) Symbols() []string {
	return append([]string(nil), a.w.order...)
}
