package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"frmon/internal/application/port"
	"frmon/internal/domain/model"
	dsvc "frmon/internal/domain/service"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	DefaultErrorBackoff    = 60 * time.Second
	DefaultShutdownTimeout = 10 * time.Second
)

// ErrCycleFailed is returned by RunCheck when a position source failed or the
// alert report could not be delivered.
var ErrCycleFailed = errors.New("check cycle failed")

type ServiceDeps struct {
	PositionSources []port.PositionSource // exactly two, one per exchange
	RateSources     []port.RateSource
	Notifier        port.Notifier
	Metrics         port.Metrics

	CheckInterval   time.Duration
	SummaryInterval time.Duration
	ErrorBackoff    time.Duration // wait after a failed cycle
	SummaryRetry    time.Duration // wait after a failed summary delivery; 0 = SummaryInterval
	ShutdownTimeout time.Duration

	Threshold       float64
	RateConcurrency int

	Now func() time.Time
	// Sleep waits between loop iterations and reports false once ctx is done.
	Sleep func(ctx context.Context, d time.Duration) bool
}

// CycleReport 单次检查周期的结果
type CycleReport struct {
	ID          string
	StartedAt   time.Time
	Positions   []PositionFetch
	Pairs       []model.ArbitragePair
	Evaluations []dsvc.Evaluation
	Alerts      []dsvc.Evaluation
	RateErrors  []*SourceError
	AlertErr    error
}

// Failed reports whether the cycle counts as a failed check.
func (r *CycleReport) Failed() bool {
	return r.Err() != nil
}

// Err joins the errors that make a cycle fail. Rate errors only degrade the
// affected pairs and are not included.
func (r *CycleReport) Err() error {
	var errs []error
	for _, pf := range r.Positions {
		if pf.Err != nil {
			errs = append(errs, &SourceError{Exchange: pf.Exchange, Err: pf.Err})
		}
	}
	if r.AlertErr != nil {
		errs = append(errs, fmt.Errorf("alert delivery: %w", r.AlertErr))
	}
	return errors.Join(errs...)
}

type Service struct {
	deps ServiceDeps
	fmt  *Formatter

	mu  sync.Mutex
	agg *Aggregator

	// 上一次检查失败时不重复发送错误通知
	lastFailed bool
}

func NewService(deps ServiceDeps) (*Service, error) {
	if len(deps.PositionSources) != 2 {
		return nil, fmt.Errorf("monitor needs exactly 2 position sources, got %d", len(deps.PositionSources))
	}
	if len(deps.RateSources) != 2 {
		return nil, fmt.Errorf("monitor needs exactly 2 rate sources, got %d", len(deps.RateSources))
	}
	if deps.Notifier == nil {
		return nil, errors.New("monitor needs a notifier")
	}
	if deps.CheckInterval <= 0 || deps.SummaryInterval <= 0 {
		return nil, errors.New("check and summary intervals must be positive")
	}
	if deps.ErrorBackoff <= 0 {
		deps.ErrorBackoff = DefaultErrorBackoff
	}
	if deps.SummaryRetry <= 0 {
		deps.SummaryRetry = deps.SummaryInterval
	}
	if deps.ShutdownTimeout <= 0 {
		deps.ShutdownTimeout = DefaultShutdownTimeout
	}
	if deps.Metrics == nil {
		deps.Metrics = port.NoopMetrics()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Sleep == nil {
		deps.Sleep = sleepCtx
	}
	return &Service{
		deps: deps,
		fmt:  NewFormatter(deps.Threshold),
		agg:  NewAggregator(deps.Now),
	}, nil
}

func (s *Service) send(ctx context.Context, kind port.ReportKind, text string) error {
	err := s.deps.Notifier.SendReport(ctx, port.Report{ID: uuid.NewString(), Kind: kind, Text: text, CreatedAt: s.deps.Now()})
	s.deps.Metrics.ObserveReport(kind, err == nil)
	if err != nil {
		log.Error().Err(err).Str("kind", string(kind)).Msg("report delivery failed")
	}
	return err
}

// RunCheck 执行一次完整的检查周期
func (s *Service) RunCheck(ctx context.Context) (*CycleReport, error) {
	rep := &CycleReport{ID: uuid.NewString(), StartedAt: s.deps.Now()}
	logger := log.With().Str("cycle", rep.ID).Logger()

	// 1. 持仓（两个交易所并发，互不影响）
	rep.Positions = FetchPositions(ctx, s.deps.PositionSources)
	lists := make([][]model.Position, len(rep.Positions))
	for i, pf := range rep.Positions {
		if pf.Err != nil {
			logger.Warn().Err(pf.Err).Str("exchange", pf.Exchange).Msg("position fetch failed, treating as empty")
			s.deps.Metrics.ObserveSourceError(pf.Exchange, "positions")
			continue
		}
		lists[i] = pf.Positions
		logger.Debug().Str("exchange", pf.Exchange).Int("positions", len(pf.Positions)).Msg("positions fetched")
	}

	// 2. 匹配
	rep.Pairs = dsvc.MatchPairs(lists[0], lists[1])
	logger.Info().Int("pairs", len(rep.Pairs)).Strs("symbols", dsvc.PairSymbols(rep.Pairs)).Msg("hedges matched")

	// 3. 只查询已匹配交易对的资金费率
	book := RateBook{}
	if len(rep.Pairs) > 0 {
		book, rep.RateErrors = FetchRates(ctx, s.deps.RateSources, dsvc.PairSymbols(rep.Pairs), s.deps.RateConcurrency)
		for _, e := range rep.RateErrors {
			logger.Warn().Err(e.Err).Str("exchange", e.Exchange).Str("symbol", e.Symbol).Msg("funding rate fetch failed")
			s.deps.Metrics.ObserveSourceError(e.Exchange, "rates")
		}
	}

	// 4. 差值
	rep.Evaluations = dsvc.EvaluatePairs(rep.Pairs, book, s.deps.Threshold)
	rep.Alerts = dsvc.Alerts(rep.Evaluations)
	for _, ev := range rep.Evaluations {
		if !ev.Usable() {
			logger.Warn().Str("symbol", ev.Pair.Symbol).Strs("missing", ev.Missing).Msg("rate unavailable, pair skipped")
			s.deps.Metrics.ObserveRateUnavailable(ev.Pair.Symbol)
			continue
		}
		s.deps.Metrics.ObserveSpread(ev.Pair.Symbol, ev.Result.Spread)
		logger.Debug().
			Str("symbol", ev.Pair.Symbol).
			Float64("long", ev.Result.LongRate).
			Float64("short", ev.Result.ShortRate).
			Float64("spread", ev.Result.Spread).
			Bool("alert", ev.Result.AlertTriggered).
			Msg("differential")
	}

	// 停机过程中被打断的周期不计入统计
	if err := ctx.Err(); err != nil {
		return rep, err
	}

	// 5. 警示
	if len(rep.Alerts) > 0 {
		rep.AlertErr = s.send(ctx, port.ReportAlert, s.fmt.RenderAlert(s.deps.Now(), rep.Alerts))
		if rep.AlertErr == nil {
			logger.Info().Int("alerts", len(rep.Alerts)).Msg("alert report sent")
		}
	} else {
		logger.Info().Msg("no spread crossed the threshold")
	}

	err := rep.Err()
	s.mu.Lock()
	s.agg.RecordCheck(err == nil, rep.Pairs, dsvc.UsableResults(rep.Evaluations))
	if rep.AlertErr == nil {
		for _, ev := range rep.Alerts {
			s.agg.RecordAlert(ev.Pair.Symbol)
			s.deps.Metrics.ObserveAlert(ev.Pair.Symbol)
		}
	}
	notifyErr := err != nil && !s.lastFailed
	s.lastFailed = err != nil
	s.mu.Unlock()

	s.deps.Metrics.ObserveCheck(err == nil)
	if err != nil {
		logger.Error().Err(err).Msg("check failed")
		if notifyErr {
			_ = s.send(ctx, port.ReportError, s.fmt.RenderError(s.deps.Now(), err))
		}
		return rep, fmt.Errorf("%w: %w", ErrCycleFailed, err)
	}
	return rep, nil
}

// FlushSummary delivers the window summary and starts a new window. The window
// is kept when delivery fails, so the next attempt carries cumulative data.
func (s *Service) FlushSummary(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sum := s.agg.Summary()
	if err := s.send(ctx, port.ReportSummary, s.fmt.RenderSummary(sum)); err != nil {
		return fmt.Errorf("summary not delivered, window kept: %w", err)
	}
	s.agg.Reset()
	log.Info().
		Int("checks", sum.TotalChecks).
		Int("failed", sum.FailedChecks).
		Int("alerts", sum.TotalAlerts).
		Msg("summary sent, window reset")
	return nil
}

// Summary returns a snapshot of the current window.
func (s *Service) Summary() WindowSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.agg.Summary()
}

// CheckConnectivity pings every collaborator that supports it.
func (s *Service) CheckConnectivity(ctx context.Context) map[string]error {
	out := make(map[string]error)
	for _, src := range s.deps.PositionSources {
		if p, ok := src.(port.Pinger); ok {
			out[src.Name()] = p.Ping(ctx)
		}
	}
	if p, ok := s.deps.Notifier.(port.Pinger); ok {
		out[s.deps.Notifier.Name()] = p.Ping(ctx)
	}
	for name, err := range out {
		if err != nil {
			log.Warn().Err(err).Str("target", name).Msg("connectivity test failed")
		} else {
			log.Info().Str("target", name).Msg("connectivity ok")
		}
	}
	return out
}

// Run starts the check loop and the summary loop and blocks until ctx is done.
func (s *Service) Run(ctx context.Context) error {
	log.Info().
		Dur("check_interval", s.deps.CheckInterval).
		Dur("summary_interval", s.deps.SummaryInterval).
		Float64("threshold", s.deps.Threshold).
		Msg("monitor starting")

	s.CheckConnectivity(ctx)
	if err := s.send(ctx, port.ReportLifecycle, s.fmt.RenderStartup(s.deps.Now(), s.deps.CheckInterval, s.deps.SummaryInterval)); err != nil {
		log.Warn().Err(err).Msg("startup notification failed")
	}

	var wg sync.WaitGroup
	wg.Go(func() { s.checkLoop(ctx) })
	wg.Go(func() { s.summaryLoop(ctx) })
	wg.Wait()

	// ctx 已取消，停机通知用新的有界 context
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deps.ShutdownTimeout)
	defer cancel()
	if err := s.send(sctx, port.ReportLifecycle, s.fmt.RenderShutdown(s.deps.Now())); err != nil {
		log.Warn().Err(err).Msg("shutdown notification failed")
	}
	log.Info().Msg("monitor stopped")
	return ctx.Err()
}

// RunOnce runs a single check. With report set, the full cycle report is sent
// as well, triggered or not.
func (s *Service) RunOnce(ctx context.Context, report bool) (*CycleReport, error) {
	rep, err := s.RunCheck(ctx)
	if report && ctx.Err() == nil {
		if serr := s.send(ctx, port.ReportCycle, s.fmt.RenderCycle(s.deps.Now(), rep.Evaluations)); serr != nil {
			err = errors.Join(err, serr)
		}
	}
	return rep, err
}

func (s *Service) checkLoop(ctx context.Context) {
	for {
		wait := s.deps.CheckInterval
		if _, err := s.RunCheck(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			wait = s.deps.ErrorBackoff
			log.Warn().Dur("backoff", wait).Msg("check cycle failed, backing off")
		}
		if !s.deps.Sleep(ctx, wait) {
			return
		}
	}
}

func (s *Service) summaryLoop(ctx context.Context) {
	wait := s.deps.SummaryInterval
	for {
		if !s.deps.Sleep(ctx, wait) {
			return
		}
		wait = s.deps.SummaryInterval
		if err := s.FlushSummary(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			wait = s.deps.SummaryRetry
			log.Warn().Err(err).Dur("retry_in", wait).Msg("summary flush failed")
		}
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
