package monitor

import (
	"fmt"
	"strings"
	"time"

	dsvc "frmon/internal/domain/service"
)

const (
	timeLayout   = "2006-01-02 15:04 UTC"
	windowDay    = "2006-01-02 15:04"
	windowMinute = "15:04"
)

// Formatter renders the plain-text reports. Notifiers decide how to wrap them.
type Formatter struct {
	Threshold float64
}

func NewFormatter(threshold float64) *Formatter {
	return &Formatter{Threshold: threshold}
}

// ExchangeTitle BINANCE -> Binance
func ExchangeTitle(exchange string) string {
	if exchange == "" {
		return ""
	}
	lower := strings.ToLower(exchange)
	return strings.ToUpper(lower[:1]) + lower[1:]
}

// WindowLabel renders "2024-01-01 10:00-11:00 UTC".
func WindowLabel(start, end time.Time) string {
	return start.UTC().Format(windowDay) + "-" + end.UTC().Format(windowMinute) + " UTC"
}

func writeLegs(sb *strings.Builder, indent string, ev dsvc.Evaluation, tag string) {
	r := ev.Result
	fmt.Fprintf(sb, "%s├ %s (long): %+.4f%%\n", indent, ExchangeTitle(ev.Pair.LongExchange), r.LongRate)
	fmt.Fprintf(sb, "%s├ %s (short): %+.4f%%\n", indent, ExchangeTitle(ev.Pair.ShortExchange), r.ShortRate)
	fmt.Fprintf(sb, "%s└ Spread: %+.4f%%%s\n", indent, r.Spread, tag)
}

// RenderAlert 警示报告，只包含已触发的交易对
func (f *Formatter) RenderAlert(now time.Time, alerts []dsvc.Evaluation) string {
	var sb strings.Builder
	sb.WriteString("Funding spread alert\n")
	fmt.Fprintf(&sb, "  %s\n\n", now.UTC().Format(timeLayout))
	for _, ev := range alerts {
		if !ev.Alert() {
			continue
		}
		fmt.Fprintf(&sb, "    %s (ALERT)\n", ev.Pair.Symbol)
		writeLegs(&sb, "    ", ev, "")
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RenderSummary 彙整报告
func (f *Formatter) RenderSummary(s WindowSummary) string {
	var sb strings.Builder
	sb.WriteString("System report\n")
	sb.WriteString(WindowLabel(s.Start, s.End))
	sb.WriteString("\n\nMonitoring\n")
	fmt.Fprintf(&sb, "├ Checks: %d\n", s.TotalChecks)
	fmt.Fprintf(&sb, "├ Failed checks: %d\n", s.FailedChecks)
	fmt.Fprintf(&sb, "├ Checks without hedges: %d\n", s.NoPairChecks)
	fmt.Fprintf(&sb, "└ Alerts: %d\n\n", s.TotalAlerts)

	sb.WriteString("Hedges\n")
	if len(s.Symbols) == 0 {
		sb.WriteString("  no monitored hedges\n")
		return strings.TrimRight(sb.String(), "\n")
	}
	for _, sym := range s.Symbols {
		fmt.Fprintf(&sb, "  %s\n", sym.Symbol)
		fmt.Fprintf(&sb, "  ├ Current spread: %+.4f%%\n", sym.CurrentSpread)
		fmt.Fprintf(&sb, "  ├ Average spread: %+.4f%%\n", sym.AvgSpread)
		fmt.Fprintf(&sb, "  ├ Range: %+.4f%% .. %+.4f%%\n", sym.MinSpread, sym.MaxSpread)
		fmt.Fprintf(&sb, "  └ Alerts: %d/%d (%.1f%%)\n\n", sym.AlertCount, sym.CheckCount, sym.AlertRate)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// RenderCycle lists every matched pair of one check, triggered or not.
func (f *Formatter) RenderCycle(now time.Time, evals []dsvc.Evaluation) string {
	var sb strings.Builder
	sb.WriteString("Funding rate report\n")
	fmt.Fprintf(&sb, "%s\n", now.UTC().Format(timeLayout))
	fmt.Fprintf(&sb, "Threshold: %+.4f%%\n\n", f.Threshold)
	if len(evals) == 0 {
		sb.WriteString("  no hedged positions found\n")
		return strings.TrimRight(sb.String(), "\n")
	}
	for _, ev := range evals {
		fmt.Fprintf(&sb, "  %s\n", ev.Pair.Symbol)
		if !ev.Usable() {
			fmt.Fprintf(&sb, "  └ rate unavailable (%s)\n\n", titles(ev.Missing))
			continue
		}
		tag := ""
		if ev.Alert() {
			tag = " [ALERT]"
		}
		writeLegs(&sb, "  ", ev, tag)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func titles(exchanges []string) string {
	out := make([]string, 0, len(exchanges))
	for _, ex := range exchanges {
		out = append(out, ExchangeTitle(ex))
	}
	return strings.Join(out, ", ")
}

func (f *Formatter) RenderStartup(now time.Time, checkEvery, summaryEvery time.Duration) string {
	return fmt.Sprintf("Funding monitor started\n%s\nCheck interval: %s\nSummary interval: %s\nThreshold: %+.4f%%",
		now.UTC().Format(timeLayout), checkEvery, summaryEvery, f.Threshold)
}

func (f *Formatter) RenderShutdown(now time.Time) string {
	return fmt.Sprintf("Funding monitor stopped\n%s", now.UTC().Format(timeLayout))
}

func (f *Formatter) RenderError(now time.Time, err error) string {
	return fmt.Sprintf("Monitor error\n%s\n%v", now.UTC().Format(timeLayout), err)
}
