package port

import (
	"context"
	"time"
)

type ReportKind string

const (
	ReportAlert     ReportKind = "alert"
	ReportSummary   ReportKind = "summary"
	ReportCycle     ReportKind = "cycle"
	ReportError     ReportKind = "error"
	ReportLifecycle ReportKind = "lifecycle"
)

// Report 一条待发送的通知
type Report struct {
	ID        string
	Kind      ReportKind
	Text      string
	CreatedAt time.Time
}

// Notifier delivers rendered reports. A nil error means the report was delivered.
type Notifier interface {
	Name() string
	SendReport(ctx context.Context, r Report) error
}

// ReportRepository stores delivered reports for downstream consumers.
type ReportRepository interface {
	SaveReport(ctx context.Context, r Report) error
	Close() error
}
