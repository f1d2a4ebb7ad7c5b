package notify

import (
	"context"
	"fmt"

	"frmon/internal/application/port"

	"github.com/rs/zerolog/log"
)

// Multi delivers every report to the primary notifier, then to all secondaries.
// Only the primary decides whether a report counts as delivered. Secondaries
// see only delivered reports and their failures are logged.
type Multi struct {
	primary     port.Notifier
	secondaries []port.Notifier
}

func NewMulti(primary port.Notifier, secondaries ...port.Notifier) *Multi {
	out := make([]port.Notifier, 0, len(secondaries))
	for _, n := range secondaries {
		if n != nil {
			out = append(out, n)
		}
	}
	return &Multi{primary: primary, secondaries: out}
}

func (m *Multi) Name() string { return m.primary.Name() }

func (m *Multi) SendReport(ctx context.Context, r port.Report) error {
	if err := m.primary.SendReport(ctx, r); err != nil {
		// 主通道失败时调用方会重发，此处不落库以免重复
		return err
	}
	for _, n := range m.secondaries {
		if serr := n.SendReport(ctx, r); serr != nil {
			log.Warn().Err(serr).Str("notifier", n.Name()).Str("kind", string(r.Kind)).Msg("secondary delivery failed")
		}
	}
	return nil
}

// Ping checks the primary notifier.
func (m *Multi) Ping(ctx context.Context) error {
	if p, ok := m.primary.(port.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// RepositoryNotifier turns a report repository into a notifier.
type RepositoryNotifier struct {
	name string
	repo port.ReportRepository
}

func NewRepositoryNotifier(name string, repo port.ReportRepository) *RepositoryNotifier {
	return &RepositoryNotifier{name: name, repo: repo}
}

func (n *RepositoryNotifier) Name() string { return n.name }

func (n *RepositoryNotifier) SendReport(ctx context.Context, r port.Report) error {
	if err := n.repo.SaveReport(ctx, r); err != nil {
		return fmt.Errorf("%s: save report: %w", n.name, err)
	}
	return nil
}

var (
	_ port.Notifier = (*Multi)(nil)
	_ port.Pinger   = (*Multi)(nil)
	_ port.Notifier = (*RepositoryNotifier)(nil)
)
