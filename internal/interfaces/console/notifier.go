package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"frmon/internal/application/port"
)

// Notifier prints reports to stdout. It is the primary output when Telegram is
// not configured.
type Notifier struct {
	mu  sync.Mutex
	out io.Writer
}

func NewNotifier() *Notifier { return &Notifier{out: os.Stdout} }

// NewNotifierTo writes to w instead of stdout.
func NewNotifierTo(w io.Writer) *Notifier { return &Notifier{out: w} }

func (n *Notifier) Name() string { return "console" }

func (n *Notifier) SendReport(_ context.Context, r port.Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	_, err := fmt.Fprintf(n.out, "\n[%s] %s\n%s\n\n", r.Kind, r.CreatedAt.UTC().Format("2006-01-02 15:04:05"), r.Text)
	return err
}

var _ port.Notifier = (*Notifier)(nil)
