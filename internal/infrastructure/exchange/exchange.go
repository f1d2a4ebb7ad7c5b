package exchange

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"
)

// ErrNoCredentials 缺少 API key / secret
var ErrNoCredentials = errors.New("api credentials not configured")

const (
	DefaultHTTPTimeout = 10 * time.Second

	wsReadTimeout  = 60 * time.Second
	wsPingInterval = 25 * time.Second
)

// NewLimiter builds the per-exchange REST budget.
func NewLimiter(rps float64, burst int) *rate.Limiter {
	if rps <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// RateToPercent converts a raw fractional funding rate ("0.00010000") into a
// percent value (0.01).
func RateToPercent(raw string) (float64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("parse funding rate %q: %w", raw, err)
	}
	f, _ := d.Shift(2).Float64()
	return f, nil
}

// ParseNumber parses a decimal string. Empty input is zero.
func ParseNumber(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return 0, fmt.Errorf("parse number %q: %w", raw, err)
	}
	f, _ := d.Float64()
	return f, nil
}

// MillisToTime 毫秒时间戳转 UTC 时间，0 表示未知
func MillisToTime(ms int64) time.Time {
	if ms <= 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}

// ParseMillis parses an epoch-millisecond string as Bybit sends them.
func ParseMillis(raw string) time.Time {
	ms, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return time.Time{}
	}
	return MillisToTime(ms)
}

// BuildQueryURL builds a URL with query parameters
func BuildQueryURL(base, path string, params url.Values) (string, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return "", errors.New("base url is empty")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	u.Path = path
	u.RawQuery = params.Encode()
	return u.String(), nil
}

// ===== websocket =====

// Backoff 重连退避：500ms 起步，每次翻倍，最多 10s
type Backoff struct {
	Min, Max time.Duration
	cur      time.Duration
}

func NewBackoff() *Backoff {
	return &Backoff{Min: 500 * time.Millisecond, Max: 10 * time.Second}
}

func (b *Backoff) Next() time.Duration {
	if b.cur < b.Min {
		b.cur = b.Min
		return b.cur
	}
	b.cur = min(b.cur*2, b.Max)
	return b.cur
}

func (b *Backoff) Reset() { b.cur = 0 }

// Sleep waits d or until ctx is done. It reports false on cancellation.
func Sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// DialWS creates a WebSocket connection with timeout
func DialWS(ctx context.Context, wsURL string) (*websocket.Conn, error) {
	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, _, err := websocket.DefaultDialer.DialContext(cctx, wsURL, nil)
	return conn, err
}

// ReadWithPing reads WebSocket messages with periodic pings until the
// connection fails or ctx is done.
func ReadWithPing(ctx context.Context, conn *websocket.Conn, onMessage func([]byte)) error {
	_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	pingTicker := time.NewTicker(wsPingInterval)
	defer pingTicker.Stop()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				errCh <- err
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
			onMessage(b)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-pingTicker.C:
			_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		}
	}
}
