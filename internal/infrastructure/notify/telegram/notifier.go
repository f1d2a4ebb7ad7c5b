package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"frmon/internal/application/port"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	DefaultAPIURL = "https://api.telegram.org"

	// Telegram rejects longer messages.
	maxMessageLen = 4096
)

// ErrDelivery 消息未送达
var ErrDelivery = errors.New("telegram delivery failed")

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
	Result      json.RawMessage `json:"result"`
}

type Options struct {
	APIURL     string
	HTTPClient *http.Client
	Limiter    *rate.Limiter
}

// Notifier sends reports to one chat through the Bot API.
type Notifier struct {
	token      string
	chatID     string
	apiURL     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func New(token, chatID string, opts Options) *Notifier {
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 10 * time.Second}
	}
	if opts.Limiter == nil {
		// 同一个 chat 每秒不超过 1 条
		opts.Limiter = rate.NewLimiter(rate.Every(time.Second), 3)
	}
	return &Notifier{
		token:      token,
		chatID:     chatID,
		apiURL:     strings.TrimRight(opts.APIURL, "/"),
		httpClient: opts.HTTPClient,
		limiter:    opts.Limiter,
	}
}

func (n *Notifier) Name() string { return "telegram" }

func (n *Notifier) endpoint(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", n.apiURL, n.token, method)
}

// Format wraps tabular reports in a Markdown code block so the layout survives.
func Format(r port.Report) (text, parseMode string) {
	switch r.Kind {
	case port.ReportAlert, port.ReportSummary, port.ReportCycle:
		body := truncate(r.Text, maxMessageLen-8)
		return "```\n" + body + "\n```", "Markdown"
	default:
		return truncate(r.Text, maxMessageLen), ""
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}

func (n *Notifier) SendReport(ctx context.Context, r port.Report) error {
	text, mode := Format(r)
	return n.SendMessage(ctx, text, mode)
}

// SendMessage POST sendMessage
func (n *Notifier) SendMessage(ctx context.Context, text, parseMode string) error {
	form := url.Values{}
	form.Set("chat_id", n.chatID)
	form.Set("text", text)
	if parseMode != "" {
		form.Set("parse_mode", parseMode)
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint("sendMessage"), strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	if _, err := n.do(req); err != nil {
		return fmt.Errorf("%w: %w", ErrDelivery, err)
	}
	log.Debug().Int("len", len(text)).Msg("telegram message sent")
	return nil
}

// Ping GET getMe
func (n *Notifier) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, n.endpoint("getMe"), nil)
	if err != nil {
		return err
	}
	result, err := n.do(req)
	if err != nil {
		return err
	}
	var me struct {
		Username string `json:"username"`
	}
	_ = json.Unmarshal(result, &me)
	log.Info().Str("bot", me.Username).Msg("telegram bot reachable")
	return nil
}

func (n *Notifier) do(req *http.Request) (json.RawMessage, error) {
	resp, err := n.httpClient.Do(req)
	if err != nil {
		// url.Error 会带上含 token 的地址
		var uerr *url.Error
		if errors.As(err, &uerr) {
			return nil, uerr.Err
		}
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var out apiResponse
	if jerr := json.Unmarshal(body, &out); jerr != nil {
		return nil, fmt.Errorf("telegram http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if resp.StatusCode != http.StatusOK || !out.OK {
		return nil, fmt.Errorf("telegram http %d: error_code=%d %s", resp.StatusCode, out.ErrorCode, out.Description)
	}
	return out.Result, nil
}

var (
	_ port.Notifier = (*Notifier)(nil)
	_ port.Pinger   = (*Notifier)(nil)
)
