package bybit

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"frmon/internal/infrastructure/exchange"

	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://api.bybit.com"

// Credentials Bybit V5 凭证
type Credentials struct {
	apiKey    string
	apiSecret string
}

func NewCredentials(apiKey, apiSecret string) *Credentials {
	return &Credentials{
		apiKey:    strings.TrimSpace(apiKey),
		apiSecret: strings.TrimSpace(apiSecret),
	}
}

// Sign 生成 HMAC-SHA256 签名
func (c *Credentials) Sign(data string) string {
	h := hmac.New(sha256.New, []byte(c.apiSecret))
	h.Write([]byte(data))
	return hex.EncodeToString(h.Sum(nil))
}

func (c *Credentials) APIKey() string {
	return c.apiKey
}

func (c *Credentials) valid() bool {
	return c != nil && c.apiKey != "" && c.apiSecret != ""
}

type Options struct {
	BaseURL      string
	RecvWindowMs int
	HTTPClient   *http.Client
	Limiter      *rate.Limiter
}

type APIClient struct {
	credentials *Credentials
	httpClient  *http.Client
	limiter     *rate.Limiter
	baseURL     string
	recvWindow  int
}

func NewAPIClient(creds *Credentials, opts Options) *APIClient {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.RecvWindowMs <= 0 {
		opts.RecvWindowMs = 5000
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: exchange.DefaultHTTPTimeout}
	}
	if opts.Limiter == nil {
		opts.Limiter = exchange.NewLimiter(0, 0)
	}
	return &APIClient{
		credentials: creds,
		httpClient:  opts.HTTPClient,
		limiter:     opts.Limiter,
		baseURL:     strings.TrimRight(opts.BaseURL, "/"),
		recvWindow:  opts.RecvWindowMs,
	}
}
