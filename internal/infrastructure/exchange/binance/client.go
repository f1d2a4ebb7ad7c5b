package binance

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"

	"frmon/internal/infrastructure/exchange"

	"golang.org/x/time/rate"
)

const DefaultBaseURL = "https://fapi.binance.com"

// ===== Credentials 凭证 =====

// Credentials 包含 API 凭证和签名方法
type Credentials struct {
	apiKey    string
	apiSecret string
}

// NewCredentials 创建凭证对象
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

// APIKey 返回 API Key
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

// APIClient 签名/公开 REST 请求共用的客户端
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
