package bybit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"frmon/internal/infrastructure/exchange"
)

// envelope V5 统一响应外层
type envelope struct {
	RetCode int             `json:"retCode"`
	RetMsg  string          `json:"retMsg"`
	Result  json.RawMessage `json:"result"`
	Time    int64           `json:"time"`
}

// APIError retCode != 0 或 HTTP 非 200
type APIError struct {
	Status  int
	RetCode int
	RetMsg  string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bybit http %d: retCode=%d retMsg=%s", e.Status, e.RetCode, e.RetMsg)
}

// signedQueryRequest 发送带 query 的签名请求，返回 result 字段
func (c *APIClient) signedQueryRequest(ctx context.Context, method, path string, params url.Values) (json.RawMessage, error) {
	if !c.credentials.valid() {
		return nil, exchange.ErrNoCredentials
	}
	var query string
	if params != nil {
		query = params.Encode()
	}

	endpoint := c.baseURL + path
	if query != "" {
		endpoint += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	recvWindow := strconv.Itoa(c.recvWindow)

	// Bybit V5 signature: timestamp + apiKey + recvWindow + payload
	signature := c.credentials.Sign(timestamp + c.credentials.APIKey() + recvWindow + query)

	req.Header.Set("X-BAPI-API-KEY", c.credentials.APIKey())
	req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
	req.Header.Set("X-BAPI-RECV-WINDOW", recvWindow)
	req.Header.Set("X-BAPI-SIGN", signature)
	return c.do(req)
}

func (c *APIClient) publicRequest(ctx context.Context, path string, params url.Values) (json.RawMessage, error) {
	endpoint, err := exchange.BuildQueryURL(c.baseURL, path, params)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *APIClient) do(req *http.Request) (json.RawMessage, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, RetCode: -1, RetMsg: string(body)}
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("bybit decode: %w", err)
	}
	if env.RetCode != 0 {
		return nil, &APIError{Status: resp.StatusCode, RetCode: env.RetCode, RetMsg: env.RetMsg}
	}
	return env.Result, nil
}

// Ping GET /v5/market/time
func (c *APIClient) Ping(ctx context.Context) error {
	_, err := c.publicRequest(ctx, "/v5/market/time", nil)
	return err
}
