package binance

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

// APIError Binance 错误响应 {"code":-2015,"msg":"..."}
type APIError struct {
	Status int
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("binance http %d: code=%d msg=%s", e.Status, e.Code, e.Msg)
}

// signedRequest is shared helper for signed REST calls.
func (c *APIClient) signedRequest(ctx context.Context, method, path string, params url.Values) ([]byte, error) {
	if !c.credentials.valid() {
		return nil, exchange.ErrNoCredentials
	}
	if params == nil {
		params = url.Values{}
	}
	params.Set("timestamp", strconv.FormatInt(time.Now().UnixMilli(), 10))
	if params.Get("recvWindow") == "" {
		params.Set("recvWindow", strconv.Itoa(c.recvWindow))
	}

	query := params.Encode()
	signature := c.credentials.Sign(query)
	endpoint := fmt.Sprintf("%s%s?%s&signature=%s", c.baseURL, path, query, signature)

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-MBX-APIKEY", c.credentials.APIKey())
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

// publicRequest 不需要签名的行情接口
func (c *APIClient) publicRequest(ctx context.Context, path string, params url.Values) ([]byte, error) {
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

func (c *APIClient) do(req *http.Request) ([]byte, error) {
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
		apiErr := &APIError{Status: resp.StatusCode}
		if json.Unmarshal(body, apiErr) != nil || apiErr.Msg == "" {
			apiErr.Msg = string(body)
		}
		return nil, apiErr
	}
	return body, nil
}

// Ping GET /fapi/v1/ping
func (c *APIClient) Ping(ctx context.Context) error {
	_, err := c.publicRequest(ctx, "/fapi/v1/ping", nil)
	return err
}
