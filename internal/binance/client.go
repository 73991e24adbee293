package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tradebot/internal/auth"
)

// Client is a REST client for the Binance USD-M futures API
type Client struct {
	baseURL     string
	httpClient  *http.Client
	signer      *auth.Signer
	rateLimiter *RateLimiter
	maxRetries  int
}

// Option configures the client
type Option func(*Client)

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithMaxRetries sets the maximum number of retries for idempotent requests
func WithMaxRetries(maxRetries int) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
	}
}

// WithRateLimit sets rate limiting
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(c *Client) {
		c.rateLimiter = NewRateLimiter(requestsPerSecond, burst)
	}
}

// NewClient creates a futures REST client
func NewClient(baseURL string, signer *auth.Signer, opts ...Option) (*Client, error) {
	if err := auth.ValidateBaseURL(baseURL); err != nil {
		return nil, err
	}

	client := &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
		signer:      signer,
		rateLimiter: NewRateLimiter(10, 5),
		maxRetries:  3,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// BaseURL returns the base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Timeout returns the HTTP timeout
func (c *Client) Timeout() time.Duration {
	return c.httpClient.Timeout
}

// MaxRetries returns the retry limit for idempotent requests
func (c *Client) MaxRetries() int {
	return c.maxRetries
}

// PlaceOrder places a futures order. At most one attempt is made: a blind
// retry on placement risks a duplicate fill, so transient failures are
// surfaced to the caller instead.
func (c *Client) PlaceOrder(ctx context.Context, req *OrderRequest) (*OrderResponse, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("signer required for PlaceOrder")
	}
	if req.Symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if req.Side == "" {
		return nil, fmt.Errorf("side is required")
	}
	if req.Type == "" {
		return nil, fmt.Errorf("type is required")
	}
	if req.Quantity.IsZero() {
		return nil, fmt.Errorf("quantity is required")
	}
	if req.Type == "LIMIT" && req.Price.IsZero() {
		return nil, fmt.Errorf("price is required for LIMIT orders")
	}

	params := url.Values{}
	params.Set("symbol", req.Symbol)
	params.Set("side", req.Side)
	params.Set("type", req.Type)
	params.Set("quantity", req.Quantity.String())

	if !req.Price.IsZero() {
		params.Set("price", req.Price.String())
	}
	if req.TimeInForce != "" {
		params.Set("timeInForce", req.TimeInForce)
	}
	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}
	if req.NewClientOrderID != "" {
		params.Set("newClientOrderId", req.NewClientOrderID)
	}
	if req.RecvWindow > 0 {
		params.Set("recvWindow", strconv.FormatInt(req.RecvWindow, 10))
	}

	body, err := c.doRequest(ctx, "POST", "/fapi/v1/order", params, true, false)
	if err != nil {
		return nil, errorWithContext(err, "PlaceOrder")
	}

	var orderResp OrderResponse
	if err := json.Unmarshal(body, &orderResp); err != nil {
		return nil, errorWithContext(err, "PlaceOrder")
	}

	return &orderResp, nil
}

// CancelOrder cancels an active order by id. Not retried: a second attempt
// against an order that the first attempt cancelled reports a confusing
// "order does not exist".
func (c *Client) CancelOrder(ctx context.Context, symbol string, orderID int64) (*CancelResponse, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("signer required for CancelOrder")
	}
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}
	if orderID <= 0 {
		return nil, fmt.Errorf("orderID is required")
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("orderId", strconv.FormatInt(orderID, 10))

	body, err := c.doRequest(ctx, "DELETE", "/fapi/v1/order", params, true, false)
	if err != nil {
		return nil, errorWithContext(err, "CancelOrder")
	}

	var cancelResp CancelResponse
	if err := json.Unmarshal(body, &cancelResp); err != nil {
		return nil, errorWithContext(err, "CancelOrder")
	}

	return &cancelResp, nil
}

// CancelAllOrders cancels every open order for a symbol. The endpoint
// acknowledges with a code/msg pair, not a count.
func (c *Client) CancelAllOrders(ctx context.Context, symbol string) error {
	if c.signer == nil {
		return fmt.Errorf("signer required for CancelAllOrders")
	}
	if symbol == "" {
		return fmt.Errorf("symbol is required")
	}

	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.doRequest(ctx, "DELETE", "/fapi/v1/allOpenOrders", params, true, false)
	if err != nil {
		return errorWithContext(err, "CancelAllOrders")
	}

	var ack cancelAllResponse
	if err := json.Unmarshal(body, &ack); err != nil {
		return errorWithContext(err, "CancelAllOrders")
	}
	if ack.Code != 200 {
		return errorWithContext(&APIError{Code: ack.Code, Message: ack.Msg}, "CancelAllOrders")
	}

	return nil
}

// SetLeverage changes the initial leverage for a symbol and returns the
// value the exchange confirmed
func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) (*LeverageResponse, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("signer required for SetLeverage")
	}
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	params := url.Values{}
	params.Set("symbol", symbol)
	params.Set("leverage", strconv.Itoa(leverage))

	body, err := c.doRequest(ctx, "POST", "/fapi/v1/leverage", params, true, false)
	if err != nil {
		return nil, errorWithContext(err, "SetLeverage")
	}

	var levResp LeverageResponse
	if err := json.Unmarshal(body, &levResp); err != nil {
		return nil, errorWithContext(err, "SetLeverage")
	}

	return &levResp, nil
}

// GetBalances fetches all futures asset balances
func (c *Client) GetBalances(ctx context.Context) ([]AssetBalance, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("signer required for GetBalances")
	}

	body, err := c.doRequest(ctx, "GET", "/fapi/v2/balance", nil, true, true)
	if err != nil {
		return nil, errorWithContext(err, "GetBalances")
	}

	var balances []AssetBalance
	if err := json.Unmarshal(body, &balances); err != nil {
		return nil, errorWithContext(err, "GetBalances")
	}

	return balances, nil
}

// GetPrice fetches the latest price for a symbol
func (c *Client) GetPrice(ctx context.Context, symbol string) (*TickerPrice, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.doRequest(ctx, "GET", "/fapi/v1/ticker/price", params, false, true)
	if err != nil {
		return nil, errorWithContext(err, "GetPrice")
	}

	var ticker TickerPrice
	if err := json.Unmarshal(body, &ticker); err != nil {
		return nil, errorWithContext(err, "GetPrice")
	}

	return &ticker, nil
}

// GetPositionRisk fetches position information for a symbol
func (c *Client) GetPositionRisk(ctx context.Context, symbol string) ([]PositionRisk, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("signer required for GetPositionRisk")
	}
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.doRequest(ctx, "GET", "/fapi/v2/positionRisk", params, true, true)
	if err != nil {
		return nil, errorWithContext(err, "GetPositionRisk")
	}

	var positions []PositionRisk
	if err := json.Unmarshal(body, &positions); err != nil {
		return nil, errorWithContext(err, "GetPositionRisk")
	}

	return positions, nil
}

// GetOpenOrders lists all open orders for a symbol
func (c *Client) GetOpenOrders(ctx context.Context, symbol string) ([]Order, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("signer required for GetOpenOrders")
	}
	if symbol == "" {
		return nil, fmt.Errorf("symbol is required")
	}

	params := url.Values{}
	params.Set("symbol", symbol)

	body, err := c.doRequest(ctx, "GET", "/fapi/v1/openOrders", params, true, true)
	if err != nil {
		return nil, errorWithContext(err, "GetOpenOrders")
	}

	var orders []Order
	if err := json.Unmarshal(body, &orders); err != nil {
		return nil, errorWithContext(err, "GetOpenOrders")
	}

	return orders, nil
}

// doRequest executes an HTTP request with rate limiting. Retries with
// backoff apply only to idempotent requests; order-mutating calls get
// exactly one attempt.
func (c *Client) doRequest(ctx context.Context, method, path string, params url.Values, signed, idempotent bool) ([]byte, error) {
	maxRetries := c.maxRetries
	if !idempotent {
		maxRetries = 0
	}

	var lastErr error

	for attempt := 0; attempt <= maxRetries; attempt++ {
		if c.rateLimiter != nil {
			if err := c.rateLimiter.Wait(ctx); err != nil {
				return nil, err
			}
		}

		if params == nil {
			params = url.Values{}
		}

		// Signing happens per attempt so the timestamp stays fresh
		requestParams := params
		if signed {
			if c.signer == nil {
				return nil, fmt.Errorf("signer required for signed request")
			}
			requestParams = c.signer.SignedQuery(params)
		}

		// The futures API takes all parameters in the query string, even for POST
		requestURL := c.baseURL + path
		if len(requestParams) > 0 {
			requestURL += "?" + requestParams.Encode()
		}

		req, err := http.NewRequestWithContext(ctx, method, requestURL, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}

		if c.signer != nil {
			req.Header.Set("X-MBX-APIKEY", c.signer.APIKey())
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if attempt < maxRetries && isNetworkError(err) {
				c.waitForRetry(attempt)
				continue
			}
			return nil, err
		}

		respBody, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			if attempt < maxRetries {
				c.waitForRetry(attempt)
				continue
			}
			return nil, err
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}

		apiErr := parseErrorResponse(resp, respBody)
		lastErr = apiErr

		if attempt < maxRetries && IsRetryableError(apiErr) {
			c.waitForRetry(attempt)
			continue
		}

		return nil, apiErr
	}

	return nil, lastErr
}

// waitForRetry implements exponential backoff with jitter
func (c *Client) waitForRetry(attempt int) {
	baseDelay := 100 * time.Millisecond
	maxDelay := 2 * time.Second

	delay := time.Duration(float64(baseDelay) * math.Pow(2, float64(attempt)))
	if delay > maxDelay {
		delay = maxDelay
	}

	// ±20% jitter
	jitterFactor := float64(time.Now().UnixNano()%100) / 100.0
	jitter := time.Duration(float64(delay) * 0.2 * (2*jitterFactor - 1))
	delay += jitter

	time.Sleep(delay)
}
