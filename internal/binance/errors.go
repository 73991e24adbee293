package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// APIError represents an error response from the Binance futures API
type APIError struct {
	Code       int    `json:"code"`
	Message    string `json:"msg"`
	HTTPStatus int    `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("binance API error %d: %s", e.Code, e.Message)
}

// IsRetryable reports whether this failure class is transient
func (e *APIError) IsRetryable() bool {
	switch e.Code {
	case -1003: // Too many requests
		return true
	case -1021: // Timestamp outside recv window
		return true
	}
	return e.HTTPStatus >= 500
}

// IsAuthError checks if this is an authentication error
func (e *APIError) IsAuthError() bool {
	switch e.Code {
	case -1022: // Invalid signature
		return true
	case -2014: // API key format invalid
		return true
	case -2015: // Invalid API key, IP, or permissions
		return true
	}
	return false
}

// IsOrderNotFound reports whether the exchange does not know the order,
// which for a cancel means it was already filled or already cancelled
func (e *APIError) IsOrderNotFound() bool {
	return e.Code == -2011 || e.Code == -2013
}

// IsInsufficientMargin checks for a margin rejection on order placement
func (e *APIError) IsInsufficientMargin() bool {
	return e.Code == -2019 || e.Code == -2010
}

// parseErrorResponse extracts a typed API error from a non-2xx response body
func parseErrorResponse(resp *http.Response, body []byte) error {
	var apiErr APIError
	jsonErr := json.Unmarshal(body, &apiErr)

	if jsonErr == nil && apiErr.Code != 0 {
		apiErr.HTTPStatus = resp.StatusCode
		return &apiErr
	}

	bodyStr := strings.TrimSpace(string(body))
	if jsonErr != nil && (strings.HasPrefix(bodyStr, "{") || strings.HasPrefix(bodyStr, "[")) {
		return fmt.Errorf("failed to parse error response: %w", jsonErr)
	}

	if bodyStr == "" {
		bodyStr = "empty response"
	}

	return fmt.Errorf("HTTP %d: %s", resp.StatusCode, bodyStr)
}

// ParseAPIError reads and parses a Binance error from an HTTP response
func ParseAPIError(resp *http.Response) error {
	if resp == nil {
		return fmt.Errorf("nil response")
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read error response: %w", err)
	}

	return parseErrorResponse(resp, body)
}

// IsRetryableError determines if an error is safe to retry
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsRetryable()
	}

	errMsg := err.Error()
	for _, status := range []string{"HTTP 429", "HTTP 500", "HTTP 502", "HTTP 503", "HTTP 504"} {
		if strings.Contains(errMsg, status) {
			return true
		}
	}

	return isNetworkError(err)
}

// isNetworkError checks for transport-level failures
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"no such host",
		"timeout",
		"network unreachable",
		"connection reset",
	} {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}

	return false
}

// errorWithContext wraps errors with the calling operation for diagnostics
func errorWithContext(err error, operation string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", operation, err)
}
