package binance

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAPIError(t *testing.T) {
	t.Run("implements error interface", func(t *testing.T) {
		err := &APIError{Code: -1021, Message: "Timestamp for this request is outside of the recvWindow."}

		assert.Implements(t, (*error)(nil), err)
		assert.Equal(t, "binance API error -1021: Timestamp for this request is outside of the recvWindow.", err.Error())
	})

	t.Run("classifies retryability", func(t *testing.T) {
		assert.True(t, (&APIError{Code: -1003}).IsRetryable())
		assert.True(t, (&APIError{Code: -1021}).IsRetryable())
		assert.True(t, (&APIError{Code: -1000, HTTPStatus: 500}).IsRetryable())
		assert.True(t, (&APIError{Code: -1000, HTTPStatus: 503}).IsRetryable())

		assert.False(t, (&APIError{Code: -2010, HTTPStatus: 400}).IsRetryable())
		assert.False(t, (&APIError{Code: -4028, HTTPStatus: 400}).IsRetryable())
	})

	t.Run("classifies auth errors", func(t *testing.T) {
		assert.True(t, (&APIError{Code: -1022}).IsAuthError())
		assert.True(t, (&APIError{Code: -2014}).IsAuthError())
		assert.True(t, (&APIError{Code: -2015}).IsAuthError())
		assert.False(t, (&APIError{Code: -1003}).IsAuthError())
	})

	t.Run("classifies order not found", func(t *testing.T) {
		assert.True(t, (&APIError{Code: -2011}).IsOrderNotFound())
		assert.True(t, (&APIError{Code: -2013}).IsOrderNotFound())
		assert.False(t, (&APIError{Code: -2019}).IsOrderNotFound())
	})

	t.Run("classifies insufficient margin", func(t *testing.T) {
		assert.True(t, (&APIError{Code: -2019}).IsInsufficientMargin())
		assert.False(t, (&APIError{Code: -2011}).IsInsufficientMargin())
	})
}

func TestParseAPIError(t *testing.T) {
	t.Run("parses a binance error body", func(t *testing.T) {
		resp := &http.Response{
			StatusCode: 400,
			Body:       io.NopCloser(strings.NewReader(`{"code":-2011,"msg":"Unknown order sent."}`)),
		}

		err := ParseAPIError(resp)

		var apiErr *APIError
		assert.True(t, errors.As(err, &apiErr))
		assert.Equal(t, -2011, apiErr.Code)
		assert.Equal(t, "Unknown order sent.", apiErr.Message)
		assert.Equal(t, 400, apiErr.HTTPStatus)
	})

	t.Run("reports malformed json", func(t *testing.T) {
		resp := &http.Response{
			StatusCode: 400,
			Body:       io.NopCloser(strings.NewReader(`{"code":-2011,"msg":`)),
		}

		err := ParseAPIError(resp)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse error response")
	})

	t.Run("falls back for non-json bodies", func(t *testing.T) {
		resp := &http.Response{
			StatusCode: 502,
			Body:       io.NopCloser(strings.NewReader("Bad Gateway")),
		}

		err := ParseAPIError(resp)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "HTTP 502")
		assert.Contains(t, err.Error(), "Bad Gateway")
	})

	t.Run("handles empty body", func(t *testing.T) {
		resp := &http.Response{
			StatusCode: 500,
			Body:       io.NopCloser(strings.NewReader("")),
		}

		err := ParseAPIError(resp)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "empty response")
	})
}

func TestIsRetryableError(t *testing.T) {
	t.Run("nil is not retryable", func(t *testing.T) {
		assert.False(t, IsRetryableError(nil))
	})

	t.Run("context errors are not retryable", func(t *testing.T) {
		assert.False(t, IsRetryableError(context.Canceled))
		assert.False(t, IsRetryableError(context.DeadlineExceeded))
	})

	t.Run("api errors delegate to code classification", func(t *testing.T) {
		assert.True(t, IsRetryableError(&APIError{Code: -1003}))
		assert.False(t, IsRetryableError(&APIError{Code: -2010, HTTPStatus: 400}))
	})

	t.Run("http status text in plain errors", func(t *testing.T) {
		assert.True(t, IsRetryableError(errors.New("HTTP 503: Service Unavailable")))
		assert.False(t, IsRetryableError(errors.New("HTTP 400: Bad Request")))
	})

	t.Run("network failures are retryable", func(t *testing.T) {
		assert.True(t, IsRetryableError(errors.New("dial tcp: connection refused")))
		assert.True(t, IsRetryableError(errors.New("request timeout")))
		assert.False(t, IsRetryableError(errors.New("some application error")))
	})
}
