package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"tradebot/internal/trading"
)

// Executor runs trading commands through the execution pipeline
type Executor interface {
	Execute(ctx context.Context, cmd trading.Command) trading.Result
}

// CommandRecorder receives one observation per executed command
type CommandRecorder interface {
	RecordCommand(kind, outcome string, seconds float64)
}

// Handlers translates HTTP requests into trading commands and results
// back into JSON responses
type Handlers struct {
	executor Executor
	recorder CommandRecorder
}

// NewHandlers creates the API handlers
func NewHandlers(executor Executor, recorder CommandRecorder) *Handlers {
	return &Handlers{
		executor: executor,
		recorder: recorder,
	}
}

// PlaceOrderRequest is the body for POST /api/v1/orders
type PlaceOrderRequest struct {
	Symbol      string `json:"symbol"`
	Side        string `json:"side"`
	Type        string `json:"type"`
	Quantity    string `json:"quantity"`
	Price       string `json:"price,omitempty"`
	TimeInForce string `json:"time_in_force,omitempty"`
}

// LeverageRequest is the body for POST /api/v1/leverage
type LeverageRequest struct {
	Symbol   string `json:"symbol"`
	Leverage int    `json:"leverage"`
}

// ClosePositionRequest is the body for POST /api/v1/close
type ClosePositionRequest struct {
	Symbol string `json:"symbol"`
}

// PlaceOrder handles market and limit order placement
func (h *Handlers) PlaceOrder() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PlaceOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(
				"VALIDATION_ERROR",
				"Invalid request body",
				c.GetString("request_id"),
			))
			return
		}

		quantity, err := decimal.NewFromString(req.Quantity)
		if err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(
				"VALIDATION_ERROR",
				"quantity must be a decimal number",
				c.GetString("request_id"),
			))
			return
		}

		side := trading.Side(strings.ToUpper(req.Side))

		var cmd trading.Command
		switch strings.ToUpper(req.Type) {
		case "MARKET":
			cmd = trading.NewMarketOrder(req.Symbol, side, quantity)
		case "LIMIT":
			price, err := decimal.NewFromString(req.Price)
			if err != nil {
				c.JSON(http.StatusBadRequest, NewErrorResponse(
					"VALIDATION_ERROR",
					"price must be a decimal number",
					c.GetString("request_id"),
				))
				return
			}
			tif := trading.TimeInForce(strings.ToUpper(req.TimeInForce))
			cmd = trading.NewLimitOrder(req.Symbol, side, quantity, price, tif)
		default:
			c.JSON(http.StatusBadRequest, NewErrorResponse(
				"VALIDATION_ERROR",
				"type must be MARKET or LIMIT",
				c.GetString("request_id"),
			))
			return
		}

		h.run(c, cmd, http.StatusCreated)
	}
}

// CancelOrders cancels one order when order_id is given, otherwise all
// open orders for the symbol
func (h *Handlers) CancelOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		symbol := c.Query("symbol")

		var cmd trading.Command
		if raw := c.Query("order_id"); raw != "" {
			orderID, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				c.JSON(http.StatusBadRequest, NewErrorResponse(
					"VALIDATION_ERROR",
					"order_id must be an integer",
					c.GetString("request_id"),
				))
				return
			}
			cmd = trading.NewCancelOrder(symbol, orderID)
		} else {
			cmd = trading.NewCancelAllOrders(symbol)
		}

		h.run(c, cmd, http.StatusOK)
	}
}

// SetLeverage changes the leverage for a symbol
func (h *Handlers) SetLeverage() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LeverageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(
				"VALIDATION_ERROR",
				"Invalid request body",
				c.GetString("request_id"),
			))
			return
		}

		h.run(c, trading.NewSetLeverage(req.Symbol, req.Leverage), http.StatusOK)
	}
}

// ClosePosition offsets the open position for a symbol at market
func (h *Handlers) ClosePosition() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ClosePositionRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, NewErrorResponse(
				"VALIDATION_ERROR",
				"Invalid request body",
				c.GetString("request_id"),
			))
			return
		}

		h.run(c, trading.NewClosePosition(req.Symbol), http.StatusOK)
	}
}

// GetBalance returns the available balance for an asset (USDT when omitted)
func (h *Handlers) GetBalance() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.run(c, trading.NewQueryBalance(c.Query("asset")), http.StatusOK)
	}
}

// GetPrice returns the latest traded price for a symbol
func (h *Handlers) GetPrice() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.run(c, trading.NewQueryPrice(c.Query("symbol")), http.StatusOK)
	}
}

// GetPosition returns the open position for a symbol
func (h *Handlers) GetPosition() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.run(c, trading.NewQueryPosition(c.Query("symbol")), http.StatusOK)
	}
}

// GetOpenOrders lists open orders for a symbol
func (h *Handlers) GetOpenOrders() gin.HandlerFunc {
	return func(c *gin.Context) {
		h.run(c, trading.NewQueryOpenOrders(c.Query("symbol")), http.StatusOK)
	}
}

// run executes the command and writes the result with a status derived
// from the outcome. successStatus applies only when execution succeeds.
func (h *Handlers) run(c *gin.Context, cmd trading.Command, successStatus int) {
	start := time.Now()
	result := h.executor.Execute(c.Request.Context(), cmd)
	h.recorder.RecordCommand(string(cmd.Kind), string(result.Outcome), time.Since(start).Seconds())

	switch result.Outcome {
	case trading.OutcomeSuccess:
		c.JSON(successStatus, result)
	case trading.OutcomeValidationFailure:
		c.JSON(http.StatusBadRequest, result)
	case trading.OutcomeExchangeFailure:
		c.JSON(http.StatusBadGateway, result)
	default:
		c.JSON(http.StatusInternalServerError, NewErrorResponse(
			"INTERNAL_ERROR",
			"unknown execution outcome",
			c.GetString("request_id"),
		))
	}
}
