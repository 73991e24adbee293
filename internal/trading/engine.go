package trading

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tradebot/internal/binance"
)

// Engine turns validated commands into gateway calls and classifies the
// outcome. Every invocation produces exactly one Result; no gateway error
// is swallowed and nothing panics across this boundary.
//
// Mutating commands (placements, cancels, leverage changes) are dispatched
// at most once per Execute call. The caller decides whether to retry,
// informed by the Retryable flag on exchange failures.
type Engine struct {
	gateway   Gateway
	validator *Validator
	account   *AccountView
	logger    zerolog.Logger
}

// NewEngine creates an execution engine around an injected gateway
func NewEngine(gateway Gateway, validator *Validator, logger zerolog.Logger) *Engine {
	return &Engine{
		gateway:   gateway,
		validator: validator,
		account:   NewAccountView(gateway),
		logger:    logger,
	}
}

// Account exposes the engine's account state view
func (e *Engine) Account() *AccountView {
	return e.account
}

// Execute processes a single command to completion: validate, dispatch,
// classify. Synchronous; the gateway call is the only thing that blocks.
func (e *Engine) Execute(ctx context.Context, cmd Command) Result {
	if verr := e.validator.Validate(cmd); verr != nil {
		e.logger.Warn().
			Str("command", string(cmd.Kind)).
			Str("field", verr.Field).
			Str("reason", verr.Reason).
			Msg("Command rejected")
		return Rejected(verr.Field, verr.Reason)
	}

	switch cmd.Kind {
	case CmdPlaceMarketOrder, CmdPlaceLimitOrder:
		return e.placeOrder(ctx, cmd)
	case CmdCancelOrder:
		return e.cancelOrder(ctx, cmd)
	case CmdCancelAllOrders:
		return e.cancelAllOrders(ctx, cmd)
	case CmdSetLeverage:
		return e.setLeverage(ctx, cmd)
	case CmdClosePosition:
		return e.closePosition(ctx, cmd)
	case CmdQueryBalance:
		return e.queryBalance(ctx, cmd)
	case CmdQueryPrice:
		return e.queryPrice(ctx, cmd)
	case CmdQueryPosition:
		return e.queryPosition(ctx, cmd)
	case CmdQueryOpenOrders:
		return e.queryOpenOrders(ctx, cmd)
	}

	return Rejected("kind", fmt.Sprintf("unknown command kind: %s", cmd.Kind))
}

// placeOrder dispatches a market or limit order. A caller-supplied price
// on a market order is never forwarded to the exchange.
func (e *Engine) placeOrder(ctx context.Context, cmd Command) Result {
	req := &binance.OrderRequest{
		Symbol:           cmd.Symbol,
		Side:             string(cmd.Side),
		Type:             "MARKET",
		Quantity:         cmd.Quantity,
		NewClientOrderID: uuid.New().String(),
	}

	if cmd.Kind == CmdPlaceLimitOrder {
		req.Type = "LIMIT"
		req.Price = cmd.Price
		req.TimeInForce = string(cmd.TimeInForce)
	}

	e.logger.Info().
		Str("symbol", req.Symbol).
		Str("side", req.Side).
		Str("type", req.Type).
		Str("quantity", req.Quantity.String()).
		Str("client_order_id", req.NewClientOrderID).
		Msg("Placing order")

	resp, err := e.gateway.PlaceOrder(ctx, req)
	if err != nil {
		return e.exchangeFailure(ctx, cmd, err)
	}

	e.logger.Info().
		Int64("order_id", resp.OrderID).
		Str("status", resp.Status).
		Msg("Order placed")

	result := Succeeded(fmt.Sprintf("%s %s order for %s %s, status %s",
		req.Side, req.Type, req.Quantity.String(), req.Symbol, resp.Status))
	result.OrderID = resp.OrderID
	return result
}

// cancelOrder dispatches a cancel-by-id. An "order not found" response is
// reported with a distinct reason: the order was already filled or
// already cancelled, and retrying the cancel is pointless.
func (e *Engine) cancelOrder(ctx context.Context, cmd Command) Result {
	e.logger.Info().
		Str("symbol", cmd.Symbol).
		Int64("order_id", cmd.OrderID).
		Msg("Cancelling order")

	resp, err := e.gateway.CancelOrder(ctx, cmd.Symbol, cmd.OrderID)
	if err != nil {
		var apiErr *binance.APIError
		if errors.As(err, &apiErr) && apiErr.IsOrderNotFound() {
			return Failed(apiErr.Code,
				fmt.Sprintf("order %d not found (already filled or cancelled): %s", cmd.OrderID, apiErr.Message),
				false)
		}
		return e.exchangeFailure(ctx, cmd, err)
	}

	result := Succeeded(fmt.Sprintf("order %d cancelled, status %s", resp.OrderID, resp.Status))
	result.OrderID = resp.OrderID
	return result
}

func (e *Engine) cancelAllOrders(ctx context.Context, cmd Command) Result {
	e.logger.Info().Str("symbol", cmd.Symbol).Msg("Cancelling all open orders")

	if err := e.gateway.CancelAllOrders(ctx, cmd.Symbol); err != nil {
		return e.exchangeFailure(ctx, cmd, err)
	}

	// The exchange acknowledges without a count
	return Succeeded(fmt.Sprintf("all open orders cancelled for %s", cmd.Symbol))
}

// setLeverage surfaces the exchange-confirmed leverage verbatim; the
// exchange may clamp based on the current position.
func (e *Engine) setLeverage(ctx context.Context, cmd Command) Result {
	e.logger.Info().
		Str("symbol", cmd.Symbol).
		Int("leverage", cmd.Leverage).
		Msg("Setting leverage")

	resp, err := e.gateway.SetLeverage(ctx, cmd.Symbol, cmd.Leverage)
	if err != nil {
		return e.exchangeFailure(ctx, cmd, err)
	}

	result := Succeeded(fmt.Sprintf("leverage set to %dx for %s", resp.Leverage, resp.Symbol))
	result.Leverage = resp.Leverage
	return result
}

// closePosition reads the current position and offsets it with a
// reduce-only market order. The read and the dispatch are not atomic: the
// position can change in between, and a resulting exchange rejection is
// surfaced, never retried here.
func (e *Engine) closePosition(ctx context.Context, cmd Command) Result {
	position, err := e.account.Position(ctx, cmd.Symbol)
	if err != nil {
		return e.exchangeFailure(ctx, cmd, err)
	}

	if position == nil {
		e.logger.Info().Str("symbol", cmd.Symbol).Msg("No position to close")
		return Succeeded(fmt.Sprintf("no open position for %s", cmd.Symbol))
	}

	side := SideSell
	if position.Size.IsNegative() {
		side = SideBuy
	}
	quantity := position.Size.Abs()

	e.logger.Info().
		Str("symbol", cmd.Symbol).
		Str("side", string(side)).
		Str("quantity", quantity.String()).
		Msg("Closing position")

	resp, err := e.gateway.PlaceOrder(ctx, &binance.OrderRequest{
		Symbol:           cmd.Symbol,
		Side:             string(side),
		Type:             "MARKET",
		Quantity:         quantity,
		ReduceOnly:       true,
		NewClientOrderID: uuid.New().String(),
	})
	if err != nil {
		return e.exchangeFailure(ctx, cmd, err)
	}

	result := Succeeded(fmt.Sprintf("position closed: %s %s %s, order status %s",
		side, quantity.String(), cmd.Symbol, resp.Status))
	result.OrderID = resp.OrderID
	return result
}

func (e *Engine) queryBalance(ctx context.Context, cmd Command) Result {
	balance, err := e.account.Balance(ctx, cmd.Asset)
	if err != nil {
		return e.exchangeFailure(ctx, cmd, err)
	}

	result := Succeeded(fmt.Sprintf("%s available balance: %s", cmd.Asset, balance.String()))
	result.Balance = balance
	return result
}

func (e *Engine) queryPrice(ctx context.Context, cmd Command) Result {
	price, err := e.account.Price(ctx, cmd.Symbol)
	if err != nil {
		return e.exchangeFailure(ctx, cmd, err)
	}

	result := Succeeded(fmt.Sprintf("%s price: %s", cmd.Symbol, price.String()))
	result.Price = price
	return result
}

func (e *Engine) queryPosition(ctx context.Context, cmd Command) Result {
	position, err := e.account.Position(ctx, cmd.Symbol)
	if err != nil {
		return e.exchangeFailure(ctx, cmd, err)
	}

	if position == nil {
		return Succeeded(fmt.Sprintf("no open position for %s", cmd.Symbol))
	}

	result := Succeeded(fmt.Sprintf("%s position: %s @ %s, PnL %s",
		position.Symbol, position.Size.String(), position.EntryPrice.String(), position.UnrealizedPnL.String()))
	result.Position = position
	return result
}

func (e *Engine) queryOpenOrders(ctx context.Context, cmd Command) Result {
	orders, err := e.account.OpenOrders(ctx, cmd.Symbol)
	if err != nil {
		return e.exchangeFailure(ctx, cmd, err)
	}

	result := Succeeded(fmt.Sprintf("%d open orders for %s", len(orders), cmd.Symbol))
	result.Orders = orders
	return result
}

// exchangeFailure classifies a gateway error into an ExchangeFailure.
// Typed API errors keep the exchange's code and message untranslated.
// A cancelled or timed-out context on a mutating dispatch means the
// exchange may or may not have acted: reported as non-retryable with an
// "outcome unknown" tag, obligating the caller to reconcile via a query
// before resubmitting.
func (e *Engine) exchangeFailure(ctx context.Context, cmd Command, err error) Result {
	e.logger.Error().
		Str("command", string(cmd.Kind)).
		Str("symbol", cmd.Symbol).
		Err(err).
		Msg("Command failed")

	if cmd.IsMutating() && errors.Is(ctx.Err(), context.Canceled) {
		return Failed(0, fmt.Sprintf("outcome unknown: %v", err), false)
	}

	var apiErr *binance.APIError
	if errors.As(err, &apiErr) {
		return Failed(apiErr.Code, apiErr.Message, apiErr.IsRetryable())
	}

	// A deadline error with the caller's context still live came from the
	// gateway's own HTTP timeout, not from the caller: a transport failure,
	// safe to retry
	if ctx.Err() == nil && isTransportTimeout(err) {
		return Failed(0, err.Error(), true)
	}

	return Failed(0, err.Error(), binance.IsRetryableError(err))
}

func isTransportTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
