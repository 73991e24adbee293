package trading

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"
)

// AccountView provides read-through access to account state. Every call
// issues one gateway request; nothing is cached, so callers never act on
// stale balance or position data.
type AccountView struct {
	gateway Gateway
}

// NewAccountView creates a stateless account accessor
func NewAccountView(gateway Gateway) *AccountView {
	return &AccountView{gateway: gateway}
}

// Balance returns the available balance for an asset. An asset missing
// from the account reads as zero, not an error.
func (a *AccountView) Balance(ctx context.Context, asset string) (decimal.Decimal, error) {
	balances, err := a.gateway.GetBalances(ctx)
	if err != nil {
		return decimal.Zero, err
	}

	for _, b := range balances {
		if b.Asset == asset {
			return b.AvailableBalance, nil
		}
	}

	return decimal.Zero, nil
}

// Price returns the latest price for a symbol
func (a *AccountView) Price(ctx context.Context, symbol string) (decimal.Decimal, error) {
	ticker, err := a.gateway.GetPrice(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	return ticker.Price, nil
}

// Position returns the open position for a symbol, or nil when the
// position size is zero. Size keeps the exchange's sign convention:
// positive long, negative short.
func (a *AccountView) Position(ctx context.Context, symbol string) (*Position, error) {
	rows, err := a.gateway.GetPositionRisk(ctx, symbol)
	if err != nil {
		return nil, err
	}

	for _, row := range rows {
		if row.PositionAmt.IsZero() {
			continue
		}

		leverage, _ := strconv.Atoi(row.Leverage)
		return &Position{
			Symbol:        row.Symbol,
			Size:          row.PositionAmt,
			EntryPrice:    row.EntryPrice,
			MarkPrice:     row.MarkPrice,
			UnrealizedPnL: row.UnRealizedProfit,
			Leverage:      leverage,
		}, nil
	}

	return nil, nil
}

// OpenOrders returns all open orders for a symbol, normalized to the
// core's types
func (a *AccountView) OpenOrders(ctx context.Context, symbol string) ([]OpenOrder, error) {
	raw, err := a.gateway.GetOpenOrders(ctx, symbol)
	if err != nil {
		return nil, err
	}

	orders := make([]OpenOrder, 0, len(raw))
	for _, o := range raw {
		orders = append(orders, OpenOrder{
			OrderID:     o.OrderID,
			Symbol:      o.Symbol,
			Side:        Side(o.Side),
			Type:        o.Type,
			Price:       o.Price,
			Quantity:    o.OrigQty,
			ExecutedQty: o.ExecutedQty,
			TimeInForce: TimeInForce(o.TimeInForce),
			ReduceOnly:  o.ReduceOnly,
			Status:      o.Status,
		})
	}

	return orders, nil
}
