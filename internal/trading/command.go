package trading

import (
	"github.com/shopspring/decimal"
)

// CommandKind discriminates the TradingCommand variants
type CommandKind string

const (
	CmdPlaceMarketOrder CommandKind = "PLACE_MARKET_ORDER"
	CmdPlaceLimitOrder  CommandKind = "PLACE_LIMIT_ORDER"
	CmdCancelOrder      CommandKind = "CANCEL_ORDER"
	CmdCancelAllOrders  CommandKind = "CANCEL_ALL_ORDERS"
	CmdSetLeverage      CommandKind = "SET_LEVERAGE"
	CmdClosePosition    CommandKind = "CLOSE_POSITION"
	CmdQueryBalance     CommandKind = "QUERY_BALANCE"
	CmdQueryPrice       CommandKind = "QUERY_PRICE"
	CmdQueryPosition    CommandKind = "QUERY_POSITION"
	CmdQueryOpenOrders  CommandKind = "QUERY_OPEN_ORDERS"
)

// Side represents the order side
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// TimeInForce governs how long a limit order remains active
type TimeInForce string

const (
	TimeInForceGTC TimeInForce = "GTC" // Good Till Cancel
	TimeInForceIOC TimeInForce = "IOC" // Immediate or Cancel
	TimeInForceFOK TimeInForce = "FOK" // Fill or Kill
)

// Command is a single trading intent. It is a tagged union: Kind selects
// the variant and only that variant's fields are meaningful. Commands are
// built once per invocation and never mutated.
type Command struct {
	Kind        CommandKind
	Symbol      string
	Side        Side
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	TimeInForce TimeInForce
	Leverage    int
	OrderID     int64
	Asset       string
}

// NewMarketOrder builds a market order placement command
func NewMarketOrder(symbol string, side Side, quantity decimal.Decimal) Command {
	return Command{
		Kind:     CmdPlaceMarketOrder,
		Symbol:   symbol,
		Side:     side,
		Quantity: quantity,
	}
}

// NewLimitOrder builds a limit order placement command. An empty time in
// force defaults to GTC.
func NewLimitOrder(symbol string, side Side, quantity, price decimal.Decimal, tif TimeInForce) Command {
	if tif == "" {
		tif = TimeInForceGTC
	}
	return Command{
		Kind:        CmdPlaceLimitOrder,
		Symbol:      symbol,
		Side:        side,
		Quantity:    quantity,
		Price:       price,
		TimeInForce: tif,
	}
}

// NewCancelOrder builds a cancel-by-id command
func NewCancelOrder(symbol string, orderID int64) Command {
	return Command{
		Kind:    CmdCancelOrder,
		Symbol:  symbol,
		OrderID: orderID,
	}
}

// NewCancelAllOrders builds a bulk-cancel command for a symbol
func NewCancelAllOrders(symbol string) Command {
	return Command{
		Kind:   CmdCancelAllOrders,
		Symbol: symbol,
	}
}

// NewSetLeverage builds a leverage adjustment command
func NewSetLeverage(symbol string, leverage int) Command {
	return Command{
		Kind:     CmdSetLeverage,
		Symbol:   symbol,
		Leverage: leverage,
	}
}

// NewClosePosition builds a command that offsets the current position
// with a market order
func NewClosePosition(symbol string) Command {
	return Command{
		Kind:   CmdClosePosition,
		Symbol: symbol,
	}
}

// NewQueryBalance builds a balance query. An empty asset defaults to USDT.
func NewQueryBalance(asset string) Command {
	if asset == "" {
		asset = "USDT"
	}
	return Command{
		Kind:  CmdQueryBalance,
		Asset: asset,
	}
}

// NewQueryPrice builds a price query for a symbol
func NewQueryPrice(symbol string) Command {
	return Command{
		Kind:   CmdQueryPrice,
		Symbol: symbol,
	}
}

// NewQueryPosition builds a position query for a symbol
func NewQueryPosition(symbol string) Command {
	return Command{
		Kind:   CmdQueryPosition,
		Symbol: symbol,
	}
}

// NewQueryOpenOrders builds an open orders query for a symbol
func NewQueryOpenOrders(symbol string) Command {
	return Command{
		Kind:   CmdQueryOpenOrders,
		Symbol: symbol,
	}
}

// HasSymbol reports whether this variant carries a symbol
func (c Command) HasSymbol() bool {
	return c.Kind != CmdQueryBalance
}

// IsMutating reports whether this variant changes exchange state.
// Mutating commands get at most one network attempt.
func (c Command) IsMutating() bool {
	switch c.Kind {
	case CmdPlaceMarketOrder, CmdPlaceLimitOrder, CmdCancelOrder, CmdCancelAllOrders, CmdSetLeverage, CmdClosePosition:
		return true
	}
	return false
}
