package binance

import (
	"github.com/shopspring/decimal"
)

// OrderRequest represents a futures order to be placed
type OrderRequest struct {
	Symbol           string          `json:"symbol"`
	Side             string          `json:"side"` // BUY or SELL
	Type             string          `json:"type"` // MARKET or LIMIT
	Quantity         decimal.Decimal `json:"quantity"`
	Price            decimal.Decimal `json:"price,omitempty"`
	TimeInForce      string          `json:"timeInForce,omitempty"` // GTC, IOC, FOK
	ReduceOnly       bool            `json:"reduceOnly,omitempty"`
	NewClientOrderID string          `json:"newClientOrderId,omitempty"`
	RecvWindow       int64           `json:"recvWindow,omitempty"`
}

// OrderResponse represents the exchange's acknowledgement of an order
type OrderResponse struct {
	OrderID       int64           `json:"orderId"`
	Symbol        string          `json:"symbol"`
	Status        string          `json:"status"`
	ClientOrderID string          `json:"clientOrderId"`
	Price         decimal.Decimal `json:"price"`
	AvgPrice      decimal.Decimal `json:"avgPrice"`
	OrigQty       decimal.Decimal `json:"origQty"`
	ExecutedQty   decimal.Decimal `json:"executedQty"`
	CumQty        decimal.Decimal `json:"cumQty"`
	CumQuote      decimal.Decimal `json:"cumQuote"`
	TimeInForce   string          `json:"timeInForce"`
	Type          string          `json:"type"`
	ReduceOnly    bool            `json:"reduceOnly"`
	Side          string          `json:"side"`
	PositionSide  string          `json:"positionSide"`
	UpdateTime    int64           `json:"updateTime"`
}

// CancelResponse represents a cancel-by-id acknowledgement
type CancelResponse struct {
	OrderID       int64           `json:"orderId"`
	Symbol        string          `json:"symbol"`
	Status        string          `json:"status"`
	ClientOrderID string          `json:"clientOrderId"`
	OrigQty       decimal.Decimal `json:"origQty"`
	ExecutedQty   decimal.Decimal `json:"executedQty"`
	Side          string          `json:"side"`
	Type          string          `json:"type"`
}

// LeverageResponse carries the leverage the exchange actually applied,
// which may differ from the requested value
type LeverageResponse struct {
	Leverage         int             `json:"leverage"`
	MaxNotionalValue decimal.Decimal `json:"maxNotionalValue"`
	Symbol           string          `json:"symbol"`
}

// AssetBalance represents one asset row from the futures balance endpoint
type AssetBalance struct {
	Asset              string          `json:"asset"`
	Balance            decimal.Decimal `json:"balance"`
	CrossWalletBalance decimal.Decimal `json:"crossWalletBalance"`
	CrossUnPnl         decimal.Decimal `json:"crossUnPnl"`
	AvailableBalance   decimal.Decimal `json:"availableBalance"`
	MaxWithdrawAmount  decimal.Decimal `json:"maxWithdrawAmount"`
	UpdateTime         int64           `json:"updateTime"`
}

// TickerPrice represents the latest price for a symbol
type TickerPrice struct {
	Symbol string          `json:"symbol"`
	Price  decimal.Decimal `json:"price"`
	Time   int64           `json:"time"`
}

// PositionRisk represents one row from the position risk endpoint.
// PositionAmt is signed: positive for long, negative for short.
type PositionRisk struct {
	Symbol           string          `json:"symbol"`
	PositionAmt      decimal.Decimal `json:"positionAmt"`
	EntryPrice       decimal.Decimal `json:"entryPrice"`
	MarkPrice        decimal.Decimal `json:"markPrice"`
	UnRealizedProfit decimal.Decimal `json:"unRealizedProfit"`
	LiquidationPrice decimal.Decimal `json:"liquidationPrice"`
	Leverage         string          `json:"leverage"`
	MarginType       string          `json:"marginType"`
	PositionSide     string          `json:"positionSide"`
	UpdateTime       int64           `json:"updateTime"`
}

// Order represents an open order as reported by the exchange
type Order struct {
	OrderID       int64           `json:"orderId"`
	Symbol        string          `json:"symbol"`
	Status        string          `json:"status"`
	ClientOrderID string          `json:"clientOrderId"`
	Price         decimal.Decimal `json:"price"`
	AvgPrice      decimal.Decimal `json:"avgPrice"`
	OrigQty       decimal.Decimal `json:"origQty"`
	ExecutedQty   decimal.Decimal `json:"executedQty"`
	TimeInForce   string          `json:"timeInForce"`
	Type          string          `json:"type"`
	ReduceOnly    bool            `json:"reduceOnly"`
	Side          string          `json:"side"`
	StopPrice     decimal.Decimal `json:"stopPrice"`
	Time          int64           `json:"time"`
	UpdateTime    int64           `json:"updateTime"`
}

// cancelAllResponse is the bulk-cancel acknowledgement; the endpoint
// returns a code/msg pair rather than the cancelled orders
type cancelAllResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}
