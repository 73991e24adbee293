package trading

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Outcome discriminates the ExecutionResult variants
type Outcome string

const (
	OutcomeSuccess           Outcome = "SUCCESS"
	OutcomeValidationFailure Outcome = "VALIDATION_FAILURE"
	OutcomeExchangeFailure   Outcome = "EXCHANGE_FAILURE"
)

// Result is the single outcome of executing a command. Exactly one of the
// three variants applies, selected by Outcome:
//
//   - Success: OrderID (for placements), Details, and the query payload
//     fields Balance/Price/Position/Orders/Leverage as the command warrants
//   - ValidationFailure: Field and Reason, the command never reached the
//     exchange
//   - ExchangeFailure: Code, Message as reported by the exchange, and
//     Retryable telling the caller whether a retry is safe
type Result struct {
	Outcome Outcome `json:"outcome"`

	// Success payload
	OrderID  int64           `json:"order_id,omitempty"`
	Details  string          `json:"details,omitempty"`
	Balance  decimal.Decimal `json:"balance,omitempty"`
	Price    decimal.Decimal `json:"price,omitempty"`
	Position *Position       `json:"position,omitempty"`
	Orders   []OpenOrder     `json:"orders,omitempty"`
	Leverage int             `json:"leverage,omitempty"`

	// ValidationFailure payload
	Field  string `json:"field,omitempty"`
	Reason string `json:"reason,omitempty"`

	// ExchangeFailure payload
	Code      int    `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Position is the normalized view of an open position. Size is signed:
// positive for long, negative for short.
type Position struct {
	Symbol        string          `json:"symbol"`
	Size          decimal.Decimal `json:"size"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	MarkPrice     decimal.Decimal `json:"mark_price"`
	UnrealizedPnL decimal.Decimal `json:"unrealized_pnl"`
	Leverage      int             `json:"leverage"`
}

// OpenOrder is the normalized view of an open order
type OpenOrder struct {
	OrderID     int64           `json:"order_id"`
	Symbol      string          `json:"symbol"`
	Side        Side            `json:"side"`
	Type        string          `json:"type"`
	Price       decimal.Decimal `json:"price"`
	Quantity    decimal.Decimal `json:"quantity"`
	ExecutedQty decimal.Decimal `json:"executed_qty"`
	TimeInForce TimeInForce     `json:"time_in_force"`
	ReduceOnly  bool            `json:"reduce_only"`
	Status      string          `json:"status"`
}

// Succeeded builds a Success result with a free-form detail line
func Succeeded(details string) Result {
	return Result{Outcome: OutcomeSuccess, Details: details}
}

// Rejected builds a ValidationFailure naming the offending field
func Rejected(field, reason string) Result {
	return Result{Outcome: OutcomeValidationFailure, Field: field, Reason: reason}
}

// Failed builds an ExchangeFailure carrying the exchange's own code and
// message untranslated
func Failed(code int, message string, retryable bool) Result {
	return Result{Outcome: OutcomeExchangeFailure, Code: code, Message: message, Retryable: retryable}
}

// IsSuccess reports whether the command completed
func (r Result) IsSuccess() bool {
	return r.Outcome == OutcomeSuccess
}

// IsValidationFailure reports whether the command was rejected locally
func (r Result) IsValidationFailure() bool {
	return r.Outcome == OutcomeValidationFailure
}

// IsExchangeFailure reports whether the exchange or transport failed
func (r Result) IsExchangeFailure() bool {
	return r.Outcome == OutcomeExchangeFailure
}

// String renders the result for logs and CLI output
func (r Result) String() string {
	switch r.Outcome {
	case OutcomeSuccess:
		if r.OrderID != 0 {
			return fmt.Sprintf("success: order %d (%s)", r.OrderID, r.Details)
		}
		return fmt.Sprintf("success: %s", r.Details)
	case OutcomeValidationFailure:
		return fmt.Sprintf("rejected: %s %s", r.Field, r.Reason)
	case OutcomeExchangeFailure:
		return fmt.Sprintf("exchange failure %d: %s (retryable=%t)", r.Code, r.Message, r.Retryable)
	}
	return "unknown result"
}
