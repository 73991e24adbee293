package trading

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Precision caps matching the exchange's default quantity/price steps
const (
	maxQuantityPlaces = 3
	maxPricePlaces    = 2
)

// Leverage bounds for USD-M futures
const (
	minLeverage = 1
	maxLeverage = 125
)

// Rules holds the configured validation bounds. It is injected at
// construction and never read from the environment here.
type Rules struct {
	Symbols         []string
	MaxPositionSize decimal.Decimal
}

// Validator checks commands against static and configured rules. It is
// pure: no I/O, no state beyond the rules it was built with.
type Validator struct {
	whitelist map[string]bool
	maxSize   decimal.Decimal
}

// NewValidator builds a validator from the configured rules
func NewValidator(rules Rules) *Validator {
	whitelist := make(map[string]bool, len(rules.Symbols))
	for _, symbol := range rules.Symbols {
		whitelist[symbol] = true
	}
	return &Validator{
		whitelist: whitelist,
		maxSize:   rules.MaxPositionSize,
	}
}

// Validate checks a command and returns nil if it may be dispatched.
// Rules run in a fixed order and the first failure wins, so error
// messages are deterministic for a given command.
func (v *Validator) Validate(cmd Command) *ValidationError {
	if cmd.HasSymbol() {
		if cmd.Symbol == "" {
			return &ValidationError{Field: "symbol", Reason: "symbol is required"}
		}
		if !v.whitelist[cmd.Symbol] {
			return &ValidationError{Field: "symbol", Reason: "not in whitelist"}
		}
	}

	switch cmd.Kind {
	case CmdPlaceMarketOrder, CmdPlaceLimitOrder:
		return v.validateOrder(cmd)
	case CmdSetLeverage:
		if cmd.Leverage < minLeverage || cmd.Leverage > maxLeverage {
			return &ValidationError{
				Field:  "leverage",
				Reason: fmt.Sprintf("leverage must be between %d and %d", minLeverage, maxLeverage),
			}
		}
	case CmdCancelOrder:
		if cmd.OrderID <= 0 {
			return &ValidationError{Field: "order_id", Reason: "order id is required"}
		}
	}

	return nil
}

// validateOrder checks the fields shared by market and limit placements,
// then the limit-only fields. A price supplied on a market order is
// ignored, not rejected; it is simply never forwarded to the exchange.
func (v *Validator) validateOrder(cmd Command) *ValidationError {
	if cmd.Side != SideBuy && cmd.Side != SideSell {
		return &ValidationError{Field: "side", Reason: fmt.Sprintf("invalid side: %s", cmd.Side)}
	}

	if cmd.Quantity.LessThanOrEqual(decimal.Zero) {
		return &ValidationError{Field: "quantity", Reason: "quantity must be greater than zero"}
	}
	if !v.maxSize.IsZero() && cmd.Quantity.GreaterThan(v.maxSize) {
		return &ValidationError{
			Field:  "quantity",
			Reason: fmt.Sprintf("quantity exceeds maximum position size %s", v.maxSize.String()),
		}
	}
	if !cmd.Quantity.Equal(cmd.Quantity.Truncate(maxQuantityPlaces)) {
		return &ValidationError{
			Field:  "quantity",
			Reason: fmt.Sprintf("quantity precision exceeds %d decimal places", maxQuantityPlaces),
		}
	}

	if cmd.Kind == CmdPlaceLimitOrder {
		if cmd.Price.LessThanOrEqual(decimal.Zero) {
			return &ValidationError{Field: "price", Reason: "price must be greater than zero"}
		}
		if !cmd.Price.Equal(cmd.Price.Truncate(maxPricePlaces)) {
			return &ValidationError{
				Field:  "price",
				Reason: fmt.Sprintf("price precision exceeds %d decimal places", maxPricePlaces),
			}
		}
		switch cmd.TimeInForce {
		case TimeInForceGTC, TimeInForceIOC, TimeInForceFOK:
		default:
			return &ValidationError{
				Field:  "time_in_force",
				Reason: fmt.Sprintf("invalid time in force: %s", cmd.TimeInForce),
			}
		}
	}

	return nil
}

// ValidationError names the offending field with a human-readable reason
type ValidationError struct {
	Field  string
	Reason string
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error in %q: %s", e.Field, e.Reason)
}
