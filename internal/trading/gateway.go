package trading

import (
	"context"

	"tradebot/internal/binance"
)

// Gateway is the narrow exchange capability the engine depends on.
// *binance.Client satisfies it; tests use a deterministic stub. Transport
// details (signing, rate limits, retry policy for idempotent reads) live
// behind this boundary.
type Gateway interface {
	PlaceOrder(ctx context.Context, req *binance.OrderRequest) (*binance.OrderResponse, error)
	CancelOrder(ctx context.Context, symbol string, orderID int64) (*binance.CancelResponse, error)
	CancelAllOrders(ctx context.Context, symbol string) error
	SetLeverage(ctx context.Context, symbol string, leverage int) (*binance.LeverageResponse, error)
	GetBalances(ctx context.Context) ([]binance.AssetBalance, error)
	GetPrice(ctx context.Context, symbol string) (*binance.TickerPrice, error)
	GetPositionRisk(ctx context.Context, symbol string) ([]binance.PositionRisk, error)
	GetOpenOrders(ctx context.Context, symbol string) ([]binance.Order, error)
}
