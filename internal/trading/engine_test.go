package trading

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradebot/internal/auth"
	"tradebot/internal/binance"
)

// stubGateway is a deterministic Gateway implementation recording every
// invocation
type stubGateway struct {
	placeResp  *binance.OrderResponse
	placeErr   error
	placeCalls int
	lastPlaced *binance.OrderRequest

	cancelResp  *binance.CancelResponse
	cancelErr   error
	cancelCalls int

	cancelAllErr   error
	cancelAllCalls int

	leverageResp *binance.LeverageResponse
	leverageErr  error

	balances    []binance.AssetBalance
	balancesErr error

	ticker    *binance.TickerPrice
	tickerErr error

	positions    []binance.PositionRisk
	positionsErr error

	openOrders    []binance.Order
	openOrdersErr error
}

func (s *stubGateway) PlaceOrder(_ context.Context, req *binance.OrderRequest) (*binance.OrderResponse, error) {
	s.placeCalls++
	s.lastPlaced = req
	if s.placeErr != nil {
		return nil, s.placeErr
	}
	return s.placeResp, nil
}

func (s *stubGateway) CancelOrder(_ context.Context, _ string, _ int64) (*binance.CancelResponse, error) {
	s.cancelCalls++
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	return s.cancelResp, nil
}

func (s *stubGateway) CancelAllOrders(_ context.Context, _ string) error {
	s.cancelAllCalls++
	return s.cancelAllErr
}

func (s *stubGateway) SetLeverage(_ context.Context, _ string, _ int) (*binance.LeverageResponse, error) {
	if s.leverageErr != nil {
		return nil, s.leverageErr
	}
	return s.leverageResp, nil
}

func (s *stubGateway) GetBalances(_ context.Context) ([]binance.AssetBalance, error) {
	return s.balances, s.balancesErr
}

func (s *stubGateway) GetPrice(_ context.Context, _ string) (*binance.TickerPrice, error) {
	if s.tickerErr != nil {
		return nil, s.tickerErr
	}
	return s.ticker, nil
}

func (s *stubGateway) GetPositionRisk(_ context.Context, _ string) ([]binance.PositionRisk, error) {
	return s.positions, s.positionsErr
}

func (s *stubGateway) GetOpenOrders(_ context.Context, _ string) ([]binance.Order, error) {
	return s.openOrders, s.openOrdersErr
}

func newTestEngine(gateway Gateway) *Engine {
	return NewEngine(gateway, NewValidator(testRules()), zerolog.Nop())
}

func TestExecute_ValidationStopsDispatch(t *testing.T) {
	t.Run("non-positive quantity never reaches the gateway", func(t *testing.T) {
		for _, quantity := range []decimal.Decimal{decimal.Zero, decimal.NewFromFloat(-0.001)} {
			gateway := &stubGateway{}
			engine := newTestEngine(gateway)

			result := engine.Execute(context.Background(), NewMarketOrder("BTCUSDT", SideBuy, quantity))

			assert.True(t, result.IsValidationFailure())
			assert.Equal(t, "quantity", result.Field)
			assert.Equal(t, 0, gateway.placeCalls)
		}
	})

	t.Run("out of range leverage never reaches the gateway", func(t *testing.T) {
		gateway := &stubGateway{}
		engine := newTestEngine(gateway)

		result := engine.Execute(context.Background(), NewSetLeverage("BTCUSDT", 126))

		assert.True(t, result.IsValidationFailure())
		assert.Equal(t, "leverage", result.Field)
	})

	t.Run("unknown symbol rejected with zero gateway invocations", func(t *testing.T) {
		gateway := &stubGateway{}
		engine := newTestEngine(gateway)

		result := engine.Execute(context.Background(), NewMarketOrder("INVALID", SideBuy, decimal.NewFromFloat(0.001)))

		assert.True(t, result.IsValidationFailure())
		assert.Equal(t, "symbol", result.Field)
		assert.Equal(t, "not in whitelist", result.Reason)
		assert.Equal(t, 0, gateway.placeCalls)
	})
}

func TestExecute_PlaceLimitOrder(t *testing.T) {
	gateway := &stubGateway{
		placeResp: &binance.OrderResponse{
			OrderID: 12345678,
			Symbol:  "BTCUSDT",
			Status:  "NEW",
		},
	}
	engine := newTestEngine(gateway)

	cmd := NewLimitOrder("BTCUSDT", SideBuy, decimal.NewFromFloat(0.001), decimal.NewFromInt(30000), TimeInForceGTC)
	result := engine.Execute(context.Background(), cmd)

	require.True(t, result.IsSuccess())
	assert.Equal(t, int64(12345678), result.OrderID)
	assert.Equal(t, 1, gateway.placeCalls)

	require.NotNil(t, gateway.lastPlaced)
	assert.Equal(t, "LIMIT", gateway.lastPlaced.Type)
	assert.Equal(t, "GTC", gateway.lastPlaced.TimeInForce)
	assert.True(t, gateway.lastPlaced.Price.Equal(decimal.NewFromInt(30000)))
	assert.NotEmpty(t, gateway.lastPlaced.NewClientOrderID)
}

func TestExecute_PlaceMarketOrder(t *testing.T) {
	t.Run("caller-supplied price is not forwarded", func(t *testing.T) {
		gateway := &stubGateway{
			placeResp: &binance.OrderResponse{OrderID: 42, Status: "FILLED"},
		}
		engine := newTestEngine(gateway)

		cmd := NewMarketOrder("ETHUSDT", SideSell, decimal.NewFromFloat(0.5))
		cmd.Price = decimal.NewFromInt(2000)
		result := engine.Execute(context.Background(), cmd)

		require.True(t, result.IsSuccess())
		assert.Equal(t, "MARKET", gateway.lastPlaced.Type)
		assert.True(t, gateway.lastPlaced.Price.IsZero())
		assert.Empty(t, gateway.lastPlaced.TimeInForce)
	})

	t.Run("exchange rejection is not retryable", func(t *testing.T) {
		gateway := &stubGateway{
			placeErr: &binance.APIError{Code: -2019, Message: "Margin is insufficient.", HTTPStatus: 400},
		}
		engine := newTestEngine(gateway)

		result := engine.Execute(context.Background(), NewMarketOrder("BTCUSDT", SideBuy, decimal.NewFromFloat(0.001)))

		require.True(t, result.IsExchangeFailure())
		assert.Equal(t, -2019, result.Code)
		assert.Equal(t, "Margin is insufficient.", result.Message)
		assert.False(t, result.Retryable)
	})

	t.Run("transport timeout is retryable", func(t *testing.T) {
		gateway := &stubGateway{
			placeErr: fmt.Errorf("Post \"/fapi/v1/order\": request timeout"),
		}
		engine := newTestEngine(gateway)

		result := engine.Execute(context.Background(), NewMarketOrder("BTCUSDT", SideBuy, decimal.NewFromFloat(0.001)))

		require.True(t, result.IsExchangeFailure())
		assert.True(t, result.Retryable)
	})

	t.Run("5xx is retryable", func(t *testing.T) {
		gateway := &stubGateway{
			placeErr: &binance.APIError{Code: -1000, Message: "An unknown error occurred", HTTPStatus: 503},
		}
		engine := newTestEngine(gateway)

		result := engine.Execute(context.Background(), NewMarketOrder("BTCUSDT", SideBuy, decimal.NewFromFloat(0.001)))

		require.True(t, result.IsExchangeFailure())
		assert.True(t, result.Retryable)
	})
}

func TestExecute_CancelOrder(t *testing.T) {
	t.Run("cancel acknowledged", func(t *testing.T) {
		gateway := &stubGateway{
			cancelResp: &binance.CancelResponse{OrderID: 999, Status: "CANCELED"},
		}
		engine := newTestEngine(gateway)

		result := engine.Execute(context.Background(), NewCancelOrder("BTCUSDT", 999))

		require.True(t, result.IsSuccess())
		assert.Equal(t, int64(999), result.OrderID)
	})

	t.Run("order not found gets a distinct non-retryable reason", func(t *testing.T) {
		gateway := &stubGateway{
			cancelErr: &binance.APIError{Code: -2011, Message: "Unknown order sent.", HTTPStatus: 400},
		}
		engine := newTestEngine(gateway)

		result := engine.Execute(context.Background(), NewCancelOrder("BTCUSDT", 999))

		require.True(t, result.IsExchangeFailure())
		assert.False(t, result.Retryable)
		assert.Contains(t, result.Message, "not found")
		assert.Contains(t, result.Message, "already filled or cancelled")
	})

	t.Run("cancelled context reports outcome unknown", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		gateway := &stubGateway{cancelErr: context.Canceled}
		engine := newTestEngine(gateway)

		result := engine.Execute(ctx, NewCancelOrder("BTCUSDT", 999))

		require.True(t, result.IsExchangeFailure())
		assert.False(t, result.Retryable)
		assert.Contains(t, result.Message, "outcome unknown")
	})
}

func TestExecute_CancelAllOrders(t *testing.T) {
	gateway := &stubGateway{}
	engine := newTestEngine(gateway)

	result := engine.Execute(context.Background(), NewCancelAllOrders("BTCUSDT"))

	require.True(t, result.IsSuccess())
	assert.Equal(t, 1, gateway.cancelAllCalls)
	assert.Contains(t, result.Details, "all open orders cancelled")
}

func TestExecute_SetLeverage(t *testing.T) {
	// The exchange may clamp; the engine surfaces the confirmed value
	gateway := &stubGateway{
		leverageResp: &binance.LeverageResponse{Leverage: 20, Symbol: "BTCUSDT"},
	}
	engine := newTestEngine(gateway)

	result := engine.Execute(context.Background(), NewSetLeverage("BTCUSDT", 25))

	require.True(t, result.IsSuccess())
	assert.Equal(t, 20, result.Leverage)
}

func TestExecute_ClosePosition(t *testing.T) {
	t.Run("no open position succeeds without placing orders", func(t *testing.T) {
		gateway := &stubGateway{
			positions: []binance.PositionRisk{
				{Symbol: "BTCUSDT", PositionAmt: decimal.Zero},
			},
		}
		engine := newTestEngine(gateway)

		result := engine.Execute(context.Background(), NewClosePosition("BTCUSDT"))

		require.True(t, result.IsSuccess())
		assert.Contains(t, result.Details, "no open position")
		assert.Equal(t, 0, gateway.placeCalls)
	})

	t.Run("long position closed with one market sell", func(t *testing.T) {
		gateway := &stubGateway{
			positions: []binance.PositionRisk{
				{Symbol: "BTCUSDT", PositionAmt: decimal.NewFromFloat(0.5), Leverage: "10"},
			},
			placeResp: &binance.OrderResponse{OrderID: 777, Status: "FILLED"},
		}
		engine := newTestEngine(gateway)

		result := engine.Execute(context.Background(), NewClosePosition("BTCUSDT"))

		require.True(t, result.IsSuccess())
		assert.Equal(t, int64(777), result.OrderID)
		assert.Equal(t, 1, gateway.placeCalls)

		require.NotNil(t, gateway.lastPlaced)
		assert.Equal(t, "BTCUSDT", gateway.lastPlaced.Symbol)
		assert.Equal(t, "SELL", gateway.lastPlaced.Side)
		assert.Equal(t, "MARKET", gateway.lastPlaced.Type)
		assert.True(t, gateway.lastPlaced.Quantity.Equal(decimal.NewFromFloat(0.5)))
		assert.True(t, gateway.lastPlaced.ReduceOnly)
	})

	t.Run("short position closed with a market buy", func(t *testing.T) {
		gateway := &stubGateway{
			positions: []binance.PositionRisk{
				{Symbol: "ETHUSDT", PositionAmt: decimal.NewFromFloat(-2), Leverage: "5"},
			},
			placeResp: &binance.OrderResponse{OrderID: 778, Status: "FILLED"},
		}
		engine := newTestEngine(gateway)

		result := engine.Execute(context.Background(), NewClosePosition("ETHUSDT"))

		require.True(t, result.IsSuccess())
		assert.Equal(t, "BUY", gateway.lastPlaced.Side)
		assert.True(t, gateway.lastPlaced.Quantity.Equal(decimal.NewFromInt(2)))
	})

	t.Run("race with a fill surfaces the rejection", func(t *testing.T) {
		// Position read succeeds but the offsetting order is rejected
		// because the position moved in between
		gateway := &stubGateway{
			positions: []binance.PositionRisk{
				{Symbol: "BTCUSDT", PositionAmt: decimal.NewFromFloat(0.5), Leverage: "10"},
			},
			placeErr: &binance.APIError{Code: -2022, Message: "ReduceOnly Order is rejected.", HTTPStatus: 400},
		}
		engine := newTestEngine(gateway)

		result := engine.Execute(context.Background(), NewClosePosition("BTCUSDT"))

		require.True(t, result.IsExchangeFailure())
		assert.Equal(t, -2022, result.Code)
		assert.False(t, result.Retryable)
		assert.Equal(t, 1, gateway.placeCalls)
	})
}

func TestExecute_Queries(t *testing.T) {
	t.Run("balance found", func(t *testing.T) {
		gateway := &stubGateway{
			balances: []binance.AssetBalance{
				{Asset: "BNB", AvailableBalance: decimal.NewFromInt(3)},
				{Asset: "USDT", AvailableBalance: decimal.NewFromFloat(1250.75)},
			},
		}
		engine := newTestEngine(gateway)

		result := engine.Execute(context.Background(), NewQueryBalance("USDT"))

		require.True(t, result.IsSuccess())
		assert.True(t, result.Balance.Equal(decimal.NewFromFloat(1250.75)))
	})

	t.Run("missing asset reads as zero", func(t *testing.T) {
		gateway := &stubGateway{balances: []binance.AssetBalance{}}
		engine := newTestEngine(gateway)

		result := engine.Execute(context.Background(), NewQueryBalance("XRP"))

		require.True(t, result.IsSuccess())
		assert.True(t, result.Balance.IsZero())
	})

	t.Run("price passes through", func(t *testing.T) {
		gateway := &stubGateway{
			ticker: &binance.TickerPrice{Symbol: "BTCUSDT", Price: decimal.NewFromFloat(30123.45)},
		}
		engine := newTestEngine(gateway)

		result := engine.Execute(context.Background(), NewQueryPrice("BTCUSDT"))

		require.True(t, result.IsSuccess())
		assert.True(t, result.Price.Equal(decimal.NewFromFloat(30123.45)))
	})

	t.Run("position is normalized", func(t *testing.T) {
		gateway := &stubGateway{
			positions: []binance.PositionRisk{
				{
					Symbol:           "BTCUSDT",
					PositionAmt:      decimal.NewFromFloat(0.25),
					EntryPrice:       decimal.NewFromInt(29000),
					MarkPrice:        decimal.NewFromInt(30000),
					UnRealizedProfit: decimal.NewFromInt(250),
					Leverage:         "10",
				},
			},
		}
		engine := newTestEngine(gateway)

		result := engine.Execute(context.Background(), NewQueryPosition("BTCUSDT"))

		require.True(t, result.IsSuccess())
		require.NotNil(t, result.Position)
		assert.True(t, result.Position.Size.Equal(decimal.NewFromFloat(0.25)))
		assert.Equal(t, 10, result.Position.Leverage)
	})

	t.Run("zero-amount rows are filtered", func(t *testing.T) {
		gateway := &stubGateway{
			positions: []binance.PositionRisk{
				{Symbol: "BTCUSDT", PositionAmt: decimal.Zero},
			},
		}
		engine := newTestEngine(gateway)

		result := engine.Execute(context.Background(), NewQueryPosition("BTCUSDT"))

		require.True(t, result.IsSuccess())
		assert.Nil(t, result.Position)
		assert.Contains(t, result.Details, "no open position")
	})

	t.Run("open orders are normalized", func(t *testing.T) {
		gateway := &stubGateway{
			openOrders: []binance.Order{
				{
					OrderID:     1,
					Symbol:      "BTCUSDT",
					Side:        "BUY",
					Type:        "LIMIT",
					Price:       decimal.NewFromInt(29000),
					OrigQty:     decimal.NewFromFloat(0.01),
					TimeInForce: "GTC",
					Status:      "NEW",
				},
			},
		}
		engine := newTestEngine(gateway)

		result := engine.Execute(context.Background(), NewQueryOpenOrders("BTCUSDT"))

		require.True(t, result.IsSuccess())
		require.Len(t, result.Orders, 1)
		assert.Equal(t, SideBuy, result.Orders[0].Side)
		assert.Equal(t, TimeInForceGTC, result.Orders[0].TimeInForce)
	})

	t.Run("query failure surfaces the gateway error", func(t *testing.T) {
		gateway := &stubGateway{
			balancesErr: errors.New("connection refused"),
		}
		engine := newTestEngine(gateway)

		result := engine.Execute(context.Background(), NewQueryBalance("USDT"))

		require.True(t, result.IsExchangeFailure())
		assert.True(t, result.Retryable)
	})
}

func TestExecute_ExactlyOneResult(t *testing.T) {
	// Every variant terminates in exactly one result, even with a gateway
	// that fails everything
	boom := errors.New("boom")
	gateway := &stubGateway{
		placeErr:      boom,
		cancelErr:     boom,
		cancelAllErr:  boom,
		leverageErr:   boom,
		balancesErr:   boom,
		tickerErr:     boom,
		positionsErr:  boom,
		openOrdersErr: boom,
	}
	engine := newTestEngine(gateway)

	commands := []Command{
		NewMarketOrder("BTCUSDT", SideBuy, decimal.NewFromFloat(0.001)),
		NewLimitOrder("BTCUSDT", SideSell, decimal.NewFromFloat(0.001), decimal.NewFromInt(31000), TimeInForceFOK),
		NewCancelOrder("BTCUSDT", 5),
		NewCancelAllOrders("BTCUSDT"),
		NewSetLeverage("BTCUSDT", 10),
		NewClosePosition("BTCUSDT"),
		NewQueryBalance("USDT"),
		NewQueryPrice("BTCUSDT"),
		NewQueryPosition("BTCUSDT"),
		NewQueryOpenOrders("BTCUSDT"),
	}

	for _, cmd := range commands {
		result := engine.Execute(context.Background(), cmd)
		assert.True(t, result.IsExchangeFailure(), "command %s", cmd.Kind)
		assert.NotEmpty(t, result.Message, "command %s", cmd.Kind)
	}
}

// The HTTP client's own timeout satisfies errors.Is(err,
// context.DeadlineExceeded), so classification must not confuse it with
// a caller-side deadline: with the caller's context still live it is a
// transport failure and retrying is safe.
func TestExecute_GatewayTimeoutRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	signer, err := auth.NewSigner(
		"vmPUZE6mv9SD5VNHk4HlWFsOr6aKE2zvsw0MuIgwCIPy6utIco14y7Ju91duEh8A",
		"NhqPtmdSJYdKjVHjA7PZj4Mge3R5YNiP1e3UZjInClVN65XAbvqqM6A7H5fATj0j",
	)
	require.NoError(t, err)

	client, err := binance.NewClient(server.URL, signer, binance.WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	engine := NewEngine(client, NewValidator(Rules{Symbols: []string{"BTCUSDT"}}), zerolog.Nop())

	result := engine.Execute(context.Background(), NewMarketOrder("BTCUSDT", SideBuy, decimal.NewFromFloat(0.001)))

	require.True(t, result.IsExchangeFailure())
	assert.True(t, result.Retryable)
	assert.Contains(t, result.Message, "deadline exceeded")
}
