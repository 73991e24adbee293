package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli"

	"tradebot/internal/api"
	"tradebot/internal/metrics"
	"tradebot/internal/stream"
	"tradebot/internal/trading"
)

func commands() []cli.Command {
	symbolFlag := cli.StringFlag{
		Name:  "symbol, s",
		Usage: "trading pair, e.g. BTCUSDT (defaults to trading.default_symbol)",
	}

	return []cli.Command{
		{
			Name:  "order",
			Usage: "Place an order",
			Subcommands: []cli.Command{
				{
					Name:  "market",
					Usage: "Place a market order",
					Flags: []cli.Flag{
						symbolFlag,
						cli.StringFlag{Name: "side", Usage: "BUY or SELL"},
						cli.StringFlag{Name: "quantity, q", Usage: "order quantity"},
					},
					Action: marketOrderAction,
				},
				{
					Name:  "limit",
					Usage: "Place a limit order",
					Flags: []cli.Flag{
						symbolFlag,
						cli.StringFlag{Name: "side", Usage: "BUY or SELL"},
						cli.StringFlag{Name: "quantity, q", Usage: "order quantity"},
						cli.StringFlag{Name: "price, p", Usage: "limit price"},
						cli.StringFlag{Name: "tif", Value: "GTC", Usage: "time in force: GTC, IOC or FOK"},
					},
					Action: limitOrderAction,
				},
			},
		},
		{
			Name:  "cancel",
			Usage: "Cancel an open order by id",
			Flags: []cli.Flag{
				symbolFlag,
				cli.Int64Flag{Name: "order-id, i", Usage: "exchange order id"},
			},
			Action: cancelOrderAction,
		},
		{
			Name:   "cancel-all",
			Usage:  "Cancel all open orders for a symbol",
			Flags:  []cli.Flag{symbolFlag},
			Action: cancelAllAction,
		},
		{
			Name:  "leverage",
			Usage: "Set leverage for a symbol",
			Flags: []cli.Flag{
				symbolFlag,
				cli.IntFlag{Name: "leverage, l", Usage: "leverage between 1 and 125"},
			},
			Action: leverageAction,
		},
		{
			Name:   "close",
			Usage:  "Close the open position for a symbol at market",
			Flags:  []cli.Flag{symbolFlag},
			Action: closePositionAction,
		},
		{
			Name:  "balance",
			Usage: "Show the available balance for an asset",
			Flags: []cli.Flag{
				cli.StringFlag{Name: "asset, a", Value: "USDT", Usage: "asset symbol"},
			},
			Action: balanceAction,
		},
		{
			Name:   "price",
			Usage:  "Show the latest price for a symbol",
			Flags:  []cli.Flag{symbolFlag},
			Action: priceAction,
		},
		{
			Name:   "position",
			Usage:  "Show the open position for a symbol",
			Flags:  []cli.Flag{symbolFlag},
			Action: positionAction,
		},
		{
			Name:   "orders",
			Usage:  "List open orders for a symbol",
			Flags:  []cli.Flag{symbolFlag},
			Action: openOrdersAction,
		},
		{
			Name:   "watch",
			Usage:  "Stream live mark prices for the configured symbols",
			Flags:  []cli.Flag{symbolFlag},
			Action: watchAction,
		},
		{
			Name:   "serve",
			Usage:  "Run the HTTP API server",
			Action: serveAction,
		},
		{
			Name:   "menu",
			Usage:  "Interactive menu mode",
			Action: menuAction,
		},
	}
}

func marketOrderAction(c *cli.Context) error {
	env, err := setup(c)
	if err != nil {
		return err
	}

	quantity, err := decimal.NewFromString(c.String("quantity"))
	if err != nil {
		return fmt.Errorf("invalid quantity %q", c.String("quantity"))
	}

	cmd := trading.NewMarketOrder(env.symbol(c), trading.Side(strings.ToUpper(c.String("side"))), quantity)
	return env.execute(cmd)
}

func limitOrderAction(c *cli.Context) error {
	env, err := setup(c)
	if err != nil {
		return err
	}

	quantity, err := decimal.NewFromString(c.String("quantity"))
	if err != nil {
		return fmt.Errorf("invalid quantity %q", c.String("quantity"))
	}

	price, err := decimal.NewFromString(c.String("price"))
	if err != nil {
		return fmt.Errorf("invalid price %q", c.String("price"))
	}

	cmd := trading.NewLimitOrder(env.symbol(c), trading.Side(strings.ToUpper(c.String("side"))), quantity, price, trading.TimeInForce(strings.ToUpper(c.String("tif"))))
	return env.execute(cmd)
}

func cancelOrderAction(c *cli.Context) error {
	env, err := setup(c)
	if err != nil {
		return err
	}
	return env.execute(trading.NewCancelOrder(env.symbol(c), c.Int64("order-id")))
}

func cancelAllAction(c *cli.Context) error {
	env, err := setup(c)
	if err != nil {
		return err
	}
	return env.execute(trading.NewCancelAllOrders(env.symbol(c)))
}

func leverageAction(c *cli.Context) error {
	env, err := setup(c)
	if err != nil {
		return err
	}
	return env.execute(trading.NewSetLeverage(env.symbol(c), c.Int("leverage")))
}

func closePositionAction(c *cli.Context) error {
	env, err := setup(c)
	if err != nil {
		return err
	}
	return env.execute(trading.NewClosePosition(env.symbol(c)))
}

func balanceAction(c *cli.Context) error {
	env, err := setup(c)
	if err != nil {
		return err
	}
	return env.execute(trading.NewQueryBalance(c.String("asset")))
}

func priceAction(c *cli.Context) error {
	env, err := setup(c)
	if err != nil {
		return err
	}
	return env.execute(trading.NewQueryPrice(env.symbol(c)))
}

func positionAction(c *cli.Context) error {
	env, err := setup(c)
	if err != nil {
		return err
	}
	return env.execute(trading.NewQueryPosition(env.symbol(c)))
}

func openOrdersAction(c *cli.Context) error {
	env, err := setup(c)
	if err != nil {
		return err
	}
	return env.execute(trading.NewQueryOpenOrders(env.symbol(c)))
}

func watchAction(c *cli.Context) error {
	env, err := setup(c)
	if err != nil {
		return err
	}

	symbols := env.cfg.Trading.Symbols
	if s := c.String("symbol"); s != "" {
		symbols = []string{s}
	}

	markStream, err := stream.NewMarkPriceStream(env.cfg.Binance.WSBaseURL, symbols, func(e stream.MarkPriceEvent) {
		fmt.Printf("%s  %-10s mark=%s index=%s funding=%s\n",
			e.EventTime.Format("15:04:05"),
			e.Symbol,
			e.MarkPrice.StringFixed(2),
			e.IndexPrice.StringFixed(2),
			e.FundingRate.String(),
		)
	}, env.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Println("Watching mark prices (Ctrl-C to stop)")
	if err := markStream.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func serveAction(c *cli.Context) error {
	env, err := setup(c)
	if err != nil {
		return err
	}

	server, err := api.NewServer(env.cfg.Server, env.engine, metrics.NewCollector(), env.logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
	return nil
}

// symbol returns the symbol flag, falling back to the configured default
func (env *runtimeEnv) symbol(c *cli.Context) string {
	if s := c.String("symbol"); s != "" {
		return s
	}
	return env.cfg.Trading.DefaultSymbol
}

// execute runs one command and renders the result. Interrupting a
// mutating command mid-flight reports an unknown outcome rather than
// retrying.
func (env *runtimeEnv) execute(cmd trading.Command) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := env.engine.Execute(ctx, cmd)
	return printResult(cmd, result)
}

func printResult(cmd trading.Command, r trading.Result) error {
	switch r.Outcome {
	case trading.OutcomeSuccess:
		printSuccess(cmd, r)
		return nil
	case trading.OutcomeValidationFailure:
		return cli.NewExitError(fmt.Sprintf("rejected: %s %s", r.Field, r.Reason), 2)
	case trading.OutcomeExchangeFailure:
		msg := fmt.Sprintf("exchange failure %d: %s", r.Code, r.Message)
		if r.Retryable {
			msg += " (safe to retry)"
		}
		return cli.NewExitError(msg, 1)
	}
	return cli.NewExitError("unknown outcome", 1)
}

func printSuccess(cmd trading.Command, r trading.Result) {
	switch cmd.Kind {
	case trading.CmdQueryBalance:
		fmt.Printf("%s balance: %s\n", cmd.Asset, r.Balance.String())
	case trading.CmdQueryPrice:
		fmt.Printf("%s price: %s\n", cmd.Symbol, r.Price.String())
	case trading.CmdQueryPosition:
		if r.Position == nil {
			fmt.Printf("No open position for %s\n", cmd.Symbol)
			return
		}
		p := r.Position
		fmt.Printf("%s position:\n", p.Symbol)
		fmt.Printf("  size:           %s\n", p.Size.String())
		fmt.Printf("  entry price:    %s\n", p.EntryPrice.String())
		fmt.Printf("  mark price:     %s\n", p.MarkPrice.String())
		fmt.Printf("  unrealized pnl: %s\n", p.UnrealizedPnL.String())
		fmt.Printf("  leverage:       %dx\n", p.Leverage)
	case trading.CmdQueryOpenOrders:
		if len(r.Orders) == 0 {
			fmt.Printf("No open orders for %s\n", cmd.Symbol)
			return
		}
		fmt.Printf("Open orders for %s:\n", cmd.Symbol)
		for _, o := range r.Orders {
			fmt.Printf("  #%d  %-4s %-6s qty=%s price=%s filled=%s status=%s\n",
				o.OrderID, o.Side, o.Type, o.Quantity.String(), o.Price.String(), o.ExecutedQty.String(), o.Status)
		}
	default:
		if r.OrderID != 0 {
			fmt.Printf("OK: order %d (%s)\n", r.OrderID, r.Details)
			return
		}
		fmt.Printf("OK: %s\n", r.Details)
	}
}
