package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli"

	"tradebot/internal/trading"
)

// menuAction runs an interactive loop until the user quits. Each choice
// builds one command and prints its result; failures do not end the
// session.
func menuAction(c *cli.Context) error {
	env, err := setup(c)
	if err != nil {
		return err
	}

	reader := bufio.NewReader(os.Stdin)

	for {
		fmt.Println()
		fmt.Println("=== tradebot ===")
		fmt.Println(" 1. Show balance")
		fmt.Println(" 2. Show price")
		fmt.Println(" 3. Place market order")
		fmt.Println(" 4. Place limit order")
		fmt.Println(" 5. Cancel order")
		fmt.Println(" 6. Cancel all orders")
		fmt.Println(" 7. Show position")
		fmt.Println(" 8. Close position")
		fmt.Println(" 9. Show open orders")
		fmt.Println("10. Set leverage")
		fmt.Println(" 0. Quit")

		choice := prompt(reader, "Choice")
		if choice == "0" || choice == "q" {
			return nil
		}

		cmd, err := buildMenuCommand(env, reader, choice)
		if err != nil {
			fmt.Println("Error:", err)
			continue
		}

		if err := env.execute(cmd); err != nil {
			fmt.Println("Error:", err)
		}
	}
}

func buildMenuCommand(env *runtimeEnv, reader *bufio.Reader, choice string) (trading.Command, error) {
	switch choice {
	case "1":
		asset := prompt(reader, "Asset [USDT]")
		return trading.NewQueryBalance(asset), nil
	case "2":
		return trading.NewQueryPrice(promptSymbol(env, reader)), nil
	case "3":
		symbol := promptSymbol(env, reader)
		side, err := promptSide(reader)
		if err != nil {
			return trading.Command{}, err
		}
		quantity, err := promptDecimal(reader, "Quantity")
		if err != nil {
			return trading.Command{}, err
		}
		return trading.NewMarketOrder(symbol, side, quantity), nil
	case "4":
		symbol := promptSymbol(env, reader)
		side, err := promptSide(reader)
		if err != nil {
			return trading.Command{}, err
		}
		quantity, err := promptDecimal(reader, "Quantity")
		if err != nil {
			return trading.Command{}, err
		}
		price, err := promptDecimal(reader, "Price")
		if err != nil {
			return trading.Command{}, err
		}
		tif := trading.TimeInForce(strings.ToUpper(prompt(reader, "Time in force [GTC]")))
		return trading.NewLimitOrder(symbol, side, quantity, price, tif), nil
	case "5":
		symbol := promptSymbol(env, reader)
		raw := prompt(reader, "Order id")
		orderID, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return trading.Command{}, fmt.Errorf("invalid order id %q", raw)
		}
		return trading.NewCancelOrder(symbol, orderID), nil
	case "6":
		return trading.NewCancelAllOrders(promptSymbol(env, reader)), nil
	case "7":
		return trading.NewQueryPosition(promptSymbol(env, reader)), nil
	case "8":
		return trading.NewClosePosition(promptSymbol(env, reader)), nil
	case "9":
		return trading.NewQueryOpenOrders(promptSymbol(env, reader)), nil
	case "10":
		symbol := promptSymbol(env, reader)
		raw := prompt(reader, "Leverage")
		leverage, err := strconv.Atoi(raw)
		if err != nil {
			return trading.Command{}, fmt.Errorf("invalid leverage %q", raw)
		}
		return trading.NewSetLeverage(symbol, leverage), nil
	}
	return trading.Command{}, fmt.Errorf("unknown choice %q", choice)
}

func prompt(reader *bufio.Reader, label string) string {
	fmt.Printf("%s: ", label)
	line, _ := reader.ReadString('\n')
	return strings.TrimSpace(line)
}

func promptSymbol(env *runtimeEnv, reader *bufio.Reader) string {
	symbol := prompt(reader, fmt.Sprintf("Symbol [%s]", env.cfg.Trading.DefaultSymbol))
	if symbol == "" {
		return env.cfg.Trading.DefaultSymbol
	}
	return strings.ToUpper(symbol)
}

func promptSide(reader *bufio.Reader) (trading.Side, error) {
	raw := strings.ToUpper(prompt(reader, "Side (BUY/SELL)"))
	switch raw {
	case "BUY":
		return trading.SideBuy, nil
	case "SELL":
		return trading.SideSell, nil
	}
	return "", fmt.Errorf("side must be BUY or SELL, got %q", raw)
}

func promptDecimal(reader *bufio.Reader, label string) (decimal.Decimal, error) {
	raw := prompt(reader, label)
	value, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("invalid %s %q", strings.ToLower(label), raw)
	}
	return value, nil
}
