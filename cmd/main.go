package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"papertrader/cmd/backtester"
	"papertrader/cmd/trader"
	"papertrader/src/database"
	"papertrader/src/security"
	"papertrader/src/server"
)

var Version string

func main() {
	app := cli.NewApp()
	app.Name = "Papertrader CMD"
	app.Usage = "The papertrader command line interface"

	app.Commands = []cli.Command{
		traderCMD,
		backtestCMD,
		serverCMD,
		encryptKeyCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	traderCMD = cli.Command{
		Name:        "trader",
		Usage:       "run the trading loop",
		Action:      traderAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Run the periodic trading cycle against the configured symbols`,
	}
	backtestCMD = cli.Command{
		Name:        "backtest",
		Usage:       "run a backtest",
		Action:      backtestAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Replay historical bars through the strategy and print the performance summary`,
	}
	serverCMD = cli.Command{
		Name:        "server",
		Usage:       "run the API server",
		Action:      serverAction,
		ArgsUsage:   "",
		Flags:       []cli.Flag{},
		Description: `Serve the account state, cycle controls, and websocket result stream`,
	}
	encryptKeyCMD = cli.Command{
		Name:        "encrypt_key",
		Usage:       "encrypt a provider API key",
		Action:      encryptKeyAction,
		ArgsUsage:   "<api-key>",
		Flags:       []cli.Flag{},
		Description: `Encrypt a provider API key for storage in the environment with the enc: prefix`,
	}
)

func traderAction(_ *cli.Context) error {

	logrus.Info("Starting trader CMD")
	logrus.WithField("cmd", "trader")

	t := &trader.Trader{}
	err := t.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func backtestAction(_ *cli.Context) error {

	logrus.Info("Starting backtest CMD")
	logrus.WithField("cmd", "backtest")

	b := &backtester.Backtester{}
	err := b.Start()
	if err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}

	return nil
}

func serverAction(_ *cli.Context) error {

	logrus.Info("Starting server CMD")
	logrus.WithField("cmd", "server")

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Error("Starting cmd")
		return err
	}
	server.StartServer("")

	return nil
}

func encryptKeyAction(c *cli.Context) error {
	key := c.Args().First()
	if key == "" {
		return errors.New("api key argument is required")
	}

	encrypted, err := security.EncryptString(key)
	if err != nil {
		logrus.WithError(err).Error("Failed to encrypt key")
		return err
	}

	fmt.Println("enc:" + encrypted)
	return nil
}
