package trader

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"papertrader/src/database"
	"papertrader/src/executors"
)

type Trader struct{}

func (t *Trader) Start() error {
	config := executors.GetConfig()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		os.Interrupt,
		syscall.SIGTERM,
	)
	defer stop()

	if err := database.InitMainDB(); err != nil {
		logrus.WithError(err).Fatal("Failed to connect to main database")
		return err
	}

	logrus.WithField("symbols", config.Symbols).Info("Starting trading loop")

	if err := executors.StartLoop(ctx); err != nil {
		logrus.WithError(err).Error("Failed to start trading loop")
		return err
	}

	return nil
}
