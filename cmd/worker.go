package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/alumnijourney/apiserver/config"
	"github.com/alumnijourney/apiserver/internal/events"
	"github.com/alumnijourney/apiserver/internal/logger"
	"github.com/alumnijourney/apiserver/internal/mq"
	"github.com/spf13/cobra"
)

// workerCmd consumes domain events and logs them.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume domain events from the message queue",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		log := logger.New(cfg.Log)

		queue, err := mq.NewFromConfig(cmd.Context(), cfg.MQ)
		if err != nil {
			return err
		}
		if queue == nil {
			return fmt.Errorf("worker needs MQ_BACKEND to be set")
		}
		defer queue.Close()

		log.WithField("channel", cfg.MQ.Channel).Info("worker started")
		err = events.Consume(cmd.Context(), queue, cfg.MQ.Channel, log, events.LogHandler(log))
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		log.Info("worker stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
