/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fundraiseer/apiserver/config"
	"github.com/fundraiseer/apiserver/internal/logger"
	"github.com/fundraiseer/apiserver/internal/mailer"
	"github.com/fundraiseer/apiserver/internal/mq"
	"github.com/spf13/cobra"
)

// mailerCmd consumes notification events and delivers them as email.
var mailerCmd = &cobra.Command{
	Use:   "mailer",
	Short: "Deliver notification emails from the message queue",
	Long: `Subscribe to the notification channel and send each event as an email
over SMTP. Requires MQ_BACKEND to name a broker.

	apiserver mailer
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		backend, err := mq.Open(ctx, cfg.MQ)
		if err != nil {
			return err
		}
		if backend == nil {
			return errors.New("MQ_BACKEND must name a message broker")
		}
		defer backend.Close()

		consumer := mailer.NewConsumer(mailer.NewSMTPSender(cfg.SMTP))
		logger.Default().WithField("channel", cfg.MQ.NotificationChannel).Info("mailer subscribed")

		err = backend.Subscribe(ctx, cfg.MQ.NotificationChannel, consumer.Handle)
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("subscribe %s: %w", cfg.MQ.NotificationChannel, err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(mailerCmd)
}
