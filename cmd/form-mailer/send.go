package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shineum/form-mailer-lite/internal/relay"
)

func sendCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "send <recipient>",
		Short: "Send the configured message to one recipient and print the outcome",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*configPath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			svc := relay.NewService(opener(cfg), cfg.Defaults())
			svc.Startup(ctx)
			defer svc.Shutdown()

			outcome, err := svc.Send(ctx, args[0])
			if err != nil {
				return fmt.Errorf("send failed: %w", err)
			}

			out, err := json.MarshalIndent(outcome, "", "    ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
}
