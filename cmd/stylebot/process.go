package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/memohai/stylebot/internal/config"
	"github.com/memohai/stylebot/internal/logger"
	"github.com/memohai/stylebot/internal/media"
	"github.com/memohai/stylebot/internal/pipeline"
)

func newProcessCommand(configPath *string) *cobra.Command {
	var messageSID string

	cmd := &cobra.Command{
		Use:   "process <image-url>",
		Short: "Stylize one image and print the public result URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger.Init(cfg.Log.Level, cfg.Log.Format)
			log := logger.L

			if messageSID == "" {
				messageSID = "cli-" + uuid.NewString()
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			provider, err := newStorageProvider(ctx, cfg)
			if err != nil {
				return err
			}
			p := pipeline.New(log, pipelineConfig(cfg), nil,
				provideStylizer(log, cfg),
				media.NewService(log, provider),
				nil,
			)
			url, err := p.Process(ctx, args[0], messageSID)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		},
	}
	cmd.Flags().StringVar(&messageSID, "sid", "", "message id used in object keys (default: random)")
	return cmd
}
