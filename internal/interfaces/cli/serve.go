package cli

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ryanyen2/Scholet/internal/bootstrap"
	"github.com/ryanyen2/Scholet/internal/infrastructure/monitoring/logging"
)

func newServeCmd() *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cliCtx, err := GetCLIContext(cmd)
			if err != nil {
				return err
			}
			cfg := cliCtx.Config
			if port > 0 {
				cfg.Server.Port = port
			}
			// The CLI logger is quiet by default; a server logs at its configured level.
			logger, err := logging.NewLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			api, err := bootstrap.NewAPI(ctx, cfg, Version, logger)
			if err != nil {
				return err
			}
			logger.Info("starting scholet api server",
				logging.String("version", Version),
				logging.String("addr", api.Server.Addr()))
			return api.Run(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "HTTP port (overrides config)")
	return cmd
}
