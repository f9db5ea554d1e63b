package cli

import (
	"os"
	"os/signal"
	"syscall"

	"listinggen/cmd/internal/app"

	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP and websocket server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := app.LoadConfig()
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			return app.Run(ctx, cfg)
		},
	}
	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (default: $LISTINGGEN_HTTP_ADDR or 0.0.0.0:8080)")
	return cmd
}
