// Package cli implements the listinggen command line.
package cli

import (
	"context"

	"listinggen/cmd/internal/app"

	"github.com/spf13/cobra"
)

// NewRootCmd builds the command tree. Every subcommand writes to the
// command's configured output so tests can capture it.
func NewRootCmd() *cobra.Command {
	var envFiles []string

	root := &cobra.Command{
		Use:           "listinggen",
		Short:         "Property listing generator",
		Long:          "Compiles property listing prompts, gates generation behind license checks and serves the web API.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return app.LoadDotEnv(envFiles...)
		},
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "Dotenv files to load (default: .env)")

	root.AddCommand(
		newServeCmd(),
		newPromptCmd(),
		newHashOverrideCmd(),
		newVerifyLicenseCmd(),
		newAuditCmd(),
	)
	return root
}

// Execute runs the command tree with ctx.
func Execute(ctx context.Context, args []string) error {
	root := NewRootCmd()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}
