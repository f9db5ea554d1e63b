package cli

import (
	"fmt"

	"listinggen/cmd/internal/app"
	"listinggen/cmd/internal/license"

	"github.com/spf13/cobra"
)

func newVerifyLicenseCmd() *cobra.Command {
	var planName string

	cmd := &cobra.Command{
		Use:   "verify-license <key>",
		Short: "Check a license key against the configured product",
		Long:  "Calls the licensing API once and prints the outcome. Does not increment the key's use count.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			plan, err := license.ParsePlan(planName)
			if err != nil {
				return err
			}
			cfg := app.LoadConfig()
			permalink := cfg.ListingConfig().Products.Permalink(plan)
			if permalink == "" {
				return fmt.Errorf("no product configured for plan %q", plan)
			}

			client := license.NewGumroadClient(cfg.LicenseVerifyTimeout, license.WithEndpoint(cfg.GumroadVerifyURL))
			res := client.Verify(cmd.Context(), permalink, args[0])

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "plan=%s result=%s status=%d\n", plan, res.Kind, res.Status)
			if res.Message != "" {
				fmt.Fprintf(out, "message=%q\n", res.Message)
			}
			if !res.OK() {
				return fmt.Errorf("license not verified: %s", res.Kind)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&planName, "plan", "p", string(license.PlanPro), "Plan to verify against (pro or byok)")
	return cmd
}
