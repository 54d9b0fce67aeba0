package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kleverhq/appilot/internal/gateway"
	"github.com/kleverhq/appilot/internal/observability"
)

func newCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify that the model gateway is reachable",
		Long:  "Check sends a minimal request to the configured gateway so credential and endpoint problems surface before a real run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := gateway.New(cfg.Gateway(), observability.GetLogger())
			if err != nil {
				return err
			}
			if err := gw.Check(cmd.Context()); err != nil {
				return fmt.Errorf("gateway check failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "gateway ok: %s (%s)\n", cfg.Gateway().Provider, cfg.Gateway().Model)
			return nil
		},
	}
}
