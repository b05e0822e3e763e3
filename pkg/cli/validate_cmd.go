package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cube-sync/internal/config"
	"cube-sync/internal/httpclient"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	var action string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate config.json offline",
		Long:  "Reads config.json from the data directory and checks it for errors without contacting the platform.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(action)
			if err != nil {
				return err
			}

			validationErrs := cfg.Validate()
			if len(validationErrs) > 0 {
				if getOutputFormat(cmd) == "json" {
					errMsgs := make([]string, len(validationErrs))
					for i, ve := range validationErrs {
						errMsgs[i] = ve.Error()
					}
					if err := httpclient.PrintJSON(cmd.OutOrStdout(), map[string]interface{}{
						"valid":  false,
						"errors": errMsgs,
					}); err != nil {
						return err
					}
				} else {
					out := cmd.ErrOrStderr()
					_, _ = fmt.Fprintf(out, "Configuration has %d validation error(s):\n", len(validationErrs))
					for _, ve := range validationErrs {
						_, _ = fmt.Fprintf(out, "  - %s\n", ve.Error())
					}
				}
				return usageErrorf("configuration is invalid")
			}

			if getOutputFormat(cmd) == "json" {
				return httpclient.PrintJSON(cmd.OutOrStdout(), map[string]interface{}{
					"valid":  true,
					"action": cfg.Action,
				})
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Configuration is valid.")
			return nil
		},
	}

	cmd.Flags().StringVar(&action, "action", "",
		fmt.Sprintf("Validate for this action instead of the one in config.json (%s, %s)", config.ActionRun, config.ActionTestConnection))

	return cmd
}
