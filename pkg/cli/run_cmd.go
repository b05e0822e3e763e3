package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cube-sync/internal/config"
	"cube-sync/internal/connector"
	"cube-sync/internal/httpclient"
	"cube-sync/internal/platform"
)

func newRunCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Upload the table and build the cube",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(config.ActionRun)
			if err != nil {
				return err
			}
			return runSync(cmd, cfg)
		},
	}
}

func newTestConnectionCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection",
		Short: "Check that the platform accepts the configured credentials",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig(config.ActionTestConnection)
			if err != nil {
				return err
			}
			return testConnection(cmd, cfg)
		},
	}
}

// dispatch performs the action named in the configuration.
func dispatch(cmd *cobra.Command, cfg *config.Config) error {
	switch cfg.Action {
	case config.ActionRun:
		return runSync(cmd, cfg)
	case config.ActionTestConnection:
		return testConnection(cmd, cfg)
	default:
		return usageErrorf("unsupported action %q", cfg.Action)
	}
}

func checkConfig(cfg *config.Config) error {
	errs := cfg.Validate()
	if len(errs) == 0 {
		return nil
	}
	msgs := make([]string, len(errs))
	for i, e := range errs {
		msgs[i] = e.Error()
	}
	return usageErrorf("invalid configuration: %s", strings.Join(msgs, "; "))
}

func newConnector(cmd *cobra.Command, cfg *config.Config) *connector.Connector {
	logger := newLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogFormat)
	client := platform.NewClient(cfg.BaseURL(), platform.WithLogger(logger))
	return connector.New(cfg, client, logger)
}

func runSync(cmd *cobra.Command, cfg *config.Config) error {
	if err := checkConfig(cfg); err != nil {
		return err
	}
	res, err := newConnector(cmd, cfg).Run(cmd.Context())
	if err != nil {
		return err
	}
	if getOutputFormat(cmd) == "json" {
		return httpclient.PrintJSON(cmd.OutOrStdout(), map[string]string{
			"datamodel": res.Datamodel.OID,
			"dataset":   res.Dataset.OID,
			"table":     res.Table.OID,
		})
	}
	return nil
}

func testConnection(cmd *cobra.Command, cfg *config.Config) error {
	if err := checkConfig(cfg); err != nil {
		return err
	}
	out, err := newConnector(cmd, cfg).TestConnection(cmd.Context())
	if err != nil {
		return err
	}
	if err := httpclient.PrintJSON(cmd.OutOrStdout(), out); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
