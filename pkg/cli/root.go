package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cube-sync/internal/domain"
	"cube-sync/internal/httpclient"
)

var (
	version = "dev"
	commit  = "none"
)

// Exit codes.
const (
	exitOK       = 0
	exitUser     = 1
	exitInternal = 2
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return exitOK
	}
	output, _ := rootCmd.PersistentFlags().GetString("output")
	reportError(os.Stdout, os.Stderr, output, err)
	return exitCode(err)
}

// exitCode maps an error to the process exit code: 1 for problems the
// operator can fix, 2 for everything else.
func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case domain.IsUserError(err), isUsageError(err):
		return exitUser
	default:
		return exitInternal
	}
}

func reportError(stdout, stderr io.Writer, output string, err error) {
	if output == "json" {
		errObj := map[string]interface{}{
			"error": err.Error(),
		}
		var apiErr *httpclient.APIError
		if errors.As(err, &apiErr) {
			errObj["http_status"] = apiErr.HTTPStatus
			errObj["code"] = apiErr.Code
		}
		_ = httpclient.PrintJSON(stdout, errObj)
		return
	}
	_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "cubesync",
		Short: "Synchronize a table into an analytics platform datamodel",
		Long: "Uploads a CSV table to the analytics platform, reconciles the datamodel, " +
			"dataset, table and relationships it belongs to, then builds the cube.\n\n" +
			"Without a subcommand the action named in config.json is performed.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.resolve(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.loadConfig("")
			if err != nil {
				return err
			}
			return dispatch(cmd, cfg)
		},
	}

	opts.bindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newTestConnectionCmd(opts))
	rootCmd.AddCommand(newValidateCmd(opts))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func newCompletionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return usageErrorf("unsupported shell: %s", args[0])
			}
		},
	}
	return cmd
}
