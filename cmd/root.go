package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kleverhq/appilot/internal/config"
	"github.com/kleverhq/appilot/internal/observability"
)

var (
	cfgFile string

	// cfg is populated by the root PersistentPreRunE and read by every
	// subcommand.
	cfg *config.Config
)

// NewRootCommand builds a fresh command tree. A new tree per invocation keeps
// flag state from leaking between runs in tests.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:     "appilot",
		Short:   "Appilot drives phone and web UIs with a vision language model.",
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := loadConfig()
			if err != nil {
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "appilot"})
				return err
			}
			cfg = loaded

			observability.InitializeLogger(cfg.Logger())
			observability.GetLogger().Info("starting appilot", zap.String("version", Version))
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(newRunCommand())
	root.AddCommand(newCheckCommand())
	return root
}

// Execute runs the command tree under the given context. The caller maps the
// returned error to the process exit code.
func Execute(ctx context.Context) error {
	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("command failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
		return err
	}
	return nil
}

// resolveConfigPath returns the explicit --config path, or ./config.yaml when
// present, or "" for defaults plus environment. Every config load in the
// process goes through this so flag overrides and the initial load see the
// same file.
func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if _, err := os.Stat("config.yaml"); err == nil {
		return "config.yaml"
	}
	return ""
}

func loadConfig() (*config.Config, error) {
	return config.Load(resolveConfigPath())
}
