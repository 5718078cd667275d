package main

import (
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"member-assist/internal/config"
	"member-assist/internal/logging"
)

// localDevice keys the terminal client's state.
const localDevice = "local"

type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:          "member-assist",
		Short:        "Member support assistant for COOTRADECUN",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to a YAML config file")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level (overrides config)")
	root.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format: console or json (overrides config)")

	root.AddCommand(
		newServeCmd(opts),
		newLambdaCmd(opts),
		newChatCmd(opts),
		newArchiveCmd(opts),
		newRenderCmd(opts),
	)
	return root
}

// load reads the configuration and sets up logging on stderr.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if o.logFormat != "" {
		cfg.Log.Format = o.logFormat
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr()); err != nil {
		return nil, errors.Wrap(err, "setup logging")
	}
	return cfg, nil
}
