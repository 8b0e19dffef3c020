package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/resolve"
	"github.com/wippyai/wasm-bridge/runtime"
)

type rootOptions struct {
	verbose bool
	mode    string
	cfg     runtime.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "bridge",
		Short: "Bridge host behaviors to hot-swappable modules",
		Long: `bridge loads a module (WebAssembly or Lua), resolves its types next to the
native behaviors compiled into the host, and drives scenes built from both.

Configuration is read from BRIDGE_* environment variables; flags override them.`,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.load(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log debug output to stderr")
	cmd.PersistentFlags().StringVar(&opts.mode, "mode", "", "type universe for logical names: native or module (env: BRIDGE_MODE)")

	cmd.AddCommand(newTypesCmd(opts))
	cmd.AddCommand(newRunCmd(opts))
	cmd.AddCommand(newDemoCmd(opts))
	return cmd
}

func (o *rootOptions) load(cmd *cobra.Command) error {
	cfg, err := runtime.LoadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("mode") {
		m, err := resolve.ParseMode(o.mode)
		if err != nil {
			return err
		}
		cfg.Mode = m
	}
	if o.verbose {
		cfg.LogLevel = "debug"
	}
	o.cfg = cfg
	return nil
}

func (o *rootOptions) logger() (*zap.Logger, error) {
	if o.verbose {
		return zap.NewDevelopment()
	}
	return runtime.NewLogger(o.cfg)
}
