package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"
)

type runOptions struct {
	scene       string
	ticks       int
	save        string
	interactive bool
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	ro := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [module]",
		Short: "Attach a scene to a module and tick it",
		Long: `Load a module, attach every behavior of a scene inside one batch and run
the lifecycle: Awake, OnEnable and Start once, then FixedUpdate, Update and
LateUpdate per tick. The state of every behavior is printed at the end.

With -i the scene runs in an interactive terminal session where ticks,
enable/disable, saves and module reloads are driven by commands.

Without a module path the built-in demo module and scene are used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.cfg.Module
			if len(args) == 1 {
				path = args[0]
			}
			cfg := opts.cfg
			if ro.save != "" {
				cfg.SavePath = ro.save
			}

			if ro.interactive {
				if !term.IsTerminal(int(os.Stdout.Fd())) {
					return fmt.Errorf("interactive mode needs a terminal")
				}
				return runInteractive(cfg, path, ro.scene)
			}

			log, err := opts.logger()
			if err != nil {
				return err
			}
			ctx := context.Background()
			s, err := openSession(ctx, cfg, log, path, ro.scene)
			if err != nil {
				return err
			}
			defer s.close(ctx)

			s.tick(ctx, ro.ticks)
			fmt.Fprint(cmd.OutOrStdout(), s.snapshot())
			_ = log.Sync()
			return nil
		},
	}
	cmd.Flags().StringVarP(&ro.scene, "scene", "s", "", "scene file (YAML); defaults to the demo scene")
	cmd.Flags().IntVarP(&ro.ticks, "ticks", "n", 1, "frames to run")
	cmd.Flags().StringVar(&ro.save, "save", "", "SQLite file for saves (env: BRIDGE_SAVE_PATH)")
	cmd.Flags().BoolVarP(&ro.interactive, "interactive", "i", false, "interactive mode with TUI")
	return cmd
}

// quiet is the logger used while the TUI owns the terminal.
func quiet() *zap.Logger { return zap.NewNop() }
