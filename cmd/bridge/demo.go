package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/wippyai/wasm-bridge/internal/demo"
	"github.com/wippyai/wasm-bridge/module"
)

func newDemoCmd(_ *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "demo <dir>",
		Short: "Write the demo module, symbols and scene to a directory",
		Long: `Write the built-in demo files so they can be edited and loaded back:

  demo.wasm      WebAssembly module
  demo.lua       the same types as a Lua script
  demo.lua.sym   debug symbols for the Lua script
  demo.yaml      scene attaching the demo types

Then run, for example:

  bridge run <dir>/demo.lua --scene <dir>/demo.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return err
			}
			files := []struct {
				name string
				data []byte
			}{
				{"demo.wasm", demo.Wasm()},
				{"demo.lua", demo.Lua()},
				{"demo.lua" + module.SymbolsSuffix, demo.Symbols()},
				{"demo.yaml", demo.Scene()},
			}
			for _, f := range files {
				path := filepath.Join(dir, f.name)
				if err := os.WriteFile(path, f.data, 0o644); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			}
			return nil
		},
	}
}
