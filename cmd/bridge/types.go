package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.bytecodealliance.org/wit"

	"github.com/wippyai/wasm-bridge/module"
	"github.com/wippyai/wasm-bridge/runtime"
)

func newTypesCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "types [module]",
		Short: "List the types a module and the host define",
		Long: `Load a module and print every type it defines: base type, wrapped native
type, fields as WIT records and the lifecycle hooks it exports. Native
behaviors registered with the host are listed after them.

Without a module path the built-in demo module is used.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := opts.cfg.Module
			if len(args) == 1 {
				path = args[0]
			}
			log, err := opts.logger()
			if err != nil {
				return err
			}
			ctx := context.Background()
			rt, err := newRuntime(ctx, opts.cfg, log, path)
			if err != nil {
				return err
			}
			defer rt.Close(ctx)
			printTypes(cmd.OutOrStdout(), rt)
			return nil
		},
	}
}

func printTypes(w io.Writer, rt *runtime.Runtime) {
	d := rt.Domain()
	fmt.Fprintf(w, "%s %s (%s, generation %d)\n\n", titleStyle.Render("Module"), d.Name(), d.Format(), d.Generation())

	for _, def := range sortedTypes(d) {
		header := typeStyle.Render(def.Name)
		if def.BaseName() != "" {
			header += " : " + typeStyle.Render(def.BaseName())
		}
		if def.IsWrapper() {
			header += " wraps " + typeStyle.Render(def.Wraps)
		}
		fmt.Fprintln(w, header)

		if rec, ok := def.WitType().(*wit.TypeDef); ok {
			if r, ok := rec.Kind.(*wit.Record); ok {
				for _, f := range r.Fields {
					fmt.Fprintf(w, "  %s: %s\n", f.Name, witTypeStr(f.Type))
				}
			}
		}

		var hooks []string
		for _, h := range module.Hooks {
			if d.HasHook(def, h) {
				hooks = append(hooks, h.String())
			}
		}
		if len(hooks) > 0 {
			fmt.Fprintf(w, "  %s %s\n", helpStyle.Render("hooks"), funcStyle.Render(strings.Join(hooks, ", ")))
		}
		if loc, ok := d.Symbols().Locate(def.Name, ""); ok {
			fmt.Fprintf(w, "  %s %s\n", helpStyle.Render("defined at"), loc)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintln(w, titleStyle.Render("Native"))
	for _, name := range rt.Natives().Names() {
		line := typeStyle.Render(name)
		if bases := rt.Natives().Bases(name); len(bases) > 0 {
			line += " : " + strings.Join(bases, ", ")
		}
		fmt.Fprintln(w, line)
	}
}
