package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ncsdec/internal/cfg"
	"ncsdec/internal/ncs"
	"ncsdec/internal/output"
	"ncsdec/internal/render"
)

var (
	graphOut  string
	graphCall bool
)

var graphCmd = &cobra.Command{
	Use:   "graph <file.ncs>",
	Short: "Write Graphviz DOT for a script's control flow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		prog, err := ncs.Decode(data, variant())
		if err != nil {
			return err
		}
		var diags ncs.Diags
		funcs, err := cfg.Partition(prog, &diags)
		if err != nil {
			return err
		}

		base := output.Base(args[0])
		dir := graphOut
		if dir == "" {
			dir = "."
		}

		if graphCall {
			dot := render.CallGraphDOT(funcs, nil, base)
			path, err := output.WriteDOT(dir, base+".callgraph", dot)
			if err != nil {
				return err
			}
			fmt.Println(path)
			return nil
		}

		for _, f := range funcs {
			dot := render.CFGDOT(f, render.NASA)
			if dot == "" {
				continue
			}
			path, err := output.WriteDOT(dir, base+"."+f.Name, dot)
			if err != nil {
				return err
			}
			fmt.Println(path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().StringVarP(&graphOut, "output", "o", "", "output directory (default: current)")
	graphCmd.Flags().BoolVar(&graphCall, "callgraph", false, "emit one whole-script call graph instead of per-function CFGs")
}
