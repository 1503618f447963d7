package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ncsdec/internal/cfg"
	"ncsdec/internal/ncs"
)

var infoCmd = &cobra.Command{
	Use:   "info <file.ncs>",
	Short: "Summarize a compiled script's layout",
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

		fmt.Printf("variant:      %s\n", prog.Variant)
		fmt.Printf("length:       %d bytes\n", prog.Length)
		fmt.Printf("instructions: %d\n", len(prog.Insts))
		fmt.Printf("functions:    %d\n", len(funcs))
		for _, f := range funcs {
			fmt.Printf("  %-14s entry 0x%05x  %3d block(s)  %2d call(s)\n",
				f.Name, f.EntryOffset, len(f.Blocks), len(f.Calls))
		}
		actions := 0
		for _, in := range prog.Insts {
			if in.Op == ncs.OpACTION {
				actions++
			}
		}
		fmt.Printf("engine calls: %d\n", actions)
		for _, d := range diags.Items() {
			fmt.Fprintln(os.Stderr, d)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
