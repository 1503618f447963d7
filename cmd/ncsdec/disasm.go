package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ncsdec/internal/ncs"
	"ncsdec/internal/output"
)

var disasmOut string

var disasmCmd = &cobra.Command{
	Use:   "disasm <file.ncs>",
	Short: "Print or write an instruction listing",
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
		if disasmOut == "" {
			fmt.Print(ncs.Format(prog.Insts))
			return nil
		}
		path, err := output.WriteListing(disasmOut, output.Base(args[0]), prog.Insts)
		if err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(disasmCmd)
	disasmCmd.Flags().StringVarP(&disasmOut, "output", "o", "", "write <base>.pcode.txt into this directory")
}
