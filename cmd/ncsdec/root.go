package main

import (
	goflag "flag"
	"fmt"

	"github.com/spf13/cobra"

	"ncsdec/internal/ncs"
)

var gameVariant string

var rootCmd = &cobra.Command{
	Use:   "ncsdec",
	Short: "Decompile compiled NCS scripts back to editable source",
	Long: `ncsdec reconstructs script source from compiled NCS bytecode.
It targets the two game releases' VM variants and emits source a
modder can edit and recompile.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if !variant().Known() {
			return fmt.Errorf("unknown game variant %q (want k1 or k2)", gameVariant)
		}
		return nil
	},
}

func variant() ncs.Variant {
	return ncs.Variant(gameVariant)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&gameVariant, "game", "g", "k1", "game variant: k1 or k2")
	// glog registers its flags (-v, -logtostderr, ...) on the standard set.
	rootCmd.PersistentFlags().AddGoFlagSet(goflag.CommandLine)
}
