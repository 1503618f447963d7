package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/davecgh/go-spew/spew"
	"github.com/golang/glog"
	"github.com/spf13/cobra"

	"ncsdec/internal/decompiler"
	"ncsdec/internal/output"
	"ncsdec/internal/repair"
	"ncsdec/internal/verify"
)

var (
	decompileOut      string
	preferSwitches    bool
	strictSignatures  bool
	noRepair          bool
	verboseRepairs    bool
	dumpRegions       bool
	writeDiagsJSON    bool
	verifyOutput      bool
)

// recompiler round-trips emitted source when --verify is set. The stock
// build carries no toolchain collaborator, so it reports a skip.
var recompiler verify.RoundTripper = verify.Noop{}

var decompileCmd = &cobra.Command{
	Use:   "decompile <file.ncs> [file.ncs ...]",
	Short: "Decompile compiled scripts to source",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputs, err := expandInputs(args)
		if err != nil {
			return err
		}
		failures := 0
		for _, in := range inputs {
			if err := decompileOne(in); err != nil {
				failures++
				fmt.Fprintf(os.Stderr, "%s: %v\n", in, err)
			}
		}
		if failures > 0 {
			return fmt.Errorf("%d of %d script(s) failed", failures, len(inputs))
		}
		return nil
	},
}

func decompileOne(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	cfgRepair := repair.Default()
	cfgRepair.Verbose = verboseRepairs
	if noRepair {
		cfgRepair = repair.Config{MaxPasses: 1}
	}

	res, err := decompiler.Decompile(data, decompiler.Options{
		Variant:          variant(),
		PreferSwitches:   preferSwitches,
		StrictSignatures: strictSignatures,
		Header:           fmt.Sprintf("// Decompiled from %s (variant %s)", filepath.Base(path), variant()),
		Repair:           &cfgRepair,
	})
	if err != nil {
		return err
	}

	if dumpRegions {
		spew.Fdump(os.Stderr, res.Funcs)
	}

	dir := decompileOut
	if dir == "" {
		dir = filepath.Dir(path)
	}
	base := output.Base(path)
	out, err := output.WriteSource(dir, base, res.Source)
	if err != nil {
		return err
	}
	glog.V(1).Infof("wrote %s", out)

	if verifyOutput {
		ok, report, err := recompiler.Recompile(context.Background(), res.Source)
		switch {
		case err != nil:
			fmt.Fprintf(os.Stderr, "%s: verify: %v\n", base, err)
		case ok:
			glog.V(1).Infof("%s: round-trip ok", base)
		default:
			fmt.Fprintf(os.Stderr, "%s: verify: %s\n", base, report)
		}
	}

	for _, d := range res.Diags {
		fmt.Fprintf(os.Stderr, "%s: %s\n", base, d)
	}
	if writeDiagsJSON {
		if _, err := output.WriteDiagsJSON(dir, base, res.Diags); err != nil {
			return err
		}
	}
	return nil
}

// expandInputs resolves directory arguments to the compiled scripts
// they contain, in stable order.
func expandInputs(args []string) ([]string, error) {
	var inputs []string
	for _, a := range args {
		fi, err := os.Stat(a)
		if err != nil {
			return nil, err
		}
		if !fi.IsDir() {
			inputs = append(inputs, a)
			continue
		}
		entries, err := os.ReadDir(a)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".ncs") {
				inputs = append(inputs, filepath.Join(a, e.Name()))
			}
		}
	}
	sort.Strings(inputs)
	if len(inputs) == 0 {
		return nil, fmt.Errorf("no compiled scripts found")
	}
	return inputs, nil
}

func init() {
	rootCmd.AddCommand(decompileCmd)

	decompileCmd.Flags().StringVarP(&decompileOut, "output", "o", "", "output directory (default: next to input)")
	decompileCmd.Flags().BoolVar(&preferSwitches, "prefer-switches", true, "emit switch for eligible dispatch chains")
	decompileCmd.Flags().BoolVar(&strictSignatures, "strict-signatures", false, "surface engine-call arity mismatches as diagnostics")
	decompileCmd.Flags().BoolVar(&noRepair, "no-repair", false, "skip the output repair passes")
	decompileCmd.Flags().BoolVar(&verboseRepairs, "verbose-repairs", false, "report each applied repair as a diagnostic")
	decompileCmd.Flags().BoolVar(&dumpRegions, "dump-regions", false, "dump recovered region trees to stderr")
	decompileCmd.Flags().BoolVar(&writeDiagsJSON, "diags-json", false, "also write <base>.diags.json")
	decompileCmd.Flags().BoolVar(&verifyOutput, "verify", false, "round-trip the output through the recompiler collaborator")
}
