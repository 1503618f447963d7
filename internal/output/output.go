// Package output writes decompilation results to files.
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"ncsdec/internal/ncs"
)

// WriteSource writes decompiled source next to the input, or into dir
// when one is given: <base>.nss.
func WriteSource(dir, base, text string) (string, error) {
	path := filepath.Join(dir, base+".nss")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("output: mkdir: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0644); err != nil {
		return "", fmt.Errorf("output: write %s: %w", path, err)
	}
	return path, nil
}

// WriteListing writes a disassembly listing to <base>.pcode.txt.
func WriteListing(dir, base string, insts []ncs.Instruction) (string, error) {
	path := filepath.Join(dir, base+".pcode.txt")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("output: mkdir: %w", err)
	}
	if err := os.WriteFile(path, []byte(ncs.Format(insts)), 0644); err != nil {
		return "", fmt.Errorf("output: write %s: %w", path, err)
	}
	return path, nil
}

// WriteDOT writes one graph to graph/<name>.dot.
func WriteDOT(dir, name, dot string) (string, error) {
	path := filepath.Join(dir, "graph", name+".dot")
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("output: mkdir graph: %w", err)
	}
	if err := os.WriteFile(path, []byte(dot), 0644); err != nil {
		return "", fmt.Errorf("output: write %s: %w", path, err)
	}
	return path, nil
}

// WriteDiagsJSON writes the diagnostics list to <base>.diags.json.
func WriteDiagsJSON(dir, base string, diags []ncs.Diag) (string, error) {
	path := filepath.Join(dir, base+".diags.json")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("output: create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(diags); err != nil {
		return "", fmt.Errorf("output: encode %s: %w", path, err)
	}
	return path, nil
}

// Base strips the directory and the compiled-script extension from an
// input path: "scripts/k_inc_debug.ncs" → "k_inc_debug".
func Base(inputPath string) string {
	b := filepath.Base(inputPath)
	return strings.TrimSuffix(b, filepath.Ext(b))
}
