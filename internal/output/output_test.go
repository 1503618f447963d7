package output

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ncsdec/internal/ncs"
	"ncsdec/internal/ncs/ncstest"
)

func TestWriteSource(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteSource(dir, "k_test_script", "void main() {\n}\n")
	if err != nil {
		t.Fatalf("WriteSource: %v", err)
	}
	if filepath.Base(path) != "k_test_script.nss" {
		t.Errorf("path = %s, want k_test_script.nss", path)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "void main() {\n}\n" {
		t.Errorf("content = %q", got)
	}
}

func TestWriteListing(t *testing.T) {
	dir := t.TempDir()
	p := ncstest.New().ConstI(7).Retn().Decode(ncs.VariantK1)

	path, err := WriteListing(dir, "k_test_script", p.Insts)
	if err != nil {
		t.Fatalf("WriteListing: %v", err)
	}
	if !strings.HasSuffix(path, ".pcode.txt") {
		t.Errorf("path = %s, want .pcode.txt suffix", path)
	}
	got, _ := os.ReadFile(path)
	if !strings.Contains(string(got), "CONSTI") {
		t.Errorf("listing missing CONSTI:\n%s", got)
	}
}

func TestWriteDOT(t *testing.T) {
	dir := t.TempDir()
	path, err := WriteDOT(dir, "main", "digraph cfg {\n}\n")
	if err != nil {
		t.Fatalf("WriteDOT: %v", err)
	}
	want := filepath.Join(dir, "graph", "main.dot")
	if path != want {
		t.Errorf("path = %s, want %s", path, want)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("Stat: %v", err)
	}
}

func TestWriteDiagsJSON(t *testing.T) {
	dir := t.TempDir()
	diags := []ncs.Diag{{Offset: 0x1d, Kind: ncs.DiagUnreachable, Msg: "dead block"}}

	path, err := WriteDiagsJSON(dir, "k_test_script", diags)
	if err != nil {
		t.Fatalf("WriteDiagsJSON: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var got []ncs.Diag
	if err := json.Unmarshal(raw, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got) != 1 || got[0].Kind != ncs.DiagUnreachable || got[0].Offset != 0x1d {
		t.Errorf("diags = %+v", got)
	}
}

func TestBase(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"scripts/k_inc_debug.ncs", "k_inc_debug"},
		{"k_inc_debug.NCS", "k_inc_debug"},
		{"noext", "noext"},
	} {
		if got := Base(tc.in); got != tc.want {
			t.Errorf("Base(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
