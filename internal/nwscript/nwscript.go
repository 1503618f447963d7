// Package nwscript holds the per-variant engine routine catalogs and
// resolves ACTION call indices against them.
package nwscript

import (
	_ "embed"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"

	"ncsdec/internal/ncs"
)

//go:embed tables/k1.yaml
var k1Table []byte

//go:embed tables/k2.yaml
var k2Table []byte

// Routine is one engine ("built-in") function signature.
type Routine struct {
	Index   int      `yaml:"index"`
	Name    string   `yaml:"name"`
	Returns string   `yaml:"returns"`
	Params  []string `yaml:"params"`
}

// Table is a variant's routine catalog. Loaded once at startup,
// immutable thereafter, safe for unsynchronized concurrent reads.
type Table struct {
	Variant  ncs.Variant
	byIndex  map[int]Routine
	routines []Routine
}

type tableFile struct {
	Variant  string    `yaml:"variant"`
	Routines []Routine `yaml:"routines"`
}

var (
	loadOnce sync.Once
	tables   map[ncs.Variant]*Table
	loadErr  error
)

func load() {
	tables = make(map[ncs.Variant]*Table, 2)
	for variant, raw := range map[ncs.Variant][]byte{
		ncs.VariantK1: k1Table,
		ncs.VariantK2: k2Table,
	} {
		var tf tableFile
		if err := yaml.Unmarshal(raw, &tf); err != nil {
			loadErr = fmt.Errorf("nwscript: table %s: %w", variant, err)
			return
		}
		t := &Table{
			Variant:  variant,
			byIndex:  make(map[int]Routine, len(tf.Routines)),
			routines: tf.Routines,
		}
		for _, r := range tf.Routines {
			t.byIndex[r.Index] = r
		}
		tables[variant] = t
	}
}

// TableFor returns the routine catalog for a variant.
func TableFor(v ncs.Variant) (*Table, error) {
	loadOnce.Do(load)
	if loadErr != nil {
		return nil, loadErr
	}
	t, ok := tables[v]
	if !ok {
		return nil, fmt.Errorf("nwscript: unknown variant %q", v)
	}
	return t, nil
}

// Lookup returns the routine at index, if the catalog has one.
func (t *Table) Lookup(index int) (Routine, bool) {
	r, ok := t.byIndex[index]
	return r, ok
}

// Len returns the number of catalog entries.
func (t *Table) Len() int { return len(t.routines) }

// Resolver maps call-site routine indices to signatures, applying the
// strict or tolerant arity policy.
type Resolver struct {
	table  *Table
	strict bool
}

// NewResolver builds a resolver over a variant's table.
func NewResolver(table *Table, strict bool) *Resolver {
	return &Resolver{table: table, strict: strict}
}

// Resolve returns the signature to use for a call site. It never fails:
// unknown indices produce a placeholder signature, and arity mismatches
// degrade per the strict flag. argc is the argument count apparent at
// the call site; off is the call instruction's byte offset for diags.
//
// Tolerant mode: the table's declared arity wins silently.
// Strict mode: any argument-count difference, in either direction, is
// surfaced as a diagnostic and the call is emitted as a best-effort raw
// call with placeholder argument types.
func (r *Resolver) Resolve(index, argc int, off uint32, diags *ncs.Diags) Routine {
	rt, ok := r.table.Lookup(index)
	if !ok {
		diags.Addf(off, ncs.DiagUnknownSigType,
			"no catalog entry for routine %d (variant %s); using placeholder", index, r.table.Variant)
		return placeholderRoutine(index, argc)
	}
	if argc != len(rt.Params) {
		if r.strict {
			diags.Addf(off, ncs.DiagSignatureMismatch,
				"%s declares %d parameter(s) but call site passes %d", rt.Name, len(rt.Params), argc)
			raw := placeholderRoutine(index, argc)
			raw.Name = rt.Name
			raw.Returns = rt.Returns
			return raw
		}
		// Tolerant: the catalog arity wins. Short call sites are routine;
		// trailing defaulted parameters are filled by the engine, not the
		// stack.
	}
	return rt
}

func placeholderRoutine(index, argc int) Routine {
	params := make([]string, argc)
	for i := range params {
		params[i] = "int"
	}
	return Routine{
		Index:   index,
		Name:    fmt.Sprintf("UnknownRoutine%d", index),
		Returns: "int",
		Params:  params,
	}
}
