// Package repair normalizes emitted source text with deterministic,
// idempotent rewrite passes. The passes operate on the emitter's own
// stable output grammar, never on arbitrary user text.
package repair

import (
	"fmt"
	"regexp"
	"strings"

	"ncsdec/internal/expr"
	"ncsdec/internal/ncs"
)

// Config selects which passes run and bounds the pass loop. One Config
// serves one invocation; Applied accumulates a description per action.
type Config struct {
	Syntax      bool
	Types       bool
	Expressions bool
	ControlFlow bool
	Signatures  bool

	MaxPasses int
	Verbose   bool

	Applied []string
}

// Default enables every pass with a small pass bound.
func Default() Config {
	return Config{
		Syntax:      true,
		Types:       true,
		Expressions: true,
		ControlFlow: true,
		Signatures:  true,
		MaxPasses:   4,
	}
}

// Process runs the enabled passes until the text reaches a fixed point
// or the pass bound is hit. Verbose configs mirror every applied action
// into the diagnostic list.
func Process(text string, cfg *Config, diags *ncs.Diags) string {
	if cfg.MaxPasses <= 0 {
		cfg.MaxPasses = 1
	}
	for pass := 0; pass < cfg.MaxPasses; pass++ {
		prev := text
		if cfg.ControlFlow {
			text = controlFlowPass(text, cfg)
		}
		if cfg.Signatures {
			text = signaturePass(text, cfg)
		}
		if cfg.Types {
			text = typePass(text, cfg)
		}
		if cfg.Expressions {
			text = expressionPass(text, cfg)
		}
		if cfg.Syntax {
			text = syntaxPass(text, cfg)
		}
		if text == prev {
			break
		}
	}
	if cfg.Verbose {
		for _, a := range cfg.Applied {
			diags.Add(0, ncs.DiagRepair, a)
		}
	}
	return text
}

func (c *Config) record(format string, args ...interface{}) {
	c.Applied = append(c.Applied, fmt.Sprintf(format, args...))
}

// syntaxPass terminates statement lines and balances braces. Excess
// closers are reported, never removed.
func syntaxPass(text string, cfg *Config) string {
	lines := strings.Split(text, "\n")
	for i, ln := range lines {
		t := strings.TrimSpace(ln)
		if t == "" || needsNoTerminator(t) {
			continue
		}
		lines[i] = ln + ";"
		cfg.record("syntax: added terminator on line %d", i+1)
	}
	text = strings.Join(lines, "\n")

	open := 0
	for _, ln := range lines {
		open += braceDelta(ln)
	}
	if open > 0 {
		if !strings.HasSuffix(text, "\n") {
			text += "\n"
		}
		text += strings.Repeat("}\n", open)
		cfg.record("syntax: appended %d closing brace(s)", open)
	} else if open < 0 {
		cfg.record("syntax: %d excess closing brace(s) left in place", -open)
	}
	return text
}

func needsNoTerminator(t string) bool {
	switch t[len(t)-1] {
	case ';', '{', '}', ':':
		return true
	}
	for _, kw := range []string{"if ", "if(", "else", "while ", "while(", "for ", "for(", "do", "switch ", "switch(", "case ", "default", "//"} {
		if strings.HasPrefix(t, kw) || t == strings.TrimSuffix(kw, " ") {
			return true
		}
	}
	return false
}

// braceDelta counts braces on a line, skipping string literals.
func braceDelta(ln string) int {
	d := 0
	inStr := false
	for i := 0; i < len(ln); i++ {
		switch c := ln[i]; {
		case inStr && c == '\\':
			i++
		case c == '"':
			inStr = !inStr
		case !inStr && c == '{':
			d++
		case !inStr && c == '}':
			d--
		}
	}
	return d
}

var castRE = regexp.MustCompile(`\(([A-Za-z_][A-Za-z0-9_]*)\)\s*([A-Za-z_0-9"(-])`)

// typePass strips casts whose target is outside the type vocabulary.
// Guessing a replacement risks changing meaning; removal never does.
func typePass(text string, cfg *Config) string {
	return castRE.ReplaceAllStringFunc(text, func(m string) string {
		sub := castRE.FindStringSubmatch(m)
		name := sub[1]
		if expr.KnownTypeName(name) || !looksLikeType(name) {
			return m
		}
		cfg.record("type: stripped cast to unknown type %q", name)
		return sub[2]
	})
}

// looksLikeType filters out parenthesized identifiers that are plainly
// expressions (all-caps constants, known variable prefixes).
func looksLikeType(name string) bool {
	if strings.HasPrefix(name, "GLOB_") || strings.HasPrefix(name, "local") ||
		strings.HasPrefix(name, "param") || strings.HasPrefix(name, "OBJECT_") {
		return false
	}
	return strings.ToLower(name) == name
}

// chainRE matches a bare four-operand arithmetic chain with no internal
// grouping: a op b op c op d.
var chainRE = regexp.MustCompile(`(^|[=(,]\s*)([A-Za-z0-9_.]+) ([-+*/]) ([A-Za-z0-9_.]+) ([-+*/]) ([A-Za-z0-9_.]+) ([-+*/]) ([A-Za-z0-9_.]+)(\s*[;,)])`)

// expressionPass pins down precedence in ungrouped arithmetic chains by
// parenthesizing the multiplicative segment. Only the two-level
// operator set is handled; anything already grouped is left alone.
func expressionPass(text string, cfg *Config) string {
	return chainRE.ReplaceAllStringFunc(text, func(m string) string {
		sub := chainRE.FindStringSubmatch(m)
		ops := []string{sub[3], sub[5], sub[7]}
		terms := []string{sub[2], sub[4], sub[6], sub[8]}

		hasMul, hasAdd := false, false
		for _, op := range ops {
			if op == "*" || op == "/" {
				hasMul = true
			} else {
				hasAdd = true
			}
		}
		if !hasMul || !hasAdd {
			return m
		}

		// Wrap each maximal multiplicative run in parentheses.
		out := terms[0]
		openAt := -1
		if ops[0] == "*" || ops[0] == "/" {
			openAt = 0
			out = "(" + out
		}
		for i, op := range ops {
			mul := op == "*" || op == "/"
			if mul && openAt < 0 {
				openAt = i
				out = wrapLastTerm(out)
			}
			if !mul && openAt >= 0 {
				out += ")"
				openAt = -1
			}
			out += " " + op + " " + terms[i+1]
		}
		if openAt >= 0 {
			out += ")"
		}
		cfg.record("expression: grouped multiplicative terms in %q", strings.TrimSpace(m))
		return sub[1] + out + sub[9]
	})
}

// wrapLastTerm opens a parenthesis before the final space-separated
// term of the accumulated chain text.
func wrapLastTerm(s string) string {
	if i := strings.LastIndex(s, " "); i >= 0 {
		return s[:i+1] + "(" + s[i+1:]
	}
	return "(" + s
}

var (
	bareCondRE  = regexp.MustCompile(`^(\s*)(if|while)\s+([^({][^{]*?)\s*\{$`)
	parenRetRE  = regexp.MustCompile(`^(\s*)return\(([^;]*)\);`)
	spacedRetRE = regexp.MustCompile(`^(\s*)return\s+;`)
)

// controlFlowPass normalizes condition and return statement shape.
func controlFlowPass(text string, cfg *Config) string {
	lines := strings.Split(text, "\n")
	for i, ln := range lines {
		if m := bareCondRE.FindStringSubmatch(ln); m != nil {
			lines[i] = fmt.Sprintf("%s%s (%s) {", m[1], m[2], m[3])
			cfg.record("control-flow: parenthesized %s condition on line %d", m[2], i+1)
			continue
		}
		if m := parenRetRE.FindStringSubmatch(ln); m != nil {
			lines[i] = fmt.Sprintf("%sreturn %s;", m[1], m[2])
			cfg.record("control-flow: normalized return on line %d", i+1)
			continue
		}
		if m := spacedRetRE.FindStringSubmatch(ln); m != nil {
			lines[i] = m[1] + "return;"
			cfg.record("control-flow: normalized bare return on line %d", i+1)
		}
	}
	return strings.Join(lines, "\n")
}

// typeCorrections maps common damaged spellings to vocabulary types.
var typeCorrections = map[string]string{
	"vodi": "void", "viod": "void",
	"itn": "int", "integer": "int",
	"flaot": "float", "foat": "float",
	"sting": "string", "strng": "string",
	"obect": "object", "objcet": "object",
	"vecotr": "vector",
	"acton": "action",
}

var sigRE = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*) ([A-Za-z_][A-Za-z0-9_]*)\((.*)\) \{$`)

// signaturePass corrects damaged type names on function signature
// lines and regenerates unusable parameter names.
func signaturePass(text string, cfg *Config) string {
	lines := strings.Split(text, "\n")
	for i, ln := range lines {
		m := sigRE.FindStringSubmatch(ln)
		if m == nil {
			continue
		}
		ret, name, params := m[1], m[2], m[3]

		if !expr.KnownTypeName(ret) {
			fixed := correctType(ret)
			cfg.record("signature: return type %q corrected to %q in %s", ret, fixed, name)
			ret = fixed
		}

		newParams, changed := repairParams(params, name, cfg)
		if changed || ret != m[1] {
			lines[i] = fmt.Sprintf("%s %s(%s) {", ret, name, newParams)
		}
	}
	return strings.Join(lines, "\n")
}

func correctType(t string) string {
	if fixed, ok := typeCorrections[strings.ToLower(t)]; ok {
		return fixed
	}
	return "int"
}

func repairParams(params, fn string, cfg *Config) (string, bool) {
	if strings.TrimSpace(params) == "" {
		return params, false
	}
	parts := strings.Split(params, ",")
	changed := false
	for i, p := range parts {
		fields := strings.Fields(p)
		var typ, name string
		switch len(fields) {
		case 1:
			typ = fields[0]
		case 2:
			typ, name = fields[0], fields[1]
		default:
			continue
		}
		if !expr.KnownTypeName(typ) {
			fixed := correctType(typ)
			cfg.record("signature: parameter type %q corrected to %q in %s", typ, fixed, fn)
			typ = fixed
			changed = true
		}
		if name == "" || expr.KnownTypeName(name) || reservedWords[name] {
			name = fmt.Sprintf("%sParam%d", typ[:1], i+1)
			cfg.record("signature: regenerated parameter %d name in %s", i+1, fn)
			changed = true
		}
		parts[i] = typ + " " + name
	}
	if !changed {
		return params, false
	}
	return strings.Join(parts, ", "), true
}

var reservedWords = map[string]bool{
	"if": true, "else": true, "while": true, "for": true, "do": true,
	"switch": true, "case": true, "default": true, "break": true,
	"continue": true, "return": true, "struct": true, "const": true,
}
