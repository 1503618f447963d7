// Package verify declares the collaborator contracts the decompiler
// core exposes but never implements: round-trip recompilation with an
// external toolchain, and the confirmation dialogs such a toolchain
// setup may need. The core produces its output whether or not a
// collaborator is present.
package verify

import "context"

// RoundTripper recompiles emitted source and reports whether the
// external toolchain accepted it. Implementations own toolchain
// discovery; the core only hands over text.
type RoundTripper interface {
	Recompile(ctx context.Context, source string) (ok bool, log string, err error)
}

// Dialog is the abstract yes/no confirmation surface a collaborator
// may need for privileged environment setup.
type Dialog interface {
	Confirm(prompt string) bool
	ConfirmOnce(key, prompt string) bool // honors "don't show again"
}

// Noop satisfies both contracts without doing anything; it reports
// every recompilation as skipped and declines every confirmation.
type Noop struct{}

func (Noop) Recompile(context.Context, string) (bool, string, error) {
	return false, "recompilation skipped: no toolchain collaborator configured", nil
}

func (Noop) Confirm(string) bool { return false }

func (Noop) ConfirmOnce(string, string) bool { return false }
