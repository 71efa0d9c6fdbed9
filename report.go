package delundef

import (
	"fmt"
	"io"
)

// reporter deduplicates the per-symbol diagnostics: eliminating a
// hundred calls to the same undefined function prints one line, not a
// hundred. Pure bookkeeping, no effect on the rewritten module.
type reporter struct {
	w       io.Writer
	nosym   bool
	removed map[string]bool
	warned  map[string]bool
}

func newReporter(w io.Writer, nosym bool) *reporter {
	return &reporter{
		w:       w,
		nosym:   nosym,
		removed: make(map[string]bool),
		warned:  make(map[string]bool),
	}
}

func (r *reporter) removedCall(name string, void bool) {
	if r.removed[name] {
		return
	}
	r.removed[name] = true
	switch {
	case void:
		fmt.Fprintf(r.w, "delundef: removed calls to '%s' (function is undefined)\n", name)
	case r.nosym:
		fmt.Fprintf(r.w, "delundef: removed calls to '%s' (function is undefined, retval set to 0)\n", name)
	default:
		fmt.Fprintf(r.w, "delundef: removed calls to '%s' (function is undefined, retval made symbolic)\n", name)
	}
}

// pointerArgs flags an eliminated call that passed pointer arguments:
// whatever the callee wrote through them is dropped with the call, and
// the pass cannot tell whether that was observable.
func (r *reporter) pointerArgs(name string) {
	if r.warned[name] {
		return
	}
	r.warned[name] = true
	fmt.Fprintf(r.w, "delundef: warning: calls to '%s' pass pointer arguments; side effects through them are dropped\n", name)
}
