// Package delundef rewrites an LLVM IR module so that no call to an
// undefined function remains.
//
// Symbolic executors and verifiers cannot step into a function that has
// no body. For every call whose target resolves to a declaration-only
// function, the pass deletes the call; if the call produces a value,
// every use of that value is first redirected to a substitute: either
// the type's zero value, or a fresh "nondeterministic" value backed by
// a per-type global cell that the verifier initializes at program
// start. Well-known library and runtime functions (allocators, the
// abort/exit/assert family, the verifier's own primitives) are left
// untouched because downstream tooling models them natively.
//
// Two pass identities are registered:
//
//	delete-undefined        replace return values with symbolic values
//	delete-undefined-nosym  replace return values with zero
package delundef

import (
	"io"
	"os"

	"github.com/llir/llvm/ir"
)

// Options configures a single pass run. The zero value selects symbolic
// substitution, entry point "main", and diagnostics on stderr.
type Options struct {
	// NoSymbol replaces eliminated return values with the type's zero
	// value instead of a nondeterministic value.
	NoSymbol bool

	// Entry names the function that receives the one-time cell
	// initializers. Defaults to "main".
	Entry string

	// Leave lists additional callee names that must never be
	// eliminated, on top of the built-in whitelist.
	Leave []string

	// LeavePrefixes lists additional reserved name prefixes, on top of
	// the built-in verifier-intrinsic prefix.
	LeavePrefixes []string

	// Diag receives the one-line-per-symbol diagnostics. Defaults to
	// os.Stderr; use io.Discard to silence.
	Diag io.Writer
}

// Pass is one run of the rewrite. The per-type cell cache and the
// removed-symbol log live on the Pass and survive across per-function
// invocations within the run; separate Pass values are fully
// independent.
type Pass struct {
	opts     Options
	leave    map[string]bool
	prefixes []string
	report   *reporter
	pool     *nondetPool
}

// New returns a Pass configured by opts.
func New(opts Options) *Pass {
	if opts.Entry == "" {
		opts.Entry = "main"
	}
	if opts.Diag == nil {
		opts.Diag = os.Stderr
	}
	leave := make(map[string]bool, len(leaveCalls)+len(opts.Leave))
	for _, name := range leaveCalls {
		leave[name] = true
	}
	for _, name := range opts.Leave {
		leave[name] = true
	}
	prefixes := append([]string{verifierPrefix}, opts.LeavePrefixes...)
	return &Pass{
		opts:     opts,
		leave:    leave,
		prefixes: prefixes,
		report:   newReporter(opts.Diag, opts.NoSymbol),
		pool:     newNondetPool(opts.Entry),
	}
}

// Passes maps the externally selectable pass names to constructors.
// The name fixes the substitution mode; the remaining options are
// taken from opts.
var Passes = map[string]func(opts Options) *Pass{
	"delete-undefined": func(opts Options) *Pass {
		opts.NoSymbol = false
		return New(opts)
	},
	"delete-undefined-nosym": func(opts Options) *Pass {
		opts.NoSymbol = true
		return New(opts)
	},
}

// Run applies the pass to every function definition in m and reports
// whether anything was rewritten. Rerunning on the output is a no-op:
// all eligible call sites were already eliminated.
func (p *Pass) Run(m *ir.Module) (bool, error) {
	modified := false
	// Snapshot: materializing a cell may append declarations to
	// m.Funcs. Declarations have no instructions to rewrite anyway.
	funcs := m.Funcs
	for _, f := range funcs {
		if len(f.Blocks) == 0 {
			continue
		}
		changed, err := p.RunOnFunc(m, f)
		if changed {
			modified = true
		}
		if err != nil {
			return modified, err
		}
	}
	return modified, nil
}

func findFunc(m *ir.Module, name string) *ir.Func {
	for _, f := range m.Funcs {
		if f.Name() == name {
			return f
		}
	}
	return nil
}
