package delundef

import (
	"strings"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/value"
)

// verifierPrefix marks functions that are meaningful to the downstream
// verification engine and must survive the rewrite.
const verifierPrefix = "__VERIFIER_"

// leaveCalls are never eliminated: downstream tooling models these
// natively, so deleting them would lose semantics it can handle.
var leaveCalls = []string{
	"__assert_fail",
	"abort",
	"klee_make_symbolic",
	"klee_assume",
	"klee_abort",
	"klee_silent_exit",
	"klee_report_error",
	"klee_warning_once",
	"exit",
	"_exit",
	"malloc",
	"calloc",
	"realloc",
	"free",
	"memset",
	"memcmp",
	"memcpy",
	"memmove",
	"kzalloc",
	"__errno_location",
	// nondet aliases already modeled downstream
	"nondet_int",
	"klee_int",
}

// eliminable resolves the call target and decides whether the call is
// a rewrite candidate. It returns the resolved callee for calls to
// undefined, non-whitelisted, non-intrinsic functions and nil for
// everything that must be left alone. Pure decision; no side effects.
func (p *Pass) eliminable(call *ir.InstCall) *ir.Func {
	callee := stripPointerCasts(call.Callee)
	if _, ok := callee.(*ir.InlineAsm); ok {
		return nil
	}
	fn, ok := callee.(*ir.Func)
	if !ok {
		// Indirect call through a register; target unknown.
		return nil
	}
	name := fn.Name()
	if isIntrinsic(name) || p.whitelisted(name) {
		return nil
	}
	if len(fn.Blocks) > 0 {
		// Defined in this module.
		return nil
	}
	return fn
}

func (p *Pass) whitelisted(name string) bool {
	if p.leave[name] {
		return true
	}
	for _, prefix := range p.prefixes {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

func isIntrinsic(name string) bool {
	return strings.HasPrefix(name, "llvm.")
}

// stripPointerCasts peels constant pointer casts off a call target so
// that e.g. a bitcast-wrapped declaration still resolves to it.
func stripPointerCasts(v value.Value) value.Value {
	for {
		switch c := v.(type) {
		case *constant.ExprBitCast:
			v = c.From
		case *constant.ExprAddrSpaceCast:
			v = c.From
		default:
			return v
		}
	}
}
