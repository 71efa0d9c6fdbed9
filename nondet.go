package delundef

import (
	"fmt"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	"github.com/llir/llvm/ir/types"
	"github.com/pkg/errors"

	"github.com/mpyw/delundef/internal/layout"
)

// makeSymbolicName is the external primitive that tells the downstream
// engine to fill a memory region with an unconstrained value:
//
//	void __VERIFIER_make_symbolic(void *addr, size_t nbytes, const char *name);
const makeSymbolicName = "__VERIFIER_make_symbolic"

// cellName is the base name of the per-type backing globals.
const cellName = "nondet_gl_undef"

// Fatal configuration errors. All are detected before the failing call
// site is mutated, so a run never leaves a half-rewritten call behind.
var (
	// ErrEntryMissing reports that symbolic mode needed to inject an
	// initializer but the module has no entry function.
	ErrEntryMissing = errors.New("entry function not found")

	// ErrEntryEmpty reports that the entry function has no body to
	// insert the initializer into.
	ErrEntryEmpty = errors.New("entry function has no body")

	// ErrUnsizedType reports that an eliminated call returns a type
	// with no allocation size, for which no cell can be built.
	ErrUnsizedType = errors.New("result type has no allocation size")
)

// nondetPool hands out nondeterministic values. It keeps one
// zero-initialized private global cell per distinct result type and
// injects exactly one initializer call per cell at the head of the
// entry function, no matter how many call sites share the type.
type nondetPool struct {
	entry string
	cells map[string]*ir.Global
	vms   *ir.Func   // resolved make-symbolic primitive
	nameG *ir.Global // the "nondet" display-name constant
}

func newNondetPool(entry string) *nondetPool {
	return &nondetPool{
		entry: entry,
		cells: make(map[string]*ir.Global),
	}
}

// materialize returns a fresh load of the cell backing type t,
// creating the cell and its one-time initializer on first demand.
// Loads are never shared between call sites; only the cell and its
// initialization are.
func (p *nondetPool) materialize(m *ir.Module, t types.Type) (*ir.InstLoad, error) {
	if !layout.Sized(t) {
		return nil, errors.Wrapf(ErrUnsizedType, "cannot make %v symbolic", t)
	}
	// Two call sites naming "the same type" through different objects
	// must hit the same cell, so the cache keys on the type's
	// canonical rendering rather than on object identity.
	key := t.String()
	if cell, ok := p.cells[key]; ok {
		return ir.NewLoad(t, cell), nil
	}

	// Everything that can fail happens before the module is touched.
	entryBlock, entryFn, err := p.entryBlock(m)
	if err != nil {
		return nil, err
	}
	li := layout.New(m)
	size, err := li.Alloc(t)
	if err != nil {
		return nil, errors.Wrapf(ErrUnsizedType, "%v", err)
	}

	cell := m.NewGlobalDef(p.freshCellName(), constant.NewZeroInitializer(t))
	cell.Linkage = enum.LinkagePrivate
	p.cells[key] = cell

	// Splice the initialization ahead of the first pre-existing
	// instruction of the entry function so it runs before any user
	// code: first the address cast, then the make-symbolic call.
	cast := ir.NewBitCast(cell, types.I8Ptr)
	call := ir.NewCall(p.makeSymbolic(m, li),
		cast,
		constant.NewInt(li.SizeType(), size),
		constant.NewBitCast(p.nameGlobal(m), types.I8Ptr),
	)
	attachEntryDebugLoc(m, call, entryFn)
	entryBlock.Insts = append([]ir.Instruction{cast, call}, entryBlock.Insts...)

	return ir.NewLoad(t, cell), nil
}

func (p *nondetPool) entryBlock(m *ir.Module) (*ir.Block, *ir.Func, error) {
	fn := findFunc(m, p.entry)
	if fn == nil {
		return nil, nil, errors.Wrapf(ErrEntryMissing, "%q", p.entry)
	}
	if len(fn.Blocks) == 0 {
		return nil, nil, errors.Wrapf(ErrEntryEmpty, "%q", p.entry)
	}
	return fn.Blocks[0], fn, nil
}

// makeSymbolic resolves the make-symbolic primitive, declaring it in
// the module if absent.
func (p *nondetPool) makeSymbolic(m *ir.Module, li *layout.Info) *ir.Func {
	if p.vms != nil {
		return p.vms
	}
	if fn := findFunc(m, makeSymbolicName); fn != nil {
		p.vms = fn
		return fn
	}
	p.vms = m.NewFunc(makeSymbolicName, types.Void,
		ir.NewParam("addr", types.I8Ptr),
		ir.NewParam("nbytes", li.SizeType()),
		ir.NewParam("name", types.I8Ptr),
	)
	return p.vms
}

// nameGlobal is the constant passed as the display name of every cell.
func (p *nondetPool) nameGlobal(m *ir.Module) *ir.Global {
	if p.nameG != nil {
		return p.nameG
	}
	g := m.NewGlobalDef(".str.nondet", constant.NewCharArrayFromString("nondet\x00"))
	g.Linkage = enum.LinkagePrivate
	g.Immutable = true
	p.nameG = g
	return g
}

// freshCellName uniquifies the cell name; keeping the names apart is
// this pool's job, nothing downstream checks for clashes. A user
// global already named nondet_gl_undef would still collide.
func (p *nondetPool) freshCellName() string {
	if len(p.cells) == 0 {
		return cellName
	}
	return fmt.Sprintf("%s.%d", cellName, len(p.cells))
}
