package delundef

import (
	"reflect"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// RunOnFunc rewrites every eliminable call in f and reports whether
// anything changed. A fatal configuration error (missing or empty
// entry function, unsized result type in symbolic mode) aborts before
// the failing call site is touched.
func (p *Pass) RunOnFunc(m *ir.Module, f *ir.Func) (bool, error) {
	modified := false
	for _, block := range f.Blocks {
		// Iterate a copy: rewriting removes the call and may insert a
		// load in front of it, both of which shift block.Insts.
		insts := make([]ir.Instruction, len(block.Insts))
		copy(insts, block.Insts)
		for _, inst := range insts {
			call, ok := inst.(*ir.InstCall)
			if !ok {
				continue
			}
			callee := p.eliminable(call)
			if callee == nil {
				continue
			}
			if err := p.rewrite(m, f, block, call, callee); err != nil {
				return modified, err
			}
			modified = true
		}
	}
	return modified, nil
}

func (p *Pass) rewrite(m *ir.Module, f *ir.Func, block *ir.Block, call *ir.InstCall, callee *ir.Func) error {
	retTy := call.Type()
	void := retTy.Equal(types.Void)

	p.report.removedCall(callee.Name(), void)
	if hasPointerArg(call) {
		p.report.pointerArgs(callee.Name())
	}

	if !void {
		if p.opts.NoSymbol {
			replaceUses(f, call, zeroValue(retTy))
		} else {
			load, err := p.pool.materialize(m, retTy)
			if err != nil {
				return err
			}
			insertBefore(block, call, load)
			replaceUses(f, call, load)
		}
	}
	removeInst(block, call)
	return nil
}

func hasPointerArg(call *ir.InstCall) bool {
	for _, arg := range call.Args {
		if _, ok := arg.Type().(*types.PointerType); ok {
			return true
		}
	}
	return false
}

// zeroValue is the canonical zero of t: 0 for integers and floats,
// null for pointers, zeroinitializer for aggregates.
func zeroValue(t types.Type) constant.Constant {
	switch t := t.(type) {
	case *types.IntType:
		return constant.NewInt(t, 0)
	case *types.FloatType:
		return constant.NewFloat(t, 0)
	case *types.PointerType:
		return constant.NewNull(t)
	default:
		return constant.NewZeroInitializer(t)
	}
}

// replaceUses redirects every operand in f that references old to new.
// A call result cannot be referenced outside its enclosing function,
// so scanning f is exhaustive. After this the old instruction has no
// remaining uses and is safe to remove.
func replaceUses(f *ir.Func, old, new value.Value) {
	for _, block := range f.Blocks {
		for _, inst := range block.Insts {
			if phi, ok := inst.(*ir.InstPhi); ok {
				for _, inc := range phi.Incs {
					if inc.X == old {
						inc.X = new
					}
				}
				continue
			}
			replaceOperands(inst, old, new)
		}
		if block.Term != nil {
			replaceOperands(block.Term, old, new)
		}
	}
}

var valueType = reflect.TypeOf((*value.Value)(nil)).Elem()

// replaceOperands swaps old for new in every operand slot of one
// instruction or terminator. The IR library keeps no use lists, but
// every operand slot is either a value.Value field or an element of a
// []value.Value field on the instruction struct, so the slots can be
// located by shape. Phi incomings nest one level deeper and are
// handled by the caller.
func replaceOperands(node any, old, new value.Value) {
	v := reflect.ValueOf(node)
	if v.Kind() != reflect.Pointer || v.IsNil() {
		return
	}
	v = v.Elem()
	if v.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		if !field.CanSet() {
			continue
		}
		switch {
		case field.Type() == valueType:
			if field.Interface() == old {
				field.Set(reflect.ValueOf(new))
			}
		case field.Kind() == reflect.Slice && field.Type().Elem() == valueType:
			for j := 0; j < field.Len(); j++ {
				elem := field.Index(j)
				if elem.Interface() == old {
					elem.Set(reflect.ValueOf(new))
				}
			}
		}
	}
}

func insertBefore(block *ir.Block, at ir.Instruction, inst ir.Instruction) {
	for i, cur := range block.Insts {
		if cur == at {
			insts := make([]ir.Instruction, 0, len(block.Insts)+1)
			insts = append(insts, block.Insts[:i]...)
			insts = append(insts, inst)
			insts = append(insts, block.Insts[i:]...)
			block.Insts = insts
			return
		}
	}
	block.Insts = append(block.Insts, inst)
}

func removeInst(block *ir.Block, inst ir.Instruction) {
	for i, cur := range block.Insts {
		if cur == inst {
			block.Insts = append(block.Insts[:i], block.Insts[i+1:]...)
			return
		}
	}
}
