package callsan

import "github.com/lookbusy1344/rv32toolchain/vm"

// regNames mirrors the teacher's REGISTER_NAMES table, used only to
// render a human name into a vm.RuntimeError.
var regNames = [32]string{
	"zero", "ra", "sp", "gp", "tp", "t0", "t1", "t2", "fp", "s1", "a0",
	"a1", "a2", "a3", "a4", "a5", "a6", "a7", "s2", "s3", "s4", "s5",
	"s6", "s7", "s8", "s9", "s10", "s11", "t3", "t4", "t5", "t6",
}

// Adapter wraps a Sanitizer to satisfy vm.Sanitizer, translating
// Violations into vm.RuntimeError values at the CPU/sanitizer boundary
// so neither package needs to know the other's error representation.
type Adapter struct {
	*Sanitizer
}

// NewAdapter builds a fresh sanitizer already wired for use as a
// vm.Sanitizer.
func NewAdapter() *Adapter { return &Adapter{Sanitizer: New()} }

func (a *Adapter) CanLoad(reg uint32) *vm.RuntimeError {
	v, ok := a.Sanitizer.CanLoad(reg)
	if ok {
		return nil
	}
	return toRuntimeError(v)
}

func (a *Adapter) Ret(regs *[32]uint32) *vm.RuntimeError {
	v, ok := a.Sanitizer.Ret(regs)
	if ok {
		return nil
	}
	return toRuntimeError(v)
}

func toRuntimeError(v *Violation) *vm.RuntimeError {
	re := &vm.RuntimeError{Params: [2]uint32{v.Reg, v.Expect}}
	if v.Reg < uint32(len(regNames)) {
		re.Reg = regNames[v.Reg]
	}
	switch v.Kind {
	case CantRead:
		re.Kind = vm.ErrCallsanCantRead
	case NotSaved:
		re.Kind = vm.ErrCallsanNotSaved
	case SPMismatch:
		re.Kind = vm.ErrCallsanSPMismatch
	case RAMismatch:
		re.Kind = vm.ErrCallsanRAMismatch
	case RetEmpty:
		re.Kind = vm.ErrCallsanRetEmpty
	case LoadStack:
		re.Kind = vm.ErrCallsanLoadStack
	}
	return re
}
