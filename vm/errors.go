package vm

import "fmt"

// ErrorKind classifies why a step of the interpreter stopped short of
// completing an instruction.
type ErrorKind int

const (
	ErrNone ErrorKind = iota
	ErrFetch
	ErrLoad
	ErrStore
	ErrUnhandledInsn
	ErrCallsanCantRead
	ErrCallsanNotSaved
	ErrCallsanSPMismatch
	ErrCallsanRAMismatch
	ErrCallsanRetEmpty
	ErrCallsanLoadStack
	ErrProtection
)

// RuntimeError reports a trapped condition encountered while executing an
// instruction: an address fault, an unimplemented opcode, or a call
// sanitizer violation. Params carries the kind-specific detail (faulting
// address, offending register number) described in RuntimeError.Error.
type RuntimeError struct {
	Kind   ErrorKind
	PC     uint32
	Params [2]uint32
	Reg    string
}

func (e *RuntimeError) Error() string {
	switch e.Kind {
	case ErrFetch:
		return fmt.Sprintf("fetch error at pc=0x%08x on addr=0x%08x", e.PC, e.Params[0])
	case ErrLoad:
		return fmt.Sprintf("load error at pc=0x%08x on addr=0x%08x", e.PC, e.Params[0])
	case ErrStore:
		return fmt.Sprintf("store error at pc=0x%08x on addr=0x%08x", e.PC, e.Params[0])
	case ErrUnhandledInsn:
		return fmt.Sprintf("unhandled instruction at pc=0x%08x", e.PC)
	case ErrCallsanCantRead:
		return fmt.Sprintf("attempt to read from uninitialized register %s at pc=0x%08x. Check the calling convention!", e.Reg, e.PC)
	case ErrCallsanNotSaved:
		return fmt.Sprintf("attempt to write callee-saved register %s at pc=0x%08x without saving it first. Check the calling convention!", e.Reg, e.PC)
	case ErrCallsanRAMismatch:
		return fmt.Sprintf("attempt to return from non-leaf function without restoring ra register at pc=0x%08x. Check the calling convention!", e.PC)
	case ErrCallsanSPMismatch:
		return fmt.Sprintf("attempt to return from function with wrong stack pointer value at pc=0x%08x", e.PC)
	case ErrCallsanRetEmpty:
		return fmt.Sprintf("attempt to return without a call at pc=0x%08x", e.PC)
	case ErrCallsanLoadStack:
		return fmt.Sprintf("attempt to read at pc=0x%08x from stack address 0x%08x, which hasn't been written to in the current function", e.PC, e.Params[0])
	case ErrProtection:
		return fmt.Sprintf("attempt to access a privileged resource at pc=0x%08x", e.PC)
	default:
		return fmt.Sprintf("unhandled error at pc=0x%08x", e.PC)
	}
}
