// Package callsan implements the call sanitizer: a shadow stack and a
// readable-register bitmap that catch calling-convention violations
// (reading an uninitialized register, clobbering a callee-saved
// register, returning with a mismatched sp/ra, or reading stack memory
// the current function never wrote) that would otherwise execute
// silently.
package callsan

import "github.com/lookbusy1344/rv32toolchain/memmap"

// RISC-V ABI register numbers this package cares about.
const (
	regZero = 0
	regRA   = 1
	regSP   = 2
	regGP   = 3
	regTP   = 4
	regT0   = 5
	regFP   = 8 // s0
	regS1   = 9
	regA0   = 10
	regA7   = 17
	regS2   = 18
	regS11  = 27
	regT3   = 28
	regT6   = 31
)

// callAccessible is the register set a callee may read on entry, applied
// by Call: zero, sp, ra, tp, gp, the argument registers a0-a7, and the
// callee-saved registers fp and s1-s11.
const callAccessible = (1 << regZero) | (1 << regSP) | (1 << regRA) | (1 << regTP) |
	(1 << regGP) | (1 << regA0) | (1 << 11) | (1 << 12) | (1 << 13) | (1 << 14) |
	(1 << 15) | (1 << 16) | (1 << regA7) | (1 << regFP) | (1 << regS1) |
	(1 << regS2) | (1 << 19) | (1 << 20) | (1 << 21) | (1 << 22) | (1 << 23) |
	(1 << 24) | (1 << 25) | (1 << 26) | (1 << regS11)

// callClobbered is the set a callee may freely overwrite: the temporary
// and argument (beyond a0/a1) registers are not guaranteed readable
// after a return.
const callClobbered = (1 << regT0) | (1 << 6) | (1 << 7) | (1 << regT3) | (1 << 29) | (1 << 30) | (1 << regT6) |
	(1 << 12) | (1 << 13) | (1 << 14) | (1 << 15) | (1 << 16) | (1 << regA7)

// savedRegs is the 12 callee-saved registers (fp, s1, s2-s11) a call
// must restore before returning.
var savedRegs = append([]uint32{regFP, regS1}, rangeRegs(regS2, regS11)...)

func rangeRegs(lo, hi uint32) []uint32 {
	out := make([]uint32, 0, hi-lo+1)
	for r := lo; r <= hi; r++ {
		out = append(out, r)
	}
	return out
}

// frame is one shadow-stack entry: the caller's view of every
// callee-saved register and its stack pointer/return address,
// snapshotted at the call instruction.
type frame struct {
	saved      [12]uint32
	sp, ra, pc uint32
	regBitmap  uint32
}

// Kind distinguishes which calling-convention rule was violated.
type Kind int

const (
	CantRead Kind = iota
	NotSaved
	SPMismatch
	RAMismatch
	RetEmpty
	LoadStack
)

// Violation reports a calling-convention breach detected at a register
// access or a call/return boundary.
type Violation struct {
	Kind   Kind
	Reg    uint32
	Expect uint32
}

// Sanitizer tracks one hart's readable-register bitmap, shadow call
// stack, and per-stack-slot writer record.
type Sanitizer struct {
	regBitmap  uint32
	stack      []frame
	writtenBy  []uint8 // one entry per 4-byte stack slot; 0xFF = unwritten
}

// New builds a sanitizer with every callee-saved and always-valid
// register marked readable and every stack slot marked unwritten,
// matching the teacher's callsan_init.
func New() *Sanitizer {
	s := &Sanitizer{writtenBy: make([]uint8, memmap.StackLen/4)}
	for i := range s.writtenBy {
		s.writtenBy[i] = 0xFF
	}
	s.regBitmap = (1 << regZero) | (1 << regSP) | (1 << regTP) | (1 << regGP) |
		(1 << regRA) | (1 << regFP) | (1 << regS1)
	for _, r := range rangeRegs(regS2, regS11) {
		s.regBitmap |= 1 << r
	}
	return s
}

// CanLoad reports whether reg currently holds a value a function is
// entitled to read. x0 always passes.
func (s *Sanitizer) CanLoad(reg uint32) (*Violation, bool) {
	if reg == regZero {
		return nil, true
	}
	if s.regBitmap>>(reg&31)&1 == 0 {
		return &Violation{Kind: CantRead, Reg: reg}, false
	}
	return nil, true
}

// Store marks reg as holding a function-written value.
func (s *Sanitizer) Store(reg uint32) {
	s.regBitmap |= 1 << (reg & 31)
}

// Call snapshots the callee-saved registers, sp, ra, and pc onto the
// shadow stack, then narrows the readable set to what a callee is
// allowed to assume is already valid.
func (s *Sanitizer) Call(pc uint32, regs *[32]uint32, sp uint32) {
	var f frame
	for i, r := range savedRegs {
		f.saved[i] = regs[r]
	}
	f.sp = sp
	f.ra = regs[regRA]
	f.pc = pc
	f.regBitmap = s.regBitmap
	s.stack = append(s.stack, f)
	s.regBitmap &= callAccessible
}

// Ret pops the shadow stack and checks that sp, ra, and every
// callee-saved register were restored exactly as the caller left them,
// then poisons every stack slot the returning function could have
// written (the rest of the frame below its sp is considered garbage).
func (s *Sanitizer) Ret(regs *[32]uint32) (*Violation, bool) {
	if len(s.stack) == 0 {
		return &Violation{Kind: RetEmpty}, false
	}
	f := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]

	if regs[regSP] != f.sp {
		return &Violation{Kind: SPMismatch, Expect: f.sp}, false
	}
	if regs[regRA] != f.ra {
		return &Violation{Kind: RAMismatch, Expect: f.ra}, false
	}
	for i, r := range savedRegs {
		if regs[r] != f.saved[i] {
			return &Violation{Kind: NotSaved, Reg: r, Expect: f.saved[i]}, false
		}
	}

	s.regBitmap = f.regBitmap &^ callClobbered

	end := (f.sp - (memmap.StackTop - memmap.StackLen)) / 4
	for i := uint32(0); i < end && i < uint32(len(s.writtenBy)); i++ {
		s.writtenBy[i] = 0xFF
	}
	return nil, true
}

// ReportStore records that reg wrote [addr, addr+size) on the stack, so
// a later load from the same slots is known to have a defined value.
// Addresses outside the stack window are ignored.
func (s *Sanitizer) ReportStore(addr, size, reg uint32) {
	if !s.inStack(addr, size) {
		return
	}
	off := addr - (memmap.StackTop - memmap.StackLen)
	start := off / 4
	end := (off + size - 1) / 4
	s.writtenBy[start] = uint8(reg)
	if end != start {
		s.writtenBy[end] = uint8(reg)
	}
}

// CheckLoad reports whether [addr, addr+size) has been written since it
// was last poisoned (Ret poisons the slots below the returning sp; Call
// poisons nothing). Addresses outside the stack window always pass.
func (s *Sanitizer) CheckLoad(addr, size uint32) bool {
	if !s.inStack(addr, size) {
		return true
	}
	off := addr - (memmap.StackTop - memmap.StackLen)
	start := off / 4
	end := (off + size - 1) / 4
	return s.writtenBy[start] != 0xFF && s.writtenBy[end] != 0xFF
}

func (s *Sanitizer) inStack(addr, size uint32) bool {
	return addr >= memmap.StackTop-memmap.StackLen && addr+size <= memmap.StackTop
}
