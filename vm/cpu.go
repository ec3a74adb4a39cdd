// Package vm implements the fetch-decode-execute loop for the RV32I+M
// core: register and CSR state, privilege transitions, and the host
// syscall table an empty .kernel_text falls back to.
package vm

import "github.com/lookbusy1344/rv32toolchain/memmap"

// Cause codes for scause/the interrupt-delivery cause argument.
const (
	CauseInterrupt = 1 << 31

	CauseInstAddrMisaligned  = 0x00
	CauseInstAccessFault     = 0x01
	CauseIllegalInstruction  = 0x02
	CauseBreakpoint          = 0x03
	CauseLoadAddrMisaligned  = 0x04
	CauseLoadAccessFault     = 0x05
	CauseStoreAddrMisaligned = 0x06
	CauseStoreAccessFault    = 0x07
	CauseUEcall              = 0x08
	CauseSEcall              = 0x09
	CauseInstPageFault       = 0x0C
	CauseLoadPageFault       = 0x0D
	CauseStorePageFault      = 0x0F

	CauseSupervisorSoftware = CauseInterrupt | 1
	CauseMachineSoftware    = CauseInterrupt | 3
	CauseSupervisorTimer    = CauseInterrupt | 5
	CauseMachineTimer       = CauseInterrupt | 7
	CauseSupervisorExternal = CauseInterrupt | 9
	CauseMachineExternal    = CauseInterrupt | 11
)

// MMIO is the interface the device model must satisfy; it lets CPU.Load
// and CPU.Store reach into the MMIO window without the vm package
// depending on vm/device directly, mirroring the teacher's decoupled
// execution/device split.
type MMIO interface {
	Read(devOffset uint32, size int) (uint32, bool)
	Write(devOffset uint32, size int, val uint32) bool
}

// CPU holds the full architectural state of one hart: 32 general
// registers (x0 always reads zero), program counter, the 4096-entry CSR
// file, current privilege level, and exit status.
type CPU struct {
	Regs [32]uint32
	PC   uint32
	CSR  [4096]uint32

	Privilege memmap.Privilege

	Exited   bool
	ExitCode int

	Mem    *memmap.Map
	Device MMIO
	Out    Console

	// Sanitizer is consulted by every register/memory access when
	// non-nil; it is nil unless the run was started with sanitization
	// enabled.
	Sanitizer Sanitizer

	// Cycles counts completed instructions, including ones that trapped.
	Cycles uint64

	// LastMemWrite records the most recent store's address/size so tools
	// like a trace logger can report it without re-deriving it.
	LastMemWriteAddr uint32
	LastMemWriteLen  uint32
	LastRegWritten   uint32
}

// Sanitizer is the calling-convention checker a CPU consults on every
// register read/write and call/return. vm/callsan implements it; nil
// means sanitization is off.
type Sanitizer interface {
	CanLoad(reg uint32) *RuntimeError
	Store(reg uint32)
	Call(pc uint32, regs *[32]uint32, sp uint32)
	Ret(regs *[32]uint32) *RuntimeError
	CheckLoad(addr, size uint32) bool
	ReportStore(addr, size, reg uint32)
}

// New builds a CPU with PC at the text base, privilege USER, and the
// default supervisor-interrupt-enable state the teacher's emulator_init
// establishes.
func New(mem *memmap.Map, dev MMIO) *CPU {
	c := &CPU{Mem: mem, Device: dev, PC: memmap.TextBase, Privilege: memmap.PrivUser}
	c.CSR[CSRMstatus] |= StatusSIE
	c.CSR[CSRMie] |= 1 << (CauseSupervisorSoftware &^ CauseInterrupt)
	c.CSR[CSRMie] |= 1 << (CauseSupervisorTimer &^ CauseInterrupt)
	c.CSR[CSRMie] |= 1 << (CauseSupervisorExternal &^ CauseInterrupt)
	return c
}

func (c *CPU) reg(i uint32) uint32 {
	return c.Regs[i&31]
}

func (c *CPU) setReg(i, v uint32) {
	if i == 0 {
		return
	}
	c.Regs[i&31] = v
	c.LastRegWritten = i
}

// EnterKernel and LeaveKernel set the privilege level to supervisor and
// to user respectively. The host-syscall path in doSyscall does not call
// them; it services ECALL without changing privilege.
func (c *CPU) EnterKernel() { c.Privilege = memmap.PrivSupervisor }
func (c *CPU) LeaveKernel() { c.Privilege = memmap.PrivUser }

func (c *CPU) InterruptPending(intno uint32) {
	c.CSR[CSRMip] |= 1 << intno
}

func (c *CPU) InterruptClear(intno uint32) {
	c.CSR[CSRMip] &^= 1 << intno
}
