package vm

import "github.com/lookbusy1344/rv32toolchain/memmap"

// doSRET returns from a trap: restores the privilege level saved in
// SPP, re-enables interrupts from SPIE, and jumps to sepc. Only legal
// in supervisor mode.
func (c *CPU) doSRET() *RuntimeError {
	if c.Privilege != memmap.PrivSupervisor {
		return &RuntimeError{Kind: ErrUnhandledInsn, PC: c.PC, Params: [2]uint32{c.PC}}
	}
	status := c.CSR[CSRMstatus]
	oldSPP := status&StatusSPP != 0
	oldSPIE := status&StatusSPIE != 0

	status &^= StatusSIE
	if oldSPIE {
		status |= StatusSIE
	}
	status |= StatusSPIE
	status &^= StatusSPP
	c.CSR[CSRMstatus] = status

	if oldSPP {
		c.Privilege = memmap.PrivSupervisor
	} else {
		c.Privilege = memmap.PrivUser
	}
	c.PC = c.CSR[CSRSepc]
	return nil
}

// DeliverInterrupt performs the trap-entry sequence the teacher's
// emulator_deliver_interrupt implements: save pc/cause, raise
// privilege to supervisor, stash the previous interrupt-enable and
// privilege bits, and vector through stvec (direct mode or, for
// interrupts under vectored mode, base + 4*cause).
func (c *CPU) DeliverInterrupt(cause uint32) {
	isInterrupt := cause&CauseInterrupt != 0
	off := cause &^ CauseInterrupt

	prevPriv := c.Privilege
	c.CSR[CSRSepc] = c.PC
	c.CSR[CSRScause] = cause

	status := c.CSR[CSRMstatus]
	wasEnabled := status&StatusSIE != 0
	c.Privilege = memmap.PrivSupervisor

	status &^= StatusSIE
	status &^= StatusSPIE
	if wasEnabled {
		status |= StatusSPIE
	}
	status &^= StatusSPP
	if prevPriv != memmap.PrivUser {
		status |= StatusSPP
	}
	c.CSR[CSRMstatus] = status

	tvecBase := c.CSR[CSRStvec] &^ 0x3
	tvecMode := c.CSR[CSRStvec] & 0x3
	if tvecMode == 1 && isInterrupt {
		c.PC = tvecBase + off*4
	} else {
		c.PC = tvecBase
	}
}
