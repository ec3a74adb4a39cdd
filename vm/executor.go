package vm

import "github.com/lookbusy1344/rv32toolchain/memmap"

func extr(val, end, start uint32) uint32 {
	if start == 0 && end == 31 {
		return val
	}
	mask := uint32(1)<<(end+1-start) - 1
	return (val >> start) & mask
}

func sext(x uint32, bits uint) int32 {
	m := 32 - bits
	return int32(x<<m) >> m
}

// div32 implements the RISC-V DIV semantics: division by zero yields -1,
// and INT_MIN/-1 yields INT_MIN rather than trapping on overflow.
func div32(a, b int32) int32 {
	switch {
	case b == 0:
		return -1
	case a == -1<<31 && b == -1:
		return a
	default:
		return a / b
	}
}

func divu32(a, b uint32) uint32 {
	if b == 0 {
		return 0xFFFFFFFF
	}
	return a / b
}

func rem32(a, b int32) int32 {
	switch {
	case b == 0:
		return a
	case a == -1<<31 && b == -1:
		return 0
	default:
		return a % b
	}
}

func remu32(a, b uint32) uint32 {
	if b == 0 {
		return a
	}
	return a % b
}

// Step runs one fetch-decode-execute cycle: interrupt check, 4-byte
// fetch, dispatch. It returns a non-nil *RuntimeError when the
// instruction trapped (fetch/load/store fault, unhandled opcode, or a
// call sanitizer violation) and leaves c.Exited set once the guest has
// issued an exit syscall or shut the machine down via the power device.
func (c *CPU) Step() *RuntimeError {
	c.Regs[0] = 0
	c.Cycles++

	if c.CSR[CSRMstatus]&StatusSIE != 0 {
		pending := c.CSR[CSRMip] & c.CSR[CSRMie]
		if pending != 0 {
			c.DeliverInterrupt(CauseInterrupt | uint32(ctz32(pending)))
			return nil
		}
	}

	raw, ok := c.Load(c.PC, 4)
	if !ok {
		return &RuntimeError{Kind: ErrFetch, PC: c.PC, Params: [2]uint32{c.PC}}
	}
	if raw&0x3 != 0x3 {
		return &RuntimeError{Kind: ErrUnhandledInsn, PC: c.PC, Params: [2]uint32{c.PC}}
	}

	return c.execute(raw)
}

func ctz32(v uint32) int {
	if v == 0 {
		return 32
	}
	n := 0
	for v&1 == 0 {
		v >>= 1
		n++
	}
	return n
}

func (c *CPU) execute(inst uint32) *RuntimeError {
	rd := extr(inst, 11, 7)
	rs1 := extr(inst, 19, 15)
	rs2 := extr(inst, 24, 20)
	funct7 := extr(inst, 31, 25)
	funct3 := extr(inst, 14, 12)

	btype := sext((extr(inst, 31, 31)<<12)|(extr(inst, 7, 7)<<11)|(extr(inst, 30, 25)<<5)|(extr(inst, 11, 8)<<1), 13)
	stype := sext((extr(inst, 31, 25)<<5)|extr(inst, 11, 7), 12)
	jtype := sext((extr(inst, 31, 31)<<20)|(extr(inst, 19, 12)<<12)|(extr(inst, 20, 20)<<11)|(extr(inst, 30, 21)<<1), 21)
	itype := sext(extr(inst, 31, 20), 12)
	utype := extr(inst, 31, 12) << 12

	s1 := c.reg(rs1)
	s2 := c.reg(rs2)
	opcode := extr(inst, 6, 0)

	switch opcode {
	case 0x37: // LUI
		c.setReg(rd, utype)
		c.afterALU(rd)
		return nil

	case 0x17: // AUIPC
		c.setReg(rd, c.PC+utype)
		c.afterALU(rd)
		return nil

	case 0x6F: // JAL
		c.setReg(rd, c.PC+4)
		if c.Sanitizer != nil {
			c.Sanitizer.Store(rd)
		}
		c.PC += uint32(jtype)
		if rd == 1 && c.Sanitizer != nil {
			c.Sanitizer.Call(c.PC, &c.Regs, c.Regs[2])
		}
		c.LastRegWritten = rd
		return nil

	case 0x67: // JALR
		if rerr := c.canLoad(rs1); rerr != nil {
			return rerr
		}
		if c.Sanitizer != nil {
			c.Sanitizer.Store(rd)
		}
		link := c.PC + 4
		if rd == 0 && rs1 == 1 {
			if c.Sanitizer != nil {
				if rerr := c.Sanitizer.Ret(&c.Regs); rerr != nil {
					rerr.PC = c.PC
					return rerr
				}
			}
		}
		c.PC = (s1 + uint32(itype)) &^ 1
		if rd == 1 && c.Sanitizer != nil {
			c.Sanitizer.Call(c.PC, &c.Regs, c.Regs[2])
		}
		c.setReg(rd, link)
		return nil

	case 0x63: // branches
		if rerr := c.canLoad(rs1); rerr != nil {
			return rerr
		}
		if rerr := c.canLoad(rs2); rerr != nil {
			return rerr
		}
		var taken bool
		switch funct3 >> 1 {
		case 0:
			taken = s1 == s2
		case 2:
			taken = int32(s1) < int32(s2)
		case 3:
			taken = s1 < s2
		default:
			return &RuntimeError{Kind: ErrUnhandledInsn, PC: c.PC, Params: [2]uint32{c.PC}}
		}
		if funct3&1 != 0 {
			taken = !taken
		}
		if taken {
			c.PC += uint32(btype)
		} else {
			c.PC += 4
		}
		return nil

	case 0x03: // loads
		return c.executeLoad(rd, rs1, funct3, itype)

	case 0x23: // stores
		return c.executeStore(rs1, rs2, funct3, stype)

	case 0x13: // I-type ALU
		return c.executeIType(rd, rs1, funct3, funct7, itype)

	case 0x33: // R-type ALU / M-extension
		return c.executeRType(rd, rs1, rs2, funct3, funct7)

	case 0x73: // SYSTEM
		return c.executeSystem(rd, rs1, funct3, itype)
	}

	return &RuntimeError{Kind: ErrUnhandledInsn, PC: c.PC, Params: [2]uint32{c.PC}}
}

func (c *CPU) afterALU(rd uint32) {
	c.PC += 4
	if c.Sanitizer != nil {
		c.Sanitizer.Store(rd)
	}
	c.LastRegWritten = rd
}

func (c *CPU) canLoad(reg uint32) *RuntimeError {
	if c.Sanitizer == nil {
		return nil
	}
	if rerr := c.Sanitizer.CanLoad(reg); rerr != nil {
		rerr.PC = c.PC
		return rerr
	}
	return nil
}

func (c *CPU) executeLoad(rd, rs1, funct3 uint32, itype int32) *RuntimeError {
	if rerr := c.canLoad(rs1); rerr != nil {
		return rerr
	}
	addr := c.reg(rs1) + uint32(itype)

	var val uint32
	var ok bool
	switch funct3 {
	case 0b000:
		var raw uint32
		raw, ok = c.Load(addr, 1)
		val = uint32(sext(raw, 8))
	case 0b001:
		var raw uint32
		raw, ok = c.Load(addr, 2)
		val = uint32(sext(raw, 16))
	case 0b010:
		val, ok = c.Load(addr, 4)
	case 0b100:
		val, ok = c.Load(addr, 1)
	case 0b101:
		val, ok = c.Load(addr, 2)
	default:
		return &RuntimeError{Kind: ErrUnhandledInsn, PC: c.PC, Params: [2]uint32{c.PC}}
	}
	if !ok {
		return &RuntimeError{Kind: ErrLoad, PC: c.PC, Params: [2]uint32{addr}}
	}
	size := uint32(1) << (funct3 & 0b11)
	if c.Sanitizer != nil && !c.Sanitizer.CheckLoad(addr, size) {
		return &RuntimeError{Kind: ErrCallsanLoadStack, PC: c.PC, Params: [2]uint32{addr}}
	}

	c.setReg(rd, val)
	c.afterALU(rd)
	return nil
}

func (c *CPU) executeStore(rs1, rs2, funct3 uint32, stype int32) *RuntimeError {
	if rerr := c.canLoad(rs1); rerr != nil {
		return rerr
	}
	if rerr := c.canLoad(rs2); rerr != nil {
		return rerr
	}
	addr := c.reg(rs1) + uint32(stype)
	val := c.reg(rs2)

	var ok bool
	switch funct3 {
	case 0b000:
		ok = c.Store(addr, val, 1)
	case 0b001:
		ok = c.Store(addr, val, 2)
	case 0b010:
		ok = c.Store(addr, val, 4)
	default:
		return &RuntimeError{Kind: ErrUnhandledInsn, PC: c.PC, Params: [2]uint32{c.PC}}
	}
	if !ok {
		return &RuntimeError{Kind: ErrStore, PC: c.PC, Params: [2]uint32{addr}}
	}
	if c.Sanitizer != nil {
		c.Sanitizer.ReportStore(addr, uint32(1)<<funct3, rs2)
	}
	c.PC += 4
	return nil
}

func (c *CPU) executeIType(rd, rs1, funct3, funct7 uint32, itype int32) *RuntimeError {
	if rerr := c.canLoad(rs1); rerr != nil {
		return rerr
	}
	s1 := c.reg(rs1)
	shamt := uint32(itype) & 31
	var result uint32
	switch {
	case funct3 == 0b000:
		result = s1 + uint32(itype)
	case funct3 == 0b010:
		if int32(s1) < itype {
			result = 1
		}
	case funct3 == 0b011:
		if s1 < uint32(itype) {
			result = 1
		}
	case funct3 == 0b100:
		result = s1 ^ uint32(itype)
	case funct3 == 0b110:
		result = s1 | uint32(itype)
	case funct3 == 0b111:
		result = s1 & uint32(itype)
	case funct3 == 0b001 && funct7 == 0:
		result = s1 << shamt
	case funct3 == 0b101 && funct7 == 0:
		result = s1 >> shamt
	case funct3 == 0b101 && funct7 == 32:
		result = uint32(int32(s1) >> shamt)
	default:
		return &RuntimeError{Kind: ErrUnhandledInsn, PC: c.PC, Params: [2]uint32{c.PC}}
	}
	c.setReg(rd, result)
	c.afterALU(rd)
	return nil
}

func (c *CPU) executeRType(rd, rs1, rs2, funct3, funct7 uint32) *RuntimeError {
	if rerr := c.canLoad(rs1); rerr != nil {
		return rerr
	}
	if rerr := c.canLoad(rs2); rerr != nil {
		return rerr
	}
	s1, s2 := c.reg(rs1), c.reg(rs2)
	shamt := s2 & 31
	var result uint32
	switch {
	case funct3 == 0b000 && funct7 == 0:
		result = s1 + s2
	case funct3 == 0b000 && funct7 == 32:
		result = s1 - s2
	case funct3 == 0b001 && funct7 == 0:
		result = s1 << shamt
	case funct3 == 0b010 && funct7 == 0:
		if int32(s1) < int32(s2) {
			result = 1
		}
	case funct3 == 0b011 && funct7 == 0:
		if s1 < s2 {
			result = 1
		}
	case funct3 == 0b100 && funct7 == 0:
		result = s1 ^ s2
	case funct3 == 0b101 && funct7 == 0:
		result = s1 >> shamt
	case funct3 == 0b101 && funct7 == 32:
		result = uint32(int32(s1) >> shamt)
	case funct3 == 0b110 && funct7 == 0:
		result = s1 | s2
	case funct3 == 0b111 && funct7 == 0:
		result = s1 & s2
	case funct3 == 0b000 && funct7 == 1:
		result = uint32(int32(s1) * int32(s2))
	case funct3 == 0b001 && funct7 == 1:
		result = uint32((int64(int32(s1)) * int64(int32(s2))) >> 32)
	case funct3 == 0b010 && funct7 == 1:
		result = uint32((int64(int32(s1)) * int64(s2)) >> 32)
	case funct3 == 0b011 && funct7 == 1:
		result = uint32((uint64(s1) * uint64(s2)) >> 32)
	case funct3 == 0b100 && funct7 == 1:
		result = uint32(div32(int32(s1), int32(s2)))
	case funct3 == 0b101 && funct7 == 1:
		result = divu32(s1, s2)
	case funct3 == 0b110 && funct7 == 1:
		result = uint32(rem32(int32(s1), int32(s2)))
	case funct3 == 0b111 && funct7 == 1:
		result = remu32(s1, s2)
	default:
		return &RuntimeError{Kind: ErrUnhandledInsn, PC: c.PC, Params: [2]uint32{c.PC}}
	}
	c.setReg(rd, result)
	c.afterALU(rd)
	return nil
}

func (c *CPU) executeSystem(rd, rs1, funct3 uint32, itype int32) *RuntimeError {
	if funct3 == 0b000 {
		switch itype {
		case 0x102: // SRET
			return c.doSRET()
		case 0x001: // EBREAK
			c.Exited = true
			c.PC += 4
			return nil
		default: // ECALL
			return c.doSyscall()
		}
	}

	csr := uint32(itype) & 0xFFF
	old := c.readCSR(csr)
	switch funct3 {
	case 0b001: // CSRRW
		if rs1 != 0 {
			c.writeCSR(csr, c.reg(rs1))
		}
	case 0b010: // CSRRS
		if rs1 != 0 {
			c.writeCSR(csr, old|c.reg(rs1))
		}
	case 0b011: // CSRRC
		if rs1 != 0 {
			c.writeCSR(csr, old&^c.reg(rs1))
		}
	case 0b101: // CSRRWI
		old = c.CSR[csr]
		if rs1 != 0 {
			c.writeCSR(csr, rs1)
		}
	case 0b110: // CSRRSI
		if rs1 != 0 {
			c.writeCSR(csr, old|rs1)
		}
	case 0b111: // CSRRCI
		if rs1 != 0 {
			c.writeCSR(csr, old&^rs1)
		}
	default:
		return &RuntimeError{Kind: ErrUnhandledInsn, PC: c.PC, Params: [2]uint32{c.PC}}
	}
	c.setReg(rd, old)
	if c.Sanitizer != nil {
		c.Sanitizer.Store(rd)
	}

	// CSR instructions themselves are not privileged; the s/m CSRs they
	// address are. A precise check would distinguish by CSR number.
	if c.Privilege == memmap.PrivUser {
		return &RuntimeError{Kind: ErrProtection, PC: c.PC, Params: [2]uint32{c.PC}}
	}

	c.PC += 4
	c.LastRegWritten = rd
	return nil
}
