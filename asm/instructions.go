package asm

import (
	"strings"

	"github.com/lookbusy1344/rv32toolchain/encoder"
)

func splitImm(v int32) (int32, int32) { return encoder.SplitImm32(v) }

func iWord(mnemonic string, rd, rs1 uint32, imm int32) uint32 {
	w, _ := encoder.EncodeIType(mnemonic, encoder.Operands{Rd: rd, Rs1: rs1, Imm: imm})
	return w
}

func upperWord(mnemonic string, rd uint32, imm int32) uint32 {
	w, _ := encoder.EncodeUpper(mnemonic, encoder.Operands{Rd: rd, Imm: imm})
	return w
}

func branchWord(mnemonic string, rs1, rs2 uint32, off int32) (uint32, error) {
	return encoder.EncodeBranch(mnemonic, encoder.Operands{Rs1: rs1, Rs2: rs2, Imm: off})
}

func jalWord(rd uint32, off int32) (uint32, error) {
	return encoder.EncodeJAL(encoder.Operands{Rd: rd, Imm: off})
}

// instruction parses and emits one instruction line, deferring label
// resolution where the grammar allows a label operand.
func (s *Session) instruction(c *Cursor) error {
	pos := c.pposition()
	line := pos.Line
	ident, ok := c.ParseIdent()
	if !ok {
		return errAt(pos, "expected instruction")
	}
	mnemonic := strings.ToLower(ident)

	switch {
	case encoder.IsRType(mnemonic):
		return s.emitRType(c, mnemonic, pos, line)
	case encoder.IsIType(mnemonic):
		return s.emitIType(c, mnemonic, pos, line)
	case encoder.IsLoad(mnemonic):
		return s.emitLoad(c, mnemonic, pos, line)
	case encoder.IsStore(mnemonic):
		return s.emitStore(c, mnemonic, pos, line)
	case encoder.IsCSR(mnemonic):
		return s.emitCSR(c, mnemonic, pos, line)
	}

	if real, _, zok := ZeroBranchFormName(mnemonic); zok {
		return s.emitZeroBranch(c, mnemonic, real, pos, line)
	}
	if encoder.IsBranch(mnemonic) {
		return s.emitBranch(c, mnemonic, pos, line)
	}

	switch mnemonic {
	case "mv":
		return s.emitRegPseudo(c, pos, line, func(rd, rs uint32) uint32 { return iWord("addi", rd, rs, 0) })
	case "not":
		return s.emitRegPseudo(c, pos, line, func(rd, rs uint32) uint32 { return iWord("xori", rd, rs, -1) })
	case "neg":
		return s.emitRegPseudo(c, pos, line, func(rd, rs uint32) uint32 {
			w, _ := encoder.EncodeRType("sub", encoder.Operands{Rd: rd, Rs1: 0, Rs2: rs})
			return w
		})
	case "seqz":
		return s.emitRegPseudo(c, pos, line, func(rd, rs uint32) uint32 { return iWord("sltiu", rd, rs, 1) })
	case "snez":
		return s.emitRegPseudo(c, pos, line, func(rd, rs uint32) uint32 {
			w, _ := encoder.EncodeRType("sltu", encoder.Operands{Rd: rd, Rs1: 0, Rs2: rs})
			return w
		})
	case "sltz":
		return s.emitRegPseudo(c, pos, line, func(rd, rs uint32) uint32 {
			w, _ := encoder.EncodeRType("slt", encoder.Operands{Rd: rd, Rs1: rs, Rs2: 0})
			return w
		})
	case "sgtz":
		return s.emitRegPseudo(c, pos, line, func(rd, rs uint32) uint32 {
			w, _ := encoder.EncodeRType("slt", encoder.Operands{Rd: rd, Rs1: 0, Rs2: rs})
			return w
		})
	case "j":
		return s.emitJump(c, pos, line, 0, true)
	case "jal":
		return s.emitJalMaybeRd(c, pos, line)
	case "jr":
		rs, err := s.parseReg(c)
		if err != nil {
			return err
		}
		return s.emitImmediate(iWord("jalr", 0, rs, 0), pos, line)
	case "jalr":
		return s.emitJalr(c, pos, line)
	case "ret":
		return s.emitImmediate(iWord("jalr", 0, 1, 0), pos, line)
	case "lui", "auipc":
		return s.emitUpper(c, mnemonic, pos, line)
	case "li":
		return s.emitLi(c, pos, line)
	case "la":
		return s.emitLa(c, pos, line)
	case "ecall":
		if err := s.expectNoOperands(c); err != nil {
			return err
		}
		return s.emitImmediate(encoder.EncodeECALL(), pos, line)
	case "sret":
		if err := s.expectNoOperands(c); err != nil {
			return err
		}
		return s.emitImmediate(encoder.EncodeSRET(), pos, line)
	}

	return errAt(pos, "unknown mnemonic %q", mnemonic)
}

func (s *Session) expectNoOperands(c *Cursor) error { return nil }

func (s *Session) emitImmediate(word uint32, pos Position, line int) error {
	s.LineTable[s.cur.Addr()] = line
	return s.cur.EmitBytes(leWord(word))
}

func (s *Session) emitRType(c *Cursor, mnemonic string, pos Position, line int) error {
	rd, err := s.parseReg(c)
	if err != nil {
		return err
	}
	if err := s.expectComma(c); err != nil {
		return err
	}
	rs1, err := s.parseReg(c)
	if err != nil {
		return err
	}
	if err := s.expectComma(c); err != nil {
		return err
	}
	rs2, err := s.parseReg(c)
	if err != nil {
		return err
	}
	w, err := encoder.EncodeRType(mnemonic, encoder.Operands{Rd: rd, Rs1: rs1, Rs2: rs2})
	if err != nil {
		return errAt(pos, "%s", err)
	}
	return s.emitImmediate(w, pos, line)
}

func (s *Session) emitIType(c *Cursor, mnemonic string, pos Position, line int) error {
	rd, err := s.parseReg(c)
	if err != nil {
		return err
	}
	if err := s.expectComma(c); err != nil {
		return err
	}
	rs1, err := s.parseReg(c)
	if err != nil {
		return err
	}
	if err := s.expectComma(c); err != nil {
		return err
	}
	imm, err := s.parseImm(c)
	if err != nil {
		return err
	}
	w, err := encoder.EncodeIType(mnemonic, encoder.Operands{Rd: rd, Rs1: rs1, Imm: imm})
	if err != nil {
		return errAt(pos, "%s", err)
	}
	return s.emitImmediate(w, pos, line)
}

func (s *Session) emitLoad(c *Cursor, mnemonic string, pos Position, line int) error {
	rd, err := s.parseReg(c)
	if err != nil {
		return err
	}
	if err := s.expectComma(c); err != nil {
		return err
	}
	imm, rs1, err := s.parseMemOperand(c)
	if err != nil {
		return err
	}
	w, err := encoder.EncodeLoad(mnemonic, encoder.Operands{Rd: rd, Rs1: rs1, Imm: imm})
	if err != nil {
		return errAt(pos, "%s", err)
	}
	return s.emitImmediate(w, pos, line)
}

func (s *Session) emitStore(c *Cursor, mnemonic string, pos Position, line int) error {
	rs2, err := s.parseReg(c)
	if err != nil {
		return err
	}
	if err := s.expectComma(c); err != nil {
		return err
	}
	imm, rs1, err := s.parseMemOperand(c)
	if err != nil {
		return err
	}
	w, err := encoder.EncodeStore(mnemonic, encoder.Operands{Rs1: rs1, Rs2: rs2, Imm: imm})
	if err != nil {
		return errAt(pos, "%s", err)
	}
	return s.emitImmediate(w, pos, line)
}

func (s *Session) emitCSR(c *Cursor, mnemonic string, pos Position, line int) error {
	rd, err := s.parseReg(c)
	if err != nil {
		return err
	}
	if err := s.expectComma(c); err != nil {
		return err
	}
	csr, err := s.csrNumber(c)
	if err != nil {
		return err
	}
	if err := s.expectComma(c); err != nil {
		return err
	}
	var rs1 uint32
	if strings.HasSuffix(mnemonic, "i") {
		imm, err := s.parseImm(c)
		if err != nil {
			return err
		}
		if err := checkUimm5(imm); err != nil {
			return errAt(pos, "%s", err)
		}
		rs1 = uint32(imm) & 0x1F
	} else {
		rs1, err = s.parseReg(c)
		if err != nil {
			return err
		}
	}
	w, err := encoder.EncodeCSR(mnemonic, encoder.Operands{Rd: rd, Rs1: rs1, CSR: csr})
	if err != nil {
		return errAt(pos, "%s", err)
	}
	return s.emitImmediate(w, pos, line)
}

func checkUimm5(v int32) error {
	if v < 0 || v > 31 {
		return &encoder.RangeError{Value: int64(v), Low: 0, High: 31, Field: "csr uimm"}
	}
	return nil
}

func (s *Session) emitRegPseudo(c *Cursor, pos Position, line int, f func(rd, rs uint32) uint32) error {
	rd, err := s.parseReg(c)
	if err != nil {
		return err
	}
	if err := s.expectComma(c); err != nil {
		return err
	}
	rs, err := s.parseReg(c)
	if err != nil {
		return err
	}
	return s.emitImmediate(f(rd, rs), pos, line)
}

// emitBranch handles the six real branches and the four swapped pseudos.
func (s *Session) emitBranch(c *Cursor, mnemonic string, pos Position, line int) error {
	rs1, err := s.parseReg(c)
	if err != nil {
		return err
	}
	if err := s.expectComma(c); err != nil {
		return err
	}
	rs2, err := s.parseReg(c)
	if err != nil {
		return err
	}
	if err := s.expectComma(c); err != nil {
		return err
	}
	real, swap := encoder.BranchSwap(mnemonic)
	if swap {
		rs1, rs2 = rs2, rs1
	}
	return s.deferBranchOrJump(c, pos, line, real, rs1, rs2, 0, false)
}

// ZeroBranchFormName is the asm-local wrapper around the encoder's
// zero-branch table (kept here so the session doesn't need to expose
// encoder internals directly to its own dispatcher).
func ZeroBranchFormName(mnemonic string) (real string, rsIsFirst bool, ok bool) {
	return encoder.ZeroBranchForm(mnemonic)
}

func (s *Session) emitZeroBranch(c *Cursor, mnemonic, real string, pos Position, line int) error {
	rs, err := s.parseReg(c)
	if err != nil {
		return err
	}
	if err := s.expectComma(c); err != nil {
		return err
	}
	_, rsFirst, _ := ZeroBranchFormName(mnemonic)
	var rs1, rs2 uint32
	if rsFirst {
		rs1, rs2 = rs, 0
	} else {
		rs1, rs2 = 0, rs
	}
	return s.deferBranchOrJump(c, pos, line, real, rs1, rs2, 0, false)
}

// deferBranchOrJump parses a trailing label operand and either encodes
// the branch/jal immediately (label already defined) or reserves space
// and queues a deferredInsn for pass two.
func (s *Session) deferBranchOrJump(c *Cursor, pos Position, line int, mnemonic string, rs1, rs2, rd uint32, isJal bool) error {
	op, err := s.parseImmOrLabel(c)
	if err != nil {
		return err
	}
	s.LineTable[s.cur.Addr()] = line

	encode := func(off int32) (uint32, error) {
		if isJal {
			return jalWord(rd, off)
		}
		return branchWord(mnemonic, rs1, rs2, off)
	}

	if !op.isLabel {
		w, err := encode(op.value)
		if err != nil {
			return errAt(pos, "%s", err)
		}
		return s.cur.EmitBytes(leWord(w))
	}

	if lbl, ok := s.Sym.Lookup(op.label); ok {
		off := int32(lbl.Addr) - int32(s.cur.Addr())
		w, err := encode(off)
		if err != nil {
			return errAt(pos, "%s", err)
		}
		return s.cur.EmitBytes(leWord(w))
	}

	kind := deferredBranch
	if isJal {
		kind = deferredJAL
	}
	offset := s.reserve(4)
	s.deferred = append(s.deferred, deferredInsn{kind: kind, pos: pos, section: s.cur, offset: offset, label: op.label, rd: rd, rs1: rs1, rs2: rs2, mnemonic: mnemonic})
	return nil
}

func (s *Session) emitJalMaybeRd(c *Cursor, pos Position, line int) error {
	m := c.save()
	c.SkipInline()
	if rd, err := s.parseReg(c); err == nil {
		c.SkipInline()
		if c.peek() == ',' {
			c.advance()
			return s.deferBranchOrJump(c, pos, line, "", 0, 0, rd, true)
		}
	}
	c.restore(m)
	return s.deferBranchOrJump(c, pos, line, "", 0, 0, 1, true)
}

func (s *Session) emitJump(c *Cursor, pos Position, line int, rd uint32, isJal bool) error {
	return s.deferBranchOrJump(c, pos, line, "", 0, 0, rd, isJal)
}

func (s *Session) emitJalr(c *Cursor, pos Position, line int) error {
	m := c.save()
	// Form 1: jalr rs
	if rs, err := s.parseReg(c); err == nil {
		c.SkipInline()
		if c.peek() != ',' {
			return s.emitImmediate(iWord("jalr", 1, rs, 0), pos, line)
		}
	}
	c.restore(m)

	rd, err := s.parseReg(c)
	if err != nil {
		return err
	}
	if err := s.expectComma(c); err != nil {
		return err
	}
	// Form 3: jalr rd, imm(rs)
	m2 := c.save()
	if imm, rs, err := s.parseMemOperand(c); err == nil {
		return s.emitImmediate(iWord("jalr", rd, rs, imm), pos, line)
	}
	c.restore(m2)
	// Form 2: jalr rd, rs, imm
	rs, err := s.parseReg(c)
	if err != nil {
		return err
	}
	if err := s.expectComma(c); err != nil {
		return err
	}
	imm, err := s.parseImm(c)
	if err != nil {
		return err
	}
	return s.emitImmediate(iWord("jalr", rd, rs, imm), pos, line)
}

func (s *Session) emitUpper(c *Cursor, mnemonic string, pos Position, line int) error {
	rd, err := s.parseReg(c)
	if err != nil {
		return err
	}
	if err := s.expectComma(c); err != nil {
		return err
	}
	imm, err := s.parseImm(c)
	if err != nil {
		return err
	}
	w, err := encoder.EncodeUpper(mnemonic, encoder.Operands{Rd: rd, Imm: imm})
	if err != nil {
		return errAt(pos, "%s", err)
	}
	return s.emitImmediate(w, pos, line)
}

func (s *Session) emitLi(c *Cursor, pos Position, line int) error {
	rd, err := s.parseReg(c)
	if err != nil {
		return err
	}
	if err := s.expectComma(c); err != nil {
		return err
	}
	imm, err := s.parseImm(c)
	if err != nil {
		return err
	}
	if imm >= -2048 && imm <= 2047 {
		return s.emitImmediate(iWord("addi", rd, 0, imm), pos, line)
	}
	hi, lo := splitImm(imm)
	s.LineTable[s.cur.Addr()] = line
	if err := s.cur.EmitBytes(leWord(upperWord("lui", rd, hi))); err != nil {
		return err
	}
	return s.cur.EmitBytes(leWord(iWord("addi", rd, rd, lo)))
}

func (s *Session) emitLa(c *Cursor, pos Position, line int) error {
	rd, err := s.parseReg(c)
	if err != nil {
		return err
	}
	if err := s.expectComma(c); err != nil {
		return err
	}
	op, err := s.parseImmOrLabel(c)
	if err != nil {
		return err
	}
	if !op.isLabel {
		return errAt(pos, "la requires a label operand")
	}
	s.LineTable[s.cur.Addr()] = line

	emitAt := func(target uint32) error {
		hi, lo := splitImm(int32(target) - int32(s.cur.Addr()))
		if err := s.cur.EmitBytes(leWord(upperWord("auipc", rd, hi))); err != nil {
			return err
		}
		return s.cur.EmitBytes(leWord(iWord("addi", rd, rd, lo)))
	}

	if lbl, ok := s.Sym.Lookup(op.label); ok {
		return emitAt(lbl.Addr)
	}

	offset := s.reserve(8)
	s.deferred = append(s.deferred, deferredInsn{kind: deferredLA, pos: pos, section: s.cur, offset: offset, label: op.label, rd: rd})
	return nil
}
