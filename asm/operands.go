package asm

import "fmt"

// parseReg parses a register operand (name or x0-x31 alias).
func (s *Session) parseReg(c *Cursor) (uint32, error) {
	c.SkipInline()
	ident, ok := c.ParseIdent()
	if !ok {
		return 0, errAt(c.pposition(), "expected register operand")
	}
	reg, ok := lookupRegister(ident)
	if !ok {
		return 0, errAt(c.pposition(), "unknown register %q", ident)
	}
	return reg, nil
}

func (s *Session) expectComma(c *Cursor) error {
	c.SkipInline()
	if c.peek() != ',' {
		return errAt(c.pposition(), "expected ','")
	}
	c.advance()
	return nil
}

// operand is either a resolved immediate or a pending label reference.
type operand struct {
	isLabel bool
	value   int32
	label   string
	pos     Position
}

// parseImmOrLabel parses a numeric literal, or failing that, an
// identifier naming a label to be resolved (now or deferred).
func (s *Session) parseImmOrLabel(c *Cursor) (operand, error) {
	c.SkipInline()
	pos := c.pposition()
	if v, ok := c.ParseNumeric(); ok {
		return operand{value: v, pos: pos}, nil
	}
	if ident, ok := c.ParseIdent(); ok {
		return operand{isLabel: true, label: ident, pos: pos}, nil
	}
	return operand{}, errAt(pos, "expected immediate or label")
}

// parseImm parses a plain numeric literal immediate (no label form
// accepted), as required by the ALU-immediate/load-store/upper-immediate
// grammars.
func (s *Session) parseImm(c *Cursor) (int32, error) {
	c.SkipInline()
	pos := c.pposition()
	v, ok := c.ParseNumeric()
	if !ok {
		return 0, errAt(pos, "expected immediate")
	}
	return v, nil
}

// parseMemOperand parses `imm(reg)` as used by loads and stores.
func (s *Session) parseMemOperand(c *Cursor) (imm int32, reg uint32, err error) {
	imm, err = s.parseImm(c)
	if err != nil {
		// imm is optional and defaults to 0 in some assemblers, but this
		// grammar always requires it explicitly.
		return 0, 0, err
	}
	c.SkipInline()
	if c.peek() != '(' {
		return 0, 0, errAt(c.pposition(), "expected '(' in memory operand")
	}
	c.advance()
	reg, err = s.parseReg(c)
	if err != nil {
		return 0, 0, err
	}
	c.SkipInline()
	if c.peek() != ')' {
		return 0, 0, errAt(c.pposition(), "expected ')' in memory operand")
	}
	c.advance()
	return imm, reg, nil
}

// expectEOL requires only whitespace/comments until the next newline or
// EOF.
func (s *Session) expectEOL(c *Cursor) error {
	c.SkipInline()
	if c.eof() || c.peek() == '\n' {
		return nil
	}
	return errAt(c.pposition(), "unexpected trailing text %q", string(c.peek()))
}

func (s *Session) csrNumber(c *Cursor) (uint32, error) {
	c.SkipInline()
	pos := c.pposition()
	if ident, ok := c.ParseIdent(); ok {
		if n, ok := csrNames[ident]; ok {
			return n, nil
		}
		return 0, errAt(pos, "unknown CSR name %q", ident)
	}
	v, ok := c.ParseNumeric()
	if !ok {
		return 0, errAt(pos, "expected CSR number or name")
	}
	return uint32(v) & 0xFFF, nil
}

var errNoMatch = fmt.Errorf("no match")
