package asm

// directive dispatches one recognized directive keyword (name already
// lower-cased and stripped of its leading '.').
func (s *Session) directive(c *Cursor, name string, pos Position) error {
	switch name {
	case "section":
		c.SkipInline()
		ident, ok := c.ParseIdent()
		if !ok {
			return errAt(pos, "expected section name")
		}
		sec := s.Mem.Find(ident)
		if sec == nil {
			return errAt(pos, "Section not found")
		}
		s.cur = sec
		return nil
	case "text":
		s.cur = s.Mem.Find(".text")
		return nil
	case "data":
		s.cur = s.Mem.Find(".data")
		return nil
	case "globl", "global":
		c.SkipInline()
		ident, ok := c.ParseIdent()
		if !ok {
			return errAt(pos, "expected symbol name")
		}
		s.Sym.DeclareGlobal(ident, pos)
		return nil
	case "byte":
		return s.emitIntList(c, pos, 1, -128, 255)
	case "half":
		return s.emitIntList(c, pos, 2, -32768, 65535)
	case "word":
		return s.emitIntList(c, pos, 4, -2147483648, 4294967295)
	case "ascii":
		return s.emitStringList(c, pos, false)
	case "asciz", "asciiz", "string":
		return s.emitStringList(c, pos, true)
	}
	return errAt(pos, "unrecognized directive %q", name)
}

func (s *Session) emitIntList(c *Cursor, pos Position, width int, low, high int64) error {
	for {
		c.SkipInline()
		p := c.pposition()
		v, ok := c.ParseNumeric()
		if !ok {
			return errAt(p, "expected numeric literal")
		}
		if err := checkDirectiveRange(int64(v), low, high); err != nil {
			return errAt(p, "%s", err)
		}
		var bytes []byte
		switch width {
		case 1:
			bytes = []byte{byte(v)}
		case 2:
			bytes = leHalf(uint16(v))
		case 4:
			bytes = leWord(uint32(v))
		}
		if err := s.cur.EmitBytes(bytes); err != nil {
			return errAt(pos, "%s", err)
		}
		c.SkipInline()
		if c.peek() != ',' {
			return nil
		}
		c.advance()
	}
}

func checkDirectiveRange(v, low, high int64) error {
	// word values stored as an int32 widened to int64 read negative for
	// values above 0x7FFFFFFF; accept the full 32-bit unsigned span too.
	if v >= low && v <= high {
		return nil
	}
	if uv := int64(uint32(v)); uv >= low && uv <= high {
		return nil
	}
	return errAt(Position{}, "Out of bounds imm")
}

func (s *Session) emitStringList(c *Cursor, pos Position, terminate bool) error {
	for {
		c.SkipInline()
		str, ok, err := c.ParseQuotedString()
		if err != nil {
			return errAt(pos, "%s", err)
		}
		if !ok {
			return errAt(pos, "expected string literal")
		}
		b := []byte(str)
		if terminate {
			b = append(b, 0)
		}
		if err := s.cur.EmitBytes(b); err != nil {
			return errAt(pos, "%s", err)
		}
		c.SkipInline()
		if c.peek() != ',' {
			return nil
		}
		c.advance()
	}
}
