package asm

import (
	"strings"

	"github.com/lookbusy1344/rv32toolchain/memmap"
)

// deferredKind distinguishes the handful of instruction shapes whose
// encoding depends on a label address that may not be known during pass
// one.
type deferredKind int

const (
	deferredBranch deferredKind = iota
	deferredJAL
	deferredLA // two words: auipc + addi, HI20/LO12_I
)

// deferredInsn is a parser-snapshot replay entry (§4.4/§9): everything
// needed to finish encoding an instruction once the label table is
// frozen, without re-lexing the source line.
type deferredInsn struct {
	kind    deferredKind
	pos     Position
	section *memmap.Section
	offset  uint32 // offset within section.Contents where the reserved word(s) live
	label   string
	rd, rs1, rs2 uint32
	mnemonic string
}

// Session is the per-assembly-run aggregate of sections, labels, globals,
// externs, and the deferred-instruction queue (spec's Design Notes call
// this out explicitly as the thing to not leak across runs). It is simply
// discarded by the caller when assembly finishes; there is no explicit
// teardown call in Go.
type Session struct {
	Mem          *memmap.Map
	Sym          *SymbolTable
	AllowExterns bool

	cur      *memmap.Section
	deferred []deferredInsn

	// LineTable maps an instruction's address to the 1-based source line
	// it came from; it is handed back to the caller in Result.LineTable.
	LineTable map[uint32]int

	filename string
}

// Result is everything downstream consumers (the interpreter, the object
// codec) need after a successful assembly.
type Result struct {
	Mem       *memmap.Map
	Sym       *SymbolTable
	EntryPC   uint32
	EntryPriv memmap.Privilege
	LineTable map[uint32]int
}

// Assemble runs both passes over src and returns the populated session
// result, or the first *Error encountered.
func Assemble(filename, src string, allowExterns bool) (*Result, error) {
	s := &Session{
		Mem:       memmap.New(),
		Sym:       newSymbolTable(),
		AllowExterns: allowExterns,
		LineTable: make(map[uint32]int),
		filename:  filename,
	}
	s.cur = s.Mem.Find(".text")
	prepareDefaultSymbols(s)

	c := newCursor(filename, src)
	if err := s.passOne(c); err != nil {
		if _, ok := err.(*Error); !ok {
			err = errAt(c.pposition(), "%s", err)
		}
		return nil, err
	}
	if err := s.passTwo(); err != nil {
		return nil, err
	}

	pc, priv, err := s.resolveEntry()
	if err != nil {
		return nil, err
	}

	return &Result{Mem: s.Mem, Sym: s.Sym, EntryPC: pc, EntryPriv: priv, LineTable: s.LineTable}, nil
}

// passOne walks the whole source, switching sections on directives,
// defining labels, and emitting bytes — reserving placeholder space and
// recording a deferredInsn wherever a referenced label is not yet known.
func (s *Session) passOne(c *Cursor) error {
	for {
		c.SkipInline()
		if c.eof() {
			return nil
		}
		if c.peek() == '\n' {
			c.advance()
			continue
		}
		if err := s.statement(c); err != nil {
			return err
		}
	}
}

// statement consumes zero or more label definitions followed by an
// optional instruction or directive, ending at the line's newline.
func (s *Session) statement(c *Cursor) error {
	for {
		c.SkipInline()
		if c.eof() || c.peek() == '\n' {
			return nil
		}
		pos := c.pposition()
		m := c.save()
		ident, ok := c.ParseIdent()
		if !ok {
			return errAt(pos, "unexpected character %q", string(c.peek()))
		}
		afterIdent := c.save()
		c.SkipInline()
		if c.peek() == ':' {
			c.advance()
			if err := s.defineLabel(ident, pos); err != nil {
				return err
			}
			continue
		}
		c.restore(afterIdent)
		if strings.HasPrefix(ident, ".") {
			name := strings.ToLower(strings.TrimPrefix(ident, "."))
			if directiveNames[name] {
				if err := s.directive(c, name, pos); err != nil {
					return err
				}
				return s.expectEOL(c)
			}
			// Not a recognized directive: backtrack to before the '.' and
			// fall through to instruction parsing. Names like ".inner:"
			// never reach here; the ':' check above already defined them
			// as labels.
		}
		c.restore(m)
		_ = ident
		return s.instruction(c)
	}
}

func (s *Session) defineLabel(name string, pos Position) error {
	return s.Sym.Define(name, s.cur.Addr(), s.cur, pos)
}

// reserve appends n zero bytes to the current section and returns the
// offset (within the section) where they start.
func (s *Session) reserve(n int) uint32 {
	off := s.cur.Len()
	s.cur.Contents = append(s.cur.Contents, make([]byte, n)...)
	return off
}

func leWord(w uint32) []byte {
	return []byte{byte(w), byte(w >> 8), byte(w >> 16), byte(w >> 24)}
}

func leHalf(h uint16) []byte {
	return []byte{byte(h), byte(h >> 8)}
}

// passTwo replays every deferred instruction against the now-frozen label
// table, patching the reserved words in place, or recording a relocation
// (with the word's immediate left zero) when the symbol is genuinely
// external.
func (s *Session) passTwo() error {
	for _, d := range s.deferred {
		addr, _, ok := s.Sym.ResolveOrExtern(d.label, s.AllowExterns)
		if !ok {
			if !s.AllowExterns {
				return errAt(d.pos, "Label not found")
			}
			s.recordRelocation(d)
			continue
		}
		if err := s.patchDeferred(d, addr); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) patchDeferred(d deferredInsn, target uint32) error {
	switch d.kind {
	case deferredBranch:
		pcAt := d.section.Base + d.offset
		off := int32(target) - int32(pcAt)
		word, err := branchWord(d.mnemonic, d.rs1, d.rs2, off)
		if err != nil {
			return errAt(d.pos, "%s", err)
		}
		copy(d.section.Contents[d.offset:d.offset+4], leWord(word))
	case deferredJAL:
		pcAt := d.section.Base + d.offset
		off := int32(target) - int32(pcAt)
		word, err := jalWord(d.rd, off)
		if err != nil {
			return errAt(d.pos, "%s", err)
		}
		copy(d.section.Contents[d.offset:d.offset+4], leWord(word))
	case deferredLA:
		pcAt := d.section.Base + d.offset
		hi, lo := splitImm(int32(target) - int32(pcAt))
		upper := upperWord("auipc", d.rd, hi)
		lower := iWord("addi", d.rd, d.rd, lo)
		copy(d.section.Contents[d.offset:d.offset+4], leWord(upper))
		copy(d.section.Contents[d.offset+4:d.offset+8], leWord(lower))
	}
	return nil
}

// recordRelocation leaves a deferred instruction's opcode, funct3, and
// register fields in place with its immediate zeroed, so a linker can
// later patch in the immediate bits without needing to re-derive the
// instruction shape from the relocation record alone.
func (s *Session) recordRelocation(d deferredInsn) {
	switch d.kind {
	case deferredBranch:
		word, err := branchWord(d.mnemonic, d.rs1, d.rs2, 0)
		if err == nil {
			copy(d.section.Contents[d.offset:d.offset+4], leWord(word))
		}
		d.section.Relocs = append(d.section.Relocs, memmap.Relocation{Offset: d.offset, Size: 4, Symbol: d.label, Kind: memmap.RelocBranch})
	case deferredJAL:
		word, err := jalWord(d.rd, 0)
		if err == nil {
			copy(d.section.Contents[d.offset:d.offset+4], leWord(word))
		}
		d.section.Relocs = append(d.section.Relocs, memmap.Relocation{Offset: d.offset, Size: 4, Symbol: d.label, Kind: memmap.RelocJAL})
	case deferredLA:
		upper := upperWord("auipc", d.rd, 0)
		lower := iWord("addi", d.rd, d.rd, 0)
		copy(d.section.Contents[d.offset:d.offset+4], leWord(upper))
		copy(d.section.Contents[d.offset+4:d.offset+8], leWord(lower))
		d.section.Relocs = append(d.section.Relocs, memmap.Relocation{Offset: d.offset, Size: 4, Symbol: d.label, Kind: memmap.RelocHI20})
		// Addend -4 lets the linker recover the paired auipc's own PC
		// from this addi's offset, since %pcrel_lo is defined relative
		// to the HI20 instruction, not the LO12 instruction itself.
		d.section.Relocs = append(d.section.Relocs, memmap.Relocation{Offset: d.offset + 4, Size: 4, Symbol: d.label, Kind: memmap.RelocLO12I, Addend: -4})
	}
}

// resolveEntry implements §4.4's entry-point resolution rules.
func (s *Session) resolveEntry() (uint32, memmap.Privilege, error) {
	kstart, hasK := s.Sym.Lookup("_kernel_start")
	if hasK {
		if !s.Sym.IsGlobal("_kernel_start") {
			return 0, 0, errAt(Position{}, "_kernel_start defined but not global")
		}
		kt := s.Mem.Find(".kernel_text")
		if kstart.Addr < kt.Base || kstart.Addr >= kt.Limit {
			return 0, 0, errAt(Position{}, "_kernel_start out of .kernel_text")
		}
		return kstart.Addr, memmap.PrivSupervisor, nil
	}
	start, hasStart := s.Sym.Lookup("_start")
	if hasStart {
		if !s.Sym.IsGlobal("_start") {
			return 0, 0, errAt(Position{}, "_start defined but not global")
		}
		txt := s.Mem.Find(".text")
		if start.Addr < txt.Base || start.Addr >= txt.Limit {
			return 0, 0, errAt(Position{}, "_start out of .text")
		}
		return start.Addr, memmap.PrivUser, nil
	}
	return memmap.TextBase, memmap.PrivUser, nil
}
