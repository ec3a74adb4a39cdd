package objfile

import (
	"fmt"

	"github.com/lookbusy1344/rv32toolchain/memmap"
)

// GlobalSym is a resolved `.globl` declaration ready for symbol-table
// emission: its defining section and absolute address are already known.
type GlobalSym struct {
	Name    string
	Addr    uint32
	Section *memmap.Section
}

// ExternSym is an unresolved reference recorded during object-mode
// assembly.
type ExternSym struct {
	Name string
}

func physicalSections(m *memmap.Map) []*memmap.Section {
	var out []*memmap.Section
	for _, s := range m.Sections {
		if s.Physical && len(s.Contents) > 0 {
			out = append(out, s)
		}
	}
	return out
}

func permFlags(s *memmap.Section) uint32 {
	f := uint32(SHFAlloc)
	if s.Perm&memmap.PermWrite != 0 {
		f |= SHFWrite
	}
	if s.Perm&memmap.PermExecute != 0 {
		f |= SHFExecInstr
	}
	return f
}

func segFlags(s *memmap.Section) uint32 {
	f := uint32(0)
	if s.Perm&memmap.PermRead != 0 {
		f |= PFRead
	}
	if s.Perm&memmap.PermWrite != 0 {
		f |= PFWrite
	}
	if s.Perm&memmap.PermExecute != 0 {
		f |= PFExec
	}
	return f
}

// WriteExecutable builds a fully linked ET_EXEC image: one LOAD segment
// per non-empty physical section, and a minimal section-header table
// (NULL, .strtab, one PROGBITS per section) for introspection tools like
// readelf.
func WriteExecutable(m *memmap.Map, entry uint32) ([]byte, error) {
	sections := physicalSections(m)

	strtab := []byte{0}
	strtab = append(strtab, ".strtab\x00"...)
	nameOffsets := make([]uint32, len(sections))
	for i, s := range sections {
		nameOffsets[i] = uint32(len(strtab))
		strtab = append(strtab, s.Name...)
		strtab = append(strtab, 0)
	}

	phOff := uint32(ELFHeaderSize)
	dataOff := phOff + uint32(len(sections))*PhdrSize

	var phdrs buf
	var data buf
	segOffsets := make([]uint32, len(sections))
	for i, s := range sections {
		segOffsets[i] = dataOff + data.len()
		data.bytes(s.Contents)
		data.align(4)
	}
	for i, s := range sections {
		phdrs.u32(PTLoad)
		phdrs.u32(segOffsets[i])
		phdrs.u32(s.Base)
		phdrs.u32(s.Base)
		phdrs.u32(uint32(len(s.Contents)))
		phdrs.u32(uint32(len(s.Contents)))
		phdrs.u32(segFlags(s))
		phdrs.u32(4)
	}

	shOff := dataOff + data.len()
	var shdrs buf
	// index 0: NULL
	shdrs.pad(ShdrSize)
	// index 1: .strtab (offset patched below once the section-header
	// table's own length is known)
	writeShdr(&shdrs, 1, SHTStrtab, 0, 0, 0, uint32(len(strtab)), 0, 0, 1, 0)
	for i, s := range sections {
		writeShdr(&shdrs, nameOffsets[i], SHTProgbits, permFlags(s), s.Base, segOffsets[i], uint32(len(s.Contents)), 0, 0, 4, 0)
	}
	strOff := shOff + uint32(len(shdrs.b))

	// Patch the .strtab section header's file offset now that it's known.
	patchShdrOffset(shdrs.b, 1, strOff)

	var out buf
	writeIdent(&out, ETExec)
	out.u32(entry)
	out.u32(phOff)
	out.u32(shOff)
	out.u32(0) // flags
	out.u16(ELFHeaderSize)
	out.u16(PhdrSize)
	out.u16(uint16(len(sections)))
	out.u16(ShdrSize)
	out.u16(uint16(2 + len(sections)))
	out.u16(1) // shstrndx

	out.bytes(phdrs.b)
	out.bytes(data.b)
	out.bytes(shdrs.b)
	out.bytes(strtab)

	return out.b, nil
}

// WriteObject builds an ET_REL relocatable object: no program headers;
// section headers NULL, .strtab, .symtab, one PROGBITS per physical
// non-empty section, then one RELA per physical section carrying pending
// relocations.
func WriteObject(m *memmap.Map, globals []GlobalSym, externs []ExternSym) ([]byte, error) {
	sections := physicalSections(m)

	strtab := []byte{0}
	strtab = append(strtab, ".strtab\x00"...)
	strtab = append(strtab, ".symtab\x00"...)
	secNameOff := make([]uint32, len(sections))
	relaNameOff := make([]uint32, len(sections))
	for i, s := range sections {
		secNameOff[i] = uint32(len(strtab))
		strtab = append(strtab, s.Name...)
		strtab = append(strtab, 0)
		if len(s.Relocs) > 0 {
			relaNameOff[i] = uint32(len(strtab))
			strtab = append(strtab, ".rela"...)
			strtab = append(strtab, s.Name...)
			strtab = append(strtab, 0)
		}
	}
	externNameOff := make([]uint32, len(externs))
	for i, e := range externs {
		externNameOff[i] = uint32(len(strtab))
		strtab = append(strtab, e.Name...)
		strtab = append(strtab, 0)
	}
	globalNameOff := make([]uint32, len(globals))
	for i, g := range globals {
		globalNameOff[i] = uint32(len(strtab))
		strtab = append(strtab, g.Name...)
		strtab = append(strtab, 0)
	}

	// Assign each physical section its eventual section-header index.
	// 0 NULL, 1 .strtab, 2 .symtab, then sections, then RELA entries.
	secIndex := make(map[*memmap.Section]uint16, len(sections))
	for i, s := range sections {
		secIndex[s] = uint16(3 + i)
	}

	var symtab buf
	symtab.pad(SymSize) // null symbol
	symIndex := make(map[string]uint32)
	idx := uint32(1)
	for i, e := range externs {
		symtab.u32(externNameOff[i])
		symtab.u32(0)
		symtab.u32(0)
		symtab.u8(stInfo(STBGlobal, STTNotype))
		symtab.u8(0)
		symtab.u16(0) // SHN_UNDEF
		symIndex[e.Name] = idx
		idx++
	}
	for i, g := range globals {
		shndx := uint16(0)
		if g.Section != nil {
			shndx = secIndex[g.Section]
		}
		base := uint32(0)
		if g.Section != nil {
			base = g.Section.Base
		}
		symtab.u32(globalNameOff[i])
		symtab.u32(g.Addr - base)
		symtab.u32(0)
		symtab.u8(stInfo(STBGlobal, STTNotype))
		symtab.u8(0)
		symtab.u16(shndx)
		symIndex[g.Name] = idx
		idx++
	}

	var data buf
	segOffsets := make([]uint32, len(sections))
	for i, s := range sections {
		segOffsets[i] = data.len()
		data.bytes(s.Contents)
		data.align(4)
	}

	var relas buf
	relaOffsets := make([]uint32, len(sections))
	relaCounts := make([]int, len(sections))
	for i, s := range sections {
		relaOffsets[i] = relas.len()
		for _, r := range s.Relocs {
			relas.u32(r.Offset)
			symIdx, ok := symIndex[r.Symbol]
			if !ok {
				return nil, fmt.Errorf("relocation against unknown symbol %q", r.Symbol)
			}
			relas.u32(symIdx<<8 | uint32(relocKindToType(r.Kind)))
			relas.u32(uint32(r.Addend))
		}
		relaCounts[i] = len(s.Relocs)
	}

	numSh := 3 + len(sections)
	for _, s := range sections {
		if len(s.Relocs) > 0 {
			numSh++
		}
	}

	headerLen := uint32(ELFHeaderSize)
	strtabOff := headerLen
	symtabOff := strtabOff + uint32(len(strtab))
	dataOff := symtabOff + uint32(len(symtab.b))
	relaOff := dataOff + data.len()
	shOff := relaOff + uint32(len(relas.b))

	var shdrs buf
	shdrs.pad(ShdrSize) // NULL
	writeShdr(&shdrs, 1, SHTStrtab, 0, 0, strtabOff, uint32(len(strtab)), 0, 0, 1, 0)
	writeShdr(&shdrs, 9, SHTSymtab, 0, 0, symtabOff, uint32(len(symtab.b)), 1, uint32(len(externs))+1, 4, SymSize)
	for i, s := range sections {
		writeShdr(&shdrs, secNameOff[i], SHTProgbits, permFlags(s), s.Base, dataOff+segOffsets[i], uint32(len(s.Contents)), 0, 0, 4, 0)
	}
	for i, s := range sections {
		if len(s.Relocs) == 0 {
			continue
		}
		writeShdr(&shdrs, relaNameOff[i], SHTRela, 0, 0, relaOff+relaOffsets[i], uint32(relaCounts[i])*RelaSize, 2, uint32(secIndex[s]), 4, RelaSize)
	}

	var out buf
	writeIdent(&out, ETRel)
	out.u32(0) // entry
	out.u32(0) // phoff
	out.u32(shOff)
	out.u32(0)
	out.u16(ELFHeaderSize)
	out.u16(0)
	out.u16(0)
	out.u16(ShdrSize)
	out.u16(uint16(numSh))
	out.u16(1)

	out.bytes(strtab)
	out.bytes(symtab.b)
	out.bytes(data.b)
	out.bytes(relas.b)
	out.bytes(shdrs.b)

	return out.b, nil
}

func relocKindToType(k memmap.RelocKind) RelocType {
	switch k {
	case memmap.RelocBranch:
		return RelocBranch
	case memmap.RelocJAL:
		return RelocJAL
	case memmap.RelocHI20:
		return RelocHI20
	case memmap.RelocLO12I:
		return RelocLO12I
	case memmap.RelocLO12S:
		return RelocLO12S
	default:
		return RelocABS32
	}
}

func (w *buf) len() uint32 { return uint32(len(w.b)) }

func writeIdent(w *buf, etype uint16) {
	w.u8(ELFMagic0)
	w.u8(ELFMagic1)
	w.u8(ELFMagic2)
	w.u8(ELFMagic3)
	w.u8(ELFClass32)
	w.u8(ELFData2LSB)
	w.u8(ELFVersion1)
	w.u8(ELFOSABISysV)
	w.pad(8) // e_ident padding
	w.u16(etype)
	w.u16(EMRISCV)
	w.u32(EVCurrent)
}

func writeShdr(w *buf, name uint32, typ uint32, flags uint32, addr uint32, offset uint32, size uint32, link uint32, info uint32, align uint32, entsize uint32) {
	w.u32(name)
	w.u32(typ)
	w.u32(flags)
	w.u32(addr)
	w.u32(offset)
	w.u32(size)
	w.u32(link)
	w.u32(info)
	w.u32(align)
	w.u32(entsize)
}

func patchShdrOffset(b []byte, index int, offset uint32) {
	start := index * ShdrSize
	writeU32At(b, start+16, offset) // sh_offset is the 5th u32 field (index 4 -> byte 16)
}

func writeU32At(b []byte, off int, v uint32) {
	b[off] = byte(v)
	b[off+1] = byte(v >> 8)
	b[off+2] = byte(v >> 16)
	b[off+3] = byte(v >> 24)
}
