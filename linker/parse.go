package linker

import (
	"encoding/binary"
	"fmt"

	"github.com/lookbusy1344/rv32toolchain/objfile"
)

func u16(b []byte, off int) uint16 { return binary.LittleEndian.Uint16(b[off:]) }
func u32(b []byte, off int) uint32 { return binary.LittleEndian.Uint32(b[off:]) }

func cstr(data []byte, off int) string {
	end := off
	for end < len(data) && data[end] != 0 {
		end++
	}
	return string(data[off:end])
}

// parseObject decodes one ET_REL image produced by objfile.WriteObject
// into the section contents, pending relocations, and symbol table the
// linker needs. It does not use objfile.Read, which only rehydrates
// SHF_ALLOC sections of a linked executable and drops symbols/relocations
// entirely.
func parseObject(data []byte) (*object, error) {
	if len(data) < objfile.ELFHeaderSize {
		return nil, fmt.Errorf("too short to be an ELF object")
	}
	if data[0] != objfile.ELFMagic0 || data[1] != objfile.ELFMagic1 || data[2] != objfile.ELFMagic2 || data[3] != objfile.ELFMagic3 {
		return nil, fmt.Errorf("bad ELF magic")
	}
	if u16(data, 16) != objfile.ETRel {
		return nil, fmt.Errorf("not a relocatable object (e_type=%d)", u16(data, 16))
	}

	shoff := u32(data, 32)
	shnum := u16(data, 48)

	type shdr struct {
		name, typ, flags, addr, offset, size, link, info uint32
	}
	headers := make([]shdr, shnum)
	for i := range headers {
		base := int(shoff) + i*objfile.ShdrSize
		headers[i] = shdr{
			name:   u32(data, base),
			typ:    u32(data, base+4),
			flags:  u32(data, base+8),
			addr:   u32(data, base+12),
			offset: u32(data, base+16),
			size:   u32(data, base+20),
			link:   u32(data, base+24),
			info:   u32(data, base+28),
		}
	}

	var strtabOff uint32
	for _, h := range headers {
		if h.typ == objfile.SHTStrtab {
			strtabOff = h.offset
			break
		}
	}

	o := &object{sections: make(map[string]*mergeSection)}
	shndxName := make(map[int]string, shnum)

	for i, h := range headers {
		if h.typ != objfile.SHTProgbits {
			continue
		}
		name := cstr(data, int(strtabOff)+int(h.name))
		shndxName[i] = name
		o.sections[name] = &mergeSection{
			contents: append([]byte(nil), data[h.offset:h.offset+h.size]...),
		}
	}

	for _, h := range headers {
		if h.typ != objfile.SHTSymtab {
			continue
		}
		count := int(h.size) / objfile.SymSize
		for i := 1; i < count; i++ { // entry 0 is the null symbol
			base := int(h.offset) + i*objfile.SymSize
			nameOff := u32(data, base)
			value := u32(data, base+4)
			info := data[base+12]
			shndx := u16(data, base+14)
			bind := info >> 4

			sym := symbol{
				name:   cstr(data, int(strtabOff)+int(nameOff)),
				value:  value,
				global: bind == objfile.STBGlobal,
			}
			if shndx != 0 {
				sym.section = shndxName[int(shndx)]
			}
			o.symbols = append(o.symbols, sym)
		}
	}

	for i, h := range headers {
		if h.typ != objfile.SHTRela {
			continue
		}
		target, ok := shndxName[int(h.info)]
		if !ok {
			return nil, fmt.Errorf("relocation section %d targets an unknown section", i)
		}

		var symtabHdr *shdr
		for j := range headers {
			if headers[j].typ == objfile.SHTSymtab {
				symtabHdr = &headers[j]
				break
			}
		}
		if symtabHdr == nil {
			return nil, fmt.Errorf("relocation section %d but no symbol table present", i)
		}

		count := int(h.size) / objfile.RelaSize
		for k := 0; k < count; k++ {
			base := int(h.offset) + k*objfile.RelaSize
			offset := u32(data, base)
			info := u32(data, base+4)
			addend := int32(u32(data, base+8))

			symIdx := info >> 8
			kind := objfile.RelocType(info & 0xFF)

			symBase := int(symtabHdr.offset) + int(symIdx)*objfile.SymSize
			nameOff := u32(data, symBase)
			symName := cstr(data, int(strtabOff)+int(nameOff))

			o.sections[target].relocs = append(o.sections[target].relocs, reloc{
				offset: offset,
				symbol: symName,
				kind:   kind,
				addend: addend,
			})
		}
	}

	return o, nil
}
