package tools

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/lookbusy1344/rv32toolchain/objfile"
)

// Readelf writes a human-readable summary of an ELF32/RISC-V image to
// w: the identification bytes, header fields, and every section and
// program header, in the same shape as the teacher's --readelf output.
func Readelf(w io.Writer, data []byte) error {
	if len(data) < objfile.ELFHeaderSize {
		return fmt.Errorf("file too short to be an ELF image")
	}
	if data[0] != objfile.ELFMagic0 || data[1] != objfile.ELFMagic1 || data[2] != objfile.ELFMagic2 || data[3] != objfile.ELFMagic3 {
		return fmt.Errorf("bad ELF magic")
	}

	fmt.Fprintf(w, " %-35s:", "Magic")
	for i := 0; i < 8; i++ {
		fmt.Fprintf(w, " %02x", data[i])
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, " %-35s: %s\n", "Class", classString(data[4]))
	fmt.Fprintf(w, " %-35s: %s\n", "Endianness", endiannessString(data[5]))
	fmt.Fprintf(w, " %-35s: %d\n", "Version", data[6])
	fmt.Fprintf(w, " %-35s: %s\n", "OS/ABI", abiString(data[7]))

	etype := binary.LittleEndian.Uint16(data[16:])
	machine := binary.LittleEndian.Uint16(data[18:])
	entry := binary.LittleEndian.Uint32(data[24:])
	phoff := binary.LittleEndian.Uint32(data[28:])
	shoff := binary.LittleEndian.Uint32(data[32:])
	flags := binary.LittleEndian.Uint32(data[36:])
	ehsize := binary.LittleEndian.Uint16(data[40:])
	phentsize := binary.LittleEndian.Uint16(data[42:])
	phnum := binary.LittleEndian.Uint16(data[44:])
	shentsize := binary.LittleEndian.Uint16(data[46:])
	shnum := binary.LittleEndian.Uint16(data[48:])
	shstrndx := binary.LittleEndian.Uint16(data[50:])

	fmt.Fprintf(w, " %-35s: %s\n", "Type", typeString(etype))
	fmt.Fprintf(w, " %-35s: %s\n", "Architecture", archString(machine))
	fmt.Fprintf(w, " %-35s: 0x%08x\n", "Entry point", entry)
	fmt.Fprintf(w, " %-35s: %d (bytes into file)\n", "Start of program headers", phoff)
	fmt.Fprintf(w, " %-35s: %d (bytes into file)\n", "Start of section headers", shoff)
	fmt.Fprintf(w, " %-35s: 0x%x\n", "Flags", flags)
	fmt.Fprintf(w, " %-35s: %d (bytes)\n", "Size of ELF header", ehsize)
	fmt.Fprintf(w, " %-35s: %d (bytes)\n", "Size of each program header", phentsize)
	fmt.Fprintf(w, " %-35s: %d\n", "Number of program headers", phnum)
	fmt.Fprintf(w, " %-35s: %d (bytes)\n", "Size of each section header", shentsize)
	fmt.Fprintf(w, " %-35s: %d\n", "Number of section headers", shnum)
	fmt.Fprintf(w, " %-35s: %d\n", "Section header string table index", shstrndx)
	fmt.Fprintln(w)

	if int(shoff) > 0 && shnum > 0 {
		strtabOff := binary.LittleEndian.Uint32(data[int(shoff)+int(shstrndx)*objfile.ShdrSize+16:])

		fmt.Fprintln(w, "Section headers:")
		fmt.Fprintf(w, " [Nr] %-17s %-15s %-10s %-10s %-10s %-5s %-5s\n", "Name", "Type", "Address", "Offset", "Size", "Flags", "Align")
		for i := 0; i < int(shnum); i++ {
			base := int(shoff) + i*objfile.ShdrSize
			nameOff := binary.LittleEndian.Uint32(data[base:])
			typ := binary.LittleEndian.Uint32(data[base+4:])
			secFlags := binary.LittleEndian.Uint32(data[base+8:])
			addr := binary.LittleEndian.Uint32(data[base+12:])
			offset := binary.LittleEndian.Uint32(data[base+16:])
			size := binary.LittleEndian.Uint32(data[base+20:])
			align := binary.LittleEndian.Uint32(data[base+32:])
			name := cStringAt(data, int(strtabOff)+int(nameOff))
			fmt.Fprintf(w, " [%2d] %-17s %-15s 0x%08x 0x%08x 0x%08x %5s %5d\n",
				i, name, sectionTypeString(typ), addr, offset, size, sectionFlagsString(secFlags), align)
		}
		fmt.Fprintln(w)
	}

	if int(phoff) > 0 && phnum > 0 {
		fmt.Fprintln(w, "Program headers:")
		fmt.Fprintf(w, " %-14s %-10s %-15s %-16s %-10s %-5s %-5s\n", "Type", "Offset", "Virtual Address", "Physical Address", "Size", "Flags", "Align")
		for i := 0; i < int(phnum); i++ {
			base := int(phoff) + i*objfile.PhdrSize
			typ := binary.LittleEndian.Uint32(data[base:])
			offset := binary.LittleEndian.Uint32(data[base+4:])
			vaddr := binary.LittleEndian.Uint32(data[base+8:])
			paddr := binary.LittleEndian.Uint32(data[base+12:])
			memsz := binary.LittleEndian.Uint32(data[base+20:])
			segFlags := binary.LittleEndian.Uint32(data[base+24:])
			align := binary.LittleEndian.Uint32(data[base+28:])
			fmt.Fprintf(w, " %-14s 0x%08x 0x%08x      0x%08x       0x%08x %5s %5d\n",
				segmentTypeString(typ), offset, vaddr, paddr, memsz, segmentFlagsString(segFlags), align)
		}
		fmt.Fprintln(w)
	}

	return nil
}

func classString(b byte) string {
	if b == objfile.ELFClass32 {
		return "ELF32"
	}
	return "unknown"
}

func endiannessString(b byte) string {
	if b == objfile.ELFData2LSB {
		return "Little endian"
	}
	return "Big endian"
}

func abiString(b byte) string {
	if b == objfile.ELFOSABISysV {
		return "UNIX - System V"
	}
	return "unknown"
}

func typeString(t uint16) string {
	switch uint32(t) {
	case objfile.ETRel:
		return "Relocatable"
	case objfile.ETExec:
		return "Executable"
	default:
		return "unknown"
	}
}

func archString(m uint16) string {
	if uint32(m) == objfile.EMRISCV {
		return "RISC-V"
	}
	return "unknown"
}

func sectionTypeString(t uint32) string {
	switch t {
	case objfile.SHTNull:
		return "NULL"
	case objfile.SHTProgbits:
		return "PROGBITS"
	case objfile.SHTSymtab:
		return "SYMTAB"
	case objfile.SHTStrtab:
		return "STRTAB"
	case objfile.SHTRela:
		return "RELA"
	default:
		return "unknown"
	}
}

func sectionFlagsString(f uint32) string {
	s := ""
	if f&objfile.SHFWrite != 0 {
		s += "W"
	}
	if f&objfile.SHFAlloc != 0 {
		s += "A"
	}
	if f&objfile.SHFExecInstr != 0 {
		s += "X"
	}
	return s
}

func segmentTypeString(t uint32) string {
	if t == objfile.PTLoad {
		return "LOAD"
	}
	return "unknown"
}

func segmentFlagsString(f uint32) string {
	s := ""
	if f&objfile.PFRead != 0 {
		s += "R"
	}
	if f&objfile.PFWrite != 0 {
		s += "W"
	}
	if f&objfile.PFExec != 0 {
		s += "E"
	}
	return s
}

func cStringAt(data []byte, off int) string {
	end := off
	for end < len(data) && data[end] != 0 {
		end++
	}
	return string(data[off:end])
}
