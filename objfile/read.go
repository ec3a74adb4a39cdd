package objfile

import (
	"fmt"

	"github.com/lookbusy1344/rv32toolchain/memmap"
)

// Loaded is the result of reading an executable image: a freshly
// rehydrated section set and the entry program counter.
type Loaded struct {
	Mem   *memmap.Map
	Entry uint32
}

// Read validates an ELF32/RISC-V/executable image and rehydrates one
// memmap.Section per SHF_ALLOC section header.
func Read(data []byte) (*Loaded, error) {
	if len(data) < ELFHeaderSize {
		return nil, fmt.Errorf("file too short to be an ELF image")
	}
	if data[0] != ELFMagic0 || data[1] != ELFMagic1 || data[2] != ELFMagic2 || data[3] != ELFMagic3 {
		return nil, fmt.Errorf("bad ELF magic")
	}
	if data[4] != ELFClass32 {
		return nil, fmt.Errorf("not a 32-bit ELF image")
	}
	if data[5] != ELFData2LSB {
		return nil, fmt.Errorf("not little-endian")
	}
	etype := readU16(data, 16)
	machine := readU16(data, 18)
	if machine != EMRISCV {
		return nil, fmt.Errorf("not a RISC-V object (machine=0x%x)", machine)
	}
	if etype != ETExec {
		return nil, fmt.Errorf("not an executable image (e_type=%d)", etype)
	}

	entry := readU32(data, 24)
	shoff := readU32(data, 32)
	shentsize := readU16(data, 46)
	shnum := readU16(data, 48)
	shstrndx := readU16(data, 50)

	if int(shentsize) != ShdrSize {
		return nil, fmt.Errorf("unexpected section header entry size %d", shentsize)
	}

	strtabOff := readU32(data, int(shoff)+int(shstrndx)*ShdrSize+16)

	m := &memmap.Map{}
	for i := 0; i < int(shnum); i++ {
		base := int(shoff) + i*ShdrSize
		nameOff := readU32(data, base)
		typ := readU32(data, base+4)
		flags := readU32(data, base+8)
		addr := readU32(data, base+12)
		offset := readU32(data, base+16)
		size := readU32(data, base+20)

		if typ != SHTProgbits || flags&SHFAlloc == 0 {
			continue
		}
		name := cString(data, int(strtabOff)+int(nameOff))

		perm := memmap.PermRead
		if flags&SHFWrite != 0 {
			perm |= memmap.PermWrite
		}
		if flags&SHFExecInstr != 0 {
			perm |= memmap.PermExecute
		}
		sec := &memmap.Section{
			Name:     name,
			Base:     addr,
			Limit:    addr + size,
			Contents: append([]byte(nil), data[offset:offset+size]...),
			Perm:     perm,
			Physical: true,
		}
		if err := m.Add(sec); err != nil {
			return nil, err
		}
	}

	// The stack and MMIO windows are always present at run time even
	// though they never appear in the object file.
	m.Add(&memmap.Section{Name: ".stack", Base: memmap.StackTop - memmap.StackLen, Limit: memmap.StackTop, Perm: memmap.PermRead | memmap.PermWrite})
	m.Add(&memmap.Section{Name: ".mmio", Base: memmap.MMIOBase, Limit: memmap.MMIOEnd, Perm: memmap.PermRead | memmap.PermWrite, Super: true})

	return &Loaded{Mem: m, Entry: entry}, nil
}

func cString(data []byte, off int) string {
	end := off
	for end < len(data) && data[end] != 0 {
		end++
	}
	return string(data[off:end])
}
