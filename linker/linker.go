// Package linker merges relocatable objects produced by the assembler
// (objfile.WriteObject) into one linked executable (objfile.WriteExecutable).
// It stands in for an external generic linker invocation: the same
// interface — N objects in, one executable out — with all of the work
// done in-process instead of shelling out to a separate tool.
package linker

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/lookbusy1344/rv32toolchain/encoder"
	"github.com/lookbusy1344/rv32toolchain/memmap"
	"github.com/lookbusy1344/rv32toolchain/objfile"
)

type object struct {
	sections map[string]*mergeSection
	symbols  []symbol
}

type symbol struct {
	name    string
	value   uint32 // offset within its section, or 0 for SHN_UNDEF
	section string // "" for SHN_UNDEF
	global  bool
}

type reloc struct {
	offset uint32
	symbol string
	kind   objfile.RelocType
	addend int32
}

type mergeSection struct {
	contents []byte
	relocs   []reloc
}

// Link merges objs (each the byte contents of an ET_REL object built by
// objfile.WriteObject) into a single ET_EXEC image. entrySymbol names the
// global symbol to use as the program counter at load time, normally
// "_start" or "_kernel_start".
func Link(objs [][]byte, entrySymbol string) ([]byte, error) {
	if len(objs) == 0 {
		return nil, fmt.Errorf("linker: no input objects")
	}

	parsed := make([]*object, len(objs))
	for i, raw := range objs {
		o, err := parseObject(raw)
		if err != nil {
			return nil, fmt.Errorf("linker: object %d: %w", i, err)
		}
		parsed[i] = o
	}

	m := memmap.New()
	merged := make(map[string]*memmap.Section, len(m.Sections))
	for _, s := range m.Sections {
		merged[s.Name] = s
	}

	// objOffset[i][name] is where object i's contents for section `name`
	// begin within the merged section, assigned in input order.
	objOffset := make([]map[string]uint32, len(parsed))
	for i, o := range parsed {
		objOffset[i] = make(map[string]uint32, len(o.sections))
		for _, name := range sortedKeys(o.sections) {
			sec, ok := merged[name]
			if !ok {
				return nil, fmt.Errorf("linker: object %d: unknown section %q", i, name)
			}
			objOffset[i][name] = sec.Len()
			sec.Contents = append(sec.Contents, o.sections[name].contents...)
			for len(sec.Contents)%4 != 0 {
				sec.Contents = append(sec.Contents, 0)
			}
		}
	}

	globals := make(map[string]uint32, 32)
	for i, o := range parsed {
		for _, sym := range o.symbols {
			if !sym.global || sym.section == "" {
				continue
			}
			addr := merged[sym.section].Base + objOffset[i][sym.section] + sym.value
			if prev, dup := globals[sym.name]; dup && prev != addr {
				return nil, fmt.Errorf("linker: symbol %q defined more than once", sym.name)
			}
			globals[sym.name] = addr
		}
	}

	for i, o := range parsed {
		for name, sec := range o.sections {
			base := objOffset[i][name]
			target := merged[name]
			for _, r := range sec.relocs {
				addr, ok := globals[r.symbol]
				if !ok {
					return nil, fmt.Errorf("linker: undefined symbol %q", r.symbol)
				}
				if err := applyReloc(target, base+r.offset, r, addr); err != nil {
					return nil, fmt.Errorf("linker: %w", err)
				}
			}
		}
	}

	entry, ok := globals[entrySymbol]
	if !ok {
		return nil, fmt.Errorf("linker: entry symbol %q not defined", entrySymbol)
	}

	return objfile.WriteExecutable(m, entry)
}

func sortedKeys(m map[string]*mergeSection) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// applyReloc patches the word at absolute section offset off according to
// r.kind, leaving every non-immediate bit of an instruction word untouched.
func applyReloc(sec *memmap.Section, off uint32, r reloc, symAddr uint32) error {
	pcAt := sec.Base + off
	word := binary.LittleEndian.Uint32(sec.Contents[off : off+4])

	switch r.kind {
	case objfile.RelocBranch:
		imm := int32(symAddr) + r.addend - int32(pcAt)
		binary.LittleEndian.PutUint32(sec.Contents[off:off+4], patchB(word, imm))
	case objfile.RelocJAL:
		imm := int32(symAddr) + r.addend - int32(pcAt)
		binary.LittleEndian.PutUint32(sec.Contents[off:off+4], patchJ(word, imm))
	case objfile.RelocHI20:
		diff := int32(symAddr) + r.addend - int32(pcAt)
		hi, _ := encoder.SplitImm32(diff)
		binary.LittleEndian.PutUint32(sec.Contents[off:off+4], patchU(word, hi))
	case objfile.RelocLO12I:
		// pcAt for the paired auipc sits r.addend bytes before this
		// addi (normally -4); the split must use the auipc's own PC.
		pairedPC := int32(pcAt) + r.addend
		diff := int32(symAddr) - pairedPC
		_, lo := encoder.SplitImm32(diff)
		binary.LittleEndian.PutUint32(sec.Contents[off:off+4], patchI(word, lo))
	case objfile.RelocLO12S:
		pairedPC := int32(pcAt) + r.addend
		diff := int32(symAddr) - pairedPC
		_, lo := encoder.SplitImm32(diff)
		binary.LittleEndian.PutUint32(sec.Contents[off:off+4], patchS(word, lo))
	case objfile.RelocABS32:
		binary.LittleEndian.PutUint32(sec.Contents[off:off+4], uint32(int32(symAddr)+r.addend))
	default:
		return fmt.Errorf("unsupported relocation kind %d", r.kind)
	}
	return nil
}

// patchB/patchJ/patchU/patchI/patchS rewrite only the immediate bits of an
// already-encoded instruction word, leaving opcode/funct3/rd/rs1/rs2 alone.
// Each relies on the corresponding encoder.Encode* call with every other
// field zero and imm=-1 producing exactly that shape's immediate bitmask
// (every immediate bit set, every other field zero).
func patchB(word uint32, imm int32) uint32 {
	mask := encoder.EncodeB(0, 0, 0, 0, -1)
	bits := encoder.EncodeB(0, 0, 0, 0, imm) & mask
	return (word &^ mask) | bits
}

func patchJ(word uint32, imm int32) uint32 {
	mask := encoder.EncodeJ(0, 0, -1)
	bits := encoder.EncodeJ(0, 0, imm) & mask
	return (word &^ mask) | bits
}

func patchU(word uint32, imm20 int32) uint32 {
	mask := encoder.EncodeU(0, 0, -1)
	bits := encoder.EncodeU(0, 0, imm20) & mask
	return (word &^ mask) | bits
}

func patchI(word uint32, imm int32) uint32 {
	mask := encoder.EncodeI(0, 0, 0, 0, -1)
	bits := encoder.EncodeI(0, 0, 0, 0, imm) & mask
	return (word &^ mask) | bits
}

func patchS(word uint32, imm int32) uint32 {
	mask := encoder.EncodeS(0, 0, 0, 0, -1)
	bits := encoder.EncodeS(0, 0, 0, 0, imm) & mask
	return (word &^ mask) | bits
}
