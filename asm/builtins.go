package asm

import "github.com/lookbusy1344/rv32toolchain/memmap"

// mmioField is one named register offset within a device's register
// window, matching the packed C struct layouts of the reference device
// model (§4.8/§6 of SPEC_FULL.md).
type mmioField struct {
	name string
	off  uint32
}

var dmaFields = []mmioField{
	{"DST_ADDR", 0}, {"SRC_ADDR", 4}, {"DST_INC", 8}, {"SRC_INC", 12},
	{"LEN", 16}, {"TRANS_SIZE", 20}, {"CNTL", 24},
}

var consoleFields = []mmioField{
	{"IN", 0}, {"OUT", 1}, {"IN_SIZE", 2}, {"BATCH_SIZE", 6}, {"CNTL", 10},
}

var powerFields = []mmioField{{"CNTL", 0}}
var ricFields = []mmioField{{"DEVADDR", 0}}

// prepareDefaultSymbols prepopulates the fixed set of MMIO device-register
// labels every assembly session starts with, at concrete absolute
// addresses, per §4.4's "Built-in symbols".
func prepareDefaultSymbols(s *Session) {
	mmio := s.Mem.Find(".mmio")
	_ = s.Sym.Define("_MMIO_BASE", memmap.MMIOBase, mmio, Position{})
	_ = s.Sym.Define("_MMIO_END", memmap.MMIOEnd, mmio, Position{})

	for ch := 0; ch < 4; ch++ {
		base := memmap.MMIOBase + uint32(ch)*memmap.MMIODeviceSize
		defineFields(s, mmio, base, dmaPrefix(ch), dmaFields)
	}
	powerBase := uint32(memmap.MMIOBase + 4*memmap.MMIODeviceSize)
	defineFields(s, mmio, powerBase, "_POWER0_", powerFields)

	consoleBase := uint32(memmap.MMIOBase + 5*memmap.MMIODeviceSize)
	defineFields(s, mmio, consoleBase, "_CONSOLE0_", consoleFields)

	ricBase := uint32(memmap.MMIOBase + 6*memmap.MMIODeviceSize)
	defineFields(s, mmio, ricBase, "_RIC0_", ricFields)
}

func dmaPrefix(ch int) string {
	return "_DMA" + itoa(ch) + "_"
}

func defineFields(s *Session, sec *memmap.Section, base uint32, prefix string, fields []mmioField) {
	for _, f := range fields {
		_ = s.Sym.Define(prefix+f.name, base+f.off, sec, Position{})
	}
}
