package device

import (
	"testing"

	"github.com/lookbusy1344/rv32toolchain/memmap"
	"github.com/stretchr/testify/require"
)

type fakeBus struct {
	mem map[uint32]byte
}

func newFakeBus() *fakeBus { return &fakeBus{mem: map[uint32]byte{}} }

func (b *fakeBus) Load(addr uint32, size int) (uint32, bool) {
	var v uint32
	for i := 0; i < size; i++ {
		v |= uint32(b.mem[addr+uint32(i)]) << (8 * i)
	}
	return v, true
}

func (b *fakeBus) Store(addr uint32, val uint32, size int) bool {
	for i := 0; i < size; i++ {
		b.mem[addr+uint32(i)] = byte(val >> (8 * i))
	}
	return true
}

func TestConsoleWriteInvokesOnOutput(t *testing.T) {
	var got []byte
	m := New(newFakeBus(), nil, func(b byte) { got = append(got, b) }, nil)

	consoleBase := uint32(slotConsole * memmap.MMIODeviceSize)
	require.True(t, m.Write(consoleBase+consoleOut, 1, 'A'))
	require.Equal(t, []byte{'A'}, got)
}

func TestPowerShutdownBitInvokesOnExit(t *testing.T) {
	exited := false
	m := New(newFakeBus(), func(code int) { exited = true }, nil, nil)

	powerBase := uint32(slotPower * memmap.MMIODeviceSize)
	require.True(t, m.Write(powerBase+powerCntl, 1, PowerCntlShutdown))
	require.True(t, exited)
}

func TestDMATransferCopiesBytesThenClearsDoBit(t *testing.T) {
	bus := newFakeBus()
	bus.mem[0x1000] = 0xAB
	bus.mem[0x1001] = 0xCD

	m := New(bus, nil, nil, nil)
	dmaBase := uint32(slotDMA0 * memmap.MMIODeviceSize)

	require.True(t, m.Write(dmaBase+dmaSrcAddr, 4, 0x1000))
	require.True(t, m.Write(dmaBase+dmaDstAddr, 4, 0x2000))
	require.True(t, m.Write(dmaBase+dmaSrcInc, 4, 1))
	require.True(t, m.Write(dmaBase+dmaDstInc, 4, 1))
	require.True(t, m.Write(dmaBase+dmaTransSize, 4, 1))
	require.True(t, m.Write(dmaBase+dmaLen, 4, 2))
	require.True(t, m.Write(dmaBase+dmaCntl, 4, DMACntlDo))

	require.Equal(t, byte(0xAB), bus.mem[0x2000])
	require.Equal(t, byte(0xCD), bus.mem[0x2001])

	cntl, _ := m.Read(dmaBase+dmaCntl, 4)
	require.EqualValues(t, 0, cntl&DMACntlDo)
}

func TestRICWindowIsReadOnly(t *testing.T) {
	m := New(newFakeBus(), nil, nil, nil)
	ricBase := uint32(slotRIC * memmap.MMIODeviceSize)
	require.False(t, m.Write(ricBase+ricDevAddr, 4, 5))
}
