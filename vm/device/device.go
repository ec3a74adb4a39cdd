// Package device implements the MMIO device model: four DMA engines, a
// power controller, a console, and a remote-interrupt-controller stub,
// each mapped into its own fixed-size register window inside the MMIO
// section.
package device

import "github.com/lookbusy1344/rv32toolchain/memmap"

// Register byte offsets within a DMA controller's window.
const (
	dmaDstAddr   = 0
	dmaSrcAddr   = 4
	dmaDstInc    = 8
	dmaSrcInc    = 12
	dmaLen       = 16
	dmaTransSize = 20
	dmaCntl      = 24
)

// DMACntlDo is the "start transfer" bit in a DMA controller's cntl
// register; the device clears it when the transfer starts, before any
// bytes are copied.
const DMACntlDo = 1 << 0

// Register byte offsets within the console's window.
const (
	consoleIn        = 0
	consoleOut       = 1
	consoleInSize    = 2
	consoleBatchSize = 6
	consoleCntl      = 10
)

// ConsoleCntlInterrupt enables the batch-size interrupt: while it is set,
// every byte written to the console's out register advances the in_size
// counter, and reaching batch_size raises the interrupt through the RIC.
const ConsoleCntlInterrupt = 1 << 0

const powerCntl = 0

// PowerCntlShutdown requests emulator exit via the power device.
const PowerCntlShutdown = 1 << 0

const ricDevAddr = 0

// Bus is the interface device handlers use to move bytes in and out of
// guest memory, satisfied by *vm.CPU.
type Bus interface {
	Load(addr uint32, size int) (uint32, bool)
	Store(addr uint32, val uint32, size int) bool
}

// Model owns the seven populated device slots and dispatches MMIO reads
// and writes to them by offset, exactly as the teacher's dev.c indexes
// g_mmio_devices by mmio_addr/MMIO_DEVICE_RSV.
type Model struct {
	bus       Bus
	buffers   [7][]byte
	onExit    func(code int)
	onOutput  func(b byte)
	interrupt func(intno uint32)
}

const (
	slotDMA0 = iota
	slotDMA1
	slotDMA2
	slotDMA3
	slotPower
	slotConsole
	slotRIC
)

// New builds a device model with its seven register windows zeroed.
// onExit is invoked when the power device receives a shutdown request;
// onOutput receives every byte written to the console's out register;
// interrupt raises a pending bit on the owning CPU (ric_send_interrupt
// in the teacher's model).
func New(bus Bus, onExit func(code int), onOutput func(b byte), interrupt func(intno uint32)) *Model {
	m := &Model{bus: bus, onExit: onExit, onOutput: onOutput, interrupt: interrupt}
	for i := range m.buffers {
		m.buffers[i] = make([]byte, memmap.MMIODeviceSize)
	}
	return m
}

func (m *Model) slotFor(devOffset uint32) (slot int, within uint32, ok bool) {
	slot = int(devOffset / memmap.MMIODeviceSize)
	if slot >= len(m.buffers) {
		return 0, 0, false
	}
	return slot, devOffset % memmap.MMIODeviceSize, true
}

// Read services a LOAD that fell inside the MMIO window.
func (m *Model) Read(devOffset uint32, size int) (uint32, bool) {
	slot, off, ok := m.slotFor(devOffset)
	if !ok {
		return 0, false
	}
	// Every device answers a read from its own register window; only
	// writes to the DMA/power/console slots trigger side effects.
	return readLE(m.buffers[slot], off, size), true
}

// Write services a STORE that fell inside the MMIO window, then runs
// the owning device's side effects (kicking off a DMA transfer,
// echoing a console byte, requesting shutdown).
func (m *Model) Write(devOffset uint32, size int, val uint32) bool {
	slot, off, ok := m.slotFor(devOffset)
	if !ok {
		return false
	}
	if slot == slotRIC {
		// RIC's window is read-only from the guest's perspective; only
		// the interrupt controller itself (sendRICInterrupt) writes it.
		return false
	}
	writeLE(m.buffers[slot], off, size, val)

	switch slot {
	case slotDMA0, slotDMA1, slotDMA2, slotDMA3:
		return m.runDMAIfArmed(slot)
	case slotPower:
		return m.runPower(slot)
	case slotConsole:
		return m.runConsole(off)
	}
	return true
}

func (m *Model) runDMAIfArmed(slot int) bool {
	buf := m.buffers[slot]
	cntl := readLE(buf, dmaCntl, 4)
	if cntl&DMACntlDo == 0 {
		return true
	}
	writeLE(buf, dmaCntl, 4, cntl&^DMACntlDo)

	dst := readLE(buf, dmaDstAddr, 4)
	src := readLE(buf, dmaSrcAddr, 4)
	dstInc := readLE(buf, dmaDstInc, 4)
	srcInc := readLE(buf, dmaSrcInc, 4)
	length := readLE(buf, dmaLen, 4)
	transSize := int(readLE(buf, dmaTransSize, 4))
	if transSize == 0 {
		transSize = 1
	}

	for i, dstOff, srcOff := uint32(0), uint32(0), uint32(0); i < length; i, dstOff, srcOff = i+uint32(transSize), dstOff+dstInc, srcOff+srcInc {
		data, ok := m.bus.Load(src+srcOff, transSize)
		if !ok {
			return false
		}
		if !m.bus.Store(dst+dstOff, data, transSize) {
			return false
		}
	}
	return true
}

func (m *Model) runPower(slot int) bool {
	cntl := m.buffers[slot][powerCntl]
	if cntl&PowerCntlShutdown != 0 && m.onExit != nil {
		m.onExit(0)
	}
	return true
}

func (m *Model) runConsole(off uint32) bool {
	buf := m.buffers[slotConsole]
	if off == consoleOut && m.onOutput != nil {
		m.onOutput(buf[consoleOut])
	}
	cntl := buf[consoleCntl]
	if off == consoleOut && cntl&ConsoleCntlInterrupt != 0 {
		inSize := readLE(buf, consoleInSize, 2) + 1
		batch := readLE(buf, consoleBatchSize, 2)
		if inSize >= batch {
			inSize = 0
			m.sendRICInterrupt(slotConsole)
		}
		writeLE(buf, consoleInSize, 2, inSize)
	}
	return true
}

func (m *Model) sendRICInterrupt(fromSlot int) {
	writeLE(m.buffers[slotRIC], ricDevAddr, 4, memmap.MMIOBase+uint32(fromSlot)*memmap.MMIODeviceSize)
	if m.interrupt != nil {
		m.interrupt(supervisorExternalOffset)
	}
}

// supervisorExternalOffset is CauseSupervisorExternal with the interrupt
// bit masked off, matching vm.CauseSupervisorExternal &^ vm.CauseInterrupt.
const supervisorExternalOffset = 9

func readLE(buf []byte, off uint32, size int) uint32 {
	var v uint32
	for i := 0; i < size; i++ {
		v |= uint32(buf[int(off)+i]) << (8 * i)
	}
	return v
}

func writeLE(buf []byte, off uint32, size int, val uint32) {
	for i := 0; i < size; i++ {
		buf[int(off)+i] = byte(val >> (8 * i))
	}
}
