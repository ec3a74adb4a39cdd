package vm

import "github.com/lookbusy1344/rv32toolchain/memmap"

// Load reads size bytes (1, 2, or 4) at addr, routing through the MMIO
// device model when the address falls in the MMIO window. The bool
// return is false on any permission, bounds, or device fault.
func (c *CPU) Load(addr uint32, size int) (uint32, bool) {
	view, sec, err := c.Mem.View(addr, uint32(size), false, c.Privilege)
	if err != nil {
		return 0, false
	}
	if sec.Base == memmap.MMIOBase {
		if c.Device == nil {
			return 0, false
		}
		return c.Device.Read(addr-memmap.MMIOBase, size)
	}

	var ret uint32
	for i := 0; i < size; i++ {
		ret |= uint32(view[i]) << (8 * i)
	}
	return ret, true
}

// Store writes size bytes of val at addr, same routing rules as Load.
func (c *CPU) Store(addr uint32, val uint32, size int) bool {
	c.LastMemWriteAddr = addr
	c.LastMemWriteLen = uint32(size)

	view, sec, err := c.Mem.View(addr, uint32(size), true, c.Privilege)
	if err != nil {
		return false
	}
	if sec.Base == memmap.MMIOBase {
		if c.Device == nil {
			return false
		}
		return c.Device.Write(addr-memmap.MMIOBase, size, val)
	}

	for i := 0; i < size; i++ {
		view[i] = byte(val >> (8 * i))
	}
	return true
}
