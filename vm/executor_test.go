package vm

import (
	"bytes"
	"testing"

	"github.com/lookbusy1344/rv32toolchain/memmap"
	"github.com/stretchr/testify/require"
)

func newTestCPU(t *testing.T, program []uint32) (*CPU, *bytes.Buffer) {
	t.Helper()
	mem := memmap.New()
	text := mem.Find(".text")
	for _, w := range program {
		require.NoError(t, text.EmitBytes([]byte{byte(w), byte(w >> 8), byte(w >> 16), byte(w >> 24)}))
	}
	var out bytes.Buffer
	cpu := New(mem, nil)
	cpu.Out = &out
	return cpu, &out
}

// addi a0, x0, 5 ; addi a1, x0, 3 ; add a2, a0, a1
func TestAddiAndAdd(t *testing.T) {
	cpu, _ := newTestCPU(t, []uint32{
		0x00500513, // addi a0, x0, 5
		0x00300593, // addi a1, x0, 3
		0x00B50633, // add a2, a0, a1
	})
	for i := 0; i < 3; i++ {
		require.Nil(t, cpu.Step())
	}
	require.EqualValues(t, 8, cpu.Regs[12])
}

func TestDivByZeroYieldsAllOnes(t *testing.T) {
	cpu, _ := newTestCPU(t, nil)
	cpu.Regs[10] = 3
	cpu.Regs[11] = 0
	require.Nil(t, cpu.execute(encodeDivLike(12, 10, 11)))
	require.EqualValues(t, 0xFFFFFFFF, cpu.Regs[12])
}

func encodeDivLike(rd, rs1, rs2 uint32) uint32 {
	return 0x33 | rd<<7 | 0b100<<12 | rs1<<15 | rs2<<20 | 1<<25
}

func TestDivIntMinByNegOneOverflowsToItself(t *testing.T) {
	cpu, _ := newTestCPU(t, nil)
	cpu.Regs[10] = uint32(int32(1) << 31)
	cpu.Regs[11] = 0xFFFFFFFF // -1
	require.Nil(t, cpu.execute(encodeDivLike(12, 10, 11)))
	require.EqualValues(t, uint32(1)<<31, cpu.Regs[12])
}

func TestRemByZeroReturnsDividend(t *testing.T) {
	cpu, _ := newTestCPU(t, nil)
	cpu.Regs[10] = 42
	cpu.Regs[11] = 0
	inst := uint32(0x33) | 12<<7 | 0b110<<12 | 10<<15 | 11<<20 | 1<<25
	require.Nil(t, cpu.execute(inst))
	require.EqualValues(t, 42, cpu.Regs[12])
}

func TestEcallExitSetsExitedAndCode(t *testing.T) {
	cpu, _ := newTestCPU(t, []uint32{
		0x05D00513, // addi a0, x0, 93
		0x05D00893, // addi a7, x0, 93
		0x00000073, // ecall
	})
	require.Nil(t, cpu.Step())
	require.Nil(t, cpu.Step())
	require.Nil(t, cpu.Step())
	require.True(t, cpu.Exited)
	require.Equal(t, 93, cpu.ExitCode)
}

func TestEcallPrintIntWritesDecimal(t *testing.T) {
	cpu, out := newTestCPU(t, nil)
	cpu.Regs[10] = uint32(int32(-7))
	cpu.Regs[17] = SyscallPrintInt
	require.Nil(t, cpu.doSyscall())
	require.Equal(t, "-7", out.String())
}

func TestSRETRequiresSupervisorMode(t *testing.T) {
	cpu, _ := newTestCPU(t, nil)
	rerr := cpu.doSRET()
	require.NotNil(t, rerr)
	require.Equal(t, ErrUnhandledInsn, rerr.Kind)
}

func TestDeliverInterruptVectorsThroughStvec(t *testing.T) {
	cpu, _ := newTestCPU(t, nil)
	cpu.CSR[CSRStvec] = 0x00401000
	cpu.PC = memmap.TextBase
	cpu.DeliverInterrupt(CauseSupervisorSoftware)
	require.Equal(t, uint32(0x00401000), cpu.PC)
	require.Equal(t, memmap.PrivSupervisor, cpu.Privilege)
	require.EqualValues(t, memmap.TextBase, cpu.CSR[CSRSepc])
}

func TestCSRShadowingMasksSstatus(t *testing.T) {
	cpu, _ := newTestCPU(t, nil)
	cpu.CSR[CSRMstatus] = StatusSIE | StatusSPIE | StatusSPP | StatusFS | 0xF0000
	got := cpu.readCSR(CSRSstatus)
	require.Equal(t, uint32(StatusSIE|StatusSPIE|StatusSPP|StatusFS), got)
}
