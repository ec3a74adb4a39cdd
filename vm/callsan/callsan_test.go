package callsan

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFreshZeroRegisterAlwaysReadable(t *testing.T) {
	s := New()
	_, ok := s.CanLoad(regZero)
	require.True(t, ok)
}

func TestUninitializedArgRegisterCannotBeRead(t *testing.T) {
	s := New()
	v, ok := s.CanLoad(regA0)
	require.False(t, ok)
	require.Equal(t, CantRead, v.Kind)
}

func TestStoreMakesRegisterReadable(t *testing.T) {
	s := New()
	s.Store(regA0)
	_, ok := s.CanLoad(regA0)
	require.True(t, ok)
}

func TestRetWithoutCallIsRejected(t *testing.T) {
	s := New()
	var regs [32]uint32
	v, ok := s.Ret(&regs)
	require.False(t, ok)
	require.Equal(t, RetEmpty, v.Kind)
}

func TestCallThenMatchingReturnSucceeds(t *testing.T) {
	s := New()
	var regs [32]uint32
	regs[regSP] = 0x7FFFE000
	regs[regRA] = 0x00400100
	s.Call(0x00400050, &regs, regs[regSP])

	_, ok := s.Ret(&regs)
	require.True(t, ok)
}

func TestReturnWithWrongStackPointerIsRejected(t *testing.T) {
	s := New()
	var regs [32]uint32
	regs[regSP] = 0x7FFFE000
	s.Call(0x00400050, &regs, regs[regSP])

	regs[regSP] = 0x7FFFE010 // callee left sp off-balance
	v, ok := s.Ret(&regs)
	require.False(t, ok)
	require.Equal(t, SPMismatch, v.Kind)
}

func TestClobberedCalleeSavedRegisterFailsOnReturn(t *testing.T) {
	s := New()
	var regs [32]uint32
	regs[regSP] = 0x7FFFE000
	regs[regFP] = 0x1111
	s.Call(0x00400050, &regs, regs[regSP])

	regs[regFP] = 0x2222 // callee forgot to restore fp
	v, ok := s.Ret(&regs)
	require.False(t, ok)
	require.Equal(t, NotSaved, v.Kind)
	require.EqualValues(t, regFP, v.Reg)
}

func TestStackLoadBeforeStoreIsRejected(t *testing.T) {
	s := New()
	addr := uint32(0x7FFFF000 - 16)
	require.False(t, s.CheckLoad(addr, 4))
	s.ReportStore(addr, 4, regA0)
	require.True(t, s.CheckLoad(addr, 4))
}
