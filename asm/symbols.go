package asm

import (
	"fmt"
	"sort"

	"github.com/lookbusy1344/rv32toolchain/memmap"
)

// Label is an immutable (text, address, owning section) triple. Duplicate
// definitions are a fatal assembler error.
type Label struct {
	Name    string
	Addr    uint32
	Section *memmap.Section
	Pos     Position
}

// Global marks a label name as asserted exported.
type Global struct {
	Name string
	Pos  Position
}

// Extern is a label name referred to but not defined locally; only legal
// when external references are permitted (object-file assembly mode). The
// symbol-table index is assigned at emission time by the object codec.
type Extern struct {
	Name        string
	SymtabIndex int
}

// SymbolTable owns the label table, the global-declaration list, and the
// extern list for one assembly session.
type SymbolTable struct {
	labels  map[string]*Label
	globals map[string]*Global
	externs map[string]*Extern
	order   []string // insertion order of global names, for stable emission
}

func newSymbolTable() *SymbolTable {
	return &SymbolTable{
		labels:  make(map[string]*Label),
		globals: make(map[string]*Global),
		externs: make(map[string]*Extern),
	}
}

// Define binds name to addr in section. Redefinition is a fatal error.
func (t *SymbolTable) Define(name string, addr uint32, section *memmap.Section, pos Position) error {
	if _, exists := t.labels[name]; exists {
		return fmt.Errorf("label %q already defined", name)
	}
	t.labels[name] = &Label{Name: name, Addr: addr, Section: section, Pos: pos}
	return nil
}

// Lookup returns the label if defined.
func (t *SymbolTable) Lookup(name string) (*Label, bool) {
	l, ok := t.labels[name]
	return l, ok
}

// DeclareGlobal records a `.globl` declaration.
func (t *SymbolTable) DeclareGlobal(name string, pos Position) {
	if _, exists := t.globals[name]; !exists {
		t.globals[name] = &Global{Name: name, Pos: pos}
		t.order = append(t.order, name)
	}
}

// IsGlobal reports whether name was declared `.globl`.
func (t *SymbolTable) IsGlobal(name string) bool {
	_, ok := t.globals[name]
	return ok
}

// Globals returns the global declarations in declaration order.
func (t *SymbolTable) Globals() []*Global {
	out := make([]*Global, 0, len(t.order))
	for _, n := range t.order {
		out = append(out, t.globals[n])
	}
	return out
}

// ResolveOrExtern resolves name to an address and section if it is
// defined; otherwise, if externs are permitted, records (or reuses) an
// Extern entry and returns ok=false so the caller knows to emit a
// relocation instead of a concrete value.
func (t *SymbolTable) ResolveOrExtern(name string, allowExterns bool) (addr uint32, section *memmap.Section, ok bool) {
	if l, defined := t.labels[name]; defined {
		return l.Addr, l.Section, true
	}
	if allowExterns {
		if _, exists := t.externs[name]; !exists {
			t.externs[name] = &Extern{Name: name}
		}
	}
	return 0, nil, false
}

// Externs returns the recorded extern references in a stable order
// (sorted by name).
func (t *SymbolTable) Externs() []*Extern {
	out := make([]*Extern, 0, len(t.externs))
	for _, e := range t.externs {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
