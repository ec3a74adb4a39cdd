package memmap

import "testing"

func TestNewDefaultSections(t *testing.T) {
	m := New()
	if m.Find(".text") == nil || m.Find(".data") == nil || m.Find(".stack") == nil || m.Find(".mmio") == nil {
		t.Fatalf("missing default sections")
	}
	for _, s := range m.Sections {
		for _, o := range m.Sections {
			if s == o {
				continue
			}
			if overlap(s, o) {
				t.Fatalf("sections %s and %s overlap", s.Name, o.Name)
			}
		}
	}
}

func TestViewUserCannotReachKernel(t *testing.T) {
	m := New()
	if _, _, err := m.View(KernelDataBase, 4, false, PrivUser); err == nil {
		t.Fatalf("expected supervisor-only error")
	}
	if _, _, err := m.View(KernelDataBase, 4, false, PrivSupervisor); err != nil {
		t.Fatalf("supervisor access should succeed: %v", err)
	}
}

func TestViewRangeMustStayInsideSection(t *testing.T) {
	m := New()
	_, _, err := m.View(TextEnd-2, 4, false, PrivMachine)
	if err == nil {
		t.Fatalf("expected boundary-crossing error")
	}
}

func TestAddRejectsOverlap(t *testing.T) {
	m := New()
	err := m.Add(&Section{Name: "x", Base: TextBase, Limit: TextBase + 4})
	if err == nil {
		t.Fatalf("expected overlap error")
	}
}

func TestEmitBytesGrowsContentsAndRespectsLimit(t *testing.T) {
	s := &Section{Name: ".text", Base: TextBase, Limit: TextBase + 4, Physical: true}
	if err := s.EmitBytes([]byte{1, 2, 3, 4}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.EmitBytes([]byte{5}); err == nil {
		t.Fatalf("expected out-of-space error")
	}
}
