package main

import "testing"

func TestDebugMapFindByPC(t *testing.T) {
	m := NewDebugMap()
	n0 := &Node{Kind: KindAddVal, Line: 1, Column: 1}
	n1 := &Node{Kind: KindOutput, Line: 1, Column: 2}
	n2 := &Node{Kind: KindLoop, Line: 2, Column: 1}

	m.Record(m.LabelFor(n0), 0, n0)
	m.Record(m.LabelFor(n1), 10, n1)
	m.Record(m.LabelFor(n2), 25, n2)
	m.ResolveAll()

	cases := []struct {
		pc       int
		wantKind NodeKind
		wantNil  bool
	}{
		{-1, 0, true},
		{0, KindAddVal, false},
		{5, KindAddVal, false},
		{10, KindOutput, false},
		{24, KindOutput, false},
		{25, KindLoop, false},
		{1000, KindLoop, false},
	}
	for _, tc := range cases {
		got := m.FindByPC(tc.pc)
		if tc.wantNil {
			if got != nil {
				t.Errorf("FindByPC(%d) = %+v, want nil", tc.pc, got)
			}
			continue
		}
		if got == nil {
			t.Fatalf("FindByPC(%d) = nil, want Kind=%v", tc.pc, tc.wantKind)
		}
		if got.Kind != tc.wantKind {
			t.Errorf("FindByPC(%d).Kind = %v, want %v", tc.pc, got.Kind, tc.wantKind)
		}
	}
}

func TestDebugMapLabelForStable(t *testing.T) {
	m := NewDebugMap()
	n := &Node{Kind: KindAddVal}
	id1 := m.LabelFor(n)
	id2 := m.LabelFor(n)
	if id1 != id2 {
		t.Errorf("LabelFor not stable: %d != %d", id1, id2)
	}
	other := &Node{Kind: KindAddVal}
	if m.LabelFor(other) == id1 {
		t.Errorf("distinct nodes got the same label id")
	}
}

func TestDebugMapFindByLabel(t *testing.T) {
	m := NewDebugMap()
	n := &Node{Kind: KindLoop, Line: 3, Column: 4}
	id := m.LabelFor(n)
	m.Record(id, 40, n)
	m.ResolveAll()

	got := m.FindByLabel(id)
	if got == nil || got.Line != 3 || got.Column != 4 {
		t.Fatalf("FindByLabel(%d) = %+v", id, got)
	}
	if m.FindByLabel(id+1) != nil {
		t.Errorf("FindByLabel for unrecorded id should be nil")
	}
}
