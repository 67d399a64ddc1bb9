package main

import (
	"bytes"
	"testing"
)

func TestProfileTag(t *testing.T) {
	cases := []struct {
		kind NodeKind
		want string
	}{
		{KindMovePtr, "MOVE_PTR"},
		{KindAddVal, "ADD_VAL"},
		{KindOutput, "OUTPUT"},
		{KindInput, "INPUT"},
		{KindLoop, "LOOP"},
		{KindSetConst, "SET_CONST"},
		{KindMul, "MUL"},
		{KindCopyCell, "COPY_CELL"},
	}
	for _, c := range cases {
		if got := profileTag(c.kind); got != c.want {
			t.Errorf("profileTag(%v) = %q, want %q", c.kind, got, c.want)
		}
	}
}

// TestBuildStacksLoopNesting covers the testable scenario of a single
// loop containing one Output: the stack attributed to the Output node
// must begin with the loop's own frame and end with the Output's.
func TestBuildStacksLoopNesting(t *testing.T) {
	output := &Node{Kind: KindOutput, Line: 3, Column: 1}
	loop := &Node{Kind: KindLoop, Line: 2, Column: 1, Body: []*Node{output}}
	prog := []*Node{loop}

	debugMap := NewDebugMap()
	loopID := debugMap.LabelFor(loop)
	outID := debugMap.LabelFor(output)

	stacks := buildStacks(debugMap, prog)

	want := "@2:1 LOOP;@3:1 OUTPUT"
	if got := stacks[outID]; got != want {
		t.Errorf("stacks[outID] = %q, want %q", got, want)
	}
	if _, ok := stacks[loopID]; ok {
		t.Errorf("loop node got its own stack entry %q, want none", stacks[loopID])
	}
}

// TestBuildStacksNoEnclosingLoop covers a top-level node with no
// enclosing loop: its stack is just its own frame, no leading ';'.
func TestBuildStacksNoEnclosingLoop(t *testing.T) {
	add := &Node{Kind: KindAddVal, Line: 1, Column: 1}
	prog := []*Node{add}

	debugMap := NewDebugMap()
	addID := debugMap.LabelFor(add)

	stacks := buildStacks(debugMap, prog)
	if got, want := stacks[addID], "@1:1 ADD_VAL"; got != want {
		t.Errorf("stacks[addID] = %q, want %q", got, want)
	}
}

// TestBuildStacksNestedLoops covers two levels of nesting: the stack
// must list both enclosing loops in source order.
func TestBuildStacksNestedLoops(t *testing.T) {
	inputNode := &Node{Kind: KindInput, Line: 4, Column: 2}
	inner := &Node{Kind: KindLoop, Line: 3, Column: 2, Body: []*Node{inputNode}}
	outer := &Node{Kind: KindLoop, Line: 2, Column: 1, Body: []*Node{inner}}
	prog := []*Node{outer}

	debugMap := NewDebugMap()
	inID := debugMap.LabelFor(inputNode)

	stacks := buildStacks(debugMap, prog)
	want := "@2:1 LOOP;@3:2 LOOP;@4:2 INPUT"
	if got := stacks[inID]; got != want {
		t.Errorf("stacks[inID] = %q, want %q", got, want)
	}
}

func TestProfilerWriteFoldedSortedAndCounted(t *testing.T) {
	output := &Node{Kind: KindOutput, Line: 1, Column: 1}
	loop := &Node{Kind: KindLoop, Line: 2, Column: 1, Body: []*Node{
		{Kind: KindAddVal, Line: 3, Column: 1},
	}}
	prog := []*Node{output, loop}

	debugMap := NewDebugMap()
	outID := debugMap.LabelFor(output)
	addID := debugMap.LabelFor(loop.Body[0])

	p := &Profiler{debugMap: debugMap, prog: prog, mu: samplesMap{
		addID: 2,
		outID: 5,
	}}
	var buf bytes.Buffer
	if err := p.WriteFolded(&buf); err != nil {
		t.Fatalf("WriteFolded: %v", err)
	}
	want := "@1:1 OUTPUT 5\n@2:1 LOOP;@3:1 ADD_VAL 2\n"
	if buf.String() != want {
		t.Errorf("WriteFolded =\n%s\nwant\n%s", buf.String(), want)
	}
}

// TestProfilerWriteFoldedDropsLoopSamples: a sample that lands on a
// loop's own label (no entry in buildStacks) is silently dropped.
func TestProfilerWriteFoldedDropsLoopSamples(t *testing.T) {
	loop := &Node{Kind: KindLoop, Line: 1, Column: 1, Body: []*Node{
		{Kind: KindOutput, Line: 2, Column: 1},
	}}
	prog := []*Node{loop}

	debugMap := NewDebugMap()
	loopID := debugMap.LabelFor(loop)

	p := &Profiler{debugMap: debugMap, prog: prog, mu: samplesMap{loopID: 3}}
	var buf bytes.Buffer
	if err := p.WriteFolded(&buf); err != nil {
		t.Fatalf("WriteFolded: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected a loop-labeled sample to be dropped, got %q", buf.String())
	}
}

func TestProfilerWriteFoldedEmpty(t *testing.T) {
	p := &Profiler{debugMap: NewDebugMap(), mu: samplesMap{}}
	var buf bytes.Buffer
	if err := p.WriteFolded(&buf); err != nil {
		t.Fatalf("WriteFolded: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no output for an empty sample set, got %q", buf.String())
	}
}
