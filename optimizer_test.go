package main

import "testing"

func TestSequenceRewriting(t *testing.T) {
	prog := mustParse(t, ">>+<<")
	prog = sequenceRewriteTree(prog)
	if len(prog) != 1 {
		t.Fatalf("got %d nodes, want 1 (offset AddVal, no residual move), got %#v", len(prog), prog)
	}
	n := prog[0]
	if n.Kind != KindAddVal || n.Count != 1 || n.Offset != 2 {
		t.Errorf("got %+v, want AddVal(1, off=2)", n)
	}
}

func TestSequenceRewritingResidualMove(t *testing.T) {
	prog := mustParse(t, ">>>+")
	prog = sequenceRewriteTree(prog)
	if len(prog) != 2 {
		t.Fatalf("got %d nodes, want 2, got %#v", len(prog), prog)
	}
	if prog[0].Kind != KindAddVal || prog[0].Offset != 3 {
		t.Errorf("node 0: got %+v, want AddVal(off=3)", prog[0])
	}
	if prog[1].Kind != KindMovePtr || prog[1].Count != 3 {
		t.Errorf("node 1: got %+v, want MovePtr(3)", prog[1])
	}
}

func TestClearLoop(t *testing.T) {
	prog := Optimize(mustParse(t, "[-]"))
	if len(prog) != 1 || prog[0].Kind != KindSetConst || prog[0].Value != 0 {
		t.Fatalf("got %#v, want single SetConst(0)", prog)
	}
}

// TestMultiplicationLoop traces "+++[>++<-]": cell 0 starts at 3, and
// each iteration adds 2 to cell 1 and decrements cell 0, running 3
// times — cell 1 ends at 6, cell 0 at 0. The loop should lower to a
// single Mul plus a SetConst.
func TestMultiplicationLoop(t *testing.T) {
	prog := Optimize(mustParse(t, "+++[>++<-]"))
	if len(prog) != 3 {
		t.Fatalf("got %d nodes, want 3 (AddVal, Mul, SetConst), got %#v", len(prog), prog)
	}
	if prog[0].Kind != KindAddVal || prog[0].Count != 3 {
		t.Errorf("node 0: got %+v, want AddVal(3)", prog[0])
	}
	mul := prog[1]
	if mul.Kind != KindMul || mul.Multiplier != 2 || mul.SrcOffset != 0 || mul.DstOffset != 1 {
		t.Errorf("node 1: got %+v, want Mul(x2, 0->1)", mul)
	}
	if prog[2].Kind != KindSetConst || prog[2].Value != 0 || prog[2].Offset != 0 {
		t.Errorf("node 2: got %+v, want SetConst(0, off=0)", prog[2])
	}
}

func TestMultiplicationLoopRejectsSideEffects(t *testing.T) {
	// A loop containing Output can't be a pure multiplication loop.
	prog := Optimize(mustParse(t, "+++[.-]"))
	foundLoop := false
	for _, n := range prog {
		if n.Kind == KindLoop {
			foundLoop = true
		}
	}
	if !foundLoop {
		t.Fatalf("loop with a side effect must not be rewritten away, got %#v", prog)
	}
}

func TestCopyCellLowering(t *testing.T) {
	// "[->+<]" is the single-destination, multiplier-1 special case.
	prog := Optimize(mustParse(t, "+++[->+<]"))
	var copyNode *Node
	for _, n := range prog {
		if n.Kind == KindCopyCell {
			copyNode = n
		}
	}
	if copyNode == nil {
		t.Fatalf("expected a CopyCell node, got %#v", prog)
	}
	if copyNode.SrcOffset != 0 || copyNode.DstOffset != 1 {
		t.Errorf("got %+v, want CopyCell(src=0, dst=1)", copyNode)
	}
}

func TestOffsetAddCollapse(t *testing.T) {
	// This shape only survives to the peephole pass when it spans two
	// basic blocks (a Loop in between keeps sequence rewriting from
	// absorbing it in one rebase).
	prog := []*Node{
		{Kind: KindMovePtr, Count: 3},
		{Kind: KindAddVal, Count: 5, Offset: 0},
		{Kind: KindMovePtr, Count: -3},
	}
	next, changed := applyRulesOnce(prog)
	if !changed {
		t.Fatalf("expected a rewrite")
	}
	if len(next) != 1 || next[0].Kind != KindAddVal || next[0].Count != 5 || next[0].Offset != 3 {
		t.Errorf("got %#v, want single AddVal(5, off=3)", next)
	}
}

func TestMergeAdjacentAddVal(t *testing.T) {
	prog := Optimize(mustParse(t, "+++---"))
	if len(prog) != 1 || prog[0].Kind != KindAddVal || prog[0].Count != 0 {
		t.Fatalf("got %#v, want a single net-zero AddVal", prog)
	}
}

func TestSetConstThenAddCoalesce(t *testing.T) {
	a := &Node{Kind: KindSetConst, Value: 10, Offset: 0}
	b := &Node{Kind: KindAddVal, Count: 5, Offset: 0}
	got := tryMergeTwo(a, b)
	if got == nil || got.Kind != KindSetConst || got.Value != 15 {
		t.Fatalf("got %+v, want SetConst(15)", got)
	}
}

func TestWrapByte(t *testing.T) {
	cases := map[int32]int32{0: 0, 255: 255, 256: 0, -1: 255, -256: 0, 300: 44}
	for in, want := range cases {
		if got := wrapByte(in); got != want {
			t.Errorf("wrapByte(%d) = %d, want %d", in, got, want)
		}
	}
}
