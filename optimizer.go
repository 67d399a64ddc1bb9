package main

// Optimize runs the two-pass pipeline over a program: sequence rewriting
// first (across the whole tree), then a fixed-point peephole pass. The
// ordering is load-bearing — peephole rules like the multiplication-loop
// rule only fire on the offset-annotated AddVal nodes that sequence
// rewriting produces.
func Optimize(prog []*Node) []*Node {
	prog = sequenceRewriteTree(prog)
	prog = fixedPointList(prog)
	return prog
}

// --- Pass 1: sequence rewriting ---
//
// Within each maximal run of Loop-free siblings, every MovePtr is folded
// into a running offset and erased; every other node in the run has its
// Offset/SrcOffset/DstOffset rebased by that running offset. If the run
// ends with a nonzero running offset (cursor motion that isn't absorbed
// by anything after it), a single residual MovePtr carries it. This
// turns "move, act, move, act, move" chains into "act-at-offset,
// act-at-offset, move-once", which is both fewer emitted instructions and
// the shape the peephole pass expects.

func sequenceRewriteTree(nodes []*Node) []*Node {
	return rewriteBlockRecursive(nodes)
}

func rewriteBlockRecursive(nodes []*Node) []*Node {
	var out []*Node
	var block []*Node
	flush := func() {
		if len(block) > 0 {
			out = append(out, rewriteBlock(block)...)
			block = nil
		}
	}
	for _, n := range nodes {
		if n.Kind == KindLoop {
			flush()
			n.Body = rewriteBlockRecursive(n.Body)
			out = append(out, n)
			continue
		}
		block = append(block, n)
	}
	flush()
	return out
}

func rewriteBlock(nodes []*Node) []*Node {
	var out []*Node
	var running int32
	for _, n := range nodes {
		switch n.Kind {
		case KindMovePtr:
			running += n.Count
		case KindAddVal, KindOutput, KindInput, KindSetConst:
			n.Offset += running
			out = append(out, n)
		default:
			// Mul/CopyCell/Loop do not appear pre-rewrite; kept for
			// safety if this pass is ever re-run on partially
			// optimized output.
			n.SrcOffset += running
			n.DstOffset += running
			out = append(out, n)
		}
	}
	if running != 0 {
		last := nodes[len(nodes)-1]
		out = append(out, &Node{Kind: KindMovePtr, Count: running, Line: last.Line, Column: last.Column})
	}
	return out
}

// --- Pass 2: fixed-point peephole ---
//
// Runs local rewrite rules repeatedly, at every nesting level, until a
// full pass over the level produces no change. Loop bodies are processed
// bottom-up (innermost first) so outer-loop rules like clear-loop and
// multiplication-loop see already-simplified bodies.

func fixedPointList(nodes []*Node) []*Node {
	for i, n := range nodes {
		if n.Kind == KindLoop {
			nodes[i].Body = fixedPointList(n.Body)
		}
	}
	for {
		next, changed := applyRulesOnce(nodes)
		nodes = next
		if !changed {
			break
		}
	}
	return nodes
}

func applyRulesOnce(nodes []*Node) ([]*Node, bool) {
	var out []*Node
	changed := false
	i := 0
	for i < len(nodes) {
		n := nodes[i]

		if n.Kind == KindLoop {
			if repl := tryClearLoop(n); repl != nil {
				out = append(out, repl)
				changed = true
				i++
				continue
			}
			if repl := tryMultiplicationLoop(n); repl != nil {
				out = append(out, repl...)
				changed = true
				i++
				continue
			}
		}

		if i+2 < len(nodes) {
			if repl := tryOffsetAddCollapse(nodes[i], nodes[i+1], nodes[i+2]); repl != nil {
				out = append(out, repl)
				changed = true
				i += 3
				continue
			}
		}

		if i+1 < len(nodes) {
			if repl := tryMergeTwo(nodes[i], nodes[i+1]); repl != nil {
				out = append(out, repl)
				changed = true
				i += 2
				continue
			}
		}

		out = append(out, n)
		i++
	}
	return out, changed
}

// tryClearLoop recognizes Loop([AddVal(-1, 0)]), the canonical "[-]"
// idiom, and replaces it with an unconditional zero.
func tryClearLoop(n *Node) *Node {
	if len(n.Body) != 1 {
		return nil
	}
	b := n.Body[0]
	if b.Kind != KindAddVal || b.Offset != 0 || wrapByte(b.Count) != 255 {
		return nil
	}
	return &Node{Kind: KindSetConst, Value: 0, Offset: 0, Line: n.Line, Column: n.Column}
}

// tryMultiplicationLoop recognizes loops of the shape produced by
// "[->++<]"-style idioms: every body node is an AddVal, exactly one of
// them is the counter decrement AddVal(-1, 0), and the rest distribute a
// multiple of the counter into other cells. It rejects anything with a
// non-AddVal body node (a nested Loop, a MovePtr that sequence rewriting
// didn't absorb, I/O) since those have side effects or variable trip
// counts the rewrite can't account for.
func tryMultiplicationLoop(n *Node) []*Node {
	if len(n.Body) == 0 {
		return nil
	}
	var decrements int
	for _, b := range n.Body {
		if b.Kind != KindAddVal {
			return nil
		}
		if b.Offset == 0 && wrapByte(b.Count) == 255 {
			decrements++
		}
	}
	if decrements != 1 {
		return nil
	}

	var out []*Node
	for _, b := range n.Body {
		if b.Offset == 0 && wrapByte(b.Count) == 255 {
			continue
		}
		k := wrapByte(b.Count)
		if k == 1 {
			out = append(out, &Node{Kind: KindCopyCell, SrcOffset: 0, DstOffset: b.Offset, Line: n.Line, Column: n.Column})
		} else {
			out = append(out, &Node{Kind: KindMul, Multiplier: k, SrcOffset: 0, DstOffset: b.Offset, Line: n.Line, Column: n.Column})
		}
	}
	out = append(out, &Node{Kind: KindSetConst, Value: 0, Offset: 0, Line: n.Line, Column: n.Column})
	return out
}

// tryMergeTwo folds adjacent nodes that act on the same cell: two
// MovePtrs into one, two same-offset AddVals into one, and a SetConst
// immediately followed by a same-offset AddVal into one SetConst (the
// add is applied at compile time since the value is already known).
func tryMergeTwo(a, b *Node) *Node {
	switch {
	case a.Kind == KindMovePtr && b.Kind == KindMovePtr:
		return &Node{Kind: KindMovePtr, Count: a.Count + b.Count, Line: a.Line, Column: a.Column}
	case a.Kind == KindAddVal && b.Kind == KindAddVal && a.Offset == b.Offset:
		return &Node{Kind: KindAddVal, Count: a.Count + b.Count, Offset: a.Offset, Line: a.Line, Column: a.Column}
	case a.Kind == KindSetConst && b.Kind == KindAddVal && a.Offset == b.Offset:
		return &Node{Kind: KindSetConst, Value: wrapByte(a.Value + b.Count), Offset: a.Offset, Line: a.Line, Column: a.Column}
	default:
		return nil
	}
}

// tryOffsetAddCollapse recognizes MovePtr(+n), AddVal(c, 0), MovePtr(-n)
// — a leftover "step over, act, step back" shape that sequence rewriting
// only removes when it spans an entire basic block — and collapses it to
// a single offset AddVal, requiring exact cancellation of the two moves.
func tryOffsetAddCollapse(a, b, c *Node) *Node {
	if a.Kind != KindMovePtr || c.Kind != KindMovePtr {
		return nil
	}
	if a.Count+c.Count != 0 || a.Count == 0 {
		return nil
	}
	if b.Kind != KindAddVal || b.Offset != 0 {
		return nil
	}
	return &Node{Kind: KindAddVal, Count: b.Count, Offset: a.Count, Line: a.Line, Column: a.Column}
}

func wrapByte(v int32) int32 {
	return ((v % 256) + 256) % 256
}
