package main

import (
	"fmt"
	"sort"
)

// DebugMapEntry associates one emitted-code offset with the IR node it
// came from, so a PC (or, for the profiler, a heartbeat label id) can be
// attributed back to source position and node kind.
type DebugMapEntry struct {
	LabelID  uint32
	PCOffset int
	Node     *Node
	Line     int
	Column   int
	Kind     NodeKind
	Payload  string
}

// DebugMap is a grow-only record of DebugMapEntry built during code
// generation and queried after linking, once every PCOffset is final. It
// also owns label-id assignment: each IR node gets at most one id, the
// first time the emitter reaches it with profiling enabled.
type DebugMap struct {
	entries []DebugMapEntry
	labels  map[*Node]uint32
	sorted  bool
}

// NewDebugMap returns an empty DebugMap.
func NewDebugMap() *DebugMap {
	return &DebugMap{labels: map[*Node]uint32{}}
}

// LabelFor returns the label id for n, assigning one on first use.
func (m *DebugMap) LabelFor(n *Node) uint32 {
	if id, ok := m.labels[n]; ok {
		return id
	}
	id := uint32(len(m.labels))
	m.labels[n] = id
	return id
}

// Record appends a new entry. pcOffset is relative to the start of the
// generated function body, filled in by the emitter at the point
// DebugLabel is called.
func (m *DebugMap) Record(labelID uint32, pcOffset int, n *Node) {
	m.entries = append(m.entries, DebugMapEntry{
		LabelID:  labelID,
		PCOffset: pcOffset,
		Node:     n,
		Line:     n.Line,
		Column:   n.Column,
		Kind:     n.Kind,
		Payload:  payloadSummary(n),
	})
	m.sorted = false
}

// ResolveAll finalizes the map for querying, sorting entries by
// PCOffset so FindByPC can binary search rather than scan.
func (m *DebugMap) ResolveAll() {
	sort.Slice(m.entries, func(i, j int) bool {
		return m.entries[i].PCOffset < m.entries[j].PCOffset
	})
	m.sorted = true
}

// FindByPC returns the entry with the largest PCOffset <= pc, or nil if
// pc precedes every recorded entry. ResolveAll must have been called.
func (m *DebugMap) FindByPC(pc int) *DebugMapEntry {
	if !m.sorted || len(m.entries) == 0 {
		return nil
	}
	idx := sort.Search(len(m.entries), func(i int) bool {
		return m.entries[i].PCOffset > pc
	})
	if idx == 0 {
		return nil
	}
	return &m.entries[idx-1]
}

// FindByLabel returns the entry recorded under labelID, or nil. Used by
// the profiler's heartbeat-slot sampling, which reads back a label id
// rather than a raw PC (see profiler.go).
func (m *DebugMap) FindByLabel(labelID uint32) *DebugMapEntry {
	for i := range m.entries {
		if m.entries[i].LabelID == labelID {
			return &m.entries[i]
		}
	}
	return nil
}

func payloadSummary(n *Node) string {
	switch n.Kind {
	case KindMovePtr:
		return fmt.Sprintf("%d", n.Count)
	case KindAddVal:
		return fmt.Sprintf("%d@%d", n.Count, n.Offset)
	case KindSetConst:
		return fmt.Sprintf("%d@%d", n.Value, n.Offset)
	case KindMul:
		return fmt.Sprintf("x%d,%d->%d", n.Multiplier, n.SrcOffset, n.DstOffset)
	case KindCopyCell:
		return fmt.Sprintf("%d->%d", n.SrcOffset, n.DstOffset)
	default:
		return ""
	}
}
