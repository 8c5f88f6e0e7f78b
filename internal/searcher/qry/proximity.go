package qry

import (
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/indexer/index"
)

// synthesize evaluates a proximity node over its initialized arguments and
// stores the resulting inverted list. A synthesized posting's frequency is
// the number of recorded positions.
func (t *Tree) synthesize(id NodeID) {
	n := &t.nodes[id]
	list := index.NewInvertedList(n.kind.String(), n.field)
	n.list = list
	if len(n.children) == 0 {
		return
	}

	for {
		doc, ok := t.matchAll(n.children)
		if !ok {
			break
		}
		var positions []int
		if n.kind == KindNear {
			positions = t.nearPositions(n.children, n.distance)
		} else {
			positions = t.windowPositions(n.children, n.distance)
		}
		if len(positions) > 0 {
			list.Append(doc, positions)
		}
		for _, c := range n.children {
			t.AdvancePast(c, doc)
		}
	}
	n.cur = cursor{}
}

// nearPositions walks the first argument's positions. A start p0 matches
// when each following argument has a position greater than the previous
// one and at most distance after it. Matched positions are consumed.
func (t *Tree) nearPositions(args []NodeID, distance int) []int {
	first := args[0]
	var positions []int
	for t.HasLoc(first) {
		start := t.locOf(first)
		prev := start
		matched := true
		for _, a := range args[1:] {
			t.AdvanceLocPast(a, prev)
			if !t.HasLoc(a) {
				return positions
			}
			cur := t.locOf(a)
			if cur > prev+distance {
				matched = false
				break
			}
			prev = cur
		}
		if matched {
			positions = append(positions, start)
			for _, a := range args {
				t.AdvanceLoc(a)
			}
			continue
		}
		t.AdvanceLoc(first)
	}
	return positions
}

// windowPositions finds windows holding one position of every argument, in
// any order, with max-min < distance. Each match records the window's last
// position and consumes one position of every argument; otherwise only the
// argument at the minimum moves.
func (t *Tree) windowPositions(args []NodeID, distance int) []int {
	var positions []int
	for {
		minArg := args[0]
		lo, hi := 0, 0
		for i, a := range args {
			if !t.HasLoc(a) {
				return positions
			}
			p := t.locOf(a)
			if i == 0 || p < lo {
				lo, minArg = p, a
			}
			if i == 0 || p > hi {
				hi = p
			}
		}
		if hi-lo < distance {
			positions = append(positions, hi)
			for _, a := range args {
				t.AdvanceLoc(a)
			}
			continue
		}
		t.AdvanceLoc(minArg)
	}
}
