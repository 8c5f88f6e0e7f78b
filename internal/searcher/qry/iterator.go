package qry

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/retrieval"
	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
)

type predicate int

const (
	matchFirst predicate = iota
	matchAll
	matchMin
)

// predicateFor returns how a scoring node decides its candidate document.
// Indri treats AND as soft: a missing argument is smoothed, not fatal.
func predicateFor(kind Kind, model retrieval.Kind) predicate {
	switch kind {
	case KindAnd, KindWAnd:
		if model == retrieval.Indri {
			return matchMin
		}
		return matchAll
	case KindOr, KindSum, KindWSum:
		return matchMin
	default:
		return matchFirst
	}
}

// HasMatch reports whether the node is positioned on a matching document.
// Under match-all it may move arguments forward to the next document they
// share, but never past a document the node matches.
func (t *Tree) HasMatch(id NodeID) bool {
	n := &t.nodes[id]
	if n.kind.Structural() {
		return n.list != nil && n.cur.docPos < len(n.list.Postings)
	}
	if n.cur.cached {
		return true
	}

	var (
		doc int
		ok  bool
	)
	switch predicateFor(n.kind, t.model.Kind()) {
	case matchAll:
		doc, ok = t.matchAll(n.children)
	case matchMin:
		doc, ok = t.matchMin(n.children)
	default:
		if len(n.children) == 1 && t.HasMatch(n.children[0]) {
			doc, ok = t.docOf(n.children[0]), true
		}
	}
	if ok {
		n.cur.cached = true
		n.cur.match = doc
	}
	return ok
}

// Match returns the document the node currently matches.
func (t *Tree) Match(id NodeID) (int, error) {
	n := &t.nodes[id]
	if n.kind.Structural() {
		if !t.HasMatch(id) {
			return 0, fmt.Errorf("%w: %s has no current document", apperrors.ErrInvalidIteratorState, n.kind)
		}
		return n.list.Postings[n.cur.docPos].DocID, nil
	}
	if !n.cur.cached {
		return 0, fmt.Errorf("%w: %s has no current document", apperrors.ErrInvalidIteratorState, n.kind)
	}
	return n.cur.match, nil
}

// docOf is Match for callers that have just seen HasMatch return true.
func (t *Tree) docOf(id NodeID) int {
	n := &t.nodes[id]
	if n.kind.Structural() {
		return n.list.Postings[n.cur.docPos].DocID
	}
	return n.cur.match
}

// AdvancePast moves the node, and every argument beneath it, to the first
// candidate after doc.
func (t *Tree) AdvancePast(id NodeID, doc int) {
	n := &t.nodes[id]
	if n.kind.Structural() {
		t.seek(n, func(d int) bool { return d <= doc })
		return
	}
	n.cur.cached = false
	for _, c := range n.children {
		t.AdvancePast(c, doc)
	}
}

// advanceTo moves the node to the first candidate at or after doc.
func (t *Tree) advanceTo(id NodeID, doc int) {
	n := &t.nodes[id]
	if n.kind.Structural() {
		t.seek(n, func(d int) bool { return d < doc })
		return
	}
	n.cur.cached = false
	for _, c := range n.children {
		t.advanceTo(c, doc)
	}
}

func (t *Tree) seek(n *node, before func(doc int) bool) {
	if n.list == nil {
		return
	}
	moved := false
	for n.cur.docPos < len(n.list.Postings) && before(n.list.Postings[n.cur.docPos].DocID) {
		n.cur.docPos++
		moved = true
	}
	if moved {
		n.cur.locPos = 0
	}
}

func (t *Tree) matchAll(children []NodeID) (int, bool) {
	if len(children) == 0 {
		return 0, false
	}
	first := children[0]
	for {
		if !t.HasMatch(first) {
			return 0, false
		}
		doc := t.docOf(first)
		aligned := true
		for _, c := range children[1:] {
			t.advanceTo(c, doc)
			if !t.HasMatch(c) {
				return 0, false
			}
			if other := t.docOf(c); other != doc {
				t.advanceTo(first, other)
				aligned = false
				break
			}
		}
		if aligned {
			return doc, true
		}
	}
}

func (t *Tree) matchMin(children []NodeID) (int, bool) {
	best, found := 0, false
	for _, c := range children {
		if !t.HasMatch(c) {
			continue
		}
		if d := t.docOf(c); !found || d < best {
			best, found = d, true
		}
	}
	return best, found
}

// matchesAt reports whether child c is positioned on doc.
func (t *Tree) matchesAt(c NodeID, doc int) bool {
	return t.HasMatch(c) && t.docOf(c) == doc
}

// posting is the posting under a structural node's document iterator.
func (t *Tree) posting(id NodeID) (index.Posting, error) {
	n := &t.nodes[id]
	if !n.kind.Structural() {
		return index.Posting{}, fmt.Errorf("%w: %s has no postings", apperrors.ErrInvalidIteratorState, n.kind)
	}
	if !t.HasMatch(id) {
		return index.Posting{}, fmt.Errorf("%w: %s has no current document", apperrors.ErrInvalidIteratorState, n.kind)
	}
	return n.list.Postings[n.cur.docPos], nil
}

// HasLoc reports whether the location iterator of a structural node has a
// position left in the current document.
func (t *Tree) HasLoc(id NodeID) bool {
	n := &t.nodes[id]
	if !n.kind.Structural() || !t.HasMatch(id) {
		return false
	}
	return n.cur.locPos < len(n.list.Postings[n.cur.docPos].Positions)
}

// Loc returns the current position in the current document.
func (t *Tree) Loc(id NodeID) (int, error) {
	if !t.HasLoc(id) {
		return 0, fmt.Errorf("%w: %s has no current position", apperrors.ErrInvalidIteratorState, t.nodes[id].kind)
	}
	n := &t.nodes[id]
	return n.list.Postings[n.cur.docPos].Positions[n.cur.locPos], nil
}

func (t *Tree) AdvanceLoc(id NodeID) {
	if t.HasLoc(id) {
		t.nodes[id].cur.locPos++
	}
}

// AdvanceLocPast moves the location iterator to the first position after pos.
func (t *Tree) AdvanceLocPast(id NodeID, pos int) {
	for t.HasLoc(id) {
		n := &t.nodes[id]
		if n.list.Postings[n.cur.docPos].Positions[n.cur.locPos] > pos {
			return
		}
		n.cur.locPos++
	}
}

// locOf is Loc for callers that have just seen HasLoc return true.
func (t *Tree) locOf(id NodeID) int {
	n := &t.nodes[id]
	return n.list.Postings[n.cur.docPos].Positions[n.cur.locPos]
}
