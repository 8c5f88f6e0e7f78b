// Package qry evaluates query operator trees against an index.Source.
//
// A Tree is an arena of nodes addressed by NodeID. Term, Near and Window
// nodes are backed by an inverted list (read from the source for terms,
// synthesized for proximity operators) and expose both a document iterator
// and a location iterator. Scoring nodes (And, Or, Sum, WAnd, WSum, Score)
// combine their children's current matches into a score under the retrieval
// model bound by Initialize.
//
// A Tree is not safe for concurrent use. Build one tree per query.
package qry

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/retrieval"
)

type Kind int

const (
	KindTerm Kind = iota
	KindNear
	KindWindow
	KindAnd
	KindOr
	KindSum
	KindWAnd
	KindWSum
	KindScore
)

var kindNames = [...]string{
	KindTerm:   "term",
	KindNear:   "#near",
	KindWindow: "#window",
	KindAnd:    "#and",
	KindOr:     "#or",
	KindSum:    "#sum",
	KindWAnd:   "#wand",
	KindWSum:   "#wsum",
	KindScore:  "#score",
}

func (k Kind) String() string {
	if int(k) >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Structural reports whether nodes of this kind are backed by an inverted
// list.
func (k Kind) Structural() bool {
	return k == KindTerm || k == KindNear || k == KindWindow
}

func (k Kind) weighted() bool {
	return k == KindWAnd || k == KindWSum
}

type NodeID int

// cursor is the mutable iteration state of one node.
type cursor struct {
	docPos int
	locPos int
	cached bool
	match  int
}

// termStats are the collection statistics a Score node needs, fixed at
// initialization.
type termStats struct {
	numDocs  int
	df       int
	ctf      int64
	sumLen   int64
	docCount int
}

func (s termStats) avgDocLength() float64 {
	if s.docCount == 0 {
		return 0
	}
	return float64(s.sumLen) / float64(s.docCount)
}

func (s termStats) mle() float64 {
	if s.sumLen == 0 {
		return 0
	}
	return float64(s.ctf) / float64(s.sumLen)
}

type node struct {
	kind      Kind
	term      string
	field     string
	distance  int
	children  []NodeID
	weights   []float64
	weightSum float64

	list  *index.InvertedList
	stats termStats
	cur   cursor
}

// Tree is a validated operator tree. Its root is always a scoring node.
type Tree struct {
	nodes []node
	root  NodeID

	src         index.Source
	model       retrieval.Model
	initialized bool
}

func (t *Tree) Root() NodeID { return t.root }

func (t *Tree) Kind(id NodeID) Kind { return t.nodes[id].kind }

func (t *Tree) Field(id NodeID) string { return t.nodes[id].field }

// Children returns a copy of the node's child ids.
func (t *Tree) Children(id NodeID) []NodeID {
	out := make([]NodeID, len(t.nodes[id].children))
	copy(out, t.nodes[id].children)
	return out
}

// Weights returns a copy of a weighted node's per-child weights.
func (t *Tree) Weights(id NodeID) []float64 {
	out := make([]float64, len(t.nodes[id].weights))
	copy(out, t.nodes[id].weights)
	return out
}

func (t *Tree) Model() retrieval.Model { return t.model }

// String renders the tree in query-language form.
func (t *Tree) String() string {
	return t.render(t.root)
}

func (t *Tree) render(id NodeID) string {
	n := &t.nodes[id]
	switch n.kind {
	case KindTerm:
		if n.field == index.DefaultField {
			return n.term
		}
		return n.term + "." + n.field
	case KindNear, KindWindow:
		return fmt.Sprintf("%s/%d(%s)", n.kind, n.distance, t.renderArgs(n, false))
	default:
		return fmt.Sprintf("%s(%s)", n.kind, t.renderArgs(n, n.kind.weighted()))
	}
}

func (t *Tree) renderArgs(n *node, weighted bool) string {
	s := ""
	for i, c := range n.children {
		if i > 0 {
			s += " "
		}
		if weighted {
			s += fmt.Sprintf("%g ", n.weights[i])
		}
		s += t.render(c)
	}
	return s
}
