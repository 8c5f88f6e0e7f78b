package qry

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
)

// Builder assembles a Tree bottom-up. Every node may be used as an argument
// exactly once. Structural arguments of scoring operators are wrapped in a
// Score node automatically.
type Builder struct {
	nodes []node
}

func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) add(n node) NodeID {
	b.nodes = append(b.nodes, n)
	return NodeID(len(b.nodes) - 1)
}

// Term adds a leaf. An empty field means index.DefaultField.
func (b *Builder) Term(term, field string) NodeID {
	if field == "" {
		field = index.DefaultField
	}
	return b.add(node{kind: KindTerm, term: term, field: field})
}

func (b *Builder) Near(distance int, args ...NodeID) NodeID {
	return b.add(node{kind: KindNear, distance: distance, children: clone(args)})
}

func (b *Builder) Window(distance int, args ...NodeID) NodeID {
	return b.add(node{kind: KindWindow, distance: distance, children: clone(args)})
}

func (b *Builder) And(args ...NodeID) NodeID { return b.scoring(KindAnd, nil, args) }

func (b *Builder) Or(args ...NodeID) NodeID { return b.scoring(KindOr, nil, args) }

func (b *Builder) Sum(args ...NodeID) NodeID { return b.scoring(KindSum, nil, args) }

// WAnd adds a weighted AND; weights[i] belongs to args[i].
func (b *Builder) WAnd(weights []float64, args ...NodeID) NodeID {
	return b.scoring(KindWAnd, weights, args)
}

// WSum adds a weighted SUM; weights[i] belongs to args[i].
func (b *Builder) WSum(weights []float64, args ...NodeID) NodeID {
	return b.scoring(KindWSum, weights, args)
}

// Score adds a single-argument scoring node over a structural node.
func (b *Builder) Score(arg NodeID) NodeID {
	return b.add(node{kind: KindScore, children: []NodeID{arg}})
}

func (b *Builder) scoring(kind Kind, weights []float64, args []NodeID) NodeID {
	children := make([]NodeID, len(args))
	for i, a := range args {
		if b.valid(a) && b.nodes[a].kind.Structural() {
			a = b.Score(a)
		}
		children[i] = a
	}
	n := node{kind: kind, children: children}
	if kind.weighted() {
		n.weights = append([]float64(nil), weights...)
		for _, w := range weights {
			n.weightSum += w
		}
	}
	return b.add(n)
}

func (b *Builder) valid(id NodeID) bool {
	return id >= 0 && int(id) < len(b.nodes)
}

// Build validates the nodes reachable from root and returns the tree. A
// structural root is wrapped in a Score node.
func (b *Builder) Build(root NodeID) (*Tree, error) {
	if !b.valid(root) {
		return nil, apperrors.Malformed("root %d is not a node", root)
	}
	if b.nodes[root].kind.Structural() {
		root = b.Score(root)
	}

	parents := make([]int, len(b.nodes))
	if err := b.check(root, parents); err != nil {
		return nil, err
	}

	// Node ids handed out by the builder stay valid in the tree. Nodes not
	// reachable from root are kept but never initialized.
	t := &Tree{nodes: make([]node, len(b.nodes)), root: root}
	for i, src := range b.nodes {
		t.nodes[i] = node{
			kind:      src.kind,
			term:      src.term,
			field:     src.field,
			distance:  src.distance,
			children:  clone(src.children),
			weights:   append([]float64(nil), src.weights...),
			weightSum: src.weightSum,
		}
	}
	return t, nil
}

func (b *Builder) check(id NodeID, parents []int) error {
	n := &b.nodes[id]
	for _, c := range n.children {
		if !b.valid(c) || c >= id {
			return apperrors.Malformed("%s has an invalid argument %d", n.kind, c)
		}
		parents[c]++
		if parents[c] > 1 {
			return apperrors.Malformed("node %d is an argument of more than one operator", c)
		}
		if err := b.check(c, parents); err != nil {
			return err
		}
	}

	switch n.kind {
	case KindTerm:
		if n.term == "" {
			return apperrors.Malformed("empty term")
		}
	case KindNear, KindWindow:
		if n.distance <= 0 {
			return apperrors.Malformed("%s distance must be positive, got %d", n.kind, n.distance)
		}
		field := ""
		for _, c := range n.children {
			child := &b.nodes[c]
			if !child.kind.Structural() {
				return apperrors.Malformed("%s cannot take scoring argument %s", n.kind, child.kind)
			}
			if field == "" {
				field = child.field
			} else if child.field != field {
				return apperrors.Malformed("%s arguments use fields %q and %q", n.kind, field, child.field)
			}
		}
		if field == "" {
			field = index.DefaultField
		}
		n.field = field
	case KindScore:
		if len(n.children) != 1 || !b.nodes[n.children[0]].kind.Structural() {
			return apperrors.Malformed("#score takes exactly one term or proximity argument")
		}
	case KindWAnd, KindWSum:
		if len(n.weights) != len(n.children) {
			return apperrors.Malformed("%s has %d weights for %d arguments", n.kind, len(n.weights), len(n.children))
		}
		for _, w := range n.weights {
			if math.IsNaN(w) || math.IsInf(w, 0) {
				return apperrors.Malformed("%s weight %g is not finite", n.kind, w)
			}
			if w < 0 {
				return apperrors.Malformed("%s weight %g is negative", n.kind, w)
			}
		}
		if len(n.children) > 0 && n.weightSum <= 0 {
			return apperrors.Malformed("%s weights sum to zero", n.kind)
		}
		if math.IsInf(n.weightSum, 0) {
			return apperrors.Malformed("%s weights overflow", n.kind)
		}
	}
	return nil
}

func clone(ids []NodeID) []NodeID {
	return append([]NodeID(nil), ids...)
}
