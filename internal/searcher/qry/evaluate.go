package qry

import (
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/retrieval"
	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
)

// Initialize binds the tree to a source and a model, checks every scoring
// node against the model, reads term lists, evaluates proximity operators
// and resets all iterators. It may be called again to re-run the tree.
func (t *Tree) Initialize(src index.Source, model retrieval.Model) error {
	t.src = src
	t.model = model
	t.initialized = false

	if err := t.checkModel(t.root); err != nil {
		return err
	}
	if err := t.initNode(t.root); err != nil {
		return err
	}
	t.initialized = true
	return nil
}

func (t *Tree) checkModel(id NodeID) error {
	n := &t.nodes[id]
	if !n.kind.Structural() && !Supports(n.kind, t.model.Kind()) {
		return fmt.Errorf("%w: %s under %s", apperrors.ErrUnsupportedCombination, n.kind, t.model.Kind())
	}
	for _, c := range n.children {
		if err := t.checkModel(c); err != nil {
			return err
		}
	}
	return nil
}

// initNode initializes children before parents so that proximity operators
// see ready argument lists.
func (t *Tree) initNode(id NodeID) error {
	for _, c := range t.nodes[id].children {
		if err := t.initNode(c); err != nil {
			return err
		}
	}

	n := &t.nodes[id]
	n.cur = cursor{}
	switch n.kind {
	case KindTerm:
		list, err := t.src.InvertedList(n.term, n.field)
		if err != nil {
			return fmt.Errorf("inverted list for %s.%s: %w", n.term, n.field, err)
		}
		n.list = list
	case KindNear, KindWindow:
		t.synthesize(id)
	case KindScore:
		return t.initStats(id)
	}
	return nil
}

func (t *Tree) initStats(id NodeID) error {
	n := &t.nodes[id]
	arg := &t.nodes[n.children[0]]
	n.field = arg.field

	stats := termStats{df: arg.list.DF(), ctf: arg.list.CTF}
	if arg.kind == KindTerm {
		df, err := t.src.DocumentFrequency(arg.term, arg.field)
		if err != nil {
			return fmt.Errorf("document frequency for %s.%s: %w", arg.term, arg.field, err)
		}
		stats.df = df
	}

	var err error
	if stats.numDocs, err = t.src.NumDocs(); err != nil {
		return fmt.Errorf("document count: %w", err)
	}
	if stats.sumLen, err = t.src.SumFieldLengths(n.field); err != nil {
		return fmt.Errorf("field length sum for %s: %w", n.field, err)
	}
	if stats.docCount, err = t.src.DocCount(n.field); err != nil {
		return fmt.Errorf("field document count for %s: %w", n.field, err)
	}
	n.stats = stats
	return nil
}

// Evaluate initializes the tree and scores every document the root matches.
// The returned list is sorted by descending score with discovery order
// breaking ties.
func (t *Tree) Evaluate(src index.Source, model retrieval.Model) (*ranker.ResultList, error) {
	if err := t.Initialize(src, model); err != nil {
		return nil, err
	}

	results := ranker.NewResultList()
	for t.HasMatch(t.root) {
		doc := t.docOf(t.root)
		score, err := t.Score(t.root)
		if err != nil {
			return nil, fmt.Errorf("scoring document %d: %w", doc, err)
		}
		if err := results.Add(doc, score); err != nil {
			return nil, err
		}
		t.AdvancePast(t.root, doc)
	}
	results.Sort()
	return results, nil
}

// Postings returns a copy of the inverted list behind a structural node
// after initialization.
func (t *Tree) Postings(id NodeID) (*index.InvertedList, error) {
	n := &t.nodes[id]
	if !n.kind.Structural() {
		return nil, fmt.Errorf("%w: %s has no postings", apperrors.ErrInvalidIteratorState, n.kind)
	}
	if !t.initialized || n.list == nil {
		return nil, fmt.Errorf("%w: tree is not initialized", apperrors.ErrInvalidIteratorState)
	}
	out := *n.list
	out.Postings = append([]index.Posting(nil), n.list.Postings...)
	return &out, nil
}
