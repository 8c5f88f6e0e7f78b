package qry

import (
	"fmt"
	"math"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/retrieval"
	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
)

type capKey struct {
	kind  Kind
	model retrieval.Kind
}

type scoreFunc func(t *Tree, id NodeID, doc int) (float64, error)

// capability is what one operator can do under one model. A nil
// defaultScore means the model never asks for it.
type capability struct {
	score        scoreFunc
	defaultScore scoreFunc
}

// capabilities is filled in init because the scoring functions recurse
// through Tree.Score, which reads the table.
var capabilities map[capKey]capability

func init() {
	capabilities = map[capKey]capability{
		{KindScore, retrieval.UnrankedBoolean}: {score: constantScore},
		{KindScore, retrieval.RankedBoolean}:   {score: termFrequencyScore},
		{KindScore, retrieval.BM25}:            {score: bm25TermScore},
		{KindScore, retrieval.Indri}:           {score: indriTermScore, defaultScore: indriTermDefault},

		{KindAnd, retrieval.UnrankedBoolean}: {score: constantScore},
		{KindAnd, retrieval.RankedBoolean}:   {score: minScore},
		{KindAnd, retrieval.Indri}:           {score: geometricMean, defaultScore: geometricMeanDefault},

		{KindOr, retrieval.UnrankedBoolean}: {score: constantScore},
		{KindOr, retrieval.RankedBoolean}:   {score: maxScore},

		{KindSum, retrieval.BM25}: {score: sumScore},

		{KindWAnd, retrieval.Indri}: {score: geometricMean, defaultScore: geometricMeanDefault},

		{KindWSum, retrieval.BM25}:  {score: bm25WeightedSum},
		{KindWSum, retrieval.Indri}: {score: weightedMean, defaultScore: weightedMeanDefault},
	}
}

// Supports reports whether the operator can be scored under the model.
func Supports(kind Kind, model retrieval.Kind) bool {
	_, ok := capabilities[capKey{kind, model}]
	return ok
}

func (t *Tree) capability(id NodeID) (capability, error) {
	kind := t.nodes[id].kind
	c, ok := capabilities[capKey{kind, t.model.Kind()}]
	if !ok {
		return capability{}, fmt.Errorf("%w: %s under %s", apperrors.ErrUnsupportedCombination, kind, t.model.Kind())
	}
	return c, nil
}

// Score scores the document the node currently matches.
func (t *Tree) Score(id NodeID) (float64, error) {
	c, err := t.capability(id)
	if err != nil {
		return 0, err
	}
	n := &t.nodes[id]
	if !n.cur.cached {
		return 0, fmt.Errorf("%w: %s scored without a current document", apperrors.ErrInvalidIteratorState, n.kind)
	}
	return c.score(t, id, n.cur.match)
}

// DefaultScore is the score the node contributes to doc when it does not
// match doc. Only smoothing models define it.
func (t *Tree) DefaultScore(id NodeID, doc int) (float64, error) {
	c, err := t.capability(id)
	if err != nil {
		return 0, err
	}
	if c.defaultScore == nil {
		return 0, fmt.Errorf("%w: %s has no default score under %s", apperrors.ErrUnsupportedCombination, t.nodes[id].kind, t.model.Kind())
	}
	return c.defaultScore(t, id, doc)
}

// childScore is a child's score at doc, or its default score when it does
// not match doc.
func (t *Tree) childScore(c NodeID, doc int) (float64, error) {
	if t.matchesAt(c, doc) {
		return t.Score(c)
	}
	return t.DefaultScore(c, doc)
}

func constantScore(*Tree, NodeID, int) (float64, error) {
	return 1.0, nil
}

func termFrequencyScore(t *Tree, id NodeID, _ int) (float64, error) {
	p, err := t.posting(t.nodes[id].children[0])
	if err != nil {
		return 0, err
	}
	return float64(p.Frequency), nil
}

func bm25TermScore(t *Tree, id NodeID, doc int) (float64, error) {
	n := &t.nodes[id]
	p, err := t.posting(n.children[0])
	if err != nil {
		return 0, err
	}
	docLen, err := t.src.FieldLength(n.field, doc)
	if err != nil {
		return 0, fmt.Errorf("field length: %w", err)
	}
	params := t.model.BM25()
	idf := ranker.BM25IDF(n.stats.numDocs, n.stats.df)
	return idf * ranker.BM25TF(p.Frequency, docLen, n.stats.avgDocLength(), params.K1, params.B), nil
}

func indriTermScore(t *Tree, id NodeID, doc int) (float64, error) {
	p, err := t.posting(t.nodes[id].children[0])
	if err != nil {
		return 0, err
	}
	return indriTerm(t, id, doc, p.Frequency)
}

func indriTermDefault(t *Tree, id NodeID, doc int) (float64, error) {
	return indriTerm(t, id, doc, 0)
}

func indriTerm(t *Tree, id NodeID, doc, tf int) (float64, error) {
	n := &t.nodes[id]
	docLen, err := t.src.FieldLength(n.field, doc)
	if err != nil {
		return 0, fmt.Errorf("field length: %w", err)
	}
	params := t.model.Indri()
	return ranker.IndriTerm(tf, docLen, n.stats.mle(), params.Mu, params.Lambda), nil
}

func minScore(t *Tree, id NodeID, doc int) (float64, error) {
	best := math.MaxFloat64
	for _, c := range t.nodes[id].children {
		s, err := t.Score(c)
		if err != nil {
			return 0, err
		}
		best = math.Min(best, s)
	}
	return best, nil
}

func maxScore(t *Tree, id NodeID, doc int) (float64, error) {
	best := 0.0
	for _, c := range t.nodes[id].children {
		if !t.matchesAt(c, doc) {
			continue
		}
		s, err := t.Score(c)
		if err != nil {
			return 0, err
		}
		best = math.Max(best, s)
	}
	return best, nil
}

func sumScore(t *Tree, id NodeID, doc int) (float64, error) {
	total := 0.0
	for _, c := range t.nodes[id].children {
		if !t.matchesAt(c, doc) {
			continue
		}
		s, err := t.Score(c)
		if err != nil {
			return 0, err
		}
		total += s
	}
	return total, nil
}

func bm25WeightedSum(t *Tree, id NodeID, doc int) (float64, error) {
	n := &t.nodes[id]
	k3 := t.model.BM25().K3
	total := 0.0
	for i, c := range n.children {
		if !t.matchesAt(c, doc) {
			continue
		}
		s, err := t.Score(c)
		if err != nil {
			return 0, err
		}
		total += s * ranker.BM25QueryWeight(n.weights[i], k3)
	}
	return total / n.weightSum, nil
}

// exponent is the share of argument i in a geometric mean: 1/n for AND,
// w_i/W for WAND.
func exponent(n *node, i int) float64 {
	if n.kind == KindWAnd {
		return n.weights[i] / n.weightSum
	}
	return 1.0 / float64(len(n.children))
}

func geometricMean(t *Tree, id NodeID, doc int) (float64, error) {
	n := &t.nodes[id]
	score := 1.0
	for i, c := range n.children {
		s, err := t.childScore(c, doc)
		if err != nil {
			return 0, err
		}
		score *= math.Pow(s, exponent(n, i))
	}
	return score, nil
}

func geometricMeanDefault(t *Tree, id NodeID, doc int) (float64, error) {
	n := &t.nodes[id]
	score := 1.0
	for i, c := range n.children {
		s, err := t.DefaultScore(c, doc)
		if err != nil {
			return 0, err
		}
		score *= math.Pow(s, exponent(n, i))
	}
	return score, nil
}

func weightedMean(t *Tree, id NodeID, doc int) (float64, error) {
	n := &t.nodes[id]
	total := 0.0
	for i, c := range n.children {
		s, err := t.childScore(c, doc)
		if err != nil {
			return 0, err
		}
		total += n.weights[i] * s
	}
	return total / n.weightSum, nil
}

func weightedMeanDefault(t *Tree, id NodeID, doc int) (float64, error) {
	n := &t.nodes[id]
	total := 0.0
	for i, c := range n.children {
		s, err := t.DefaultScore(c, doc)
		if err != nil {
			return 0, err
		}
		total += n.weights[i] * s
	}
	return total / n.weightSum, nil
}
