// Package ranker holds the result list produced by query evaluation and the
// per-term scoring formulas shared by the operator tree.
package ranker

import (
	"fmt"
	"math"
	"sort"

	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
)

type ScoredDoc struct {
	DocID      int     `json:"-"`
	ExternalID string  `json:"doc_id"`
	Score      float64 `json:"score"`
}

// ResultList keeps scored documents in discovery order until Sort is called.
// Document ids are unique.
type ResultList struct {
	docs []ScoredDoc
	seen map[int]struct{}
}

func NewResultList() *ResultList {
	return &ResultList{seen: make(map[int]struct{})}
}

// Add appends a document. Adding the same id twice is an error.
func (r *ResultList) Add(docID int, score float64) error {
	if _, dup := r.seen[docID]; dup {
		return fmt.Errorf("%w: document %d already in result list", apperrors.ErrInvalidIteratorState, docID)
	}
	r.seen[docID] = struct{}{}
	r.docs = append(r.docs, ScoredDoc{DocID: docID, Score: score})
	return nil
}

// Sort orders by descending score. Equal scores keep discovery order.
func (r *ResultList) Sort() {
	sort.SliceStable(r.docs, func(i, j int) bool {
		return r.docs[i].Score > r.docs[j].Score
	})
}

func (r *ResultList) Len() int { return len(r.docs) }

func (r *ResultList) At(i int) ScoredDoc { return r.docs[i] }

// Docs returns a copy of the entries in their current order.
func (r *ResultList) Docs() []ScoredDoc {
	out := make([]ScoredDoc, len(r.docs))
	copy(out, r.docs)
	return out
}

// Truncate keeps at most n entries. n <= 0 leaves the list unchanged.
func (r *ResultList) Truncate(n int) {
	if n <= 0 || len(r.docs) <= n {
		return
	}
	for _, d := range r.docs[n:] {
		delete(r.seen, d.DocID)
	}
	r.docs = r.docs[:n]
}

// SetExternalID records the external identifier of entry i.
func (r *ResultList) SetExternalID(i int, ext string) {
	r.docs[i].ExternalID = ext
}

// BM25IDF is the Robertson-Sparck Jones idf clipped at zero.
func BM25IDF(numDocs, docFreq int) float64 {
	n, df := float64(numDocs), float64(docFreq)
	return math.Max(0, math.Log((n-df+0.5)/(df+0.5)))
}

// BM25TF is the saturated, length-normalized term frequency weight. An
// empty average length gives a length ratio of 1.
func BM25TF(tf, docLength int, avgDocLength, k1, b float64) float64 {
	ratio := 1.0
	if avgDocLength > 0 {
		ratio = float64(docLength) / avgDocLength
	}
	t := float64(tf)
	denominator := t + k1*((1-b)+b*ratio)
	if denominator == 0 {
		return 0
	}
	return t / denominator
}

// BM25QueryWeight is the user-weight factor (k3+1)·qtf/(k3+qtf).
func BM25QueryWeight(qtf, k3 float64) float64 {
	if k3+qtf == 0 {
		return 0
	}
	return (k3 + 1) * qtf / (k3 + qtf)
}

// IndriTerm is the two-stage smoothed probability of a term with frequency
// tf in a document of docLength, given its collection probability mle.
func IndriTerm(tf, docLength int, mle, mu, lambda float64) float64 {
	denominator := mu + float64(docLength)
	smoothed := 0.0
	if denominator > 0 {
		smoothed = (float64(tf) + mu*mle) / denominator
	}
	return (1-lambda)*smoothed + lambda*mle
}
