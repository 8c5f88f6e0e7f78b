package diversify

import (
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/ranker"
)

// Ranking maps document ids to scores and remembers insertion order, which
// is the order candidates are visited in.
type Ranking struct {
	order  []int
	scores map[int]float64
}

func NewRanking() *Ranking {
	return &Ranking{scores: make(map[int]float64)}
}

// RankingFromResults takes the first limit entries of a sorted result list.
// limit <= 0 takes all of them.
func RankingFromResults(results *ranker.ResultList, limit int) *Ranking {
	r := NewRanking()
	n := results.Len()
	if limit > 0 && limit < n {
		n = limit
	}
	for i := 0; i < n; i++ {
		d := results.At(i)
		r.Set(d.DocID, d.Score)
	}
	return r
}

// Set adds doc or updates its score. An update keeps the original position.
func (r *Ranking) Set(doc int, score float64) {
	if _, ok := r.scores[doc]; !ok {
		r.order = append(r.order, doc)
	}
	r.scores[doc] = score
}

func (r *Ranking) Score(doc int) (float64, bool) {
	s, ok := r.scores[doc]
	return s, ok
}

func (r *Ranking) Contains(doc int) bool {
	_, ok := r.scores[doc]
	return ok
}

func (r *Ranking) Len() int { return len(r.order) }

// Docs returns the document ids in insertion order.
func (r *Ranking) Docs() []int {
	return append([]int(nil), r.order...)
}

// Sum is the total of all scores.
func (r *Ranking) Sum() float64 {
	total := 0.0
	for _, doc := range r.order {
		total += r.scores[doc]
	}
	return total
}

func (r *Ranking) remove(doc int) {
	if _, ok := r.scores[doc]; !ok {
		return
	}
	delete(r.scores, doc)
	for i, d := range r.order {
		if d == doc {
			r.order = append(r.order[:i], r.order[i+1:]...)
			return
		}
	}
}

// truncate keeps the first n entries.
func (r *Ranking) truncate(n int) {
	if n <= 0 || len(r.order) <= n {
		return
	}
	for _, doc := range r.order[n:] {
		delete(r.scores, doc)
	}
	r.order = r.order[:n]
}

func (r *Ranking) clone() *Ranking {
	out := &Ranking{
		order:  append([]int(nil), r.order...),
		scores: make(map[int]float64, len(r.scores)),
	}
	for doc, s := range r.scores {
		out.scores[doc] = s
	}
	return out
}

// RankingSet is a base ranking plus one ranking per query intent, all over
// the same document ids.
type RankingSet struct {
	Base    *Ranking
	Intents []*Ranking
}

// Clone deep-copies the set.
func (s RankingSet) Clone() RankingSet {
	out := RankingSet{Intents: make([]*Ranking, len(s.Intents))}
	if s.Base != nil {
		out.Base = s.Base.clone()
	}
	for i, r := range s.Intents {
		if r != nil {
			out.Intents[i] = r.clone()
		}
	}
	return out
}

func (s RankingSet) all() []*Ranking {
	return append([]*Ranking{s.Base}, s.Intents...)
}
