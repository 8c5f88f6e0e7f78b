// Package diversify reranks a base ranking so that it covers the intents of
// an ambiguous query. Two algorithms are provided: xQuAD and PM2.
//
// Both are greedy. Candidates are visited in base-ranking order and a
// candidate replaces the current best only with a strictly higher score, so
// ties go to the document ranked higher in the base ranking.
package diversify

import (
	"log/slog"
	"math"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
)

type Algorithm string

const (
	PM2   Algorithm = "PM2"
	XQuAD Algorithm = "xQuAD"
)

// ParseAlgorithm matches an algorithm name case-insensitively.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToLower(name) {
	case "pm2":
		return PM2, nil
	case "xquad":
		return XQuAD, nil
	default:
		return "", apperrors.Configuration("unknown diversification algorithm %q", name)
	}
}

type Config struct {
	Algorithm              Algorithm `yaml:"algorithm" json:"algorithm"`
	MaxInputRankingsLength int       `yaml:"maxInputRankingsLength" json:"max_input_rankings_length"`
	MaxResultRankingLength int       `yaml:"maxResultRankingLength" json:"max_result_ranking_length"`
	Lambda                 float64   `yaml:"lambda" json:"lambda"`
}

func (c Config) Validate() error {
	if _, err := ParseAlgorithm(string(c.Algorithm)); err != nil {
		return err
	}
	if c.MaxInputRankingsLength <= 0 {
		return apperrors.Configuration("maxInputRankingsLength must be positive, got %d", c.MaxInputRankingsLength)
	}
	if c.MaxResultRankingLength <= 0 {
		return apperrors.Configuration("maxResultRankingLength must be positive, got %d", c.MaxResultRankingLength)
	}
	if c.Lambda < 0 || c.Lambda > 1 || math.IsNaN(c.Lambda) {
		return apperrors.Configuration("lambda must be in [0,1], got %g", c.Lambda)
	}
	return nil
}

// scaleEpsilon absorbs rounding so that an already scaled set, whose largest
// sum is 1 give or take an ulp, is not scaled again.
const scaleEpsilon = 1e-12

type Engine struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config) (*Engine, error) {
	alg, err := ParseAlgorithm(string(cfg.Algorithm))
	if err != nil {
		return nil, err
	}
	cfg.Algorithm = alg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		cfg:    cfg,
		logger: slog.Default().With("component", "diversify"),
	}, nil
}

func (e *Engine) Config() Config { return e.cfg }

// Rerank diversifies set. The caller's rankings are not modified.
func (e *Engine) Rerank(set RankingSet) (*ranker.ResultList, error) {
	if set.Base == nil {
		return nil, apperrors.Configuration("missing base ranking")
	}
	if len(set.Intents) == 0 {
		return nil, apperrors.Configuration("diversification needs at least one intent ranking")
	}
	for i, r := range set.Intents {
		if r == nil {
			return nil, apperrors.Configuration("missing ranking for intent %d", i+1)
		}
	}

	work := e.prepare(set)
	scaled := scale(work)

	var selected []ranker.ScoredDoc
	switch e.cfg.Algorithm {
	case XQuAD:
		selected = e.xquad(work)
	default:
		selected = e.pm2(work)
	}

	results := ranker.NewResultList()
	for _, d := range selected {
		if err := results.Add(d.DocID, d.Score); err != nil {
			return nil, err
		}
	}
	results.Sort()

	e.logger.Debug("diversified ranking",
		"algorithm", e.cfg.Algorithm,
		"intents", len(work.Intents),
		"candidates", set.Base.Len(),
		"scaled", scaled,
		"selected", results.Len(),
	)
	return results, nil
}

// prepare copies the set, truncates every ranking to the input length and
// drops intent documents that are not in the base ranking.
func (e *Engine) prepare(set RankingSet) RankingSet {
	work := set.Clone()
	work.Base.truncate(e.cfg.MaxInputRankingsLength)
	for _, r := range work.Intents {
		r.truncate(e.cfg.MaxInputRankingsLength)
		for _, doc := range r.Docs() {
			if !work.Base.Contains(doc) {
				r.remove(doc)
			}
		}
	}
	return work
}

// scale divides every score in every ranking by the largest per-ranking sum
// when any score or any sum exceeds 1. It reports whether it scaled.
func scale(set RankingSet) bool {
	needed := false
	maxSum := 0.0
	for _, r := range set.all() {
		for _, doc := range r.order {
			if r.scores[doc] > 1+scaleEpsilon {
				needed = true
			}
		}
		sum := r.Sum()
		if sum > 1+scaleEpsilon {
			needed = true
		}
		maxSum = math.Max(maxSum, sum)
	}
	if !needed || maxSum <= 0 {
		return false
	}
	for _, r := range set.all() {
		for doc, s := range r.scores {
			r.scores[doc] = s / maxSum
		}
	}
	return true
}

func intentScore(r *Ranking, doc int) float64 {
	s, _ := r.Score(doc)
	return s
}

func (e *Engine) xquad(work RankingSet) []ranker.ScoredDoc {
	lambda := e.cfg.Lambda
	intentWeight := 1.0 / float64(len(work.Intents))
	var selected []ranker.ScoredDoc

	for len(selected) < e.cfg.MaxResultRankingLength && work.Base.Len() > 0 {
		best := ranker.ScoredDoc{DocID: -1, Score: math.Inf(-1)}
		for _, doc := range work.Base.order {
			relevance := (1 - lambda) * work.Base.scores[doc]
			diversity := 0.0
			for _, intent := range work.Intents {
				s := intentScore(intent, doc)
				for _, prev := range selected {
					if covered, ok := intent.Score(prev.DocID); ok {
						s *= 1 - covered
					}
				}
				diversity += s
			}
			score := relevance + lambda*intentWeight*diversity
			if score > best.Score {
				best = ranker.ScoredDoc{DocID: doc, Score: score}
			}
		}
		work.Base.remove(best.DocID)
		selected = append(selected, best)
	}
	return selected
}

func (e *Engine) pm2(work RankingSet) []ranker.ScoredDoc {
	lambda := e.cfg.Lambda
	n := len(work.Intents)
	desired := float64(e.cfg.MaxResultRankingLength) / float64(n)
	slots := make([]float64, n)
	quotient := make([]float64, n)
	var selected []ranker.ScoredDoc

	for len(selected) < e.cfg.MaxResultRankingLength && work.Base.Len() > 0 {
		next := 0
		for i := range quotient {
			quotient[i] = desired / (2*slots[i] + 1)
			if quotient[i] > quotient[next] {
				next = i
			}
		}

		best := ranker.ScoredDoc{DocID: -1, Score: math.Inf(-1)}
		for _, doc := range work.Base.order {
			covers := lambda * quotient[next] * intentScore(work.Intents[next], doc)
			others := 0.0
			for i, intent := range work.Intents {
				if i != next {
					others += quotient[i] * intentScore(intent, doc)
				}
			}
			score := covers + (1-lambda)*others
			if score > best.Score {
				best = ranker.ScoredDoc{DocID: doc, Score: score}
			}
		}
		work.Base.remove(best.DocID)
		selected = append(selected, best)

		total := 0.0
		for _, intent := range work.Intents {
			total += intentScore(intent, best.DocID)
		}
		if total <= 0 {
			continue
		}
		for i, intent := range work.Intents {
			if s, ok := intent.Score(best.DocID); ok {
				slots[i] += s / total
			}
		}
	}
	return selected
}
