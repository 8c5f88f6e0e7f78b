package diversify

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
)

type entry struct {
	doc   int
	score float64
}

func ranking(entries ...entry) *Ranking {
	r := NewRanking()
	for _, e := range entries {
		r.Set(e.doc, e.score)
	}
	return r
}

func docIDs(results *ranker.ResultList) []int {
	out := make([]int, results.Len())
	for i := range out {
		out[i] = results.At(i).DocID
	}
	return out
}

func newEngine(t *testing.T, alg Algorithm, length int, lambda float64) *Engine {
	t.Helper()
	e, err := New(Config{
		Algorithm:              alg,
		MaxInputRankingsLength: 100,
		MaxResultRankingLength: length,
		Lambda:                 lambda,
	})
	require.NoError(t, err)
	return e
}

func TestXQuAD_SingleIdenticalIntentKeepsTopDocumentFirst(t *testing.T) {
	base := ranking(entry{4, 0.4}, entry{2, 0.3}, entry{9, 0.2}, entry{1, 0.1})
	set := RankingSet{Base: base, Intents: []*Ranking{base.clone()}}

	results, err := newEngine(t, XQuAD, 4, 1.0).Rerank(set)
	require.NoError(t, err)

	require.Equal(t, 4, results.Len())
	assert.Equal(t, 4, results.At(0).DocID)
	assert.InDelta(t, 0.4, results.At(0).Score, 1e-12)
}

func TestXQuAD_PromotesUncoveredIntent(t *testing.T) {
	// Documents 1 and 2 serve intent A, document 3 serves intent B.
	base := ranking(entry{1, 0.35}, entry{2, 0.34}, entry{3, 0.2})
	intentA := ranking(entry{1, 0.5}, entry{2, 0.5})
	intentB := ranking(entry{3, 0.9})
	set := RankingSet{Base: base, Intents: []*Ranking{intentA, intentB}}

	results, err := newEngine(t, XQuAD, 3, 0.5).Rerank(set)
	require.NoError(t, err)

	// Step 1: doc1 = .175 + .25*.5 = .3, doc3 = .1 + .25*.9 = .325.
	assert.Equal(t, []int{3, 1, 2}, docIDs(results))
}

func TestXQuAD_TieGoesToHigherBaseRank(t *testing.T) {
	base := ranking(entry{8, 0.2}, entry{3, 0.2}, entry{5, 0.2})
	intent := ranking(entry{8, 0.1}, entry{3, 0.1}, entry{5, 0.1})
	set := RankingSet{Base: base, Intents: []*Ranking{intent}}

	results, err := newEngine(t, XQuAD, 1, 0.0).Rerank(set)
	require.NoError(t, err)
	assert.Equal(t, []int{8}, docIDs(results))
}

func TestPM2_AlternatesBetweenBalancedIntents(t *testing.T) {
	base := ranking(entry{1, 0.25}, entry{2, 0.2}, entry{3, 0.2}, entry{4, 0.15})
	intentA := ranking(entry{1, 0.4}, entry{2, 0.3})
	intentB := ranking(entry{3, 0.4}, entry{4, 0.3})
	set := RankingSet{Base: base, Intents: []*Ranking{intentA, intentB}}

	results, err := newEngine(t, PM2, 4, 0.8).Rerank(set)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 3, 2, 4}, docIDs(results))
	assert.InDelta(t, 0.64, results.At(0).Score, 1e-12)
	assert.InDelta(t, 0.64, results.At(1).Score, 1e-12)
}

func TestPM2_StopsWhenCandidatesRunOut(t *testing.T) {
	base := ranking(entry{1, 0.5}, entry{2, 0.3})
	intent := ranking(entry{2, 0.6})
	set := RankingSet{Base: base, Intents: []*Ranking{intent}}

	results, err := newEngine(t, PM2, 10, 0.5).Rerank(set)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, docIDs(results))
}

func TestRerank_IgnoresIntentDocumentsOutsideBase(t *testing.T) {
	base := ranking(entry{1, 0.3}, entry{2, 0.2})
	intent := ranking(entry{99, 0.9}, entry{2, 0.1})
	set := RankingSet{Base: base, Intents: []*Ranking{intent}}

	for _, alg := range []Algorithm{XQuAD, PM2} {
		results, err := newEngine(t, alg, 5, 0.5).Rerank(set)
		require.NoError(t, err)
		assert.ElementsMatch(t, []int{1, 2}, docIDs(results), string(alg))
	}
}

func TestRerank_DoesNotMutateCallerRankings(t *testing.T) {
	base := ranking(entry{1, 30}, entry{2, 20}, entry{3, 10})
	intent := ranking(entry{3, 5}, entry{2, 4}, entry{7, 1})
	set := RankingSet{Base: base, Intents: []*Ranking{intent}}

	_, err := newEngine(t, XQuAD, 2, 0.5).Rerank(set)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, base.Docs())
	s, _ := base.Score(1)
	assert.Equal(t, 30.0, s)
	assert.Equal(t, []int{3, 2, 7}, intent.Docs())
}

func TestRerank_TruncatesInputRankings(t *testing.T) {
	base := ranking(entry{1, 0.3}, entry{2, 0.2}, entry{3, 0.1})
	intent := ranking(entry{3, 0.9})
	e, err := New(Config{Algorithm: XQuAD, MaxInputRankingsLength: 2, MaxResultRankingLength: 3, Lambda: 0.5})
	require.NoError(t, err)

	results, err := e.Rerank(RankingSet{Base: base, Intents: []*Ranking{intent}})
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, docIDs(results))
}

func TestScale_UsesLargestSumAcrossRankings(t *testing.T) {
	set := RankingSet{
		Base:    ranking(entry{1, 10}, entry{2, 5}),
		Intents: []*Ranking{ranking(entry{1, 2}, entry{2, 1})},
	}

	require.True(t, scale(set))

	s, _ := set.Base.Score(1)
	assert.InDelta(t, 10.0/15, s, 1e-12)
	s, _ = set.Intents[0].Score(2)
	assert.InDelta(t, 1.0/15, s, 1e-12)
}

func TestScale_Idempotent(t *testing.T) {
	set := RankingSet{
		Base:    ranking(entry{1, 3.7}, entry{2, 2.9}, entry{3, 1.3}),
		Intents: []*Ranking{ranking(entry{1, 0.2}, entry{3, 9.1}), ranking(entry{2, 0.7})},
	}
	require.True(t, scale(set))
	once := set.Clone()

	assert.False(t, scale(set))
	for i, r := range set.all() {
		assert.Equal(t, once.all()[i].scores, r.scores)
	}
}

func TestScale_SkipsSmallScores(t *testing.T) {
	set := RankingSet{
		Base:    ranking(entry{1, 0.5}, entry{2, 0.4}),
		Intents: []*Ranking{ranking(entry{1, 0.9})},
	}
	assert.False(t, scale(set))
}

func TestConfigErrors(t *testing.T) {
	valid := Config{Algorithm: PM2, MaxInputRankingsLength: 10, MaxResultRankingLength: 5, Lambda: 0.5}
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"unknown algorithm", func(c *Config) { c.Algorithm = "MMR" }},
		{"zero result length", func(c *Config) { c.MaxResultRankingLength = 0 }},
		{"zero input length", func(c *Config) { c.MaxInputRankingsLength = 0 }},
		{"lambda too large", func(c *Config) { c.Lambda = 1.5 }},
		{"negative lambda", func(c *Config) { c.Lambda = -0.1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			_, err := New(cfg)
			assert.True(t, errors.Is(err, apperrors.ErrConfiguration), "got %v", err)
		})
	}

	e, err := New(valid)
	require.NoError(t, err)
	_, err = e.Rerank(RankingSet{Base: ranking(entry{1, 0.5})})
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration))

	assert.NotPanics(t, func() {
		_, err = e.Rerank(RankingSet{Base: ranking(entry{1, 0.5}), Intents: []*Ranking{ranking(entry{1, 0.4}), nil}})
	})
	assert.True(t, errors.Is(err, apperrors.ErrConfiguration), "got %v", err)
}

func TestParseAlgorithm(t *testing.T) {
	alg, err := ParseAlgorithm("XQUAD")
	require.NoError(t, err)
	assert.Equal(t, XQuAD, alg)
	alg, err = ParseAlgorithm("pm2")
	require.NoError(t, err)
	assert.Equal(t, PM2, alg)
}
