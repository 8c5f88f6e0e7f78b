package qry

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/retrieval"
	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
)

// scoringSource: ten documents of length 10.
//
//	a: doc0 tf2, doc2 tf1
//	b: doc1 tf1, doc2 tf1
func scoringSource() *fakeSource {
	return newFakeSource(10, 10).
		add("a", 0, 0, 3).add("a", 2, 1).
		add("b", 1, 2).add("b", 2, 4)
}

func scoresByDoc(t *testing.T, results *ranker.ResultList) map[int]float64 {
	t.Helper()
	out := make(map[int]float64, results.Len())
	for _, d := range results.Docs() {
		out[d.DocID] = d.Score
	}
	return out
}

func evaluate(t *testing.T, src *fakeSource, model retrieval.Model, build func(b *Builder) NodeID) *ranker.ResultList {
	t.Helper()
	b := NewBuilder()
	tree, err := b.Build(build(b))
	require.NoError(t, err)
	results, err := tree.Evaluate(src, model)
	require.NoError(t, err)
	return results
}

func mustIndri(t *testing.T) retrieval.Model {
	t.Helper()
	m, err := retrieval.NewIndri(100, 0.5)
	require.NoError(t, err)
	return m
}

func mustBM25(t *testing.T, k3 float64) retrieval.Model {
	t.Helper()
	m, err := retrieval.NewBM25(1.2, 0.75, k3)
	require.NoError(t, err)
	return m
}

func TestUnrankedOr_DiscoveryOrderOnTies(t *testing.T) {
	results := evaluate(t, scoringSource(), retrieval.Unranked(), func(b *Builder) NodeID {
		return b.Or(b.Term("a", ""), b.Term("b", ""))
	})

	require.Equal(t, 3, results.Len())
	for i, want := range []int{0, 1, 2} {
		assert.Equal(t, want, results.At(i).DocID)
		assert.Equal(t, 1.0, results.At(i).Score)
	}
}

func TestRankedBoolean(t *testing.T) {
	and := evaluate(t, scoringSource(), retrieval.Ranked(), func(b *Builder) NodeID {
		return b.And(b.Term("a", ""), b.Term("b", ""))
	})
	assert.Equal(t, map[int]float64{2: 1}, scoresByDoc(t, and))

	or := evaluate(t, scoringSource(), retrieval.Ranked(), func(b *Builder) NodeID {
		return b.Or(b.Term("a", ""), b.Term("b", ""))
	})
	require.Equal(t, 3, or.Len())
	assert.Equal(t, 0, or.At(0).DocID)
	assert.Equal(t, 2.0, or.At(0).Score)
	assert.Equal(t, []int{1, 2}, []int{or.At(1).DocID, or.At(2).DocID})
}

func TestBM25Sum(t *testing.T) {
	model := mustBM25(t, 0)
	results := evaluate(t, scoringSource(), model, func(b *Builder) NodeID {
		return b.Sum(b.Term("a", ""), b.Term("b", ""))
	})

	idf := ranker.BM25IDF(10, 2)
	tf1 := ranker.BM25TF(1, 10, 10, 1.2, 0.75)
	tf2 := ranker.BM25TF(2, 10, 10, 1.2, 0.75)
	got := scoresByDoc(t, results)
	assert.InDelta(t, idf*tf2, got[0], 1e-12)
	assert.InDelta(t, idf*tf1, got[1], 1e-12)
	assert.InDelta(t, 2*idf*tf1, got[2], 1e-12)
}

func TestBM25Score_ZeroAndIncreasingInTF(t *testing.T) {
	src := newFakeSource(20, 10).
		add("a", 0, 1).
		add("a", 1, 1, 2).
		add("a", 2, 1, 2, 3).
		add("a", 3, 1, 2, 3, 4)
	results := evaluate(t, src, mustBM25(t, 0), func(b *Builder) NodeID {
		return b.Sum(b.Term("a", ""))
	})

	got := scoresByDoc(t, results)
	require.Len(t, got, 4)
	for doc := 1; doc < 4; doc++ {
		assert.Greater(t, got[doc], got[doc-1])
	}
	assert.Equal(t, 0.0, ranker.BM25TF(0, 10, 10, 1.2, 0.75))
}

func TestBM25WeightedSum(t *testing.T) {
	model := mustBM25(t, 1)
	results := evaluate(t, scoringSource(), model, func(b *Builder) NodeID {
		return b.WSum([]float64{2, 1}, b.Term("a", ""), b.Term("b", ""))
	})

	s := ranker.BM25IDF(10, 2) * ranker.BM25TF(1, 10, 10, 1.2, 0.75)
	want := (s*ranker.BM25QueryWeight(2, 1) + s*ranker.BM25QueryWeight(1, 1)) / 3
	assert.InDelta(t, want, scoresByDoc(t, results)[2], 1e-12)
}

func indriScore(tf int, ctf int64) float64 {
	return ranker.IndriTerm(tf, 10, float64(ctf)/100, 100, 0.5)
}

func TestIndriAnd_SmoothsMissingTerms(t *testing.T) {
	results := evaluate(t, scoringSource(), mustIndri(t), func(b *Builder) NodeID {
		return b.And(b.Term("a", ""), b.Term("b", ""))
	})

	got := scoresByDoc(t, results)
	require.Len(t, got, 3)
	assert.InDelta(t, math.Sqrt(indriScore(2, 3)*indriScore(0, 2)), got[0], 1e-12)
	assert.InDelta(t, math.Sqrt(indriScore(0, 3)*indriScore(1, 2)), got[1], 1e-12)
	assert.InDelta(t, math.Sqrt(indriScore(1, 3)*indriScore(1, 2)), got[2], 1e-12)
}

func TestIndriWAndAndWSum(t *testing.T) {
	wand := evaluate(t, scoringSource(), mustIndri(t), func(b *Builder) NodeID {
		return b.WAnd([]float64{3, 1}, b.Term("a", ""), b.Term("b", ""))
	})
	want := math.Pow(indriScore(2, 3), 0.75) * math.Pow(indriScore(0, 2), 0.25)
	assert.InDelta(t, want, scoresByDoc(t, wand)[0], 1e-12)

	wsum := evaluate(t, scoringSource(), mustIndri(t), func(b *Builder) NodeID {
		return b.WSum([]float64{3, 1}, b.Term("a", ""), b.Term("b", ""))
	})
	want = (3*indriScore(0, 3) + indriScore(1, 2)) / 4
	assert.InDelta(t, want, scoresByDoc(t, wsum)[1], 1e-12)
}

func TestIndriAndDefault_IsGeometricMeanOfChildDefaults(t *testing.T) {
	src := scoringSource().add("c", 1, 5).add("d", 2, 6)
	b := NewBuilder()
	a := b.Term("a", "")
	bb := b.Term("b", "")
	inner := b.And(b.Term("c", ""), b.Term("d", ""))
	root := b.And(a, bb, inner)
	tree, err := b.Build(root)
	require.NoError(t, err)
	require.NoError(t, tree.Initialize(src, mustIndri(t)))

	// Document 7 contains none of the terms.
	const doc = 7
	var childDefaults []float64
	for _, c := range tree.Children(root) {
		d, err := tree.DefaultScore(c, doc)
		require.NoError(t, err)
		childDefaults = append(childDefaults, d)
	}
	direct := 1.0
	for _, d := range childDefaults {
		direct *= math.Pow(d, 1.0/3)
	}
	got, err := tree.DefaultScore(root, doc)
	require.NoError(t, err)
	assert.InDelta(t, direct, got, 1e-15)

	innerChildren := tree.Children(inner)
	dc, err := tree.DefaultScore(innerChildren[0], doc)
	require.NoError(t, err)
	dd, err := tree.DefaultScore(innerChildren[1], doc)
	require.NoError(t, err)
	assert.InDelta(t, math.Sqrt(dc*dd), childDefaults[2], 1e-15)
	assert.InDelta(t, indriScore(0, 1), dc, 1e-15)
}

func TestUnsupportedCombination(t *testing.T) {
	tests := []struct {
		name  string
		model retrieval.Model
		build func(b *Builder) NodeID
	}{
		{"sum under unranked", retrieval.Unranked(), func(b *Builder) NodeID { return b.Sum(b.Term("a", "")) }},
		{"or under indri", mustIndri(t), func(b *Builder) NodeID { return b.Or(b.Term("a", "")) }},
		{"and under bm25", mustBM25(t, 0), func(b *Builder) NodeID { return b.And(b.Term("a", "")) }},
		{"wand under ranked", retrieval.Ranked(), func(b *Builder) NodeID {
			return b.WAnd([]float64{1}, b.Term("a", ""))
		}},
		{"nested wsum under ranked", retrieval.Ranked(), func(b *Builder) NodeID {
			return b.Or(b.WSum([]float64{1}, b.Term("a", "")))
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder()
			tree, err := b.Build(tt.build(b))
			require.NoError(t, err)
			_, err = tree.Evaluate(scoringSource(), tt.model)
			assert.True(t, errors.Is(err, apperrors.ErrUnsupportedCombination), "got %v", err)
		})
	}

	assert.True(t, Supports(KindWSum, retrieval.BM25))
	assert.False(t, Supports(KindWAnd, retrieval.BM25))
}

func TestDefaultScore_UnsupportedOutsideIndri(t *testing.T) {
	b := NewBuilder()
	tree, err := b.Build(b.Sum(b.Term("a", "")))
	require.NoError(t, err)
	require.NoError(t, tree.Initialize(scoringSource(), mustBM25(t, 0)))

	_, err = tree.DefaultScore(tree.Root(), 3)
	assert.True(t, errors.Is(err, apperrors.ErrUnsupportedCombination))
}
