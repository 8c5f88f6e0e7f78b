package qry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/retrieval"
)

func proximityPostings(t *testing.T, src index.Source, build func(b *Builder) NodeID) []index.Posting {
	t.Helper()
	b := NewBuilder()
	op := build(b)
	tree, err := b.Build(op)
	require.NoError(t, err)
	require.NoError(t, tree.Initialize(src, retrieval.Unranked()))
	list, err := tree.Postings(op)
	require.NoError(t, err)
	return list.Postings
}

func TestNear_AdjacentMatch(t *testing.T) {
	src := newFakeSource(1, 20).add("a", 0, 5).add("b", 0, 6)

	postings := proximityPostings(t, src, func(b *Builder) NodeID {
		return b.Near(1, b.Term("a", ""), b.Term("b", ""))
	})

	require.Len(t, postings, 1)
	assert.Equal(t, 0, postings[0].DocID)
	assert.Equal(t, []int{5}, postings[0].Positions)
	assert.Equal(t, 1, postings[0].Frequency)
}

func TestNear_GapTooWide(t *testing.T) {
	src := newFakeSource(1, 20).add("a", 0, 5).add("b", 0, 8)

	postings := proximityPostings(t, src, func(b *Builder) NodeID {
		return b.Near(1, b.Term("a", ""), b.Term("b", ""))
	})

	assert.Empty(t, postings)
}

func TestNear_OrderMatters(t *testing.T) {
	src := newFakeSource(1, 20).add("a", 0, 6).add("b", 0, 5)

	postings := proximityPostings(t, src, func(b *Builder) NodeID {
		return b.Near(3, b.Term("a", ""), b.Term("b", ""))
	})

	assert.Empty(t, postings)
}

func TestNear_SkipsDocumentsWithoutEveryTerm(t *testing.T) {
	src := newFakeSource(4, 20).
		add("a", 0, 1).add("a", 2, 3, 9).add("a", 3, 0).
		add("b", 1, 2).add("b", 2, 4, 10).add("b", 3, 7).
		add("c", 2, 6, 12).add("c", 3, 8)

	postings := proximityPostings(t, src, func(b *Builder) NodeID {
		return b.Near(2, b.Term("a", ""), b.Term("b", ""), b.Term("c", ""))
	})

	require.Len(t, postings, 1)
	assert.Equal(t, 2, postings[0].DocID)
	assert.Equal(t, []int{3, 9}, postings[0].Positions)
}

func TestWindow_Match(t *testing.T) {
	src := newFakeSource(1, 20).add("a", 0, 10).add("b", 0, 11).add("c", 0, 12)

	postings := proximityPostings(t, src, func(b *Builder) NodeID {
		return b.Window(3, b.Term("a", ""), b.Term("b", ""), b.Term("c", ""))
	})

	require.Len(t, postings, 1)
	assert.Equal(t, []int{12}, postings[0].Positions)
}

func TestWindow_TooWide(t *testing.T) {
	src := newFakeSource(1, 20).add("a", 0, 10).add("b", 0, 11).add("c", 0, 14)

	postings := proximityPostings(t, src, func(b *Builder) NodeID {
		return b.Window(3, b.Term("a", ""), b.Term("b", ""), b.Term("c", ""))
	})

	assert.Empty(t, postings)
}

func TestWindow_RetriesFromAdvancedMinimum(t *testing.T) {
	// {10,12,14} is too wide; advancing a to 13 gives {13,12,14}.
	src := newFakeSource(1, 20).add("a", 0, 10, 13).add("b", 0, 12).add("c", 0, 14)

	postings := proximityPostings(t, src, func(b *Builder) NodeID {
		return b.Window(3, b.Term("a", ""), b.Term("b", ""), b.Term("c", ""))
	})

	require.Len(t, postings, 1)
	assert.Equal(t, []int{14}, postings[0].Positions)
}

func TestWindow_AnyOrder(t *testing.T) {
	src := newFakeSource(1, 20).add("a", 0, 7).add("b", 0, 5)

	postings := proximityPostings(t, src, func(b *Builder) NodeID {
		return b.Window(3, b.Term("a", ""), b.Term("b", ""))
	})

	require.Len(t, postings, 1)
	assert.Equal(t, []int{7}, postings[0].Positions)
}

func TestProximity_NestedAndCTF(t *testing.T) {
	src := newFakeSource(2, 20).
		add("a", 0, 1, 10).add("a", 1, 4).
		add("b", 0, 2, 11).add("b", 1, 9).
		add("c", 0, 4, 12)

	b := NewBuilder()
	inner := b.Near(1, b.Term("a", ""), b.Term("b", ""))
	outer := b.Window(4, inner, b.Term("c", ""))
	tree, err := b.Build(outer)
	require.NoError(t, err)
	require.NoError(t, tree.Initialize(src, retrieval.Ranked()))

	innerList, err := tree.Postings(inner)
	require.NoError(t, err)
	require.Len(t, innerList.Postings, 1)
	assert.Equal(t, []int{1, 10}, innerList.Postings[0].Positions)
	assert.Equal(t, int64(2), innerList.CTF)

	results, err := tree.Evaluate(src, retrieval.Ranked())
	require.NoError(t, err)
	require.Equal(t, 1, results.Len())
	assert.Equal(t, 0, results.At(0).DocID)
	assert.Equal(t, 2.0, results.At(0).Score)
}
