package index

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
)

func newTestIndex(t *testing.T) *MemoryIndex {
	t.Helper()
	idx := NewMemoryIndex()
	_, err := idx.AddDocument("d0", map[string]string{"body": "apple banana apple", "title": "fruit"})
	require.NoError(t, err)
	_, err = idx.AddDocument("d1", map[string]string{"body": "banana cherry"})
	require.NoError(t, err)
	_, err = idx.AddDocument("d2", map[string]string{"body": "apple"})
	require.NoError(t, err)
	return idx
}

func TestMemoryIndex_InvertedList(t *testing.T) {
	idx := newTestIndex(t)

	list, err := idx.InvertedList("apple", "body")
	require.NoError(t, err)
	require.Len(t, list.Postings, 2)
	assert.Equal(t, Posting{DocID: 0, Frequency: 2, Positions: []int{0, 2}}, list.Postings[0])
	assert.Equal(t, Posting{DocID: 2, Frequency: 1, Positions: []int{0}}, list.Postings[1])
	assert.Equal(t, int64(3), list.CTF)
	assert.Equal(t, 2, list.DF())

	missing, err := idx.InvertedList("durian", "body")
	require.NoError(t, err)
	assert.Empty(t, missing.Postings)
}

func TestMemoryIndex_Statistics(t *testing.T) {
	idx := newTestIndex(t)

	n, err := idx.NumDocs()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	sum, err := idx.SumFieldLengths("body")
	require.NoError(t, err)
	assert.Equal(t, int64(6), sum)

	count, err := idx.DocCount("title")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	length, err := idx.FieldLength("body", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, length)

	df, err := idx.DocumentFrequency("banana", "body")
	require.NoError(t, err)
	assert.Equal(t, 2, df)

	p, ok, err := idx.Posting("cherry", "body", 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []int{1}, p.Positions)

	_, ok, err = idx.Posting("cherry", "body", 0)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryIndex_IDMapping(t *testing.T) {
	idx := newTestIndex(t)

	ext, err := idx.ExternalID(1)
	require.NoError(t, err)
	assert.Equal(t, "d1", ext)

	internal, err := idx.InternalID("d2")
	require.NoError(t, err)
	assert.Equal(t, 2, internal)

	_, err = idx.InternalID("nope")
	assert.True(t, errors.Is(err, apperrors.ErrDocumentNotFound))

	_, err = idx.AddDocument("d0", map[string]string{"body": "again"})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidInput))
}

func TestMemoryIndex_ReturnedListIsACopy(t *testing.T) {
	idx := newTestIndex(t)

	list, err := idx.InvertedList("apple", "body")
	require.NoError(t, err)
	list.Postings[0].DocID = 99

	again, err := idx.InvertedList("apple", "body")
	require.NoError(t, err)
	assert.Equal(t, 0, again.Postings[0].DocID)
}

func TestLoadCorpus(t *testing.T) {
	input := `{"id":"a","fields":{"body":"quick brown fox"}}

{"id":"b","fields":{"body":"lazy dog","title":"dogs"}}
`
	idx, err := LoadCorpus(strings.NewReader(input))
	require.NoError(t, err)

	n, _ := idx.NumDocs()
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"body", "title"}, idx.Fields())

	snap := idx.Snapshot()
	require.NotEmpty(t, snap)
	assert.Equal(t, "body", snap[0].Field)
}

func TestLoadCorpus_Malformed(t *testing.T) {
	_, err := LoadCorpus(strings.NewReader(`{"id":"a","fields":`))
	assert.True(t, errors.Is(err, apperrors.ErrMalformedInput))

	_, err = LoadCorpus(strings.NewReader(`{"fields":{"body":"x"}}`))
	assert.True(t, errors.Is(err, apperrors.ErrMalformedInput))
}
