package trec

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
)

func TestReadQueries(t *testing.T) {
	in := "10:cheap internet\n\n69:#near/1(sewing instructions)\n"
	queries, err := ReadQueries(strings.NewReader(in))
	require.NoError(t, err)
	assert.Equal(t, []Query{
		{ID: "10", Text: "cheap internet"},
		{ID: "69", Text: "#near/1(sewing instructions)"},
	}, queries)

	_, err = ReadQueries(strings.NewReader("no colon here"))
	assert.True(t, errors.Is(err, apperrors.ErrMalformedInput))
}

func TestReadIntents(t *testing.T) {
	in := "157.1:the beatles rock band\n157.2:beatles lyrics\n158.1:tax forms\n"
	intents, err := ReadIntents(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, intents["157"], 2)
	assert.Equal(t, "beatles lyrics", intents["157"][1].Text)
	assert.Equal(t, "158.1", intents["158"][0].ID)

	_, err = ReadIntents(strings.NewReader("157:no intent number"))
	assert.True(t, errors.Is(err, apperrors.ErrMalformedInput))
}

func TestReadRankings(t *testing.T) {
	in := strings.Join([]string{
		"157 Q0 clueweb-a 1 12.5 run",
		"157 Q0 clueweb-b 2 11.0 run",
		"157.1 Q0 clueweb-b 1 3.0 run",
		"157.2 Q0 clueweb-a 1 2.0 run",
		"157.1 Q0 clueweb-a 2 1.5 run",
		"158 Q0 clueweb-c 1 0.5 run",
	}, "\n")
	rankings, err := ReadRankings(strings.NewReader(in))
	require.NoError(t, err)

	q := rankings["157"]
	require.NotNil(t, q)
	assert.Equal(t, []Entry{{"clueweb-a", 1, 12.5}, {"clueweb-b", 2, 11.0}}, q.Base)
	require.Len(t, q.Intents, 2)
	assert.Equal(t, "157.1", q.Intents[0].ID)
	assert.Len(t, q.Intents[0].Entries, 2)
	assert.Equal(t, "157.2", q.Intents[1].ID)
	assert.Empty(t, rankings["158"].Intents)
}

func TestReadRankings_Malformed(t *testing.T) {
	for _, line := range []string{
		"157 Q0 doc",
		"157 Q0 doc one 1.0 run",
		"157 Q0 doc 1 high run",
	} {
		_, err := ReadRankings(strings.NewReader(line))
		assert.True(t, errors.Is(err, apperrors.ErrMalformedInput), line)
	}
}

func TestWriter(t *testing.T) {
	results := ranker.NewResultList()
	require.NoError(t, results.Add(3, 0.5))
	require.NoError(t, results.Add(1, 1.25))
	require.NoError(t, results.Add(2, 0.1))
	results.Sort()
	for i := 0; i < results.Len(); i++ {
		results.SetExternalID(i, map[int]string{1: "d1", 2: "d2", 3: "d3"}[results.At(i).DocID])
	}

	var buf bytes.Buffer
	w := NewWriter(&buf, "run-1", 2)
	require.NoError(t, w.WriteResults("10", results))
	require.NoError(t, w.WriteResults("11", ranker.NewResultList()))
	require.NoError(t, w.Flush())

	assert.Equal(t,
		"10 Q0 d1 1 1.250000000000 run-1\n"+
			"10 Q0 d3 2 0.500000000000 run-1\n"+
			"11 Q0 dummy 1 0 run-1\n",
		buf.String())
}
