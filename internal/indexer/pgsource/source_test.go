package pgsource

import (
	"context"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/retrieval"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/postgres"
)

const corpus = `{"id":"GX-1","fields":{"body":"obama family tree","title":"obama"}}
{"id":"GX-2","fields":{"body":"black box recorder"}}
{"id":"GX-3","fields":{"body":"the obama black box tree","title":"black box"}}
{"id":"GX-4","fields":{"body":"","title":"tree"}}
`

// postgresOrSkip connects to the database named by QE_TEST_POSTGRES_HOST and
// friends, skipping the test when none is configured.
func postgresOrSkip(t *testing.T) *postgres.Client {
	t.Helper()
	host := os.Getenv("QE_TEST_POSTGRES_HOST")
	if host == "" {
		t.Skip("skipping: QE_TEST_POSTGRES_HOST not set")
	}
	port, _ := strconv.Atoi(envOr("QE_TEST_POSTGRES_PORT", "5432"))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := postgres.New(ctx, config.PostgresConfig{
		Host:            host,
		Port:            port,
		Database:        envOr("QE_TEST_POSTGRES_DB", "qryeval_test"),
		User:            envOr("QE_TEST_POSTGRES_USER", "qryeval"),
		Password:        envOr("QE_TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Skipf("skipping: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func importCorpus(t *testing.T, db *postgres.Client) *index.MemoryIndex {
	t.Helper()
	mem, err := index.LoadCorpus(strings.NewReader(corpus))
	require.NoError(t, err)
	stats, err := Import(context.Background(), db, mem)
	require.NoError(t, err)
	require.Equal(t, 4, stats.Documents)
	return mem
}

func TestSource_MatchesMemoryIndex(t *testing.T) {
	db := postgresOrSkip(t)
	mem := importCorpus(t, db)

	m := metrics.NewWithRegistry(prometheus.NewRegistry())
	src, err := New(db, 16, m)
	require.NoError(t, err)

	for _, field := range []string{"body", "title", "url"} {
		wantSum, _ := mem.SumFieldLengths(field)
		gotSum, err := src.SumFieldLengths(field)
		require.NoError(t, err)
		assert.Equal(t, wantSum, gotSum, field)

		wantCount, _ := mem.DocCount(field)
		gotCount, err := src.DocCount(field)
		require.NoError(t, err)
		assert.Equal(t, wantCount, gotCount, field)

		for docID := 0; docID < 4; docID++ {
			want, _ := mem.FieldLength(field, docID)
			got, err := src.FieldLength(field, docID)
			require.NoError(t, err)
			assert.Equal(t, want, got, "%s length of %d", field, docID)
		}
	}

	for _, term := range []string{"obama", "black", "box", "tree", "missing"} {
		want, _ := mem.InvertedList(term, "body")
		got, err := src.InvertedList(term, "body")
		require.NoError(t, err)
		assert.Equal(t, want.Postings, got.Postings, term)
		assert.Equal(t, want.CTF, got.CTF, term)
	}

	n, err := src.NumDocs()
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, 4.0, testutil.ToFloat64(m.IndexedDocuments))

	ext, err := src.ExternalID(2)
	require.NoError(t, err)
	assert.Equal(t, "GX-3", ext)
	id, err := src.InternalID("GX-2")
	require.NoError(t, err)
	assert.Equal(t, 1, id)

	_, err = src.ExternalID(99)
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)
	_, err = src.FieldLength("body", 99)
	assert.ErrorIs(t, err, apperrors.ErrDocumentNotFound)

	_, _ = src.InvertedList("obama", "body")
	assert.Positive(t, testutil.ToFloat64(m.SourceCacheTotal.WithLabelValues("lists", "hit")))
}

func TestSource_ReturnedListIsACopy(t *testing.T) {
	db := postgresOrSkip(t)
	importCorpus(t, db)
	src, err := New(db, 16, nil)
	require.NoError(t, err)

	first, err := src.InvertedList("obama", "body")
	require.NoError(t, err)
	first.Postings = first.Postings[:0]

	second, err := src.InvertedList("obama", "body")
	require.NoError(t, err)
	assert.Equal(t, 2, second.DF())
}

func TestSource_SameRankingAsMemoryIndex(t *testing.T) {
	db := postgresOrSkip(t)
	mem := importCorpus(t, db)
	src, err := New(db, 16, nil)
	require.NoError(t, err)

	model, err := retrieval.NewIndri(2500, 0.4)
	require.NoError(t, err)
	cfg := config.SearchConfig{MaxResults: 10, DefaultLimit: 10, QueryTimeout: 5 * time.Second, MaxConcurrentQueries: 1}

	for _, q := range []string{"obama tree", "#near/1(black box)", "#wsum(0.7 obama 0.3 tree.title)"} {
		want, err := executor.New(mem, model, cfg).Search(context.Background(), q, 10)
		require.NoError(t, err)
		got, err := executor.New(src, model, cfg).Search(context.Background(), q, 10)
		require.NoError(t, err)
		assert.Equal(t, want.Results, got.Results, q)
	}
}

func TestNew_RejectsNonPositiveCacheSize(t *testing.T) {
	_, err := New(nil, 0, nil)
	assert.Error(t, err)
}
