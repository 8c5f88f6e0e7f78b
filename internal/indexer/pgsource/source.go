package pgsource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/postgres"
)

// queryTimeout bounds each lookup; index.Source methods carry no context.
const queryTimeout = 10 * time.Second

type listKey struct {
	term  string
	field string
}

type lengthKey struct {
	field string
	docID int
}

type fieldStats struct {
	sum      int64
	docCount int
}

// Source implements index.Source over the tables created by Migrate. It is
// safe for concurrent use. Cached data is never invalidated on its own;
// call Purge after re-importing the corpus.
type Source struct {
	db        *postgres.Client
	lists     *lru.Cache[listKey, *index.InvertedList]
	lengths   *lru.Cache[lengthKey, int]
	externals *lru.Cache[int, string]
	internals *lru.Cache[string, int]
	metrics   *metrics.Metrics
	logger    *slog.Logger

	mu      sync.Mutex
	fields  map[string]fieldStats
	numDocs int
}

var _ index.Source = (*Source)(nil)

// New returns a Source whose caches each hold up to cacheSize entries. m may
// be nil.
func New(db *postgres.Client, cacheSize int, m *metrics.Metrics) (*Source, error) {
	lists, err := lru.New[listKey, *index.InvertedList](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating list cache: %w", err)
	}
	lengths, err := lru.New[lengthKey, int](cacheSize * 4)
	if err != nil {
		return nil, fmt.Errorf("creating length cache: %w", err)
	}
	externals, err := lru.New[int, string](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating external id cache: %w", err)
	}
	internals, err := lru.New[string, int](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating internal id cache: %w", err)
	}
	return &Source{
		db:        db,
		lists:     lists,
		lengths:   lengths,
		externals: externals,
		internals: internals,
		metrics:   m,
		logger:    slog.Default().With("component", "pg-source"),
		fields:    make(map[string]fieldStats),
		numDocs:   -1,
	}, nil
}

// Purge drops every cached value.
func (s *Source) Purge() {
	s.lists.Purge()
	s.lengths.Purge()
	s.externals.Purge()
	s.internals.Purge()
	s.mu.Lock()
	s.fields = make(map[string]fieldStats)
	s.numDocs = -1
	s.mu.Unlock()
}

func (s *Source) record(cache string, hit bool) {
	if s.metrics == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	s.metrics.SourceCacheTotal.WithLabelValues(cache, result).Inc()
}

func (s *Source) cachedList(term, field string) (*index.InvertedList, error) {
	key := listKey{term: term, field: field}
	if list, ok := s.lists.Get(key); ok {
		s.record("lists", true)
		return list, nil
	}
	s.record("lists", false)

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	rows, err := s.db.DB.QueryContext(ctx,
		`SELECT doc_id, positions FROM postings
		 WHERE field = $1 AND term = $2
		 ORDER BY doc_id`,
		field, term,
	)
	if err != nil {
		return nil, fmt.Errorf("querying postings of %s.%s: %w", term, field, err)
	}
	defer rows.Close()

	list := index.NewInvertedList(term, field)
	for rows.Next() {
		var (
			docID     int
			positions pq.Int64Array
		)
		if err := rows.Scan(&docID, &positions); err != nil {
			return nil, fmt.Errorf("scanning posting of %s.%s: %w", term, field, err)
		}
		list.Append(docID, toInt(positions))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading postings of %s.%s: %w", term, field, err)
	}

	s.lists.Add(key, list)
	s.logger.Debug("inverted list loaded", "term", term, "field", field, "df", list.DF())
	return list, nil
}

// InvertedList returns a copy of the list so callers cannot disturb the
// cache.
func (s *Source) InvertedList(term, field string) (*index.InvertedList, error) {
	cached, err := s.cachedList(term, field)
	if err != nil {
		return nil, err
	}
	out := index.NewInvertedList(term, field)
	out.Postings = make([]index.Posting, len(cached.Postings))
	copy(out.Postings, cached.Postings)
	out.CTF = cached.CTF
	return out, nil
}

func (s *Source) Posting(term, field string, docID int) (index.Posting, bool, error) {
	list, err := s.cachedList(term, field)
	if err != nil {
		return index.Posting{}, false, err
	}
	p, ok := list.Find(docID)
	return p, ok, nil
}

func (s *Source) DocumentFrequency(term, field string) (int, error) {
	list, err := s.cachedList(term, field)
	if err != nil {
		return 0, err
	}
	return list.DF(), nil
}

func (s *Source) FieldLength(field string, docID int) (int, error) {
	key := lengthKey{field: field, docID: docID}
	if n, ok := s.lengths.Get(key); ok {
		s.record("lengths", true)
		return n, nil
	}
	s.record("lengths", false)

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	var n int
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT COALESCE(f.length, 0)
		 FROM documents d
		 LEFT JOIN field_lengths f ON f.doc_id = d.doc_id AND f.field = $1
		 WHERE d.doc_id = $2`,
		field, docID,
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: internal id %d", apperrors.ErrDocumentNotFound, docID)
	}
	if err != nil {
		return 0, fmt.Errorf("querying length of %s in %d: %w", field, docID, err)
	}
	s.lengths.Add(key, n)
	return n, nil
}

func (s *Source) stats(field string) (fieldStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fs, ok := s.fields[field]; ok {
		return fs, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	var fs fieldStats
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(length), 0), COUNT(*)
		 FROM field_lengths
		 WHERE field = $1 AND length > 0`,
		field,
	).Scan(&fs.sum, &fs.docCount)
	if err != nil {
		return fieldStats{}, fmt.Errorf("querying statistics of field %s: %w", field, err)
	}
	s.fields[field] = fs
	return fs, nil
}

func (s *Source) SumFieldLengths(field string) (int64, error) {
	fs, err := s.stats(field)
	return fs.sum, err
}

func (s *Source) DocCount(field string) (int, error) {
	fs, err := s.stats(field)
	return fs.docCount, err
}

func (s *Source) NumDocs() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.numDocs >= 0 {
		return s.numDocs, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	var n int
	if err := s.db.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM documents`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	s.numDocs = n
	if s.metrics != nil {
		s.metrics.IndexedDocuments.Set(float64(n))
	}
	return n, nil
}

func (s *Source) ExternalID(docID int) (string, error) {
	if ext, ok := s.externals.Get(docID); ok {
		s.record("ids", true)
		return ext, nil
	}
	s.record("ids", false)

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	var ext string
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT external_id FROM documents WHERE doc_id = $1`, docID,
	).Scan(&ext)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: internal id %d", apperrors.ErrDocumentNotFound, docID)
	}
	if err != nil {
		return "", fmt.Errorf("querying external id of %d: %w", docID, err)
	}
	s.externals.Add(docID, ext)
	return ext, nil
}

func (s *Source) InternalID(externalID string) (int, error) {
	if docID, ok := s.internals.Get(externalID); ok {
		s.record("ids", true)
		return docID, nil
	}
	s.record("ids", false)

	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()
	var docID int
	err := s.db.DB.QueryRowContext(ctx,
		`SELECT doc_id FROM documents WHERE external_id = $1`, externalID,
	).Scan(&docID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", apperrors.ErrDocumentNotFound, externalID)
	}
	if err != nil {
		return 0, fmt.Errorf("querying internal id of %q: %w", externalID, err)
	}
	s.internals.Add(externalID, docID)
	return docID, nil
}

func toInt(positions pq.Int64Array) []int {
	out := make([]int, len(positions))
	for i, p := range positions {
		out[i] = int(p)
	}
	return out
}
