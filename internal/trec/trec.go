// Package trec reads and writes the TREC-style text files used by batch
// evaluation: query files, intent files, trec_eval rankings and results.
package trec

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
)

// Query is one "qid:query" line.
type Query struct {
	ID   string
	Text string
}

// Entry is one document of a ranking read from a trec_eval file.
type Entry struct {
	ExternalID string
	Rank       int
	Score      float64
}

// IntentRanking is the ranking for one intent ("qid.n") of a query.
type IntentRanking struct {
	ID      string
	Entries []Entry
}

// QueryRankings holds the base ranking and the intent rankings of one query
// in the order they first appear in the file.
type QueryRankings struct {
	QueryID string
	Base    []Entry
	Intents []IntentRanking
}

func (q *QueryRankings) intent(id string) *IntentRanking {
	for i := range q.Intents {
		if q.Intents[i].ID == id {
			return &q.Intents[i]
		}
	}
	q.Intents = append(q.Intents, IntentRanking{ID: id})
	return &q.Intents[len(q.Intents)-1]
}

// lines calls fn with every non-blank line and its 1-based number.
func lines(r io.Reader, fn func(n int, line string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 4*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := fn(n, line); err != nil {
			return err
		}
	}
	return sc.Err()
}

func splitQueryLine(n int, line string) (string, string, error) {
	id, text, ok := strings.Cut(line, ":")
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return "", "", apperrors.Malformed("line %d: expected <id>:<query>, got %q", n, line)
	}
	return id, strings.TrimSpace(text), nil
}

// ReadQueries parses "qid:query" lines in file order.
func ReadQueries(r io.Reader) ([]Query, error) {
	var out []Query
	err := lines(r, func(n int, line string) error {
		id, text, err := splitQueryLine(n, line)
		if err != nil {
			return err
		}
		out = append(out, Query{ID: id, Text: text})
		return nil
	})
	return out, err
}

// ReadIntents parses "qid.n:query" lines and groups them by qid, keeping file
// order within each query.
func ReadIntents(r io.Reader) (map[string][]Query, error) {
	out := make(map[string][]Query)
	err := lines(r, func(n int, line string) error {
		id, text, err := splitQueryLine(n, line)
		if err != nil {
			return err
		}
		qid, _, ok := strings.Cut(id, ".")
		if !ok || qid == "" {
			return apperrors.Malformed("line %d: intent id %q is not <qid>.<n>", n, id)
		}
		out[qid] = append(out[qid], Query{ID: id, Text: text})
		return nil
	})
	return out, err
}

// ReadRankings parses "qid[.n] Q0 docid rank score run" lines. Lines whose id
// has no ".n" suffix form the base ranking of qid.
func ReadRankings(r io.Reader) (map[string]*QueryRankings, error) {
	out := make(map[string]*QueryRankings)
	err := lines(r, func(n int, line string) error {
		f := strings.Fields(line)
		if len(f) < 5 {
			return apperrors.Malformed("line %d: expected 6 columns, got %d", n, len(f))
		}
		rank, err := strconv.Atoi(f[3])
		if err != nil {
			return apperrors.Malformed("line %d: bad rank %q", n, f[3])
		}
		score, err := strconv.ParseFloat(f[4], 64)
		if err != nil {
			return apperrors.Malformed("line %d: bad score %q", n, f[4])
		}
		entry := Entry{ExternalID: f[2], Rank: rank, Score: score}

		qid, _, isIntent := strings.Cut(f[0], ".")
		q, ok := out[qid]
		if !ok {
			q = &QueryRankings{QueryID: qid}
			out[qid] = q
		}
		if isIntent {
			in := q.intent(f[0])
			in.Entries = append(in.Entries, entry)
		} else {
			q.Base = append(q.Base, entry)
		}
		return nil
	})
	return out, err
}

func openFile(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	return f, nil
}

func ReadQueryFile(path string) ([]Query, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	queries, err := ReadQueries(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	slog.Default().With("component", "trec").Info("queries loaded", "path", path, "count", len(queries))
	return queries, nil
}

func ReadIntentsFile(path string) (map[string][]Query, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	intents, err := ReadIntents(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return intents, nil
}

func ReadRankingsFile(path string) (map[string]*QueryRankings, error) {
	f, err := openFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rankings, err := ReadRankings(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return rankings, nil
}

// Writer emits trec_eval result lines "qid Q0 docid rank score run".
type Writer struct {
	w      *bufio.Writer
	runID  string
	length int
}

// NewWriter writes at most length results per query.
func NewWriter(w io.Writer, runID string, length int) *Writer {
	return &Writer{w: bufio.NewWriter(w), runID: runID, length: length}
}

// WriteResults writes a sorted result list. A query without results gets a
// single dummy line so that trec_eval still sees it.
func (w *Writer) WriteResults(queryID string, results *ranker.ResultList) error {
	if results.Len() == 0 {
		_, err := fmt.Fprintf(w.w, "%s Q0 dummy 1 0 %s\n", queryID, w.runID)
		return err
	}
	n := results.Len()
	if w.length > 0 && w.length < n {
		n = w.length
	}
	for i := 0; i < n; i++ {
		d := results.At(i)
		if _, err := fmt.Fprintf(w.w, "%s Q0 %s %d %.12f %s\n", queryID, d.ExternalID, i+1, d.Score, w.runID); err != nil {
			return err
		}
	}
	return nil
}

func (w *Writer) Flush() error {
	return w.w.Flush()
}
