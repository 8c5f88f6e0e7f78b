package index

import (
	"fmt"
	"sort"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
)

type fieldStats struct {
	lengths  map[int]int
	sum      int64
	docCount int
}

// MemoryIndex is a Source held entirely in memory. Documents receive dense
// internal ids in the order they are added.
type MemoryIndex struct {
	mu        sync.RWMutex
	lists     map[string]map[string]*InvertedList
	fields    map[string]*fieldStats
	externals []string
	internals map[string]int
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		lists:     make(map[string]map[string]*InvertedList),
		fields:    make(map[string]*fieldStats),
		internals: make(map[string]int),
	}
}

// AddDocument tokenizes every field of a document and appends its postings.
// It returns the assigned internal id.
func (m *MemoryIndex) AddDocument(externalID string, fields map[string]string) (int, error) {
	type termPositions map[string][]int
	perField := make(map[string]termPositions, len(fields))
	lengths := make(map[string]int, len(fields))
	for field, text := range fields {
		tokens := tokenizer.Tokenize(text)
		terms := make(termPositions)
		for _, tok := range tokens {
			terms[tok.Term] = append(terms[tok.Term], tok.Position)
		}
		perField[field] = terms
		lengths[field] = len(tokens)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.internals[externalID]; exists {
		return 0, fmt.Errorf("%w: duplicate document %q", apperrors.ErrInvalidInput, externalID)
	}
	docID := len(m.externals)
	m.externals = append(m.externals, externalID)
	m.internals[externalID] = docID

	for field, terms := range perField {
		stats, ok := m.fields[field]
		if !ok {
			stats = &fieldStats{lengths: make(map[int]int)}
			m.fields[field] = stats
		}
		if lengths[field] > 0 {
			stats.lengths[docID] = lengths[field]
			stats.sum += int64(lengths[field])
			stats.docCount++
		}

		byTerm, ok := m.lists[field]
		if !ok {
			byTerm = make(map[string]*InvertedList)
			m.lists[field] = byTerm
		}
		for term, positions := range terms {
			list, ok := byTerm[term]
			if !ok {
				list = NewInvertedList(term, field)
				byTerm[term] = list
			}
			list.Append(docID, positions)
		}
	}
	return docID, nil
}

func (m *MemoryIndex) list(term, field string) *InvertedList {
	if byTerm, ok := m.lists[field]; ok {
		return byTerm[term]
	}
	return nil
}

// InvertedList returns a copy of the stored list so callers cannot disturb
// the index.
func (m *MemoryIndex) InvertedList(term, field string) (*InvertedList, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.list(term, field)
	out := NewInvertedList(term, field)
	if stored == nil {
		return out, nil
	}
	out.Postings = make([]Posting, len(stored.Postings))
	copy(out.Postings, stored.Postings)
	out.CTF = stored.CTF
	return out, nil
}

func (m *MemoryIndex) Posting(term, field string, docID int) (Posting, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stored := m.list(term, field)
	if stored == nil {
		return Posting{}, false, nil
	}
	p, ok := stored.Find(docID)
	return p, ok, nil
}

func (m *MemoryIndex) FieldLength(field string, docID int) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if docID < 0 || docID >= len(m.externals) {
		return 0, fmt.Errorf("%w: internal id %d", apperrors.ErrDocumentNotFound, docID)
	}
	if stats, ok := m.fields[field]; ok {
		return stats.lengths[docID], nil
	}
	return 0, nil
}

func (m *MemoryIndex) SumFieldLengths(field string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if stats, ok := m.fields[field]; ok {
		return stats.sum, nil
	}
	return 0, nil
}

func (m *MemoryIndex) DocCount(field string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if stats, ok := m.fields[field]; ok {
		return stats.docCount, nil
	}
	return 0, nil
}

func (m *MemoryIndex) NumDocs() (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.externals), nil
}

func (m *MemoryIndex) DocumentFrequency(term, field string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if stored := m.list(term, field); stored != nil {
		return stored.DF(), nil
	}
	return 0, nil
}

func (m *MemoryIndex) ExternalID(docID int) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if docID < 0 || docID >= len(m.externals) {
		return "", fmt.Errorf("%w: internal id %d", apperrors.ErrDocumentNotFound, docID)
	}
	return m.externals[docID], nil
}

func (m *MemoryIndex) InternalID(externalID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docID, ok := m.internals[externalID]
	if !ok {
		return 0, fmt.Errorf("%w: %q", apperrors.ErrDocumentNotFound, externalID)
	}
	return docID, nil
}

// Fields lists the indexed field names in sorted order.
func (m *MemoryIndex) Fields() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.fields))
	for f := range m.fields {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// TermEntry is one inverted list in a snapshot.
type TermEntry struct {
	Term     string
	Field    string
	Postings []Posting
}

// Snapshot returns every inverted list ordered by field then term. The
// Postgres importer walks it to copy an in-memory corpus.
func (m *MemoryIndex) Snapshot() []TermEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []TermEntry
	for field, byTerm := range m.lists {
		for term, list := range byTerm {
			postings := make([]Posting, len(list.Postings))
			copy(postings, list.Postings)
			entries = append(entries, TermEntry{Term: term, Field: field, Postings: postings})
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Field != entries[j].Field {
			return entries[i].Field < entries[j].Field
		}
		return entries[i].Term < entries[j].Term
	})
	return entries
}

// FieldLengths returns a copy of the per-document lengths of field.
func (m *MemoryIndex) FieldLengths(field string) map[int]int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int]int)
	if stats, ok := m.fields[field]; ok {
		for doc, n := range stats.lengths {
			out[doc] = n
		}
	}
	return out
}
