package qry

import (
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/indexer/index"
	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
)

// fakeSource is a single-field source with hand-placed postings. Every
// document has the same length unless overridden.
type fakeSource struct {
	numDocs int
	docLen  int
	lengths map[int]int
	lists   map[string]*index.InvertedList
}

func newFakeSource(numDocs, docLen int) *fakeSource {
	return &fakeSource{
		numDocs: numDocs,
		docLen:  docLen,
		lengths: make(map[int]int),
		lists:   make(map[string]*index.InvertedList),
	}
}

// add appends a posting; call in ascending document order per term.
func (s *fakeSource) add(term string, doc int, positions ...int) *fakeSource {
	list, ok := s.lists[term]
	if !ok {
		list = index.NewInvertedList(term, index.DefaultField)
		s.lists[term] = list
	}
	list.Append(doc, positions)
	return s
}

func (s *fakeSource) InvertedList(term, field string) (*index.InvertedList, error) {
	list, ok := s.lists[term]
	if !ok || field != index.DefaultField {
		return index.NewInvertedList(term, field), nil
	}
	out := *list
	out.Postings = append([]index.Posting(nil), list.Postings...)
	return &out, nil
}

func (s *fakeSource) Posting(term, field string, docID int) (index.Posting, bool, error) {
	list, _ := s.InvertedList(term, field)
	p, ok := list.Find(docID)
	return p, ok, nil
}

func (s *fakeSource) FieldLength(_ string, docID int) (int, error) {
	if n, ok := s.lengths[docID]; ok {
		return n, nil
	}
	return s.docLen, nil
}

func (s *fakeSource) SumFieldLengths(_ string) (int64, error) {
	var sum int64
	for d := 0; d < s.numDocs; d++ {
		n, _ := s.FieldLength(index.DefaultField, d)
		sum += int64(n)
	}
	return sum, nil
}

func (s *fakeSource) DocCount(string) (int, error) { return s.numDocs, nil }

func (s *fakeSource) NumDocs() (int, error) { return s.numDocs, nil }

func (s *fakeSource) DocumentFrequency(term, field string) (int, error) {
	list, _ := s.InvertedList(term, field)
	return list.DF(), nil
}

func (s *fakeSource) ExternalID(docID int) (string, error) {
	return "", apperrors.ErrDocumentNotFound
}

func (s *fakeSource) InternalID(string) (int, error) {
	return 0, apperrors.ErrDocumentNotFound
}
