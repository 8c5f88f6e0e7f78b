package index

// DefaultField is the field used for query terms that do not name one.
const DefaultField = "body"

// Source is the read-only view of an index that query evaluation consumes.
// Implementations must allow concurrent readers; each query owns its own
// operator tree but may share one Source.
type Source interface {
	// InvertedList returns the postings of term in field, ascending by
	// document id. A term that never occurs yields an empty list.
	InvertedList(term, field string) (*InvertedList, error)
	// Posting returns the posting of term in field for one document, or
	// false when the document does not contain the term.
	Posting(term, field string, docID int) (Posting, bool, error)
	// FieldLength is the number of indexed terms of field in docID.
	FieldLength(field string, docID int) (int, error)
	// SumFieldLengths is the total number of terms of field in the corpus.
	SumFieldLengths(field string) (int64, error)
	// DocCount is the number of documents with a non-empty field.
	DocCount(field string) (int, error)
	// NumDocs is the number of documents in the corpus.
	NumDocs() (int, error)
	// DocumentFrequency is the number of documents containing term in field.
	DocumentFrequency(term, field string) (int, error)
	// ExternalID maps an internal document id to its external identifier.
	ExternalID(docID int) (string, error)
	// InternalID maps an external identifier to the internal document id.
	InternalID(externalID string) (int, error)
}
