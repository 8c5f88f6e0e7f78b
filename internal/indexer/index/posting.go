package index

// Posting is one document's entry in an inverted list. Positions are
// strictly ascending and Frequency equals len(Positions) for postings built
// from text.
type Posting struct {
	DocID     int   `json:"d"`
	Frequency int   `json:"f"`
	Positions []int `json:"p"`
}

// InvertedList holds the postings of one (term, field) pair in ascending
// document order together with the collection term frequency.
type InvertedList struct {
	Term     string
	Field    string
	Postings []Posting
	CTF      int64
}

// NewInvertedList returns an empty list for the given term and field.
func NewInvertedList(term, field string) *InvertedList {
	return &InvertedList{Term: term, Field: field}
}

// Append adds a posting for docID. Callers append in ascending document
// order; the positions slice is owned by the list afterwards.
func (l *InvertedList) Append(docID int, positions []int) {
	l.Postings = append(l.Postings, Posting{
		DocID:     docID,
		Frequency: len(positions),
		Positions: positions,
	})
	l.CTF += int64(len(positions))
}

// DF is the number of documents in the list.
func (l *InvertedList) DF() int {
	return len(l.Postings)
}

// Find returns the posting for docID, if present.
func (l *InvertedList) Find(docID int) (Posting, bool) {
	lo, hi := 0, len(l.Postings)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if l.Postings[mid].DocID < docID {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(l.Postings) && l.Postings[lo].DocID == docID {
		return l.Postings[lo], true
	}
	return Posting{}, false
}
