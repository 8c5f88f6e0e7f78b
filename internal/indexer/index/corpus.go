package index

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
)

// CorpusDocument is one line of a JSON-lines corpus file.
type CorpusDocument struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

// LoadCorpus reads a JSON-lines corpus into a fresh MemoryIndex. Blank lines
// are skipped.
func LoadCorpus(r io.Reader) (*MemoryIndex, error) {
	idx := NewMemoryIndex()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		var doc CorpusDocument
		if err := json.Unmarshal([]byte(text), &doc); err != nil {
			return nil, fmt.Errorf("corpus line %d: %w: %v", line, apperrors.ErrMalformedInput, err)
		}
		if doc.ID == "" {
			return nil, apperrors.Malformed("corpus line %d: missing id", line)
		}
		if _, err := idx.AddDocument(doc.ID, doc.Fields); err != nil {
			return nil, fmt.Errorf("corpus line %d: %w", line, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading corpus: %w", err)
	}
	return idx, nil
}

// LoadCorpusFile opens path and loads it with LoadCorpus.
func LoadCorpusFile(path string) (*MemoryIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening corpus: %w", err)
	}
	defer f.Close()

	idx, err := LoadCorpus(f)
	if err != nil {
		return nil, err
	}
	n, _ := idx.NumDocs()
	slog.Default().With("component", "index").Info("corpus loaded",
		"path", path,
		"documents", n,
		"fields", idx.Fields(),
	)
	return idx, nil
}
