// Package pgsource serves postings, document statistics and id mappings
// from PostgreSQL through the index.Source interface. Inverted lists, field
// lengths and id lookups are kept in LRU caches in front of the database.
package pgsource

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/postgres"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	doc_id      INTEGER PRIMARY KEY,
	external_id TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS field_lengths (
	field  TEXT NOT NULL,
	doc_id INTEGER NOT NULL REFERENCES documents (doc_id) ON DELETE CASCADE,
	length INTEGER NOT NULL,
	PRIMARY KEY (field, doc_id)
);

CREATE TABLE IF NOT EXISTS postings (
	field     TEXT NOT NULL,
	term      TEXT NOT NULL,
	doc_id    INTEGER NOT NULL REFERENCES documents (doc_id) ON DELETE CASCADE,
	positions INTEGER[] NOT NULL,
	PRIMARY KEY (field, term, doc_id)
);
`

// Migrate creates the posting tables when they do not exist.
func Migrate(ctx context.Context, db *postgres.Client) error {
	if _, err := db.DB.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating posting schema: %w", err)
	}
	return nil
}
