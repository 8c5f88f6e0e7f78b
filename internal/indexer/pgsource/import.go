package pgsource

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/postgres"
)

type ImportStats struct {
	Documents int `json:"documents"`
	Lists     int `json:"lists"`
	Postings  int `json:"postings"`
}

// Import replaces the stored corpus with the contents of idx in a single
// transaction. Internal document ids are preserved.
func Import(ctx context.Context, db *postgres.Client, idx *index.MemoryIndex) (ImportStats, error) {
	log := slog.Default().With("component", "pg-import")
	var stats ImportStats

	if err := Migrate(ctx, db); err != nil {
		return stats, err
	}

	numDocs, err := idx.NumDocs()
	if err != nil {
		return stats, err
	}

	err = db.InTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `TRUNCATE postings, field_lengths, documents`); err != nil {
			return fmt.Errorf("clearing previous corpus: %w", err)
		}

		err := copyRows(ctx, tx, "documents", []string{"doc_id", "external_id"}, func(emit func(...any) error) error {
			for docID := 0; docID < numDocs; docID++ {
				ext, err := idx.ExternalID(docID)
				if err != nil {
					return err
				}
				if err := emit(docID, ext); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
		stats.Documents = numDocs

		err = copyRows(ctx, tx, "field_lengths", []string{"field", "doc_id", "length"}, func(emit func(...any) error) error {
			for _, field := range idx.Fields() {
				for docID, n := range idx.FieldLengths(field) {
					if err := emit(field, docID, n); err != nil {
						return err
					}
				}
			}
			return nil
		})
		if err != nil {
			return err
		}

		return copyRows(ctx, tx, "postings", []string{"field", "term", "doc_id", "positions"}, func(emit func(...any) error) error {
			for _, entry := range idx.Snapshot() {
				stats.Lists++
				for _, p := range entry.Postings {
					if err := emit(entry.Field, entry.Term, p.DocID, pq.Array(toInt64(p.Positions))); err != nil {
						return err
					}
					stats.Postings++
				}
			}
			return nil
		})
	})
	if err != nil {
		return ImportStats{}, fmt.Errorf("importing corpus: %w", err)
	}

	log.Info("corpus imported",
		"documents", stats.Documents,
		"lists", stats.Lists,
		"postings", stats.Postings,
	)
	return stats, nil
}

// copyRows streams rows into table with COPY FROM STDIN.
func copyRows(ctx context.Context, tx *sql.Tx, table string, columns []string, produce func(emit func(...any) error) error) error {
	stmt, err := tx.PrepareContext(ctx, pq.CopyIn(table, columns...))
	if err != nil {
		return fmt.Errorf("preparing copy into %s: %w", table, err)
	}
	defer stmt.Close()

	emit := func(values ...any) error {
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return fmt.Errorf("copying row into %s: %w", table, err)
		}
		return nil
	}
	if err := produce(emit); err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		return fmt.Errorf("flushing copy into %s: %w", table, err)
	}
	return nil
}

func toInt64(positions []int) []int64 {
	out := make([]int64, len(positions))
	for i, p := range positions {
		out[i] = int64(p)
	}
	return out
}
