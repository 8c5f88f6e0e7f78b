// Package benchmark contains Go benchmarks for the in-memory index, query
// evaluation under each retrieval model, and diversification.
package benchmark

import (
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/indexer/index"
)

var bodies = []string{
	"search engine with distributed indexing and query processing",
	"black box flight recorder stores cockpit audio after a crash",
	"the obama family tree traces ancestry through kenya and kansas",
	"black box testing checks behaviour without reading the source tree",
	"probabilistic retrieval models rank documents by term statistics",
}

func buildIndex(b *testing.B, n int) *index.MemoryIndex {
	b.Helper()
	mi := index.NewMemoryIndex()
	for i := 0; i < n; i++ {
		fields := map[string]string{
			"title": fmt.Sprintf("document %d", i),
			"body":  bodies[i%len(bodies)],
		}
		if _, err := mi.AddDocument(fmt.Sprintf("doc-%d", i), fields); err != nil {
			b.Fatal(err)
		}
	}
	return mi
}

// BenchmarkMemoryIndexAdd measures per-document insert throughput.
func BenchmarkMemoryIndexAdd(b *testing.B) {
	mi := index.NewMemoryIndex()
	fields := map[string]string{
		"title": "benchmark title",
		"body":  "this is a benchmark document with several terms for testing the indexing performance of our memory index",
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := mi.AddDocument(fmt.Sprintf("doc-%d", i), fields); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkInvertedList measures single-term lookup over 10 000 documents.
func BenchmarkInvertedList(b *testing.B) {
	mi := buildIndex(b, 10000)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := mi.InvertedList("black", "body"); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkInvertedListParallel(b *testing.B) {
	mi := buildIndex(b, 10000)
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			if _, err := mi.InvertedList("tree", "body"); err != nil {
				b.Fatal(err)
			}
		}
	})
}
