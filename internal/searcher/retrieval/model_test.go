package retrieval

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
)

func TestFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		kind    Kind
		op      string
		wantErr bool
	}{
		{"unranked", Config{Name: "UnrankedBoolean"}, UnrankedBoolean, "#or", false},
		{"ranked", Config{Name: "rankedboolean"}, RankedBoolean, "#or", false},
		{"bm25", Config{Name: "BM25", BM25: BM25Params{K1: 1.2, B: 0.75, K3: 0}}, BM25, "#sum", false},
		{"indri", Config{Name: "Indri", Indri: IndriParams{Mu: 2500, Lambda: 0.4}}, Indri, "#and", false},
		{"bad b", Config{Name: "BM25", BM25: BM25Params{K1: 1.2, B: 1.5}}, 0, "", true},
		{"bad lambda", Config{Name: "Indri", Indri: IndriParams{Mu: 10, Lambda: -0.1}}, 0, "", true},
		{"unknown", Config{Name: "tfidf"}, 0, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := FromConfig(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperrors.ErrConfiguration))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.kind, m.Kind())
			assert.Equal(t, tt.op, m.DefaultOperator())
		})
	}
}

func TestModelParams(t *testing.T) {
	m, err := NewIndri(2500, 0.4)
	require.NoError(t, err)
	assert.Equal(t, IndriParams{Mu: 2500, Lambda: 0.4}, m.Indri())
	assert.Equal(t, "Indri(mu=2500,lambda=0.4)", m.String())

	var zero Model
	assert.Equal(t, UnrankedBoolean, zero.Kind())
}
