// Package retrieval defines the retrieval models a query is evaluated under.
// A Model is a small immutable value; the operator tree consults its Kind to
// pick match predicates and scoring formulas.
package retrieval

import (
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
)

type Kind int

const (
	UnrankedBoolean Kind = iota
	RankedBoolean
	BM25
	Indri
)

func (k Kind) String() string {
	switch k {
	case UnrankedBoolean:
		return "UnrankedBoolean"
	case RankedBoolean:
		return "RankedBoolean"
	case BM25:
		return "BM25"
	case Indri:
		return "Indri"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

type BM25Params struct {
	K1 float64 `yaml:"k1" json:"k1"`
	B  float64 `yaml:"b" json:"b"`
	K3 float64 `yaml:"k3" json:"k3"`
}

type IndriParams struct {
	Mu     float64 `yaml:"mu" json:"mu"`
	Lambda float64 `yaml:"lambda" json:"lambda"`
}

// Model is one retrieval model with its parameters. The zero value is
// UnrankedBoolean.
type Model struct {
	kind  Kind
	bm25  BM25Params
	indri IndriParams
}

func Unranked() Model { return Model{kind: UnrankedBoolean} }

func Ranked() Model { return Model{kind: RankedBoolean} }

func NewBM25(k1, b, k3 float64) (Model, error) {
	if k1 < 0 || b < 0 || b > 1 || k3 < 0 {
		return Model{}, apperrors.Configuration("BM25 requires k1 >= 0, 0 <= b <= 1, k3 >= 0 (got k1=%g b=%g k3=%g)", k1, b, k3)
	}
	return Model{kind: BM25, bm25: BM25Params{K1: k1, B: b, K3: k3}}, nil
}

func NewIndri(mu, lambda float64) (Model, error) {
	if mu < 0 || lambda < 0 || lambda > 1 {
		return Model{}, apperrors.Configuration("Indri requires mu >= 0 and 0 <= lambda <= 1 (got mu=%g lambda=%g)", mu, lambda)
	}
	return Model{kind: Indri, indri: IndriParams{Mu: mu, Lambda: lambda}}, nil
}

func (m Model) Kind() Kind { return m.kind }

func (m Model) BM25() BM25Params { return m.bm25 }

func (m Model) Indri() IndriParams { return m.indri }

// DefaultOperator is the scoring operator wrapped around a whole query.
func (m Model) DefaultOperator() string {
	switch m.kind {
	case BM25:
		return "#sum"
	case Indri:
		return "#and"
	default:
		return "#or"
	}
}

func (m Model) String() string {
	switch m.kind {
	case BM25:
		return fmt.Sprintf("BM25(k1=%g,b=%g,k3=%g)", m.bm25.K1, m.bm25.B, m.bm25.K3)
	case Indri:
		return fmt.Sprintf("Indri(mu=%g,lambda=%g)", m.indri.Mu, m.indri.Lambda)
	default:
		return m.kind.String()
	}
}

// Config is the configuration form of a model.
type Config struct {
	Name  string      `yaml:"model" json:"model"`
	BM25  BM25Params  `yaml:"bm25" json:"bm25"`
	Indri IndriParams `yaml:"indri" json:"indri"`
}

// FromConfig builds a Model by name. Names are matched case-insensitively.
func FromConfig(cfg Config) (Model, error) {
	switch strings.ToLower(cfg.Name) {
	case "unrankedboolean", "unranked":
		return Unranked(), nil
	case "rankedboolean", "ranked":
		return Ranked(), nil
	case "bm25":
		return NewBM25(cfg.BM25.K1, cfg.BM25.B, cfg.BM25.K3)
	case "indri":
		return NewIndri(cfg.Indri.Mu, cfg.Indri.Lambda)
	default:
		return Model{}, apperrors.Configuration("unknown retrieval model %q", cfg.Name)
	}
}
