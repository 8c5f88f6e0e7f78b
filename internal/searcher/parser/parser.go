// Package parser turns query-language strings into operator trees.
//
//	#and( obama #near/2( black tree ) )
//	#wsum( 0.7 apple.title 0.3 #window/8( apple pie ) )
//
// Words pass through the tokenizer, so stop-words disappear and a word such
// as "e-mail" may become several terms. A word may name its field with a
// suffix such as "apple.title".
package parser

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/qry"
	"github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/internal/searcher/retrieval"
	apperrors "github.com/Adithya-Monish-Kumar-K/Retrieval-Evaluation-Engine/pkg/errors"
)

// Fields are the field suffixes a word may carry.
var Fields = map[string]struct{}{
	"body": {}, "title": {}, "url": {}, "keywords": {}, "inlink": {},
}

type tokenKind int

const (
	tokOperator tokenKind = iota
	tokOpen
	tokClose
	tokWord
)

type token struct {
	kind tokenKind
	text string
}

// Parse parses query and wraps it in the model's default operator.
func Parse(query string, model retrieval.Model) (*qry.Tree, error) {
	toks := lex(query)
	wrapped := make([]token, 0, len(toks)+3)
	wrapped = append(wrapped, token{tokOperator, model.DefaultOperator()}, token{tokOpen, "("})
	wrapped = append(wrapped, toks...)
	wrapped = append(wrapped, token{tokClose, ")"})

	p := &parser{toks: wrapped, b: qry.NewBuilder()}
	ids, err := p.expr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, apperrors.Malformed("unexpected %q after end of query", p.toks[p.pos].text)
	}
	return p.b.Build(ids[0])
}

func lex(query string) []token {
	var toks []token
	runes := []rune(query)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{tokOpen, "("})
			i++
		case r == ')':
			toks = append(toks, token{tokClose, ")"})
			i++
		default:
			start := i
			for i < len(runes) && !unicode.IsSpace(runes[i]) && runes[i] != '(' && runes[i] != ')' {
				i++
			}
			text := string(runes[start:i])
			if strings.HasPrefix(text, "#") {
				toks = append(toks, token{tokOperator, strings.ToLower(text)})
			} else {
				toks = append(toks, token{tokWord, text})
			}
		}
	}
	return toks
}

type parser struct {
	toks []token
	pos  int
	b    *qry.Builder
}

func (p *parser) next() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	t := p.toks[p.pos]
	p.pos++
	return t, true
}

func (p *parser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

// expr parses one operator or word. A word may produce zero or more terms.
func (p *parser) expr() ([]qry.NodeID, error) {
	t, ok := p.next()
	if !ok {
		return nil, apperrors.Malformed("unexpected end of query")
	}
	switch t.kind {
	case tokWord:
		return p.terms(t.text), nil
	case tokOperator:
		return p.operator(t.text)
	default:
		return nil, apperrors.Malformed("unexpected %q", t.text)
	}
}

func (p *parser) terms(word string) []qry.NodeID {
	field := index.DefaultField
	if dot := strings.LastIndex(word, "."); dot > 0 {
		if _, known := Fields[strings.ToLower(word[dot+1:])]; known {
			field = strings.ToLower(word[dot+1:])
			word = word[:dot]
		}
	}
	var ids []qry.NodeID
	for _, term := range tokenizer.Terms(word) {
		ids = append(ids, p.b.Term(term, field))
	}
	return ids
}

func (p *parser) operator(name string) ([]qry.NodeID, error) {
	if t, ok := p.next(); !ok || t.kind != tokOpen {
		return nil, apperrors.Malformed("operator %s must be followed by '('", name)
	}

	op, distance, err := splitOperator(name)
	if err != nil {
		return nil, err
	}
	weighted := op == "#wand" || op == "#wsum"
	args, weights, err := p.args(weighted)
	if err != nil {
		return nil, err
	}

	var id qry.NodeID
	switch op {
	case "#and":
		id = p.b.And(args...)
	case "#or":
		id = p.b.Or(args...)
	case "#sum":
		id = p.b.Sum(args...)
	case "#wand":
		id = p.b.WAnd(weights, args...)
	case "#wsum":
		id = p.b.WSum(weights, args...)
	case "#near":
		id = p.b.Near(distance, args...)
	case "#window":
		id = p.b.Window(distance, args...)
	case "#score":
		if len(args) != 1 {
			return nil, apperrors.Malformed("#score takes one argument, got %d", len(args))
		}
		id = p.b.Score(args[0])
	}
	return []qry.NodeID{id}, nil
}

func splitOperator(name string) (string, int, error) {
	op, arg, hasArg := strings.Cut(name, "/")
	switch op {
	case "#near", "#window":
		if !hasArg {
			return "", 0, apperrors.Malformed("%s needs a distance, as in %s/3", op, op)
		}
		n, err := strconv.Atoi(arg)
		if err != nil {
			return "", 0, apperrors.Malformed("%s distance %q is not an integer", op, arg)
		}
		return op, n, nil
	case "#and", "#or", "#sum", "#wand", "#wsum", "#score":
		if hasArg {
			return "", 0, apperrors.Malformed("%s takes no distance", op)
		}
		return op, 0, nil
	default:
		return "", 0, apperrors.Malformed("unknown operator %s", name)
	}
}

// args parses arguments up to the closing parenthesis. In weighted
// operators each argument is preceded by its weight; a word that yields no
// terms drops its weight too.
func (p *parser) args(weighted bool) ([]qry.NodeID, []float64, error) {
	var (
		ids     []qry.NodeID
		weights []float64
	)
	for {
		t, ok := p.peek()
		if !ok {
			return nil, nil, apperrors.Malformed("missing ')'")
		}
		if t.kind == tokClose {
			p.pos++
			return ids, weights, nil
		}

		weight := 0.0
		if weighted {
			p.pos++
			w, err := strconv.ParseFloat(t.text, 64)
			if t.kind != tokWord || err != nil || math.IsNaN(w) || math.IsInf(w, 0) {
				return nil, nil, apperrors.Malformed("expected a weight, got %q", t.text)
			}
			weight = w
		}
		arg, err := p.expr()
		if err != nil {
			return nil, nil, err
		}
		for _, id := range arg {
			ids = append(ids, id)
			if weighted {
				weights = append(weights, weight)
			}
		}
	}
}
