// Package predicate implements boolean tests over motif pairs. A
// predicate assigns rate parameters to entries of the instantaneous
// rate matrix: its mask marks every ordered motif pair for which it
// holds.
//
// Predicates come in three forms: parsed expressions over a compact
// string grammar ("R/R | Y/Y", "-/?", "???/---"), user-supplied Go
// functions, and compositions of other predicates via And, Or and
// Not. Names occurring in an expression are resolved against a
// model's predefined predicate set at compile time.
package predicate

import (
	"fmt"
	"strings"

	"github.com/phylogo/phyfit/alphabet"
)

// PairTest is a compiled predicate: a pure boolean function of two
// motifs.
type PairTest func(x, y string) bool

// Resolver maps a predicate name to its definition. Used to resolve
// name references in parsed expressions against a model's predefined
// predicates.
type Resolver func(name string) (Predicate, error)

// Predicate is a named boolean test over a motif pair, compilable
// against an alphabet.
type Predicate interface {
	// String returns the canonical textual form of the predicate.
	String() string
	// compile builds the pair test, resolving names via lookup.
	compile(a *alphabet.Alphabet, lookup Resolver) (PairTest, error)
}

// Compile builds the pair test for a predicate over an alphabet.
// lookup may be nil if the predicate contains no name references.
func Compile(p Predicate, a *alphabet.Alphabet, lookup Resolver) (PairTest, error) {
	return p.compile(a, lookup)
}

// ParseError reports a malformed predicate expression.
type ParseError struct {
	Expr  string
	Token string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse predicate %q: invalid token %q", e.Expr, e.Token)
}

// pairPred is a primitive motif-change test, e.g. "R/Y". Each side is
// a per-position symbol pattern; the test is undirected.
type pairPred struct {
	from, to string
}

func (p *pairPred) String() string { return p.from + "/" + p.to }

func (p *pairPred) compile(a *alphabet.Alphabet, lookup Resolver) (PairTest, error) {
	from := strings.ToLower(p.from)
	to := strings.ToLower(p.to)
	if len(from) != len(to) {
		return nil, fmt.Errorf("patterns %q and %q differ in length", p.from, p.to)
	}
	mlen := a.MotifLen()
	var directed func(x, y string) bool
	switch {
	case len(from) == mlen:
		// full-length patterns match position by position,
		// e.g. "???/---" for a whole-word indel
		directed = func(x, y string) bool {
			for i := 0; i < mlen; i++ {
				if !a.SymbolMatches(from[i], x[i]) || !a.SymbolMatches(to[i], y[i]) {
					return false
				}
			}
			return true
		}
	case len(from) == 1:
		// single-symbol patterns apply to a changed position,
		// so "R/R" means some position mutated purine to purine
		directed = func(x, y string) bool {
			for i := 0; i < mlen; i++ {
				if x[i] != y[i] && a.SymbolMatches(from[0], x[i]) && a.SymbolMatches(to[0], y[i]) {
					return true
				}
			}
			return false
		}
	default:
		return nil, fmt.Errorf("pattern %q does not fit motif length %d", p.from, mlen)
	}
	return func(x, y string) bool {
		return directed(x, y) || directed(y, x)
	}, nil
}

// namePred refers to a predefined predicate by name.
type namePred struct {
	name string
}

func (p *namePred) String() string { return p.name }

func (p *namePred) compile(a *alphabet.Alphabet, lookup Resolver) (PairTest, error) {
	if lookup == nil {
		return nil, fmt.Errorf("no predefined predicate set, cannot resolve %q", p.name)
	}
	target, err := lookup(p.name)
	if err != nil {
		return nil, err
	}
	return target.compile(a, lookup)
}

// userPred wraps an arbitrary user-supplied pair function.
type userPred struct {
	name string
	f    PairTest
}

func (p *userPred) String() string { return p.name }

func (p *userPred) compile(a *alphabet.Alphabet, lookup Resolver) (PairTest, error) {
	return p.f, nil
}

// User wraps a Go function as a predicate.
func User(name string, f PairTest) Predicate {
	return &userPred{name: name, f: f}
}

// Composite operators.

type andPred struct{ l, r Predicate }
type orPred struct{ l, r Predicate }
type notPred struct{ p Predicate }

func (p *andPred) String() string { return "(" + p.l.String() + " & " + p.r.String() + ")" }
func (p *orPred) String() string  { return "(" + p.l.String() + " | " + p.r.String() + ")" }
func (p *notPred) String() string { return "!" + p.p.String() }

func (p *andPred) compile(a *alphabet.Alphabet, lookup Resolver) (PairTest, error) {
	l, err := p.l.compile(a, lookup)
	if err != nil {
		return nil, err
	}
	r, err := p.r.compile(a, lookup)
	if err != nil {
		return nil, err
	}
	return func(x, y string) bool { return l(x, y) && r(x, y) }, nil
}

func (p *orPred) compile(a *alphabet.Alphabet, lookup Resolver) (PairTest, error) {
	l, err := p.l.compile(a, lookup)
	if err != nil {
		return nil, err
	}
	r, err := p.r.compile(a, lookup)
	if err != nil {
		return nil, err
	}
	return func(x, y string) bool { return l(x, y) || r(x, y) }, nil
}

func (p *notPred) compile(a *alphabet.Alphabet, lookup Resolver) (PairTest, error) {
	t, err := p.p.compile(a, lookup)
	if err != nil {
		return nil, err
	}
	return func(x, y string) bool { return !t(x, y) }, nil
}

// And returns the conjunction of two predicates.
func And(l, r Predicate) Predicate { return &andPred{l, r} }

// Or returns the disjunction of two predicates.
func Or(l, r Predicate) Predicate { return &orPred{l, r} }

// Not returns the negation of a predicate.
func Not(p Predicate) Predicate { return &notPred{p} }
