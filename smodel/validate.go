package smodel

import (
	"errors"
	"fmt"

	"github.com/gonum/matrix"
	"github.com/gonum/matrix/mat64"

	"github.com/phylogo/phyfit/predicate"
)

// singularTol is the singular-value threshold below which a direction
// of the stacked mask system counts as rank-deficient.
const singularTol = 1e-8

// Warning records a non-fatal model construction diagnostic.
type Warning struct {
	Code    string
	Message string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Code, w.Message)
}

// Warnings returns the diagnostics accumulated during construction.
func (m *Model) Warnings() []Warning {
	return append([]Warning(nil), m.diags...)
}

func (m *Model) warn(code, format string, args ...interface{}) {
	w := Warning{Code: code, Message: fmt.Sprintf(format, args...)}
	m.diags = append(m.diags, w)
	log.Warningf("%s: %s", m.name, w)
}

// normalizeRule converts any accepted predicate form into a
// predicate value.
func normalizeRule(r Rule) (predicate.Predicate, error) {
	if r.Name == "" {
		return nil, errors.New("predicate rule without a name")
	}
	forms := 0
	for _, set := range []bool{r.Expr != "", r.Pred != nil, r.Func != nil} {
		if set {
			forms++
		}
	}
	if forms != 1 {
		return nil, fmt.Errorf("rule %q must set exactly one of Expr, Pred and Func", r.Name)
	}
	switch {
	case r.Expr != "":
		return predicate.Parse(r.Expr)
	case r.Pred != nil:
		return r.Pred, nil
	default:
		return predicate.User(r.Name, r.Func), nil
	}
}

// AdaptPredicate compiles one rule into a mask over the model
// alphabet, restricted to the structurally allowed transitions.
func (m *Model) AdaptPredicate(r Rule) (*predicate.Mask, error) {
	pred, err := normalizeRule(r)
	if err != nil {
		return nil, err
	}
	test, err := predicate.Compile(pred, m.alph, m.lookupPredefined)
	if err != nil {
		return nil, fmt.Errorf("rule %q: %v", r.Name, err)
	}
	return predicate.ToMatrix(test, m.alph, m.inst), nil
}

func (m *Model) lookupPredefined(name string) (predicate.Predicate, error) {
	if p, ok := m.predefined[name]; ok {
		return p, nil
	}
	return nil, fmt.Errorf("unknown predicate name %q", name)
}

// adaptPredicates compiles a rule list into masks, rejecting
// duplicate names and preserving the declaration order.
func (m *Model) adaptPredicates(rules []Rule) (map[string]*predicate.Mask, []string, error) {
	masks := make(map[string]*predicate.Mask, len(rules))
	order := make([]string, 0, len(rules))
	for _, r := range rules {
		if _, dup := masks[r.Name]; dup {
			return nil, nil, fmt.Errorf("duplicate predicate name %q", r.Name)
		}
		mask, err := m.AdaptPredicate(r)
		if err != nil {
			return nil, nil, err
		}
		masks[r.Name] = mask
		order = append(order, r.Name)
	}
	return masks, order, nil
}

// RedundancyInPredicateMasks counts linearly dependent directions in
// a mask set: each mask is flattened to a 0/1 row vector and the rank
// of the stacked system is compared with the number of masks.
func RedundancyInPredicateMasks(masks ...*predicate.Mask) int {
	if len(masks) == 0 {
		return 0
	}
	n := masks[0].Size()
	data := make([]float64, 0, len(masks)*n*n)
	for _, mask := range masks {
		data = append(data, mask.Floats()...)
	}
	eqns := mat64.NewDense(len(masks), n*n, data)
	var svd mat64.SVD
	if !svd.Factorize(eqns, matrix.SVDNone) {
		return 0
	}
	rank := 0
	for _, s := range svd.Values(nil) {
		if s > singularTol {
			rank++
		}
	}
	return len(masks) - rank
}

// checkPredicateMasks rejects predicates that are vacuous, that
// saturate the whole instantaneous mask under scaling, or that are
// mutually redundant. With scaling disabled the saturation and
// redundancy conditions degrade to warnings, since a rate parameter
// confounded with branch lengths is then merely unidentifiable.
func (m *Model) checkPredicateMasks(masks map[string]*predicate.Mask, order []string) error {
	ordered := make([]*predicate.Mask, len(order))
	for i, name := range order {
		mask := masks[name]
		if mask.AllFalse() {
			return fmt.Errorf("predicate %q is always false", name)
		}
		if mask.Equal(m.inst) {
			if m.doScaling {
				return fmt.Errorf("predicate %q is always true; it is confounded with branch lengths under scaling", name)
			}
			m.warn("saturated-predicate", "predicate %q is always true", name)
		}
		ordered[i] = mask
	}
	if r := RedundancyInPredicateMasks(ordered...); r > 0 {
		if m.doScaling {
			return fmt.Errorf("%d redundancies among the predicates %v", r, order)
		}
		m.warn("redundant-predicates", "%d redundancies among the predicates %v", r, order)
	}
	if len(ordered) > 0 {
		withScale := append(append([]*predicate.Mask(nil), ordered...), m.inst)
		if r := RedundancyInPredicateMasks(withScale...); r > 0 {
			if m.doScaling {
				return fmt.Errorf("the predicates %v are confounded with branch-length scaling", order)
			}
			m.warn("scale-confounded", "the predicates %v are confounded with branch-length scaling", order)
		}
	}
	return nil
}
