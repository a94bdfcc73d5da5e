package predicate

import "strings"

// Parse interprets a predicate expression.
//
// Grammar:
//
//	expr   := term (('|' | '&') term)*
//	term   := '!'* atom
//	atom   := pair | name | '(' expr ')'
//	pair   := pattern '/' pattern
//
// A pattern is a per-position symbol string: concrete symbols,
// degenerate class symbols (R, Y, ... for nucleotides), '?' for any
// symbol and the gap symbol. A bare identifier is a reference to a
// predefined predicate, resolved when the predicate is compiled
// against a model. Operators have equal precedence and associate
// left.
func Parse(expr string) (Predicate, error) {
	p := &parser{expr: expr, tokens: tokenize(expr)}
	pred, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.tokens) {
		return nil, &ParseError{Expr: expr, Token: p.tokens[p.pos]}
	}
	return pred, nil
}

func tokenize(expr string) []string {
	var tokens []string
	var cur strings.Builder
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range expr {
		switch r {
		case ' ', '\t':
			flush()
		case '|', '&', '!', '(', ')':
			flush()
			tokens = append(tokens, string(r))
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}

type parser struct {
	expr   string
	tokens []string
	pos    int
}

func (p *parser) peek() string {
	if p.pos < len(p.tokens) {
		return p.tokens[p.pos]
	}
	return ""
}

func (p *parser) next() string {
	t := p.peek()
	if t != "" {
		p.pos++
	}
	return t
}

func (p *parser) fail(token string) error {
	if token == "" {
		token = "<end of expression>"
	}
	return &ParseError{Expr: p.expr, Token: token}
}

func (p *parser) parseExpr() (Predicate, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek() {
		case "|":
			p.next()
			right, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			left = Or(left, right)
		case "&":
			p.next()
			right, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			left = And(left, right)
		default:
			return left, nil
		}
	}
}

func (p *parser) parseTerm() (Predicate, error) {
	if p.peek() == "!" {
		p.next()
		inner, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return Not(inner), nil
	}
	return p.parseAtom()
}

func (p *parser) parseAtom() (Predicate, error) {
	tok := p.next()
	switch tok {
	case "", "|", "&", ")", "/":
		return nil, p.fail(tok)
	case "(":
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if close := p.next(); close != ")" {
			return nil, p.fail(close)
		}
		return inner, nil
	}
	if i := strings.IndexByte(tok, '/'); i >= 0 {
		from, to := tok[:i], tok[i+1:]
		if from == "" || to == "" || strings.Contains(to, "/") {
			return nil, p.fail(tok)
		}
		return &pairPred{from: from, to: to}, nil
	}
	return &namePred{name: tok}, nil
}
