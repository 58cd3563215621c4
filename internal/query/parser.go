package query

import (
	"strings"

	"github.com/roach88/searchql/internal/attr"
	"github.com/roach88/searchql/internal/criterion"
)

// TypeLookup reports the declared type of a field. *attr.Snapshot
// satisfies it.
type TypeLookup interface {
	TypeOf(field string) (attr.SemanticType, bool)
}

// Option configures Parse.
type Option func(*parser)

// WithTypes lets the parser type range bounds. Ranges on fields the lookup
// declares INTEGER, LONG, FLOAT or DOUBLE become PointRange nodes; every
// other range stays a TermRange.
func WithTypes(types TypeLookup) Option {
	return func(p *parser) { p.types = types }
}

// WithDefaultField sets the field used by terms written without one.
func WithDefaultField(field string) Option {
	return func(p *parser) { p.defaultField = field }
}

// Parse turns a query string into a syntax tree.
//
// Grammar (OR binds loosest, juxtaposition is an implicit AND):
//
//	Query  := Disj+
//	Disj   := Conj ( (OR | "||") Conj )*
//	Conj   := Mod ( (AND | "&&") Mod )*
//	Mod    := [ "+" | "-" | "!" | NOT ] Mod | Clause
//	Clause := [ term ":" ] ( "(" Query ")" | Range | Term ) [ "^" factor ]
//	Range  := ("[" | "{") [bound] TO [bound] ("]" | "}")
//	Term   := quoted [ "~" [n] ] | word [ "~" [n] ] | "/" regexp "/"
//
// A blank query parses to MatchAll. Field names are not resolved here; the
// only use of the type lookup is deciding numeric range bounds, which must
// parse at exactly the declared width or Parse fails.
func Parse(src string, opts ...Option) (Node, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &parser{src: src, toks: toks}
	for _, opt := range opts {
		opt(p)
	}

	if p.peek().kind == tokEOF {
		return MatchAll{}, nil
	}

	node, err := p.parseQuery(p.defaultField)
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, p.errorf(tok, "unexpected %s", tok.kind)
	}
	return node, nil
}

type parser struct {
	src          string
	toks         []token
	i            int
	types        TypeLookup
	defaultField string
}

func (p *parser) peek() token { return p.peekAt(0) }

func (p *parser) peekAt(n int) token {
	if p.i+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.i+n]
}

func (p *parser) next() token {
	tok := p.peek()
	if p.i < len(p.toks)-1 {
		p.i++
	}
	return tok
}

func (p *parser) errorf(tok token, format string, args ...any) *ParseError {
	return newParseError(p.src, tok.pos, format, args...)
}

// parseQuery reads clauses until end of input or a closing parenthesis.
// field is the field applied to terms written without one.
func (p *parser) parseQuery(field string) (Node, error) {
	var clauses []Node
	for {
		if k := p.peek().kind; k == tokEOF || k == tokRParen {
			break
		}
		n, err := p.parseDisj(field)
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, n)
	}

	switch len(clauses) {
	case 0:
		return And{}, nil
	case 1:
		return clauses[0], nil
	default:
		return And{Children: clauses}, nil
	}
}

func (p *parser) parseDisj(field string) (Node, error) {
	first, err := p.parseConj(field)
	if err != nil {
		return nil, err
	}
	children := []Node{first}
	for p.peek().kind == tokOr {
		p.next()
		n, err := p.parseConj(field)
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}
	if len(children) == 1 {
		return first, nil
	}
	return Or{Children: children}, nil
}

func (p *parser) parseConj(field string) (Node, error) {
	first, err := p.parseMod(field)
	if err != nil {
		return nil, err
	}
	children := []Node{first}
	for p.peek().kind == tokAnd {
		p.next()
		n, err := p.parseMod(field)
		if err != nil {
			return nil, err
		}
		children = append(children, n)
	}
	if len(children) == 1 {
		return first, nil
	}
	return And{Children: children}, nil
}

func (p *parser) parseMod(field string) (Node, error) {
	var kind ModifierKind
	switch p.peek().kind {
	case tokPlus:
		kind = Required
	case tokMinus, tokBang, tokNot:
		kind = Prohibited
	default:
		return p.parseClause(field)
	}
	p.next()

	child, err := p.parseMod(field)
	if err != nil {
		return nil, err
	}
	return Modifier{Modifier: kind, Child: child}, nil
}

func (p *parser) parseClause(field string) (Node, error) {
	tok := p.peek()
	explicit := false
	if tok.isTerm() && p.peekAt(1).kind == tokColon {
		p.next()
		p.next()

		if tok.raw == "*" {
			if v := p.peek(); v.kind == tokWord && v.raw == "*" {
				p.next()
				return p.boost(MatchAll{})
			}
			return nil, p.errorf(tok, "'*' is only valid as a field name in *:*")
		}
		if tok.wildcard {
			return nil, p.errorf(tok, "wildcard field name %q is not supported", tok.raw)
		}
		if tok.text == "" {
			return nil, p.errorf(tok, "empty field name")
		}
		field = tok.text
		explicit = true
	}
	return p.parseValue(field, explicit)
}

// parseValue reads what follows "field:". explicit is false when field was
// inherited from a default or an enclosing field group.
func (p *parser) parseValue(field string, explicit bool) (Node, error) {
	tok := p.peek()
	switch {
	case tok.kind == tokLParen:
		p.next()
		inner, err := p.parseQuery(field)
		if err != nil {
			return nil, err
		}
		if closing := p.peek(); closing.kind != tokRParen {
			return nil, p.errorf(closing, "missing ')' to close '(' at position %d", tok.pos)
		}
		p.next()
		return p.boost(Group{Child: inner})

	case tok.kind == tokLBracket || tok.kind == tokLBrace:
		return p.parseRange(field)

	case tok.kind == tokQuoted:
		p.next()
		if field == "" {
			return nil, p.errorf(tok, "missing field name for %s", tok.raw)
		}
		var node Node = Field{Field: field, Value: tok.text, Quoted: true}
		if p.peek().kind == tokTilde {
			tilde := p.next()
			node = Slop{Child: node, Distance: p.adjacentNumber(tilde)}
		}
		return p.boost(node)

	case tok.kind == tokRegexp:
		p.next()
		if field == "" {
			return nil, p.errorf(tok, "missing field name for %s", tok.raw)
		}
		return p.boost(Regexp{Field: field, Pattern: tok.text})

	case tok.isTerm():
		p.next()
		if tok.raw == "*" && !explicit && field == p.defaultField {
			return p.boost(MatchAll{})
		}
		if field == "" {
			return nil, p.errorf(tok, "missing field name for term %q", tok.text)
		}
		if p.peek().kind == tokTilde {
			tilde := p.next()
			return p.boost(Fuzzy{Field: field, Term: tok.text, Similarity: p.adjacentNumber(tilde)})
		}
		if tok.wildcard {
			return p.boost(Wildcard{Field: field, Pattern: tok.raw})
		}
		return p.boost(Field{Field: field, Value: tok.text})

	default:
		return nil, p.errorf(tok, "expected a term, found %s", tok.kind)
	}
}

func (p *parser) parseRange(field string) (Node, error) {
	open := p.next()
	if field == "" {
		return nil, p.errorf(open, "missing field name for range")
	}

	var lower, upper *string
	var lowerTok, upperTok token

	if p.peek().kind != tokTo {
		b := p.next()
		if b.kind != tokWord && b.kind != tokQuoted {
			return nil, p.errorf(b, "expected range bound, found %s", b.kind)
		}
		lower, lowerTok = boundText(b), b
	}
	if to := p.peek(); to.kind != tokTo {
		return nil, p.errorf(to, "expected TO in range, found %s", to.kind)
	}
	p.next()
	if k := p.peek().kind; k != tokRBracket && k != tokRBrace {
		b := p.next()
		if b.kind != tokWord && b.kind != tokQuoted {
			return nil, p.errorf(b, "expected range bound, found %s", b.kind)
		}
		upper, upperTok = boundText(b), b
	}
	closing := p.next()
	if closing.kind != tokRBracket && closing.kind != tokRBrace {
		return nil, p.errorf(closing, "expected ']' or '}' to close range, found %s", closing.kind)
	}

	lowerInc := open.kind == tokLBracket
	upperInc := closing.kind == tokRBracket

	if p.types != nil {
		if typ, ok := p.types.TypeOf(field); ok && typ.IsNumeric() {
			pr := PointRange{
				Field:          field,
				NumberType:     typ,
				LowerInclusive: lowerInc,
				UpperInclusive: upperInc,
			}
			if lower != nil {
				n, err := criterion.ParseNumber(*lower, typ)
				if err != nil {
					return nil, p.errorf(lowerTok, "lower bound of %s: %v", field, err)
				}
				pr.Lower = &n
			}
			if upper != nil {
				n, err := criterion.ParseNumber(*upper, typ)
				if err != nil {
					return nil, p.errorf(upperTok, "upper bound of %s: %v", field, err)
				}
				pr.Upper = &n
			}
			return p.boost(pr)
		}
	}

	return p.boost(TermRange{
		Field:          field,
		Lower:          lower,
		Upper:          upper,
		LowerInclusive: lowerInc,
		UpperInclusive: upperInc,
	})
}

// boundText normalizes an empty, quoted-empty or '*' bound to nil.
func boundText(b token) *string {
	if b.kind == tokWord && b.raw == "*" {
		return nil
	}
	if strings.TrimSpace(b.text) == "" {
		return nil
	}
	s := b.text
	return &s
}

// boost wraps n when a '^factor' suffix follows.
func (p *parser) boost(n Node) (Node, error) {
	if p.peek().kind != tokCaret {
		return n, nil
	}
	caret := p.next()
	factor := p.adjacentNumber(caret)
	if factor == "" {
		return nil, p.errorf(caret, "'^' must be followed by a boost factor")
	}
	return Boost{Child: n, Factor: factor}, nil
}

// adjacentNumber consumes a numeric word written directly after op.
func (p *parser) adjacentNumber(op token) string {
	tok := p.peek()
	if tok.kind != tokWord || tok.pos != op.end || !isNumeric(tok.text) {
		return ""
	}
	p.next()
	return tok.text
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	dot := false
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9':
		case r == '.' && !dot && i > 0:
			dot = true
		default:
			return false
		}
	}
	return true
}
