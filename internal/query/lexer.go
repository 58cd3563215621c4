package query

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokWord
	tokQuoted
	tokRegexp
	tokColon
	tokLParen
	tokRParen
	tokLBracket
	tokRBracket
	tokLBrace
	tokRBrace
	tokPlus
	tokMinus
	tokBang
	tokAnd
	tokOr
	tokNot
	tokTo
	tokTilde
	tokCaret
)

var tokenNames = map[tokenKind]string{
	tokEOF:      "end of query",
	tokWord:     "term",
	tokQuoted:   "quoted term",
	tokRegexp:   "regular expression",
	tokColon:    "':'",
	tokLParen:   "'('",
	tokRParen:   "')'",
	tokLBracket: "'['",
	tokRBracket: "']'",
	tokLBrace:   "'{'",
	tokRBrace:   "'}'",
	tokPlus:     "'+'",
	tokMinus:    "'-'",
	tokBang:     "'!'",
	tokAnd:      "AND",
	tokOr:       "OR",
	tokNot:      "NOT",
	tokTo:       "TO",
	tokTilde:    "'~'",
	tokCaret:    "'^'",
}

func (k tokenKind) String() string { return tokenNames[k] }

// token is one lexeme. Text has escapes resolved; Raw is the source slice.
type token struct {
	kind     tokenKind
	text     string
	raw      string
	pos      int
	end      int
	wildcard bool // word contains an unescaped '*'
}

// isTerm reports whether the token can stand for a term value. Keywords
// count: "code:TO" searches for the text TO.
func (t token) isTerm() bool {
	switch t.kind {
	case tokWord, tokAnd, tokOr, tokNot, tokTo:
		return true
	}
	return false
}

var punctuation = map[byte]tokenKind{
	'(': tokLParen, ')': tokRParen,
	'[': tokLBracket, ']': tokRBracket,
	'{': tokLBrace, '}': tokRBrace,
	'^': tokCaret, '~': tokTilde,
}

var keywords = map[string]tokenKind{
	"AND": tokAnd,
	"OR":  tokOr,
	"NOT": tokNot,
	"TO":  tokTo,
}

// lex splits a query into tokens, ending with tokEOF.
//
// Context decides two ambiguous characters:
//   - '+', '-' and '!' are modifiers only at the start of a clause, so
//     altitude:-8848 is a negative number and a -b prohibits b.
//   - ':' separates field from value only in the first colon of a clause;
//     values and range bounds may contain colons (dates).
func lex(src string) ([]token, error) {
	l := &lexer{src: src}
	for {
		tok, err := l.next()
		if err != nil {
			return nil, err
		}
		l.toks = append(l.toks, tok)
		if tok.kind == tokEOF {
			return l.toks, nil
		}
	}
}

type lexer struct {
	src  string
	pos  int
	toks []token
}

func (l *lexer) prev() tokenKind {
	if len(l.toks) == 0 {
		return tokEOF
	}
	return l.toks[len(l.toks)-1].kind
}

// valueContext reports whether the next token is a value or range bound.
func (l *lexer) valueContext() bool {
	switch l.prev() {
	case tokColon, tokLBracket, tokLBrace, tokTo:
		return true
	}
	return false
}

// clauseStart reports whether a modifier may begin here: after an
// operator, another modifier or '(', or after whitespace.
func (l *lexer) clauseStart() bool {
	if l.valueContext() {
		return false
	}
	if l.pos == 0 {
		return true
	}
	switch l.prev() {
	case tokAnd, tokOr, tokNot, tokPlus, tokMinus, tokBang, tokLParen:
		return true
	}
	r, _ := utf8.DecodeLastRuneInString(l.src[:l.pos])
	return unicode.IsSpace(r) || r == '('
}

func (l *lexer) emit(kind tokenKind, start int) token {
	return token{kind: kind, text: l.src[start:l.pos], raw: l.src[start:l.pos], pos: start, end: l.pos}
}

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		if !unicode.IsSpace(r) {
			break
		}
		l.pos += size
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos, end: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]

	if strings.HasPrefix(l.src[l.pos:], "&&") {
		l.pos += 2
		return l.emit(tokAnd, start), nil
	}
	if strings.HasPrefix(l.src[l.pos:], "||") {
		l.pos += 2
		return l.emit(tokOr, start), nil
	}

	if kind, ok := punctuation[c]; ok {
		l.pos++
		return l.emit(kind, start), nil
	}
	if c == ':' && !l.valueContext() {
		l.pos++
		return l.emit(tokColon, start), nil
	}

	if l.clauseStart() {
		switch c {
		case '+':
			l.pos++
			return l.emit(tokPlus, start), nil
		case '-':
			l.pos++
			return l.emit(tokMinus, start), nil
		case '!':
			l.pos++
			return l.emit(tokBang, start), nil
		}
	}

	switch {
	case c == '"':
		return l.quoted()
	case c == '/' && (l.prev() == tokColon || l.clauseStart()):
		return l.regexp()
	}
	return l.word()
}

func (l *lexer) quoted() (token, error) {
	start := l.pos
	l.pos++ // opening quote
	var sb strings.Builder
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		switch r {
		case '\\':
			l.pos += size
			if l.pos >= len(l.src) {
				return token{}, newParseError(l.src, start, "unterminated quoted term")
			}
			er, esize := utf8.DecodeRuneInString(l.src[l.pos:])
			sb.WriteRune(er)
			l.pos += esize
		case '"':
			l.pos += size
			return token{kind: tokQuoted, text: sb.String(), raw: l.src[start:l.pos], pos: start, end: l.pos}, nil
		default:
			sb.WriteRune(r)
			l.pos += size
		}
	}
	return token{}, newParseError(l.src, start, "unterminated quoted term")
}

func (l *lexer) regexp() (token, error) {
	start := l.pos
	l.pos++ // opening slash
	for l.pos < len(l.src) {
		switch l.src[l.pos] {
		case '\\':
			l.pos += 2
		case '/':
			l.pos++
			return token{kind: tokRegexp, text: l.src[start+1 : l.pos-1], raw: l.src[start:l.pos], pos: start, end: l.pos}, nil
		default:
			l.pos++
		}
	}
	return token{}, newParseError(l.src, start, "unterminated regular expression")
}

func (l *lexer) word() (token, error) {
	start := l.pos
	allowColon := l.valueContext()
	var sb strings.Builder
	escaped := false
	wildcard := false

loop:
	for l.pos < len(l.src) {
		r, size := utf8.DecodeRuneInString(l.src[l.pos:])
		switch {
		case unicode.IsSpace(r):
			break loop
		case r == '\\':
			if l.pos+size >= len(l.src) {
				return token{}, newParseError(l.src, l.pos, "dangling escape character")
			}
			er, esize := utf8.DecodeRuneInString(l.src[l.pos+size:])
			sb.WriteRune(er)
			escaped = true
			l.pos += size + esize
			continue
		case strings.ContainsRune(`()[]{}"^~`, r):
			break loop
		case r == ':' && !allowColon:
			break loop
		case strings.HasPrefix(l.src[l.pos:], "&&"), strings.HasPrefix(l.src[l.pos:], "||"):
			break loop
		case r == '*':
			wildcard = true
		}
		sb.WriteRune(r)
		l.pos += size
	}

	tok := token{
		kind:     tokWord,
		text:     sb.String(),
		raw:      l.src[start:l.pos],
		pos:      start,
		end:      l.pos,
		wildcard: wildcard,
	}
	if !escaped && l.prev() != tokColon {
		if kw, ok := keywords[tok.text]; ok {
			tok.kind = kw
		}
	}
	return tok, nil
}
