package aql

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokIdent
	tokString
	tokInteger
	tokReal
	tokParam
	tokPunct
	tokOp
)

type token struct {
	typ tokenType
	val string
	pos int
}

func (t token) String() string {
	switch t.typ {
	case tokEOF:
		return "end of query"
	case tokString:
		return fmt.Sprintf("'%s'", t.val)
	case tokParam:
		return "$" + t.val
	}
	return t.val
}

// is reports whether t is the keyword kw (case insensitive).
func (t token) is(kw string) bool {
	return t.typ == tokIdent && strings.EqualFold(t.val, kw)
}

func (t token) punct(p string) bool {
	return t.typ == tokPunct && t.val == p
}

type lexer struct {
	input string
	pos   int
}

func (l *lexer) errorf(pos int, format string, args ...interface{}) error {
	return fmt.Errorf("at position %d: %s", pos, fmt.Sprintf(format, args...))
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			l.pos++
		case c == '-' && strings.HasPrefix(l.input[l.pos:], "--"):
			for l.pos < len(l.input) && l.input[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *lexer) next() (token, error) {
	l.skipSpace()
	start := l.pos
	if l.pos >= len(l.input) {
		return token{typ: tokEOF, pos: start}, nil
	}
	c := rune(l.input[l.pos])

	switch {
	case isIdentStart(c):
		l.pos++
		for l.pos < len(l.input) && isIdentPart(rune(l.input[l.pos])) {
			l.pos++
		}
		// archetype ids and at-codes carry '-' and '.', e.g. openEHR-EHR-OBSERVATION.bp.v1
		for l.pos+1 < len(l.input) &&
			(l.input[l.pos] == '-' || l.input[l.pos] == '.') &&
			isIdentPart(rune(l.input[l.pos+1])) {
			l.pos++
			for l.pos < len(l.input) && isIdentPart(rune(l.input[l.pos])) {
				l.pos++
			}
		}
		return token{typ: tokIdent, val: l.input[start:l.pos], pos: start}, nil

	case c >= '0' && c <= '9', c == '-' && l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1]):
		l.pos++
		typ := tokInteger
		for l.pos < len(l.input) {
			ch := l.input[l.pos]
			if isDigit(ch) {
				l.pos++
				continue
			}
			if (ch == '.' || ch == 'e' || ch == 'E') && typ == tokInteger &&
				l.pos+1 < len(l.input) && isDigit(l.input[l.pos+1]) {
				typ = tokReal
				l.pos++
				continue
			}
			break
		}
		return token{typ: typ, val: l.input[start:l.pos], pos: start}, nil

	case c == '\'' || c == '"':
		return l.lexString(byte(c))

	case c == '$':
		l.pos++
		s := l.pos
		for l.pos < len(l.input) && isIdentPart(rune(l.input[l.pos])) {
			l.pos++
		}
		if s == l.pos {
			return token{}, l.errorf(start, "parameter name expected")
		}
		return token{typ: tokParam, val: l.input[s:l.pos], pos: start}, nil

	case c == '!' || c == '<' || c == '>' || c == '=':
		for _, op := range []string{"!=", "<>", "<=", ">=", "=", "<", ">"} {
			if strings.HasPrefix(l.input[l.pos:], op) {
				l.pos += len(op)
				if op == "<>" {
					op = "!="
				}
				return token{typ: tokOp, val: op, pos: start}, nil
			}
		}

	case strings.ContainsRune("[](){},/*", c):
		l.pos++
		return token{typ: tokPunct, val: string(c), pos: start}, nil
	}

	return token{}, l.errorf(start, "unexpected character %q", c)
}

func (l *lexer) lexString(q byte) (token, error) {
	start := l.pos
	l.pos++

	var sb strings.Builder
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case c == '\\' && l.pos+1 < len(l.input):
			sb.WriteByte(l.input[l.pos+1])
			l.pos += 2
		case c == q:
			l.pos++
			return token{typ: tokString, val: sb.String(), pos: start}, nil
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}
	return token{}, l.errorf(start, "unterminated string")
}

func isIdentStart(c rune) bool {
	return c == '_' || unicode.IsLetter(c)
}

func isIdentPart(c rune) bool {
	return c == '_' || unicode.IsLetter(c) || unicode.IsDigit(c)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
