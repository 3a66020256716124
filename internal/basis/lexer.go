package basis

import (
	"strconv"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokLParen
	tokRParen
	tokComma
	tokPlus
	tokMinus
	tokTilde
	tokBar
	tokLBracket
	tokRBracket
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

func lex(field, input string) ([]token, error) {
	var toks []token
	rs := []rune(input)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case r == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++
		case r == '+':
			toks = append(toks, token{kind: tokPlus, text: "+", pos: i})
			i++
		case r == '~':
			toks = append(toks, token{kind: tokTilde, text: "~", pos: i})
			i++
		case r == '|':
			toks = append(toks, token{kind: tokBar, text: "|", pos: i})
			i++
		case r == '[':
			toks = append(toks, token{kind: tokLBracket, text: "[", pos: i})
			i++
		case r == ']':
			toks = append(toks, token{kind: tokRBracket, text: "]", pos: i})
			i++
		case r == '-' && !(i+1 < len(rs) && isNumberStart(rs[i+1])):
			toks = append(toks, token{kind: tokMinus, text: "-", pos: i})
			i++
		case r == '-' || isNumberStart(r):
			start := i
			i++
			for i < len(rs) && (unicode.IsDigit(rs[i]) || rs[i] == '.' || rs[i] == 'e' || rs[i] == 'E' ||
				((rs[i] == '-' || rs[i] == '+') && (rs[i-1] == 'e' || rs[i-1] == 'E'))) {
				i++
			}
			text := string(rs[start:i])
			v, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &SyntaxError{Field: field, Input: input, Pos: start, Msg: "malformed number " + strconv.Quote(text)}
			}
			toks = append(toks, token{kind: tokNumber, text: text, num: v, pos: start})
		case r == '_' || unicode.IsLetter(r):
			start := i
			for i < len(rs) && (rs[i] == '_' || unicode.IsLetter(rs[i]) || unicode.IsDigit(rs[i])) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: string(rs[start:i]), pos: start})
		default:
			return nil, &SyntaxError{Field: field, Input: input, Pos: i, Msg: "unexpected character " + strconv.QuoteRune(r)}
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(rs)}), nil
}

func isNumberStart(r rune) bool {
	return unicode.IsDigit(r) || r == '.'
}

// cursor walks a token slice.
type cursor struct {
	field string
	input string
	toks  []token
	i     int
}

func (c *cursor) peek() token { return c.toks[c.i] }

func (c *cursor) next() token {
	t := c.toks[c.i]
	if t.kind != tokEOF {
		c.i++
	}
	return t
}

func (c *cursor) accept(kind tokenKind) bool {
	if c.peek().kind == kind {
		c.next()
		return true
	}
	return false
}

func (c *cursor) fail(t token, msg string) error {
	return &SyntaxError{Field: c.field, Input: c.input, Pos: t.pos, Msg: msg}
}
