package formula

import (
	"strconv"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokLBracket
	tokRBracket
	tokString
	tokIdent
	tokNumber
	tokCompare
	tokComma
	tokColon
	tokLParen
	tokRParen
	tokPlus
	tokMinus
	tokStar
	tokSlash
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

// smartQuotes maps the typographic quotes spreadsheets substitute for '"'
var smartQuotes = strings.NewReplacer("“", `"`, "”", `"`, "„", `"`)

// lex splits src into tokens. Whitespace is dropped; identifiers are letters
// only so that `C1` reads as operator C followed by value 1.
func lex(src string) ([]token, error) {
	src = smartQuotes.Replace(src)
	var toks []token
	rs := []rune(src)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '[':
			toks = append(toks, token{tokLBracket, "[", i})
			i++
		case r == ']':
			toks = append(toks, token{tokRBracket, "]", i})
			i++
		case r == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case r == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case r == ':':
			toks = append(toks, token{tokColon, ":", i})
			i++
		case r == '+':
			toks = append(toks, token{tokPlus, "+", i})
			i++
		case r == '-':
			toks = append(toks, token{tokMinus, "-", i})
			i++
		case r == '*':
			toks = append(toks, token{tokStar, "*", i})
			i++
		case r == '/':
			toks = append(toks, token{tokSlash, "/", i})
			i++
		case r == '"':
			end := i + 1
			for end < len(rs) && rs[end] != '"' {
				end++
			}
			if end >= len(rs) {
				return nil, newParseError(src, i, "unterminated variable name")
			}
			toks = append(toks, token{tokString, string(rs[i+1 : end]), i})
			i = end + 1
		case r == '=':
			toks = append(toks, token{tokCompare, "=", i})
			i++
		case r == '!':
			if i+1 < len(rs) && rs[i+1] == '=' {
				toks = append(toks, token{tokCompare, "!=", i})
				i += 2
				continue
			}
			return nil, newParseError(src, i, "unexpected '!'")
		case r == '<' || r == '>':
			if i+1 < len(rs) && rs[i+1] == '=' {
				toks = append(toks, token{tokCompare, string(r) + "=", i})
				i += 2
				continue
			}
			toks = append(toks, token{tokCompare, string(r), i})
			i++
		case unicode.IsDigit(r) || (r == '.' && i+1 < len(rs) && unicode.IsDigit(rs[i+1])):
			start := i
			seenDot := false
			for i < len(rs) && (unicode.IsDigit(rs[i]) || (rs[i] == '.' && !seenDot)) {
				if rs[i] == '.' {
					seenDot = true
				}
				i++
			}
			toks = append(toks, token{tokNumber, string(rs[start:i]), start})
		case unicode.IsLetter(r):
			start := i
			for i < len(rs) && unicode.IsLetter(rs[i]) {
				i++
			}
			toks = append(toks, token{tokIdent, string(rs[start:i]), start})
		default:
			return nil, newParseError(src, i, "unexpected character "+strconv.QuoteRune(r))
		}
	}
	toks = append(toks, token{tokEOF, "", len(rs)})
	return toks, nil
}
