package parser

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNewline
	tokenIdent
	tokenInt
	tokenFloat
	tokenString
	tokenKeyword
	tokenOperator
	tokenLParen
	tokenRParen
	tokenLBrace
	tokenRBrace
	tokenLBracket
	tokenRBracket
	tokenComma
	tokenDot
	tokenSemicolon
)

func (k tokenKind) String() string {
	switch k {
	case tokenEOF:
		return "end of input"
	case tokenNewline:
		return "newline"
	case tokenIdent:
		return "identifier"
	case tokenInt:
		return "integer"
	case tokenFloat:
		return "float"
	case tokenString:
		return "string"
	case tokenKeyword:
		return "keyword"
	case tokenOperator:
		return "operator"
	case tokenLParen:
		return "'('"
	case tokenRParen:
		return "')'"
	case tokenLBrace:
		return "'{'"
	case tokenRBrace:
		return "'}'"
	case tokenLBracket:
		return "'['"
	case tokenRBracket:
		return "']'"
	case tokenComma:
		return "','"
	case tokenDot:
		return "'.'"
	case tokenSemicolon:
		return "';'"
	default:
		return fmt.Sprintf("token(%d)", int(k))
	}
}

type token struct {
	kind   tokenKind
	text   string
	line   int
	column int
}

var keywords = map[string]bool{
	"fn":       true,
	"class":    true,
	"init":     true,
	"sync":     true,
	"static":   true,
	"if":       true,
	"else":     true,
	"while":    true,
	"return":   true,
	"break":    true,
	"continue": true,
	"true":     true,
	"false":    true,
	"nil":      true,
}

// lex tokenizes source. Newlines separate statements, except inside
// parentheses or brackets where they are insignificant.
func lex(source string) ([]token, error) {
	var tokens []token
	runes := []rune(source)
	pos := 0
	line, column := 1, 1
	groupDepth := 0

	emit := func(kind tokenKind, text string, ln, col int) {
		tokens = append(tokens, token{kind: kind, text: text, line: ln, column: col})
	}

	for pos < len(runes) {
		ch := runes[pos]
		startLine, startCol := line, column

		advance := func() {
			if runes[pos] == '\n' {
				line++
				column = 1
			} else {
				column++
			}
			pos++
		}

		switch {
		case ch == '\n':
			advance()
			if groupDepth == 0 {
				emit(tokenNewline, "\n", startLine, startCol)
			}
		case ch == ' ' || ch == '\t' || ch == '\r':
			advance()
		case ch == '#':
			for pos < len(runes) && runes[pos] != '\n' {
				advance()
			}
		case ch == '(':
			groupDepth++
			emit(tokenLParen, "(", startLine, startCol)
			advance()
		case ch == ')':
			if groupDepth > 0 {
				groupDepth--
			}
			emit(tokenRParen, ")", startLine, startCol)
			advance()
		case ch == '[':
			groupDepth++
			emit(tokenLBracket, "[", startLine, startCol)
			advance()
		case ch == ']':
			if groupDepth > 0 {
				groupDepth--
			}
			emit(tokenRBracket, "]", startLine, startCol)
			advance()
		case ch == '{':
			emit(tokenLBrace, "{", startLine, startCol)
			advance()
		case ch == '}':
			emit(tokenRBrace, "}", startLine, startCol)
			advance()
		case ch == ',':
			emit(tokenComma, ",", startLine, startCol)
			advance()
		case ch == '.':
			emit(tokenDot, ".", startLine, startCol)
			advance()
		case ch == ';':
			emit(tokenSemicolon, ";", startLine, startCol)
			advance()
		case ch == '"':
			advance()
			var b strings.Builder
			closed := false
			for pos < len(runes) {
				c := runes[pos]
				if c == '"' {
					advance()
					closed = true
					break
				}
				if c == '\\' && pos+1 < len(runes) {
					advance()
					switch runes[pos] {
					case 'n':
						b.WriteRune('\n')
					case 't':
						b.WriteRune('\t')
					case '\\':
						b.WriteRune('\\')
					case '"':
						b.WriteRune('"')
					default:
						return nil, fmt.Errorf("line %d:%d: unknown escape '\\%c'", line, column, runes[pos])
					}
					advance()
					continue
				}
				b.WriteRune(c)
				advance()
			}
			if !closed {
				return nil, fmt.Errorf("line %d:%d: unterminated string literal", startLine, startCol)
			}
			emit(tokenString, b.String(), startLine, startCol)
		case unicode.IsDigit(ch):
			var b strings.Builder
			isFloat := false
			for pos < len(runes) && (unicode.IsDigit(runes[pos]) || runes[pos] == '.') {
				if runes[pos] == '.' {
					// Member access on an integer literal, or a second dot.
					if isFloat || pos+1 >= len(runes) || !unicode.IsDigit(runes[pos+1]) {
						break
					}
					isFloat = true
				}
				b.WriteRune(runes[pos])
				advance()
			}
			if isFloat {
				emit(tokenFloat, b.String(), startLine, startCol)
			} else {
				emit(tokenInt, b.String(), startLine, startCol)
			}
		case unicode.IsLetter(ch) || ch == '_':
			var b strings.Builder
			for pos < len(runes) && (unicode.IsLetter(runes[pos]) || unicode.IsDigit(runes[pos]) || runes[pos] == '_') {
				b.WriteRune(runes[pos])
				advance()
			}
			word := b.String()
			if keywords[word] {
				emit(tokenKeyword, word, startLine, startCol)
			} else {
				emit(tokenIdent, word, startLine, startCol)
			}
		default:
			op, width := matchOperator(runes[pos:])
			if width == 0 {
				return nil, fmt.Errorf("line %d:%d: unexpected character %q", line, column, ch)
			}
			for n := 0; n < width; n++ {
				advance()
			}
			emit(tokenOperator, op, startLine, startCol)
		}
	}

	tokens = append(tokens, token{kind: tokenEOF, line: line, column: column})
	return tokens, nil
}

var twoCharOps = []string{"==", "!=", "<=", ">=", "&&", "||"}
var oneCharOps = "+-*/%<>=!"

func matchOperator(rest []rune) (string, int) {
	if len(rest) >= 2 {
		two := string(rest[:2])
		for _, op := range twoCharOps {
			if two == op {
				return op, 2
			}
		}
	}
	if strings.ContainsRune(oneCharOps, rest[0]) {
		return string(rest[0]), 1
	}
	return "", 0
}
