// Package parser turns Quill source text into pkg/ast nodes.
package parser

import (
	"fmt"
	"strconv"

	"quill/interpreter-go/pkg/ast"
)

// ParseModule parses a whole source file. name is used for diagnostics and
// module identity (usually the file path).
func ParseModule(source, name string) (*ast.Module, error) {
	tokens, err := lex(source)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	var body []ast.Statement
	p.skipSeparators()
	for !p.at(tokenEOF) {
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmt)
		if err := p.expectSeparator(); err != nil {
			return nil, err
		}
		p.skipSeparators()
	}
	return ast.NewModule(body, name), nil
}

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) at(kind tokenKind) bool {
	return p.peek().kind == kind
}

func (p *parser) atKeyword(word string) bool {
	t := p.peek()
	return t.kind == tokenKeyword && t.text == word
}

func (p *parser) atOperator(op string) bool {
	t := p.peek()
	return t.kind == tokenOperator && t.text == op
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.peek()
	if t.kind != kind {
		return t, p.errorf(t, "expected %s, got %s", kind, describe(t))
	}
	return p.next(), nil
}

func (p *parser) expectKeyword(word string) (token, error) {
	t := p.peek()
	if t.kind != tokenKeyword || t.text != word {
		return t, p.errorf(t, "expected '%s', got %s", word, describe(t))
	}
	return p.next(), nil
}

func (p *parser) errorf(t token, format string, args ...any) error {
	return fmt.Errorf("line %d:%d: %s", t.line, t.column, fmt.Sprintf(format, args...))
}

func describe(t token) string {
	switch t.kind {
	case tokenEOF, tokenNewline:
		return t.kind.String()
	default:
		return fmt.Sprintf("%q", t.text)
	}
}

func (p *parser) skipSeparators() {
	for p.at(tokenNewline) || p.at(tokenSemicolon) {
		p.next()
	}
}

// expectSeparator requires a statement boundary: newline, semicolon, a
// closing brace, or end of input.
func (p *parser) expectSeparator() error {
	t := p.peek()
	switch t.kind {
	case tokenNewline, tokenSemicolon:
		p.next()
		return nil
	case tokenRBrace, tokenEOF:
		return nil
	default:
		return p.errorf(t, "expected end of statement, got %s", describe(t))
	}
}

func (p *parser) parseStatement() (ast.Statement, error) {
	t := p.peek()
	if t.kind == tokenKeyword {
		switch t.text {
		case "fn":
			return p.parseFunctionDeclaration()
		case "class":
			return p.parseClassDeclaration()
		case "init":
			return p.parseMemberInitializer()
		case "sync":
			return p.parseSynchronizedBlock()
		case "static":
			p.next()
			block, err := p.parseBlock()
			if err != nil {
				return nil, err
			}
			block.IsStatic = true
			return block, nil
		case "if":
			return p.parseIfStatement()
		case "while":
			return p.parseWhileStatement()
		case "return":
			p.next()
			if p.at(tokenNewline) || p.at(tokenSemicolon) || p.at(tokenRBrace) || p.at(tokenEOF) {
				return ast.NewReturnStatement(nil), nil
			}
			arg, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			return ast.NewReturnStatement(arg), nil
		case "break":
			p.next()
			return ast.NewBreakStatement(), nil
		case "continue":
			p.next()
			return ast.NewContinueStatement(), nil
		}
	}
	if t.kind == tokenLBrace {
		return p.parseBlock()
	}
	return p.parseExpression()
}

func (p *parser) parseBlock() (*ast.BlockStatement, error) {
	if _, err := p.expect(tokenLBrace); err != nil {
		return nil, err
	}
	var body []ast.Statement
	p.skipSeparators()
	for !p.at(tokenRBrace) {
		if p.at(tokenEOF) {
			return nil, p.errorf(p.peek(), "unterminated block")
		}
		stmt, err := p.parseStatement()
		if err != nil {
			return nil, err
		}
		body = append(body, stmt)
		if err := p.expectSeparator(); err != nil {
			return nil, err
		}
		p.skipSeparators()
	}
	p.next() // consume '}'
	return ast.NewBlockStatement(body), nil
}

func (p *parser) parseFunctionDeclaration() (ast.Statement, error) {
	if _, err := p.expectKeyword("fn"); err != nil {
		return nil, err
	}
	name, err := p.expect(tokenIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokenLParen); err != nil {
		return nil, err
	}
	var params []*ast.Identifier
	for !p.at(tokenRParen) {
		param, err := p.expect(tokenIdent)
		if err != nil {
			return nil, err
		}
		params = append(params, ast.NewIdentifier(param.text))
		if p.at(tokenComma) {
			p.next()
		} else if !p.at(tokenRParen) {
			return nil, p.errorf(p.peek(), "expected ',' or ')' in parameter list")
		}
	}
	p.next() // consume ')'
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return ast.NewFunctionDeclaration(ast.NewIdentifier(name.text), params, body), nil
}

func (p *parser) parseClassDeclaration() (ast.Statement, error) {
	if _, err := p.expectKeyword("class"); err != nil {
		return nil, err
	}
	name, err := p.expect(tokenIdent)
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return ast.NewClassDeclaration(ast.NewIdentifier(name.text), body), nil
}

func (p *parser) parseMemberInitializer() (ast.Statement, error) {
	if _, err := p.expectKeyword("init"); err != nil {
		return nil, err
	}
	name, err := p.expect(tokenIdent)
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return ast.NewMemberInitializer(ast.NewIdentifier(name.text), body), nil
}

func (p *parser) parseSynchronizedBlock() (ast.Statement, error) {
	if _, err := p.expectKeyword("sync"); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokenLParen); err != nil {
		return nil, err
	}
	lock, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokenRParen); err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return ast.NewSynchronizedBlock(lock, body.Body), nil
}

func (p *parser) parseIfStatement() (ast.Statement, error) {
	if _, err := p.expectKeyword("if"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	then, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	var alt ast.Statement
	if p.atKeyword("else") {
		p.next()
		if p.atKeyword("if") {
			alt, err = p.parseIfStatement()
		} else {
			alt, err = p.parseBlock()
		}
		if err != nil {
			return nil, err
		}
	}
	return ast.NewIfStatement(cond, then, alt), nil
}

func (p *parser) parseWhileStatement() (ast.Statement, error) {
	if _, err := p.expectKeyword("while"); err != nil {
		return nil, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return ast.NewWhileStatement(cond, body), nil
}

// Expression parsing: precedence climbing with a postfix loop for calls,
// member access and indexing.

func (p *parser) parseExpression() (ast.Expression, error) {
	return p.parseAssignment()
}

func (p *parser) parseAssignment() (ast.Expression, error) {
	left, err := p.parseBinary(0)
	if err != nil {
		return nil, err
	}
	if p.atOperator("=") {
		switch left.(type) {
		case *ast.Identifier, *ast.MemberAccessExpression, *ast.IndexExpression:
		default:
			return nil, p.errorf(p.peek(), "invalid assignment target")
		}
		p.next()
		value, err := p.parseAssignment()
		if err != nil {
			return nil, err
		}
		return ast.NewAssignmentExpression(left, value), nil
	}
	return left, nil
}

var binaryPrecedence = map[string]int{
	"||": 1,
	"&&": 2,
	"==": 3, "!=": 3,
	"<": 4, "<=": 4, ">": 4, ">=": 4,
	"+": 5, "-": 5,
	"*": 6, "/": 6, "%": 6,
}

func (p *parser) parseBinary(minPrec int) (ast.Expression, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		if t.kind != tokenOperator {
			return left, nil
		}
		prec, ok := binaryPrecedence[t.text]
		if !ok || prec < minPrec {
			return left, nil
		}
		p.next()
		right, err := p.parseBinary(prec + 1)
		if err != nil {
			return nil, err
		}
		left = ast.NewBinaryExpression(t.text, left, right)
	}
}

func (p *parser) parseUnary() (ast.Expression, error) {
	if p.atOperator("-") || p.atOperator("!") {
		op := p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return ast.NewUnaryExpression(ast.UnaryOperator(op.text), operand), nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (ast.Expression, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch {
		case p.at(tokenLParen):
			p.next()
			var args []ast.Expression
			for !p.at(tokenRParen) {
				arg, err := p.parseExpression()
				if err != nil {
					return nil, err
				}
				args = append(args, arg)
				if p.at(tokenComma) {
					p.next()
				} else if !p.at(tokenRParen) {
					return nil, p.errorf(p.peek(), "expected ',' or ')' in argument list")
				}
			}
			p.next()
			expr = ast.NewCallExpression(expr, args)
		case p.at(tokenDot):
			p.next()
			member, err := p.expect(tokenIdent)
			if err != nil {
				return nil, err
			}
			expr = ast.NewMemberAccessExpression(expr, ast.NewIdentifier(member.text))
		case p.at(tokenLBracket):
			p.next()
			index, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokenRBracket); err != nil {
				return nil, err
			}
			expr = ast.NewIndexExpression(expr, index)
		default:
			return expr, nil
		}
	}
}

func (p *parser) parsePrimary() (ast.Expression, error) {
	t := p.peek()
	switch t.kind {
	case tokenInt:
		p.next()
		val, err := strconv.ParseInt(t.text, 10, 64)
		if err != nil {
			return nil, p.errorf(t, "invalid integer literal %q", t.text)
		}
		return ast.NewIntegerLiteral(val), nil
	case tokenFloat:
		p.next()
		val, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return nil, p.errorf(t, "invalid float literal %q", t.text)
		}
		return ast.NewFloatLiteral(val), nil
	case tokenString:
		p.next()
		return ast.NewStringLiteral(t.text), nil
	case tokenIdent:
		p.next()
		return ast.NewIdentifier(t.text), nil
	case tokenKeyword:
		switch t.text {
		case "true":
			p.next()
			return ast.NewBooleanLiteral(true), nil
		case "false":
			p.next()
			return ast.NewBooleanLiteral(false), nil
		case "nil":
			p.next()
			return ast.NewNilLiteral(), nil
		}
		return nil, p.errorf(t, "unexpected keyword '%s' in expression", t.text)
	case tokenLParen:
		p.next()
		expr, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokenRParen); err != nil {
			return nil, err
		}
		return expr, nil
	case tokenLBracket:
		p.next()
		var elements []ast.Expression
		for !p.at(tokenRBracket) {
			el, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			elements = append(elements, el)
			if p.at(tokenComma) {
				p.next()
			} else if !p.at(tokenRBracket) {
				return nil, p.errorf(p.peek(), "expected ',' or ']' in array literal")
			}
		}
		p.next()
		return ast.NewArrayLiteral(elements), nil
	default:
		return nil, p.errorf(t, "unexpected %s in expression", describe(t))
	}
}
