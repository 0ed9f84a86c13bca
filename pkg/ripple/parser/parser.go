// Package parser turns a token stream into a Ripple AST using Pratt-style
// recursive descent. Declarations are semicolon-terminated; expression
// precedence runs ||, &&, comparisons, additive, multiplicative, unary.
package parser

import (
	"strconv"

	"github.com/sambeau/ripple/pkg/ripple/ast"
	rerrors "github.com/sambeau/ripple/pkg/ripple/errors"
	"github.com/sambeau/ripple/pkg/ripple/lexer"
)

// Precedence levels for operators
const (
	_ int = iota
	LOWEST
	LOGIC_OR    // ||
	LOGIC_AND   // &&
	EQUALS      // == !=
	LESSGREATER // < <= > >=
	SUM         // + -
	PRODUCT     // * / %
	PREFIX      // -x or !x
	CALL        // sum(xs)
)

// precedences maps tokens to their precedence
var precedences = map[lexer.TokenType]int{
	lexer.OR:       LOGIC_OR,
	lexer.AND:      LOGIC_AND,
	lexer.EQ:       EQUALS,
	lexer.NOT_EQ:   EQUALS,
	lexer.LT:       LESSGREATER,
	lexer.LTE:      LESSGREATER,
	lexer.GT:       LESSGREATER,
	lexer.GTE:      LESSGREATER,
	lexer.PLUS:     SUM,
	lexer.MINUS:    SUM,
	lexer.ASTERISK: PRODUCT,
	lexer.SLASH:    PRODUCT,
	lexer.PERCENT:  PRODUCT,
	lexer.LPAREN:   CALL,
}

// Parser represents the parser
type Parser struct {
	l *lexer.Lexer

	structuredErrors []*rerrors.RippleError

	curToken  lexer.Token
	peekToken lexer.Token

	prefixParseFns map[lexer.TokenType]prefixParseFn
	infixParseFns  map[lexer.TokenType]infixParseFn
}

type (
	prefixParseFn func() ast.Expression
	infixParseFn  func(ast.Expression) ast.Expression
)

// New creates a new parser instance
func New(l *lexer.Lexer) *Parser {
	p := &Parser{l: l}

	p.prefixParseFns = make(map[lexer.TokenType]prefixParseFn)
	p.registerPrefix(lexer.IDENT, p.parseIdentifier)
	p.registerPrefix(lexer.INT, p.parseIntegerLiteral)
	p.registerPrefix(lexer.FLOAT, p.parseFloatLiteral)
	p.registerPrefix(lexer.STRING, p.parseStringLiteral)
	p.registerPrefix(lexer.TRUE, p.parseBooleanLiteral)
	p.registerPrefix(lexer.FALSE, p.parseBooleanLiteral)
	p.registerPrefix(lexer.BANG, p.parsePrefixExpression)
	p.registerPrefix(lexer.MINUS, p.parsePrefixExpression)
	p.registerPrefix(lexer.LPAREN, p.parseGroupedOrLambda)
	p.registerPrefix(lexer.IF, p.parseIfExpression)
	p.registerPrefix(lexer.PRE, p.parsePreExpression)
	p.registerPrefix(lexer.FOLD, p.parseFoldExpression)

	p.infixParseFns = make(map[lexer.TokenType]infixParseFn)
	for _, tt := range []lexer.TokenType{
		lexer.PLUS, lexer.MINUS, lexer.ASTERISK, lexer.SLASH, lexer.PERCENT,
		lexer.EQ, lexer.NOT_EQ, lexer.LT, lexer.LTE, lexer.GT, lexer.GTE,
		lexer.AND, lexer.OR,
	} {
		p.registerInfix(tt, p.parseInfixExpression)
	}
	p.registerInfix(lexer.LPAREN, p.parseCallExpression)

	// Read two tokens, so curToken and peekToken are both set
	p.nextToken()
	p.nextToken()

	return p
}

func (p *Parser) registerPrefix(tokenType lexer.TokenType, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

func (p *Parser) registerInfix(tokenType lexer.TokenType, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}

// StructuredErrors returns all collected parse errors.
func (p *Parser) StructuredErrors() []*rerrors.RippleError {
	return p.structuredErrors
}

// Errors returns the collected errors as plain strings.
func (p *Parser) Errors() []string {
	out := make([]string, 0, len(p.structuredErrors))
	for _, e := range p.structuredErrors {
		out = append(out, e.String())
	}
	return out
}

func (p *Parser) addError(code string, tok lexer.Token, data map[string]any) {
	err := rerrors.NewWithPosition(code, tok.Line, tok.Column, data)
	if f := p.l.Filename(); f != "<input>" {
		err = err.WithFile(f)
	}
	p.structuredErrors = append(p.structuredErrors, err)
}

func (p *Parser) nextToken() {
	p.curToken = p.peekToken
	p.peekToken = p.l.NextToken()
}

func (p *Parser) curTokenIs(t lexer.TokenType) bool  { return p.curToken.Type == t }
func (p *Parser) peekTokenIs(t lexer.TokenType) bool { return p.peekToken.Type == t }

func (p *Parser) expectPeek(t lexer.TokenType) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(t)
	return false
}

func (p *Parser) peekError(t lexer.TokenType) {
	p.addError("PARSE-0001", p.peekToken, map[string]any{
		"Expected": t.String(),
		"Got":      describeToken(p.peekToken),
	})
}

func (p *Parser) peekPrecedence() int {
	if prec, ok := precedences[p.peekToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func (p *Parser) curPrecedence() int {
	if prec, ok := precedences[p.curToken.Type]; ok {
		return prec
	}
	return LOWEST
}

func describeToken(tok lexer.Token) string {
	if tok.Type == lexer.EOF {
		return "end of file"
	}
	return tok.Literal
}

// parserState holds everything needed to rewind a speculative parse
type parserState struct {
	lex      lexer.LexerState
	cur      lexer.Token
	peek     lexer.Token
	errCount int
}

func (p *Parser) save() parserState {
	return parserState{
		lex:      p.l.SaveState(),
		cur:      p.curToken,
		peek:     p.peekToken,
		errCount: len(p.structuredErrors),
	}
}

func (p *Parser) restore(s parserState) {
	p.l.RestoreState(s.lex)
	p.curToken = s.cur
	p.peekToken = s.peek
	p.structuredErrors = p.structuredErrors[:s.errCount]
}

// ParseProgram parses the whole declaration list.
func (p *Parser) ParseProgram() *ast.Program {
	program := &ast.Program{}

	for !p.curTokenIs(lexer.EOF) {
		decl := p.parseDeclaration()
		if decl != nil {
			program.Declarations = append(program.Declarations, decl)
		} else {
			p.synchronize()
		}
		p.nextToken()
	}

	return program
}

// synchronize skips tokens up to the next semicolon so one bad
// declaration doesn't cascade into the rest of the file.
func (p *Parser) synchronize() {
	for !p.curTokenIs(lexer.SEMICOLON) && !p.curTokenIs(lexer.EOF) {
		p.nextToken()
	}
}

func (p *Parser) parseDeclaration() ast.Declaration {
	switch p.curToken.Type {
	case lexer.SOURCE:
		return p.parseSourceDecl()
	case lexer.STREAM:
		return p.parseStreamDecl()
	case lexer.SINK:
		return p.parseSinkDecl()
	case lexer.ILLEGAL:
		p.addError("LEX-0001", p.curToken, map[string]any{"Message": p.curToken.Literal})
		return nil
	default:
		p.addError("PARSE-0004", p.curToken, map[string]any{"Token": describeToken(p.curToken)})
		return nil
	}
}

func (p *Parser) parseSourceDecl() ast.Declaration {
	decl := &ast.SourceDecl{Token: p.curToken}

	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	decl.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if p.peekTokenIs(lexer.COLON) {
		p.nextToken()
		p.nextToken()
		if !lexer.IsTypeName(p.curToken.Type) {
			p.addError("PARSE-0001", p.curToken, map[string]any{
				"Expected": "a type (int, float, bool, string)",
				"Got":      describeToken(p.curToken),
			})
			return nil
		}
		decl.Type = p.curToken.Literal
	}

	if p.peekTokenIs(lexer.DEFINE) {
		p.nextToken()
		p.nextToken()
		decl.Init = p.parseExpression(LOWEST)
		if decl.Init == nil {
			return nil
		}
	}

	if !p.expectPeek(lexer.SEMICOLON) {
		return nil
	}
	return decl
}

func (p *Parser) parseStreamDecl() ast.Declaration {
	decl := &ast.StreamDecl{Token: p.curToken}

	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	decl.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if !p.expectPeek(lexer.BIND) {
		return nil
	}
	p.nextToken()

	decl.Expr = p.parseExpression(LOWEST)
	if decl.Expr == nil {
		return nil
	}

	if !p.expectPeek(lexer.SEMICOLON) {
		return nil
	}
	return decl
}

func (p *Parser) parseSinkDecl() ast.Declaration {
	decl := &ast.SinkDecl{Token: p.curToken}

	if !p.expectPeek(lexer.IDENT) {
		return nil
	}
	decl.Name = &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}

	if !p.expectPeek(lexer.BIND) {
		return nil
	}
	p.nextToken()

	decl.Expr = p.parseExpression(LOWEST)
	if decl.Expr == nil {
		return nil
	}

	if !p.expectPeek(lexer.SEMICOLON) {
		return nil
	}
	return decl
}

func (p *Parser) parseExpression(precedence int) ast.Expression {
	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		if p.curTokenIs(lexer.ILLEGAL) {
			p.addError("LEX-0001", p.curToken, map[string]any{"Message": p.curToken.Literal})
		} else {
			p.addError("PARSE-0002", p.curToken, map[string]any{"Token": describeToken(p.curToken)})
		}
		return nil
	}
	leftExp := prefix()
	if leftExp == nil {
		return nil
	}

	for !p.peekTokenIs(lexer.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return leftExp
		}
		p.nextToken()
		leftExp = infix(leftExp)
		if leftExp == nil {
			return nil
		}
	}

	return leftExp
}

func (p *Parser) parseIdentifier() ast.Expression {
	return &ast.Identifier{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseIntegerLiteral() ast.Expression {
	value, err := strconv.ParseInt(p.curToken.Literal, 10, 64)
	if err != nil {
		p.addError("PARSE-0003", p.curToken, map[string]any{"Literal": p.curToken.Literal})
		return nil
	}
	return &ast.IntegerLiteral{Token: p.curToken, Value: value}
}

func (p *Parser) parseFloatLiteral() ast.Expression {
	value, err := strconv.ParseFloat(p.curToken.Literal, 64)
	if err != nil {
		p.addError("PARSE-0003", p.curToken, map[string]any{"Literal": p.curToken.Literal})
		return nil
	}
	return &ast.FloatLiteral{Token: p.curToken, Value: value}
}

func (p *Parser) parseStringLiteral() ast.Expression {
	return &ast.StringLiteral{Token: p.curToken, Value: p.curToken.Literal}
}

func (p *Parser) parseBooleanLiteral() ast.Expression {
	return &ast.BooleanLiteral{Token: p.curToken, Value: p.curTokenIs(lexer.TRUE)}
}

func (p *Parser) parsePrefixExpression() ast.Expression {
	expr := &ast.PrefixExpression{
		Token:    p.curToken,
		Operator: p.curToken.Literal,
	}
	p.nextToken()
	expr.Right = p.parseExpression(PREFIX)
	if expr.Right == nil {
		return nil
	}
	return expr
}

func (p *Parser) parseInfixExpression(left ast.Expression) ast.Expression {
	expr := &ast.InfixExpression{
		Token:    p.curToken,
		Left:     left,
		Operator: p.curToken.Literal,
	}
	precedence := p.curPrecedence()
	p.nextToken()
	expr.Right = p.parseExpression(precedence)
	if expr.Right == nil {
		return nil
	}
	return expr
}

// parseGroupedOrLambda disambiguates '(expr)' from '(p1, p2) => body'
// by speculative scanning with lexer state save/restore.
func (p *Parser) parseGroupedOrLambda() ast.Expression {
	if p.lambdaAhead() {
		return p.parseLambdaLiteral()
	}

	p.nextToken()
	exp := p.parseExpression(LOWEST)
	if exp == nil {
		return nil
	}
	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	return exp
}

// lambdaAhead reports whether the tokens from the current '(' spell a
// lambda parameter list followed by '=>'. Leaves the parser untouched.
func (p *Parser) lambdaAhead() bool {
	state := p.save()
	defer p.restore(state)

	if !p.curTokenIs(lexer.LPAREN) {
		return false
	}

	// () =>
	if p.peekTokenIs(lexer.RPAREN) {
		p.nextToken()
		return p.peekTokenIs(lexer.ARROW)
	}

	for {
		if !p.peekTokenIs(lexer.IDENT) {
			return false
		}
		p.nextToken() // onto IDENT
		switch p.peekToken.Type {
		case lexer.COMMA:
			p.nextToken()
		case lexer.RPAREN:
			p.nextToken()
			return p.peekTokenIs(lexer.ARROW)
		default:
			return false
		}
	}
}

func (p *Parser) parseLambdaLiteral() ast.Expression {
	lit := &ast.LambdaLiteral{Token: p.curToken}

	for !p.peekTokenIs(lexer.RPAREN) {
		if !p.expectPeek(lexer.IDENT) {
			return nil
		}
		lit.Parameters = append(lit.Parameters,
			&ast.Identifier{Token: p.curToken, Value: p.curToken.Literal})
		if p.peekTokenIs(lexer.COMMA) {
			p.nextToken()
		}
	}
	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	if !p.expectPeek(lexer.ARROW) {
		return nil
	}
	p.nextToken()

	lit.Body = p.parseExpression(LOWEST)
	if lit.Body == nil {
		return nil
	}
	return lit
}

func (p *Parser) parseIfExpression() ast.Expression {
	expr := &ast.IfExpression{Token: p.curToken}

	p.nextToken()
	expr.Condition = p.parseExpression(LOWEST)
	if expr.Condition == nil {
		return nil
	}

	if !p.expectPeek(lexer.THEN) {
		return nil
	}
	p.nextToken()
	expr.Then = p.parseExpression(LOWEST)
	if expr.Then == nil {
		return nil
	}

	if !p.expectPeek(lexer.ELSE) {
		return nil
	}
	p.nextToken()
	expr.Else = p.parseExpression(LOWEST)
	if expr.Else == nil {
		return nil
	}

	if !p.expectPeek(lexer.END) {
		return nil
	}

	return expr
}

func (p *Parser) parsePreExpression() ast.Expression {
	expr := &ast.PreExpression{Token: p.curToken}

	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}
	if !p.peekTokenIs(lexer.IDENT) {
		p.addError("PARSE-0006", p.peekToken, map[string]any{"Got": describeToken(p.peekToken)})
		return nil
	}
	p.nextToken()
	expr.Name = p.curToken.Literal

	if !p.expectPeek(lexer.COMMA) {
		return nil
	}
	p.nextToken()
	expr.Init = p.parseExpression(LOWEST)
	if expr.Init == nil {
		return nil
	}

	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	return expr
}

func (p *Parser) parseFoldExpression() ast.Expression {
	expr := &ast.FoldExpression{Token: p.curToken}

	if !p.expectPeek(lexer.LPAREN) {
		return nil
	}
	p.nextToken()
	expr.Stream = p.parseExpression(LOWEST)
	if expr.Stream == nil {
		return nil
	}

	if !p.expectPeek(lexer.COMMA) {
		return nil
	}
	p.nextToken()
	expr.Init = p.parseExpression(LOWEST)
	if expr.Init == nil {
		return nil
	}

	if !p.expectPeek(lexer.COMMA) {
		return nil
	}
	p.nextToken()
	fn := p.parseExpression(LOWEST)
	if fn == nil {
		return nil
	}
	lambda, ok := fn.(*ast.LambdaLiteral)
	if !ok {
		p.addError("PARSE-0005", expr.Token, nil)
		return nil
	}
	expr.Fn = lambda

	if !p.expectPeek(lexer.RPAREN) {
		return nil
	}
	return expr
}

func (p *Parser) parseCallExpression(left ast.Expression) ast.Expression {
	ident, ok := left.(*ast.Identifier)
	if !ok {
		p.addError("PARSE-0002", p.curToken, map[string]any{"Token": "("})
		return nil
	}

	expr := &ast.CallExpression{Token: p.curToken, Name: ident.Value}
	expr.Arguments = p.parseExpressionList(lexer.RPAREN)
	if expr.Arguments == nil && len(p.structuredErrors) > 0 {
		return nil
	}
	return expr
}

func (p *Parser) parseExpressionList(end lexer.TokenType) []ast.Expression {
	list := []ast.Expression{}

	if p.peekTokenIs(end) {
		p.nextToken()
		return list
	}

	p.nextToken()
	first := p.parseExpression(LOWEST)
	if first == nil {
		return nil
	}
	list = append(list, first)

	for p.peekTokenIs(lexer.COMMA) {
		p.nextToken()
		p.nextToken()
		next := p.parseExpression(LOWEST)
		if next == nil {
			return nil
		}
		list = append(list, next)
	}

	if !p.expectPeek(end) {
		return nil
	}

	return list
}
