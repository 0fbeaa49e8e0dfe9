package cactusplot

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// The function generator accepts a small arithmetic language over a single
// variable x:
//
//	expr    = term { ("+" | "-") term }
//	term    = unary { ("*" | "/") unary }
//	unary   = ("+" | "-") unary | power
//	power   = primary [ "^" unary ]
//	primary = number | "x" | constant | function "(" expr ")" | "(" expr ")"
//
// "^" binds tighter than unary minus and is right associative, so -x^2 is
// -(x^2) and 2^3^2 is 2^(3^2). Every other binary operator is left
// associative.

// ParseError is returned for malformed expressions. Position is the 0-based
// byte offset into the expression where the problem was detected.
type ParseError struct {
	Position int
	Message  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at position %d: %s", e.Position, e.Message)
}

// UnknownSymbolError is returned when an identifier is neither the variable,
// a known constant, nor a supported function.
type UnknownSymbolError struct {
	Name string
}

func (e *UnknownSymbolError) Error() string {
	return fmt.Sprintf("unknown symbol %q", e.Name)
}

// DomainError is returned when the expression does not evaluate to a finite
// number at X.
type DomainError struct {
	X float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("expression is not finite at x=%g", e.X)
}

var functions = map[string]func(float64) float64{
	"sin":  math.Sin,
	"cos":  math.Cos,
	"tan":  math.Tan,
	"exp":  math.Exp,
	"log":  math.Log,
	"sqrt": math.Sqrt,
	"abs":  math.Abs,
}

var constants = map[string]float64{
	"pi": math.Pi,
	"e":  math.E,
}

const variableName = "x"

type node interface {
	eval(x float64) float64
}

type numberNode float64

func (n numberNode) eval(float64) float64 { return float64(n) }

type variableNode struct{}

func (variableNode) eval(x float64) float64 { return x }

type negateNode struct{ operand node }

func (n negateNode) eval(x float64) float64 { return -n.operand.eval(x) }

type binaryNode struct {
	op          byte
	left, right node
}

func (n binaryNode) eval(x float64) float64 {
	l := n.left.eval(x)
	r := n.right.eval(x)
	switch n.op {
	case '+':
		return l + r
	case '-':
		return l - r
	case '*':
		return l * r
	case '/':
		return l / r
	case '^':
		return math.Pow(l, r)
	}
	panic(fmt.Sprintf("unreachable: operator %q", n.op))
}

type callNode struct {
	fn  func(float64) float64
	arg node
}

func (n callNode) eval(x float64) float64 { return n.fn(n.arg.eval(x)) }

type tokenKind int

const (
	tokenEOF tokenKind = iota
	tokenNumber
	tokenIdent
	tokenOperator
	tokenLParen
	tokenRParen
)

type token struct {
	kind  tokenKind
	text  string
	value float64
	pos   int
}

func tokenize(input string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(input) {
		c, width := utf8.DecodeRuneInString(input[i:])
		switch {
		case c == utf8.RuneError && width <= 1:
			return nil, &ParseError{Position: i, Message: "invalid UTF-8"}
		case unicode.IsSpace(c):
			i += width
		case isDigit(input[i]) || c == '.':
			start := i
			for i < len(input) && (isDigit(input[i]) || input[i] == '.') {
				i++
			}
			// Exponent part, e.g. 1e-3. A bare "e" that is not followed by
			// digits is left for the identifier scanner.
			if i < len(input) && (input[i] == 'e' || input[i] == 'E') {
				j := i + 1
				if j < len(input) && (input[j] == '+' || input[j] == '-') {
					j++
				}
				if j < len(input) && isDigit(input[j]) {
					for j < len(input) && isDigit(input[j]) {
						j++
					}
					i = j
				}
			}
			text := input[start:i]
			value, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &ParseError{Position: start, Message: fmt.Sprintf("invalid number %q", text)}
			}
			tokens = append(tokens, token{kind: tokenNumber, text: text, value: value, pos: start})
		case unicode.IsLetter(c) || c == '_':
			// Identifiers may contain any letter so that the error names the
			// whole symbol; only ASCII names are ever known.
			start := i
			for i < len(input) {
				r, w := utf8.DecodeRuneInString(input[i:])
				if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
					break
				}
				i += w
			}
			tokens = append(tokens, token{kind: tokenIdent, text: input[start:i], pos: start})
		case strings.ContainsRune("+-*/^", c):
			tokens = append(tokens, token{kind: tokenOperator, text: string(c), pos: i})
			i++
		case c == '(':
			tokens = append(tokens, token{kind: tokenLParen, text: "(", pos: i})
			i++
		case c == ')':
			tokens = append(tokens, token{kind: tokenRParen, text: ")", pos: i})
			i++
		default:
			return nil, &ParseError{Position: i, Message: fmt.Sprintf("unexpected character %q", c)}
		}
	}

	tokens = append(tokens, token{kind: tokenEOF, pos: len(input)})
	return tokens, nil
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

type parser struct {
	tokens []token
	pos    int
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokenEOF {
		p.pos++
	}
	return t
}

func (p *parser) isOperator(ops string) bool {
	t := p.peek()
	return t.kind == tokenOperator && strings.Contains(ops, t.text)
}

func (p *parser) parseExpr() (node, error) {
	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	for p.isOperator("+-") {
		op := p.next().text[0]
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}

	return left, nil
}

func (p *parser) parseTerm() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}

	for p.isOperator("*/") {
		op := p.next().text[0]
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: op, left: left, right: right}
	}

	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.isOperator("+-") {
		op := p.next().text
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		if op == "-" {
			return negateNode{operand: operand}, nil
		}
		return operand, nil
	}

	return p.parsePower()
}

func (p *parser) parsePower() (node, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}

	if p.isOperator("^") {
		p.next()
		exponent, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return binaryNode{op: '^', left: base, right: exponent}, nil
	}

	return base, nil
}

func (p *parser) parsePrimary() (node, error) {
	t := p.next()
	switch t.kind {
	case tokenNumber:
		return numberNode(t.value), nil
	case tokenIdent:
		name := strings.ToLower(t.text)
		if name == variableName {
			return variableNode{}, nil
		}
		if value, ok := constants[name]; ok {
			return numberNode(value), nil
		}
		fn, ok := functions[name]
		if !ok {
			return nil, &UnknownSymbolError{Name: t.text}
		}
		if p.peek().kind != tokenLParen {
			return nil, &ParseError{Position: p.peek().pos, Message: fmt.Sprintf("expected '(' after %s", t.text)}
		}
		p.next()
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokenRParen); err != nil {
			return nil, err
		}
		return callNode{fn: fn, arg: arg}, nil
	case tokenLParen:
		inner, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.expect(tokenRParen); err != nil {
			return nil, err
		}
		return inner, nil
	case tokenEOF:
		return nil, &ParseError{Position: t.pos, Message: "unexpected end of expression"}
	default:
		return nil, &ParseError{Position: t.pos, Message: fmt.Sprintf("unexpected %q", t.text)}
	}
}

func (p *parser) expect(kind tokenKind) error {
	t := p.peek()
	if t.kind != kind {
		if t.kind == tokenEOF {
			return &ParseError{Position: t.pos, Message: "missing ')'"}
		}
		return &ParseError{Position: t.pos, Message: fmt.Sprintf("expected ')', got %q", t.text)}
	}
	p.next()
	return nil
}

// Program is a parsed expression ready to be evaluated many times.
type Program struct {
	source string
	root   node
}

// Parses the expression once. The returned error is a *ParseError or an
// *UnknownSymbolError.
func ParseExpression(source string) (*Program, error) {
	tokens, err := tokenize(source)
	if err != nil {
		return nil, err
	}

	p := &parser{tokens: tokens}
	root, err := p.parseExpr()
	if err != nil {
		return nil, err
	}

	if t := p.peek(); t.kind != tokenEOF {
		return nil, &ParseError{Position: t.pos, Message: fmt.Sprintf("unexpected %q after expression", t.text)}
	}

	return &Program{source: source, root: root}, nil
}

func (p *Program) String() string {
	return p.source
}

// Eval evaluates the program at x. A non-finite result is reported as a
// *DomainError.
func (p *Program) Eval(x float64) (float64, error) {
	y := p.root.eval(x)
	if !isFinite(y) {
		return 0, &DomainError{X: x}
	}
	return y, nil
}
