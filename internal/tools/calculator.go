package tools

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// CalculatorName is the tool name the model calls for arithmetic.
const CalculatorName = "calculator"

// CalculatorInput defines input for the calculator tool.
type CalculatorInput struct {
	Expression string `json:"expression" jsonschema_description:"Mathematical expression to evaluate (e.g., '2 + 2', '(10 * 5) / 2', '2^3')"`
}

// CalculatorOutput is the success payload for the calculator tool.
type CalculatorOutput struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
}

// NewCalculator builds the calculator tool. Expressions are evaluated with
// a recursive-descent parser over a fixed operator set; there is no dynamic
// evaluation of any kind. Evaluation failures come back as structured
// results so the model can correct its expression and retry.
func NewCalculator() *Tool {
	return NewTool(CalculatorName,
		"Perform mathematical calculations. Supports basic arithmetic operations: "+
			"addition (+), subtraction (-), multiplication (*), division (/), "+
			"modulo (%), and exponentiation (^). Use parentheses for complex expressions.",
		WithEvents(CalculatorName, Calculate))
}

// Calculate evaluates a single arithmetic expression.
func Calculate(_ context.Context, input CalculatorInput) (Result, error) {
	value, err := evaluateExpression(input.Expression)
	if err != nil {
		return Failure(ErrTypeInvalidExpression, "%s", err.Error()), nil
	}
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return Failure(ErrTypeNonFiniteResult,
			"expression %q does not produce a finite number", input.Expression), nil
	}
	return Success(CalculatorOutput{
		Expression: input.Expression,
		Result:     value,
	}), nil
}

// evaluateExpression parses and evaluates an arithmetic expression.
//
// Grammar (standard precedence, '^' binds tightest and is right-associative):
//
//	expr    := term { ('+' | '-') term }
//	term    := unary { ('*' | '/' | '%') unary }
//	unary   := ('+' | '-') unary | power
//	power   := primary [ '^' unary ]
//	primary := number | '(' expr ')'
func evaluateExpression(expression string) (float64, error) {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, expression)

	if cleaned == "" {
		return 0, fmt.Errorf("expression is empty")
	}

	for _, r := range cleaned {
		if !strings.ContainsRune("0123456789+-*/%().^", r) {
			if unicode.IsLetter(r) || r == '_' {
				return 0, fmt.Errorf("function calls and variables are not allowed")
			}
			return 0, fmt.Errorf("invalid character %q: only numbers and operators (+, -, *, /, %%, ^) are allowed", r)
		}
	}

	p := &exprParser{input: cleaned}
	value, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	if p.pos != len(p.input) {
		return 0, fmt.Errorf("unexpected %q at position %d", p.input[p.pos], p.pos)
	}
	return value, nil
}

// exprParser is a minimal recursive-descent parser over a validated
// expression string. Positions are byte offsets; the charset check above
// guarantees single-byte runes.
type exprParser struct {
	input string
	pos   int
}

func (p *exprParser) peek() (byte, bool) {
	if p.pos >= len(p.input) {
		return 0, false
	}
	return p.input[p.pos], true
}

func (p *exprParser) parseExpr() (float64, error) {
	left, err := p.parseTerm()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peek()
		if !ok || (op != '+' && op != '-') {
			return left, nil
		}
		p.pos++
		right, err := p.parseTerm()
		if err != nil {
			return 0, err
		}
		if op == '+' {
			left += right
		} else {
			left -= right
		}
	}
}

func (p *exprParser) parseTerm() (float64, error) {
	left, err := p.parseUnary()
	if err != nil {
		return 0, err
	}
	for {
		op, ok := p.peek()
		if !ok || (op != '*' && op != '/' && op != '%') {
			return left, nil
		}
		p.pos++
		right, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		switch op {
		case '*':
			left *= right
		case '/':
			left /= right
		case '%':
			left = math.Mod(left, right)
		}
	}
}

func (p *exprParser) parseUnary() (float64, error) {
	if op, ok := p.peek(); ok && (op == '+' || op == '-') {
		p.pos++
		value, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		if op == '-' {
			return -value, nil
		}
		return value, nil
	}
	return p.parsePower()
}

func (p *exprParser) parsePower() (float64, error) {
	base, err := p.parsePrimary()
	if err != nil {
		return 0, err
	}
	if op, ok := p.peek(); ok && op == '^' {
		p.pos++
		// Right-associative: 2^3^2 parses as 2^(3^2).
		// The exponent goes through parseUnary so -2 is a valid exponent.
		exp, err := p.parseUnary()
		if err != nil {
			return 0, err
		}
		return math.Pow(base, exp), nil
	}
	return base, nil
}

func (p *exprParser) parsePrimary() (float64, error) {
	ch, ok := p.peek()
	if !ok {
		return 0, fmt.Errorf("unexpected end of expression")
	}

	if ch == '(' {
		p.pos++
		value, err := p.parseExpr()
		if err != nil {
			return 0, err
		}
		closing, ok := p.peek()
		if !ok || closing != ')' {
			return 0, fmt.Errorf("missing closing parenthesis")
		}
		p.pos++
		return value, nil
	}

	start := p.pos
	sawDot := false
	for p.pos < len(p.input) {
		c := p.input[p.pos]
		if c >= '0' && c <= '9' {
			p.pos++
			continue
		}
		if c == '.' {
			if sawDot {
				return 0, fmt.Errorf("malformed number at position %d", start)
			}
			sawDot = true
			p.pos++
			continue
		}
		break
	}
	if p.pos == start {
		return 0, fmt.Errorf("unexpected %q at position %d", ch, p.pos)
	}

	value, err := strconv.ParseFloat(p.input[start:p.pos], 64)
	if err != nil {
		return 0, fmt.Errorf("malformed number %q", p.input[start:p.pos])
	}
	return value, nil
}
