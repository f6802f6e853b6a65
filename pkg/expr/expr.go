// Package expr implements the restricted condition language used by workflow
// transitions. Expressions compare `data.<field>` references against literals
// with ==, !=, <, >, <= and >=, combined with && and ||. There is no function
// call, no assignment and no access outside the data map, so condition strings
// influenced by user data can never execute arbitrary logic.
package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// Expr is a parsed condition, ready for repeated evaluation.
type Expr struct {
	root node
	src  string
}

// String returns the original source of the expression.
func (e *Expr) String() string { return e.src }

// Parse compiles a condition expression. The grammar is:
//
//	or    := and ( "||" and )*
//	and   := cmp ( "&&" cmp )*
//	cmp   := "(" or ")" | operand op operand | operand
//	op    := "==" | "!=" | "<=" | ">=" | "<" | ">"
//
// Operands are data.<field> references, quoted strings, numbers or booleans.
// A bare boolean operand is allowed as a full comparison.
func Parse(src string) (*Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	root, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if !p.eof() {
		return nil, fmt.Errorf("unexpected token %q in expression %q", p.peek().text, src)
	}
	return &Expr{root: root, src: src}, nil
}

// Eval evaluates the expression against the given data map. Referencing a
// field absent from data, or comparing incompatible types, is an error rather
// than a silent false.
func (e *Expr) Eval(data map[string]any) (bool, error) {
	return e.root.eval(data)
}

// Evaluate is a convenience for one-shot parse-and-eval.
func Evaluate(src string, data map[string]any) (bool, error) {
	ex, err := Parse(src)
	if err != nil {
		return false, err
	}
	return ex.Eval(data)
}

// --- AST ---

type node interface {
	eval(data map[string]any) (bool, error)
}

type binaryNode struct {
	op          string // "&&" or "||"
	left, right node
}

func (n *binaryNode) eval(data map[string]any) (bool, error) {
	l, err := n.left.eval(data)
	if err != nil {
		return false, err
	}
	// Short-circuit.
	if n.op == "&&" && !l {
		return false, nil
	}
	if n.op == "||" && l {
		return true, nil
	}
	return n.right.eval(data)
}

type compareNode struct {
	op          string
	left, right operand
}

func (n *compareNode) eval(data map[string]any) (bool, error) {
	lv, err := n.left.resolve(data)
	if err != nil {
		return false, err
	}
	rv, err := n.right.resolve(data)
	if err != nil {
		return false, err
	}
	return compare(n.op, lv, rv)
}

// boolNode wraps a single operand used as a full condition, e.g. `data.ok`.
type boolNode struct {
	op operand
}

func (n *boolNode) eval(data map[string]any) (bool, error) {
	v, err := n.op.resolve(data)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("operand %v is not a boolean", v)
	}
	return b, nil
}

// operand is a literal or a data.<field> reference.
type operand struct {
	field   string // set for references
	literal any    // set for literals (string, float64 or bool)
}

func (o operand) resolve(data map[string]any) (any, error) {
	if o.field == "" {
		return o.literal, nil
	}
	v, ok := data[o.field]
	if !ok {
		return nil, fmt.Errorf("unknown field %q", o.field)
	}
	return v, nil
}

func compare(op string, left, right any) (bool, error) {
	// Numeric comparison whenever both sides coerce.
	if lf, lok := toFloat(left); lok {
		if rf, rok := toFloat(right); rok {
			switch op {
			case "==":
				return lf == rf, nil
			case "!=":
				return lf != rf, nil
			case "<":
				return lf < rf, nil
			case ">":
				return lf > rf, nil
			case "<=":
				return lf <= rf, nil
			case ">=":
				return lf >= rf, nil
			}
		}
	}

	if lb, lok := left.(bool); lok {
		rb, rok := right.(bool)
		if !rok {
			return false, fmt.Errorf("cannot compare bool with %T", right)
		}
		switch op {
		case "==":
			return lb == rb, nil
		case "!=":
			return lb != rb, nil
		}
		return false, fmt.Errorf("operator %s not defined for booleans", op)
	}

	ls, lok := left.(string)
	rs, rok := right.(string)
	if !lok || !rok {
		return false, fmt.Errorf("cannot compare %T with %T", left, right)
	}
	switch op {
	case "==":
		return ls == rs, nil
	case "!=":
		return ls != rs, nil
	case "<":
		return ls < rs, nil
	case ">":
		return ls > rs, nil
	case "<=":
		return ls <= rs, nil
	case ">=":
		return ls >= rs, nil
	}
	return false, fmt.Errorf("unknown operator %s", op)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// --- Lexer ---

type tokenKind int

const (
	tokIdent tokenKind = iota
	tokString
	tokNumber
	tokOp     // comparison operators
	tokLogic  // && ||
	tokLParen
	tokRParen
)

type token struct {
	kind tokenKind
	text string
}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	runes := []rune(src)
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case r == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case r == '&' || r == '|':
			if i+1 >= len(runes) || runes[i+1] != r {
				return nil, fmt.Errorf("unexpected %q at offset %d", string(r), i)
			}
			toks = append(toks, token{tokLogic, string(r) + string(r)})
			i += 2
		case r == '=' || r == '!':
			if i+1 >= len(runes) || runes[i+1] != '=' {
				return nil, fmt.Errorf("unexpected %q at offset %d", string(r), i)
			}
			toks = append(toks, token{tokOp, string(r) + "="})
			i += 2
		case r == '<' || r == '>':
			op := string(r)
			i++
			if i < len(runes) && runes[i] == '=' {
				op += "="
				i++
			}
			toks = append(toks, token{tokOp, op})
		case r == '\'' || r == '"':
			quote := r
			j := i + 1
			for j < len(runes) && runes[j] != quote {
				j++
			}
			if j >= len(runes) {
				return nil, fmt.Errorf("unterminated string at offset %d", i)
			}
			toks = append(toks, token{tokString, string(runes[i+1 : j])})
			i = j + 1
		case unicode.IsDigit(r) || r == '-':
			j := i + 1
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			toks = append(toks, token{tokNumber, string(runes[i:j])})
			i = j
		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_' || runes[j] == '.') {
				j++
			}
			toks = append(toks, token{tokIdent, string(runes[i:j])})
			i = j
		default:
			return nil, fmt.Errorf("unexpected %q at offset %d", string(r), i)
		}
	}
	return toks, nil
}

// --- Parser ---

type parser struct {
	toks []token
	pos  int
}

func (p *parser) eof() bool      { return p.pos >= len(p.toks) }
func (p *parser) peek() token    { return p.toks[p.pos] }
func (p *parser) advance() token { t := p.toks[p.pos]; p.pos++; return t }

func (p *parser) parseOr() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for !p.eof() && p.peek().kind == tokLogic && p.peek().text == "||" {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "||", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseCmp()
	if err != nil {
		return nil, err
	}
	for !p.eof() && p.peek().kind == tokLogic && p.peek().text == "&&" {
		p.advance()
		right, err := p.parseCmp()
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: "&&", left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseCmp() (node, error) {
	if !p.eof() && p.peek().kind == tokLParen {
		p.advance()
		inner, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if p.eof() || p.peek().kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis")
		}
		p.advance()
		return inner, nil
	}

	left, err := p.parseOperand()
	if err != nil {
		return nil, err
	}

	if p.eof() || p.peek().kind != tokOp {
		// Bare operand: must evaluate to a boolean.
		return &boolNode{op: left}, nil
	}

	op := p.advance().text
	right, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	return &compareNode{op: op, left: left, right: right}, nil
}

func (p *parser) parseOperand() (operand, error) {
	if p.eof() {
		return operand{}, fmt.Errorf("unexpected end of expression")
	}
	t := p.advance()
	switch t.kind {
	case tokString:
		return operand{literal: t.text}, nil
	case tokNumber:
		n, err := strconv.ParseFloat(t.text, 64)
		if err != nil {
			return operand{}, fmt.Errorf("invalid number %q", t.text)
		}
		return operand{literal: n}, nil
	case tokIdent:
		switch t.text {
		case "true":
			return operand{literal: true}, nil
		case "false":
			return operand{literal: false}, nil
		}
		if field, ok := strings.CutPrefix(t.text, "data."); ok && field != "" {
			return operand{field: field}, nil
		}
		return operand{}, fmt.Errorf("unknown identifier %q (only data.<field> references are allowed)", t.text)
	default:
		return operand{}, fmt.Errorf("unexpected token %q", t.text)
	}
}
