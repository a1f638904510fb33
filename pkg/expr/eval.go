package expr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sylvaingchassang/ddss-safely-report/pkg/apperr"
)

// Eval walks an AST produced by Parse against ctx and returns the
// resulting value: a float64, a string, or a bool.
func Eval(n Node, ctx Context) (any, error) {
	switch node := n.(type) {
	case NumberLit:
		return node.Value, nil
	case StringLit:
		return node.Value, nil
	case BoolLit:
		return node.Value, nil
	case Call:
		return evalCall(node, ctx)
	case UnaryOp:
		return evalUnary(node, ctx)
	case BinaryOp:
		return evalBinary(node, ctx)
	default:
		return nil, fmt.Errorf("expr: unhandled node type %T", n)
	}
}

func evalCall(c Call, ctx Context) (any, error) {
	switch c.Name {
	case "curr":
		return ctx.CurrentValue()
	case "get_value":
		if len(c.Args) != 1 {
			return nil, fmt.Errorf("get_value() takes 1 argument, got %d", len(c.Args))
		}
		nameVal, err := Eval(c.Args[0], ctx)
		if err != nil {
			return nil, err
		}
		return ctx.GetValue(toString(nameVal))
	}

	name := strings.TrimPrefix(c.Name, "fn_")
	fn, ok := Functions[name]
	if !ok {
		return nil, &apperr.UnsupportedFunctionError{Name: name}
	}
	args := make([]any, len(c.Args))
	for i, a := range c.Args {
		v, err := Eval(a, ctx)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	return fn(ctx, args)
}

func evalUnary(u UnaryOp, ctx Context) (any, error) {
	v, err := Eval(u.Operand, ctx)
	if err != nil {
		return nil, err
	}
	switch u.Op {
	case "-":
		return -toFloat(v), nil
	case "not":
		return !toBool(v), nil
	default:
		return nil, fmt.Errorf("expr: unknown unary operator %q", u.Op)
	}
}

func evalBinary(b BinaryOp, ctx Context) (any, error) {
	if b.Op == "and" {
		left, err := Eval(b.Left, ctx)
		if err != nil {
			return nil, err
		}
		if !toBool(left) {
			return false, nil
		}
		right, err := Eval(b.Right, ctx)
		if err != nil {
			return nil, err
		}
		return toBool(right), nil
	}
	if b.Op == "or" {
		left, err := Eval(b.Left, ctx)
		if err != nil {
			return nil, err
		}
		if toBool(left) {
			return true, nil
		}
		right, err := Eval(b.Right, ctx)
		if err != nil {
			return nil, err
		}
		return toBool(right), nil
	}

	left, err := Eval(b.Left, ctx)
	if err != nil {
		return nil, err
	}
	right, err := Eval(b.Right, ctx)
	if err != nil {
		return nil, err
	}

	switch b.Op {
	case "==":
		return valuesEqual(left, right), nil
	case "!=":
		return !valuesEqual(left, right), nil
	case "<":
		return toFloat(left) < toFloat(right), nil
	case "<=":
		return toFloat(left) <= toFloat(right), nil
	case ">":
		return toFloat(left) > toFloat(right), nil
	case ">=":
		return toFloat(left) >= toFloat(right), nil
	case "+":
		return toFloat(left) + toFloat(right), nil
	case "-":
		return toFloat(left) - toFloat(right), nil
	case "*":
		return toFloat(left) * toFloat(right), nil
	case "/":
		return toFloat(left) / toFloat(right), nil
	default:
		return nil, fmt.Errorf("expr: unknown binary operator %q", b.Op)
	}
}

// valuesEqual compares two evaluated values the way XLSForm formulas do:
// numerically if both sides parse as numbers, as strings otherwise.
func valuesEqual(a, b any) bool {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		return af == bf
	}
	return toString(a) == toString(b)
}

// Truthy applies the same truthiness rules Eval uses internally for
// and/or/not to a value obtained some other way, for callers (the
// interpreter's relevant/constraint checks) that need to interpret an
// Eval result as a condition.
func Truthy(v any) bool { return toBool(v) }

// AsFloat converts an evaluated value to a float64 the same way
// arithmetic and comparison operators do, for callers that need a
// formula's result as a count or index (a repeat's jr:count, for
// instance).
func AsFloat(v any) float64 { return toFloat(v) }

func toBool(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case nil:
		return false
	default:
		return true
	}
}

func toFloat(v any) float64 {
	f, _ := asFloat(v)
	return f
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case bool:
		if t {
			return 1, true
		}
		return 0, true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}
