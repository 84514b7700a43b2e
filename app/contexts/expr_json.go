package contexts

import (
	"fmt"

	"github.com/mahesh-hegde/explorer/app/common"
)

// Expressions travel as JSON-logic, eg:
//
//	{"and": [{"==": [{"var": "lineage"}, "Skin"]}, {"in": [{"var": "sex"}, ["Male", "Female"]]}]}
//
// The literal true stands for "every entity".

// MarshalExpr converts e to a value that encodes as JSON-logic.
func MarshalExpr(e Expr) any {
	switch e := e.(type) {
	case nil:
		return nil
	case Literal:
		return e.Value
	case Compare:
		return map[string]any{string(e.Op): []any{varRef(e.Var), e.Value}}
	case In:
		values := e.Values
		if values == nil {
			values = []any{}
		}
		return map[string]any{"in": []any{varRef(e.Var), values}}
	case And:
		return map[string]any{"and": marshalArgs(e.Args)}
	case Or:
		return map[string]any{"or": marshalArgs(e.Args)}
	case Not:
		return map[string]any{"!": []any{MarshalExpr(e.Arg)}}
	default:
		panic(fmt.Sprintf("contexts: unknown expression type %T", e))
	}
}

func varRef(field string) map[string]any {
	return map[string]any{"var": field}
}

func marshalArgs(args []Expr) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = MarshalExpr(a)
	}
	return out
}

// ParseExpr converts decoded JSON-logic (as produced by encoding/json into an
// any) to an Expr.
func ParseExpr(v any) (Expr, error) {
	switch v := v.(type) {
	case bool:
		return Literal{Value: v}, nil
	case map[string]any:
		if len(v) != 1 {
			return nil, common.NewConfigurationError("expression object must have exactly one operator, got %d", len(v))
		}
		for op, operand := range v {
			return parseOperator(op, operand)
		}
	case nil:
		return nil, common.NewConfigurationError("missing expression")
	}
	return nil, common.NewConfigurationError("unsupported expression %v (%T)", v, v)
}

func parseOperator(op string, operand any) (Expr, error) {
	switch op {
	case "and", "or":
		list, ok := operand.([]any)
		if !ok || len(list) == 0 {
			return nil, common.NewConfigurationError("%q needs a non-empty list of arguments", op)
		}
		args := make([]Expr, len(list))
		for i, a := range list {
			e, err := ParseExpr(a)
			if err != nil {
				return nil, err
			}
			args[i] = e
		}
		if op == "and" {
			return And{Args: args}, nil
		}
		return Or{Args: args}, nil

	case "!":
		arg := operand
		if list, ok := operand.([]any); ok {
			if len(list) != 1 {
				return nil, common.NewConfigurationError(`"!" takes exactly one argument`)
			}
			arg = list[0]
		}
		e, err := ParseExpr(arg)
		if err != nil {
			return nil, err
		}
		return Not{Arg: e}, nil

	case "in":
		field, rest, err := parseVarOperands(op, operand)
		if err != nil {
			return nil, err
		}
		values, ok := rest.([]any)
		if !ok {
			return nil, common.NewConfigurationError(`"in" expects a list of values`)
		}
		return In{Var: field, Values: values}, nil
	}

	cop := CompareOp(op)
	if !cop.valid() {
		return nil, common.NewConfigurationError("unsupported operator %q", op)
	}
	field, value, err := parseVarOperands(op, operand)
	if err != nil {
		return nil, err
	}
	return Compare{Op: cop, Var: field, Value: normalizeValue(value)}, nil
}

func parseVarOperands(op string, operand any) (string, any, error) {
	list, ok := operand.([]any)
	if !ok || len(list) != 2 {
		return "", nil, common.NewConfigurationError("%q expects two operands", op)
	}
	ref, ok := list[0].(map[string]any)
	if !ok || len(ref) != 1 {
		return "", nil, common.NewConfigurationError("first operand of %q must be a var reference", op)
	}
	switch name := ref["var"].(type) {
	case string:
		return name, list[1], nil
	case []any:
		if len(name) > 0 {
			if s, ok := name[0].(string); ok {
				return s, list[1], nil
			}
		}
	}
	return "", nil, common.NewConfigurationError("first operand of %q must be a var reference", op)
}
