package contexts

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
)

// Expr is a boolean predicate over the metadata of one entity. The set of
// variants is closed: Literal, Compare, In, And, Or and Not.
type Expr interface {
	isExpr()
}

type Literal struct {
	Value bool
}

type CompareOp string

const (
	OpEq CompareOp = "=="
	OpNe CompareOp = "!="
	OpLt CompareOp = "<"
	OpLe CompareOp = "<="
	OpGt CompareOp = ">"
	OpGe CompareOp = ">="
)

func (op CompareOp) valid() bool {
	switch op {
	case OpEq, OpNe, OpLt, OpLe, OpGt, OpGe:
		return true
	}
	return false
}

// Compare compares the field Var against a literal value.
type Compare struct {
	Op    CompareOp
	Var   string
	Value any
}

// In matches when the field Var equals any of Values.
type In struct {
	Var    string
	Values []any
}

type And struct {
	Args []Expr
}

type Or struct {
	Args []Expr
}

type Not struct {
	Arg Expr
}

func (Literal) isExpr() {}
func (Compare) isExpr() {}
func (In) isExpr()      {}
func (And) isExpr()     {}
func (Or) isExpr()      {}
func (Not) isExpr()     {}

// True selects every entity of a dimension type.
var True Expr = Literal{Value: true}

// Eq is shorthand for an equality comparison.
func Eq(field string, value any) Expr {
	return Compare{Op: OpEq, Var: field, Value: normalizeValue(value)}
}

// Normalize rewrites e into the canonical form used for hashing: nested
// and/or of the same kind are flattened, single-argument and/or collapse to
// their argument, and the values of an In are deduplicated and sorted.
func Normalize(e Expr) Expr {
	switch e := e.(type) {
	case nil:
		return nil
	case Literal:
		return e
	case Compare:
		return Compare{Op: e.Op, Var: e.Var, Value: normalizeValue(e.Value)}
	case In:
		return In{Var: e.Var, Values: sortedUniqueValues(e.Values)}
	case And:
		args := flatten(e.Args, func(x Expr) ([]Expr, bool) {
			a, ok := x.(And)
			return a.Args, ok
		})
		if len(args) == 1 {
			return args[0]
		}
		return And{Args: args}
	case Or:
		args := flatten(e.Args, func(x Expr) ([]Expr, bool) {
			o, ok := x.(Or)
			return o.Args, ok
		})
		if len(args) == 1 {
			return args[0]
		}
		return Or{Args: args}
	case Not:
		return Not{Arg: Normalize(e.Arg)}
	default:
		panic(fmt.Sprintf("contexts: unknown expression type %T", e))
	}
}

func flatten(args []Expr, same func(Expr) ([]Expr, bool)) []Expr {
	out := make([]Expr, 0, len(args))
	for _, a := range args {
		a = Normalize(a)
		if inner, ok := same(a); ok {
			out = append(out, inner...)
			continue
		}
		out = append(out, a)
	}
	return out
}

// Vars returns the distinct fields referenced by e in first-use order.
func Vars(e Expr) []string {
	seen := make(map[string]bool)
	var vars []string
	var walk func(Expr)
	add := func(v string) {
		if !seen[v] {
			seen[v] = true
			vars = append(vars, v)
		}
	}
	walk = func(e Expr) {
		switch e := e.(type) {
		case Compare:
			add(e.Var)
		case In:
			add(e.Var)
		case And:
			for _, a := range e.Args {
				walk(a)
			}
		case Or:
			for _, a := range e.Args {
				walk(a)
			}
		case Not:
			walk(e.Arg)
		}
	}
	walk(e)
	return vars
}

// IsLiteralTrue reports whether e selects all entities without looking at
// any metadata.
func IsLiteralTrue(e Expr) bool {
	l, ok := e.(Literal)
	return ok && l.Value
}

// Match evaluates e against one entity. lookup returns the value of a field
// for that entity.
func Match(e Expr, lookup func(field string) any) bool {
	switch e := e.(type) {
	case Literal:
		return e.Value
	case Compare:
		return compareCell(e.Op, lookup(e.Var), e.Value)
	case In:
		for _, cell := range cellValues(lookup(e.Var)) {
			for _, v := range e.Values {
				if valuesEqual(cell, v) {
					return true
				}
			}
		}
		return false
	case And:
		for _, a := range e.Args {
			if !Match(a, lookup) {
				return false
			}
		}
		return true
	case Or:
		for _, a := range e.Args {
			if Match(a, lookup) {
				return true
			}
		}
		return false
	case Not:
		return !Match(e.Arg, lookup)
	default:
		panic(fmt.Sprintf("contexts: unknown expression type %T", e))
	}
}

// A metadata cell may hold a list (eg: several lineages); comparisons match
// when any element matches.
func cellValues(v any) []any {
	if list, ok := v.([]any); ok {
		return list
	}
	return []any{v}
}

func compareCell(op CompareOp, cell, value any) bool {
	if op == OpNe {
		return !compareCell(OpEq, cell, value)
	}
	for _, c := range cellValues(cell) {
		if compareScalar(op, c, value) {
			return true
		}
	}
	return false
}

func compareScalar(op CompareOp, a, b any) bool {
	if op == OpEq {
		return valuesEqual(a, b)
	}
	if a == nil || b == nil {
		return false
	}

	var cmp int
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	as, aStr := a.(string)
	bs, bStr := b.(string)
	switch {
	case aNum && bNum:
		if math.IsNaN(af) || math.IsNaN(bf) {
			return false
		}
		switch {
		case af < bf:
			cmp = -1
		case af > bf:
			cmp = 1
		}
	case aStr && bStr:
		switch {
		case as < bs:
			cmp = -1
		case as > bs:
			cmp = 1
		}
	default:
		return false
	}

	switch op {
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	}
	return false
}

func valuesEqual(a, b any) bool {
	af, aNum := toFloat(a)
	bf, bNum := toFloat(b)
	if aNum || bNum {
		return aNum && bNum && af == bf
	}
	return a == b
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// normalizeValue maps every numeric type to float64 so that structurally
// equal expressions serialize identically.
func normalizeValue(v any) any {
	if f, ok := toFloat(v); ok {
		return f
	}
	return v
}

func sortedUniqueValues(values []any) []any {
	type keyed struct {
		key string
		v   any
	}
	seen := make(map[string]bool, len(values))
	ks := make([]keyed, 0, len(values))
	for _, v := range values {
		v = normalizeValue(v)
		b, err := json.Marshal(v)
		if err != nil {
			b = []byte(fmt.Sprint(v))
		}
		k := string(b)
		if seen[k] {
			continue
		}
		seen[k] = true
		ks = append(ks, keyed{key: k, v: v})
	}
	sort.Slice(ks, func(i, j int) bool { return ks[i].key < ks[j].key })
	out := make([]any, len(ks))
	for i, k := range ks {
		out[i] = k.v
	}
	return out
}
