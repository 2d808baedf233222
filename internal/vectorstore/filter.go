package vectorstore

import (
	"fmt"
	"strconv"
	"strings"

)

// Op is a comparison operator.
type Op int

const (
	OpEq Op = iota
	OpNe
	OpGt
	OpGte
	OpLt
	OpLte
	OpIn
)

var opSymbols = map[Op]string{
	OpEq:  "==",
	OpNe:  "!=",
	OpGt:  ">",
	OpGte: ">=",
	OpLt:  "<",
	OpLte: "<=",
	OpIn:  "in",
}

func (o Op) String() string {
	if s, ok := opSymbols[o]; ok {
		return s
	}
	return "op(" + strconv.Itoa(int(o)) + ")"
}

// Filter is a boolean predicate over records. A nil Filter matches
// everything.
type Filter interface {
	Match(r *Record) bool
	String() string
}

// Cond compares one record field with a value. Values are strings, bools
// or integers; OpIn takes a []string.
type Cond struct {
	Field string
	Op    Op
	Value any
}

// AndFilter matches when every child matches. Empty matches everything.
type AndFilter []Filter

// OrFilter matches when any child matches. Empty matches nothing.
type OrFilter []Filter

func Eq(field string, v any) Filter  { return Cond{Field: field, Op: OpEq, Value: normalize(v)} }
func Ne(field string, v any) Filter  { return Cond{Field: field, Op: OpNe, Value: normalize(v)} }
func Gt(field string, v any) Filter  { return Cond{Field: field, Op: OpGt, Value: normalize(v)} }
func Gte(field string, v any) Filter { return Cond{Field: field, Op: OpGte, Value: normalize(v)} }
func Lt(field string, v any) Filter  { return Cond{Field: field, Op: OpLt, Value: normalize(v)} }
func Lte(field string, v any) Filter { return Cond{Field: field, Op: OpLte, Value: normalize(v)} }

// In matches when field equals one of values.
func In(field string, values ...string) Filter {
	return Cond{Field: field, Op: OpIn, Value: append([]string(nil), values...)}
}

// And joins filters, dropping nils and flattening nested conjunctions.
// It returns nil when nothing is left.
func And(filters ...Filter) Filter {
	var out AndFilter
	for _, f := range filters {
		switch v := f.(type) {
		case nil:
		case AndFilter:
			out = append(out, v...)
		default:
			out = append(out, f)
		}
	}
	switch len(out) {
	case 0:
		return nil
	case 1:
		return out[0]
	}
	return out
}

// Or joins filters, dropping nils.
func Or(filters ...Filter) Filter {
	var out OrFilter
	for _, f := range filters {
		if f != nil {
			out = append(out, f)
		}
	}
	if len(out) == 1 {
		return out[0]
	}
	return out
}

// Matches evaluates f against r, treating a nil filter as true.
func Matches(f Filter, r *Record) bool {
	return f == nil || f.Match(r)
}

func normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint32:
		return int64(n)
	default:
		return v
	}
}

func (c Cond) Match(r *Record) bool {
	got, ok := r.field(c.Field)
	if !ok {
		return false
	}
	switch c.Op {
	case OpIn:
		vals, _ := c.Value.([]string)
		s, ok := got.(string)
		if !ok {
			return false
		}
		for _, v := range vals {
			if v == s {
				return true
			}
		}
		return false
	case OpEq:
		return got == c.Value
	case OpNe:
		return got != c.Value
	}

	a, aok := got.(int64)
	b, bok := c.Value.(int64)
	if aok && bok {
		switch c.Op {
		case OpGt:
			return a > b
		case OpGte:
			return a >= b
		case OpLt:
			return a < b
		case OpLte:
			return a <= b
		}
	}
	as, aok := got.(string)
	bs, bok := c.Value.(string)
	if aok && bok {
		switch c.Op {
		case OpGt:
			return as > bs
		case OpGte:
			return as >= bs
		case OpLt:
			return as < bs
		case OpLte:
			return as <= bs
		}
	}
	return false
}

// String renders the condition as a boolean expression. String literals are
// Go-quoted, so they unquote to the exact stored value.
func (c Cond) String() string {
	return c.Field + " " + c.Op.String() + " " + literal(c.Value)
}

func literal(v any) string {
	switch t := v.(type) {
	case string:
		return strconv.Quote(t)
	case bool:
		return strconv.FormatBool(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case []string:
		parts := make([]string, len(t))
		for i, s := range t {
			parts[i] = literal(s)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(t)
	}
}

func (a AndFilter) Match(r *Record) bool {
	for _, f := range a {
		if !f.Match(r) {
			return false
		}
	}
	return true
}

func (a AndFilter) String() string { return join(a, " and ") }

func (o OrFilter) Match(r *Record) bool {
	for _, f := range o {
		if f.Match(r) {
			return true
		}
	}
	return false
}

func (o OrFilter) String() string { return join(o, " or ") }

func join(fs []Filter, sep string) string {
	parts := make([]string, len(fs))
	for i, f := range fs {
		s := f.String()
		switch f.(type) {
		case AndFilter, OrFilter:
			s = "(" + s + ")"
		}
		parts[i] = s
	}
	return strings.Join(parts, sep)
}

// FilterString renders f, or "" for nil.
func FilterString(f Filter) string {
	if f == nil {
		return ""
	}
	return f.String()
}
