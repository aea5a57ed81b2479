package repo

import (
	"fmt"
	"reflect"
	"strings"
)

// Expr is a single SQL predicate bound to a column at render time. String
// receives the argument index the predicate's first placeholder should use;
// Value returns the bound arguments in placeholder order.
type Expr interface {
	String(column string, argIdx int) string
	Value() []interface{}
}

// FieldFilter binds an Expr to a repository field. Repositories translate
// Column through their field map before rendering.
type FieldFilter[T comparable] struct {
	Column T
	Filter Expr
}

type comparison struct {
	op    string
	value interface{}
}

func (c comparison) String(column string, argIdx int) string {
	return fmt.Sprintf("%s %s $%d", column, c.op, argIdx)
}

func (c comparison) Value() []interface{} {
	return []interface{}{c.value}
}

func Eq(value interface{}) Expr    { return comparison{op: "=", value: value} }
func NotEq(value interface{}) Expr { return comparison{op: "!=", value: value} }
func Gt(value interface{}) Expr    { return comparison{op: ">", value: value} }
func Gte(value interface{}) Expr   { return comparison{op: ">=", value: value} }
func Lt(value interface{}) Expr    { return comparison{op: "<", value: value} }
func Lte(value interface{}) Expr   { return comparison{op: "<=", value: value} }
func Like(value interface{}) Expr  { return comparison{op: "LIKE", value: value} }
func ILike(value interface{}) Expr { return comparison{op: "ILIKE", value: value} }

type inClause struct {
	values []interface{}
	negate bool
}

// In matches when the column equals any of the given values. Accepts a slice
// of any element type; an empty set renders to a predicate matching nothing.
func In(values interface{}) Expr {
	return inClause{values: expandSlice(values)}
}

// NotIn is the negation of In; an empty set matches everything.
func NotIn(values interface{}) Expr {
	return inClause{values: expandSlice(values), negate: true}
}

func (c inClause) String(column string, argIdx int) string {
	if len(c.values) == 0 {
		if c.negate {
			return "1 = 1"
		}
		return "1 = 0"
	}
	placeholders := make([]string, len(c.values))
	for i := range c.values {
		placeholders[i] = fmt.Sprintf("$%d", argIdx+i)
	}
	op := "IN"
	if c.negate {
		op = "NOT IN"
	}
	return fmt.Sprintf("%s %s (%s)", column, op, strings.Join(placeholders, ", "))
}

func (c inClause) Value() []interface{} {
	return c.values
}

type nullClause struct {
	negate bool
}

func IsNull() Expr  { return nullClause{} }
func NotNull() Expr { return nullClause{negate: true} }

func (c nullClause) String(column string, _ int) string {
	if c.negate {
		return column + " IS NOT NULL"
	}
	return column + " IS NULL"
}

func (c nullClause) Value() []interface{} {
	return nil
}

// Or combines expressions into a single parenthesized disjunction. The
// rendered placeholders of each branch continue the argument sequence.
func Or(exprs ...Expr) Expr {
	return orClause{exprs: exprs}
}

type orClause struct {
	exprs []Expr
}

func (c orClause) String(column string, argIdx int) string {
	parts := make([]string, 0, len(c.exprs))
	for _, e := range c.exprs {
		parts = append(parts, e.String(column, argIdx))
		argIdx += len(e.Value())
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

func (c orClause) Value() []interface{} {
	var out []interface{}
	for _, e := range c.exprs {
		out = append(out, e.Value()...)
	}
	return out
}

func expandSlice(values interface{}) []interface{} {
	if values == nil {
		return nil
	}
	if vs, ok := values.([]interface{}); ok {
		return vs
	}
	rv := reflect.ValueOf(values)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []interface{}{values}
	}
	out := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
