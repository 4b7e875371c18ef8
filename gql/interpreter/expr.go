/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package interpreter

import (
	"fmt"
	"strings"

	"github.com/MuYiYong/ChainGraph/graph"
	"github.com/MuYiYong/ChainGraph/graph/data"
	"github.com/MuYiYong/ChainGraph/graph/util"
	"github.com/MuYiYong/ChainGraph/gql/parser"
)

/*
Binding kinds
*/
const (
	bindValue = iota
	bindNode
	bindEdge
	bindPath
)

/*
binding is a single bound variable of a result row.
*/
type binding struct {
	kind int
	val  data.Value
	node *graph.Node
	edge *graph.Edge
	path *pathBinding
}

/*
pathBinding is a bound quantified path.
*/
type pathBinding struct {
	Nodes []*graph.Node
	Edges []*graph.Edge
}

/*
bindingRow maps variable names to bindings.
*/
type bindingRow map[string]binding

/*
cloneRow returns a copy of a binding row.
*/
func cloneRow(row bindingRow) bindingRow {
	c := make(bindingRow, len(row)+2)

	for k, v := range row {
		c[k] = v
	}

	return c
}

/*
nodeValue converts a node into a map value.
*/
func nodeValue(n *graph.Node) data.Value {
	m := make(map[string]data.Value, len(n.Props)+2)

	for k, v := range n.Props {
		m[k] = v
	}

	m["_id"] = data.UIntValue(n.VID)
	m["_label"] = data.StringValue(n.Label)

	return data.MapValue(m)
}

/*
edgeValue converts an edge into a map value.
*/
func edgeValue(e *graph.Edge) data.Value {
	m := make(map[string]data.Value, len(e.Props)+4)

	for k, v := range e.Props {
		m[k] = v
	}

	m["_id"] = data.UIntValue(e.EID)
	m["_label"] = data.StringValue(e.Label)
	m["_src"] = data.UIntValue(e.Src)
	m["_dst"] = data.UIntValue(e.Dst)

	return data.MapValue(m)
}

/*
bindingValue converts a binding into a plain value.
*/
func bindingValue(b binding) data.Value {
	switch b.kind {

	case bindNode:
		return nodeValue(b.node)

	case bindEdge:
		return edgeValue(b.edge)

	case bindPath:
		nodes := make([]data.Value, len(b.path.Nodes))
		for i, n := range b.path.Nodes {
			nodes[i] = nodeValue(n)
		}

		edges := make([]data.Value, len(b.path.Edges))
		for i, e := range b.path.Edges {
			edges[i] = edgeValue(e)
		}

		return data.MapValue(map[string]data.Value{
			"vertices": data.ListValue(nodes),
			"edges":    data.ListValue(edges),
		})
	}

	return b.val
}

/*
newBindError creates a bind error.
*/
func newBindError(format string, args ...interface{}) error {
	return &util.GraphError{Type: util.ErrBind,
		Detail: fmt.Sprintf(format, args...)}
}

/*
evalExpr evaluates an expression against a binding row.
*/
func (s *Session) evalExpr(expr parser.Expr, row bindingRow) (data.Value, error) {
	switch e := expr.(type) {

	case *parser.Literal:
		return e.Value, nil

	case *parser.Variable:
		if b, ok := row[e.Name]; ok {
			return bindingValue(b), nil
		}

		if v, ok := s.params[e.Name]; ok {
			return v, nil
		}

		return data.NullValue(), newBindError("Unknown variable: %v", e.Name)

	case *parser.PropertyAccess:
		b, ok := row[e.Var]

		if !ok {
			if v, pok := s.params[e.Var]; pok {
				b = binding{kind: bindValue, val: v}
				ok = true
			}
		}

		if !ok {
			return data.NullValue(), newBindError("Unknown variable: %v", e.Var)
		}

		switch b.kind {

		case bindNode:
			return b.node.Prop(e.Prop), nil

		case bindEdge:
			return b.edge.Prop(e.Prop), nil

		case bindValue:
			if b.val.Tag() == data.TagMap {
				if v, mok := b.val.Map()[e.Prop]; mok {
					return v, nil
				}
				return data.NullValue(), nil
			}
		}

		return data.NullValue(), newBindError(
			"Variable %v has no property %v", e.Var, e.Prop)

	case *parser.Unary:
		return s.evalUnary(e, row)

	case *parser.Binary:
		return s.evalBinary(e, row)

	case *parser.ListExpr:
		items := make([]data.Value, len(e.Items))

		for i, item := range e.Items {
			v, err := s.evalExpr(item, row)
			if err != nil {
				return data.NullValue(), err
			}

			items[i] = v
		}

		return data.ListValue(items), nil

	case *parser.FuncCall:
		return s.evalFunc(e, row)
	}

	return data.NullValue(), newBindError("Unknown expression type: %T", expr)
}

/*
evalUnary evaluates a unary operation.
*/
func (s *Session) evalUnary(e *parser.Unary, row bindingRow) (data.Value, error) {
	val, err := s.evalExpr(e.Operand, row)
	if err != nil {

		// IS NULL may be applied to unresolvable property accesses

		if e.Op == parser.OpIsNull {
			return data.BoolValue(true), nil
		} else if e.Op == parser.OpIsNotNull {
			return data.BoolValue(false), nil
		}

		return data.NullValue(), err
	}

	switch e.Op {

	case parser.OpNot:
		if val.Tag() != data.TagBool {
			return data.NullValue(), newBindError("NOT requires a boolean not %v",
				val.Tag().Name())
		}
		return data.BoolValue(!val.Bool()), nil

	case parser.OpNeg:
		switch val.Tag() {
		case data.TagInt:
			return data.IntValue(-val.Int()), nil
		case data.TagFloat:
			return data.FloatValue(-val.Float()), nil
		}
		return data.NullValue(), newBindError("Cannot negate a %v value",
			val.Tag().Name())

	case parser.OpIsNull:
		return data.BoolValue(val.IsNull()), nil

	case parser.OpIsNotNull:
		return data.BoolValue(!val.IsNull()), nil
	}

	return data.NullValue(), newBindError("Unknown unary operation: %v", e.Op)
}

/*
evalBinary evaluates a binary operation.
*/
func (s *Session) evalBinary(e *parser.Binary, row bindingRow) (data.Value, error) {
	left, err := s.evalExpr(e.Left, row)
	if err != nil {
		return data.NullValue(), err
	}

	// AND and OR short-circuit

	if e.Op == parser.OpAnd || e.Op == parser.OpOr {
		if left.Tag() != data.TagBool {
			return data.NullValue(), newBindError(
				"Boolean operation requires boolean operands not %v", left.Tag().Name())
		}

		if e.Op == parser.OpAnd && !left.Bool() {
			return data.BoolValue(false), nil
		}
		if e.Op == parser.OpOr && left.Bool() {
			return data.BoolValue(true), nil
		}
	}

	right, err := s.evalExpr(e.Right, row)
	if err != nil {
		return data.NullValue(), err
	}

	switch e.Op {

	case parser.OpAnd, parser.OpOr:
		if right.Tag() != data.TagBool {
			return data.NullValue(), newBindError(
				"Boolean operation requires boolean operands not %v", right.Tag().Name())
		}
		return right, nil

	case parser.OpXor:
		if left.Tag() != data.TagBool || right.Tag() != data.TagBool {
			return data.NullValue(), newBindError(
				"XOR requires boolean operands")
		}
		return data.BoolValue(left.Bool() != right.Bool()), nil

	case parser.OpEQ:
		return data.BoolValue(valuesEqual(left, right)), nil

	case parser.OpNEQ:
		return data.BoolValue(!valuesEqual(left, right)), nil

	case parser.OpLT, parser.OpLEQ, parser.OpGT, parser.OpGEQ:

		// Comparing against null yields false

		if left.IsNull() || right.IsNull() {
			return data.BoolValue(false), nil
		}

		res, err := left.Compare(right)
		if err != nil {
			return data.NullValue(), &util.GraphError{Type: util.ErrBind,
				Detail: err.Error()}
		}

		switch e.Op {
		case parser.OpLT:
			return data.BoolValue(res < 0), nil
		case parser.OpLEQ:
			return data.BoolValue(res <= 0), nil
		case parser.OpGT:
			return data.BoolValue(res > 0), nil
		}

		return data.BoolValue(res >= 0), nil

	case parser.OpAdd, parser.OpSub, parser.OpMul, parser.OpDiv, parser.OpMod:
		return arithmeticOp(e.Op, left, right)

	case parser.OpContains, parser.OpStartsWith, parser.OpEndsWith:
		if left.Tag() != data.TagString || right.Tag() != data.TagString {
			return data.NullValue(), newBindError(
				"String operation requires string operands")
		}

		switch e.Op {
		case parser.OpContains:
			return data.BoolValue(strings.Contains(left.Str(), right.Str())), nil
		case parser.OpStartsWith:
			return data.BoolValue(strings.HasPrefix(left.Str(), right.Str())), nil
		}

		return data.BoolValue(strings.HasSuffix(left.Str(), right.Str())), nil

	case parser.OpIn:
		if right.Tag() != data.TagList {
			return data.NullValue(), newBindError("IN requires a list operand")
		}

		for _, item := range right.List() {
			if valuesEqual(left, item) {
				return data.BoolValue(true), nil
			}
		}

		return data.BoolValue(false), nil
	}

	return data.NullValue(), newBindError("Unknown binary operation: %v", e.Op)
}

/*
valuesEqual checks equality with numeric promotion.
*/
func valuesEqual(left data.Value, right data.Value) bool {
	if left.Tag() == right.Tag() {
		return left.Equals(right)
	}

	if res, err := left.Compare(right); err == nil {
		return res == 0
	}

	return false
}

/*
arithmeticOp evaluates an arithmetic operation with numeric promotion.
String + string concatenates.
*/
func arithmeticOp(op int, left data.Value, right data.Value) (data.Value, error) {
	if op == parser.OpAdd && left.Tag() == data.TagString &&
		right.Tag() == data.TagString {
		return data.StringValue(left.Str() + right.Str()), nil
	}

	// Pure integer arithmetic stays integral

	if left.Tag() == data.TagInt && right.Tag() == data.TagInt {
		l, r := left.Int(), right.Int()

		switch op {
		case parser.OpAdd:
			return data.IntValue(l + r), nil
		case parser.OpSub:
			return data.IntValue(l - r), nil
		case parser.OpMul:
			return data.IntValue(l * r), nil
		case parser.OpDiv:
			if r == 0 {
				return data.NullValue(), newBindError("Division by zero")
			}
			return data.IntValue(l / r), nil
		case parser.OpMod:
			if r == 0 {
				return data.NullValue(), newBindError("Division by zero")
			}
			return data.IntValue(l % r), nil
		}
	}

	l, lok := left.AsFloat()
	r, rok := right.AsFloat()

	if !lok || !rok {
		return data.NullValue(), newBindError("Cannot compute %v with %v",
			left.Tag().Name(), right.Tag().Name())
	}

	switch op {
	case parser.OpAdd:
		return data.FloatValue(l + r), nil
	case parser.OpSub:
		return data.FloatValue(l - r), nil
	case parser.OpMul:
		return data.FloatValue(l * r), nil
	case parser.OpDiv:
		if r == 0 {
			return data.NullValue(), newBindError("Division by zero")
		}
		return data.FloatValue(l / r), nil
	}

	return data.NullValue(), newBindError("Invalid arithmetic operation")
}

/*
evalFunc evaluates a non-aggregate function call.
*/
func (s *Session) evalFunc(e *parser.FuncCall, row bindingRow) (data.Value, error) {
	name := strings.ToLower(e.Name)

	if isAggregate(name) {
		return data.NullValue(), newBindError(
			"Aggregate function %v is only allowed in projections", e.Name)
	}

	argValue := func(i int) (data.Value, error) {
		if i >= len(e.Args) {
			return data.NullValue(), newBindError(
				"Missing argument %v for function %v", i+1, e.Name)
		}

		return s.evalExpr(e.Args[i], row)
	}

	switch name {

	case "id":

		// id() accepts a bound node or edge variable

		if len(e.Args) == 1 {
			if v, ok := e.Args[0].(*parser.Variable); ok {
				if b, bok := row[v.Name]; bok {
					if b.kind == bindNode {
						return data.UIntValue(b.node.VID), nil
					} else if b.kind == bindEdge {
						return data.UIntValue(b.edge.EID), nil
					}
				}
			}
		}

		return data.NullValue(), newBindError("id() requires a bound node or edge")

	case "label", "type":
		if len(e.Args) == 1 {
			if v, ok := e.Args[0].(*parser.Variable); ok {
				if b, bok := row[v.Name]; bok {
					if b.kind == bindNode {
						return data.StringValue(b.node.Label), nil
					} else if b.kind == bindEdge {
						return data.StringValue(b.edge.Label), nil
					}
				}
			}
		}

		return data.NullValue(), newBindError("%v() requires a bound node or edge", name)

	case "size", "length":
		arg, err := argValue(0)
		if err != nil {
			return data.NullValue(), err
		}

		switch arg.Tag() {
		case data.TagList:
			return data.IntValue(int64(len(arg.List()))), nil
		case data.TagString:
			return data.IntValue(int64(len(arg.Str()))), nil
		case data.TagMap:
			return data.IntValue(int64(len(arg.Map()))), nil
		}

		return data.NullValue(), newBindError("%v() requires a list or string", name)

	case "tostring":
		arg, err := argValue(0)
		if err != nil {
			return data.NullValue(), err
		}

		return data.StringValue(arg.String()), nil

	case "address":
		arg, err := argValue(0)
		if err != nil {
			return data.NullValue(), err
		}

		if arg.Tag() != data.TagString {
			return data.NullValue(), newBindError("address() requires a hex string")
		}

		val, perr := data.ParseAddress(arg.Str())
		if perr != nil {
			return data.NullValue(), newBindError("%v", perr)
		}

		return val, nil

	case "txhash":
		arg, err := argValue(0)
		if err != nil {
			return data.NullValue(), err
		}

		if arg.Tag() != data.TagString {
			return data.NullValue(), newBindError("txhash() requires a hex string")
		}

		val, perr := data.ParseTxHash(arg.Str())
		if perr != nil {
			return data.NullValue(), newBindError("%v", perr)
		}

		return val, nil
	}

	return data.NullValue(), newBindError("Unknown function: %v", e.Name)
}

/*
evalPredicate evaluates a boolean predicate. A null result counts as
false.
*/
func (s *Session) evalPredicate(expr parser.Expr, row bindingRow) (bool, error) {
	val, err := s.evalExpr(expr, row)
	if err != nil {
		return false, err
	}

	if val.IsNull() {
		return false, nil
	}

	if val.Tag() != data.TagBool {
		return false, newBindError("Predicate must evaluate to a boolean not %v",
			val.Tag().Name())
	}

	return val.Bool(), nil
}

/*
exprString renders an expression as a column name.
*/
func exprString(expr parser.Expr) string {
	switch e := expr.(type) {

	case *parser.Variable:
		return e.Name

	case *parser.PropertyAccess:
		return e.Var + "." + e.Prop

	case *parser.FuncCall:
		if e.Star {
			return e.Name + "(*)"
		}

		args := make([]string, len(e.Args))
		for i, a := range e.Args {
			args[i] = exprString(a)
		}

		return e.Name + "(" + strings.Join(args, ", ") + ")"

	case *parser.Literal:
		return e.Value.String()
	}

	return "expr"
}
