/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package interpreter

import (
	"sort"
	"strings"

	"github.com/MuYiYong/ChainGraph/graph/data"
	"github.com/MuYiYong/ChainGraph/gql/parser"
)

/*
aggregateNames are the known aggregate functions
*/
var aggregateNames = map[string]bool{
	"count": true,
	"sum":   true,
	"avg":   true,
	"min":   true,
	"max":   true,
}

/*
isAggregate checks if a function name is an aggregate.
*/
func isAggregate(name string) bool {
	return aggregateNames[strings.ToLower(name)]
}

/*
containsAggregate checks if an expression contains an aggregate call.
*/
func containsAggregate(expr parser.Expr) bool {
	switch e := expr.(type) {

	case *parser.FuncCall:
		if isAggregate(e.Name) {
			return true
		}

		for _, a := range e.Args {
			if containsAggregate(a) {
				return true
			}
		}

	case *parser.Binary:
		return containsAggregate(e.Left) || containsAggregate(e.Right)

	case *parser.Unary:
		return containsAggregate(e.Operand)
	}

	return false
}

/*
applyProjection turns binding rows into a result by evaluating the
projection items including grouping, aggregation, ordering, distinct
and limits.
*/
func (s *Session) applyProjection(rows []bindingRow, proj *parser.Projection) (*Result, error) {
	res := &Result{}

	// Determine column names

	for _, item := range proj.Items {
		switch {
		case item.Star:
			res.Columns = append(res.Columns, "*")
		case item.Alias != "":
			res.Columns = append(res.Columns, item.Alias)
		default:
			res.Columns = append(res.Columns, exprString(item.Expr))
		}
	}

	grouped := len(proj.GroupBy) > 0

	for _, item := range proj.Items {
		if !item.Star && containsAggregate(item.Expr) {
			grouped = true
		}
	}

	var outRows [][]data.Value
	var orderKeys [][]data.Value

	if grouped {

		// Partition the binding rows by the GROUP BY expressions

		groups := make(map[string][]bindingRow)
		var groupOrder []string

		for _, row := range rows {
			var key string

			for _, expr := range proj.GroupBy {
				v, err := s.evalExpr(expr, row)
				if err != nil {
					return nil, err
				}

				key += string(v.EncodeToBytes()) + "\x00"
			}

			if _, ok := groups[key]; !ok {
				groupOrder = append(groupOrder, key)
			}

			groups[key] = append(groups[key], row)
		}

		// Without GROUP BY all rows form one group

		if len(proj.GroupBy) == 0 {
			groups[""] = rows
			groupOrder = []string{""}
		}

		for _, key := range groupOrder {
			group := groups[key]

			// HAVING filters partitions after aggregation

			if proj.Having != nil {
				val, err := s.evalAggregateExpr(proj.Having, group)
				if err != nil {
					return nil, err
				}

				if val.Tag() != data.TagBool || !val.Bool() {
					continue
				}
			}

			var out []data.Value

			for _, item := range proj.Items {
				if item.Star {
					out = append(out, s.starValue(group[0]))
					continue
				}

				v, err := s.evalAggregateExpr(item.Expr, group)
				if err != nil {
					return nil, err
				}

				out = append(out, v)
			}

			keys, err := s.orderKeysFor(proj, group, out, res.Columns)
			if err != nil {
				return nil, err
			}

			outRows = append(outRows, out)
			orderKeys = append(orderKeys, keys)
		}

	} else {

		for _, row := range rows {
			var out []data.Value

			for _, item := range proj.Items {
				if item.Star {
					out = append(out, s.starValue(row))
					continue
				}

				v, err := s.evalExpr(item.Expr, row)
				if err != nil {
					return nil, err
				}

				out = append(out, v)
			}

			keys, err := s.orderKeysFor(proj, []bindingRow{row}, out, res.Columns)
			if err != nil {
				return nil, err
			}

			outRows = append(outRows, out)
			orderKeys = append(orderKeys, keys)
		}
	}

	// Stable ordering

	if len(proj.OrderBy) > 0 {
		idx := make([]int, len(outRows))
		for i := range idx {
			idx[i] = i
		}

		sort.SliceStable(idx, func(a, b int) bool {
			for i, item := range proj.OrderBy {
				res := orderKeys[idx[a]][i].SortCompare(orderKeys[idx[b]][i])

				if res != 0 {
					if item.Desc {
						return res > 0
					}
					return res < 0
				}
			}

			return false
		})

		sorted := make([][]data.Value, len(outRows))
		for i, j := range idx {
			sorted[i] = outRows[j]
		}

		outRows = sorted
	}

	// DISTINCT deduplicates on the emitted tuple

	if proj.Distinct {
		seen := make(map[string]bool)
		var dedup [][]data.Value

		for _, row := range outRows {
			var key string
			for _, v := range row {
				key += string(v.EncodeToBytes()) + "\x00"
			}

			if !seen[key] {
				seen[key] = true
				dedup = append(dedup, row)
			}
		}

		outRows = dedup
	}

	// OFFSET and LIMIT are positional

	if proj.Offset > 0 {
		if proj.Offset >= len(outRows) {
			outRows = nil
		} else {
			outRows = outRows[proj.Offset:]
		}
	}

	if proj.Limit >= 0 && len(outRows) > proj.Limit {
		outRows = outRows[:proj.Limit]
	}

	res.Rows = outRows

	return res, nil
}

/*
starValue builds the value of a * projection item.
*/
func (s *Session) starValue(row bindingRow) data.Value {
	if b, ok := row["_"]; ok {
		return bindingValue(b)
	}

	m := make(map[string]data.Value, len(row))

	for name, b := range row {
		m[name] = bindingValue(b)
	}

	return data.MapValue(m)
}

/*
orderKeysFor computes the ORDER BY key values of an output row. An
order expression which matches a column alias uses the projected
value, everything else evaluates against the bindings.
*/
func (s *Session) orderKeysFor(proj *parser.Projection, group []bindingRow,
	out []data.Value, columns []string) ([]data.Value, error) {

	if len(proj.OrderBy) == 0 {
		return nil, nil
	}

	keys := make([]data.Value, len(proj.OrderBy))

	for i, item := range proj.OrderBy {

		// Alias references resolve to the projected column

		if v, ok := item.Expr.(*parser.Variable); ok {
			var resolved bool

			for c, col := range columns {
				if col == v.Name {
					keys[i] = out[c]
					resolved = true
					break
				}
			}

			if resolved {
				continue
			}
		}

		val, err := s.evalAggregateExpr(item.Expr, group)
		if err != nil {
			return nil, err
		}

		keys[i] = val
	}

	return keys, nil
}

/*
evalAggregateExpr evaluates an expression over a group of binding rows.
Aggregate calls consume the whole group, everything else evaluates
against the first row.
*/
func (s *Session) evalAggregateExpr(expr parser.Expr, group []bindingRow) (data.Value, error) {
	if call, ok := expr.(*parser.FuncCall); ok && isAggregate(call.Name) {
		return s.evalAggregate(call, group)
	}

	if bin, ok := expr.(*parser.Binary); ok && containsAggregate(expr) {
		left, err := s.evalAggregateExpr(bin.Left, group)
		if err != nil {
			return data.NullValue(), err
		}

		right, err := s.evalAggregateExpr(bin.Right, group)
		if err != nil {
			return data.NullValue(), err
		}

		return s.evalBinary(&parser.Binary{Op: bin.Op,
			Left:  &parser.Literal{Value: left},
			Right: &parser.Literal{Value: right}}, nil)
	}

	if len(group) == 0 {
		return data.NullValue(), nil
	}

	return s.evalExpr(expr, group[0])
}

/*
evalAggregate evaluates a single aggregate call over a group.
*/
func (s *Session) evalAggregate(call *parser.FuncCall, group []bindingRow) (data.Value, error) {
	name := strings.ToLower(call.Name)

	if name == "count" && call.Star {
		return data.IntValue(int64(len(group))), nil
	}

	if len(call.Args) != 1 {
		return data.NullValue(), newBindError(
			"Aggregate %v requires exactly one argument", call.Name)
	}

	var values []data.Value

	for _, row := range group {
		v, err := s.evalExpr(call.Args[0], row)
		if err != nil {
			return data.NullValue(), err
		}

		// Null values do not contribute to aggregates

		if !v.IsNull() {
			values = append(values, v)
		}
	}

	switch name {

	case "count":
		return data.IntValue(int64(len(values))), nil

	case "sum", "avg":
		var sum float64

		for _, v := range values {
			f, ok := v.AsFloat()
			if !ok {
				return data.NullValue(), newBindError(
					"Aggregate %v requires numeric values not %v", call.Name,
					v.Tag().Name())
			}

			sum += f
		}

		if name == "sum" {
			return data.FloatValue(sum), nil
		}

		if len(values) == 0 {
			return data.NullValue(), nil
		}

		return data.FloatValue(sum / float64(len(values))), nil

	case "min", "max":
		if len(values) == 0 {
			return data.NullValue(), nil
		}

		best := values[0]

		for _, v := range values[1:] {
			res, err := v.Compare(best)
			if err != nil {
				return data.NullValue(), newBindError("%v", err)
			}

			if (name == "min" && res < 0) || (name == "max" && res > 0) {
				best = v
			}
		}

		return best, nil
	}

	return data.NullValue(), newBindError("Unknown aggregate: %v", call.Name)
}
