/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package interpreter

import (
	"context"
	"fmt"
	"strings"

	"github.com/MuYiYong/ChainGraph/graph"
	"github.com/MuYiYong/ChainGraph/graph/data"
	"github.com/MuYiYong/ChainGraph/graph/util"
	"github.com/MuYiYong/ChainGraph/gql/parser"
)

/*
executeUseGraph switches the current graph of the session.
*/
func (s *Session) executeUseGraph(name string) (*Result, error) {
	if s.tx != nil {
		return nil, &util.GraphError{Type: util.ErrConstraint,
			Detail: "Cannot switch the graph inside a transaction"}
	}

	if !s.rtp.GM.HasGraph(name) {
		return nil, &util.GraphError{Type: util.ErrNotFound,
			Detail: fmt.Sprintf("Graph %v does not exist", name)}
	}

	if err := s.rtp.GM.AcquireSession(name); err != nil {
		return nil, err
	}

	if s.graph != "" {
		s.rtp.GM.ReleaseSession(s.graph)
	}

	s.graph = name

	return emptyResult(fmt.Sprintf("Using graph %v", name)), nil
}

/*
executeCreateGraph creates a new named graph with an optional inline
schema.
*/
func (s *Session) executeCreateGraph(st *parser.CreateGraphStatement) (*Result, error) {
	if s.rtp.GM.HasGraph(st.Name) && st.IfNotExists {
		return emptyResult(fmt.Sprintf("Graph %v already exists", st.Name)), nil
	}

	var schema *graph.Schema

	if st.HasSchema {
		schema = &graph.Schema{}

		for _, node := range st.Nodes {
			decl := graph.NodeDef{Label: node.Label}

			for _, p := range node.Props {
				decl.Props = append(decl.Props, graph.PropDef{
					Name: p.Name, Type: p.Type, PrimaryKey: p.PrimaryKey})
			}

			schema.Nodes = append(schema.Nodes, decl)
		}

		for _, edge := range st.Edges {
			decl := graph.EdgeDef{Label: edge.Label,
				SourceLabel: edge.SourceLabel, TargetLabel: edge.TargetLabel}

			for _, p := range edge.Props {
				decl.Props = append(decl.Props, graph.PropDef{
					Name: p.Name, Type: p.Type, PrimaryKey: p.PrimaryKey})
			}

			schema.Edges = append(schema.Edges, decl)
		}
	}

	if err := s.rtp.GM.CreateGraph(st.Name, schema); err != nil {
		return nil, err
	}

	return emptyResult(fmt.Sprintf("Graph %v created", st.Name)), nil
}

/*
executeDropGraph drops a named graph.
*/
func (s *Session) executeDropGraph(st *parser.DropGraphStatement) (*Result, error) {
	if !s.rtp.GM.HasGraph(st.Name) && st.IfExists {
		return emptyResult(fmt.Sprintf("Graph %v does not exist", st.Name)), nil
	}

	if err := s.rtp.GM.DropGraph(st.Name); err != nil {
		return nil, err
	}

	if s.graph == st.Name {
		s.graph = ""
	}

	return emptyResult(fmt.Sprintf("Graph %v dropped", st.Name)), nil
}

/*
executeShow executes a SHOW statement.
*/
func (s *Session) executeShow(ctx context.Context, st *parser.ShowStatement) (*Result, error) {
	switch st.Target {

	case parser.ShowGraphs:
		res := &Result{Columns: []string{"graph"}}

		for _, name := range s.rtp.GM.Graphs() {
			res.Rows = append(res.Rows, []data.Value{data.StringValue(name)})
		}

		return res, nil

	case parser.ShowProcedures:
		res := &Result{Columns: []string{"procedure", "description"}}

		for _, proc := range s.rtp.Procs.Procedures() {
			res.Rows = append(res.Rows, []data.Value{
				data.StringValue(proc.Name), data.StringValue(proc.Description)})
		}

		return res, nil

	case parser.ShowVertices:
		return s.withReadLock(func() (*Result, error) {
			res := &Result{Columns: []string{"id", "label", "properties"}}

			it, err := s.rtp.GM.AllVertices(s.graph)
			if err != nil {
				return nil, err
			}

			for it.HasNext() {
				if err := checkContext(ctx); err != nil {
					return nil, err
				}

				n, err := it.Next()
				if err != nil {
					return nil, err
				}

				if n == nil {
					break
				}

				res.Stats.VerticesScanned++

				res.Rows = append(res.Rows, []data.Value{
					data.UIntValue(n.VID), data.StringValue(n.Label),
					data.MapValue(n.Props)})
			}

			return res, nil
		})

	case parser.ShowEdges:
		return s.withReadLock(func() (*Result, error) {
			res := &Result{Columns: []string{"id", "label", "src", "dst", "properties"}}

			it, err := s.rtp.GM.AllEdges(s.graph)
			if err != nil {
				return nil, err
			}

			for it.HasNext() {
				if err := checkContext(ctx); err != nil {
					return nil, err
				}

				e, err := it.Next()
				if err != nil {
					return nil, err
				}

				if e == nil {
					break
				}

				res.Stats.EdgesScanned++

				res.Rows = append(res.Rows, []data.Value{
					data.UIntValue(e.EID), data.StringValue(e.Label),
					data.UIntValue(e.Src), data.UIntValue(e.Dst),
					data.MapValue(e.Props)})
			}

			return res, nil
		})
	}

	return nil, &util.GraphError{Type: util.ErrInternal,
		Detail: "Unknown SHOW target"}
}

/*
executeDescribe executes a DESCRIBE GRAPH statement.
*/
func (s *Session) executeDescribe(st *parser.DescribeStatement) (*Result, error) {
	if !s.rtp.GM.HasGraph(st.Graph) {
		return nil, &util.GraphError{Type: util.ErrNotFound,
			Detail: fmt.Sprintf("Graph %v does not exist", st.Graph)}
	}

	res := &Result{Columns: []string{"element", "label", "detail"}}

	vc, ec, err := s.rtp.GM.Counts(st.Graph)
	if err != nil {
		return nil, err
	}

	res.Rows = append(res.Rows, []data.Value{
		data.StringValue("graph"), data.StringValue(st.Graph),
		data.StringValue(fmt.Sprintf("vertices=%v edges=%v", vc, ec))})

	schema, err := s.rtp.GM.Schema(st.Graph)
	if err != nil {
		return nil, err
	}

	if schema == nil {
		return res, nil
	}

	propDetail := func(props []graph.PropDef) string {
		parts := make([]string, len(props))

		for i, p := range props {
			parts[i] = p.Name + " " + p.Type
			if p.PrimaryKey {
				parts[i] += " PRIMARY KEY"
			}
		}

		return strings.Join(parts, ", ")
	}

	for _, node := range schema.Nodes {
		res.Rows = append(res.Rows, []data.Value{
			data.StringValue("node"), data.StringValue(node.Label),
			data.StringValue(propDetail(node.Props))})
	}

	for _, edge := range schema.Edges {
		detail := fmt.Sprintf("(%v)->(%v)", edge.SourceLabel, edge.TargetLabel)

		if len(edge.Props) > 0 {
			detail += " " + propDetail(edge.Props)
		}

		res.Rows = append(res.Rows, []data.Value{
			data.StringValue("edge"), data.StringValue(edge.Label),
			data.StringValue(detail)})
	}

	return res, nil
}

/*
executeSession executes a SESSION statement.
*/
func (s *Session) executeSession(st *parser.SessionStatement) (*Result, error) {
	switch st.Kind {

	case parser.SessionSetGraph:
		return s.executeUseGraph(st.Name)

	case parser.SessionSetValue:
		val, err := s.evalExpr(st.Value, bindingRow{})
		if err != nil {
			return nil, err
		}

		s.params[st.Name] = val

		return emptyResult(fmt.Sprintf("Parameter %v set", st.Name)), nil

	case parser.SessionReset:
		if st.Name == "" {
			s.params = make(map[string]data.Value)
			return emptyResult("All session parameters reset"), nil
		}

		delete(s.params, st.Name)

		return emptyResult(fmt.Sprintf("Parameter %v reset", st.Name)), nil

	case parser.SessionClose:
		s.Close()

		return emptyResult("Session closed"), nil
	}

	return nil, &util.GraphError{Type: util.ErrInternal,
		Detail: "Unknown SESSION statement"}
}

/*
executeLet executes a LET statement. The bindings become session
parameters.
*/
func (s *Session) executeLet(st *parser.LetStatement) (*Result, error) {
	res := &Result{}

	var row []data.Value

	for _, b := range st.Bindings {
		val, err := s.evalExpr(b.Value, bindingRow{})
		if err != nil {
			return nil, err
		}

		s.params[b.Var] = val

		res.Columns = append(res.Columns, b.Var)
		row = append(row, val)
	}

	res.Rows = append(res.Rows, row)

	return res, nil
}

/*
executeFor executes a FOR statement which iterates a list expression.
*/
func (s *Session) executeFor(st *parser.ForStatement) (*Result, error) {
	val, err := s.evalExpr(st.Iterable, bindingRow{})
	if err != nil {
		return nil, err
	}

	if val.Tag() != data.TagList {
		return nil, newBindError("FOR requires a list to iterate")
	}

	res := &Result{Columns: []string{st.Var}}

	if st.OrdinalVar != "" {
		res.Columns = append(res.Columns, st.OrdinalVar)
	}

	for i, item := range val.List() {
		row := []data.Value{item}

		if st.OrdinalVar != "" {
			row = append(row, data.IntValue(int64(i)))
		}

		res.Rows = append(res.Rows, row)
	}

	return res, nil
}

/*
executeFilter executes a FILTER statement against the session
parameters.
*/
func (s *Session) executeFilter(st *parser.FilterStatement) (*Result, error) {
	ok, err := s.evalPredicate(st.Condition, bindingRow{})
	if err != nil {
		return nil, err
	}

	return &Result{Columns: []string{"result"},
		Rows: [][]data.Value{{data.BoolValue(ok)}}}, nil
}
