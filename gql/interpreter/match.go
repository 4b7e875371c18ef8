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

	"github.com/MuYiYong/ChainGraph/graph"
	"github.com/MuYiYong/ChainGraph/graph/data"
	"github.com/MuYiYong/ChainGraph/graph/util"
	"github.com/MuYiYong/ChainGraph/gql/parser"
)

/*
executeMatch executes a MATCH statement.
*/
func (s *Session) executeMatch(ctx context.Context, st *parser.MatchStatement) (*Result, error) {
	stats := &ResultStats{}

	rows, err := s.matchPatterns(ctx, st.Patterns, st.Where, stats)
	if err != nil {
		return nil, err
	}

	res, err := s.applyProjection(rows, st.Projection)
	if err != nil {
		return nil, err
	}

	res.Stats = *stats

	return res, nil
}

/*
matchPatterns matches a list of path patterns and applies the WHERE
predicate. Returns the produced binding rows.
*/
func (s *Session) matchPatterns(ctx context.Context, patterns []*parser.PathPattern,
	where parser.Expr, stats *ResultStats) ([]bindingRow, error) {

	// Bind the label names of all patterns against the dictionaries

	for _, pattern := range patterns {
		for _, node := range pattern.Nodes {
			if err := s.bindLabels(node.Labels, true); err != nil {
				return nil, err
			}
		}

		for _, edge := range pattern.Edges {
			if err := s.bindLabels(edge.Labels, false); err != nil {
				return nil, err
			}
		}
	}

	rows := []bindingRow{{}}

	for _, pattern := range patterns {
		var next []bindingRow

		for _, row := range rows {
			ext, err := s.matchPattern(ctx, pattern, row, stats)
			if err != nil {
				return nil, err
			}

			next = append(next, ext...)
		}

		rows = next
	}

	if where == nil {
		return rows, nil
	}

	filtered := make([]bindingRow, 0, len(rows))

	for _, row := range rows {
		ok, err := s.evalPredicate(where, row)
		if err != nil {
			return nil, err
		}

		if ok {
			filtered = append(filtered, row)
		}
	}

	return filtered, nil
}

/*
matchPattern matches a single path pattern starting from a given
binding row.
*/
func (s *Session) matchPattern(ctx context.Context, pattern *parser.PathPattern,
	row bindingRow, stats *ResultStats) ([]bindingRow, error) {

	candidates, err := s.nodeCandidates(pattern.Nodes[0], row, stats)
	if err != nil {
		return nil, err
	}

	var result []bindingRow

	for _, node := range candidates {

		if err := checkContext(ctx); err != nil {
			return nil, err
		}

		start := cloneRow(row)

		if pattern.Nodes[0].Var != "" {
			start[pattern.Nodes[0].Var] = binding{kind: bindNode, node: node}
		}

		ext, err := s.extendPath(ctx, pattern, 0, node, start, stats)
		if err != nil {
			return nil, err
		}

		result = append(result, ext...)
	}

	return result, nil
}

/*
extendPath extends a partial pattern match along the edge at a given
index.
*/
func (s *Session) extendPath(ctx context.Context, pattern *parser.PathPattern,
	idx int, cur *graph.Node, row bindingRow, stats *ResultStats) ([]bindingRow, error) {

	if idx == len(pattern.Edges) {
		return []bindingRow{row}, nil
	}

	edge := pattern.Edges[idx]
	target := pattern.Nodes[idx+1]

	if edge.Quant != nil {
		return s.extendQuantified(ctx, pattern, idx, cur, row, stats)
	}

	entries, err := s.adjacency(cur.VID, edge.Direction)
	if err != nil {
		return nil, err
	}

	var result []bindingRow

	for _, entry := range entries {
		stats.EdgesScanned++

		if err := checkContext(ctx); err != nil {
			return nil, err
		}

		e, err := s.rtp.GM.FetchEdge(s.graph, entry.EID)
		if err != nil {
			return nil, err
		}

		if e == nil {
			continue
		}

		ok, err := s.edgeMatches(edge, e, row)
		if err != nil {
			return nil, err
		}

		if !ok {
			continue
		}

		node, err := s.rtp.GM.FetchVertex(s.graph, entry.Neighbor)
		if err != nil {
			return nil, err
		}

		if node == nil {
			continue
		}

		stats.VerticesScanned++

		ok, err = s.nodeMatchesPattern(target, node, row)
		if err != nil {
			return nil, err
		}

		if !ok {
			continue
		}

		next := cloneRow(row)

		if edge.Var != "" {
			next[edge.Var] = binding{kind: bindEdge, edge: e}
		}
		if target.Var != "" {
			next[target.Var] = binding{kind: bindNode, node: node}
		}

		ext, err := s.extendPath(ctx, pattern, idx+1, node, next, stats)
		if err != nil {
			return nil, err
		}

		result = append(result, ext...)
	}

	return result, nil
}

/*
pathCandidate is a candidate path of a quantified pattern segment.
*/
type pathCandidate struct {
	terminal *graph.Node
	nodes    []*graph.Node
	edges    []*graph.Edge
}

/*
extendQuantified extends a partial match along a quantified edge. The
candidate paths between the source binding and each possible target are
enumerated in BFS order, then the path search prefix selects which of
them produce bindings.
*/
func (s *Session) extendQuantified(ctx context.Context, pattern *parser.PathPattern,
	idx int, cur *graph.Node, row bindingRow, stats *ResultStats) ([]bindingRow, error) {

	edge := pattern.Edges[idx]
	target := pattern.Nodes[idx+1]

	min := edge.Quant.Min
	max := edge.Quant.Max

	searchKind := parser.SearchNone
	searchK := 0

	if pattern.Search != nil {
		searchKind = pattern.Search.Kind
		searchK = pattern.Search.K
	}

	// SHORTEST and ANY SHORTEST enforce simple paths, other searches
	// only forbid edge revisits within a single path

	simpleOnly := searchKind == parser.SearchShortest ||
		searchKind == parser.SearchAnyShortest

	type state struct {
		node  *graph.Node
		nodes []*graph.Node
		edges []*graph.Edge
		eids  map[uint64]bool
		vids  map[uint64]bool
	}

	var candidates []pathCandidate

	first := state{node: cur, eids: map[uint64]bool{},
		vids: map[uint64]bool{cur.VID: true}}

	if min == 0 {
		candidates = append(candidates, pathCandidate{terminal: cur})
	}

	queue := []state{first}

	for len(queue) > 0 {
		st := queue[0]
		queue = queue[1:]

		if max != -1 && len(st.edges) >= max {
			continue
		}

		if err := checkContext(ctx); err != nil {
			return nil, err
		}

		entries, err := s.adjacency(st.node.VID, edge.Direction)
		if err != nil {
			return nil, err
		}

		for _, entry := range entries {
			stats.EdgesScanned++

			// An edge appears at most once within a single path

			if st.eids[entry.EID] {
				continue
			}

			if simpleOnly && st.vids[entry.Neighbor] {
				continue
			}

			e, err := s.rtp.GM.FetchEdge(s.graph, entry.EID)
			if err != nil {
				return nil, err
			}

			if e == nil {
				continue
			}

			ok, err := s.edgeMatches(edge, e, row)
			if err != nil {
				return nil, err
			}

			if !ok {
				continue
			}

			node, err := s.rtp.GM.FetchVertex(s.graph, entry.Neighbor)
			if err != nil {
				return nil, err
			}

			if node == nil {
				continue
			}

			stats.VerticesScanned++

			next := state{node: node,
				nodes: append(append([]*graph.Node{}, st.nodes...), node),
				edges: append(append([]*graph.Edge{}, st.edges...), e),
				eids:  map[uint64]bool{entry.EID: true},
				vids:  map[uint64]bool{node.VID: true},
			}

			for k := range st.eids {
				next.eids[k] = true
			}
			for k := range st.vids {
				next.vids[k] = true
			}

			if len(next.edges) >= min {
				candidates = append(candidates, pathCandidate{
					terminal: node, nodes: next.nodes, edges: next.edges})
			}

			queue = append(queue, next)
		}
	}

	// Filter candidates by the target node pattern and group them by
	// terminal vertex

	groups := make(map[uint64][]pathCandidate)
	var order []uint64

	for _, cand := range candidates {
		ok, err := s.nodeMatchesPattern(target, cand.terminal, row)
		if err != nil {
			return nil, err
		}

		if !ok {
			continue
		}

		if _, seen := groups[cand.terminal.VID]; !seen {
			order = append(order, cand.terminal.VID)
		}

		groups[cand.terminal.VID] = append(groups[cand.terminal.VID], cand)
	}

	var result []bindingRow

	for _, vid := range order {
		selected := selectPaths(groups[vid], searchKind, searchK)

		for _, cand := range selected {
			next := cloneRow(row)

			if edge.Var != "" {
				next[edge.Var] = binding{kind: bindPath,
					path: &pathBinding{Nodes: cand.nodes, Edges: cand.edges}}
			}
			if target.Var != "" {
				next[target.Var] = binding{kind: bindNode, node: cand.terminal}
			}

			ext, err := s.extendPath(ctx, pattern, idx+1, cand.terminal, next, stats)
			if err != nil {
				return nil, err
			}

			result = append(result, ext...)
		}
	}

	return result, nil
}

/*
selectPaths applies a path search prefix to the candidate paths of a
single source and target pair. The candidates arrive in BFS order so
hop counts are non-decreasing.
*/
func selectPaths(cands []pathCandidate, kind int, k int) []pathCandidate {
	if len(cands) == 0 {
		return nil
	}

	switch kind {

	case parser.SearchNone, parser.SearchAll:
		return cands

	case parser.SearchAny, parser.SearchShortest, parser.SearchAnyShortest:
		return cands[:1]

	case parser.SearchAnyK:
		if len(cands) > k {
			return cands[:k]
		}
		return cands

	case parser.SearchShortestK:
		if len(cands) > k {
			return cands[:k]
		}
		return cands

	case parser.SearchAllShortest:
		minHops := len(cands[0].edges)

		var res []pathCandidate
		for _, cand := range cands {
			if len(cand.edges) == minHops {
				res = append(res, cand)
			}
		}

		return res

	case parser.SearchShortestKGroups:
		var res []pathCandidate
		var hops []int

		for _, cand := range cands {
			var known bool
			for _, h := range hops {
				if h == len(cand.edges) {
					known = true
					break
				}
			}

			if !known {
				if len(hops) == k {
					break
				}

				hops = append(hops, len(cand.edges))
			}

			res = append(res, cand)
		}

		return res
	}

	return cands
}

/*
adjacency returns the adjacency entries of a vertex for a pattern
direction. Only outgoing and incoming directions restrict the scan,
every other form examines both chains.
*/
func (s *Session) adjacency(vid uint64, direction int) ([]graph.AdjEntry, error) {
	switch direction {
	case parser.DirOut:
		return s.rtp.GM.OutEdges(s.graph, vid)
	case parser.DirIn:
		return s.rtp.GM.InEdges(s.graph, vid)
	}

	return s.rtp.GM.BothEdges(s.graph, vid)
}

/*
nodeCandidates determines the driving scan for a node pattern. A bound
primary key property uses the primary key index, a bound label the
label iteration index and everything else a full vertex scan.
*/
func (s *Session) nodeCandidates(node *parser.NodePattern, row bindingRow,
	stats *ResultStats) ([]*graph.Node, error) {

	// An already bound variable pins the candidate

	if node.Var != "" {
		if b, ok := row[node.Var]; ok {
			if b.kind != bindNode {
				return nil, newBindError("Variable %v is not a node", node.Var)
			}

			ok, err := s.nodeMatchesPattern(node, b.node, row)
			if err != nil || !ok {
				return nil, err
			}

			return []*graph.Node{b.node}, nil
		}
	}

	singleLabel := singleLabelName(node.Labels)

	// A bound primary key property drives an index lookup

	if singleLabel != "" && len(node.Props) > 0 {
		schema, err := s.rtp.GM.Schema(s.graph)
		if err != nil {
			return nil, err
		}

		if schema != nil {
			if pkProp := schema.PrimaryKey(singleLabel); pkProp != "" {
				if expr, ok := node.Props[pkProp]; ok {

					key, err := s.evalExpr(expr, row)
					if err != nil {
						return nil, err
					}

					vid, err := s.rtp.GM.VertexByKey(s.graph, singleLabel, key)
					if err != nil {
						return nil, err
					}

					if vid == 0 {
						return nil, nil
					}

					n, err := s.rtp.GM.FetchVertex(s.graph, vid)
					if err != nil || n == nil {
						return nil, err
					}

					stats.VerticesScanned++

					ok, err := s.nodeMatchesPattern(node, n, row)
					if err != nil || !ok {
						return nil, err
					}

					return []*graph.Node{n}, nil
				}
			}
		}
	}

	// A bound label drives the label iteration index, everything else
	// is a full vertex store scan

	var it *graph.NodeIterator
	var err error

	if singleLabel != "" {
		it, err = s.rtp.GM.VerticesByLabel(s.graph, singleLabel)
	} else {
		if s.rtp.GM.Watermark() == "Critical" {
			logger.Warning("Full vertex scan on graph ", s.graph,
				" while the buffer pool is at critical usage")
		}

		it, err = s.rtp.GM.AllVertices(s.graph)
	}

	if err != nil {
		return nil, err
	}

	var candidates []*graph.Node

	for it.HasNext() {
		n, err := it.Next()
		if err != nil {
			return nil, err
		}

		if n == nil {
			break
		}

		stats.VerticesScanned++

		ok, err := s.nodeMatchesPattern(node, n, row)
		if err != nil {
			return nil, err
		}

		if ok {
			candidates = append(candidates, n)
		}
	}

	return candidates, nil
}

/*
bindLabels checks that every label name of a label expression is known
to the current graph. Unknown names are a bind error - write statements
register new labels, read statements cannot.
*/
func (s *Session) bindLabels(expr *parser.LabelExpr, vertex bool) error {
	if expr == nil {
		return nil
	}

	if expr.Op == parser.LabelName {
		var known bool

		if vertex {
			known = s.rtp.GM.HasVertexLabel(s.graph, expr.Name)
		} else {
			known = s.rtp.GM.HasEdgeLabel(s.graph, expr.Name)
		}

		if !known {
			return newBindError("Unknown label: %v", expr.Name)
		}

		return nil
	}

	if err := s.bindLabels(expr.Left, vertex); err != nil {
		return err
	}

	return s.bindLabels(expr.Right, vertex)
}

/*
singleLabelName returns the label name if an expression is a single
positive label.
*/
func singleLabelName(expr *parser.LabelExpr) string {
	if expr != nil && expr.Op == parser.LabelName {
		return expr.Name
	}

	return ""
}

/*
labelMatches evaluates a label expression against a label name.
*/
func labelMatches(expr *parser.LabelExpr, label string) bool {
	if expr == nil {
		return true
	}

	switch expr.Op {

	case parser.LabelName:
		return expr.Name == label

	case parser.LabelOr:
		return labelMatches(expr.Left, label) || labelMatches(expr.Right, label)

	case parser.LabelAnd:
		return labelMatches(expr.Left, label) && labelMatches(expr.Right, label)

	case parser.LabelNot:
		return !labelMatches(expr.Left, label)

	case parser.LabelAny:
		return true
	}

	return false
}

/*
nodeMatchesPattern checks a node against a node pattern including the
equality constraint of an already bound variable.
*/
func (s *Session) nodeMatchesPattern(pattern *parser.NodePattern, node *graph.Node,
	row bindingRow) (bool, error) {

	if pattern.Var != "" {
		if b, ok := row[pattern.Var]; ok {
			if b.kind != bindNode || b.node.VID != node.VID {
				return false, nil
			}
		}
	}

	if !labelMatches(pattern.Labels, node.Label) {
		return false, nil
	}

	for name, expr := range pattern.Props {
		want, err := s.evalExpr(expr, row)
		if err != nil {
			return false, err
		}

		if !valuesEqual(node.Prop(name), want) {
			return false, nil
		}
	}

	return true, nil
}

/*
edgeMatches checks an edge against an edge pattern.
*/
func (s *Session) edgeMatches(pattern *parser.EdgePattern, e *graph.Edge,
	row bindingRow) (bool, error) {

	if pattern.Var != "" && pattern.Quant == nil {
		if b, ok := row[pattern.Var]; ok {
			if b.kind != bindEdge || b.edge.EID != e.EID {
				return false, nil
			}
		}
	}

	if !labelMatches(pattern.Labels, e.Label) {
		return false, nil
	}

	for name, expr := range pattern.Props {
		want, err := s.evalExpr(expr, row)
		if err != nil {
			return false, err
		}

		if !valuesEqual(e.Prop(name), want) {
			return false, nil
		}
	}

	return true, nil
}

/*
checkContext polls the cancellation context.
*/
func checkContext(ctx context.Context) error {
	if ctx == nil {
		return nil
	}

	switch ctx.Err() {
	case context.Canceled:
		return &util.GraphError{Type: util.ErrCancelled,
			Detail: "Operation was cancelled"}
	case context.DeadlineExceeded:
		return &util.GraphError{Type: util.ErrTimeout,
			Detail: "Operation timed out"}
	}

	return nil
}

/*
executeSelect executes a standalone SELECT over all vertices of the
current graph.
*/
func (s *Session) executeSelect(ctx context.Context, st *parser.SelectStatement) (*Result, error) {
	stats := &ResultStats{}

	it, err := s.rtp.GM.AllVertices(s.graph)
	if err != nil {
		return nil, err
	}

	// Every free variable of the select items binds to the scanned
	// vertex

	vars := make(map[string]bool)

	for _, item := range st.Projection.Items {
		collectVars(item.Expr, vars)
	}

	collectVars(st.Where, vars)

	var rows []bindingRow

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

		stats.VerticesScanned++

		row := bindingRow{"_": {kind: bindNode, node: n}}

		for v := range vars {
			if _, ok := s.params[v]; !ok {
				row[v] = binding{kind: bindNode, node: n}
			}
		}

		if st.Where != nil {
			ok, err := s.evalPredicate(st.Where, row)
			if err != nil {
				return nil, err
			}

			if !ok {
				continue
			}
		}

		rows = append(rows, row)
	}

	res, err := s.applyProjection(rows, st.Projection)
	if err != nil {
		return nil, err
	}

	res.Stats = *stats

	return res, nil
}

/*
collectVars collects the variable names of an expression.
*/
func collectVars(expr parser.Expr, vars map[string]bool) {
	switch e := expr.(type) {

	case *parser.Variable:
		vars[e.Name] = true

	case *parser.PropertyAccess:
		vars[e.Var] = true

	case *parser.Binary:
		collectVars(e.Left, vars)
		collectVars(e.Right, vars)

	case *parser.Unary:
		collectVars(e.Operand, vars)

	case *parser.FuncCall:
		for _, a := range e.Args {
			collectVars(a, vars)
		}

	case *parser.ListExpr:
		for _, a := range e.Items {
			collectVars(a, vars)
		}
	}
}

/*
executeComposite executes a composite query.
*/
func (s *Session) executeComposite(ctx context.Context, st *parser.CompositeStatement) (*Result, error) {
	left, err := s.dispatch(ctx, st.Left)
	if err != nil {
		return nil, err
	}

	right, err := s.dispatch(ctx, st.Right)
	if err != nil {
		return nil, err
	}

	if len(left.Columns) != len(right.Columns) {
		return nil, newBindError(
			"Composite queries require the same column count: %v vs %v",
			len(left.Columns), len(right.Columns))
	}

	res := &Result{Columns: left.Columns}
	res.Stats.VerticesScanned = left.Stats.VerticesScanned + right.Stats.VerticesScanned
	res.Stats.EdgesScanned = left.Stats.EdgesScanned + right.Stats.EdgesScanned

	rowKey := func(row []data.Value) string {
		var key string
		for _, v := range row {
			key += string(v.EncodeToBytes()) + "\x00"
		}
		return key
	}

	switch st.Op {

	case parser.CompositeUnion:
		if st.All {
			res.Rows = append(append(res.Rows, left.Rows...), right.Rows...)
			return res, nil
		}

		seen := make(map[string]bool)

		for _, row := range append(append([][]data.Value{}, left.Rows...), right.Rows...) {
			if key := rowKey(row); !seen[key] {
				seen[key] = true
				res.Rows = append(res.Rows, row)
			}
		}

		return res, nil

	case parser.CompositeExcept:
		exclude := make(map[string]bool)

		for _, row := range right.Rows {
			exclude[rowKey(row)] = true
		}

		for _, row := range left.Rows {
			if !exclude[rowKey(row)] {
				res.Rows = append(res.Rows, row)
			}
		}

		return res, nil

	case parser.CompositeIntersect:
		include := make(map[string]bool)

		for _, row := range right.Rows {
			include[rowKey(row)] = true
		}

		for _, row := range left.Rows {
			if include[rowKey(row)] {
				res.Rows = append(res.Rows, row)
			}
		}

		return res, nil

	case parser.CompositeOtherwise:
		if len(left.Rows) > 0 {
			res.Rows = left.Rows
		} else {
			res.Rows = right.Rows
			res.Columns = right.Columns
		}

		return res, nil
	}

	return nil, &util.GraphError{Type: util.ErrInternal,
		Detail: fmt.Sprintf("Unknown composite operator: %v", st.Op)}
}
