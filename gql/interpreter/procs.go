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
	"sort"
	"strings"

	"github.com/MuYiYong/ChainGraph/graph/algo"
	"github.com/MuYiYong/ChainGraph/graph/data"
	"github.com/MuYiYong/ChainGraph/graph/util"
	"github.com/MuYiYong/ChainGraph/gql/parser"
)

/*
ProcFunc is the signature of a procedure implementation.
*/
type ProcFunc func(ctx context.Context, s *Session, args []data.Value) (*Result, error)

/*
Procedure is a named algorithm callable from GQL via CALL.
*/
type Procedure struct {
	Name        string   // Procedure name
	Description string   // Short description for SHOW PROCEDURES
	Columns     []string // Result columns
	Fn          ProcFunc // Implementation
}

/*
ProcRegistry maps procedure names to their implementations. Adding a
procedure does not require any parser change.
*/
type ProcRegistry struct {
	procs map[string]*Procedure
}

/*
NewProcRegistry creates a registry with all built-in procedures.
*/
func NewProcRegistry() *ProcRegistry {
	reg := &ProcRegistry{procs: make(map[string]*Procedure)}

	for _, p := range builtinProcedures() {
		reg.Register(p)
	}

	return reg
}

/*
Register adds a procedure to the registry.
*/
func (reg *ProcRegistry) Register(p *Procedure) {
	reg.procs[strings.ToLower(p.Name)] = p
}

/*
Lookup resolves a procedure name. The algo. prefix and some historic
aliases are accepted.
*/
func (reg *ProcRegistry) Lookup(name string) *Procedure {
	name = strings.ToLower(name)
	name = strings.TrimPrefix(name, "algo.")

	if name == "graph.shortestpath" {
		name = "shortest_path"
	}

	return reg.procs[name]
}

/*
Procedures returns all registered procedures sorted by name.
*/
func (reg *ProcRegistry) Procedures() []*Procedure {
	names := make([]string, 0, len(reg.procs))
	for name := range reg.procs {
		names = append(names, name)
	}

	sort.Strings(names)

	res := make([]*Procedure, len(names))
	for i, name := range names {
		res[i] = reg.procs[name]
	}

	return res
}

/*
executeCall executes a CALL statement. Arguments are evaluated eagerly
to literal values. An OPTIONAL CALL swallows not found errors and
yields an empty result instead.
*/
func (s *Session) executeCall(ctx context.Context, st *parser.CallStatement) (*Result, error) {
	proc := s.rtp.Procs.Lookup(st.Procedure)

	if proc == nil {
		return nil, newBindError("Unknown procedure: %v", st.Procedure)
	}

	args := make([]data.Value, len(st.Args))

	for i, expr := range st.Args {
		v, err := s.evalExpr(expr, bindingRow{})
		if err != nil {
			return nil, err
		}

		args[i] = v
	}

	res, err := proc.Fn(ctx, s, args)

	if err != nil {
		if st.Optional && util.IsGraphError(err, util.ErrNotFound) {
			return &Result{Columns: proc.Columns}, nil
		}

		return nil, err
	}

	if len(st.Yield) > 0 {
		return yieldColumns(res, st.Yield)
	}

	return res, nil
}

/*
yieldColumns filters and reorders result columns by a YIELD list.
*/
func yieldColumns(res *Result, yield []string) (*Result, error) {
	idx := make([]int, len(yield))

	for i, name := range yield {
		idx[i] = -1

		for c, col := range res.Columns {
			if col == name {
				idx[i] = c
				break
			}
		}

		if idx[i] == -1 {
			return nil, newBindError("Unknown YIELD column: %v", name)
		}
	}

	out := &Result{Columns: yield, Stats: res.Stats}

	for _, row := range res.Rows {
		newRow := make([]data.Value, len(idx))

		for i, c := range idx {
			newRow[i] = row[c]
		}

		out.Rows = append(out.Rows, newRow)
	}

	return out, nil
}

// Built-in procedures
// ===================

/*
pathColumns are the result columns of the path producing procedures
*/
var pathColumns = []string{"vertices", "edges", "hops", "weight"}

/*
pathRow converts an algorithm path into a result row.
*/
func pathRow(p *algo.Path) []data.Value {
	vids := make([]data.Value, len(p.VIDs))
	for i, vid := range p.VIDs {
		vids[i] = data.UIntValue(vid)
	}

	eids := make([]data.Value, len(p.EIDs))
	for i, eid := range p.EIDs {
		eids[i] = data.UIntValue(eid)
	}

	return []data.Value{data.ListValue(vids), data.ListValue(eids),
		data.IntValue(int64(len(p.EIDs))), data.FloatValue(p.Weight)}
}

/*
argVID returns a vertex id argument.
*/
func argVID(name string, args []data.Value, i int) (uint64, error) {
	if i >= len(args) {
		return 0, newBindError("%v requires at least %v arguments", name, i+1)
	}

	if f, ok := args[i].AsFloat(); ok && f >= 0 {
		return uint64(f), nil
	}

	return 0, newBindError("Argument %v of %v must be a vertex id", i+1, name)
}

/*
argStringOpt returns an optional string argument.
*/
func argStringOpt(args []data.Value, i int, def string) string {
	if i < len(args) && args[i].Tag() == data.TagString {
		return args[i].Str()
	}

	return def
}

/*
argIntOpt returns an optional integer argument.
*/
func argIntOpt(args []data.Value, i int, def int) int {
	if i < len(args) {
		if f, ok := args[i].AsFloat(); ok {
			return int(f)
		}
	}

	return def
}

/*
builtinProcedures returns all built-in procedures.
*/
func builtinProcedures() []*Procedure {
	return []*Procedure{
		{
			Name:        "shortest_path",
			Description: "BFS shortest path between two vertices",
			Columns:     pathColumns,
			Fn: func(ctx context.Context, s *Session, args []data.Value) (*Result, error) {
				src, err := argVID("shortest_path", args, 0)
				if err != nil {
					return nil, err
				}

				dst, err := argVID("shortest_path", args, 1)
				if err != nil {
					return nil, err
				}

				path, err := algo.ShortestPath(ctx, s.rtp.GM, s.graph, src, dst)
				if err != nil {
					return nil, err
				}

				res := &Result{Columns: pathColumns}

				if path != nil {
					res.Rows = append(res.Rows, pathRow(path))
				}

				return res, nil
			},
		},
		{
			Name:        "all_paths",
			Description: "All simple paths between two vertices up to a depth limit",
			Columns:     pathColumns,
			Fn: func(ctx context.Context, s *Session, args []data.Value) (*Result, error) {
				src, err := argVID("all_paths", args, 0)
				if err != nil {
					return nil, err
				}

				dst, err := argVID("all_paths", args, 1)
				if err != nil {
					return nil, err
				}

				maxDepth := argIntOpt(args, 2, algo.DefaultMaxDepth)

				paths, err := algo.AllPaths(ctx, s.rtp.GM, s.graph, src, dst, maxDepth)
				if err != nil {
					return nil, err
				}

				res := &Result{Columns: pathColumns}

				for i := range paths {
					res.Rows = append(res.Rows, pathRow(&paths[i]))
				}

				return res, nil
			},
		},
		{
			Name:        "trace",
			Description: "Enumerate reachable path prefixes from a start vertex",
			Columns:     pathColumns,
			Fn: func(ctx context.Context, s *Session, args []data.Value) (*Result, error) {
				start, err := argVID("trace", args, 0)
				if err != nil {
					return nil, err
				}

				direction := algo.ParseDirection(argStringOpt(args, 1, algo.DirForward))
				maxDepth := argIntOpt(args, 2, algo.DefaultMaxDepth)

				paths, err := algo.Trace(ctx, s.rtp.GM, s.graph, start, direction, maxDepth)
				if err != nil {
					return nil, err
				}

				res := &Result{Columns: pathColumns}

				for i := range paths {
					res.Rows = append(res.Rows, pathRow(&paths[i]))
				}

				return res, nil
			},
		},
		{
			Name:        "max_flow",
			Description: "Edmonds-Karp maximum flow between two vertices",
			Columns:     []string{"value", "flows", "source_cut"},
			Fn: func(ctx context.Context, s *Session, args []data.Value) (*Result, error) {
				src, err := argVID("max_flow", args, 0)
				if err != nil {
					return nil, err
				}

				sink, err := argVID("max_flow", args, 1)
				if err != nil {
					return nil, err
				}

				mf, err := algo.MaxFlow(ctx, s.rtp.GM, s.graph, src, sink)
				if err != nil {
					return nil, err
				}

				// Report the per-edge flows sorted for deterministic output

				edges := make([]algo.FlowEdge, 0, len(mf.Flow))
				for edge := range mf.Flow {
					edges = append(edges, edge)
				}

				sort.Slice(edges, func(a, b int) bool {
					if edges[a].Src != edges[b].Src {
						return edges[a].Src < edges[b].Src
					}
					return edges[a].Dst < edges[b].Dst
				})

				flows := make([]data.Value, len(edges))
				for i, edge := range edges {
					flows[i] = data.MapValue(map[string]data.Value{
						"src":  data.UIntValue(edge.Src),
						"dst":  data.UIntValue(edge.Dst),
						"flow": data.FloatValue(mf.Flow[edge]),
					})
				}

				cut := make([]data.Value, len(mf.SourceSide))
				for i, vid := range mf.SourceSide {
					cut[i] = data.UIntValue(vid)
				}

				return &Result{
					Columns: []string{"value", "flows", "source_cut"},
					Rows: [][]data.Value{{data.FloatValue(mf.Value),
						data.ListValue(flows), data.ListValue(cut)}},
				}, nil
			},
		},
		{
			Name:        "neighbors",
			Description: "Direct neighbors of a vertex",
			Columns:     []string{"direction", "vertex"},
			Fn: func(ctx context.Context, s *Session, args []data.Value) (*Result, error) {
				vid, err := argVID("neighbors", args, 0)
				if err != nil {
					return nil, err
				}

				direction := argStringOpt(args, 1, algo.DirBoth)
				if direction != algo.DirBoth {
					direction = algo.ParseDirection(direction)
				}

				neighbors, err := algo.Neighbors(ctx, s.rtp.GM, s.graph, vid, direction)
				if err != nil {
					return nil, err
				}

				res := &Result{Columns: []string{"direction", "vertex"}}

				for _, n := range neighbors {
					res.Rows = append(res.Rows, []data.Value{
						data.StringValue(n.Direction), data.UIntValue(n.VID)})
				}

				return res, nil
			},
		},
		{
			Name:        "degree",
			Description: "In and out degree of a vertex",
			Columns:     []string{"in_degree", "out_degree"},
			Fn: func(ctx context.Context, s *Session, args []data.Value) (*Result, error) {
				vid, err := argVID("degree", args, 0)
				if err != nil {
					return nil, err
				}

				node, err := s.rtp.GM.FetchVertex(s.graph, vid)
				if err != nil {
					return nil, err
				}

				if node == nil {
					return nil, &util.GraphError{Type: util.ErrNotFound,
						Detail: fmt.Sprintf("Vertex %v does not exist", vid)}
				}

				in, out, err := s.rtp.GM.Degree(s.graph, vid)
				if err != nil {
					return nil, err
				}

				return &Result{
					Columns: []string{"in_degree", "out_degree"},
					Rows: [][]data.Value{{data.IntValue(int64(in)),
						data.IntValue(int64(out))}},
				}, nil
			},
		},
		{
			Name:        "connected",
			Description: "Directed reachability between two vertices",
			Columns:     []string{"connected"},
			Fn: func(ctx context.Context, s *Session, args []data.Value) (*Result, error) {
				src, err := argVID("connected", args, 0)
				if err != nil {
					return nil, err
				}

				dst, err := argVID("connected", args, 1)
				if err != nil {
					return nil, err
				}

				reachable, err := algo.Connected(ctx, s.rtp.GM, s.graph, src, dst)
				if err != nil {
					return nil, err
				}

				return &Result{
					Columns: []string{"connected"},
					Rows:    [][]data.Value{{data.BoolValue(reachable)}},
				}, nil
			},
		},
	}
}
