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
transaction is a session scoped transaction envelope. Writes are
applied directly and recorded in an undo log.
*/
type transaction struct {
	readOnly     bool
	rollbackOnly bool
	undo         []func() error
}

/*
recordUndo records an undo operation in the active transaction.
*/
func (s *Session) recordUndo(op func() error) {
	if s.tx != nil {
		s.tx.undo = append(s.tx.undo, op)
	}
}

// Transactional write helpers
// ===========================

/*
txInsertVertex inserts a vertex and records its undo operation.
*/
func (s *Session) txInsertVertex(label string, props map[string]data.Value) (uint64, error) {
	vid, err := s.rtp.GM.InsertVertex(s.graph, label, props)
	if err != nil {
		return 0, err
	}

	s.recordUndo(func() error {
		return s.rtp.GM.DeleteVertex(s.graph, vid, true)
	})

	return vid, nil
}

/*
txInsertEdge inserts an edge and records its undo operation.
*/
func (s *Session) txInsertEdge(label string, src uint64, dst uint64,
	props map[string]data.Value) (uint64, error) {

	eid, err := s.rtp.GM.InsertEdge(s.graph, label, src, dst, props)
	if err != nil {
		return 0, err
	}

	s.recordUndo(func() error {
		return s.rtp.GM.DeleteEdge(s.graph, eid)
	})

	return eid, nil
}

/*
txUpdateVertexProps updates vertex properties and records the
restoring undo operation.
*/
func (s *Session) txUpdateVertexProps(vid uint64, props map[string]data.Value) error {
	if s.tx != nil {
		old, err := s.rtp.GM.FetchVertex(s.graph, vid)
		if err != nil {
			return err
		}

		if old != nil {
			restore := make(map[string]data.Value)

			for name := range props {
				restore[name] = old.Prop(name)
			}

			s.recordUndo(func() error {
				return s.rtp.GM.UpdateVertexProps(s.graph, vid, restore)
			})
		}
	}

	return s.rtp.GM.UpdateVertexProps(s.graph, vid, props)
}

/*
txUpdateEdgeProps updates edge properties and records the restoring
undo operation.
*/
func (s *Session) txUpdateEdgeProps(eid uint64, props map[string]data.Value) error {
	if s.tx != nil {
		old, err := s.rtp.GM.FetchEdge(s.graph, eid)
		if err != nil {
			return err
		}

		if old != nil {
			restore := make(map[string]data.Value)

			for name := range props {
				restore[name] = old.Prop(name)
			}

			s.recordUndo(func() error {
				return s.rtp.GM.UpdateEdgeProps(s.graph, eid, restore)
			})
		}
	}

	return s.rtp.GM.UpdateEdgeProps(s.graph, eid, props)
}

/*
txDeleteEdge deletes an edge and records the restoring undo operation.
*/
func (s *Session) txDeleteEdge(eid uint64) error {
	var old *graph.Edge

	if s.tx != nil {
		var err error

		if old, err = s.rtp.GM.FetchEdge(s.graph, eid); err != nil {
			return err
		}
	}

	if err := s.rtp.GM.DeleteEdge(s.graph, eid); err != nil {
		return err
	}

	if old != nil {
		s.recordUndo(func() error {
			return s.rtp.GM.RestoreEdge(s.graph, old.EID, old.Label,
				old.Src, old.Dst, old.Props)
		})
	}

	return nil
}

/*
txDeleteVertex deletes a vertex and records the restoring undo
operations. With the detach flag the edges are removed first so their
undo operations are recorded individually.
*/
func (s *Session) txDeleteVertex(vid uint64, detach bool) error {
	var old *graph.Node

	if s.tx != nil {
		var err error

		if old, err = s.rtp.GM.FetchVertex(s.graph, vid); err != nil {
			return err
		}
	}

	if detach {
		entries, err := s.rtp.GM.BothEdges(s.graph, vid)
		if err != nil {

			// A missing vertex surfaces from the delete below

			if !util.IsGraphError(err, util.ErrNotFound) {
				return err
			}

		} else {

			for _, entry := range entries {
				if err := s.txDeleteEdge(entry.EID); err != nil {
					return err
				}
			}
		}
	}

	if err := s.rtp.GM.DeleteVertex(s.graph, vid, false); err != nil {
		return err
	}

	if old != nil {
		s.recordUndo(func() error {
			return s.rtp.GM.RestoreVertex(s.graph, old.VID, old.Label, old.Props)
		})
	}

	return nil
}

// Statement execution
// ===================

/*
executeInsert executes an INSERT statement. Endpoint patterns of edges
whose primary key matches an existing vertex bind to that vertex,
everything else creates new vertices.
*/
func (s *Session) executeInsert(ctx context.Context, st *parser.InsertStatement) (*Result, error) {
	endpoint := make(map[int]bool)

	for _, e := range st.Edges {
		endpoint[e.Source] = true
		endpoint[e.Target] = true
	}

	schema, err := s.rtp.GM.Schema(s.graph)
	if err != nil {
		return nil, err
	}

	var verticesInserted, edgesInserted int64

	vids := make([]uint64, len(st.Nodes))

	for i, node := range st.Nodes {
		if err := checkContext(ctx); err != nil {
			return nil, err
		}

		label := singleLabelName(node.Labels)

		props, err := s.evalPropsMap(node.Props)
		if err != nil {
			return nil, err
		}

		// Endpoint patterns resolve against the primary key index first

		if endpoint[i] {
			vid, err := s.lookupByPK(schema, label, props)
			if err != nil {
				return nil, err
			}

			if vid != 0 {
				vids[i] = vid
				continue
			}

			if label == "" && len(props) == 0 {
				return nil, newBindError(
					"Edge endpoint pattern must have a label or bind to an existing vertex")
			}
		}

		if label == "" {
			return nil, newBindError("INSERT requires a single node label")
		}

		vid, err := s.txInsertVertex(label, props)
		if err != nil {
			return nil, err
		}

		vids[i] = vid
		verticesInserted++
	}

	for _, item := range st.Edges {
		if err := checkContext(ctx); err != nil {
			return nil, err
		}

		label := singleLabelName(item.Edge.Labels)
		if label == "" {
			return nil, newBindError("INSERT requires a single edge label")
		}

		props, err := s.evalPropsMap(item.Edge.Props)
		if err != nil {
			return nil, err
		}

		src, dst := vids[item.Source], vids[item.Target]

		switch item.Edge.Direction {
		case parser.DirOut:
		case parser.DirIn:
			src, dst = dst, src
		default:
			return nil, newBindError("INSERT requires a directed edge pattern")
		}

		if _, err := s.txInsertEdge(label, src, dst, props); err != nil {
			return nil, err
		}

		edgesInserted++
	}

	return &Result{
		Columns: []string{"vertices_inserted", "edges_inserted"},
		Rows: [][]data.Value{{data.IntValue(verticesInserted),
			data.IntValue(edgesInserted)}},
	}, nil
}

/*
lookupByPK resolves a node pattern against the primary key index.
Returns 0 if the pattern has no primary key value or no vertex
matches.
*/
func (s *Session) lookupByPK(schema *graph.Schema, label string,
	props map[string]data.Value) (uint64, error) {

	if schema == nil || label == "" {
		return 0, nil
	}

	pkProp := schema.PrimaryKey(label)
	if pkProp == "" {
		return 0, nil
	}

	key, ok := props[pkProp]
	if !ok || key.IsNull() {
		return 0, nil
	}

	return s.rtp.GM.VertexByKey(s.graph, label, key)
}

/*
evalPropsMap evaluates the property expressions of a pattern to
literal values.
*/
func (s *Session) evalPropsMap(props map[string]parser.Expr) (map[string]data.Value, error) {
	res := make(map[string]data.Value, len(props))

	for name, expr := range props {
		v, err := s.evalExpr(expr, bindingRow{})
		if err != nil {
			return nil, err
		}

		res[name] = v
	}

	return res, nil
}

/*
executeDelete executes a DELETE statement.
*/
func (s *Session) executeDelete(ctx context.Context, st *parser.DeleteStatement) (*Result, error) {
	stats := &ResultStats{}

	var verticesDeleted, edgesDeleted int64

	if st.Patterns == nil {

		// Without a match part the targets are literal vertex ids

		for _, target := range st.Targets {
			v, err := s.evalExpr(target, bindingRow{})
			if err != nil {
				return nil, err
			}

			vid, ok := v.AsFloat()
			if !ok {
				return nil, newBindError("DELETE target must be a vertex id")
			}

			if err := s.txDeleteVertex(uint64(vid), st.Detach); err != nil {
				return nil, err
			}

			verticesDeleted++
		}

	} else {

		rows, err := s.matchPatterns(ctx, st.Patterns, st.Where, stats)
		if err != nil {
			return nil, err
		}

		vids := make(map[uint64]bool)
		eids := make(map[uint64]bool)

		for _, row := range rows {
			for _, target := range st.Targets {
				v, ok := target.(*parser.Variable)
				if !ok {
					return nil, newBindError("DELETE target must be a variable")
				}

				b, bok := row[v.Name]
				if !bok {
					return nil, newBindError("Unknown variable: %v", v.Name)
				}

				switch b.kind {
				case bindNode:
					vids[b.node.VID] = true
				case bindEdge:
					eids[b.edge.EID] = true
				default:
					return nil, newBindError(
						"DELETE target %v must be a node or edge", v.Name)
				}
			}
		}

		// Edges are removed before their endpoints

		for eid := range eids {
			if err := s.txDeleteEdge(eid); err != nil {
				return nil, err
			}

			edgesDeleted++
		}

		for vid := range vids {
			if err := s.txDeleteVertex(vid, st.Detach); err != nil {
				return nil, err
			}

			verticesDeleted++
		}
	}

	res := &Result{
		Columns: []string{"vertices_deleted", "edges_deleted"},
		Rows: [][]data.Value{{data.IntValue(verticesDeleted),
			data.IntValue(edgesDeleted)}},
	}
	res.Stats = *stats

	return res, nil
}

/*
executeUpdate executes a SET statement.
*/
func (s *Session) executeUpdate(ctx context.Context, st *parser.UpdateStatement) (*Result, error) {
	stats := &ResultStats{}

	rows := []bindingRow{{}}

	if st.Patterns != nil {
		var err error

		if rows, err = s.matchPatterns(ctx, st.Patterns, st.Where, stats); err != nil {
			return nil, err
		}
	}

	var updated int64

	for _, row := range rows {
		for _, item := range st.Items {

			b, ok := row[item.Var]
			if !ok {
				return nil, newBindError("Unknown variable: %v", item.Var)
			}

			props := make(map[string]data.Value)

			if item.Prop != "" {
				v, err := s.evalExpr(item.Value, row)
				if err != nil {
					return nil, err
				}

				props[item.Prop] = v

			} else {

				for name, expr := range item.Props {
					v, err := s.evalExpr(expr, row)
					if err != nil {
						return nil, err
					}

					props[name] = v
				}
			}

			switch b.kind {

			case bindNode:
				if err := s.txUpdateVertexProps(b.node.VID, props); err != nil {
					return nil, err
				}

			case bindEdge:
				if err := s.txUpdateEdgeProps(b.edge.EID, props); err != nil {
					return nil, err
				}

			default:
				return nil, newBindError("SET target %v must be a node or edge",
					item.Var)
			}

			updated++
		}
	}

	res := &Result{
		Columns: []string{"updated"},
		Rows:    [][]data.Value{{data.IntValue(updated)}},
	}
	res.Stats = *stats

	return res, nil
}

/*
executeTransaction executes a transaction control statement.
*/
func (s *Session) executeTransaction(st *parser.TransactionStatement) (*Result, error) {
	switch st.Kind {

	case parser.TransStart:
		if s.tx != nil {
			return nil, &util.GraphError{Type: util.ErrConstraint,
				Detail: "A transaction is already active"}
		}

		s.tx = &transaction{readOnly: st.ReadOnly}

		if st.ReadOnly {
			return emptyResult("Transaction started (READ ONLY)"), nil
		}

		return emptyResult("Transaction started (READ WRITE)"), nil

	case parser.TransCommit:
		if s.tx == nil {
			return nil, &util.GraphError{Type: util.ErrConstraint,
				Detail: "No active transaction"}
		}

		if s.tx.rollbackOnly {
			return nil, &util.GraphError{Type: util.ErrConstraint,
				Detail: "Transaction is rollback-only"}
		}

		s.tx = nil

		return emptyResult("Transaction committed"), nil

	case parser.TransRollback:
		if s.tx == nil {
			return nil, &util.GraphError{Type: util.ErrConstraint,
				Detail: "No active transaction"}
		}

		tx := s.tx
		s.tx = nil

		if len(tx.undo) > 0 {

			if err := s.rtp.GM.WriteLock(s.graph); err != nil {
				return nil, err
			}
			defer s.rtp.GM.WriteUnlock(s.graph)

			// The undo log is applied in reverse

			for i := len(tx.undo) - 1; i >= 0; i-- {
				if err := tx.undo[i](); err != nil {
					return nil, &util.GraphError{Type: util.ErrInternal,
						Detail: fmt.Sprintf("Rollback failed: %v", err)}
				}
			}
		}

		return emptyResult("Transaction rolled back"), nil
	}

	return nil, &util.GraphError{Type: util.ErrInternal,
		Detail: "Unknown transaction statement"}
}
