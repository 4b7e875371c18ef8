/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package algo contains the graph algorithms behind the built-in query
procedures.

All algorithms operate on the adjacency chains of a graph through the
graph Manager and run against the snapshot which the caller pinned by
taking the graph read lock. Visited sets are bitmaps keyed by vertex id
which live for a single invocation. Long running searches poll a
cancellation context between vertex expansions.
*/
package algo

import (
	"context"
	"fmt"

	"github.com/MuYiYong/ChainGraph/graph"
	"github.com/MuYiYong/ChainGraph/graph/util"
)

/*
Trace directions
*/
const (
	DirForward  = "forward"
	DirBackward = "backward"
	DirBoth     = "both"
)

/*
ParseDirection normalizes a direction argument. Unknown values default
to forward tracing.
*/
func ParseDirection(s string) string {
	switch s {
	case DirBackward, "back":
		return DirBackward
	case DirBoth:
		return DirBoth
	}

	return DirForward
}

/*
Path is a traversal result consisting of a vertex id sequence and the
edge ids which connect them.
*/
type Path struct {
	VIDs   []uint64 // Vertex ids of the path in order
	EIDs   []uint64 // Edge ids of the path in order
	Weight float64  // Path weight (see pathWeight)
}

/*
vidSet is a growable bitmap over vertex ids.
*/
type vidSet struct {
	bits []uint64
}

/*
Add adds a vertex id to the set.
*/
func (s *vidSet) Add(vid uint64) {
	idx := vid >> 6

	for uint64(len(s.bits)) <= idx {
		s.bits = append(s.bits, 0)
	}

	s.bits[idx] |= 1 << (vid & 63)
}

/*
Remove removes a vertex id from the set.
*/
func (s *vidSet) Remove(vid uint64) {
	if idx := vid >> 6; idx < uint64(len(s.bits)) {
		s.bits[idx] &^= 1 << (vid & 63)
	}
}

/*
Has checks if a vertex id is in the set.
*/
func (s *vidSet) Has(vid uint64) bool {
	idx := vid >> 6

	return idx < uint64(len(s.bits)) && s.bits[idx]&(1<<(vid&63)) != 0
}

/*
checkCancelled polls the cancellation context.
*/
func checkCancelled(ctx context.Context) error {
	if ctx == nil {
		return nil
	}

	switch ctx.Err() {
	case context.Canceled:
		return &util.GraphError{Type: util.ErrCancelled, Detail: "Operation was cancelled"}
	case context.DeadlineExceeded:
		return &util.GraphError{Type: util.ErrTimeout, Detail: "Operation timed out"}
	}

	return nil
}

/*
requireVertex checks that a vertex exists.
*/
func requireVertex(gm *graph.Manager, g string, vid uint64) error {
	node, err := gm.FetchVertex(g, vid)
	if err != nil {
		return err
	}

	if node == nil {
		return &util.GraphError{Type: util.ErrNotFound,
			Detail: fmt.Sprintf("Vertex %v does not exist", vid)}
	}

	return nil
}

/*
edgeAmount returns the capacity contribution of an edge. The amount
property is used if it is numeric and positive, otherwise the edge
contributes a capacity of 1.
*/
func edgeAmount(gm *graph.Manager, g string, eid uint64) (float64, bool, error) {
	edge, err := gm.FetchEdge(g, eid)
	if err != nil {
		return 0, false, err
	}

	if edge != nil {
		if f, ok := edge.Prop("amount").AsFloat(); ok && f > 0 {
			return f, true, nil
		}
	}

	return 1.0, false, nil
}

/*
pathWeight computes the weight of a path. The weight is the edge count
unless every traversed edge has a positive numeric amount property in
which case it is the sum of those amounts.
*/
func pathWeight(gm *graph.Manager, g string, eids []uint64) (float64, error) {
	var sum float64
	var allNumeric = true

	for _, eid := range eids {
		f, numeric, err := edgeAmount(gm, g, eid)
		if err != nil {
			return 0, err
		}

		allNumeric = allNumeric && numeric
		sum += f
	}

	if !allNumeric {
		return float64(len(eids)), nil
	}

	return sum, nil
}

/*
expand returns the adjacency entries of a vertex in a given direction.
*/
func expand(gm *graph.Manager, g string, vid uint64, direction string) ([]graph.AdjEntry, error) {
	switch direction {
	case DirBackward:
		return gm.InEdges(g, vid)
	case DirBoth:
		return gm.BothEdges(g, vid)
	}

	return gm.OutEdges(g, vid)
}
