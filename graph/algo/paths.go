/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package algo

import (
	"context"

	"github.com/MuYiYong/ChainGraph/graph"
)

/*
DefaultMaxDepth is the depth limit used when a caller does not supply
one. Unbounded path enumeration is not available.
*/
const DefaultMaxDepth = 10

/*
ShortestPath returns one minimum hop path from src to dst following
outgoing edges. Ties break in favour of the first discovered path in
BFS order. Returns nil if dst is not reachable.
*/
func ShortestPath(ctx context.Context, gm *graph.Manager, g string,
	src uint64, dst uint64) (*Path, error) {

	if err := requireVertex(gm, g, src); err != nil {
		return nil, err
	}
	if err := requireVertex(gm, g, dst); err != nil {
		return nil, err
	}

	if src == dst {
		return &Path{VIDs: []uint64{src}}, nil
	}

	type hop struct {
		parent uint64
		eid    uint64
	}

	var visited vidSet
	parents := make(map[uint64]hop)

	visited.Add(src)
	queue := []uint64{src}

	var found bool

	for len(queue) > 0 && !found {
		current := queue[0]
		queue = queue[1:]

		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}

		entries, err := gm.OutEdges(g, current)
		if err != nil {
			return nil, err
		}

		for _, e := range entries {
			if visited.Has(e.Neighbor) {
				continue
			}

			visited.Add(e.Neighbor)
			parents[e.Neighbor] = hop{current, e.EID}

			if e.Neighbor == dst {
				found = true
				break
			}

			queue = append(queue, e.Neighbor)
		}
	}

	if !found {
		return nil, nil
	}

	// Reconstruct the path from the parent pointers

	var vids, eids []uint64

	for current := dst; current != src; {
		h := parents[current]

		vids = append([]uint64{current}, vids...)
		eids = append([]uint64{h.eid}, eids...)

		current = h.parent
	}

	vids = append([]uint64{src}, vids...)

	weight, err := pathWeight(gm, g, eids)
	if err != nil {
		return nil, err
	}

	return &Path{VIDs: vids, EIDs: eids, Weight: weight}, nil
}

/*
AllPaths enumerates all simple paths (no repeated vertex) from src to
dst with at most maxDepth hops.
*/
func AllPaths(ctx context.Context, gm *graph.Manager, g string,
	src uint64, dst uint64, maxDepth int) ([]Path, error) {

	if err := requireVertex(gm, g, src); err != nil {
		return nil, err
	}
	if err := requireVertex(gm, g, dst); err != nil {
		return nil, err
	}

	var results []Path
	var visited vidSet

	visited.Add(src)

	current := Path{VIDs: []uint64{src}}

	var dfs func(vid uint64, depth int) error

	dfs = func(vid uint64, depth int) error {
		if vid == dst {
			results = append(results, clonePath(current))
			return nil
		}

		if depth == 0 {
			return nil
		}

		if err := checkCancelled(ctx); err != nil {
			return err
		}

		entries, err := gm.OutEdges(g, vid)
		if err != nil {
			return err
		}

		for _, e := range entries {
			if visited.Has(e.Neighbor) {
				continue
			}

			visited.Add(e.Neighbor)
			current.VIDs = append(current.VIDs, e.Neighbor)
			current.EIDs = append(current.EIDs, e.EID)

			if err := dfs(e.Neighbor, depth-1); err != nil {
				return err
			}

			current.VIDs = current.VIDs[:len(current.VIDs)-1]
			current.EIDs = current.EIDs[:len(current.EIDs)-1]
			visited.Remove(e.Neighbor)
		}

		return nil
	}

	if err := dfs(src, maxDepth); err != nil {
		return nil, err
	}

	for i := range results {
		weight, err := pathWeight(gm, g, results[i].EIDs)
		if err != nil {
			return nil, err
		}

		results[i].Weight = weight
	}

	return results, nil
}

/*
Trace enumerates every reachable path prefix from start up to maxDepth
hops. The direction selects outgoing, incoming or either adjacency.
Paths never revisit one of their own vertices.
*/
func Trace(ctx context.Context, gm *graph.Manager, g string, start uint64,
	direction string, maxDepth int) ([]Path, error) {

	if err := requireVertex(gm, g, start); err != nil {
		return nil, err
	}

	var results []Path

	queue := []Path{{VIDs: []uint64{start}}}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if len(current.EIDs) >= maxDepth {
			continue
		}

		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}

		tail := current.VIDs[len(current.VIDs)-1]

		entries, err := expand(gm, g, tail, direction)
		if err != nil {
			return nil, err
		}

		for _, e := range entries {

			if containsVID(current.VIDs, e.Neighbor) {
				continue
			}

			next := clonePath(current)
			next.VIDs = append(next.VIDs, e.Neighbor)
			next.EIDs = append(next.EIDs, e.EID)

			weight, err := pathWeight(gm, g, next.EIDs)
			if err != nil {
				return nil, err
			}
			next.Weight = weight

			results = append(results, next)
			queue = append(queue, next)
		}
	}

	return results, nil
}

/*
Connected checks if dst is reachable from src via directed edges.
*/
func Connected(ctx context.Context, gm *graph.Manager, g string,
	src uint64, dst uint64) (bool, error) {

	if err := requireVertex(gm, g, src); err != nil {
		return false, err
	}
	if err := requireVertex(gm, g, dst); err != nil {
		return false, err
	}

	if src == dst {
		return true, nil
	}

	var visited vidSet

	visited.Add(src)
	queue := []uint64{src}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		if err := checkCancelled(ctx); err != nil {
			return false, err
		}

		entries, err := gm.OutEdges(g, current)
		if err != nil {
			return false, err
		}

		for _, e := range entries {
			if e.Neighbor == dst {
				return true, nil
			}

			if !visited.Has(e.Neighbor) {
				visited.Add(e.Neighbor)
				queue = append(queue, e.Neighbor)
			}
		}
	}

	return false, nil
}

/*
NeighborEntry is a single result of the neighbors procedure.
*/
type NeighborEntry struct {
	Direction string // "out" or "in" as seen from the start vertex
	VID       uint64 // Vertex id of the neighbor
}

/*
Neighbors enumerates the direct neighbors of a vertex in a given
direction.
*/
func Neighbors(ctx context.Context, gm *graph.Manager, g string, vid uint64,
	direction string) ([]NeighborEntry, error) {

	if err := requireVertex(gm, g, vid); err != nil {
		return nil, err
	}

	if err := checkCancelled(ctx); err != nil {
		return nil, err
	}

	var res []NeighborEntry

	if direction == DirForward || direction == DirBoth {
		entries, err := gm.OutEdges(g, vid)
		if err != nil {
			return nil, err
		}

		for _, e := range entries {
			res = append(res, NeighborEntry{"out", e.Neighbor})
		}
	}

	if direction == DirBackward || direction == DirBoth {
		entries, err := gm.InEdges(g, vid)
		if err != nil {
			return nil, err
		}

		for _, e := range entries {
			res = append(res, NeighborEntry{"in", e.Neighbor})
		}
	}

	return res, nil
}

/*
clonePath returns a deep copy of a path.
*/
func clonePath(p Path) Path {
	c := Path{Weight: p.Weight}

	c.VIDs = append(c.VIDs, p.VIDs...)
	c.EIDs = append(c.EIDs, p.EIDs...)

	return c
}

/*
containsVID checks if a vertex id appears in a given sequence.
*/
func containsVID(vids []uint64, vid uint64) bool {
	for _, v := range vids {
		if v == vid {
			return true
		}
	}

	return false
}
