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

	"devt.de/krotik/common/sortutil"
	"github.com/MuYiYong/ChainGraph/graph"
)

/*
FlowEdge is a directed vertex pair in a flow network.
*/
type FlowEdge struct {
	Src uint64
	Dst uint64
}

/*
MaxFlowResult holds the outcome of a max flow computation.
*/
type MaxFlowResult struct {
	Value      float64              // Total flow from source to sink
	Flow       map[FlowEdge]float64 // Positive flow per vertex pair
	SourceSide []uint64             // Source side vertex set of the min cut
}

/*
MaxFlow computes the maximum flow from src to sink with the
Edmonds-Karp algorithm. Edge capacities are taken from the amount
property of each edge, parallel edges between the same vertex pair
accumulate. Edges without a positive numeric amount contribute a
capacity of 1.
*/
func MaxFlow(ctx context.Context, gm *graph.Manager, g string,
	src uint64, sink uint64) (*MaxFlowResult, error) {

	if err := requireVertex(gm, g, src); err != nil {
		return nil, err
	}
	if err := requireVertex(gm, g, sink); err != nil {
		return nil, err
	}

	// Build the capacity network from the outgoing adjacency of all
	// vertices reachable from the source

	capacity := make(map[FlowEdge]float64)
	adj := make(map[uint64][]uint64)

	addNeighbor := func(from uint64, to uint64) {
		for _, n := range adj[from] {
			if n == to {
				return
			}
		}
		adj[from] = append(adj[from], to)
	}

	var visited vidSet

	visited.Add(src)
	queue := []uint64{src}

	for len(queue) > 0 {
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
			amount, _, err := edgeAmount(gm, g, e.EID)
			if err != nil {
				return nil, err
			}

			capacity[FlowEdge{current, e.Neighbor}] += amount

			addNeighbor(current, e.Neighbor)
			addNeighbor(e.Neighbor, current) // residual direction

			if !visited.Has(e.Neighbor) {
				visited.Add(e.Neighbor)
				queue = append(queue, e.Neighbor)
			}
		}
	}

	flow := make(map[FlowEdge]float64)

	var total float64

	// Repeatedly find a shortest augmenting path and saturate it

	for {
		if err := checkCancelled(ctx); err != nil {
			return nil, err
		}

		path, bottleneck := bfsAugmentingPath(src, sink, capacity, flow, adj)

		if path == nil {
			break
		}

		for i := 0; i < len(path)-1; i++ {
			flow[FlowEdge{path[i], path[i+1]}] += bottleneck
			flow[FlowEdge{path[i+1], path[i]}] -= bottleneck
		}

		total += bottleneck
	}

	// The source side of the min cut is everything still reachable in
	// the residual network

	var side vidSet
	var sideList []uint64

	side.Add(src)
	sideList = append(sideList, src)
	queue = []uint64{src}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, n := range adj[current] {
			if side.Has(n) {
				continue
			}

			if capacity[FlowEdge{current, n}]-flow[FlowEdge{current, n}] > 0 {
				side.Add(n)
				sideList = append(sideList, n)
				queue = append(queue, n)
			}
		}
	}

	sortutil.UInt64s(sideList)

	// Only positive flows are reported

	positive := make(map[FlowEdge]float64)

	for edge, f := range flow {
		if f > 0 {
			positive[edge] = f
		}
	}

	return &MaxFlowResult{Value: total, Flow: positive, SourceSide: sideList}, nil
}

/*
bfsAugmentingPath finds a shortest path with remaining residual
capacity. Returns the path and its bottleneck capacity or nil.
*/
func bfsAugmentingPath(src uint64, sink uint64, capacity map[FlowEdge]float64,
	flow map[FlowEdge]float64, adj map[uint64][]uint64) ([]uint64, float64) {

	var visited vidSet

	parent := make(map[uint64]uint64)

	visited.Add(src)
	queue := []uint64{src}

	var found bool

	for len(queue) > 0 && !found {
		current := queue[0]
		queue = queue[1:]

		for _, n := range adj[current] {
			residual := capacity[FlowEdge{current, n}] - flow[FlowEdge{current, n}]

			if !visited.Has(n) && residual > 0 {
				visited.Add(n)
				parent[n] = current

				if n == sink {
					found = true
					break
				}

				queue = append(queue, n)
			}
		}
	}

	if !found {
		return nil, 0
	}

	// Reconstruct the path and find the bottleneck

	var path []uint64

	for current := sink; ; {
		path = append([]uint64{current}, path...)

		if current == src {
			break
		}

		current = parent[current]
	}

	bottleneck := capacity[FlowEdge{path[0], path[1]}] - flow[FlowEdge{path[0], path[1]}]

	for i := 1; i < len(path)-1; i++ {
		residual := capacity[FlowEdge{path[i], path[i+1]}] - flow[FlowEdge{path[i], path[i+1]}]

		if residual < bottleneck {
			bottleneck = residual
		}
	}

	return path, bottleneck
}
