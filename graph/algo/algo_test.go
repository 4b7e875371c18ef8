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
	"flag"
	"fmt"
	"os"
	"testing"

	"devt.de/krotik/common/fileutil"
	"github.com/MuYiYong/ChainGraph/graph"
	"github.com/MuYiYong/ChainGraph/graph/data"
	"github.com/MuYiYong/ChainGraph/graph/util"
	"github.com/MuYiYong/ChainGraph/storage/buffer"
	"github.com/MuYiYong/ChainGraph/storage/file"
)

const AlgoTestDBDir1 = "algotest1"
const AlgoTestDBDir2 = "algotest2"
const AlgoTestDBDir3 = "algotest3"

var DBDIRS = []string{AlgoTestDBDir1, AlgoTestDBDir2, AlgoTestDBDir3}

// Main function for all tests in this package

func TestMain(m *testing.M) {
	flag.Parse()

	for _, dbdir := range DBDIRS {
		if res, _ := fileutil.PathExists(dbdir); res {
			if err := os.RemoveAll(dbdir); err != nil {
				fmt.Print("Could not remove test directory:", err.Error())
			}
		}
	}

	res := m.Run()

	for _, dbdir := range DBDIRS {
		if res, _ := fileutil.PathExists(dbdir); res {
			if err := os.RemoveAll(dbdir); err != nil {
				fmt.Print("Could not remove test directory:", err.Error())
			}
		}
	}

	os.Exit(res)
}

/*
newTestGraph creates a manager with a single graph and returns a helper
to insert account vertices and transfer edges.
*/
func newTestGraph(t *testing.T, dbdir string) (*graph.Manager, *file.DataFile,
	func(name string) uint64, func(src uint64, dst uint64, amount int64) uint64) {

	df, err := file.Open(dbdir)
	if err != nil {
		t.Fatal(err)
	}

	gm, err := graph.NewManager(df, buffer.NewPool(df, 256))
	if err != nil {
		t.Fatal(err)
	}

	if err := gm.CreateGraph("main", nil); err != nil {
		t.Fatal(err)
	}

	addVertex := func(name string) uint64 {
		vid, err := gm.InsertVertex("main", "Account",
			map[string]data.Value{"name": data.StringValue(name)})
		if err != nil {
			t.Fatal(err)
		}
		return vid
	}

	addEdge := func(src uint64, dst uint64, amount int64) uint64 {
		props := map[string]data.Value{}
		if amount >= 0 {
			props["amount"] = data.IntValue(amount)
		}

		eid, err := gm.InsertEdge("main", "Transfer", src, dst, props)
		if err != nil {
			t.Fatal(err)
		}
		return eid
	}

	return gm, df, addVertex, addEdge
}

func TestShortestPathAndAllPaths(t *testing.T) {
	gm, df, addVertex, addEdge := newTestGraph(t, AlgoTestDBDir1)
	defer df.Close()

	// Triangle: A -> B -> C and C -> A, each with amount 5

	a := addVertex("A")
	b := addVertex("B")
	c := addVertex("C")

	addEdge(a, b, 5)
	addEdge(b, c, 5)
	addEdge(c, a, 5)

	path, err := ShortestPath(nil, gm, "main", a, c)
	if err != nil {
		t.Error(err)
		return
	}

	if len(path.EIDs) != 2 ||
		path.VIDs[0] != a || path.VIDs[1] != b || path.VIDs[2] != c {
		t.Error("Unexpected path:", path)
		return
	}

	// All edges carry a numeric amount so the weight is the amount sum

	if path.Weight != 10 {
		t.Error("Unexpected weight:", path.Weight)
		return
	}

	// Shortest path from a vertex to itself is the zero length path

	path, err = ShortestPath(nil, gm, "main", a, a)
	if err != nil {
		t.Error(err)
		return
	}

	if len(path.VIDs) != 1 || path.VIDs[0] != a || len(path.EIDs) != 0 {
		t.Error("Unexpected self path:", path)
		return
	}

	// Missing endpoints surface as not found

	if _, err := ShortestPath(nil, gm, "main", a, 99); !util.IsGraphError(err, util.ErrNotFound) {
		t.Error("Expected a not found error, got:", err)
		return
	}

	// All paths with depth limits

	paths, err := AllPaths(nil, gm, "main", a, c, 10)
	if err != nil {
		t.Error(err)
		return
	}

	if len(paths) != 1 {
		t.Error("Unexpected number of paths:", len(paths))
		return
	}

	// A depth limit of 0 yields the empty stream for distinct endpoints

	paths, err = AllPaths(nil, gm, "main", a, c, 0)
	if err != nil || len(paths) != 0 {
		t.Error("Unexpected result:", paths, err)
		return
	}

	// Connectivity

	if res, err := Connected(nil, gm, "main", a, c); err != nil || !res {
		t.Error("Unexpected result:", res, err)
		return
	}

	d := addVertex("D")

	if res, err := Connected(nil, gm, "main", d, a); err != nil || res {
		t.Error("Unexpected result:", res, err)
		return
	}

	// Cancellation surfaces as cancelled

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := ShortestPath(ctx, gm, "main", a, c); !util.IsGraphError(err, util.ErrCancelled) {
		t.Error("Expected a cancelled error, got:", err)
		return
	}
}

func TestTraceAndNeighbors(t *testing.T) {
	gm, df, addVertex, addEdge := newTestGraph(t, AlgoTestDBDir2)
	defer df.Close()

	// A -> B, B -> C, B -> D, A -> E

	a := addVertex("A")
	b := addVertex("B")
	c := addVertex("C")
	d := addVertex("D")
	e := addVertex("E")

	addEdge(a, b, -1)
	addEdge(b, c, -1)
	addEdge(b, d, -1)
	addEdge(a, e, -1)

	paths, err := Trace(nil, gm, "main", a, DirForward, 2)
	if err != nil {
		t.Error(err)
		return
	}

	// Expected path prefixes: A->B, A->E, A->B->C, A->B->D

	expected := map[string]bool{
		fmt.Sprint([]uint64{a, b}):    true,
		fmt.Sprint([]uint64{a, e}):    true,
		fmt.Sprint([]uint64{a, b, c}): true,
		fmt.Sprint([]uint64{a, b, d}): true,
	}

	if len(paths) != len(expected) {
		t.Error("Unexpected number of paths:", len(paths))
		return
	}

	for _, p := range paths {
		if !expected[fmt.Sprint(p.VIDs)] {
			t.Error("Unexpected path:", p.VIDs)
			return
		}
	}

	// Backward trace from C

	paths, err = Trace(nil, gm, "main", c, DirBackward, 2)
	if err != nil {
		t.Error(err)
		return
	}

	if len(paths) != 2 {
		t.Error("Unexpected number of backward paths:", len(paths))
		return
	}

	// Neighbors and direction parsing

	if ParseDirection("back") != DirBackward || ParseDirection("bogus") != DirForward {
		t.Error("Unexpected direction parsing")
		return
	}

	neighbors, err := Neighbors(nil, gm, "main", b, DirBoth)
	if err != nil {
		t.Error(err)
		return
	}

	if len(neighbors) != 3 {
		t.Error("Unexpected neighbors:", neighbors)
		return
	}

	var ins, outs int
	for _, n := range neighbors {
		if n.Direction == "in" {
			ins++
		} else {
			outs++
		}
	}

	if ins != 1 || outs != 2 {
		t.Error("Unexpected neighbor directions:", neighbors)
		return
	}
}

func TestMaxFlow(t *testing.T) {
	gm, df, addVertex, addEdge := newTestGraph(t, AlgoTestDBDir3)
	defer df.Close()

	// Bipartite network: A->B (10), A->C (10), B->D (5), C->D (10)

	a := addVertex("A")
	b := addVertex("B")
	c := addVertex("C")
	d := addVertex("D")

	addEdge(a, b, 10)
	addEdge(a, c, 10)
	addEdge(b, d, 5)
	addEdge(c, d, 10)

	res, err := MaxFlow(nil, gm, "main", a, d)
	if err != nil {
		t.Error(err)
		return
	}

	if res.Value != 15 {
		t.Error("Unexpected flow value:", res.Value)
		return
	}

	if res.Flow[FlowEdge{a, b}] != 5 || res.Flow[FlowEdge{a, c}] != 10 ||
		res.Flow[FlowEdge{b, d}] != 5 || res.Flow[FlowEdge{c, d}] != 10 {
		t.Error("Unexpected flow assignment:", res.Flow)
		return
	}

	if fmt.Sprint(res.SourceSide) != fmt.Sprint([]uint64{a, b}) {
		t.Error("Unexpected source side:", res.SourceSide)
		return
	}

	// Edges without a numeric amount default to capacity 1

	e := addVertex("E")
	f := addVertex("F")

	addEdge(e, f, -1)

	res, err = MaxFlow(nil, gm, "main", e, f)
	if err != nil || res.Value != 1 {
		t.Error("Unexpected flow value:", res, err)
		return
	}

	// No path means zero flow

	res, err = MaxFlow(nil, gm, "main", d, a)
	if err != nil || res.Value != 0 {
		t.Error("Unexpected flow value:", res, err)
		return
	}
}
