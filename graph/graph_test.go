/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package graph

import (
	"flag"
	"fmt"
	"os"
	"testing"

	"devt.de/krotik/common/fileutil"
	"github.com/MuYiYong/ChainGraph/graph/data"
	"github.com/MuYiYong/ChainGraph/storage/buffer"
	"github.com/MuYiYong/ChainGraph/storage/file"
)

const GraphManagerTestDBDir1 = "gmtest1"
const GraphManagerTestDBDir2 = "gmtest2"
const GraphManagerTestDBDir3 = "gmtest3"
const GraphManagerTestDBDir4 = "gmtest4"

var DBDIRS = []string{GraphManagerTestDBDir1, GraphManagerTestDBDir2,
	GraphManagerTestDBDir3, GraphManagerTestDBDir4}

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
newTestManager creates a manager over a fresh datastore.
*/
func newTestManager(t *testing.T, dbdir string) (*Manager, *file.DataFile) {
	df, err := file.Open(dbdir)
	if err != nil {
		t.Fatal(err)
	}

	gm, err := NewManager(df, buffer.NewPool(df, 256))
	if err != nil {
		t.Fatal(err)
	}

	return gm, df
}

/*
accountSchema returns the schema used by most tests.
*/
func accountSchema() *Schema {
	return &Schema{
		Nodes: []NodeDef{{
			Label: "Account",
			Props: []PropDef{
				{Name: "address", Type: "string", PrimaryKey: true},
				{Name: "balance", Type: "amount"},
			},
		}},
		Edges: []EdgeDef{{
			Label:       "Transfer",
			SourceLabel: "Account",
			TargetLabel: "Account",
			Props:       []PropDef{{Name: "amount", Type: "int"}},
		}},
	}
}

func TestVertexCRUD(t *testing.T) {
	gm, df := newTestManager(t, GraphManagerTestDBDir1)
	defer df.Close()

	if err := gm.CreateGraph("main", accountSchema()); err != nil {
		t.Error(err)
		return
	}

	if err := gm.CreateGraph("main", nil); err == nil {
		t.Error("Creating an existing graph should fail")
		return
	}

	v1, err := gm.InsertVertex("main", "Account",
		map[string]data.Value{"address": data.StringValue("0xA")})
	if err != nil {
		t.Error(err)
		return
	}

	v2, err := gm.InsertVertex("main", "Account",
		map[string]data.Value{"address": data.StringValue("0xB")})
	if err != nil {
		t.Error(err)
		return
	}

	if v1 != 1 || v2 != 2 {
		t.Error("Unexpected vertex ids:", v1, v2)
		return
	}

	// Primary key collision

	if _, err := gm.InsertVertex("main", "Account",
		map[string]data.Value{"address": data.StringValue("0xA")}); err == nil {
		t.Error("Inserting a duplicate primary key should fail")
		return
	}

	// Schema violations

	if _, err := gm.InsertVertex("main", "Unknown", nil); err == nil {
		t.Error("Inserting an undeclared label should fail")
		return
	}

	if _, err := gm.InsertVertex("main", "Account",
		map[string]data.Value{"bogus": data.IntValue(1)}); err == nil {
		t.Error("Inserting an undeclared property should fail")
		return
	}

	if _, err := gm.InsertVertex("main", "Account",
		map[string]data.Value{"address": data.IntValue(1)}); err == nil {
		t.Error("Inserting a wrongly typed property should fail")
		return
	}

	// Lookup by primary key

	vid, err := gm.VertexByKey("main", "Account", data.StringValue("0xB"))
	if err != nil {
		t.Error(err)
		return
	}

	if vid != v2 {
		t.Error("Unexpected lookup result:", vid)
		return
	}

	node, err := gm.FetchVertex("main", v1)
	if err != nil {
		t.Error(err)
		return
	}

	if node.Label != "Account" || node.Prop("address").Str() != "0xA" {
		t.Error("Unexpected node:", node)
		return
	}

	// Update properties

	if err := gm.UpdateVertexProps("main", v1, map[string]data.Value{
		"balance": data.AmountFromUInt64(1000)}); err != nil {
		t.Error(err)
		return
	}

	node, _ = gm.FetchVertex("main", v1)
	if !node.Prop("balance").Equals(data.AmountFromUInt64(1000)) {
		t.Error("Unexpected balance:", node.Prop("balance"))
		return
	}

	// A primary key change maintains the index

	if err := gm.UpdateVertexProps("main", v1, map[string]data.Value{
		"address": data.StringValue("0xAA")}); err != nil {
		t.Error(err)
		return
	}

	if vid, _ := gm.VertexByKey("main", "Account", data.StringValue("0xA")); vid != 0 {
		t.Error("Old key should be gone:", vid)
		return
	}

	if vid, _ := gm.VertexByKey("main", "Account", data.StringValue("0xAA")); vid != v1 {
		t.Error("New key should resolve:", vid)
		return
	}

	// A primary key collision on update fails

	if err := gm.UpdateVertexProps("main", v1, map[string]data.Value{
		"address": data.StringValue("0xB")}); err == nil {
		t.Error("Updating to an existing primary key should fail")
		return
	}

	// Deletion

	if err := gm.DeleteVertex("main", v1, false); err != nil {
		t.Error(err)
		return
	}

	if node, _ := gm.FetchVertex("main", v1); node != nil {
		t.Error("Deleted vertex should be gone")
		return
	}

	if vid, _ := gm.VertexByKey("main", "Account", data.StringValue("0xAA")); vid != 0 {
		t.Error("Deleted vertex should be removed from the index:", vid)
		return
	}

	if vc, _, _ := gm.Counts("main"); vc != 1 {
		t.Error("Unexpected vertex count:", vc)
		return
	}

	if err := gm.DeleteVertex("main", v1, false); err == nil {
		t.Error("Deleting a missing vertex should fail")
		return
	}
}

func TestEdgesAndAdjacency(t *testing.T) {
	gm, df := newTestManager(t, GraphManagerTestDBDir2)
	defer df.Close()

	if err := gm.CreateGraph("main", nil); err != nil {
		t.Error(err)
		return
	}

	var vids []uint64

	for i := 0; i < 3; i++ {
		vid, err := gm.InsertVertex("main", "Account", map[string]data.Value{
			"name": data.StringValue(fmt.Sprint("v", i+1))})
		if err != nil {
			t.Error(err)
			return
		}
		vids = append(vids, vid)
	}

	e1, err := gm.InsertEdge("main", "Transfer", vids[0], vids[1],
		map[string]data.Value{"amount": data.IntValue(5)})
	if err != nil {
		t.Error(err)
		return
	}

	e2, err := gm.InsertEdge("main", "Transfer", vids[1], vids[2],
		map[string]data.Value{"amount": data.IntValue(7)})
	if err != nil {
		t.Error(err)
		return
	}

	// A self loop shows up once in BothEdges

	eLoop, err := gm.InsertEdge("main", "Transfer", vids[0], vids[0], nil)
	if err != nil {
		t.Error(err)
		return
	}

	if _, err := gm.InsertEdge("main", "Transfer", vids[0], 99, nil); err == nil {
		t.Error("Inserting an edge to a missing vertex should fail")
		return
	}

	out, err := gm.OutEdges("main", vids[0])
	if err != nil {
		t.Error(err)
		return
	}

	if len(out) != 2 {
		t.Error("Unexpected out edges:", out)
		return
	}

	both, err := gm.BothEdges("main", vids[0])
	if err != nil {
		t.Error(err)
		return
	}

	if len(both) != 2 {
		t.Error("Self loop should only be reported once:", both)
		return
	}

	in, out2, err := gm.Degree("main", vids[1])
	if err != nil || in != 1 || out2 != 1 {
		t.Error("Unexpected degree:", in, out2, err)
		return
	}

	edge, err := gm.FetchEdge("main", e1)
	if err != nil {
		t.Error(err)
		return
	}

	if edge.Src != vids[0] || edge.Dst != vids[1] ||
		edge.Prop("amount").Int() != 5 {
		t.Error("Unexpected edge:", edge)
		return
	}

	// Deleting a vertex with edges requires detach

	if err := gm.DeleteVertex("main", vids[0], false); err == nil {
		t.Error("Deleting a connected vertex should fail")
		return
	}

	if err := gm.DeleteEdge("main", eLoop); err != nil {
		t.Error(err)
		return
	}

	// Insert then delete restores the adjacency state

	if err := gm.DeleteEdge("main", e1); err != nil {
		t.Error(err)
		return
	}

	out, _ = gm.OutEdges("main", vids[0])
	if len(out) != 0 {
		t.Error("Adjacency should be restored:", out)
		return
	}

	in3, _, _ := gm.Degree("main", vids[1])
	if in3 != 0 {
		t.Error("Incoming chain should be restored")
		return
	}

	// Detach delete removes the remaining edge from both chains

	if err := gm.DeleteVertex("main", vids[1], true); err != nil {
		t.Error(err)
		return
	}

	if edge, _ := gm.FetchEdge("main", e2); edge != nil {
		t.Error("Edge should be gone after detach delete")
		return
	}

	in4, _, err := gm.Degree("main", vids[2])
	if err != nil || in4 != 0 {
		t.Error("Unexpected degree after detach delete:", in4, err)
		return
	}

	if _, ec, _ := gm.Counts("main"); ec != 0 {
		t.Error("Unexpected edge count:", ec)
		return
	}
}

func TestPersistenceAndIteration(t *testing.T) {
	gm, df := newTestManager(t, GraphManagerTestDBDir3)

	if err := gm.CreateGraph("main", nil); err != nil {
		t.Error(err)
		return
	}

	for i := 0; i < 10; i++ {
		label := "Account"
		if i%2 == 1 {
			label = "Contract"
		}

		if _, err := gm.InsertVertex("main", label, map[string]data.Value{
			"idx": data.IntValue(int64(i))}); err != nil {
			t.Error(err)
			return
		}
	}

	v1 := uint64(1)
	v3 := uint64(3)

	if _, err := gm.InsertEdge("main", "Call", v1, v3, nil); err != nil {
		t.Error(err)
		return
	}

	if err := gm.FlushAll(); err != nil {
		t.Error(err)
		return
	}

	if err := df.Close(); err != nil {
		t.Error(err)
		return
	}

	// Reopen the datastore and check that everything is preserved

	gm, df = newTestManager(t, GraphManagerTestDBDir3)
	defer df.Close()

	vc, ec, err := gm.Counts("main")
	if err != nil || vc != 10 || ec != 1 {
		t.Error("Unexpected counts after reopen:", vc, ec, err)
		return
	}

	it, err := gm.VerticesByLabel("main", "Contract")
	if err != nil {
		t.Error(err)
		return
	}

	var contracts int
	for it.HasNext() {
		node, err := it.Next()
		if err != nil {
			t.Error(err)
			return
		}

		if node.Label != "Contract" {
			t.Error("Unexpected label:", node.Label)
			return
		}

		contracts++
	}

	if contracts != 5 {
		t.Error("Unexpected number of contracts:", contracts)
		return
	}

	it2, err := gm.VerticesByLabel("main", "Nonexisting")
	if err != nil || it2.HasNext() {
		t.Error("Unknown label should yield an empty iterator")
		return
	}

	out, err := gm.OutEdges("main", v1)
	if err != nil || len(out) != 1 || out[0].Neighbor != v3 {
		t.Error("Unexpected adjacency after reopen:", out, err)
		return
	}

	ei, err := gm.AllEdges("main")
	if err != nil {
		t.Error(err)
		return
	}

	var edges int
	for ei.HasNext() {
		if _, err := ei.Next(); err != nil {
			t.Error(err)
			return
		}
		edges++
	}

	if edges != 1 {
		t.Error("Unexpected number of edges:", edges)
		return
	}
}

func TestDropGraph(t *testing.T) {
	gm, df := newTestManager(t, GraphManagerTestDBDir4)
	defer df.Close()

	if err := gm.CreateGraph("g1", accountSchema()); err != nil {
		t.Error(err)
		return
	}

	v1, _ := gm.InsertVertex("g1", "Account",
		map[string]data.Value{"address": data.StringValue("0xA")})
	v2, _ := gm.InsertVertex("g1", "Account",
		map[string]data.Value{"address": data.StringValue("0xB")})

	if _, err := gm.InsertEdge("g1", "Transfer", v1, v2,
		map[string]data.Value{"amount": data.IntValue(1)}); err != nil {
		t.Error(err)
		return
	}

	// An active session blocks the drop

	if err := gm.AcquireSession("g1"); err != nil {
		t.Error(err)
		return
	}

	if err := gm.DropGraph("g1"); err == nil {
		t.Error("Dropping a graph with active sessions should fail")
		return
	}

	gm.ReleaseSession("g1")

	if err := gm.DropGraph("g1"); err != nil {
		t.Error(err)
		return
	}

	if gm.HasGraph("g1") {
		t.Error("Graph should be gone")
		return
	}

	if err := gm.DropGraph("g1"); err == nil {
		t.Error("Dropping a missing graph should fail")
		return
	}
}
