/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package interpreter

import (
	"flag"
	"fmt"
	"os"
	"testing"

	"devt.de/krotik/common/fileutil"
	"github.com/MuYiYong/ChainGraph/graph"
	"github.com/MuYiYong/ChainGraph/graph/data"
	"github.com/MuYiYong/ChainGraph/graph/util"
	"github.com/MuYiYong/ChainGraph/gql/parser"
	"github.com/MuYiYong/ChainGraph/storage/buffer"
	"github.com/MuYiYong/ChainGraph/storage/file"
)

const InterpreterTestDBDir1 = "ittest1"
const InterpreterTestDBDir2 = "ittest2"

var DBDIRS = []string{InterpreterTestDBDir1, InterpreterTestDBDir2}

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
newTestSession creates a session over a fresh datastore with one graph.
*/
func newTestSession(t *testing.T, dbdir string) (*Session, *file.DataFile) {
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

	s := NewSession(NewRuntimeProvider(gm))

	if _, err := s.run(t, "USE GRAPH main"); err != nil {
		t.Fatal(err)
	}

	return s, df
}

/*
run parses and executes a statement.
*/
func (s *Session) run(t *testing.T, gql string) (*Result, error) {
	stmt, err := parser.Parse(gql)
	if err != nil {
		t.Fatal("Parse of", gql, "failed:", err)
	}

	return s.Execute(stmt)
}

func mustRun(t *testing.T, s *Session, gql string) *Result {
	res, err := s.run(t, gql)
	if err != nil {
		t.Fatal("Execution of", gql, "failed:", err)
	}

	return res
}

func TestSearchPrefixSelection(t *testing.T) {
	s, df := newTestSession(t, InterpreterTestDBDir1)
	defer df.Close()

	// Diamond with a long way around:
	//   1 -> 2 -> 4, 1 -> 3 -> 4, 1 -> 4

	mustRun(t, s, `INSERT (a:N {n: 1})-[:L]->(b:N {n: 2})-[:L]->(d:N {n: 4})`)
	mustRun(t, s, `MATCH (a:N {n: 1}), (d:N {n: 4}) `+
		`RETURN a, d`)

	mustRun(t, s, `INSERT (c:N {n: 3})`)

	mustRun(t, s, `MATCH (a:N {n: 1}), (c:N {n: 3}), (d:N {n: 4}) SET a.seen = true`)

	// A match based insert is not supported so the remaining edges are
	// inserted directly through the graph manager

	gm := s.rtp.GM

	vidOf := func(n int64) uint64 {
		it, _ := gm.VerticesByLabel("main", "N")
		for it.HasNext() {
			node, err := it.Next()
			if err != nil {
				t.Fatal(err)
			}
			if node == nil {
				break
			}
			if node.Prop("n").Int() == n {
				return node.VID
			}
		}
		return 0
	}

	v1, v3, v4 := vidOf(1), vidOf(3), vidOf(4)

	if _, err := gm.InsertEdge("main", "L", v1, v3, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := gm.InsertEdge("main", "L", v3, v4, nil); err != nil {
		t.Fatal(err)
	}
	if _, err := gm.InsertEdge("main", "L", v1, v4, nil); err != nil {
		t.Fatal(err)
	}

	count := func(gql string) int {
		return len(mustRun(t, s, gql).Rows)
	}

	// ALL enumerates every path in range: 1 direct + 2 two-hop

	if res := count("MATCH ALL (a:N {n: 1})-[:L]->{1,2}(d:N {n: 4}) RETURN d"); res != 3 {
		t.Error("Unexpected ALL count:", res)
		return
	}

	// SHORTEST returns the single one hop path

	if res := count("MATCH SHORTEST (a:N {n: 1})-[:L]->{1,2}(d:N {n: 4}) RETURN d"); res != 1 {
		t.Error("Unexpected SHORTEST count:", res)
		return
	}

	// SHORTEST 2 returns paths in non-decreasing hop order

	if res := count("MATCH SHORTEST 2 (a:N {n: 1})-[:L]->{1,2}(d:N {n: 4}) RETURN d"); res != 2 {
		t.Error("Unexpected SHORTEST 2 count:", res)
		return
	}

	// SHORTEST 2 GROUPS returns both hop count groups

	if res := count("MATCH SHORTEST 2 GROUPS (a:N {n: 1})-[:L]->{1,2}(d:N {n: 4}) RETURN d"); res != 3 {
		t.Error("Unexpected SHORTEST 2 GROUPS count:", res)
		return
	}

	// ALL SHORTEST returns only the minimum hop paths

	if res := count("MATCH ALL SHORTEST (a:N {n: 1})-[:L]->{1,2}(d:N {n: 4}) RETURN d"); res != 1 {
		t.Error("Unexpected ALL SHORTEST count:", res)
		return
	}

	// ANY returns one arbitrary path

	if res := count("MATCH ANY (a:N {n: 1})-[:L]->{1,2}(d:N {n: 4}) RETURN d"); res != 1 {
		t.Error("Unexpected ANY count:", res)
		return
	}
}

func TestProjectionAndExpressionDetails(t *testing.T) {
	s, df := newTestSession(t, InterpreterTestDBDir2)
	defer df.Close()

	mustRun(t, s, `INSERT (:P {name: "a", v: 1})`)
	mustRun(t, s, `INSERT (:P {name: "b", v: 2})`)
	mustRun(t, s, `INSERT (:P {name: "c", v: 3})`)

	// Arithmetic, aliases and ordering

	res := mustRun(t, s, "MATCH (p:P) RETURN p.name AS name, p.v * 2 + 1 AS x ORDER BY x DESC")

	if res.Columns[1] != "x" || res.Rows[0][1].Int() != 7 {
		t.Error("Unexpected projection:", res.Columns, res.Rows)
		return
	}

	// Aggregates over all rows form a single group

	res = mustRun(t, s, "MATCH (p:P) RETURN sum(p.v), avg(p.v), min(p.v), max(p.v), count(p.v)")

	row := res.Rows[0]
	if row[0].Float() != 6 || row[1].Float() != 2 || row[2].Int() != 1 ||
		row[3].Int() != 3 || row[4].Int() != 3 {
		t.Error("Unexpected aggregates:", row)
		return
	}

	// LIMIT and OFFSET are positional

	res = mustRun(t, s, "MATCH (p:P) RETURN p.name ORDER BY p.name OFFSET 1 LIMIT 1")
	if len(res.Rows) != 1 || res.Rows[0][0].Str() != "b" {
		t.Error("Unexpected window:", res.Rows)
		return
	}

	// DISTINCT deduplicates on the emitted tuple

	res = mustRun(t, s, "MATCH (p:P) RETURN DISTINCT p.v > 1")
	if len(res.Rows) != 2 {
		t.Error("Unexpected distinct result:", res.Rows)
		return
	}

	// String predicates

	res = mustRun(t, s, `MATCH (p:P) WHERE p.name STARTS WITH "a" RETURN p.name`)
	if len(res.Rows) != 1 || res.Rows[0][0].Str() != "a" {
		t.Error("Unexpected string filter:", res.Rows)
		return
	}

	res = mustRun(t, s, `MATCH (p:P) WHERE p.v IN [1, 3] RETURN p.name ORDER BY p.name`)
	if len(res.Rows) != 2 || res.Rows[1][0].Str() != "c" {
		t.Error("Unexpected list filter:", res.Rows)
		return
	}

	// IS NULL and IS NOT NULL

	res = mustRun(t, s, "MATCH (p:P) WHERE p.missing IS NULL RETURN p")
	if len(res.Rows) != 3 {
		t.Error("Unexpected null filter:", res.Rows)
		return
	}

	// Type mismatches surface as bind errors

	if _, err := s.run(t, `MATCH (p:P) WHERE p.name > 5 RETURN p`); !util.IsGraphError(err, util.ErrBind) {
		t.Error("Expected a bind error, got:", err)
		return
	}

	// Unknown procedures and unknown variables

	if _, err := s.run(t, "CALL bogus_proc(1)"); !util.IsGraphError(err, util.ErrBind) {
		t.Error("Expected a bind error, got:", err)
		return
	}

	if _, err := s.run(t, "MATCH (p:P) RETURN q"); !util.IsGraphError(err, util.ErrBind) {
		t.Error("Expected a bind error, got:", err)
		return
	}

	// Composite queries require matching column counts

	if _, err := s.run(t, "MATCH (p:P) RETURN p, p.v UNION MATCH (p:P) RETURN p"); !util.IsGraphError(err, util.ErrBind) {
		t.Error("Expected a bind error, got:", err)
		return
	}

	// SELECT over all vertices

	res = mustRun(t, s, "SELECT n.v WHERE n.v > 1 LIMIT 5")
	if len(res.Rows) != 2 {
		t.Error("Unexpected select result:", res.Rows)
		return
	}

	// id() and label()

	res = mustRun(t, s, `MATCH (p:P {name: "a"}) RETURN id(p), label(p)`)
	if res.Rows[0][0].UInt() == 0 || res.Rows[0][1].Str() != "P" {
		t.Error("Unexpected id/label result:", res.Rows)
		return
	}

	// Edge property access and undirected matching over the directed
	// store

	mustRun(t, s, `INSERT (x:Q {name: "x"})-[:R {w: 9}]->(y:Q {name: "y"})`)

	res = mustRun(t, s, `MATCH (a:Q {name: "y"})-[e:R]-(b:Q) RETURN e.w, b.name`)
	if len(res.Rows) != 1 || res.Rows[0][0].Int() != 9 ||
		res.Rows[0][1].Str() != "x" {
		t.Error("Unexpected undirected match:", res.Rows)
		return
	}

	// Values convert for the result shape

	if v := data.StringValue("x"); v.String() != "x" {
		t.Error("Unexpected value formatting")
		return
	}
}
