/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package engine

import (
	"flag"
	"fmt"
	"os"
	"testing"

	"devt.de/krotik/common/fileutil"
	"github.com/MuYiYong/ChainGraph/graph/data"
	"github.com/MuYiYong/ChainGraph/graph/util"
	"github.com/MuYiYong/ChainGraph/gql/interpreter"
)

const EngineTestDBDir1 = "enginetest1"
const EngineTestDBDir2 = "enginetest2"
const EngineTestDBDir3 = "enginetest3"
const EngineTestDBDir4 = "enginetest4"

var DBDIRS = []string{EngineTestDBDir1, EngineTestDBDir2, EngineTestDBDir3,
	EngineTestDBDir4}

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
mustExecute runs a statement and fails the test on error.
*/
func mustExecute(t *testing.T, s *Session, gql string) *interpreter.Result {
	res, err := s.Execute(gql)
	if err != nil {
		t.Fatal("Execution of", gql, "failed:", err)
	}

	return res
}

/*
setupAccountGraph creates a schema graph with four accounts and the
transfer edges of the max flow scenario.
*/
func setupAccountGraph(t *testing.T, s *Session) {
	mustExecute(t, s, `CREATE GRAPH flows {
		NODE Account {address String PRIMARY KEY},
		EDGE Transfer (Account)-[{amount Int}]->(Account) }`)

	mustExecute(t, s, "USE GRAPH flows")

	mustExecute(t, s, `INSERT (:Account {address: "0xA"})`)
	mustExecute(t, s, `INSERT (:Account {address: "0xB"})`)
	mustExecute(t, s, `INSERT (:Account {address: "0xC"})`)
	mustExecute(t, s, `INSERT (:Account {address: "0xD"})`)

	// Endpoint patterns with a known primary key bind to the existing
	// vertices

	mustExecute(t, s, `INSERT (a:Account {address: "0xA"})-[:Transfer {amount: 10}]->(b:Account {address: "0xB"})`)
	mustExecute(t, s, `INSERT (a:Account {address: "0xA"})-[:Transfer {amount: 10}]->(c:Account {address: "0xC"})`)
	mustExecute(t, s, `INSERT (b:Account {address: "0xB"})-[:Transfer {amount: 5}]->(d:Account {address: "0xD"})`)
	mustExecute(t, s, `INSERT (c:Account {address: "0xC"})-[:Transfer {amount: 10}]->(d:Account {address: "0xD"})`)
}

func TestShortestPathScenario(t *testing.T) {
	e, err := Open(EngineTestDBDir1, 256)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	s := e.NewSession()
	defer s.Close()

	// Triangle graph: A -> B -> C and C -> A with amount 5 each

	mustExecute(t, s, `CREATE GRAPH g {
		NODE Account {address String PRIMARY KEY},
		EDGE T (Account)-[{a Int}]->(Account) }`)

	mustExecute(t, s, "USE GRAPH g")

	mustExecute(t, s, `INSERT (:Account {address: "0xA"})`)
	mustExecute(t, s, `INSERT (:Account {address: "0xB"})`)
	mustExecute(t, s, `INSERT (:Account {address: "0xC"})`)

	mustExecute(t, s, `INSERT (a:Account {address: "0xA"})-[:T {a: 5}]->(b:Account {address: "0xB"})`)
	mustExecute(t, s, `INSERT (b:Account {address: "0xB"})-[:T {a: 5}]->(c:Account {address: "0xC"})`)
	mustExecute(t, s, `INSERT (c:Account {address: "0xC"})-[:T {a: 5}]->(a:Account {address: "0xA"})`)

	// No additional vertices were created by the edge inserts

	res := mustExecute(t, s, "MATCH (n:Account) RETURN n")
	if len(res.Rows) != 3 {
		t.Error("Unexpected number of accounts:", len(res.Rows))
		return
	}

	// Shortest path from A (vid 1) to C (vid 3) has two hops via B

	res = mustExecute(t, s, "CALL shortest_path(1, 3)")

	if len(res.Rows) != 1 {
		t.Error("Unexpected result:", res.Rows)
		return
	}

	vids := res.Rows[0][0].List()
	if len(vids) != 3 || vids[0].UInt() != 1 || vids[1].UInt() != 2 ||
		vids[2].UInt() != 3 {
		t.Error("Unexpected path:", vids)
		return
	}

	if res.Rows[0][2].Int() != 2 {
		t.Error("Unexpected hop count:", res.Rows[0][2])
		return
	}

	// The procedure name aliases resolve to the same procedure

	res = mustExecute(t, s, "CALL algo.shortest_path(1, 3)")
	if len(res.Rows) != 1 {
		t.Error("Unexpected result for alias call")
		return
	}

	// A primary key collision surfaces as a constraint violation

	if _, err := s.Execute(`INSERT (:Account {address: "0xA"})`); !util.IsGraphError(err, util.ErrConstraint) {
		t.Error("Expected a constraint violation, got:", err)
		return
	}
}

func TestMaxFlowAndTraceScenario(t *testing.T) {
	e, err := Open(EngineTestDBDir2, 256)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	s := e.NewSession()
	defer s.Close()

	setupAccountGraph(t, s)

	// Max flow A (1) -> D (4) is 15 with the cut {A, B}

	res := mustExecute(t, s, "CALL max_flow(1, 4)")

	if res.Rows[0][0].Float() != 15 {
		t.Error("Unexpected flow value:", res.Rows[0][0])
		return
	}

	cut := res.Rows[0][2].List()
	if len(cut) != 2 || cut[0].UInt() != 1 || cut[1].UInt() != 2 {
		t.Error("Unexpected source cut:", cut)
		return
	}

	flows := res.Rows[0][1].List()
	if len(flows) != 4 {
		t.Error("Unexpected flow assignment:", flows)
		return
	}

	// A -> B carries 5 of the 10 capacity

	first := flows[0].Map()
	if first["src"].UInt() != 1 || first["dst"].UInt() != 2 ||
		first["flow"].Float() != 5 {
		t.Error("Unexpected flow entry:", first)
		return
	}

	// Trace forward two hops from A: A->B, A->C, A->B->D, A->C->D

	res = mustExecute(t, s, `CALL trace(1, "forward", 2)`)

	if len(res.Rows) != 4 {
		t.Error("Unexpected number of trace paths:", len(res.Rows))
		return
	}

	// degree and neighbors

	res = mustExecute(t, s, "CALL degree(4)")
	if res.Rows[0][0].Int() != 2 || res.Rows[0][1].Int() != 0 {
		t.Error("Unexpected degree:", res.Rows[0])
		return
	}

	res = mustExecute(t, s, "CALL connected(1, 4)")
	if !res.Rows[0][0].Bool() {
		t.Error("A and D should be connected")
		return
	}

	res = mustExecute(t, s, "CALL connected(4, 1)")
	if res.Rows[0][0].Bool() {
		t.Error("D and A should not be connected")
		return
	}

	// OPTIONAL CALL swallows missing vertices, a plain CALL does not

	res = mustExecute(t, s, "OPTIONAL CALL shortest_path(1, 99)")
	if len(res.Rows) != 0 || len(res.Columns) != 4 {
		t.Error("Unexpected optional call result:", res)
		return
	}

	if _, err := s.Execute("CALL shortest_path(1, 99)"); !util.IsGraphError(err, util.ErrNotFound) {
		t.Error("Expected a not found error, got:", err)
		return
	}

	// YIELD filters and reorders columns

	res = mustExecute(t, s, "CALL degree(4) YIELD out_degree")
	if len(res.Columns) != 1 || res.Columns[0] != "out_degree" ||
		res.Rows[0][0].Int() != 0 {
		t.Error("Unexpected yield result:", res)
		return
	}
}

func TestMatchAndCompositeScenarios(t *testing.T) {
	e, err := Open(EngineTestDBDir3, 256)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	s := e.NewSession()
	defer s.Close()

	mustExecute(t, s, "CREATE GRAPH main")
	mustExecute(t, s, "USE GRAPH main")

	mustExecute(t, s, `INSERT (:Account {name: "a1", bank: "x"})`)
	mustExecute(t, s, `INSERT (:Account {name: "a2", bank: "x"})`)
	mustExecute(t, s, `INSERT (:Account {name: "a3", bank: "y"})`)
	mustExecute(t, s, `INSERT (:Contract {name: "c1"})`)

	// Label scan with property filter

	res := mustExecute(t, s, `MATCH (n:Account) WHERE n.bank = "x" RETURN n.name ORDER BY n.name`)

	if len(res.Rows) != 2 || res.Rows[0][0].Str() != "a1" ||
		res.Rows[1][0].Str() != "a2" {
		t.Error("Unexpected result:", res.Rows)
		return
	}

	// Label alternation

	res = mustExecute(t, s, "MATCH (n:Account|Contract) RETURN n.name")
	if len(res.Rows) != 4 {
		t.Error("Unexpected result:", res.Rows)
		return
	}

	// Grouping with aggregates and HAVING

	res = mustExecute(t, s, `MATCH (n:Account) RETURN n.bank, count(*) AS cnt `+
		`GROUP BY n.bank HAVING count(*) > 1`)

	if len(res.Rows) != 1 || res.Rows[0][0].Str() != "x" ||
		res.Rows[0][1].Int() != 2 {
		t.Error("Unexpected grouping result:", res.Rows)
		return
	}

	// UNION deduplicates, UNION ALL does not

	res = mustExecute(t, s,
		"MATCH (a:Account) RETURN a.bank UNION MATCH (b:Account) RETURN b.bank")
	if len(res.Rows) != 2 {
		t.Error("Unexpected union result:", res.Rows)
		return
	}

	res = mustExecute(t, s,
		"MATCH (a:Account) RETURN a.bank UNION ALL MATCH (b:Account) RETURN b.bank")
	if len(res.Rows) != 6 {
		t.Error("Unexpected union all result:", res.Rows)
		return
	}

	// OTHERWISE returns the left side only if it produced rows

	res = mustExecute(t, s,
		`MATCH (n:Account) WHERE n.bank = "zzz" RETURN n.name OTHERWISE MATCH (c:Contract) RETURN c.name`)
	if len(res.Rows) != 1 || res.Rows[0][0].Str() != "c1" {
		t.Error("Unexpected otherwise result:", res.Rows)
		return
	}

	// Unknown labels in a read statement are rejected by the binder

	if _, err := s.Execute("MATCH (n:Missing) RETURN n"); !util.IsGraphError(err, util.ErrBind) {
		t.Error("Expected a bind error, got:", err)
		return
	}

	// Quantified path match with a search prefix

	mustExecute(t, s, `INSERT (a:Hop {n: 1})-[:L]->(b:Hop {n: 2})-[:L]->(c:Hop {n: 3})`)

	res = mustExecute(t, s,
		"MATCH SHORTEST (a:Hop {n: 1})-[:L]->{1,3}(c:Hop {n: 3}) RETURN c.n")
	if len(res.Rows) != 1 || res.Rows[0][0].Int() != 3 {
		t.Error("Unexpected quantified match:", res.Rows)
		return
	}

	// A zero length quantifier matches the start vertex itself

	res = mustExecute(t, s,
		"MATCH (a:Hop {n: 1})-[:L]->{0,2}(c:Hop) RETURN c.n ORDER BY c.n")
	if len(res.Rows) != 3 || res.Rows[0][0].Int() != 1 {
		t.Error("Unexpected zero length match:", res.Rows)
		return
	}

	// DETACH DELETE removes the vertex and its edges

	if _, err := s.Execute("MATCH (h:Hop {n: 2}) DELETE h"); !util.IsGraphError(err, util.ErrConstraint) {
		t.Error("Deleting a connected vertex should fail:", err)
		return
	}

	mustExecute(t, s, "MATCH (h:Hop {n: 2}) DETACH DELETE h")

	res = mustExecute(t, s, "MATCH (a:Hop)-[:L]->(b:Hop) RETURN a")
	if len(res.Rows) != 0 {
		t.Error("Edges should be gone after detach delete:", res.Rows)
		return
	}

	// SET updates properties

	mustExecute(t, s, `MATCH (c:Contract) SET c.audited = true`)

	res = mustExecute(t, s, "MATCH (c:Contract) WHERE c.audited RETURN c.name")
	if len(res.Rows) != 1 {
		t.Error("Unexpected update result:", res.Rows)
		return
	}

	// Statements produce parse errors with positions

	if _, err := s.Execute("MATCH ("); !util.IsGraphError(err, util.ErrParse) {
		t.Error("Expected a parse error, got:", err)
		return
	}

	// Engine statistics reflect the activity

	stats := e.Stats()

	if stats.Queries == 0 || stats.VerticesInserted < 7 || stats.EdgesInserted < 2 {
		t.Error("Unexpected stats:", stats)
		return
	}

	if m := stats.ToMap(); m["watermark"].Str() == "" {
		t.Error("Unexpected stats map:", m)
		return
	}
}

func TestTransactionsAndPersistence(t *testing.T) {
	e, err := Open(EngineTestDBDir4, 256)
	if err != nil {
		t.Fatal(err)
	}

	s := e.NewSession()

	mustExecute(t, s, "CREATE GRAPH main")
	mustExecute(t, s, "SESSION SET PROPERTY GRAPH main")

	mustExecute(t, s, `INSERT (:Account {name: "base"})`)

	// A rolled back transaction leaves no trace

	mustExecute(t, s, "START TRANSACTION READ WRITE")
	mustExecute(t, s, `INSERT (:Account {name: "temp"})`)

	res := mustExecute(t, s, "MATCH (n:Account) RETURN n.name")
	if len(res.Rows) != 2 {
		t.Error("Transaction writes should be visible to reads:", res.Rows)
		return
	}

	mustExecute(t, s, "ROLLBACK")

	res = mustExecute(t, s, "MATCH (n:Account) RETURN n.name")
	if len(res.Rows) != 1 || res.Rows[0][0].Str() != "base" {
		t.Error("Rollback should remove the inserted vertex:", res.Rows)
		return
	}

	// A committed transaction keeps its writes

	mustExecute(t, s, "START TRANSACTION READ WRITE")
	mustExecute(t, s, `INSERT (:Account {name: "kept"})`)
	mustExecute(t, s, "COMMIT")

	res = mustExecute(t, s, "MATCH (n:Account) RETURN n.name ORDER BY n.name")
	if len(res.Rows) != 2 || res.Rows[1][0].Str() != "kept" {
		t.Error("Commit should keep the inserted vertex:", res.Rows)
		return
	}

	// A read only transaction rejects writes

	mustExecute(t, s, "START TRANSACTION READ ONLY")

	if _, err := s.Execute(`INSERT (:Account {name: "x"})`); !util.IsGraphError(err, util.ErrConstraint) {
		t.Error("Writes in a read only transaction should fail:", err)
		return
	}

	mustExecute(t, s, "ROLLBACK")

	// Session parameters via LET and SESSION SET VALUE

	mustExecute(t, s, "SESSION SET VALUE limitParam = 1")
	mustExecute(t, s, "LET threshold = 10")

	res = mustExecute(t, s, "FILTER threshold > 5")
	if !res.Rows[0][0].Bool() {
		t.Error("Unexpected filter result:", res.Rows)
		return
	}

	res = mustExecute(t, s, "FOR x, i IN [10, 20]")
	if len(res.Rows) != 2 || res.Rows[1][0].Int() != 20 ||
		res.Rows[1][1].Int() != 1 {
		t.Error("Unexpected for result:", res.Rows)
		return
	}

	// SHOW and DESCRIBE

	res = mustExecute(t, s, "SHOW GRAPHS")
	if len(res.Rows) != 1 || res.Rows[0][0].Str() != "main" {
		t.Error("Unexpected graphs:", res.Rows)
		return
	}

	res = mustExecute(t, s, "SHOW PROCEDURES")
	if len(res.Rows) != 7 {
		t.Error("Unexpected procedures:", res.Rows)
		return
	}

	res = mustExecute(t, s, "SHOW VERTICES")
	if len(res.Rows) != 2 {
		t.Error("Unexpected vertices:", res.Rows)
		return
	}

	res = mustExecute(t, s, "DESCRIBE GRAPH main")
	if len(res.Rows) != 1 {
		t.Error("Unexpected description:", res.Rows)
		return
	}

	// Close and reopen - all committed data is preserved

	s.Close()

	if err := e.Close(); err != nil {
		t.Fatal(err)
	}

	e, err = Open(EngineTestDBDir4, 256)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	s = e.NewSession()
	defer s.Close()

	mustExecute(t, s, "USE GRAPH main")

	res = mustExecute(t, s, "MATCH (n:Account) RETURN n.name ORDER BY n.name")
	if len(res.Rows) != 2 || res.Rows[0][0].Str() != "base" ||
		res.Rows[1][0].Str() != "kept" {
		t.Error("Unexpected data after reopen:", res.Rows)
		return
	}

	// A dropped graph is gone

	if _, err := s.Execute("DROP GRAPH main"); !util.IsGraphError(err, util.ErrConstraint) {
		t.Error("Dropping the graph in use should fail:", err)
		return
	}

	s.Close()

	s2 := e.NewSession()
	defer s2.Close()

	mustExecute(t, s2, "DROP GRAPH main")

	if res, _ := s2.Execute("SHOW GRAPHS"); len(res.Rows) != 0 {
		t.Error("Graph should be gone:", res.Rows)
		return
	}

	// Result values use the property value union

	if data.StringValue("x").Tag() != data.TagString {
		t.Error("Unexpected value tag")
		return
	}
}
