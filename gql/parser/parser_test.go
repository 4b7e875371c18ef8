/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package parser

import (
	"testing"
)

func mustParse(t *testing.T, input string) Statement {
	stmt, err := Parse(input)
	if err != nil {
		t.Fatal("Parse of", input, "failed:", err)
	}

	return stmt
}

func TestParseSimpleMatch(t *testing.T) {
	stmt := mustParse(t, "MATCH (n:Account) RETURN n")

	match, ok := stmt.(*MatchStatement)
	if !ok {
		t.Error("Unexpected statement type:", stmt)
		return
	}

	if len(match.Patterns) != 1 || len(match.Patterns[0].Nodes) != 1 {
		t.Error("Unexpected pattern:", match.Patterns)
		return
	}

	node := match.Patterns[0].Nodes[0]
	if node.Var != "n" || node.Labels.Name != "Account" {
		t.Error("Unexpected node pattern:", node)
		return
	}

	if len(match.Projection.Items) != 1 {
		t.Error("Unexpected projection:", match.Projection)
		return
	}
}

func TestParsePathPatterns(t *testing.T) {
	stmt := mustParse(t,
		"MATCH (a:Account)-[tx:Transfer {amount: 5}]->(b:Account) WHERE a.balance > 10 RETURN a, b")

	match := stmt.(*MatchStatement)
	pattern := match.Patterns[0]

	if len(pattern.Nodes) != 2 || len(pattern.Edges) != 1 {
		t.Error("Unexpected pattern shape")
		return
	}

	edge := pattern.Edges[0]
	if edge.Var != "tx" || edge.Direction != DirOut || edge.Labels.Name != "Transfer" {
		t.Error("Unexpected edge pattern:", edge)
		return
	}

	if _, ok := edge.Props["amount"]; !ok {
		t.Error("Unexpected edge properties:", edge.Props)
		return
	}

	if match.Where == nil {
		t.Error("Expected a where clause")
		return
	}
}

func TestParseEdgeDirections(t *testing.T) {
	directions := map[string]int{
		"MATCH (a)-[:T]->(b) RETURN a":  DirOut,
		"MATCH (a)<-[:T]-(b) RETURN a":  DirIn,
		"MATCH (a)-[:T]-(b) RETURN a":   DirAny,
		"MATCH (a)~[:T]~(b) RETURN a":   DirUndirected,
		"MATCH (a)<-[:T]->(b) RETURN a": DirLeftOrRight,
		"MATCH (a)<~[:T]~(b) RETURN a":  DirLeftOrUndirected,
		"MATCH (a)~[:T]~>(b) RETURN a":  DirUndirectedOrRight,
	}

	for input, dir := range directions {
		match := mustParse(t, input).(*MatchStatement)

		if res := match.Patterns[0].Edges[0].Direction; res != dir {
			t.Error("Unexpected direction for", input, ":", res)
			return
		}
	}
}

func TestParseQuantifiers(t *testing.T) {
	checkQuant := func(input string, min int, max int) {
		match := mustParse(t, input).(*MatchStatement)
		quant := match.Patterns[0].Edges[0].Quant

		if quant == nil || quant.Min != min || quant.Max != max {
			t.Error("Unexpected quantifier for", input, ":", quant)
		}
	}

	// ISO style quantifiers

	checkQuant("MATCH (a)-[:T]->{1,5}(b) RETURN a", 1, 5)
	checkQuant("MATCH (a)-[:T]->{3}(b) RETURN a", 3, 3)
	checkQuant("MATCH (a)-[:T]->{2,}(b) RETURN a", 2, -1)
	checkQuant("MATCH (a)-[:T]->{,5}(b) RETURN a", 0, 5)
	checkQuant("MATCH (a)-[:T]->*(b) RETURN a", 0, -1)
	checkQuant("MATCH (a)-[:T]->+(b) RETURN a", 1, -1)
	checkQuant("MATCH (a)-[:T]->?(b) RETURN a", 0, 1)

	// Neo4j style quantifiers

	checkQuant("MATCH (a)-[:T*1..5]->(b) RETURN a", 1, 5)
	checkQuant("MATCH (a)-[:T*2]->(b) RETURN a", 2, 2)
	checkQuant("MATCH (a)-[:T*..4]->(b) RETURN a", 0, 4)
	checkQuant("MATCH (a)-[:T*]->(b) RETURN a", 0, -1)
	checkQuant("MATCH (a)-[*1..]->(b) RETURN a", 1, -1)
}

func TestParseSearchPrefixes(t *testing.T) {
	checkSearch := func(input string, kind int, k int) {
		match := mustParse(t, input).(*MatchStatement)
		search := match.Patterns[0].Search

		if search == nil || search.Kind != kind || search.K != k {
			t.Error("Unexpected search prefix for", input, ":", search)
		}
	}

	checkSearch("MATCH SHORTEST (a)-[:T]->*(b) RETURN a", SearchShortest, 0)
	checkSearch("MATCH ALL SHORTEST (a)-[:T]->*(b) RETURN a", SearchAllShortest, 0)
	checkSearch("MATCH ANY (a)-[:T]->*(b) RETURN a", SearchAny, 0)
	checkSearch("MATCH ANY SHORTEST (a)-[:T]->*(b) RETURN a", SearchAnyShortest, 0)
	checkSearch("MATCH ANY 3 PATHS (a)-[:T]->*(b) RETURN a", SearchAnyK, 3)
	checkSearch("MATCH SHORTEST 4 (a)-[:T]->*(b) RETURN a", SearchShortestK, 4)
	checkSearch("MATCH SHORTEST 2 GROUPS (a)-[:T]->*(b) RETURN a", SearchShortestKGroups, 2)
	checkSearch("MATCH ALL (a)-[:T]->*(b) RETURN a", SearchAll, 0)
}

func TestParseLabelExpressions(t *testing.T) {
	match := mustParse(t, "MATCH (n:Account|Contract) RETURN n").(*MatchStatement)

	labels := match.Patterns[0].Nodes[0].Labels
	if labels.Op != LabelOr || labels.Left.Name != "Account" ||
		labels.Right.Name != "Contract" {
		t.Error("Unexpected label expression:", labels)
		return
	}

	match = mustParse(t, "MATCH (n:A&!B) RETURN n").(*MatchStatement)

	labels = match.Patterns[0].Nodes[0].Labels
	if labels.Op != LabelAnd || labels.Left.Name != "A" ||
		labels.Right.Op != LabelNot || labels.Right.Left.Name != "B" {
		t.Error("Unexpected label expression:", labels)
		return
	}

	match = mustParse(t, "MATCH (n:%) RETURN n").(*MatchStatement)

	if match.Patterns[0].Nodes[0].Labels.Op != LabelAny {
		t.Error("Unexpected label expression")
		return
	}
}

func TestParseProjectionClauses(t *testing.T) {
	stmt := mustParse(t, "MATCH (n:Account) RETURN DISTINCT n.bank, count(*) AS cnt "+
		"GROUP BY n.bank HAVING count(*) > 1 ORDER BY cnt DESC OFFSET 2 LIMIT 10")

	proj := stmt.(*MatchStatement).Projection

	if !proj.Distinct || len(proj.Items) != 2 || proj.Items[1].Alias != "cnt" {
		t.Error("Unexpected projection:", proj)
		return
	}

	if len(proj.GroupBy) != 1 || proj.Having == nil {
		t.Error("Unexpected grouping:", proj)
		return
	}

	if len(proj.OrderBy) != 1 || !proj.OrderBy[0].Desc {
		t.Error("Unexpected ordering:", proj)
		return
	}

	if proj.Offset != 2 || proj.Limit != 10 {
		t.Error("Unexpected limits:", proj.Offset, proj.Limit)
		return
	}

	if !proj.Items[1].Expr.(*FuncCall).Star {
		t.Error("Expected count(*)")
		return
	}
}

func TestParseWriteStatements(t *testing.T) {

	// INSERT with an edge

	stmt := mustParse(t,
		"INSERT (a:Account {address: \"0xA\"})-[:Transfer {amount: 5}]->(b:Account {address: \"0xB\"})")

	insert := stmt.(*InsertStatement)
	if len(insert.Nodes) != 2 || len(insert.Edges) != 1 {
		t.Error("Unexpected insert statement:", insert)
		return
	}

	if insert.Edges[0].Source != 0 || insert.Edges[0].Target != 1 {
		t.Error("Unexpected edge endpoints:", insert.Edges[0])
		return
	}

	// A repeated variable refers to the same node

	stmt = mustParse(t, "INSERT (a:Account {address: \"0xA\"}), (a)-[:T]->(b:Account)")

	insert = stmt.(*InsertStatement)
	if len(insert.Nodes) != 2 || insert.Edges[0].Source != 0 {
		t.Error("Unexpected insert statement:", insert)
		return
	}

	// DELETE with a leading match part

	stmt = mustParse(t, "MATCH (n:Account) WHERE n.address = \"0xA\" DETACH DELETE n")

	del := stmt.(*DeleteStatement)
	if !del.Detach || len(del.Patterns) != 1 || len(del.Targets) != 1 {
		t.Error("Unexpected delete statement:", del)
		return
	}

	// SET with a leading match part

	stmt = mustParse(t, "MATCH (n:Account) SET n.balance = 100, n += {checked: true}")

	update := stmt.(*UpdateStatement)
	if len(update.Items) != 2 || update.Items[0].Prop != "balance" ||
		update.Items[1].Props == nil {
		t.Error("Unexpected update statement:", update)
		return
	}
}

func TestParseCallStatements(t *testing.T) {
	stmt := mustParse(t, "CALL shortest_path(1, 2)")

	call := stmt.(*CallStatement)
	if call.Procedure != "shortest_path" || len(call.Args) != 2 || call.Optional {
		t.Error("Unexpected call statement:", call)
		return
	}

	stmt = mustParse(t, "OPTIONAL CALL algo.trace(1, \"forward\", 3) YIELD path, hops")

	call = stmt.(*CallStatement)
	if !call.Optional || call.Procedure != "algo.trace" || len(call.Yield) != 2 {
		t.Error("Unexpected call statement:", call)
		return
	}
}

func TestParseDDLStatements(t *testing.T) {
	stmt := mustParse(t, "CREATE GRAPH g { "+
		"NODE Account {address String PRIMARY KEY, balance Amount}, "+
		"EDGE Transfer (Account)-[{amount Int}]->(Account) }")

	create := stmt.(*CreateGraphStatement)
	if create.Name != "g" || !create.HasSchema {
		t.Error("Unexpected create statement:", create)
		return
	}

	if len(create.Nodes) != 1 || len(create.Nodes[0].Props) != 2 ||
		!create.Nodes[0].Props[0].PrimaryKey {
		t.Error("Unexpected node declarations:", create.Nodes)
		return
	}

	edge := create.Edges[0]
	if edge.Label != "Transfer" || edge.SourceLabel != "Account" ||
		edge.TargetLabel != "Account" || len(edge.Props) != 1 {
		t.Error("Unexpected edge declaration:", edge)
		return
	}

	stmt = mustParse(t, "CREATE GRAPH IF NOT EXISTS g2")

	create = stmt.(*CreateGraphStatement)
	if create.Name != "g2" || !create.IfNotExists || create.HasSchema {
		t.Error("Unexpected create statement:", create)
		return
	}

	drop := mustParse(t, "DROP GRAPH IF EXISTS g2").(*DropGraphStatement)
	if drop.Name != "g2" || !drop.IfExists {
		t.Error("Unexpected drop statement:", drop)
		return
	}
}

func TestParseSessionAndTransaction(t *testing.T) {
	stmt := mustParse(t, "SESSION SET GRAPH g")

	sess := stmt.(*SessionStatement)
	if sess.Kind != SessionSetGraph || sess.Name != "g" {
		t.Error("Unexpected session statement:", sess)
		return
	}

	// PROPERTY GRAPH is a synonym for GRAPH

	sess = mustParse(t, "SESSION SET PROPERTY GRAPH g").(*SessionStatement)
	if sess.Kind != SessionSetGraph || sess.Name != "g" {
		t.Error("Unexpected session statement:", sess)
		return
	}

	sess = mustParse(t, "SESSION SET VALUE timeout = 1000").(*SessionStatement)
	if sess.Kind != SessionSetValue || sess.Name != "timeout" {
		t.Error("Unexpected session statement:", sess)
		return
	}

	trans := mustParse(t, "START TRANSACTION READ ONLY").(*TransactionStatement)
	if trans.Kind != TransStart || !trans.ReadOnly {
		t.Error("Unexpected transaction statement:", trans)
		return
	}

	trans = mustParse(t, "START TRANSACTION READ WRITE").(*TransactionStatement)
	if trans.Kind != TransStart || trans.ReadOnly {
		t.Error("Unexpected transaction statement:", trans)
		return
	}

	if mustParse(t, "COMMIT").(*TransactionStatement).Kind != TransCommit {
		t.Error("Unexpected transaction statement")
		return
	}

	if mustParse(t, "ROLLBACK").(*TransactionStatement).Kind != TransRollback {
		t.Error("Unexpected transaction statement")
		return
	}
}

func TestParseCompositeQueries(t *testing.T) {
	stmt := mustParse(t,
		"MATCH (a:Account) RETURN a UNION MATCH (c:Contract) RETURN c")

	comp := stmt.(*CompositeStatement)
	if comp.Op != CompositeUnion || comp.All {
		t.Error("Unexpected composite statement:", comp)
		return
	}

	comp = mustParse(t,
		"MATCH (a:Account) RETURN a UNION ALL MATCH (c:Contract) RETURN c").(*CompositeStatement)
	if comp.Op != CompositeUnion || !comp.All {
		t.Error("Unexpected composite statement:", comp)
		return
	}

	comp = mustParse(t,
		"MATCH (a:Account) RETURN a OTHERWISE MATCH (c:Contract) RETURN c").(*CompositeStatement)
	if comp.Op != CompositeOtherwise {
		t.Error("Unexpected composite statement:", comp)
		return
	}

	// Left associativity

	comp = mustParse(t, "MATCH (a) RETURN a UNION MATCH (b) RETURN b "+
		"EXCEPT MATCH (c) RETURN c").(*CompositeStatement)

	if comp.Op != CompositeExcept {
		t.Error("Unexpected composite statement:", comp)
		return
	}

	if _, ok := comp.Left.(*CompositeStatement); !ok {
		t.Error("Composite operators should be left associative")
		return
	}
}

func TestParseMiscStatements(t *testing.T) {
	use := mustParse(t, "USE GRAPH main").(*UseGraphStatement)
	if use.Graph != "main" {
		t.Error("Unexpected use statement:", use)
		return
	}

	show := mustParse(t, "SHOW GRAPHS").(*ShowStatement)
	if show.Target != ShowGraphs {
		t.Error("Unexpected show statement:", show)
		return
	}

	desc := mustParse(t, "DESCRIBE GRAPH main").(*DescribeStatement)
	if desc.Graph != "main" {
		t.Error("Unexpected describe statement:", desc)
		return
	}

	let := mustParse(t, "LET x = 5, y = \"foo\"").(*LetStatement)
	if len(let.Bindings) != 2 || let.Bindings[0].Var != "x" {
		t.Error("Unexpected let statement:", let)
		return
	}

	forStmt := mustParse(t, "FOR x, i IN [1, 2, 3]").(*ForStatement)
	if forStmt.Var != "x" || forStmt.OrdinalVar != "i" {
		t.Error("Unexpected for statement:", forStmt)
		return
	}

	filter := mustParse(t, "FILTER x > 2").(*FilterStatement)
	if filter.Condition == nil {
		t.Error("Unexpected filter statement:", filter)
		return
	}

	sel := mustParse(t, "SELECT DISTINCT n LIMIT 5").(*SelectStatement)
	if !sel.Projection.Distinct || sel.Projection.Limit != 5 {
		t.Error("Unexpected select statement:", sel)
		return
	}
}

func TestParseErrors(t *testing.T) {
	for _, input := range []string{
		"",
		"MATCH",
		"MATCH (a",
		"MATCH (a) RETURN",
		"MATCH (a)-[:T](b) RETURN a",
		"MATCH (a)-[:T]>(b) RETURN a",
		"INSERT x",
		"CREATE TABLE foo",
		"CALL foo",
		"SESSION FOO",
		"MATCH (a) RETURN a UNION",
		"MATCH (a) RETURN a extra",
		"MATCH (a) WHERE RETURN a",
		"'unterminated",
	} {
		if _, err := Parse(input); err == nil {
			t.Error("Parsing should fail for:", input)
			return
		}
	}

	// Errors report line and position

	_, err := Parse("MATCH (a)\nWHERE !a RETURN a")

	perr, ok := err.(*Error)
	if !ok || perr.Line != 2 {
		t.Error("Unexpected error:", err)
		return
	}
}
