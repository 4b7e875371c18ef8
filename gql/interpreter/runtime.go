/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package interpreter contains the GQL interpreter.

RuntimeProvider

A RuntimeProvider binds the interpreter to a graph Manager and the
procedure registry. Sessions are created from a RuntimeProvider and
execute parsed statements against the current graph of the session.

Execution model

Every statement executes under the appropriate graph level lock: read
statements take the shared snapshot lock, write statements the
exclusive write lock which coarsens all storage updates of a statement
into one atomic critical section. Pattern matching produces binding
rows which flow through WHERE filtering, projection, grouping and
ordering into the final result.

Transactions

START TRANSACTION opens a session scoped transaction envelope. Writes
are applied directly to the store and recorded in an undo log, COMMIT
discards the log and ROLLBACK applies it in reverse. Storage errors
mark the envelope rollback-only in which case subsequent statements
fail fast until ROLLBACK.
*/
package interpreter

import (
	"context"
	"fmt"
	"time"

	"devt.de/krotik/common/logutil"
	"github.com/MuYiYong/ChainGraph/graph"
	"github.com/MuYiYong/ChainGraph/graph/data"
	"github.com/MuYiYong/ChainGraph/graph/util"
	"github.com/MuYiYong/ChainGraph/gql/parser"
)

/*
Logger for the interpreter package
*/
var logger = logutil.GetLogger("chaingraph.gql")

/*
ResultStats holds execution statistics of a single statement.
*/
type ResultStats struct {
	ExecutionTimeMS int64  // Wall clock execution time
	VerticesScanned uint64 // Number of vertex records examined
	EdgesScanned    uint64 // Number of adjacency entries examined
}

/*
Result is the outcome of a statement execution.
*/
type Result struct {
	Columns []string       // Column names
	Rows    [][]data.Value // Result rows
	Stats   ResultStats    // Execution statistics
}

/*
RuntimeProvider provides the runtime context for sessions.
*/
type RuntimeProvider struct {
	GM    *graph.Manager // Graph datastore
	Procs *ProcRegistry  // Registry of callable procedures
}

/*
NewRuntimeProvider creates a new RuntimeProvider instance.
*/
func NewRuntimeProvider(gm *graph.Manager) *RuntimeProvider {
	return &RuntimeProvider{GM: gm, Procs: NewProcRegistry()}
}

/*
Session holds the per-session state of the interpreter.
*/
type Session struct {
	rtp    *RuntimeProvider      // Runtime context
	graph  string                // Current graph of this session
	params map[string]data.Value // Session parameters and LET bindings
	tx     *transaction          // Active transaction envelope or nil
	closed bool                  // Flag if this session was closed
}

/*
NewSession creates a new Session. The current graph is unset until a
USE GRAPH statement was executed.
*/
func NewSession(rtp *RuntimeProvider) *Session {
	return &Session{rtp: rtp, params: make(map[string]data.Value)}
}

/*
Graph returns the current graph of the session.
*/
func (s *Session) Graph() string {
	return s.graph
}

/*
SetParam sets a session parameter such as the statement timeout.
*/
func (s *Session) SetParam(name string, val data.Value) {
	s.params[name] = val
}

/*
Close releases all resources of this session.
*/
func (s *Session) Close() {
	if s.graph != "" {
		s.rtp.GM.ReleaseSession(s.graph)
		s.graph = ""
	}

	s.tx = nil
	s.closed = true
}

/*
Execute runs a single parsed statement and returns its result.
*/
func (s *Session) Execute(stmt parser.Statement) (*Result, error) {
	if s.closed {
		return nil, &util.GraphError{Type: util.ErrInternal,
			Detail: "Session is closed"}
	}

	start := time.Now()

	ctx := context.Background()
	cancel := func() {}

	if timeout, ok := s.params["timeout"]; ok {
		if ms, valid := timeout.AsFloat(); valid && ms > 0 {
			ctx, cancel = context.WithTimeout(ctx,
				time.Duration(ms)*time.Millisecond)
		}
	}

	defer cancel()

	res, err := s.dispatch(ctx, stmt)

	if err != nil {

		// Storage level failures inside a transaction envelope mark it
		// rollback-only

		if s.tx != nil && (util.IsGraphError(err, util.ErrCorruption) ||
			util.IsGraphError(err, util.ErrFull)) {
			s.tx.rollbackOnly = true
		}

		return nil, err
	}

	res.Stats.ExecutionTimeMS = time.Since(start).Milliseconds()

	return res, nil
}

/*
dispatch routes a statement to its execution function.
*/
func (s *Session) dispatch(ctx context.Context, stmt parser.Statement) (*Result, error) {

	// A poisoned transaction only accepts ROLLBACK

	if s.tx != nil && s.tx.rollbackOnly {
		if ts, ok := stmt.(*parser.TransactionStatement); !ok ||
			ts.Kind != parser.TransRollback {
			return nil, &util.GraphError{Type: util.ErrInternal,
				Detail: "Transaction is rollback-only"}
		}
	}

	switch st := stmt.(type) {

	case *parser.MatchStatement:
		return s.withReadLock(func() (*Result, error) {
			return s.executeMatch(ctx, st)
		})

	case *parser.SelectStatement:
		return s.withReadLock(func() (*Result, error) {
			return s.executeSelect(ctx, st)
		})

	case *parser.InsertStatement:
		return s.withWriteLock(func() (*Result, error) {
			return s.executeInsert(ctx, st)
		})

	case *parser.DeleteStatement:
		return s.withWriteLock(func() (*Result, error) {
			return s.executeDelete(ctx, st)
		})

	case *parser.UpdateStatement:
		return s.withWriteLock(func() (*Result, error) {
			return s.executeUpdate(ctx, st)
		})

	case *parser.CallStatement:
		return s.withReadLock(func() (*Result, error) {
			return s.executeCall(ctx, st)
		})

	case *parser.CompositeStatement:
		return s.executeComposite(ctx, st)

	case *parser.LetStatement:
		return s.executeLet(st)

	case *parser.ForStatement:
		return s.executeFor(st)

	case *parser.FilterStatement:
		return s.executeFilter(st)

	case *parser.UseGraphStatement:
		return s.executeUseGraph(st.Graph)

	case *parser.CreateGraphStatement:
		return s.executeCreateGraph(st)

	case *parser.DropGraphStatement:
		return s.executeDropGraph(st)

	case *parser.ShowStatement:
		return s.executeShow(ctx, st)

	case *parser.DescribeStatement:
		return s.executeDescribe(st)

	case *parser.SessionStatement:
		return s.executeSession(st)

	case *parser.TransactionStatement:
		return s.executeTransaction(st)
	}

	return nil, &util.GraphError{Type: util.ErrInternal,
		Detail: fmt.Sprintf("Unknown statement type: %T", stmt)}
}

/*
requireGraph checks that the session has a current graph.
*/
func (s *Session) requireGraph() error {
	if s.graph == "" {
		return &util.GraphError{Type: util.ErrBind,
			Detail: "No current graph - execute USE GRAPH first"}
	}

	if !s.rtp.GM.HasGraph(s.graph) {
		return &util.GraphError{Type: util.ErrNotFound,
			Detail: fmt.Sprintf("Graph %v does not exist", s.graph)}
	}

	return nil
}

/*
withReadLock runs a function under the shared snapshot lock of the
current graph.
*/
func (s *Session) withReadLock(f func() (*Result, error)) (*Result, error) {
	if err := s.requireGraph(); err != nil {
		return nil, err
	}

	if err := s.rtp.GM.ReadLock(s.graph); err != nil {
		return nil, err
	}
	defer s.rtp.GM.ReadUnlock(s.graph)

	return f()
}

/*
withWriteLock runs a function under the exclusive write lock of the
current graph.
*/
func (s *Session) withWriteLock(f func() (*Result, error)) (*Result, error) {
	if err := s.requireGraph(); err != nil {
		return nil, err
	}

	if s.tx != nil && s.tx.readOnly {
		return nil, &util.GraphError{Type: util.ErrConstraint,
			Detail: "Transaction is read only"}
	}

	if err := s.rtp.GM.WriteLock(s.graph); err != nil {
		return nil, err
	}
	defer s.rtp.GM.WriteUnlock(s.graph)

	return f()
}

/*
emptyResult returns a result with a single status column.
*/
func emptyResult(msg string) *Result {
	return &Result{Columns: []string{"result"},
		Rows: [][]data.Value{{data.StringValue(msg)}}}
}
