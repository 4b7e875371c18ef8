/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package engine contains the programmatic API of ChainGraph.

Engine

An Engine owns the storage substrate of a data directory: the data
file, the buffer pool, the graph manager and the procedure registry.
It is opened with Open() and must be closed with Close() to flush all
pending changes.

Session

Sessions are created from an engine and execute GQL text through
Execute(). Each session owns its current graph, its transaction
envelope and its parameters. Sessions are independent, their only
shared state is the underlying engine.
*/
package engine

import (
	"os"
	"sync/atomic"
	"time"

	"devt.de/krotik/common/datautil"
	"devt.de/krotik/common/logutil"
	"devt.de/krotik/common/timeutil"
	"github.com/MuYiYong/ChainGraph/config"
	"github.com/MuYiYong/ChainGraph/graph"
	"github.com/MuYiYong/ChainGraph/graph/data"
	"github.com/MuYiYong/ChainGraph/graph/util"
	"github.com/MuYiYong/ChainGraph/gql/interpreter"
	"github.com/MuYiYong/ChainGraph/gql/parser"
	"github.com/MuYiYong/ChainGraph/storage"
	"github.com/MuYiYong/ChainGraph/storage/buffer"
	"github.com/MuYiYong/ChainGraph/storage/file"
)

/*
Logger for the engine package
*/
var logger = logutil.GetLogger("chaingraph.engine")

/*
DefaultBufferPages is the default buffer pool capacity in pages
*/
const DefaultBufferPages = 1024

/*
Engine is a ChainGraph instance over a single data directory.
*/
type Engine struct {
	df   *file.DataFile               // Data file of the datastore
	pool *buffer.Pool                 // Buffer pool
	gm   *graph.Manager               // Graph manager
	rtp  *interpreter.RuntimeProvider // Interpreter runtime

	started   time.Time // Time the engine was opened
	startedTS string    // Readable start timestamp

	defaultTimeoutMS int64 // Default statement timeout for new sessions

	queries          uint64 // Number of executed statements
	queryErrors      uint64 // Number of failed statements
	verticesInserted uint64 // Number of inserted vertices
	edgesInserted    uint64 // Number of inserted edges
}

/*
Open opens a ChainGraph engine on a given data directory. The buffer
capacity is given in pages, a value below 1 selects the default.
*/
func Open(dataDir string, bufferPages int) (*Engine, error) {
	if bufferPages < 1 {
		bufferPages = DefaultBufferPages
	}

	df, err := file.Open(dataDir)
	if err != nil {
		if storage.IsStorageError(err, storage.ErrCorruption) {
			return nil, &util.GraphError{Type: util.ErrCorruption, Detail: err.Error()}
		}

		return nil, &util.GraphError{Type: util.ErrFull, Detail: err.Error()}
	}

	pool := buffer.NewPool(df, bufferPages)

	gm, err := graph.NewManager(df, pool)
	if err != nil {
		df.Close()
		return nil, err
	}

	e := &Engine{df: df, pool: pool, gm: gm,
		rtp:     interpreter.NewRuntimeProvider(gm),
		started: time.Now(), startedTS: timeutil.MakeTimestamp()}

	logger.Info("Opened datastore ", dataDir, " with a buffer pool of ",
		bufferPages, " pages")

	return e, nil
}

/*
OpenFromConfig opens an engine using the global configuration. Log
sinks are wired according to the configured log level and log file.
*/
func OpenFromConfig() (*Engine, error) {
	if config.Config == nil {
		config.LoadDefaultConfig()
	}

	level := logutil.StringToLoglevel(config.Str(config.LogLevel))

	if logFile := config.Str(config.LogFile); logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0660)
		if err != nil {
			return nil, &util.GraphError{Type: util.ErrFull, Detail: err.Error()}
		}

		logutil.GetLogger("chaingraph").AddLogSink(level,
			logutil.SimpleFormatter(), f)
	} else {
		logutil.GetLogger("chaingraph").AddLogSink(level,
			logutil.ConsoleFormatter(), os.Stderr)
	}

	e, err := Open(config.Str(config.LocationDatastore),
		int(config.Int(config.BufferPoolPages)))

	if err == nil {
		e.defaultTimeoutMS = config.Int(config.DefaultQueryTimeout)
	}

	return e, err
}

/*
GraphManager returns the graph manager of this engine.
*/
func (e *Engine) GraphManager() *graph.Manager {
	return e.gm
}

/*
RegisterProcedure adds a procedure to the procedure registry of this
engine.
*/
func (e *Engine) RegisterProcedure(p *interpreter.Procedure) {
	e.rtp.Procs.Register(p)
}

/*
Flush writes all pending changes to disk.
*/
func (e *Engine) Flush() error {
	return e.gm.FlushAll()
}

/*
Close flushes all pending changes and closes the engine.
*/
func (e *Engine) Close() error {
	if err := e.gm.FlushAll(); err != nil {
		e.df.Close()
		return err
	}

	if err := e.df.Close(); err != nil {
		return &util.GraphError{Type: util.ErrFull, Detail: err.Error()}
	}

	logger.Info("Closed datastore ", e.df.Name())

	return nil
}

/*
NewSession creates a new session on this engine.
*/
func (e *Engine) NewSession() *Session {
	is := interpreter.NewSession(e.rtp)

	if e.defaultTimeoutMS > 0 {
		is.SetParam("timeout", data.IntValue(e.defaultTimeoutMS))
	}

	return &Session{engine: e, is: is, cache: datautil.NewMapCache(100, 0)}
}

/*
Session executes GQL statements against the engine.
*/
type Session struct {
	engine *Engine              // Engine of this session
	is     *interpreter.Session // Interpreter session state
	cache  *datautil.MapCache   // Cache of parsed statements
}

/*
Graph returns the current graph of this session.
*/
func (s *Session) Graph() string {
	return s.is.Graph()
}

/*
Close releases all resources of this session.
*/
func (s *Session) Close() {
	s.is.Close()
}

/*
Execute parses and runs a GQL statement and returns its result.
*/
func (s *Session) Execute(gqlText string) (*interpreter.Result, error) {
	var stmt parser.Statement

	if cached, ok := s.cache.Get(gqlText); ok {
		stmt = cached.(parser.Statement)
	} else {
		var err error

		if stmt, err = parser.Parse(gqlText); err != nil {
			atomic.AddUint64(&s.engine.queryErrors, 1)

			return nil, &util.GraphError{Type: util.ErrParse, Detail: err.Error()}
		}

		s.cache.Put(gqlText, stmt)
	}

	res, err := s.is.Execute(stmt)

	atomic.AddUint64(&s.engine.queries, 1)

	if err != nil {
		atomic.AddUint64(&s.engine.queryErrors, 1)
		return nil, err
	}

	// Track insert counters for the stats snapshot

	if _, ok := stmt.(*parser.InsertStatement); ok && len(res.Rows) == 1 {
		atomic.AddUint64(&s.engine.verticesInserted, uint64(res.Rows[0][0].Int()))
		atomic.AddUint64(&s.engine.edgesInserted, uint64(res.Rows[0][1].Int()))
	}

	return res, nil
}

/*
StatsSnapshot holds a snapshot of the engine counters.
*/
type StatsSnapshot struct {
	Uptime    time.Duration // Time since the engine was opened
	StartedAt string        // Readable start timestamp

	Queries     uint64 // Number of executed statements
	QueryErrors uint64 // Number of failed statements

	VerticesInserted uint64 // Number of inserted vertices
	EdgesInserted    uint64 // Number of inserted edges

	BufferPool    buffer.Stats // Buffer pool counters
	CachedPages   int          // Resident pages
	PoolCapacity  int          // Buffer pool capacity
	PoolWatermark string       // Buffer pool watermark status

	Graphs []string // Names of all graphs
}

/*
Stats returns a snapshot of the engine counters.
*/
func (e *Engine) Stats() StatsSnapshot {
	poolStats, cached, capacity := e.gm.PoolStats()

	return StatsSnapshot{
		Uptime:           time.Since(e.started),
		StartedAt:        e.startedTS,
		Queries:          atomic.LoadUint64(&e.queries),
		QueryErrors:      atomic.LoadUint64(&e.queryErrors),
		VerticesInserted: atomic.LoadUint64(&e.verticesInserted),
		EdgesInserted:    atomic.LoadUint64(&e.edgesInserted),
		BufferPool:       poolStats,
		CachedPages:      cached,
		PoolCapacity:     capacity,
		PoolWatermark:    e.gm.Watermark(),
		Graphs:           e.gm.Graphs(),
	}
}

/*
ToMap returns the stats snapshot as a map of property values for
serialization by API shells.
*/
func (st StatsSnapshot) ToMap() map[string]data.Value {
	graphs := make([]data.Value, len(st.Graphs))
	for i, g := range st.Graphs {
		graphs[i] = data.StringValue(g)
	}

	return map[string]data.Value{
		"uptime_seconds":    data.IntValue(int64(st.Uptime.Seconds())),
		"started_at":        data.StringValue(st.StartedAt),
		"queries":           data.UIntValue(st.Queries),
		"query_errors":      data.UIntValue(st.QueryErrors),
		"vertices_inserted": data.UIntValue(st.VerticesInserted),
		"edges_inserted":    data.UIntValue(st.EdgesInserted),
		"buffer_hits":       data.UIntValue(st.BufferPool.Hits),
		"buffer_misses":     data.UIntValue(st.BufferPool.Misses),
		"buffer_evictions":  data.UIntValue(st.BufferPool.Evictions),
		"buffer_writebacks": data.UIntValue(st.BufferPool.Writebacks),
		"cached_pages":      data.IntValue(int64(st.CachedPages)),
		"pool_capacity":     data.IntValue(int64(st.PoolCapacity)),
		"watermark":         data.StringValue(st.PoolWatermark),
		"graphs":            data.ListValue(graphs),
	}
}
