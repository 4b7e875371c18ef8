/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package graph

import (
	"fmt"
	"sort"
	"sync"

	"devt.de/krotik/common/logutil"
	"devt.de/krotik/common/stringutil"
	"github.com/MuYiYong/ChainGraph/graph/util"
	"github.com/MuYiYong/ChainGraph/storage/buffer"
	"github.com/MuYiYong/ChainGraph/storage/file"
	"github.com/MuYiYong/ChainGraph/storage/page"
)

/*
Logger for the graph package
*/
var logger = logutil.GetLogger("chaingraph.graph")

/*
graphData holds the runtime state of a single named graph.
*/
type graphData struct {
	info *GraphInfo // Catalog entry with roots and counters

	vlabels *dict // Vertex label dictionary
	elabels *dict // Edge label dictionary
	pkeys   *dict // Property key dictionary

	vstore *recordStore // Vertex record store
	estore *recordStore // Edge record store

	vmap *idMap // Vertex id to locator map
	emap *idMap // Edge id to locator map

	lindex *labelIndex // Label iteration index

	lock     sync.RWMutex // Graph level statement lock
	sessions int          // Number of active sessions on this graph
}

/*
Manager is the main API to the graph datastore.
*/
type Manager struct {
	pool   *buffer.Pool          // Buffer pool for all page access
	df     *file.DataFile        // Data file (for the catalog root)
	lock   sync.RWMutex          // Lock guarding the graphs map
	graphs map[string]*graphData // Map of named graphs
}

/*
NewManager creates a new Manager instance on top of a buffer pool. All
existing graphs of the datastore are opened.
*/
func NewManager(df *file.DataFile, pool *buffer.Pool) (*Manager, error) {
	gm := &Manager{pool: pool, df: df, graphs: make(map[string]*graphData)}

	rec, err := loadCatalog(pool, df.CatalogRoot())
	if err != nil {
		return nil, err
	}

	for name, info := range rec.Graphs {

		g, err := gm.openGraphData(info)
		if err != nil {
			return nil, err
		}

		gm.graphs[name] = g
	}

	logger.Info("Opened graph datastore with ", len(gm.graphs), " graph",
		stringutil.Plural(len(gm.graphs)))

	return gm, nil
}

/*
openGraphData loads the runtime state of a graph from its catalog entry.
*/
func (gm *Manager) openGraphData(info *GraphInfo) (*graphData, error) {
	var err error

	g := &graphData{info: info}

	if g.vlabels, err = loadDict(gm.pool, info.VLabelRoot); err != nil {
		return nil, err
	}
	if g.elabels, err = loadDict(gm.pool, info.ELabelRoot); err != nil {
		return nil, err
	}
	if g.pkeys, err = loadDict(gm.pool, info.PKeyRoot); err != nil {
		return nil, err
	}

	if g.vmap, err = loadIDMap(gm.pool, info.VMapRoot); err != nil {
		return nil, err
	}
	if g.emap, err = loadIDMap(gm.pool, info.EMapRoot); err != nil {
		return nil, err
	}

	if g.lindex, err = loadLabelIndex(gm.pool, info.LabelIndexRoot); err != nil {
		return nil, err
	}

	g.vstore = newRecordStore(gm.pool, page.KindVertex, info.VStoreRoot, info.VStoreLast)
	g.estore = newRecordStore(gm.pool, page.KindEdge, info.EStoreRoot, info.EStoreLast)

	return g, nil
}

/*
getGraph returns the runtime state of a named graph.
*/
func (gm *Manager) getGraph(name string) (*graphData, error) {
	gm.lock.RLock()
	defer gm.lock.RUnlock()

	g, ok := gm.graphs[name]

	if !ok {
		return nil, &util.GraphError{Type: util.ErrNotFound,
			Detail: fmt.Sprintf("Graph %v does not exist", name)}
	}

	return g, nil
}

/*
HasGraph checks if a given graph exists.
*/
func (gm *Manager) HasGraph(name string) bool {
	gm.lock.RLock()
	defer gm.lock.RUnlock()

	_, ok := gm.graphs[name]

	return ok
}

/*
Graphs returns the sorted names of all graphs.
*/
func (gm *Manager) Graphs() []string {
	gm.lock.RLock()
	defer gm.lock.RUnlock()

	names := make([]string, 0, len(gm.graphs))
	for name := range gm.graphs {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

/*
Schema returns the inline schema of a graph. The schema is nil if the
graph was created without one.
*/
func (gm *Manager) Schema(name string) (*Schema, error) {
	g, err := gm.getGraph(name)
	if err != nil {
		return nil, err
	}

	return g.info.Schema, nil
}

/*
Counts returns the number of live vertices and edges of a graph.
*/
func (gm *Manager) Counts(name string) (uint64, uint64, error) {
	g, err := gm.getGraph(name)
	if err != nil {
		return 0, 0, err
	}

	return g.info.VertexCount, g.info.EdgeCount, nil
}

/*
VertexLabels returns all known vertex labels of a graph.
*/
func (gm *Manager) VertexLabels(name string) ([]string, error) {
	g, err := gm.getGraph(name)
	if err != nil {
		return nil, err
	}

	names := g.vlabels.Names()
	sort.Strings(names)

	return names, nil
}

/*
EdgeLabels returns all known edge labels of a graph.
*/
func (gm *Manager) EdgeLabels(name string) ([]string, error) {
	g, err := gm.getGraph(name)
	if err != nil {
		return nil, err
	}

	names := g.elabels.Names()
	sort.Strings(names)

	return names, nil
}

/*
CreateGraph creates a new named graph with an optional inline schema.
*/
func (gm *Manager) CreateGraph(name string, schema *Schema) error {
	gm.lock.Lock()
	defer gm.lock.Unlock()

	if _, ok := gm.graphs[name]; ok {
		return &util.GraphError{Type: util.ErrConstraint,
			Detail: fmt.Sprintf("Graph %v already exists", name)}
	}

	info := &GraphInfo{Name: name, Schema: schema,
		PKRoots: make(map[string]uint64), NextVID: 1, NextEID: 1}

	// Allocate the initial pages of all storage structures

	alloc := func(kind byte) (uint64, error) {
		h, err := gm.pool.New(kind)
		if err != nil {
			return 0, wrapStorageError(err)
		}
		pid := h.PID()
		gm.pool.Unpin(h, true)
		return pid, nil
	}

	var err error

	if info.VLabelRoot, err = alloc(page.KindDictionary); err != nil {
		return err
	}
	if info.ELabelRoot, err = alloc(page.KindDictionary); err != nil {
		return err
	}
	if info.PKeyRoot, err = alloc(page.KindDictionary); err != nil {
		return err
	}
	if info.VStoreRoot, err = alloc(page.KindVertex); err != nil {
		return err
	}
	if info.EStoreRoot, err = alloc(page.KindEdge); err != nil {
		return err
	}
	if info.VMapRoot, err = alloc(page.KindIDMap); err != nil {
		return err
	}
	if info.EMapRoot, err = alloc(page.KindIDMap); err != nil {
		return err
	}
	if info.LabelIndexRoot, err = alloc(page.KindLabelIndex); err != nil {
		return err
	}

	info.VStoreLast = info.VStoreRoot
	info.EStoreLast = info.EStoreRoot

	g, err := gm.openGraphData(info)
	if err != nil {
		return err
	}

	gm.graphs[name] = g

	logger.Info("Created graph ", name)

	return gm.flushCatalog()
}

/*
DropGraph removes a named graph and frees all its pages. The graph must
not have any active sessions.
*/
func (gm *Manager) DropGraph(name string) error {
	gm.lock.Lock()
	defer gm.lock.Unlock()

	g, ok := gm.graphs[name]

	if !ok {
		return &util.GraphError{Type: util.ErrNotFound,
			Detail: fmt.Sprintf("Graph %v does not exist", name)}
	}

	if g.sessions > 0 {
		return &util.GraphError{Type: util.ErrConstraint,
			Detail: fmt.Sprintf("Graph %v has %v active session%s", name,
				g.sessions, stringutil.Plural(g.sessions))}
	}

	// Free the adjacency chains of all vertices

	it := gm.newVertexIterator(g, 0)

	for it.HasNext() {
		vrec, err := it.nextRecord()
		if err != nil {
			return err
		}

		if err := gm.freeChain(vrec.OutHead); err != nil {
			return err
		}
		if err := gm.freeChain(vrec.InHead); err != nil {
			return err
		}
	}

	// Free the primary key indexes

	for _, dir := range g.info.PKRoots {

		dh, err := gm.pool.Fetch(dir)
		if err != nil {
			return wrapStorageError(err)
		}

		var heads []uint64

		dh.RLock()
		for i := 0; i < pkBuckets; i++ {
			if head := dh.Page().ReadUInt64(page.HeaderSize + i*8); head != 0 {
				heads = append(heads, head)
			}
		}
		dh.RUnlock()
		gm.pool.Unpin(dh, false)

		for _, head := range heads {
			if err := gm.freeChain(head); err != nil {
				return err
			}
		}

		if err := gm.freeChain(dir); err != nil {
			return err
		}
	}

	// Free the label index page lists

	for _, lp := range g.lindex.lists {
		if err := gm.freeChain(lp.head); err != nil {
			return err
		}
	}

	// Free all remaining chains

	for _, head := range []uint64{g.info.LabelIndexRoot, g.info.VLabelRoot,
		g.info.ELabelRoot, g.info.PKeyRoot, g.info.VStoreRoot, g.info.EStoreRoot,
		g.info.VMapRoot, g.info.EMapRoot} {

		if err := gm.freeChain(head); err != nil {
			return err
		}
	}

	delete(gm.graphs, name)

	logger.Info("Dropped graph ", name)

	return gm.flushCatalog()
}

/*
freeChain frees all pages of a page chain.
*/
func (gm *Manager) freeChain(head uint64) error {
	pid := head

	for pid != 0 {
		h, err := gm.pool.Fetch(pid)
		if err != nil {
			return wrapStorageError(err)
		}

		next := h.Page().NextPage()
		gm.pool.Unpin(h, false)

		if err := gm.pool.Free(pid); err != nil {
			return wrapStorageError(err)
		}

		pid = next
	}

	return nil
}

// Session and locking support
// ===========================

/*
AcquireSession registers an active session on a graph. Graphs with
active sessions cannot be dropped.
*/
func (gm *Manager) AcquireSession(name string) error {
	gm.lock.Lock()
	defer gm.lock.Unlock()

	g, ok := gm.graphs[name]

	if !ok {
		return &util.GraphError{Type: util.ErrNotFound,
			Detail: fmt.Sprintf("Graph %v does not exist", name)}
	}

	g.sessions++

	return nil
}

/*
ReleaseSession removes an active session from a graph.
*/
func (gm *Manager) ReleaseSession(name string) {
	gm.lock.Lock()
	defer gm.lock.Unlock()

	if g, ok := gm.graphs[name]; ok && g.sessions > 0 {
		g.sessions--
	}
}

/*
ReadLock takes the shared snapshot lock of a graph for the duration of
a read statement.
*/
func (gm *Manager) ReadLock(name string) error {
	g, err := gm.getGraph(name)
	if err != nil {
		return err
	}

	g.lock.RLock()

	return nil
}

/*
ReadUnlock releases the shared snapshot lock of a graph.
*/
func (gm *Manager) ReadUnlock(name string) {
	if g, err := gm.getGraph(name); err == nil {
		g.lock.RUnlock()
	}
}

/*
WriteLock takes the exclusive write lock of a graph for the duration of
a write statement.
*/
func (gm *Manager) WriteLock(name string) error {
	g, err := gm.getGraph(name)
	if err != nil {
		return err
	}

	g.lock.Lock()

	return nil
}

/*
WriteUnlock releases the exclusive write lock of a graph.
*/
func (gm *Manager) WriteUnlock(name string) {
	if g, err := gm.getGraph(name); err == nil {
		g.lock.Unlock()
	}
}

/*
HasVertexLabel checks if a vertex label is known to a graph, either
through the label dictionary or the inline schema.
*/
func (gm *Manager) HasVertexLabel(graph string, label string) bool {
	g, err := gm.getGraph(graph)
	if err != nil {
		return false
	}

	if _, ok := g.vlabels.Lookup(label); ok {
		return true
	}

	return g.info.Schema != nil && g.info.Schema.NodeDef(label) != nil
}

/*
HasEdgeLabel checks if an edge label is known to a graph, either
through the label dictionary or the inline schema.
*/
func (gm *Manager) HasEdgeLabel(graph string, label string) bool {
	g, err := gm.getGraph(graph)
	if err != nil {
		return false
	}

	if _, ok := g.elabels.Lookup(label); ok {
		return true
	}

	return g.info.Schema != nil && g.info.Schema.EdgeDef(label) != nil
}

/*
Watermark returns the buffer pool usage status.
*/
func (gm *Manager) Watermark() string {
	return gm.pool.Watermark()
}

/*
PoolStats returns the buffer pool counters and size.
*/
func (gm *Manager) PoolStats() (buffer.Stats, int, int) {
	return gm.pool.Stats(), gm.pool.Cached(), gm.pool.Capacity()
}

// Flushing
// ========

/*
flushCatalog persists the graph catalog. It is assumed that the caller
holds the manager lock.
*/
func (gm *Manager) flushCatalog() error {
	rec := &catalogRec{Graphs: make(map[string]*GraphInfo)}

	for name, g := range gm.graphs {
		rec.Graphs[name] = g.info
	}

	root, err := saveCatalog(gm.pool, gm.df.CatalogRoot(), rec)
	if err != nil {
		return err
	}

	gm.df.SetCatalogRoot(root)

	return nil
}

/*
FlushAll persists the catalog and writes all dirty pages to disk.
*/
func (gm *Manager) FlushAll() error {
	gm.lock.Lock()

	if err := gm.flushCatalog(); err != nil {
		gm.lock.Unlock()
		return err
	}

	gm.lock.Unlock()

	return wrapStorageError(gm.pool.FlushAll())
}
