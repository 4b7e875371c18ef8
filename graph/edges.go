/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package graph

import (
	"encoding/binary"
	"fmt"

	"github.com/MuYiYong/ChainGraph/graph/data"
	"github.com/MuYiYong/ChainGraph/graph/util"
)

/*
Edge is the external representation of an edge.
*/
type Edge struct {
	EID   uint64                // Unique edge id
	Label string                // Label name
	Src   uint64                // Source vertex id
	Dst   uint64                // Target vertex id
	Props map[string]data.Value // Property map
}

/*
Prop returns a property value of this edge. Returns the null value if
the property does not exist.
*/
func (e *Edge) Prop(name string) data.Value {
	if v, ok := e.Props[name]; ok {
		return v
	}

	return data.NullValue()
}

/*
AdjEntry describes one edge at a vertex as seen from that vertex.
*/
type AdjEntry struct {
	Neighbor uint64 // Vertex id of the other endpoint
	EID      uint64 // Edge id
}

/*
InsertEdge creates a new directed edge between two existing vertices
and returns its id. Both adjacency chains and the edge record are
updated in one critical section - the caller must hold the graph write
lock.
*/
func (gm *Manager) InsertEdge(graph string, label string, src uint64, dst uint64,
	props map[string]data.Value) (uint64, error) {

	g, err := gm.getGraph(graph)
	if err != nil {
		return 0, err
	}

	srcRec, srcLoc, err := gm.readVertexRecord(g, src)
	if err != nil {
		return 0, err
	}

	if srcRec == nil {
		return 0, &util.GraphError{Type: util.ErrNotFound,
			Detail: fmt.Sprintf("Source vertex %v does not exist", src)}
	}

	dstRec, dstLoc, err := gm.readVertexRecord(g, dst)
	if err != nil {
		return 0, err
	}

	if dstRec == nil {
		return 0, &util.GraphError{Type: util.ErrNotFound,
			Detail: fmt.Sprintf("Target vertex %v does not exist", dst)}
	}

	// Check the insert against the inline schema

	if g.info.Schema != nil {
		ed := g.info.Schema.EdgeDef(label)

		if ed == nil {
			return 0, &util.GraphError{Type: util.ErrConstraint,
				Detail: fmt.Sprintf("Schema of graph %v does not declare edge type %v",
					graph, label)}
		}

		if err := checkProps("edge", label, ed.Props, props); err != nil {
			return 0, err
		}

		srcLabel, _ := g.vlabels.Name(srcRec.Label)
		dstLabel, _ := g.vlabels.Name(dstRec.Label)

		if ed.SourceLabel != "" && ed.SourceLabel != srcLabel {
			return 0, &util.GraphError{Type: util.ErrConstraint,
				Detail: fmt.Sprintf("Edge type %v requires source label %v not %v",
					label, ed.SourceLabel, srcLabel)}
		}

		if ed.TargetLabel != "" && ed.TargetLabel != dstLabel {
			return 0, &util.GraphError{Type: util.ErrConstraint,
				Detail: fmt.Sprintf("Edge type %v requires target label %v not %v",
					label, ed.TargetLabel, dstLabel)}
		}
	}

	labelID, err := g.elabels.Register(gm.pool, label)
	if err != nil {
		return 0, err
	}

	propIDs, err := gm.propsToIDs(g, props)
	if err != nil {
		return 0, err
	}

	eid := g.info.NextEID
	g.info.NextEID++

	// Insert the entry into the outgoing chain of the source

	outHead, outLoc, err := adjAllocEntry(gm.pool, srcRec.OutHead)
	if err != nil {
		return 0, err
	}

	if err := adjWriteEntry(gm.pool, outLoc, dst, eid, 0); err != nil {
		return 0, err
	}

	if outHead != srcRec.OutHead {
		if err := gm.patchVertexHead(g, srcLoc, vertexOffsetOutHead, outHead); err != nil {
			return 0, err
		}
		srcRec.OutHead = outHead
	}

	// Insert the entry into the incoming chain of the target. For a self
	// loop the chain head might have moved within the same record.

	if src == dst {
		dstRec = srcRec
		dstLoc = srcLoc
	}

	inHead, inLoc, err := adjAllocEntry(gm.pool, dstRec.InHead)
	if err != nil {
		return 0, err
	}

	if err := adjWriteEntry(gm.pool, inLoc, src, eid, outLoc); err != nil {
		return 0, err
	}

	if inHead != dstRec.InHead {
		if err := gm.patchVertexHead(g, dstLoc, vertexOffsetInHead, inHead); err != nil {
			return 0, err
		}
		dstRec.InHead = inHead
	}

	// Connect the twin pointers

	if err := adjPatchTwin(gm.pool, outLoc, inLoc); err != nil {
		return 0, err
	}

	// Write the edge record

	erec := &edgeRecord{EID: eid, Label: labelID, Src: src, Dst: dst,
		OutLoc: outLoc, InLoc: inLoc, Props: propIDs}

	loc, err := g.estore.Insert(gm.pool, encodeEdge(erec))
	if err != nil {
		return 0, err
	}

	g.info.EStoreLast = g.estore.last

	if err := g.emap.Set(gm.pool, eid, loc); err != nil {
		return 0, err
	}

	g.info.EdgeCount++

	return eid, nil
}

/*
patchVertexHead updates an adjacency chain head on a vertex record in
place.
*/
func (gm *Manager) patchVertexHead(g *graphData, loc uint64, offset int,
	head uint64) error {

	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], head)

	return g.vstore.Patch(gm.pool, loc, offset, b[:])
}

/*
FetchEdge fetches a single edge from a graph. Returns nil if the edge
does not exist.
*/
func (gm *Manager) FetchEdge(graph string, eid uint64) (*Edge, error) {
	g, err := gm.getGraph(graph)
	if err != nil {
		return nil, err
	}

	erec, _, err := gm.readEdgeRecord(g, eid)
	if err != nil || erec == nil {
		return nil, err
	}

	return gm.edgeToEdge(g, erec)
}

/*
readEdgeRecord reads the decoded edge record and its locator of a given
edge id. Returns nil if the edge does not exist.
*/
func (gm *Manager) readEdgeRecord(g *graphData, eid uint64) (*edgeRecord, uint64, error) {
	loc, err := g.emap.Get(gm.pool, eid)
	if err != nil || loc == 0 {
		return nil, 0, err
	}

	rec, err := g.estore.Read(gm.pool, loc)
	if err != nil || rec == nil {
		return nil, 0, err
	}

	erec, err := decodeEdge(rec)
	if err != nil {
		return nil, 0, &util.GraphError{Type: util.ErrCorruption, Detail: err.Error()}
	}

	return erec, loc, nil
}

/*
edgeToEdge converts a decoded edge record into an Edge.
*/
func (gm *Manager) edgeToEdge(g *graphData, erec *edgeRecord) (*Edge, error) {
	label, ok := g.elabels.Name(erec.Label)
	if !ok {
		return nil, &util.GraphError{Type: util.ErrCorruption,
			Detail: fmt.Sprintf("Unknown label id %v", erec.Label)}
	}

	props, err := gm.propsFromIDs(g, erec.Props)
	if err != nil {
		return nil, err
	}

	return &Edge{EID: erec.EID, Label: label, Src: erec.Src, Dst: erec.Dst,
		Props: props}, nil
}

/*
UpdateEdgeProps sets properties of an existing edge. Setting a property
to the null value removes it. The caller must hold the graph write
lock.
*/
func (gm *Manager) UpdateEdgeProps(graph string, eid uint64,
	props map[string]data.Value) error {

	g, err := gm.getGraph(graph)
	if err != nil {
		return err
	}

	erec, loc, err := gm.readEdgeRecord(g, eid)
	if err != nil {
		return err
	}

	if erec == nil {
		return &util.GraphError{Type: util.ErrNotFound,
			Detail: fmt.Sprintf("Edge %v does not exist", eid)}
	}

	if g.info.Schema != nil {
		label, _ := g.elabels.Name(erec.Label)

		if ed := g.info.Schema.EdgeDef(label); ed != nil {
			if err := checkProps("edge", label, ed.Props, props); err != nil {
				return err
			}
		}
	}

	for name, val := range props {
		pid, err := g.pkeys.Register(gm.pool, name)
		if err != nil {
			return err
		}

		if val.IsNull() {
			delete(erec.Props, pid)
		} else {
			erec.Props[pid] = val
		}
	}

	newLoc, err := g.estore.Update(gm.pool, loc, encodeEdge(erec))
	if err != nil {
		return err
	}

	g.info.EStoreLast = g.estore.last

	if newLoc != loc {
		if err := g.emap.Set(gm.pool, eid, newLoc); err != nil {
			return err
		}
	}

	return nil
}

/*
DeleteEdge removes an edge from a graph. The entries in both adjacency
chains are located through the entry locators stored on the edge
record. The caller must hold the graph write lock.
*/
func (gm *Manager) DeleteEdge(graph string, eid uint64) error {
	g, err := gm.getGraph(graph)
	if err != nil {
		return err
	}

	erec, loc, err := gm.readEdgeRecord(g, eid)
	if err != nil {
		return err
	}

	if erec == nil {
		return &util.GraphError{Type: util.ErrNotFound,
			Detail: fmt.Sprintf("Edge %v does not exist", eid)}
	}

	// Unlink the entry from the outgoing chain of the source

	srcRec, srcLoc, err := gm.readVertexRecord(g, erec.Src)
	if err != nil {
		return err
	}

	if srcRec == nil {
		return &util.GraphError{Type: util.ErrInternal,
			Detail: fmt.Sprintf("Edge %v references missing vertex %v", eid, erec.Src)}
	}

	newOutHead, err := adjRemoveEntry(gm.pool, srcRec.OutHead, erec.OutLoc)
	if err != nil {
		return err
	}

	if newOutHead != srcRec.OutHead {
		if err := gm.patchVertexHead(g, srcLoc, vertexOffsetOutHead, newOutHead); err != nil {
			return err
		}
	}

	// Unlink the entry from the incoming chain of the target

	dstRec, dstLoc, err := gm.readVertexRecord(g, erec.Dst)
	if err != nil {
		return err
	}

	if dstRec == nil {
		return &util.GraphError{Type: util.ErrInternal,
			Detail: fmt.Sprintf("Edge %v references missing vertex %v", eid, erec.Dst)}
	}

	newInHead, err := adjRemoveEntry(gm.pool, dstRec.InHead, erec.InLoc)
	if err != nil {
		return err
	}

	if newInHead != dstRec.InHead {
		if err := gm.patchVertexHead(g, dstLoc, vertexOffsetInHead, newInHead); err != nil {
			return err
		}
	}

	// Reclaim the record slot

	if err := g.estore.Delete(gm.pool, loc); err != nil {
		return err
	}

	if err := g.emap.Set(gm.pool, eid, 0); err != nil {
		return err
	}

	g.info.EdgeCount--

	return nil
}

// Adjacency iteration
// ===================

/*
OutEdges returns the outgoing edges of a vertex.
*/
func (gm *Manager) OutEdges(graph string, vid uint64) ([]AdjEntry, error) {
	return gm.vertexEdges(graph, vid, true, false)
}

/*
InEdges returns the incoming edges of a vertex.
*/
func (gm *Manager) InEdges(graph string, vid uint64) ([]AdjEntry, error) {
	return gm.vertexEdges(graph, vid, false, true)
}

/*
BothEdges returns the outgoing and incoming edges of a vertex. A self
loop is only reported once.
*/
func (gm *Manager) BothEdges(graph string, vid uint64) ([]AdjEntry, error) {
	return gm.vertexEdges(graph, vid, true, true)
}

/*
vertexEdges collects adjacency entries of a vertex.
*/
func (gm *Manager) vertexEdges(graph string, vid uint64, out bool,
	in bool) ([]AdjEntry, error) {

	g, err := gm.getGraph(graph)
	if err != nil {
		return nil, err
	}

	vrec, _, err := gm.readVertexRecord(g, vid)
	if err != nil {
		return nil, err
	}

	if vrec == nil {
		return nil, &util.GraphError{Type: util.ErrNotFound,
			Detail: fmt.Sprintf("Vertex %v does not exist", vid)}
	}

	var res []AdjEntry
	var seen map[uint64]bool

	if out && in {
		seen = make(map[uint64]bool)
	}

	if out {
		entries, err := adjEntries(gm.pool, vrec.OutHead)
		if err != nil {
			return nil, err
		}

		for _, e := range entries {
			res = append(res, AdjEntry{Neighbor: e.Neighbor, EID: e.EID})

			if seen != nil {
				seen[e.EID] = true
			}
		}
	}

	if in {
		entries, err := adjEntries(gm.pool, vrec.InHead)
		if err != nil {
			return nil, err
		}

		for _, e := range entries {
			if seen != nil && seen[e.EID] {
				continue
			}

			res = append(res, AdjEntry{Neighbor: e.Neighbor, EID: e.EID})
		}
	}

	return res, nil
}

/*
Degree returns the number of incoming and outgoing edges of a vertex.
*/
func (gm *Manager) Degree(graph string, vid uint64) (int, int, error) {
	out, err := gm.OutEdges(graph, vid)
	if err != nil {
		return 0, 0, err
	}

	in, err := gm.InEdges(graph, vid)
	if err != nil {
		return 0, 0, err
	}

	return len(in), len(out), nil
}
