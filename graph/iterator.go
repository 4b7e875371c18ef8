/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package graph

import (
	"github.com/MuYiYong/ChainGraph/graph/util"
)

/*
vertexIterator iterates the decoded vertex records of a graph. If a
label id is given only the pages registered in the label iteration
index are visited and records of other labels are skipped. Otherwise
the whole vertex store chain is traversed.
*/
type vertexIterator struct {
	gm      *Manager
	g       *graphData
	label   uint32 // Label filter (0 = all labels)
	pids    []uint64
	init    bool
	buf     []*vertexRecord
	pos     int
	lastErr error
}

/*
newVertexIterator creates a new vertexIterator.
*/
func (gm *Manager) newVertexIterator(g *graphData, label uint32) *vertexIterator {
	return &vertexIterator{gm: gm, g: g, label: label}
}

/*
HasNext returns if there is a next vertex record.
*/
func (it *vertexIterator) HasNext() bool {
	if it.lastErr != nil {
		return false
	}

	if !it.init {
		it.init = true

		if it.label != 0 {
			it.pids = it.g.lindex.Pages(it.label)
		} else {
			it.pids, it.lastErr = it.g.vstore.Pages(it.gm.pool)

			if it.lastErr != nil {
				return false
			}
		}
	}

	for it.pos >= len(it.buf) {

		if it.lastErr != nil {
			return true
		}

		if len(it.pids) == 0 {
			return false
		}

		it.loadPage()
	}

	return true
}

/*
loadPage decodes the next page into the record buffer.
*/
func (it *vertexIterator) loadPage() {
	pid := it.pids[0]
	it.pids = it.pids[1:]

	it.buf = it.buf[:0]
	it.pos = 0

	h, err := it.gm.pool.Fetch(pid)
	if err != nil {
		it.lastErr = wrapStorageError(err)
		return
	}

	h.RLock()

	for slot := 0; slot < h.Page().SlotCount(); slot++ {
		rec := h.Page().Slot(slot)

		if rec == nil {
			continue
		}

		vrec, err := decodeVertex(rec)
		if err != nil {
			it.lastErr = &util.GraphError{Type: util.ErrCorruption, Detail: err.Error()}
			break
		}

		if it.label != 0 && vrec.Label != it.label {
			continue
		}

		it.buf = append(it.buf, vrec)
	}

	h.RUnlock()
	it.gm.pool.Unpin(h, false)
}

/*
nextRecord returns the next vertex record.
*/
func (it *vertexIterator) nextRecord() (*vertexRecord, error) {
	if it.lastErr != nil {
		return nil, it.lastErr
	}

	if it.pos >= len(it.buf) {
		return nil, nil
	}

	vrec := it.buf[it.pos]
	it.pos++

	return vrec, nil
}

/*
NodeIterator iterates the vertices of a graph.
*/
type NodeIterator struct {
	it *vertexIterator
}

/*
HasNext returns if there is a next node.
*/
func (ni *NodeIterator) HasNext() bool {
	return ni.it.HasNext()
}

/*
Next returns the next node.
*/
func (ni *NodeIterator) Next() (*Node, error) {
	vrec, err := ni.it.nextRecord()
	if err != nil || vrec == nil {
		return nil, err
	}

	return ni.it.gm.vertexToNode(ni.it.g, vrec)
}

/*
VerticesByLabel returns an iterator over all vertices of a given label.
The label iteration index restricts the scan to relevant pages. An
unknown label yields an empty iterator.
*/
func (gm *Manager) VerticesByLabel(graph string, label string) (*NodeIterator, error) {
	g, err := gm.getGraph(graph)
	if err != nil {
		return nil, err
	}

	labelID, ok := g.vlabels.Lookup(label)
	if !ok {
		return &NodeIterator{&vertexIterator{gm: gm, g: g, init: true}}, nil
	}

	return &NodeIterator{gm.newVertexIterator(g, labelID)}, nil
}

/*
AllVertices returns an iterator over all vertices of a graph which
traverses the full vertex store.
*/
func (gm *Manager) AllVertices(graph string) (*NodeIterator, error) {
	g, err := gm.getGraph(graph)
	if err != nil {
		return nil, err
	}

	return &NodeIterator{gm.newVertexIterator(g, 0)}, nil
}

/*
EdgeIterator iterates the edges of a graph.
*/
type EdgeIterator struct {
	gm      *Manager
	g       *graphData
	pids    []uint64
	init    bool
	buf     []*edgeRecord
	pos     int
	lastErr error
}

/*
AllEdges returns an iterator over all edges of a graph.
*/
func (gm *Manager) AllEdges(graph string) (*EdgeIterator, error) {
	g, err := gm.getGraph(graph)
	if err != nil {
		return nil, err
	}

	return &EdgeIterator{gm: gm, g: g}, nil
}

/*
HasNext returns if there is a next edge.
*/
func (ei *EdgeIterator) HasNext() bool {
	if ei.lastErr != nil {
		return false
	}

	if !ei.init {
		ei.init = true
		ei.pids, ei.lastErr = ei.g.estore.Pages(ei.gm.pool)

		if ei.lastErr != nil {
			return false
		}
	}

	for ei.pos >= len(ei.buf) {

		if len(ei.pids) == 0 {
			return false
		}

		pid := ei.pids[0]
		ei.pids = ei.pids[1:]

		ei.buf = ei.buf[:0]
		ei.pos = 0

		h, err := ei.gm.pool.Fetch(pid)
		if err != nil {
			ei.lastErr = wrapStorageError(err)
			return true
		}

		h.RLock()

		for slot := 0; slot < h.Page().SlotCount(); slot++ {
			rec := h.Page().Slot(slot)

			if rec == nil {
				continue
			}

			erec, err := decodeEdge(rec)
			if err != nil {
				ei.lastErr = &util.GraphError{Type: util.ErrCorruption,
					Detail: err.Error()}
				break
			}

			ei.buf = append(ei.buf, erec)
		}

		h.RUnlock()
		ei.gm.pool.Unpin(h, false)

		if ei.lastErr != nil {
			return true
		}
	}

	return true
}

/*
Next returns the next edge.
*/
func (ei *EdgeIterator) Next() (*Edge, error) {
	if ei.lastErr != nil {
		return nil, ei.lastErr
	}

	if ei.pos >= len(ei.buf) {
		return nil, nil
	}

	erec := ei.buf[ei.pos]
	ei.pos++

	return ei.gm.edgeToEdge(ei.g, erec)
}
