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

	"github.com/MuYiYong/ChainGraph/graph/data"
	"github.com/MuYiYong/ChainGraph/graph/util"
)

/*
Restore operations. These recreate previously deleted records under
their original ids and exist for the transaction rollback path of the
interpreter. They bypass schema validation since the records passed
validation when they were first written. The caller must hold the
graph write lock.
*/

/*
RestoreVertex recreates a deleted vertex under its original id.
*/
func (gm *Manager) RestoreVertex(graph string, vid uint64, label string,
	props map[string]data.Value) error {

	g, err := gm.getGraph(graph)
	if err != nil {
		return err
	}

	if loc, err := g.vmap.Get(gm.pool, vid); err != nil {
		return err
	} else if loc != 0 {
		return &util.GraphError{Type: util.ErrInternal,
			Detail: fmt.Sprintf("Vertex %v still exists", vid)}
	}

	labelID, err := g.vlabels.Register(gm.pool, label)
	if err != nil {
		return err
	}

	propIDs, err := gm.propsToIDs(g, props)
	if err != nil {
		return err
	}

	vrec := &vertexRecord{VID: vid, Label: labelID, Props: propIDs}

	var pkKey []byte
	var pkDir uint64

	if g.info.Schema != nil {
		if pkProp := g.info.Schema.PrimaryKey(label); pkProp != "" {
			if val, ok := props[pkProp]; ok && !val.IsNull() {
				pkKey = val.EncodeToBytes()

				if pkDir, err = gm.ensurePKIndex(g, label); err != nil {
					return err
				}

				if val.Tag() == data.TagAddress {
					vrec.Addr = val.Raw()
				}
			}
		}
	}

	loc, err := g.vstore.Insert(gm.pool, encodeVertex(vrec))
	if err != nil {
		return err
	}

	g.info.VStoreLast = g.vstore.last

	if err := g.vmap.Set(gm.pool, vid, loc); err != nil {
		return err
	}

	if err := g.lindex.AddPage(gm.pool, labelID, locatorPage(loc)); err != nil {
		return err
	}

	if pkKey != nil {
		if err := pkInsert(gm.pool, pkDir, pkKey, vid); err != nil {
			return err
		}
	}

	if vid >= g.info.NextVID {
		g.info.NextVID = vid + 1
	}

	g.info.VertexCount++

	return nil
}

/*
RestoreEdge recreates a deleted edge under its original id.
*/
func (gm *Manager) RestoreEdge(graph string, eid uint64, label string,
	src uint64, dst uint64, props map[string]data.Value) error {

	g, err := gm.getGraph(graph)
	if err != nil {
		return err
	}

	if loc, err := g.emap.Get(gm.pool, eid); err != nil {
		return err
	} else if loc != 0 {
		return &util.GraphError{Type: util.ErrInternal,
			Detail: fmt.Sprintf("Edge %v still exists", eid)}
	}

	srcRec, srcLoc, err := gm.readVertexRecord(g, src)
	if err != nil {
		return err
	}

	if srcRec == nil {
		return &util.GraphError{Type: util.ErrNotFound,
			Detail: fmt.Sprintf("Source vertex %v does not exist", src)}
	}

	dstRec, dstLoc, err := gm.readVertexRecord(g, dst)
	if err != nil {
		return err
	}

	if dstRec == nil {
		return &util.GraphError{Type: util.ErrNotFound,
			Detail: fmt.Sprintf("Target vertex %v does not exist", dst)}
	}

	labelID, err := g.elabels.Register(gm.pool, label)
	if err != nil {
		return err
	}

	propIDs, err := gm.propsToIDs(g, props)
	if err != nil {
		return err
	}

	outHead, outLoc, err := adjAllocEntry(gm.pool, srcRec.OutHead)
	if err != nil {
		return err
	}

	if err := adjWriteEntry(gm.pool, outLoc, dst, eid, 0); err != nil {
		return err
	}

	if outHead != srcRec.OutHead {
		if err := gm.patchVertexHead(g, srcLoc, vertexOffsetOutHead, outHead); err != nil {
			return err
		}
		srcRec.OutHead = outHead
	}

	if src == dst {
		dstRec = srcRec
		dstLoc = srcLoc
	}

	inHead, inLoc, err := adjAllocEntry(gm.pool, dstRec.InHead)
	if err != nil {
		return err
	}

	if err := adjWriteEntry(gm.pool, inLoc, src, eid, outLoc); err != nil {
		return err
	}

	if inHead != dstRec.InHead {
		if err := gm.patchVertexHead(g, dstLoc, vertexOffsetInHead, inHead); err != nil {
			return err
		}
	}

	if err := adjPatchTwin(gm.pool, outLoc, inLoc); err != nil {
		return err
	}

	erec := &edgeRecord{EID: eid, Label: labelID, Src: src, Dst: dst,
		OutLoc: outLoc, InLoc: inLoc, Props: propIDs}

	loc, err := g.estore.Insert(gm.pool, encodeEdge(erec))
	if err != nil {
		return err
	}

	g.info.EStoreLast = g.estore.last

	if err := g.emap.Set(gm.pool, eid, loc); err != nil {
		return err
	}

	if eid >= g.info.NextEID {
		g.info.NextEID = eid + 1
	}

	g.info.EdgeCount++

	return nil
}
