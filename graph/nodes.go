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
Node is the external representation of a vertex.
*/
type Node struct {
	VID   uint64                // Unique vertex id
	Label string                // Label name
	Props map[string]data.Value // Property map
}

/*
Prop returns a property value of this node. Returns the null value if
the property does not exist.
*/
func (n *Node) Prop(name string) data.Value {
	if v, ok := n.Props[name]; ok {
		return v
	}

	return data.NullValue()
}

/*
InsertVertex creates a new vertex in a graph and returns its id. The
caller must hold the graph write lock.
*/
func (gm *Manager) InsertVertex(graph string, label string,
	props map[string]data.Value) (uint64, error) {

	g, err := gm.getGraph(graph)
	if err != nil {
		return 0, err
	}

	// Check the insert against the inline schema

	var pkProp string

	if g.info.Schema != nil {
		nd := g.info.Schema.NodeDef(label)

		if nd == nil {
			return 0, &util.GraphError{Type: util.ErrConstraint,
				Detail: fmt.Sprintf("Schema of graph %v does not declare node type %v",
					graph, label)}
		}

		if err := checkProps("node", label, nd.Props, props); err != nil {
			return 0, err
		}

		pkProp = g.info.Schema.PrimaryKey(label)
	}

	labelID, err := g.vlabels.Register(gm.pool, label)
	if err != nil {
		return 0, err
	}

	// Check the primary key index for collisions

	var pkKey []byte
	var pkDir uint64

	if pkProp != "" {
		if val, ok := props[pkProp]; ok && !val.IsNull() {

			pkKey = val.EncodeToBytes()

			if pkDir, err = gm.ensurePKIndex(g, label); err != nil {
				return 0, err
			}

			if _, found, err := pkLookup(gm.pool, pkDir, pkKey); err != nil {
				return 0, err
			} else if found {
				return 0, &util.GraphError{Type: util.ErrConstraint,
					Detail: fmt.Sprintf("Primary key %v already exists for label %v",
						props[pkProp], label)}
			}
		}
	}

	propIDs, err := gm.propsToIDs(g, props)
	if err != nil {
		return 0, err
	}

	vid := g.info.NextVID
	g.info.NextVID++

	vrec := &vertexRecord{VID: vid, Label: labelID, Props: propIDs}

	// Mirror an address typed primary key into the address field

	if pkKey != nil && props[pkProp].Tag() == data.TagAddress {
		vrec.Addr = props[pkProp].Raw()
	}

	loc, err := g.vstore.Insert(gm.pool, encodeVertex(vrec))
	if err != nil {
		return 0, err
	}

	g.info.VStoreLast = g.vstore.last

	if err := g.vmap.Set(gm.pool, vid, loc); err != nil {
		return 0, err
	}

	if err := g.lindex.AddPage(gm.pool, labelID, locatorPage(loc)); err != nil {
		return 0, err
	}

	if pkKey != nil {
		if err := pkInsert(gm.pool, pkDir, pkKey, vid); err != nil {
			return 0, err
		}
	}

	g.info.VertexCount++

	return vid, nil
}

/*
ensurePKIndex returns the primary key index directory of a label and
creates it if necessary.
*/
func (gm *Manager) ensurePKIndex(g *graphData, label string) (uint64, error) {
	if dir, ok := g.info.PKRoots[label]; ok {
		return dir, nil
	}

	dir, err := pkCreateIndex(gm.pool)
	if err != nil {
		return 0, err
	}

	g.info.PKRoots[label] = dir

	return dir, nil
}

/*
FetchVertex fetches a single vertex from a graph. Returns nil if the
vertex does not exist.
*/
func (gm *Manager) FetchVertex(graph string, vid uint64) (*Node, error) {
	g, err := gm.getGraph(graph)
	if err != nil {
		return nil, err
	}

	vrec, _, err := gm.readVertexRecord(g, vid)
	if err != nil || vrec == nil {
		return nil, err
	}

	return gm.vertexToNode(g, vrec)
}

/*
readVertexRecord reads the decoded vertex record and its locator of a
given vertex id. Returns nil if the vertex does not exist.
*/
func (gm *Manager) readVertexRecord(g *graphData, vid uint64) (*vertexRecord, uint64, error) {
	loc, err := g.vmap.Get(gm.pool, vid)
	if err != nil || loc == 0 {
		return nil, 0, err
	}

	rec, err := g.vstore.Read(gm.pool, loc)
	if err != nil || rec == nil {
		return nil, 0, err
	}

	vrec, err := decodeVertex(rec)
	if err != nil {
		return nil, 0, &util.GraphError{Type: util.ErrCorruption, Detail: err.Error()}
	}

	return vrec, loc, nil
}

/*
vertexToNode converts a decoded vertex record into a Node.
*/
func (gm *Manager) vertexToNode(g *graphData, vrec *vertexRecord) (*Node, error) {
	label, ok := g.vlabels.Name(vrec.Label)
	if !ok {
		return nil, &util.GraphError{Type: util.ErrCorruption,
			Detail: fmt.Sprintf("Unknown label id %v", vrec.Label)}
	}

	props, err := gm.propsFromIDs(g, vrec.Props)
	if err != nil {
		return nil, err
	}

	return &Node{VID: vrec.VID, Label: label, Props: props}, nil
}

/*
VertexByKey looks up a vertex by the primary key value of a given label.
Returns 0 if no vertex matches.
*/
func (gm *Manager) VertexByKey(graph string, label string, key data.Value) (uint64, error) {
	g, err := gm.getGraph(graph)
	if err != nil {
		return 0, err
	}

	if dir, ok := g.info.PKRoots[label]; ok {
		vid, found, err := pkLookup(gm.pool, dir, key.EncodeToBytes())
		if err != nil || !found {
			return 0, err
		}

		return vid, nil
	}

	return 0, nil
}

/*
UpdateVertexProps sets properties of an existing vertex. Setting a
property to the null value removes it. The caller must hold the graph
write lock.
*/
func (gm *Manager) UpdateVertexProps(graph string, vid uint64,
	props map[string]data.Value) error {

	g, err := gm.getGraph(graph)
	if err != nil {
		return err
	}

	vrec, loc, err := gm.readVertexRecord(g, vid)
	if err != nil {
		return err
	}

	if vrec == nil {
		return &util.GraphError{Type: util.ErrNotFound,
			Detail: fmt.Sprintf("Vertex %v does not exist", vid)}
	}

	label, _ := g.vlabels.Name(vrec.Label)

	// Check the update against the inline schema

	var pkProp string

	if g.info.Schema != nil {
		if nd := g.info.Schema.NodeDef(label); nd != nil {
			if err := checkProps("node", label, nd.Props, props); err != nil {
				return err
			}
		}

		pkProp = g.info.Schema.PrimaryKey(label)
	}

	// Handle a primary key change

	if pkProp != "" {
		if newKey, ok := props[pkProp]; ok {

			dir, err := gm.ensurePKIndex(g, label)
			if err != nil {
				return err
			}

			pkid, hasOld := g.pkeys.Lookup(pkProp)

			var oldVal data.Value
			if hasOld {
				oldVal, hasOld = vrec.Props[pkid]
			}

			if !hasOld || !oldVal.Equals(newKey) {

				if !newKey.IsNull() {
					if other, found, err := pkLookup(gm.pool, dir,
						newKey.EncodeToBytes()); err != nil {
						return err
					} else if found && other != vid {
						return &util.GraphError{Type: util.ErrConstraint,
							Detail: fmt.Sprintf("Primary key %v already exists for label %v",
								newKey, label)}
					}
				}

				if hasOld && !oldVal.IsNull() {
					if err := pkDelete(gm.pool, dir, oldVal.EncodeToBytes()); err != nil {
						return err
					}
				}

				if !newKey.IsNull() {
					if err := pkInsert(gm.pool, dir, newKey.EncodeToBytes(), vid); err != nil {
						return err
					}
				}
			}
		}
	}

	// Merge the properties into the record

	for name, val := range props {
		pid, err := g.pkeys.Register(gm.pool, name)
		if err != nil {
			return err
		}

		if val.IsNull() {
			delete(vrec.Props, pid)
		} else {
			vrec.Props[pid] = val
		}
	}

	newLoc, err := g.vstore.Update(gm.pool, loc, encodeVertex(vrec))
	if err != nil {
		return err
	}

	g.info.VStoreLast = g.vstore.last

	if newLoc != loc {

		if err := g.vmap.Set(gm.pool, vid, newLoc); err != nil {
			return err
		}

		if err := g.lindex.AddPage(gm.pool, vrec.Label, locatorPage(newLoc)); err != nil {
			return err
		}
	}

	return nil
}

/*
DeleteVertex removes a vertex from a graph. A vertex with existing
edges can only be removed with the detach flag which also removes all
its edges. The caller must hold the graph write lock.
*/
func (gm *Manager) DeleteVertex(graph string, vid uint64, detach bool) error {
	g, err := gm.getGraph(graph)
	if err != nil {
		return err
	}

	vrec, loc, err := gm.readVertexRecord(g, vid)
	if err != nil {
		return err
	}

	if vrec == nil {
		return &util.GraphError{Type: util.ErrNotFound,
			Detail: fmt.Sprintf("Vertex %v does not exist", vid)}
	}

	out, err := adjEntries(gm.pool, vrec.OutHead)
	if err != nil {
		return err
	}

	in, err := adjEntries(gm.pool, vrec.InHead)
	if err != nil {
		return err
	}

	if len(out) > 0 || len(in) > 0 {

		if !detach {
			return &util.GraphError{Type: util.ErrConstraint,
				Detail: fmt.Sprintf("Vertex %v still has edges", vid)}
		}

		// Remove all edges - a self loop appears in both chains but must
		// only be deleted once

		seen := make(map[uint64]bool)

		for _, entry := range append(out, in...) {
			if !seen[entry.EID] {
				seen[entry.EID] = true

				if err := gm.DeleteEdge(graph, entry.EID); err != nil {
					return err
				}
			}
		}
	}

	// Remove the primary key index entry

	if g.info.Schema != nil {
		label, _ := g.vlabels.Name(vrec.Label)

		if pkProp := g.info.Schema.PrimaryKey(label); pkProp != "" {
			if pkid, ok := g.pkeys.Lookup(pkProp); ok {
				if val, ok := vrec.Props[pkid]; ok && !val.IsNull() {
					if dir, ok := g.info.PKRoots[label]; ok {
						if err := pkDelete(gm.pool, dir, val.EncodeToBytes()); err != nil {
							return err
						}
					}
				}
			}
		}
	}

	// Reclaim the record slot

	if err := g.vstore.Delete(gm.pool, loc); err != nil {
		return err
	}

	if err := g.vmap.Set(gm.pool, vid, 0); err != nil {
		return err
	}

	g.info.VertexCount--

	return nil
}

// Property map helpers
// ====================

/*
propsToIDs converts a property map with names to one with property key
ids. New property keys are registered.
*/
func (gm *Manager) propsToIDs(g *graphData,
	props map[string]data.Value) (map[uint32]data.Value, error) {

	res := make(map[uint32]data.Value, len(props))

	for name, val := range props {

		if val.IsNull() {
			continue
		}

		pid, err := g.pkeys.Register(gm.pool, name)
		if err != nil {
			return nil, err
		}

		res[pid] = val
	}

	return res, nil
}

/*
propsFromIDs converts a property map with property key ids to one with
names.
*/
func (gm *Manager) propsFromIDs(g *graphData,
	props map[uint32]data.Value) (map[string]data.Value, error) {

	res := make(map[string]data.Value, len(props))

	for pid, val := range props {
		name, ok := g.pkeys.Name(pid)
		if !ok {
			return nil, &util.GraphError{Type: util.ErrCorruption,
				Detail: fmt.Sprintf("Unknown property key id %v", pid)}
		}

		res[name] = val
	}

	return res, nil
}
