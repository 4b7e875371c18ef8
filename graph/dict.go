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
	"sync"

	"github.com/MuYiYong/ChainGraph/graph/util"
	"github.com/MuYiYong/ChainGraph/storage/buffer"
	"github.com/MuYiYong/ChainGraph/storage/page"
)

/*
dict is a persistent dictionary mapping names to 32 bit ids. Each graph
maintains three of them: vertex labels, edge labels and property keys.

Entries are appended to a chain of dictionary pages as id (4 bytes),
name length (2 bytes) and name bytes. All entries are loaded eagerly
when a graph is opened. Inserts are serialized through a write lock,
lookups only take a read lock.
*/
type dict struct {
	head   uint64            // First page of the dictionary chain
	last   uint64            // Last page of the dictionary chain
	byName map[string]uint32 // Name to id lookup
	byID   map[uint32]string // Id to name lookup
	next   uint32            // Next id to assign
	lock   sync.RWMutex      // Lock guarding the maps
}

/*
loadDict loads a dictionary from its page chain.
*/
func loadDict(pool *buffer.Pool, head uint64) (*dict, error) {
	d := &dict{head: head, last: head, byName: make(map[string]uint32),
		byID: make(map[uint32]string), next: 1}

	pid := head

	for pid != 0 {
		h, err := pool.Fetch(pid)
		if err != nil {
			return nil, wrapStorageError(err)
		}

		h.RLock()

		offset := page.HeaderSize
		end := h.Page().FreeOffset()

		for offset < end {
			id := h.Page().ReadUInt32(offset)
			nlen := int(h.Page().ReadUInt16(offset + 4))
			name := string(h.Page().Data()[offset+6 : offset+6+nlen])

			d.byName[name] = id
			d.byID[id] = name

			if id >= d.next {
				d.next = id + 1
			}

			offset += 6 + nlen
		}

		d.last = pid
		pid = h.Page().NextPage()

		h.RUnlock()
		pool.Unpin(h, false)
	}

	return d, nil
}

/*
Lookup returns the id of a given name.
*/
func (d *dict) Lookup(name string) (uint32, bool) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	id, ok := d.byName[name]

	return id, ok
}

/*
Name returns the name of a given id.
*/
func (d *dict) Name(id uint32) (string, bool) {
	d.lock.RLock()
	defer d.lock.RUnlock()

	name, ok := d.byID[id]

	return name, ok
}

/*
Names returns all names of this dictionary.
*/
func (d *dict) Names() []string {
	d.lock.RLock()
	defer d.lock.RUnlock()

	names := make([]string, 0, len(d.byName))
	for name := range d.byName {
		names = append(names, name)
	}

	return names
}

/*
Register returns the id of a given name and creates a new entry if the
name is not known yet.
*/
func (d *dict) Register(pool *buffer.Pool, name string) (uint32, error) {
	d.lock.Lock()
	defer d.lock.Unlock()

	if id, ok := d.byName[name]; ok {
		return id, nil
	}

	if len(name) > bodyCap-6 {
		return 0, &util.GraphError{Type: util.ErrConstraint,
			Detail: fmt.Sprintf("Name is too long: %v", name)}
	}

	id := d.next

	// Persist the new entry on the last chain page

	h, err := pool.Fetch(d.last)
	if err != nil {
		return 0, wrapStorageError(err)
	}

	h.Lock()

	if page.ChecksumArea-h.Page().FreeOffset() < 6+len(name) {

		// The page is full - link a new page to the chain

		nh, err := pool.New(page.KindDictionary)
		if err != nil {
			h.Unlock()
			pool.Unpin(h, false)
			return 0, wrapStorageError(err)
		}

		h.Page().SetNextPage(nh.PID())
		h.Unlock()
		pool.Unpin(h, true)

		d.last = nh.PID()

		h = nh
		h.Lock()
	}

	offset := h.Page().FreeOffset()

	h.Page().WriteUInt32(offset, id)
	h.Page().WriteUInt16(offset+4, uint16(len(name)))
	copy(h.Page().Data()[offset+6:], name)
	h.Page().SetFreeOffset(offset + 6 + len(name))

	h.Unlock()
	pool.Unpin(h, true)

	d.byName[name] = id
	d.byID[id] = name
	d.next = id + 1

	return id, nil
}
