/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package graph

import (
	"bytes"
	"encoding/gob"

	"github.com/MuYiYong/ChainGraph/storage/buffer"
	"github.com/MuYiYong/ChainGraph/storage/page"
)

/*
GraphInfo holds the catalog entry of a named graph. It contains all root
page ids of the graph's storage structures, the id counters and the
optional inline schema.
*/
type GraphInfo struct {
	Name string // Name of the graph

	Schema *Schema // Inline schema (nil if created without one)

	VLabelRoot uint64 // Head of the vertex label dictionary chain
	ELabelRoot uint64 // Head of the edge label dictionary chain
	PKeyRoot   uint64 // Head of the property key dictionary chain

	VStoreRoot uint64 // First page of the vertex record store
	VStoreLast uint64 // Last page of the vertex record store
	EStoreRoot uint64 // First page of the edge record store
	EStoreLast uint64 // Last page of the edge record store

	VMapRoot uint64 // First page of the vid locator map
	EMapRoot uint64 // First page of the eid locator map

	LabelIndexRoot uint64 // Directory page of the label iteration index

	PKRoots map[string]uint64 // Label name to primary key index directory

	NextVID uint64 // Next vertex id to assign
	NextEID uint64 // Next edge id to assign

	VertexCount uint64 // Number of live vertices
	EdgeCount   uint64 // Number of live edges
}

/*
catalogRec is the gob persisted form of the graph catalog.
*/
type catalogRec struct {
	Graphs map[string]*GraphInfo
}

/*
bodyCap is the number of usable body bytes of a page
*/
const bodyCap = page.ChecksumArea - page.HeaderSize

/*
loadCatalog reads the graph catalog from a given root page. An empty
catalog is returned if no root exists yet.
*/
func loadCatalog(pool *buffer.Pool, root uint64) (*catalogRec, error) {
	rec := &catalogRec{Graphs: make(map[string]*GraphInfo)}

	if root == 0 {
		return rec, nil
	}

	blob, err := readBlob(pool, root)
	if err != nil {
		return nil, wrapStorageError(err)
	}

	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(rec); err != nil {
		return nil, wrapStorageError(err)
	}

	return rec, nil
}

/*
saveCatalog writes the graph catalog to its page chain. Returns the root
page id which may change if no root existed before.
*/
func saveCatalog(pool *buffer.Pool, root uint64, rec *catalogRec) (uint64, error) {
	var buf bytes.Buffer

	if err := gob.NewEncoder(&buf).Encode(rec); err != nil {
		return 0, wrapStorageError(err)
	}

	newRoot, err := writeBlob(pool, root, page.KindCatalog, buf.Bytes())
	if err != nil {
		return 0, wrapStorageError(err)
	}

	return newRoot, nil
}

// Blob page chain I/O
// ===================

/*
readBlob reads a byte blob which is spread over a page chain. The first
page stores the total blob length in the first 4 body bytes.
*/
func readBlob(pool *buffer.Pool, head uint64) ([]byte, error) {
	h, err := pool.Fetch(head)
	if err != nil {
		return nil, err
	}

	h.RLock()
	total := int(h.Page().ReadUInt32(page.HeaderSize))
	next := h.Page().NextPage()

	blob := make([]byte, 0, total)

	chunk := total
	if chunk > bodyCap-4 {
		chunk = bodyCap - 4
	}

	blob = append(blob, h.Page().Data()[page.HeaderSize+4:page.HeaderSize+4+chunk]...)
	h.RUnlock()
	pool.Unpin(h, false)

	for len(blob) < total {
		h, err = pool.Fetch(next)
		if err != nil {
			return nil, err
		}

		h.RLock()

		chunk = total - len(blob)
		if chunk > bodyCap {
			chunk = bodyCap
		}

		blob = append(blob, h.Page().Data()[page.HeaderSize:page.HeaderSize+chunk]...)
		next = h.Page().NextPage()

		h.RUnlock()
		pool.Unpin(h, false)
	}

	return blob, nil
}

/*
writeBlob writes a byte blob to a page chain reusing existing pages.
Surplus pages are freed, missing pages are allocated. Returns the head
page id.
*/
func writeBlob(pool *buffer.Pool, head uint64, kind byte, blob []byte) (uint64, error) {

	fetchOrNew := func(pid uint64) (*buffer.Handle, error) {
		if pid != 0 {
			return pool.Fetch(pid)
		}
		return pool.New(kind)
	}

	h, err := fetchOrNew(head)
	if err != nil {
		return 0, err
	}

	head = h.PID()

	// Write the first chunk with the length prefix

	h.Lock()
	h.Page().WriteUInt32(page.HeaderSize, uint32(len(blob)))

	chunk := len(blob)
	if chunk > bodyCap-4 {
		chunk = bodyCap - 4
	}

	copy(h.Page().Data()[page.HeaderSize+4:], blob[:chunk])
	blob = blob[chunk:]

	next := h.Page().NextPage()

	for len(blob) > 0 {

		// Get or allocate the next chain page

		nh, err := fetchOrNew(next)
		if err != nil {
			h.Unlock()
			pool.Unpin(h, true)
			return 0, err
		}

		h.Page().SetNextPage(nh.PID())
		h.Unlock()
		pool.Unpin(h, true)

		h = nh
		h.Lock()

		next = h.Page().NextPage()

		chunk = len(blob)
		if chunk > bodyCap {
			chunk = bodyCap
		}

		copy(h.Page().Data()[page.HeaderSize:], blob[:chunk])
		blob = blob[chunk:]
	}

	h.Page().SetNextPage(0)
	h.Unlock()
	pool.Unpin(h, true)

	// Free surplus pages of a previously longer blob

	for next != 0 {
		nh, err := pool.Fetch(next)
		if err != nil {
			return 0, err
		}

		nextnext := nh.Page().NextPage()
		pool.Unpin(nh, false)

		if err := pool.Free(next); err != nil {
			return 0, err
		}

		next = nextnext
	}

	return head, nil
}
