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

	"github.com/MuYiYong/ChainGraph/graph/util"
	"github.com/MuYiYong/ChainGraph/storage/buffer"
	"github.com/MuYiYong/ChainGraph/storage/page"
)

/*
Adjacency chains. Every vertex has two singly linked chains of
adjacency pages, one for outgoing and one for incoming edges. Each
entry holds the neighbor vertex id, the edge id and the locator of its
twin entry in the chain of the other endpoint. Edge deletion finds both
entries through the locators on the edge record and does not read the
twin pointer; unlinking an emptied page other than the chain head
walks the chain to find its predecessor.

Entry layout: neighbor (8 bytes), eid (8 bytes), twin locator
(8 bytes), flags (2 bytes), padding (2 bytes). An entry with an eid of
0 is free.
*/
const (
	adjEntrySize     = 28
	adjEntriesPerPage = bodyCap / adjEntrySize

	adjOffsetNeighbor = 0
	adjOffsetEID      = 8
	adjOffsetTwin     = 16
	adjOffsetFlags    = 24
)

/*
adjEntry is a single entry of an adjacency chain.
*/
type adjEntry struct {
	Neighbor uint64 // Vertex id of the other endpoint
	EID      uint64 // Edge id
	Loc      uint64 // Locator of this entry
}

/*
adjEntryOffset returns the page offset of an entry index.
*/
func adjEntryOffset(idx int) int {
	return page.HeaderSize + idx*adjEntrySize
}

/*
adjAllocEntry finds a free entry in a given adjacency chain. A new page
is linked in front of the chain if no free entry exists. Returns the
possibly changed chain head and the locator of the entry.
*/
func adjAllocEntry(pool *buffer.Pool, head uint64) (uint64, uint64, error) {

	pid := head

	for pid != 0 {
		h, err := pool.Fetch(pid)
		if err != nil {
			return 0, 0, wrapStorageError(err)
		}

		h.RLock()

		for idx := 0; idx < adjEntriesPerPage; idx++ {
			if h.Page().ReadUInt64(adjEntryOffset(idx)+adjOffsetEID) == 0 {
				h.RUnlock()
				pool.Unpin(h, false)

				return head, newLocator(pid, idx), nil
			}
		}

		next := h.Page().NextPage()
		h.RUnlock()
		pool.Unpin(h, false)

		pid = next
	}

	// All pages are full - link a new page in front of the chain

	nh, err := pool.New(page.KindAdjacency)
	if err != nil {
		return 0, 0, wrapStorageError(err)
	}

	nh.Lock()
	nh.Page().SetNextPage(head)
	nh.Unlock()

	npid := nh.PID()
	pool.Unpin(nh, true)

	return npid, newLocator(npid, 0), nil
}

/*
adjWriteEntry writes an adjacency entry at a given locator.
*/
func adjWriteEntry(pool *buffer.Pool, loc uint64, neighbor uint64, eid uint64,
	twin uint64) error {

	h, err := pool.Fetch(locatorPage(loc))
	if err != nil {
		return wrapStorageError(err)
	}

	offset := adjEntryOffset(locatorSlot(loc))

	h.Lock()
	h.Page().WriteUInt64(offset+adjOffsetNeighbor, neighbor)
	h.Page().WriteUInt64(offset+adjOffsetEID, eid)
	h.Page().WriteUInt64(offset+adjOffsetTwin, twin)
	h.Page().WriteUInt16(offset+adjOffsetFlags, 0)
	h.Unlock()

	pool.Unpin(h, true)

	return nil
}

/*
adjPatchTwin sets the twin locator of an existing entry.
*/
func adjPatchTwin(pool *buffer.Pool, loc uint64, twin uint64) error {
	h, err := pool.Fetch(locatorPage(loc))
	if err != nil {
		return wrapStorageError(err)
	}

	h.Lock()
	h.Page().WriteUInt64(adjEntryOffset(locatorSlot(loc))+adjOffsetTwin, twin)
	h.Unlock()

	pool.Unpin(h, true)

	return nil
}

/*
adjReadEntry reads the adjacency entry at a given locator.
*/
func adjReadEntry(pool *buffer.Pool, loc uint64) (uint64, uint64, uint64, error) {
	h, err := pool.Fetch(locatorPage(loc))
	if err != nil {
		return 0, 0, 0, wrapStorageError(err)
	}

	offset := adjEntryOffset(locatorSlot(loc))

	h.RLock()
	neighbor := h.Page().ReadUInt64(offset + adjOffsetNeighbor)
	eid := h.Page().ReadUInt64(offset + adjOffsetEID)
	twin := h.Page().ReadUInt64(offset + adjOffsetTwin)
	h.RUnlock()

	pool.Unpin(h, false)

	return neighbor, eid, twin, nil
}

/*
adjRemoveEntry clears an adjacency entry. An empty chain page is
unlinked from the chain and freed. Returns the possibly changed chain
head.
*/
func adjRemoveEntry(pool *buffer.Pool, head uint64, loc uint64) (uint64, error) {
	pid := locatorPage(loc)

	h, err := pool.Fetch(pid)
	if err != nil {
		return 0, wrapStorageError(err)
	}

	offset := adjEntryOffset(locatorSlot(loc))

	h.Lock()

	if h.Page().ReadUInt64(offset+adjOffsetEID) == 0 {
		h.Unlock()
		pool.Unpin(h, false)

		return 0, &util.GraphError{Type: util.ErrInternal,
			Detail: fmt.Sprintf("Adjacency entry %v is already free", loc)}
	}

	h.Page().WriteUInt64(offset+adjOffsetNeighbor, 0)
	h.Page().WriteUInt64(offset+adjOffsetEID, 0)
	h.Page().WriteUInt64(offset+adjOffsetTwin, 0)

	// Check if the page still holds entries

	var empty = true

	for idx := 0; idx < adjEntriesPerPage && empty; idx++ {
		empty = h.Page().ReadUInt64(adjEntryOffset(idx)+adjOffsetEID) == 0
	}

	next := h.Page().NextPage()

	h.Unlock()
	pool.Unpin(h, true)

	if !empty {
		return head, nil
	}

	// Unlink the empty page from the chain and free it

	if pid == head {

		if err := pool.Free(pid); err != nil {
			return 0, wrapStorageError(err)
		}

		return next, nil
	}

	prev := head

	for prev != 0 {
		ph, err := pool.Fetch(prev)
		if err != nil {
			return 0, wrapStorageError(err)
		}

		if ph.Page().NextPage() == pid {
			ph.Lock()
			ph.Page().SetNextPage(next)
			ph.Unlock()
			pool.Unpin(ph, true)

			if err := pool.Free(pid); err != nil {
				return 0, wrapStorageError(err)
			}

			return head, nil
		}

		prevNext := ph.Page().NextPage()
		pool.Unpin(ph, false)
		prev = prevNext
	}

	return 0, &util.GraphError{Type: util.ErrInternal,
		Detail: fmt.Sprintf("Adjacency page %v is not part of its chain", pid)}
}

/*
adjEntries returns all live entries of an adjacency chain.
*/
func adjEntries(pool *buffer.Pool, head uint64) ([]adjEntry, error) {
	var entries []adjEntry

	pid := head

	for pid != 0 {
		h, err := pool.Fetch(pid)
		if err != nil {
			return nil, wrapStorageError(err)
		}

		h.RLock()

		for idx := 0; idx < adjEntriesPerPage; idx++ {
			offset := adjEntryOffset(idx)

			if eid := h.Page().ReadUInt64(offset + adjOffsetEID); eid != 0 {
				entries = append(entries, adjEntry{
					Neighbor: h.Page().ReadUInt64(offset + adjOffsetNeighbor),
					EID:      eid,
					Loc:      newLocator(pid, idx),
				})
			}
		}

		next := h.Page().NextPage()
		h.RUnlock()
		pool.Unpin(h, false)

		pid = next
	}

	return entries, nil
}
