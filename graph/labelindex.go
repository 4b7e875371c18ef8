/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package graph

import (
	"sync"

	"github.com/MuYiYong/ChainGraph/storage/buffer"
	"github.com/MuYiYong/ChainGraph/storage/page"
)

/*
labelIndex is the label iteration index. For every vertex label it
keeps the list of vertex store pages which contain at least one vertex
of that label. A label scan only has to visit those pages instead of
traversing the whole vertex store.

On disk the index is a directory chain with (label id, chain head)
entries and one page id list chain per label. The index is loaded
eagerly when a graph is opened.
*/
type labelIndex struct {
	dir   uint64                   // Directory chain head
	lists map[uint32]*labelPages   // Loaded page lists by label id
	lock  sync.RWMutex             // Lock guarding the map
}

/*
labelPages is the loaded page list of a single label.
*/
type labelPages struct {
	head uint64          // Head of the page list chain
	last uint64          // Last page of the page list chain
	pids []uint64        // Page ids in insertion order
	seen map[uint64]bool // Set of known page ids
}

/*
loadLabelIndex loads a label index from its directory chain.
*/
func loadLabelIndex(pool *buffer.Pool, dir uint64) (*labelIndex, error) {
	li := &labelIndex{dir: dir, lists: make(map[uint32]*labelPages)}

	pid := dir

	for pid != 0 {
		h, err := pool.Fetch(pid)
		if err != nil {
			return nil, wrapStorageError(err)
		}

		h.RLock()

		offset := page.HeaderSize
		end := h.Page().FreeOffset()

		for offset < end {
			label := h.Page().ReadUInt32(offset)
			head := h.Page().ReadUInt64(offset + 4)

			lp, err := loadLabelPages(pool, head)
			if err != nil {
				h.RUnlock()
				pool.Unpin(h, false)
				return nil, err
			}

			li.lists[label] = lp

			offset += 12
		}

		next := h.Page().NextPage()
		h.RUnlock()
		pool.Unpin(h, false)

		pid = next
	}

	return li, nil
}

/*
loadLabelPages loads the page list of a single label.
*/
func loadLabelPages(pool *buffer.Pool, head uint64) (*labelPages, error) {
	lp := &labelPages{head: head, last: head, seen: make(map[uint64]bool)}

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
			entry := h.Page().ReadUInt64(offset)

			lp.pids = append(lp.pids, entry)
			lp.seen[entry] = true

			offset += 8
		}

		lp.last = pid
		next := h.Page().NextPage()

		h.RUnlock()
		pool.Unpin(h, false)

		pid = next
	}

	return lp, nil
}

/*
Pages returns the page ids which contain vertices of a given label.
*/
func (li *labelIndex) Pages(label uint32) []uint64 {
	li.lock.RLock()
	defer li.lock.RUnlock()

	if lp, ok := li.lists[label]; ok {
		return lp.pids
	}

	return nil
}

/*
AddPage registers a vertex store page for a given label. Known pages
are ignored.
*/
func (li *labelIndex) AddPage(pool *buffer.Pool, label uint32, pid uint64) error {
	li.lock.Lock()
	defer li.lock.Unlock()

	lp, ok := li.lists[label]

	if ok && lp.seen[pid] {
		return nil
	}

	if !ok {

		// First page of this label - create the page list chain and
		// register it in the directory

		h, err := pool.New(page.KindLabelIndex)
		if err != nil {
			return wrapStorageError(err)
		}

		lp = &labelPages{head: h.PID(), last: h.PID(), seen: make(map[uint64]bool)}
		pool.Unpin(h, true)

		if err := li.appendDirEntry(pool, label, lp.head); err != nil {
			return err
		}

		li.lists[label] = lp
	}

	// Append the page id to the list chain

	h, err := pool.Fetch(lp.last)
	if err != nil {
		return wrapStorageError(err)
	}

	h.Lock()

	if page.ChecksumArea-h.Page().FreeOffset() < 8 {

		nh, err := pool.New(page.KindLabelIndex)
		if err != nil {
			h.Unlock()
			pool.Unpin(h, false)
			return wrapStorageError(err)
		}

		h.Page().SetNextPage(nh.PID())
		h.Unlock()
		pool.Unpin(h, true)

		lp.last = nh.PID()

		h = nh
		h.Lock()
	}

	offset := h.Page().FreeOffset()
	h.Page().WriteUInt64(offset, pid)
	h.Page().SetFreeOffset(offset + 8)

	h.Unlock()
	pool.Unpin(h, true)

	lp.pids = append(lp.pids, pid)
	lp.seen[pid] = true

	return nil
}

/*
appendDirEntry appends a (label, chain head) entry to the directory.
*/
func (li *labelIndex) appendDirEntry(pool *buffer.Pool, label uint32, head uint64) error {

	// Find the last directory page

	pid := li.dir

	for {
		h, err := pool.Fetch(pid)
		if err != nil {
			return wrapStorageError(err)
		}

		if next := h.Page().NextPage(); next != 0 {
			pool.Unpin(h, false)
			pid = next
			continue
		}

		h.Lock()

		if page.ChecksumArea-h.Page().FreeOffset() < 12 {

			nh, err := pool.New(page.KindLabelIndex)
			if err != nil {
				h.Unlock()
				pool.Unpin(h, false)
				return wrapStorageError(err)
			}

			h.Page().SetNextPage(nh.PID())
			h.Unlock()
			pool.Unpin(h, true)

			h = nh
			h.Lock()
		}

		offset := h.Page().FreeOffset()

		h.Page().WriteUInt32(offset, label)
		h.Page().WriteUInt64(offset+4, head)
		h.Page().SetFreeOffset(offset + 12)

		h.Unlock()
		pool.Unpin(h, true)

		return nil
	}
}
