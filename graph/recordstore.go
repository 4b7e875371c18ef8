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
recordStore manages variable size records on a chain of slotted pages.
Records are addressed by locators (page id and slot). New records are
appended to the last chain page, a record which does not fit triggers
allocation of a new page which is linked to the chain.
*/
type recordStore struct {
	kind byte   // Page kind of the store pages
	head uint64 // First page of the chain
	last uint64 // Last page of the chain
}

/*
newRecordStore creates a recordStore over an existing page chain.
*/
func newRecordStore(pool *buffer.Pool, kind byte, head uint64, last uint64) *recordStore {
	return &recordStore{kind, head, last}
}

/*
Insert adds a new record to the store and returns its locator.
*/
func (rs *recordStore) Insert(pool *buffer.Pool, rec []byte) (uint64, error) {
	if len(rec) > bodyCap-page.SlotEntrySize {
		return 0, &util.GraphError{Type: util.ErrConstraint,
			Detail: fmt.Sprintf("Record of %v bytes does not fit on a page", len(rec))}
	}

	h, err := pool.Fetch(rs.last)
	if err != nil {
		return 0, wrapStorageError(err)
	}

	h.Lock()

	slot := h.Page().AddSlot(rec)

	if slot < 0 {

		// The record does not fit - link a new page to the chain

		nh, err := pool.New(rs.kind)
		if err != nil {
			h.Unlock()
			pool.Unpin(h, false)
			return 0, wrapStorageError(err)
		}

		h.Page().SetNextPage(nh.PID())
		h.Unlock()
		pool.Unpin(h, true)

		rs.last = nh.PID()

		h = nh
		h.Lock()

		slot = h.Page().AddSlot(rec)
	}

	pid := h.PID()

	h.Unlock()
	pool.Unpin(h, true)

	return newLocator(pid, slot), nil
}

/*
Read returns a copy of the record stored at a given locator. Returns nil
if the record has been deleted.
*/
func (rs *recordStore) Read(pool *buffer.Pool, loc uint64) ([]byte, error) {
	h, err := pool.Fetch(locatorPage(loc))
	if err != nil {
		return nil, wrapStorageError(err)
	}

	h.RLock()

	var rec []byte

	if data := h.Page().Slot(locatorSlot(loc)); data != nil {
		rec = make([]byte, len(data))
		copy(rec, data)
	}

	h.RUnlock()
	pool.Unpin(h, false)

	return rec, nil
}

/*
Update overwrites the record at a given locator. If the new record does
not fit in place it is moved and the new locator is returned.
*/
func (rs *recordStore) Update(pool *buffer.Pool, loc uint64, rec []byte) (uint64, error) {
	h, err := pool.Fetch(locatorPage(loc))
	if err != nil {
		return 0, wrapStorageError(err)
	}

	h.Lock()

	if h.Page().UpdateSlot(locatorSlot(loc), rec) {
		h.Unlock()
		pool.Unpin(h, true)

		return loc, nil
	}

	// The record must be moved

	h.Page().DeleteSlot(locatorSlot(loc))
	h.Unlock()
	pool.Unpin(h, true)

	return rs.Insert(pool, rec)
}

/*
Patch overwrites bytes of a record in place at a given record offset.
*/
func (rs *recordStore) Patch(pool *buffer.Pool, loc uint64, offset int, data []byte) error {
	h, err := pool.Fetch(locatorPage(loc))
	if err != nil {
		return wrapStorageError(err)
	}

	h.Lock()

	rec := h.Page().Slot(locatorSlot(loc))

	if rec == nil || offset+len(data) > len(rec) {
		h.Unlock()
		pool.Unpin(h, false)

		return &util.GraphError{Type: util.ErrInternal,
			Detail: fmt.Sprintf("Invalid record patch at %v", loc)}
	}

	copy(rec[offset:], data)

	h.Unlock()
	pool.Unpin(h, true)

	return nil
}

/*
Delete removes the record at a given locator.
*/
func (rs *recordStore) Delete(pool *buffer.Pool, loc uint64) error {
	h, err := pool.Fetch(locatorPage(loc))
	if err != nil {
		return wrapStorageError(err)
	}

	h.Lock()
	ok := h.Page().DeleteSlot(locatorSlot(loc))
	h.Unlock()

	pool.Unpin(h, ok)

	if !ok {
		return &util.GraphError{Type: util.ErrNotFound,
			Detail: fmt.Sprintf("No record at %v", loc)}
	}

	return nil
}

/*
Pages returns all page ids of the store chain in order.
*/
func (rs *recordStore) Pages(pool *buffer.Pool) ([]uint64, error) {
	var pages []uint64

	pid := rs.head

	for pid != 0 {
		pages = append(pages, pid)

		h, err := pool.Fetch(pid)
		if err != nil {
			return nil, wrapStorageError(err)
		}

		pid = h.Page().NextPage()
		pool.Unpin(h, false)
	}

	return pages, nil
}
