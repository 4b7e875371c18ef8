/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package graph

import (
	"github.com/MuYiYong/ChainGraph/storage/buffer"
	"github.com/MuYiYong/ChainGraph/storage/page"
)

/*
idMapEntriesPerPage is the number of locator entries on a single idmap
page
*/
const idMapEntriesPerPage = bodyCap / 8

/*
idMap maps vertex or edge ids to record locators. It is stored as a
chain of idmap pages where each page holds a fixed number of 8 byte
locator entries. Ids are assigned monotonically so the map is a simple
page array indexed by id. A locator of 0 means the id is not mapped.
*/
type idMap struct {
	pages []uint64 // Page ids of the chain in order
}

/*
loadIDMap loads an idMap from its page chain.
*/
func loadIDMap(pool *buffer.Pool, head uint64) (*idMap, error) {
	im := &idMap{}

	pid := head

	for pid != 0 {
		im.pages = append(im.pages, pid)

		h, err := pool.Fetch(pid)
		if err != nil {
			return nil, wrapStorageError(err)
		}

		pid = h.Page().NextPage()
		pool.Unpin(h, false)
	}

	return im, nil
}

/*
Get returns the locator of a given id. Returns 0 if the id is unknown.
*/
func (im *idMap) Get(pool *buffer.Pool, id uint64) (uint64, error) {
	pidx := int(id / idMapEntriesPerPage)

	if pidx >= len(im.pages) {
		return 0, nil
	}

	h, err := pool.Fetch(im.pages[pidx])
	if err != nil {
		return 0, wrapStorageError(err)
	}

	h.RLock()
	loc := h.Page().ReadUInt64(page.HeaderSize + int(id%idMapEntriesPerPage)*8)
	h.RUnlock()

	pool.Unpin(h, false)

	return loc, nil
}

/*
Set stores the locator of a given id. The page chain is grown as needed.
*/
func (im *idMap) Set(pool *buffer.Pool, id uint64, loc uint64) error {
	pidx := int(id / idMapEntriesPerPage)

	// Grow the chain until the required page exists

	for pidx >= len(im.pages) {
		nh, err := pool.New(page.KindIDMap)
		if err != nil {
			return wrapStorageError(err)
		}

		npid := nh.PID()
		pool.Unpin(nh, true)

		if len(im.pages) > 0 {

			lh, err := pool.Fetch(im.pages[len(im.pages)-1])
			if err != nil {
				return wrapStorageError(err)
			}

			lh.Lock()
			lh.Page().SetNextPage(npid)
			lh.Unlock()
			pool.Unpin(lh, true)
		}

		im.pages = append(im.pages, npid)
	}

	h, err := pool.Fetch(im.pages[pidx])
	if err != nil {
		return wrapStorageError(err)
	}

	h.Lock()
	h.Page().WriteUInt64(page.HeaderSize+int(id%idMapEntriesPerPage)*8, loc)
	h.Unlock()

	pool.Unpin(h, true)

	return nil
}

/*
Head returns the first page of the chain or 0 if the map is empty.
*/
func (im *idMap) Head() uint64 {
	if len(im.pages) == 0 {
		return 0
	}

	return im.pages[0]
}
