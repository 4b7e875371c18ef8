/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package graph contains the main API to the graph datastore.

Manager API

The main API is provided by a Manager object which can be created with the
NewManager() constructor function. The manager provides CRUD functionality
for vertices and edges of named graphs and maintains the graph catalog.
Each named graph has its own label dictionaries, record stores, adjacency
chains and indexes which all live on pages of a single data file accessed
through the buffer pool.

Graph locking

A manager provides a read/write lock per named graph. Write statements
take the write lock for their whole duration which coarsens record store,
adjacency chains and index updates into one atomic critical section.
Callers of the low-level operations are expected to hold the appropriate
lock - the operations themselves do not lock.

Catalog

The graph catalog maps graph names to their storage roots and inline
schemas. It is persisted on catalog pages, the root page id is stored on
the meta page of the data file.
*/
package graph

import (
	"github.com/MuYiYong/ChainGraph/graph/util"
	"github.com/MuYiYong/ChainGraph/storage"
)

/*
Locator constants. A locator addresses a record as page id and slot.
*/
const (
	locatorSlotBits = 16
	locatorSlotMask = 0xFFFF
)

/*
newLocator builds a locator from a page id and a slot number.
*/
func newLocator(pid uint64, slot int) uint64 {
	return pid<<locatorSlotBits | uint64(slot)
}

/*
locatorPage returns the page id of a locator.
*/
func locatorPage(loc uint64) uint64 {
	return loc >> locatorSlotBits
}

/*
locatorSlot returns the slot number of a locator.
*/
func locatorSlot(loc uint64) int {
	return int(loc & locatorSlotMask)
}

/*
wrapStorageError converts a storage layer error into a GraphError.
*/
func wrapStorageError(err error) error {
	if err == nil {
		return nil
	}

	if se, ok := err.(*storage.ManagerError); ok {
		switch se.Type {
		case storage.ErrCorruption:
			return &util.GraphError{Type: util.ErrCorruption, Detail: se.Detail}
		case storage.ErrFull, storage.ErrPoolFull:
			return &util.GraphError{Type: util.ErrFull, Detail: se.Detail}
		case storage.ErrNotFound:
			return &util.GraphError{Type: util.ErrNotFound, Detail: se.Detail}
		}
	}

	if _, ok := err.(*util.GraphError); ok {
		return err
	}

	return &util.GraphError{Type: util.ErrInternal, Detail: err.Error()}
}
