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
	"encoding/binary"

	"devt.de/krotik/common/bitutil"
	"devt.de/krotik/common/errorutil"
	"github.com/MuYiYong/ChainGraph/storage/buffer"
	"github.com/MuYiYong/ChainGraph/storage/page"
)

/*
Primary key index. For every label with a declared primary key property
the graph keeps a persistent hash index from the canonical encoding of
the key value to the vertex id.

The index consists of a directory page holding the heads of a fixed
number of bucket chains. Entries hash to a bucket via MurmurHash3 over
the key bytes. Bucket pages are slotted pages where each record holds
the vertex id followed by the key bytes.
*/
const pkBuckets = 256

/*
pkHashSeed is the seed for the bucket hash
*/
const pkHashSeed = 42

/*
pkBucket returns the bucket number of a given key.
*/
func pkBucket(key []byte) int {

	// The hash function requires the checked area to be smaller than the
	// data - the last byte does not contribute to the bucket choice

	hash, err := bitutil.MurMurHashData(key, 0, len(key)-1, pkHashSeed)
	errorutil.AssertOk(err)

	return int(hash % pkBuckets)
}

/*
pkCreateIndex allocates a new primary key index directory.
*/
func pkCreateIndex(pool *buffer.Pool) (uint64, error) {
	h, err := pool.New(page.KindPKIndex)
	if err != nil {
		return 0, wrapStorageError(err)
	}

	pid := h.PID()
	pool.Unpin(h, true)

	return pid, nil
}

/*
pkBucketHead returns the head page of the bucket for a given key.
*/
func pkBucketHead(pool *buffer.Pool, dir uint64, key []byte) (uint64, error) {
	h, err := pool.Fetch(dir)
	if err != nil {
		return 0, wrapStorageError(err)
	}

	h.RLock()
	head := h.Page().ReadUInt64(page.HeaderSize + pkBucket(key)*8)
	h.RUnlock()

	pool.Unpin(h, false)

	return head, nil
}

/*
pkLookup returns the vertex id stored for a given key. The second return
value indicates if the key was found.
*/
func pkLookup(pool *buffer.Pool, dir uint64, key []byte) (uint64, bool, error) {
	head, err := pkBucketHead(pool, dir, key)
	if err != nil {
		return 0, false, err
	}

	pid := head

	for pid != 0 {
		h, err := pool.Fetch(pid)
		if err != nil {
			return 0, false, wrapStorageError(err)
		}

		h.RLock()

		for slot := 0; slot < h.Page().SlotCount(); slot++ {
			rec := h.Page().Slot(slot)

			if rec != nil && bytes.Equal(rec[8:], key) {
				vid := binary.LittleEndian.Uint64(rec)

				h.RUnlock()
				pool.Unpin(h, false)

				return vid, true, nil
			}
		}

		next := h.Page().NextPage()
		h.RUnlock()
		pool.Unpin(h, false)

		pid = next
	}

	return 0, false, nil
}

/*
pkInsert adds a new key to vertex id entry to the index. The caller must
have checked that the key does not exist.
*/
func pkInsert(pool *buffer.Pool, dir uint64, key []byte, vid uint64) error {
	head, err := pkBucketHead(pool, dir, key)
	if err != nil {
		return err
	}

	rec := make([]byte, 8+len(key))
	binary.LittleEndian.PutUint64(rec, vid)
	copy(rec[8:], key)

	if head != 0 {

		h, err := pool.Fetch(head)
		if err != nil {
			return wrapStorageError(err)
		}

		h.Lock()
		slot := h.Page().AddSlot(rec)
		h.Unlock()
		pool.Unpin(h, slot >= 0)

		if slot >= 0 {
			return nil
		}
	}

	// Link a new page in front of the bucket chain

	nh, err := pool.New(page.KindPKIndex)
	if err != nil {
		return wrapStorageError(err)
	}

	nh.Lock()
	nh.Page().SetNextPage(head)
	nh.Page().AddSlot(rec)
	nh.Unlock()

	npid := nh.PID()
	pool.Unpin(nh, true)

	// Update the directory

	dh, err := pool.Fetch(dir)
	if err != nil {
		return wrapStorageError(err)
	}

	dh.Lock()
	dh.Page().WriteUInt64(page.HeaderSize+pkBucket(key)*8, npid)
	dh.Unlock()
	pool.Unpin(dh, true)

	return nil
}

/*
pkDelete removes a key from the index. Unknown keys are ignored.
*/
func pkDelete(pool *buffer.Pool, dir uint64, key []byte) error {
	head, err := pkBucketHead(pool, dir, key)
	if err != nil {
		return err
	}

	pid := head

	for pid != 0 {
		h, err := pool.Fetch(pid)
		if err != nil {
			return wrapStorageError(err)
		}

		h.Lock()

		for slot := 0; slot < h.Page().SlotCount(); slot++ {
			rec := h.Page().Slot(slot)

			if rec != nil && bytes.Equal(rec[8:], key) {
				h.Page().DeleteSlot(slot)
				h.Unlock()
				pool.Unpin(h, true)

				return nil
			}
		}

		next := h.Page().NextPage()
		h.Unlock()
		pool.Unpin(h, false)

		pid = next
	}

	return nil
}
