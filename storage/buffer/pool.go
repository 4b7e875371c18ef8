/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package buffer contains the buffer pool which caches storage pages.

Pool

The Pool is a fixed capacity cache of pages keyed by page id. Pages are
borrowed from the pool through pinned handles. A pinned page is never
evicted. Once all pins on a page are released the page joins an LRU list
of eviction candidates. Evicting a dirty page writes it back to disk, the
checksum is computed by the data file immediately before writing.

Concurrent fetches of the same page id coalesce so a page is read from
disk only once. Each page carries a read/write latch which guards the
page body. Callers must pin a page, acquire the appropriate latch, access
the page and then release the latch before dropping the pin.

The pool assigns a monotonically increasing log sequence number to every
page which is unpinned dirty.
*/
package buffer

import (
	"fmt"
	"sync"

	"github.com/MuYiYong/ChainGraph/storage"
	"github.com/MuYiYong/ChainGraph/storage/file"
	"github.com/MuYiYong/ChainGraph/storage/page"
)

/*
Watermark status values reported by the pool
*/
const (
	StatusNormal   = "Normal"
	StatusWarning  = "Warning"
	StatusCritical = "Critical"
)

/*
frame data structure. A frame holds a single cached page.
*/
type frame struct {
	pid     uint64        // Page id of the cached page
	page    *page.Page    // Cached page (nil while loading)
	pins    int           // Number of outstanding pins
	dirty   bool          // Flag if the page was modified
	loading chan struct{} // Closed once a page fault has completed
	loadErr error         // Error of a failed page fault
	latch   sync.RWMutex  // Latch guarding the page body
	prev    *frame        // Pointer to previous entry in the LRU list
	next    *frame        // Pointer to next entry in the LRU list
}

/*
Handle is a pinned reference to a cached page.
*/
type Handle struct {
	f *frame
}

/*
Page returns the page of this handle.
*/
func (h *Handle) Page() *page.Page {
	return h.f.page
}

/*
PID returns the page id of this handle.
*/
func (h *Handle) PID() uint64 {
	return h.f.pid
}

/*
Lock acquires the write latch of the page.
*/
func (h *Handle) Lock() {
	h.f.latch.Lock()
}

/*
Unlock releases the write latch of the page.
*/
func (h *Handle) Unlock() {
	h.f.latch.Unlock()
}

/*
RLock acquires the read latch of the page.
*/
func (h *Handle) RLock() {
	h.f.latch.RLock()
}

/*
RUnlock releases the read latch of the page.
*/
func (h *Handle) RUnlock() {
	h.f.latch.RUnlock()
}

/*
Stats holds the counters of a Pool.
*/
type Stats struct {
	Hits       uint64 // Number of fetches served from the cache
	Misses     uint64 // Number of fetches which caused a page fault
	Evictions  uint64 // Number of evicted pages
	Writebacks uint64 // Number of dirty pages written back
}

/*
Pool data structure
*/
type Pool struct {
	df       *file.DataFile    // Underlying data file
	capacity int               // Maximum number of cached pages
	mutex    sync.Mutex        // Mutex to protect frame map and LRU list
	frames   map[uint64]*frame // Map of cached frames by page id
	lruFirst *frame            // Pointer to first (oldest) unpinned frame
	lruLast  *frame            // Pointer to last (newest) unpinned frame
	lsn      uint64            // Log sequence number counter
	stats    Stats             // Pool counters
}

/*
NewPool creates a new buffer pool with a given page capacity on top of a
given data file.
*/
func NewPool(df *file.DataFile, capacity int) *Pool {
	if capacity < 1 {
		capacity = 1
	}

	return &Pool{df: df, capacity: capacity, frames: make(map[uint64]*frame)}
}

/*
Capacity returns the page capacity of the pool.
*/
func (bp *Pool) Capacity() int {
	return bp.capacity
}

/*
Cached returns the number of resident pages.
*/
func (bp *Pool) Cached() int {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	return len(bp.frames)
}

/*
Stats returns a copy of the pool counters.
*/
func (bp *Pool) Stats() Stats {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	return bp.stats
}

/*
Watermark returns the usage status of the pool.
*/
func (bp *Pool) Watermark() string {
	bp.mutex.Lock()
	ratio := float64(len(bp.frames)) / float64(bp.capacity)
	bp.mutex.Unlock()

	if ratio >= 0.9 {
		return StatusCritical
	} else if ratio >= 0.8 {
		return StatusWarning
	}

	return StatusNormal
}

/*
Fetch returns a pinned handle for a given page id. The page is read from
disk if it is not cached. Concurrent fetches of the same page id share a
single disk read. A page which fails its checksum verification is not
cached.
*/
func (bp *Pool) Fetch(pid uint64) (*Handle, error) {

	for {
		bp.mutex.Lock()

		if f, ok := bp.frames[pid]; ok {

			if f.loading != nil {

				// Another caller is faulting this page in - wait for it

				loading := f.loading
				bp.mutex.Unlock()

				<-loading
				continue
			}

			bp.pin(f)
			bp.stats.Hits++
			bp.mutex.Unlock()

			return &Handle{f}, nil
		}

		// Page fault - make room first, then load the page while other
		// pool operations can proceed

		if err := bp.makeRoom(); err != nil {
			bp.mutex.Unlock()
			return nil, err
		}

		f := &frame{pid: pid, pins: 1, loading: make(chan struct{})}
		bp.frames[pid] = f
		bp.stats.Misses++
		bp.mutex.Unlock()

		p, err := bp.df.ReadPage(pid)

		bp.mutex.Lock()

		if err != nil {

			// Do not cache pages which could not be read

			delete(bp.frames, pid)
			f.loadErr = err
			close(f.loading)
			bp.mutex.Unlock()

			return nil, err
		}

		f.page = p
		loading := f.loading
		f.loading = nil
		close(loading)
		bp.mutex.Unlock()

		return &Handle{f}, nil
	}
}

/*
New allocates a new page of a given kind and returns a pinned handle for
it.
*/
func (bp *Pool) New(kind byte) (*Handle, error) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	if err := bp.makeRoom(); err != nil {
		return nil, err
	}

	pid, err := bp.df.AllocatePage(kind)
	if err != nil {
		return nil, err
	}

	f := &frame{pid: pid, pins: 1, page: page.New(pid, kind)}
	bp.frames[pid] = f

	return &Handle{f}, nil
}

/*
Unpin releases a pin on a page. If the page was modified the dirty flag
must be set so the page is written back before eviction.
*/
func (bp *Pool) Unpin(h *Handle, dirty bool) {
	bp.mutex.Lock()
	defer bp.mutex.Unlock()

	f := h.f

	if dirty {
		f.dirty = true
		bp.lsn++
		f.page.SetLSN(bp.lsn)
	}

	f.pins--

	if f.pins < 0 {
		panic(fmt.Sprintf("Pin count for page %v is below zero", f.pid))
	}

	if f.pins == 0 {
		bp.llAppend(f)
	}
}

/*
Free removes a page from the pool and releases it in the data file. The
page must not be pinned.
*/
func (bp *Pool) Free(pid uint64) error {
	bp.mutex.Lock()

	if f, ok := bp.frames[pid]; ok {

		if f.pins > 0 {
			bp.mutex.Unlock()
			return storage.NewStorageError(storage.ErrPoolFull,
				fmt.Sprintf("Cannot free pinned page %v", pid))
		}

		bp.llRemove(f)
		delete(bp.frames, pid)
	}

	bp.mutex.Unlock()

	return bp.df.FreePage(pid)
}

/*
FlushAll writes all dirty pages and the meta information to disk.
*/
func (bp *Pool) FlushAll() error {
	bp.mutex.Lock()

	for _, f := range bp.frames {
		if f.dirty && f.page != nil {

			if err := bp.df.WritePage(f.page); err != nil {
				bp.mutex.Unlock()
				return err
			}

			f.dirty = false
			bp.stats.Writebacks++
		}
	}

	bp.mutex.Unlock()

	return bp.df.Sync()
}

/*
pin adds a pin to a frame and removes it from the LRU list if necessary.
*/
func (bp *Pool) pin(f *frame) {
	if f.pins == 0 {
		bp.llRemove(f)
	}
	f.pins++
}

/*
makeRoom ensures that there is room for one more frame. The oldest
unpinned frame is evicted if the pool is full. It is assumed that the
caller holds the pool mutex.
*/
func (bp *Pool) makeRoom() error {
	if len(bp.frames) < bp.capacity {
		return nil
	}

	victim := bp.lruFirst

	if victim == nil {
		return storage.NewStorageError(storage.ErrPoolFull,
			fmt.Sprintf("All %v pages are pinned", bp.capacity))
	}

	bp.llRemove(victim)
	delete(bp.frames, victim.pid)
	bp.stats.Evictions++

	if victim.dirty {

		if err := bp.df.WritePage(victim.page); err != nil {
			return err
		}

		bp.stats.Writebacks++
	}

	return nil
}

/*
llAppend appends a frame to the end of the LRU list.
*/
func (bp *Pool) llAppend(f *frame) {
	if bp.lruFirst == nil {
		bp.lruFirst = f
		bp.lruLast = f
		f.prev = nil
	} else {
		bp.lruLast.next = f
		f.prev = bp.lruLast
		bp.lruLast = f
	}
	f.next = nil
}

/*
llRemove removes a frame from the LRU list.
*/
func (bp *Pool) llRemove(f *frame) {
	if f == bp.lruFirst {
		bp.lruFirst = f.next
	}
	if f == bp.lruLast {
		bp.lruLast = f.prev
	}

	if f.prev != nil {
		f.prev.next = f.next
	}
	if f.next != nil {
		f.next.prev = f.prev
	}
	f.prev = nil
	f.next = nil
}
