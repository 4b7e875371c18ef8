/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package file deals with low level file storage.

DataFile

DataFile models the single data file which holds all pages of a datastore.
The file grows in page increments and its length is always a multiple of
the page size. Page 0 is the meta page which stores the format magic, the
format version, the total page count, the head of the free page list and
the root of the graph catalog.

Freed pages are kept in an on-disk free list. The head page id is stored
on the meta page, each free page stores the id of the next free page in
the first 8 bytes of its body.

A DataFile ensures exclusive access to its files through a generated lock
file. The lockfile is checked and attempting to open another DataFile
instance on the same directory will result in an error.

All page reads verify the page checksum. A mismatch surfaces as a storage
corruption error and the page content is not handed to the caller.
*/
package file

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"devt.de/krotik/common/fileutil"
	"devt.de/krotik/common/lockutil"
	"github.com/MuYiYong/ChainGraph/storage"
	"github.com/MuYiYong/ChainGraph/storage/page"
)

/*
FilenameData is the name of the data file inside the data directory
*/
const FilenameData = "data.cgd"

/*
FilenameLock is the name of the lock file inside the data directory
*/
const FilenameLock = "lock.lck"

/*
Magic is the 8 byte sentinel at the start of every data file ("CHAINGRH")
*/
var Magic = []byte{0x43, 0x48, 0x41, 0x49, 0x4E, 0x47, 0x52, 0x48}

/*
FormatVersion is the current on-disk format version
*/
const FormatVersion = 1

/*
Meta page body offsets
*/
const (
	metaOffsetMagic       = page.HeaderSize
	metaOffsetVersion     = page.HeaderSize + 8
	metaOffsetPageCount   = page.HeaderSize + 16
	metaOffsetFreeHead    = page.HeaderSize + 24
	metaOffsetCatalogRoot = page.HeaderSize + 32
)

/*
DataFile data structure
*/
type DataFile struct {
	name   string             // Name of the data directory
	file   *os.File           // Underlying file on disk
	lock   *lockutil.LockFile // Lock file manager
	meta   *page.Page         // Meta page (page 0)
	mutex  sync.Mutex         // Mutex to protect allocation and meta state
	closed bool               // Flag if this file was closed
}

/*
Open opens or creates a DataFile in a given data directory.
*/
func Open(dir string) (*DataFile, error) {
	if res, _ := fileutil.PathExists(dir); !res {
		if err := os.MkdirAll(dir, 0770); err != nil {
			return nil, storage.NewStorageError(storage.ErrFull, err.Error())
		}
	}

	// Ensure we are the only instance on this directory

	lock := lockutil.NewLockFile(filepath.Join(dir, FilenameLock),
		time.Duration(50)*time.Millisecond)

	if err := lock.Start(); err != nil {
		return nil, storage.NewStorageError(storage.ErrFull,
			fmt.Sprintf("Could not take ownership of %v: %v", dir, err))
	}

	filename := filepath.Join(dir, FilenameData)

	isnew, _ := fileutil.PathExists(filename)
	isnew = !isnew

	f, err := os.OpenFile(filename, os.O_CREATE|os.O_RDWR, 0660)
	if err != nil {
		lock.Finish()
		return nil, storage.NewStorageError(storage.ErrFull, err.Error())
	}

	df := &DataFile{name: dir, file: f, lock: lock}

	if isnew {

		// Initialise the meta page

		df.meta = page.New(0, page.KindMeta)
		copy(df.meta.Data()[metaOffsetMagic:], Magic)
		df.meta.WriteUInt32(metaOffsetVersion, FormatVersion)
		df.meta.WriteUInt64(metaOffsetPageCount, 1)

		if err := df.writePageAt(df.meta); err != nil {
			df.cleanup()
			return nil, err
		}

	} else {

		p, err := df.readPageAt(0)
		if err != nil {
			df.cleanup()
			return nil, err
		}

		if string(p.Data()[metaOffsetMagic:metaOffsetMagic+8]) != string(Magic) {
			df.cleanup()
			return nil, storage.NewStorageError(storage.ErrCorruption,
				"Invalid magic bytes in meta page")
		}

		if v := p.ReadUInt32(metaOffsetVersion); v != FormatVersion {
			df.cleanup()
			return nil, storage.NewStorageError(storage.ErrCorruption,
				fmt.Sprintf("Unsupported format version: %v", v))
		}

		df.meta = p
	}

	return df, nil
}

/*
cleanup releases all resources after a failed open.
*/
func (df *DataFile) cleanup() {
	df.file.Close()
	df.lock.Finish()
}

/*
Name returns the data directory of this DataFile.
*/
func (df *DataFile) Name() string {
	return df.name
}

/*
PageCount returns the total number of pages in the file.
*/
func (df *DataFile) PageCount() uint64 {
	df.mutex.Lock()
	defer df.mutex.Unlock()

	return df.meta.ReadUInt64(metaOffsetPageCount)
}

/*
CatalogRoot returns the root page id of the graph catalog. A value of 0
means no catalog has been written yet.
*/
func (df *DataFile) CatalogRoot() uint64 {
	df.mutex.Lock()
	defer df.mutex.Unlock()

	return df.meta.ReadUInt64(metaOffsetCatalogRoot)
}

/*
SetCatalogRoot sets the root page id of the graph catalog.
*/
func (df *DataFile) SetCatalogRoot(pid uint64) {
	df.mutex.Lock()
	defer df.mutex.Unlock()

	df.meta.WriteUInt64(metaOffsetCatalogRoot, pid)
}

/*
AllocatePage allocates a new page of a given kind and returns its id. The
page is initialised on disk. Freed pages are reused before the file is
grown.
*/
func (df *DataFile) AllocatePage(kind byte) (uint64, error) {
	df.mutex.Lock()
	defer df.mutex.Unlock()

	if df.closed {
		return 0, storage.NewStorageError(storage.ErrClosed, df.name)
	}

	var pid uint64

	if freeHead := df.meta.ReadUInt64(metaOffsetFreeHead); freeHead != 0 {

		fp, err := df.readPageAt(freeHead)
		if err != nil {
			return 0, err
		}

		df.meta.WriteUInt64(metaOffsetFreeHead, fp.ReadUInt64(page.HeaderSize))

		pid = freeHead

	} else {

		pid = df.meta.ReadUInt64(metaOffsetPageCount)
		df.meta.WriteUInt64(metaOffsetPageCount, pid+1)
	}

	if err := df.writePageAt(page.New(pid, kind)); err != nil {
		return 0, err
	}

	return pid, nil
}

/*
FreePage appends a given page to the free list.
*/
func (df *DataFile) FreePage(pid uint64) error {
	df.mutex.Lock()
	defer df.mutex.Unlock()

	if df.closed {
		return storage.NewStorageError(storage.ErrClosed, df.name)
	}

	if pid == 0 || pid >= df.meta.ReadUInt64(metaOffsetPageCount) {
		return storage.NewStorageError(storage.ErrNotFound,
			fmt.Sprintf("Cannot free page %v", pid))
	}

	fp := page.New(pid, page.KindFree)
	fp.WriteUInt64(page.HeaderSize, df.meta.ReadUInt64(metaOffsetFreeHead))

	if err := df.writePageAt(fp); err != nil {
		return err
	}

	df.meta.WriteUInt64(metaOffsetFreeHead, pid)

	return nil
}

/*
ReadPage reads a given page from disk. The page checksum is verified, a
mismatch surfaces as a storage corruption error.
*/
func (df *DataFile) ReadPage(pid uint64) (*page.Page, error) {
	df.mutex.Lock()

	if df.closed {
		df.mutex.Unlock()
		return nil, storage.NewStorageError(storage.ErrClosed, df.name)
	}

	if pid >= df.meta.ReadUInt64(metaOffsetPageCount) {
		df.mutex.Unlock()
		return nil, storage.NewStorageError(storage.ErrNotFound,
			fmt.Sprintf("Page %v is beyond the end of the file", pid))
	}

	df.mutex.Unlock()

	return df.readPageAt(pid)
}

/*
WritePage writes a given page to disk. The page checksum is computed
immediately before writing.
*/
func (df *DataFile) WritePage(p *page.Page) error {
	df.mutex.Lock()

	if df.closed {
		df.mutex.Unlock()
		return storage.NewStorageError(storage.ErrClosed, df.name)
	}

	df.mutex.Unlock()

	return df.writePageAt(p)
}

/*
readPageAt reads and verifies a page at a given position.
*/
func (df *DataFile) readPageAt(pid uint64) (*page.Page, error) {
	data := make([]byte, page.Size)

	if _, err := df.file.ReadAt(data, int64(pid)*page.Size); err != nil {
		return nil, storage.NewStorageError(storage.ErrCorruption,
			fmt.Sprintf("Could not read page %v: %v", pid, err))
	}

	p, _ := page.FromBytes(data)

	if !p.VerifyChecksum() {
		return nil, storage.NewStorageError(storage.ErrCorruption,
			fmt.Sprintf("Checksum mismatch on page %v", pid))
	}

	if p.ID() != pid {
		return nil, storage.NewStorageError(storage.ErrCorruption,
			fmt.Sprintf("Page %v has unexpected id %v", pid, p.ID()))
	}

	return p, nil
}

/*
writePageAt computes the page checksum and writes the page to disk.
*/
func (df *DataFile) writePageAt(p *page.Page) error {
	p.UpdateChecksum()

	if _, err := df.file.WriteAt(p.Data(), int64(p.ID())*page.Size); err != nil {
		return storage.NewStorageError(storage.ErrFull,
			fmt.Sprintf("Could not write page %v: %v", p.ID(), err))
	}

	return nil
}

/*
Sync writes the meta page and flushes the file to disk.
*/
func (df *DataFile) Sync() error {
	df.mutex.Lock()

	if df.closed {
		df.mutex.Unlock()
		return storage.NewStorageError(storage.ErrClosed, df.name)
	}

	meta := df.meta
	df.mutex.Unlock()

	if err := df.writePageAt(meta); err != nil {
		return err
	}

	if err := df.file.Sync(); err != nil {
		return storage.NewStorageError(storage.ErrFull, err.Error())
	}

	return nil
}

/*
Close flushes all meta information and closes the DataFile.
*/
func (df *DataFile) Close() error {
	if err := df.Sync(); err != nil {
		df.file.Close()
		df.lock.Finish()
		return err
	}

	df.mutex.Lock()
	df.closed = true
	df.mutex.Unlock()

	if err := df.file.Close(); err != nil {
		df.lock.Finish()
		return storage.NewStorageError(storage.ErrFull, err.Error())
	}

	return df.lock.Finish()
}
