/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package storage contains the low-level API for page based data storage.

Data is stored in fixed size pages inside a single data file. The file
package provides the DataFile object which manages the data file on disk.
The page package provides the binary page layout including checksums. The
buffer package provides the buffer Pool object which caches pages in memory
and controls all page access of higher layers.
*/
package storage

import (
	"errors"
	"fmt"
)

/*
Common storage related error types
*/
var (
	ErrCorruption = errors.New("Storage corruption")
	ErrFull       = errors.New("Storage full")
	ErrNotFound   = errors.New("Page not found")
	ErrPoolFull   = errors.New("No evictable page in pool")
	ErrClosed     = errors.New("Storage is closed")
)

/*
ManagerError is a storage related error.
*/
type ManagerError struct {
	Type   error  // Error type (to be used for equal checks)
	Detail string // Details of this error
}

/*
NewStorageError returns a new storage specific error.
*/
func NewStorageError(seType error, seDetail string) *ManagerError {
	return &ManagerError{seType, seDetail}
}

/*
Error returns a string representation of the error.
*/
func (e *ManagerError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%v (%v)", e.Type, e.Detail)
	}

	return fmt.Sprint(e.Type)
}

/*
IsStorageError checks if a given error is a storage error of a given type.
*/
func IsStorageError(err error, seType error) bool {
	se, ok := err.(*ManagerError)

	return ok && se.Type == seType
}
