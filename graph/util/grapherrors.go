/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package util contains utility classes for the graph storage.

GraphError

Models a graph related error. Low-level errors should be wrapped in a
GraphError before they are returned to a client. The error type is one of
a fixed set of sentinel values so callers can classify failures without
parsing messages.
*/
package util

import (
	"errors"
	"fmt"
)

/*
GraphError is a graph related error
*/
type GraphError struct {
	Type   error  // Error type (to be used for equal checks)
	Detail string // Details of this error
}

/*
Error returns a human-readable string representation of this error.
*/
func (ge *GraphError) Error() string {
	if ge.Detail != "" {
		return fmt.Sprintf("GraphError: %v (%v)", ge.Type, ge.Detail)
	}

	return fmt.Sprintf("GraphError: %v", ge.Type)
}

/*
Graph related error types
*/
var (
	ErrParse      = errors.New("Parse error")
	ErrBind       = errors.New("Bind error")
	ErrConstraint = errors.New("Constraint violation")
	ErrNotFound   = errors.New("Not found")
	ErrCorruption = errors.New("Storage corruption")
	ErrFull       = errors.New("Storage full")
	ErrCancelled  = errors.New("Operation cancelled")
	ErrTimeout    = errors.New("Operation timed out")
	ErrInternal   = errors.New("Internal error")
)

/*
NewGraphError creates a new GraphError with a given type and detail.
*/
func NewGraphError(geType error, geDetail string) *GraphError {
	return &GraphError{geType, geDetail}
}

/*
IsGraphError checks if a given error is a GraphError of a given type.
*/
func IsGraphError(err error, geType error) bool {
	ge, ok := err.(*GraphError)

	return ok && ge.Type == geType
}
