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
	"fmt"

	"github.com/MuYiYong/ChainGraph/graph/data"
)

/*
Vertex record layout. The fixed header fields are followed by the
length prefixed property map. The adjacency chain heads sit at fixed
offsets so they can be patched in place without rewriting the record.
*/
const (
	vertexOffsetVID     = 0
	vertexOffsetLabel   = 8
	vertexOffsetFlags   = 12
	vertexOffsetAddr    = 13
	vertexOffsetOutHead = 33
	vertexOffsetInHead  = 41
	vertexOffsetProps   = 49
)

/*
vertexFlagHasAddr marks a vertex with a primary address
*/
const vertexFlagHasAddr = 1

/*
Edge record layout. Source and target vertex ids and the locators of
the two adjacency entries (the outgoing entry in the source chain and
the incoming entry in the target chain) are part of the fixed header.
*/
const (
	edgeOffsetEID    = 0
	edgeOffsetLabel  = 8
	edgeOffsetSrc    = 12
	edgeOffsetDst    = 20
	edgeOffsetOutLoc = 28
	edgeOffsetInLoc  = 36
	edgeOffsetProps  = 44
)

/*
vertexRecord is the decoded form of a vertex record.
*/
type vertexRecord struct {
	VID     uint64
	Label   uint32
	Addr    []byte // 20 byte primary address or nil
	OutHead uint64 // First page of the outgoing adjacency chain
	InHead  uint64 // First page of the incoming adjacency chain
	Props   map[uint32]data.Value
}

/*
edgeRecord is the decoded form of an edge record.
*/
type edgeRecord struct {
	EID    uint64
	Label  uint32
	Src    uint64
	Dst    uint64
	OutLoc uint64 // Locator of the adjacency entry in the source chain
	InLoc  uint64 // Locator of the adjacency entry in the target chain
	Props  map[uint32]data.Value
}

/*
encodeVertex encodes a vertex record.
*/
func encodeVertex(v *vertexRecord) []byte {
	var buf bytes.Buffer

	var head [vertexOffsetProps]byte

	binary.LittleEndian.PutUint64(head[vertexOffsetVID:], v.VID)
	binary.LittleEndian.PutUint32(head[vertexOffsetLabel:], v.Label)

	if v.Addr != nil {
		head[vertexOffsetFlags] = vertexFlagHasAddr
		copy(head[vertexOffsetAddr:], v.Addr)
	}

	binary.LittleEndian.PutUint64(head[vertexOffsetOutHead:], v.OutHead)
	binary.LittleEndian.PutUint64(head[vertexOffsetInHead:], v.InHead)

	buf.Write(head[:])
	encodeProps(&buf, v.Props)

	return buf.Bytes()
}

/*
decodeVertex decodes a vertex record.
*/
func decodeVertex(rec []byte) (*vertexRecord, error) {
	if len(rec) < vertexOffsetProps {
		return nil, fmt.Errorf("Vertex record is too short: %v bytes", len(rec))
	}

	v := &vertexRecord{
		VID:     binary.LittleEndian.Uint64(rec[vertexOffsetVID:]),
		Label:   binary.LittleEndian.Uint32(rec[vertexOffsetLabel:]),
		OutHead: binary.LittleEndian.Uint64(rec[vertexOffsetOutHead:]),
		InHead:  binary.LittleEndian.Uint64(rec[vertexOffsetInHead:]),
	}

	if rec[vertexOffsetFlags]&vertexFlagHasAddr != 0 {
		v.Addr = make([]byte, data.AddressSize)
		copy(v.Addr, rec[vertexOffsetAddr:])
	}

	props, err := decodeProps(rec[vertexOffsetProps:])
	if err != nil {
		return nil, err
	}

	v.Props = props

	return v, nil
}

/*
encodeEdge encodes an edge record.
*/
func encodeEdge(e *edgeRecord) []byte {
	var buf bytes.Buffer

	var head [edgeOffsetProps]byte

	binary.LittleEndian.PutUint64(head[edgeOffsetEID:], e.EID)
	binary.LittleEndian.PutUint32(head[edgeOffsetLabel:], e.Label)
	binary.LittleEndian.PutUint64(head[edgeOffsetSrc:], e.Src)
	binary.LittleEndian.PutUint64(head[edgeOffsetDst:], e.Dst)
	binary.LittleEndian.PutUint64(head[edgeOffsetOutLoc:], e.OutLoc)
	binary.LittleEndian.PutUint64(head[edgeOffsetInLoc:], e.InLoc)

	buf.Write(head[:])
	encodeProps(&buf, e.Props)

	return buf.Bytes()
}

/*
decodeEdge decodes an edge record.
*/
func decodeEdge(rec []byte) (*edgeRecord, error) {
	if len(rec) < edgeOffsetProps {
		return nil, fmt.Errorf("Edge record is too short: %v bytes", len(rec))
	}

	e := &edgeRecord{
		EID:    binary.LittleEndian.Uint64(rec[edgeOffsetEID:]),
		Label:  binary.LittleEndian.Uint32(rec[edgeOffsetLabel:]),
		Src:    binary.LittleEndian.Uint64(rec[edgeOffsetSrc:]),
		Dst:    binary.LittleEndian.Uint64(rec[edgeOffsetDst:]),
		OutLoc: binary.LittleEndian.Uint64(rec[edgeOffsetOutLoc:]),
		InLoc:  binary.LittleEndian.Uint64(rec[edgeOffsetInLoc:]),
	}

	props, err := decodeProps(rec[edgeOffsetProps:])
	if err != nil {
		return nil, err
	}

	e.Props = props

	return e, nil
}

/*
encodeProps encodes a property map as count followed by property key id
and value pairs.
*/
func encodeProps(buf *bytes.Buffer, props map[uint32]data.Value) {
	var b [4]byte

	binary.LittleEndian.PutUint16(b[:2], uint16(len(props)))
	buf.Write(b[:2])

	for pid, val := range props {
		binary.LittleEndian.PutUint32(b[:], pid)
		buf.Write(b[:])
		val.Encode(buf)
	}
}

/*
decodeProps decodes an encoded property map.
*/
func decodeProps(rec []byte) (map[uint32]data.Value, error) {
	if len(rec) < 2 {
		return nil, fmt.Errorf("Property map is too short")
	}

	count := int(binary.LittleEndian.Uint16(rec))
	props := make(map[uint32]data.Value, count)

	r := bytes.NewReader(rec[2:])

	for i := 0; i < count; i++ {
		var b [4]byte

		if _, err := r.Read(b[:]); err != nil {
			return nil, err
		}

		pid := binary.LittleEndian.Uint32(b[:])

		val, err := data.Decode(r)
		if err != nil {
			return nil, err
		}

		props[pid] = val
	}

	return props, nil
}
