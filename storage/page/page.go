/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package page deals with the binary layout of storage pages.

Page

A Page models a single fixed size storage page of 4096 bytes. It is a
wrapper data structure for a byte array which provides read and write
methods for the page header, for raw body data and for slot directory
records.

Page layout:

	kind        (1 byte)
	flags       (1 byte)
	slot count  (2 bytes)
	free offset (2 bytes)
	padding     (2 bytes)
	page id     (8 bytes)
	lsn         (8 bytes)
	next page   (8 bytes)
	crc         (4 bytes)
	body        (4056 bytes)
	padding     (4 bytes)

The checksum is a CRC-32C (Castagnoli) over the first 4092 bytes of the
page with the checksum field itself treated as zero. It is computed before
a page is written to disk and verified when a page is read from disk.

Slot records are stored in the body. Record bodies grow from the header
downward while the slot directory grows from the end of the checksummed
area upward. Each directory entry holds the byte offset and length of its
record. A length of 0xFFFF marks a deleted slot.
*/
package page

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"

	"devt.de/krotik/common/bitutil"
)

/*
Size is the fixed byte size of a page
*/
const Size = 4096

/*
HeaderSize is the byte size of the page header
*/
const HeaderSize = 36

/*
ChecksumArea is the number of bytes which are protected by the checksum
*/
const ChecksumArea = 4092

/*
SlotEntrySize is the byte size of a single slot directory entry
*/
const SlotEntrySize = 4

/*
slotDeleted marks a deleted slot in the slot directory
*/
const slotDeleted = 0xFFFF

/*
Offsets of header fields
*/
const (
	offsetKind       = 0
	offsetFlags      = 1
	offsetSlotCount  = 2
	offsetFreeOffset = 4
	offsetID         = 8
	offsetLSN        = 16
	offsetNextPage   = 24
	offsetChecksum   = 32
)

/*
Available page kinds
*/
const (
	KindFree       = 0
	KindMeta       = 1
	KindCatalog    = 2
	KindVertex     = 3
	KindEdge       = 4
	KindAdjacency  = 5
	KindDictionary = 6
	KindPKIndex    = 7
	KindLabelIndex = 8
	KindIDMap      = 9
)

/*
crcTable is the Castagnoli polynomial table used for all page checksums
*/
var crcTable = crc32.MakeTable(crc32.Castagnoli)

/*
Page data structure
*/
type Page struct {
	data []byte // Byte array holding the page content
}

/*
New creates a new empty Page of a given kind and returns a pointer to it.
*/
func New(id uint64, kind byte) *Page {
	p := &Page{make([]byte, Size)}

	p.data[offsetKind] = kind
	p.SetID(id)
	p.SetFreeOffset(HeaderSize)

	return p
}

/*
FromBytes creates a Page from a given byte array. The byte array is used
directly and must have the correct size.
*/
func FromBytes(data []byte) (*Page, error) {
	if len(data) != Size {
		return nil, fmt.Errorf("Invalid page size: %v", len(data))
	}

	return &Page{data}, nil
}

/*
Data returns the raw data of a Page.
*/
func (p *Page) Data() []byte {
	return p.data
}

/*
Kind returns the page kind.
*/
func (p *Page) Kind() byte {
	return p.data[offsetKind]
}

/*
SetKind sets the page kind.
*/
func (p *Page) SetKind(kind byte) {
	p.data[offsetKind] = kind
}

/*
Flags returns the page flags.
*/
func (p *Page) Flags() byte {
	return p.data[offsetFlags]
}

/*
SetFlags sets the page flags.
*/
func (p *Page) SetFlags(flags byte) {
	p.data[offsetFlags] = flags
}

/*
ID returns the page id.
*/
func (p *Page) ID() uint64 {
	return binary.LittleEndian.Uint64(p.data[offsetID:])
}

/*
SetID sets the page id.
*/
func (p *Page) SetID(id uint64) {
	binary.LittleEndian.PutUint64(p.data[offsetID:], id)
}

/*
LSN returns the log sequence number of the last write to this page.
*/
func (p *Page) LSN() uint64 {
	return binary.LittleEndian.Uint64(p.data[offsetLSN:])
}

/*
SetLSN sets the log sequence number of this page.
*/
func (p *Page) SetLSN(lsn uint64) {
	binary.LittleEndian.PutUint64(p.data[offsetLSN:], lsn)
}

/*
NextPage returns the id of the next page in a page list. A value of 0
means there is no next page.
*/
func (p *Page) NextPage() uint64 {
	return binary.LittleEndian.Uint64(p.data[offsetNextPage:])
}

/*
SetNextPage sets the id of the next page in a page list.
*/
func (p *Page) SetNextPage(id uint64) {
	binary.LittleEndian.PutUint64(p.data[offsetNextPage:], id)
}

/*
SlotCount returns the number of entries in the slot directory.
*/
func (p *Page) SlotCount() int {
	return int(binary.LittleEndian.Uint16(p.data[offsetSlotCount:]))
}

/*
setSlotCount sets the number of entries in the slot directory.
*/
func (p *Page) setSlotCount(count int) {
	binary.LittleEndian.PutUint16(p.data[offsetSlotCount:], uint16(count))
}

/*
FreeOffset returns the offset of the first free body byte.
*/
func (p *Page) FreeOffset() int {
	return int(binary.LittleEndian.Uint16(p.data[offsetFreeOffset:]))
}

/*
SetFreeOffset sets the offset of the first free body byte.
*/
func (p *Page) SetFreeOffset(offset int) {
	binary.LittleEndian.PutUint16(p.data[offsetFreeOffset:], uint16(offset))
}

/*
Checksum returns the stored checksum of this page.
*/
func (p *Page) Checksum() uint32 {
	return binary.LittleEndian.Uint32(p.data[offsetChecksum:])
}

/*
UpdateChecksum computes the checksum over the page content and stores it
in the checksum field.
*/
func (p *Page) UpdateChecksum() {
	binary.LittleEndian.PutUint32(p.data[offsetChecksum:], p.computeChecksum())
}

/*
VerifyChecksum checks that the stored checksum matches the page content.
*/
func (p *Page) VerifyChecksum() bool {
	return p.Checksum() == p.computeChecksum()
}

/*
computeChecksum calculates the CRC-32C over the checksummed area with the
checksum field treated as zero.
*/
func (p *Page) computeChecksum() uint32 {
	crc := crc32.Update(0, crcTable, p.data[:offsetChecksum])
	crc = crc32.Update(crc, crcTable, []byte{0, 0, 0, 0})

	return crc32.Update(crc, crcTable, p.data[offsetChecksum+4:ChecksumArea])
}

// Raw body access
// ===============

/*
ReadUInt16 reads a 16-bit unsigned integer at a given page offset.
*/
func (p *Page) ReadUInt16(pos int) uint16 {
	return binary.LittleEndian.Uint16(p.data[pos:])
}

/*
WriteUInt16 writes a 16-bit unsigned integer at a given page offset.
*/
func (p *Page) WriteUInt16(pos int, value uint16) {
	binary.LittleEndian.PutUint16(p.data[pos:], value)
}

/*
ReadUInt32 reads a 32-bit unsigned integer at a given page offset.
*/
func (p *Page) ReadUInt32(pos int) uint32 {
	return binary.LittleEndian.Uint32(p.data[pos:])
}

/*
WriteUInt32 writes a 32-bit unsigned integer at a given page offset.
*/
func (p *Page) WriteUInt32(pos int, value uint32) {
	binary.LittleEndian.PutUint32(p.data[pos:], value)
}

/*
ReadUInt64 reads a 64-bit unsigned integer at a given page offset.
*/
func (p *Page) ReadUInt64(pos int) uint64 {
	return binary.LittleEndian.Uint64(p.data[pos:])
}

/*
WriteUInt64 writes a 64-bit unsigned integer at a given page offset.
*/
func (p *Page) WriteUInt64(pos int, value uint64) {
	binary.LittleEndian.PutUint64(p.data[pos:], value)
}

// Slot directory access
// =====================

/*
FreeSpace returns the number of free body bytes for a new slot record
including its directory entry.
*/
func (p *Page) FreeSpace() int {
	free := ChecksumArea - p.SlotCount()*SlotEntrySize - p.FreeOffset() - SlotEntrySize

	if free < 0 {
		return 0
	}

	return free
}

/*
slotEntryOffset returns the page offset of a given slot directory entry.
*/
func slotEntryOffset(slot int) int {
	return ChecksumArea - (slot+1)*SlotEntrySize
}

/*
AddSlot adds a new slot record to the page. Returns the slot number or -1
if the record does not fit.
*/
func (p *Page) AddSlot(record []byte) int {
	count := p.SlotCount()
	offset := p.FreeOffset()

	if len(record) > ChecksumArea-count*SlotEntrySize-offset-SlotEntrySize {
		return -1
	}

	copy(p.data[offset:], record)

	entry := slotEntryOffset(count)
	p.WriteUInt16(entry, uint16(offset))
	p.WriteUInt16(entry+2, uint16(len(record)))

	p.setSlotCount(count + 1)
	p.SetFreeOffset(offset + len(record))

	return count
}

/*
Slot returns the record bytes of a given slot. Returns nil if the slot
does not exist or has been deleted.
*/
func (p *Page) Slot(slot int) []byte {
	if slot < 0 || slot >= p.SlotCount() {
		return nil
	}

	entry := slotEntryOffset(slot)
	offset := int(p.ReadUInt16(entry))
	length := int(p.ReadUInt16(entry + 2))

	if length == slotDeleted {
		return nil
	}

	return p.data[offset : offset+length]
}

/*
UpdateSlot overwrites the record bytes of a given slot in place. The new
record must not be larger than the stored record. Returns false if the
slot does not exist or the record does not fit.
*/
func (p *Page) UpdateSlot(slot int, record []byte) bool {
	if slot < 0 || slot >= p.SlotCount() {
		return false
	}

	entry := slotEntryOffset(slot)
	offset := int(p.ReadUInt16(entry))
	length := int(p.ReadUInt16(entry + 2))

	if length == slotDeleted || len(record) > length {
		return false
	}

	copy(p.data[offset:], record)
	p.WriteUInt16(entry+2, uint16(len(record)))

	return true
}

/*
DeleteSlot marks a given slot as deleted. The record space is not reused
until the page itself is reclaimed.
*/
func (p *Page) DeleteSlot(slot int) bool {
	if slot < 0 || slot >= p.SlotCount() {
		return false
	}

	entry := slotEntryOffset(slot)

	if int(p.ReadUInt16(entry+2)) == slotDeleted {
		return false
	}

	p.WriteUInt16(entry+2, slotDeleted)

	return true
}

/*
LiveSlots returns the number of slots which have not been deleted.
*/
func (p *Page) LiveSlots() int {
	var live int

	for i := 0; i < p.SlotCount(); i++ {
		if int(p.ReadUInt16(slotEntryOffset(i)+2)) != slotDeleted {
			live++
		}
	}

	return live
}

/*
String prints a string representation of the Page.
*/
func (p *Page) String() string {
	return fmt.Sprintf("Page: %v (kind:%v slots:%v free:%v lsn:%v)\n%v",
		p.ID(), p.Kind(), p.SlotCount(), p.FreeOffset(), p.LSN(),
		bitutil.HexDump(p.data[:64]))
}
