/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package page

import (
	"bytes"
	"testing"
)

func TestPageHeader(t *testing.T) {
	p := New(42, KindVertex)

	if p.ID() != 42 || p.Kind() != KindVertex {
		t.Error("Unexpected header values:", p.ID(), p.Kind())
		return
	}

	p.SetLSN(99)
	p.SetNextPage(123)
	p.SetFlags(1)

	if p.LSN() != 99 || p.NextPage() != 123 || p.Flags() != 1 {
		t.Error("Unexpected header values:", p.LSN(), p.NextPage(), p.Flags())
		return
	}

	if _, err := FromBytes(make([]byte, 5)); err == nil {
		t.Error("Creating a page from a wrong sized buffer should fail")
		return
	}
}

func TestPageChecksum(t *testing.T) {
	p := New(1, KindEdge)
	p.WriteUInt64(HeaderSize, 0xCAFE)

	p.UpdateChecksum()

	if !p.VerifyChecksum() {
		t.Error("Checksum should verify after update")
		return
	}

	// Corrupt a body byte and make sure verification fails

	p.Data()[HeaderSize+100] = 0xFF

	if p.VerifyChecksum() {
		t.Error("Checksum should not verify after corruption")
		return
	}

	p.UpdateChecksum()

	if !p.VerifyChecksum() {
		t.Error("Checksum should verify again")
		return
	}

	// Changing the LSN must change the checksum

	oldsum := p.Checksum()

	p.SetLSN(12345)
	p.UpdateChecksum()

	if p.Checksum() == oldsum {
		t.Error("Checksum should depend on the header")
		return
	}
}

func TestPageSlots(t *testing.T) {
	p := New(2, KindVertex)

	s1 := p.AddSlot([]byte("record one"))
	s2 := p.AddSlot([]byte("record two which is longer"))

	if s1 != 0 || s2 != 1 {
		t.Error("Unexpected slot numbers:", s1, s2)
		return
	}

	if string(p.Slot(s1)) != "record one" {
		t.Error("Unexpected slot content:", string(p.Slot(s1)))
		return
	}

	if string(p.Slot(s2)) != "record two which is longer" {
		t.Error("Unexpected slot content:", string(p.Slot(s2)))
		return
	}

	if p.Slot(99) != nil || p.Slot(-1) != nil {
		t.Error("Out of range slots should be nil")
		return
	}

	// In place update with a shorter record

	if !p.UpdateSlot(s2, []byte("short")) {
		t.Error("Update with a shorter record should succeed")
		return
	}

	if string(p.Slot(s2)) != "short" {
		t.Error("Unexpected slot content after update:", string(p.Slot(s2)))
		return
	}

	if p.UpdateSlot(s2, bytes.Repeat([]byte("x"), 100)) {
		t.Error("Update with a longer record should fail")
		return
	}

	// Deletion

	if !p.DeleteSlot(s1) {
		t.Error("Deleting a live slot should succeed")
		return
	}

	if p.Slot(s1) != nil {
		t.Error("Deleted slot should read as nil")
		return
	}

	if p.DeleteSlot(s1) {
		t.Error("Deleting a deleted slot should fail")
		return
	}

	if p.LiveSlots() != 1 {
		t.Error("Unexpected live slot count:", p.LiveSlots())
		return
	}
}

func TestPageSlotOverflow(t *testing.T) {
	p := New(3, KindEdge)

	rec := bytes.Repeat([]byte("y"), 1000)

	var added int
	for p.AddSlot(rec) != -1 {
		added++
	}

	// 4 records of 1000 bytes plus directory entries fit into one page

	if added != 4 {
		t.Error("Unexpected number of added records:", added)
		return
	}

	if p.FreeSpace() >= 1000 {
		t.Error("Page should not report room for another record")
		return
	}
}
