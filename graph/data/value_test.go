/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

package data

import (
	"testing"

	"github.com/holiman/uint256"
)

func TestValueRoundTrip(t *testing.T) {
	addr, err := ParseAddress("0x742d35Cc6634C0532925a3b844Bc9e7595f5bB01")
	if err != nil {
		t.Error(err)
		return
	}

	hash, err := ParseTxHash("0x5c504ed432cb51138bcf09aa5e8a410dd4a1e204ef84bfed1be16dfba1b22060")
	if err != nil {
		t.Error(err)
		return
	}

	amount := AmountValue(uint256.NewInt(1).Lsh(uint256.NewInt(1), 200))

	vals := []Value{
		NullValue(),
		BoolValue(true),
		BoolValue(false),
		IntValue(-42),
		UIntValue(18446744073709551615),
		FloatValue(3.25),
		StringValue("hello world"),
		addr,
		hash,
		amount,
		TimestampValue(1715000000),
		BytesValue([]byte{0xDE, 0xAD, 0xBE, 0xEF}),
		ListValue([]Value{IntValue(1), StringValue("two"), NullValue()}),
		MapValue(map[string]Value{
			"amount": AmountFromUInt64(500),
			"to":     addr,
		}),
	}

	for _, v := range vals {
		enc := v.EncodeToBytes()

		dec, err := DecodeFromBytes(enc)
		if err != nil {
			t.Error("Decode error for", v.Tag().Name(), ":", err)
			return
		}

		if !v.Equals(dec) {
			t.Error("Round trip mismatch for", v.Tag().Name(), ":", v, "vs", dec)
			return
		}
	}

	// Map encodings must be canonical regardless of insertion order

	m1 := MapValue(map[string]Value{"a": IntValue(1), "b": IntValue(2)})
	m2 := MapValue(map[string]Value{"b": IntValue(2), "a": IntValue(1)})

	if string(m1.EncodeToBytes()) != string(m2.EncodeToBytes()) {
		t.Error("Map encoding should be canonical")
		return
	}
}

func TestValueParsing(t *testing.T) {
	if _, err := ParseAddress("0x1234"); err == nil {
		t.Error("Parsing a short address should fail")
		return
	}

	if _, err := ParseAddress("0xZZ2d35Cc6634C0532925a3b844Bc9e7595f5bB01"); err == nil {
		t.Error("Parsing an invalid hex address should fail")
		return
	}

	if _, err := ParseTxHash("0xAB"); err == nil {
		t.Error("Parsing a short hash should fail")
		return
	}

	if _, err := AddressValue([]byte{1, 2, 3}); err == nil {
		t.Error("Creating an address from 3 bytes should fail")
		return
	}

	if _, err := TxHashValue([]byte{1, 2, 3}); err == nil {
		t.Error("Creating a hash from 3 bytes should fail")
		return
	}

	addr, _ := ParseAddress("742d35Cc6634C0532925a3b844Bc9e7595f5bB01")
	if addr.String() != "0x742d35cc6634c0532925a3b844bc9e7595f5bb01" {
		t.Error("Unexpected address formatting:", addr.String())
		return
	}
}

func TestValueComparison(t *testing.T) {
	if res, err := IntValue(1).Compare(IntValue(2)); err != nil || res >= 0 {
		t.Error("Unexpected comparison result:", res, err)
		return
	}

	// Numeric family comparisons promote to float

	if res, err := IntValue(3).Compare(FloatValue(2.5)); err != nil || res <= 0 {
		t.Error("Unexpected comparison result:", res, err)
		return
	}

	if res, err := UIntValue(5).Compare(IntValue(5)); err != nil || res != 0 {
		t.Error("Unexpected comparison result:", res, err)
		return
	}

	// Cross tag comparisons fail

	if _, err := StringValue("a").Compare(IntValue(1)); err == nil {
		t.Error("Cross tag comparison should fail")
		return
	}

	if _, err := ListValue(nil).Compare(ListValue(nil)); err == nil {
		t.Error("Ordering lists should fail")
		return
	}

	a1 := AmountFromUInt64(100)
	a2 := AmountFromUInt64(200)

	if res, err := a1.Compare(a2); err != nil || res >= 0 {
		t.Error("Unexpected amount comparison:", res, err)
		return
	}

	if !a1.Equals(AmountFromUInt64(100)) {
		t.Error("Equal amounts should be equal")
		return
	}

	// Total sort order falls back to tag order for incompatible tags

	if StringValue("a").SortCompare(IntValue(1)) <= 0 {
		t.Error("Unexpected sort order")
		return
	}
}

func TestValueAsFloat(t *testing.T) {
	if f, ok := AmountFromUInt64(1000).AsFloat(); !ok || f != 1000 {
		t.Error("Unexpected conversion result:", f, ok)
		return
	}

	if f, ok := IntValue(-5).AsFloat(); !ok || f != -5 {
		t.Error("Unexpected conversion result:", f, ok)
		return
	}

	if _, ok := StringValue("5").AsFloat(); ok {
		t.Error("Strings should not convert to float")
		return
	}
}
