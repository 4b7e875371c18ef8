/*
 * ChainGraph
 *
 * This Source Code Form is subject to the terms of the Mozilla Public
 * License, v. 2.0. If a copy of the MPL was not distributed with this
 * file, You can obtain one at http://mozilla.org/MPL/2.0/.
 */

/*
Package data contains the property value model of ChainGraph.

Value

A Value is a tagged union over all property value types which can be
stored on vertices and edges. Besides the usual scalar types there are
blockchain native types: 20 byte addresses, 32 byte transaction hashes
and 256 bit unsigned token amounts.

Values have a canonical binary encoding of a one byte tag followed by a
tag specific payload. Scalars are fixed width, strings, byte strings and
containers are length prefixed. Map entries are encoded in sorted key
order so the encoding of a value is canonical and can be used as an
index key.

Equality and ordering are defined per tag. The numeric types int, uint
and float compare with each other through float promotion. All other
cross tag comparisons are rejected.
*/
package data

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/holiman/uint256"
)

/*
Tag is the type tag of a Value
*/
type Tag byte

/*
Available value tags
*/
const (
	TagNull Tag = iota
	TagBool
	TagInt
	TagUInt
	TagFloat
	TagString
	TagAddress
	TagTxHash
	TagAmount
	TagTimestamp
	TagBytes
	TagList
	TagMap
)

/*
AddressSize is the byte size of an address
*/
const AddressSize = 20

/*
TxHashSize is the byte size of a transaction hash
*/
const TxHashSize = 32

/*
tagNames maps value tags to readable names
*/
var tagNames = map[Tag]string{
	TagNull:      "null",
	TagBool:      "bool",
	TagInt:       "int",
	TagUInt:      "uint",
	TagFloat:     "float",
	TagString:    "string",
	TagAddress:   "address",
	TagTxHash:    "txhash",
	TagAmount:    "amount",
	TagTimestamp: "timestamp",
	TagBytes:     "bytes",
	TagList:      "list",
	TagMap:       "map",
}

/*
Name returns a readable name of a tag.
*/
func (t Tag) Name() string {
	if name, ok := tagNames[t]; ok {
		return name
	}

	return fmt.Sprintf("unknown(%v)", byte(t))
}

/*
Value data structure
*/
type Value struct {
	tag    Tag
	num    uint64           // Bits of bool / int / uint / float / timestamp
	str    string           // String payload
	raw    []byte           // Address / hash / byte string payload
	amount *uint256.Int     // Amount payload
	list   []Value          // List payload
	vmap   map[string]Value // Map payload
}

// Constructors
// ============

/*
NullValue returns the null value.
*/
func NullValue() Value {
	return Value{}
}

/*
BoolValue returns a boolean value.
*/
func BoolValue(b bool) Value {
	var num uint64
	if b {
		num = 1
	}
	return Value{tag: TagBool, num: num}
}

/*
IntValue returns a 64-bit signed integer value.
*/
func IntValue(i int64) Value {
	return Value{tag: TagInt, num: uint64(i)}
}

/*
UIntValue returns a 64-bit unsigned integer value.
*/
func UIntValue(u uint64) Value {
	return Value{tag: TagUInt, num: u}
}

/*
FloatValue returns a 64-bit float value.
*/
func FloatValue(f float64) Value {
	return Value{tag: TagFloat, num: math.Float64bits(f)}
}

/*
StringValue returns a string value.
*/
func StringValue(s string) Value {
	return Value{tag: TagString, str: s}
}

/*
AddressValue returns an address value from raw bytes.
*/
func AddressValue(addr []byte) (Value, error) {
	if len(addr) != AddressSize {
		return Value{}, fmt.Errorf("Address must be %v bytes long not %v",
			AddressSize, len(addr))
	}

	raw := make([]byte, AddressSize)
	copy(raw, addr)

	return Value{tag: TagAddress, raw: raw}, nil
}

/*
TxHashValue returns a transaction hash value from raw bytes.
*/
func TxHashValue(hash []byte) (Value, error) {
	if len(hash) != TxHashSize {
		return Value{}, fmt.Errorf("Transaction hash must be %v bytes long not %v",
			TxHashSize, len(hash))
	}

	raw := make([]byte, TxHashSize)
	copy(raw, hash)

	return Value{tag: TagTxHash, raw: raw}, nil
}

/*
AmountValue returns a 256-bit unsigned amount value.
*/
func AmountValue(a *uint256.Int) Value {
	return Value{tag: TagAmount, amount: new(uint256.Int).Set(a)}
}

/*
AmountFromUInt64 returns an amount value from a 64-bit unsigned integer.
*/
func AmountFromUInt64(u uint64) Value {
	return AmountValue(uint256.NewInt(u))
}

/*
TimestampValue returns a timestamp value.
*/
func TimestampValue(ts int64) Value {
	return Value{tag: TagTimestamp, num: uint64(ts)}
}

/*
BytesValue returns a byte string value.
*/
func BytesValue(b []byte) Value {
	raw := make([]byte, len(b))
	copy(raw, b)

	return Value{tag: TagBytes, raw: raw}
}

/*
ListValue returns a list value.
*/
func ListValue(vals []Value) Value {
	return Value{tag: TagList, list: vals}
}

/*
MapValue returns a map value.
*/
func MapValue(m map[string]Value) Value {
	return Value{tag: TagMap, vmap: m}
}

/*
ParseAddress parses a hex encoded address with an optional 0x prefix.
*/
func ParseAddress(s string) (Value, error) {
	raw, err := parseHex(s, AddressSize)
	if err != nil {
		return Value{}, fmt.Errorf("Invalid address %v: %v", s, err)
	}

	return Value{tag: TagAddress, raw: raw}, nil
}

/*
ParseTxHash parses a hex encoded transaction hash with an optional 0x
prefix.
*/
func ParseTxHash(s string) (Value, error) {
	raw, err := parseHex(s, TxHashSize)
	if err != nil {
		return Value{}, fmt.Errorf("Invalid transaction hash %v: %v", s, err)
	}

	return Value{tag: TagTxHash, raw: raw}, nil
}

/*
parseHex decodes a hex string into a fixed size byte array.
*/
func parseHex(s string, size int) ([]byte, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")

	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}

	if len(raw) != size {
		return nil, fmt.Errorf("expected %v bytes got %v", size, len(raw))
	}

	return raw, nil
}

// Accessors
// =========

/*
Tag returns the type tag of this value.
*/
func (v Value) Tag() Tag {
	return v.tag
}

/*
IsNull returns if this value is the null value.
*/
func (v Value) IsNull() bool {
	return v.tag == TagNull
}

/*
Bool returns the boolean payload.
*/
func (v Value) Bool() bool {
	return v.num != 0
}

/*
Int returns the integer payload.
*/
func (v Value) Int() int64 {
	return int64(v.num)
}

/*
UInt returns the unsigned integer payload.
*/
func (v Value) UInt() uint64 {
	return v.num
}

/*
Float returns the float payload.
*/
func (v Value) Float() float64 {
	return math.Float64frombits(v.num)
}

/*
Str returns the string payload.
*/
func (v Value) Str() string {
	return v.str
}

/*
Raw returns the raw byte payload of addresses, hashes and byte strings.
*/
func (v Value) Raw() []byte {
	return v.raw
}

/*
Amount returns the amount payload.
*/
func (v Value) Amount() *uint256.Int {
	return v.amount
}

/*
Timestamp returns the timestamp payload.
*/
func (v Value) Timestamp() int64 {
	return int64(v.num)
}

/*
List returns the list payload.
*/
func (v Value) List() []Value {
	return v.list
}

/*
Map returns the map payload.
*/
func (v Value) Map() map[string]Value {
	return v.vmap
}

/*
AsFloat tries to convert a numeric value to a float. The second return
value indicates if the conversion was possible.
*/
func (v Value) AsFloat() (float64, bool) {
	switch v.tag {
	case TagInt:
		return float64(v.Int()), true
	case TagUInt:
		return float64(v.num), true
	case TagFloat:
		return v.Float(), true
	case TagTimestamp:
		return float64(v.Timestamp()), true
	case TagAmount:
		return v.amount.Float64(), true
	}

	return 0, false
}

// Encoding
// ========

/*
Encode writes the canonical binary encoding of this value to a buffer.
*/
func (v Value) Encode(buf *bytes.Buffer) {
	buf.WriteByte(byte(v.tag))

	switch v.tag {

	case TagNull:

	case TagBool:
		if v.num != 0 {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}

	case TagInt, TagUInt, TagFloat, TagTimestamp:
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], v.num)
		buf.Write(b[:])

	case TagString:
		writeLength(buf, len(v.str))
		buf.WriteString(v.str)

	case TagAddress, TagTxHash:
		buf.Write(v.raw)

	case TagAmount:
		b32 := v.amount.Bytes32()
		buf.Write(b32[:])

	case TagBytes:
		writeLength(buf, len(v.raw))
		buf.Write(v.raw)

	case TagList:
		writeLength(buf, len(v.list))
		for _, item := range v.list {
			item.Encode(buf)
		}

	case TagMap:
		keys := make([]string, 0, len(v.vmap))
		for k := range v.vmap {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		writeLength(buf, len(keys))
		for _, k := range keys {
			writeLength(buf, len(k))
			buf.WriteString(k)
			v.vmap[k].Encode(buf)
		}
	}
}

/*
EncodeToBytes returns the canonical binary encoding of a value.
*/
func (v Value) EncodeToBytes() []byte {
	var buf bytes.Buffer

	v.Encode(&buf)

	return buf.Bytes()
}

/*
writeLength writes a 32-bit length prefix.
*/
func writeLength(buf *bytes.Buffer, l int) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(l))
	buf.Write(b[:])
}

/*
Decode reads a value from a byte reader.
*/
func Decode(r *bytes.Reader) (Value, error) {
	tagByte, err := r.ReadByte()
	if err != nil {
		return Value{}, fmt.Errorf("Could not decode value tag: %v", err)
	}

	tag := Tag(tagByte)

	switch tag {

	case TagNull:
		return NullValue(), nil

	case TagBool:
		b, err := r.ReadByte()
		if err != nil {
			return Value{}, err
		}
		return BoolValue(b != 0), nil

	case TagInt, TagUInt, TagFloat, TagTimestamp:
		var b [8]byte
		if _, err := readFull(r, b[:]); err != nil {
			return Value{}, err
		}
		return Value{tag: tag, num: binary.LittleEndian.Uint64(b[:])}, nil

	case TagString:
		l, err := readLength(r)
		if err != nil {
			return Value{}, err
		}
		b := make([]byte, l)
		if _, err := readFull(r, b); err != nil {
			return Value{}, err
		}
		return StringValue(string(b)), nil

	case TagAddress:
		raw := make([]byte, AddressSize)
		if _, err := readFull(r, raw); err != nil {
			return Value{}, err
		}
		return Value{tag: TagAddress, raw: raw}, nil

	case TagTxHash:
		raw := make([]byte, TxHashSize)
		if _, err := readFull(r, raw); err != nil {
			return Value{}, err
		}
		return Value{tag: TagTxHash, raw: raw}, nil

	case TagAmount:
		var b [32]byte
		if _, err := readFull(r, b[:]); err != nil {
			return Value{}, err
		}
		return Value{tag: TagAmount,
			amount: new(uint256.Int).SetBytes(b[:])}, nil

	case TagBytes:
		l, err := readLength(r)
		if err != nil {
			return Value{}, err
		}
		raw := make([]byte, l)
		if _, err := readFull(r, raw); err != nil {
			return Value{}, err
		}
		return Value{tag: TagBytes, raw: raw}, nil

	case TagList:
		l, err := readLength(r)
		if err != nil {
			return Value{}, err
		}
		list := make([]Value, l)
		for i := 0; i < l; i++ {
			if list[i], err = Decode(r); err != nil {
				return Value{}, err
			}
		}
		return ListValue(list), nil

	case TagMap:
		l, err := readLength(r)
		if err != nil {
			return Value{}, err
		}
		m := make(map[string]Value, l)
		for i := 0; i < l; i++ {
			kl, err := readLength(r)
			if err != nil {
				return Value{}, err
			}
			kb := make([]byte, kl)
			if _, err := readFull(r, kb); err != nil {
				return Value{}, err
			}
			if m[string(kb)], err = Decode(r); err != nil {
				return Value{}, err
			}
		}
		return MapValue(m), nil
	}

	return Value{}, fmt.Errorf("Unknown value tag: %v", tagByte)
}

/*
DecodeFromBytes decodes a value from a byte array.
*/
func DecodeFromBytes(data []byte) (Value, error) {
	return Decode(bytes.NewReader(data))
}

/*
readLength reads a 32-bit length prefix.
*/
func readLength(r *bytes.Reader) (int, error) {
	var b [4]byte

	if _, err := readFull(r, b[:]); err != nil {
		return 0, err
	}

	return int(binary.LittleEndian.Uint32(b[:])), nil
}

/*
readFull reads an exact number of bytes.
*/
func readFull(r *bytes.Reader, b []byte) (int, error) {
	n, err := r.Read(b)

	if err == nil && n != len(b) {
		err = fmt.Errorf("unexpected end of value data")
	}

	return n, err
}

// Comparison
// ==========

/*
Equals checks if two values are equal.
*/
func (v Value) Equals(other Value) bool {
	if v.tag != other.tag {
		return false
	}

	switch v.tag {

	case TagNull:
		return true

	case TagBool, TagInt, TagUInt, TagFloat, TagTimestamp:
		return v.num == other.num

	case TagString:
		return v.str == other.str

	case TagAddress, TagTxHash, TagBytes:
		return bytes.Equal(v.raw, other.raw)

	case TagAmount:
		return v.amount.Eq(other.amount)

	case TagList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i, item := range v.list {
			if !item.Equals(other.list[i]) {
				return false
			}
		}
		return true

	case TagMap:
		if len(v.vmap) != len(other.vmap) {
			return false
		}
		for k, item := range v.vmap {
			o, ok := other.vmap[k]
			if !ok || !item.Equals(o) {
				return false
			}
		}
		return true
	}

	return false
}

/*
Compare compares two values. Returns a negative number if v is smaller,
0 if both are equal and a positive number if v is greater. Comparing
values of different tags is an error except for the numeric types which
are promoted to float.
*/
func (v Value) Compare(other Value) (int, error) {

	if v.tag != other.tag {

		// Numeric types compare through float promotion

		if isNumericTag(v.tag) && isNumericTag(other.tag) {
			f1, _ := v.AsFloat()
			f2, _ := other.AsFloat()

			return compareFloat(f1, f2), nil
		}

		return 0, fmt.Errorf("Cannot compare %v with %v",
			v.tag.Name(), other.tag.Name())
	}

	switch v.tag {

	case TagNull:
		return 0, nil

	case TagBool:
		return int(v.num) - int(other.num), nil

	case TagInt, TagTimestamp:
		switch {
		case int64(v.num) < int64(other.num):
			return -1, nil
		case int64(v.num) > int64(other.num):
			return 1, nil
		}
		return 0, nil

	case TagUInt:
		switch {
		case v.num < other.num:
			return -1, nil
		case v.num > other.num:
			return 1, nil
		}
		return 0, nil

	case TagFloat:
		return compareFloat(v.Float(), other.Float()), nil

	case TagString:
		return strings.Compare(v.str, other.str), nil

	case TagAddress, TagTxHash, TagBytes:
		return bytes.Compare(v.raw, other.raw), nil

	case TagAmount:
		return v.amount.Cmp(other.amount), nil
	}

	return 0, fmt.Errorf("Cannot order values of type %v", v.tag.Name())
}

/*
isNumericTag returns if a given tag belongs to the numeric family.
*/
func isNumericTag(t Tag) bool {
	return t == TagInt || t == TagUInt || t == TagFloat
}

/*
compareFloat compares two float values.
*/
func compareFloat(f1 float64, f2 float64) int {
	switch {
	case f1 < f2:
		return -1
	case f1 > f2:
		return 1
	}
	return 0
}

/*
SortCompare provides a total order over all values for sorting purposes.
Values of different tags order by tag.
*/
func (v Value) SortCompare(other Value) int {
	if res, err := v.Compare(other); err == nil {
		return res
	}

	return int(v.tag) - int(other.tag)
}

/*
String returns a readable representation of this value.
*/
func (v Value) String() string {
	switch v.tag {

	case TagNull:
		return "null"

	case TagBool:
		return fmt.Sprint(v.Bool())

	case TagInt:
		return fmt.Sprint(v.Int())

	case TagUInt:
		return fmt.Sprint(v.num)

	case TagFloat:
		return fmt.Sprint(v.Float())

	case TagString:
		return v.str

	case TagAddress, TagTxHash:
		return "0x" + hex.EncodeToString(v.raw)

	case TagAmount:
		return v.amount.Dec()

	case TagTimestamp:
		return fmt.Sprint(v.Timestamp())

	case TagBytes:
		return "0x" + hex.EncodeToString(v.raw)

	case TagList:
		items := make([]string, len(v.list))
		for i, item := range v.list {
			items[i] = item.String()
		}
		return "[" + strings.Join(items, ", ") + "]"

	case TagMap:
		keys := make([]string, 0, len(v.vmap))
		for k := range v.vmap {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		items := make([]string, len(keys))
		for i, k := range keys {
			items[i] = fmt.Sprintf("%v: %v", k, v.vmap[k].String())
		}
		return "{" + strings.Join(items, ", ") + "}"
	}

	return "?"
}
