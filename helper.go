// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package netsnmp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// helper error modes
var (
	ErrBase128IntegerTooLarge  = errors.New("base 128 integer too large")
	ErrBase128IntegerTruncated = errors.New("base 128 integer truncated")
	ErrIntegerTooLarge         = errors.New("integer too large")
	ErrIntegerTooLong          = errors.New("integer too long")
	ErrInvalidOidLength        = errors.New("invalid OID length")
	ErrInvalidPacketLength     = errors.New("invalid packet length")
	ErrTruncated               = errors.New("truncated TLV")
	ErrZeroLenInteger          = errors.New("zero length integer")
)

// -- marshalling ---------------------------------------------------------------

// appendBase128Int appends a base-128 encoded integer to the given slice.
// Returns the extended slice.
func appendBase128Int(dst []byte, n int64) []byte {
	if n == 0 {
		return append(dst, 0)
	}

	l := 0
	for i := n; i > 0; i >>= 7 {
		l++
	}

	for i := l - 1; i >= 0; i-- {
		o := byte(n>>uint(i*7)) & 0x7f //nolint:gosec
		if i != 0 {
			o |= 0x80
		}
		dst = append(dst, o)
	}

	return dst
}

/*
	snmp Integer32 and INTEGER:
	-2^31 and 2^31-1 inclusive (-2147483648 to 2147483647 decimal)

	versus:

	snmp Counter32, Gauge32, TimeTicks, Unsigned32: (below)
	non-negative integer, maximum value of 2^32-1 (4294967295 decimal)
*/

// marshalInt32 builds a byte representation of a signed 32 bit int in BigEndian form
// ie -2^31 and 2^31-1 inclusive (-2147483648 to 2147483647 decimal)
func marshalInt32(value int) ([]byte, error) {
	if value < math.MinInt32 || value > math.MaxInt32 {
		return nil, fmt.Errorf("unable to marshal: %d overflows int32", value)
	}
	const mask1 uint32 = 0xFFFFFF80
	const mask2 uint32 = 0xFFFF8000
	const mask3 uint32 = 0xFF800000
	// ITU-T Rec. X.690 (2002) 8.3.2
	// If the contents octets of an integer value encoding consist of more than
	// one octet, then the bits of the first octet and bit 8 of the second octet:
	//  a) shall not all be ones; and
	//  b) shall not all be zero
	val := uint32(value) //nolint:gosec
	switch {
	case val&mask1 == 0 || val&mask1 == mask1:
		return []byte{byte(val)}, nil
	case val&mask2 == 0 || val&mask2 == mask2:
		return []byte{byte(val >> 8), byte(val)}, nil
	case val&mask3 == 0 || val&mask3 == mask3:
		return []byte{byte(val >> 16), byte(val >> 8), byte(val)}, nil
	default:
		return []byte{byte(val >> 24), byte(val >> 16), byte(val >> 8), byte(val)}, nil
	}
}

// marshalUint32 encodes Counter32, Gauge32 and TimeTicks values.
func marshalUint32(source uint32) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, source)
	var i int
	for i = 0; i < 3; i++ {
		if buf[i] != 0 {
			break
		}
	}
	buf = buf[i:]
	// if the highest bit in buf is set and x is not negative - prepend a byte to make it positive
	if buf[0]&0x80 > 0 {
		buf = append([]byte{0}, buf...)
	}
	return buf
}

// marshalUint64 encodes a uint64 into BER-compliant bytes for SNMP Counter64.
// It trims leading zero bytes and prepends one if MSB is set (per X.690 §8.3.2)
func marshalUint64(source uint64) []byte {
	bs := make([]byte, 8)
	binary.BigEndian.PutUint64(bs, source)

	trimmed := bytes.TrimLeft(bs, "\x00")
	if len(trimmed) == 0 {
		return []byte{0}
	}
	if trimmed[0]&0x80 > 0 {
		trimmed = append([]byte{0}, trimmed...)
	}
	return trimmed
}

// marshalLength builds a byte representation of length
//
// http://luca.ntop.org/Teaching/Appunti/asn1.html
//
// Length octets. There are two forms: short (for lengths between 0 and 127),
// and long definite (for lengths between 0 and 2^1008 -1).
//
//   - Short form. One octet. Bit 8 has value "0" and bits 7-1 give the length.
//   - Long form. Two to 127 octets. Bit 8 of first octet has value "1" and bits
//     7-1 give the number of additional length octets. Second and following
//     octets give the length, base 256, most significant digit first.
func marshalLength(length int) ([]byte, error) {
	if length < 0 {
		return nil, fmt.Errorf("length must be >= 0")
	}
	if length <= 127 {
		return []byte{byte(length)}, nil
	}

	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(length))

	start := 0
	for start < 8 && buf[start] == 0 {
		start++
	}

	numBytes := 8 - start
	result := make([]byte, 1+numBytes)
	result[0] = byte(128 | numBytes)
	copy(result[1:], buf[start:])
	return result, nil
}

// marshalTLV writes a BER TLV (type-length-value) to buf using proper length
// encoding. Handles values of any size, including those exceeding 127 bytes.
func marshalTLV(buf *bytes.Buffer, tag byte, value []byte) error {
	length, err := marshalLength(len(value))
	if err != nil {
		return err
	}
	buf.WriteByte(tag)
	buf.Write(length)
	buf.Write(value)
	return nil
}

// wrapTLV returns value wrapped in a TLV header.
func wrapTLV(tag byte, value []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalTLV(&buf, tag, value); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// marshalIntegerTLV writes an INTEGER TLV.
func marshalIntegerTLV(buf *bytes.Buffer, value int) error {
	b, err := marshalInt32(value)
	if err != nil {
		return err
	}
	return marshalTLV(buf, byte(Integer), b)
}

func marshalObjectIdentifier(oid string) ([]byte, error) {
	oidLength := len(oid)

	out := make([]byte, 0, oidLength/2)

	var first int64
	i := 0
	for j := 0; j < oidLength; {
		if oid[j] == '.' {
			j++
			continue
		}
		var val int64
		for j < oidLength && oid[j] != '.' {
			ch := int64(oid[j] - '0')
			if ch > 9 || ch < 0 {
				return nil, fmt.Errorf("unable to marshal OID: Invalid object identifier")
			}
			val *= 10
			val += ch
			if val > MaxObjectSubIdentifierValue {
				return nil, fmt.Errorf("unable to marshal OID: Value out of range")
			}
			j++
		}
		switch i {
		case 0:
			if val > 2 {
				return nil, fmt.Errorf("unable to marshal OID: Invalid object identifier")
			}
			first = val * 40
		case 1:
			if first < 80 && val >= 40 {
				return nil, fmt.Errorf("unable to marshal OID: Invalid object identifier")
			}
			out = appendBase128Int(out, first+val)
		default:
			out = appendBase128Int(out, val)
		}
		i++
	}
	if i < 2 || i > 128 {
		return nil, fmt.Errorf("unable to marshal OID: Invalid object identifier")
	}

	return out, nil
}

// -- parsing -------------------------------------------------------------------

// parseBase128Uint32 parses a base-128 encoded unsigned integer from the given
// offset in the given byte slice. Returns the value and the new offset.
func parseBase128Uint32(bytes []byte, initOffset int) (uint32, int, error) {
	var ret uint64
	offset := initOffset
	for offset < len(bytes) {
		b := bytes[offset]
		offset++
		ret = (ret << 7) | uint64(b&0x7f)
		if ret > math.MaxUint32 {
			return 0, 0, ErrBase128IntegerTooLarge
		}
		if b&0x80 == 0 {
			return uint32(ret), offset, nil
		}
	}
	return 0, 0, ErrBase128IntegerTruncated
}

// parseInt64 treats the given bytes as a big-endian, signed integer and
// returns the result.
func parseInt64(bytes []byte) (int64, error) {
	switch {
	case len(bytes) == 0:
		// X.690 8.3.1: Encoding of an integer value:
		// The encoding of an integer value shall be primitive.
		// The contents octets shall consist of one or more octets.
		return 0, ErrZeroLenInteger
	case len(bytes) > 8:
		return 0, ErrIntegerTooLarge
	}
	var ret int64
	for bytesRead := range bytes {
		ret <<= 8
		ret |= int64(bytes[bytesRead])
	}
	// Shift up and down in order to sign extend the result.
	ret <<= 64 - uint8(len(bytes))*8 //nolint:gosec
	ret >>= 64 - uint8(len(bytes))*8 //nolint:gosec
	return ret, nil
}

// parseInt32 decodes an Integer32 body. Some agents send a redundant leading
// zero octet in front of a full four octet value; that form is accepted and
// read as the four trailing octets.
func parseInt32(bytes []byte) (int, error) {
	switch {
	case len(bytes) == 5:
		if bytes[0] != 0 {
			return 0, ErrIntegerTooLong
		}
		bytes = bytes[1:]
	case len(bytes) > 5:
		return 0, ErrIntegerTooLong
	}
	ret, err := parseInt64(bytes)
	if err != nil {
		return 0, err
	}
	return int(int32(ret)), nil //nolint:gosec
}

// parseInt treats the given bytes as a big-endian, signed integer and returns
// the result.
func parseInt(bytes []byte) (int, error) {
	ret64, err := parseInt64(bytes)
	if err != nil {
		return 0, err
	}
	if ret64 != int64(int(ret64)) {
		return 0, ErrIntegerTooLarge
	}
	return int(ret64), nil
}

// parseLength parses and calculates an snmp packet length
// and returns an error when invalid data is detected. The returned length
// includes the tag and length octets; cursor is the offset of the value.
//
// http://luca.ntop.org/Teaching/Appunti/asn1.html
func parseLength(bytes []byte) (int, int, error) {
	var cursor, length int
	switch {
	case len(bytes) < 2:
		return 0, 0, ErrInvalidPacketLength
	case int(bytes[1]) <= 127:
		length = int(bytes[1])
		length += 2
		cursor += 2
	case bytes[1] == 0x80:
		// Indefinite length encoding (0x80) is prohibited in SNMP per RFC 3417 Section 8:
		// "When encoding the length field, only the definite form is used;
		// use of the indefinite form encoding is prohibited."
		return 0, 0, fmt.Errorf("indefinite length encoding (0x80) is not permitted in SNMP")
	default:
		numOctets := int(bytes[1]) & 127
		if numOctets > 4 {
			return 0, 0, ErrInvalidPacketLength
		}
		for i := 0; i < numOctets; i++ {
			length <<= 8
			if len(bytes) < 2+i+1 {
				return 0, 0, ErrInvalidPacketLength
			}
			length += int(bytes[2+i])
			if length < 0 {
				return 0, 0, ErrInvalidPacketLength
			}
		}
		length += 2 + numOctets
		cursor += 2 + numOctets
	}
	if length < 0 {
		return 0, 0, ErrInvalidPacketLength
	}
	return length, cursor, nil
}

// parseTLV splits the leading TLV off data. n is the number of bytes it
// occupies, header included.
func parseTLV(data []byte) (tag byte, value []byte, n int, err error) {
	length, cursor, err := parseLength(data)
	if err != nil {
		return 0, nil, 0, err
	}
	if length > len(data) {
		return 0, nil, 0, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, length, len(data))
	}
	return data[0], data[cursor:length], length, nil
}

// parseObjectIdentifier parses an OBJECT IDENTIFIER from the given bytes and
// returns it in dotted form without a leading dot.
func parseObjectIdentifier(src []byte) (string, error) {
	if len(src) == 0 {
		return "", ErrInvalidOidLength
	}

	out := make([]byte, 0, len(src)*4+1)

	v, offset, err := parseBase128Uint32(src, 0)
	if err != nil {
		return "", err
	}
	switch {
	case v < 80:
		out = strconv.AppendUint(out, uint64(v/40), 10)
		out = append(out, '.')
		out = strconv.AppendUint(out, uint64(v%40), 10)
	default:
		out = append(out, '2', '.')
		out = strconv.AppendUint(out, uint64(v-80), 10)
	}

	for offset < len(src) {
		out = append(out, '.')
		v, offset, err = parseBase128Uint32(src, offset)
		if err != nil {
			return "", err
		}
		out = strconv.AppendUint(out, uint64(v), 10)
	}
	return string(out), nil
}

// parseUint64 treats the given bytes as a big-endian, unsigned integer and returns
// the result.
func parseUint64(bytes []byte) (uint64, error) {
	var ret uint64
	if len(bytes) == 0 {
		return 0, ErrZeroLenInteger
	}
	if len(bytes) > 9 || (len(bytes) > 8 && bytes[0] != 0x0) {
		return 0, ErrIntegerTooLarge
	}
	for bytesRead := range bytes {
		ret <<= 8
		ret |= uint64(bytes[bytesRead])
	}
	return ret, nil
}

// parseUint32 treats the given bytes as a big-endian, unsigned integer that
// must fit in 32 bits.
func parseUint32(bytes []byte) (uint32, error) {
	ret, err := parseUint64(bytes)
	if err != nil {
		return 0, err
	}
	if ret > math.MaxUint32 {
		return 0, ErrIntegerTooLarge
	}
	return uint32(ret), nil
}

// normalizeOID strips surrounding whitespace and a leading dot.
func normalizeOID(oid string) string {
	return strings.TrimPrefix(strings.TrimSpace(oid), ".")
}

// -- berReader -----------------------------------------------------------------

// berReader walks the TLVs inside a constructed value.
type berReader struct {
	data []byte
	off  int
}

func newBerReader(data []byte) *berReader {
	return &berReader{data: data}
}

// more reports whether unread bytes remain.
func (r *berReader) more() bool {
	return r.off < len(r.data)
}

// offset is the position of the next TLV relative to the start of the
// reader's data.
func (r *berReader) offset() int {
	return r.off
}

func (r *berReader) next() (byte, []byte, error) {
	if !r.more() {
		return 0, nil, ErrTruncated
	}
	tag, value, n, err := parseTLV(r.data[r.off:])
	if err != nil {
		return 0, nil, err
	}
	r.off += n
	return tag, value, nil
}

func (r *berReader) expect(tag byte, what string) ([]byte, error) {
	got, value, err := r.next()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", what, err)
	}
	if got != tag {
		return nil, fmt.Errorf("%s: expected tag 0x%02x, got 0x%02x", what, tag, got)
	}
	return value, nil
}

func (r *berReader) readInt(what string) (int64, error) {
	value, err := r.expect(byte(Integer), what)
	if err != nil {
		return 0, err
	}
	i, err := parseInt64(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", what, err)
	}
	return i, nil
}

// readInt31 reads an INTEGER constrained to 0..2^31-1.
func (r *berReader) readInt31(what string) (int, error) {
	i, err := r.readInt(what)
	if err != nil {
		return 0, err
	}
	if i < 0 || i > math.MaxInt32 {
		return 0, fmt.Errorf("%s: %d out of range", what, i)
	}
	return int(i), nil
}

func (r *berReader) readOctets(what string) ([]byte, error) {
	return r.expect(byte(OctetString), what)
}

func (r *berReader) readSequence(what string) (*berReader, error) {
	value, err := r.expect(byte(Sequence), what)
	if err != nil {
		return nil, err
	}
	return newBerReader(value), nil
}
