// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package netsnmp

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// v1 GetRequest for sysDescr.0, community public, request-id 1
func getRequestV1() []byte {
	return []byte{
		0x30, 0x26, 0x02, 0x01, 0x00, 0x04, 0x06, 0x70, 0x75, 0x62, 0x6c, 0x69,
		0x63, 0xa0, 0x19, 0x02, 0x01, 0x01, 0x02, 0x01, 0x00, 0x02, 0x01, 0x00,
		0x30, 0x0e, 0x30, 0x0c, 0x06, 0x08, 0x2b, 0x06, 0x01, 0x02, 0x01, 0x01,
		0x01, 0x00, 0x05, 0x00,
	}
}

// v2c GetResponse carrying ifHCInOctets.1 as a Counter64
func counter64Response() []byte {
	return []byte{
		0x30, 0x2f, 0x02, 0x01, 0x01, 0x04, 0x06, 0x70, 0x75, 0x62, 0x6c, 0x69,
		0x63, 0xa2, 0x22, 0x02, 0x04, 0x0b, 0x58, 0xf1, 0x52, 0x02, 0x01, 0x00,
		0x02, 0x01, 0x00, 0x30, 0x14, 0x30, 0x12, 0x06, 0x0b, 0x2b, 0x06, 0x01,
		0x02, 0x01, 0x1f, 0x01, 0x01, 0x01, 0x0a, 0x01, 0x46, 0x03, 0x17, 0x50,
		0x87,
	}
}

func TestMarshalGetRequestV1(t *testing.T) {
	m := &communityMessage{
		Version:   Version1,
		Community: "public",
		PDU: &RequestPDU{
			PDUType:   GetRequest,
			RequestID: 1,
			Variables: []Varbind{{Name: ".1.3.6.1.2.1.1.1.0"}},
		},
	}
	got, err := m.marshal()
	require.NoError(t, err)
	if diff := cmp.Diff(getRequestV1(), got); diff != "" {
		t.Fatalf("marshal mismatch (-want +got):\n%s", diff)
	}

	back, err := unmarshalCommunityMessage(got)
	require.NoError(t, err)
	want := &communityMessage{
		Version:   Version1,
		Community: "public",
		PDU: &RequestPDU{
			PDUType:   GetRequest,
			RequestID: 1,
			Variables: []Varbind{{Name: "1.3.6.1.2.1.1.1.0", Type: Null}},
		},
	}
	if diff := cmp.Diff(want, back); diff != "" {
		t.Fatalf("unmarshal mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshalCounter64Response(t *testing.T) {
	m, err := unmarshalCommunityMessage(counter64Response())
	require.NoError(t, err)
	assert.Equal(t, Version2c, m.Version)
	assert.Equal(t, "public", m.Community)

	resp, ok := m.PDU.(*ResponsePDU)
	require.True(t, ok, "got %T", m.PDU)
	assert.Equal(t, GetResponse, resp.PDUType)
	assert.Equal(t, 190378322, resp.RequestID)
	assert.Equal(t, NoError, resp.ErrorStatus)
	want := []Varbind{{Name: "1.3.6.1.2.1.31.1.1.1.10.1", Type: Counter64, Value: uint64(1527943)}}
	if diff := cmp.Diff(want, resp.Variables); diff != "" {
		t.Fatalf("varbinds (-want +got):\n%s", diff)
	}
}

func TestVarbindValues(t *testing.T) {
	vbs := []Varbind{
		{Name: "1.3.6.1.2.1.1.7.0", Type: Integer, Value: 104},
		{Name: "1.3.6.1.2.1.1.7.1", Type: Integer, Value: -2147483648},
		{Name: "1.3.6.1.2.1.2.2.1.10.1", Type: Counter32, Value: uint32(271070065)},
		{Name: "1.3.6.1.2.1.2.2.1.5.1", Type: Gauge32, Value: uint32(4294967295)},
		{Name: "1.3.6.1.2.1.1.3.0", Type: TimeTicks, Value: uint32(318870100)},
		{Name: "1.3.6.1.2.1.31.1.1.1.6.1", Type: Counter64, Value: uint64(18446744073709551615)},
		{Name: "1.3.6.1.2.1.1.4.0", Type: OctetString, Value: []byte("Administrator")},
		{Name: "1.3.6.1.2.1.1.2.0", Type: ObjectIdentifier, Value: "1.3.6.1.4.1.8072.3.2.10"},
		{Name: "1.3.6.1.2.1.4.21.1.1.127.0.0.1", Type: IPAddress, Value: "127.0.0.1"},
		{Name: "1.3.6.1.4.1.6574.4.2.12.1.0", Type: Opaque, Value: []byte{0x9f, 0x78, 0x04, 0x41, 0x20, 0x00, 0x00}},
		{Name: "1.3.6.1.4.1.1.1", Type: Boolean, Value: true},
		{Name: "1.3.6.1.2.1.1.9.0", Type: Null},
		{Name: "1.3.6.1.2.1.1.10.0", Type: NoSuchObject},
		{Name: "1.3.6.1.2.1.1.11.0", Type: NoSuchInstance},
		{Name: "1.3.6.1.2.1.1.12.0", Type: EndOfMibView},
	}
	enc, err := marshalVarbinds(vbs)
	require.NoError(t, err)

	tag, body, _, err := parseTLV(enc)
	require.NoError(t, err)
	assert.Equal(t, byte(Sequence), tag)

	got, err := unmarshalVarbinds(body)
	require.NoError(t, err)
	if diff := cmp.Diff(vbs, got); diff != "" {
		t.Fatalf("varbinds (-want +got):\n%s", diff)
	}
}

func TestMarshalValueCoercion(t *testing.T) {
	tests := []struct {
		name string
		t    Asn1BER
		in   any
		want []byte
	}{
		{"string as octets", OctetString, "abc", []byte("abc")},
		{"int32 as integer", Integer, int32(-1), []byte{0xff}},
		{"int as counter", Counter32, 5, []byte{0x05}},
		{"uint as counter64", Counter64, uint(300), []byte{0x01, 0x2c}},
		{"net.IP string", IPAddress, "10.0.0.1", []byte{10, 0, 0, 1}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, err := marshalValue(test.t, test.in)
			require.NoError(t, err)
			assert.Equal(t, test.want, got)
		})
	}
}

func TestMarshalValueErrors(t *testing.T) {
	tests := []struct {
		name string
		t    Asn1BER
		in   any
	}{
		{"integer overflow", Integer, int64(1) << 40},
		{"string as integer", Integer, "5"},
		{"negative counter", Counter32, -1},
		{"counter overflow", Gauge32, uint64(1) << 32},
		{"bad ip", IPAddress, "not an ip"},
		{"ipv6", IPAddress, "::1"},
		{"bad oid", ObjectIdentifier, "1.x"},
		{"bool as octets", OctetString, true},
		{"unknown type", Asn1BER(0x47), 1},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := marshalValue(test.t, test.in)
			assert.Error(t, err)
		})
	}

	_, err := marshalVarbinds([]Varbind{{Name: "1.3.6.1", Type: Integer, Value: "x"}})
	var invalid *RequestInvalidError
	assert.True(t, errors.As(err, &invalid), "got %T", err)
}

func TestUnmarshalUnknownValueType(t *testing.T) {
	// SEQUENCE { OID 1.3, [0x47] 0x01 }
	data := []byte{0x30, 0x06, 0x06, 0x01, 0x2b, 0x47, 0x01, 0x01}
	_, err := unmarshalVarbinds(data)
	var invalid *ResponseInvalidError
	require.True(t, errors.As(err, &invalid), "got %T", err)
	assert.Contains(t, err.Error(), "unknown type 0x47")
}

func TestBulkRequestSlots(t *testing.T) {
	pdu := &BulkRequestPDU{
		RequestID:      42,
		NonRepeaters:   1,
		MaxRepetitions: 10,
		Variables:      []Varbind{{Name: "1.3.6.1.2.1.1"}, {Name: "1.3.6.1.2.1.2"}},
	}
	enc, err := marshalPDU(pdu)
	require.NoError(t, err)
	assert.Equal(t, byte(GetBulkRequest), enc[0])

	back, err := unmarshalPDU(enc)
	require.NoError(t, err)
	bulk, ok := back.(*BulkRequestPDU)
	require.True(t, ok, "got %T", back)
	assert.Equal(t, 42, bulk.RequestID)
	assert.Equal(t, 1, bulk.NonRepeaters)
	assert.Equal(t, 10, bulk.MaxRepetitions)
	assert.Len(t, bulk.Variables, 2)

	_, err = marshalPDU(&BulkRequestPDU{NonRepeaters: -1})
	assert.Error(t, err)
}

func TestResponseErrorStatus(t *testing.T) {
	pdu := &ResponsePDU{
		PDUType:     GetResponse,
		RequestID:   7,
		ErrorStatus: NoSuchName,
		ErrorIndex:  2,
		Variables:   []Varbind{{Name: "1.3.6.1.2.1.1.1.0"}, {Name: "1.3.6.1.2.1.1.99.0"}},
	}
	enc, err := marshalPDU(pdu)
	require.NoError(t, err)
	back, err := unmarshalPDU(enc)
	require.NoError(t, err)
	resp := back.(*ResponsePDU)
	assert.Equal(t, NoSuchName, resp.ErrorStatus)
	assert.Equal(t, 2, resp.ErrorIndex)
}

func TestTrapV1PDU(t *testing.T) {
	pdu := &TrapV1PDU{
		Enterprise:   "1.3.6.1.4.1.2789",
		AgentAddress: "192.168.1.10",
		GenericTrap:  EnterpriseSpecific,
		SpecificTrap: 17,
		Timestamp:    12345,
		Variables:    []Varbind{{Name: "1.3.6.1.4.1.2789.1", Type: OctetString, Value: []byte("hello")}},
	}
	m := &communityMessage{Version: Version1, Community: "public", PDU: pdu}
	enc, err := m.marshal()
	require.NoError(t, err)

	back, err := unmarshalCommunityMessage(enc)
	require.NoError(t, err)
	if diff := cmp.Diff(PDU(pdu), back.PDU); diff != "" {
		t.Fatalf("trap (-want +got):\n%s", diff)
	}
}

func TestPDUVersionRules(t *testing.T) {
	tests := []struct {
		v    SnmpVersion
		t    PDUType
		want bool
	}{
		{Version1, GetRequest, true},
		{Version1, Trap, true},
		{Version1, GetBulkRequest, false},
		{Version1, InformRequest, false},
		{Version1, SNMPv2Trap, false},
		{Version2c, Trap, false},
		{Version2c, GetBulkRequest, true},
		{Version2c, Report, true},
		{Version3, Trap, false},
		{Version3, InformRequest, true},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, pduAllowed(test.v, test.t), "%s in v%s", test.t, test.v)
	}

	m := &communityMessage{Version: Version1, Community: "public", PDU: &BulkRequestPDU{}}
	_, err := m.marshal()
	var invalid *RequestInvalidError
	assert.True(t, errors.As(err, &invalid))
}

func TestUnmarshalCommunityMessageErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"not a sequence", []byte{0x04, 0x00}},
		{"truncated", getRequestV1()[:20]},
		{"unknown version", []byte{0x30, 0x03, 0x02, 0x01, 0x05}},
		{"no pdu", []byte{0x30, 0x05, 0x02, 0x01, 0x01, 0x04, 0x00}},
		{"unknown pdu", []byte{0x30, 0x07, 0x02, 0x01, 0x01, 0x04, 0x00, 0xaf, 0x00}},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := unmarshalCommunityMessage(test.data)
			var invalid *ResponseInvalidError
			assert.True(t, errors.As(err, &invalid), "got %v", err)
		})
	}
}

func TestPeekVersion(t *testing.T) {
	v, err := peekVersion(getRequestV1())
	require.NoError(t, err)
	assert.Equal(t, Version1, v)

	v, err = peekVersion(counter64Response())
	require.NoError(t, err)
	assert.Equal(t, Version2c, v)
}

func TestVarbindString(t *testing.T) {
	assert.Equal(t, "1.3.6.1.2.1.1.5.0 = OctetString: \"router\"",
		Varbind{Name: "1.3.6.1.2.1.1.5.0", Type: OctetString, Value: []byte("router")}.String())
	assert.Equal(t, "1.3.6.1.2.1.1.7.0 = Integer: 72",
		Varbind{Name: "1.3.6.1.2.1.1.7.0", Type: Integer, Value: 72}.String())
	assert.Equal(t, "1.3.6.1.2.1.1.99.0 = NoSuchObject",
		Varbind{Name: "1.3.6.1.2.1.1.99.0", Type: NoSuchObject}.String())
}

func TestVarbindExceptionError(t *testing.T) {
	assert.NoError(t, Varbind{Name: "1.3", Type: Integer, Value: 1}.ExceptionError())

	err := Varbind{Name: "1.3.6.1.2.1.1.99.0", Type: NoSuchInstance}.ExceptionError()
	var failed *RequestFailedError
	require.True(t, errors.As(err, &failed))
	assert.Equal(t, "1.3.6.1.2.1.1.99.0", failed.OID)
}
