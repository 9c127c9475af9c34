// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package netsnmp

import (
	"bytes"
	"fmt"
	"math"
)

// communityMessage is an SNMPv1 or SNMPv2c message, RFC 1157 / RFC 1901.
type communityMessage struct {
	Version   SnmpVersion
	Community string
	PDU       PDU
}

// pduAllowed reports whether a PDU of type t may travel in a message of
// version v.
func pduAllowed(v SnmpVersion, t PDUType) bool {
	switch t {
	case GetRequest, GetNextRequest, GetResponse, SetRequest:
		return true
	case Trap:
		return v == Version1
	case GetBulkRequest, InformRequest, SNMPv2Trap, Report:
		return v != Version1
	}
	return false
}

func (m *communityMessage) marshal() ([]byte, error) {
	if m.Version != Version1 && m.Version != Version2c {
		return nil, requestInvalid("community message with version %s", m.Version)
	}
	if m.PDU == nil {
		return nil, requestInvalid("missing PDU")
	}
	if !pduAllowed(m.Version, m.PDU.Type()) {
		return nil, requestInvalid("%s is not valid in SNMPv%s", m.PDU.Type(), m.Version)
	}
	pdu, err := marshalPDU(m.PDU)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err = marshalIntegerTLV(&buf, int(m.Version)); err != nil {
		return nil, err
	}
	if err = marshalTLV(&buf, byte(OctetString), []byte(m.Community)); err != nil {
		return nil, err
	}
	buf.Write(pdu)
	return wrapTLV(byte(Sequence), buf.Bytes())
}

func unmarshalCommunityMessage(data []byte) (*communityMessage, error) {
	r, version, err := openMessage(data)
	if err != nil {
		return nil, err
	}
	if version != Version1 && version != Version2c {
		return nil, responseInvalid("unexpected version %s", version)
	}
	community, err := r.readOctets("community")
	if err != nil {
		return nil, &ResponseInvalidError{Msg: "message", Err: err}
	}
	if !r.more() {
		return nil, responseInvalid("message has no PDU")
	}
	pdu, err := unmarshalPDU(r.data[r.offset():])
	if err != nil {
		return nil, err
	}
	if !pduAllowed(version, pdu.Type()) {
		return nil, responseInvalid("%s is not valid in SNMPv%s", pdu.Type(), version)
	}
	return &communityMessage{Version: version, Community: string(community), PDU: pdu}, nil
}

// openMessage reads the outer SEQUENCE and the version field shared by all
// message formats, leaving r positioned after the version.
func openMessage(data []byte) (*berReader, SnmpVersion, error) {
	tag, body, _, err := parseTLV(data)
	if err != nil {
		return nil, 0, &ResponseInvalidError{Msg: "message", Err: err}
	}
	if PDUType(tag) != Sequence {
		return nil, 0, responseInvalid("message is not a sequence (tag 0x%02x)", tag)
	}
	r := newBerReader(body)
	version, err := r.readInt("version")
	if err != nil {
		return nil, 0, &ResponseInvalidError{Msg: "message", Err: err}
	}
	switch version {
	case int64(Version1), int64(Version2c), int64(Version3):
		return r, SnmpVersion(version), nil
	}
	return nil, 0, responseInvalid("unknown version %d", version)
}

// peekVersion returns the version of an encoded message without decoding
// the rest of it.
func peekVersion(data []byte) (SnmpVersion, error) {
	_, v, err := openMessage(data)
	return v, err
}

// peekRequestID returns the request-id of a v1 or v2c message whose PDU
// may not decode, so that a malformed response can fail its request.
func peekRequestID(data []byte) (int, bool) {
	r, version, err := openMessage(data)
	if err != nil || version == Version3 {
		return 0, false
	}
	if _, err = r.readOctets("community"); err != nil {
		return 0, false
	}
	tag, body, err := r.next()
	if err != nil || PDUType(tag) == Trap {
		return 0, false
	}
	id, err := newBerReader(body).readInt("request-id")
	if err != nil || id <= 0 || id > math.MaxInt32 {
		return 0, false
	}
	return int(id), true
}

func (m *communityMessage) String() string {
	return fmt.Sprintf("v%s community=%q %s id=%d", m.Version, m.Community, m.PDU.Type(), m.PDU.ID())
}
