// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package netsnmp

import (
	"bytes"
	"fmt"
	"math"
	"net"
)

// PDU is one of *RequestPDU, *BulkRequestPDU, *ResponsePDU or *TrapV1PDU.
// The set is closed; callers switch on the concrete type.
type PDU interface {
	Type() PDUType
	Varbinds() []Varbind

	// ID is the request-id, always 0 for a v1 Trap.
	ID() int

	setID(id int)
	marshal() ([]byte, error)
}

// RequestPDU is a GetRequest, GetNextRequest, SetRequest, InformRequest or
// SNMPv2Trap.
type RequestPDU struct {
	PDUType   PDUType
	RequestID int
	Variables []Varbind
}

// BulkRequestPDU is a GetBulkRequest. On the wire NonRepeaters and
// MaxRepetitions occupy the error-status and error-index slots.
type BulkRequestPDU struct {
	RequestID      int
	NonRepeaters   int
	MaxRepetitions int
	Variables      []Varbind
}

// ResponsePDU is a GetResponse or a Report.
type ResponsePDU struct {
	PDUType     PDUType
	RequestID   int
	ErrorStatus SNMPError
	// ErrorIndex is 1-based; 0 means no particular varbind.
	ErrorIndex int
	Variables  []Varbind
}

// TrapV1PDU is an SNMPv1 Trap-PDU, RFC 1157 section 4.1.6.
type TrapV1PDU struct {
	Enterprise   string
	AgentAddress string
	GenericTrap  SnmpV1TrapType
	SpecificTrap int
	Timestamp    uint32
	Variables    []Varbind
}

func (p *RequestPDU) Type() PDUType       { return p.PDUType }
func (p *RequestPDU) Varbinds() []Varbind { return p.Variables }
func (p *RequestPDU) ID() int             { return p.RequestID }
func (p *RequestPDU) setID(id int)        { p.RequestID = id }

func (p *BulkRequestPDU) Type() PDUType       { return GetBulkRequest }
func (p *BulkRequestPDU) Varbinds() []Varbind { return p.Variables }
func (p *BulkRequestPDU) ID() int             { return p.RequestID }
func (p *BulkRequestPDU) setID(id int)        { p.RequestID = id }

func (p *ResponsePDU) Type() PDUType       { return p.PDUType }
func (p *ResponsePDU) Varbinds() []Varbind { return p.Variables }
func (p *ResponsePDU) ID() int             { return p.RequestID }
func (p *ResponsePDU) setID(id int)        { p.RequestID = id }

func (p *TrapV1PDU) Type() PDUType       { return Trap }
func (p *TrapV1PDU) Varbinds() []Varbind { return p.Variables }
func (p *TrapV1PDU) ID() int             { return 0 }
func (p *TrapV1PDU) setID(int)           {}

// marshalPDU encodes any PDU variant as a complete TLV.
func marshalPDU(p PDU) ([]byte, error) {
	return p.marshal()
}

func (p *RequestPDU) marshal() ([]byte, error) {
	switch p.PDUType {
	case GetRequest, GetNextRequest, SetRequest, InformRequest, SNMPv2Trap:
	default:
		return nil, requestInvalid("%s is not a request PDU", p.PDUType)
	}
	return marshalCommonPDU(p.PDUType, p.RequestID, 0, 0, p.Variables)
}

func (p *BulkRequestPDU) marshal() ([]byte, error) {
	if p.NonRepeaters < 0 || p.NonRepeaters > math.MaxInt32 {
		return nil, requestInvalid("non-repeaters %d out of range", p.NonRepeaters)
	}
	if p.MaxRepetitions < 0 || p.MaxRepetitions > math.MaxInt32 {
		return nil, requestInvalid("max-repetitions %d out of range", p.MaxRepetitions)
	}
	return marshalCommonPDU(GetBulkRequest, p.RequestID, p.NonRepeaters, p.MaxRepetitions, p.Variables)
}

func (p *ResponsePDU) marshal() ([]byte, error) {
	switch p.PDUType {
	case GetResponse, Report:
	default:
		return nil, requestInvalid("%s is not a response PDU", p.PDUType)
	}
	return marshalCommonPDU(p.PDUType, p.RequestID, int(p.ErrorStatus), p.ErrorIndex, p.Variables)
}

func (p *TrapV1PDU) marshal() ([]byte, error) {
	var buf bytes.Buffer

	enterprise, err := marshalObjectIdentifier(p.Enterprise)
	if err != nil {
		return nil, &RequestInvalidError{Msg: "enterprise", Err: err}
	}
	if err = marshalTLV(&buf, byte(ObjectIdentifier), enterprise); err != nil {
		return nil, err
	}

	agentAddr, err := marshalValue(IPAddress, p.AgentAddress)
	if err != nil {
		return nil, &RequestInvalidError{Msg: "agent-addr", Err: err}
	}
	if err = marshalTLV(&buf, byte(IPAddress), agentAddr); err != nil {
		return nil, err
	}

	if err = marshalIntegerTLV(&buf, int(p.GenericTrap)); err != nil {
		return nil, &RequestInvalidError{Msg: "generic-trap", Err: err}
	}
	if err = marshalIntegerTLV(&buf, p.SpecificTrap); err != nil {
		return nil, &RequestInvalidError{Msg: "specific-trap", Err: err}
	}
	if err = marshalTLV(&buf, byte(TimeTicks), marshalUint32(p.Timestamp)); err != nil {
		return nil, err
	}

	vbl, err := marshalVarbinds(p.Variables)
	if err != nil {
		return nil, err
	}
	buf.Write(vbl)
	return wrapTLV(byte(Trap), buf.Bytes())
}

// marshalCommonPDU encodes the request-id, two integer slots and the
// varbind list shared by every PDU except the v1 Trap.
func marshalCommonPDU(t PDUType, requestID, slot1, slot2 int, vbs []Varbind) ([]byte, error) {
	if requestID < 0 || requestID > math.MaxInt32 {
		return nil, requestInvalid("request-id %d out of range", requestID)
	}
	var buf bytes.Buffer
	for _, v := range []int{requestID, slot1, slot2} {
		if err := marshalIntegerTLV(&buf, v); err != nil {
			return nil, &RequestInvalidError{Msg: t.String(), Err: err}
		}
	}
	vbl, err := marshalVarbinds(vbs)
	if err != nil {
		return nil, err
	}
	buf.Write(vbl)
	return wrapTLV(byte(t), buf.Bytes())
}

// unmarshalPDU decodes the PDU TLV at the start of data.
func unmarshalPDU(data []byte) (PDU, error) {
	tag, body, _, err := parseTLV(data)
	if err != nil {
		return nil, &ResponseInvalidError{Msg: "pdu", Err: err}
	}
	t := PDUType(tag)
	switch t {
	case Trap:
		return unmarshalTrapV1PDU(body)
	case GetRequest, GetNextRequest, SetRequest, InformRequest, SNMPv2Trap,
		GetBulkRequest, GetResponse, Report:
	default:
		return nil, responseInvalid("unknown PDU type 0x%02x", tag)
	}

	r := newBerReader(body)
	requestID, err := r.readInt("request-id")
	if err != nil {
		return nil, &ResponseInvalidError{Msg: t.String(), Err: err}
	}
	if requestID < 0 || requestID > math.MaxInt32 {
		return nil, responseInvalid("%s: request-id %d out of range", t, requestID)
	}
	slot1, err := r.readInt("error-status")
	if err != nil {
		return nil, &ResponseInvalidError{Msg: t.String(), Err: err}
	}
	slot2, err := r.readInt("error-index")
	if err != nil {
		return nil, &ResponseInvalidError{Msg: t.String(), Err: err}
	}
	if slot1 < 0 || slot1 > math.MaxInt32 || slot2 < 0 || slot2 > math.MaxInt32 {
		return nil, responseInvalid("%s: negative or oversized error fields", t)
	}
	vbl, err := r.expect(byte(Sequence), "varbind list")
	if err != nil {
		return nil, &ResponseInvalidError{Msg: t.String(), Err: err}
	}
	vbs, err := unmarshalVarbinds(vbl)
	if err != nil {
		return nil, err
	}

	switch t {
	case GetBulkRequest:
		return &BulkRequestPDU{
			RequestID:      int(requestID),
			NonRepeaters:   int(slot1),
			MaxRepetitions: int(slot2),
			Variables:      vbs,
		}, nil
	case GetResponse, Report:
		if slot1 > math.MaxUint8 {
			return nil, responseInvalid("%s: error-status %d out of range", t, slot1)
		}
		return &ResponsePDU{
			PDUType:     t,
			RequestID:   int(requestID),
			ErrorStatus: SNMPError(slot1),
			ErrorIndex:  int(slot2),
			Variables:   vbs,
		}, nil
	default:
		return &RequestPDU{PDUType: t, RequestID: int(requestID), Variables: vbs}, nil
	}
}

func unmarshalTrapV1PDU(body []byte) (*TrapV1PDU, error) {
	r := newBerReader(body)
	wrap := func(err error) error { return &ResponseInvalidError{Msg: "Trap", Err: err} }

	rawEnterprise, err := r.expect(byte(ObjectIdentifier), "enterprise")
	if err != nil {
		return nil, wrap(err)
	}
	enterprise, err := parseObjectIdentifier(rawEnterprise)
	if err != nil {
		return nil, wrap(err)
	}
	rawAddr, err := r.expect(byte(IPAddress), "agent-addr")
	if err != nil {
		return nil, wrap(err)
	}
	if len(rawAddr) != 4 {
		return nil, wrap(fmt.Errorf("agent-addr of length %d", len(rawAddr)))
	}
	generic, err := r.readInt("generic-trap")
	if err != nil {
		return nil, wrap(err)
	}
	specific, err := r.readInt("specific-trap")
	if err != nil {
		return nil, wrap(err)
	}
	rawTicks, err := r.expect(byte(TimeTicks), "time-stamp")
	if err != nil {
		return nil, wrap(err)
	}
	ticks, err := parseUint32(rawTicks)
	if err != nil {
		return nil, wrap(err)
	}
	vbl, err := r.expect(byte(Sequence), "varbind list")
	if err != nil {
		return nil, wrap(err)
	}
	vbs, err := unmarshalVarbinds(vbl)
	if err != nil {
		return nil, err
	}
	return &TrapV1PDU{
		Enterprise:   enterprise,
		AgentAddress: net.IP(rawAddr).String(),
		GenericTrap:  SnmpV1TrapType(generic),
		SpecificTrap: int(specific),
		Timestamp:    ticks,
		Variables:    vbs,
	}, nil
}
