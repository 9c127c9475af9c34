// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package netsnmp

import (
	"bytes"
	"fmt"
	"math"
)

const (
	minMsgMaxSize     = 484
	defaultMaxMsgSize = 65535
)

// HeaderData is msgGlobalData of an SNMPv3 message, RFC 3412 section 6.
type HeaderData struct {
	MsgID         int
	MsgMaxSize    int
	MsgFlags      SnmpV3MsgFlags
	SecurityModel SnmpV3SecurityModel
}

// NewHeaderData returns a validated HeaderData. Privacy without
// authentication is refused with an UnsupportedSecurityLevelError.
func NewHeaderData(msgID, maxSize int, flags SnmpV3MsgFlags, model SnmpV3SecurityModel) (*HeaderData, error) {
	h := &HeaderData{MsgID: msgID, MsgMaxSize: maxSize, MsgFlags: flags, SecurityModel: model}
	if err := h.validate(); err != nil {
		return nil, err
	}
	return h, nil
}

func (h *HeaderData) validate() error {
	if h.MsgID < 0 || h.MsgID > math.MaxInt32 {
		return requestInvalid("msgID %d out of range", h.MsgID)
	}
	if h.MsgMaxSize < minMsgMaxSize || h.MsgMaxSize > math.MaxInt32 {
		return requestInvalid("msgMaxSize %d out of range", h.MsgMaxSize)
	}
	if h.MsgFlags > AuthPriv|Reportable {
		return requestInvalid("msgFlags 0x%02x out of range", uint8(h.MsgFlags))
	}
	if h.MsgFlags.private() && !h.MsgFlags.authenticated() {
		return &UnsupportedSecurityLevelError{Msg: "privacy requires authentication"}
	}
	if h.SecurityModel == 0 {
		return requestInvalid("msgSecurityModel must be set")
	}
	return nil
}

func (h *HeaderData) marshal() ([]byte, error) {
	var buf bytes.Buffer
	if err := marshalIntegerTLV(&buf, h.MsgID); err != nil {
		return nil, err
	}
	if err := marshalIntegerTLV(&buf, h.MsgMaxSize); err != nil {
		return nil, err
	}
	if err := marshalTLV(&buf, byte(OctetString), []byte{byte(h.MsgFlags)}); err != nil {
		return nil, err
	}
	if err := marshalIntegerTLV(&buf, int(h.SecurityModel)); err != nil {
		return nil, err
	}
	return wrapTLV(byte(Sequence), buf.Bytes())
}

// unmarshalHeaderData returns whatever it could read together with any
// error, so that a message with a bad header can still be correlated by
// msgID.
func unmarshalHeaderData(r *berReader) (*HeaderData, error) {
	seq, err := r.readSequence("msgGlobalData")
	if err != nil {
		return nil, &ResponseInvalidError{Msg: "header", Err: err}
	}
	h := &HeaderData{}
	if h.MsgID, err = seq.readInt31("msgID"); err != nil {
		return nil, &ResponseInvalidError{Msg: "header", Err: err}
	}
	maxSize, err := seq.readInt("msgMaxSize")
	if err != nil {
		return h, &ResponseInvalidError{Msg: "header", Err: err}
	}
	if maxSize < minMsgMaxSize || maxSize > math.MaxInt32 {
		return h, responseInvalid("msgMaxSize %d out of range", maxSize)
	}
	h.MsgMaxSize = int(maxSize)
	flags, err := seq.readOctets("msgFlags")
	if err != nil {
		return h, &ResponseInvalidError{Msg: "header", Err: err}
	}
	if len(flags) != 1 {
		return h, responseInvalid("msgFlags of length %d", len(flags))
	}
	h.MsgFlags = SnmpV3MsgFlags(flags[0])
	if h.MsgFlags.private() && !h.MsgFlags.authenticated() {
		return h, responseInvalid("msgFlags 0x%02x: privacy without authentication", flags[0])
	}
	model, err := seq.readInt("msgSecurityModel")
	if err != nil {
		return h, &ResponseInvalidError{Msg: "header", Err: err}
	}
	if model < 1 || model > math.MaxInt32 {
		return h, responseInvalid("msgSecurityModel %d out of range", model)
	}
	if _, ok := securityModels[SnmpV3SecurityModel(model)]; !ok || model > math.MaxUint8 {
		return h, &UnsupportedSecurityModelError{Model: int(model)}
	}
	h.SecurityModel = SnmpV3SecurityModel(model)
	return h, nil
}

// ScopedPDU is the part of an SNMPv3 message protected by privacy.
type ScopedPDU struct {
	ContextEngineID string
	ContextName     string
	PDU             PDU
}

func (s *ScopedPDU) marshal() ([]byte, error) {
	pdu, err := marshalPDU(s.PDU)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err = marshalTLV(&buf, byte(OctetString), []byte(s.ContextEngineID)); err != nil {
		return nil, err
	}
	if err = marshalTLV(&buf, byte(OctetString), []byte(s.ContextName)); err != nil {
		return nil, err
	}
	buf.Write(pdu)
	return wrapTLV(byte(Sequence), buf.Bytes())
}

// unmarshalScopedPDU decodes the ScopedPDU at the start of data. Bytes after
// it, such as cipher padding, are ignored.
func unmarshalScopedPDU(data []byte) (*ScopedPDU, error) {
	r := newBerReader(data)
	seq, err := r.readSequence("scopedPDU")
	if err != nil {
		return nil, &ResponseInvalidError{Msg: "scopedPDU", Err: err}
	}
	engineID, err := seq.readOctets("contextEngineID")
	if err != nil {
		return nil, &ResponseInvalidError{Msg: "scopedPDU", Err: err}
	}
	name, err := seq.readOctets("contextName")
	if err != nil {
		return nil, &ResponseInvalidError{Msg: "scopedPDU", Err: err}
	}
	if !seq.more() {
		return nil, responseInvalid("scopedPDU has no PDU")
	}
	pdu, err := unmarshalPDU(seq.data[seq.offset():])
	if err != nil {
		return nil, err
	}
	return &ScopedPDU{ContextEngineID: string(engineID), ContextName: string(name), PDU: pdu}, nil
}

// v3Message is an SNMPv3 message, RFC 3412 section 6. Exactly one of
// ScopedPDU and EncryptedPDU is set.
type v3Message struct {
	Header             *HeaderData
	SecurityParameters []byte
	ScopedPDU          *ScopedPDU
	EncryptedPDU       []byte
}

// marshal returns the encoded message and the offset at which the contents
// of msgSecurityParameters begin.
func (m *v3Message) marshal() ([]byte, int, error) {
	var body bytes.Buffer
	if err := marshalIntegerTLV(&body, int(Version3)); err != nil {
		return nil, 0, err
	}
	header, err := m.Header.marshal()
	if err != nil {
		return nil, 0, err
	}
	body.Write(header)

	secLen, err := marshalLength(len(m.SecurityParameters))
	if err != nil {
		return nil, 0, err
	}
	body.WriteByte(byte(OctetString))
	body.Write(secLen)
	secOffset := body.Len()
	body.Write(m.SecurityParameters)

	switch {
	case m.EncryptedPDU != nil:
		err = marshalTLV(&body, byte(OctetString), m.EncryptedPDU)
	case m.ScopedPDU != nil:
		var scoped []byte
		if scoped, err = m.ScopedPDU.marshal(); err == nil {
			body.Write(scoped)
		}
	default:
		err = requestInvalid("message has no scoped PDU")
	}
	if err != nil {
		return nil, 0, err
	}

	out, err := wrapTLV(byte(Sequence), body.Bytes())
	if err != nil {
		return nil, 0, err
	}
	return out, secOffset + len(out) - body.Len(), nil
}

// unmarshalV3Message decodes data. It also returns the offset of the
// security parameters contents within data. On error the header is
// returned when it was read far enough to recover msgID.
func unmarshalV3Message(data []byte) (*v3Message, int, error) {
	r, version, err := openMessage(data)
	if err != nil {
		return nil, 0, err
	}
	if version != Version3 {
		return nil, 0, responseInvalid("unexpected version %s", version)
	}
	_, outerCursor, _ := parseLength(data)

	m := &v3Message{}
	m.Header, err = unmarshalHeaderData(r)
	if err != nil {
		return m, 0, err
	}

	secStart := r.offset()
	_, secCursor, err := parseLength(r.data[secStart:])
	if err != nil {
		return m, 0, &ResponseInvalidError{Msg: "msgSecurityParameters", Err: err}
	}
	if m.SecurityParameters, err = r.readOctets("msgSecurityParameters"); err != nil {
		return m, 0, &ResponseInvalidError{Msg: "message", Err: err}
	}
	secOffset := outerCursor + secStart + secCursor

	if !r.more() {
		return m, 0, responseInvalid("message has no msgData")
	}
	if OctetString == Asn1BER(r.data[r.offset()]) {
		if m.EncryptedPDU, err = r.readOctets("encryptedPDU"); err != nil {
			return m, 0, &ResponseInvalidError{Msg: "message", Err: err}
		}
		if !m.Header.MsgFlags.private() {
			return m, 0, responseInvalid("encrypted PDU without privacy flag")
		}
		return m, secOffset, nil
	}
	if m.Header.MsgFlags.private() {
		return m, 0, responseInvalid("plaintext PDU with privacy flag set")
	}
	if m.ScopedPDU, err = unmarshalScopedPDU(r.data[r.offset():]); err != nil {
		return m, 0, err
	}
	return m, secOffset, nil
}

// securityModel is the strategy a v3 message delegates its security
// parameters to, RFC 3411 section 4.4.
type securityModel interface {
	// generateRequestMsg encodes a complete outgoing message.
	generateRequestMsg(header *HeaderData, scoped *ScopedPDU, opts securityOptions) ([]byte, error)

	// processIncomingMsg verifies and, if needed, decrypts an incoming
	// message, returning its scoped PDU and security parameters.
	processIncomingMsg(msg *v3Message, whole []byte, secOffset int) (*ScopedPDU, *UsmSecurityParameters, error)

	// authoritativeEngine is the engine ID messages to dest go to, empty
	// before discovery; synchronized also requires a time window for it.
	authoritativeEngine(dest string) string
	synchronized(dest string) bool

	// learn adopts engine ID, boots and time from a discovery response or
	// a report sent by dest.
	learn(dest string, sp *UsmSecurityParameters)
}

// securityOptions select how the authoritative engine is addressed for a
// single outgoing message.
type securityOptions struct {
	// dest is the address of the engine the message is sent to.
	dest string
	// discovery sends an empty engine ID and user name.
	discovery bool
	// zeroTime sends boots and time as 0, forcing a time window report.
	zeroTime bool
	// local marks notifications where this engine is authoritative.
	local bool
}

// securityModels maps msgSecurityModel to a constructor.
var securityModels = map[SnmpV3SecurityModel]func(x *Session) (securityModel, error){
	UserSecurityModel: newUSM,
}

func lookupSecurityModel(x *Session, model SnmpV3SecurityModel) (securityModel, error) {
	ctor, ok := securityModels[model]
	if !ok {
		return nil, &UnsupportedSecurityModelError{Model: int(model)}
	}
	return ctor(x)
}

// prepareOutgoingMessage is the v3 message processing model for messages
// originated by this engine.
func prepareOutgoingMessage(sm securityModel, header *HeaderData, scoped *ScopedPDU, opts securityOptions) ([]byte, error) {
	switch scoped.PDU.Type() {
	case GetResponse, Report:
		return nil, &UnimplementedError{Feature: fmt.Sprintf("sending %s as a v3 responder", scoped.PDU.Type())}
	}
	return sm.generateRequestMsg(header, scoped, opts)
}
