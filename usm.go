// Copyright 2012-2016 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package netsnmp

import (
	"bytes"
	"fmt"
	"math"
	"sync"
)

const maxUserNameLength = 32

// UsmUser is an entry of the local configuration datastore: the user a
// session acts as and its credentials.
type UsmUser struct {
	UserName                 string
	AuthenticationProtocol   SnmpV3AuthProtocol
	AuthenticationPassphrase string
	PrivacyProtocol          SnmpV3PrivProtocol
	PrivacyPassphrase        string
}

// validate checks that u can provide the security level asked for by flags.
func (u *UsmUser) validate(flags SnmpV3MsgFlags) error {
	if flags.private() {
		if u.PrivacyProtocol <= NoPriv {
			return &UnsupportedSecurityLevelError{Msg: "PrivacyProtocol is required"}
		}
		if u.PrivacyPassphrase == "" {
			return &UnsupportedSecurityLevelError{Msg: "PrivacyPassphrase is required"}
		}
	}
	if flags.authenticated() {
		if u.AuthenticationProtocol <= NoAuth {
			return &UnsupportedSecurityLevelError{Msg: "AuthenticationProtocol is required"}
		}
		if u.AuthenticationPassphrase == "" {
			return &UnsupportedSecurityLevelError{Msg: "AuthenticationPassphrase is required"}
		}
	}
	if u.UserName == "" {
		return &UnsupportedSecurityLevelError{Msg: "UserName is required"}
	}
	if len(u.UserName) > maxUserNameLength {
		return requestInvalid("user name longer than %d octets", maxUserNameLength)
	}
	return nil
}

// UsmSecurityParameters is msgSecurityParameters for the User Security
// Model, RFC 3414 section 2.4.
type UsmSecurityParameters struct {
	AuthoritativeEngineID    string
	AuthoritativeEngineBoots uint32
	AuthoritativeEngineTime  uint32
	UserName                 string
	AuthenticationParameters []byte
	PrivacyParameters        []byte
}

// NewUsmSecurityParameters returns validated security parameters.
func NewUsmSecurityParameters(engineID string, boots, engineTime uint32, userName string, authParams, privParams []byte) (*UsmSecurityParameters, error) {
	sp := &UsmSecurityParameters{
		AuthoritativeEngineID:    engineID,
		AuthoritativeEngineBoots: boots,
		AuthoritativeEngineTime:  engineTime,
		UserName:                 userName,
		AuthenticationParameters: authParams,
		PrivacyParameters:        privParams,
	}
	if err := sp.validate(); err != nil {
		return nil, &RequestInvalidError{Msg: "security parameters", Err: err}
	}
	return sp, nil
}

func (sp *UsmSecurityParameters) validate() error {
	if sp.AuthoritativeEngineBoots > math.MaxInt32 {
		return fmt.Errorf("msgAuthoritativeEngineBoots %d out of range", sp.AuthoritativeEngineBoots)
	}
	if sp.AuthoritativeEngineTime > math.MaxInt32 {
		return fmt.Errorf("msgAuthoritativeEngineTime %d out of range", sp.AuthoritativeEngineTime)
	}
	if len(sp.UserName) > maxUserNameLength {
		return fmt.Errorf("msgUserName longer than %d octets", maxUserNameLength)
	}
	return nil
}

// marshal returns the encoded parameters and the offset of the
// msgAuthenticationParameters contents within them.
func (sp *UsmSecurityParameters) marshal() ([]byte, int, error) {
	var buf bytes.Buffer

	if err := marshalTLV(&buf, byte(OctetString), []byte(sp.AuthoritativeEngineID)); err != nil {
		return nil, 0, err
	}
	if err := marshalIntegerTLV(&buf, int(sp.AuthoritativeEngineBoots)); err != nil {
		return nil, 0, err
	}
	if err := marshalIntegerTLV(&buf, int(sp.AuthoritativeEngineTime)); err != nil {
		return nil, 0, err
	}
	if err := marshalTLV(&buf, byte(OctetString), []byte(sp.UserName)); err != nil {
		return nil, 0, err
	}

	authLen, err := marshalLength(len(sp.AuthenticationParameters))
	if err != nil {
		return nil, 0, err
	}
	buf.WriteByte(byte(OctetString))
	buf.Write(authLen)
	authParamStart := buf.Len()
	buf.Write(sp.AuthenticationParameters)

	if err = marshalTLV(&buf, byte(OctetString), sp.PrivacyParameters); err != nil {
		return nil, 0, err
	}

	out, err := wrapTLV(byte(Sequence), buf.Bytes())
	if err != nil {
		return nil, 0, err
	}
	return out, authParamStart + len(out) - buf.Len(), nil
}

// unmarshalUsmSecurityParameters decodes msgSecurityParameters and returns
// the offset of the msgAuthenticationParameters contents within data.
func unmarshalUsmSecurityParameters(data []byte) (*UsmSecurityParameters, int, error) {
	wrap := func(err error) error {
		return &ResponseInvalidError{Msg: "USM security parameters", Err: err}
	}
	tag, body, _, err := parseTLV(data)
	if err != nil {
		return nil, 0, wrap(err)
	}
	if PDUType(tag) != Sequence {
		return nil, 0, wrap(fmt.Errorf("expected sequence, got tag 0x%02x", tag))
	}
	_, cursor, _ := parseLength(data)
	r := newBerReader(body)

	sp := &UsmSecurityParameters{}
	engineID, err := r.readOctets("msgAuthoritativeEngineID")
	if err != nil {
		return nil, 0, wrap(err)
	}
	sp.AuthoritativeEngineID = string(engineID)

	boots, err := r.readInt("msgAuthoritativeEngineBoots")
	if err != nil {
		return nil, 0, wrap(err)
	}
	engineTime, err := r.readInt("msgAuthoritativeEngineTime")
	if err != nil {
		return nil, 0, wrap(err)
	}
	if boots < 0 || boots > math.MaxInt32 || engineTime < 0 || engineTime > math.MaxInt32 {
		return nil, 0, wrap(fmt.Errorf("boots %d / time %d out of range", boots, engineTime))
	}
	sp.AuthoritativeEngineBoots = uint32(boots)
	sp.AuthoritativeEngineTime = uint32(engineTime)

	userName, err := r.readOctets("msgUserName")
	if err != nil {
		return nil, 0, wrap(err)
	}
	sp.UserName = string(userName)

	authStart := r.offset()
	_, authCursor, err := parseLength(body[authStart:])
	if err != nil {
		return nil, 0, wrap(err)
	}
	if sp.AuthenticationParameters, err = r.readOctets("msgAuthenticationParameters"); err != nil {
		return nil, 0, wrap(err)
	}
	if sp.PrivacyParameters, err = r.readOctets("msgPrivacyParameters"); err != nil {
		return nil, 0, wrap(err)
	}
	if err = sp.validate(); err != nil {
		return nil, 0, wrap(err)
	}
	return sp, cursor + authStart + authCursor, nil
}

// usm is the User-based Security Model acting as a non-authoritative
// engine for requests and as the authoritative one for notifications.
type usm struct {
	user   UsmUser
	logger Logger

	mu      sync.Mutex
	engines map[string]string      // destination address -> authoritative engine ID
	windows map[string]*TimeWindow // engine ID -> time window
	local   *TimeWindow
}

func newUSM(x *Session) (securityModel, error) {
	u := &usm{
		user:    x.User,
		logger:  x.Logger,
		engines: make(map[string]string),
		windows: make(map[string]*TimeWindow),
		local:   NewTimeWindow(x.LocalEngineID, x.LocalEngineBoots, 0),
	}
	if x.AuthoritativeEngineID != "" && x.target != nil {
		u.engines[x.target.String()] = x.AuthoritativeEngineID
		u.windows[x.AuthoritativeEngineID] = NewTimeWindow(x.AuthoritativeEngineID,
			x.AuthoritativeEngineBoots, x.AuthoritativeEngineTime)
	}
	return u, nil
}

// authoritativeEngine is the engine ID messages to dest are addressed to,
// empty until discovery.
func (u *usm) authoritativeEngine(dest string) string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.engines[dest]
}

func (u *usm) synchronized(dest string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	engineID, ok := u.engines[dest]
	if !ok {
		return false
	}
	_, ok = u.windows[engineID]
	return ok
}

// learn adopts the engine parameters carried by a discovery response or a
// report from dest.
func (u *usm) learn(dest string, sp *UsmSecurityParameters) {
	if sp == nil || sp.AuthoritativeEngineID == "" {
		return
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.engines[dest] = sp.AuthoritativeEngineID
	if w, ok := u.windows[sp.AuthoritativeEngineID]; ok {
		w.Update(sp.AuthoritativeEngineBoots, sp.AuthoritativeEngineTime)
	} else {
		u.windows[sp.AuthoritativeEngineID] = NewTimeWindow(sp.AuthoritativeEngineID,
			sp.AuthoritativeEngineBoots, sp.AuthoritativeEngineTime)
	}
	u.logger.Printf("usm: %s is engine %x boots %d time %d", dest, sp.AuthoritativeEngineID,
		sp.AuthoritativeEngineBoots, sp.AuthoritativeEngineTime)
}

func (u *usm) window(engineID string, boots, engineTime uint32) *TimeWindow {
	u.mu.Lock()
	defer u.mu.Unlock()
	w, ok := u.windows[engineID]
	if !ok {
		w = NewTimeWindow(engineID, boots, engineTime)
		u.windows[engineID] = w
	}
	return w
}

// generateRequestMsg follows RFC 3414 section 3.1.1.
func (u *usm) generateRequestMsg(header *HeaderData, scoped *ScopedPDU, opts securityOptions) ([]byte, error) {
	flags := header.MsgFlags
	user := u.user
	if opts.discovery {
		if flags.authenticated() {
			return nil, &UnsupportedSecurityLevelError{Msg: "discovery must be unauthenticated"}
		}
		user = UsmUser{}
	} else if err := user.validate(flags); err != nil {
		return nil, err
	}

	// engine ID, boots and time
	var engineID string
	var boots, engineTime uint32
	switch {
	case opts.discovery:
	case opts.local:
		engineID = u.local.EngineID()
		if flags.authenticated() {
			boots, engineTime = u.local.Boots(), u.local.Time()
		}
	default:
		u.mu.Lock()
		engineID = u.engines[opts.dest]
		w := u.windows[engineID]
		u.mu.Unlock()
		if flags.authenticated() && !opts.zeroTime && w != nil {
			boots, engineTime = w.Boots(), w.Time()
		}
	}
	if flags.authenticated() && engineID == "" {
		return nil, requestInvalid("authoritative engine ID is unknown")
	}

	// privacy
	var encrypted, privParams []byte
	if flags.private() {
		proto, err := lookupPrivacyProtocol(user.PrivacyProtocol)
		if err != nil {
			return nil, err
		}
		key, err := localizedKey(user.AuthenticationProtocol, user.PrivacyPassphrase, engineID)
		if err != nil {
			return nil, &EncryptionError{Msg: "privacy key", Err: err}
		}
		plaintext, err := scoped.marshal()
		if err != nil {
			return nil, err
		}
		if encrypted, privParams, err = proto.Encrypt(plaintext, key, boots, engineTime); err != nil {
			return nil, &EncryptionError{Msg: user.PrivacyProtocol.String(), Err: err}
		}
	}

	// authentication placeholder
	var authParams []byte
	if flags.authenticated() {
		authParams = make([]byte, authParamsLength)
	}
	sp, err := NewUsmSecurityParameters(engineID, boots, engineTime, user.UserName, authParams, privParams)
	if err != nil {
		return nil, err
	}
	spBytes, authOffset, err := sp.marshal()
	if err != nil {
		return nil, err
	}

	msg := &v3Message{Header: header, SecurityParameters: spBytes}
	if flags.private() {
		msg.EncryptedPDU = encrypted
	} else {
		msg.ScopedPDU = scoped
	}
	whole, secOffset, err := msg.marshal()
	if err != nil {
		return nil, err
	}

	if flags.authenticated() {
		key, err := localizedKey(user.AuthenticationProtocol, user.AuthenticationPassphrase, engineID)
		if err != nil {
			return nil, &RequestInvalidError{Msg: "authentication key", Err: err}
		}
		digest, err := computeDigest(user.AuthenticationProtocol, key, whole)
		if err != nil {
			return nil, err
		}
		copy(whole[secOffset+authOffset:secOffset+authOffset+authParamsLength], digest)
	}
	return whole, nil
}

// processIncomingMsg follows RFC 3414 section 3.2.
func (u *usm) processIncomingMsg(msg *v3Message, whole []byte, secOffset int) (*ScopedPDU, *UsmSecurityParameters, error) {
	sp, authOffset, err := unmarshalUsmSecurityParameters(msg.SecurityParameters)
	if err != nil {
		return nil, nil, err
	}
	flags := msg.Header.MsgFlags

	if flags.authenticated() {
		if sp.UserName != u.user.UserName {
			return nil, sp, responseInvalid("unknown user name %q", sp.UserName)
		}
		if err = u.user.validate(flags); err != nil {
			return nil, sp, err
		}
		if len(sp.AuthenticationParameters) != authParamsLength {
			return nil, sp, responseInvalid("msgAuthenticationParameters of length %d", len(sp.AuthenticationParameters))
		}
		key, err := localizedKey(u.user.AuthenticationProtocol, u.user.AuthenticationPassphrase, sp.AuthoritativeEngineID)
		if err != nil {
			return nil, sp, &ResponseInvalidError{Msg: "authentication key", Err: err}
		}

		// the digest is computed with the authentication parameters zeroed
		start := secOffset + authOffset
		zeroed := make([]byte, len(whole))
		copy(zeroed, whole)
		copy(zeroed[start:start+authParamsLength], make([]byte, authParamsLength))

		ok, err := isAuthentic(u.user.AuthenticationProtocol, key, zeroed, sp.AuthenticationParameters)
		if err != nil {
			return nil, sp, err
		}
		if !ok {
			return nil, sp, responseInvalid("wrong digest")
		}

		w := u.window(sp.AuthoritativeEngineID, sp.AuthoritativeEngineBoots, sp.AuthoritativeEngineTime)
		if err = w.Check(sp.AuthoritativeEngineBoots, sp.AuthoritativeEngineTime); err != nil {
			return nil, sp, err
		}
	}

	if !flags.private() {
		return msg.ScopedPDU, sp, nil
	}

	proto, err := lookupPrivacyProtocol(u.user.PrivacyProtocol)
	if err != nil {
		return nil, sp, err
	}
	key, err := localizedKey(u.user.AuthenticationProtocol, u.user.PrivacyPassphrase, sp.AuthoritativeEngineID)
	if err != nil {
		return nil, sp, &EncryptionError{Msg: "privacy key", Err: err}
	}
	plaintext, err := proto.Decrypt(msg.EncryptedPDU, key, sp.PrivacyParameters,
		sp.AuthoritativeEngineBoots, sp.AuthoritativeEngineTime)
	if err != nil {
		return nil, sp, &EncryptionError{Msg: "decrypt", Err: err}
	}
	scoped, err := unmarshalScopedPDU(plaintext)
	if err != nil {
		return nil, sp, &EncryptionError{Msg: "decrypted scoped PDU is malformed", Err: err}
	}
	return scoped, sp, nil
}
