// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package netsnmp

import (
	"errors"
	"fmt"
)

// ErrSessionClosed is returned to every request still pending when the
// session is closed.
var ErrSessionClosed = errors.New("socket closed")

// ResponseInvalidError is returned when a response is malformed or does not
// match the request it was correlated with.
type ResponseInvalidError struct {
	Msg string
	Err error
}

func (e *ResponseInvalidError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid response: %s: %v", e.Msg, e.Err)
	}
	return "invalid response: " + e.Msg
}

func (e *ResponseInvalidError) Unwrap() error { return e.Err }

// RequestInvalidError is returned when a request cannot be encoded.
type RequestInvalidError struct {
	Msg string
	Err error
}

func (e *RequestInvalidError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid request: %s: %v", e.Msg, e.Err)
	}
	return "invalid request: " + e.Msg
}

func (e *RequestInvalidError) Unwrap() error { return e.Err }

// RequestFailedError carries a non-zero error-status returned by an agent.
// OID is the offending variable when the error-index pointed at one.
type RequestFailedError struct {
	Status SNMPError
	Index  int
	OID    string
	Msg    string
}

func (e *RequestFailedError) Error() string {
	switch {
	case e.Msg != "":
		return "request failed: " + e.Msg
	case e.OID != "":
		return fmt.Sprintf("request failed: %s: %s", e.Status, e.OID)
	default:
		return fmt.Sprintf("request failed: %s", e.Status)
	}
}

// RequestTimedOutError is returned once the retry budget of a request is
// exhausted without a matching response.
type RequestTimedOutError struct {
	Attempts int
}

func (e *RequestTimedOutError) Error() string {
	return fmt.Sprintf("request timed out after %d attempt(s)", e.Attempts)
}

// UnsupportedSecurityLevelError is returned when a v3 message asks for a
// security level that cannot be provided.
type UnsupportedSecurityLevelError struct {
	Msg string
}

func (e *UnsupportedSecurityLevelError) Error() string {
	return "unsupported security level: " + e.Msg
}

// UnsupportedSecurityModelError is returned for a msgSecurityModel with no
// registered implementation.
type UnsupportedSecurityModelError struct {
	Model int
}

func (e *UnsupportedSecurityModelError) Error() string {
	return fmt.Sprintf("unsupported security model: %d", e.Model)
}

// EncryptionError is returned when the privacy transform fails.
type EncryptionError struct {
	Msg string
	Err error
}

func (e *EncryptionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("encryption error: %s: %v", e.Msg, e.Err)
	}
	return "encryption error: " + e.Msg
}

func (e *EncryptionError) Unwrap() error { return e.Err }

// NotInTimeWindowError is returned when an authoritative engine reports
// boots and time outside the anti-replay window.
type NotInTimeWindowError struct {
	EngineID string
	Boots    uint32
	Time     uint32
}

func (e *NotInTimeWindowError) Error() string {
	return fmt.Sprintf("not in time window: engine %x boots %d time %d", e.EngineID, e.Boots, e.Time)
}

// UnimplementedError is returned when a capability is named but not
// available, such as an unregistered privacy protocol.
type UnimplementedError struct {
	Feature string
}

func (e *UnimplementedError) Error() string {
	return "not implemented: " + e.Feature
}

func responseInvalid(format string, args ...any) error {
	return &ResponseInvalidError{Msg: fmt.Sprintf(format, args...)}
}

func requestInvalid(format string, args ...any) error {
	return &RequestInvalidError{Msg: fmt.Sprintf(format, args...)}
}
