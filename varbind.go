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

// Varbind is a single variable binding.
//
// Values are carried as the following Go types:
//
//	Integer                       int
//	Counter32, Gauge32, TimeTicks uint32
//	Counter64                     uint64
//	OctetString, Opaque           []byte (a string is accepted when encoding)
//	ObjectIdentifier              string, dotted without a leading dot
//	IPAddress                     string, dotted quad
//	Boolean                       bool
//	Null and the exception types  nil
//
// A Varbind with no Type is sent as Null, which is how queries are built.
type Varbind struct {
	// Name is an oid in string format eg "1.3.6.1.4.9.27"
	Name string

	// The type of the value eg Integer
	Type Asn1BER

	// The value to be set by the SNMP set, or the value when
	// receiving a get
	Value any
}

func (vb Varbind) String() string {
	switch {
	case vb.Type.IsExceptionType() || vb.Type == Null || vb.Type == UnknownType:
		return fmt.Sprintf("%s = %s", vb.Name, vb.Type)
	case vb.Type == OctetString || vb.Type == Opaque:
		if b, ok := vb.Value.([]byte); ok {
			return fmt.Sprintf("%s = %s: %q", vb.Name, vb.Type, b)
		}
	}
	return fmt.Sprintf("%s = %s: %v", vb.Name, vb.Type, vb.Value)
}

// ExceptionError returns a RequestFailedError describing an exception
// varbind, or nil for a varbind carrying a value.
func (vb Varbind) ExceptionError() error {
	if !vb.Type.IsExceptionType() {
		return nil
	}
	return &RequestFailedError{Msg: fmt.Sprintf("%s: %s", vb.Type, vb.Name), OID: vb.Name}
}

// marshalVarbinds encodes vbs as a complete VarBindList.
func marshalVarbinds(vbs []Varbind) ([]byte, error) {
	var body bytes.Buffer
	for i, vb := range vbs {
		if err := vb.marshal(&body); err != nil {
			return nil, &RequestInvalidError{Msg: fmt.Sprintf("varbind %d (%s)", i, vb.Name), Err: err}
		}
	}
	return wrapTLV(byte(Sequence), body.Bytes())
}

func (vb Varbind) marshal(buf *bytes.Buffer) error {
	oid, err := marshalObjectIdentifier(vb.Name)
	if err != nil {
		return err
	}
	t := vb.Type
	if t == UnknownType {
		t = Null
	}
	value, err := marshalValue(t, vb.Value)
	if err != nil {
		return err
	}

	var inner bytes.Buffer
	if err = marshalTLV(&inner, byte(ObjectIdentifier), oid); err != nil {
		return err
	}
	if err = marshalTLV(&inner, byte(t), value); err != nil {
		return err
	}
	return marshalTLV(buf, byte(Sequence), inner.Bytes())
}

// marshalValue returns the contents octets for v encoded as t.
func marshalValue(t Asn1BER, v any) ([]byte, error) {
	switch t {
	case Null, NoSuchObject, NoSuchInstance, EndOfMibView:
		return nil, nil
	case Boolean:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("unable to marshal %T as Boolean", v)
		}
		if b {
			return []byte{0xff}, nil
		}
		return []byte{0x00}, nil
	case Integer:
		i, ok := toInt64(v)
		if !ok {
			return nil, fmt.Errorf("unable to marshal %T as Integer", v)
		}
		if i < math.MinInt32 || i > math.MaxInt32 {
			return nil, fmt.Errorf("unable to marshal %d: overflows Integer32", i)
		}
		return marshalInt32(int(i))
	case OctetString, Opaque:
		switch val := v.(type) {
		case []byte:
			return val, nil
		case string:
			return []byte(val), nil
		case nil:
			return nil, nil
		}
		return nil, fmt.Errorf("unable to marshal %T as %s", v, t)
	case ObjectIdentifier:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("unable to marshal %T as ObjectIdentifier", v)
		}
		return marshalObjectIdentifier(s)
	case IPAddress:
		var ip net.IP
		switch val := v.(type) {
		case string:
			ip = net.ParseIP(val)
		case net.IP:
			ip = val
		default:
			return nil, fmt.Errorf("unable to marshal %T as IpAddress", v)
		}
		ip4 := ip.To4()
		if ip4 == nil {
			return nil, fmt.Errorf("invalid IpAddress %v", v)
		}
		return []byte(ip4), nil
	case Counter32, Gauge32, TimeTicks:
		u, ok := toUint64(v)
		if !ok || u > math.MaxUint32 {
			return nil, fmt.Errorf("unable to marshal %v (%T) as %s", v, v, t)
		}
		return marshalUint32(uint32(u)), nil
	case Counter64:
		u, ok := toUint64(v)
		if !ok {
			return nil, fmt.Errorf("unable to marshal %T as Counter64", v)
		}
		return marshalUint64(u), nil
	}
	return nil, fmt.Errorf("unable to marshal unknown type %s", t)
}

// unmarshalVarbinds decodes the contents of a VarBindList.
func unmarshalVarbinds(data []byte) ([]Varbind, error) {
	r := newBerReader(data)
	var vbs []Varbind
	for r.more() {
		seq, err := r.readSequence("varbind")
		if err != nil {
			return nil, &ResponseInvalidError{Msg: "varbind list", Err: err}
		}
		rawOid, err := seq.expect(byte(ObjectIdentifier), "varbind name")
		if err != nil {
			return nil, &ResponseInvalidError{Msg: "varbind list", Err: err}
		}
		name, err := parseObjectIdentifier(rawOid)
		if err != nil {
			return nil, &ResponseInvalidError{Msg: "varbind name", Err: err}
		}
		tag, body, err := seq.next()
		if err != nil {
			return nil, &ResponseInvalidError{Msg: "varbind " + name, Err: err}
		}
		value, err := unmarshalValue(Asn1BER(tag), body)
		if err != nil {
			return nil, &ResponseInvalidError{Msg: "varbind " + name, Err: err}
		}
		vbs = append(vbs, Varbind{Name: name, Type: Asn1BER(tag), Value: value})
	}
	return vbs, nil
}

// unmarshalValue decodes the contents octets body of a value of type t.
func unmarshalValue(t Asn1BER, body []byte) (any, error) {
	switch t {
	case Null, NoSuchObject, NoSuchInstance, EndOfMibView:
		return nil, nil
	case Boolean:
		if len(body) != 1 {
			return nil, fmt.Errorf("boolean of length %d", len(body))
		}
		return body[0] != 0, nil
	case Integer:
		return parseInt32(body)
	case OctetString, Opaque:
		out := make([]byte, len(body))
		copy(out, body)
		return out, nil
	case ObjectIdentifier:
		return parseObjectIdentifier(body)
	case IPAddress:
		if len(body) != 4 {
			return nil, fmt.Errorf("got ipaddress len %d, expected 4", len(body))
		}
		return net.IP(body).String(), nil
	case Counter32, Gauge32, TimeTicks:
		return parseUint32(body)
	case Counter64:
		return parseUint64(body)
	}
	return nil, fmt.Errorf("unknown type 0x%02x", byte(t))
}

func toInt64(v any) (int64, bool) {
	switch val := v.(type) {
	case int:
		return int64(val), true
	case int8:
		return int64(val), true
	case int16:
		return int64(val), true
	case int32:
		return int64(val), true
	case int64:
		return val, true
	case uint8:
		return int64(val), true
	case uint16:
		return int64(val), true
	case uint32:
		return int64(val), true
	}
	return 0, false
}

func toUint64(v any) (uint64, bool) {
	switch val := v.(type) {
	case uint:
		return uint64(val), true
	case uint8:
		return uint64(val), true
	case uint16:
		return uint64(val), true
	case uint32:
		return uint64(val), true
	case uint64:
		return val, true
	case int:
		return uint64(val), val >= 0 //nolint:gosec
	case int32:
		return uint64(val), val >= 0 //nolint:gosec
	case int64:
		return uint64(val), val >= 0 //nolint:gosec
	}
	return 0, false
}
