// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package netsnmp

import (
	"fmt"
	"strings"
)

// SnmpVersion 1, 2c and 3 implemented
type SnmpVersion uint8

// SnmpVersion 1, 2c and 3 implemented
const (
	Version1  SnmpVersion = 0x0
	Version2c SnmpVersion = 0x1
	Version3  SnmpVersion = 0x3
)

func (s SnmpVersion) String() string {
	switch s {
	case Version1:
		return "1"
	case Version2c:
		return "2c"
	case Version3:
		return "3"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Asn1BER is the type of the SNMP PDU
type Asn1BER byte

// Asn1BER's - http://www.ietf.org/rfc/rfc1442.txt
const (
	EndOfContents    Asn1BER = 0x00
	UnknownType      Asn1BER = 0x00
	Boolean          Asn1BER = 0x01
	Integer          Asn1BER = 0x02
	BitString        Asn1BER = 0x03
	OctetString      Asn1BER = 0x04
	Null             Asn1BER = 0x05
	ObjectIdentifier Asn1BER = 0x06
	IPAddress        Asn1BER = 0x40
	Counter32        Asn1BER = 0x41
	Gauge32          Asn1BER = 0x42
	TimeTicks        Asn1BER = 0x43
	Opaque           Asn1BER = 0x44
	Counter64        Asn1BER = 0x46
	NoSuchObject     Asn1BER = 0x80
	NoSuchInstance   Asn1BER = 0x81
	EndOfMibView     Asn1BER = 0x82
)

var asn1BERNames = map[Asn1BER]string{
	Boolean:          "Boolean",
	Integer:          "Integer",
	BitString:        "BitString",
	OctetString:      "OctetString",
	Null:             "Null",
	ObjectIdentifier: "ObjectIdentifier",
	IPAddress:        "IpAddress",
	Counter32:        "Counter32",
	Gauge32:          "Gauge32",
	TimeTicks:        "TimeTicks",
	Opaque:           "Opaque",
	Counter64:        "Counter64",
	NoSuchObject:     "NoSuchObject",
	NoSuchInstance:   "NoSuchInstance",
	EndOfMibView:     "EndOfMibView",
}

// textual aliases accepted by LookupAsn1BER in addition to the canonical names
var asn1BERAliases = map[string]Asn1BER{
	"integer32":  Integer,
	"counter":    Counter32,
	"gauge":      Gauge32,
	"unsigned32": Gauge32,
	"ipaddress":  IPAddress,
	"oid":        ObjectIdentifier,
	"string":     OctetString,
}

func (t Asn1BER) String() string {
	if t == UnknownType {
		return "Unknown"
	}
	if name, ok := asn1BERNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Asn1BER(0x%02x)", byte(t))
}

// LookupAsn1BER returns the tag for a type name such as "Counter32" or
// "Unsigned32". Matching is case insensitive.
func LookupAsn1BER(name string) (Asn1BER, bool) {
	for t, n := range asn1BERNames {
		if strings.EqualFold(n, name) {
			return t, true
		}
	}
	t, ok := asn1BERAliases[strings.ToLower(name)]
	return t, ok
}

// IsExceptionType reports whether t is one of the varbind exception
// placeholders that never carry a value.
func (t Asn1BER) IsExceptionType() bool {
	return t == NoSuchObject || t == NoSuchInstance || t == EndOfMibView
}

// PDUType describes which SNMP Protocol Data Unit is being sent.
type PDUType byte

// The currently supported PDUType's
const (
	Sequence       PDUType = 0x30
	GetRequest     PDUType = 0xa0
	GetNextRequest PDUType = 0xa1
	GetResponse    PDUType = 0xa2
	SetRequest     PDUType = 0xa3
	Trap           PDUType = 0xa4 // v1
	GetBulkRequest PDUType = 0xa5
	InformRequest  PDUType = 0xa6
	SNMPv2Trap     PDUType = 0xa7 // v2c, v3
	Report         PDUType = 0xa8 // v3
)

var pduTypeNames = map[PDUType]string{
	Sequence:       "Sequence",
	GetRequest:     "GetRequest",
	GetNextRequest: "GetNextRequest",
	GetResponse:    "GetResponse",
	SetRequest:     "SetRequest",
	Trap:           "Trap",
	GetBulkRequest: "GetBulkRequest",
	InformRequest:  "InformRequest",
	SNMPv2Trap:     "SNMPv2Trap",
	Report:         "Report",
}

func (p PDUType) String() string {
	if name, ok := pduTypeNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PDUType(0x%02x)", byte(p))
}

// LookupPDUType returns the PDUType called name.
func LookupPDUType(name string) (PDUType, bool) {
	for p, n := range pduTypeNames {
		if n == name {
			return p, true
		}
	}
	return 0, false
}

// SNMPError is the type for the error-status field of a response PDU.
type SNMPError uint8

// SNMP Errors
const (
	NoError             SNMPError = iota // No error occurred. This code is also used in all request PDUs, since they have no error status to report.
	TooBig                               // The size of the Response-PDU would be too large to transport.
	NoSuchName                           // The name of a requested object was not found.
	BadValue                             // A value in the request didn't match the structure that the recipient of the request had for the object.
	ReadOnly                             // An attempt was made to set a variable that has an Access value indicating that it is read-only.
	GenErr                               // An error occurred other than one indicated by a more specific error code in this table.
	NoAccess                             // Access was denied to the object for security reasons.
	WrongType                            // The object type in a variable binding is incorrect for the object.
	WrongLength                          // A variable binding specifies a length incorrect for the object.
	WrongEncoding                        // A variable binding specifies an encoding incorrect for the object.
	WrongValue                           // The value given in a variable binding is not possible for the object.
	NoCreation                           // A specified variable does not exist and cannot be created.
	InconsistentValue                    // A variable binding specifies a value that could be held by the variable but cannot be assigned to it at this time.
	ResourceUnavailable                  // An attempt to set a variable required a resource that is not available.
	CommitFailed                         // An attempt to set a particular variable failed.
	UndoFailed                           // An attempt to set a particular variable as part of a group of variables failed, and the attempt to then undo the setting of other variables was not successful.
	AuthorizationError                   // A problem occurred in authorization.
	NotWritable                          // The variable cannot be written or created.
	InconsistentName                     // The name in a variable binding specifies a variable that does not exist.
)

var snmpErrorNames = [...]string{
	"NoError",
	"TooBig",
	"NoSuchName",
	"BadValue",
	"ReadOnly",
	"GeneralError",
	"NoAccess",
	"WrongType",
	"WrongLength",
	"WrongEncoding",
	"WrongValue",
	"NoCreation",
	"InconsistentValue",
	"ResourceUnavailable",
	"CommitFailed",
	"UndoFailed",
	"AuthorizationError",
	"NotWritable",
	"InconsistentName",
}

func (e SNMPError) String() string {
	if int(e) < len(snmpErrorNames) {
		return snmpErrorNames[e]
	}
	return fmt.Sprintf("Unknown(%d)", uint8(e))
}

// LookupSNMPError returns the error-status called name, eg "NoSuchName".
func LookupSNMPError(name string) (SNMPError, bool) {
	for i, n := range snmpErrorNames {
		if n == name {
			return SNMPError(i), true
		}
	}
	return 0, false
}

// SnmpV1TrapType is the generic-trap field of a v1 Trap-PDU.
type SnmpV1TrapType int

// Generic trap types, RFC 1157 section 4.1.6
const (
	ColdStart SnmpV1TrapType = iota
	WarmStart
	LinkDown
	LinkUp
	AuthenticationFailure
	EgpNeighborLoss
	EnterpriseSpecific
)

var trapTypeNames = [...]string{
	"coldStart",
	"warmStart",
	"linkDown",
	"linkUp",
	"authenticationFailure",
	"egpNeighborLoss",
	"enterpriseSpecific",
}

func (t SnmpV1TrapType) String() string {
	if t >= 0 && int(t) < len(trapTypeNames) {
		return trapTypeNames[t]
	}
	return fmt.Sprintf("SnmpV1TrapType(%d)", int(t))
}

// LookupTrapType returns the generic trap called name, eg "linkDown".
func LookupTrapType(name string) (SnmpV1TrapType, bool) {
	for i, n := range trapTypeNames {
		if strings.EqualFold(n, name) {
			return SnmpV1TrapType(i), true
		}
	}
	return 0, false
}

// SnmpV3MsgFlags contains various message flags to describe Authentication, Privacy, and whether a report PDU must be sent.
type SnmpV3MsgFlags uint8

// Possible values of SnmpV3MsgFlags
const (
	NoAuthNoPriv SnmpV3MsgFlags = 0x0 // No authentication, and no privacy
	AuthNoPriv   SnmpV3MsgFlags = 0x1 // Authentication and no privacy
	AuthPriv     SnmpV3MsgFlags = 0x3 // Authentication and privacy
	Reportable   SnmpV3MsgFlags = 0x4 // Report PDU must be sent.
)

const (
	flagAuth = 0x1
	flagPriv = 0x2
)

func (f SnmpV3MsgFlags) String() string {
	var s string
	switch f & AuthPriv {
	case NoAuthNoPriv:
		s = "NoAuthNoPriv"
	case AuthNoPriv:
		s = "AuthNoPriv"
	case AuthPriv:
		s = "AuthPriv"
	default:
		s = fmt.Sprintf("0x%02x", uint8(f&AuthPriv))
	}
	if f&Reportable != 0 {
		s += "|Reportable"
	}
	return s
}

func (f SnmpV3MsgFlags) authenticated() bool { return f&flagAuth != 0 }
func (f SnmpV3MsgFlags) private() bool       { return f&flagPriv != 0 }

// SnmpV3SecurityModel describes the security model used by a SnmpV3 connection
type SnmpV3SecurityModel uint8

// UserSecurityModel is the only SnmpV3SecurityModel currently implemented.
const (
	UserSecurityModel SnmpV3SecurityModel = 3
)

// well known object identifiers
const (
	sysUpTimeOID   = "1.3.6.1.2.1.1.3.0"
	snmpTrapOID    = "1.3.6.1.6.3.1.1.4.1.0"
	snmpTrapsOID   = "1.3.6.1.6.3.1.1.5"
	enterprisesOID = "1.3.6.1.4.1"

	usmStatsUnsupportedSecLevels = "1.3.6.1.6.3.15.1.1.1.0"
	usmStatsNotInTimeWindows     = "1.3.6.1.6.3.15.1.1.2.0"
	usmStatsUnknownUserNames     = "1.3.6.1.6.3.15.1.1.3.0"
	usmStatsUnknownEngineIDs     = "1.3.6.1.6.3.15.1.1.4.0"
	usmStatsWrongDigests         = "1.3.6.1.6.3.15.1.1.5.0"
	usmStatsDecryptionErrors     = "1.3.6.1.6.3.15.1.1.6.0"
	snmpUnknownSecurityModels    = "1.3.6.1.6.3.11.2.1.1.0"
)

// MaxObjectSubIdentifierValue is the maximum value of a sub-identifier, RFC 2578 3.5
const MaxObjectSubIdentifierValue = 4294967295
