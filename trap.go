// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package netsnmp

import (
	"context"
	"strconv"
	"strings"
	"time"
)

//
// Sending Traps ie netsnmp acting as an Agent
//

var processStart = time.Now()

// processUptime is the time since the process started, in hundredths of a
// second.
func processUptime() uint32 {
	return uint32(time.Since(processStart) / (10 * time.Millisecond)) //nolint:gosec
}

// Notification is a trap or inform to send.
//
// OID names the notification. When it is empty TrapType selects one of the
// generic traps instead: in SNMPv1 directly, in later versions as
// 1.3.6.1.6.3.1.1.5.<TrapType+1>. An SNMPv1 trap named by OID is sent as
// enterpriseSpecific, with the last component as specific-trap and the rest
// as enterprise.
type Notification struct {
	TrapType SnmpV1TrapType
	OID      string
	Varbinds []Varbind

	// AgentAddress is the SNMPv1 agent-addr, 127.0.0.1 when empty
	AgentAddress string

	// Enterprise is the SNMPv1 enterprise of a generic trap,
	// 1.3.6.1.4.1 when empty
	Enterprise string

	// Uptime is sysUpTime in hundredths of a second, the process uptime
	// when zero
	Uptime uint32
}

func (n *Notification) uptime() uint32 {
	if n.Uptime != 0 {
		return n.Uptime
	}
	return processUptime()
}

func (n *Notification) trapOID() string {
	if oid := normalizeOID(n.OID); oid != "" {
		return oid
	}
	return snmpTrapsOID + "." + strconv.Itoa(int(n.TrapType)+1)
}

// v2Varbinds prepends sysUpTime.0 and snmpTrapOID.0 to the notification's
// varbinds.
func (n *Notification) v2Varbinds() []Varbind {
	vbs := make([]Varbind, 0, len(n.Varbinds)+2)
	vbs = append(vbs,
		Varbind{Name: sysUpTimeOID, Type: TimeTicks, Value: n.uptime()},
		Varbind{Name: snmpTrapOID, Type: ObjectIdentifier, Value: n.trapOID()},
	)
	for _, vb := range n.Varbinds {
		vb.Name = normalizeOID(vb.Name)
		vbs = append(vbs, vb)
	}
	return vbs
}

func (n *Notification) v1PDU() (*TrapV1PDU, error) {
	pdu := &TrapV1PDU{
		Enterprise:   normalizeOID(n.Enterprise),
		AgentAddress: n.AgentAddress,
		GenericTrap:  n.TrapType,
		Timestamp:    n.uptime(),
	}
	if pdu.AgentAddress == "" {
		pdu.AgentAddress = "127.0.0.1"
	}
	if oid := normalizeOID(n.OID); oid != "" {
		i := strings.LastIndexByte(oid, '.')
		if i <= 0 {
			return nil, requestInvalid("trap OID %q has no enterprise", n.OID)
		}
		specific, err := strconv.Atoi(oid[i+1:])
		if err != nil {
			return nil, &RequestInvalidError{Msg: "trap OID " + n.OID, Err: err}
		}
		pdu.GenericTrap = EnterpriseSpecific
		pdu.SpecificTrap = specific
		pdu.Enterprise = oid[:i]
	}
	if pdu.Enterprise == "" {
		pdu.Enterprise = enterprisesOID
	}
	for _, vb := range n.Varbinds {
		vb.Name = normalizeOID(vb.Name)
		pdu.Variables = append(pdu.Variables, vb)
	}
	return pdu, nil
}

// Trap sends n to TrapPort of the target without waiting for any reply.
// SNMPv3 traps are sent with this engine as the authoritative one, see
// Session.LocalEngineID.
func (x *Session) Trap(ctx context.Context, n Notification) error {
	dest, err := x.destination(true)
	if err != nil {
		return err
	}
	var pdu PDU
	if x.Version == Version1 {
		if pdu, err = n.v1PDU(); err != nil {
			return err
		}
	} else {
		pdu = &RequestPDU{PDUType: SNMPv2Trap, Variables: n.v2Varbinds()}
	}
	_, err = x.send(ctx, pdu, requestOptions{dest: dest, local: x.Version == Version3})
	return err
}

// Inform sends n as an InformRequest to TrapPort of the target and waits
// for the acknowledgement, which must echo the sent OIDs in order.
func (x *Session) Inform(ctx context.Context, n Notification) ([]Varbind, error) {
	if x.Version == Version1 {
		return nil, requestInvalid("InformRequest is not available in SNMPv1")
	}
	dest, err := x.destination(true)
	if err != nil {
		return nil, err
	}
	if err = x.synchronize(ctx, dest); err != nil {
		return nil, err
	}
	vbs := n.v2Varbinds()
	r, err := x.send(ctx, &RequestPDU{PDUType: InformRequest, Variables: vbs},
		requestOptions{dest: dest, confirmed: true})
	if err != nil {
		return nil, err
	}
	resp, ok := r.pdu.(*ResponsePDU)
	if !ok {
		return nil, responseInvalid("unexpected %s", r.pdu.Type())
	}
	if resp.ErrorStatus != NoError {
		return nil, statusError(resp, vbs)
	}
	if err = matchOIDs(vbs, resp.Variables); err != nil {
		return nil, err
	}
	return resp.Variables, nil
}
