// Copyright 2012-2020 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package netsnmp

import (
	"errors"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testLogger sends session debugging to the test log.
type testLogger struct {
	t *testing.T
}

func (l testLogger) Print(v ...any) {
	l.t.Helper()
	l.t.Log(v...)
}

func (l testLogger) Printf(format string, v ...any) {
	l.t.Helper()
	l.t.Logf(format, v...)
}

// mibEntry is one object served by testAgent.
type mibEntry struct {
	oid   string
	typ   Asn1BER
	value func(oid string) any
}

// testAgent is a minimal SNMP agent and notification receiver on a UDP
// socket on the loopback interface.
type testAgent struct {
	t         *testing.T
	conn      net.PacketConn
	community string

	mu        sync.Mutex
	mibList   []mibEntry
	requests  int
	dropFirst int

	// echo, when set, makes GetNext and GetBulk answer every OID with
	// itself as this exception
	echo Asn1BER

	// notifications received, traps and informs alike
	notifications chan PDU

	// SNMPv3
	engineID string
	sec      *usm
}

func newTestAgent(t *testing.T) *testAgent {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	a := &testAgent{
		t:             t,
		conn:          conn,
		community:     "public",
		notifications: make(chan PDU, 16),
	}
	initMib(a)
	go a.serve()
	t.Cleanup(func() { _ = a.conn.Close() })
	return a
}

// enableV3 makes the agent an authoritative engine for user.
func (a *testAgent) enableV3(engineID string, boots uint32, user UsmUser) {
	sm, err := newUSM(&Session{User: user, LocalEngineID: engineID, LocalEngineBoots: boots})
	require.NoError(a.t, err)
	u := sm.(*usm)
	u.windows[engineID] = u.local

	a.mu.Lock()
	defer a.mu.Unlock()
	a.engineID = engineID
	a.sec = u
}

func (a *testAgent) port() uint16 {
	return uint16(a.conn.LocalAddr().(*net.UDPAddr).Port) //nolint:gosec
}

// session returns a connected session for the agent, with traps sent to
// the agent as well.
func (a *testAgent) session(version SnmpVersion) *Session {
	a.t.Helper()
	x := &Session{
		Target:    "127.0.0.1",
		Port:      a.port(),
		TrapPort:  a.port(),
		Community: "public",
		Version:   version,
		Timeout:   time.Second,
		Retries:   1,
		Logger:    NewLogger(testLogger{a.t}),
	}
	return x
}

func (a *testAgent) connect(x *Session) *Session {
	a.t.Helper()
	require.NoError(a.t, x.Connect())
	a.t.Cleanup(func() { _ = x.Close() })
	return x
}

func (a *testAgent) requestCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requests
}

// AddMibList inserts an object, keeping the list in OID order.
func (a *testAgent) AddMibList(oid string, typ Asn1BER, value func(oid string) any) {
	a.mu.Lock()
	defer a.mu.Unlock()
	oid = normalizeOID(oid)
	i := sort.Search(len(a.mibList), func(i int) bool { return oidCompare(a.mibList[i].oid, oid) >= 0 })
	if i < len(a.mibList) && a.mibList[i].oid == oid {
		a.mibList[i] = mibEntry{oid, typ, value}
		return
	}
	a.mibList = append(a.mibList, mibEntry{})
	copy(a.mibList[i+1:], a.mibList[i:])
	a.mibList[i] = mibEntry{oid, typ, value}
}

func (a *testAgent) findMib(oid string) (mibEntry, bool) {
	i := sort.Search(len(a.mibList), func(i int) bool { return oidCompare(a.mibList[i].oid, oid) >= 0 })
	if i < len(a.mibList) && a.mibList[i].oid == oid {
		return a.mibList[i], true
	}
	return mibEntry{}, false
}

func (a *testAgent) nextMib(oid string) (mibEntry, bool) {
	i := sort.Search(len(a.mibList), func(i int) bool { return oidCompare(a.mibList[i].oid, oid) > 0 })
	if i < len(a.mibList) {
		return a.mibList[i], true
	}
	return mibEntry{}, false
}

func (e mibEntry) varbind() Varbind {
	return Varbind{Name: e.oid, Type: e.typ, Value: e.value(e.oid)}
}

func constant(v any) func(string) any {
	return func(string) any { return v }
}

var startTime = time.Now()

func initMib(a *testAgent) {
	a.AddMibList(".1.3.6.1.2.1.1.1.0", OctetString, constant("test"))
	a.AddMibList(".1.3.6.1.2.1.1.2.0", ObjectIdentifier, constant("1.3.6.1.4.1.8072.3.2.10"))
	a.AddMibList(".1.3.6.1.2.1.1.3.0", TimeTicks, func(string) any {
		return uint32(time.Since(startTime) / (10 * time.Millisecond)) //nolint:gosec
	})
	a.AddMibList(".1.3.6.1.2.1.1.7.0", Integer, constant(72))
	a.AddMibList(".1.3.6.1.2.1.1.4.0", OctetString, constant("test sysContact"))
	a.AddMibList(".1.3.6.1.2.1.1.5.0", OctetString, constant("test sysName"))
	a.AddMibList(".1.3.6.1.2.1.1.6.0", OctetString, constant("test sysLocation"))

	// ifTable: ifIndex, ifDescr, ifInOctets for three interfaces
	for _, row := range []struct {
		index int
		descr string
		in    uint32
	}{{1, "lo", 1000}, {2, "eth0", 2000}, {10, "eth1", 3000}} {
		index := strconv.Itoa(row.index)
		a.AddMibList("1.3.6.1.2.1.2.2.1.1."+index, Integer, constant(row.index))
		a.AddMibList("1.3.6.1.2.1.2.2.1.2."+index, OctetString, constant(row.descr))
		a.AddMibList("1.3.6.1.2.1.2.2.1.10."+index, Counter32, constant(row.in))
	}

	// ipAddrTable, indexed by address
	for _, addr := range []string{"10.0.0.1", "127.0.0.1"} {
		a.AddMibList("1.3.6.1.2.1.4.20.1.1."+addr, IPAddress, constant(addr))
		a.AddMibList("1.3.6.1.2.1.4.20.1.3."+addr, IPAddress, constant("255.0.0.0"))
	}
}

func (a *testAgent) serve() {
	buf := make([]byte, rxBufSize)
	for {
		n, from, err := a.conn.ReadFrom(buf)
		if err != nil {
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])

		a.mu.Lock()
		a.requests++
		drop := a.dropFirst > 0
		if drop {
			a.dropFirst--
		}
		a.mu.Unlock()
		if drop {
			continue
		}

		out := a.handle(data)
		if out != nil {
			_, _ = a.conn.WriteTo(out, from)
		}
	}
}

func (a *testAgent) handle(data []byte) []byte {
	version, err := peekVersion(data)
	if err != nil {
		return nil
	}
	if version == Version3 {
		return a.handleV3(data)
	}
	m, err := unmarshalCommunityMessage(data)
	if err != nil || m.Community != a.community {
		return nil
	}
	resp := a.respond(version, m.PDU)
	if resp == nil {
		return nil
	}
	out, err := (&communityMessage{Version: version, Community: m.Community, PDU: resp}).marshal()
	if err != nil {
		a.t.Errorf("agent: %v", err)
		return nil
	}
	return out
}

// respond builds the response to pdu, or returns nil for a trap.
func (a *testAgent) respond(version SnmpVersion, pdu PDU) *ResponsePDU {
	resp := &ResponsePDU{PDUType: GetResponse, RequestID: pdu.ID()}
	fail := func(status SNMPError, i int) *ResponsePDU {
		resp.ErrorStatus = status
		resp.ErrorIndex = i + 1
		resp.Variables = pdu.Varbinds()
		return resp
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	switch p := pdu.(type) {
	case *TrapV1PDU:
		a.notifications <- p
		return nil
	case *BulkRequestPDU:
		vbs := p.Variables
		for i := 0; i < p.NonRepeaters && i < len(vbs); i++ {
			resp.Variables = append(resp.Variables, a.next(vbs[i].Name))
		}
		repeaters := vbs[min(p.NonRepeaters, len(vbs)):]
		last := make([]string, len(repeaters))
		for i, vb := range repeaters {
			last[i] = vb.Name
		}
		for r := 0; r < p.MaxRepetitions && len(repeaters) > 0; r++ {
			ended := 0
			for i := range repeaters {
				vb := a.next(last[i])
				if vb.Type == EndOfMibView {
					ended++
				}
				last[i] = vb.Name
				resp.Variables = append(resp.Variables, vb)
			}
			if ended == len(repeaters) {
				break
			}
		}
		return resp
	}

	switch pdu.Type() {
	case SNMPv2Trap:
		a.notifications <- pdu
		return nil
	case InformRequest:
		a.notifications <- pdu
		resp.Variables = pdu.Varbinds()
	case GetRequest:
		for i, vb := range pdu.Varbinds() {
			e, ok := a.findMib(vb.Name)
			switch {
			case ok:
				resp.Variables = append(resp.Variables, e.varbind())
			case version == Version1:
				return fail(NoSuchName, i)
			default:
				resp.Variables = append(resp.Variables, Varbind{Name: vb.Name, Type: NoSuchObject})
			}
		}
	case GetNextRequest:
		for i, vb := range pdu.Varbinds() {
			next := a.next(vb.Name)
			if next.Type == EndOfMibView && version == Version1 {
				return fail(NoSuchName, i)
			}
			resp.Variables = append(resp.Variables, next)
		}
	case SetRequest:
		for i, vb := range pdu.Varbinds() {
			e, ok := a.findMib(vb.Name)
			switch {
			case !ok && version == Version1:
				return fail(NoSuchName, i)
			case !ok:
				return fail(NotWritable, i)
			case e.typ != vb.Type:
				if version == Version1 {
					return fail(BadValue, i)
				}
				return fail(WrongType, i)
			}
		}
		for _, vb := range pdu.Varbinds() {
			for i := range a.mibList {
				if a.mibList[i].oid == vb.Name {
					a.mibList[i].value = constant(vb.Value)
				}
			}
		}
		resp.Variables = pdu.Varbinds()
	default:
		return nil
	}
	return resp
}

// next is called with a.mu held.
func (a *testAgent) next(oid string) Varbind {
	if a.echo != 0 {
		return Varbind{Name: oid, Type: a.echo}
	}
	e, ok := a.nextMib(oid)
	if !ok {
		return Varbind{Name: oid, Type: EndOfMibView}
	}
	return e.varbind()
}

func (a *testAgent) handleV3(data []byte) []byte {
	a.mu.Lock()
	sec, engineID := a.sec, a.engineID
	a.mu.Unlock()
	if sec == nil {
		return nil
	}

	msg, secOffset, err := unmarshalV3Message(data)
	if err != nil {
		return nil
	}
	sp, _, err := unmarshalUsmSecurityParameters(msg.SecurityParameters)
	if err != nil {
		return nil
	}
	reportable := msg.Header.MsgFlags&Reportable != 0

	// notifications are addressed to the sender's own engine
	if reportable && sp.AuthoritativeEngineID != engineID {
		return a.plainReport(msg, sp, usmStatsUnknownEngineIDs)
	}

	scoped, _, err := sec.processIncomingMsg(msg, data, secOffset)
	var tw *NotInTimeWindowError
	switch {
	case errors.As(err, &tw):
		return a.authReport(msg, usmStatsNotInTimeWindows)
	case err != nil && strings.Contains(err.Error(), "wrong digest"):
		return a.plainReport(msg, sp, usmStatsWrongDigests)
	case err != nil && strings.Contains(err.Error(), "unknown user name"):
		return a.plainReport(msg, sp, usmStatsUnknownUserNames)
	case err != nil:
		return nil
	}

	resp := a.respond(Version3, scoped.PDU)
	if resp == nil {
		return nil
	}
	header := &HeaderData{
		MsgID:         msg.Header.MsgID,
		MsgMaxSize:    defaultMaxMsgSize,
		MsgFlags:      msg.Header.MsgFlags &^ Reportable,
		SecurityModel: UserSecurityModel,
	}
	out, err := sec.generateRequestMsg(header,
		&ScopedPDU{ContextEngineID: engineID, ContextName: scoped.ContextName, PDU: resp},
		securityOptions{local: true})
	if err != nil {
		a.t.Errorf("agent: %v", err)
		return nil
	}
	return out
}

func reportPDU(msg *v3Message, oid string) *ResponsePDU {
	return &ResponsePDU{
		PDUType:   Report,
		RequestID: msg.Header.MsgID,
		Variables: []Varbind{{Name: oid, Type: Counter32, Value: uint32(1)}},
	}
}

// plainReport sends an unauthenticated report carrying the agent's engine
// ID, boots and time.
func (a *testAgent) plainReport(msg *v3Message, req *UsmSecurityParameters, oid string) []byte {
	a.mu.Lock()
	engineID, local := a.engineID, a.sec.local
	a.mu.Unlock()

	sp := &UsmSecurityParameters{
		AuthoritativeEngineID:    engineID,
		AuthoritativeEngineBoots: local.Boots(),
		AuthoritativeEngineTime:  local.Time(),
		UserName:                 req.UserName,
	}
	spBytes, _, err := sp.marshal()
	require.NoError(a.t, err)
	out, _, err := (&v3Message{
		Header: &HeaderData{
			MsgID:         msg.Header.MsgID,
			MsgMaxSize:    defaultMaxMsgSize,
			MsgFlags:      NoAuthNoPriv,
			SecurityModel: UserSecurityModel,
		},
		SecurityParameters: spBytes,
		ScopedPDU:          &ScopedPDU{ContextEngineID: engineID, PDU: reportPDU(msg, oid)},
	}).marshal()
	if err != nil {
		a.t.Errorf("agent: %v", err)
		return nil
	}
	return out
}

// authReport sends a report authenticated as the requesting user.
func (a *testAgent) authReport(msg *v3Message, oid string) []byte {
	header := &HeaderData{
		MsgID:         msg.Header.MsgID,
		MsgMaxSize:    defaultMaxMsgSize,
		MsgFlags:      AuthNoPriv,
		SecurityModel: UserSecurityModel,
	}
	out, err := a.sec.generateRequestMsg(header,
		&ScopedPDU{ContextEngineID: a.engineID, PDU: reportPDU(msg, oid)},
		securityOptions{local: true})
	if err != nil {
		a.t.Errorf("agent: %v", err)
		return nil
	}
	return out
}

// waitNotification returns the next trap or inform the agent received.
func (a *testAgent) waitNotification() PDU {
	a.t.Helper()
	select {
	case p := <-a.notifications:
		return p
	case <-time.After(3 * time.Second):
		a.t.Fatal("no notification received")
	}
	return nil
}
