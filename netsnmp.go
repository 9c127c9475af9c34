// Copyright 2012 Andreas Louca, 2013 Sonia Hamilton. All rights reserved.  Use
// of this source code is governed by a BSD-style license that can be found in
// the LICENSE file.

// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package netsnmp

import (
	"context"
	"errors"
	"math/big"
	"net"
	"strconv"
	"sync"
	"time"
)

const (
	defaultPort           = 161
	defaultTrapPort       = 162
	defaultTimeout        = 5 * time.Second
	defaultMaxRepetitions = 20
)

// Session is an SNMP client bound to one agent. Configure the exported
// fields, then call Connect. A connected Session is safe for concurrent
// use; its fields must not be changed until Close.
type Session struct {

	// Target is an ipv4 address
	Target string

	// Port is a udp port
	Port uint16

	// TrapPort is the udp port traps and informs are sent to
	TrapPort uint16

	// Community is an SNMP Community string
	Community string

	// Version is an SNMP Version
	Version SnmpVersion

	// Timeout is the timeout for one attempt of a request
	Timeout time.Duration

	// Retries is the number of times a request is resent after a timeout.
	// WithRetries overrides Timeout and Retries for a single call.
	Retries int

	// MaxRepetitions is the default max-repetitions of the walk and table
	// operations
	MaxRepetitions int

	// LocalAddr is the address the session's socket is bound to, eg
	// "0.0.0.0:10161". Empty means any address and an ephemeral port.
	LocalAddr string

	// Transport replaces the UDP socket Connect would otherwise open. The
	// session closes it on Close.
	Transport Transport

	// Logger is the Session.Logger to use for debugging. If nil, debugging
	// output will be discarded (/dev/null). For verbose logging to stdout:
	// x.Logger = NewLogger(log.New(os.Stdout, "", 0))
	Logger Logger

	// Observer, if set, is told about every confirmed request
	Observer Observer

	// MsgFlags is the security level of v3 messages, NoAuthNoPriv,
	// AuthNoPriv or AuthPriv
	MsgFlags SnmpV3MsgFlags

	// SecurityModel defaults to UserSecurityModel
	SecurityModel SnmpV3SecurityModel

	// User is the USM user v3 requests are sent as
	User UsmUser

	// ContextEngineID and ContextName address the v3 context. An empty
	// ContextEngineID uses the discovered authoritative engine ID.
	ContextEngineID string
	ContextName     string

	// MaxMessageSize is msgMaxSize of v3 messages, 65535 when zero
	MaxMessageSize int

	// AuthoritativeEngineID, AuthoritativeEngineBoots and
	// AuthoritativeEngineTime preset the agent's engine, skipping discovery.
	AuthoritativeEngineID    string
	AuthoritativeEngineBoots uint32
	AuthoritativeEngineTime  uint32

	// LocalEngineID and LocalEngineBoots identify this engine when it is
	// authoritative, which is the case for v3 traps.
	LocalEngineID    string
	LocalEngineBoots uint32

	mu         sync.Mutex
	conn       Transport
	err        error
	pending    map[int]*pendingRequest
	target     net.Addr
	trapTarget net.Addr
	security   securityModel

	// discoverMu serializes engine discovery
	discoverMu sync.Mutex
}

// Default is a pointer to a Session with sensible defaults,
// eg port 161, community public, etc
var Default = &Session{
	Port:           defaultPort,
	TrapPort:       defaultTrapPort,
	Community:      "public",
	Version:        Version2c,
	Timeout:        defaultTimeout,
	Retries:        1,
	MaxRepetitions: defaultMaxRepetitions,
}

// ErrAlreadyConnected is returned by Connect on a connected session.
var ErrAlreadyConnected = errors.New("session already connected")

//
// Public Functions (main interface)
//

// Connect resolves Target, opens the transport and starts receiving.
func (x *Session) Connect() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.conn != nil {
		return ErrAlreadyConnected
	}
	x.applyDefaults()

	var err error
	if x.target, err = resolve(x.Target, x.Port); err != nil {
		return err
	}
	if x.trapTarget, err = resolve(x.Target, x.TrapPort); err != nil {
		return err
	}

	x.security = nil
	switch x.Version {
	case Version1, Version2c:
	case Version3:
		if x.MsgFlags.private() && !x.MsgFlags.authenticated() {
			return &UnsupportedSecurityLevelError{Msg: "privacy requires authentication"}
		}
		if err = x.User.validate(x.MsgFlags & AuthPriv); err != nil {
			return err
		}
		if x.security, err = lookupSecurityModel(x, x.SecurityModel); err != nil {
			return err
		}
	default:
		return requestInvalid("unsupported version %d", x.Version)
	}

	t := x.Transport
	if t == nil {
		local := x.LocalAddr
		if local == "" {
			local = ":0"
		}
		pc, err := net.ListenPacket("udp", local)
		if err != nil {
			return &RequestInvalidError{Msg: "listen " + local, Err: err}
		}
		t = pc
	}
	x.conn = t
	x.err = nil
	x.pending = make(map[int]*pendingRequest)
	x.Logger.Printf("connect: %s v%s target %s", x.Target, x.Version, x.target)

	go x.listen(t)
	return nil
}

func (x *Session) applyDefaults() {
	if x.Port == 0 {
		x.Port = defaultPort
	}
	if x.TrapPort == 0 {
		x.TrapPort = defaultTrapPort
	}
	if x.Timeout <= 0 {
		x.Timeout = defaultTimeout
	}
	if x.Retries < 0 {
		x.Retries = 0
	}
	if x.MaxRepetitions <= 0 {
		x.MaxRepetitions = defaultMaxRepetitions
	}
	if x.Version == Version3 {
		if x.SecurityModel == 0 {
			x.SecurityModel = UserSecurityModel
		}
		if x.MaxMessageSize == 0 {
			x.MaxMessageSize = defaultMaxMsgSize
		}
	}
}

func resolve(host string, port uint16) (net.Addr, error) {
	addr, err := net.ResolveUDPAddr("udp", net.JoinHostPort(host, strconv.Itoa(int(port))))
	if err != nil {
		return nil, &RequestInvalidError{Msg: "resolve " + host, Err: err}
	}
	return addr, nil
}

// Close fails every pending request with ErrSessionClosed before it
// returns, then closes the transport.
func (x *Session) Close() error {
	x.mu.Lock()
	t := x.conn
	if t == nil {
		x.mu.Unlock()
		return nil
	}
	x.conn = nil
	x.err = ErrSessionClosed
	pending := x.pending
	x.pending = make(map[int]*pendingRequest)
	x.mu.Unlock()

	for _, p := range pending {
		x.finish(p, response{err: ErrSessionClosed})
	}
	return t.Close()
}

// Get sends an SNMP GET request. The response must hold exactly the
// requested OIDs, in order.
func (x *Session) Get(ctx context.Context, oids []string) ([]Varbind, error) {
	vbs, err := nullVarbinds(oids)
	if err != nil {
		return nil, err
	}
	resp, err := x.request(ctx, &RequestPDU{PDUType: GetRequest, Variables: vbs})
	if err != nil {
		return nil, err
	}
	if err = matchOIDs(vbs, resp.Variables); err != nil {
		return nil, err
	}
	return resp.Variables, nil
}

// GetNext sends an SNMP GETNEXT request. Every returned OID must follow the
// one requested in its position.
func (x *Session) GetNext(ctx context.Context, oids []string) ([]Varbind, error) {
	vbs, err := nullVarbinds(oids)
	if err != nil {
		return nil, err
	}
	resp, err := x.request(ctx, &RequestPDU{PDUType: GetNextRequest, Variables: vbs})
	if err != nil {
		return nil, err
	}
	if len(resp.Variables) != len(vbs) {
		return nil, responseInvalid("%d varbinds in response to %d", len(resp.Variables), len(vbs))
	}
	for i, vb := range resp.Variables {
		if vb.Type.IsExceptionType() {
			continue
		}
		if !OIDFollows(vbs[i].Name, vb.Name) {
			return nil, responseInvalid("OID %s does not follow %s", vb.Name, vbs[i].Name)
		}
	}
	return resp.Variables, nil
}

// GetBulk sends an SNMP GETBULK request. The result holds one slice per
// requested OID: a single varbind for each of the first nonRepeaters, and
// up to maxRepetitions successors for each of the rest.
func (x *Session) GetBulk(ctx context.Context, oids []string, nonRepeaters, maxRepetitions int) ([][]Varbind, error) {
	if x.Version == Version1 {
		return nil, requestInvalid("GetBulk is not available in SNMPv1")
	}
	vbs, err := nullVarbinds(oids)
	if err != nil {
		return nil, err
	}
	if nonRepeaters < 0 {
		nonRepeaters = 0
	}
	if nonRepeaters > len(vbs) {
		nonRepeaters = len(vbs)
	}
	if maxRepetitions < 0 {
		maxRepetitions = 0
	}
	resp, err := x.request(ctx, &BulkRequestPDU{
		NonRepeaters:   nonRepeaters,
		MaxRepetitions: maxRepetitions,
		Variables:      vbs,
	})
	if err != nil {
		return nil, err
	}
	return splitBulk(vbs, resp.Variables, nonRepeaters)
}

// splitBulk distributes a GetBulk response over the requested OIDs,
// checking that every column moves forward.
func splitBulk(req, resp []Varbind, nonRepeaters int) ([][]Varbind, error) {
	out := make([][]Varbind, len(req))
	if len(resp) < nonRepeaters {
		return nil, responseInvalid("%d varbinds for %d non-repeaters", len(resp), nonRepeaters)
	}
	for i := 0; i < nonRepeaters; i++ {
		vb := resp[i]
		if !vb.Type.IsExceptionType() && !OIDFollows(req[i].Name, vb.Name) {
			return nil, responseInvalid("OID %s does not follow %s", vb.Name, req[i].Name)
		}
		out[i] = []Varbind{vb}
	}

	rest := resp[nonRepeaters:]
	repeaters := len(req) - nonRepeaters
	if repeaters == 0 {
		if len(rest) != 0 {
			return nil, responseInvalid("%d varbinds beyond the non-repeaters", len(rest))
		}
		return out, nil
	}
	if len(rest)%repeaters != 0 {
		return nil, responseInvalid("%d repeated varbinds for %d repeaters", len(rest), repeaters)
	}
	for j, vb := range rest {
		col := nonRepeaters + j%repeaters
		prev := req[col].Name
		if n := len(out[col]); n > 0 {
			prev = out[col][n-1].Name
		}
		if !vb.Type.IsExceptionType() && !OIDFollows(prev, vb.Name) {
			return nil, responseInvalid("OID %s does not follow %s", vb.Name, prev)
		}
		out[col] = append(out[col], vb)
	}
	return out, nil
}

// Set sends an SNMP SET request. The response must hold exactly the OIDs
// being set, in order.
func (x *Session) Set(ctx context.Context, varbinds []Varbind) ([]Varbind, error) {
	if len(varbinds) == 0 {
		return nil, requestInvalid("no varbinds")
	}
	vbs := make([]Varbind, len(varbinds))
	for i, vb := range varbinds {
		vb.Name = normalizeOID(vb.Name)
		vbs[i] = vb
	}
	resp, err := x.request(ctx, &RequestPDU{PDUType: SetRequest, Variables: vbs})
	if err != nil {
		return nil, err
	}
	if err = matchOIDs(vbs, resp.Variables); err != nil {
		return nil, err
	}
	return resp.Variables, nil
}

// request runs a confirmed exchange with the agent and translates a
// non-zero error-status into a RequestFailedError.
func (x *Session) request(ctx context.Context, pdu PDU) (*ResponsePDU, error) {
	dest, err := x.destination(false)
	if err != nil {
		return nil, err
	}
	if err = x.synchronize(ctx, dest); err != nil {
		return nil, err
	}
	r, err := x.send(ctx, pdu, requestOptions{dest: dest, confirmed: true})
	if err != nil {
		return nil, err
	}
	resp, ok := r.pdu.(*ResponsePDU)
	if !ok || resp.PDUType != GetResponse {
		return nil, responseInvalid("unexpected %s", r.pdu.Type())
	}
	if resp.ErrorStatus != NoError {
		return resp, statusError(resp, pdu.Varbinds())
	}
	return resp, nil
}

func statusError(resp *ResponsePDU, req []Varbind) error {
	e := &RequestFailedError{Status: resp.ErrorStatus, Index: resp.ErrorIndex}
	if i := resp.ErrorIndex; i > 0 {
		switch {
		case i <= len(req):
			e.OID = req[i-1].Name
		case i <= len(resp.Variables):
			e.OID = resp.Variables[i-1].Name
		}
	}
	return e
}

func nullVarbinds(oids []string) ([]Varbind, error) {
	if len(oids) == 0 {
		return nil, requestInvalid("no OIDs")
	}
	vbs := make([]Varbind, len(oids))
	for i, oid := range oids {
		vbs[i] = Varbind{Name: normalizeOID(oid), Type: Null}
	}
	return vbs, nil
}

// matchOIDs checks that a response names exactly the requested OIDs.
func matchOIDs(req, resp []Varbind) error {
	if len(req) != len(resp) {
		return responseInvalid("%d varbinds in response to %d", len(resp), len(req))
	}
	for i := range req {
		if req[i].Name != resp[i].Name {
			return responseInvalid("OID %s in response to %s", resp[i].Name, req[i].Name)
		}
	}
	return nil
}

//
// Public Functions (helpers) - in alphabetical order
//

// Partition - returns true when dividing a slice into
// partitionSize lengths, including last partition which may be smaller
// than partitionSize. This is useful when you have a large array of OIDs
// to run Get() on. See the tests for example usage.
//
// For example for a slice of 8 items to be broken into partitions of
// length 3, Partition returns true for the currentPosition having
// the following values:
//
//	0  1  2  3  4  5  6  7
//	      T        T     T
func Partition(currentPosition, partitionSize, sliceLength int) bool {
	if currentPosition < 0 || currentPosition >= sliceLength {
		return false
	}
	if partitionSize == 1 { // redundant, but an obvious optimisation
		return true
	}
	if currentPosition%partitionSize == partitionSize-1 {
		return true
	}
	if currentPosition == sliceLength-1 {
		return true
	}
	return false
}

// ToBigInt converts Varbind.Value to big.Int, or returns a zero big.Int for
// non int-like types (eg strings).
//
// This is a convenience function to make working with Varbinds easier - it
// reduces the need for type assertions. A big.Int is convenient, as SNMP can
// return int, uint32, and uint64.
func ToBigInt(value any) *big.Int {
	if s, ok := value.(string); ok {
		// for testing and other apps - numbers may appear as strings
		val, ok := new(big.Int).SetString(s, 10)
		if !ok {
			return new(big.Int)
		}
		return val
	}
	if val, ok := toInt64(value); ok {
		return big.NewInt(val)
	}
	if val, ok := toUint64(value); ok {
		return new(big.Int).SetUint64(val)
	}
	return new(big.Int)
}
