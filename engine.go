// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package netsnmp

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"net"
	"time"
)

// rxBufSize is the largest datagram accepted.
const rxBufSize = 65535

// requestOptions describe one outgoing message.
type requestOptions struct {
	dest net.Addr

	// confirmed requests are registered and wait for a response
	confirmed bool

	// acceptReport completes the request with a Report instead of acting
	// on it, as engine discovery needs
	acceptReport bool

	discovery bool
	zeroTime  bool
	local     bool
}

func (o requestOptions) security() securityOptions {
	return securityOptions{
		dest:      o.dest.String(),
		discovery: o.discovery,
		zeroTime:  o.zeroTime,
		local:     o.local,
	}
}

type retryKey struct{}

type retryPolicy struct {
	timeout time.Duration
	retries int
}

// WithRetries returns a copy of ctx under which requests wait timeout for
// each attempt and resend up to retries times, instead of using the
// session's Timeout and Retries. A timeout of zero keeps the session's.
func WithRetries(ctx context.Context, timeout time.Duration, retries int) context.Context {
	return context.WithValue(ctx, retryKey{}, retryPolicy{timeout: timeout, retries: retries})
}

// retrySettings returns the timeout and retries for a request made with ctx.
func (x *Session) retrySettings(ctx context.Context) (time.Duration, int) {
	timeout, retries := x.Timeout, x.Retries
	if p, ok := ctx.Value(retryKey{}).(retryPolicy); ok {
		if p.timeout > 0 {
			timeout = p.timeout
		}
		retries = max(p.retries, 0)
	}
	return timeout, retries
}

type response struct {
	pdu PDU
	sp  *UsmSecurityParameters
	err error
}

// pendingRequest is a confirmed request awaiting its response. msg, retries,
// attempts, timer and reported are guarded by Session.mu.
type pendingRequest struct {
	id    int
	pdu   PDU
	opts  requestOptions
	start time.Time

	msg      []byte
	timeout  time.Duration
	retries  int
	attempts int
	timer    *time.Timer
	reported map[string]bool

	// result receives exactly one response
	result chan response
}

// destination returns the address of the agent, or of its trap receiver.
func (x *Session) destination(trap bool) (net.Addr, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if err := x.usable(); err != nil {
		return nil, err
	}
	if trap {
		return x.trapTarget, nil
	}
	return x.target, nil
}

// usable must be called with x.mu held.
func (x *Session) usable() error {
	if x.conn != nil {
		return nil
	}
	if x.err != nil {
		return x.err
	}
	return requestInvalid("session is not connected")
}

// nextID returns an unused request id in 1..2^31-1. Called with x.mu held.
func (x *Session) nextID() int {
	for {
		id := int(rand.Int31n(math.MaxInt32)) + 1
		if _, ok := x.pending[id]; !ok {
			return id
		}
	}
}

// send assigns pdu a request id, encodes and sends it. Unconfirmed messages
// return as soon as they are written; confirmed ones wait for the response,
// the retry budget, ctx or Close.
func (x *Session) send(ctx context.Context, pdu PDU, opts requestOptions) (*response, error) {
	x.mu.Lock()
	if err := x.usable(); err != nil {
		x.mu.Unlock()
		return nil, err
	}
	t := x.conn
	p := &pendingRequest{
		id:     x.nextID(),
		pdu:    pdu,
		opts:   opts,
		start:  time.Now(),
		result: make(chan response, 1),
	}
	p.timeout, p.retries = x.retrySettings(ctx)
	if opts.confirmed {
		x.pending[p.id] = p
	}
	x.mu.Unlock()

	pdu.setID(p.id)
	msg, err := x.encode(pdu, opts)
	if err != nil {
		x.remove(p)
		return nil, err
	}

	if !opts.confirmed {
		x.Logger.Printf("send: %s to %s", pdu.Type(), opts.dest)
		if _, err = t.WriteTo(msg, opts.dest); err != nil {
			return nil, err
		}
		return &response{}, nil
	}

	x.mu.Lock()
	if x.pending[p.id] == p {
		p.msg = msg
		p.attempts = 1
		p.timer = time.AfterFunc(p.timeout, func() { x.onTimeout(p) })
	}
	x.mu.Unlock()

	x.Logger.Printf("send: %s id %d to %s", pdu.Type(), p.id, opts.dest)
	x.observeSent(pdu.Type())
	if _, err = t.WriteTo(msg, opts.dest); err != nil {
		x.complete(p, response{err: err})
	}

	select {
	case r := <-p.result:
		if r.err != nil {
			return nil, r.err
		}
		return &r, nil
	case <-ctx.Done():
		x.complete(p, response{err: ctx.Err()})
		return nil, ctx.Err()
	}
}

func (x *Session) remove(p *pendingRequest) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.pending[p.id] == p {
		delete(x.pending, p.id)
	}
}

// complete removes p and delivers r, unless p was already completed.
func (x *Session) complete(p *pendingRequest, r response) bool {
	x.mu.Lock()
	if x.pending[p.id] != p {
		x.mu.Unlock()
		return false
	}
	delete(x.pending, p.id)
	x.mu.Unlock()
	x.finish(p, r)
	return true
}

// finish delivers r to a request already removed from the table.
func (x *Session) finish(p *pendingRequest, r response) {
	x.mu.Lock()
	if p.timer != nil {
		p.timer.Stop()
	}
	x.mu.Unlock()
	x.observeCompleted(p.pdu.Type(), p.start, outcome(p, r))
	p.result <- r
}

// outcome is how r ends p for observers: a response carrying a non-zero
// error-status counts as a failed request.
func outcome(p *pendingRequest, r response) error {
	if r.err != nil {
		return r.err
	}
	if resp, ok := r.pdu.(*ResponsePDU); ok && resp.PDUType == GetResponse && resp.ErrorStatus != NoError {
		return statusError(resp, p.pdu.Varbinds())
	}
	return nil
}

func (x *Session) lookup(id int) *pendingRequest {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.pending[id]
}

// onTimeout resends the identical message while retries remain, then fails
// the request.
func (x *Session) onTimeout(p *pendingRequest) {
	x.mu.Lock()
	if x.pending[p.id] != p {
		x.mu.Unlock()
		return
	}
	if p.retries <= 0 {
		attempts := p.attempts
		x.mu.Unlock()
		x.Logger.Printf("timeout: %s id %d after %d attempt(s)", p.pdu.Type(), p.id, attempts)
		x.complete(p, response{err: &RequestTimedOutError{Attempts: attempts}})
		return
	}
	p.retries--
	p.attempts++
	msg, t := p.msg, x.conn
	p.timer = time.AfterFunc(p.timeout, func() { x.onTimeout(p) })
	x.mu.Unlock()

	x.Logger.Printf("retry: %s id %d attempt %d", p.pdu.Type(), p.id, p.attempts)
	x.observeRetried(p.pdu.Type())
	if _, err := t.WriteTo(msg, p.opts.dest); err != nil {
		x.complete(p, response{err: err})
	}
}

// resend encodes p again, picking up newly learned engine parameters, and
// restarts its timer without using up a retry.
func (x *Session) resend(p *pendingRequest) {
	msg, err := x.encode(p.pdu, p.opts)
	if err != nil {
		x.complete(p, response{err: err})
		return
	}
	x.mu.Lock()
	if x.pending[p.id] != p {
		x.mu.Unlock()
		return
	}
	p.msg = msg
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.timeout, func() { x.onTimeout(p) })
	t := x.conn
	x.mu.Unlock()

	x.Logger.Printf("resend: %s id %d with updated engine parameters", p.pdu.Type(), p.id)
	if _, err = t.WriteTo(msg, p.opts.dest); err != nil {
		x.complete(p, response{err: err})
	}
}

// encode produces the wire message for pdu under the session's version.
func (x *Session) encode(pdu PDU, opts requestOptions) ([]byte, error) {
	if x.Version != Version3 {
		m := &communityMessage{Version: x.Version, Community: x.Community, PDU: pdu}
		return m.marshal()
	}
	if !pduAllowed(Version3, pdu.Type()) {
		return nil, requestInvalid("%s is not valid in SNMPv3", pdu.Type())
	}

	flags := x.MsgFlags & AuthPriv
	if opts.discovery {
		flags = NoAuthNoPriv
	}
	if confirmedClass(pdu.Type()) {
		flags |= Reportable
	}
	header, err := NewHeaderData(pdu.ID(), x.MaxMessageSize, flags, x.SecurityModel)
	if err != nil {
		return nil, err
	}

	scoped := &ScopedPDU{ContextEngineID: x.ContextEngineID, ContextName: x.ContextName, PDU: pdu}
	if scoped.ContextEngineID == "" && !opts.discovery {
		if opts.local {
			scoped.ContextEngineID = x.LocalEngineID
		} else {
			scoped.ContextEngineID = x.security.authoritativeEngine(opts.dest.String())
		}
	}
	return prepareOutgoingMessage(x.security, header, scoped, opts.security())
}

func confirmedClass(t PDUType) bool {
	switch t {
	case GetRequest, GetNextRequest, GetBulkRequest, SetRequest, InformRequest:
		return true
	}
	return false
}

// listen receives datagrams until t fails or is replaced.
func (x *Session) listen(t Transport) {
	buf := make([]byte, rxBufSize)
	for {
		n, addr, err := t.ReadFrom(buf)
		if err != nil {
			x.fail(t, err)
			return
		}
		data := make([]byte, n)
		copy(data, buf[:n])
		x.dispatch(data, addr)
	}
}

// fail poisons the session after a transport error: every pending request
// and every later one fails with err.
func (x *Session) fail(t Transport, err error) {
	x.mu.Lock()
	if x.conn != t {
		x.mu.Unlock()
		return
	}
	x.Logger.Printf("receive: %v", err)
	x.conn = nil
	x.err = err
	pending := x.pending
	x.pending = make(map[int]*pendingRequest)
	x.mu.Unlock()

	for _, p := range pending {
		x.finish(p, response{err: err})
	}
	_ = t.Close()
}

// dispatch correlates a datagram with its pending request. Datagrams that
// cannot be correlated are dropped.
func (x *Session) dispatch(data []byte, from net.Addr) {
	version, err := peekVersion(data)
	if err != nil {
		x.Logger.Printf("drop datagram from %s: %v", from, err)
		return
	}
	if version == Version3 {
		x.dispatchV3(data, from)
		return
	}

	m, err := unmarshalCommunityMessage(data)
	if err != nil {
		if id, ok := peekRequestID(data); ok {
			if p := x.lookup(id); p != nil {
				x.Logger.Printf("receive: invalid response to id %d: %v", id, err)
				x.complete(p, response{err: err})
				return
			}
		}
		x.Logger.Printf("drop datagram from %s: %v", from, err)
		return
	}
	p := x.lookup(m.PDU.ID())
	if p == nil {
		x.Logger.Printf("drop %s from %s: unknown request id %d", m.PDU.Type(), from, m.PDU.ID())
		return
	}
	x.Logger.Printf("receive: %s", m)
	switch {
	case m.PDU.Type() != GetResponse:
		x.complete(p, response{err: responseInvalid("unexpected %s", m.PDU.Type())})
	case m.Version != x.Version:
		x.complete(p, response{err: responseInvalid("version %s in response to version %s", m.Version, x.Version)})
	case m.Community != x.Community:
		x.complete(p, response{err: responseInvalid("community %q in response to %q", m.Community, x.Community)})
	default:
		x.complete(p, response{pdu: m.PDU})
	}
}

func (x *Session) dispatchV3(data []byte, from net.Addr) {
	msg, secOffset, err := unmarshalV3Message(data)
	if err != nil {
		if msg != nil && msg.Header != nil {
			if p := x.lookup(msg.Header.MsgID); p != nil {
				x.complete(p, response{err: err})
				return
			}
		}
		x.Logger.Printf("drop datagram from %s: %v", from, err)
		return
	}
	p := x.lookup(msg.Header.MsgID)
	if p == nil {
		x.Logger.Printf("drop v3 message from %s: unknown msgID %d", from, msg.Header.MsgID)
		return
	}
	if x.security == nil {
		x.complete(p, response{err: responseInvalid("version 3 in response to version %s", x.Version)})
		return
	}

	scoped, sp, err := x.security.processIncomingMsg(msg, data, secOffset)
	if err != nil {
		x.complete(p, response{err: err})
		return
	}
	pdu := scoped.PDU
	x.Logger.Printf("receive: v3 %s id %d flags 0x%02x", pdu.Type(), pdu.ID(), uint8(msg.Header.MsgFlags))

	if pdu.Type() == Report {
		x.handleReport(p, pdu, sp)
		return
	}
	switch {
	case pdu.Type() != GetResponse:
		x.complete(p, response{err: responseInvalid("unexpected %s", pdu.Type())})
	case pdu.ID() != msg.Header.MsgID:
		x.complete(p, response{err: responseInvalid("request-id %d in message %d", pdu.ID(), msg.Header.MsgID)})
	case !p.opts.discovery && x.MsgFlags.authenticated() && !msg.Header.MsgFlags.authenticated():
		x.complete(p, response{err: responseInvalid("unauthenticated response to an authenticated request")})
	default:
		x.complete(p, response{pdu: pdu, sp: sp})
	}
}

// handleReport acts on a Report answering p. The engine ID and time window
// reports cause one resend with the parameters they carry; everything else
// fails the request.
func (x *Session) handleReport(p *pendingRequest, pdu PDU, sp *UsmSecurityParameters) {
	if p.opts.acceptReport {
		x.complete(p, response{pdu: pdu, sp: sp})
		return
	}
	var oid string
	if vbs := pdu.Varbinds(); len(vbs) > 0 {
		oid = vbs[0].Name
	}

	switch oid {
	case usmStatsNotInTimeWindows, usmStatsUnknownEngineIDs:
		x.mu.Lock()
		first := !p.reported[oid]
		if first {
			if p.reported == nil {
				p.reported = make(map[string]bool)
			}
			p.reported[oid] = true
		}
		x.mu.Unlock()
		if first {
			x.security.learn(p.opts.dest.String(), sp)
			x.resend(p)
			return
		}
	}
	x.complete(p, response{err: reportError(oid, sp)})
}

// reportError translates a usmStats or snmpUnknownSecurityModels report.
func reportError(oid string, sp *UsmSecurityParameters) error {
	switch oid {
	case usmStatsUnsupportedSecLevels:
		return &UnsupportedSecurityLevelError{Msg: "reported by the agent"}
	case snmpUnknownSecurityModels:
		return &UnsupportedSecurityModelError{Model: int(UserSecurityModel)}
	case usmStatsDecryptionErrors:
		return &EncryptionError{Msg: "the agent could not decrypt the request"}
	case usmStatsNotInTimeWindows:
		e := &NotInTimeWindowError{}
		if sp != nil {
			e.EngineID = sp.AuthoritativeEngineID
			e.Boots = sp.AuthoritativeEngineBoots
			e.Time = sp.AuthoritativeEngineTime
		}
		return e
	case usmStatsUnknownUserNames:
		return &RequestFailedError{OID: oid, Msg: "unknown user name"}
	case usmStatsWrongDigests:
		return &RequestFailedError{OID: oid, Msg: "wrong digest"}
	case usmStatsUnknownEngineIDs:
		return &RequestFailedError{OID: oid, Msg: "unknown engine ID"}
	case "":
		return responseInvalid("empty report")
	}
	return &RequestFailedError{OID: oid, Msg: "report " + oid}
}

// synchronize discovers the authoritative engine at dest, and for
// authenticated sessions its boots and time, unless already known.
func (x *Session) synchronize(ctx context.Context, dest net.Addr) error {
	if x.security == nil {
		return nil
	}
	key := dest.String()
	if x.security.synchronized(key) {
		return nil
	}
	x.discoverMu.Lock()
	defer x.discoverMu.Unlock()
	if x.security.synchronized(key) {
		return nil
	}

	r, err := x.send(ctx, &RequestPDU{PDUType: GetRequest},
		requestOptions{dest: dest, confirmed: true, acceptReport: true, discovery: true})
	if err != nil {
		return err
	}
	if r.sp == nil || r.sp.AuthoritativeEngineID == "" {
		return responseInvalid("discovery response carries no engine ID")
	}
	x.security.learn(key, r.sp)
	if !x.MsgFlags.authenticated() {
		return nil
	}

	r, err = x.send(ctx, &RequestPDU{PDUType: GetRequest},
		requestOptions{dest: dest, confirmed: true, acceptReport: true, zeroTime: true})
	if err != nil {
		return err
	}
	if r.pdu.Type() == Report {
		var oid string
		if vbs := r.pdu.Varbinds(); len(vbs) > 0 {
			oid = vbs[0].Name
		}
		if oid != usmStatsNotInTimeWindows {
			return reportError(oid, r.sp)
		}
	}
	x.security.learn(key, r.sp)
	return nil
}

// IsTimeout reports whether err is a RequestTimedOutError.
func IsTimeout(err error) bool {
	var t *RequestTimedOutError
	return errors.As(err, &t)
}
