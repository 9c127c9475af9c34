// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package netsnmp

//go:generate mockgen -source=transport.go -destination=mock_transport_test.go -package=netsnmp

import (
	"net"
	"time"
)

// Transport carries datagrams between the session and its peers. A
// net.PacketConn satisfies it; Connect opens an unconnected UDP socket when
// Session.Transport is nil.
type Transport interface {
	ReadFrom(p []byte) (n int, addr net.Addr, err error)
	WriteTo(p []byte, addr net.Addr) (n int, err error)
	Close() error
}

// Observer is notified of the life of every confirmed request. Calls are
// made from the goroutine that caused them and must not block.
type Observer interface {
	RequestSent(t PDUType)
	RequestRetried(t PDUType)
	RequestCompleted(t PDUType, elapsed time.Duration, err error)
}

func (x *Session) observeSent(t PDUType) {
	if x.Observer != nil {
		x.Observer.RequestSent(t)
	}
}

func (x *Session) observeRetried(t PDUType) {
	if x.Observer != nil {
		x.Observer.RequestRetried(t)
	}
}

func (x *Session) observeCompleted(t PDUType, start time.Time, err error) {
	if x.Observer != nil {
		x.Observer.RequestCompleted(t, time.Since(start), err)
	}
}
