// Copyright 2012 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package netsnmp

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	agentEngineID = "\x80\x00\x1f\x88\x80netsnmp-agent"
	localEngineID = "\x80\x00\x1f\x88\x80netsnmp-local"
	agentBoots    = 3
)

func v3User(auth SnmpV3AuthProtocol, priv SnmpV3PrivProtocol) UsmUser {
	u := UsmUser{UserName: "netsnmp", AuthenticationProtocol: auth, PrivacyProtocol: priv}
	if auth != NoAuth {
		u.AuthenticationPassphrase = "authpassword"
	}
	if priv != NoPriv {
		u.PrivacyPassphrase = "privpassword"
	}
	return u
}

// v3Session returns an unconnected v3 session for an agent that knows user.
func (a *testAgent) v3Session(flags SnmpV3MsgFlags, user UsmUser) *Session {
	a.enableV3(agentEngineID, agentBoots, user)
	x := a.session(Version3)
	x.MsgFlags = flags
	x.User = user
	return x
}

func TestV3SecurityLevels(t *testing.T) {
	for _, tc := range []struct {
		flags    SnmpV3MsgFlags
		auth     SnmpV3AuthProtocol
		priv     SnmpV3PrivProtocol
		requests int // discovery rounds included
	}{
		{NoAuthNoPriv, NoAuth, NoPriv, 2},
		{AuthNoPriv, MD5, NoPriv, 3},
		{AuthNoPriv, SHA, NoPriv, 3},
		{AuthPriv, MD5, DES, 3},
		{AuthPriv, MD5, AES, 3},
		{AuthPriv, SHA, DES, 3},
		{AuthPriv, SHA, AES, 3},
	} {
		t.Run(fmt.Sprintf("%s-%s-%s", tc.flags, tc.auth, tc.priv), func(t *testing.T) {
			a := newTestAgent(t)
			x := a.connect(a.v3Session(tc.flags, v3User(tc.auth, tc.priv)))

			vbs, err := x.Get(context.Background(), []string{"1.3.6.1.2.1.1.1.0"})
			require.NoError(t, err)
			assert.Equal(t, []byte("test"), vbs[0].Value)
			assert.Equal(t, tc.requests, a.requestCount())
			assert.Equal(t, agentEngineID, x.security.authoritativeEngine(x.target.String()))

			// later requests reuse the discovered engine
			table, err := x.Table(context.Background(), "1.3.6.1.2.1.4.20", 0)
			require.NoError(t, err)
			assert.Len(t, table, 2)
			assert.Equal(t, tc.requests+1, a.requestCount())
		})
	}
}

func TestV3WrongPassphrase(t *testing.T) {
	a := newTestAgent(t)
	x := a.v3Session(AuthPriv, v3User(SHA, AES))
	x.User.AuthenticationPassphrase = "not the password"
	a.connect(x)

	_, err := x.Get(context.Background(), []string{"1.3.6.1.2.1.1.1.0"})
	var failed *RequestFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, usmStatsWrongDigests, failed.OID)
	assert.Equal(t, "wrong digest", failed.Msg)
}

func TestV3UnknownUser(t *testing.T) {
	a := newTestAgent(t)
	x := a.v3Session(AuthNoPriv, v3User(MD5, NoPriv))
	x.User.UserName = "intruder"
	a.connect(x)

	_, err := x.Get(context.Background(), []string{"1.3.6.1.2.1.1.1.0"})
	var failed *RequestFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, usmStatsUnknownUserNames, failed.OID)
}

func TestV3PresetEngine(t *testing.T) {
	a := newTestAgent(t)
	x := a.v3Session(AuthPriv, v3User(SHA, DES))
	x.AuthoritativeEngineID = agentEngineID
	x.AuthoritativeEngineBoots = agentBoots
	a.connect(x)

	_, err := x.Get(context.Background(), []string{"1.3.6.1.2.1.1.1.0"})
	require.NoError(t, err)
	assert.Equal(t, 1, a.requestCount(), "no discovery")
}

func TestV3NotInTimeWindowResend(t *testing.T) {
	a := newTestAgent(t)
	x := a.v3Session(AuthNoPriv, v3User(SHA, NoPriv))
	x.AuthoritativeEngineID = agentEngineID
	x.AuthoritativeEngineBoots = agentBoots - 1
	a.connect(x)

	vbs, err := x.Get(context.Background(), []string{"1.3.6.1.2.1.1.5.0"})
	require.NoError(t, err)
	assert.Equal(t, []byte("test sysName"), vbs[0].Value)
	assert.Equal(t, 2, a.requestCount(), "one resend after the report")
}

func TestV3UnknownEngineResend(t *testing.T) {
	a := newTestAgent(t)
	x := a.v3Session(AuthPriv, v3User(MD5, AES))
	x.AuthoritativeEngineID = "\x80\x00\x1f\x88\x80stale-engine"
	x.AuthoritativeEngineBoots = 1
	a.connect(x)

	_, err := x.Get(context.Background(), []string{"1.3.6.1.2.1.1.1.0"})
	require.NoError(t, err)
	assert.Equal(t, 2, a.requestCount())
	assert.Equal(t, agentEngineID, x.security.authoritativeEngine(x.target.String()))
}

func TestV3Trap(t *testing.T) {
	a := newTestAgent(t)
	x := a.v3Session(AuthPriv, v3User(SHA, AES))
	x.LocalEngineID = localEngineID
	x.LocalEngineBoots = 1
	a.connect(x)

	require.NoError(t, x.Trap(context.Background(), Notification{OID: trapTestOid, Varbinds: trapTestVarbinds}))
	pdu := a.waitNotification()
	assert.Equal(t, SNMPv2Trap, pdu.Type())
	require.Len(t, pdu.Varbinds(), 4)
	assert.Equal(t, trapTestOid, pdu.Varbinds()[1].Value)
	assert.Equal(t, 1, a.requestCount(), "traps need no discovery")
}

func TestV3TrapNeedsLocalEngine(t *testing.T) {
	a := newTestAgent(t)
	x := a.connect(a.v3Session(AuthNoPriv, v3User(MD5, NoPriv)))
	assert.Error(t, x.Trap(context.Background(), Notification{OID: trapTestOid}))
}

func TestV3Inform(t *testing.T) {
	a := newTestAgent(t)
	x := a.connect(a.v3Session(AuthPriv, v3User(SHA, DES)))

	vbs, err := x.Inform(context.Background(), Notification{OID: trapTestOid, Varbinds: trapTestVarbinds})
	require.NoError(t, err)
	assert.Len(t, vbs, 4)
	assert.Equal(t, InformRequest, a.waitNotification().Type())
}
