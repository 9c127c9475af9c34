// Copyright 2012-2014 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package netsnmp

import (
	"crypto/hmac"
	"crypto/md5" //nolint:gosec
	"crypto/sha1" //nolint:gosec
	"errors"
	"hash"
	"sync"
	"sync/atomic"
)

// SnmpV3AuthProtocol describes the authentication protocol in use by an authenticated SnmpV3 connection.
type SnmpV3AuthProtocol uint8

// NoAuth, MD5, and SHA are implemented
const (
	NoAuth SnmpV3AuthProtocol = 1
	MD5    SnmpV3AuthProtocol = 2
	SHA    SnmpV3AuthProtocol = 3
)

func (a SnmpV3AuthProtocol) String() string {
	switch a {
	case NoAuth:
		return "NoAuth"
	case MD5:
		return "MD5"
	case SHA:
		return "SHA"
	}
	return "Unknown"
}

// authParamsLength is the truncated HMAC length of HMAC-MD5-96 and HMAC-SHA-96.
const authParamsLength = 12

// passphraseExpansion is the number of passphrase octets hashed into a
// key, RFC 3414 A.2.
const passphraseExpansion = 1048576

var errEmptyPassphrase = errors.New("empty passphrase")

func (a SnmpV3AuthProtocol) newHash() (func() hash.Hash, error) {
	switch a {
	case MD5:
		return md5.New, nil
	case SHA:
		return sha1.New, nil
	}
	return nil, &UnsupportedSecurityLevelError{Msg: "authentication protocol " + a.String()}
}

// hashPassphrase turns a passphrase into the key Ku by digesting exactly
// one megabyte of the passphrase repeated end to end.
func hashPassphrase(proto SnmpV3AuthProtocol, passphrase string) ([]byte, error) {
	newHash, err := proto.newHash()
	if err != nil {
		return nil, err
	}
	if passphrase == "" {
		return nil, errEmptyPassphrase
	}
	h := newHash()
	var chunk [64]byte
	var pi int // password index
	for i := 0; i < passphraseExpansion; i += 64 {
		for e := range chunk {
			chunk[e] = passphrase[pi%len(passphrase)]
			pi++
		}
		h.Write(chunk[:])
	}
	return h.Sum(nil), nil
}

// localizeKey binds ku to an engine: H(ku || engineID || ku).
func localizeKey(proto SnmpV3AuthProtocol, ku []byte, engineID string) ([]byte, error) {
	newHash, err := proto.newHash()
	if err != nil {
		return nil, err
	}
	h := newHash()
	h.Write(ku)
	h.Write([]byte(engineID))
	h.Write(ku)
	return h.Sum(nil), nil
}

// localizedKey returns the key for passphrase localized to engineID,
// using the cache when enabled.
func localizedKey(proto SnmpV3AuthProtocol, passphrase, engineID string) ([]byte, error) {
	cacheKey := proto.String() + "\x00" + passphrase + "\x00" + engineID
	if key, ok := passwordKeyCache.get(cacheKey); ok {
		return key, nil
	}
	ku, err := hashPassphrase(proto, passphrase)
	if err != nil {
		return nil, err
	}
	key, err := localizeKey(proto, ku, engineID)
	if err != nil {
		return nil, err
	}
	passwordKeyCache.put(cacheKey, key)
	return key, nil
}

// computeDigest returns the 96 bit HMAC of msg.
func computeDigest(proto SnmpV3AuthProtocol, key, msg []byte) ([]byte, error) {
	newHash, err := proto.newHash()
	if err != nil {
		return nil, err
	}
	mac := hmac.New(newHash, key)
	mac.Write(msg)
	return mac.Sum(nil)[:authParamsLength], nil
}

// isAuthentic reports whether digest is the HMAC of msg, where msg already
// has its authentication parameters zeroed.
func isAuthentic(proto SnmpV3AuthProtocol, key, msg, digest []byte) (bool, error) {
	expected, err := computeDigest(proto, key, msg)
	if err != nil {
		return false, err
	}
	return hmac.Equal(expected, digest), nil
}

// keyCache holds localized keys, since deriving one hashes a megabyte.
type keyCache struct {
	mu      sync.RWMutex
	enabled atomic.Bool
	table   map[string][]byte
}

var passwordKeyCache = newKeyCache()

func newKeyCache() *keyCache {
	c := &keyCache{table: make(map[string][]byte)}
	c.enabled.Store(true)
	return c
}

func (c *keyCache) get(k string) ([]byte, bool) {
	if !c.enabled.Load() {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.table[k]
	return v, ok
}

func (c *keyCache) put(k string, v []byte) {
	if !c.enabled.Load() {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table[k] = v
}

func (c *keyCache) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.table = make(map[string][]byte)
}

// PasswordCaching enables or disables the process wide cache of localized
// keys. Disabling it also empties it.
func PasswordCaching(enable bool) {
	passwordKeyCache.enabled.Store(enable)
	if !enable {
		passwordKeyCache.reset()
	}
}
