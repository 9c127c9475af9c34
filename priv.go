// Copyright 2012-2016 The GoSNMP Authors. All rights reserved.  Use of this
// source code is governed by a BSD-style license that can be found in the
// LICENSE file.

package netsnmp

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des" //nolint:gosec
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
)

// SnmpV3PrivProtocol is the privacy protocol in use by an private SnmpV3 connection.
type SnmpV3PrivProtocol uint8

// NoPriv, DES and AES are implemented. AES192 and AES256 are recognised
// but have no registered implementation.
const (
	NoPriv SnmpV3PrivProtocol = 1
	DES    SnmpV3PrivProtocol = 2
	AES    SnmpV3PrivProtocol = 3
	AES192 SnmpV3PrivProtocol = 4
	AES256 SnmpV3PrivProtocol = 5
)

func (p SnmpV3PrivProtocol) String() string {
	switch p {
	case NoPriv:
		return "NoPriv"
	case DES:
		return "DES"
	case AES:
		return "AES"
	case AES192:
		return "AES192"
	case AES256:
		return "AES256"
	}
	return "Unknown"
}

// PrivacyProtocol transforms a scoped PDU under a localized privacy key.
// boots and engineTime are the values carried in the same message.
type PrivacyProtocol interface {
	Encrypt(plaintext, key []byte, boots, engineTime uint32) (ciphertext, privParams []byte, err error)
	Decrypt(ciphertext, key, privParams []byte, boots, engineTime uint32) ([]byte, error)
}

var (
	privacyMu        sync.RWMutex
	privacyProtocols = map[SnmpV3PrivProtocol]PrivacyProtocol{}
)

func init() {
	RegisterPrivacyProtocol(DES, newDESPrivacy())
	RegisterPrivacyProtocol(AES, newAESPrivacy())
}

// RegisterPrivacyProtocol installs impl for p, replacing any previous one.
func RegisterPrivacyProtocol(p SnmpV3PrivProtocol, impl PrivacyProtocol) {
	privacyMu.Lock()
	defer privacyMu.Unlock()
	privacyProtocols[p] = impl
}

func lookupPrivacyProtocol(p SnmpV3PrivProtocol) (PrivacyProtocol, error) {
	privacyMu.RLock()
	defer privacyMu.RUnlock()
	impl, ok := privacyProtocols[p]
	if !ok {
		return nil, &UnimplementedError{Feature: "privacy protocol " + p.String()}
	}
	return impl, nil
}

func randomUint64() uint64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		panic(fmt.Sprintf("netsnmp: unable to seed salt: %v", err))
	}
	return binary.BigEndian.Uint64(b[:])
}

// desPrivacy is CBC-DES, RFC 3414 section 8.1.1.
type desPrivacy struct {
	salt atomic.Uint32
}

func newDESPrivacy() *desPrivacy {
	p := &desPrivacy{}
	p.salt.Store(uint32(randomUint64())) //nolint:gosec
	return p
}

func (p *desPrivacy) Encrypt(plaintext, key []byte, boots, _ uint32) ([]byte, []byte, error) {
	if len(key) < 16 {
		return nil, nil, fmt.Errorf("DES key of length %d", len(key))
	}
	block, err := des.NewCipher(key[:8]) //nolint:gosec
	if err != nil {
		return nil, nil, err
	}

	// http://tools.ietf.org/html/rfc2574#section-8.1.1.1
	// localDESSalt needs to be incremented on every packet.
	salt := make([]byte, 8)
	binary.BigEndian.PutUint32(salt, boots)
	binary.BigEndian.PutUint32(salt[4:], p.salt.Add(1))

	iv := make([]byte, 8)
	for i := range iv {
		iv[i] = key[8+i] ^ salt[i]
	}

	padded := plaintext
	if rem := len(plaintext) % des.BlockSize; rem != 0 {
		padded = make([]byte, len(plaintext)+des.BlockSize-rem)
		copy(padded, plaintext)
	}
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return ciphertext, salt, nil
}

func (p *desPrivacy) Decrypt(ciphertext, key, privParams []byte, _, _ uint32) ([]byte, error) {
	if len(key) < 16 {
		return nil, fmt.Errorf("DES key of length %d", len(key))
	}
	if len(privParams) != 8 {
		return nil, fmt.Errorf("DES privacy parameters of length %d", len(privParams))
	}
	if len(ciphertext) == 0 || len(ciphertext)%des.BlockSize != 0 {
		return nil, fmt.Errorf("DES ciphertext of length %d", len(ciphertext))
	}
	block, err := des.NewCipher(key[:8]) //nolint:gosec
	if err != nil {
		return nil, err
	}
	iv := make([]byte, 8)
	for i := range iv {
		iv[i] = key[8+i] ^ privParams[i]
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)
	return plaintext, nil
}

// aesPrivacy is CFB128-AES-128, RFC 3826.
type aesPrivacy struct {
	salt atomic.Uint64
}

func newAESPrivacy() *aesPrivacy {
	p := &aesPrivacy{}
	p.salt.Store(randomUint64())
	return p
}

func aesIV(boots, engineTime uint32, salt []byte) []byte {
	iv := make([]byte, aes.BlockSize)
	binary.BigEndian.PutUint32(iv, boots)
	binary.BigEndian.PutUint32(iv[4:], engineTime)
	copy(iv[8:], salt)
	return iv
}

func (p *aesPrivacy) Encrypt(plaintext, key []byte, boots, engineTime uint32) ([]byte, []byte, error) {
	if len(key) < 16 {
		return nil, nil, fmt.Errorf("AES key of length %d", len(key))
	}
	block, err := aes.NewCipher(key[:16])
	if err != nil {
		return nil, nil, err
	}
	salt := make([]byte, 8)
	binary.BigEndian.PutUint64(salt, p.salt.Add(1))

	ciphertext := make([]byte, len(plaintext))
	cipher.NewCFBEncrypter(block, aesIV(boots, engineTime, salt)).XORKeyStream(ciphertext, plaintext) //nolint:staticcheck
	return ciphertext, salt, nil
}

func (p *aesPrivacy) Decrypt(ciphertext, key, privParams []byte, boots, engineTime uint32) ([]byte, error) {
	if len(key) < 16 {
		return nil, fmt.Errorf("AES key of length %d", len(key))
	}
	if len(privParams) != 8 {
		return nil, fmt.Errorf("AES privacy parameters of length %d", len(privParams))
	}
	block, err := aes.NewCipher(key[:16])
	if err != nil {
		return nil, err
	}
	plaintext := make([]byte, len(ciphertext))
	cipher.NewCFBDecrypter(block, aesIV(boots, engineTime, privParams)).XORKeyStream(plaintext, ciphertext) //nolint:staticcheck
	return plaintext, nil
}
