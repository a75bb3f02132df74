// Package cipher implements the record layer: the cleartext packet codec
// used before a key exchange completes, and the chacha20-poly1305@openssh.com
// keyed packet cipher used afterward. It also tracks the byte/time
// bookkeeping (SessionBuffer) that decides when a re-key is due.
//
// Copyright (c) 2017-2019 Russell Magee
// Licensed under the terms of the MIT license (see LICENSE.mit in this
// distribution)
package cipher

import (
	"errors"
	"time"

	"blitter.com/go/sshcore/wire"
)

// ErrMAC is returned when packet authentication fails.
var ErrMAC = errors.New("cipher: packet authentication failed")

// PacketCipher seals and opens one direction of packet traffic. A fresh
// pair (one per direction) is installed on every NEWKEYS and again after
// each re-key, exactly as xsnet.Conn replaces its r/w cipher.Stream after
// KEx completes.
type PacketCipher interface {
	// Seal frames and encrypts payload for sequence number seqNum,
	// returning the wire-ready packet.
	Seal(seqNum uint32, payload []byte) ([]byte, error)

	// Open verifies and decrypts one full packet (length field, body and
	// trailing MAC, sized by the caller from PacketLength and MACSize) and
	// returns the decoded payload.
	Open(seqNum uint32, packet []byte) ([]byte, error)

	// LengthFieldSize is the number of ciphertext bytes the caller must
	// read first to learn the remaining packet length (4, encrypted or
	// not, for every cipher this engine supports).
	LengthFieldSize() int

	// PacketLength decodes the (possibly-encrypted) length field,
	// returning the number of bytes that follow it, not counting the
	// trailing MAC.
	PacketLength(seqNum uint32, lengthField []byte) (uint32, error)

	// MACSize is the trailing authentication tag size appended to
	// every packet.
	MACSize() int
}

// Cleartext implements PacketCipher with no encryption or authentication,
// used for every packet up to and including NEWKEYS.
type Cleartext struct{}

// Seal frames payload using the RFC 4253 §6 cleartext packet format.
func (Cleartext) Seal(_ uint32, payload []byte) ([]byte, error) {
	return wire.EncodeCleartextPacket(payload)
}

// Open strips cleartext framing from a full packet.
func (Cleartext) Open(_ uint32, packet []byte) ([]byte, error) {
	return wire.DecodeCleartextPacket(packet)
}

// LengthFieldSize is always 4 cleartext bytes.
func (Cleartext) LengthFieldSize() int { return 4 }

// PacketLength reads the plain big-endian length field.
func (Cleartext) PacketLength(_ uint32, lengthField []byte) (uint32, error) {
	r := wire.NewReader(lengthField)
	return r.ReadUint32()
}

// MACSize is zero: cleartext packets carry no authentication tag.
func (Cleartext) MACSize() int { return 0 }

// SessionBuffer tracks bytes transferred and elapsed time in one
// direction since the last re-key, following the counters
// original_source/src/server/mod.rs resets to zero once a re-key
// completes and checks against config.rekey_{read,write}_limit /
// rekey_time_limit_s.
type SessionBuffer struct {
	BytesSinceRekey  uint64
	LastRekeyAt      time.Time
	RekeyByteLimit   uint64
	RekeyTimeLimit   time.Duration
}

// NewSessionBuffer returns a SessionBuffer with the RFC 4253 §9-recommended
// defaults (1 GiB / 1 hour), matching the Config::default() values in
// original_source/src/server/mod.rs.
func NewSessionBuffer() *SessionBuffer {
	return &SessionBuffer{
		LastRekeyAt:    time.Now(),
		RekeyByteLimit: 1 << 30,
		RekeyTimeLimit: time.Hour,
	}
}

// Account records n additional bytes transferred.
func (s *SessionBuffer) Account(n int) {
	s.BytesSinceRekey += uint64(n)
}

// Due reports whether a re-key should be initiated.
func (s *SessionBuffer) Due() bool {
	if s.BytesSinceRekey >= s.RekeyByteLimit {
		return true
	}
	return time.Since(s.LastRekeyAt) >= s.RekeyTimeLimit
}

// ResetAfterRekey zeroes the counters once NEWKEYS completes for a re-key.
func (s *SessionBuffer) ResetAfterRekey() {
	s.BytesSinceRekey = 0
	s.LastRekeyAt = time.Now()
}
