// Package sshcrypto is a thin facade over the cryptographic primitives the
// protocol engine needs: curve25519 Diffie-Hellman, ed25519 signing, and
// SHA-256 exchange hashing. kex and auth reach these primitives through
// this package, mirroring the way xsnet.Conn kept its KEX arithmetic behind
// the herradurakex/kyber/newhope packages rather than calling big.Int math
// inline; the cipher package uses golang.org/x/crypto's chacha20 and
// poly1305 directly.
//
// Copyright (c) 2017-2019 Russell Magee
// Licensed under the terms of the MIT license (see LICENSE.mit in this
// distribution)
package sshcrypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"

	"golang.org/x/crypto/curve25519"
)

// ErrBadSignature is returned when an ed25519 signature fails verification.
var ErrBadSignature = errors.New("sshcrypto: signature verification failed")

// Curve25519KeyPair holds an ephemeral DH keypair for one key exchange.
type Curve25519KeyPair struct {
	Private [32]byte
	Public  [32]byte
}

// NewCurve25519KeyPair generates a fresh ephemeral keypair.
func NewCurve25519KeyPair() (*Curve25519KeyPair, error) {
	var kp Curve25519KeyPair
	if _, err := rand.Read(kp.Private[:]); err != nil {
		return nil, err
	}
	curve25519.ScalarBaseMult(&kp.Public, &kp.Private)
	return &kp, nil
}

// SharedSecret computes the curve25519 shared secret with a peer's public
// value, returned as the raw 32-byte group element (the caller encodes it
// as an mpint before hashing, per RFC 5656 page 7 / libssh's curve25519
// profile).
func SharedSecret(priv *[32]byte, peerPublic []byte) ([]byte, error) {
	var pub [32]byte
	copy(pub[:], peerPublic)
	var out [32]byte
	curve25519.ScalarMult(&out, priv, &pub)
	return out[:], nil
}

// ExchangeHash computes SHA-256 over an already-assembled hash buffer
// (client_id || server_id || client_kexinit || server_kexinit ||
// host_key_blob || client_ephemeral || server_ephemeral || mpint(K)).
func ExchangeHash(buf []byte) [32]byte {
	return sha256.Sum256(buf)
}

// DeriveKey runs the RFC 4253 §7.2 key-derivation hash:
// HASH(K || H || letter || session_id), extended with
// HASH(K || H || K1 || K2 || ...) until at least n bytes are produced.
func DeriveKey(k []byte, h [32]byte, letter byte, sessionID [32]byte, n int) []byte {
	var out []byte
	seed := sha256.New()
	seed.Write(k)
	seed.Write(h[:])
	seed.Write([]byte{letter})
	seed.Write(sessionID[:])
	out = append(out, seed.Sum(nil)...)

	for len(out) < n {
		next := sha256.New()
		next.Write(k)
		next.Write(h[:])
		next.Write(out)
		out = append(out, next.Sum(nil)...)
	}
	return out[:n]
}

// GenerateEd25519 generates a host/user ed25519 keypair.
func GenerateEd25519() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	return ed25519.GenerateKey(rand.Reader)
}

// Sign produces an ed25519 signature over msg.
func Sign(priv ed25519.PrivateKey, msg []byte) []byte {
	return ed25519.Sign(priv, msg)
}

// Verify checks an ed25519 signature, returning ErrBadSignature on
// mismatch so callers can propagate a typed protocol error.
func Verify(pub ed25519.PublicKey, msg, sig []byte) error {
	if ed25519.Verify(pub, msg, sig) {
		return nil
	}
	return ErrBadSignature
}

// ConstantTimeEqual reports whether a and b are equal without leaking
// timing information. The cipher layer does not call it: its Poly1305 tag
// check goes through poly1305.Verify.
func ConstantTimeEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
