// Package kex implements algorithm negotiation (KEXINIT name-list
// exchange), the curve25519-sha256@libssh.org key exchange, the exchange
// hash construction, and the RFC 4253 §7.2 six-label key derivation.
//
// Copyright (c) 2017-2019 Russell Magee
// Licensed under the terms of the MIT license (see LICENSE.mit in this
// distribution)
package kex

import (
	"crypto/rand"
	"errors"

	"blitter.com/go/sshcore/wire"
)

// Fixed algorithm names this engine negotiates. DESIGN PRINCIPLE carried
// over from the teacher's xsnet/net.go: there is exactly one proposal on
// each list, so negotiation can only ever confirm this algorithm set, not
// select a weaker alternative.
const (
	KexAlgorithm    = "curve25519-sha256@libssh.org"
	HostKeyAlgorithm = "ssh-ed25519"
	CipherAlgorithm = "chacha20-poly1305@openssh.com"
	MACAlgorithm    = "" // implicit: the cipher above is AEAD, no separate MAC
	CompressionNone = "none"
)

// ErrNoCommonAlgorithm is returned when a peer's KEXINIT omits the single
// algorithm this engine supports.
var ErrNoCommonAlgorithm = errors.New("kex: no common algorithm with peer")

// Init is the locally-assembled KEXINIT payload: a cookie, the fixed
// single-entry name-lists, and reserved fields. Wire layout per RFC 4253
// §7.1.
type Init struct {
	Cookie                  [16]byte
	KexAlgorithms           []string
	ServerHostKeyAlgorithms []string
	EncryptionC2S           []string
	EncryptionS2C           []string
	MACC2S                  []string
	MACS2C                  []string
	CompressionC2S          []string
	CompressionS2C          []string
	LanguagesC2S            []string
	LanguagesS2C             []string
	FirstKexPacketFollows   bool
}

// NewInit builds this engine's outgoing KEXINIT proposal.
func NewInit() (*Init, error) {
	var cookie [16]byte
	if _, err := rand.Read(cookie[:]); err != nil {
		return nil, err
	}
	return &Init{
		Cookie:                  cookie,
		KexAlgorithms:           []string{KexAlgorithm},
		ServerHostKeyAlgorithms: []string{HostKeyAlgorithm},
		EncryptionC2S:           []string{CipherAlgorithm},
		EncryptionS2C:           []string{CipherAlgorithm},
		MACC2S:                  []string{},
		MACS2C:                  []string{},
		CompressionC2S:          []string{CompressionNone},
		CompressionS2C:          []string{CompressionNone},
	}, nil
}

// Marshal encodes a KEXINIT packet payload (message code 20 included).
func (in *Init) Marshal() []byte {
	buf := wire.NewBuffer()
	buf.PutByte(20) // msg.KEXINIT
	buf.PutBytes(in.Cookie[:])
	buf.PutNameList(in.KexAlgorithms)
	buf.PutNameList(in.ServerHostKeyAlgorithms)
	buf.PutNameList(in.EncryptionC2S)
	buf.PutNameList(in.EncryptionS2C)
	buf.PutNameList(in.MACC2S)
	buf.PutNameList(in.MACS2C)
	buf.PutNameList(in.CompressionC2S)
	buf.PutNameList(in.CompressionS2C)
	buf.PutNameList(in.LanguagesC2S)
	buf.PutNameList(in.LanguagesS2C)
	if in.FirstKexPacketFollows {
		buf.PutByte(1)
	} else {
		buf.PutByte(0)
	}
	buf.PutUint32(0) // reserved
	return buf.Bytes()
}

// ParseInit decodes a peer's KEXINIT payload (message code byte already
// stripped by the caller).
func ParseInit(payload []byte) (*Init, error) {
	r := wire.NewReader(payload)
	var in Init
	for i := 0; i < 16; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		in.Cookie[i] = b
	}
	lists := []*[]string{
		&in.KexAlgorithms, &in.ServerHostKeyAlgorithms,
		&in.EncryptionC2S, &in.EncryptionS2C,
		&in.MACC2S, &in.MACS2C,
		&in.CompressionC2S, &in.CompressionS2C,
		&in.LanguagesC2S, &in.LanguagesS2C,
	}
	for _, l := range lists {
		names, err := r.ReadNameList()
		if err != nil {
			return nil, err
		}
		*l = names
	}
	follows, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	in.FirstKexPacketFollows = follows != 0
	return &in, nil
}

// Negotiate confirms the peer's KEXINIT proposes the algorithm set this
// engine requires, mirroring xsnet's "server has final authority" design
// principle: an unrecognized proposal is rejected outright rather than
// falling back to a weaker common denominator.
func Negotiate(peer *Init) error {
	if !contains(peer.KexAlgorithms, KexAlgorithm) {
		return ErrNoCommonAlgorithm
	}
	if !contains(peer.ServerHostKeyAlgorithms, HostKeyAlgorithm) {
		return ErrNoCommonAlgorithm
	}
	if !contains(peer.EncryptionC2S, CipherAlgorithm) || !contains(peer.EncryptionS2C, CipherAlgorithm) {
		return ErrNoCommonAlgorithm
	}
	return nil
}

func contains(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}
