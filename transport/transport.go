// Package transport supplies the opaque, bidirectional byte-stream
// collaborator the engine's Session.Read/Write expect: plain net.Conn
// Dial/Listen helpers over TCP or KCP (github.com/xtaci/kcp-go), the
// same two-protocol choice xsnet.Conn itself dials/listens over in the
// teacher repo, minus the teacher's custom record-layer framing, since
// that job now belongs entirely to the root package's Session.
//
// Copyright (c) 2017-2019 Russell Magee
// Licensed under the terms of the MIT license (see LICENSE.mit in this
// distribution)
package transport

import (
	"crypto/sha1"
	"errors"
	"net"

	kcp "github.com/xtaci/kcp-go"
	"golang.org/x/crypto/pbkdf2"

	"blitter.com/go/sshcore/logger"
)

// BlockCipher selects the symmetric cipher KCP uses to obscure its own
// UDP datagrams, independent of (and prior to) the chacha20-poly1305
// record-layer cipher the SSH session negotiates once connected.
type BlockCipher int

const (
	BlockCipherNone BlockCipher = iota
	BlockCipherAES
	BlockCipherBlowfish
	BlockCipherCast5
	BlockCipherSalsa20
	BlockCipherTwofish
	BlockCipherXTEA
)

// Options configures a KCP dial or listen. Dialing or listening over
// plain TCP ignores it entirely.
type Options struct {
	// Cipher selects KCP's datagram-obscuring block cipher. Zero value
	// is BlockCipherNone.
	Cipher BlockCipher
	// Key and Salt derive the KCP block-cipher key via PBKDF2; both
	// must be set to use KCP with anything other than BlockCipherNone.
	Key, Salt []byte
}

func (o Options) blockCrypt() (kcp.BlockCrypt, error) {
	key := pbkdf2.Key(o.Key, o.Salt, 1024, 32, sha1.New)
	switch o.Cipher {
	case BlockCipherNone:
		return kcp.NewNoneBlockCrypt(key)
	case BlockCipherAES:
		return kcp.NewAESBlockCrypt(key)
	case BlockCipherBlowfish:
		return kcp.NewBlowfishBlockCrypt(key)
	case BlockCipherCast5:
		return kcp.NewCast5BlockCrypt(key)
	case BlockCipherSalsa20:
		return kcp.NewSalsa20BlockCrypt(key)
	case BlockCipherTwofish:
		return kcp.NewTwofishBlockCrypt(key)
	case BlockCipherXTEA:
		return kcp.NewXTEABlockCrypt(key)
	}
	return nil, errors.New("transport: invalid KCP block cipher")
}

// DialTCP opens a plain net.Conn to addr over TCP.
func DialTCP(addr string) (net.Conn, error) {
	return net.Dial("tcp", addr)
}

// ListenTCP opens a net.Listener on addr over TCP.
func ListenTCP(addr string) (net.Listener, error) {
	return net.Listen("tcp", addr)
}

// DialKCP opens a net.Conn to addr over KCP, its datagrams obscured by
// opts' block cipher.
func DialKCP(addr string, opts Options) (net.Conn, error) {
	block, err := opts.blockCrypt()
	if err != nil {
		return nil, err
	}
	logger.LogDebug("[transport: dialing kcp " + addr + "]")
	return kcp.DialWithOptions(addr, block, 10, 3)
}

// ListenKCP opens a net.Listener on addr over KCP, its datagrams obscured
// by opts' block cipher.
func ListenKCP(addr string, opts Options) (net.Listener, error) {
	block, err := opts.blockCrypt()
	if err != nil {
		return nil, err
	}
	logger.LogDebug("[transport: listening kcp " + addr + "]")
	return kcp.ListenWithOptions(addr, block, 10, 3)
}
