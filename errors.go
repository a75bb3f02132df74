// Package sshcore implements a non-blocking, incrementally-driven SSH
// transport and user-authentication engine: version exchange, KEXINIT
// negotiation, curve25519 key exchange, the chacha20-poly1305@openssh.com
// record layer, RFC 4252 authentication, and RFC 4254 channel
// multiplexing, with re-keying on byte or time thresholds.
//
// External collaborators — the byte transport, host/user key files, and
// application policy decisions — are injected through small interfaces
// (Config, the auth callbacks, and plain io.Reader/io.Writer), the way
// xsnet.Conn in the teacher repo this package descends from takes its
// auth backends as pluggable collaborators. The cryptographic primitives
// are not injected: they come from the sshcrypto package and
// golang.org/x/crypto.
//
// Copyright (c) 2017-2019 Russell Magee
// Licensed under the terms of the MIT license (see LICENSE.mit in this
// distribution)
package sshcore

import "fmt"

// Kind classifies an Error into the closed taxonomy this engine surfaces,
// so callers can switch on failure category instead of string-matching
// (the one place this package diverges from the teacher's own
// err.Error() == "..." comparisons in xsnet.Conn.Read).
type Kind int

const (
	// KindIO wraps an underlying transport read/write failure.
	KindIO Kind = iota
	// KindProtocol covers malformed packets: short buffers, bad framing,
	// fields out of range.
	KindProtocol
	// KindKex covers negotiation/DH failures: no common algorithm, a
	// rejected or malformed KEXINIT/KEXDH message.
	KindKex
	// KindMAC covers packet authentication failures in the record layer.
	KindMAC
	// KindAuth covers authentication protocol violations (not plain
	// "wrong password", which is a Result, not an Error).
	KindAuth
	// KindChannel covers channel-table violations: an unknown channel
	// number, a malformed channel message.
	KindChannel
	// KindDisconnected means the peer sent SSH_MSG_DISCONNECT; it is
	// surfaced distinctly from a bare KindIO failure so callers can log
	// the peer's stated reason.
	KindDisconnected
	// KindInconsistent means the engine reached a state transition the
	// protocol does not allow (a message arrived in a state that cannot
	// handle it); it indicates a bug or a hostile peer, not routine
	// protocol flow.
	KindInconsistent
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindProtocol:
		return "protocol"
	case KindKex:
		return "kex"
	case KindMAC:
		return "mac"
	case KindAuth:
		return "auth"
	case KindChannel:
		return "channel"
	case KindDisconnected:
		return "disconnected"
	case KindInconsistent:
		return "inconsistent"
	default:
		return "unknown"
	}
}

// Error is the engine's single error type, carrying a Kind so callers can
// branch on category and an optional wrapped cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error

	// ReasonCode carries the peer-supplied RFC 4254 §5.1 reason code for
	// a CHANNEL_OPEN_FAILURE, when Kind is KindChannel and one applies.
	ReasonCode uint32
}

func (e *Error) withReason(code uint32) *Error {
	e.ReasonCode = code
	return e
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("sshcore: %s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("sshcore: %s: %s", e.Kind, e.Msg)
}

// Unwrap supports errors.Is/errors.As against the wrapped cause.
func (e *Error) Unwrap() error { return e.Err }

func newErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// DisconnectInfo is the payload of a received SSH_MSG_DISCONNECT,
// surfaced distinctly from a generic I/O error per
// original_source/src/server/read.rs's dispatch.
type DisconnectInfo struct {
	ReasonCode  uint32
	Description string
}
