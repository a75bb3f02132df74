package sshcore

import (
	"time"

	"blitter.com/go/sshcore/auth"
	"blitter.com/go/sshcore/channel"
	"blitter.com/go/sshcore/hostkeys"
)

// Config is the embedder-assembled, structured descendant of xsnet.Conn's
// cipheropts/opts bitfields: every negotiated-parameter decision an
// embedder can make is a plain field here rather than a runtime flag
// parser, matching xsnet's own "server has final authority over
// negotiated parameters" design principle.
type Config struct {
	// Identification is this side's version-exchange identification
	// string; must begin with "SSH-2.0-" per RFC 4253 §4.2.
	Identification string

	// HostKey signs the server's side of the key exchange (server role
	// only; nil for a client-role Session).
	HostKey *hostkeys.HostKey

	// AuthMethods lists the methods a server offers (server role only).
	AuthMethods auth.Method

	// AuthBanner, if non-empty, is sent once via USERAUTH_BANNER right
	// after SERVICE_ACCEPT (server role only).
	AuthBanner string

	// WindowSize and MaxPacketSize seed every channel this side opens or
	// confirms.
	WindowSize    uint32
	MaxPacketSize uint32

	// RekeyByteLimit and RekeyTimeLimit bound how much may be sent in one
	// direction, and how long, before this side proposes a re-key.
	// Defaults follow RFC 4253 §9's recommendation (1 GiB / 1 hour), the
	// same values original_source/src/server/mod.rs's Config::default()
	// uses.
	RekeyByteLimit uint64
	RekeyTimeLimit time.Duration

	// Callbacks supplies the application policy decisions (password/
	// publickey verification, channel accept/reject, data delivery).
	Callbacks *Callbacks
}

// DefaultConfig returns a Config with RFC 4253 §9-recommended re-key
// thresholds and the engine's fixed channel flow-control defaults.
func DefaultConfig() *Config {
	return &Config{
		Identification: "SSH-2.0-sshcore_1.0",
		AuthMethods:    auth.AllMethods,
		WindowSize:     channel.DefaultWindowSize,
		MaxPacketSize:  channel.DefaultMaxPacketSize,
		RekeyByteLimit: 1 << 30,
		RekeyTimeLimit: time.Hour,
	}
}
