package sshcore

import (
	"blitter.com/go/sshcore/auth"
	"blitter.com/go/sshcore/channel"
	"blitter.com/go/sshcore/wire"
)

// Callbacks are the application-supplied policy decisions this engine
// defers to, the "external collaborator" role the teacher's AuthCtx and
// its xsd.go main() callbacks play: the protocol engine decides *when* a
// decision is needed, never *what* the decision should be.
type Callbacks struct {
	// Password is consulted for a "password" method USERAUTH_REQUEST.
	Password auth.PasswordVerifier

	// PublicKeyAcceptable is consulted for a "publickey" probe or signed
	// request, before the signature (if any) is cryptographically
	// checked by the engine itself.
	PublicKeyAcceptable auth.PublicKeyAcceptable

	// NewChannel is consulted for every CHANNEL_OPEN; returning false
	// rejects it with SSH_OPEN_ADMINISTRATIVELY_PROHIBITED.
	NewChannel func(chanType string) bool

	// Data delivers CHANNEL_DATA payloads to the application.
	Data func(ch *channel.Channel, data []byte)

	// ExtendedData delivers CHANNEL_EXTENDED_DATA payloads (stderr).
	ExtendedData func(ch *channel.Channel, dataType uint32, data []byte)

	// Request delivers a CHANNEL_REQUEST (exec/pty-req/shell/...),
	// returning whether it was honored (determines CHANNEL_SUCCESS vs.
	// CHANNEL_FAILURE when WantReply is set).
	Request func(ch *channel.Channel, reqType string, wantReply bool, typeSpecific *wire.Reader) bool

	// Closed notifies the application that a channel was closed.
	Closed func(ch *channel.Channel)
}

const (
	// OpenAdministrativelyProhibited is the CHANNEL_OPEN_FAILURE reason
	// code used when Callbacks.NewChannel rejects a channel type.
	OpenAdministrativelyProhibited = 1
)
