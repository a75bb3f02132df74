// Package msg holds the SSH packet type octet constants (RFC 4253 §12,
// RFC 4252 §6, RFC 4254 §9), shared by every layer that needs to dispatch
// on them without creating an import cycle.
package msg

// Transport layer generic (RFC 4253 §12).
const (
	DISCONNECT      = 1
	IGNORE          = 2
	UNIMPLEMENTED   = 3
	DEBUG           = 4
	SERVICE_REQUEST = 5
	SERVICE_ACCEPT  = 6
	KEXINIT         = 20
	NEWKEYS         = 21
)

// Curve25519 key exchange (RFC 5656-style ECDH, as used by
// curve25519-sha256@libssh.org).
const (
	KEX_ECDH_INIT  = 30
	KEX_ECDH_REPLY = 31
)

// User authentication (RFC 4252 §6).
const (
	USERAUTH_REQUEST = 50
	USERAUTH_FAILURE = 51
	USERAUTH_SUCCESS = 52
	USERAUTH_BANNER  = 53
	USERAUTH_PK_OK   = 60
)

// Channel (RFC 4254 §9).
const (
	CHANNEL_OPEN              = 90
	CHANNEL_OPEN_CONFIRMATION = 91
	CHANNEL_OPEN_FAILURE      = 92
	CHANNEL_WINDOW_ADJUST     = 93
	CHANNEL_DATA              = 94
	CHANNEL_EXTENDED_DATA     = 95
	CHANNEL_EOF               = 96
	CHANNEL_CLOSE             = 97
	CHANNEL_REQUEST           = 98
	CHANNEL_SUCCESS           = 99
	CHANNEL_FAILURE           = 100
)

// Disconnect reason codes (RFC 4253 §11.1), the subset this engine emits.
const (
	DisconnectProtocolError    = 2
	DisconnectKeyExchangeFailed = 3
	DisconnectMACError         = 5
	DisconnectByApplication    = 11
)

// ExtendedDataStderr is the only RFC 4254 §5.2 extended-data type this
// engine supports.
const ExtendedDataStderr = 1
