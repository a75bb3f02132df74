package auth

import "blitter.com/go/sshcore/wire"

// Request tracks one connection's authentication progress, grounded on
// original_source/src/auth.rs's AuthRequest struct: which methods remain
// offered, whether a partial success has occurred, and the publickey
// probe/sign two-step (RFC 4252 §7: a client may first ask "would this key
// be acceptable?" before committing to a signature).
type Request struct {
	Methods         Method
	PartialSuccess  bool
	PubKeyBlob      []byte
	PubKeyAlgorithm string
	PubKeyProbeOK   bool
	SentPKOk        bool
}

// NewRequest starts a fresh auth negotiation offering every method the
// server config allows.
func NewRequest(allowed Method) *Request {
	return &Request{Methods: allowed}
}

// Result is the outcome of one authentication attempt.
type Result struct {
	Success          bool
	RemainingMethods Method
	PartialSuccess   bool
}

// EncodeFailure builds a USERAUTH_FAILURE payload (message code included)
// listing the still-available methods.
func EncodeFailure(req *Request) []byte {
	buf := wire.NewBuffer()
	buf.PutByte(51) // msg.USERAUTH_FAILURE
	buf.PutNameList(req.Methods.Names())
	if req.PartialSuccess {
		buf.PutByte(1)
	} else {
		buf.PutByte(0)
	}
	return buf.Bytes()
}

// EncodeSuccess builds a USERAUTH_SUCCESS payload.
func EncodeSuccess() []byte {
	return []byte{52} // msg.USERAUTH_SUCCESS
}

// EncodePKOk builds a USERAUTH_PK_OK payload in response to a publickey
// probe, echoing back the algorithm and key blob the client offered.
func EncodePKOk(algorithm string, keyBlob []byte) []byte {
	buf := wire.NewBuffer()
	buf.PutByte(60) // msg.USERAUTH_PK_OK
	buf.PutString([]byte(algorithm))
	buf.PutString(keyBlob)
	return buf.Bytes()
}

// EncodeBanner builds an optional USERAUTH_BANNER payload sent once, right
// after SERVICE_ACCEPT, per original_source/src/server/encrypted.rs's
// server_accept_service.
func EncodeBanner(text string) []byte {
	buf := wire.NewBuffer()
	buf.PutByte(53) // msg.USERAUTH_BANNER
	buf.PutString([]byte(text))
	buf.PutString(nil)
	return buf.Bytes()
}
