package auth

import (
	"errors"

	"blitter.com/go/sshcore/sshcrypto"
	"blitter.com/go/sshcore/wire"
)

// ErrMalformed is returned when a USERAUTH_REQUEST payload doesn't parse.
var ErrMalformed = errors.New("auth: malformed USERAUTH_REQUEST")

// ErrUnsupportedMethod names a method outside {password, publickey}.
// Nothing in this package returns it: the server's dispatch answers such a
// request with USERAUTH_FAILURE instead. hostbased is not in AllMethods and
// is not implemented, matching original_source/src/server/encrypted.rs's
// "insecure or optional" catch-all.
var ErrUnsupportedMethod = errors.New("auth: unsupported method")

// PasswordVerifier is the application-supplied callback deciding whether a
// username/password pair is acceptable. It is the external collaborator
// this package defers policy to, the same role AuthCtx.reader/userlookup
// plays in the teacher's auth.go.
type PasswordVerifier func(user, password string) bool

// PublicKeyAcceptable decides whether a bare offered public key would be
// acceptable for user, before any signature has been seen (RFC 4252 §7
// probe step).
type PublicKeyAcceptable func(user, algorithm string, keyBlob []byte) bool

// PasswordRequest is a parsed "password" method USERAUTH_REQUEST.
type PasswordRequest struct {
	User     string
	Password string
}

// PublicKeyRequest is a parsed "publickey" method USERAUTH_REQUEST, either
// a probe (Signature == nil) or a signed assertion.
type PublicKeyRequest struct {
	User       string
	Algorithm  string
	KeyBlob    []byte
	IsProbe    bool
	Signature  []byte
	SignedBlob []byte // bytes the signature covers, i.e. buf[0:pos0] per RFC 4252 §7
}

// ParseRequestHeader reads the common USERAUTH_REQUEST prefix (user name,
// service name, method name) and returns the method name plus a Reader
// positioned right after it, so callers can branch on method.
func ParseRequestHeader(payload []byte) (user, service, method string, r *wire.Reader, err error) {
	r = wire.NewReader(payload)
	if _, err = r.ReadByte(); err != nil { // message code
		return
	}
	u, err := r.ReadString()
	if err != nil {
		return
	}
	s, err := r.ReadString()
	if err != nil {
		return
	}
	m, err := r.ReadString()
	if err != nil {
		return
	}
	return string(u), string(s), string(m), r, nil
}

// ParsePasswordRequest parses the remainder of a "password" method
// USERAUTH_REQUEST (a boolean "change password" flag this engine ignores,
// then the password string).
func ParsePasswordRequest(user string, r *wire.Reader) (*PasswordRequest, error) {
	if _, err := r.ReadByte(); err != nil { // FALSE: not a change-password request
		return nil, ErrMalformed
	}
	pw, err := r.ReadString()
	if err != nil {
		return nil, ErrMalformed
	}
	return &PasswordRequest{User: user, Password: string(pw)}, nil
}

// ParsePublicKeyRequest parses the remainder of a "publickey" method
// USERAUTH_REQUEST, grounded directly on
// original_source/src/server/encrypted.rs's server_read_auth_request and
// server_verify_signature.
func ParsePublicKeyRequest(user string, payload []byte, r *wire.Reader) (*PublicKeyRequest, error) {
	hasSig, err := r.ReadByte()
	if err != nil {
		return nil, ErrMalformed
	}
	algo, err := r.ReadString()
	if err != nil {
		return nil, ErrMalformed
	}
	keyBlob, err := r.ReadString()
	if err != nil {
		return nil, ErrMalformed
	}
	pos0 := r.Pos()

	req := &PublicKeyRequest{
		User:      user,
		Algorithm: string(algo),
		KeyBlob:   append([]byte(nil), keyBlob...),
	}
	if hasSig == 0 {
		req.IsProbe = true
		return req, nil
	}
	sig, err := r.ReadString()
	if err != nil {
		return nil, ErrMalformed
	}
	req.Signature = append([]byte(nil), sig...)
	req.SignedBlob = append([]byte(nil), payload[:pos0]...)
	return req, nil
}

// VerifyPublicKeySignature checks that Signature is a valid ed25519
// signature, by the key in KeyBlob, over (session_id || SignedBlob), per
// RFC 4252 §7's exact signed-data construction.
func VerifyPublicKeySignature(req *PublicKeyRequest, sessionID [32]byte, pubKey []byte) error {
	buf := wire.NewBuffer()
	buf.PutString(sessionID[:])
	buf.PutBytes(req.SignedBlob)

	sigReader := wire.NewReader(req.Signature)
	if _, err := sigReader.ReadString(); err != nil { // algorithm name, already known
		return ErrMalformed
	}
	rawSig, err := sigReader.ReadString()
	if err != nil {
		return ErrMalformed
	}
	return sshcrypto.Verify(pubKey, buf.Bytes(), rawSig)
}

// ExtractEd25519PublicKey decodes an ssh-ed25519 public key blob
// (string "ssh-ed25519", string rawkey) into the raw 32-byte key.
func ExtractEd25519PublicKey(blob []byte) ([]byte, error) {
	r := wire.NewReader(blob)
	if _, err := r.ReadString(); err != nil {
		return nil, ErrMalformed
	}
	key, err := r.ReadString()
	if err != nil {
		return nil, ErrMalformed
	}
	return key, nil
}
