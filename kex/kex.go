package kex

import (
	"math/big"

	"blitter.com/go/sshcore/sshcrypto"
	"blitter.com/go/sshcore/wire"
)

// Exchange accumulates the fields the exchange hash is computed over, as
// they become available across the version exchange and KEXINIT/KEXDH
// round trip. Grounded on original_source/src/lib.rs's Exchange struct.
type Exchange struct {
	ClientID        []byte
	ServerID        []byte
	ClientKexInit   []byte
	ServerKexInit   []byte
	ClientEphemeral []byte
	ServerEphemeral []byte
}

// KeyPair is a live curve25519 ephemeral keypair plus the resulting shared
// secret once the peer's public value is known.
type KeyPair struct {
	kp     *sshcrypto.Curve25519KeyPair
	Shared *big.Int
}

// GenerateServerKeyPair creates the server's ephemeral DH keypair in
// response to SSH_MSG_KEX_ECDH_INIT.
func GenerateServerKeyPair() (*KeyPair, error) {
	kp, err := sshcrypto.NewCurve25519KeyPair()
	if err != nil {
		return nil, err
	}
	return &KeyPair{kp: kp}, nil
}

// GenerateClientKeyPair creates the client's ephemeral DH keypair sent in
// SSH_MSG_KEX_ECDH_INIT.
func GenerateClientKeyPair() (*KeyPair, error) {
	return GenerateServerKeyPair()
}

// Public returns this side's 32-byte ephemeral public value.
func (k *KeyPair) Public() []byte {
	pub := make([]byte, 32)
	copy(pub, k.kp.Public[:])
	return pub
}

// ComputeShared derives the shared secret from the peer's ephemeral public
// value and stores it as a positive big.Int (the mpint encoding used in
// the exchange hash and key derivation per RFC 4253 §8).
func (k *KeyPair) ComputeShared(peerPublic []byte) error {
	secret, err := sshcrypto.SharedSecret(&k.kp.Private, peerPublic)
	if err != nil {
		return err
	}
	k.Shared = new(big.Int).SetBytes(secret)
	return nil
}

// ComputeExchangeHash builds the RFC 4253 §8 / curve25519-sha256@libssh.org
// exchange hash:
//
//	H = hash(V_C || V_S || I_C || I_S || K_S || Q_C || Q_S || K)
//
// grounded directly on original_source/src/kex.rs's compute_exchange_hash.
func ComputeExchangeHash(ex *Exchange, hostKeyBlob []byte, shared *big.Int) [32]byte {
	buf := wire.NewBuffer()
	buf.PutString(ex.ClientID)
	buf.PutString(ex.ServerID)
	buf.PutString(ex.ClientKexInit)
	buf.PutString(ex.ServerKexInit)
	buf.PutString(hostKeyBlob)
	buf.PutString(ex.ClientEphemeral)
	buf.PutString(ex.ServerEphemeral)
	buf.PutMpint(shared)
	return sshcrypto.ExchangeHash(buf.Bytes())
}

// SharedSecretMpint returns the wire mpint encoding of the shared secret,
// the form folded into every derived key (RFC 4253 §7.2 uses "K" itself,
// i.e. the mpint bytes, not the raw group element).
func SharedSecretMpint(shared *big.Int) []byte {
	buf := wire.NewBuffer()
	buf.PutMpint(shared)
	return buf.Bytes()
}

// Keys holds the six derived values (RFC 4253 §7.2 labels A-F) for one
// session, or one re-key.
type Keys struct {
	IVClientToServer        []byte // A, unused by chacha20-poly1305@openssh.com
	IVServerToClient        []byte // B, unused
	KeyClientToServer       []byte // C
	KeyServerToClient       []byte // D
	IntegrityClientToServer []byte // E, unused (AEAD has no separate MAC)
	IntegrityServerToClient []byte // F, unused
}

// DeriveKeys runs the six-label derivation. chacha20-poly1305@openssh.com
// only consumes C and D (64 bytes each, split k2||k1 by the cipher
// package), but all six are computed for fidelity to RFC 4253 §7.2 and in
// case a future cipher profile needs the IV/integrity material.
func DeriveKeys(shared *big.Int, h, sessionID [32]byte) *Keys {
	k := SharedSecretMpint(shared)
	return &Keys{
		IVClientToServer:        sshcrypto.DeriveKey(k, h, 'A', sessionID, 32),
		IVServerToClient:        sshcrypto.DeriveKey(k, h, 'B', sessionID, 32),
		KeyClientToServer:       sshcrypto.DeriveKey(k, h, 'C', sessionID, 64),
		KeyServerToClient:       sshcrypto.DeriveKey(k, h, 'D', sessionID, 64),
		IntegrityClientToServer: sshcrypto.DeriveKey(k, h, 'E', sessionID, 32),
		IntegrityServerToClient: sshcrypto.DeriveKey(k, h, 'F', sessionID, 32),
	}
}
