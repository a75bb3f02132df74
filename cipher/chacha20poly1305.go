package cipher

import (
	"encoding/binary"

	"golang.org/x/crypto/chacha20"
	"golang.org/x/crypto/poly1305"
)

// ChachaPoly1305 implements the chacha20-poly1305@openssh.com packet
// cipher: two independently-keyed chacha20 streams, one (k1) encrypting
// only the 4-byte packet length field, the other (k2) encrypting the
// payload and, from its first 64-byte keystream block, supplying the
// one-time Poly1305 authenticator key. Grounded on
// original_source/src/cipher/chacha20poly1305.rs's key split (k1 is the
// upper half of the derived 64-byte key, k2 the lower half).
type ChachaPoly1305 struct {
	k1 [32]byte // length-field key
	k2 [32]byte // payload key + poly1305 key source
}

// NewChachaPoly1305 builds a cipher from a 64-byte derived key (the output
// of sshcrypto.DeriveKey with n=64 for the 'C' or 'D' label), splitting it
// k2=key[:32] (main), k1=key[32:64] (length), matching the openssh layout.
func NewChachaPoly1305(key []byte) *ChachaPoly1305 {
	var c ChachaPoly1305
	copy(c.k2[:], key[:32])
	copy(c.k1[:], key[32:64])
	return &c
}

func seqNonce(seqNum uint32) [12]byte {
	var nonce [12]byte
	binary.BigEndian.PutUint32(nonce[8:], seqNum)
	return nonce
}

// LengthFieldSize is 4 encrypted bytes.
func (c *ChachaPoly1305) LengthFieldSize() int { return 4 }

// MACSize is the 16-byte Poly1305 tag.
func (c *ChachaPoly1305) MACSize() int { return poly1305.TagSize }

// PacketLength decrypts the 4-byte length field using k1.
func (c *ChachaPoly1305) PacketLength(seqNum uint32, lengthField []byte) (uint32, error) {
	nonce := seqNonce(seqNum)
	s, err := chacha20.NewUnauthenticatedCipher(c.k1[:], nonce[:])
	if err != nil {
		return 0, err
	}
	var out [4]byte
	s.XORKeyStream(out[:], lengthField)
	return binary.BigEndian.Uint32(out[:]), nil
}

func (c *ChachaPoly1305) polyKey(seqNum uint32) ([32]byte, *chacha20.Cipher, error) {
	nonce := seqNonce(seqNum)
	s, err := chacha20.NewUnauthenticatedCipher(c.k2[:], nonce[:])
	if err != nil {
		return [32]byte{}, nil, err
	}
	var block [64]byte
	s.XORKeyStream(block[:], block[:])
	var key [32]byte
	copy(key[:], block[:32])
	// Advance s past the first (poly-key) block so subsequent
	// XORKeyStream calls encrypt payload starting at block counter 1.
	return key, s, nil
}

// Seal encrypts payload with framing and appends a Poly1305 tag computed
// over (encrypted length || encrypted payload).
func (c *ChachaPoly1305) Seal(seqNum uint32, payload []byte) ([]byte, error) {
	padLen := paddingLen(len(payload))
	inner := make([]byte, 1+len(payload)+padLen)
	inner[0] = byte(padLen)
	copy(inner[1:], payload)
	// padding left zero; it is encrypted regardless so its content is
	// immaterial to security.

	var lenField [4]byte
	binary.BigEndian.PutUint32(lenField[:], uint32(len(inner)))

	lenNonce := seqNonce(seqNum)
	lenCipher, err := chacha20.NewUnauthenticatedCipher(c.k1[:], lenNonce[:])
	if err != nil {
		return nil, err
	}
	encLen := make([]byte, 4)
	lenCipher.XORKeyStream(encLen, lenField[:])

	polyKey, payloadCipher, err := c.polyKey(seqNum)
	if err != nil {
		return nil, err
	}
	encInner := make([]byte, len(inner))
	payloadCipher.XORKeyStream(encInner, inner)

	authInput := make([]byte, 0, len(encLen)+len(encInner))
	authInput = append(authInput, encLen...)
	authInput = append(authInput, encInner...)

	var tag [poly1305.TagSize]byte
	poly1305.Sum(&tag, authInput, &polyKey)

	out := make([]byte, 0, 4+len(encInner)+poly1305.TagSize)
	out = append(out, encLen...)
	out = append(out, encInner...)
	out = append(out, tag[:]...)
	return out, nil
}

// Open verifies and decrypts a full packet: 4 bytes encrypted length
// (already decoded by the caller via PacketLength, but re-supplied here as
// part of packet for MAC verification), the encrypted body, and a trailing
// 16-byte tag.
func (c *ChachaPoly1305) Open(seqNum uint32, packet []byte) ([]byte, error) {
	if len(packet) < 4+poly1305.TagSize {
		return nil, ErrMAC
	}
	encLen := packet[:4]
	body := packet[4 : len(packet)-poly1305.TagSize]
	tag := packet[len(packet)-poly1305.TagSize:]

	polyKey, payloadCipher, err := c.polyKey(seqNum)
	if err != nil {
		return nil, err
	}

	authInput := make([]byte, 0, len(encLen)+len(body))
	authInput = append(authInput, encLen...)
	authInput = append(authInput, body...)
	var tagArr [poly1305.TagSize]byte
	copy(tagArr[:], tag)
	if !poly1305.Verify(&tagArr, authInput, &polyKey) {
		return nil, ErrMAC
	}

	inner := make([]byte, len(body))
	payloadCipher.XORKeyStream(inner, body)

	if len(inner) < 1 {
		return nil, ErrMAC
	}
	padLen := int(inner[0])
	if padLen+1 > len(inner) {
		return nil, ErrMAC
	}
	return inner[1 : len(inner)-padLen], nil
}

// paddingLen pads to an 8-byte multiple like wire.PaddingLen, but aligns
// only 1 (padding-length byte) + payload + padding: the 4-byte length field
// is encrypted separately and left out of the count. chacha20's stream
// nature means there is no hard block-size requirement beyond the minimum
// padding RFC 4253 §6 mandates; 8-byte alignment is kept anyway.
func paddingLen(payloadLen int) int {
	const blockSize = 8
	padLen := blockSize - (payloadLen+1)%blockSize
	if padLen < 4 {
		padLen += blockSize
	}
	return padLen
}
