package wire

import "crypto/rand"

// MinPaddingLen is RFC 4253 §6's minimum random padding length.
const MinPaddingLen = 4

// BlockSize used for padding-length rounding before a cipher is negotiated.
const cleartextBlockSize = 8

// PaddingLen computes the random padding length for a payload of the given
// size so that 4 (packet_length field) + 1 (padding-length byte) +
// len(payload) + padding is a multiple of the block size, per RFC 4253 §6,
// with at least MinPaddingLen bytes of padding.
func PaddingLen(payloadLen, blockSize int) int {
	if blockSize < cleartextBlockSize {
		blockSize = cleartextBlockSize
	}
	padLen := blockSize - (payloadLen+5)%blockSize
	if padLen < MinPaddingLen {
		padLen += blockSize
	}
	return padLen
}

// EncodeCleartextPacket frames payload as an RFC 4253 §6 packet:
// uint32 packet_length, byte padding_length, payload, random padding.
// packet_length counts everything after itself.
func EncodeCleartextPacket(payload []byte) ([]byte, error) {
	padLen := PaddingLen(len(payload), cleartextBlockSize)
	packetLen := 1 + len(payload) + padLen

	out := make([]byte, 4+packetLen)
	buf := NewBuffer()
	buf.PutUint32(uint32(packetLen))
	buf.PutByte(byte(padLen))
	buf.PutBytes(payload)
	copy(out, buf.Bytes())

	pad := out[4+1+len(payload):]
	if _, err := rand.Read(pad); err != nil {
		return nil, err
	}
	return out, nil
}

// DecodeCleartextPacket strips the RFC 4253 §6 framing from a full packet
// (packet_length field included) and returns the payload.
func DecodeCleartextPacket(packet []byte) ([]byte, error) {
	r := NewReader(packet)
	packetLen, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if int(packetLen) > len(packet)-4 {
		return nil, ErrShortBuffer
	}
	padLen, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	payloadLen := int(packetLen) - 1 - int(padLen)
	if payloadLen < 0 {
		return nil, ErrShortBuffer
	}
	return r.Remaining()[:payloadLen], nil
}
