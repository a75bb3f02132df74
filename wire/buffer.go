// Package wire implements the SSH binary wire format: the primitive
// byte/uint32/string/name-list/mpint encodings of RFC 4251 §5, and the
// cleartext packet framing of RFC 4253 §6 used before a cipher is active.
//
// Copyright (c) 2017-2019 Russell Magee
// Licensed under the terms of the MIT license (see LICENSE.mit in this
// distribution)
package wire

import (
	"encoding/binary"
	"errors"
	"math/big"
)

// ErrShortBuffer is returned when a Reader runs out of bytes mid-field.
var ErrShortBuffer = errors.New("wire: short buffer")

// Buffer is a growable byte buffer with SSH-aware Put* helpers, mirroring
// the role xsnet.Conn plays directly against bytes.Buffer/binary.Write.
type Buffer struct {
	b []byte
}

// NewBuffer returns an empty Buffer.
func NewBuffer() *Buffer { return &Buffer{} }

// Bytes returns the buffer's current contents.
func (buf *Buffer) Bytes() []byte { return buf.b }

// Len returns the number of bytes currently held.
func (buf *Buffer) Len() int { return len(buf.b) }

// Reset empties the buffer without releasing its backing array.
func (buf *Buffer) Reset() { buf.b = buf.b[:0] }

// PutByte appends a single byte.
func (buf *Buffer) PutByte(b byte) { buf.b = append(buf.b, b) }

// PutBytes appends raw bytes verbatim (no length prefix).
func (buf *Buffer) PutBytes(p []byte) { buf.b = append(buf.b, p...) }

// PutUint32 appends a big-endian uint32.
func (buf *Buffer) PutUint32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	buf.b = append(buf.b, tmp[:]...)
}

// PutString appends an SSH string: a uint32 length followed by the bytes.
func (buf *Buffer) PutString(p []byte) {
	buf.PutUint32(uint32(len(p)))
	buf.b = append(buf.b, p...)
}

// PutNameList appends an SSH name-list: a comma-joined string of names.
func (buf *Buffer) PutNameList(names []string) {
	joined := joinNames(names)
	buf.PutString([]byte(joined))
}

// PutMpint appends a multiple-precision integer per RFC 4251 §5: two's
// complement, big-endian, with a leading zero byte inserted whenever the
// high bit of the first byte would otherwise be set (so the value is never
// mistaken for negative). Negative values are not produced by this
// implementation; all SSH mpints used here (shared secrets) are positive.
func (buf *Buffer) PutMpint(v *big.Int) {
	if v.Sign() == 0 {
		buf.PutUint32(0)
		return
	}
	by := v.Bytes()
	if len(by) > 0 && by[0]&0x80 != 0 {
		padded := make([]byte, len(by)+1)
		copy(padded[1:], by)
		by = padded
	}
	buf.PutString(by)
}

func joinNames(names []string) string {
	out := make([]byte, 0, 32)
	for i, n := range names {
		if i > 0 {
			out = append(out, ',')
		}
		out = append(out, n...)
	}
	return string(out)
}

// Reader sequentially decodes fields from a byte slice it does not own.
type Reader struct {
	b   []byte
	pos int
}

// NewReader returns a Reader positioned at offset 0 of b.
func NewReader(b []byte) *Reader { return &Reader{b: b} }

// Pos returns the current read offset, used by callers (e.g. publickey
// signature verification) that need the raw bytes consumed so far.
func (r *Reader) Pos() int { return r.pos }

// Remaining returns the unread tail of the buffer.
func (r *Reader) Remaining() []byte { return r.b[r.pos:] }

// ReadByte reads a single byte.
func (r *Reader) ReadByte() (byte, error) {
	if r.pos+1 > len(r.b) {
		return 0, ErrShortBuffer
	}
	v := r.b[r.pos]
	r.pos++
	return v, nil
}

// ReadUint32 reads a big-endian uint32.
func (r *Reader) ReadUint32() (uint32, error) {
	if r.pos+4 > len(r.b) {
		return 0, ErrShortBuffer
	}
	v := binary.BigEndian.Uint32(r.b[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadString reads an SSH string (length-prefixed byte slice). The
// returned slice aliases the Reader's backing array.
func (r *Reader) ReadString() ([]byte, error) {
	n, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	if r.pos+int(n) > len(r.b) {
		return nil, ErrShortBuffer
	}
	v := r.b[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return v, nil
}

// ReadNameList reads an SSH name-list and splits it on commas.
func (r *Reader) ReadNameList() ([]string, error) {
	s, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	if len(s) == 0 {
		return nil, nil
	}
	var names []string
	start := 0
	for i, c := range s {
		if c == ',' {
			names = append(names, string(s[start:i]))
			start = i + 1
		}
	}
	names = append(names, string(s[start:]))
	return names, nil
}

// ReadMpint reads an SSH mpint as a positive big.Int.
func (r *Reader) ReadMpint() (*big.Int, error) {
	s, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(s), nil
}
