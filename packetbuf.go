package sshcore

import (
	"bytes"

	"blitter.com/go/sshcore/cipher"
)

// ioBuffers is the non-blocking incremental read/write accumulator: bytes
// arrive from or leave to a transport in whatever chunks it delivers, and
// this buffer holds the partial remainder between Session.Read/Write
// calls. Grounded on original_source/src/lib.rs's SSHBuffers, generalized
// from a single-reader-blocking design into one that tolerates partial
// reads/writes.
type ioBuffers struct {
	in  []byte // accumulated, not-yet-parsed incoming bytes
	out []byte // accumulated, not-yet-written outgoing bytes
}

func (b *ioBuffers) queueOut(p []byte) {
	b.out = append(b.out, p...)
}

// wouldBlock reports whether err indicates "no data available right now"
// rather than a real failure, for transports that signal non-blocking
// reads via a timeout-flavored error rather than (0, nil).
func wouldBlock(err error) bool {
	type timeout interface{ Timeout() bool }
	if t, ok := err.(timeout); ok {
		return t.Timeout()
	}
	return false
}

// tryExtractVersionLine scans in for a CR?LF-terminated identification
// line per RFC 4253 §4.2, returning the trimmed line and the remaining
// unconsumed bytes, or ok=false if the line isn't complete yet.
func tryExtractVersionLine(in []byte) (line []byte, rest []byte, ok bool) {
	idx := bytes.IndexByte(in, '\n')
	if idx < 0 {
		return nil, in, false
	}
	line = in[:idx]
	line = bytes.TrimRight(line, "\r")
	rest = in[idx+1:]
	return line, rest, true
}

// tryExtractCipherPacket pulls one full keyed-cipher packet out of in
// using pc at sequence number seqNum, if enough bytes have accumulated.
// Cleartext also implements PacketCipher, so this one helper serves every
// protocol state: pre-KEx, post-NEWKEYS, and mid-rekey alike.
func tryExtractCipherPacket(in []byte, pc cipher.PacketCipher, seqNum uint32) (payload []byte, consumed int, ok bool, err error) {
	lfs := pc.LengthFieldSize()
	if len(in) < lfs {
		return nil, 0, false, nil
	}
	innerLen, err := pc.PacketLength(seqNum, in[:lfs])
	if err != nil {
		return nil, 0, false, err
	}
	total := lfs + int(innerLen) + pc.MACSize()
	if len(in) < total {
		return nil, 0, false, nil
	}
	payload, err = pc.Open(seqNum, in[:total])
	if err != nil {
		return nil, 0, false, err
	}
	return payload, total, true, nil
}
