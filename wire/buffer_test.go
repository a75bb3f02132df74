package wire

import (
	"math/big"
	"testing"
)

func TestBufferStringRoundtrip(t *testing.T) {
	buf := NewBuffer()
	buf.PutString([]byte("ssh-userauth"))
	buf.PutUint32(42)

	r := NewReader(buf.Bytes())
	s, err := r.ReadString()
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if string(s) != "ssh-userauth" {
		t.Fatalf("got %q", s)
	}
	v, err := r.ReadUint32()
	if err != nil {
		t.Fatalf("ReadUint32: %v", err)
	}
	if v != 42 {
		t.Fatalf("got %d want 42", v)
	}
}

func TestNameListRoundtrip(t *testing.T) {
	buf := NewBuffer()
	buf.PutNameList([]string{"curve25519-sha256@libssh.org"})

	r := NewReader(buf.Bytes())
	names, err := r.ReadNameList()
	if err != nil {
		t.Fatalf("ReadNameList: %v", err)
	}
	if len(names) != 1 || names[0] != "curve25519-sha256@libssh.org" {
		t.Fatalf("got %v", names)
	}
}

func TestNameListMultiple(t *testing.T) {
	buf := NewBuffer()
	buf.PutNameList([]string{"a", "b", "c"})
	r := NewReader(buf.Bytes())
	names, err := r.ReadNameList()
	if err != nil {
		t.Fatalf("ReadNameList: %v", err)
	}
	want := []string{"a", "b", "c"}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("got %v want %v", names, want)
		}
	}
}

func TestMpintHighBitPadding(t *testing.T) {
	// 0x80 alone would look negative in two's complement; must be
	// padded with a leading zero byte per RFC 4251 §5.
	v := big.NewInt(0x80)
	buf := NewBuffer()
	buf.PutMpint(v)

	r := NewReader(buf.Bytes())
	s, err := r.ReadString()
	if err != nil {
		t.Fatalf("ReadString: %v", err)
	}
	if len(s) != 2 || s[0] != 0x00 || s[1] != 0x80 {
		t.Fatalf("got % x", s)
	}
	got, err := NewReader(buf.Bytes()).ReadMpint()
	if err != nil {
		t.Fatalf("ReadMpint: %v", err)
	}
	if got.Cmp(v) != 0 {
		t.Fatalf("got %v want %v", got, v)
	}
}

func TestMpintZero(t *testing.T) {
	buf := NewBuffer()
	buf.PutMpint(big.NewInt(0))
	if buf.Len() != 4 {
		t.Fatalf("zero mpint should encode as empty string, got %d bytes", buf.Len())
	}
}

func TestCleartextPacketRoundtrip(t *testing.T) {
	payload := []byte{1, 2, 3, 4, 5, 6, 7}
	packet, err := EncodeCleartextPacket(payload)
	if err != nil {
		t.Fatalf("EncodeCleartextPacket: %v", err)
	}
	got, err := DecodeCleartextPacket(packet)
	if err != nil {
		t.Fatalf("DecodeCleartextPacket: %v", err)
	}
	if string(got) != string(payload) {
		t.Fatalf("got % x want % x", got, payload)
	}
}

func TestPaddingLenMinimum(t *testing.T) {
	for n := 0; n < 64; n++ {
		p := PaddingLen(n, 8)
		if p < MinPaddingLen {
			t.Fatalf("padding %d below minimum for payload len %d", p, n)
		}
		if (4+1+n+p)%8 != 0 {
			t.Fatalf("packet not block-aligned: payload=%d pad=%d", n, p)
		}
	}
}
