package cipher

import (
	"bytes"
	"testing"
)

func testKey() []byte {
	key := make([]byte, 64)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestChachaPoly1305Roundtrip(t *testing.T) {
	c := NewChachaPoly1305(testKey())
	payload := []byte("ssh-connection")

	packet, err := c.Seal(0, payload)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	length, err := c.PacketLength(0, packet[:4])
	if err != nil {
		t.Fatalf("PacketLength: %v", err)
	}
	if int(length)+4+c.MACSize() != len(packet) {
		t.Fatalf("decoded length %d inconsistent with packet size %d", length, len(packet))
	}

	got, err := c.Open(0, packet)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("got %q want %q", got, payload)
	}
}

func TestChachaPoly1305RejectsTamperedTag(t *testing.T) {
	c := NewChachaPoly1305(testKey())
	packet, err := c.Seal(1, []byte("hello"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	packet[len(packet)-1] ^= 0xff

	if _, err := c.Open(1, packet); err != ErrMAC {
		t.Fatalf("got err %v, want ErrMAC", err)
	}
}

func TestChachaPoly1305RejectsWrongSequence(t *testing.T) {
	c := NewChachaPoly1305(testKey())
	packet, err := c.Seal(5, []byte("hello"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if _, err := c.Open(6, packet); err != ErrMAC {
		t.Fatalf("got err %v, want ErrMAC", err)
	}
}

func TestSessionBufferDue(t *testing.T) {
	sb := NewSessionBuffer()
	sb.RekeyByteLimit = 10
	if sb.Due() {
		t.Fatal("fresh buffer should not need a rekey")
	}
	sb.Account(11)
	if !sb.Due() {
		t.Fatal("buffer over byte limit should need a rekey")
	}
	sb.ResetAfterRekey()
	if sb.Due() {
		t.Fatal("buffer should not need a rekey immediately after reset")
	}
}
