package transport

import (
	"io"
	"testing"
)

func TestDialListenTCPRoundtrip(t *testing.T) {
	ln, err := ListenTCP("127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen: %v", err)
	}
	defer ln.Close()

	accepted := make(chan error, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			accepted <- err
			return
		}
		defer c.Close()
		if _, err := io.WriteString(c, "hello"); err != nil {
			accepted <- err
			return
		}
		accepted <- nil
	}()

	c, err := DialTCP(ln.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	buf := make([]byte, 5)
	if _, err := io.ReadFull(c, buf); err != nil {
		t.Fatalf("ReadFull: %v", err)
	}
	if string(buf) != "hello" {
		t.Fatalf("got %q", buf)
	}
	if err := <-accepted; err != nil {
		t.Fatalf("accept goroutine: %v", err)
	}
}

func TestDialKCPRejectsInvalidCipher(t *testing.T) {
	if _, err := DialKCP("127.0.0.1:0", Options{Cipher: BlockCipher(99)}); err == nil {
		t.Fatal("expected an error for an invalid KCP block cipher")
	}
}
