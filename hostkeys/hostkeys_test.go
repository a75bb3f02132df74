package hostkeys

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"testing"
)

func TestLoadAuthorizedKeysParsesEd25519Line(t *testing.T) {
	pub, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	blob := encodeEd25519Blob(pub)
	line := "ssh-ed25519 " + base64.StdEncoding.EncodeToString(blob) + " test@example.com\n"

	keys, err := LoadAuthorizedKeys([]byte(line))
	if err != nil {
		t.Fatalf("LoadAuthorizedKeys: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("got %d keys, want 1", len(keys))
	}
	if !bytes.Equal(keys[0].Key, pub) {
		t.Fatal("parsed key does not match original")
	}
	if keys[0].Comment != "test@example.com" {
		t.Fatalf("got comment %q", keys[0].Comment)
	}
}

func TestLoadAuthorizedKeysSkipsCommentsAndBlankLines(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(rand.Reader)
	blob := encodeEd25519Blob(pub)
	data := "# a comment\n\nssh-ed25519 " + base64.StdEncoding.EncodeToString(blob) + "\n"

	keys, err := LoadAuthorizedKeys([]byte(data))
	if err != nil {
		t.Fatalf("LoadAuthorizedKeys: %v", err)
	}
	if len(keys) != 1 {
		t.Fatalf("got %d keys, want 1", len(keys))
	}
}

func TestLoadAuthorizedKeysSkipsUnsupportedAlgorithm(t *testing.T) {
	data := "ssh-rsa AAAAB3NzaC1yc2EAAAADAQABAAAB notanedkey\n"
	keys, err := LoadAuthorizedKeys([]byte(data))
	if err != nil {
		t.Fatalf("LoadAuthorizedKeys: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("got %d keys, want 0", len(keys))
	}
}

func TestPublicKeyBlobRoundtrip(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(rand.Reader)
	hk := &HostKey{Public: pub, Private: priv}
	blob := hk.PublicKeyBlob()

	r := bytes.NewReader(blob)
	algo, err := readString(r)
	if err != nil {
		t.Fatalf("readString algo: %v", err)
	}
	if string(algo) != "ssh-ed25519" {
		t.Fatalf("got %q", algo)
	}
	key, err := readString(r)
	if err != nil {
		t.Fatalf("readString key: %v", err)
	}
	if !bytes.Equal(key, pub) {
		t.Fatal("key mismatch")
	}
}
