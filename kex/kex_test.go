package kex

import "testing"

func TestNegotiateAcceptsFixedProposal(t *testing.T) {
	in, err := NewInit()
	if err != nil {
		t.Fatalf("NewInit: %v", err)
	}
	if err := Negotiate(in); err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
}

func TestNegotiateRejectsForeignProposal(t *testing.T) {
	in := &Init{
		KexAlgorithms:           []string{"diffie-hellman-group14-sha1"},
		ServerHostKeyAlgorithms: []string{"ssh-rsa"},
		EncryptionC2S:           []string{"aes256-ctr"},
		EncryptionS2C:           []string{"aes256-ctr"},
	}
	if err := Negotiate(in); err != ErrNoCommonAlgorithm {
		t.Fatalf("got %v, want ErrNoCommonAlgorithm", err)
	}
}

func TestInitMarshalParseRoundtrip(t *testing.T) {
	in, err := NewInit()
	if err != nil {
		t.Fatalf("NewInit: %v", err)
	}
	payload := in.Marshal()
	// strip the leading message-code byte, as ParseInit expects.
	got, err := ParseInit(payload[1:])
	if err != nil {
		t.Fatalf("ParseInit: %v", err)
	}
	if got.KexAlgorithms[0] != KexAlgorithm {
		t.Fatalf("got %v", got.KexAlgorithms)
	}
	if got.Cookie != in.Cookie {
		t.Fatalf("cookie mismatch")
	}
}

func TestDHSharedSecretAgreement(t *testing.T) {
	server, err := GenerateServerKeyPair()
	if err != nil {
		t.Fatalf("GenerateServerKeyPair: %v", err)
	}
	client, err := GenerateClientKeyPair()
	if err != nil {
		t.Fatalf("GenerateClientKeyPair: %v", err)
	}

	if err := server.ComputeShared(client.Public()); err != nil {
		t.Fatalf("server ComputeShared: %v", err)
	}
	if err := client.ComputeShared(server.Public()); err != nil {
		t.Fatalf("client ComputeShared: %v", err)
	}

	if server.Shared.Cmp(client.Shared) != 0 {
		t.Fatalf("shared secrets disagree: server=%x client=%x", server.Shared, client.Shared)
	}
}

func TestDeriveKeysDeterministic(t *testing.T) {
	server, _ := GenerateServerKeyPair()
	client, _ := GenerateClientKeyPair()
	_ = server.ComputeShared(client.Public())

	ex := &Exchange{
		ClientID:        []byte("SSH-2.0-test_client"),
		ServerID:        []byte("SSH-2.0-test_server"),
		ClientKexInit:   []byte("clientkexinit"),
		ServerKexInit:   []byte("serverkexinit"),
		ClientEphemeral: client.Public(),
		ServerEphemeral: server.Public(),
	}
	hostKey := []byte("hostkeyblob")
	h := ComputeExchangeHash(ex, hostKey, server.Shared)
	sessionID := h // first exchange: session_id == H

	k1 := DeriveKeys(server.Shared, h, sessionID)
	k2 := DeriveKeys(server.Shared, h, sessionID)
	if string(k1.KeyClientToServer) != string(k2.KeyClientToServer) {
		t.Fatal("key derivation is not deterministic")
	}
	if len(k1.KeyClientToServer) != 64 {
		t.Fatalf("got key length %d, want 64", len(k1.KeyClientToServer))
	}
	if string(k1.KeyClientToServer) == string(k1.KeyServerToClient) {
		t.Fatal("client-to-server and server-to-client keys must differ")
	}
}
