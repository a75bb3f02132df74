package sshcore

import (
	"crypto/ed25519"
	"testing"

	"blitter.com/go/sshcore/channel"
	"blitter.com/go/sshcore/hostkeys"
)

// pipe is a tiny non-blocking duplex: Read drains whatever has been fed
// into it without blocking or returning io.EOF when empty (the posture a
// real non-blocking socket presents between packets), and Write appends
// to the peer's feed.
type pipe struct{ buf []byte }

func (p *pipe) Read(b []byte) (int, error) {
	if len(p.buf) == 0 {
		return 0, nil
	}
	n := copy(b, p.buf)
	p.buf = p.buf[n:]
	return n, nil
}

func (p *pipe) Write(b []byte) (int, error) {
	p.buf = append(p.buf, b...)
	return len(b), nil
}

// drive pumps client and server against each other until neither makes
// further progress, or the round limit is hit (a stall indicates a bug,
// not legitimate backpressure, since both sides here have everything
// already buffered).
func drive(t *testing.T, client, server *Session, toServer, toClient *pipe) {
	t.Helper()
	for i := 0; i < 200; i++ {
		var moved bool
		if p, err := client.Write(toServer); err != nil {
			t.Fatalf("client write: %v", err)
		} else {
			moved = moved || p
		}
		if p, err := server.Read(toServer); err != nil {
			t.Fatalf("server read: %v", err)
		} else {
			moved = moved || p
		}
		if p, err := server.Write(toClient); err != nil {
			t.Fatalf("server write: %v", err)
		} else {
			moved = moved || p
		}
		if p, err := client.Read(toClient); err != nil {
			t.Fatalf("client read: %v", err)
		} else {
			moved = moved || p
		}
		if !moved {
			return
		}
	}
	t.Fatal("drive: no progress after 200 rounds, session likely stuck")
}

func newTestHostKey(t *testing.T) *hostkeys.HostKey {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("generating host key: %v", err)
	}
	return &hostkeys.HostKey{Public: pub, Private: priv}
}

func TestHandshakeAuthAndChannelDataRoundtrip(t *testing.T) {
	serverCfg := DefaultConfig()
	serverCfg.HostKey = newTestHostKey(t)
	var gotPassword, gotUser string
	var dataCh *channel.Channel
	var gotData []byte
	serverCfg.Callbacks = &Callbacks{
		Password: func(user, password string) bool {
			gotUser, gotPassword = user, password
			return password == "correct horse"
		},
		NewChannel: func(chanType string) bool { return chanType == "session" },
		Data: func(ch *channel.Channel, data []byte) {
			dataCh = ch
			gotData = append(gotData, data...)
		},
	}

	clientCfg := DefaultConfig()

	server, err := NewServerSession(serverCfg)
	if err != nil {
		t.Fatalf("NewServerSession: %v", err)
	}
	client, err := NewClientSession(clientCfg)
	if err != nil {
		t.Fatalf("NewClientSession: %v", err)
	}

	toServer, toClient := &pipe{}, &pipe{}
	drive(t, client, server, toServer, toClient)

	if client.Authenticated() {
		t.Fatal("client should not be authenticated before AuthenticateWithPassword")
	}

	if err := client.AuthenticateWithPassword("johndoe", "wrong"); err != nil {
		t.Fatalf("AuthenticateWithPassword: %v", err)
	}
	drive(t, client, server, toServer, toClient)

	if client.LastAuthOutcome() == nil {
		t.Fatal("expected a recorded auth failure for the wrong password")
	}
	if client.Authenticated() || server.Authenticated() {
		t.Fatal("wrong password must not authenticate")
	}

	if err := client.AuthenticateWithPassword("johndoe", "correct horse"); err != nil {
		t.Fatalf("AuthenticateWithPassword: %v", err)
	}
	drive(t, client, server, toServer, toClient)

	if !client.Authenticated() || !server.Authenticated() {
		t.Fatal("correct password should authenticate both sides")
	}
	if gotUser != "johndoe" || gotPassword != "correct horse" {
		t.Fatalf("got user=%q password=%q", gotUser, gotPassword)
	}

	localID, err := client.OpenChannel("session")
	if err != nil {
		t.Fatalf("OpenChannel: %v", err)
	}
	drive(t, client, server, toServer, toClient)

	ch, ok := client.Channels().Get(localID)
	if !ok || !ch.Confirmed {
		t.Fatal("channel should be confirmed after drive")
	}

	if _, err := client.SendData(localID, []byte("hello")); err != nil {
		t.Fatalf("SendData: %v", err)
	}
	drive(t, client, server, toServer, toClient)

	if dataCh == nil || string(gotData) != "hello" {
		t.Fatalf("server did not receive channel data, got %q", gotData)
	}
}

func TestPublicKeyAuthSucceeds(t *testing.T) {
	serverCfg := DefaultConfig()
	serverCfg.HostKey = newTestHostKey(t)
	userKey := newTestHostKey(t)
	serverCfg.Callbacks = &Callbacks{
		PublicKeyAcceptable: func(user, algo string, keyBlob []byte) bool {
			return user == "johndoe" && string(userKey.PublicKeyBlob()) == string(keyBlob)
		},
		NewChannel: func(string) bool { return true },
	}
	clientCfg := DefaultConfig()

	server, err := NewServerSession(serverCfg)
	if err != nil {
		t.Fatalf("NewServerSession: %v", err)
	}
	client, err := NewClientSession(clientCfg)
	if err != nil {
		t.Fatalf("NewClientSession: %v", err)
	}

	toServer, toClient := &pipe{}, &pipe{}
	drive(t, client, server, toServer, toClient)

	if err := client.AuthenticateWithKey("johndoe", userKey); err != nil {
		t.Fatalf("AuthenticateWithKey: %v", err)
	}
	drive(t, client, server, toServer, toClient)

	if !client.Authenticated() || !server.Authenticated() {
		t.Fatal("publickey auth with the accepted key should succeed")
	}
}
