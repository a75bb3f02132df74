package sshcore

// Session info/bookkeeping for one SSH connection: this engine's Session
// absorbs the role the teacher's xs.Session record played (who, what
// command, what exit status) and generalizes it into the full protocol
// state machine driving version exchange, key exchange, authentication,
// and channel multiplexing.
//
// Copyright (c) 2017-2019 Russell Magee
// Licensed under the terms of the MIT license (see LICENSE.mit in this
// distribution)

import (
	"io"
	"math/big"

	"blitter.com/go/sshcore/auth"
	"blitter.com/go/sshcore/channel"
	"blitter.com/go/sshcore/cipher"
	"blitter.com/go/sshcore/kex"
	"blitter.com/go/sshcore/msg"
	"blitter.com/go/sshcore/sshcrypto"
	"blitter.com/go/sshcore/wire"
)

// Role distinguishes which side of the connection a Session drives.
type Role int

const (
	RoleServer Role = iota
	RoleClient
)

type sessionState int

const (
	stateVersionExchange sessionState = iota
	stateKexInit
	stateKexDH
	stateNewKeys
	stateEncrypted
	stateClosed
)

// encPhase tracks progress within the long-lived Encrypted state: service
// request, then authentication, then channel traffic, mirroring
// original_source/src/server/mod.rs's ServerState::Encrypted sub-states.
type encPhase int

const (
	phaseService encPhase = iota
	phaseAuth
	phaseChannels
)

// Session drives one side of the protocol incrementally: Read consumes
// whatever bytes a transport has available and advances as far as it can;
// Write drains whatever this side has queued to send. Neither call
// blocks. A Session is not safe for concurrent use; callers drive it from
// a single goroutine, the same single-threaded discipline
// original_source/src/server/mod.rs's ServerSession::read/write assume.
type Session struct {
	role Role
	cfg  *Config

	state    sessionState
	encPhase encPhase
	rekeying bool
	savedPhase encPhase // encPhase to restore once a rekey's NEWKEYS lands

	io ioBuffers

	seqRead, seqWrite   uint32
	readCipher          cipher.PacketCipher
	writeCipher         cipher.PacketCipher
	readBudget          *cipher.SessionBuffer
	writeBudget         *cipher.SessionBuffer

	exchange       *kex.Exchange
	localInit      *kex.Init
	localInitBytes []byte
	dh             *kex.KeyPair
	sessionID      [32]byte
	haveSessionID  bool
	pendingKeys    *kex.Keys

	channels *channel.Table

	// server-role authentication bookkeeping
	authReq *auth.Request

	// client-role authentication bookkeeping
	clientUser      string
	authenticated   bool
	lastAuthOutcome *AuthOutcome

	disconnected bool
	peerGone     *DisconnectInfo
}

// NewServerSession begins a server-role connection: it immediately queues
// this side's identification string and initial KEXINIT, to be drained by
// the first Write call.
func NewServerSession(cfg *Config) (*Session, error) {
	if cfg.HostKey == nil {
		return nil, newErr(KindProtocol, "server session requires a host key", nil)
	}
	s, err := newSession(RoleServer, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewClientSession begins a client-role connection.
func NewClientSession(cfg *Config) (*Session, error) {
	return newSession(RoleClient, cfg)
}

func newSession(role Role, cfg *Config) (*Session, error) {
	s := &Session{
		role:        role,
		cfg:         cfg,
		state:       stateVersionExchange,
		readCipher:  cipher.Cleartext{},
		writeCipher: cipher.Cleartext{},
		readBudget:  newBudget(cfg),
		writeBudget: newBudget(cfg),
		channels:    channel.NewTable(),
		exchange:    &kex.Exchange{},
	}
	ident := []byte(cfg.Identification)
	if role == RoleServer {
		s.exchange.ServerID = ident
	} else {
		s.exchange.ClientID = ident
	}
	s.io.queueOut(append(append([]byte{}, ident...), '\r', '\n'))

	localInit, err := kex.NewInit()
	if err != nil {
		return nil, newErr(KindKex, "generating KEXINIT", err)
	}
	s.localInit = localInit
	s.localInitBytes = localInit.Marshal()
	if role == RoleServer {
		s.exchange.ServerKexInit = s.localInitBytes
	} else {
		s.exchange.ClientKexInit = s.localInitBytes
	}
	s.queuePacket(s.localInitBytes)
	return s, nil
}

func newBudget(cfg *Config) *cipher.SessionBuffer {
	b := cipher.NewSessionBuffer()
	if cfg.RekeyByteLimit > 0 {
		b.RekeyByteLimit = cfg.RekeyByteLimit
	}
	if cfg.RekeyTimeLimit > 0 {
		b.RekeyTimeLimit = cfg.RekeyTimeLimit
	}
	return b
}

// Role reports which side this Session drives.
func (s *Session) Role() Role { return s.role }

// Authenticated reports whether the peer (client role: this side; server
// role: the remote user) has completed authentication.
func (s *Session) Authenticated() bool {
	if s.role == RoleServer {
		return s.encPhase == phaseChannels
	}
	return s.authenticated
}

// Channels exposes the live channel table for inspection by callers that
// need to enumerate open channels (e.g. to drive a terminal UI).
func (s *Session) Channels() *channel.Table { return s.channels }

// Closed reports whether the connection has ended, either by a local or
// peer disconnect.
func (s *Session) Closed() bool { return s.state == stateClosed }

// queuePacket seals payload with the active write cipher/sequence number
// and appends the result to the outgoing buffer.
func (s *Session) queuePacket(payload []byte) error {
	packet, err := s.writeCipher.Seal(s.seqWrite, payload)
	if err != nil {
		return newErr(KindProtocol, "sealing packet", err)
	}
	s.io.queueOut(packet)
	s.seqWrite++
	s.writeBudget.Account(len(packet))
	return nil
}

// Disconnect queues SSH_MSG_DISCONNECT and marks the session as ending;
// callers should keep calling Write until the buffer drains, then stop
// driving the Session.
func (s *Session) Disconnect(reason uint32, description string) {
	if s.disconnected {
		return
	}
	buf := wire.NewBuffer()
	buf.PutByte(msg.DISCONNECT)
	buf.PutUint32(reason)
	buf.PutString([]byte(description))
	buf.PutString(nil)
	s.queuePacket(buf.Bytes())
	s.disconnected = true
	s.state = stateClosed
}

// Read pulls whatever bytes r has available right now and advances the
// state machine as far as that allows. progressed reports whether any
// forward motion occurred (bytes read or a packet processed); a caller
// driving an event loop should keep calling Write after a progressed Read.
func (s *Session) Read(r io.Reader) (progressed bool, err error) {
	if s.state == stateClosed {
		return false, nil
	}
	chunk := make([]byte, 16384)
	n, rerr := r.Read(chunk)
	if n > 0 {
		s.io.in = append(s.io.in, chunk[:n]...)
		progressed = true
	}
	if rerr != nil && !wouldBlock(rerr) {
		if rerr == io.EOF {
			return progressed, newErr(KindIO, "connection closed by peer", rerr)
		}
		return progressed, newErr(KindIO, "read", rerr)
	}
	for {
		ok, serr := s.step()
		if serr != nil {
			return progressed, serr
		}
		if !ok {
			break
		}
		progressed = true
	}
	return progressed, nil
}

// Write drains whatever this side has queued to send. progressed reports
// whether any bytes were actually written.
func (s *Session) Write(w io.Writer) (progressed bool, err error) {
	if len(s.io.out) == 0 {
		return false, nil
	}
	n, werr := w.Write(s.io.out)
	if n > 0 {
		s.io.out = s.io.out[n:]
		progressed = true
	}
	if werr != nil && !wouldBlock(werr) {
		return progressed, newErr(KindIO, "write", werr)
	}
	return progressed, nil
}

// step advances the state machine by exactly one unit (one identification
// line, or one packet), returning ok=false when not enough input has
// accumulated yet to make progress.
func (s *Session) step() (bool, error) {
	if s.state == stateVersionExchange {
		return s.stepVersionExchange()
	}

	if s.state == stateEncrypted && !s.rekeying {
		if s.readBudget.Due() || s.writeBudget.Due() {
			if err := s.beginRekey(); err != nil {
				return false, err
			}
		}
	}

	payload, consumed, ok, err := tryExtractCipherPacket(s.io.in, s.readCipher, s.seqRead)
	if err != nil {
		return false, newErr(KindMAC, "decoding packet", err)
	}
	if !ok {
		return false, nil
	}
	s.io.in = s.io.in[consumed:]
	s.seqRead++
	s.readBudget.Account(consumed)

	if len(payload) == 0 {
		return false, newErr(KindProtocol, "empty packet payload", nil)
	}
	if handled, err := s.handleGeneric(payload); handled {
		return true, err
	}

	switch s.state {
	case stateKexInit:
		return true, s.handleKexInit(payload)
	case stateKexDH:
		return true, s.handleKexDH(payload)
	case stateNewKeys:
		return true, s.handleNewKeys(payload)
	case stateEncrypted:
		if s.role == RoleServer {
			return true, s.handleEncryptedServer(payload)
		}
		return true, s.handleEncryptedClient(payload)
	default:
		return false, newErr(KindInconsistent, "packet received in unexpected state", nil)
	}
}

func (s *Session) stepVersionExchange() (bool, error) {
	line, rest, ok := tryExtractVersionLine(s.io.in)
	if !ok {
		return false, nil
	}
	s.io.in = rest
	peerID := append([]byte{}, line...)
	if s.role == RoleServer {
		s.exchange.ClientID = peerID
	} else {
		s.exchange.ServerID = peerID
	}
	s.state = stateKexInit
	return true, nil
}

// handleGeneric processes the transport-layer messages valid in every
// state (RFC 4253 §11/§12): DISCONNECT, IGNORE, DEBUG, UNIMPLEMENTED.
// handled is true if payload was one of these and needs no further
// dispatch.
func (s *Session) handleGeneric(payload []byte) (handled bool, err error) {
	switch payload[0] {
	case msg.DISCONNECT:
		r := wire.NewReader(payload[1:])
		reason, _ := r.ReadUint32()
		desc, _ := r.ReadString()
		s.peerGone = &DisconnectInfo{ReasonCode: reason, Description: string(desc)}
		s.state = stateClosed
		return true, newErr(KindDisconnected, string(desc), nil)
	case msg.IGNORE, msg.DEBUG, msg.UNIMPLEMENTED:
		return true, nil
	default:
		return false, nil
	}
}

func (s *Session) handleKexInit(payload []byte) error {
	peerInit, err := kex.ParseInit(payload[1:])
	if err != nil {
		return newErr(KindProtocol, "parsing KEXINIT", err)
	}
	if err := kex.Negotiate(peerInit); err != nil {
		s.Disconnect(msg.DisconnectKeyExchangeFailed, "no common algorithm")
		return newErr(KindKex, "negotiating algorithms", err)
	}
	if s.role == RoleServer {
		s.exchange.ClientKexInit = append([]byte{}, payload...)
	} else {
		s.exchange.ServerKexInit = append([]byte{}, payload...)
	}

	if s.role == RoleServer {
		s.state = stateKexDH
		return nil
	}

	kp, err := kex.GenerateClientKeyPair()
	if err != nil {
		return newErr(KindKex, "generating ephemeral keypair", err)
	}
	s.dh = kp
	s.exchange.ClientEphemeral = kp.Public()

	buf := wire.NewBuffer()
	buf.PutByte(msg.KEX_ECDH_INIT)
	buf.PutString(s.exchange.ClientEphemeral)
	if err := s.queuePacket(buf.Bytes()); err != nil {
		return err
	}
	s.state = stateKexDH
	return nil
}

func (s *Session) handleKexDH(payload []byte) error {
	r := wire.NewReader(payload[1:])

	if s.role == RoleServer {
		clientEphemeral, err := r.ReadString()
		if err != nil {
			return newErr(KindProtocol, "parsing KEX_ECDH_INIT", err)
		}
		s.exchange.ClientEphemeral = append([]byte{}, clientEphemeral...)

		kp, err := kex.GenerateServerKeyPair()
		if err != nil {
			return newErr(KindKex, "generating ephemeral keypair", err)
		}
		if err := kp.ComputeShared(s.exchange.ClientEphemeral); err != nil {
			return newErr(KindKex, "computing shared secret", err)
		}
		s.dh = kp
		s.exchange.ServerEphemeral = kp.Public()

		hostBlob := s.cfg.HostKey.PublicKeyBlob()
		h := kex.ComputeExchangeHash(s.exchange, hostBlob, kp.Shared)
		if !s.haveSessionID {
			s.sessionID = h
			s.haveSessionID = true
		}
		sig := sshcrypto.Sign(s.cfg.HostKey.Private, h[:])
		sigBlob := wire.NewBuffer()
		sigBlob.PutString([]byte("ssh-ed25519"))
		sigBlob.PutString(sig)

		reply := wire.NewBuffer()
		reply.PutByte(msg.KEX_ECDH_REPLY)
		reply.PutString(hostBlob)
		reply.PutString(s.exchange.ServerEphemeral)
		reply.PutString(sigBlob.Bytes())
		if err := s.queuePacket(reply.Bytes()); err != nil {
			return err
		}
		return s.finishKex(kp.Shared, h)
	}

	hostBlob, err := r.ReadString()
	if err != nil {
		return newErr(KindProtocol, "parsing KEX_ECDH_REPLY", err)
	}
	serverEphemeral, err := r.ReadString()
	if err != nil {
		return newErr(KindProtocol, "parsing KEX_ECDH_REPLY", err)
	}
	sigBlob, err := r.ReadString()
	if err != nil {
		return newErr(KindProtocol, "parsing KEX_ECDH_REPLY", err)
	}
	s.exchange.ServerEphemeral = append([]byte{}, serverEphemeral...)

	if err := s.dh.ComputeShared(s.exchange.ServerEphemeral); err != nil {
		return newErr(KindKex, "computing shared secret", err)
	}
	h := kex.ComputeExchangeHash(s.exchange, hostBlob, s.dh.Shared)

	hostKey, err := auth.ExtractEd25519PublicKey(hostBlob)
	if err != nil {
		return newErr(KindKex, "parsing host key blob", err)
	}
	sigReader := wire.NewReader(sigBlob)
	if _, err := sigReader.ReadString(); err != nil {
		return newErr(KindKex, "parsing host key signature", err)
	}
	rawSig, err := sigReader.ReadString()
	if err != nil {
		return newErr(KindKex, "parsing host key signature", err)
	}
	if err := sshcrypto.Verify(hostKey, h[:], rawSig); err != nil {
		s.Disconnect(msg.DisconnectKeyExchangeFailed, "host key verification failed")
		return newErr(KindKex, "host key verification failed", err)
	}
	if !s.haveSessionID {
		s.sessionID = h
		s.haveSessionID = true
	}
	return s.finishKex(s.dh.Shared, h)
}

// finishKex sends NEWKEYS and installs the write-direction cipher; the
// read-direction cipher is installed once the peer's own NEWKEYS arrives,
// per RFC 4253 §7.3.
func (s *Session) finishKex(shared *big.Int, h [32]byte) error {
	if err := s.queuePacket([]byte{msg.NEWKEYS}); err != nil {
		return err
	}
	keys := kex.DeriveKeys(shared, h, s.sessionID)
	if s.role == RoleServer {
		s.writeCipher = cipher.NewChachaPoly1305(keys.KeyServerToClient)
	} else {
		s.writeCipher = cipher.NewChachaPoly1305(keys.KeyClientToServer)
	}
	s.pendingKeys = keys
	s.state = stateNewKeys
	return nil
}

func (s *Session) handleNewKeys(payload []byte) error {
	if payload[0] != msg.NEWKEYS {
		return newErr(KindProtocol, "expected NEWKEYS", nil)
	}
	if s.role == RoleServer {
		s.readCipher = cipher.NewChachaPoly1305(s.pendingKeys.KeyClientToServer)
	} else {
		s.readCipher = cipher.NewChachaPoly1305(s.pendingKeys.KeyServerToClient)
	}
	s.pendingKeys = nil
	s.readBudget.ResetAfterRekey()
	s.writeBudget.ResetAfterRekey()

	if s.rekeying {
		s.rekeying = false
		s.encPhase = s.savedPhase
		s.state = stateEncrypted
		return nil
	}

	s.state = stateEncrypted
	if s.role == RoleServer {
		s.encPhase = phaseService
		return nil
	}
	s.encPhase = phaseAuth
	buf := wire.NewBuffer()
	buf.PutByte(msg.SERVICE_REQUEST)
	buf.PutString([]byte("ssh-userauth"))
	return s.queuePacket(buf.Bytes())
}

// beginRekey initiates a re-key from within the Encrypted state: a fresh
// KEXINIT is sent under the *current* cipher (not Cleartext), and the
// session-id already established is carried forward unchanged per RFC
// 4253 §7.2's final paragraph. Grounded on
// original_source/src/server/mod.rs's rekeying trigger, checked once per
// fully processed packet rather than mid-packet.
func (s *Session) beginRekey() error {
	s.savedPhase = s.encPhase
	s.rekeying = true

	localInit, err := kex.NewInit()
	if err != nil {
		return newErr(KindKex, "generating re-key KEXINIT", err)
	}
	s.localInit = localInit
	s.localInitBytes = localInit.Marshal()
	if s.role == RoleServer {
		s.exchange.ServerKexInit = s.localInitBytes
	} else {
		s.exchange.ClientKexInit = s.localInitBytes
	}
	s.state = stateKexInit
	return s.queuePacket(s.localInitBytes)
}
