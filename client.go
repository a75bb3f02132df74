package sshcore

// Client-role dispatch for the Encrypted state and the outgoing actions
// (authenticate, open a channel, run a command) an embedding application
// drives. Grounded on the client-side mirror of
// original_source/src/server/encrypted.rs's dispatch, and on
// original_source/src/kex.rs for the initiating half of key exchange
// (handled in session.go's handleKexInit/handleKexDH).

import (
	"blitter.com/go/sshcore/auth"
	"blitter.com/go/sshcore/channel"
	"blitter.com/go/sshcore/hostkeys"
	"blitter.com/go/sshcore/msg"
	"blitter.com/go/sshcore/sshcrypto"
	"blitter.com/go/sshcore/wire"
)

// AuthOutcome reports the result of the most recently rejected
// authentication attempt (client role only), so the embedding application
// can decide whether to retry with another method.
type AuthOutcome struct {
	RemainingMethods auth.Method
	PartialSuccess   bool
}

func (s *Session) handleEncryptedClient(payload []byte) error {
	switch s.encPhase {
	case phaseAuth:
		return s.clientHandleAuth(payload)
	case phaseChannels:
		return s.clientHandleChannel(payload)
	}
	return newErr(KindInconsistent, "unknown encrypted sub-phase", nil)
}

func (s *Session) clientHandleAuth(payload []byte) error {
	switch payload[0] {
	case msg.SERVICE_ACCEPT:
		return nil
	case msg.USERAUTH_BANNER:
		return nil
	case msg.USERAUTH_PK_OK:
		return nil
	case msg.USERAUTH_FAILURE:
		r := wire.NewReader(payload[1:])
		names, err := r.ReadNameList()
		if err != nil {
			return newErr(KindAuth, "parsing USERAUTH_FAILURE", err)
		}
		partial, err := r.ReadByte()
		if err != nil {
			return newErr(KindAuth, "parsing USERAUTH_FAILURE", err)
		}
		var remaining auth.Method
		for _, n := range names {
			remaining |= auth.FromName(n)
		}
		s.lastAuthOutcome = &AuthOutcome{RemainingMethods: remaining, PartialSuccess: partial != 0}
		return nil
	case msg.USERAUTH_SUCCESS:
		s.authenticated = true
		s.encPhase = phaseChannels
		return nil
	default:
		return s.queuePacket(unimplementedReply(s.seqRead - 1))
	}
}

// LastAuthOutcome returns the result of the most recent rejected
// authentication attempt, or nil if none has been rejected yet.
func (s *Session) LastAuthOutcome() *AuthOutcome { return s.lastAuthOutcome }

// AuthenticateWithPassword queues a "password" method USERAUTH_REQUEST.
// Valid only for a client-role Session once the Encrypted state has been
// reached (i.e. after NewClientSession's NEWKEYS completes).
func (s *Session) AuthenticateWithPassword(user, password string) error {
	if s.role != RoleClient || s.state != stateEncrypted {
		return newErr(KindInconsistent, "not ready to authenticate", nil)
	}
	buf := wire.NewBuffer()
	buf.PutByte(msg.USERAUTH_REQUEST)
	buf.PutString([]byte(user))
	buf.PutString([]byte("ssh-connection"))
	buf.PutString([]byte("password"))
	buf.PutByte(0)
	buf.PutString([]byte(password))
	s.clientUser = user
	return s.queuePacket(buf.Bytes())
}

// AuthenticateWithKey queues a signed "publickey" method USERAUTH_REQUEST
// directly (skipping the optional RFC 4252 §7 probe step, since the
// caller already knows which key it intends to use).
func (s *Session) AuthenticateWithKey(user string, key *hostkeys.HostKey) error {
	if s.role != RoleClient || s.state != stateEncrypted {
		return newErr(KindInconsistent, "not ready to authenticate", nil)
	}
	keyBlob := key.PublicKeyBlob()

	prefix := wire.NewBuffer()
	prefix.PutString([]byte(user))
	prefix.PutString([]byte("ssh-connection"))
	prefix.PutString([]byte("publickey"))
	prefix.PutByte(1)
	prefix.PutString([]byte("ssh-ed25519"))
	prefix.PutString(keyBlob)

	signedData := wire.NewBuffer()
	signedData.PutString(s.sessionID[:])
	signedData.PutByte(msg.USERAUTH_REQUEST)
	signedData.PutBytes(prefix.Bytes())

	sig := sshcrypto.Sign(key.Private, signedData.Bytes())
	sigBlob := wire.NewBuffer()
	sigBlob.PutString([]byte("ssh-ed25519"))
	sigBlob.PutString(sig)

	req := wire.NewBuffer()
	req.PutByte(msg.USERAUTH_REQUEST)
	req.PutBytes(prefix.Bytes())
	req.PutString(sigBlob.Bytes())

	s.clientUser = user
	return s.queuePacket(req.Bytes())
}

func (s *Session) clientHandleChannel(payload []byte) error {
	switch payload[0] {
	case msg.CHANNEL_OPEN_CONFIRMATION:
		return s.clientHandleOpenConfirmation(payload)
	case msg.CHANNEL_OPEN_FAILURE:
		return s.clientHandleOpenFailure(payload)
	case msg.CHANNEL_DATA:
		return s.handleChannelData(payload, false)
	case msg.CHANNEL_EXTENDED_DATA:
		return s.handleChannelData(payload, true)
	case msg.CHANNEL_WINDOW_ADJUST:
		return s.handleChannelWindowAdjust(payload)
	case msg.CHANNEL_REQUEST:
		return s.handleChannelRequest(payload)
	case msg.CHANNEL_EOF:
		return nil
	case msg.CHANNEL_CLOSE:
		return s.handleChannelClose(payload)
	case msg.CHANNEL_SUCCESS, msg.CHANNEL_FAILURE:
		return nil
	default:
		return s.queuePacket(unimplementedReply(s.seqRead - 1))
	}
}

func (s *Session) clientHandleOpenConfirmation(payload []byte) error {
	localID, remoteID, window, maxPacket, err := channel.ParseOpenConfirmation(payload)
	if err != nil {
		return newErr(KindChannel, "parsing CHANNEL_OPEN_CONFIRMATION", err)
	}
	ch, ok := s.channels.Get(localID)
	if !ok {
		return newErr(KindChannel, "open confirmation for unknown channel", channel.ErrUnknownChannel)
	}
	ch.RemoteID = remoteID
	ch.RemoteWindow = window
	ch.MaxPacketSize = maxPacket
	if ch.MaxPacketSize > s.cfg.MaxPacketSize {
		ch.MaxPacketSize = s.cfg.MaxPacketSize
	}
	ch.Confirmed = true
	return nil
}

func (s *Session) clientHandleOpenFailure(payload []byte) error {
	localID, reasonCode, description, err := channel.ParseOpenFailure(payload)
	if err != nil {
		return newErr(KindChannel, "parsing CHANNEL_OPEN_FAILURE", err)
	}
	s.channels.Remove(localID)
	return newErr(KindChannel, description, nil).withReason(reasonCode)
}

// OpenChannel queues a CHANNEL_OPEN and registers a provisional channel
// entry; the returned ID identifies the channel locally even before
// CHANNEL_OPEN_CONFIRMATION has arrived. SendRequest, SendData, SendEOF
// and CloseChannel address the peer's channel number, which is known only
// once the confirmation has been processed (Channel.Confirmed).
func (s *Session) OpenChannel(chanType string) (uint32, error) {
	if s.role != RoleClient || s.state != stateEncrypted {
		return 0, newErr(KindInconsistent, "not ready to open a channel", nil)
	}
	c := s.channels.AllocateLocal(chanType, s.cfg.WindowSize, s.cfg.MaxPacketSize)
	if err := s.queuePacket(channel.EncodeOpen(chanType, c.LocalID, c.LocalWindow, c.MaxPacketSize)); err != nil {
		return 0, err
	}
	return c.LocalID, nil
}
