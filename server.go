package sshcore

// Server-role dispatch for the Encrypted state: service request, RFC 4252
// authentication, and RFC 4254 channel multiplexing. Grounded directly on
// original_source/src/server/encrypted.rs's server_read_encrypted /
// server_read_auth_request / server_verify_signature /
// server_handle_channel_open.

import (
	"blitter.com/go/sshcore/auth"
	"blitter.com/go/sshcore/channel"
	"blitter.com/go/sshcore/msg"
	"blitter.com/go/sshcore/wire"
)

func (s *Session) handleEncryptedServer(payload []byte) error {
	switch s.encPhase {
	case phaseService:
		return s.serverHandleService(payload)
	case phaseAuth:
		return s.serverHandleAuth(payload)
	case phaseChannels:
		return s.serverHandleChannel(payload)
	}
	return newErr(KindInconsistent, "unknown encrypted sub-phase", nil)
}

func (s *Session) serverHandleService(payload []byte) error {
	if payload[0] != msg.SERVICE_REQUEST {
		return newErr(KindProtocol, "expected SERVICE_REQUEST", nil)
	}
	r := wire.NewReader(payload[1:])
	name, err := r.ReadString()
	if err != nil || string(name) != "ssh-userauth" {
		s.Disconnect(msg.DisconnectProtocolError, "unsupported service")
		return newErr(KindProtocol, "unsupported service request", err)
	}

	buf := wire.NewBuffer()
	buf.PutByte(msg.SERVICE_ACCEPT)
	buf.PutString(name)
	if err := s.queuePacket(buf.Bytes()); err != nil {
		return err
	}
	if s.cfg.AuthBanner != "" {
		if err := s.queuePacket(auth.EncodeBanner(s.cfg.AuthBanner)); err != nil {
			return err
		}
	}
	s.authReq = auth.NewRequest(s.cfg.AuthMethods)
	s.encPhase = phaseAuth
	return nil
}

func (s *Session) serverHandleAuth(payload []byte) error {
	if payload[0] != msg.USERAUTH_REQUEST {
		return newErr(KindProtocol, "expected USERAUTH_REQUEST", nil)
	}
	user, _, method, r, err := auth.ParseRequestHeader(payload)
	if err != nil {
		return newErr(KindProtocol, "parsing USERAUTH_REQUEST", err)
	}

	flag := auth.FromName(method)
	if flag == 0 || !s.authReq.Methods.Has(flag) {
		return s.queuePacket(auth.EncodeFailure(s.authReq))
	}

	switch flag {
	case auth.MethodPassword:
		return s.serverHandlePassword(user, r)
	case auth.MethodPublicKey:
		return s.serverHandlePublicKey(user, payload, r)
	default:
		return s.queuePacket(auth.EncodeFailure(s.authReq))
	}
}

func (s *Session) serverHandlePassword(user string, r *wire.Reader) error {
	req, err := auth.ParsePasswordRequest(user, r)
	if err != nil {
		return newErr(KindAuth, "parsing password request", err)
	}
	ok := s.cfg.Callbacks != nil && s.cfg.Callbacks.Password != nil && s.cfg.Callbacks.Password(req.User, req.Password)
	if !ok {
		return s.queuePacket(auth.EncodeFailure(s.authReq))
	}
	return s.serverAuthSucceeded(req.User)
}

func (s *Session) serverHandlePublicKey(user string, payload []byte, r *wire.Reader) error {
	req, err := auth.ParsePublicKeyRequest(user, payload, r)
	if err != nil {
		return newErr(KindAuth, "parsing publickey request", err)
	}
	acceptable := s.cfg.Callbacks != nil && s.cfg.Callbacks.PublicKeyAcceptable != nil &&
		s.cfg.Callbacks.PublicKeyAcceptable(req.User, req.Algorithm, req.KeyBlob)
	if !acceptable {
		return s.queuePacket(auth.EncodeFailure(s.authReq))
	}
	if req.IsProbe {
		return s.queuePacket(auth.EncodePKOk(req.Algorithm, req.KeyBlob))
	}

	pubKey, err := auth.ExtractEd25519PublicKey(req.KeyBlob)
	if err != nil {
		return newErr(KindAuth, "parsing offered public key", err)
	}
	if err := auth.VerifyPublicKeySignature(req, s.sessionID, pubKey); err != nil {
		return s.queuePacket(auth.EncodeFailure(s.authReq))
	}
	return s.serverAuthSucceeded(req.User)
}

func (s *Session) serverAuthSucceeded(user string) error {
	if err := s.queuePacket(auth.EncodeSuccess()); err != nil {
		return err
	}
	s.clientUser = user
	s.authenticated = true
	s.encPhase = phaseChannels
	return nil
}

func (s *Session) serverHandleChannel(payload []byte) error {
	switch payload[0] {
	case msg.CHANNEL_OPEN:
		return s.serverHandleChannelOpen(payload)
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

func (s *Session) serverHandleChannelOpen(payload []byte) error {
	open, err := channel.ParseOpen(payload)
	if err != nil {
		return newErr(KindChannel, "parsing CHANNEL_OPEN", err)
	}
	allowed := s.cfg.Callbacks != nil && s.cfg.Callbacks.NewChannel != nil && s.cfg.Callbacks.NewChannel(open.ChannelType)
	if !allowed {
		return s.queuePacket(channel.EncodeOpenFailure(open.SenderID, OpenAdministrativelyProhibited, "administratively prohibited"))
	}
	c := s.channels.Allocate(open.SenderID, open.Window, open.ChannelType)
	if s.cfg.WindowSize > 0 {
		c.LocalWindow = s.cfg.WindowSize
	}
	c.MaxPacketSize = open.MaxPacket
	if c.MaxPacketSize > s.cfg.MaxPacketSize {
		c.MaxPacketSize = s.cfg.MaxPacketSize
	}
	return s.queuePacket(channel.EncodeOpenConfirmation(c))
}
