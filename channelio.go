package sshcore

// Channel message dispatch and outgoing data helpers shared by both
// server and client roles, since RFC 4254 flow control and framing are
// symmetric once a channel is open. Grounded on
// original_source/src/server/encrypted.rs's data/window-adjust handling,
// generalized to run from either side.

import (
	"blitter.com/go/sshcore/channel"
	"blitter.com/go/sshcore/msg"
	"blitter.com/go/sshcore/wire"
)

func unimplementedReply(seq uint32) []byte {
	buf := wire.NewBuffer()
	buf.PutByte(msg.UNIMPLEMENTED)
	buf.PutUint32(seq)
	return buf.Bytes()
}

func (s *Session) handleChannelData(payload []byte, extended bool) error {
	channelID, dataType, data, err := channel.ParseData(payload, extended)
	if err != nil {
		return newErr(KindChannel, "parsing channel data", err)
	}
	ch, ok := s.channels.Get(channelID)
	if !ok {
		return newErr(KindChannel, "data on unknown channel", channel.ErrUnknownChannel)
	}
	ch.AccountReceived(uint32(len(data)))
	if s.cfg.Callbacks != nil {
		if extended && s.cfg.Callbacks.ExtendedData != nil {
			s.cfg.Callbacks.ExtendedData(ch, dataType, data)
		} else if !extended && s.cfg.Callbacks.Data != nil {
			s.cfg.Callbacks.Data(ch, data)
		}
	}
	if ch.NeedsWindowAdjust() {
		amount := ch.GrantWindowAdjust()
		return s.queuePacket(channel.EncodeWindowAdjust(ch.RemoteID, amount))
	}
	return nil
}

func (s *Session) handleChannelWindowAdjust(payload []byte) error {
	channelID, amount, err := channel.ParseWindowAdjust(payload)
	if err != nil {
		return newErr(KindChannel, "parsing CHANNEL_WINDOW_ADJUST", err)
	}
	ch, ok := s.channels.Get(channelID)
	if !ok {
		return newErr(KindChannel, "window adjust on unknown channel", channel.ErrUnknownChannel)
	}
	ch.ApplyWindowAdjust(amount)
	return nil
}

func (s *Session) handleChannelRequest(payload []byte) error {
	req, err := channel.ParseRequest(payload)
	if err != nil {
		return newErr(KindChannel, "parsing CHANNEL_REQUEST", err)
	}
	ch, ok := s.channels.Get(req.ChannelID)
	if !ok {
		return newErr(KindChannel, "request on unknown channel", channel.ErrUnknownChannel)
	}
	if req.Type == "exit-status" {
		if status, err := req.TypeSpecific.ReadUint32(); err == nil {
			ch.ExitStatus = int(status)
		}
	}
	ok = true
	if s.cfg.Callbacks != nil && s.cfg.Callbacks.Request != nil {
		ok = s.cfg.Callbacks.Request(ch, req.Type, req.WantReply, req.TypeSpecific)
	}
	if !req.WantReply {
		return nil
	}
	if ok {
		return s.queuePacket(channel.EncodeSuccess(ch.RemoteID))
	}
	return s.queuePacket(channel.EncodeFailure(ch.RemoteID))
}

func (s *Session) handleChannelClose(payload []byte) error {
	channelID, err := channel.ParseChannelID(payload)
	if err != nil {
		return newErr(KindChannel, "parsing CHANNEL_CLOSE", err)
	}
	ch, ok := s.channels.Get(channelID)
	if !ok {
		return nil
	}
	if err := s.queuePacket(channel.EncodeClose(ch.RemoteID)); err != nil {
		return err
	}
	if s.cfg.Callbacks != nil && s.cfg.Callbacks.Closed != nil {
		s.cfg.Callbacks.Closed(ch)
	}
	s.channels.Remove(channelID)
	return nil
}

// SendData queues a CHANNEL_DATA message, chunked to both the peer's
// advertised max packet size and its remaining window. It returns the
// number of bytes actually queued (which may be less than len(data) if
// the remote window is exhausted); the caller should retry the remainder
// once a CHANNEL_WINDOW_ADJUST has been processed.
func (s *Session) SendData(channelID uint32, data []byte) (int, error) {
	return s.sendChannelPayload(channelID, data, false, 0)
}

// SendExtendedData queues a CHANNEL_EXTENDED_DATA message (e.g. stderr).
func (s *Session) SendExtendedData(channelID uint32, dataType uint32, data []byte) (int, error) {
	return s.sendChannelPayload(channelID, data, true, dataType)
}

func (s *Session) sendChannelPayload(channelID uint32, data []byte, extended bool, dataType uint32) (int, error) {
	ch, ok := s.channels.Get(channelID)
	if !ok {
		return 0, newErr(KindChannel, "send on unknown channel", channel.ErrUnknownChannel)
	}
	if ch.RemoteWindow == 0 || len(data) == 0 {
		return 0, nil
	}
	n := len(data)
	if uint32(n) > ch.RemoteWindow {
		n = int(ch.RemoteWindow)
	}
	if uint32(n) > ch.MaxPacketSize {
		n = int(ch.MaxPacketSize)
	}
	chunk := data[:n]
	var packet []byte
	if extended {
		packet = channel.EncodeExtendedData(ch.RemoteID, dataType, chunk)
	} else {
		packet = channel.EncodeData(ch.RemoteID, chunk)
	}
	if err := s.queuePacket(packet); err != nil {
		return 0, err
	}
	ch.AccountSent(uint32(n))
	return n, nil
}

// SendRequest queues a CHANNEL_REQUEST on channelID with pre-encoded
// type-specific data (see channel.EncodeExecRequest and friends).
func (s *Session) SendRequest(channelID uint32, reqType string, wantReply bool, typeSpecific []byte) error {
	ch, ok := s.channels.Get(channelID)
	if !ok {
		return newErr(KindChannel, "request on unknown channel", channel.ErrUnknownChannel)
	}
	return s.queuePacket(channel.EncodeRequest(ch.RemoteID, reqType, wantReply, typeSpecific))
}

// SendEOF queues CHANNEL_EOF.
func (s *Session) SendEOF(channelID uint32) error {
	ch, ok := s.channels.Get(channelID)
	if !ok {
		return newErr(KindChannel, "eof on unknown channel", channel.ErrUnknownChannel)
	}
	return s.queuePacket(channel.EncodeEOF(ch.RemoteID))
}

// CloseChannel queues CHANNEL_CLOSE; the channel is removed from the
// table once the peer's own CHANNEL_CLOSE echo is processed.
func (s *Session) CloseChannel(channelID uint32) error {
	ch, ok := s.channels.Get(channelID)
	if !ok {
		return newErr(KindChannel, "close on unknown channel", channel.ErrUnknownChannel)
	}
	return s.queuePacket(channel.EncodeClose(ch.RemoteID))
}
