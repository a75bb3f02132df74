package channel

import "blitter.com/go/sshcore/wire"

// Message codes, duplicated from msg as plain literals; kept in sync with
// msg.CHANNEL_*.
const (
	msgChannelOpen             = 90
	msgChannelOpenConfirmation = 91
	msgChannelOpenFailure      = 92
	msgChannelWindowAdjust     = 93
	msgChannelData             = 94
	msgChannelExtendedData     = 95
	msgChannelEOF              = 96
	msgChannelClose            = 97
	msgChannelRequest          = 98
	msgChannelSuccess          = 99
	msgChannelFailure          = 100
)

// OpenRequest is a parsed CHANNEL_OPEN payload.
type OpenRequest struct {
	ChannelType string
	SenderID    uint32
	Window      uint32
	MaxPacket   uint32
}

// ParseOpen parses a CHANNEL_OPEN payload (message code included).
func ParseOpen(payload []byte) (*OpenRequest, error) {
	r := wire.NewReader(payload)
	if _, err := r.ReadByte(); err != nil {
		return nil, err
	}
	typ, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	sender, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	window, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	maxPacket, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	return &OpenRequest{ChannelType: string(typ), SenderID: sender, Window: window, MaxPacket: maxPacket}, nil
}

// EncodeOpen builds a CHANNEL_OPEN payload for a client-initiated channel.
func EncodeOpen(chanType string, localID, window, maxPacket uint32) []byte {
	buf := wire.NewBuffer()
	buf.PutByte(msgChannelOpen)
	buf.PutString([]byte(chanType))
	buf.PutUint32(localID)
	buf.PutUint32(window)
	buf.PutUint32(maxPacket)
	return buf.Bytes()
}

// EncodeOpenConfirmation builds CHANNEL_OPEN_CONFIRMATION.
func EncodeOpenConfirmation(c *Channel) []byte {
	buf := wire.NewBuffer()
	buf.PutByte(msgChannelOpenConfirmation)
	buf.PutUint32(c.RemoteID)
	buf.PutUint32(c.LocalID)
	buf.PutUint32(c.LocalWindow)
	buf.PutUint32(c.MaxPacketSize)
	return buf.Bytes()
}

// EncodeOpenFailure builds CHANNEL_OPEN_FAILURE.
func EncodeOpenFailure(remoteID, reasonCode uint32, description string) []byte {
	buf := wire.NewBuffer()
	buf.PutByte(msgChannelOpenFailure)
	buf.PutUint32(remoteID)
	buf.PutUint32(reasonCode)
	buf.PutString([]byte(description))
	buf.PutString(nil)
	return buf.Bytes()
}

// ParseOpenConfirmation parses CHANNEL_OPEN_CONFIRMATION, returned to the
// client that initiated the open.
func ParseOpenConfirmation(payload []byte) (localID, remoteID, window, maxPacket uint32, err error) {
	r := wire.NewReader(payload)
	if _, err = r.ReadByte(); err != nil {
		return
	}
	if localID, err = r.ReadUint32(); err != nil {
		return
	}
	if remoteID, err = r.ReadUint32(); err != nil {
		return
	}
	if window, err = r.ReadUint32(); err != nil {
		return
	}
	maxPacket, err = r.ReadUint32()
	return
}

// ParseOpenFailure parses CHANNEL_OPEN_FAILURE, returned to the client
// that initiated the open.
func ParseOpenFailure(payload []byte) (localID, reasonCode uint32, description string, err error) {
	r := wire.NewReader(payload)
	if _, err = r.ReadByte(); err != nil {
		return
	}
	if localID, err = r.ReadUint32(); err != nil {
		return
	}
	if reasonCode, err = r.ReadUint32(); err != nil {
		return
	}
	desc, err := r.ReadString()
	description = string(desc)
	return
}

// EncodeData builds CHANNEL_DATA.
func EncodeData(remoteID uint32, data []byte) []byte {
	buf := wire.NewBuffer()
	buf.PutByte(msgChannelData)
	buf.PutUint32(remoteID)
	buf.PutString(data)
	return buf.Bytes()
}

// EncodeExtendedData builds CHANNEL_EXTENDED_DATA.
func EncodeExtendedData(remoteID, dataType uint32, data []byte) []byte {
	buf := wire.NewBuffer()
	buf.PutByte(msgChannelExtendedData)
	buf.PutUint32(remoteID)
	buf.PutUint32(dataType)
	buf.PutString(data)
	return buf.Bytes()
}

// ParseData parses CHANNEL_DATA or CHANNEL_EXTENDED_DATA (extended is true
// for the latter, with dataType valid only in that case).
func ParseData(payload []byte, extended bool) (channelID, dataType uint32, data []byte, err error) {
	r := wire.NewReader(payload)
	if _, err = r.ReadByte(); err != nil {
		return
	}
	if channelID, err = r.ReadUint32(); err != nil {
		return
	}
	if extended {
		if dataType, err = r.ReadUint32(); err != nil {
			return
		}
	}
	data, err = r.ReadString()
	return
}

// EncodeWindowAdjust builds CHANNEL_WINDOW_ADJUST.
func EncodeWindowAdjust(remoteID, amount uint32) []byte {
	buf := wire.NewBuffer()
	buf.PutByte(msgChannelWindowAdjust)
	buf.PutUint32(remoteID)
	buf.PutUint32(amount)
	return buf.Bytes()
}

// ParseWindowAdjust parses CHANNEL_WINDOW_ADJUST.
func ParseWindowAdjust(payload []byte) (channelID, amount uint32, err error) {
	r := wire.NewReader(payload)
	if _, err = r.ReadByte(); err != nil {
		return
	}
	if channelID, err = r.ReadUint32(); err != nil {
		return
	}
	amount, err = r.ReadUint32()
	return
}

// Request is a parsed CHANNEL_REQUEST.
type Request struct {
	ChannelID  uint32
	Type       string
	WantReply  bool
	TypeSpecific *wire.Reader
}

// ParseRequest parses the common CHANNEL_REQUEST prefix; callers then read
// type-specific fields (e.g. the command string for "exec") from
// TypeSpecific.
func ParseRequest(payload []byte) (*Request, error) {
	r := wire.NewReader(payload)
	if _, err := r.ReadByte(); err != nil {
		return nil, err
	}
	channelID, err := r.ReadUint32()
	if err != nil {
		return nil, err
	}
	typ, err := r.ReadString()
	if err != nil {
		return nil, err
	}
	wantReply, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	return &Request{ChannelID: channelID, Type: string(typ), WantReply: wantReply != 0, TypeSpecific: r}, nil
}

// EncodeRequest builds a CHANNEL_REQUEST with pre-encoded type-specific
// data appended verbatim (e.g. the exec command string or pty-req fields).
func EncodeRequest(remoteID uint32, reqType string, wantReply bool, typeSpecific []byte) []byte {
	buf := wire.NewBuffer()
	buf.PutByte(msgChannelRequest)
	buf.PutUint32(remoteID)
	buf.PutString([]byte(reqType))
	if wantReply {
		buf.PutByte(1)
	} else {
		buf.PutByte(0)
	}
	buf.PutBytes(typeSpecific)
	return buf.Bytes()
}

// EncodeSuccess builds CHANNEL_SUCCESS.
func EncodeSuccess(remoteID uint32) []byte {
	buf := wire.NewBuffer()
	buf.PutByte(msgChannelSuccess)
	buf.PutUint32(remoteID)
	return buf.Bytes()
}

// EncodeFailure builds CHANNEL_FAILURE.
func EncodeFailure(remoteID uint32) []byte {
	buf := wire.NewBuffer()
	buf.PutByte(msgChannelFailure)
	buf.PutUint32(remoteID)
	return buf.Bytes()
}

// EncodeEOF builds CHANNEL_EOF.
func EncodeEOF(remoteID uint32) []byte {
	buf := wire.NewBuffer()
	buf.PutByte(msgChannelEOF)
	buf.PutUint32(remoteID)
	return buf.Bytes()
}

// EncodeClose builds CHANNEL_CLOSE.
func EncodeClose(remoteID uint32) []byte {
	buf := wire.NewBuffer()
	buf.PutByte(msgChannelClose)
	buf.PutUint32(remoteID)
	return buf.Bytes()
}

// ParseChannelID parses the single channel-ID field common to
// CHANNEL_EOF/CHANNEL_CLOSE/CHANNEL_SUCCESS/CHANNEL_FAILURE.
func ParseChannelID(payload []byte) (uint32, error) {
	r := wire.NewReader(payload)
	if _, err := r.ReadByte(); err != nil {
		return 0, err
	}
	return r.ReadUint32()
}

// EncodeExecRequest builds the type-specific payload for an "exec"
// CHANNEL_REQUEST: a single SSH string, the command line.
func EncodeExecRequest(command string) []byte {
	buf := wire.NewBuffer()
	buf.PutString([]byte(command))
	return buf.Bytes()
}

// EncodePtyRequest builds the type-specific payload for a "pty-req"
// CHANNEL_REQUEST per RFC 4254 §6.2.
func EncodePtyRequest(term string, cols, rows, widthPx, heightPx uint32, modes []byte) []byte {
	buf := wire.NewBuffer()
	buf.PutString([]byte(term))
	buf.PutUint32(cols)
	buf.PutUint32(rows)
	buf.PutUint32(widthPx)
	buf.PutUint32(heightPx)
	buf.PutString(modes)
	return buf.Bytes()
}

// EncodeExitStatusRequest builds the type-specific payload for an
// "exit-status" CHANNEL_REQUEST per RFC 4254 §6.10.
func EncodeExitStatusRequest(status uint32) []byte {
	buf := wire.NewBuffer()
	buf.PutUint32(status)
	return buf.Bytes()
}

// EncodeWindowChangeRequest builds the type-specific payload for a
// "window-change" CHANNEL_REQUEST per RFC 4254 §6.7.
func EncodeWindowChangeRequest(cols, rows, widthPx, heightPx uint32) []byte {
	buf := wire.NewBuffer()
	buf.PutUint32(cols)
	buf.PutUint32(rows)
	buf.PutUint32(widthPx)
	buf.PutUint32(heightPx)
	return buf.Bytes()
}
