// Package channel implements RFC 4254 channel multiplexing: open/confirm/
// data/extended-data/window-adjust/eof/close and the CHANNEL_REQUEST
// sub-protocol (exec, pty-req, shell, window-change, exit-status, ...).
//
// Copyright (c) 2017-2019 Russell Magee
// Licensed under the terms of the MIT license (see LICENSE.mit in this
// distribution)
package channel

import (
	"errors"
	"math/rand"
)

// ErrUnknownChannel is returned when a peer references a channel number
// this side has no record of.
var ErrUnknownChannel = errors.New("channel: unknown channel number")

// DefaultWindowSize and DefaultMaxPacketSize mirror the values
// original_source/src/server/mod.rs's Config carries (config.window_size,
// config.maximum_packet_size), generalized from the teacher's single
// implicit full-duplex stream into per-channel flow control.
const (
	DefaultWindowSize     = 1 << 20 // 1 MiB
	DefaultMaxPacketSize  = 1 << 15 // 32 KiB
	rewindThresholdFactor = 2       // re-grant once below half the window
)

// Channel tracks one multiplexed logical stream's flow-control state,
// grounded on original_source/src/server/encrypted.rs's ChannelParameters.
type Channel struct {
	LocalID  uint32 // our channel number ("sender" in RFC 4254 terms)
	RemoteID uint32 // peer's channel number ("recipient")

	LocalWindow   uint32 // bytes we may still receive before a window-adjust is due
	RemoteWindow  uint32 // bytes we may still send before waiting for a window-adjust
	MaxPacketSize uint32 // largest single CHANNEL_DATA payload we will send

	Type      string
	Confirmed bool

	// ExitStatus is set for exec/shell channels once an exit-status
	// request has been received (RFC 4254 §6.10), or -1 if unset.
	ExitStatus int
}

// Table is the set of channels open on one connection, keyed by local
// channel number. It is not safe for concurrent use; the engine that owns
// it is driven single-threaded, the same way xsnet.Conn's tunnel map is
// only ever touched from the Conn's own Read/Write goroutine pair.
type Table struct {
	channels map[uint32]*Channel
}

// NewTable returns an empty channel table.
func NewTable() *Table {
	return &Table{channels: make(map[uint32]*Channel)}
}

// Get looks up a channel by local ID.
func (t *Table) Get(localID uint32) (*Channel, bool) {
	c, ok := t.channels[localID]
	return c, ok
}

// Allocate picks an unused, non-zero local channel number and registers a
// new Channel for an incoming CHANNEL_OPEN, mirroring
// server_handle_channel_open's sender_channel allocation loop.
func (t *Table) Allocate(remoteID, remoteWindow uint32, chanType string) *Channel {
	var localID uint32
	for {
		localID = rand.Uint32()
		if localID != 0 {
			if _, exists := t.channels[localID]; !exists {
				break
			}
		}
	}
	c := &Channel{
		LocalID:       localID,
		RemoteID:      remoteID,
		LocalWindow:   DefaultWindowSize,
		RemoteWindow:  remoteWindow,
		MaxPacketSize: DefaultMaxPacketSize,
		Type:          chanType,
		Confirmed:     true,
		ExitStatus:    -1,
	}
	t.channels[localID] = c
	return c
}

// Insert registers a channel this side opened (client role), once the
// peer's CHANNEL_OPEN_CONFIRMATION supplies its remote ID and window.
func (t *Table) Insert(localID uint32, c *Channel) {
	t.channels[localID] = c
}

// AllocateLocal registers a provisional channel for an outgoing
// CHANNEL_OPEN this side is initiating: the remote ID and window are not
// yet known and are filled in once CHANNEL_OPEN_CONFIRMATION arrives.
func (t *Table) AllocateLocal(chanType string, window, maxPacket uint32) *Channel {
	var localID uint32
	for {
		localID = rand.Uint32()
		if localID != 0 {
			if _, exists := t.channels[localID]; !exists {
				break
			}
		}
	}
	c := &Channel{
		LocalID:       localID,
		LocalWindow:   window,
		MaxPacketSize: maxPacket,
		Type:          chanType,
		Confirmed:     false,
		ExitStatus:    -1,
	}
	t.channels[localID] = c
	return c
}

// Remove deletes a channel, on CHANNEL_EOF/CLOSE.
func (t *Table) Remove(localID uint32) {
	delete(t.channels, localID)
}

// AccountReceived subtracts n from a channel's local (receive) window as
// data arrives, per RFC 4254 §5.2: excess beyond the advertised window is
// ignored rather than causing an error.
func (c *Channel) AccountReceived(n uint32) {
	if n <= c.LocalWindow {
		c.LocalWindow -= n
	}
}

// NeedsWindowAdjust reports whether the local window has drained below
// half of DefaultWindowSize and should be re-granted, the heuristic
// original_source/src/server/encrypted.rs applies
// ("sender_window_size < config.window_size / 2").
func (c *Channel) NeedsWindowAdjust() bool {
	return c.LocalWindow < DefaultWindowSize/rewindThresholdFactor
}

// GrantWindowAdjust refills the local window to DefaultWindowSize and
// returns the amount to advertise in a CHANNEL_WINDOW_ADJUST.
func (c *Channel) GrantWindowAdjust() uint32 {
	amount := DefaultWindowSize - c.LocalWindow
	c.LocalWindow = DefaultWindowSize
	return amount
}

// AccountSent subtracts n from the remote window as this side sends data.
func (c *Channel) AccountSent(n uint32) {
	if n <= c.RemoteWindow {
		c.RemoteWindow -= n
	} else {
		c.RemoteWindow = 0
	}
}

// ApplyWindowAdjust grows the remote window on a received
// CHANNEL_WINDOW_ADJUST.
func (c *Channel) ApplyWindowAdjust(amount uint32) {
	c.RemoteWindow += amount
}
