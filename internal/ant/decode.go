package ant

import (
	"encoding/binary"
	"fmt"
)

// Decoded is a parsed inbound frame. Exactly one variant pointer is set for
// known message ids; unknown ids keep Opaque set so newer dongle firmware
// never breaks the receive path.
type Decoded struct {
	ID      byte
	Content []byte

	Startup       *Startup
	ChannelEvent  *ChannelEvent
	Broadcast     *BroadcastData
	ChannelStatus *ChannelStatus
	ChannelID     *ChannelID

	Opaque bool
}

// Startup reports the cause of the last dongle reset.
type Startup struct {
	Reason byte
}

// ChannelEvent carries a response or event code for a channel. For command
// responses InitiatingID holds the id of the message being acknowledged; for
// radio events it is 0x01.
type ChannelEvent struct {
	Channel      uint8
	InitiatingID byte
	Code         byte
}

// ChannelStatus reports the device-side channel state machine.
type ChannelStatus struct {
	Channel uint8
	State   ChannelState
}

// ChannelID reports the paired device identity of a channel.
type ChannelID struct {
	Channel          uint8
	DeviceNumber     uint16
	DeviceType       uint8
	TransmissionType uint8
}

type decoder func(content []byte, d *Decoded) error

// decoders maps a wire message id to its content decoder. Ids without an
// entry decode to the Opaque variant.
var decoders = map[byte]decoder{
	MsgStartup:       decodeStartup,
	MsgChannelEvent:  decodeChannelEvent,
	MsgBroadcastData: decodeBroadcast,
	MsgChannelStatus: decodeChannelStatus,
	MsgChannelID:     decodeChannelID,
}

// Decode parses a frame into its message variant. Unknown ids are not an
// error: they produce an Opaque result the caller may log and skip.
func Decode(frame Frame) (Decoded, error) {
	d := Decoded{ID: frame.ID, Content: frame.Content}

	dec, ok := decoders[frame.ID]
	if !ok {
		d.Opaque = true

		return d, nil
	}
	if err := dec(frame.Content, &d); err != nil {
		return Decoded{}, fmt.Errorf("decode message 0x%02X: %w", frame.ID, err)
	}

	return d, nil
}

func decodeStartup(content []byte, d *Decoded) error {
	if len(content) < 1 {
		return fmt.Errorf("startup content too short: %d", len(content))
	}
	d.Startup = &Startup{Reason: content[0]}

	return nil
}

func decodeChannelEvent(content []byte, d *Decoded) error {
	if len(content) < 3 {
		return fmt.Errorf("channel event content too short: %d", len(content))
	}
	d.ChannelEvent = &ChannelEvent{
		Channel:      content[0],
		InitiatingID: content[1],
		Code:         content[2],
	}

	return nil
}

func decodeBroadcast(content []byte, d *Decoded) error {
	if len(content) < 9 {
		return fmt.Errorf("broadcast content too short: %d", len(content))
	}
	d.Broadcast = &BroadcastData{
		Channel: content[0],
		Payload: content[1:9],
		content: content,
	}

	return nil
}

func decodeChannelStatus(content []byte, d *Decoded) error {
	if len(content) < 2 {
		return fmt.Errorf("channel status content too short: %d", len(content))
	}
	d.ChannelStatus = &ChannelStatus{
		Channel: content[0],
		State:   ChannelState(content[1] & 0x03),
	}

	return nil
}

func decodeChannelID(content []byte, d *Decoded) error {
	if len(content) < 5 {
		return fmt.Errorf("channel id content too short: %d", len(content))
	}
	d.ChannelID = &ChannelID{
		Channel:          content[0],
		DeviceNumber:     binary.LittleEndian.Uint16(content[1:3]),
		DeviceType:       content[3],
		TransmissionType: content[4],
	}

	return nil
}
