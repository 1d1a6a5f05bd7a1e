package ant

import "encoding/binary"

// Message is an outbound command for the dongle. AwaitsReply marks messages
// the device acknowledges; Matches tests whether an inbound message is that
// acknowledgment. OnReply, when set, receives the matching inbound message
// before the send completion fires.
type Message struct {
	ID          byte
	Content     []byte
	AwaitsReply bool

	matches func(in Decoded) bool
	OnReply func(in Decoded)
}

// Matches reports whether in acknowledges this message. Messages without a
// matcher never match anything.
func (m Message) Matches(in Decoded) bool {
	if m.matches == nil {
		return false
	}

	return m.matches(in)
}

// channelResponseMatcher acks a configuration command: the device answers
// with a channel event carrying the initiating message id and a result code
// of RESPONSE_NO_ERROR.
func channelResponseMatcher(initiatingID byte) func(Decoded) bool {
	return func(in Decoded) bool {
		ev := in.ChannelEvent

		return ev != nil && ev.InitiatingID == initiatingID && ev.Code == ResponseNoError
	}
}

// Reset restarts the dongle. It is acknowledged by a startup message instead
// of a channel event.
func Reset() Message {
	return Message{
		ID:          MsgResetSystem,
		Content:     []byte{0x00},
		AwaitsReply: true,
		matches: func(in Decoded) bool {
			return in.Startup != nil
		},
	}
}

// SetNetworkKey installs an 8-byte network key into a network slot.
func SetNetworkKey(network uint8, key [8]byte) Message {
	content := make([]byte, 0, 9)
	content = append(content, network)
	content = append(content, key[:]...)

	return Message{
		ID:          MsgNetworkKey,
		Content:     content,
		AwaitsReply: true,
		matches:     channelResponseMatcher(MsgNetworkKey),
	}
}

// AssignChannel binds a channel number to a type and network slot.
func AssignChannel(channel uint8, channelType ChannelType, network uint8) Message {
	return Message{
		ID:          MsgAssignChannel,
		Content:     []byte{channel, byte(channelType), network},
		AwaitsReply: true,
		matches:     channelResponseMatcher(MsgAssignChannel),
	}
}

// AssignChannelExtended is AssignChannel with an extended assignment byte.
func AssignChannelExtended(channel uint8, channelType ChannelType, network uint8, extended byte) Message {
	m := AssignChannel(channel, channelType, network)
	m.Content = append(m.Content, extended)

	return m
}

// SetChannelID pairs a channel with a device number, device type and
// transmission type. Zero values leave the field as a wildcard.
func SetChannelID(channel uint8, deviceNumber uint16, deviceType uint8, transmissionType uint8) Message {
	content := make([]byte, 5)
	content[0] = channel
	binary.LittleEndian.PutUint16(content[1:3], deviceNumber)
	content[3] = deviceType
	content[4] = transmissionType

	return Message{
		ID:          MsgChannelID,
		Content:     content,
		AwaitsReply: true,
		matches:     channelResponseMatcher(MsgChannelID),
	}
}

// SetChannelPeriod sets the channel message period in 1/32768s counts.
func SetChannelPeriod(channel uint8, period uint16) Message {
	content := make([]byte, 3)
	content[0] = channel
	binary.LittleEndian.PutUint16(content[1:3], period)

	return Message{
		ID:          MsgChannelPeriod,
		Content:     content,
		AwaitsReply: true,
		matches:     channelResponseMatcher(MsgChannelPeriod),
	}
}

// SetChannelRFFrequency tunes a channel to 2400MHz + offset MHz.
func SetChannelRFFrequency(channel uint8, offset uint8) Message {
	return Message{
		ID:          MsgChannelRFFrequency,
		Content:     []byte{channel, offset},
		AwaitsReply: true,
		matches:     channelResponseMatcher(MsgChannelRFFrequency),
	}
}

// SetSearchTimeout sets the high-priority search timeout in 2.5s counts.
func SetSearchTimeout(channel uint8, timeout uint8) Message {
	return Message{
		ID:          MsgSearchTimeout,
		Content:     []byte{channel, timeout},
		AwaitsReply: true,
		matches:     channelResponseMatcher(MsgSearchTimeout),
	}
}

// SetLowPrioritySearchTimeout sets the low-priority search timeout.
func SetLowPrioritySearchTimeout(channel uint8, timeout uint8) Message {
	return Message{
		ID:          MsgLowPriorityTimeout,
		Content:     []byte{channel, timeout},
		AwaitsReply: true,
		matches:     channelResponseMatcher(MsgLowPriorityTimeout),
	}
}

// OpenChannel starts communication on an assigned channel.
func OpenChannel(channel uint8) Message {
	return Message{
		ID:          MsgOpenChannel,
		Content:     []byte{channel},
		AwaitsReply: true,
		matches:     channelResponseMatcher(MsgOpenChannel),
	}
}

// OpenRxScanMode puts the dongle into continuous scan on channel 0.
func OpenRxScanMode() Message {
	return Message{
		ID:          MsgOpenRxScanMode,
		Content:     []byte{0x00},
		AwaitsReply: true,
		matches:     channelResponseMatcher(MsgOpenRxScanMode),
	}
}

// RequestMessage asks the device to report message requestedID for a
// channel. The reply is the requested message itself; decode receives it.
func RequestMessage(channel uint8, requestedID byte, decode func(Decoded)) Message {
	return Message{
		ID:          MsgRequestMessage,
		Content:     []byte{channel, requestedID},
		AwaitsReply: true,
		matches: func(in Decoded) bool {
			return in.ID == requestedID
		},
		OnReply: decode,
	}
}

// RequestChannelStatus asks for a channel status report and hands the decoded
// state to status.
func RequestChannelStatus(channel uint8, status func(ChannelState)) Message {
	return RequestMessage(channel, MsgChannelStatus, func(in Decoded) {
		if in.ChannelStatus != nil {
			status(in.ChannelStatus.State)
		}
	})
}

// Broadcast sends one page of broadcast data on a channel. The dongle
// reports the transmission with an EVENT_TX channel event.
func Broadcast(channel uint8, payload []byte) Message {
	content := make([]byte, 0, len(payload)+1)
	content = append(content, channel)
	content = append(content, payload...)

	return Message{
		ID:          MsgBroadcastData,
		Content:     content,
		AwaitsReply: true,
		matches: func(in Decoded) bool {
			ev := in.ChannelEvent

			return ev != nil && ev.Channel == channel && ev.Code == EventTx
		},
	}
}
