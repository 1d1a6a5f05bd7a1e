package ant

import "encoding/binary"

// Extended broadcast trailer. Content longer than the channel byte plus the
// 8-byte payload carries a flag byte at offset 9 followed by optional fields
// in flag order.
const (
	extFlagOffset = 9

	extFlagChannelOutput = 0x80 // device number + type + transmission type, 4 bytes
	extFlagRSSI          = 0x40 // 1 byte
	extFlagTimestamp     = 0x20 // 2 bytes, little-endian

	extChannelOutputOffset = 10
	extRSSIOffset          = 10
	extTimestampOffset     = 11
)

// BroadcastData is one channel telemetry page, optionally followed by an
// extended trailer with pairing and radio quality data.
type BroadcastData struct {
	Channel uint8
	Payload []byte

	content []byte
}

// IsExtended reports whether the broadcast carries an extended trailer.
func (b *BroadcastData) IsExtended() bool {
	return len(b.content) > extFlagOffset
}

func (b *BroadcastData) flags() byte {
	if !b.IsExtended() {
		return 0
	}

	return b.content[extFlagOffset]
}

// channelOutputShift is the offset adjustment for fields that follow the
// channel output block when it is present.
func (b *BroadcastData) channelOutputShift() int {
	if b.flags()&extFlagChannelOutput != 0 {
		return 4
	}

	return 0
}

// DeviceNumber returns the transmitting device number from the channel
// output block, if present.
func (b *BroadcastData) DeviceNumber() (uint16, bool) {
	if b.flags()&extFlagChannelOutput == 0 || len(b.content) < extChannelOutputOffset+4 {
		return 0, false
	}

	return binary.LittleEndian.Uint16(b.content[extChannelOutputOffset : extChannelOutputOffset+2]), true
}

// DeviceType returns the transmitting device type from the channel output
// block, if present.
func (b *BroadcastData) DeviceType() (uint8, bool) {
	if b.flags()&extFlagChannelOutput == 0 || len(b.content) < extChannelOutputOffset+4 {
		return 0, false
	}

	return b.content[extChannelOutputOffset+2], true
}

// TransmissionType returns the transmission type from the channel output
// block, if present.
func (b *BroadcastData) TransmissionType() (uint8, bool) {
	if b.flags()&extFlagChannelOutput == 0 || len(b.content) < extChannelOutputOffset+4 {
		return 0, false
	}

	return b.content[extChannelOutputOffset+3], true
}

// RSSI returns the received signal strength byte, if present.
func (b *BroadcastData) RSSI() (int8, bool) {
	if b.flags()&extFlagRSSI == 0 {
		return 0, false
	}
	off := extRSSIOffset + b.channelOutputShift()
	if len(b.content) < off+1 {
		return 0, false
	}

	return int8(b.content[off]), true
}

// Timestamp returns the 1/32768s receive timestamp, if present.
func (b *BroadcastData) Timestamp() (uint16, bool) {
	if b.flags()&extFlagTimestamp == 0 {
		return 0, false
	}
	off := extTimestampOffset + b.channelOutputShift()
	if len(b.content) < off+2 {
		return 0, false
	}

	return binary.LittleEndian.Uint16(b.content[off : off+2]), true
}
