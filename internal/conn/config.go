package conn

import "antdrive/internal/ant"

// NetworkConfig installs one network key into a dongle network slot during
// the handshake.
type NetworkConfig struct {
	Number uint8
	Key    [8]byte
}

// ChannelConfig describes one channel the handshake sets up, in order:
// assign, id, rf frequency, period, optional search timeouts, then open.
type ChannelConfig struct {
	Number           uint8
	Type             ant.ChannelType
	DeviceNumber     uint16
	DeviceType       uint8
	TransmissionType uint8
	RFFrequency      uint8
	Period           uint16
	Network          uint8

	// ScanMode opens the dongle in continuous scan instead of opening the
	// channel. Only meaningful for receive channels.
	ScanMode bool

	// Optional search timeout overrides, in 2.5s counts.
	SearchTimeout            *uint8
	LowPrioritySearchTimeout *uint8

	// ExtendedAssignment adds the extended assignment byte to AssignChannel.
	ExtendedAssignment *byte

	// WaitUntilTracking polls channel status after open and holds the
	// handshake until the channel reports TRACKING.
	WaitUntilTracking bool
}
