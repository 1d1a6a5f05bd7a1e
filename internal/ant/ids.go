package ant

// Message ids as sent over the wire.
const (
	MsgChannelEvent       = 0x40
	MsgAssignChannel      = 0x42
	MsgChannelPeriod      = 0x43
	MsgChannelRFFrequency = 0x45
	MsgNetworkKey         = 0x46
	MsgResetSystem        = 0x4A
	MsgOpenChannel        = 0x4B
	MsgRequestMessage     = 0x4D
	MsgBroadcastData      = 0x4E
	MsgAcknowledgedData   = 0x4F
	MsgChannelID          = 0x51
	MsgChannelStatus      = 0x52
	MsgSearchTimeout      = 0x44
	MsgLowPriorityTimeout = 0x63
	MsgOpenRxScanMode     = 0x5B
	MsgStartup            = 0x6F
)

// Channel event and response codes carried by MsgChannelEvent.
const (
	ResponseNoError             = 0x00
	EventRxSearchTimeout        = 0x01
	EventRxFail                 = 0x02
	EventTx                     = 0x03
	EventTransferRxFailed       = 0x04
	EventTransferTxCompleted    = 0x05
	EventTransferTxFailed       = 0x06
	EventChannelClosed          = 0x07
	EventRxFailGoToSearch       = 0x08
	EventChannelCollision       = 0x09
	EventTransferTxStart        = 0x0A
	EventTransferNextDataBlock  = 0x11
	ChannelInWrongState         = 0x15
	ChannelNotOpened            = 0x16
	ChannelIDNotSet             = 0x18
	CloseAllChannels            = 0x19
	TransferInProgress          = 0x1F
	TransferSequenceNumberError = 0x20
	TransferInError             = 0x21
	MessageSizeExceedsLimit     = 0x27
	InvalidMessage              = 0x28
	InvalidNetworkNumber        = 0x29
	InvalidListID               = 0x30
	InvalidScanTxChannel        = 0x31
	InvalidParameterProvided    = 0x33
	EventSerialQueueOverflow    = 0x34
	EventQueueOverflow          = 0x35
	NVMFullError                = 0x40
	NVMWriteError               = 0x41
	USBStringWriteFail          = 0x70
	MsgSerialErrorID            = 0xAE
)

// ChannelType encodes direction and sharing of an assigned channel.
type ChannelType byte

const (
	ChannelTypeSlave        ChannelType = 0x00
	ChannelTypeMaster       ChannelType = 0x10
	ChannelTypeSharedSlave  ChannelType = 0x20
	ChannelTypeSharedMaster ChannelType = 0x30
	ChannelTypeSlaveRxOnly  ChannelType = 0x40
	ChannelTypeMasterTxOnly ChannelType = 0x50
)

// ChannelState is the device-side state reported by a channel status reply.
type ChannelState byte

const (
	ChannelStateUnassigned ChannelState = 0
	ChannelStateAssigned   ChannelState = 1
	ChannelStateSearching  ChannelState = 2
	ChannelStateTracking   ChannelState = 3
)

func (s ChannelState) String() string {
	switch s {
	case ChannelStateUnassigned:
		return "unassigned"
	case ChannelStateAssigned:
		return "assigned"
	case ChannelStateSearching:
		return "searching"
	case ChannelStateTracking:
		return "tracking"
	default:
		return "unknown"
	}
}
