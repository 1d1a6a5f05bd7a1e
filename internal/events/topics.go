package events

const (
	TopicConnStatus  = "conn.status"
	TopicRawFrameIn  = "raw.frame.in"
	TopicRawFrameOut = "raw.frame.out"
	TopicTelemetry   = "ride.telemetry"
	TopicButton      = "ride.button"
	TopicRideState   = "ride.state"
)
