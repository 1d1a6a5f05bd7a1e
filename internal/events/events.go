package events

import "time"

// ConnectionState describes the connection manager lifecycle.
type ConnectionState string

const (
	ConnectionStateDisconnected ConnectionState = "disconnected"
	ConnectionStateConnecting   ConnectionState = "connecting"
	ConnectionStateConnected    ConnectionState = "connected"
)

// ConnectionStatus is a bus snapshot of the connection manager state.
type ConnectionStatus struct {
	State         ConnectionState
	Err           string
	TransportName string
	Timestamp     time.Time
}

// RawFrame carries frame diagnostics for debug views and logs.
type RawFrame struct {
	Hex string
	Len int
}

// TelemetrySample is one decoded trainer telemetry update.
type TelemetrySample struct {
	Channel    uint8
	SpeedKmh   float64
	PowerWatts uint16
	CadenceRpm uint8
	HeartRate  uint8
	DistanceM  uint32
	BrakeTempC uint8
	At         time.Time
}

// ButtonPress is a de-duplicated head unit button event.
type ButtonPress struct {
	Channel uint8
	Code    uint8
	At      time.Time
}

// RideState reports a pause or resume reported by the head unit.
type RideState string

const (
	RideStatePaused  RideState = "paused"
	RideStateRunning RideState = "running"
)

// RideStateChange is a bus event for a ride lifecycle transition.
type RideStateChange struct {
	Channel uint8
	State   RideState
	At      time.Time
}
