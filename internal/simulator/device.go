// Package simulator plays the dongle side of the link over a loopback
// transport: it acknowledges the setup handshake the way a real device does
// and replays scripted telemetry. Tests and the --sim mode of antdump use it
// in place of hardware.
package simulator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"antdrive/internal/ant"
	"antdrive/internal/transport"
)

// Device is a scripted ANT dongle plus trainer behind it.
type Device struct {
	logger *slog.Logger
	ep     *transport.DeviceEndpoint

	mu sync.Mutex
	// received collects every frame the host sent, in arrival order.
	received []ant.Frame
	// dropAcks makes the device swallow this many reply-requiring commands
	// without answering, to exercise host retransmission.
	dropAcks int
	// searchingPolls is how many channel status requests report SEARCHING
	// before the channel flips to TRACKING.
	searchingPolls int
	statusPolls    int
}

func New(logger *slog.Logger, ep *transport.DeviceEndpoint) *Device {
	return &Device{logger: logger, ep: ep}
}

// DropAcks swallows the next n acknowledgments.
func (d *Device) DropAcks(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dropAcks = n
}

// ReportSearchingFor makes the first n status polls report SEARCHING.
func (d *Device) ReportSearchingFor(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.searchingPolls = n
}

// ReceivedIDs returns the message ids the host has sent so far.
func (d *Device) ReceivedIDs() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	ids := make([]byte, len(d.received))
	for i, frame := range d.received {
		ids[i] = frame.ID
	}

	return ids
}

// ReceivedFrames returns a copy of every frame the host has sent so far.
func (d *Device) ReceivedFrames() []ant.Frame {
	d.mu.Lock()
	defer d.mu.Unlock()
	frames := make([]ant.Frame, len(d.received))
	copy(frames, d.received)

	return frames
}

// Run reads host frames and answers them until ctx is canceled or the link
// closes.
func (d *Device) Run(ctx context.Context) {
	for {
		frame, err := d.ep.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return
			}
			d.logger.Warn("simulator read", "error", err)

			return
		}
		d.handle(frame)
	}
}

func (d *Device) handle(frame ant.Frame) {
	d.mu.Lock()
	d.received = append(d.received, frame)
	if frame.ID != ant.MsgRequestMessage && d.dropAcks > 0 {
		d.dropAcks--
		d.mu.Unlock()

		return
	}
	d.mu.Unlock()

	switch frame.ID {
	case ant.MsgResetSystem:
		d.send(ant.MsgStartup, []byte{0x20})
	case ant.MsgRequestMessage:
		d.handleRequest(frame.Content)
	case ant.MsgBroadcastData, ant.MsgAcknowledgedData:
		d.send(ant.MsgChannelEvent, []byte{frame.Content[0], 0x01, ant.EventTx})
	case ant.MsgNetworkKey, ant.MsgAssignChannel, ant.MsgChannelID, ant.MsgChannelPeriod,
		ant.MsgChannelRFFrequency, ant.MsgSearchTimeout, ant.MsgLowPriorityTimeout,
		ant.MsgOpenChannel, ant.MsgOpenRxScanMode:
		d.send(ant.MsgChannelEvent, []byte{frame.Content[0], frame.ID, ant.ResponseNoError})
	default:
		d.logger.Debug("simulator ignoring message", "id", frame.ID)
	}
}

func (d *Device) handleRequest(content []byte) {
	if len(content) < 2 {
		return
	}
	channel, requested := content[0], content[1]
	switch requested {
	case ant.MsgChannelStatus:
		d.mu.Lock()
		state := ant.ChannelStateTracking
		if d.statusPolls < d.searchingPolls {
			state = ant.ChannelStateSearching
		}
		d.statusPolls++
		d.mu.Unlock()
		d.send(ant.MsgChannelStatus, []byte{channel, byte(state)})
	case ant.MsgChannelID:
		d.send(ant.MsgChannelID, []byte{channel, 0x01, 0x00, 0x53, 0x01})
	default:
		d.logger.Debug("simulator cannot serve request", "requested", requested)
	}
}

// SendBroadcast emits one broadcast page from the trainer.
func (d *Device) SendBroadcast(channel uint8, payload []byte) {
	content := make([]byte, 0, len(payload)+1)
	content = append(content, channel)
	content = append(content, payload...)
	d.send(ant.MsgBroadcastData, content)
}

// InjectBytes feeds raw bytes into the host receive path.
func (d *Device) InjectBytes(b []byte) {
	if err := d.ep.InjectBytes(b); err != nil {
		d.logger.Warn("simulator inject", "error", err)
	}
}

func (d *Device) send(id byte, content []byte) {
	if err := d.ep.SendMessage(id, content); err != nil {
		d.logger.Warn("simulator send", "id", id, "error", err)
	}
}
