// Package headunit drives a trainer head unit whose broadcast payloads carry
// a private sub-protocol on top of a generic ANT channel: byte 0 of each
// page selects the record kind, commands travel back as broadcast pages.
package headunit

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"antdrive/internal/ant"
	"antdrive/internal/bus"
	"antdrive/internal/events"
)

// Record kinds in broadcast payload byte 0.
const (
	pageTelemetry  = 0x01
	pageDistanceHR = 0x02
	pageBrakeTemp  = 0x03
	pageButton     = 0x04
	pageLifecycle  = 0x05
)

// Lifecycle sub-kinds in payload byte 1.
const (
	lifecyclePause  = 0x00
	lifecycleResume = 0x01
)

// Command pages sent to the head unit.
const (
	cmdSetSlope  = 0x10
	cmdSetWeight = 0x11
	cmdContinue  = 0x12
)

// The head unit re-transmits a held button every channel period; only a code
// change or this much elapsed time dispatches a new press.
const buttonRepeatWindow = 1000 * time.Millisecond

// Queuer is the outbound side of the connection manager.
type Queuer interface {
	QueueMessage(msg ant.Message, done func())
}

// Config tunes the head unit driver. Slope bounds are device limits; values
// outside them clamp to the bound.
type Config struct {
	Channel         uint8
	MinSlopePercent float64
	MaxSlopePercent float64
	RiderWeightKg   float64
}

// HeadUnit interprets broadcast pages from one channel and issues trainer
// commands through the connection manager queue. It implements conn.Handler.
type HeadUnit struct {
	logger *slog.Logger
	bus    bus.MessageBus
	queuer Queuer
	cfg    Config

	// now is swappable for button de-duplication tests.
	now func() time.Time

	mu         sync.Mutex
	speedKmh   float64
	powerWatts uint16
	cadenceRpm uint8
	heartRate  uint8
	distanceM  uint32
	brakeTempC uint8
	slope      float64
	paused     bool

	lastButtonCode uint8
	lastButtonAt   time.Time
	buttonSeen     bool
}

func New(logger *slog.Logger, b bus.MessageBus, queuer Queuer, cfg Config) *HeadUnit {
	return &HeadUnit{
		logger: logger,
		bus:    b,
		queuer: queuer,
		cfg:    cfg,
		now:    time.Now,
	}
}

// ProcessMessage interprets one inbound message. Messages for other channels
// or other message kinds are ignored.
func (h *HeadUnit) ProcessMessage(msg ant.Decoded) {
	bc := msg.Broadcast
	if bc == nil || bc.Channel != h.cfg.Channel || len(bc.Payload) < 8 {
		return
	}

	switch bc.Payload[0] {
	case pageTelemetry:
		h.handleTelemetry(bc.Payload)
	case pageDistanceHR:
		h.handleDistanceHR(bc.Payload)
	case pageBrakeTemp:
		h.handleBrakeTemp(bc.Payload)
	case pageButton:
		h.handleButton(bc.Payload)
	case pageLifecycle:
		h.handleLifecycle(bc.Payload)
	default:
		h.logger.Debug("unhandled head unit page", "page", bc.Payload[0])
	}
}

// SetSlope clamps percent to the configured device range and sends it.
func (h *HeadUnit) SetSlope(percent float64) {
	h.mu.Lock()
	h.slope = percent
	h.mu.Unlock()
	h.sendSlope(percent)
}

// SetRiderWeight stores and transmits the rider weight used for simulation.
func (h *HeadUnit) SetRiderWeight(kg float64) {
	h.mu.Lock()
	h.cfg.RiderWeightKg = kg
	h.mu.Unlock()
	h.sendWeight(kg)
}

func (h *HeadUnit) handleTelemetry(payload []byte) {
	h.mu.Lock()
	h.speedKmh = float64(uint16(payload[1])|uint16(payload[2])<<8) / 10
	h.powerWatts = uint16(payload[3]) | uint16(payload[4])<<8
	h.cadenceRpm = payload[5]
	sample := h.sampleLocked()
	h.mu.Unlock()

	h.bus.Publish(events.TopicTelemetry, sample)
}

func (h *HeadUnit) handleDistanceHR(payload []byte) {
	h.mu.Lock()
	h.distanceM = uint32(payload[1]) | uint32(payload[2])<<8 | uint32(payload[3])<<16 | uint32(payload[4])<<24
	h.heartRate = payload[5]
	h.mu.Unlock()
}

func (h *HeadUnit) handleBrakeTemp(payload []byte) {
	h.mu.Lock()
	h.brakeTempC = payload[1]
	h.mu.Unlock()
}

func (h *HeadUnit) handleButton(payload []byte) {
	code := payload[1]
	now := h.now()

	h.mu.Lock()
	repeat := h.buttonSeen && code == h.lastButtonCode && now.Sub(h.lastButtonAt) < buttonRepeatWindow
	if !repeat {
		h.lastButtonCode = code
		h.lastButtonAt = now
		h.buttonSeen = true
	}
	h.mu.Unlock()

	if repeat {
		return
	}
	h.bus.Publish(events.TopicButton, events.ButtonPress{Channel: h.cfg.Channel, Code: code, At: now})
}

func (h *HeadUnit) handleLifecycle(payload []byte) {
	switch payload[1] {
	case lifecyclePause:
		h.mu.Lock()
		h.speedKmh = 0
		h.powerWatts = 0
		h.cadenceRpm = 0
		h.paused = true
		h.mu.Unlock()

		h.bus.Publish(events.TopicRideState, events.RideStateChange{
			Channel: h.cfg.Channel,
			State:   events.RideStatePaused,
			At:      h.now(),
		})
		h.queueCommand([]byte{cmdContinue, 0, 0, 0, 0, 0, 0, 0})
	case lifecycleResume:
		h.mu.Lock()
		h.paused = false
		slope := h.slope
		weight := h.cfg.RiderWeightKg
		h.mu.Unlock()

		h.bus.Publish(events.TopicRideState, events.RideStateChange{
			Channel: h.cfg.Channel,
			State:   events.RideStateRunning,
			At:      h.now(),
		})
		h.sendSlope(slope)
		h.sendWeight(weight)
	default:
		h.logger.Debug("unhandled lifecycle event", "event", payload[1])
	}
}

func (h *HeadUnit) sendSlope(percent float64) {
	sign, magnitude := encodeSlope(percent, h.cfg.MinSlopePercent, h.cfg.MaxSlopePercent)
	h.queueCommand([]byte{cmdSetSlope, sign, magnitude, 0, 0, 0, 0, 0})
}

func (h *HeadUnit) sendWeight(kg float64) {
	h.queueCommand([]byte{cmdSetWeight, byte(math.Round(kg)), 0, 0, 0, 0, 0, 0})
}

func (h *HeadUnit) queueCommand(payload []byte) {
	h.queuer.QueueMessage(ant.Broadcast(h.cfg.Channel, payload), nil)
}

func (h *HeadUnit) sampleLocked() events.TelemetrySample {
	return events.TelemetrySample{
		Channel:    h.cfg.Channel,
		SpeedKmh:   h.speedKmh,
		PowerWatts: h.powerWatts,
		CadenceRpm: h.cadenceRpm,
		HeartRate:  h.heartRate,
		DistanceM:  h.distanceM,
		BrakeTempC: h.brakeTempC,
		At:         h.now(),
	}
}

// encodeSlope converts a grade percentage into the head unit wire form:
// tenths of a percent, negative values as 256+tenths in the magnitude byte
// with the sign byte set to 0xFF.
func encodeSlope(percent, minPercent, maxPercent float64) (sign byte, magnitude byte) {
	if percent < minPercent {
		percent = minPercent
	}
	if percent > maxPercent {
		percent = maxPercent
	}

	tenths := int(math.Round(percent * 10))
	if tenths < 0 {
		return 0xFF, byte(256 + tenths)
	}

	return 0x00, byte(tenths)
}
