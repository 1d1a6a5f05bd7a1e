package conn

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"antdrive/internal/ant"
	"antdrive/internal/bus"
	"antdrive/internal/events"
	"antdrive/internal/transport"
)

const (
	defaultRetryInterval      = 1000 * time.Millisecond
	defaultSettleDelay        = 500 * time.Millisecond
	defaultStatusPollInterval = 250 * time.Millisecond

	// Pause between receive attempts after a transport error, so a broken
	// link does not spin the cycle.
	receiveRetryDelay = 100 * time.Millisecond
)

var (
	// ErrNotConnected is returned by Disconnect when no connection is up.
	ErrNotConnected = errors.New("conn: not connected")
	// ErrAlreadyConnected is returned by Connect on a live connection.
	ErrAlreadyConnected = errors.New("conn: already connected")
)

// Handler receives every inbound message for device-specific interpretation,
// regardless of whether the message also completed a pending entry.
type Handler interface {
	ProcessMessage(msg ant.Decoded)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(msg ant.Decoded)

func (f HandlerFunc) ProcessMessage(msg ant.Decoded) {
	f(msg)
}

// Options configures a Manager. Networks and Channels are applied during the
// handshake in the order given and are immutable afterwards.
type Options struct {
	Networks []NetworkConfig
	Channels []ChannelConfig

	// SkipReset skips the device reset and settle delay at connect time.
	SkipReset bool

	RetryInterval      time.Duration
	SettleDelay        time.Duration
	StatusPollInterval time.Duration
}

type state int

const (
	stateDisconnected state = iota
	stateConnecting
	stateConnected
)

type queuedMessage struct {
	msg  ant.Message
	done func()
}

type pendingMessage struct {
	msg    ant.Message
	sentAt time.Time
	done   func()
	timer  *time.Timer
}

// Manager owns the dongle configuration, runs the channel setup handshake and
// the steady-state send/receive cycle, and keeps the outbound queue and the
// pending-acknowledgment table. All radio traffic for every channel flows
// through one Manager over one transport.
type Manager struct {
	logger    *slog.Logger
	transport transport.Transport
	bus       bus.MessageBus
	handler   Handler
	opts      Options

	mu        sync.Mutex
	state     state
	queue     []queuedMessage
	pending   []*pendingMessage
	runCtx    context.Context
	cancelRun context.CancelFunc
}

func NewManager(logger *slog.Logger, tr transport.Transport, b bus.MessageBus, opts Options, handler Handler) *Manager {
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultRetryInterval
	}
	if opts.SettleDelay <= 0 {
		opts.SettleDelay = defaultSettleDelay
	}
	if opts.StatusPollInterval <= 0 {
		opts.StatusPollInterval = defaultStatusPollInterval
	}

	return &Manager{
		logger:    logger,
		transport: tr,
		bus:       b,
		handler:   handler,
		opts:      opts,
	}
}

// SetHandler installs the device-specific message hook. Device drivers queue
// messages through the Manager, so the two reference each other; install the
// handler after constructing both and before Connect.
func (m *Manager) SetHandler(handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

func (m *Manager) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state == stateConnected
}

// Connect opens the transport if needed and runs the setup handshake. The
// channel state on the device is order-dependent: every step is sent, and its
// acknowledgment awaited, before the next one goes out. On success the
// steady-state cycle starts in the background.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state != stateDisconnected {
		m.mu.Unlock()

		return ErrAlreadyConnected
	}
	m.state = stateConnecting
	m.runCtx, m.cancelRun = context.WithCancel(context.Background())
	runCtx := m.runCtx
	m.mu.Unlock()

	m.publishStatus(events.ConnectionStateConnecting, nil)

	if !m.transport.IsOpen() {
		if err := m.transport.Open(ctx); err != nil {
			m.abortConnect(err)

			return fmt.Errorf("open transport: %w", err)
		}
	}

	if err := m.handshake(ctx); err != nil {
		m.abortConnect(err)

		return fmt.Errorf("handshake: %w", err)
	}

	m.mu.Lock()
	m.state = stateConnected
	m.mu.Unlock()
	m.publishStatus(events.ConnectionStateConnected, nil)

	go m.runCycle(runCtx)

	return nil
}

// Disconnect stops the cycle and discards the outbound queue. In-flight
// pending entries are dropped without firing their callbacks. Transport
// close failures during teardown are logged, not escalated.
func (m *Manager) Disconnect(closeTransport bool) error {
	m.mu.Lock()
	if m.state != stateConnected {
		m.mu.Unlock()

		return ErrNotConnected
	}
	m.state = stateDisconnected
	cancel := m.cancelRun
	m.discardOutstandingLocked()
	m.mu.Unlock()

	cancel()

	if closeTransport {
		if err := m.transport.Close(); err != nil {
			m.logger.Warn("close transport on disconnect", "error", err)
		}
	}
	m.publishStatus(events.ConnectionStateDisconnected, nil)

	return nil
}

// QueueMessage appends a message to the outbound FIFO. The cycle drains one
// entry per iteration, so configuration-style messages go out in order with
// at most one of them unacknowledged at a time. done fires when the message
// completes (immediately after send for fire-and-forget messages).
func (m *Manager) QueueMessage(msg ant.Message, done func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, queuedMessage{msg: msg, done: done})
}

func (m *Manager) handshake(ctx context.Context) error {
	if !m.opts.SkipReset {
		if err := m.sendAndWait(ctx, ant.Reset()); err != nil {
			return fmt.Errorf("reset device: %w", err)
		}
		// the dongle drops frames while it reboots
		if !sleepWithContext(ctx, m.opts.SettleDelay) {
			return ctx.Err()
		}
	}

	for _, network := range m.opts.Networks {
		if err := m.sendAndWait(ctx, ant.SetNetworkKey(network.Number, network.Key)); err != nil {
			return fmt.Errorf("set network key %d: %w", network.Number, err)
		}
	}

	for _, channel := range m.opts.Channels {
		if err := m.setupChannel(ctx, channel); err != nil {
			return fmt.Errorf("set up channel %d: %w", channel.Number, err)
		}
	}

	return nil
}

func (m *Manager) setupChannel(ctx context.Context, ch ChannelConfig) error {
	assign := ant.AssignChannel(ch.Number, ch.Type, ch.Network)
	if ch.ExtendedAssignment != nil {
		assign = ant.AssignChannelExtended(ch.Number, ch.Type, ch.Network, *ch.ExtendedAssignment)
	}

	steps := []ant.Message{
		assign,
		ant.SetChannelID(ch.Number, ch.DeviceNumber, ch.DeviceType, ch.TransmissionType),
		ant.SetChannelRFFrequency(ch.Number, ch.RFFrequency),
		ant.SetChannelPeriod(ch.Number, ch.Period),
	}
	if ch.SearchTimeout != nil {
		steps = append(steps, ant.SetSearchTimeout(ch.Number, *ch.SearchTimeout))
	}
	if ch.LowPrioritySearchTimeout != nil {
		steps = append(steps, ant.SetLowPrioritySearchTimeout(ch.Number, *ch.LowPrioritySearchTimeout))
	}
	if ch.ScanMode {
		steps = append(steps, ant.OpenRxScanMode())
	} else {
		steps = append(steps, ant.OpenChannel(ch.Number))
	}

	for _, msg := range steps {
		if err := m.sendAndWait(ctx, msg); err != nil {
			return fmt.Errorf("message 0x%02X: %w", msg.ID, err)
		}
	}

	if ch.WaitUntilTracking && !ch.ScanMode {
		if err := m.waitUntilTracking(ctx, ch.Number); err != nil {
			return err
		}
	}

	return nil
}

func (m *Manager) waitUntilTracking(ctx context.Context, channel uint8) error {
	for {
		var chState ant.ChannelState
		req := ant.RequestChannelStatus(channel, func(s ant.ChannelState) { chState = s })
		if err := m.sendAndWait(ctx, req); err != nil {
			return fmt.Errorf("poll channel status: %w", err)
		}
		if chState == ant.ChannelStateTracking {
			return nil
		}
		m.logger.Debug("waiting for tracking", "channel", channel, "state", chState.String())
		if !sleepWithContext(ctx, m.opts.StatusPollInterval) {
			return ctx.Err()
		}
	}
}

// sendAndWait transmits one reply-requiring message and drives the receive
// path inline until its acknowledgment arrives. Only used by the handshake;
// the steady-state cycle waits through the pending table instead.
func (m *Manager) sendAndWait(ctx context.Context, msg ant.Message) error {
	done := make(chan struct{}, 1)
	if err := m.sendMessage(ctx, msg, func() { done <- struct{}{} }); err != nil {
		return err
	}

	for {
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := m.receiveOnce(ctx); err != nil {
			if errors.Is(err, ant.ErrChecksumMismatch) {
				m.logger.Warn("dropping corrupt frame during handshake")

				continue
			}

			return err
		}
	}
}

// sendMessage is the reliable-send primitive. Reply-requiring messages are
// registered in the pending table before the first transmission and
// retransmitted on the retry interval until the matching acknowledgment
// arrives; everything else completes as soon as the frame is written.
func (m *Manager) sendMessage(ctx context.Context, msg ant.Message, done func()) error {
	if !msg.AwaitsReply {
		if err := m.transportSend(ctx, msg); err != nil {
			return err
		}
		if done != nil {
			done()
		}

		return nil
	}

	p := &pendingMessage{msg: msg, sentAt: time.Now(), done: done}
	m.mu.Lock()
	m.pending = append(m.pending, p)
	m.mu.Unlock()

	if err := m.transportSend(ctx, msg); err != nil {
		m.mu.Lock()
		m.removePendingLocked(p)
		m.mu.Unlock()

		return err
	}

	m.mu.Lock()
	if m.containsPendingLocked(p) {
		p.timer = time.AfterFunc(m.opts.RetryInterval, func() { m.retransmit(p) })
	}
	m.mu.Unlock()

	return nil
}

// retransmit resends the identical frame for a still-outstanding pending
// entry. Frames vanish on the radio link; the device treats a repeated
// configuration command as idempotent.
func (m *Manager) retransmit(p *pendingMessage) {
	m.mu.Lock()
	active := m.containsPendingLocked(p) && m.state != stateDisconnected
	ctx := m.runCtx
	m.mu.Unlock()
	if !active {
		return
	}

	m.logger.Debug("retransmitting", "id", fmt.Sprintf("0x%02X", p.msg.ID), "age", time.Since(p.sentAt).String())
	if err := m.transportSend(ctx, p.msg); err != nil {
		m.logger.Warn("retransmit failed", "id", fmt.Sprintf("0x%02X", p.msg.ID), "error", err)
	}

	m.mu.Lock()
	if m.containsPendingLocked(p) && m.state != stateDisconnected {
		p.timer.Reset(m.opts.RetryInterval)
	}
	m.mu.Unlock()
}

// receiveOnce reads one message, tries to complete the oldest pending entry
// with it, and hands it to the device handler either way. Acknowledgments
// never match past the head of the pending table: a reply for a later
// message cannot skip an earlier outstanding one.
func (m *Manager) receiveOnce(ctx context.Context) error {
	msg, err := m.transport.ReceiveMessage(ctx)
	if err != nil {
		return err
	}

	m.publishRaw(events.TopicRawFrameIn, msg.ID, msg.Content)
	if msg.Opaque {
		m.logger.Info("unknown message id", "id", fmt.Sprintf("0x%02X", msg.ID), "len", len(msg.Content))
	}

	m.mu.Lock()
	handler := m.handler
	var completed *pendingMessage
	if len(m.pending) > 0 && m.pending[0].msg.Matches(msg) {
		completed = m.pending[0]
		m.pending = m.pending[1:]
		if completed.timer != nil {
			completed.timer.Stop()
		}
	}
	m.mu.Unlock()

	if completed != nil {
		if completed.msg.OnReply != nil {
			completed.msg.OnReply(msg)
		}
		if completed.done != nil {
			completed.done()
		}
	}

	if handler != nil {
		handler.ProcessMessage(msg)
	}

	return nil
}

// runCycle is the steady-state loop: at most one send, then exactly one
// receive, cooperatively until disconnect. Receive failures after the
// connected flag clears are suppressed; the transport is being torn down.
func (m *Manager) runCycle(ctx context.Context) {
	for {
		if ctx.Err() != nil || !m.IsConnected() {
			return
		}

		if next, ok := m.dequeue(); ok {
			if err := m.sendMessage(ctx, next.msg, next.done); err != nil {
				if !m.IsConnected() {
					return
				}
				m.logger.Error("send failed", "id", fmt.Sprintf("0x%02X", next.msg.ID), "error", err)
			}
		}

		if err := m.receiveOnce(ctx); err != nil {
			if ctx.Err() != nil || !m.IsConnected() {
				return
			}
			if errors.Is(err, ant.ErrChecksumMismatch) {
				m.logger.Warn("dropping corrupt frame")

				continue
			}
			m.logger.Error("receive failed", "error", err)
			if !sleepWithContext(ctx, receiveRetryDelay) {
				return
			}
		}
	}
}

func (m *Manager) dequeue() (queuedMessage, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.queue) == 0 {
		return queuedMessage{}, false
	}
	next := m.queue[0]
	m.queue = m.queue[1:]

	return next, true
}

func (m *Manager) transportSend(ctx context.Context, msg ant.Message) error {
	if err := m.transport.SendMessage(ctx, msg); err != nil {
		return err
	}
	m.publishRaw(events.TopicRawFrameOut, msg.ID, msg.Content)

	return nil
}

func (m *Manager) abortConnect(cause error) {
	m.mu.Lock()
	m.state = stateDisconnected
	cancel := m.cancelRun
	m.discardOutstandingLocked()
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	m.publishStatus(events.ConnectionStateDisconnected, cause)
}

func (m *Manager) discardOutstandingLocked() {
	for _, p := range m.pending {
		if p.timer != nil {
			p.timer.Stop()
		}
	}
	m.pending = nil
	m.queue = nil
}

func (m *Manager) containsPendingLocked(p *pendingMessage) bool {
	for _, candidate := range m.pending {
		if candidate == p {
			return true
		}
	}

	return false
}

func (m *Manager) removePendingLocked(p *pendingMessage) {
	for i, candidate := range m.pending {
		if candidate == p {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)

			return
		}
	}
}

func (m *Manager) publishStatus(connState events.ConnectionState, cause error) {
	if m.bus == nil {
		return
	}
	status := events.ConnectionStatus{
		State:         connState,
		TransportName: m.transport.Name(),
		Timestamp:     time.Now(),
	}
	if cause != nil {
		status.Err = cause.Error()
	}
	m.bus.Publish(events.TopicConnStatus, status)
}

func (m *Manager) publishRaw(topic string, id byte, content []byte) {
	if m.bus == nil {
		return
	}
	frame, err := ant.EncodeFrame(id, content)
	if err != nil {
		return
	}
	m.bus.Publish(topic, events.RawFrame{Hex: strings.ToUpper(hex.EncodeToString(frame)), Len: len(frame)})
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
