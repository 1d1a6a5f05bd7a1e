// antdump is a headless debug tool: it connects to the dongle, runs the
// channel setup handshake and logs decoded traffic until interrupted.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"antdrive/internal/ant"
	"antdrive/internal/bus"
	"antdrive/internal/config"
	"antdrive/internal/conn"
	"antdrive/internal/events"
	"antdrive/internal/logging"
	"antdrive/internal/simulator"
	"antdrive/internal/transport"
)

const maxHexPreviewLen = 64

func main() {
	if err := run(); err != nil {
		slog.Error("run antdump", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "antdrive.json", "config file path")
	port := flag.String("port", "", "serial port of the dongle")
	baud := flag.Int("baud", 0, "serial baud rate")
	level := flag.String("level", "", "log level override")
	listenFor := flag.Duration("listen-for", 0, "listen duration, e.g. 30s (0 = until interrupted)")
	sim := flag.Bool("sim", false, "talk to a simulated device instead of hardware")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if strings.TrimSpace(*port) != "" {
		cfg.Connection.SerialPort = strings.TrimSpace(*port)
	}
	if *baud > 0 {
		cfg.Connection.SerialBaud = *baud
	}
	if strings.TrimSpace(*level) != "" {
		cfg.Logging.Level = strings.TrimSpace(*level)
	}
	if !*sim {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("validate config: %w", err)
		}
	}

	logMgr := logging.NewManager()
	if err := logMgr.Configure(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		return fmt.Errorf("configure logging: %w", err)
	}
	defer func() {
		if closeErr := logMgr.Close(); closeErr != nil {
			slog.Warn("close log manager", "error", closeErr)
		}
	}()
	logger := logMgr.Logger("antdump")

	b := bus.New(logMgr.Logger("bus"))
	defer b.Close()

	var tr transport.Transport
	if *sim {
		loopback, endpoint := transport.NewLoopback()
		tr = loopback
		device := simulator.New(logMgr.Logger("simulator"), endpoint)
		go device.Run(ctx)
		go playTelemetry(ctx, device, cfg.HeadUnit.Channel)
	} else {
		tr = transport.NewSerialTransport(cfg.Connection.SerialPort, cfg.Connection.SerialBaud)
	}

	opts, err := cfg.ManagerOptions()
	if err != nil {
		return fmt.Errorf("manager options: %w", err)
	}

	handler := conn.HandlerFunc(func(msg ant.Decoded) { logMessage(logger, msg) })
	manager := conn.NewManager(logMgr.Logger("conn"), tr, b, opts, handler)

	rawSub := b.Subscribe(events.TopicRawFrameIn, events.TopicRawFrameOut)
	go logRawFrames(ctx, logger, rawSub)

	logger.Info("connecting", "transport", tr.Name())
	if err := manager.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	logger.Info("connected")

	if *listenFor > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(*listenFor):
		}
	} else {
		<-ctx.Done()
	}

	if err := manager.Disconnect(true); err != nil {
		logger.Warn("disconnect", "error", err)
	}

	return nil
}

func logMessage(logger *slog.Logger, msg ant.Decoded) {
	switch {
	case msg.Broadcast != nil:
		logger.Info("broadcast",
			"channel", msg.Broadcast.Channel,
			"payload", fmt.Sprintf("%X", msg.Broadcast.Payload),
			"extended", msg.Broadcast.IsExtended())
	case msg.ChannelEvent != nil:
		logger.Info("channel event",
			"channel", msg.ChannelEvent.Channel,
			"initiating_id", fmt.Sprintf("0x%02X", msg.ChannelEvent.InitiatingID),
			"code", fmt.Sprintf("0x%02X", msg.ChannelEvent.Code))
	case msg.ChannelStatus != nil:
		logger.Info("channel status",
			"channel", msg.ChannelStatus.Channel,
			"state", msg.ChannelStatus.State.String())
	case msg.Startup != nil:
		logger.Info("startup", "reason", fmt.Sprintf("0x%02X", msg.Startup.Reason))
	case msg.ChannelID != nil:
		logger.Info("channel id",
			"channel", msg.ChannelID.Channel,
			"device_number", msg.ChannelID.DeviceNumber,
			"device_type", msg.ChannelID.DeviceType)
	default:
		logger.Info("message", "id", fmt.Sprintf("0x%02X", msg.ID), "len", len(msg.Content))
	}
}

func logRawFrames(ctx context.Context, logger *slog.Logger, sub bus.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-sub:
			if !ok {
				return
			}
			frame, isFrame := raw.(events.RawFrame)
			if !isFrame {
				continue
			}
			preview := frame.Hex
			if len(preview) > maxHexPreviewLen {
				preview = preview[:maxHexPreviewLen] + "…"
			}
			logger.Debug("frame", "hex", preview, "len", frame.Len)
		}
	}
}

// playTelemetry feeds scripted trainer pages through the simulator so the
// dump shows live-looking traffic.
func playTelemetry(ctx context.Context, device *simulator.Device, channel uint8) {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	var tick uint16
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick++
			speed := 300 + tick%50 // 0.1 km/h units
			power := 180 + tick%20
			device.SendBroadcast(channel, []byte{
				0x01,
				byte(speed), byte(speed >> 8),
				byte(power), byte(power >> 8),
				90, 0, 0,
			})
		}
	}
}
