// ride connects to a trainer head unit, holds the requested slope and rider
// weight, records the session and raises desktop notifications for ride
// events.
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

	"antdrive/internal/bus"
	"antdrive/internal/config"
	"antdrive/internal/conn"
	"antdrive/internal/headunit"
	"antdrive/internal/logging"
	"antdrive/internal/notify"
	"antdrive/internal/ride"
	"antdrive/internal/transport"
)

func main() {
	if err := run(); err != nil {
		slog.Error("run ride", "error", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "antdrive.json", "config file path")
	port := flag.String("port", "", "serial port of the dongle")
	slope := flag.Float64("slope", 0, "initial slope percentage")
	weight := flag.Float64("weight", 0, "rider weight in kg (overrides config)")
	dbFile := flag.String("db", "", "record the session into this sqlite file")
	notifications := flag.Bool("notify", true, "desktop notifications for ride events")
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
	if *weight > 0 {
		cfg.HeadUnit.RiderWeightKg = *weight
	}
	if strings.TrimSpace(*dbFile) != "" {
		cfg.Ride.Record = true
		cfg.Ride.DBFile = strings.TrimSpace(*dbFile)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
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
	logger := logMgr.Logger("ride")

	b := bus.New(logMgr.Logger("bus"))
	defer b.Close()

	tr := transport.NewSerialTransport(cfg.Connection.SerialPort, cfg.Connection.SerialBaud)
	opts, err := cfg.ManagerOptions()
	if err != nil {
		return fmt.Errorf("manager options: %w", err)
	}

	unitCfg := headunit.Config{
		Channel:         cfg.HeadUnit.Channel,
		MinSlopePercent: cfg.HeadUnit.MinSlopePercent,
		MaxSlopePercent: cfg.HeadUnit.MaxSlopePercent,
		RiderWeightKg:   cfg.HeadUnit.RiderWeightKg,
	}

	manager := conn.NewManager(logMgr.Logger("conn"), tr, b, opts, nil)
	head := headunit.New(logMgr.Logger("headunit"), b, manager, unitCfg)
	manager.SetHandler(head)

	if *notifications {
		sender := notify.NewBeeepSender("antdrive")
		notify.NewService(logMgr.Logger("notify"), b, sender).Start(ctx)
	}

	var repo *ride.Repo
	var recorder *ride.Recorder
	if cfg.Ride.Record {
		db, err := ride.Open(ctx, cfg.Ride.DBFile)
		if err != nil {
			return fmt.Errorf("open ride db: %w", err)
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				logger.Warn("close ride db", "error", closeErr)
			}
		}()
		repo = ride.NewRepo(db)
		writer := ride.NewWriterQueue(logMgr.Logger("ride"), 256)
		writer.Start(ctx)
		recorder = ride.NewRecorder(logMgr.Logger("ride"), b, repo, writer)
		if err := recorder.Start(ctx); err != nil {
			return fmt.Errorf("start recorder: %w", err)
		}
	}

	logger.Info("connecting", "port", cfg.Connection.SerialPort)
	if err := manager.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	logger.Info("connected", "slope", *slope, "weight_kg", unitCfg.RiderWeightKg)

	head.SetSlope(*slope)
	head.SetRiderWeight(unitCfg.RiderWeightKg)

	<-ctx.Done()

	if err := manager.Disconnect(true); err != nil {
		logger.Warn("disconnect", "error", err)
	}

	if recorder != nil {
		statsCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		stats, err := repo.Stats(statsCtx, recorder.SessionID())
		if err != nil {
			logger.Warn("session stats", "error", err)
		} else {
			logger.Info("session recorded",
				"session_id", recorder.SessionID(),
				"samples", stats.Samples,
				"max_speed_kmh", stats.MaxSpeedKmh,
				"avg_power", stats.AvgPower,
				"distance_m", stats.DistanceM)
		}
	}

	return nil
}
