package config

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"antdrive/internal/ant"
	"antdrive/internal/conn"
)

const (
	DefaultSerialBaud = 115200

	// Public ANT+ network key, valid for any ANT+ profile device.
	DefaultNetworkKey = "B9A521FBBD72C345"

	defaultRFFrequency = 57   // 2457 MHz
	defaultPeriod      = 8192 // 4 Hz
)

// ConnectionConfig selects and tunes the dongle link.
type ConnectionConfig struct {
	SerialPort string `json:"serial_port"`
	SerialBaud int    `json:"serial_baud"`
	SkipReset  bool   `json:"skip_reset"`
}

// LoggingConfig defines runtime logging behavior.
type LoggingConfig struct {
	Level   string `json:"level"`
	LogFile string `json:"log_file"`
}

// NetworkConfig is one network slot and its key as a 16-digit hex string.
type NetworkConfig struct {
	Number uint8  `json:"number"`
	Key    string `json:"key"`
}

// ChannelConfig describes one channel of the setup handshake.
type ChannelConfig struct {
	Number            uint8  `json:"number"`
	Type              string `json:"type"`
	DeviceNumber      uint16 `json:"device_number"`
	DeviceType        uint8  `json:"device_type"`
	TransmissionType  uint8  `json:"transmission_type"`
	RFFrequency       uint8  `json:"rf_frequency"`
	Period            uint16 `json:"period"`
	Network           uint8  `json:"network"`
	ScanMode          bool   `json:"scan_mode"`
	SearchTimeout     *uint8 `json:"search_timeout,omitempty"`
	LowPrioritySearch *uint8 `json:"low_priority_search_timeout,omitempty"`
	WaitUntilTracking bool   `json:"wait_until_tracking"`
}

// HeadUnitConfig tunes the trainer head unit driver.
type HeadUnitConfig struct {
	Channel         uint8   `json:"channel"`
	MinSlopePercent float64 `json:"min_slope_percent"`
	MaxSlopePercent float64 `json:"max_slope_percent"`
	RiderWeightKg   float64 `json:"rider_weight_kg"`
}

// RideConfig controls session recording.
type RideConfig struct {
	Record bool   `json:"record"`
	DBFile string `json:"db_file"`
}

// AppConfig is the root persisted configuration.
type AppConfig struct {
	Connection ConnectionConfig `json:"connection"`
	Logging    LoggingConfig    `json:"logging"`
	Networks   []NetworkConfig  `json:"networks"`
	Channels   []ChannelConfig  `json:"channels"`
	HeadUnit   HeadUnitConfig   `json:"head_unit"`
	Ride       RideConfig       `json:"ride"`
}

func Default() AppConfig {
	return AppConfig{
		Connection: ConnectionConfig{
			SerialPort: "",
			SerialBaud: DefaultSerialBaud,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Networks: []NetworkConfig{
			{Number: 0, Key: DefaultNetworkKey},
		},
		Channels: []ChannelConfig{
			{
				Number:      0,
				Type:        "slave",
				RFFrequency: defaultRFFrequency,
				Period:      defaultPeriod,
				Network:     0,
			},
		},
		HeadUnit: HeadUnitConfig{
			Channel:         0,
			MinSlopePercent: -5.0,
			MaxSlopePercent: 20.0,
			RiderWeightKg:   75,
		},
		Ride: RideConfig{
			Record: false,
			DBFile: "",
		},
	}
}

func Load(path string) (AppConfig, error) {
	cfg := Default()
	cleanPath := filepath.Clean(path)
	// #nosec G304 -- path comes from the user's own flags.
	raw, err := os.ReadFile(cleanPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}

		return AppConfig{}, fmt.Errorf("read config: %w", err)
	}

	if err := json.Unmarshal(raw, &cfg); err != nil {
		return AppConfig{}, fmt.Errorf("decode config json: %w", err)
	}

	cfg.FillMissingDefaults()

	return cfg, nil
}

func (c *AppConfig) FillMissingDefaults() {
	if c.Connection.SerialBaud <= 0 {
		c.Connection.SerialBaud = DefaultSerialBaud
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if len(c.Networks) == 0 {
		c.Networks = Default().Networks
	}
	for i := range c.Channels {
		if c.Channels[i].Type == "" {
			c.Channels[i].Type = "slave"
		}
		if c.Channels[i].RFFrequency == 0 {
			c.Channels[i].RFFrequency = defaultRFFrequency
		}
		if c.Channels[i].Period == 0 {
			c.Channels[i].Period = defaultPeriod
		}
	}
	if c.HeadUnit.MinSlopePercent == 0 && c.HeadUnit.MaxSlopePercent == 0 {
		def := Default().HeadUnit
		c.HeadUnit.MinSlopePercent = def.MinSlopePercent
		c.HeadUnit.MaxSlopePercent = def.MaxSlopePercent
	}
	if c.HeadUnit.RiderWeightKg <= 0 {
		c.HeadUnit.RiderWeightKg = Default().HeadUnit.RiderWeightKg
	}
}

func (c AppConfig) Validate() error {
	if strings.TrimSpace(c.Connection.SerialPort) == "" {
		return errors.New("serial port is required")
	}
	if c.Connection.SerialBaud <= 0 {
		return errors.New("serial baud must be positive")
	}
	for _, network := range c.Networks {
		if _, err := network.ParsedKey(); err != nil {
			return err
		}
	}
	if len(c.Channels) == 0 {
		return errors.New("at least one channel is required")
	}
	for _, channel := range c.Channels {
		if _, err := parseChannelType(channel.Type); err != nil {
			return err
		}
	}
	if c.HeadUnit.MinSlopePercent >= c.HeadUnit.MaxSlopePercent {
		return errors.New("head unit slope range is empty")
	}

	return nil
}

// ParsedKey decodes the hex network key into its 8-byte wire form.
func (n NetworkConfig) ParsedKey() ([8]byte, error) {
	var key [8]byte
	raw, err := hex.DecodeString(strings.TrimSpace(n.Key))
	if err != nil {
		return key, fmt.Errorf("network %d key is not hex: %w", n.Number, err)
	}
	if len(raw) != len(key) {
		return key, fmt.Errorf("network %d key must be 8 bytes, got %d", n.Number, len(raw))
	}
	copy(key[:], raw)

	return key, nil
}

func parseChannelType(raw string) (ant.ChannelType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "slave", "":
		return ant.ChannelTypeSlave, nil
	case "master":
		return ant.ChannelTypeMaster, nil
	case "shared_slave":
		return ant.ChannelTypeSharedSlave, nil
	case "shared_master":
		return ant.ChannelTypeSharedMaster, nil
	case "slave_rx_only":
		return ant.ChannelTypeSlaveRxOnly, nil
	case "master_tx_only":
		return ant.ChannelTypeMasterTxOnly, nil
	default:
		return 0, fmt.Errorf("unknown channel type: %q", raw)
	}
}

// ManagerOptions converts the file config into connection manager options.
func (c AppConfig) ManagerOptions() (conn.Options, error) {
	opts := conn.Options{SkipReset: c.Connection.SkipReset}

	for _, network := range c.Networks {
		key, err := network.ParsedKey()
		if err != nil {
			return conn.Options{}, err
		}
		opts.Networks = append(opts.Networks, conn.NetworkConfig{Number: network.Number, Key: key})
	}

	for _, channel := range c.Channels {
		channelType, err := parseChannelType(channel.Type)
		if err != nil {
			return conn.Options{}, err
		}
		opts.Channels = append(opts.Channels, conn.ChannelConfig{
			Number:                   channel.Number,
			Type:                     channelType,
			DeviceNumber:             channel.DeviceNumber,
			DeviceType:               channel.DeviceType,
			TransmissionType:         channel.TransmissionType,
			RFFrequency:              channel.RFFrequency,
			Period:                   channel.Period,
			Network:                  channel.Network,
			ScanMode:                 channel.ScanMode,
			SearchTimeout:            channel.SearchTimeout,
			LowPrioritySearchTimeout: channel.LowPrioritySearch,
			WaitUntilTracking:        channel.WaitUntilTracking,
		})
	}

	return opts, nil
}
