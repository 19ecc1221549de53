package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Receiver ReceiverConfig `yaml:"receiver"`
	Relay    RelayConfig    `yaml:"relay"`
	Survey   SurveyConfig   `yaml:"survey"`
	WiFi     WiFiConfig     `yaml:"wifi"`
	HTTP     HTTPConfig     `yaml:"http"`
	MQTT     MQTTConfig     `yaml:"mqtt"`

	// LoopInterval is the control-loop pass rate; the 100 ms sampling and
	// 5 s connectivity cadences are elapsed-time checks inside the pass.
	LoopInterval time.Duration `yaml:"loop_interval"`
}

type ReceiverConfig struct {
	// Device may be empty to auto-detect /dev/ttyACM* and /dev/ttyUSB*.
	Device         string        `yaml:"device"`
	Baud           int           `yaml:"baud"`
	SampleInterval time.Duration `yaml:"sample_interval"`
}

type RelayConfig struct {
	// Addr is the correction server, host:port.
	Addr        string        `yaml:"addr"`
	DialTimeout time.Duration `yaml:"dial_timeout"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
	ChunkBytes  int           `yaml:"chunk_bytes"`
}

type SurveyConfig struct {
	Duration time.Duration `yaml:"duration"`
}

type WiFiConfig struct {
	Enable        bool          `yaml:"enable"`
	Interface     string        `yaml:"interface"`
	SSID          string        `yaml:"ssid"`
	Passphrase    string        `yaml:"passphrase"`
	CheckInterval time.Duration `yaml:"check_interval"`
}

type HTTPConfig struct {
	Listen string `yaml:"listen"`
}

type MQTTConfig struct {
	Enable      bool          `yaml:"enable"`
	Broker      string        `yaml:"broker"`
	ClientID    string        `yaml:"client_id"`
	TopicPrefix string        `yaml:"topic_prefix"`
	Interval    time.Duration `yaml:"interval"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Config{}, err
	}

	if cfg.Relay.Addr == "" {
		return Config{}, fmt.Errorf("relay.addr is required")
	}
	if cfg.Relay.DialTimeout <= 0 {
		cfg.Relay.DialTimeout = 2 * time.Second
	}
	if cfg.Relay.ReadTimeout <= 0 {
		cfg.Relay.ReadTimeout = 5 * time.Millisecond
	}
	if cfg.Relay.ChunkBytes <= 0 {
		cfg.Relay.ChunkBytes = 512
	}

	if cfg.Receiver.Baud == 0 {
		cfg.Receiver.Baud = 38400
	}
	if cfg.Receiver.SampleInterval <= 0 {
		cfg.Receiver.SampleInterval = 100 * time.Millisecond
	}

	if cfg.Survey.Duration <= 0 {
		cfg.Survey.Duration = 60 * time.Second
	}

	if cfg.WiFi.Enable {
		if strings.TrimSpace(cfg.WiFi.SSID) == "" {
			return Config{}, fmt.Errorf("wifi.ssid is required when wifi.enable is true")
		}
	}
	if containsControlChars(cfg.WiFi.SSID) {
		return Config{}, fmt.Errorf("wifi.ssid must not contain control characters")
	}
	if containsControlChars(cfg.WiFi.Passphrase) {
		return Config{}, fmt.Errorf("wifi.passphrase must not contain control characters")
	}
	if cfg.WiFi.Interface == "" {
		cfg.WiFi.Interface = "wlan0"
	}
	if cfg.WiFi.CheckInterval <= 0 {
		cfg.WiFi.CheckInterval = 5 * time.Second
	}

	if cfg.HTTP.Listen == "" {
		cfg.HTTP.Listen = ":8080"
	}

	if cfg.MQTT.Enable {
		if strings.TrimSpace(cfg.MQTT.Broker) == "" {
			return Config{}, fmt.Errorf("mqtt.broker is required when mqtt.enable is true")
		}
	}
	if cfg.MQTT.Interval <= 0 {
		cfg.MQTT.Interval = 1 * time.Second
	}

	if cfg.LoopInterval <= 0 {
		cfg.LoopInterval = 20 * time.Millisecond
	}

	return cfg, nil
}

func containsControlChars(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}
