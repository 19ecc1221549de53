package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"surveypos/internal/config"
	"surveypos/internal/engine"
	"surveypos/internal/gnss"
	"surveypos/internal/netmon"
	"surveypos/internal/relay"
	"surveypos/internal/telemetry"
	"surveypos/internal/web"
	"surveypos/internal/wifi"
)

// alwaysUp stands in for the Wi-Fi link on wired installs: the supervisor
// then only looks after the relay.
type alwaysUp struct{}

func (alwaysUp) Up() bool         { return true }
func (alwaysUp) Reconnect() error { return nil }

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "./dev.yaml", "Path to YAML config")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// The receiver is the one thing this appliance cannot run without.
	rcv, err := gnss.OpenSerial(gnss.SerialConfig{
		Device: cfg.Receiver.Device,
		Baud:   cfg.Receiver.Baud,
	})
	if err != nil {
		log.Fatalf("receiver unavailable: %v", err)
	}
	defer func() { _ = rcv.Close() }()

	link, err := relay.New(relay.Config{
		Addr:        cfg.Relay.Addr,
		DialTimeout: cfg.Relay.DialTimeout,
		ReadTimeout: cfg.Relay.ReadTimeout,
		ChunkBytes:  cfg.Relay.ChunkBytes,
	})
	if err != nil {
		log.Fatalf("relay init failed: %v", err)
	}
	defer link.Close()

	var uplink netmon.WifiLink = alwaysUp{}
	var wifiClient *wifi.Client
	if cfg.WiFi.Enable {
		wifiClient = &wifi.Client{
			Interface:  cfg.WiFi.Interface,
			SSID:       cfg.WiFi.SSID,
			Passphrase: cfg.WiFi.Passphrase,
		}
		uplink = wifiClient
	}
	sup := netmon.New(uplink, link, cfg.WiFi.CheckInterval)

	eng := engine.New(rcv, link, sup, engine.Config{
		SampleInterval: cfg.Receiver.SampleInterval,
		SurveyDuration: cfg.Survey.Duration,
	})

	broadcaster := web.NewBroadcaster()

	var pub *telemetry.Publisher
	if cfg.MQTT.Enable {
		pub, err = telemetry.New(telemetry.Config{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			Interval:    cfg.MQTT.Interval,
		})
		if err != nil {
			// Telemetry is best-effort; the appliance works without it.
			log.Printf("telemetry init failed: %v", err)
		} else {
			defer pub.Close()
		}
	}

	eng.SetOnSample(func(v engine.View) {
		broadcaster.PublishView(v)
		if pub != nil {
			pub.PublishSample(v)
		}
	})

	st := web.StatusSources{Device: rcv.Device(), Relay: link.Snapshot}
	if wifiClient != nil {
		st.Wifi = wifiClient.GetStatus
	}

	go func() {
		err := web.Serve(ctx, cfg.HTTP.Listen, web.Handler(eng, broadcaster, st))
		if err != nil && ctx.Err() == nil {
			log.Printf("web server stopped: %v", err)
			cancel()
		}
	}()

	log.Printf("surveypos starting")
	log.Printf("receiver device=%s relay=%s listen=%s", rcv.Device(), cfg.Relay.Addr, cfg.HTTP.Listen)

	ticker := time.NewTicker(cfg.LoopInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Printf("surveypos stopping")
			return
		case <-ticker.C:
			eng.Pass(time.Now().UTC())
		}
	}
}
