// Package telemetry publishes the appliance's live snapshot and survey
// results over MQTT for fleet monitoring. Entirely optional; publish
// failures are logged and never affect the control loop.
package telemetry

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"surveypos/internal/engine"
	"surveypos/internal/ned"
)

type Config struct {
	Broker   string
	ClientID string
	// TopicPrefix defaults to "surveypos".
	TopicPrefix string
	// Interval rate-limits live-sample publishes (default 1s; the sampling
	// tick is much faster than a broker wants to see).
	Interval time.Duration
}

type Publisher struct {
	client mqtt.Client
	prefix string

	mu       sync.Mutex
	interval time.Duration
	lastPub  time.Time
	lastRuns int
}

func New(cfg Config) (*Publisher, error) {
	if strings.TrimSpace(cfg.Broker) == "" {
		return nil, fmt.Errorf("mqtt broker is required")
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "surveypos"
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "surveypos"
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	log.Printf("telemetry connected broker=%s prefix=%s", cfg.Broker, cfg.TopicPrefix)

	return &Publisher{
		client:   client,
		prefix:   cfg.TopicPrefix,
		interval: cfg.Interval,
	}, nil
}

type samplePayload struct {
	RelPos      ned.Vector `json:"rel_pos"`
	RelPosValid bool       `json:"rel_pos_valid"`
	FixType     string     `json:"fix_type"`
	Carrier     string     `json:"carrier_solution"`
	SatsUsed    int        `json:"sats_used"`
	LiveOffset  ned.Vector `json:"live_offset"`
	SurveyState string     `json:"survey_state"`
}

type surveyPayload struct {
	Runs             int         `json:"runs"`
	Samples          int         `json:"samples"`
	Average          *ned.Vector `json:"average"`
	OffsetFromTarget *ned.Vector `json:"offset_from_target"`
}

// PublishSample is wired as the engine's sample callback. Live samples are
// rate-limited; a completed survey run is published immediately.
func (p *Publisher) PublishSample(v engine.View) {
	p.mu.Lock()
	publishLive := p.lastPub.IsZero() || v.Fix.SampledAt.Sub(p.lastPub) >= p.interval
	if publishLive {
		p.lastPub = v.Fix.SampledAt
	}
	publishRun := v.Survey.Runs > p.lastRuns && v.Survey.State == "completed"
	if publishRun {
		p.lastRuns = v.Survey.Runs
	}
	p.mu.Unlock()

	if publishLive {
		p.publish("data", samplePayload{
			RelPos:      v.Fix.RelPos,
			RelPosValid: v.Fix.RelPosValid,
			FixType:     v.Fix.FixType.String(),
			Carrier:     v.Fix.Carrier.String(),
			SatsUsed:    v.Fix.Sats.UsedInNav,
			LiveOffset:  v.LiveOffset,
			SurveyState: v.Survey.State,
		})
	}
	if publishRun {
		p.publish("survey", surveyPayload{
			Runs:             v.Survey.Runs,
			Samples:          v.Survey.Samples,
			Average:          v.Survey.Average,
			OffsetFromTarget: v.Survey.OffsetFromTarget,
		})
	}
}

func (p *Publisher) publish(sub string, payload any) {
	b, err := json.Marshal(payload)
	if err != nil {
		log.Printf("telemetry marshal failed: %v", err)
		return
	}
	token := p.client.Publish(p.prefix+"/"+sub, 0, false, b)
	// Fire and forget: waiting would block the control loop's callback.
	go func() {
		if token.Wait() && token.Error() != nil {
			log.Printf("telemetry publish failed topic=%s/%s: %v", p.prefix, sub, token.Error())
		}
	}()
}

func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
