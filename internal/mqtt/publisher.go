// Package mqtt publishes newly created alerts to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/ngoprog/alertengine/internal/conf"
	"github.com/ngoprog/alertengine/internal/datastore/entities"
	"github.com/ngoprog/alertengine/internal/errors"
	"github.com/ngoprog/alertengine/internal/logger"
)

const (
	// QoS 1: alerts are delivered at least once.
	publishQoS        = 1
	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250 // milliseconds
)

// Message is the JSON payload published for each alert.
type Message struct {
	ID            uint      `json:"id"`
	RuleKey       string    `json:"rule_key"`
	Severity      string    `json:"severity"`
	Message       string    `json:"message"`
	State         string    `json:"state"`
	SubjectKey    string    `json:"subject_key"`
	ProgramID     *uint     `json:"program_id,omitempty"`
	ActivityID    *uint     `json:"activity_id,omitempty"`
	ParticipantID *uint     `json:"participant_id,omitempty"`
	CutoffDate    string    `json:"cutoff_date"`
	GeneratedAt   time.Time `json:"generated_at"`
}

// NewMessage builds the payload for alert.
func NewMessage(alert *entities.Alert) Message {
	return Message{
		ID:            alert.ID,
		RuleKey:       alert.RuleKey,
		Severity:      string(alert.Severity),
		Message:       alert.Message,
		State:         string(alert.State),
		SubjectKey:    alert.SubjectKey,
		ProgramID:     alert.ProgramID,
		ActivityID:    alert.ActivityID,
		ParticipantID: alert.ParticipantID,
		CutoffDate:    alert.CutoffDate.Format("2006-01-02"),
		GeneratedAt:   alert.GeneratedAt,
	}
}

// Topic returns the topic an alert is published on:
// <prefix>/alerts/<severity>, severity lower-cased.
func Topic(prefix string, severity entities.Severity) string {
	prefix = strings.TrimRight(prefix, "/")
	return fmt.Sprintf("%s/alerts/%s", prefix, strings.ToLower(string(severity)))
}

// Publisher is an alert notifier backed by a paho client.
type Publisher struct {
	cfg    conf.MQTTSettings
	client paho.Client
	log    logger.Logger

	mu        sync.Mutex
	connected bool
}

// NewPublisher creates a publisher for the configured broker. It does not
// connect; call Connect.
func NewPublisher(cfg conf.MQTTSettings, log logger.Logger) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, errors.Newf("mqtt broker is not configured").
			Component("mqtt").
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "alertengine"
	}
	p := &Publisher{cfg: cfg, log: log.Module("mqtt")}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetConnectTimeout(connectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetOnConnectHandler(func(paho.Client) {
		p.setConnected(true)
		p.log.Info("connected to mqtt broker", logger.String("broker", cfg.Broker))
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		p.setConnected(false)
		p.log.Warn("lost connection to mqtt broker", logger.Error(err))
	})
	p.client = paho.NewClient(opts)
	return p, nil
}

// newPublisherWithClient wires an existing client, for tests.
func newPublisherWithClient(cfg conf.MQTTSettings, client paho.Client, log logger.Logger) *Publisher {
	return &Publisher{cfg: cfg, client: client, log: log.Module("mqtt")}
}

// Connect dials the broker and waits until connected or ctx ends.
func (p *Publisher) Connect(ctx context.Context) error {
	if err := wait(ctx, p.client.Connect()); err != nil {
		return errors.Newf("failed to connect to mqtt broker: %w", err).
			Component("mqtt").
			Category(errors.CategoryTransientIO).
			Context("broker", p.cfg.Broker).
			Build()
	}
	p.setConnected(true)
	return nil
}

// Disconnect closes the broker connection.
func (p *Publisher) Disconnect() {
	p.client.Disconnect(disconnectQuiesce)
	p.setConnected(false)
}

// IsConnected reports whether the client currently holds a connection.
func (p *Publisher) IsConnected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connected && p.client.IsConnectionOpen()
}

func (p *Publisher) setConnected(v bool) {
	p.mu.Lock()
	p.connected = v
	p.mu.Unlock()
}

// Name implements alerting.Notifier.
func (p *Publisher) Name() string { return "mqtt" }

// Notify publishes alert as JSON on its severity topic.
func (p *Publisher) Notify(ctx context.Context, alert *entities.Alert) error {
	if !p.IsConnected() {
		return errors.Newf("mqtt client is not connected").
			Component("mqtt").
			Category(errors.CategoryTransientIO).
			Build()
	}
	payload, err := json.Marshal(NewMessage(alert))
	if err != nil {
		return fmt.Errorf("failed to encode alert %d: %w", alert.ID, err)
	}
	topic := Topic(p.cfg.TopicPrefix, alert.Severity)
	if err := wait(ctx, p.client.Publish(topic, publishQoS, false, payload)); err != nil {
		return errors.Newf("failed to publish alert: %w", err).
			Component("mqtt").
			Category(errors.CategoryTransientIO).
			Context("topic", topic).
			Build()
	}
	p.log.Debug("published alert", logger.String("topic", topic), logger.Uint64("alert_id", uint64(alert.ID)))
	return nil
}

// wait blocks until token completes or ctx ends.
func wait(ctx context.Context, token paho.Token) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
