package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/kilianp07/slotplan/infra/logger"
	"github.com/kilianp07/slotplan/pkg/export"
)

// ErrNotConnected is returned when publishing on a disconnected client.
var ErrNotConnected = errors.New("mqtt client not connected")

// Config defines the connection parameters for the Paho MQTT client.
type Config struct {
	Broker      string      `json:"broker" yaml:"broker" koanf:"broker"`
	ClientID    string      `json:"client_id" yaml:"client_id" koanf:"client_id"`
	Username    string      `json:"username" yaml:"username" koanf:"username"`
	Password    string      `json:"password" yaml:"password" koanf:"password"`
	TopicPrefix string      `json:"topic_prefix" yaml:"topic_prefix" koanf:"topic_prefix"`
	UseTLS      bool        `json:"use_tls" yaml:"use_tls" koanf:"use_tls"`
	ClientCert  string      `json:"client_cert" yaml:"client_cert" koanf:"client_cert"`
	ClientKey   string      `json:"client_key" yaml:"client_key" koanf:"client_key"`
	CABundle    string      `json:"ca_bundle" yaml:"ca_bundle" koanf:"ca_bundle"`
	AuthMethod  string      `json:"auth_method" yaml:"auth_method" koanf:"auth_method"`
	QoS         byte        `json:"qos" yaml:"qos" koanf:"qos"`
	Retain      bool        `json:"retain" yaml:"retain" koanf:"retain"`
	LWTTopic    string      `json:"lwt_topic" yaml:"lwt_topic" koanf:"lwt_topic"`
	LWTPayload  string      `json:"lwt_payload" yaml:"lwt_payload" koanf:"lwt_payload"`
	LWTQoS      byte        `json:"lwt_qos" yaml:"lwt_qos" koanf:"lwt_qos"`
	LWTRetain   bool        `json:"lwt_retain" yaml:"lwt_retain" koanf:"lwt_retain"`
	MaxRetries  int         `json:"max_retries" yaml:"max_retries" koanf:"max_retries"`
	BackoffMS   int         `json:"backoff_ms" yaml:"backoff_ms" koanf:"backoff_ms"`
	TLSConfig   *tls.Config `json:"-" yaml:"-" koanf:"-"`
}

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
}

// PahoPublisher publishes finished schedules and scheduler progress events
// using Eclipse Paho.
type PahoPublisher struct {
	cli        pahoClient
	prefix     string
	qos        byte
	retain     bool
	maxRetries int
	backoff    time.Duration
	logger     logger.Logger
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewPahoPublisher connects to the MQTT broker.
func NewPahoPublisher(cfg Config) (*PahoPublisher, error) {
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_publisher")
	p := &PahoPublisher{
		prefix:     strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:        cfg.QoS,
		retain:     cfg.Retain,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
		logger:     log,
	}
	if p.prefix == "" {
		p.prefix = "slotplan"
	}
	if p.maxRetries <= 0 {
		p.maxRetries = 3
	}
	if p.backoff <= 0 {
		p.backoff = 100 * time.Millisecond
	}

	opts.OnConnect = func(paho.Client) {
		log.Infof("MQTT connected")
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	p.cli = c
	return p, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt broker is required")
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "slotplan-" + uuid.NewString()[:8]
	}
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(clientID)
	opts.AutoReconnect = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	cfg := &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}
	return cfg, nil
}

// ScheduleTopic is the topic a scenario schedule is published on.
func (p *PahoPublisher) ScheduleTopic(project, scenario string) string {
	return fmt.Sprintf("%s/%s/%s/schedule", p.prefix, topicSegment(project), topicSegment(scenario))
}

// EventTopic is the topic progress events of a scenario are published on.
func (p *PahoPublisher) EventTopic(scenario string) string {
	return fmt.Sprintf("%s/events/%s", p.prefix, topicSegment(scenario))
}

// PublishSchedule publishes s wrapped in an envelope carrying a message id.
// The message is retained when the publisher is configured to.
func (p *PahoPublisher) PublishSchedule(ctx context.Context, s export.Schedule) error {
	payload, err := json.Marshal(scheduleMessage{MessageID: uuid.NewString(), Schedule: s})
	if err != nil {
		return err
	}
	return p.publish(ctx, p.ScheduleTopic(s.Project, s.Scenario), p.retain, payload)
}

func (p *PahoPublisher) publish(ctx context.Context, topic string, retain bool, payload []byte) error {
	if p.cli == nil || !p.cli.IsConnected() {
		return ErrNotConnected
	}
	var publishErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		token := p.cli.Publish(topic, p.qos, retain, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.logger.Debugf("published %d bytes to %s", len(payload), topic)
			return nil
		}
		p.logger.Errorf("publish attempt %d to %s failed: %v", attempt+1, topic, publishErr)
		if attempt == p.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff * time.Duration(1<<attempt)):
		}
	}
	return fmt.Errorf("publish to %s: %w", topic, publishErr)
}

// Disconnect gracefully closes the MQTT connection.
func (p *PahoPublisher) Disconnect() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}

type scheduleMessage struct {
	MessageID string          `json:"message_id"`
	Schedule  export.Schedule `json:"schedule"`
}

// topicSegment strips characters with a meaning in MQTT topic filters.
func topicSegment(s string) string {
	if s == "" {
		return "_"
	}
	return strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(s)
}
