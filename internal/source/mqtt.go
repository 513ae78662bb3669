package source

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	mqtt "github.com/eclipse/paho.mqtt.golang"

	"tilt_control/internal/logger"
	"tilt_control/internal/sample"
)

// MQTT defaults; the broker is the one the IoTtalk deployment exposes.
const (
	DefaultMQTTBroker  = "ssl://iot.iottalk.tw:8883"
	DefaultMQTTTimeout = 5 * time.Second
)

// newMQTTClient is replaced in tests.
var newMQTTClient = mqtt.NewClient

// MQTTConfig describes the broker subscription.
type MQTTConfig struct {
	Broker   string
	Topic    string
	ClientID string
	Username string
	Password string
	QoS      byte
	Timeout  time.Duration
	// RegisterRetry is the wait between connection attempts.
	RegisterRetry time.Duration

	Clock  clock.Clock
	Logger *logger.Logger
}

// MQTT keeps the newest payload published on a topic and hands it out once.
type MQTT struct {
	cfg    MQTTConfig
	client mqtt.Client
	clock  clock.Clock
	log    *logger.Logger

	mu     sync.Mutex
	latest []byte
	fresh  bool
}

// NewMQTT prepares a subscriber. Nothing is dialed until Register.
func NewMQTT(cfg MQTTConfig) (*MQTT, error) {
	if cfg.Topic == "" {
		return nil, fmt.Errorf("mqtt topic is required")
	}
	if cfg.Broker == "" {
		cfg.Broker = DefaultMQTTBroker
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "tilt-control"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultMQTTTimeout
	}
	if cfg.RegisterRetry <= 0 {
		cfg.RegisterRetry = DefaultRegisterRetry
	}

	m := &MQTT{cfg: cfg, clock: cfg.Clock, log: cfg.Logger}
	if m.clock == nil {
		m.clock = clock.New()
	}
	if m.log == nil {
		m.log = logger.Nop()
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetConnectTimeout(cfg.Timeout).
		SetAutoReconnect(true).
		SetOnConnectHandler(func(c mqtt.Client) {
			// re-subscribe after every (re)connect
			if err := m.subscribe(c); err != nil {
				m.log.Errorw("mqtt_subscribe_failed", "topic", cfg.Topic, "err", err)
			}
		}).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			m.log.Warnw("mqtt_connection_lost", "broker", cfg.Broker, "err", err)
		})
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username).SetPassword(cfg.Password)
	}
	m.client = newMQTTClient(opts)
	return m, nil
}

// Register connects to the broker, retrying until it succeeds or ctx ends.
// The subscription is made by the connect handler.
func (m *MQTT) Register(ctx context.Context) error {
	for attempt := 1; ; attempt++ {
		token := m.client.Connect()
		if token.WaitTimeout(m.cfg.Timeout) && token.Error() == nil {
			m.log.Infow("mqtt_connected", "broker", m.cfg.Broker, "topic", m.cfg.Topic)
			return nil
		}
		m.log.Warnw("mqtt_connect_failed", "attempt", attempt, "broker", m.cfg.Broker, "err", token.Error())

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.clock.After(m.cfg.RegisterRetry):
		}
	}
}

func (m *MQTT) subscribe(c mqtt.Client) error {
	token := c.Subscribe(m.cfg.Topic, m.cfg.QoS, m.onMessage)
	if !token.WaitTimeout(m.cfg.Timeout) {
		return fmt.Errorf("subscribe %s: timed out", m.cfg.Topic)
	}
	return token.Error()
}

func (m *MQTT) onMessage(_ mqtt.Client, msg mqtt.Message) {
	payload := append([]byte(nil), msg.Payload()...)
	m.mu.Lock()
	m.latest = payload
	m.fresh = true
	m.mu.Unlock()
}

// Fetch returns the newest payload received since the previous call, or no
// sample when nothing arrived.
func (m *MQTT) Fetch(ctx context.Context) (sample.Value, error) {
	if !m.client.IsConnectionOpen() {
		return sample.None(), fmt.Errorf("%w: mqtt not connected to %s", ErrTransport, m.cfg.Broker)
	}

	m.mu.Lock()
	payload, fresh := m.latest, m.fresh
	m.fresh = false
	m.mu.Unlock()
	if !fresh {
		return sample.None(), nil
	}
	return sample.DecodeJSON(payload)
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	if m.client.IsConnected() {
		m.client.Disconnect(250)
	}
	return nil
}
