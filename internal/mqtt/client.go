// Package mqtt bridges the lamp to an MQTT broker: commands arrive on
// <prefix>/set, status is retained on <prefix>/status and rendered frames
// may be mirrored to <prefix>/frame.
package mqtt

import (
	"context"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"
)

// Client is the subset of an MQTT client the bridge needs.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect()
	Subscribe(topic string, qos byte, handler MessageHandler) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	IsConnected() bool
}

// MessageHandler receives the topic and payload of an incoming message.
type MessageHandler func(topic string, payload []byte)

// Options configure the paho client.
type Options struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Timeout  time.Duration
	// Will is published retained by the broker if the lamp disappears.
	WillTopic   string
	WillPayload []byte
	// OnConnect runs in its own goroutine after every successful connect.
	OnConnect func()
}

type pahoClient struct {
	client  pahomqtt.Client
	broker  string
	timeout time.Duration
}

// NewClient creates a paho-backed client. It does not connect.
func NewClient(o Options) Client {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(o.Broker)
	opts.SetClientID(o.ClientID)
	if o.Username != "" {
		opts.SetUsername(o.Username)
	}
	if o.Password != "" {
		opts.SetPassword(o.Password)
	}
	if o.WillTopic != "" {
		opts.SetBinaryWill(o.WillTopic, o.WillPayload, 1, true)
	}

	// Connection settings
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)
	opts.SetOrderMatters(false)

	opts.OnConnect = func(c pahomqtt.Client) {
		log.Info().Str("broker", o.Broker).Msg("Connected to MQTT broker")
		if o.OnConnect != nil {
			go o.OnConnect()
		}
	}
	opts.OnConnectionLost = func(c pahomqtt.Client, err error) {
		log.Warn().Err(err).Msg("MQTT connection lost")
	}
	opts.OnReconnecting = func(c pahomqtt.Client, opts *pahomqtt.ClientOptions) {
		log.Info().Msg("MQTT reconnecting...")
	}

	timeout := o.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &pahoClient{
		client:  pahomqtt.NewClient(opts),
		broker:  o.Broker,
		timeout: timeout,
	}
}

// Connect establishes a connection to the MQTT broker
func (m *pahoClient) Connect(ctx context.Context) error {
	log.Info().Str("broker", m.broker).Msg("Connecting to MQTT broker")

	token := m.client.Connect()

	select {
	case <-token.Done():
		if token.Error() != nil {
			return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("connection timeout: %w", ctx.Err())
	}
}

// Disconnect closes the connection to the MQTT broker
func (m *pahoClient) Disconnect() {
	log.Info().Msg("Disconnecting from MQTT broker")
	m.client.Disconnect(250)
}

// Subscribe subscribes to a topic with the given QoS and handler
func (m *pahoClient) Subscribe(topic string, qos byte, handler MessageHandler) error {
	token := m.client.Subscribe(topic, qos, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("timed out subscribing to topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to subscribe to topic %s: %w", topic, token.Error())
	}

	log.Info().Str("topic", topic).Uint8("qos", qos).Msg("Subscribed to MQTT topic")
	return nil
}

// Publish publishes a message to a topic
func (m *pahoClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := m.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(m.timeout) {
		return fmt.Errorf("timed out publishing to topic %s", topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to topic %s: %w", topic, token.Error())
	}
	return nil
}

// IsConnected returns whether the client is currently connected
func (m *pahoClient) IsConnected() bool {
	return m.client.IsConnected()
}
