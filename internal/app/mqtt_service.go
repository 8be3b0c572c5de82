package app

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunlamp/internal/config"
	"github.com/dokzlo13/sunlamp/internal/eventbus"
	"github.com/dokzlo13/sunlamp/internal/mqtt"
)

// MQTTService wraps the MQTT client and bridge.
type MQTTService struct {
	cfg    *config.Config
	Client mqtt.Client
	Bridge *mqtt.Bridge
}

// NewMQTTService creates the client; Attach wires the bridge once the
// controller exists.
func NewMQTTService(cfg *config.Config) *MQTTService {
	s := &MQTTService{cfg: cfg}
	prefix := cfg.MQTT.Prefix

	s.Client = mqtt.NewClient(mqtt.Options{
		Broker:      cfg.MQTT.Broker,
		ClientID:    cfg.MQTT.ClientID,
		Username:    cfg.MQTT.Username,
		Password:    cfg.MQTT.Password,
		Timeout:     cfg.MQTT.Timeout.Duration(),
		WillTopic:   prefix + "/" + mqtt.TopicOnline,
		WillPayload: []byte("false"),
		OnConnect:   s.onConnect,
	})
	return s
}

// FrameSink mirrors strip frames to the broker.
func (s *MQTTService) FrameSink() *mqtt.FrameSink {
	return mqtt.NewFrameSink(s.Client, s.cfg.MQTT.Prefix+"/"+mqtt.TopicFrame)
}

// Attach creates the bridge driving ctrl.
func (s *MQTTService) Attach(ctrl mqtt.Controller) {
	s.Bridge = mqtt.NewBridge(s.Client, ctrl, s.cfg.MQTT.Prefix, s.cfg.MQTT.QoS)
}

func (s *MQTTService) onConnect() {
	if s.Bridge == nil {
		return
	}
	if err := s.Bridge.OnConnect(); err != nil {
		log.Error().Err(err).Msg("Failed to set up MQTT bridge")
	}
}

// Start connects to the broker. If the first attempt does not finish within
// the timeout the client keeps retrying in the background.
func (s *MQTTService) Start(ctx context.Context, bus *eventbus.Bus) {
	s.Bridge.Start(bus)

	connectCtx, cancel := context.WithTimeout(ctx, s.cfg.MQTT.Timeout.Duration())
	defer cancel()
	if err := s.Client.Connect(connectCtx); err != nil {
		log.Warn().Err(err).Str("broker", s.cfg.MQTT.Broker).Msg("MQTT broker not reachable yet, retrying in background")
	}
}

// Close marks the lamp offline and disconnects.
func (s *MQTTService) Close() {
	if s.Bridge != nil {
		s.Bridge.Stop()
	}
	s.Client.Disconnect()
}
