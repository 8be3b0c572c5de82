package mqtt

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/dokzlo13/sunlamp/internal/animation"
	"github.com/dokzlo13/sunlamp/internal/color"
	"github.com/dokzlo13/sunlamp/internal/control"
	"github.com/dokzlo13/sunlamp/internal/eventbus"
)

// Controller is what the bridge drives; *control.Controller implements it.
type Controller interface {
	SetColor(source string, c color.Color) (string, error)
	Animate(source string, cmd animation.Command) (string, error)
	SetSun(source string, enabled bool) (string, error)
	Status() control.Status
}

// Topic suffixes under the configured prefix.
const (
	TopicSet    = "set"
	TopicStatus = "status"
	TopicFrame  = "frame"
	TopicOnline = "online"
)

// Bridge maps MQTT messages to controller calls and lamp events to
// retained status messages.
type Bridge struct {
	client Client
	ctrl   Controller
	prefix string
	qos    byte
}

// NewBridge creates a bridge publishing under prefix.
func NewBridge(client Client, ctrl Controller, prefix string, qos byte) *Bridge {
	return &Bridge{client: client, ctrl: ctrl, prefix: prefix, qos: qos}
}

// Topic returns prefix/suffix.
func (b *Bridge) Topic(suffix string) string {
	return b.prefix + "/" + suffix
}

// Start republishes the status on every lamp event.
func (b *Bridge) Start(bus *eventbus.Bus) {
	bus.Subscribe(b.OnEvent, eventbus.AllEventTypes...)
}

// OnConnect subscribes to the command topic, marks the lamp online and
// publishes the current status. It runs after every (re)connect since the
// session is not persisted.
func (b *Bridge) OnConnect() error {
	if err := b.client.Subscribe(b.Topic(TopicSet), b.qos, b.handleMessage); err != nil {
		return err
	}
	if err := b.client.Publish(b.Topic(TopicOnline), 1, true, []byte("true")); err != nil {
		log.Warn().Err(err).Msg("Failed to publish online marker")
	}
	b.PublishStatus()
	return nil
}

// Stop marks the lamp offline.
func (b *Bridge) Stop() {
	if !b.client.IsConnected() {
		return
	}
	if err := b.client.Publish(b.Topic(TopicOnline), 1, true, []byte("false")); err != nil {
		log.Warn().Err(err).Msg("Failed to publish offline marker")
	}
}

func (b *Bridge) handleMessage(topic string, payload []byte) {
	if err := b.HandleSet(payload); err != nil {
		log.Warn().Err(err).Str("topic", topic).Str("payload", string(payload)).Msg("Rejected MQTT command")
	}
}

// setRequest is one of {"color": {...}}, {"sun": bool} or an animation
// command {"kind": ..., "src": ..., "dst": ..., "interval_ms": ..., "duration_ms": ...}.
type setRequest struct {
	Color    *rgb            `json:"color"`
	Sun      *bool           `json:"sun"`
	Kind     *animation.Kind `json:"kind"`
	Src      color.Color     `json:"src"`
	Dst      color.Color     `json:"dst"`
	Interval uint32          `json:"interval_ms"`
	Duration uint32          `json:"duration_ms"`
}

type rgb struct {
	R int `json:"r"`
	G int `json:"g"`
	B int `json:"b"`
}

var errAmbiguous = errors.New("exactly one of color, sun or kind is required")

// HandleSet applies one command payload.
func (b *Bridge) HandleSet(payload []byte) error {
	var req setRequest
	if err := json.Unmarshal(payload, &req); err != nil {
		return fmt.Errorf("invalid command: %w", err)
	}

	n := 0
	for _, set := range []bool{req.Color != nil, req.Sun != nil, req.Kind != nil} {
		if set {
			n++
		}
	}
	if n != 1 {
		return errAmbiguous
	}

	var err error
	switch {
	case req.Color != nil:
		c := req.Color
		for _, v := range []int{c.R, c.G, c.B} {
			if v < 0 || v > 255 {
				return fmt.Errorf("color channels must be within 0..255")
			}
		}
		_, err = b.ctrl.SetColor("mqtt", color.RGB(uint8(c.R), uint8(c.G), uint8(c.B)))
	case req.Sun != nil:
		_, err = b.ctrl.SetSun("mqtt", *req.Sun)
	default:
		_, err = b.ctrl.Animate("mqtt", animation.Command{
			Kind:     *req.Kind,
			Src:      req.Src,
			Dst:      req.Dst,
			Interval: req.Interval,
			Duration: req.Duration,
		})
	}
	return err
}

// OnEvent republishes the status after any lamp event.
func (b *Bridge) OnEvent(e eventbus.Event) {
	log.Debug().Str("event_type", string(e.Type)).Msg("Publishing status after event")
	b.PublishStatus()
}

// PublishStatus publishes the controller status, retained.
func (b *Bridge) PublishStatus() {
	if !b.client.IsConnected() {
		return
	}
	payload, err := json.Marshal(b.ctrl.Status())
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode status")
		return
	}
	if err := b.client.Publish(b.Topic(TopicStatus), b.qos, true, payload); err != nil {
		log.Warn().Err(err).Msg("Failed to publish status")
	}
}

// FrameSink returns a strip sink mirroring frames to prefix/frame.
func (b *Bridge) FrameSink() *FrameSink {
	return NewFrameSink(b.client, b.Topic(TopicFrame))
}
