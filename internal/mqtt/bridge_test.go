package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dokzlo13/sunlamp/internal/animation"
	"github.com/dokzlo13/sunlamp/internal/color"
	"github.com/dokzlo13/sunlamp/internal/control"
	"github.com/dokzlo13/sunlamp/internal/eventbus"
)

type published struct {
	topic    string
	qos      byte
	retained bool
	payload  []byte
}

type fakeClient struct {
	mu        sync.Mutex
	connected bool
	handlers  map[string]MessageHandler
	published []published
	subErr    error
}

func newFakeClient() *fakeClient {
	return &fakeClient{connected: true, handlers: map[string]MessageHandler{}}
}

func (c *fakeClient) Connect(context.Context) error { return nil }
func (c *fakeClient) Disconnect()                   {}

func (c *fakeClient) Subscribe(topic string, qos byte, handler MessageHandler) error {
	if c.subErr != nil {
		return c.subErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[topic] = handler
	return nil
}

func (c *fakeClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, published{topic, qos, retained, append([]byte(nil), payload...)})
	return nil
}

func (c *fakeClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *fakeClient) deliver(topic string, payload []byte) {
	c.mu.Lock()
	h := c.handlers[topic]
	c.mu.Unlock()
	h(topic, payload)
}

func (c *fakeClient) On(topic string) []published {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []published
	for _, p := range c.published {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

type call struct {
	method string
	color  color.Color
	cmd    animation.Command
	sun    bool
}

type fakeController struct {
	mu    sync.Mutex
	calls []call
	err   error
}

func (f *fakeController) record(c call) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, c)
	return "id", f.err
}

func (f *fakeController) SetColor(_ string, c color.Color) (string, error) {
	return f.record(call{method: "color", color: c})
}

func (f *fakeController) Animate(_ string, cmd animation.Command) (string, error) {
	return f.record(call{method: "animate", cmd: cmd})
}

func (f *fakeController) SetSun(_ string, enabled bool) (string, error) {
	return f.record(call{method: "sun", sun: enabled})
}

func (f *fakeController) Status() control.Status {
	return control.Status{Mode: control.ModeSun, Color: color.RGB(1, 2, 3), Kind: "sine"}
}

func TestHandleSet(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    call
		wantErr bool
	}{
		{"color", `{"color": {"r": 255, "g": 10, "b": 0}}`, call{method: "color", color: color.RGB(255, 10, 0)}, false},
		{"sun_on", `{"sun": true}`, call{method: "sun", sun: true}, false},
		{"sun_off", `{"sun": false}`, call{method: "sun", sun: false}, false},
		{
			"animation",
			`{"kind": "fade", "dst": {"r": 0, "g": 0, "b": 255}, "interval_ms": 2000}`,
			call{method: "animate", cmd: animation.Command{Kind: animation.KindFade, Dst: color.RGB(0, 0, 255), Interval: 2000}},
			false,
		},
		{"empty", `{}`, call{}, true},
		{"two_commands", `{"sun": true, "color": {"r": 1}}`, call{}, true},
		{"bad_channel", `{"color": {"r": 300}}`, call{}, true},
		{"bad_kind", `{"kind": "strobe"}`, call{}, true},
		{"not_json", `on`, call{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := &fakeController{}
			b := NewBridge(newFakeClient(), ctrl, "lamp", 0)

			err := b.HandleSet([]byte(tt.payload))
			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, ctrl.calls)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []call{tt.want}, ctrl.calls)
		})
	}
}

func TestHandleSet_ControllerError(t *testing.T) {
	ctrl := &fakeController{err: control.ErrBusy}
	b := NewBridge(newFakeClient(), ctrl, "lamp", 0)
	assert.ErrorIs(t, b.HandleSet([]byte(`{"sun": true}`)), control.ErrBusy)
}

func TestOnConnect_SubscribesAndPublishesStatus(t *testing.T) {
	client := newFakeClient()
	ctrl := &fakeController{}
	b := NewBridge(client, ctrl, "lamp/kitchen", 1)

	require.NoError(t, b.OnConnect())

	online := client.On("lamp/kitchen/online")
	require.Len(t, online, 1)
	assert.True(t, online[0].retained)
	assert.Equal(t, "true", string(online[0].payload))

	status := client.On("lamp/kitchen/status")
	require.Len(t, status, 1)
	assert.True(t, status[0].retained)
	assert.Equal(t, byte(1), status[0].qos)

	var st control.Status
	require.NoError(t, json.Unmarshal(status[0].payload, &st))
	assert.Equal(t, control.ModeSun, st.Mode)
	assert.Equal(t, color.RGB(1, 2, 3), st.Color)

	client.deliver("lamp/kitchen/set", []byte(`{"sun": false}`))
	assert.Equal(t, []call{{method: "sun"}}, ctrl.calls)

	// rejected payloads are logged, not fatal
	client.deliver("lamp/kitchen/set", []byte(`garbage`))
	assert.Len(t, ctrl.calls, 1)

	b.Stop()
	online = client.On("lamp/kitchen/online")
	require.Len(t, online, 2)
	assert.Equal(t, "false", string(online[1].payload))
}

func TestOnConnect_SubscribeError(t *testing.T) {
	client := newFakeClient()
	client.subErr = errors.New("not authorized")
	b := NewBridge(client, &fakeController{}, "lamp", 0)
	assert.Error(t, b.OnConnect())
	assert.Empty(t, client.On("lamp/status"))
}

func TestOnEvent_RepublishesStatus(t *testing.T) {
	client := newFakeClient()
	bus := eventbus.NewWithConfig(1, 10)
	defer bus.Close(context.Background())

	b := NewBridge(client, &fakeController{}, "lamp", 0)
	b.Start(bus)

	bus.Publish(eventbus.Event{Type: eventbus.EventTypePhase})
	bus.Publish(eventbus.Event{Type: eventbus.EventTypeMode})

	require.Eventually(t, func() bool {
		return len(client.On("lamp/status")) == 2
	}, time.Second, 5*time.Millisecond)
}

func TestPublishStatus_SkipsWhenDisconnected(t *testing.T) {
	client := newFakeClient()
	client.connected = false
	b := NewBridge(client, &fakeController{}, "lamp", 0)

	b.PublishStatus()
	assert.Empty(t, client.On("lamp/status"))
}

func TestFrameSink(t *testing.T) {
	client := newFakeClient()
	sink := NewBridge(client, &fakeController{}, "lamp", 1).FrameSink()

	require.NoError(t, sink.Write([]byte{1, 2, 3}))
	frames := client.On("lamp/frame")
	require.Len(t, frames, 1)
	assert.Equal(t, []byte{1, 2, 3}, frames[0].payload)
	assert.Equal(t, byte(0), frames[0].qos)
	assert.False(t, frames[0].retained)

	client.connected = false
	require.NoError(t, sink.Write([]byte{4, 5, 6}))
	assert.Len(t, client.On("lamp/frame"), 1)
}
