package intesismqtt

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedBridge(t *testing.T) (*Bridge, *fakeController) {
	t.Helper()
	fc := newFakeController()
	b := NewBridge(fc)
	require.NoError(t, b.Start(context.Background()))
	t.Cleanup(func() { _ = b.Stop(context.Background()) })
	return b, fc
}

func TestBridgeStart(t *testing.T) {
	b, fc := startedBridge(t)

	devs := b.Devices()
	require.Len(t, devs, 1)
	assert.Equal(t, "12015601252", devs[0].DeviceID())
	assert.NotNil(t, devs[0].supervisor)
	assert.Len(t, fc.callbacks, 1)

	// Initial refresh primes the cache.
	st, ok := b.cache.get("device/12015601252").(ClimateState)
	require.True(t, ok)
	assert.Equal(t, "Living Room AC", st.Name)
}

func TestBridgeStartAuthFailure(t *testing.T) {
	fc := newFakeController()
	fc.pollErr = ErrAuthentication

	err := NewBridge(fc).Start(context.Background())

	assert.ErrorIs(t, err, ErrAuthentication)
	assert.True(t, fc.stopped)
}

func TestBridgeStartConnectionFailure(t *testing.T) {
	fc := newFakeController()
	fc.pollErr = ErrConnection

	err := NewBridge(fc).Start(context.Background())

	assert.ErrorIs(t, err, ErrConnection)
}

func TestBridgeStartNoDevices(t *testing.T) {
	fc := newFakeController()
	fc.devices = map[string]DeviceRecord{}

	err := NewBridge(fc).Start(context.Background())

	assert.Error(t, err)
	assert.True(t, fc.stopped)
}

func TestBridgeStopUnregistersCallbacks(t *testing.T) {
	fc := newFakeController()
	b := NewBridge(fc)
	require.NoError(t, b.Start(context.Background()))

	require.NoError(t, b.Stop(context.Background()))

	assert.Empty(t, fc.callbacks)
	assert.True(t, fc.stopped)

	// Idempotent.
	assert.NoError(t, b.Stop(context.Background()))
}

func TestUpdateCallbackRefreshesDevice(t *testing.T) {
	b, fc := startedBridge(t)

	fc.mu.Lock()
	fc.temp["12015601252"] = 19.5
	fc.mu.Unlock()
	fc.notify("12015601252")

	st, ok := b.cache.get("device/12015601252").(ClimateState)
	require.True(t, ok)
	require.NotNil(t, st.CurrentTemp)
	assert.Equal(t, 19.5, *st.CurrentTemp)
}

func TestApplyCommand(t *testing.T) {
	b, fc := startedBridge(t)

	require.NoError(t, b.applyCommand("12015601252", "power", "on"))
	require.NoError(t, b.applyCommand("12015601252", "mode", "cool"))
	require.NoError(t, b.applyCommand("12015601252", "target_temp", "22.5"))
	require.NoError(t, b.applyCommand("12015601252", "fan_mode", "high"))

	assert.Equal(t, "cool", fc.mode["12015601252"])
	assert.Equal(t, 22.5, fc.setpoint["12015601252"])
	assert.Equal(t, "high", fc.fanSpeed["12015601252"])

	st, ok := b.cache.get("device/12015601252").(ClimateState)
	require.True(t, ok)
	assert.Equal(t, "cool", st.HVACMode)
}

func TestApplyCommandErrors(t *testing.T) {
	b, _ := startedBridge(t)

	assert.Error(t, b.applyCommand("nope", "power", "on"))
	assert.Error(t, b.applyCommand("12015601252", "brightness", "5"))
	assert.Error(t, b.applyCommand("12015601252", "target_temp", "very hot"))
	assert.Error(t, b.applyCommand("12015601252", "power", "maybe"))
}

func TestApplyCommandPowerToggle(t *testing.T) {
	b, fc := startedBridge(t)

	require.NoError(t, b.applyCommand("12015601252", "power", "toggle"))
	assert.True(t, fc.on["12015601252"])
	require.NoError(t, b.applyCommand("12015601252", "power", "toggle"))
	assert.False(t, fc.on["12015601252"])
}

func TestSerializeEvent(t *testing.T) {
	msg := serializeEvent("device/1", map[string]interface{}{"power": true})

	var ev struct {
		Source string                 `json:"source"`
		Data   map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(msg, &ev))
	assert.Equal(t, "device/1", ev.Source)
	assert.Equal(t, true, ev.Data["power"])
}

func TestMQTTConfigDefaults(t *testing.T) {
	cfg := (&MQTTConfig{URL: "tcp://localhost:1883"}).withDefaults()

	assert.Equal(t, "intesismqtt", cfg.ClientID)
	assert.Equal(t, "intesis", cfg.BaseTopic)
	assert.Equal(t, "homeassistant", cfg.DiscoveryPrefix)
}

// fakeMessage satisfies mqtt.Message for handler tests.
type fakeMessage struct {
	topic   string
	payload []byte
}

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 0 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return m.topic }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func TestMQTTMessageHandler(t *testing.T) {
	b, fc := startedBridge(t)
	b.mqttCfg = (&MQTTConfig{}).withDefaults()

	b.mqttMessageHandler(nil, &fakeMessage{
		topic:   "intesis/12015601252/mode/set",
		payload: []byte("heat"),
	})
	assert.Equal(t, "heat", fc.mode["12015601252"])

	// Malformed and foreign topics are ignored.
	before := len(fc.commands)
	b.mqttMessageHandler(nil, &fakeMessage{topic: "other/12015601252/mode/set", payload: []byte("cool")})
	b.mqttMessageHandler(nil, &fakeMessage{topic: "intesis/mode/set", payload: []byte("cool")})
	assert.Len(t, fc.commands, before)
}
