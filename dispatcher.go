package intesismqtt

import (
	"encoding/json"
	"fmt"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

type EventListener struct {
	ch chan []byte
}

// EventDispatcher fans state events out to websocket listeners.
type EventDispatcher struct {
	listeners  map[*EventListener]bool
	broadcast  chan []byte
	register   chan *EventListener
	deregister chan *EventListener
}

func newEventDispatcher() *EventDispatcher {
	return &EventDispatcher{
		broadcast:  make(chan []byte, 64),
		register:   make(chan *EventListener),
		deregister: make(chan *EventListener),
		listeners:  make(map[*EventListener]bool),
	}
}

type broadcastEvent struct {
	Source string      `json:"source"`
	Data   interface{} `json:"data"`
}

func serializeEvent(source string, data interface{}) []byte {
	msg, _ := json.Marshal(&broadcastEvent{Source: source, Data: data})
	return msg
}

func (d *EventDispatcher) broadcastEvent(source string, data interface{}) {
	d.broadcast <- serializeEvent(source, data)
}

func (d *EventDispatcher) run() {
	for {
		select {
		case listener := <-d.register:
			d.listeners[listener] = true
		case listener := <-d.deregister:
			if _, ok := d.listeners[listener]; ok {
				delete(d.listeners, listener)
				close(listener.ch)
			}
		case message := <-d.broadcast:
			for listener := range d.listeners {
				select {
				case listener.ch <- message:
				default:
					close(listener.ch)
					delete(d.listeners, listener)
				}
			}
		}
	}
}

// MQTTConfig configures the MQTT surface of the bridge.
type MQTTConfig struct {
	// URL of the broker, e.g. "tcp://host.com:1883".
	URL      string
	Username string
	Password string
	ClientID string
	// BaseTopic defaults to "intesis".
	BaseTopic string
	// DiscoveryPrefix defaults to "homeassistant".
	DiscoveryPrefix  string
	DisableDiscovery bool
}

func (c *MQTTConfig) withDefaults() MQTTConfig {
	out := *c
	if out.ClientID == "" {
		out.ClientID = "intesismqtt"
	}
	if out.BaseTopic == "" {
		out.BaseTopic = "intesis"
	}
	if out.DiscoveryPrefix == "" {
		out.DiscoveryPrefix = "homeassistant"
	}
	return out
}

// ConnectMQTT connects the bridge to the broker, subscribes to the command
// topics and publishes a discovery config per device.
func (b *Bridge) ConnectMQTT(cfg MQTTConfig) error {
	cfg = cfg.withDefaults()

	co := mqtt.NewClientOptions()
	co.AddBroker(cfg.URL)
	co.SetUsername(cfg.Username)
	co.SetPassword(cfg.Password)
	co.SetClientID(cfg.ClientID)

	cl := mqtt.NewClient(co)

	t := cl.Connect()
	t.Wait()
	if t.Error() != nil {
		log.Error("MQTT: failed to connect to MQTT broker: ", t.Error())
		return fmt.Errorf("mqtt connect: %w", t.Error())
	}
	log.Info("MQTT: connected to MQTT broker")

	b.mqttMu.Lock()
	b.mqttClient = cl
	b.mqttCfg = cfg
	b.mqttMu.Unlock()

	filter := cfg.BaseTopic + "/+/+/set"
	t = cl.Subscribe(filter, 0, b.mqttMessageHandler)
	t.Wait()
	if t.Error() != nil {
		log.Errorf("MQTT: failed to subscribe for %s: %v", filter, t.Error())
		return fmt.Errorf("mqtt subscribe: %w", t.Error())
	}
	log.Infof("MQTT: subscribe succeeded for %s", filter)

	if !cfg.DisableDiscovery {
		for _, dev := range b.climateDevices() {
			b.publishDiscovery(dev)
		}
	}

	// Push the current state so retained topics are primed.
	for _, dev := range b.climateDevices() {
		b.publishState(dev)
	}

	return nil
}

// handle messages
// topics: <base>/DEVICE/PROPERTY/set
func (b *Bridge) mqttMessageHandler(client mqtt.Client, msg mqtt.Message) {
	log.Infof("MQTT: received message: %s from topic: %s", msg.Payload(), msg.Topic())

	b.mqttMu.Lock()
	base := b.mqttCfg.BaseTopic
	b.mqttMu.Unlock()

	ts := strings.Split(msg.Topic(), "/")
	if len(ts) != 4 || ts[0] != base || ts[3] != "set" {
		log.Errorf("MQTT: received unexpected topic '%s'", msg.Topic())
		return
	}

	if err := b.applyCommand(ts[1], ts[2], string(msg.Payload())); err != nil {
		log.Errorf("MQTT: command %s failed: %v", msg.Topic(), err)
	}
}

func (b *Bridge) stateTopic(deviceID string) string {
	return b.mqttCfg.BaseTopic + "/" + deviceID + "/state"
}

func (b *Bridge) availabilityTopic(deviceID string) string {
	return b.mqttCfg.BaseTopic + "/" + deviceID + "/availability"
}

// publishState pushes the retained state and availability topics for one
// device. A nil client (MQTT not connected) is a no-op.
func (b *Bridge) publishState(dev *ClimateDevice) {
	b.mqttMu.Lock()
	cl := b.mqttClient
	b.mqttMu.Unlock()
	if cl == nil {
		return
	}

	st := dev.State()
	payload, _ := json.Marshal(st)
	cl.Publish(b.stateTopic(dev.DeviceID()), 0, true, payload)

	avail := "offline"
	if st.Available {
		avail = "online"
	}
	cl.Publish(b.availabilityTopic(dev.DeviceID()), 0, true, avail)
}

// Home Assistant MQTT discovery payload for a climate entity. All state
// values come from the single retained JSON state topic via templates.
type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model,omitempty"`
	SWVersion    string   `json:"sw_version,omitempty"`
}

type discoveryPayload struct {
	Name     string `json:"name"`
	UniqueID string `json:"unique_id"`

	Modes       []string `json:"modes"`
	FanModes    []string `json:"fan_modes,omitempty"`
	SwingModes  []string `json:"swing_modes,omitempty"`
	PresetModes []string `json:"preset_modes,omitempty"`

	AvailabilityTopic string `json:"availability_topic"`

	ModeStateTopic    string `json:"mode_state_topic"`
	ModeStateTemplate string `json:"mode_state_template"`
	ModeCommandTopic  string `json:"mode_command_topic"`

	CurrentTemperatureTopic    string `json:"current_temperature_topic"`
	CurrentTemperatureTemplate string `json:"current_temperature_template"`

	TemperatureStateTopic    string `json:"temperature_state_topic,omitempty"`
	TemperatureStateTemplate string `json:"temperature_state_template,omitempty"`
	TemperatureCommandTopic  string `json:"temperature_command_topic,omitempty"`

	FanModeStateTopic    string `json:"fan_mode_state_topic,omitempty"`
	FanModeStateTemplate string `json:"fan_mode_state_template,omitempty"`
	FanModeCommandTopic  string `json:"fan_mode_command_topic,omitempty"`

	SwingModeStateTopic    string `json:"swing_mode_state_topic,omitempty"`
	SwingModeStateTemplate string `json:"swing_mode_state_template,omitempty"`
	SwingModeCommandTopic  string `json:"swing_mode_command_topic,omitempty"`

	PresetModeStateTopic    string `json:"preset_mode_state_topic,omitempty"`
	PresetModeValueTemplate string `json:"preset_mode_value_template,omitempty"`
	PresetModeCommandTopic  string `json:"preset_mode_command_topic,omitempty"`

	PowerCommandTopic string `json:"power_command_topic"`

	TempStep float64 `json:"temp_step"`

	Device discoveryDevice `json:"device"`
}

func (b *Bridge) publishDiscovery(dev *ClimateDevice) {
	b.mqttMu.Lock()
	cl := b.mqttClient
	cfg := b.mqttCfg
	b.mqttMu.Unlock()
	if cl == nil {
		return
	}

	id := dev.DeviceID()
	uid := strings.ToLower(b.controller.DeviceType() + "_" + b.controller.ControllerID() + "_" + id)
	state := b.stateTopic(id)
	cmd := func(prop string) string { return cfg.BaseTopic + "/" + id + "/" + prop + "/set" }

	p := discoveryPayload{
		Name:     dev.Name(),
		UniqueID: uid,
		Modes:    dev.HVACModes(),

		AvailabilityTopic: b.availabilityTopic(id),

		ModeStateTopic:    state,
		ModeStateTemplate: "{{ value_json.hvacMode }}",
		ModeCommandTopic:  cmd("mode"),

		CurrentTemperatureTopic:    state,
		CurrentTemperatureTemplate: "{{ value_json.currentTemp }}",

		PowerCommandTopic: cmd("power"),

		TempStep: 1.0,

		Device: discoveryDevice{
			Identifiers:  []string{strings.ToLower(b.controller.DeviceType() + "_" + b.controller.ControllerID()), id},
			Name:         dev.Name(),
			Manufacturer: capitalize(b.controller.DeviceType()),
			Model:        b.controller.Model(),
			SWVersion:    b.controller.FirmwareVersion(),
		},
	}

	f := dev.Features()
	if f.TargetTemperature {
		p.TemperatureStateTopic = state
		p.TemperatureStateTemplate = "{{ value_json.targetTemp }}"
		p.TemperatureCommandTopic = cmd("target_temp")
	}
	if f.FanMode {
		p.FanModes = dev.FanModes()
		p.FanModeStateTopic = state
		p.FanModeStateTemplate = "{{ value_json.fanMode }}"
		p.FanModeCommandTopic = cmd("fan_mode")
	}
	if f.SwingMode {
		p.SwingModes = dev.SwingModes()
		p.SwingModeStateTopic = state
		p.SwingModeStateTemplate = "{{ value_json.swingMode }}"
		p.SwingModeCommandTopic = cmd("swing_mode")
	}
	if f.PresetMode {
		p.PresetModes = dev.PresetModes()
		p.PresetModeStateTopic = state
		p.PresetModeValueTemplate = "{{ value_json.preset }}"
		p.PresetModeCommandTopic = cmd("preset_mode")
	}

	payload, _ := json.Marshal(&p)
	topic := cfg.DiscoveryPrefix + "/climate/" + uid + "/config"
	log.Infof("MQTT: publishing discovery config to %s", topic)
	cl.Publish(topic, 0, true, payload)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
