package intesismqtt

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

const (
	defaultPollInterval = 60 * time.Second
	commandTimeout      = 10 * time.Second
)

// Bridge wires a controller's devices onto the MQTT and HTTP surfaces. The
// controller implementation is supplied by the host program.
type Bridge struct {
	controller Controller

	// PollInterval is the periodic full-resync interval. Set before
	// Start; zero means the default of one minute.
	PollInterval time.Duration

	devices    map[string]*ClimateDevice
	dispatcher *EventDispatcher
	cache      *Cache

	removeCallbacks []func()

	mqttMu     sync.Mutex
	mqttClient mqtt.Client
	mqttCfg    MQTTConfig

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewBridge creates an unstarted bridge around the controller.
func NewBridge(c Controller) *Bridge {
	b := &Bridge{
		controller: c,
		devices:    make(map[string]*ClimateDevice),
		dispatcher: newEventDispatcher(),
		stopCh:     make(chan struct{}),
	}
	b.cache = newCache(b.broadcastChange)
	return b
}

// Start polls the controller, builds the climate devices, registers for
// change notifications and connects. An authentication failure is fatal; a
// connection failure is returned wrapped in ErrConnection so the host can
// retry setup later.
func (b *Bridge) Start(ctx context.Context) error {
	c := b.controller

	if err := c.PollStatus(ctx); err != nil {
		if errors.Is(err, ErrAuthentication) {
			log.Error("invalid username or password")
			_ = c.Stop(ctx)
			return err
		}
		log.Errorf("error connecting to the %s API: %v", c.DeviceType(), err)
		return fmt.Errorf("poll status: %w", err)
	}

	records := c.Devices()
	if len(records) == 0 {
		log.Errorf("error getting device list from %s API", c.DeviceType())
		_ = c.Stop(ctx)
		return fmt.Errorf("intesismqtt: controller reported no devices")
	}

	for id, rec := range records {
		dev := newClimateDevice(c, id, rec)
		log.Debugf("added climate device %s (%s)", id, rec.Name)

		sup := NewSupervisor(c, id, c.DeviceType(), func(force bool) {
			b.refreshDevice(dev)
		})
		dev.supervisor = sup

		remove := c.AddUpdateCallback(sup.OnUpdate)
		b.removeCallbacks = append(b.removeCallbacks, remove)

		b.devices[id] = dev
	}

	if err := c.Connect(ctx); err != nil {
		log.Errorf("exception connecting to %s: %v", c.DeviceType(), err)
		return fmt.Errorf("connect: %w", err)
	}

	go b.dispatcher.run()
	go b.statePoller()

	for _, dev := range b.climateDevices() {
		b.refreshDevice(dev)
	}

	return nil
}

// Stop unregisters callbacks, cancels reconnection work and shuts the
// controller down.
func (b *Bridge) Stop(ctx context.Context) error {
	var err error
	b.stopOnce.Do(func() {
		close(b.stopCh)

		for _, remove := range b.removeCallbacks {
			remove()
		}
		b.removeCallbacks = nil

		for _, dev := range b.devices {
			if dev.supervisor != nil {
				dev.supervisor.Stop()
			}
		}

		b.mqttMu.Lock()
		cl := b.mqttClient
		b.mqttClient = nil
		b.mqttMu.Unlock()
		if cl != nil {
			cl.Disconnect(250)
		}

		err = b.controller.Stop(ctx)
	})
	return err
}

// Devices returns the climate devices in stable order.
func (b *Bridge) Devices() []*ClimateDevice {
	return b.climateDevices()
}

// Device looks a climate device up by its controller id.
func (b *Bridge) Device(deviceID string) (*ClimateDevice, bool) {
	dev, ok := b.devices[deviceID]
	return dev, ok
}

func (b *Bridge) climateDevices() []*ClimateDevice {
	ids := make([]string, 0, len(b.devices))
	for id := range b.devices {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*ClimateDevice, 0, len(ids))
	for _, id := range ids {
		out = append(out, b.devices[id])
	}
	return out
}

// statePoller re-syncs every device periodically. The controller pushes
// changes through the update callback, but not every datapoint change
// generates one.
func (b *Bridge) statePoller() {
	interval := b.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			for _, dev := range b.climateDevices() {
				b.refreshDevice(dev)
			}
		case <-b.stopCh:
			return
		}
	}
}

// refreshDevice re-reads a device from the controller and pushes the result
// through the cache; unchanged state produces no traffic.
func (b *Bridge) refreshDevice(dev *ClimateDevice) {
	dev.Update()
	b.cache.update("device/"+dev.DeviceID(), dev.State())
}

// broadcastChange is the cache's change sink: every change goes to the
// websocket listeners, device state changes also go to MQTT.
func (b *Bridge) broadcastChange(source string, data interface{}) {
	b.dispatcher.broadcastEvent(source, data)

	if id, ok := strings.CutPrefix(source, "device/"); ok {
		if dev, found := b.devices[id]; found {
			b.publishState(dev)
		}
	}
}

// applyCommand executes one property write arriving from MQTT or the REST
// API, then publishes the optimistic local state.
func (b *Bridge) applyCommand(deviceID, property, value string) error {
	dev, ok := b.devices[deviceID]
	if !ok {
		return fmt.Errorf("intesismqtt: unknown device %q", deviceID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var err error
	switch property {
	case "mode":
		err = dev.SetHVACMode(ctx, value)
	case "target_temp":
		var t float64
		t, err = strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err == nil {
			err = dev.SetTemperature(ctx, t)
		}
	case "fan_mode":
		err = dev.SetFanMode(ctx, value)
	case "preset_mode":
		err = dev.SetPresetMode(ctx, value)
	case "swing_mode":
		err = dev.SetSwingMode(ctx, value)
	case "swing_horizontal_mode":
		err = dev.SetSwingHorizontalMode(ctx, value)
	case "power":
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "on", "true", "1":
			err = dev.TurnOn(ctx)
		case "off", "false", "0":
			err = dev.TurnOff(ctx)
		case "toggle":
			err = dev.Toggle(ctx)
		default:
			err = errUnknownValue("power payload", value)
		}
	default:
		err = errUnknownValue("property", property)
	}

	if err != nil {
		return err
	}

	b.cache.update("device/"+deviceID, dev.State())
	return nil
}
