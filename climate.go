package intesismqtt

import (
	"context"
	"math"
	"sync"

	log "github.com/sirupsen/logrus"
)

// ClimateFeatures records which optional controls a unit supports.
type ClimateFeatures struct {
	TargetTemperature bool `json:"targetTemperature"`
	FanMode           bool `json:"fanMode"`
	PresetMode        bool `json:"presetMode"`
	SwingMode         bool `json:"swingMode"`
	SwingHorizontal   bool `json:"swingHorizontal"`
}

// ClimateState is the JSON-ready snapshot published over MQTT, the REST API
// and the websocket.
type ClimateState struct {
	DeviceID    string   `json:"deviceId"`
	Name        string   `json:"name"`
	Available   bool     `json:"available"`
	Power       bool     `json:"power"`
	HVACMode    string   `json:"hvacMode"`
	Icon        string   `json:"icon,omitempty"`
	CurrentTemp *float64 `json:"currentTemp,omitempty"`
	TargetTemp  *float64 `json:"targetTemp,omitempty"`
	MinTemp     *float64 `json:"minTemp,omitempty"`
	MaxTemp     *float64 `json:"maxTemp,omitempty"`
	OutdoorTemp *float64 `json:"outdoorTemp,omitempty"`
	FanMode     string   `json:"fanMode,omitempty"`
	Preset      string   `json:"preset,omitempty"`
	SwingMode   string   `json:"swingMode,omitempty"`
	SwingHoriz  string   `json:"swingHorizontalMode,omitempty"`
	RSSI        *int     `json:"rssi,omitempty"`
	RunHours    *int     `json:"runHours,omitempty"`
	// Power draw in kW, rounded to 0.1.
	PowerConsumptionHeatKW *float64 `json:"powerConsumptionHeatKw,omitempty"`
	PowerConsumptionCoolKW *float64 `json:"powerConsumptionCoolKw,omitempty"`
}

// ClimateDevice adapts one controller unit into a climate entity: property
// mapping on the way out, command mapping on the way in.
type ClimateDevice struct {
	controller Controller
	deviceID   string
	name       string
	deviceType string

	hvacModes  []string
	fanModes   []string
	swingModes []string
	swingHoriz []string
	presets    []string
	features   ClimateFeatures

	supervisor *Supervisor

	mu          sync.Mutex
	power       bool
	hvacMode    string
	currentTemp *float64
	targetTemp  *float64
	minTemp     *float64
	maxTemp     *float64
	outdoorTemp *float64
	fanMode     string
	preset      string
	vvane       string
	hvane       string
	rssi        *int
	runHours    *int
	heatPowerW  *float64
	coolPowerW  *float64
}

func newClimateDevice(c Controller, deviceID string, rec DeviceRecord) *ClimateDevice {
	d := &ClimateDevice{
		controller: c,
		deviceID:   deviceID,
		name:       rec.Name,
		deviceType: c.DeviceType(),
	}

	d.hvacModes = hvacModesFromList(c.ModeList(deviceID))
	d.hvacModes = append(d.hvacModes, HVACModeOff)

	d.fanModes = c.FanSpeedList(deviceID)
	d.features.FanMode = len(d.fanModes) > 0
	d.features.TargetTemperature = c.HasSetpointControl(deviceID)

	if c.HasVerticalSwing() {
		d.swingModes = swingModesFromList(c.VerticalSwingList(deviceID))
		d.features.SwingMode = len(d.swingModes) > 0
	}
	if c.HasHorizontalSwing() {
		d.swingHoriz = swingModesFromList(c.HorizontalSwingList(deviceID))
		d.features.SwingHorizontal = len(d.swingHoriz) > 0
	}

	if rec.SupportsPresets {
		d.presets = []string{PresetEco, PresetComfort, PresetBoost}
		d.features.PresetMode = true
	}

	return d
}

// DeviceID returns the controller's identifier for this unit.
func (d *ClimateDevice) DeviceID() string { return d.deviceID }

// Name returns the unit's name as reported by the controller.
func (d *ClimateDevice) Name() string { return d.name }

// Features returns the supported optional controls.
func (d *ClimateDevice) Features() ClimateFeatures { return d.features }

// HVACModes lists selectable modes, including "off".
func (d *ClimateDevice) HVACModes() []string { return d.hvacModes }

// FanModes lists available fan speeds, controller vocabulary.
func (d *ClimateDevice) FanModes() []string { return d.fanModes }

// SwingModes lists available vertical vane positions.
func (d *ClimateDevice) SwingModes() []string { return d.swingModes }

// SwingHorizontalModes lists available horizontal vane positions.
func (d *ClimateDevice) SwingHorizontalModes() []string { return d.swingHoriz }

// PresetModes lists available presets, empty when unsupported.
func (d *ClimateDevice) PresetModes() []string { return d.presets }

// Available reports whether the unit should be treated as reachable.
func (d *ClimateDevice) Available() bool {
	if d.supervisor == nil {
		return true
	}
	return d.supervisor.Connected()
}

// Update copies values from the controller's status snapshot into the
// device. The controller confirms commands slowly, so setters also write
// locally and this reconciles afterwards.
func (d *ClimateDevice) Update() {
	c := d.controller
	id := d.deviceID

	d.mu.Lock()
	defer d.mu.Unlock()

	d.power = c.IsOn(id)
	d.currentTemp = optFloat(c.Temperature(id))
	d.targetTemp = optFloat(c.Setpoint(id))
	d.minTemp = optFloat(c.SetpointMin(id))
	d.maxTemp = optFloat(c.SetpointMax(id))
	d.outdoorTemp = optFloat(c.OutdoorTemperature(id))
	d.fanMode = c.FanSpeed(id)
	d.hvacMode = hvacModeFromIH(c.Mode(id))
	d.preset = presetFromIH(c.PresetMode(id))
	d.vvane = c.VerticalSwing(id)
	d.hvane = c.HorizontalSwing(id)
	d.rssi = optInt(c.RSSI(id))
	d.runHours = optInt(c.RunHours(id))
	d.heatPowerW = optFloat(c.HeatPowerConsumption(id))
	d.coolPowerW = optFloat(c.CoolPowerConsumption(id))
}

// State assembles the published snapshot under the entity's presentation
// rules: mode reads "off" while powered down, the target temperature is
// suppressed in fan-only and off, and the icon follows the active mode.
func (d *ClimateDevice) State() ClimateState {
	d.mu.Lock()
	defer d.mu.Unlock()

	mode := HVACModeOff
	if d.power {
		mode = d.hvacMode
	}

	st := ClimateState{
		DeviceID:    d.deviceID,
		Name:        d.name,
		Available:   d.Available(),
		Power:       d.power,
		HVACMode:    mode,
		CurrentTemp: d.currentTemp,
		MinTemp:     d.minTemp,
		MaxTemp:     d.maxTemp,
		OutdoorTemp: d.outdoorTemp,
		FanMode:     d.fanMode,
		Preset:      d.preset,
		SwingMode:   swingFromIH(d.vvane),
		SwingHoriz:  swingFromIH(d.hvane),
		RSSI:        d.rssi,
		RunHours:    d.runHours,
	}

	if d.power {
		st.Icon = modeIcons[mode]
		if mode != HVACModeFanOnly && mode != HVACModeOff {
			st.TargetTemp = d.targetTemp
		}
	}
	if d.heatPowerW != nil {
		st.PowerConsumptionHeatKW = roundKW(*d.heatPowerW)
	}
	if d.coolPowerW != nil {
		st.PowerConsumptionCoolKW = roundKW(*d.coolPowerW)
	}

	return st
}

// TurnOn powers the unit on.
func (d *ClimateDevice) TurnOn(ctx context.Context) error {
	d.setLocal(func() { d.power = true })
	return d.controller.SetPower(ctx, d.deviceID, true)
}

// TurnOff powers the unit off.
func (d *ClimateDevice) TurnOff(ctx context.Context) error {
	d.setLocal(func() { d.power = false })
	return d.controller.SetPower(ctx, d.deviceID, false)
}

// Toggle flips the power state.
func (d *ClimateDevice) Toggle(ctx context.Context) error {
	if d.controller.IsOn(d.deviceID) {
		return d.TurnOff(ctx)
	}
	return d.TurnOn(ctx)
}

// SetTemperature changes the setpoint. The value is written locally first;
// controller confirmation can take seconds and the surfaces would flap.
func (d *ClimateDevice) SetTemperature(ctx context.Context, setpoint float64) error {
	log.Debugf("setting %s to %v degrees", d.deviceType, setpoint)

	if err := d.controller.SetTemperature(ctx, d.deviceID, setpoint); err != nil {
		return err
	}

	d.setLocal(func() { d.targetTemp = &setpoint })
	return nil
}

// SetHVACMode selects an operating mode. "off" powers the unit down; any
// other mode powers it up first if needed and re-sends the setpoint, since
// changing modes can reset it on some units.
func (d *ClimateDevice) SetHVACMode(ctx context.Context, mode string) error {
	log.Debugf("setting %s to %s mode", d.deviceType, mode)

	if mode == HVACModeOff {
		return d.TurnOff(ctx)
	}

	ihMode, ok := hvacModeToController(mode)
	if !ok {
		return errUnknownValue("hvac mode", mode)
	}

	if !d.controller.IsOn(d.deviceID) {
		if err := d.TurnOn(ctx); err != nil {
			return err
		}
	}

	if err := d.controller.SetMode(ctx, d.deviceID, ihMode); err != nil {
		return err
	}

	d.mu.Lock()
	target := d.targetTemp
	d.mu.Unlock()
	if target != nil {
		if err := d.controller.SetTemperature(ctx, d.deviceID, *target); err != nil {
			return err
		}
	}

	d.setLocal(func() { d.hvacMode = mode })
	return nil
}

// SetFanMode selects a fan speed from the controller's list.
func (d *ClimateDevice) SetFanMode(ctx context.Context, speed string) error {
	if err := d.controller.SetFanSpeed(ctx, d.deviceID, speed); err != nil {
		return err
	}

	d.setLocal(func() { d.fanMode = speed })
	return nil
}

// SetPresetMode selects a preset (eco, comfort, boost).
func (d *ClimateDevice) SetPresetMode(ctx context.Context, preset string) error {
	ihPreset, ok := presetToController(preset)
	if !ok {
		return errUnknownValue("preset", preset)
	}
	return d.controller.SetPresetMode(ctx, d.deviceID, ihPreset)
}

// SetSwingMode positions the vertical vane.
func (d *ClimateDevice) SetSwingMode(ctx context.Context, position string) error {
	vane, ok := swingToController(position)
	if !ok {
		return errUnknownValue("swing mode", position)
	}
	return d.controller.SetVerticalVane(ctx, d.deviceID, vane)
}

// SetSwingHorizontalMode positions the horizontal vane.
func (d *ClimateDevice) SetSwingHorizontalMode(ctx context.Context, position string) error {
	vane, ok := swingToController(position)
	if !ok {
		return errUnknownValue("swing mode", position)
	}
	return d.controller.SetHorizontalVane(ctx, d.deviceID, vane)
}

func (d *ClimateDevice) setLocal(f func()) {
	d.mu.Lock()
	f()
	d.mu.Unlock()
}

func optFloat(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

func optInt(v int, ok bool) *int {
	if !ok {
		return nil
	}
	return &v
}

func roundKW(watts float64) *float64 {
	kw := math.Round(watts/1000*10) / 10
	return &kw
}
