package intesismqtt

import (
	"context"
	"fmt"
	"sync"
)

// fakeController is the shared test double for the device-control
// collaborator. State is plain maps; commands are recorded for assertions.
type fakeController struct {
	mu sync.Mutex

	connected    bool
	connectErr   error
	connectCalls int
	pollErr      error
	stopped      bool

	deviceType   string
	controllerID string
	name         string
	model        string
	firmware     string

	devices   map[string]DeviceRecord
	callbacks map[int]UpdateCallback
	nextCB    int

	on       map[string]bool
	mode     map[string]string
	preset   map[string]string
	fanSpeed map[string]string
	vvane    map[string]string
	hvane    map[string]string
	temp     map[string]float64
	setpoint map[string]float64

	modeList  []string
	fanList   []string
	vvaneList []string
	hvaneList []string
	hasVVane  bool
	hasHVane  bool

	commands []string
}

func newFakeController() *fakeController {
	return &fakeController{
		connected:    true,
		deviceType:   "intesishome",
		controllerID: "127934703",
		name:         "Living Room",
		model:        "WMP-1",
		firmware:     "1.3.3",
		devices: map[string]DeviceRecord{
			"12015601252": {Name: "Living Room AC", SupportsPresets: true},
		},
		callbacks: map[int]UpdateCallback{},
		on:        map[string]bool{},
		mode:      map[string]string{},
		preset:    map[string]string{},
		fanSpeed:  map[string]string{},
		vvane:     map[string]string{},
		hvane:     map[string]string{},
		temp:      map[string]float64{},
		setpoint:  map[string]float64{},
		modeList:  []string{"auto", "cool", "dry", "fan", "heat"},
		fanList:   []string{"auto", "quiet", "low", "medium", "high"},
		vvaneList: []string{"auto/stop", "swing", "manual1", "manual2"},
		hasVVane:  true,
	}
}

func (f *fakeController) record(format string, args ...interface{}) {
	f.commands = append(f.commands, fmt.Sprintf(format, args...))
}

func (f *fakeController) IsConnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeController) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connectCalls++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}

func (f *fakeController) PollStatus(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pollErr
}

func (f *fakeController) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
	f.connected = false
	return nil
}

func (f *fakeController) DeviceType() string      { return f.deviceType }
func (f *fakeController) ControllerID() string    { return f.controllerID }
func (f *fakeController) Name() string            { return f.name }
func (f *fakeController) Model() string           { return f.model }
func (f *fakeController) FirmwareVersion() string { return f.firmware }

func (f *fakeController) Devices() map[string]DeviceRecord {
	out := make(map[string]DeviceRecord, len(f.devices))
	for k, v := range f.devices {
		out[k] = v
	}
	return out
}

func (f *fakeController) AddUpdateCallback(cb UpdateCallback) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.nextCB
	f.nextCB++
	f.callbacks[id] = cb
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		delete(f.callbacks, id)
	}
}

// notify drives the registered callbacks like the real library would.
func (f *fakeController) notify(deviceID string) {
	f.mu.Lock()
	cbs := make([]UpdateCallback, 0, len(f.callbacks))
	for _, cb := range f.callbacks {
		cbs = append(cbs, cb)
	}
	f.mu.Unlock()
	for _, cb := range cbs {
		cb(deviceID)
	}
}

func (f *fakeController) getFloat(m map[string]float64, id string) (float64, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := m[id]
	return v, ok
}

func (f *fakeController) Temperature(id string) (float64, bool) { return f.getFloat(f.temp, id) }
func (f *fakeController) Setpoint(id string) (float64, bool)    { return f.getFloat(f.setpoint, id) }
func (f *fakeController) SetpointMin(id string) (float64, bool) { return 18, true }
func (f *fakeController) SetpointMax(id string) (float64, bool) { return 30, true }
func (f *fakeController) OutdoorTemperature(id string) (float64, bool) {
	return 0, false
}

func (f *fakeController) get(m map[string]string, id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return m[id]
}

func (f *fakeController) Mode(id string) string            { return f.get(f.mode, id) }
func (f *fakeController) PresetMode(id string) string      { return f.get(f.preset, id) }
func (f *fakeController) FanSpeed(id string) string        { return f.get(f.fanSpeed, id) }
func (f *fakeController) VerticalSwing(id string) string   { return f.get(f.vvane, id) }
func (f *fakeController) HorizontalSwing(id string) string { return f.get(f.hvane, id) }

func (f *fakeController) IsOn(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.on[id]
}

func (f *fakeController) RSSI(id string) (int, bool)     { return -62, true }
func (f *fakeController) RunHours(id string) (int, bool) { return 1542, true }
func (f *fakeController) HeatPowerConsumption(id string) (float64, bool) {
	return 0, false
}
func (f *fakeController) CoolPowerConsumption(id string) (float64, bool) {
	return 0, false
}

func (f *fakeController) ModeList(id string) []string            { return f.modeList }
func (f *fakeController) FanSpeedList(id string) []string        { return f.fanList }
func (f *fakeController) VerticalSwingList(id string) []string   { return f.vvaneList }
func (f *fakeController) HorizontalSwingList(id string) []string { return f.hvaneList }
func (f *fakeController) HasSetpointControl(id string) bool      { return true }
func (f *fakeController) HasVerticalSwing() bool                 { return f.hasVVane }
func (f *fakeController) HasHorizontalSwing() bool               { return f.hasHVane }

func (f *fakeController) SetPower(ctx context.Context, id string, on bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.on[id] = on
	f.record("power %s %v", id, on)
	return nil
}

func (f *fakeController) SetTemperature(ctx context.Context, id string, setpoint float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.setpoint[id] = setpoint
	f.record("setpoint %s %v", id, setpoint)
	return nil
}

func (f *fakeController) SetMode(ctx context.Context, id, mode string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mode[id] = mode
	f.record("mode %s %s", id, mode)
	return nil
}

func (f *fakeController) SetFanSpeed(ctx context.Context, id, speed string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fanSpeed[id] = speed
	f.record("fan %s %s", id, speed)
	return nil
}

func (f *fakeController) SetPresetMode(ctx context.Context, id, preset string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.preset[id] = preset
	f.record("preset %s %s", id, preset)
	return nil
}

func (f *fakeController) SetVerticalVane(ctx context.Context, id, position string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vvane[id] = position
	f.record("vvane %s %s", id, position)
	return nil
}

func (f *fakeController) SetHorizontalVane(ctx context.Context, id, position string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hvane[id] = position
	f.record("hvane %s %s", id, position)
	return nil
}

var _ Controller = (*fakeController)(nil)
