package intesismqtt

import (
	"context"
	"errors"
)

// The device-control library is an external collaborator: it owns the wire
// protocol, authentication and status parsing. This file is the contract the
// bridge consumes; implementations live outside this module.

var (
	// ErrConnection is returned by Connect and PollStatus when the
	// controller cannot reach the device. It is the only error kind the
	// reconnection supervisor recovers from.
	ErrConnection = errors.New("intesismqtt: connection error")

	// ErrAuthentication is returned when the device rejects the
	// configured credentials.
	ErrAuthentication = errors.New("intesismqtt: authentication error")
)

// UpdateCallback is invoked by the controller whenever device state changes.
// An empty deviceID means the change affects all devices.
type UpdateCallback func(deviceID string)

// DeviceRecord describes one air conditioning unit known to the controller.
type DeviceRecord struct {
	Name string
	// SupportsPresets is set when the unit exposes a climate working mode
	// (eco/comfort/powerful).
	SupportsPresets bool
}

// Controller is the device-control collaborator. All state getters return
// values from the controller's last status snapshot; the second return
// reports whether the datapoint is known for the device.
type Controller interface {
	// Connectivity and lifecycle.
	IsConnected() bool
	Connect(ctx context.Context) error
	PollStatus(ctx context.Context) error
	Stop(ctx context.Context) error

	// Identity.
	DeviceType() string
	ControllerID() string
	Name() string
	Model() string
	FirmwareVersion() string

	// Devices enumerates units by device id.
	Devices() map[string]DeviceRecord

	// AddUpdateCallback registers cb for change notifications and returns
	// a function that unregisters it.
	AddUpdateCallback(cb UpdateCallback) (remove func())

	// State, in the controller's own vocabulary ("cool", "powerful",
	// "manual3", ...). Temperatures are celsius.
	Temperature(deviceID string) (float64, bool)
	Setpoint(deviceID string) (float64, bool)
	SetpointMin(deviceID string) (float64, bool)
	SetpointMax(deviceID string) (float64, bool)
	OutdoorTemperature(deviceID string) (float64, bool)
	Mode(deviceID string) string
	PresetMode(deviceID string) string
	FanSpeed(deviceID string) string
	VerticalSwing(deviceID string) string
	HorizontalSwing(deviceID string) string
	IsOn(deviceID string) bool
	RSSI(deviceID string) (int, bool)
	RunHours(deviceID string) (int, bool)
	HeatPowerConsumption(deviceID string) (float64, bool)
	CoolPowerConsumption(deviceID string) (float64, bool)

	// Capabilities.
	ModeList(deviceID string) []string
	FanSpeedList(deviceID string) []string
	VerticalSwingList(deviceID string) []string
	HorizontalSwingList(deviceID string) []string
	HasSetpointControl(deviceID string) bool
	HasVerticalSwing() bool
	HasHorizontalSwing() bool

	// Commands.
	SetPower(ctx context.Context, deviceID string, on bool) error
	SetTemperature(ctx context.Context, deviceID string, setpoint float64) error
	SetMode(ctx context.Context, deviceID string, mode string) error
	SetFanSpeed(ctx context.Context, deviceID string, speed string) error
	SetPresetMode(ctx context.Context, deviceID string, preset string) error
	SetVerticalVane(ctx context.Context, deviceID string, position string) error
	SetHorizontalVane(ctx context.Context, deviceID string, position string) error
}

// connectable is the narrow view of the controller the reconnection
// supervisor needs.
type connectable interface {
	IsConnected() bool
	Connect(ctx context.Context) error
}
