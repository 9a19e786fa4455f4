package intesismqtt

// Home-automation vocabulary published over MQTT and the REST API. These are
// the Home Assistant climate strings so discovery works without templating.
const (
	HVACModeOff      = "off"
	HVACModeHeat     = "heat"
	HVACModeCool     = "cool"
	HVACModeHeatCool = "heat_cool"
	HVACModeDry      = "dry"
	HVACModeFanOnly  = "fan_only"

	PresetEco     = "eco"
	PresetComfort = "comfort"
	PresetBoost   = "boost"

	SwingOff = "off"
)

// Controller mode <-> HVAC mode.
var ihToHVACMode = map[string]string{
	"auto": HVACModeHeatCool,
	"cool": HVACModeCool,
	"dry":  HVACModeDry,
	"fan":  HVACModeFanOnly,
	"heat": HVACModeHeat,
	"off":  HVACModeOff,
}
var hvacModeToIH = reverse(ihToHVACMode)

// Controller preset <-> preset.
var ihToPreset = map[string]string{
	"eco":      PresetEco,
	"comfort":  PresetComfort,
	"powerful": PresetBoost,
}
var presetToIH = reverse(ihToPreset)

// Swing position <-> controller vane value. The same vocabulary applies to
// the vertical and horizontal vanes.
var swingToIH = map[string]string{
	SwingOff:     "auto/stop",
	"Position 1": "manual1",
	"Position 2": "manual2",
	"Position 3": "manual3",
	"Position 4": "manual4",
	"Position 5": "manual5",
	"Position 6": "manual6",
	"Position 7": "manual7",
	"Position 8": "manual8",
	"Position 9": "manual9",
	"Swing":      "swing",
	"Swirl":      "swirl",
	"Wide":       "wide",
}
var ihToSwing = reverse(swingToIH)

// Icon per active HVAC mode, for the state surfaces.
var modeIcons = map[string]string{
	HVACModeCool:     "mdi:snowflake",
	HVACModeDry:      "mdi:water-off",
	HVACModeFanOnly:  "mdi:fan",
	HVACModeHeat:     "mdi:white-balance-sunny",
	HVACModeHeatCool: "mdi:cached",
}

func reverse(m map[string]string) map[string]string {
	r := make(map[string]string, len(m))
	for k, v := range m {
		r[v] = k
	}
	return r
}
