package intesismqtt

import (
	"fmt"

	log "github.com/sirupsen/logrus"
)

func errUnknownValue(kind, value string) error {
	return fmt.Errorf("intesismqtt: unknown %s %q", kind, value)
}

func hvacModeFromIH(mode string) string {
	if m, ok := ihToHVACMode[mode]; ok {
		return m
	}
	return ""
}

func hvacModeToController(mode string) (string, bool) {
	m, ok := hvacModeToIH[mode]
	return m, ok
}

func presetFromIH(preset string) string {
	if p, ok := ihToPreset[preset]; ok {
		return p
	}
	return ""
}

func presetToController(preset string) (string, bool) {
	p, ok := presetToIH[preset]
	return p, ok
}

func swingFromIH(vane string) string {
	if s, ok := ihToSwing[vane]; ok {
		return s
	}
	return ""
}

func swingToController(position string) (string, bool) {
	s, ok := swingToIH[position]
	return s, ok
}

// hvacModesFromList maps a controller mode list into the HVAC vocabulary,
// logging anything unexpected and dropping it.
func hvacModesFromList(modes []string) []string {
	var out []string
	for _, mode := range modes {
		if m, ok := ihToHVACMode[mode]; ok {
			out = append(out, m)
		} else {
			log.Warnf("unexpected controller mode: %s", mode)
		}
	}
	return out
}

// swingModesFromList maps a controller vane list into swing positions,
// logging anything unexpected and dropping it.
func swingModesFromList(vanes []string) []string {
	var out []string
	for _, vane := range vanes {
		if s, ok := ihToSwing[vane]; ok {
			out = append(out, s)
		} else {
			log.Warnf("unexpected vane position: %s", vane)
		}
	}
	return out
}
