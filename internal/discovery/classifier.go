package discovery

import (
	"strconv"
	"time"

	"github.com/ferralux/myhome-core/internal/bus/own"
)

// Classify infers a device from one bus frame heard on a subsystem.
//
// It is a pure function: no I/O, deterministic for the same input. The
// caller supplies the subsystem the frame is being attributed to (the
// probe that elicited it, or the frame's own WHO for passive traffic);
// a frame whose WHO does not belong to that subsystem is unclassifiable.
//
// Gateway identity and deduplication are the orchestrator's problem;
// the returned device carries only address, category and capability
// hints.
//
// Returns:
//   - DiscoveredDevice: the inferred device
//   - bool: false when the frame carries no classification evidence
func Classify(subsystem own.Subsystem, f own.Frame) (DiscoveredDevice, bool) {
	if !f.IsReply() {
		return DiscoveredDevice{}, false
	}

	probe, err := own.ProbeForWho(f.Who)
	if err != nil || probe.Subsystem != subsystem {
		return DiscoveredDevice{}, false
	}

	// General and group addresses name sets of devices, not one device.
	if !f.Where.IsPointToPoint() {
		return DiscoveredDevice{}, false
	}

	d := DiscoveredDevice{
		Where:        f.Where,
		DiscoveredAt: time.Now(),
	}

	switch subsystem {
	case own.SubsystemLighting:
		return classifyLighting(f, d)
	case own.SubsystemAutomation:
		return classifyAutomation(f, d)
	case own.SubsystemClimate:
		return classifyClimate(f, d)
	case own.SubsystemEnergy:
		d.Category = CategorySensor
		d.Subtype = "power_meter"
		return d, true
	case own.SubsystemCEN, own.SubsystemCENPlus:
		return classifyScenario(f, d)
	case own.SubsystemAuxiliary:
		d.Category = CategorySwitch
		d.Subtype = "auxiliary"
		return d, true
	case own.SubsystemAlarm:
		d.Category = CategoryBinarySensor
		d.Subtype = "alarm_zone"
		return d, true
	default:
		return DiscoveredDevice{}, false
	}
}

// classifyLighting applies the dimmer heuristic.
//
// WHAT 2..10 is the dimming level range, except 8 which means
// "temporized on" and must never count as dimmer evidence. WHAT 0, 1
// and 8 are plain switching. A dimension report carrying a level value
// is always dimmer evidence.
func classifyLighting(f own.Frame, d DiscoveredDevice) (DiscoveredDevice, bool) {
	d.Category = CategoryLight

	if f.Kind == own.KindDimension {
		if len(f.Values) == 0 {
			return DiscoveredDevice{}, false
		}
		d.Dimmable = true
		d.Subtype = "dimmer"
		return d, true
	}

	switch what := f.WhatValue(); {
	case what == 0 || what == 1 || what == 8:
		d.Subtype = "on_off"
		return d, true
	case what >= 2 && what <= 10:
		d.Dimmable = true
		d.Subtype = "dimmer"
		return d, true
	default:
		return DiscoveredDevice{}, false
	}
}

// classifyAutomation distinguishes advanced covers (position feedback
// via dimension reports) from basic up/stop/down ones.
func classifyAutomation(f own.Frame, d DiscoveredDevice) (DiscoveredDevice, bool) {
	d.Category = CategoryCover
	if f.Kind == own.KindDimension {
		d.Advanced = true
		d.Subtype = "advanced"
	} else {
		d.Subtype = "basic"
	}
	return d, true
}

// classifyClimate maps thermostat replies. WHAT 0 on the climate bus is
// conditioning mode, which is evidence for a heat+cool unit; everything
// else defaults to a heating-only standalone thermostat.
func classifyClimate(f own.Frame, d DiscoveredDevice) (DiscoveredDevice, bool) {
	d.Category = CategoryClimate
	d.Subtype = "thermostat"
	d.Heating = true
	d.Standalone = true

	if f.Kind == own.KindCommand && f.WhatValue() == 0 {
		d.Cooling = true
	}
	return d, true
}

// classifyScenario maps CEN/CEN+ replies to a scenario button
// controller. A command frame names the pressed button, which becomes
// the observed button set; otherwise the default set applies.
func classifyScenario(f own.Frame, d DiscoveredDevice) (DiscoveredDevice, bool) {
	d.Category = CategoryButton
	d.Subtype = "scenario_control"

	if f.Kind == own.KindCommand {
		if n := f.WhatValue(); n >= 0 {
			d.Buttons = strconv.Itoa(n)
		}
	}
	return d, true
}
