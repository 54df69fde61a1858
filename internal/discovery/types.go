package discovery

import (
	"time"

	"github.com/ferralux/myhome-core/internal/bus/own"
)

// Category is the platform a discovered device belongs to in the config
// document. The set is closed; the classifier never invents new ones.
type Category string

const (
	CategoryLight        Category = "light"
	CategoryCover        Category = "cover"
	CategoryClimate      Category = "climate"
	CategorySensor       Category = "sensor"
	CategoryButton       Category = "button"
	CategoryBinarySensor Category = "binary_sensor"
	CategorySwitch       Category = "switch"
)

// Platform returns the config document key for the category.
func (c Category) Platform() string {
	return string(c)
}

// Default suggested-config values.
const (
	// defaultShutterRun is the travel time in seconds suggested for
	// advanced covers until the user calibrates it.
	defaultShutterRun = "20"

	// defaultRefreshPeriod is the polling interval in seconds suggested
	// for power meters.
	defaultRefreshPeriod = "30"

	// defaultButtons is the button set assumed for scenario controllers
	// whose responses do not enumerate their own buttons.
	defaultButtons = "1,2,3,4"
)

// DiscoveredDevice is one classified device. Produced by Classify,
// consumed once by the config writer; immutable after creation.
type DiscoveredDevice struct {
	Gateway  string
	Where    own.Where
	Category Category

	// Subtype is the human-readable refinement within the category,
	// e.g. "dimmer" vs "on_off".
	Subtype string

	// Capability hints, meaningful per category.
	Dimmable   bool   // light
	Advanced   bool   // cover
	Heating    bool   // climate
	Cooling    bool   // climate
	Standalone bool   // climate
	Buttons    string // button

	DiscoveredAt time.Time
}

// SuggestedConfig returns the category-specific fields the config writer
// persists alongside the address. Values are strings so the document
// stays hand-editable without type surprises.
func (d DiscoveredDevice) SuggestedConfig() map[string]string {
	fields := map[string]string{
		"where": d.Where.String(),
	}

	switch d.Category {
	case CategoryLight:
		fields["dimmable"] = boolField(d.Dimmable)
	case CategoryCover:
		fields["advanced"] = boolField(d.Advanced)
		if d.Advanced {
			fields["shutter_run"] = defaultShutterRun
		}
	case CategoryClimate:
		fields["heat"] = boolField(d.Heating)
		fields["cool"] = boolField(d.Cooling)
		fields["standalone"] = boolField(d.Standalone)
	case CategorySensor:
		fields["refresh_period"] = defaultRefreshPeriod
	case CategoryButton:
		buttons := d.Buttons
		if buttons == "" {
			buttons = defaultButtons
		}
		fields["buttons"] = buttons
	}

	return fields
}

func boolField(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
