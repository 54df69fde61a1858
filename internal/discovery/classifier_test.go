package discovery

import (
	"testing"

	"github.com/ferralux/myhome-core/internal/bus/own"
)

func mustDecode(t *testing.T, raw string) own.Frame {
	t.Helper()
	f, err := own.DecodeFrame(raw)
	if err != nil {
		t.Fatalf("DecodeFrame(%q): %v", raw, err)
	}
	return f
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		subsystem own.Subsystem
		raw       string
		wantOK    bool
		check     func(t *testing.T, d DiscoveredDevice)
	}{
		{
			name:      "dimension level report is a dimmer",
			subsystem: own.SubsystemLighting,
			raw:       "*#1*15*2*50##",
			wantOK:    true,
			check: func(t *testing.T, d DiscoveredDevice) {
				if d.Category != CategoryLight || !d.Dimmable {
					t.Errorf("got %+v, want dimmable light", d)
				}
				if d.Where != "15" {
					t.Errorf("where = %q, want 15", d.Where)
				}
			},
		},
		{
			name:      "what in dimming range is a dimmer",
			subsystem: own.SubsystemLighting,
			raw:       "*1*5*23##",
			wantOK:    true,
			check: func(t *testing.T, d DiscoveredDevice) {
				if !d.Dimmable || d.Subtype != "dimmer" {
					t.Errorf("got %+v, want dimmer", d)
				}
			},
		},
		{
			name:      "temporized on is never a dimmer",
			subsystem: own.SubsystemLighting,
			raw:       "*1*8*25##",
			wantOK:    true,
			check: func(t *testing.T, d DiscoveredDevice) {
				if d.Dimmable {
					t.Errorf("what=8 classified dimmable: %+v", d)
				}
				if d.Subtype != "on_off" {
					t.Errorf("subtype = %q, want on_off", d.Subtype)
				}
			},
		},
		{
			name:      "plain on is a switch",
			subsystem: own.SubsystemLighting,
			raw:       "*1*1*15##",
			wantOK:    true,
			check: func(t *testing.T, d DiscoveredDevice) {
				if d.Dimmable {
					t.Errorf("what=1 classified dimmable: %+v", d)
				}
			},
		},
		{
			name:      "lighting what outside known ranges is unclassifiable",
			subsystem: own.SubsystemLighting,
			raw:       "*1*34*15##",
			wantOK:    false,
		},
		{
			name:      "cover command is a basic cover",
			subsystem: own.SubsystemAutomation,
			raw:       "*2*1*41##",
			wantOK:    true,
			check: func(t *testing.T, d DiscoveredDevice) {
				if d.Category != CategoryCover || d.Advanced {
					t.Errorf("got %+v, want basic cover", d)
				}
			},
		},
		{
			name:      "cover dimension report is an advanced cover",
			subsystem: own.SubsystemAutomation,
			raw:       "*#2*41*10*050*001##",
			wantOK:    true,
			check: func(t *testing.T, d DiscoveredDevice) {
				if !d.Advanced {
					t.Errorf("got %+v, want advanced cover", d)
				}
				cfg := d.SuggestedConfig()
				if cfg["shutter_run"] != "20" {
					t.Errorf("shutter_run = %q, want 20", cfg["shutter_run"])
				}
			},
		},
		{
			name:      "climate conditioning reply enables cooling",
			subsystem: own.SubsystemClimate,
			raw:       "*4*0*7##",
			wantOK:    true,
			check: func(t *testing.T, d DiscoveredDevice) {
				if !d.Heating || !d.Cooling {
					t.Errorf("got %+v, want heat+cool", d)
				}
			},
		},
		{
			name:      "climate dimension defaults to heating only",
			subsystem: own.SubsystemClimate,
			raw:       "*#4*7*14*0250*3##",
			wantOK:    true,
			check: func(t *testing.T, d DiscoveredDevice) {
				if !d.Heating || d.Cooling || !d.Standalone {
					t.Errorf("got %+v, want heating-only standalone", d)
				}
			},
		},
		{
			name:      "any energy reply is a power meter",
			subsystem: own.SubsystemEnergy,
			raw:       "*#18*51*113*4000##",
			wantOK:    true,
			check: func(t *testing.T, d DiscoveredDevice) {
				if d.Category != CategorySensor || d.Subtype != "power_meter" {
					t.Errorf("got %+v, want power meter", d)
				}
				if d.SuggestedConfig()["refresh_period"] != "30" {
					t.Errorf("refresh_period missing: %v", d.SuggestedConfig())
				}
			},
		},
		{
			name:      "cen press names the observed button",
			subsystem: own.SubsystemCEN,
			raw:       "*15*3*92##",
			wantOK:    true,
			check: func(t *testing.T, d DiscoveredDevice) {
				if d.Category != CategoryButton {
					t.Errorf("got %+v, want button", d)
				}
				if d.SuggestedConfig()["buttons"] != "3" {
					t.Errorf("buttons = %q, want 3", d.SuggestedConfig()["buttons"])
				}
			},
		},
		{
			name:      "cen dimension defaults the button set",
			subsystem: own.SubsystemCEN,
			raw:       "*#15*92*1##",
			wantOK:    true,
			check: func(t *testing.T, d DiscoveredDevice) {
				if d.SuggestedConfig()["buttons"] != "1,2,3,4" {
					t.Errorf("buttons = %q, want default set", d.SuggestedConfig()["buttons"])
				}
			},
		},
		{
			name:      "auxiliary reply is a switch",
			subsystem: own.SubsystemAuxiliary,
			raw:       "*9*1*3##",
			wantOK:    true,
			check: func(t *testing.T, d DiscoveredDevice) {
				if d.Category != CategorySwitch {
					t.Errorf("got %+v, want switch", d)
				}
			},
		},
		{
			name:      "alarm reply is a binary sensor",
			subsystem: own.SubsystemAlarm,
			raw:       "*5*1*2##",
			wantOK:    true,
			check: func(t *testing.T, d DiscoveredDevice) {
				if d.Category != CategoryBinarySensor {
					t.Errorf("got %+v, want binary_sensor", d)
				}
			},
		},
		{
			name:      "subsystem mismatch is unclassifiable",
			subsystem: own.SubsystemLighting,
			raw:       "*2*1*41##",
			wantOK:    false,
		},
		{
			name:      "general address is unclassifiable",
			subsystem: own.SubsystemLighting,
			raw:       "*1*1*0##",
			wantOK:    false,
		},
		{
			name:      "group address is unclassifiable",
			subsystem: own.SubsystemLighting,
			raw:       "*1*1*#4##",
			wantOK:    false,
		},
		{
			name:      "status request is not evidence",
			subsystem: own.SubsystemLighting,
			raw:       "*#1*15##",
			wantOK:    false,
		},
		{
			name:      "bare lighting dimension without values is not evidence",
			subsystem: own.SubsystemLighting,
			raw:       "*#1*15*2##",
			wantOK:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, ok := Classify(tt.subsystem, mustDecode(t, tt.raw))
			if ok != tt.wantOK {
				t.Fatalf("Classify(%s, %q) ok = %v, want %v", tt.subsystem, tt.raw, ok, tt.wantOK)
			}
			if ok && tt.check != nil {
				tt.check(t, d)
			}
		})
	}
}

func TestClassifyDeterministic(t *testing.T) {
	frame := mustDecode(t, "*1*5*23##")
	first, ok1 := Classify(own.SubsystemLighting, frame)
	second, ok2 := Classify(own.SubsystemLighting, frame)
	if ok1 != ok2 || first.Category != second.Category || first.Dimmable != second.Dimmable {
		t.Errorf("Classify not deterministic: %+v vs %+v", first, second)
	}
}

func TestSuggestedConfigAlwaysCarriesWhere(t *testing.T) {
	categories := []Category{
		CategoryLight, CategoryCover, CategoryClimate, CategorySensor,
		CategoryButton, CategoryBinarySensor, CategorySwitch,
	}
	for _, c := range categories {
		d := DiscoveredDevice{Where: "15", Category: c}
		if got := d.SuggestedConfig()["where"]; got != "15" {
			t.Errorf("category %s: where = %q, want 15", c, got)
		}
	}
}
