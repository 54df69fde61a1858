package own

import (
	"fmt"
	"time"
)

// Subsystem identifies an OpenWebNet WHO family that discovery probes.
type Subsystem string

const (
	SubsystemLighting   Subsystem = "lighting"
	SubsystemAutomation Subsystem = "automation"
	SubsystemClimate    Subsystem = "climate"
	SubsystemEnergy     Subsystem = "energy"
	SubsystemCEN        Subsystem = "cen"
	SubsystemCENPlus    Subsystem = "cenplus"
	SubsystemAuxiliary  Subsystem = "auxiliary"
	SubsystemAlarm      Subsystem = "alarm"
)

// WHO values per subsystem.
const (
	WhoLighting   = "1"
	WhoAutomation = "2"
	WhoClimate    = "4"
	WhoAlarm      = "5"
	WhoAuxiliary  = "9"
	WhoCEN        = "15"
	WhoEnergy     = "18"
	WhoCENPlus    = "25"
)

// DefaultProbeTimeout bounds how long a probe waits for replies before
// the sweep moves on. Silence is a normal outcome, not an error.
const DefaultProbeTimeout = 5 * time.Second

// ProbeSpec describes one entry in the discovery sweep.
type ProbeSpec struct {
	Subsystem Subsystem
	Who       string
	Order     int
	Timeout   time.Duration
}

// probeTable is the canonical sweep, in send order. Lighting and
// automation lead because they answer fastest on real installations;
// alarm last because some gateways NACK it outright.
var probeTable = []ProbeSpec{
	{Subsystem: SubsystemLighting, Who: WhoLighting, Order: 1, Timeout: DefaultProbeTimeout},
	{Subsystem: SubsystemAutomation, Who: WhoAutomation, Order: 2, Timeout: DefaultProbeTimeout},
	{Subsystem: SubsystemClimate, Who: WhoClimate, Order: 3, Timeout: DefaultProbeTimeout},
	{Subsystem: SubsystemEnergy, Who: WhoEnergy, Order: 4, Timeout: DefaultProbeTimeout},
	{Subsystem: SubsystemCEN, Who: WhoCEN, Order: 5, Timeout: DefaultProbeTimeout},
	{Subsystem: SubsystemCENPlus, Who: WhoCENPlus, Order: 6, Timeout: DefaultProbeTimeout},
	{Subsystem: SubsystemAuxiliary, Who: WhoAuxiliary, Order: 7, Timeout: DefaultProbeTimeout},
	{Subsystem: SubsystemAlarm, Who: WhoAlarm, Order: 8, Timeout: DefaultProbeTimeout},
}

// Probes returns the sweep table in send order. The slice is a copy;
// callers may adjust timeouts without affecting other sessions.
func Probes() []ProbeSpec {
	out := make([]ProbeSpec, len(probeTable))
	copy(out, probeTable)
	return out
}

// ProbeForWho looks up the sweep entry owning a WHO value.
//
// Returns:
//   - ProbeSpec: the matching entry
//   - error: ErrUnknownSubsystem (wrapped) when no entry owns the WHO
func ProbeForWho(who string) (ProbeSpec, error) {
	for _, p := range probeTable {
		if p.Who == who {
			return p, nil
		}
	}
	return ProbeSpec{}, fmt.Errorf("%w: who %q", ErrUnknownSubsystem, who)
}

// Frame builds the general status request this probe puts on the bus.
func (p ProbeSpec) Frame() Frame {
	return NewStatusRequest(p.Who, WhereGeneral)
}
