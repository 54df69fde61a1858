// Package discovery walks the bus looking for devices.
//
// The Orchestrator runs at most one session per gateway. A session
// sends the probe table's general status requests with a bounded
// in-flight window, consumes every inbound frame for the session's
// lifetime, classifies replies into devices (see Classify) and hands
// each new device to the config writer exactly once. Ambient traffic
// between probes is classified too, so devices that talk on their own
// are found without ever being probed.
//
// Subsystem silence and NACKs are expected outcomes, not errors; only
// a dead transport fails a session, and devices persisted before the
// failure stay persisted.
package discovery
