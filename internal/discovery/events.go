package discovery

import (
	"encoding/json"
	"time"

	"github.com/ferralux/myhome-core/internal/infrastructure/mqtt"
)

// EventSink receives discovery lifecycle events. Implementations must
// not block; the session goroutine calls them inline.
type EventSink interface {
	// DeviceDiscovered fires once per new device, after the config
	// writer accepted it.
	DeviceDiscovered(d DiscoveredDevice)

	// SessionFinished fires when a session reaches a terminal state.
	SessionFinished(s SessionSnapshot)
}

// Publisher is the slice of the MQTT client the event sink needs.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// MQTTSink publishes discovery events as JSON.
//
// Topics:
//
//	myhome/discovery/<gateway>/device     one message per device
//	myhome/discovery/<gateway>/completed  one message per finished session
type MQTTSink struct {
	pub    Publisher
	topics mqtt.Topics
	qos    byte
	logger Logger
}

// NewMQTTSink wraps an MQTT client as an EventSink.
func NewMQTTSink(pub Publisher, qos byte, logger Logger) *MQTTSink {
	return &MQTTSink{pub: pub, qos: qos, logger: logger}
}

// deviceEvent is the wire form of a device-discovered event.
type deviceEvent struct {
	Gateway      string            `json:"gateway"`
	Where        string            `json:"where"`
	Platform     string            `json:"platform"`
	Subtype      string            `json:"subtype"`
	Config       map[string]string `json:"config"`
	DiscoveredAt time.Time         `json:"discovered_at"`
}

// sessionEvent is the wire form of a discovery-completed event.
type sessionEvent struct {
	ID             string    `json:"id"`
	Gateway        string    `json:"gateway"`
	State          string    `json:"state"`
	DevicesFound   int       `json:"devices_found"`
	DevicesWritten int       `json:"devices_written"`
	ProbesSent     int       `json:"probes_sent"`
	ProbesTimedOut int       `json:"probes_timed_out"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
}

// DeviceDiscovered publishes a device event. Failures are logged, never
// propagated; event delivery is best-effort.
func (s *MQTTSink) DeviceDiscovered(d DiscoveredDevice) {
	if !s.pub.IsConnected() {
		return
	}

	payload, err := json.Marshal(deviceEvent{
		Gateway:      d.Gateway,
		Where:        d.Where.String(),
		Platform:     d.Category.Platform(),
		Subtype:      d.Subtype,
		Config:       d.SuggestedConfig(),
		DiscoveredAt: d.DiscoveredAt,
	})
	if err != nil {
		s.logError("marshal device event", err)
		return
	}

	if err := s.pub.Publish(s.topics.DiscoveryDevice(d.Gateway), payload, s.qos, false); err != nil {
		s.logError("publish device event", err)
	}
}

// SessionFinished publishes a completion event.
func (s *MQTTSink) SessionFinished(snap SessionSnapshot) {
	if !s.pub.IsConnected() {
		return
	}

	payload, err := json.Marshal(sessionEvent{
		ID:             snap.ID,
		Gateway:        snap.Gateway,
		State:          string(snap.State),
		DevicesFound:   snap.DevicesFound,
		DevicesWritten: snap.DevicesWritten,
		ProbesSent:     snap.ProbesSent,
		ProbesTimedOut: snap.ProbesTimedOut,
		StartedAt:      snap.StartedAt,
		FinishedAt:     snap.FinishedAt,
	})
	if err != nil {
		s.logError("marshal session event", err)
		return
	}

	if err := s.pub.Publish(s.topics.DiscoveryCompleted(snap.Gateway), payload, s.qos, false); err != nil {
		s.logError("publish session event", err)
	}
}

func (s *MQTTSink) logError(msg string, err error) {
	if s.logger != nil {
		s.logger.Error(msg, "error", err)
	}
}
