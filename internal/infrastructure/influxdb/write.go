package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteFrameActivity records one frame seen on the bus.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - gateway: Gateway MAC the frame arrived on
//   - who: Subsystem identifier from the frame (e.g. "1" for lighting)
//   - kind: Frame kind (command, dimension, status_request, ack, nack)
func (c *Client) WriteFrameActivity(gateway string, who string, kind string) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"bus_frames",
		map[string]string{
			"gateway": gateway,
			"who":     who,
			"kind":    kind,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteProbeResult records the outcome of a single discovery probe.
//
// Parameters:
//   - gateway: Gateway MAC the probe was sent to
//   - subsystem: Probed subsystem name (lighting, automation, ...)
//   - answered: Whether any response arrived before the probe timeout
//   - rtt: Time from send to first response (zero when unanswered)
func (c *Client) WriteProbeResult(gateway string, subsystem string, answered bool, rtt time.Duration) {
	if !c.IsConnected() {
		return
	}

	fields := map[string]interface{}{
		"answered": answered,
	}
	if answered {
		fields["rtt_ms"] = float64(rtt.Milliseconds())
	}

	point := write.NewPoint(
		"discovery_probes",
		map[string]string{
			"gateway":   gateway,
			"subsystem": subsystem,
		},
		fields,
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteSessionSummary records a finished discovery session.
//
// Parameters:
//   - gateway: Gateway MAC the session ran against
//   - state: Terminal session state (completed, failed)
//   - found: Number of devices discovered
//   - written: Number of devices persisted to the config store
//   - duration: Session wall-clock duration
func (c *Client) WriteSessionSummary(gateway string, state string, found int, written int, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"discovery_sessions",
		map[string]string{
			"gateway": gateway,
			"state":   state,
		},
		map[string]interface{}{
			"devices_found":   found,
			"devices_written": written,
			"duration_ms":     float64(duration.Milliseconds()),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("system_stats",
//	    map[string]string{"host": "core-01"},
//	    map[string]interface{}{"cpu_percent": 45.2, "memory_mb": 512})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
