package discovery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ferralux/myhome-core/internal/bus/own"
)

// sweepInterval is how often the session checks probe timeouts and
// tops up the in-flight window.
const sweepInterval = 100 * time.Millisecond

// SessionState is the lifecycle state of a discovery session.
type SessionState string

const (
	StateRunning   SessionState = "running"
	StateStopping  SessionState = "stopping"
	StateCompleted SessionState = "completed"
	StateFailed    SessionState = "failed"
)

// Terminal reports whether the state is final.
func (s SessionState) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// SessionSnapshot is an immutable view of a session's progress.
type SessionSnapshot struct {
	ID             string       `json:"id"`
	Gateway        string       `json:"gateway"`
	State          SessionState `json:"state"`
	DevicesFound   int          `json:"devices_found"`
	DevicesWritten int          `json:"devices_written"`
	ProbesSent     int          `json:"probes_sent"`
	ProbesTimedOut int          `json:"probes_timed_out"`
	StartedAt      time.Time    `json:"started_at"`
	FinishedAt     time.Time    `json:"finished_at,omitempty"`
}

// inflightProbe tracks one probe awaiting its timeout. A probe stays in
// flight for its full window even after replies arrive, because a
// general status request fans out to every device on the subsystem.
type inflightProbe struct {
	spec     own.ProbeSpec
	sentAt   time.Time
	answered bool
}

// session drives discovery on one gateway. All mutable state is owned
// by the run goroutine except the snapshot fields guarded by mu.
type session struct {
	id        string
	gateway   string
	transport own.Transport
	orch      *Orchestrator

	// Probe scheduling (run goroutine only).
	pending  []own.ProbeSpec
	inflight map[string]*inflightProbe // keyed by WHO
	lastSend time.Time

	// Dedup set: where addresses already classified (run goroutine only).
	seen map[string]bool

	// Snapshot state, guarded by mu.
	mu             sync.Mutex
	state          SessionState
	devicesFound   int
	devicesWritten int
	probesSent     int
	probesTimedOut int
	startedAt      time.Time
	finishedAt     time.Time

	stopCh   chan struct{}
	stopOnce sync.Once
}

func newSession(orch *Orchestrator, gateway string, transport own.Transport) *session {
	probes := own.Probes()
	for i := range probes {
		probes[i].Timeout = orch.cfg.ProbeTimeout
	}

	return &session{
		id:        uuid.NewString(),
		gateway:   gateway,
		transport: transport,
		orch:      orch,
		pending:   probes,
		inflight:  make(map[string]*inflightProbe),
		seen:      make(map[string]bool),
		state:     StateRunning,
		startedAt: time.Now(),
		stopCh:    make(chan struct{}),
	}
}

// requestStop asks the session to wind down. Safe to call any number of
// times, from any goroutine.
func (s *session) requestStop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		if s.state == StateRunning {
			s.state = StateStopping
		}
		s.mu.Unlock()
		close(s.stopCh)
	})
}

func (s *session) snapshot() SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return SessionSnapshot{
		ID:             s.id,
		Gateway:        s.gateway,
		State:          s.state,
		DevicesFound:   s.devicesFound,
		DevicesWritten: s.devicesWritten,
		ProbesSent:     s.probesSent,
		ProbesTimedOut: s.probesTimedOut,
		StartedAt:      s.startedAt,
		FinishedAt:     s.finishedAt,
	}
}

// run is the session loop: it paces probe sends, consumes inbound
// frames, expires probe timeouts and finishes when the sweep is done,
// the session is stopped, the wall clock runs out, or the transport
// dies.
func (s *session) run(ctx context.Context) {
	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()

	deadline := time.NewTimer(s.orch.cfg.SessionTimeout)
	defer deadline.Stop()

	s.topUpProbes(ctx)

	for {
		select {
		case <-ctx.Done():
			s.finish(ctx, StateCompleted)
			return

		case <-s.stopCh:
			s.finish(ctx, StateCompleted)
			return

		case <-deadline.C:
			s.orch.logWarn("discovery session hit wall clock limit",
				"gateway", s.gateway, "session", s.id)
			s.finish(ctx, StateCompleted)
			return

		case line, ok := <-s.transport.Lines():
			if !ok {
				s.orch.logError("gateway transport lost during discovery", nil,
					"gateway", s.gateway, "session", s.id)
				s.finish(ctx, StateFailed)
				return
			}
			s.handleLine(ctx, line)

		case <-sweep.C:
			s.expireProbes()
			s.topUpProbes(ctx)
			if len(s.pending) == 0 && len(s.inflight) == 0 {
				s.finish(ctx, StateCompleted)
				return
			}
		}
	}
}

// topUpProbes sends pending probes while respecting the in-flight
// window and the send spacing.
func (s *session) topUpProbes(ctx context.Context) {
	for len(s.pending) > 0 && len(s.inflight) < s.orch.cfg.MaxInFlight {
		if time.Since(s.lastSend) < s.orch.cfg.SendSpacing {
			return
		}

		spec := s.pending[0]
		frame := spec.Frame()

		if err := s.transport.Send(ctx, frame); err != nil {
			s.orch.logError("probe send failed", err,
				"gateway", s.gateway, "subsystem", string(spec.Subsystem))
			// Transport trouble surfaces on the Lines channel; leave
			// the probe pending and let the loop decide.
			return
		}

		s.pending = s.pending[1:]
		s.lastSend = time.Now()
		s.inflight[spec.Who] = &inflightProbe{spec: spec, sentAt: s.lastSend}

		s.mu.Lock()
		s.probesSent++
		s.mu.Unlock()

		s.orch.logDebug("probe sent",
			"gateway", s.gateway, "subsystem", string(spec.Subsystem), "frame", frame.Encode())
	}
}

// expireProbes retires probes whose collection window has passed.
// Silence is a normal outcome: the subsystem is absent, not broken.
func (s *session) expireProbes() {
	now := time.Now()
	for who, p := range s.inflight {
		if now.Sub(p.sentAt) < p.spec.Timeout {
			continue
		}
		delete(s.inflight, who)

		if s.orch.metrics != nil {
			s.orch.metrics.WriteProbeResult(s.gateway, string(p.spec.Subsystem), p.answered, now.Sub(p.sentAt))
		}
		if !p.answered {
			s.mu.Lock()
			s.probesTimedOut++
			s.mu.Unlock()
			s.orch.logWarn("subsystem silent, moving on",
				"gateway", s.gateway, "subsystem", string(p.spec.Subsystem))
		}
	}
}

// handleLine decodes one raw line and feeds it through recording,
// probe correlation and classification.
func (s *session) handleLine(ctx context.Context, line string) {
	frame, err := own.DecodeFrame(line)
	if err != nil {
		s.orch.logDebug("undecodable frame ignored",
			"gateway", s.gateway, "raw", line, "error", err.Error())
		return
	}

	if s.orch.recorder != nil {
		s.orch.recorder.RecordFrame(s.gateway, frame)
	}
	if s.orch.metrics != nil {
		s.orch.metrics.WriteFrameActivity(s.gateway, frame.Who, frame.Kind.String())
	}

	if frame.IsNack() {
		// A NACK answers the most recent unanswered probe: the
		// subsystem refused, which is unavailability, not failure.
		s.resolveNack()
		return
	}
	if frame.IsAck() {
		return
	}

	// Attribute the frame to a subsystem: the matching in-flight probe
	// first, the frame's own WHO for passive traffic.
	subsystem, solicited := s.attributeFrame(frame)
	if subsystem == "" {
		return
	}
	if solicited {
		s.inflight[frame.Who].answered = true
	}

	device, ok := Classify(subsystem, frame)
	if !ok {
		s.orch.logDebug("frame carried no classification evidence",
			"gateway", s.gateway, "frame", frame.String())
		return
	}

	s.emit(ctx, device)
}

// attributeFrame picks the subsystem a frame belongs to.
func (s *session) attributeFrame(frame own.Frame) (subsystem own.Subsystem, solicited bool) {
	if p, ok := s.inflight[frame.Who]; ok {
		return p.spec.Subsystem, true
	}

	// Passive discovery: ambient traffic between probes still counts.
	spec, err := own.ProbeForWho(frame.Who)
	if err != nil {
		return "", false
	}
	return spec.Subsystem, false
}

// resolveNack marks the newest unanswered in-flight probe as answered
// with nothing.
func (s *session) resolveNack() {
	var newest *inflightProbe
	for _, p := range s.inflight {
		if p.answered {
			continue
		}
		if newest == nil || p.sentAt.After(newest.sentAt) {
			newest = p
		}
	}
	if newest == nil {
		return
	}

	delete(s.inflight, newest.spec.Who)
	if s.orch.metrics != nil {
		s.orch.metrics.WriteProbeResult(s.gateway, string(newest.spec.Subsystem), false, time.Since(newest.sentAt))
	}
	s.orch.logDebug("subsystem refused probe",
		"gateway", s.gateway, "subsystem", string(newest.spec.Subsystem))
}

// emit dedups, persists and announces one discovered device.
func (s *session) emit(ctx context.Context, device DiscoveredDevice) {
	where := device.Where.String()
	if s.seen[where] {
		return
	}
	s.seen[where] = true

	device.Gateway = s.gateway

	s.mu.Lock()
	s.devicesFound++
	s.mu.Unlock()

	written := false
	if s.orch.writer != nil {
		added, err := s.orch.writer.Apply(ctx, device)
		if err != nil {
			s.orch.logError("persisting discovered device failed", err,
				"gateway", s.gateway, "where", where)
		} else if added {
			written = true
			s.mu.Lock()
			s.devicesWritten++
			s.mu.Unlock()
		}
	}

	if s.orch.recorder != nil {
		frameWho := deviceWho(device.Category)
		if err := s.orch.recorder.MarkClassified(ctx, s.gateway, frameWho, where); err != nil {
			s.orch.logError("marking traffic classified failed", err, "where", where)
		}
	}

	if s.orch.sink != nil {
		s.orch.sink.DeviceDiscovered(device)
	}

	s.orch.logInfo("device discovered",
		"gateway", s.gateway,
		"where", where,
		"platform", device.Category.Platform(),
		"subtype", device.Subtype,
		"written", written)
}

// deviceWho maps a category back to the WHO whose traffic produced it.
func deviceWho(c Category) string {
	switch c {
	case CategoryLight:
		return own.WhoLighting
	case CategoryCover:
		return own.WhoAutomation
	case CategoryClimate:
		return own.WhoClimate
	case CategorySensor:
		return own.WhoEnergy
	case CategoryButton:
		return own.WhoCEN
	case CategorySwitch:
		return own.WhoAuxiliary
	case CategoryBinarySensor:
		return own.WhoAlarm
	default:
		return ""
	}
}

// finish moves the session to a terminal state exactly once and fans
// out the completion event. Persistence uses its own context so a
// cancelled session still records its outcome.
func (s *session) finish(_ context.Context, terminal SessionState) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.mu.Lock()
	if s.state.Terminal() {
		s.mu.Unlock()
		return
	}
	s.state = terminal
	s.finishedAt = time.Now()
	s.mu.Unlock()

	snap := s.snapshot()

	if s.orch.recorder != nil {
		rec := own.SessionRecord{
			ID:             snap.ID,
			Gateway:        snap.Gateway,
			State:          string(snap.State),
			DevicesFound:   snap.DevicesFound,
			DevicesWritten: snap.DevicesWritten,
			ProbesSent:     snap.ProbesSent,
			ProbesTimedOut: snap.ProbesTimedOut,
			StartedAt:      snap.StartedAt,
			FinishedAt:     snap.FinishedAt,
		}
		if err := s.orch.recorder.RecordSession(ctx, rec); err != nil {
			s.orch.logError("persisting session record failed", err, "session", snap.ID)
		}
	}

	if s.orch.metrics != nil {
		s.orch.metrics.WriteSessionSummary(snap.Gateway, string(snap.State),
			snap.DevicesFound, snap.DevicesWritten, snap.FinishedAt.Sub(snap.StartedAt))
	}

	if s.orch.sink != nil {
		s.orch.sink.SessionFinished(snap)
	}

	s.orch.logInfo("discovery finished",
		"gateway", snap.Gateway,
		"session", snap.ID,
		"state", string(snap.State),
		"devices_found", snap.DevicesFound,
		"devices_written", snap.DevicesWritten,
		"probes_timed_out", snap.ProbesTimedOut)
}
