package discovery

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ferralux/myhome-core/internal/bus/own"
)

// Default session parameters, overridable via Config.
const (
	// defaultMaxInFlight bounds concurrently outstanding probes so the
	// sweep never floods the gateway.
	defaultMaxInFlight = 3

	// defaultSendSpacing is the minimum gap between probe sends.
	defaultSendSpacing = 500 * time.Millisecond

	// defaultSessionTimeout is the wall-clock cap on one session.
	defaultSessionTimeout = 60 * time.Second
)

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// DeviceWriter persists discovered devices. Implemented by the config
// store writer.
type DeviceWriter interface {
	// Apply merges the device into the config document. Returns true
	// when the device was added, false when it was already present.
	Apply(ctx context.Context, d DiscoveredDevice) (bool, error)
}

// Recorder is the slice of the bus recorder sessions use.
type Recorder interface {
	RecordFrame(gateway string, f own.Frame)
	MarkClassified(ctx context.Context, gateway, who, where string) error
	RecordSession(ctx context.Context, rec own.SessionRecord) error
}

// Metrics receives time-series samples. Satisfied by the InfluxDB
// client; writes are fire-and-forget.
type Metrics interface {
	WriteFrameActivity(gateway, who, kind string)
	WriteProbeResult(gateway, subsystem string, answered bool, rtt time.Duration)
	WriteSessionSummary(gateway, state string, found, written int, duration time.Duration)
}

// Config tunes session behaviour.
type Config struct {
	// ProbeTimeout bounds how long one probe collects replies.
	// Default: own.DefaultProbeTimeout.
	ProbeTimeout time.Duration

	// SessionTimeout caps a whole session. Default: 60 seconds.
	SessionTimeout time.Duration

	// MaxInFlight bounds concurrently outstanding probes. Default: 3.
	MaxInFlight int

	// SendSpacing is the minimum gap between sends. Default: 500ms.
	SendSpacing time.Duration
}

func (c Config) withDefaults() Config {
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = own.DefaultProbeTimeout
	}
	if c.SessionTimeout == 0 {
		c.SessionTimeout = defaultSessionTimeout
	}
	if c.MaxInFlight <= 0 {
		c.MaxInFlight = defaultMaxInFlight
	}
	if c.SendSpacing == 0 {
		c.SendSpacing = defaultSendSpacing
	}
	return c
}

// Orchestrator owns discovery sessions: one active session per gateway,
// any number of gateways in parallel. Collaborators (writer, recorder,
// sink, metrics) are optional; a nil collaborator is skipped.
//
// Thread Safety: all methods are safe for concurrent use.
type Orchestrator struct {
	cfg    Config
	logger Logger

	writer   DeviceWriter
	recorder Recorder
	sink     EventSink
	metrics  Metrics

	mu       sync.Mutex
	gateways map[string]own.Transport
	sessions map[string]*session

	// baseCtx outlives any caller: sessions run under it, not under the
	// context passed to Start, so a short-lived caller (an HTTP request)
	// never tears down a running session. Cancelled by StopAll.
	baseCtx    context.Context
	baseCancel context.CancelFunc

	wg sync.WaitGroup
}

// NewOrchestrator creates an orchestrator with no gateways registered.
func NewOrchestrator(cfg Config, logger Logger) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	return &Orchestrator{
		cfg:        cfg.withDefaults(),
		logger:     logger,
		gateways:   make(map[string]own.Transport),
		sessions:   make(map[string]*session),
		baseCtx:    ctx,
		baseCancel: cancel,
	}
}

// SetWriter wires the config store writer.
func (o *Orchestrator) SetWriter(w DeviceWriter) { o.writer = w }

// SetRecorder wires the bus traffic recorder.
func (o *Orchestrator) SetRecorder(r Recorder) { o.recorder = r }

// SetEventSink wires the discovery event sink.
func (o *Orchestrator) SetEventSink(s EventSink) { o.sink = s }

// SetMetrics wires the time-series sink.
func (o *Orchestrator) SetMetrics(m Metrics) { o.metrics = m }

// RegisterGateway makes a gateway available for discovery. Registering
// the same identity again replaces the transport.
func (o *Orchestrator) RegisterGateway(gateway string, t own.Transport) {
	o.mu.Lock()
	o.gateways[gateway] = t
	o.mu.Unlock()
}

// Gateways returns the registered gateway identities.
func (o *Orchestrator) Gateways() []string {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]string, 0, len(o.gateways))
	for gw := range o.gateways {
		out = append(out, gw)
	}
	return out
}

// Start launches a discovery session for one gateway. The caller's
// context governs only this call; the session itself runs under the
// orchestrator's own lifetime and keeps going after the caller returns.
//
// Returns:
//   - SessionSnapshot: the freshly started session
//   - error: ErrUnknownGateway, ErrNotConnected, or ErrDiscoveryRunning
func (o *Orchestrator) Start(ctx context.Context, gateway string) (SessionSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return SessionSnapshot{}, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	transport, ok := o.gateways[gateway]
	if !ok {
		return SessionSnapshot{}, fmt.Errorf("%w: %s", ErrUnknownGateway, gateway)
	}
	if !transport.IsConnected() {
		return SessionSnapshot{}, fmt.Errorf("%w: %s", ErrNotConnected, gateway)
	}

	if existing, ok := o.sessions[gateway]; ok && !existing.snapshot().State.Terminal() {
		return SessionSnapshot{}, fmt.Errorf("%w: %s", ErrDiscoveryRunning, gateway)
	}

	s := newSession(o, gateway, transport)
	o.sessions[gateway] = s

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		s.run(o.baseCtx)
	}()

	o.logInfo("discovery started", "gateway", gateway, "session", s.id)
	return s.snapshot(), nil
}

// StartAll starts sessions on every registered gateway. Per-gateway
// failures (already running, disconnected) are collected; a failure on
// one gateway never aborts the others.
func (o *Orchestrator) StartAll(ctx context.Context) (started []SessionSnapshot, errs []error) {
	for _, gw := range o.Gateways() {
		snap, err := o.Start(ctx, gw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		started = append(started, snap)
	}
	return started, errs
}

// Stop requests a graceful stop of the gateway's session. Stopping a
// gateway with no active session is a no-op.
func (o *Orchestrator) Stop(gateway string) {
	o.mu.Lock()
	s := o.sessions[gateway]
	o.mu.Unlock()

	if s != nil {
		s.requestStop()
	}
}

// StopAll stops every active session and waits for them to finish.
// The orchestrator is done after StopAll; further Start calls would run
// under a cancelled lifetime.
func (o *Orchestrator) StopAll() {
	o.mu.Lock()
	for _, s := range o.sessions {
		s.requestStop()
	}
	o.mu.Unlock()

	o.baseCancel()
	o.wg.Wait()
}

// Sessions returns a snapshot per gateway: the active session, or the
// most recently finished one.
func (o *Orchestrator) Sessions() []SessionSnapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]SessionSnapshot, 0, len(o.sessions))
	for _, s := range o.sessions {
		out = append(out, s.snapshot())
	}
	return out
}

// Session returns the snapshot for one gateway.
func (o *Orchestrator) Session(gateway string) (SessionSnapshot, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	s, ok := o.sessions[gateway]
	if !ok {
		return SessionSnapshot{}, false
	}
	return s.snapshot(), true
}

// SendRaw validates a literal frame string and puts it on the gateway's
// bus. Malformed input is rejected before anything is sent.
//
// Returns:
//   - error: *own.DecodeError on malformed input, ErrUnknownGateway, or
//     a transport send error
func (o *Orchestrator) SendRaw(ctx context.Context, gateway, raw string) error {
	o.mu.Lock()
	transport, ok := o.gateways[gateway]
	o.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownGateway, gateway)
	}

	f, err := own.DecodeFrame(raw)
	if err != nil {
		return err
	}
	return transport.Send(ctx, f)
}

func (o *Orchestrator) logDebug(msg string, keysAndValues ...any) {
	if o.logger != nil {
		o.logger.Debug(msg, keysAndValues...)
	}
}

func (o *Orchestrator) logInfo(msg string, keysAndValues ...any) {
	if o.logger != nil {
		o.logger.Info(msg, keysAndValues...)
	}
}

func (o *Orchestrator) logWarn(msg string, keysAndValues ...any) {
	if o.logger != nil {
		o.logger.Warn(msg, keysAndValues...)
	}
}

func (o *Orchestrator) logError(msg string, err error, keysAndValues ...any) {
	if o.logger != nil {
		kv := append([]any{"error", err}, keysAndValues...)
		o.logger.Error(msg, kv...)
	}
}
