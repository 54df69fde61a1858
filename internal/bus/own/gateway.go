package own

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// closeOnce wraps a channel with sync.Once to prevent double-close panics.
type closeOnce struct {
	ch   chan struct{}
	once sync.Once
}

func newCloseOnce() *closeOnce {
	return &closeOnce{ch: make(chan struct{})}
}

func (c *closeOnce) Close() {
	c.once.Do(func() { close(c.ch) })
}

func (c *closeOnce) Done() <-chan struct{} {
	return c.ch
}

// Default timeouts and sizes for gateway communication.
const (
	// defaultConnectTimeout is the maximum time to wait for dial + handshake.
	defaultConnectTimeout = 10 * time.Second

	// defaultWriteTimeout is the timeout for write operations.
	defaultWriteTimeout = 5 * time.Second

	// handshakeReadTimeout bounds each handshake read.
	handshakeReadTimeout = 5 * time.Second

	// linesQueueSize is the buffer on the Lines channel. Inbound frames
	// beyond this are dropped, not blocked on, so a slow consumer can
	// never stall the read loop.
	linesQueueSize = 256

	// maxFrameBytes caps a single frame on the wire. Anything longer is
	// stream corruption, which is fatal.
	maxFrameBytes = 1024

	// sessionCommandMode asks the gateway for a command (bidirectional)
	// session during the handshake.
	sessionCommandMode = "*99*0##"
)

// GatewayConfig holds connection settings for one OpenWebNet gateway.
type GatewayConfig struct {
	// MAC identifies the gateway across restarts (config keys, topics).
	MAC string

	// Host and Port locate the gateway's command server.
	Host string
	Port int

	// ConnectTimeout is the maximum time for dial + handshake.
	// Default: 10 seconds.
	ConnectTimeout time.Duration
}

// GatewayStats holds operational statistics.
type GatewayStats struct {
	FramesTx      uint64
	FramesRx      uint64
	FramesDropped uint64 // Frames dropped due to full Lines buffer
	ErrorsTotal   uint64
	LastActivity  time.Time
	Connected     bool
}

// Logger interface for optional logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Transport is the bus connection surface discovery sessions run over.
// It exists so sessions can be tested against an in-memory bus.
type Transport interface {
	Send(ctx context.Context, f Frame) error
	Lines() <-chan string
	IsConnected() bool
	Close() error
}

// Ensure GatewayClient implements Transport.
var _ Transport = (*GatewayClient)(nil)

// GatewayClient is a TCP connection to an OpenWebNet gateway's command
// server.
//
// Thread Safety:
//   - All methods are safe for concurrent use.
//
// Lifecycle:
//   - The client does not reconnect. When the connection is lost the
//     Lines channel is closed; the owner decides whether to dial again.
type GatewayClient struct {
	cfg  GatewayConfig
	conn net.Conn

	// reader is shared between handshake and receive loop so frames
	// buffered during the handshake are not lost.
	reader *bufio.Reader

	// Connection state
	connMu    sync.RWMutex
	connected bool

	// Inbound frames, one raw line per element. Closed on fatal read
	// error or Close.
	lines chan string

	// Shutdown coordination
	done *closeOnce
	wg   sync.WaitGroup

	// Logger (optional)
	logger   Logger
	loggerMu sync.RWMutex

	// Statistics (atomic for performance)
	framesTx      atomic.Uint64
	framesRx      atomic.Uint64
	framesDropped atomic.Uint64
	errorsTotal   atomic.Uint64
	lastActivity  atomic.Int64 // Unix timestamp
}

// Dial connects to a gateway and performs the OpenWebNet handshake.
//
// The handshake on the command port is:
//  1. gateway greets with ACK
//  2. client requests a command session (*99*0##)
//  3. gateway confirms with ACK
//
// Gateways that require OPEN password authentication reply with a nonce
// instead of the second ACK; those are rejected here.
//
// Parameters:
//   - ctx: Context for cancellation (used for dial + handshake)
//   - cfg: Connection configuration
//
// Returns:
//   - *GatewayClient: Connected client with the receive loop running
//   - error: ErrConnectionFailed or ErrHandshakeFailed (wrapped)
func Dial(ctx context.Context, cfg GatewayConfig) (*GatewayClient, error) {
	if cfg.ConnectTimeout == 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}

	connectCtx := ctx
	if connectCtx == nil {
		connectCtx = context.Background()
	}
	connectCtx, cancel := context.WithTimeout(connectCtx, cfg.ConnectTimeout)
	defer cancel()

	address := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))

	var dialer net.Dialer
	conn, err := dialer.DialContext(connectCtx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("%w: dial %s: %w", ErrConnectionFailed, address, err)
	}

	client := &GatewayClient{
		cfg:    cfg,
		conn:   conn,
		reader: bufio.NewReaderSize(conn, maxFrameBytes),
		done:   newCloseOnce(),
		lines:  make(chan string, linesQueueSize),
	}
	client.lastActivity.Store(time.Now().Unix())

	if err := client.handshake(connectCtx); err != nil {
		conn.Close()
		return nil, err
	}

	client.connMu.Lock()
	client.connected = true
	client.connMu.Unlock()

	client.wg.Add(1)
	go client.receiveLoop()

	return client, nil
}

// handshake performs the command-session handshake on a fresh connection.
func (c *GatewayClient) handshake(ctx context.Context) error {
	greeting, err := c.readHandshakeFrame(ctx, c.reader)
	if err != nil {
		return fmt.Errorf("%w: greeting: %w", ErrHandshakeFailed, err)
	}
	if greeting != FrameACK {
		return fmt.Errorf("%w: unexpected greeting %q", ErrHandshakeFailed, greeting)
	}

	if err := c.writeRaw(ctx, sessionCommandMode); err != nil {
		return fmt.Errorf("%w: session request: %w", ErrHandshakeFailed, err)
	}

	confirm, err := c.readHandshakeFrame(ctx, c.reader)
	if err != nil {
		return fmt.Errorf("%w: confirmation: %w", ErrHandshakeFailed, err)
	}
	switch confirm {
	case FrameACK:
		return nil
	case FrameNACK:
		return fmt.Errorf("%w: gateway refused command session", ErrHandshakeFailed)
	default:
		// A *#nonce## reply means OPEN password auth is required.
		return fmt.Errorf("%w: authentication required (got %q)", ErrHandshakeFailed, confirm)
	}
}

// readHandshakeFrame reads one ##-terminated frame during the handshake.
func (c *GatewayClient) readHandshakeFrame(ctx context.Context, reader *bufio.Reader) (string, error) {
	deadline := time.Now().Add(handshakeReadTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return "", fmt.Errorf("set read deadline: %w", err)
	}

	var sb strings.Builder
	for {
		b, err := reader.ReadByte()
		if err != nil {
			return "", fmt.Errorf("read: %w", err)
		}
		sb.WriteByte(b)
		if sb.Len() > maxFrameBytes {
			return "", fmt.Errorf("frame exceeds %d bytes", maxFrameBytes)
		}
		if strings.HasSuffix(sb.String(), frameEnd) {
			return sb.String(), nil
		}
	}
}

// receiveLoop reads ##-terminated frames and queues them on the Lines
// channel until the connection dies or Close is called.
func (c *GatewayClient) receiveLoop() {
	defer c.wg.Done()
	defer close(c.lines)

	// Clear the handshake deadline so the loop can block indefinitely.
	c.conn.SetReadDeadline(time.Time{})

	scanner := bufio.NewScanner(c.reader)
	scanner.Buffer(make([]byte, maxFrameBytes), maxFrameBytes)
	scanner.Split(scanFrames)

	for {
		select {
		case <-c.done.Done():
			return
		default:
		}

		// No read deadline here: the bus can legitimately be silent for
		// minutes. A dead peer surfaces as a write failure or TCP reset.
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil && !c.isClosed() {
				c.logError("read failed", err)
				c.errorsTotal.Add(1)
			}
			c.handleDisconnect()
			return
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		c.framesRx.Add(1)
		c.lastActivity.Store(time.Now().Unix())

		select {
		case c.lines <- line:
		default:
			// Buffer full, drop to keep the read loop moving.
			c.framesDropped.Add(1)
			c.errorsTotal.Add(1)
			c.logError("lines buffer full, dropping frame", nil)
		}
	}
}

// scanFrames is a bufio.SplitFunc yielding one ##-terminated frame per
// token, terminator included.
func scanFrames(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if i := bytes.Index(data, []byte(frameEnd)); i >= 0 {
		end := i + len(frameEnd)
		return end, data[:end], nil
	}
	if atEOF && len(data) > 0 {
		// Trailing partial frame, discard.
		return len(data), nil, nil
	}
	return 0, nil, nil
}

// handleDisconnect marks the connection as lost.
func (c *GatewayClient) handleDisconnect() {
	c.connMu.Lock()
	wasConnected := c.connected
	c.connected = false
	c.connMu.Unlock()

	if wasConnected {
		c.logInfo("gateway connection lost", "gateway", c.cfg.MAC)
	}
}

// isClosed returns true if the client has been closed.
func (c *GatewayClient) isClosed() bool {
	select {
	case <-c.done.Done():
		return true
	default:
		return false
	}
}

// Close shuts the connection down.
//
// The Lines channel is closed once the receive loop exits. Safe to call
// multiple times.
//
// Returns:
//   - error: nil (closing is best-effort)
func (c *GatewayClient) Close() error {
	c.done.Close()

	c.connMu.Lock()
	c.connected = false
	c.connMu.Unlock()

	// Unblocks the pending read in receiveLoop.
	if c.conn != nil {
		c.conn.Close()
	}

	c.wg.Wait()

	c.logInfo("gateway connection closed", "gateway", c.cfg.MAC)
	return nil
}

// Send puts a frame on the bus.
//
// Parameters:
//   - ctx: Context for cancellation
//   - f: Frame to send
//
// Returns:
//   - error: ErrNotConnected, or ErrSendFailed (wrapped) on write failure
func (c *GatewayClient) Send(ctx context.Context, f Frame) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if err := c.writeRaw(ctx, f.Encode()); err != nil {
		return err
	}
	c.framesTx.Add(1)
	c.lastActivity.Store(time.Now().Unix())
	return nil
}

// writeRaw writes one raw frame with a deadline.
func (c *GatewayClient) writeRaw(ctx context.Context, raw string) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrSendFailed, ctx.Err())
	default:
	}

	deadline := time.Now().Add(defaultWriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.connMu.RLock()
	conn := c.conn
	c.connMu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}

	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("%w: set deadline: %w", ErrSendFailed, err)
	}

	if _, err := conn.Write([]byte(raw)); err != nil {
		c.errorsTotal.Add(1)
		c.handleDisconnect()
		return fmt.Errorf("%w: write: %w", ErrSendFailed, err)
	}
	return nil
}

// Lines returns the inbound frame channel. One raw ##-terminated frame
// per element; closed when the connection dies.
func (c *GatewayClient) Lines() <-chan string {
	return c.lines
}

// SetLogger sets the logger for this client.
func (c *GatewayClient) SetLogger(logger Logger) {
	c.loggerMu.Lock()
	c.logger = logger
	c.loggerMu.Unlock()
}

// IsConnected returns true while the TCP session is up.
func (c *GatewayClient) IsConnected() bool {
	c.connMu.RLock()
	defer c.connMu.RUnlock()
	return c.connected
}

// Stats returns current operational statistics.
func (c *GatewayClient) Stats() GatewayStats {
	return GatewayStats{
		FramesTx:      c.framesTx.Load(),
		FramesRx:      c.framesRx.Load(),
		FramesDropped: c.framesDropped.Load(),
		ErrorsTotal:   c.errorsTotal.Load(),
		LastActivity:  time.Unix(c.lastActivity.Load(), 0),
		Connected:     c.IsConnected(),
	}
}

// logInfo logs an info message if logger is set.
func (c *GatewayClient) logInfo(msg string, keysAndValues ...any) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Info(msg, keysAndValues...)
	}
}

// logError logs an error message if logger is set.
func (c *GatewayClient) logError(msg string, err error) {
	c.loggerMu.RLock()
	logger := c.logger
	c.loggerMu.RUnlock()

	if logger != nil {
		logger.Error(msg, "error", err)
	}
}
