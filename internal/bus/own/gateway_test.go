package own

import (
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"
)

// fakeGateway listens on loopback and scripts the command-session
// handshake for one client connection.
type fakeGateway struct {
	t        *testing.T
	listener net.Listener

	// connCh delivers the accepted connection once the handshake is done.
	connCh chan net.Conn
}

func newFakeGateway(t *testing.T, confirm string) *fakeGateway {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	g := &fakeGateway{
		t:        t,
		listener: listener,
		connCh:   make(chan net.Conn, 1),
	}
	t.Cleanup(func() { listener.Close() })

	go func() {
		conn, err := listener.Accept()
		if err != nil {
			return
		}

		// Greeting, then wait for the session request, then confirm.
		if _, err := conn.Write([]byte(FrameACK)); err != nil {
			conn.Close()
			return
		}
		if got := readWireFrame(conn); got != "*99*0##" {
			conn.Close()
			return
		}
		if _, err := conn.Write([]byte(confirm)); err != nil {
			conn.Close()
			return
		}

		g.connCh <- conn
	}()

	return g
}

func (g *fakeGateway) addr() (host string, port int) {
	addr := g.listener.Addr().(*net.TCPAddr)
	return addr.IP.String(), addr.Port
}

// readWireFrame reads one ##-terminated frame off a raw connection.
func readWireFrame(conn net.Conn) string {
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		if _, err := conn.Read(buf); err != nil {
			return ""
		}
		sb.WriteByte(buf[0])
		if strings.HasSuffix(sb.String(), frameEnd) {
			return sb.String()
		}
	}
}

func dialFake(t *testing.T, g *fakeGateway) *GatewayClient {
	t.Helper()

	host, port := g.addr()
	client, err := Dial(context.Background(), GatewayConfig{
		MAC:  "00:03:50:01:aa:bb",
		Host: host,
		Port: port,
	})
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

func TestDialHandshake(t *testing.T) {
	g := newFakeGateway(t, FrameACK)
	client := dialFake(t, g)

	if !client.IsConnected() {
		t.Error("IsConnected() = false after successful handshake")
	}
}

func TestDialHandshakeRefused(t *testing.T) {
	g := newFakeGateway(t, FrameNACK)
	host, port := g.addr()

	_, err := Dial(context.Background(), GatewayConfig{MAC: "m", Host: host, Port: port})
	if !errors.Is(err, ErrHandshakeFailed) {
		t.Fatalf("Dial error = %v, want ErrHandshakeFailed", err)
	}
}

func TestDialAuthenticationRequired(t *testing.T) {
	// A password-protected gateway answers the session request with a
	// nonce instead of ACK.
	g := newFakeGateway(t, "*#603245##")
	host, port := g.addr()

	_, err := Dial(context.Background(), GatewayConfig{MAC: "m", Host: host, Port: port})
	if !errors.Is(err, ErrHandshakeFailed) {
		t.Fatalf("Dial error = %v, want ErrHandshakeFailed", err)
	}
}

func TestDialConnectionRefused(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	host, port := listener.Addr().(*net.TCPAddr).IP.String(), listener.Addr().(*net.TCPAddr).Port
	listener.Close()

	_, err = Dial(context.Background(), GatewayConfig{
		MAC: "m", Host: host, Port: port,
		ConnectTimeout: 2 * time.Second,
	})
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Dial error = %v, want ErrConnectionFailed", err)
	}
}

func TestSendAndReceive(t *testing.T) {
	g := newFakeGateway(t, FrameACK)
	client := dialFake(t, g)

	conn := <-g.connCh
	defer conn.Close()

	probe := NewStatusRequest("1", WhereGeneral)
	if err := client.Send(context.Background(), probe); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := readWireFrame(conn); got != "*#1*0##" {
		t.Errorf("gateway received %q, want *#1*0##", got)
	}

	// Two frames in one TCP segment must come out as two lines.
	if _, err := conn.Write([]byte("*1*1*15##*#*1##")); err != nil {
		t.Fatalf("write: %v", err)
	}

	expect := []string{"*1*1*15##", "*#*1##"}
	for _, want := range expect {
		select {
		case got := <-client.Lines():
			if got != want {
				t.Errorf("Lines() = %q, want %q", got, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}

	stats := client.Stats()
	if stats.FramesTx != 1 {
		t.Errorf("FramesTx = %d, want 1", stats.FramesTx)
	}
	if stats.FramesRx != 2 {
		t.Errorf("FramesRx = %d, want 2", stats.FramesRx)
	}
}

func TestLinesClosedOnDisconnect(t *testing.T) {
	g := newFakeGateway(t, FrameACK)
	client := dialFake(t, g)

	conn := <-g.connCh
	conn.Close()

	select {
	case _, ok := <-client.Lines():
		if ok {
			t.Error("expected closed Lines channel, got a frame")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Lines channel not closed after peer disconnect")
	}

	// Connected state should follow shortly after the read loop exits.
	deadline := time.Now().Add(2 * time.Second)
	for client.IsConnected() {
		if time.Now().After(deadline) {
			t.Fatal("IsConnected still true after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSendAfterClose(t *testing.T) {
	g := newFakeGateway(t, FrameACK)
	client := dialFake(t, g)

	if err := client.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Close is idempotent.
	if err := client.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	err := client.Send(context.Background(), NewStatusRequest("1", WhereGeneral))
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send after Close = %v, want ErrNotConnected", err)
	}
}

func TestSendCancelledContext(t *testing.T) {
	g := newFakeGateway(t, FrameACK)
	client := dialFake(t, g)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := client.Send(ctx, NewStatusRequest("1", WhereGeneral))
	if !errors.Is(err, ErrSendFailed) {
		t.Errorf("Send with cancelled context = %v, want ErrSendFailed", err)
	}
}
