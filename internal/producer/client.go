package producer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"
)

// DefaultDialTimeout bounds a whole Send when the caller's context has no
// earlier deadline.
const DefaultDialTimeout = 2 * time.Second

// ErrRejected means the relay reset the connection, usually because another
// producer connection was still open.
var ErrRejected = errors.New("relay rejected connection")

// Client sends relay messages. Every Send opens a new connection, writes the
// whole message and half-closes. It then waits for the relay to close its
// side so the next Send does not race the previous connection for the
// relay's single slot. Nothing is ever read back.
type Client struct {
	addr    string
	timeout time.Duration
}

// NewClient creates a client for the relay at addr.
func NewClient(addr string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	return &Client{addr: addr, timeout: timeout}
}

// Addr returns the relay address.
func (c *Client) Addr() string {
	return c.addr
}

// Send delivers text as one relay message. An empty text still opens and
// closes a connection, which the relay ignores. A reset from the relay is
// reported as ErrRejected.
func (c *Client) Send(ctx context.Context, text string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", c.addr)
	if err != nil {
		return fmt.Errorf("dial relay %s: %w", c.addr, classify(err))
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	if text != "" {
		if _, err := io.WriteString(conn, text); err != nil {
			return fmt.Errorf("write relay %s: %w", c.addr, classify(err))
		}
	}

	tcp, ok := conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	if err := tcp.CloseWrite(); err != nil {
		return fmt.Errorf("close relay %s: %w", c.addr, classify(err))
	}

	// The relay never writes; wait for its FIN.
	var scratch [64]byte
	for {
		_, err := conn.Read(scratch[:])
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			// Written but not acknowledged by a close; the relay has the bytes.
			return nil
		}
		return fmt.Errorf("close relay %s: %w", c.addr, classify(err))
	}
}

// SendRequest formats req and sends it.
func (c *Client) SendRequest(ctx context.Context, req *http.Request) error {
	return c.Send(ctx, FormatRequest(req))
}

func classify(err error) error {
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) {
		return fmt.Errorf("%w: %v", ErrRejected, err)
	}
	return err
}
