/*
Package rtspcam is a RTSP 1.0 client for controlling IP cameras.

It negotiates media descriptions and transports, keeps the control session
alive and reconnects when the control connection breaks.

Examples are available at https://github.com/bluenviron/rtspcam/tree/main/examples
*/
package rtspcam

import (
	"context"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/bluenviron/rtspcam/pkg/auth"
	"github.com/bluenviron/rtspcam/pkg/base"
	"github.com/bluenviron/rtspcam/pkg/description"
	"github.com/bluenviron/rtspcam/pkg/liberrors"
	"github.com/bluenviron/rtspcam/pkg/transport"
)

const (
	errorsBufferSize = 16
)

type clientState int

const (
	clientStateDisconnected clientState = iota
	clientStateConnecting
	clientStateConnected
)

func (s clientState) String() string {
	switch s {
	case clientStateDisconnected:
		return "disconnected"
	case clientStateConnecting:
		return "connecting"
	case clientStateConnected:
		return "connected"
	}
	return "unknown"
}

// connectAttempt is shared by all callers that ask for a connection
// while a dial is in progress.
type connectAttempt struct {
	done chan struct{}
	err  error
}

// Client is a RTSP client.
type Client struct {
	//
	// RTSP parameters (all optional)
	//
	// timeout of responses.
	// A request without a response within this timeout breaks the connection.
	// It defaults to 10 seconds.
	ReadTimeout time.Duration
	// timeout of write operations.
	// It defaults to 10 seconds.
	WriteTimeout time.Duration
	// period of keepalive requests.
	// It is reduced when the server announces a shorter session timeout.
	// It defaults to 5 seconds.
	KeepalivePeriod time.Duration
	// period between attempts of FetchDescription().
	// It defaults to 2 seconds.
	RetryPeriod time.Duration
	// user agent header.
	// It defaults to "rtspcam".
	UserAgent string

	//
	// system functions (all optional)
	//
	// function used to initialize the TCP client.
	// It defaults to (&net.Dialer{}).DialContext.
	DialContext func(ctx context.Context, network, address string) (net.Conn, error)
	// resolver of media source hosts.
	// It defaults to net.DefaultResolver.
	Resolver transport.Resolver

	//
	// callbacks (all optional)
	//
	// called before every request.
	OnRequest func(*base.Request)
	// called after every response.
	OnResponse func(*base.Response)

	//
	// private
	//

	scheme          string
	host            string
	ctx             context.Context
	ctxCancel       func()
	wg              sync.WaitGroup
	mutex           sync.Mutex
	state           clientState
	attempt         *connectAttempt
	conn            *clientConn
	sender          *auth.Sender
	session         *clientSession
	useGetParameter bool
	baseURL         *base.URL
	description     *description.Session
	closed          bool
	errorsClosed    bool

	// out
	errors chan error
}

// Start initializes the client.
// The connection is opened by the first request or by Connect().
func (c *Client) Start(scheme string, host string) error {
	// RTSP parameters
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.KeepalivePeriod == 0 {
		c.KeepalivePeriod = 5 * time.Second
	}
	if c.RetryPeriod == 0 {
		c.RetryPeriod = 2 * time.Second
	}
	if c.UserAgent == "" {
		c.UserAgent = "rtspcam"
	}

	// system functions
	if c.DialContext == nil {
		c.DialContext = (&net.Dialer{}).DialContext
	}
	if c.Resolver == nil {
		c.Resolver = net.DefaultResolver
	}

	// callbacks
	if c.OnRequest == nil {
		c.OnRequest = func(*base.Request) {
		}
	}
	if c.OnResponse == nil {
		c.OnResponse = func(*base.Response) {
		}
	}

	if scheme != "rtsp" {
		return liberrors.ErrClientInvalidScheme{Scheme: scheme}
	}

	// add default port
	_, _, err := net.SplitHostPort(host)
	if err != nil {
		host = net.JoinHostPort(strings.Trim(host, "[]"), "554")
	}

	ctx, ctxCancel := context.WithCancel(context.Background())

	c.scheme = scheme
	c.host = host
	c.ctx = ctx
	c.ctxCancel = ctxCancel
	c.baseURL = &base.URL{
		Scheme: scheme,
		Host:   host,
		Path:   "/",
	}
	c.errors = make(chan error, errorsBufferSize)

	return nil
}

// Close closes the connection and stops the session keepalive.
// Pending requests fail with ErrClientTerminated.
// The channel returned by Errors() is closed.
func (c *Client) Close() {
	c.mutex.Lock()
	if c.closed {
		c.mutex.Unlock()
		return
	}
	c.closed = true
	c.ctxCancel()
	c.stopSession()
	cc := c.conn
	c.mutex.Unlock()

	if cc != nil {
		cc.shutdown(liberrors.ErrClientTerminated{})
	}

	c.wg.Wait()

	c.mutex.Lock()
	c.errorsClosed = true
	close(c.errors)
	c.mutex.Unlock()
}

// Errors returns a channel that receives asynchronous faults:
// broken connections, failed reconnections and failed keepalives.
// Faults are dropped when nobody reads them.
func (c *Client) Errors() <-chan error {
	return c.errors
}

func (c *Client) publish(err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.errorsClosed {
		return
	}

	select {
	case c.errors <- err:
	default:
	}
}

// Connect opens the control connection.
// If the connection is already open it returns immediately; if a connection
// attempt is in progress, it waits for the outcome of that attempt.
func (c *Client) Connect(ctx context.Context) error {
	c.mutex.Lock()

	if c.closed {
		c.mutex.Unlock()
		return liberrors.ErrClientTerminated{}
	}

	if c.state == clientStateConnected {
		c.mutex.Unlock()
		return nil
	}

	a := c.attempt
	if a == nil {
		a = &connectAttempt{done: make(chan struct{})}
		c.attempt = a
		c.state = clientStateConnecting
		c.wg.Add(1)
		go c.runConnect(a)
	}

	c.mutex.Unlock()

	select {
	case <-a.done:
		return a.err

	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) runConnect(a *connectAttempt) {
	defer c.wg.Done()
	defer close(a.done)

	ctx, cancel := context.WithTimeout(c.ctx, c.ReadTimeout)
	defer cancel()

	nconn, err := c.DialContext(ctx, "tcp", c.host)

	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.attempt = nil

	if c.closed {
		if err == nil {
			nconn.Close()
		}
		c.state = clientStateDisconnected
		a.err = liberrors.ErrClientTerminated{}
		return
	}

	if err != nil {
		c.state = clientStateDisconnected
		a.err = liberrors.ErrClientConnection{Err: err}
		return
	}

	c.conn = newClientConn(c, nconn)
	c.state = clientStateConnected

	c.wg.Add(1)
	go c.conn.runReader()
}

// reconnect starts a connection attempt in background.
func (c *Client) reconnect() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.closed {
		return
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		err := c.Connect(c.ctx)
		if err != nil && c.ctx.Err() == nil {
			c.publish(err)
		}
	}()
}
