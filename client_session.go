package rtspcam

import (
	"context"
	"time"

	"github.com/bluenviron/rtspcam/pkg/base"
	"github.com/bluenviron/rtspcam/pkg/headers"
	"github.com/bluenviron/rtspcam/pkg/liberrors"
)

// clientSession is a RTSP session and its keepalive routine.
// The routine runs as long as the session is set.
type clientSession struct {
	id        string
	period    time.Duration
	ctx       context.Context
	ctxCancel func()
}

// keepalivePeriod returns the configured period,
// reduced to 80% of the session timeout announced by the server.
func keepalivePeriod(period time.Duration, sx *headers.Session) time.Duration {
	if sx.Timeout != nil && *sx.Timeout > 0 {
		limit := time.Duration(*sx.Timeout) * time.Second * 8 / 10
		if limit < period {
			return limit
		}
	}
	return period
}

// setSession replaces the session and restarts the keepalive.
// It must be called with the client mutex locked.
func (c *Client) setSession(sx *headers.Session) {
	c.stopSession()

	if c.closed {
		return
	}

	ctx, ctxCancel := context.WithCancel(c.ctx)

	s := &clientSession{
		id:        sx.Session,
		period:    keepalivePeriod(c.KeepalivePeriod, sx),
		ctx:       ctx,
		ctxCancel: ctxCancel,
	}
	c.session = s

	c.wg.Add(1)
	go c.runKeepalive(s)
}

// stopSession clears the session and stops the keepalive.
// It must be called with the client mutex locked.
func (c *Client) stopSession() {
	if c.session == nil {
		return
	}

	c.session.ctxCancel()
	c.session = nil
}

// SessionID returns the current session ID, or an empty string.
func (c *Client) SessionID() string {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.session == nil {
		return ""
	}
	return c.session.id
}

func (c *Client) runKeepalive(s *clientSession) {
	defer c.wg.Done()

	t := time.NewTicker(s.period)
	defer t.Stop()

	for {
		select {
		case <-t.C:
			err := c.doKeepalive(s)
			if err != nil && s.ctx.Err() == nil {
				c.publish(liberrors.ErrClientKeepalive{Err: err})
			}

		case <-s.ctx.Done():
			return
		}
	}
}

func (c *Client) doKeepalive(s *clientSession) error {
	c.mutex.Lock()
	method := base.Options
	if c.useGetParameter {
		method = base.GetParameter
	}
	u := c.baseURL
	c.mutex.Unlock()

	res, err := c.Do(s.ctx, &base.Request{
		Method: method,
		URL:    u,
		Header: base.Header{
			"Session": base.HeaderValue{s.id},
		},
	})
	if err != nil {
		return err
	}

	// some servers reply to keepalives with 404
	if res.StatusCode != base.StatusOK && res.StatusCode != base.StatusNotFound {
		return liberrors.ErrClientBadStatusCode{Code: res.StatusCode, Message: res.StatusMessage}
	}

	return nil
}
