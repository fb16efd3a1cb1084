package rtspcam

import (
	"context"
	"fmt"
	"time"

	"github.com/bluenviron/rtspcam/pkg/auth"
	"github.com/bluenviron/rtspcam/pkg/base"
	"github.com/bluenviron/rtspcam/pkg/liberrors"
)

// requestState is the state of a request with respect to authentication.
type requestState int

const (
	// the request has been sent once.
	requestStateSent requestState = iota

	// the request has been sent again with new credentials.
	requestStateRetrying
)

// sentRequest describes how a request was sent.
type sentRequest struct {
	withAuth bool
	nonce    string
}

// Do writes a request and reads its response.
// The connection is opened if needed.
//
// When the server requests authentication, the request is sent again once
// with credentials taken from the request URL; the response to the second
// attempt is returned. Credentials that are rejected result in ErrClientAuth.
//
// If ctx is canceled, Do returns without waiting for the response,
// which is still consumed by the client.
func (c *Client) Do(ctx context.Context, req *base.Request) (*base.Response, error) {
	state := requestStateSent

	for {
		res, sent, err := c.roundTrip(ctx, req)
		if err != nil {
			return nil, err
		}

		if res.StatusCode != base.StatusUnauthorized && res.StatusCode != base.StatusForbidden {
			return res, nil
		}

		if res.StatusCode == base.StatusUnauthorized && state == requestStateSent {
			if _, ok := res.Header["WWW-Authenticate"]; ok {
				sender, err := newSender(req, res)
				if err != nil {
					c.clearSender()
					return nil, liberrors.ErrClientAuth{Err: err}
				}

				// retry when credentials were not sent, or when the server issued
				// a fresh challenge to credentials computed by the stored sender
				if !sent.withAuth || (sent.nonce != "" && sender.Nonce() != sent.nonce) {
					c.mutex.Lock()
					c.sender = sender
					c.mutex.Unlock()

					state = requestStateRetrying
					continue
				}
			}
		}

		c.clearSender()
		return nil, liberrors.ErrClientAuth{
			Err: liberrors.ErrClientBadStatusCode{Code: res.StatusCode, Message: res.StatusMessage},
		}
	}
}

func newSender(req *base.Request, res *base.Response) (*auth.Sender, error) {
	var user, pass string
	if req.URL != nil && req.URL.User != nil {
		user = req.URL.User.Username()
		pass, _ = req.URL.User.Password()
	}

	sender := &auth.Sender{
		WWWAuth: res.Header["WWW-Authenticate"],
		User:    user,
		Pass:    pass,
	}
	err := sender.Initialize()
	if err != nil {
		return nil, fmt.Errorf("unable to setup authentication: %w", err)
	}

	return sender, nil
}

func (c *Client) clearSender() {
	c.mutex.Lock()
	c.sender = nil
	c.mutex.Unlock()
}

// prepareRequest fills the headers of a request and registers it on the connection.
func (c *Client) prepareRequest(req *base.Request) (*clientConn, *pendingRequest, sentRequest, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	cc := c.conn
	if cc == nil {
		return nil, nil, sentRequest{}, liberrors.ErrClientConnection{Err: fmt.Errorf("connection closed")}
	}

	if req.Header == nil {
		req.Header = make(base.Header)
	}

	if _, ok := req.Header["Session"]; !ok && c.session != nil {
		req.Header["Session"] = base.HeaderValue{c.session.id}
	}

	req.Header["User-Agent"] = base.HeaderValue{c.UserAgent}

	var sent sentRequest

	if c.sender != nil {
		c.sender.AddAuthorization(req)
		sent.withAuth = true
		sent.nonce = c.sender.Nonce()
	} else if _, ok := req.Header["Authorization"]; ok {
		sent.withAuth = true
	}

	pr := cc.register(req)

	return cc, pr, sent, nil
}

func (c *Client) roundTrip(ctx context.Context, req *base.Request) (*base.Response, sentRequest, error) {
	err := c.Connect(ctx)
	if err != nil {
		return nil, sentRequest{}, err
	}

	cc, pr, sent, err := c.prepareRequest(req)
	if err != nil {
		return nil, sent, err
	}

	c.OnRequest(req)

	err = cc.writeRequest(req)
	if err != nil {
		// the pending request is failed too
		cc.fail(err)
	}

	timer := time.NewTimer(c.ReadTimeout)

	select {
	case r := <-pr.res:
		timer.Stop()
		return r.res, sent, r.err

	case <-timer.C:
		cc.fail(liberrors.ErrClientResponseTimeout{})
		r := <-pr.res
		return r.res, sent, r.err

	case <-ctx.Done():
		// keep enforcing the response timeout in background
		go func() {
			select {
			case <-pr.res:
				timer.Stop()
			case <-timer.C:
				cc.fail(liberrors.ErrClientResponseTimeout{})
			}
		}()
		return nil, sent, ctx.Err()
	}
}
