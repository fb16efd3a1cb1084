package rtspcam

import (
	"context"

	"github.com/bluenviron/rtspcam/pkg/base"
	"github.com/bluenviron/rtspcam/pkg/headers"
	"github.com/bluenviron/rtspcam/pkg/liberrors"
	"github.com/bluenviron/rtspcam/pkg/transport"
)

func (c *Client) aggregateURL() *base.URL {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.baseURL
}

func (c *Client) doAggregate(ctx context.Context, method base.Method, header base.Header) (*base.Response, error) {
	res, err := c.Do(ctx, &base.Request{
		Method: method,
		URL:    c.aggregateURL(),
		Header: header,
	})
	if err != nil {
		return nil, err
	}

	if res.StatusCode != base.StatusOK {
		return nil, liberrors.ErrClientProtocol{
			Err: liberrors.ErrClientBadStatusCode{Code: res.StatusCode, Message: res.StatusMessage},
		}
	}

	return res, nil
}

// Setup sends a SETUP request for a track.
// The camera is asked to send RTP and RTCP packets to the given local ports;
// the returned result contains the address of the media source.
func (c *Client) Setup(
	ctx context.Context,
	trackURL *base.URL,
	rtpPort int,
	rtcpPort int,
) (*transport.Result, error) {
	th := headers.Transport{
		Protocol:    headers.TransportProtocolUDP,
		Unicast:     true,
		ClientPorts: &[2]int{rtpPort, rtcpPort},
	}

	res, err := c.Do(ctx, &base.Request{
		Method: base.Setup,
		URL:    trackURL,
		Header: base.Header{
			"Transport": th.Marshal(),
		},
	})
	if err != nil {
		return nil, err
	}

	if res.StatusCode != base.StatusOK {
		return nil, liberrors.ErrClientProtocol{
			Err: liberrors.ErrClientBadStatusCode{Code: res.StatusCode, Message: res.StatusMessage},
		}
	}

	return transport.Negotiate(ctx, c.Resolver, res.Header["Transport"])
}

// Play sends a PLAY request for the whole stream.
func (c *Client) Play(ctx context.Context) (*base.Response, error) {
	return c.doAggregate(ctx, base.Play, base.Header{
		"Range": base.HeaderValue{"npt=0.000-"},
	})
}

// Pause sends a PAUSE request for the whole stream.
func (c *Client) Pause(ctx context.Context) (*base.Response, error) {
	return c.doAggregate(ctx, base.Pause, nil)
}

// Teardown sends a TEARDOWN request for the whole stream.
// The session is cleared and its keepalive stopped, even if the request fails.
func (c *Client) Teardown(ctx context.Context) error {
	c.mutex.Lock()
	hasSession := c.session != nil
	c.mutex.Unlock()

	if !hasSession {
		return nil
	}

	_, err := c.doAggregate(ctx, base.Teardown, nil)

	c.mutex.Lock()
	c.stopSession()
	c.mutex.Unlock()

	return err
}
