package rtspcam

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bluenviron/rtspcam/pkg/base"
	"github.com/bluenviron/rtspcam/pkg/description"
	"github.com/bluenviron/rtspcam/pkg/liberrors"
)

func findBaseURL(res *base.Response, u *base.URL) (*base.URL, error) {
	// use Content-Base
	if cb, ok := res.Header["Content-Base"]; ok {
		if len(cb) != 1 {
			return nil, liberrors.ErrClientProtocol{Err: fmt.Errorf("invalid Content-Base: '%v'", cb)}
		}

		ret, err := base.ParseURL(cb[0])
		if err != nil {
			return nil, liberrors.ErrClientProtocol{Err: fmt.Errorf("invalid Content-Base: '%v'", cb)}
		}

		// add credentials
		ret.User = u.User

		return ret, nil
	}

	// use URL of request
	return u, nil
}

// Options sends an OPTIONS request.
func (c *Client) Options(ctx context.Context, u *base.URL) (*base.Response, error) {
	res, err := c.Do(ctx, &base.Request{
		Method: base.Options,
		URL:    u,
	})
	if err != nil {
		return nil, err
	}

	if res.StatusCode != base.StatusOK {
		// since this method is not implemented by every RTSP server,
		// return only if status code is not 404
		if res.StatusCode == base.StatusNotFound {
			return res, nil
		}
		return nil, liberrors.ErrClientProtocol{
			Err: liberrors.ErrClientBadStatusCode{Code: res.StatusCode, Message: res.StatusMessage},
		}
	}

	return res, nil
}

// Describe sends a DESCRIBE request and extracts the tracks of the stream.
// Tracks are stored by the client the first time they are extracted,
// and can be retrieved with AudioTrack() and VideoTrack().
func (c *Client) Describe(ctx context.Context, u *base.URL) (*description.Session, *base.Response, error) {
	res, err := c.Do(ctx, &base.Request{
		Method: base.Describe,
		URL:    u,
		Header: base.Header{
			"Accept": base.HeaderValue{"application/sdp"},
		},
	})
	if err != nil {
		return nil, nil, err
	}

	if res.StatusCode != base.StatusOK {
		return nil, res, liberrors.ErrClientProtocol{
			Err: liberrors.ErrClientBadStatusCode{Code: res.StatusCode, Message: res.StatusMessage},
		}
	}

	ct, ok := res.Header["Content-Type"]
	if !ok || len(ct) != 1 {
		return nil, res, liberrors.ErrClientProtocol{Err: liberrors.ErrClientContentTypeMissing{}}
	}

	// strip encoding information from Content-Type header
	ct = base.HeaderValue{strings.TrimSpace(strings.Split(ct[0], ";")[0])}

	if ct[0] != "application/sdp" {
		return nil, res, liberrors.ErrClientProtocol{Err: liberrors.ErrClientContentTypeUnsupported{CT: ct}}
	}

	baseURL, err := findBaseURL(res, u)
	if err != nil {
		return nil, res, err
	}

	var desc description.Session
	err = desc.Unmarshal(res.Body, baseURL)
	if err != nil {
		return nil, res, liberrors.ErrClientProtocol{Err: liberrors.ErrClientDescriptionInvalid{Err: err}}
	}

	c.mutex.Lock()
	if c.description == nil {
		c.description = &desc
		c.baseURL = desc.BaseURL
	}
	c.mutex.Unlock()

	return &desc, res, nil
}

// FetchDescription calls Describe until it succeeds.
// Attempts are spaced by RetryPeriod and the connection is reopened when needed.
// Authentication errors are returned immediately.
func (c *Client) FetchDescription(ctx context.Context, u *base.URL) (*description.Session, error) {
	for {
		desc, _, err := c.Describe(ctx, u)
		if err == nil {
			return desc, nil
		}

		var authErr liberrors.ErrClientAuth
		if errors.As(err, &authErr) {
			return nil, err
		}

		var termErr liberrors.ErrClientTerminated
		if errors.As(err, &termErr) {
			return nil, err
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		t := time.NewTimer(c.RetryPeriod)
		select {
		case <-t.C:
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		}
	}
}

// AudioTrack returns the first audio track of the stream.
func (c *Client) AudioTrack() (*description.Track, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.description == nil || c.description.Audio == nil {
		return nil, liberrors.ErrClientNoTrack{Type: string(description.MediaTypeAudio)}
	}
	return c.description.Audio, nil
}

// VideoTrack returns the first video track of the stream.
func (c *Client) VideoTrack() (*description.Track, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if c.description == nil || c.description.Video == nil {
		return nil, liberrors.ErrClientNoTrack{Type: string(description.MediaTypeVideo)}
	}
	return c.description.Video, nil
}
