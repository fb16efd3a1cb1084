// Package transport contains functions to negotiate the RTP transport of a track.
package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/bluenviron/rtspcam/pkg/base"
	"github.com/bluenviron/rtspcam/pkg/liberrors"
)

// Resolver resolves host names into addresses.
// *net.Resolver implements this interface.
type Resolver interface {
	LookupHost(ctx context.Context, host string) ([]string, error)
}

// Params are the parameters of a Transport header sent by a server.
type Params map[string]string

// Parse parses the parameters of a Transport header.
// Parameters without a value are stored with an empty value.
func Parse(v string) Params {
	p := make(Params)

	for _, part := range strings.Split(v, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		k, val, _ := strings.Cut(part, "=")
		p[k] = val
	}

	return p
}

// ServerPorts returns the server ports.
// When only a port is provided, the RTCP port is equal to the RTP port.
func (p Params) ServerPorts() (int, int, error) {
	v, ok := p["server_port"]
	if !ok {
		return 0, 0, fmt.Errorf("server_port is missing")
	}

	rtp, rtcp, hasRTCP := strings.Cut(v, "-")

	rtpPort, err := parsePort(rtp)
	if err != nil {
		return 0, 0, err
	}

	if !hasRTCP {
		return rtpPort, rtpPort, nil
	}

	rtcpPort, err := parsePort(rtcp)
	if err != nil {
		return 0, 0, err
	}

	return rtpPort, rtcpPort, nil
}

func parsePort(s string) (int, error) {
	tmp, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid port (%v)", s)
	}
	return int(tmp), nil
}

// Result is the outcome of a transport negotiation.
type Result struct {
	// IP address of the media source.
	Source string

	// server RTP port.
	RTPPort int

	// server RTCP port.
	RTCPPort int
}

// Negotiate extracts the media source and server ports from a Transport header.
// When the source is a host name, it is resolved once with the resolver.
func Negotiate(ctx context.Context, resolver Resolver, v base.HeaderValue) (*Result, error) {
	if len(v) == 0 {
		return nil, liberrors.ErrClientTransportParse{Err: fmt.Errorf("value not provided")}
	}

	p := Parse(v[0])

	rtpPort, rtcpPort, err := p.ServerPorts()
	if err != nil {
		return nil, liberrors.ErrClientTransportParse{Value: v[0], Err: err}
	}

	source, ok := p["source"]
	if !ok || source == "" {
		return nil, liberrors.ErrClientTransportParse{Value: v[0], Err: fmt.Errorf("source is missing")}
	}

	// bracketed IPv6 literal
	if strings.HasPrefix(source, "[") && strings.HasSuffix(source, "]") {
		if ip := net.ParseIP(source[1 : len(source)-1]); ip != nil {
			source = ip.String()
		}
	}

	if net.ParseIP(source) == nil {
		addrs, err := resolver.LookupHost(ctx, source)
		if err != nil {
			return nil, liberrors.ErrClientResolution{Host: source, Err: err}
		}
		if len(addrs) == 0 {
			return nil, liberrors.ErrClientResolution{Host: source, Err: fmt.Errorf("no addresses found")}
		}
		source = addrs[0]
	}

	return &Result{
		Source:   source,
		RTPPort:  rtpPort,
		RTCPPort: rtcpPort,
	}, nil
}
