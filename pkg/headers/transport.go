package headers

import (
	"strconv"
	"strings"

	"github.com/bluenviron/rtspcam/pkg/base"
)

// TransportProtocol is a transport protocol.
type TransportProtocol int

// transport protocols.
const (
	TransportProtocolUDP TransportProtocol = iota
	TransportProtocolTCP
)

// Transport is the Transport header of a SETUP request.
// The Transport header of the response is handled by the transport package,
// since it needs to resolve the source host too.
type Transport struct {
	// protocol of the stream
	Protocol TransportProtocol

	// whether the stream is unicast
	Unicast bool

	// (optional) client ports
	ClientPorts *[2]int

	// (optional) interleaved frame IDs
	InterleavedIDs *[2]int
}

func marshalPorts(p [2]int) string {
	return strconv.FormatInt(int64(p[0]), 10) + "-" + strconv.FormatInt(int64(p[1]), 10)
}

// Marshal encodes a Transport header.
func (h Transport) Marshal() base.HeaderValue {
	var rets []string

	if h.Protocol == TransportProtocolUDP {
		rets = append(rets, "RTP/AVP")
	} else {
		rets = append(rets, "RTP/AVP/TCP")
	}

	if h.Unicast {
		rets = append(rets, "unicast")
	}

	if h.ClientPorts != nil {
		rets = append(rets, "client_port="+marshalPorts(*h.ClientPorts))
	}

	if h.InterleavedIDs != nil {
		rets = append(rets, "interleaved="+marshalPorts(*h.InterleavedIDs))
	}

	return base.HeaderValue{strings.Join(rets, ";")}
}
