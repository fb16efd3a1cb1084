// Package description contains objects to describe streams.
package description

import (
	"fmt"
	"strconv"
	"strings"

	psdp "github.com/pion/sdp/v3"

	"github.com/bluenviron/rtspcam/pkg/base"
)

// MediaType is the type of a media stream.
type MediaType string

// media types.
const (
	MediaTypeVideo MediaType = "video"
	MediaTypeAudio MediaType = "audio"
)

// CodecUnknown is the codec of a static payload type that is not in the codec table.
const CodecUnknown = "unknown"

const dynamicPayloadTypeMin = 96

// static payload types, RFC 3551.
var staticCodecs = map[uint8]struct {
	codec     string
	clockRate int
}{
	0: {"PCMU", 8000},
	8: {"PCMA", 8000},
}

// Track describes a media track of the camera.
type Track struct {
	// Media type.
	Type MediaType

	// RTP payload type.
	PayloadType uint8

	// Codec name. Empty when a dynamic payload type has no rtpmap.
	Codec string

	// Clock rate. Zero when unknown.
	ClockRate int

	// Whether the track is a back channel, i.e. media flows from the client to the camera.
	BackChannel bool

	// Absolute control URL.
	Control *base.URL
}

func getRTPMap(attributes []psdp.Attribute, payloadType uint8) (string, int, bool) {
	for _, attr := range attributes {
		if attr.Key != "rtpmap" {
			continue
		}

		pt, enc, ok := strings.Cut(strings.TrimSpace(attr.Value), " ")
		if !ok {
			continue
		}

		tmp, err := strconv.ParseUint(pt, 10, 8)
		if err != nil || uint8(tmp) != payloadType {
			continue
		}

		parts := strings.Split(enc, "/")
		clockRate := 0
		if len(parts) >= 2 {
			if v, err := strconv.ParseUint(parts[1], 10, 31); err == nil {
				clockRate = int(v)
			}
		}

		return parts[0], clockRate, true
	}

	return "", 0, false
}

func isBackChannel(attributes []psdp.Attribute) bool {
	for _, attr := range attributes {
		if attr.Key == "sendonly" {
			return true
		}
	}
	return false
}

// ControlURL resolves a control attribute against a base URL.
func ControlURL(baseURL *base.URL, control string) (*base.URL, error) {
	// no control attribute, use base URL
	if control == "" || control == "*" {
		return baseURL, nil
	}

	// control attribute contains an absolute path
	if strings.HasPrefix(control, "rtsp://") ||
		strings.HasPrefix(control, "rtsps://") {
		ur, err := base.ParseURL(control)
		if err != nil {
			return nil, err
		}

		// copy host and credentials
		ur.Host = baseURL.Host
		ur.User = baseURL.User
		return ur, nil
	}

	// control attribute contains a relative control attribute
	// insert the control attribute at the end of the URL
	// if there's a query, insert it after the query
	// otherwise insert it after the path
	strURL := baseURL.String()
	if control[0] != '?' && !strings.HasSuffix(strURL, "/") {
		strURL += "/"
	}

	ur, err := base.ParseURL(strURL + control)
	if err != nil {
		return nil, fmt.Errorf("invalid control attribute: '%v'", control)
	}
	return ur, nil
}

func (t *Track) unmarshal(md *psdp.MediaDescription, baseURL *base.URL) error {
	t.Type = MediaType(md.MediaName.Media)

	if len(md.MediaName.Formats) == 0 {
		return fmt.Errorf("no payload types")
	}

	tmp, err := strconv.ParseUint(md.MediaName.Formats[0], 10, 7)
	if err != nil {
		return fmt.Errorf("invalid payload type '%s'", md.MediaName.Formats[0])
	}
	t.PayloadType = uint8(tmp)

	if t.PayloadType < dynamicPayloadTypeMin {
		if sc, ok := staticCodecs[t.PayloadType]; ok {
			t.Codec = sc.codec
			t.ClockRate = sc.clockRate
		} else {
			t.Codec = CodecUnknown
		}
	} else if codec, clockRate, ok := getRTPMap(md.Attributes, t.PayloadType); ok {
		t.Codec = codec
		t.ClockRate = clockRate
	}

	t.BackChannel = isBackChannel(md.Attributes)

	control, _ := md.Attribute("control")
	t.Control, err = ControlURL(baseURL, control)
	return err
}
