package description

import (
	"fmt"

	psdp "github.com/pion/sdp/v3"

	"github.com/bluenviron/rtspcam/pkg/base"
)

// Session is the description of the stream of a camera.
type Session struct {
	// base URL of the stream.
	BaseURL *base.URL

	// title of the stream (optional).
	Title string

	// first audio track, if any.
	Audio *Track

	// first video track, if any.
	Video *Track
}

// Unmarshal decodes the description from SDP.
// contentBase is the URL that relative control attributes are resolved against.
// Only the first audio track and the first video track are kept.
func (d *Session) Unmarshal(byts []byte, contentBase *base.URL) error {
	var sd psdp.SessionDescription
	err := sd.Unmarshal(byts)
	if err != nil {
		return err
	}

	d.Title = string(sd.SessionName)
	if d.Title == " " {
		d.Title = ""
	}

	// use global control attribute
	d.BaseURL = contentBase
	if control, ok := sd.Attribute("control"); ok {
		d.BaseURL, err = ControlURL(contentBase, control)
		if err != nil {
			return err
		}
	}

	d.Audio = nil
	d.Video = nil

	for i, md := range sd.MediaDescriptions {
		switch MediaType(md.MediaName.Media) {
		case MediaTypeAudio:
			if d.Audio != nil {
				continue
			}

		case MediaTypeVideo:
			if d.Video != nil {
				continue
			}

		default:
			continue
		}

		var t Track
		err = t.unmarshal(md, d.BaseURL)
		if err != nil {
			return fmt.Errorf("media %d is invalid: %w", i+1, err)
		}

		if t.Type == MediaTypeAudio {
			d.Audio = &t
		} else {
			d.Video = &t
		}
	}

	return nil
}
