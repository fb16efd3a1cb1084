// Package talkback contains a sender of audio to the speaker of a camera.
package talkback

import (
	"context"
	"crypto/rand"
	"net"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/zaf/g711"
	"golang.org/x/net/ipv4"

	"github.com/bluenviron/rtspcam/internal/asyncprocessor"
	"github.com/bluenviron/rtspcam/pkg/liberrors"
)

const (
	rtpVersion = 2

	// DSCP Expedited Forwarding, shifted into the TOS field.
	tosEF = 46 << 2
)

func randUint32() (uint32, error) {
	var b [4]byte
	_, err := rand.Read(b[:])
	if err != nil {
		return 0, err
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3]), nil
}

// Sender encodes 8kHz 16-bit PCM frames with G711 µ-law
// and sends them to the camera with RTP over UDP.
type Sender struct {
	// address of the RTP receiver of the camera.
	RTPAddress string

	// (optional) address of the RTCP receiver of the camera.
	// When set, a RTCP Goodbye is sent on Close().
	RTCPAddress string

	// (optional) local address of the RTP socket.
	LocalAddress string

	// payload type.
	// It defaults to 0 (PCMU).
	PayloadType uint8

	// maximum number of samples in a packet.
	// It defaults to 480 (60ms).
	SamplesPerPacket int

	// SSRC of packets (optional).
	// It defaults to a random value.
	SSRC *uint32

	// initial sequence number of packets (optional).
	// It defaults to a random value.
	InitialSequenceNumber *uint16

	// initial timestamp of packets (optional).
	// It defaults to a random value.
	InitialTimestamp *uint32

	// size of the write queue. It must be a power of two.
	// It defaults to 256.
	WriteQueueSize int

	// timeout of write operations.
	// It defaults to 10 seconds.
	WriteTimeout time.Duration

	// called when a packet cannot be written.
	// The sender stops writing after the first error.
	OnError func(error)

	rtpConn        net.Conn
	rtcpConn       net.Conn
	writer         *asyncprocessor.Processor
	sequenceNumber uint16
	timestamp      uint32
	firstSent      bool
}

// Initialize initializes Sender.
func (s *Sender) Initialize() error {
	if s.SamplesPerPacket == 0 {
		s.SamplesPerPacket = 480
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = 10 * time.Second
	}
	if s.OnError == nil {
		s.OnError = func(error) {}
	}

	if s.SSRC == nil {
		v, err := randUint32()
		if err != nil {
			return err
		}
		s.SSRC = &v
	}
	if s.InitialSequenceNumber == nil {
		v, err := randUint32()
		if err != nil {
			return err
		}
		v2 := uint16(v)
		s.InitialSequenceNumber = &v2
	}
	if s.InitialTimestamp == nil {
		v, err := randUint32()
		if err != nil {
			return err
		}
		s.InitialTimestamp = &v
	}

	s.sequenceNumber = *s.InitialSequenceNumber
	s.timestamp = *s.InitialTimestamp

	var err error
	s.rtpConn, err = s.dial(s.RTPAddress)
	if err != nil {
		return err
	}

	if s.RTCPAddress != "" {
		s.rtcpConn, err = s.dial(s.RTCPAddress)
		if err != nil {
			s.rtpConn.Close()
			return err
		}
	}

	s.writer = &asyncprocessor.Processor{
		BufferSize: s.WriteQueueSize,
		OnError: func(ctx context.Context, err error) {
			if ctx.Err() == nil {
				s.OnError(err)
			}
		},
	}
	err = s.writer.Initialize()
	if err != nil {
		s.closeConns()
		return err
	}

	s.writer.Start()

	return nil
}

func (s *Sender) dial(address string) (net.Conn, error) {
	d := &net.Dialer{}

	if s.LocalAddress != "" && address == s.RTPAddress {
		laddr, err := net.ResolveUDPAddr("udp", s.LocalAddress)
		if err != nil {
			return nil, err
		}
		d.LocalAddr = laddr
	}

	nconn, err := d.Dial("udp", address)
	if err != nil {
		return nil, err
	}

	// mark packets as voice traffic. Not every platform allows it.
	ipv4.NewConn(nconn).SetTOS(tosEF)

	return nconn, nil
}

func (s *Sender) closeConns() {
	s.rtpConn.Close()
	if s.rtcpConn != nil {
		s.rtcpConn.Close()
	}
}

// Close stops the sender.
// Frames that are still queued are discarded.
func (s *Sender) Close() {
	s.writer.Close()

	if s.rtcpConn != nil {
		byts, err := (&rtcp.Goodbye{
			Sources: []uint32{*s.SSRC},
		}).Marshal()
		if err == nil {
			s.rtcpConn.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
			s.rtcpConn.Write(byts)
		}
	}

	s.closeConns()
}

// WriteFrame encodes a PCM frame and queues the resulting packets.
// It is not safe for concurrent use.
func (s *Sender) WriteFrame(pcm []byte) error {
	payload := g711.EncodeUlaw(pcm)

	for len(payload) > 0 {
		n := min(len(payload), s.SamplesPerPacket)

		pkt := &rtp.Packet{
			Header: rtp.Header{
				Version:        rtpVersion,
				Marker:         !s.firstSent,
				PayloadType:    s.PayloadType,
				SequenceNumber: s.sequenceNumber,
				Timestamp:      s.timestamp,
				SSRC:           *s.SSRC,
			},
			Payload: payload[:n],
		}

		byts, err := pkt.Marshal()
		if err != nil {
			return err
		}

		ok := s.writer.Push(func() error {
			s.rtpConn.SetWriteDeadline(time.Now().Add(s.WriteTimeout))
			_, err := s.rtpConn.Write(byts)
			return err
		})
		if !ok {
			return liberrors.ErrWriteQueueFull{}
		}

		s.firstSent = true
		s.sequenceNumber++
		s.timestamp += uint32(n)
		payload = payload[n:]
	}

	return nil
}
