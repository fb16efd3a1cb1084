// Package camera contains a streamer that bridges a camera with a viewer.
package camera

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bluenviron/rtspcam"
	"github.com/bluenviron/rtspcam/pkg/base"
	"github.com/bluenviron/rtspcam/pkg/liberrors"
	"github.com/bluenviron/rtspcam/pkg/resample"
	"github.com/bluenviron/rtspcam/pkg/talkback"
	"github.com/bluenviron/rtspcam/pkg/transport"
)

const (
	teardownTimeout = 5 * time.Second
)

// Transcoder is a routine that converts media between the camera and the viewer.
// Incoming media flows from the camera to the viewer,
// outgoing media flows from the viewer to the camera.
type Transcoder interface {
	Start() error
	IncomingLocalRTPPort() int
	IncomingLocalRTCPPort() int
	OutgoingLocalPort() int
	OutgoingSSRC() uint32
	SetOutgoingSampleRate(rate int)
	OutgoingSampleRate() int
	// registers the callback that receives outgoing PCM audio.
	OnOutgoingAudio(cb func([]byte))
	Close()
}

// SetOptionsFunc configures the video encoder of the camera.
type SetOptionsFunc func(width int, height int, fps int, bitRate int) error

// FrameSink receives talkback frames.
type FrameSink interface {
	WriteFrame(frame []byte) error
	Close()
}

// NewFrameSinkFunc allocates a FrameSink that sends audio to the camera.
type NewFrameSinkFunc func(dest *transport.Result, t Transcoder) (FrameSink, error)

// StreamRequest contains the parameters of a stream requested by a viewer.
type StreamRequest struct {
	Width   int
	Height  int
	FPS     int
	BitRate int

	// sample rate of the outgoing audio of the viewer (optional).
	AudioSampleRate int

	// video transcoder.
	Video Transcoder

	// audio transcoder (optional).
	Audio Transcoder
}

// Stream is an active stream.
type Stream struct {
	ID uuid.UUID

	// media source and ports of the camera.
	Video *transport.Result
	Audio *transport.Result

	req      StreamRequest
	log      logrus.FieldLogger
	mutex    sync.Mutex
	pipeline *resample.Pipeline
	sink     FrameSink
	stopped  bool
}

func (st *Stream) writeAudio(pcm []byte) {
	st.mutex.Lock()
	defer st.mutex.Unlock()

	if st.stopped {
		return
	}

	st.pipeline.Write(pcm)
}

func (st *Stream) onFrame(frame []byte) {
	err := st.sink.WriteFrame(frame)
	if err != nil {
		st.log.WithError(err).Warn("unable to write talkback frame")
	}
}

func (st *Stream) stop() {
	st.mutex.Lock()
	st.stopped = true
	if st.pipeline != nil {
		st.pipeline.Stop()
	}
	st.mutex.Unlock()

	if st.sink != nil {
		st.sink.Close()
	}

	if st.req.Video != nil {
		st.req.Video.Close()
	}
	if st.req.Audio != nil {
		st.req.Audio.Close()
	}
}

// DefaultNewFrameSink sends talkback frames with a talkback.Sender,
// from the outgoing port and SSRC of the transcoder.
func DefaultNewFrameSink(dest *transport.Result, t Transcoder) (FrameSink, error) {
	ssrc := t.OutgoingSSRC()

	s := &talkback.Sender{
		RTPAddress:  net.JoinHostPort(dest.Source, strconv.Itoa(dest.RTPPort)),
		RTCPAddress: net.JoinHostPort(dest.Source, strconv.Itoa(dest.RTCPPort)),
		SSRC:        &ssrc,
	}

	if port := t.OutgoingLocalPort(); port != 0 {
		s.LocalAddress = ":" + strconv.Itoa(port)
	}

	err := s.Initialize()
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Streamer sets up streams from a camera.
type Streamer struct {
	// configuration of the camera.
	Conf *Conf

	// (optional) function that configures the video encoder of the camera.
	SetOptions SetOptionsFunc

	// (optional) function that allocates talkback sinks.
	// It defaults to DefaultNewFrameSink.
	NewFrameSink NewFrameSinkFunc

	// (optional) logger.
	// It defaults to the standard logrus logger.
	Log logrus.FieldLogger

	client  *rtspcam.Client
	url     *base.URL
	mutex   sync.Mutex
	streams map[uuid.UUID]*Stream

	done chan struct{}
}

// Initialize initializes Streamer.
func (s *Streamer) Initialize() error {
	if s.Log == nil {
		s.Log = logrus.StandardLogger()
	}
	if s.NewFrameSink == nil {
		s.NewFrameSink = DefaultNewFrameSink
	}

	err := s.Conf.Validate()
	if err != nil {
		return err
	}

	s.url, err = s.Conf.StreamURL()
	if err != nil {
		return err
	}

	s.client = &rtspcam.Client{
		ReadTimeout:     s.Conf.ReadTimeout,
		WriteTimeout:    s.Conf.WriteTimeout,
		KeepalivePeriod: s.Conf.KeepalivePeriod,
		RetryPeriod:     s.Conf.RetryPeriod,
	}
	err = s.client.Start(s.url.Scheme, s.url.Host)
	if err != nil {
		return err
	}

	s.streams = make(map[uuid.UUID]*Stream)
	s.done = make(chan struct{})

	go s.runFaults()

	return nil
}

// Close stops all streams and closes the connection with the camera.
func (s *Streamer) Close() {
	s.stopAll()
	s.client.Close()
	<-s.done
}

func (s *Streamer) runFaults() {
	defer close(s.done)

	for err := range s.client.Errors() {
		var connErr liberrors.ErrClientConnection
		if errors.As(err, &connErr) {
			s.Log.WithError(err).Error("connection with the camera lost")
			s.stopAll()
			continue
		}

		s.Log.WithError(err).Warn("camera fault")
	}
}

func (s *Streamer) stopAll() {
	s.mutex.Lock()
	streams := s.streams
	s.streams = make(map[uuid.UUID]*Stream)
	s.mutex.Unlock()

	for _, st := range streams {
		st.stop()
		st.log.Info("stream stopped")
	}

	if len(streams) != 0 {
		s.teardown()
	}
}

func (s *Streamer) teardown() {
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	err := s.client.Teardown(ctx)
	if err != nil {
		s.Log.WithError(err).Warn("teardown failed")
	}
}

// StartStream sets up the camera and starts a stream.
// In case of errors, the partially started stream is torn down.
func (s *Streamer) StartStream(ctx context.Context, req StreamRequest) (*Stream, error) {
	st := &Stream{
		ID:  uuid.New(),
		req: req,
	}
	st.log = s.Log.WithFields(logrus.Fields{
		"stream": st.ID.String(),
		"width":  req.Width,
		"height": req.Height,
		"fps":    req.FPS,
	})

	err := s.startStream(ctx, st)
	if err != nil {
		st.log.WithError(err).Error("unable to start stream")
		st.stop()

		s.mutex.Lock()
		empty := len(s.streams) == 0
		s.mutex.Unlock()

		if empty {
			s.teardown()
		}
		return nil, err
	}

	s.mutex.Lock()
	s.streams[st.ID] = st
	s.mutex.Unlock()

	st.log.WithFields(logrus.Fields{
		"source":     st.Video.Source,
		"video_port": st.Video.RTPPort,
	}).Info("stream started")

	return st, nil
}

func (s *Streamer) startStream(ctx context.Context, st *Stream) error {
	req := st.req

	if req.Video == nil {
		return fmt.Errorf("video transcoder is missing")
	}

	if s.SetOptions != nil {
		err := s.SetOptions(req.Width, req.Height, req.FPS, req.BitRate)
		if err != nil {
			return fmt.Errorf("unable to set options: %w", err)
		}
	}

	_, err := s.client.FetchDescription(ctx, s.url)
	if err != nil {
		return err
	}

	videoTrack, err := s.client.VideoTrack()
	if err != nil {
		return err
	}

	st.Video, err = s.client.Setup(ctx, videoTrack.Control,
		req.Video.IncomingLocalRTPPort(), req.Video.IncomingLocalRTCPPort())
	if err != nil {
		return err
	}

	if req.Audio != nil {
		audioTrack, err := s.client.AudioTrack()
		if err != nil {
			return err
		}

		st.Audio, err = s.client.Setup(ctx, audioTrack.Control,
			req.Audio.IncomingLocalRTPPort(), req.Audio.IncomingLocalRTCPPort())
		if err != nil {
			return err
		}
	}

	_, err = s.client.Play(ctx)
	if err != nil {
		return err
	}

	err = req.Video.Start()
	if err != nil {
		return fmt.Errorf("unable to start video transcoder: %w", err)
	}

	if req.Audio == nil {
		return nil
	}

	if req.AudioSampleRate != 0 {
		req.Audio.SetOutgoingSampleRate(req.AudioSampleRate)
	}

	err = req.Audio.Start()
	if err != nil {
		return fmt.Errorf("unable to start audio transcoder: %w", err)
	}

	if !s.Conf.Talkback.Enable {
		return nil
	}

	return s.startTalkback(st)
}

func (s *Streamer) startTalkback(st *Stream) error {
	st.pipeline = &resample.Pipeline{
		InputRate: st.req.Audio.OutgoingSampleRate(),
		Gain:      s.Conf.Talkback.Gain,
		OnFrame:   st.onFrame,
	}
	err := st.pipeline.Initialize()
	if err != nil {
		st.pipeline = nil
		return err
	}

	st.sink, err = s.NewFrameSink(st.Audio, st.req.Audio)
	if err != nil {
		st.pipeline = nil
		return fmt.Errorf("unable to create talkback sink: %w", err)
	}

	st.pipeline.Start()
	st.req.Audio.OnOutgoingAudio(st.writeAudio)

	st.log.WithField("sample_rate", st.pipeline.InputRate).Info("talkback started")

	return nil
}

// StopStream stops a stream.
// The RTSP session is torn down when no other streams are active.
func (s *Streamer) StopStream(id uuid.UUID) error {
	s.mutex.Lock()
	st, ok := s.streams[id]
	if !ok {
		s.mutex.Unlock()
		return fmt.Errorf("stream %v not found", id)
	}
	delete(s.streams, id)
	empty := len(s.streams) == 0
	s.mutex.Unlock()

	st.stop()
	st.log.Info("stream stopped")

	if empty {
		s.teardown()
	}

	return nil
}

// Streams returns the number of active streams.
func (s *Streamer) Streams() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.streams)
}
