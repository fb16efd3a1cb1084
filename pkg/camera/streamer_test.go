package camera

import (
	"context"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/bluenviron/rtspcam/pkg/base"
	"github.com/bluenviron/rtspcam/pkg/conn"
	"github.com/bluenviron/rtspcam/pkg/transport"
)

var testSDP = []byte("v=0\r\n" +
	"o=- 1 1 IN IP4 127.0.0.1\r\n" +
	"s=Camera\r\n" +
	"t=0 0\r\n" +
	"m=video 0 RTP/AVP 96\r\n" +
	"a=rtpmap:96 H264/90000\r\n" +
	"a=control:trackID=0\r\n" +
	"m=audio 0 RTP/AVP 0\r\n" +
	"a=control:trackID=1\r\n" +
	"a=sendonly\r\n")

type testServer struct {
	l           net.Listener
	setupStatus base.StatusCode
	wg          sync.WaitGroup

	mutex   sync.Mutex
	methods []base.Method
	conns   []net.Conn
}

func newTestServer(t *testing.T, setupStatus base.StatusCode) *testServer {
	l, err := net.Listen("tcp", "localhost:8555")
	require.NoError(t, err)

	s := &testServer{
		l:           l,
		setupStatus: setupStatus,
	}

	s.wg.Add(1)
	go s.run()

	return s
}

func (s *testServer) close() {
	s.l.Close()

	s.mutex.Lock()
	for _, nconn := range s.conns {
		nconn.Close()
	}
	s.mutex.Unlock()

	s.wg.Wait()
}

func (s *testServer) run() {
	defer s.wg.Done()

	for {
		nconn, err := s.l.Accept()
		if err != nil {
			return
		}

		s.mutex.Lock()
		s.conns = append(s.conns, nconn)
		s.mutex.Unlock()

		s.wg.Add(1)
		go s.runConn(nconn)
	}
}

// closeConns breaks all connections.
func (s *testServer) closeConns() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, nconn := range s.conns {
		nconn.Close()
	}
	s.conns = nil
}

func (s *testServer) receivedMethods() []base.Method {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return append([]base.Method(nil), s.methods...)
}

func (s *testServer) runConn(nconn net.Conn) {
	defer s.wg.Done()
	defer nconn.Close()

	conn := conn.NewConn(nconn)

	for {
		req, err := conn.ReadRequest()
		if err != nil {
			return
		}

		s.mutex.Lock()
		s.methods = append(s.methods, req.Method)
		s.mutex.Unlock()

		res := &base.Response{
			StatusCode: base.StatusOK,
			Header: base.Header{
				"CSeq": req.Header["CSeq"],
			},
		}

		switch req.Method {
		case base.Describe:
			res.Header["Content-Type"] = base.HeaderValue{"application/sdp"}
			res.Header["Content-Base"] = base.HeaderValue{"rtsp://localhost:8555/live/"}
			res.Body = testSDP

		case base.Setup:
			if s.setupStatus != base.StatusOK {
				res.StatusCode = s.setupStatus
				break
			}

			ports := "6000-6001"
			if strings.HasSuffix(req.URL.Path, "trackID=1") {
				ports = "6002-6003"
			}

			res.Header["Session"] = base.HeaderValue{"12345678;timeout=60"}
			res.Header["Transport"] = base.HeaderValue{
				req.Header["Transport"][0] + ";server_port=" + ports + ";source=127.0.0.1",
			}
		}

		err = conn.WriteResponse(res)
		if err != nil {
			return
		}
	}
}

type testTranscoder struct {
	rtpPort int

	mutex      sync.Mutex
	started    bool
	closed     bool
	sampleRate int
	cb         func([]byte)
}

func (tr *testTranscoder) Start() error {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()
	tr.started = true
	return nil
}

func (tr *testTranscoder) IncomingLocalRTPPort() int {
	return tr.rtpPort
}

func (tr *testTranscoder) IncomingLocalRTCPPort() int {
	return tr.rtpPort + 1
}

func (tr *testTranscoder) OutgoingLocalPort() int {
	return 0
}

func (tr *testTranscoder) OutgoingSSRC() uint32 {
	return 0x4d5e6f70
}

func (tr *testTranscoder) SetOutgoingSampleRate(rate int) {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()
	tr.sampleRate = rate
}

func (tr *testTranscoder) OutgoingSampleRate() int {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()
	return tr.sampleRate
}

func (tr *testTranscoder) OnOutgoingAudio(cb func([]byte)) {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()
	tr.cb = cb
}

func (tr *testTranscoder) push(pcm []byte) {
	tr.mutex.Lock()
	cb := tr.cb
	tr.mutex.Unlock()

	if cb != nil {
		cb(pcm)
	}
}

func (tr *testTranscoder) Close() {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()
	tr.closed = true
}

func (tr *testTranscoder) state() (bool, bool) {
	tr.mutex.Lock()
	defer tr.mutex.Unlock()
	return tr.started, tr.closed
}

type testSink struct {
	dest *transport.Result

	mutex  sync.Mutex
	frames [][]byte
	closed bool
}

func (s *testSink) WriteFrame(frame []byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.frames = append(s.frames, frame)
	return nil
}

func (s *testSink) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.closed = true
}

func (s *testSink) state() (int, bool) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.frames), s.closed
}

func newTestStreamer(t *testing.T, sink *testSink) *Streamer {
	log := logrus.New()
	log.SetLevel(logrus.DebugLevel)

	s := &Streamer{
		Conf: &Conf{
			URL:      "rtsp://localhost:8555/live",
			Username: "admin",
			Password: "pass",
			Talkback: TalkbackConf{
				Enable: true,
			},
		},
		NewFrameSink: func(dest *transport.Result, _ Transcoder) (FrameSink, error) {
			sink.dest = dest
			return sink, nil
		},
		Log: log,
	}
	err := s.Initialize()
	require.NoError(t, err)

	return s
}

func TestStreamer(t *testing.T) {
	srv := newTestServer(t, base.StatusOK)
	defer srv.close()

	sink := &testSink{}
	s := newTestStreamer(t, sink)
	defer s.Close()

	var options []int
	s.SetOptions = func(width int, height int, fps int, bitRate int) error {
		options = []int{width, height, fps, bitRate}
		return nil
	}

	video := &testTranscoder{rtpPort: 35000}
	audio := &testTranscoder{rtpPort: 35002}

	st, err := s.StartStream(context.Background(), StreamRequest{
		Width:           1280,
		Height:          720,
		FPS:             25,
		BitRate:         2000000,
		AudioSampleRate: 48000,
		Video:           video,
		Audio:           audio,
	})
	require.NoError(t, err)

	require.Equal(t, []int{1280, 720, 25, 2000000}, options)
	require.Equal(t, &transport.Result{Source: "127.0.0.1", RTPPort: 6000, RTCPPort: 6001}, st.Video)
	require.Equal(t, &transport.Result{Source: "127.0.0.1", RTPPort: 6002, RTCPPort: 6003}, st.Audio)
	require.Equal(t, st.Audio, sink.dest)
	require.Equal(t, 1, s.Streams())

	started, _ := video.state()
	require.True(t, started)
	started, _ = audio.state()
	require.True(t, started)
	require.Equal(t, 48000, audio.OutgoingSampleRate())

	// 60ms at 48kHz
	audio.push(make([]byte, 5760))
	n, _ := sink.state()
	require.Equal(t, 1, n)

	err = s.StopStream(st.ID)
	require.NoError(t, err)
	require.Equal(t, 0, s.Streams())

	_, closed := video.state()
	require.True(t, closed)
	_, closed = audio.state()
	require.True(t, closed)
	_, closed = sink.state()
	require.True(t, closed)

	// audio pushed after stop is discarded
	audio.push(make([]byte, 5760))
	n, _ = sink.state()
	require.Equal(t, 1, n)

	require.Equal(t, []base.Method{
		base.Describe,
		base.Setup,
		base.Setup,
		base.Play,
		base.Teardown,
	}, srv.receivedMethods())

	err = s.StopStream(st.ID)
	require.EqualError(t, err, "stream "+st.ID.String()+" not found")
}

func TestStreamerSetupError(t *testing.T) {
	srv := newTestServer(t, base.StatusInternalServerError)
	defer srv.close()

	sink := &testSink{}
	s := newTestStreamer(t, sink)
	defer s.Close()

	video := &testTranscoder{rtpPort: 35000}

	_, err := s.StartStream(context.Background(), StreamRequest{
		Video: video,
	})
	require.EqualError(t, err, "protocol error: bad status code: 500 (Internal Server Error)")
	require.Equal(t, 0, s.Streams())

	started, closed := video.state()
	require.False(t, started)
	require.True(t, closed)
}

func TestStreamerConnectionFault(t *testing.T) {
	srv := newTestServer(t, base.StatusOK)
	defer srv.close()

	sink := &testSink{}
	s := newTestStreamer(t, sink)
	defer s.Close()

	video := &testTranscoder{rtpPort: 35000}
	audio := &testTranscoder{rtpPort: 35002}

	_, err := s.StartStream(context.Background(), StreamRequest{
		AudioSampleRate: 16000,
		Video:           video,
		Audio:           audio,
	})
	require.NoError(t, err)
	require.Equal(t, 1, s.Streams())

	srv.closeConns()

	require.Eventually(t, func() bool {
		return s.Streams() == 0
	}, 5*time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		_, closed := sink.state()
		return closed
	}, 5*time.Second, 10*time.Millisecond)

	_, closed := video.state()
	require.True(t, closed)
}
