package rtspcam

import (
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/bluenviron/rtspcam/pkg/base"
	"github.com/bluenviron/rtspcam/pkg/conn"
	"github.com/bluenviron/rtspcam/pkg/headers"
	"github.com/bluenviron/rtspcam/pkg/liberrors"
)

type clientRes struct {
	res *base.Response
	err error
}

type pendingRequest struct {
	// buffered, written once by whoever removes the request from the pending map.
	res chan clientRes
}

func parseCSeq(v base.HeaderValue) (int, bool) {
	if len(v) != 1 {
		return 0, false
	}

	tmp, err := strconv.ParseUint(strings.TrimSpace(v[0]), 10, 31)
	if err != nil {
		return 0, false
	}

	return int(tmp), true
}

func supportsGetParameter(pub base.HeaderValue) bool {
	if len(pub) != 1 {
		return false
	}

	for _, m := range strings.Split(pub[0], ",") {
		if base.Method(strings.TrimSpace(m)) == base.GetParameter {
			return true
		}
	}
	return false
}

// clientConn is a control connection.
// Sequence numbers restart from 1 on every connection.
// cseq, pending and closed are protected by the client mutex.
type clientConn struct {
	c     *Client
	nconn net.Conn
	conn  *conn.Conn

	writeMutex sync.Mutex
	cseq       int
	pending    map[int]*pendingRequest
	closed     bool
}

func newClientConn(c *Client, nconn net.Conn) *clientConn {
	return &clientConn{
		c:       c,
		nconn:   nconn,
		conn:    conn.NewConn(nconn),
		pending: make(map[int]*pendingRequest),
	}
}

// register allocates a sequence number and a pending request.
// It must be called with the client mutex locked, while the connection is the current one.
func (cc *clientConn) register(req *base.Request) *pendingRequest {
	cc.cseq++
	req.Header["CSeq"] = base.HeaderValue{strconv.FormatInt(int64(cc.cseq), 10)}

	pr := &pendingRequest{
		res: make(chan clientRes, 1),
	}

	cc.pending[cc.cseq] = pr
	return pr
}

func (cc *clientConn) writeRequest(req *base.Request) error {
	cc.writeMutex.Lock()
	defer cc.writeMutex.Unlock()

	cc.nconn.SetWriteDeadline(time.Now().Add(cc.c.WriteTimeout))
	return cc.conn.WriteRequest(req)
}

func (cc *clientConn) runReader() {
	defer cc.c.wg.Done()

	for {
		// interleaved frames are skipped
		res, err := cc.conn.ReadResponseIgnoreFrames()
		if err != nil {
			cc.fail(err)
			return
		}

		cc.handleResponse(res)
	}
}

func (cc *clientConn) handleResponse(res *base.Response) {
	c := cc.c

	cseq, ok := parseCSeq(res.Header["CSeq"])
	if !ok {
		return
	}

	c.mutex.Lock()

	pr, ok := cc.pending[cseq]
	if !ok {
		c.mutex.Unlock()
		return
	}
	delete(cc.pending, cseq)

	var err error

	if v, ok := res.Header["Session"]; ok {
		var sx headers.Session
		err2 := sx.Unmarshal(v)
		if err2 != nil {
			err = liberrors.ErrClientProtocol{Err: liberrors.ErrClientSessionHeaderInvalid{Err: err2}}
		} else if c.conn == cc {
			c.setSession(&sx)
		}
	}

	if pub, ok := res.Header["Public"]; ok {
		c.useGetParameter = supportsGetParameter(pub)
	}

	c.mutex.Unlock()

	c.OnResponse(res)

	if err != nil {
		pr.res <- clientRes{err: err}
	} else {
		pr.res <- clientRes{res: res}
	}
}

// shutdown closes the connection and fails every pending request with err.
// It returns false if the connection was already closed.
func (cc *clientConn) shutdown(err error) bool {
	c := cc.c

	c.mutex.Lock()

	if cc.closed {
		c.mutex.Unlock()
		return false
	}
	cc.closed = true

	pending := cc.pending
	cc.pending = make(map[int]*pendingRequest)

	if c.conn == cc {
		c.conn = nil
		c.state = clientStateDisconnected
		c.stopSession()
	}

	c.mutex.Unlock()

	cc.nconn.Close()

	for _, pr := range pending {
		pr.res <- clientRes{err: err}
	}

	return true
}

// fail handles a transport failure.
func (cc *clientConn) fail(err error) {
	cerr := liberrors.ErrClientConnection{Err: err}

	if !cc.shutdown(cerr) {
		return
	}

	cc.c.publish(cerr)
	cc.c.reconnect()
}
