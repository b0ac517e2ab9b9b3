package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/websocket"

	"github.com/iliyamo/movie-booking/internal/seatlock"
)

const writeTimeout = 10 * time.Second

// conn is one websocket session.  Every outbound frame, seat events and
// direct replies alike, goes through out and is written by writeLoop alone,
// so frames reach the client in the order they were queued.
type conn struct {
	id     string
	userID string
	ws     *websocket.Conn
	log    *zap.Logger

	out       chan interface{}
	done      chan struct{}
	exited    chan struct{} // closed when writeLoop returns
	closeOnce sync.Once
	lagged    atomic.Bool
}

func newConn(id, userID string, ws *websocket.Conn, buffer int, log *zap.Logger) *conn {
	return &conn{
		id:     id,
		userID: userID,
		ws:     ws,
		log:    log,
		out:    make(chan interface{}, buffer),
		done:   make(chan struct{}),
		exited: make(chan struct{}),
	}
}

func (c *conn) SessionID() string { return c.id }

// Deliver queues a seat event without blocking.  It runs under the
// coordinator's lock, so it must never wait on the socket.
func (c *conn) Deliver(ev seatlock.Event) bool { return c.send(ev) }

// send queues v.  A client that cannot keep up is disconnected rather than
// silently skipping frames; on reconnect it re-joins and gets a fresh
// snapshot.
func (c *conn) send(v interface{}) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- v:
		return true
	case <-c.done:
		return false
	default:
		if c.lagged.CompareAndSwap(false, true) {
			c.log.Warn("outbound buffer full, closing session", zap.String("session_id", c.id))
		}
		c.close()
		return false
	}
}

// writeLoop drains out in order.  With ping > 0 it also sends a heartbeat
// frame on that interval.
func (c *conn) writeLoop(ping time.Duration) {
	defer close(c.exited)
	var tick <-chan time.Time
	if ping > 0 {
		t := time.NewTicker(ping)
		defer t.Stop()
		tick = t.C
	}
	for {
		var v interface{}
		select {
		case <-c.done:
			return
		case v = <-c.out:
		case <-tick:
			v = Reply{Type: TypePing}
		}
		_ = c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
		// close may have run between the receive and the deadline above;
		// it closes done before moving the deadline, so checking here
		// cannot miss it.
		select {
		case <-c.done:
			return
		default:
		}
		if err := websocket.JSON.Send(c.ws, v); err != nil {
			c.log.Debug("write failed", zap.String("session_id", c.id), zap.Error(err))
			c.close()
			return
		}
	}
}

// close marks the session finished and expires both socket deadlines, which
// wakes a reader blocked in Receive and a writer blocked in Send.  It does
// not close the socket: Conn.Close takes the write lock a stalled Send
// holds, and close can run under the coordinator's lock.  The reader's
// deferred cleanup closes the socket once it has returned.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		now := time.Now()
		_ = c.ws.SetReadDeadline(now)
		_ = c.ws.SetWriteDeadline(now)
	})
}

func (c *conn) closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
