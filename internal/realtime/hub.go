// Package realtime carries the seat-lock protocol over websockets.  Each
// connection is one coordinator session: it is opened on connect, receives
// the room's seat events through an ordered per-connection queue, and is
// ended, releasing every seat it held, when the socket closes for any reason.
package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/net/websocket"
	"golang.org/x/time/rate"

	"github.com/iliyamo/movie-booking/internal/config"
	"github.com/iliyamo/movie-booking/internal/seatlock"
	"github.com/iliyamo/movie-booking/internal/utils"
)

// Hub accepts websocket connections and feeds their messages to the
// coordinator.
type Hub struct {
	coord  *seatlock.Coordinator
	secret string
	cfg    config.RealtimeConfig
	log    *zap.Logger
	newID  func() string

	// joinTimeout bounds the registry read behind a join.
	joinTimeout time.Duration

	// ctx is the parent of every per-message context and is cancelled by
	// Shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	mu    sync.Mutex
	conns map[string]*conn
}

func NewHub(coord *seatlock.Coordinator, jwtSecret string, cfg config.RealtimeConfig, log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.SendBuffer < 1 {
		cfg.SendBuffer = 64
	}
	if cfg.MsgRate <= 0 {
		cfg.MsgRate = 20
	}
	if cfg.MsgBurst < 1 {
		cfg.MsgBurst = 40
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = time.Minute
	}
	if cfg.MaxMessageBytes < 1 {
		cfg.MaxMessageBytes = 4096
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		coord:  coord,
		secret: jwtSecret,
		cfg:    cfg,
		log:    log.Named("realtime"),
		newID:  uuid.NewString,

		joinTimeout: 5 * time.Second,

		ctx:    ctx,
		cancel: cancel,
		conns:  make(map[string]*conn),
	}
}

// Handle is the GET /ws endpoint.  Browsers cannot set headers on a
// websocket handshake, so the access token travels as ?token=.
func (h *Hub) Handle(c echo.Context) error {
	claims, err := utils.ParseAccessToken(h.secret, c.QueryParam("token"))
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
	}
	srv := websocket.Server{
		Handler: func(ws *websocket.Conn) { h.serve(ws, claims.Subject) },
	}
	srv.ServeHTTP(c.Response(), c.Request())
	return nil
}

// Connections returns the number of open sessions.
func (h *Hub) Connections() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}

// Shutdown cancels in-flight joins and closes every open connection.  Their
// sessions end as the readers return.
func (h *Hub) Shutdown() {
	h.cancel()
	h.mu.Lock()
	conns := make([]*conn, 0, len(h.conns))
	for _, c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()
	for _, c := range conns {
		c.close()
	}
}

func (h *Hub) serve(ws *websocket.Conn, userID string) {
	ws.MaxPayloadBytes = h.cfg.MaxMessageBytes
	c := newConn(h.newID(), userID, ws, h.cfg.SendBuffer, h.log)
	h.track(c)
	h.coord.Connect(c.id, userID, c)
	defer func() {
		h.coord.EndSession(c.id)
		c.close()
		// the writer is woken by close; once it is gone nothing else holds
		// the socket's write lock and the close frame gets a fresh deadline
		<-c.exited
		_ = ws.SetWriteDeadline(time.Now().Add(time.Second))
		_ = ws.Close()
		h.untrack(c)
		h.log.Debug("connection closed", zap.String("session_id", c.id))
	}()
	go c.writeLoop(h.cfg.IdleTimeout / 2)

	c.send(Reply{Type: TypeSession, SessionID: c.id})
	h.log.Debug("connection opened", zap.String("session_id", c.id), zap.String("user_id", userID))

	limiter := rate.NewLimiter(rate.Limit(h.cfg.MsgRate), h.cfg.MsgBurst)
	for {
		// a client that stays silent past the idle timeout is gone; close
		// moves the deadline to now and is checked after it is extended
		_ = ws.SetReadDeadline(time.Now().Add(h.cfg.IdleTimeout))
		if c.closed() {
			return
		}
		var msg ClientMessage
		if err := websocket.JSON.Receive(ws, &msg); err != nil {
			switch {
			case isDecodeError(err):
				c.send(Reply{Type: TypeError, Message: "malformed message"})
				continue
			case errors.Is(err, websocket.ErrFrameTooLarge):
				h.log.Warn("message too large, closing session",
					zap.String("session_id", c.id),
					zap.Int("limit", h.cfg.MaxMessageBytes))
			case isTimeout(err) && !c.closed():
				h.log.Info("idle connection timed out", zap.String("session_id", c.id))
			case !errors.Is(err, io.EOF) && !c.closed():
				h.log.Debug("read failed", zap.String("session_id", c.id), zap.Error(err))
			}
			return
		}
		if !limiter.Allow() {
			c.send(Reply{Type: TypeError, Message: "too many messages"})
			continue
		}
		h.dispatch(c, msg)
	}
}

func (h *Hub) dispatch(c *conn, msg ClientMessage) {
	switch msg.Action {
	case ActionJoin:
		if msg.ShowtimeID == "" {
			c.send(Reply{Type: TypeError, Message: "showtimeId is required"})
			return
		}
		// the snapshot reaches the client through the event queue
		ctx, cancel := context.WithTimeout(h.ctx, h.joinTimeout)
		_, err := h.coord.Join(ctx, c.id, msg.ShowtimeID)
		cancel()
		switch {
		case err == nil:
		case errors.Is(err, seatlock.ErrUnknownShowtime):
			c.send(Reply{Type: TypeError, Message: "showtime not found"})
		case errors.Is(err, seatlock.ErrStaleSession):
		default:
			h.log.Error("join failed", zap.String("session_id", c.id), zap.String("showtime_id", msg.ShowtimeID), zap.Error(err))
			c.send(Reply{Type: TypeError, Message: "could not load seats"})
		}

	case ActionLock:
		showtimeID, ok := h.room(c, msg)
		if !ok {
			return
		}
		if err := h.coord.RequestLock(c.id, showtimeID, msg.ShowtimeSeatID); errors.Is(err, seatlock.ErrConflict) {
			c.send(Reply{Type: TypeLockRejected, ShowtimeSeatID: msg.ShowtimeSeatID})
		}

	case ActionUnlock:
		showtimeID, ok := h.room(c, msg)
		if !ok {
			return
		}
		// releasing a seat one does not hold is a no-op
		_ = h.coord.RequestRelease(c.id, showtimeID, msg.ShowtimeSeatID)

	case ActionPing:
		c.send(Reply{Type: TypePong})

	case ActionPong:
		// the read deadline has already been extended

	default:
		c.send(Reply{Type: TypeError, Message: "unknown action"})
	}
}

// room resolves the showtime a lock or unlock refers to.  Messages for a room
// the session is not in are stale and dropped.
func (h *Hub) room(c *conn, msg ClientMessage) (string, bool) {
	if msg.ShowtimeSeatID == "" {
		c.send(Reply{Type: TypeError, Message: "showtimeSeatId is required"})
		return "", false
	}
	if msg.ShowtimeID != "" {
		return msg.ShowtimeID, true
	}
	return h.coord.Room(c.id)
}

func (h *Hub) track(c *conn) {
	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()
}

func (h *Hub) untrack(c *conn) {
	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func isDecodeError(err error) bool {
	var syntax *json.SyntaxError
	var typ *json.UnmarshalTypeError
	return errors.As(err, &syntax) || errors.As(err, &typ)
}
