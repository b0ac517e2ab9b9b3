package seatlock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultLockTTL       = 5 * time.Minute
	DefaultSweepInterval = 5 * time.Second
)

// RegistrySeat is the committed state of one showtime seat as reported by the
// booking store.
type RegistrySeat struct {
	ShowtimeSeatID string
	SeatLabel      string
	Status         CommittedStatus
}

// SeatRegistry is the durable record of showtime seats.  The coordinator reads
// it to build snapshots and writes it only through MarkBooked during commit.
type SeatRegistry interface {
	ShowtimeSeats(ctx context.Context, showtimeID string) ([]RegistrySeat, error)
	MarkBooked(ctx context.Context, showtimeID string, seatIDs []string) error
}

// PersistFunc performs the durable half of a commit.  It must either book all
// seats or none of them.
type PersistFunc func(ctx context.Context) error

// Coordinator is the seat-lock state machine.  All lock mutations and the
// events they produce are serialized under one mutex, so every subscriber
// observes the events of a given seat in the order the mutations happened.
type Coordinator struct {
	mu       sync.Mutex
	table    *LockTable
	sessions *SessionTracker
	router   *Router
	registry SeatRegistry

	clock      Clock
	ttl        time.Duration
	sweepEvery time.Duration
	log        *zap.Logger

	// catalogs holds the seat ids of every showtime with at least one
	// member, loaded from the registry on join.
	catalogs map[string]map[string]string

	// closed lists showtimes removed while the process runs.  Joins racing
	// the removal must not reopen them.
	closed map[string]struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLockTTL overrides the lifetime of newly acquired locks.
func WithLockTTL(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithSweepInterval overrides how often Run sweeps expired locks.
func WithSweepInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.sweepEvery = d
		}
	}
}

// WithClock replaces the system clock.
func WithClock(clk Clock) Option {
	return func(c *Coordinator) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Coordinator) {
		if l != nil {
			c.log = l
		}
	}
}

// NewCoordinator wires a coordinator around the given table, tracker and
// router.  Passing independent instances gives fully isolated coordinators,
// which is how the tests run in parallel.
func NewCoordinator(table *LockTable, sessions *SessionTracker, router *Router, registry SeatRegistry, opts ...Option) *Coordinator {
	c := &Coordinator{
		table:      table,
		sessions:   sessions,
		router:     router,
		registry:   registry,
		clock:      SystemClock{},
		ttl:        DefaultLockTTL,
		sweepEvery: DefaultSweepInterval,
		log:        zap.NewNop(),
		catalogs:   make(map[string]map[string]string),
		closed:     make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LockTTL returns the configured lock lifetime.
func (c *Coordinator) LockTTL() time.Duration { return c.ttl }

// Connect registers a new realtime session for an identified user.
func (c *Coordinator) Connect(sessionID, userID string, sub Subscriber) {
	c.sessions.Open(sessionID, userID, sub, c.clock.Now())
	c.log.Debug("session connected", zap.String("session_id", sessionID), zap.String("user_id", userID))
}

// Join moves a session into a showtime room.  Any other room the session was
// in is left first, releasing its seats; re-joining the same room keeps them.
// The joining session receives the seat snapshot as the first event of the
// new room, ahead of any later seat event, and the same snapshot is returned.
func (c *Coordinator) Join(ctx context.Context, sessionID, showtimeID string) ([]SeatView, error) {
	seats, err := c.registry.ShowtimeSeats(ctx, showtimeID)
	if err != nil {
		return nil, fmt.Errorf("load showtime seats: %w", err)
	}
	if len(seats) == 0 {
		return nil, ErrUnknownShowtime
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, gone := c.closed[showtimeID]; gone {
		return nil, ErrUnknownShowtime
	}
	sub, ok := c.sessions.subscriber(sessionID)
	if !ok {
		return nil, ErrStaleSession
	}
	if room, ok := c.sessions.Room(sessionID); ok && room != showtimeID {
		c.leaveLocked(sessionID, room)
	}

	catalog, ok := c.catalogs[showtimeID]
	if !ok {
		catalog = make(map[string]string, len(seats))
		c.catalogs[showtimeID] = catalog
	}
	var booked []string
	for _, s := range seats {
		catalog[s.ShowtimeSeatID] = s.SeatLabel
		if s.Status == CommittedBooked {
			booked = append(booked, s.ShowtimeSeatID)
		}
	}
	if len(booked) > 0 {
		c.table.MarkBooked(showtimeID, booked...)
	}

	c.sessions.Join(sessionID, showtimeID)
	c.router.Subscribe(showtimeID, sub)

	view := c.composeLocked(showtimeID, sessionID, seats)
	sub.Deliver(Event{Type: EventSeatSnapshot, ShowtimeID: showtimeID, Seats: view})
	c.log.Debug("session joined room",
		zap.String("session_id", sessionID),
		zap.String("showtime_id", showtimeID),
		zap.Int("members", c.router.Members(showtimeID)))
	return view, nil
}

// Leave takes a session out of its room, releasing and announcing every seat
// it held.
func (c *Coordinator) Leave(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if room, ok := c.sessions.Room(sessionID); ok {
		c.leaveLocked(sessionID, room)
	}
}

// EndSession is the transport's connection-closed signal.  It runs for clean
// and abrupt disconnects alike and releases everything the session held.
func (c *Coordinator) EndSession(sessionID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	room, _ := c.sessions.Room(sessionID)
	c.leaveLocked(sessionID, room)
	c.sessions.Close(sessionID)
	c.log.Debug("session ended", zap.String("session_id", sessionID))
}

// RequestLock asks for a lock on seatID.  On success every member of the room
// is told the seat is locked.  A conflict is returned to the caller only and
// nothing is broadcast.
func (c *Coordinator) RequestLock(sessionID, showtimeID, seatID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if room, ok := c.sessions.Room(sessionID); !ok || room != showtimeID {
		return ErrStaleSession
	}
	if _, ok := c.catalogs[showtimeID][seatID]; !ok {
		return ErrUnknownSeat
	}
	prev, err := c.table.TryAcquire(showtimeID, seatID, sessionID, c.clock.Now(), c.ttl)
	if err != nil {
		c.log.Debug("seat lock conflict",
			zap.String("session_id", sessionID),
			zap.String("showtime_id", showtimeID),
			zap.String("seat_id", seatID))
		return err
	}
	if prev == sessionID {
		return nil
	}
	if prev != "" {
		c.sessions.RecordRelease(prev, seatID)
	}
	c.sessions.RecordHold(sessionID, seatID)
	c.router.Publish(showtimeID, seatEvent(EventSeatLocked, seatID))
	return nil
}

// RequestRelease gives up a lock.  seat_unlocked is broadcast only when a lock
// was actually removed; a release by a non-holder returns ErrNotHolder and is
// otherwise ignored.
func (c *Coordinator) RequestRelease(sessionID, showtimeID, seatID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if room, ok := c.sessions.Room(sessionID); !ok || room != showtimeID {
		return ErrStaleSession
	}
	if err := c.table.Release(showtimeID, seatID, sessionID, c.clock.Now()); err != nil {
		return err
	}
	c.sessions.RecordRelease(sessionID, seatID)
	c.router.Publish(showtimeID, seatEvent(EventSeatReleased, seatID))
	return nil
}

// Commit converts the session's locks on seatIDs into bookings.  The session
// must hold active locks on exactly those seats.  The locks are pinned while
// persist runs so they cannot expire or be released underneath it; if persist
// fails they are unpinned and left as they were.  With a nil persist the
// registry's MarkBooked is used.
func (c *Coordinator) Commit(ctx context.Context, showtimeID string, seatIDs []string, sessionID string, persist PersistFunc) error {
	if persist == nil {
		persist = func(ctx context.Context) error {
			return c.registry.MarkBooked(ctx, showtimeID, seatIDs)
		}
	}

	c.mu.Lock()
	err := c.table.Pin(showtimeID, seatIDs, sessionID, c.clock.Now())
	c.mu.Unlock()
	if err != nil {
		c.log.Warn("commit rejected",
			zap.String("session_id", sessionID),
			zap.String("showtime_id", showtimeID),
			zap.Strings("seat_ids", seatIDs),
			zap.Error(err))
		return err
	}

	if err := persist(ctx); err != nil {
		c.mu.Lock()
		c.table.Unpin(showtimeID, seatIDs, sessionID)
		c.mu.Unlock()
		c.log.Warn("commit persist failed",
			zap.String("session_id", sessionID),
			zap.String("showtime_id", showtimeID),
			zap.Error(err))
		return fmt.Errorf("persist commit: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.table.Finalize(showtimeID, seatIDs)
	for _, id := range seatIDs {
		c.sessions.RecordRelease(sessionID, id)
		c.router.Publish(showtimeID, seatEvent(EventSeatBooked, id))
	}
	c.log.Info("seats committed",
		zap.String("session_id", sessionID),
		zap.String("showtime_id", showtimeID),
		zap.Int("seats", len(seatIDs)))
	return nil
}

// CloseRoom retires a showtime that has been deleted from the registry.
// Every lock on it is dropped and announced, the room is told the showtime
// is closed, and its members are taken out of the room, so later lock
// requests from them are stale.  It returns the number of sessions removed.
func (c *Coordinator) CloseRoom(showtimeID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed[showtimeID] = struct{}{}
	released := c.table.DropShowtime(showtimeID)
	for _, l := range released {
		c.sessions.RecordRelease(l.SessionID, l.SeatID)
		c.router.Publish(showtimeID, seatEvent(EventSeatReleased, l.SeatID))
	}
	c.router.Publish(showtimeID, Event{Type: EventShowtimeClosed, ShowtimeID: showtimeID})
	members := c.router.CloseRoom(showtimeID)
	for _, id := range members {
		c.sessions.Leave(id)
	}
	delete(c.catalogs, showtimeID)
	c.log.Info("showtime room closed",
		zap.String("showtime_id", showtimeID),
		zap.Int("members", len(members)),
		zap.Int("locks_released", len(released)))
	return len(members)
}

// Sweep releases every lock expired at now and announces each release.
func (c *Coordinator) Sweep(now time.Time) []Lock {
	c.mu.Lock()
	defer c.mu.Unlock()

	released := c.table.SweepExpired(now)
	for _, l := range released {
		c.sessions.RecordRelease(l.SessionID, l.SeatID)
		c.router.Publish(l.ShowtimeID, seatEvent(EventSeatReleased, l.SeatID))
	}
	if len(released) > 0 {
		c.log.Info("expired seat locks released", zap.Int("count", len(released)))
	}
	return released
}

// Run sweeps expired locks on a ticker until ctx is cancelled.
func (c *Coordinator) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.sweepEvery)
	defer ticker.Stop()
	c.log.Info("seat lock sweeper started",
		zap.Duration("interval", c.sweepEvery),
		zap.Duration("lock_ttl", c.ttl))
	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			c.Sweep(c.clock.Now())
		}
	}
}

// Snapshot returns the seat map of a showtime as seen by sessionID.  An empty
// sessionID yields the anonymous view where every lock reads as locked.
func (c *Coordinator) Snapshot(ctx context.Context, showtimeID, sessionID string) ([]SeatView, error) {
	seats, err := c.registry.ShowtimeSeats(ctx, showtimeID)
	if err != nil {
		return nil, fmt.Errorf("load showtime seats: %w", err)
	}
	if len(seats) == 0 {
		return nil, ErrUnknownShowtime
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.composeLocked(showtimeID, sessionID, seats), nil
}

// Room returns the showtime a session has joined.
func (c *Coordinator) Room(sessionID string) (string, bool) {
	return c.sessions.Room(sessionID)
}

// SessionUser returns the user behind a live session.
func (c *Coordinator) SessionUser(sessionID string) (string, bool) {
	return c.sessions.UserID(sessionID)
}

// HeldSeats returns the seats a session currently holds.
func (c *Coordinator) HeldSeats(sessionID string) []string {
	return c.sessions.Held(sessionID)
}

func (c *Coordinator) leaveLocked(sessionID, room string) {
	released := c.table.ReleaseAll(sessionID)
	c.sessions.Leave(sessionID)
	if room != "" {
		c.router.Unsubscribe(room, sessionID)
	}
	for _, l := range released {
		c.router.Publish(l.ShowtimeID, seatEvent(EventSeatReleased, l.SeatID))
	}
	if len(released) > 0 {
		c.log.Info("session seats released",
			zap.String("session_id", sessionID),
			zap.Int("count", len(released)))
	}
	if room != "" && c.router.Members(room) == 0 {
		delete(c.catalogs, room)
		c.table.Forget(room)
	}
}

func (c *Coordinator) composeLocked(showtimeID, sessionID string, seats []RegistrySeat) []SeatView {
	tv := c.table.Snapshot(showtimeID, c.clock.Now())
	out := make([]SeatView, 0, len(seats))
	for _, s := range seats {
		v := SeatView{ShowtimeSeatID: s.ShowtimeSeatID, SeatLabel: s.SeatLabel, Status: StatusAvailable}
		_, booked := tv.Booked[s.ShowtimeSeatID]
		switch {
		case booked || s.Status == CommittedBooked:
			v.Status = StatusBooked
		default:
			if l, ok := tv.Locks[s.ShowtimeSeatID]; ok {
				if sessionID != "" && l.SessionID == sessionID {
					v.Status = StatusSelected
				} else {
					v.Status = StatusLocked
				}
			}
		}
		out = append(out, v)
	}
	return out
}
