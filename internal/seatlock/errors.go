// Package seatlock coordinates temporary seat locks for showtimes while
// shoppers select seats.  It owns the in-memory lock table, the mapping from
// realtime sessions to showtime rooms, and the fan-out of seat events to every
// session viewing a room.  Committed seat state lives elsewhere and is reached
// through the SeatRegistry interface.
package seatlock

import "errors"

// ErrConflict is returned when a seat is already locked by another session or
// has been booked.  It is an expected outcome and is reported only to the
// requesting session.
var ErrConflict = errors.New("seat unavailable")

// ErrNotHolder is returned when a session releases a seat it does not hold,
// either because it never held it, the lock expired, or another session now
// holds it.  Callers treat it as a no-op.
var ErrNotHolder = errors.New("not lock holder")

// ErrStaleSession is returned when a message references a room the session
// has not joined, or comes from a session that is no longer connected.
var ErrStaleSession = errors.New("stale session")

// ErrUnknownSeat is returned when a seat id does not belong to the showtime.
var ErrUnknownSeat = errors.New("seat does not belong to showtime")

// ErrUnknownShowtime is returned when the registry has no seats for a showtime.
var ErrUnknownShowtime = errors.New("showtime not found")

// ErrLockExpired is returned by commit when one of the requested locks has
// passed its expiry.
var ErrLockExpired = errors.New("lock expired")

// ErrCommitRejected is returned when a commit cannot proceed because the
// caller does not hold active locks on exactly the requested seats.  The
// concrete reason is wrapped alongside it.
var ErrCommitRejected = errors.New("commit rejected")
