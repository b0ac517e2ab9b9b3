package seatlock

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Lock is a temporary, session-scoped claim on one showtime seat.
type Lock struct {
	ShowtimeID string
	SeatID     string
	SessionID  string
	CreatedAt  time.Time
	ExpiresAt  time.Time

	// pinned locks belong to a commit in flight.  They cannot expire, be
	// released, or be replaced until the commit is finalized or abandoned.
	pinned bool
}

func (l *Lock) activeAt(now time.Time) bool {
	return l.pinned || now.Before(l.ExpiresAt)
}

type seatKey struct {
	showtimeID string
	seatID     string
}

// LockTable is the single authority for lock existence and ownership.  Every
// mutation runs under one mutex, so at most one session holds an active lock
// on a given (showtime, seat) at any instant.  Booked seats are remembered per
// showtime so that acquisition can refuse them without a registry round trip.
type LockTable struct {
	mu        sync.Mutex
	locks     map[string]map[string]*Lock      // showtime -> seat -> lock
	booked    map[string]map[string]struct{}   // showtime -> booked seats
	bySession map[string]map[seatKey]struct{} // session -> seats it holds
}

// NewLockTable returns an empty table.
func NewLockTable() *LockTable {
	return &LockTable{
		locks:     make(map[string]map[string]*Lock),
		booked:    make(map[string]map[string]struct{}),
		bySession: make(map[string]map[seatKey]struct{}),
	}
}

// TryAcquire locks a seat for sessionID until now+ttl.  It fails with
// ErrConflict when the seat is booked or another session holds an unexpired
// lock.  When the caller already holds the seat the expiry is extended.  The
// returned string is the session whose lock was replaced: sessionID itself
// for a refresh, the previous holder when an expired lock was taken over, or
// empty when the seat was free.
func (t *LockTable) TryAcquire(showtimeID, seatID, sessionID string, now time.Time, ttl time.Duration) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.booked[showtimeID][seatID]; ok {
		return "", ErrConflict
	}
	seats := t.locks[showtimeID]
	if seats == nil {
		seats = make(map[string]*Lock)
		t.locks[showtimeID] = seats
	}
	prev := ""
	if cur, ok := seats[seatID]; ok {
		if cur.activeAt(now) {
			if cur.SessionID != sessionID {
				return "", ErrConflict
			}
			if !cur.pinned {
				cur.ExpiresAt = now.Add(ttl)
			}
			return sessionID, nil
		}
		prev = cur.SessionID
		t.unindex(cur)
	}
	l := &Lock{
		ShowtimeID: showtimeID,
		SeatID:     seatID,
		SessionID:  sessionID,
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	}
	seats[seatID] = l
	t.index(l)
	return prev, nil
}

// Release removes the lock only when sessionID is its current holder and the
// lock is still active.  Anything else returns ErrNotHolder and changes
// nothing; expired locks are left for SweepExpired so their release is
// reported exactly once.
func (t *LockTable) Release(showtimeID, seatID, sessionID string, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	cur, ok := t.locks[showtimeID][seatID]
	if !ok || cur.SessionID != sessionID || cur.pinned || !cur.activeAt(now) {
		return ErrNotHolder
	}
	t.remove(cur)
	return nil
}

// SweepExpired removes every lock whose expiry is at or before now and
// returns the removed locks ordered by showtime and seat.
func (t *LockTable) SweepExpired(now time.Time) []Lock {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Lock
	for _, seats := range t.locks {
		for _, l := range seats {
			if !l.activeAt(now) {
				out = append(out, *l)
				t.remove(l)
			}
		}
	}
	sortLocks(out)
	return out
}

// ReleaseAll removes every lock held by sessionID except those pinned by a
// commit in flight, and returns the removed locks.
func (t *LockTable) ReleaseAll(sessionID string) []Lock {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Lock
	for k := range t.bySession[sessionID] {
		l := t.locks[k.showtimeID][k.seatID]
		if l == nil || l.pinned {
			continue
		}
		out = append(out, *l)
		t.remove(l)
	}
	sortLocks(out)
	return out
}

// DropShowtime removes every lock on a showtime, pinned ones included, and
// forgets its booked seats.  It is used when the showtime itself is gone.
func (t *LockTable) DropShowtime(showtimeID string) []Lock {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []Lock
	for _, l := range t.locks[showtimeID] {
		out = append(out, *l)
		t.remove(l)
	}
	delete(t.locks, showtimeID)
	delete(t.booked, showtimeID)
	sortLocks(out)
	return out
}

// MarkBooked records seats as permanently booked.  Existing locks on them are
// dropped.
func (t *LockTable) MarkBooked(showtimeID string, seatIDs ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.markBooked(showtimeID, seatIDs)
}

// IsBooked reports whether the table has seen the seat booked.
func (t *LockTable) IsBooked(showtimeID, seatID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.booked[showtimeID][seatID]
	return ok
}

// Pin prepares a commit.  It verifies that sessionID holds active locks on
// exactly seatIDs within the showtime and marks them pinned.  Nothing is
// changed when verification fails.
func (t *LockTable) Pin(showtimeID string, seatIDs []string, sessionID string, now time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	want := make(map[string]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		want[id] = struct{}{}
	}
	if len(want) == 0 || len(want) != len(seatIDs) {
		return fmt.Errorf("%w: seat list must be non-empty and distinct", ErrCommitRejected)
	}
	for id := range want {
		l, ok := t.locks[showtimeID][id]
		switch {
		case !ok || l.SessionID != sessionID:
			return fmt.Errorf("%w: seat %s: %w", ErrCommitRejected, id, ErrNotHolder)
		case l.pinned:
			return fmt.Errorf("%w: seat %s: commit already in progress", ErrCommitRejected, id)
		case !l.activeAt(now):
			return fmt.Errorf("%w: seat %s: %w", ErrCommitRejected, id, ErrLockExpired)
		}
	}
	held := 0
	for k := range t.bySession[sessionID] {
		if k.showtimeID != showtimeID {
			continue
		}
		if l := t.locks[k.showtimeID][k.seatID]; l != nil && l.activeAt(now) {
			held++
		}
	}
	if held != len(want) {
		return fmt.Errorf("%w: session holds %d seats, commit names %d", ErrCommitRejected, held, len(want))
	}
	for id := range want {
		t.locks[showtimeID][id].pinned = true
	}
	return nil
}

// Unpin abandons a commit prepared by Pin.  The locks return to their normal
// lifecycle with their original expiry.
func (t *LockTable) Unpin(showtimeID string, seatIDs []string, sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, id := range seatIDs {
		if l, ok := t.locks[showtimeID][id]; ok && l.SessionID == sessionID {
			l.pinned = false
		}
	}
}

// Finalize completes a commit prepared by Pin: the locks are removed and the
// seats are recorded as booked.
func (t *LockTable) Finalize(showtimeID string, seatIDs []string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.markBooked(showtimeID, seatIDs)
}

// Holder returns the session holding an active lock on the seat.
func (t *LockTable) Holder(showtimeID, seatID string, now time.Time) (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	l, ok := t.locks[showtimeID][seatID]
	if !ok || !l.activeAt(now) {
		return "", false
	}
	return l.SessionID, true
}

// TableView is a consistent copy of one showtime's lock state.
type TableView struct {
	Locks  map[string]Lock     // active locks by seat id
	Booked map[string]struct{} // seats booked through this table
}

// Snapshot copies the active locks and booked seats of a showtime.
func (t *LockTable) Snapshot(showtimeID string, now time.Time) TableView {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := TableView{
		Locks:  make(map[string]Lock, len(t.locks[showtimeID])),
		Booked: make(map[string]struct{}, len(t.booked[showtimeID])),
	}
	for id, l := range t.locks[showtimeID] {
		if l.activeAt(now) {
			v.Locks[id] = *l
		}
	}
	for id := range t.booked[showtimeID] {
		v.Booked[id] = struct{}{}
	}
	return v
}

// Forget drops the booked-seat memory for a showtime with no locks left.  The
// registry remains the source of truth and is reloaded on the next join.
func (t *LockTable) Forget(showtimeID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.locks[showtimeID]) == 0 {
		delete(t.locks, showtimeID)
		delete(t.booked, showtimeID)
	}
}

// Len returns the number of locks currently stored, expired or not.
func (t *LockTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := 0
	for _, seats := range t.locks {
		n += len(seats)
	}
	return n
}

func (t *LockTable) markBooked(showtimeID string, seatIDs []string) {
	set := t.booked[showtimeID]
	if set == nil {
		set = make(map[string]struct{}, len(seatIDs))
		t.booked[showtimeID] = set
	}
	for _, id := range seatIDs {
		set[id] = struct{}{}
		if l, ok := t.locks[showtimeID][id]; ok {
			t.remove(l)
		}
	}
}

func (t *LockTable) index(l *Lock) {
	held := t.bySession[l.SessionID]
	if held == nil {
		held = make(map[seatKey]struct{})
		t.bySession[l.SessionID] = held
	}
	held[seatKey{l.ShowtimeID, l.SeatID}] = struct{}{}
}

func (t *LockTable) unindex(l *Lock) {
	held := t.bySession[l.SessionID]
	delete(held, seatKey{l.ShowtimeID, l.SeatID})
	if len(held) == 0 {
		delete(t.bySession, l.SessionID)
	}
}

func (t *LockTable) remove(l *Lock) {
	t.unindex(l)
	seats := t.locks[l.ShowtimeID]
	delete(seats, l.SeatID)
	if len(seats) == 0 {
		delete(t.locks, l.ShowtimeID)
	}
}

func sortLocks(ls []Lock) {
	sort.Slice(ls, func(i, j int) bool {
		if ls[i].ShowtimeID != ls[j].ShowtimeID {
			return ls[i].ShowtimeID < ls[j].ShowtimeID
		}
		return ls[i].SeatID < ls[j].SeatID
	})
}
