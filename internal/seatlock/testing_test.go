package seatlock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func newManualClock() *manualClock {
	return &manualClock{now: time.Date(2026, 1, 2, 18, 0, 0, 0, time.UTC)}
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memRegistry is an in-memory SeatRegistry.
type memRegistry struct {
	mu      sync.Mutex
	seats   map[string][]RegistrySeat
	failErr error
	calls   int
}

func newMemRegistry() *memRegistry {
	return &memRegistry{seats: make(map[string][]RegistrySeat)}
}

func (r *memRegistry) add(showtimeID string, labels ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range labels {
		r.seats[showtimeID] = append(r.seats[showtimeID], RegistrySeat{ShowtimeSeatID: l, SeatLabel: l, Status: CommittedAvailable})
	}
}

func (r *memRegistry) ShowtimeSeats(_ context.Context, showtimeID string) ([]RegistrySeat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RegistrySeat, len(r.seats[showtimeID]))
	copy(out, r.seats[showtimeID])
	return out, nil
}

func (r *memRegistry) MarkBooked(_ context.Context, showtimeID string, seatIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failErr != nil {
		return r.failErr
	}
	want := make(map[string]bool, len(seatIDs))
	for _, id := range seatIDs {
		want[id] = true
	}
	for _, s := range r.seats[showtimeID] {
		if want[s.ShowtimeSeatID] && s.Status == CommittedBooked {
			return fmt.Errorf("seat %s already booked", s.ShowtimeSeatID)
		}
	}
	for i, s := range r.seats[showtimeID] {
		if want[s.ShowtimeSeatID] {
			r.seats[showtimeID][i].Status = CommittedBooked
		}
	}
	return nil
}

func (r *memRegistry) status(showtimeID, seatID string) CommittedStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.seats[showtimeID] {
		if s.ShowtimeSeatID == seatID {
			return s.Status
		}
	}
	return ""
}

// recorder is a Subscriber that keeps every event it receives.
type recorder struct {
	id     string
	mu     sync.Mutex
	events []Event
}

func newRecorder(id string) *recorder { return &recorder{id: id} }

func (r *recorder) SessionID() string { return r.id }

func (r *recorder) Deliver(ev Event) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return true
}

func (r *recorder) seatEvents() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Event
	for _, ev := range r.events {
		if ev.Type != EventSeatSnapshot {
			out = append(out, ev)
		}
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

func statusOf(views []SeatView, seatID string) SeatStatus {
	for _, v := range views {
		if v.ShowtimeSeatID == seatID {
			return v.Status
		}
	}
	return ""
}
