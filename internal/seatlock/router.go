package seatlock

import "sync"

// Subscriber receives events for the room it has joined.  Deliver must not
// block: implementations queue the event on an ordered per-connection channel
// and report false when it had to be dropped.
type Subscriber interface {
	SessionID() string
	Deliver(Event) bool
}

// Router fans events out to every subscriber of a showtime room, the
// originating session included, so that all views converge through one path.
type Router struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Subscriber
}

// NewRouter returns a router with no rooms.
func NewRouter() *Router {
	return &Router{rooms: make(map[string]map[string]Subscriber)}
}

// Subscribe adds sub to the showtime room.
func (r *Router) Subscribe(showtimeID string, sub Subscriber) {
	r.mu.Lock()
	defer r.mu.Unlock()
	members, ok := r.rooms[showtimeID]
	if !ok {
		members = make(map[string]Subscriber)
		r.rooms[showtimeID] = members
	}
	members[sub.SessionID()] = sub
}

// Unsubscribe removes a session from the room and drops empty rooms.
func (r *Router) Unsubscribe(showtimeID, sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if members, ok := r.rooms[showtimeID]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.rooms, showtimeID)
		}
	}
}

// CloseRoom removes a room and returns the sessions that were in it.
func (r *Router) CloseRoom(showtimeID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := r.rooms[showtimeID]
	delete(r.rooms, showtimeID)
	out := make([]string, 0, len(members))
	for id := range members {
		out = append(out, id)
	}
	return out
}

// Publish delivers ev to every member of the room and returns how many
// deliveries were accepted.  Delivery is best effort; a dropped event is
// repaired by the client's next snapshot.
func (r *Router) Publish(showtimeID string, ev Event) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := 0
	for _, sub := range r.rooms[showtimeID] {
		if sub.Deliver(ev) {
			n++
		}
	}
	return n
}

// Members returns the number of subscribers in a room.
func (r *Router) Members(showtimeID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms[showtimeID])
}
