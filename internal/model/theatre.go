package model

import "time"

// Theatre is a cinema venue.
type Theatre struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	City      string    `json:"city"`
	Address   string    `json:"address"`
	CreatedAt time.Time `json:"createdAt"`
}

// Screen is an auditorium inside a theatre with a rectangular seat grid.
type Screen struct {
	ID        uint64    `json:"id"`
	TheatreID uint64    `json:"theatreId"`
	Name      string    `json:"name"`
	SeatRows  int       `json:"rows"`
	SeatCols  int       `json:"cols"`
	CreatedAt time.Time `json:"createdAt"`

	TheatreName string `json:"theatreName,omitempty"` // filled by cross-theatre listings only
}

// Seat is a physical seat of a screen.  Label is RowLabel followed by
// SeatNumber, e.g. "C5".
type Seat struct {
	ID         uint64 `json:"id"`
	ScreenID   uint64 `json:"screenId"`
	RowLabel   string `json:"row"`
	SeatNumber int    `json:"number"`
	Label      string `json:"label"`
}
