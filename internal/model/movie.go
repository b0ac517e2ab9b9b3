package model

import "time"

// Movie is a row of the movies table.  Cast and Genres are stored as JSON
// arrays.
type Movie struct {
	ID            uint64    `json:"id"`
	Title         string    `json:"title"`
	Description   string    `json:"description"`
	Director      string    `json:"director"`
	Cast          []string  `json:"cast"`
	Genres        []string  `json:"genres"`
	ReleaseDate   time.Time `json:"releaseDate"`
	DurationMin   int       `json:"durationMin"`
	Rating        string    `json:"rating,omitempty"`
	IMDBRating    *float64  `json:"imdbRating,omitempty"`
	TrailerURL    string    `json:"trailerUrl,omitempty"`
	PosterURL     string    `json:"posterUrl"`
	PosterHomeURL string    `json:"posterHomeUrl"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}
