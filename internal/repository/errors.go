// Package repository holds the database/sql data access for users, the movie
// catalogue, theatres, showtimes and bookings.  Methods with a Tx suffix run
// inside a caller-owned transaction and never commit it.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrMovieNotFound    = errors.New("movie not found")
	ErrTheatreNotFound  = errors.New("theatre not found")
	ErrScreenNotFound   = errors.New("screen not found")
	ErrShowtimeNotFound = errors.New("showtime not found")
	ErrBookingNotFound  = errors.New("booking not found")

	// ErrEmailExists is returned when registering an email twice.
	ErrEmailExists = errors.New("email already exists")

	// ErrConflict signals a uniqueness or dependent-row violation, such as a
	// duplicate screen name or deleting a movie that has bookings.
	ErrConflict = errors.New("conflict")

	// ErrSeatsUnavailable is returned when at least one showtime seat in a
	// booking is no longer available.  Nothing has been written.
	ErrSeatsUnavailable = errors.New("seats no longer available")

	// ErrInvalidRefresh covers unknown, revoked and expired refresh tokens.
	ErrInvalidRefresh = errors.New("invalid refresh token")
)

const (
	mysqlDuplicateEntry = 1062
	mysqlRowReferenced  = 1451
	mysqlNoReferenced   = 1452
)

func mysqlCode(err error) uint16 {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number
	}
	return 0
}

func isDuplicate(err error) bool { return mysqlCode(err) == mysqlDuplicateEntry }

func isForeignKey(err error) bool {
	c := mysqlCode(err)
	return c == mysqlRowReferenced || c == mysqlNoReferenced
}

// placeholders returns "?,?,?" for n arguments.
func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
