package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/movie-booking/internal/model"
	"github.com/iliyamo/movie-booking/internal/seatlock"
)

type memSeatStore struct {
	seats  map[uint64][]model.ShowtimeSeat
	booked []uint64
}

func (m *memSeatStore) ListByShowtime(_ context.Context, showtimeID uint64) ([]model.ShowtimeSeat, error) {
	return m.seats[showtimeID], nil
}

func (m *memSeatStore) MarkBooked(_ context.Context, _ uint64, seatIDs []uint64) error {
	m.booked = append(m.booked, seatIDs...)
	return nil
}

func TestSeatRegistry(t *testing.T) {
	store := &memSeatStore{seats: map[uint64][]model.ShowtimeSeat{
		7: {
			{ID: 11, SeatLabel: "B3", Status: model.SeatAvailable},
			{ID: 12, SeatLabel: "B4", Status: model.SeatBooked},
		},
	}}
	reg := NewSeatRegistry(store)

	seats, err := reg.ShowtimeSeats(context.Background(), "7")
	require.NoError(t, err)
	assert.Equal(t, []seatlock.RegistrySeat{
		{ShowtimeSeatID: "11", SeatLabel: "B3", Status: seatlock.CommittedAvailable},
		{ShowtimeSeatID: "12", SeatLabel: "B4", Status: seatlock.CommittedBooked},
	}, seats)

	seats, err = reg.ShowtimeSeats(context.Background(), "not-a-number")
	require.NoError(t, err)
	assert.Empty(t, seats)

	require.NoError(t, reg.MarkBooked(context.Background(), "7", []string{"11"}))
	assert.Equal(t, []uint64{11}, store.booked)
	assert.Error(t, reg.MarkBooked(context.Background(), "7", []string{"x"}))
}

func TestIDConversions(t *testing.T) {
	assert.Equal(t, []string{"1", "22"}, FormatIDs([]uint64{1, 22}))
	ids, err := ParseIDs([]string{"1", "22"})
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 22}, ids)
	_, err = ParseIDs([]string{"-1"})
	assert.Error(t, err)
}
