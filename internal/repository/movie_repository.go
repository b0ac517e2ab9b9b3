package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/iliyamo/movie-booking/internal/model"
)

// MovieRepo stores the movie catalogue.
type MovieRepo struct{ db *sql.DB }

func NewMovieRepo(db *sql.DB) *MovieRepo { return &MovieRepo{db: db} }

// MovieFilter narrows List.  Query matches a substring of the title; Genre
// must be one of the movie's genres.
type MovieFilter struct {
	Query  string
	Genre  string
	Limit  int
	Offset int
}

const movieColumns = `id, title, description, director, cast_json, genres_json, release_date,
	duration_min, rating, imdb_rating, trailer_url, poster_url, poster_home_url, created_at, updated_at`

// List returns movies ordered by release date, newest first.
func (r *MovieRepo) List(ctx context.Context, f MovieFilter) ([]model.Movie, error) {
	var (
		where []string
		args  []interface{}
	)
	if q := strings.TrimSpace(f.Query); q != "" {
		where = append(where, "title LIKE ?")
		args = append(args, "%"+escapeLike(q)+"%")
	}
	if g := strings.TrimSpace(f.Genre); g != "" {
		where = append(where, "JSON_CONTAINS(genres_json, JSON_QUOTE(?))")
		args = append(args, g)
	}
	q := "SELECT " + movieColumns + " FROM movies"
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY release_date DESC, id DESC"
	if f.Limit > 0 {
		q += " LIMIT ? OFFSET ?"
		args = append(args, f.Limit, f.Offset)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Movie{}
	for rows.Next() {
		m, err := scanMovie(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetByID returns a movie or ErrMovieNotFound.
func (r *MovieRepo) GetByID(ctx context.Context, id uint64) (model.Movie, error) {
	m, err := scanMovie(r.db.QueryRowContext(ctx, "SELECT "+movieColumns+" FROM movies WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Movie{}, ErrMovieNotFound
	}
	return m, err
}

// Create inserts m and sets its ID.
func (r *MovieRepo) Create(ctx context.Context, m *model.Movie) error {
	cast, genres, err := encodeLists(m)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `INSERT INTO movies
		(title, description, director, cast_json, genres_json, release_date, duration_min,
		 rating, imdb_rating, trailer_url, poster_url, poster_home_url)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.Title, m.Description, m.Director, cast, genres, m.ReleaseDate, m.DurationMin,
		m.Rating, m.IMDBRating, m.TrailerURL, m.PosterURL, m.PosterHomeURL)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	m.ID = uint64(id)
	return nil
}

// Update overwrites every editable column of m.
func (r *MovieRepo) Update(ctx context.Context, m *model.Movie) error {
	cast, genres, err := encodeLists(m)
	if err != nil {
		return err
	}
	res, err := r.db.ExecContext(ctx, `UPDATE movies SET
		title=?, description=?, director=?, cast_json=?, genres_json=?, release_date=?, duration_min=?,
		rating=?, imdb_rating=?, trailer_url=?, poster_url=?, poster_home_url=?
		WHERE id=?`,
		m.Title, m.Description, m.Director, cast, genres, m.ReleaseDate, m.DurationMin,
		m.Rating, m.IMDBRating, m.TrailerURL, m.PosterURL, m.PosterHomeURL, m.ID)
	if err != nil {
		return err
	}
	return r.mustExist(ctx, res, m.ID)
}

// Delete removes a movie.  Movies whose showtimes have bookings cannot be
// deleted and yield ErrConflict.
func (r *MovieRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM movies WHERE id = ?", id)
	if err != nil {
		if isForeignKey(err) {
			return ErrConflict
		}
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrMovieNotFound
	}
	return nil
}

// Count returns the number of movies.
func (r *MovieRepo) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM movies").Scan(&n)
	return n, err
}

// mustExist distinguishes "no such row" from "nothing changed" after an
// UPDATE, since MySQL reports zero affected rows for both.
func (r *MovieRepo) mustExist(ctx context.Context, res sql.Result, id uint64) error {
	if n, err := res.RowsAffected(); err != nil || n > 0 {
		return err
	}
	var one int
	err := r.db.QueryRowContext(ctx, "SELECT 1 FROM movies WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrMovieNotFound
	}
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMovie(s rowScanner) (model.Movie, error) {
	var (
		m            model.Movie
		cast, genres []byte
		imdb         sql.NullFloat64
	)
	err := s.Scan(&m.ID, &m.Title, &m.Description, &m.Director, &cast, &genres, &m.ReleaseDate,
		&m.DurationMin, &m.Rating, &imdb, &m.TrailerURL, &m.PosterURL, &m.PosterHomeURL,
		&m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return model.Movie{}, err
	}
	if imdb.Valid {
		v := imdb.Float64
		m.IMDBRating = &v
	}
	if err := decodeList(cast, &m.Cast); err != nil {
		return model.Movie{}, err
	}
	if err := decodeList(genres, &m.Genres); err != nil {
		return model.Movie{}, err
	}
	return m, nil
}

func encodeLists(m *model.Movie) (string, string, error) {
	cast, err := json.Marshal(nonNil(m.Cast))
	if err != nil {
		return "", "", err
	}
	genres, err := json.Marshal(nonNil(m.Genres))
	if err != nil {
		return "", "", err
	}
	return string(cast), string(genres), nil
}

func decodeList(raw []byte, dst *[]string) error {
	*dst = []string{}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
