package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"CivicScanner/internal/domain"
	"CivicScanner/internal/ports"
)

var errMissingUserID = errors.New("user id is required")

var userColumns = []string{"id", "name", "city", "region", "country", "lat", "lon", "created_at", "updated_at"}

// UserRepository stores users in SQLite.
type UserRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

var _ ports.UserRepository = (*UserRepository)(nil)

// NewUserRepository wires an open database handle.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db, now: time.Now}
}

// UpsertUser inserts or updates by id, preserving created_at and refreshing updated_at.
func (r *UserRepository) UpsertUser(ctx context.Context, user domain.User) (domain.User, error) {
	if user.ID == "" {
		return user, errMissingUserID
	}
	if user.Country == "" {
		user.Country = domain.DefaultCountry
	}
	now := r.now().UTC().Format(time.RFC3339)

	query, args, err := sq.Insert("users").
		Columns(userColumns...).
		Values(user.ID, user.Name, user.City, user.Region, user.Country, user.Lat, user.Lon, now, now).
		Suffix(`ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			city = excluded.city,
			region = excluded.region,
			country = excluded.country,
			lat = excluded.lat,
			lon = excluded.lon,
			updated_at = excluded.updated_at`).
		ToSql()
	if err != nil {
		return user, fmt.Errorf("build upsert: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return user, fmt.Errorf("upsert user %s: %w", user.ID, err)
	}

	saved, _, err := r.GetUser(ctx, user.ID)
	if err != nil {
		return user, err
	}
	return saved, nil
}

// GetUser loads a user; the bool is false when no row exists.
func (r *UserRepository) GetUser(ctx context.Context, id string) (domain.User, bool, error) {
	query, args, err := sq.Select(userColumns...).From("users").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.User{}, false, fmt.Errorf("build user query: %w", err)
	}

	var row struct {
		ID        string          `db:"id"`
		Name      sql.NullString  `db:"name"`
		City      sql.NullString  `db:"city"`
		Region    sql.NullString  `db:"region"`
		Country   sql.NullString  `db:"country"`
		Lat       sql.NullFloat64 `db:"lat"`
		Lon       sql.NullFloat64 `db:"lon"`
		CreatedAt sql.NullString  `db:"created_at"`
		UpdatedAt sql.NullString  `db:"updated_at"`
	}
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, fmt.Errorf("get user %s: %w", id, err)
	}

	user := domain.User{
		ID:        row.ID,
		City:      row.City.String,
		Region:    row.Region.String,
		Country:   row.Country.String,
		CreatedAt: row.CreatedAt.String,
		UpdatedAt: row.UpdatedAt.String,
	}
	if row.Name.Valid {
		user.Name = &row.Name.String
	}
	if row.Lat.Valid {
		user.Lat = &row.Lat.Float64
	}
	if row.Lon.Valid {
		user.Lon = &row.Lon.Float64
	}
	return user, true, nil
}
