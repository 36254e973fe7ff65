package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/halal-finder/internal/apperror"
	"github.com/sakif/halal-finder/internal/model"
	"github.com/sakif/halal-finder/internal/repository"
)

var (
	_ repository.RecordStore   = (*DB)(nil)
	_ repository.FavoriteStore = (*DB)(nil)
)

const restaurantColumns = `id, name, description, address, rating, certification,
	image_ref, external_map_link, hours, phone, cuisine, location, created_by, created_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRestaurant(s rowScanner) (model.Restaurant, error) {
	var r model.Restaurant
	var cert string
	err := s.Scan(
		&r.ID, &r.Name, &r.Description, &r.Address, &r.Rating, &cert,
		&r.ImageRef, &r.ExternalMapLink, &r.Hours, &r.Phone,
		&r.Cuisine, &r.Location, &r.CreatedBy, &r.CreatedAt,
	)
	r.Certification = model.Certification(cert)
	return r, err
}

// InsertRestaurant persists a draft and returns the canonical record with its
// generated xid and creation time. The draft is expected to be validated by
// the caller.
func (db *DB) InsertRestaurant(ctx context.Context, authorID string, draft model.RestaurantDraft) (*model.Restaurant, error) {
	r := draft.ToRestaurant(authorID)
	r.ID = xid.New().String()
	r.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO restaurants (`+restaurantColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Name, r.Description, r.Address, r.Rating, string(r.Certification),
		r.ImageRef, r.ExternalMapLink, r.Hours, r.Phone,
		r.Cuisine, r.Location, r.CreatedBy, r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: creating restaurant: %w", err)
	}

	return &r, nil
}

// GetRestaurant returns apperror.ErrNotFound when no row has the ID.
func (db *DB) GetRestaurant(ctx context.Context, id string) (*model.Restaurant, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+restaurantColumns+` FROM restaurants WHERE id = ?`, id)

	r, err := scanRestaurant(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("restaurant", id)
		}
		return nil, fmt.Errorf("sqlite: getting restaurant %s: %w", id, err)
	}
	return &r, nil
}

// ListRestaurants returns every restaurant in insertion order. Sorting and
// filtering belong to the discovery pipeline, not the store.
func (db *DB) ListRestaurants(ctx context.Context) ([]model.Restaurant, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+restaurantColumns+` FROM restaurants ORDER BY created_at, rowid`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing restaurants: %w", err)
	}
	defer rows.Close()

	restaurants := make([]model.Restaurant, 0)
	for rows.Next() {
		r, err := scanRestaurant(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning restaurant row: %w", err)
		}
		restaurants = append(restaurants, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating restaurants: %w", err)
	}

	return restaurants, nil
}

// CountRestaurants is used by the seeder to decide whether the table is empty.
func (db *DB) CountRestaurants(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM restaurants`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting restaurants: %w", err)
	}
	return n, nil
}

// AddFavorite is idempotent: saving an already-saved restaurant succeeds.
func (db *DB) AddFavorite(ctx context.Context, userID, restaurantID string) error {
	if _, err := db.GetRestaurant(ctx, restaurantID); err != nil {
		return err
	}
	_, err := db.conn.ExecContext(ctx,
		`INSERT OR IGNORE INTO favorites (user_id, restaurant_id, created_at) VALUES (?, ?, ?)`,
		userID, restaurantID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("sqlite: adding favorite %s for %s: %w", restaurantID, userID, err)
	}
	return nil
}

// RemoveFavorite is idempotent as well.
func (db *DB) RemoveFavorite(ctx context.Context, userID, restaurantID string) error {
	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM favorites WHERE user_id = ? AND restaurant_id = ?`,
		userID, restaurantID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: removing favorite %s for %s: %w", restaurantID, userID, err)
	}
	return nil
}

// ListFavorites returns restaurant IDs, most recently saved first.
func (db *DB) ListFavorites(ctx context.Context, userID string) ([]string, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT restaurant_id FROM favorites WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing favorites for %s: %w", userID, err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("sqlite: scanning favorite row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating favorites: %w", err)
	}
	return ids, nil
}
