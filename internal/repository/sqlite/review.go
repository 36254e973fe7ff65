package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/halal-finder/internal/model"
)

const reviewColumns = `id, restaurant_id, author_id, rating, comment, created_at`

func scanReview(s rowScanner) (model.Review, error) {
	var r model.Review
	var author sql.NullString
	if err := s.Scan(&r.ID, &r.RestaurantID, &author, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
		return r, err
	}
	if author.Valid {
		r.AuthorID = &author.String
	}
	return r, nil
}

// InsertReview appends a review. An empty authorID stores NULL.
// Returns apperror.ErrNotFound if the restaurant does not exist.
func (db *DB) InsertReview(ctx context.Context, authorID, restaurantID string, draft model.ReviewDraft) (*model.Review, error) {
	if _, err := db.GetRestaurant(ctx, restaurantID); err != nil {
		return nil, err
	}

	r := model.Review{
		ID:           xid.New().String(),
		RestaurantID: restaurantID,
		Rating:       draft.Rating,
		Comment:      draft.Comment,
		CreatedAt:    time.Now().UTC(),
	}
	var author sql.NullString
	if authorID != "" {
		author = sql.NullString{String: authorID, Valid: true}
		r.AuthorID = &authorID
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO reviews (`+reviewColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.RestaurantID, author, r.Rating, r.Comment, r.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: creating review for %s: %w", restaurantID, err)
	}
	return &r, nil
}

// ListReviews returns a restaurant's reviews, newest first.
func (db *DB) ListReviews(ctx context.Context, restaurantID string) ([]model.Review, error) {
	return db.queryReviews(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE restaurant_id = ?
		 ORDER BY created_at DESC, rowid DESC`,
		restaurantID,
	)
}

// ListReviewsByAuthor returns one user's reviews across all restaurants,
// newest first.
func (db *DB) ListReviewsByAuthor(ctx context.Context, authorID string) ([]model.Review, error) {
	return db.queryReviews(ctx,
		`SELECT `+reviewColumns+` FROM reviews WHERE author_id = ?
		 ORDER BY created_at DESC, rowid DESC`,
		authorID,
	)
}

func (db *DB) queryReviews(ctx context.Context, query string, arg string) ([]model.Review, error) {
	rows, err := db.conn.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing reviews: %w", err)
	}
	defer rows.Close()

	reviews := make([]model.Review, 0)
	for rows.Next() {
		r, err := scanReview(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning review row: %w", err)
		}
		reviews = append(reviews, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating reviews: %w", err)
	}
	return reviews, nil
}
