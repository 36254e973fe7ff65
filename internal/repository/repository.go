// Package repository declares the storage contracts the rest of the
// application depends on. Concrete implementations live in sub-packages
// (sqlite for the server, storeclient for the HTTP client) so callers program
// against these interfaces and tests substitute in-memory fakes.
package repository

import (
	"context"

	"github.com/sakif/halal-finder/internal/model"
)

// RecordStore is the restaurant and review store.
//
// Insert methods return the canonical record the store persisted (with its
// assigned ID and timestamps). An implementation that cannot echo the record
// may return (nil, nil); callers then fall back to re-fetching.
//
// authorID identifies the submitting user. Implementations that derive the
// author from their own credentials (an HTTP client sending a bearer token)
// may ignore it.
type RecordStore interface {
	ListRestaurants(ctx context.Context) ([]model.Restaurant, error)
	GetRestaurant(ctx context.Context, id string) (*model.Restaurant, error)
	ListReviews(ctx context.Context, restaurantID string) ([]model.Review, error)
	ListReviewsByAuthor(ctx context.Context, authorID string) ([]model.Review, error)
	InsertRestaurant(ctx context.Context, authorID string, draft model.RestaurantDraft) (*model.Restaurant, error)
	InsertReview(ctx context.Context, authorID, restaurantID string, draft model.ReviewDraft) (*model.Review, error)
}

// FavoriteStore persists per-user saved restaurants.
type FavoriteStore interface {
	AddFavorite(ctx context.Context, userID, restaurantID string) error
	RemoveFavorite(ctx context.Context, userID, restaurantID string) error
	ListFavorites(ctx context.Context, userID string) ([]string, error)
}

// Store is everything the client core needs from the record store.
type Store interface {
	RecordStore
	FavoriteStore
}

// UserRepository persists accounts.
type UserRepository interface {
	// Create inserts a new email/password account. Returns
	// apperror.ErrConflict if the email is taken.
	Create(ctx context.Context, user *model.User) error
	// Upsert inserts or refreshes a GitHub-linked account keyed by GitHubID.
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
}
