package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/halal-finder/internal/apperror"
	"github.com/sakif/halal-finder/internal/discovery"
	"github.com/sakif/halal-finder/internal/model"
	"github.com/sakif/halal-finder/internal/repository"
)

// RestaurantService enforces the write rules for restaurants, reviews and
// favorites and serves the read side, including server-side discovery views.
//
// It takes a repository.Store (an interface), so tests pass an in-memory
// fake and main.go passes *sqlite.DB.
type RestaurantService struct {
	store  repository.Store
	logger *slog.Logger
}

func NewRestaurantService(store repository.Store, logger *slog.Logger) *RestaurantService {
	return &RestaurantService{store: store, logger: logger}
}

// List returns every restaurant in insertion order.
func (s *RestaurantService) List(ctx context.Context) ([]model.Restaurant, error) {
	list, err := s.store.ListRestaurants(ctx)
	if err != nil {
		s.logger.Error("failed to list restaurants", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing restaurants: %w", err)
	}
	return list, nil
}

// View runs the discovery pipeline over the full list.
func (s *RestaurantService) View(ctx context.Context, q model.QueryState) (discovery.ViewModel, error) {
	list, err := s.List(ctx)
	if err != nil {
		return discovery.ViewModel{}, err
	}
	return discovery.ComputeView(list, q), nil
}

// Get returns apperror.ErrNotFound for an unknown ID.
func (s *RestaurantService) Get(ctx context.Context, id string) (*model.Restaurant, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.ValidationFailed("id", "restaurant ID is required")
	}
	return s.store.GetRestaurant(ctx, id)
}

// Create validates and stores a restaurant submitted by userID.
//
// The handler only checks that the JSON parses. Validation lives here so the
// same rules hold for every caller.
func (s *RestaurantService) Create(ctx context.Context, userID string, draft model.RestaurantDraft) (*model.Restaurant, error) {
	if userID == "" {
		return nil, apperror.NotAuthenticated("add a restaurant")
	}
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	r, err := s.store.InsertRestaurant(ctx, userID, draft)
	if err != nil {
		s.logger.Error("failed to create restaurant",
			slog.String("name", draft.Name),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating restaurant: %w", err)
	}

	s.logger.Info("restaurant created",
		slog.String("id", r.ID),
		slog.String("name", r.Name),
		slog.String("userID", userID),
	)
	return r, nil
}

// ListReviews returns a restaurant's reviews newest first. An unknown
// restaurant is ErrNotFound rather than an empty list.
func (s *RestaurantService) ListReviews(ctx context.Context, restaurantID string) ([]model.Review, error) {
	if _, err := s.Get(ctx, restaurantID); err != nil {
		return nil, err
	}
	reviews, err := s.store.ListReviews(ctx, restaurantID)
	if err != nil {
		return nil, fmt.Errorf("listing reviews for %s: %w", restaurantID, err)
	}
	return reviews, nil
}

// AddReview validates and stores a review by userID.
func (s *RestaurantService) AddReview(ctx context.Context, userID, restaurantID string, draft model.ReviewDraft) (*model.Review, error) {
	if userID == "" {
		return nil, apperror.NotAuthenticated("add a review")
	}
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	r, err := s.store.InsertReview(ctx, userID, restaurantID, draft)
	if err != nil {
		return nil, err
	}
	s.logger.Info("review created",
		slog.String("id", r.ID),
		slog.String("restaurantID", restaurantID),
		slog.String("userID", userID),
	)
	return r, nil
}

// ListReviewsByAuthor backs GET /api/me/reviews.
func (s *RestaurantService) ListReviewsByAuthor(ctx context.Context, userID string) ([]model.Review, error) {
	if userID == "" {
		return nil, apperror.NotAuthenticated("see your reviews")
	}
	reviews, err := s.store.ListReviewsByAuthor(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("listing reviews by %s: %w", userID, err)
	}
	return reviews, nil
}

// SetFavorite adds or removes restaurantID from userID's favorites. Both
// directions are idempotent.
func (s *RestaurantService) SetFavorite(ctx context.Context, userID, restaurantID string, on bool) error {
	if userID == "" {
		return apperror.NotAuthenticated("save a favorite")
	}
	if on {
		return s.store.AddFavorite(ctx, userID, restaurantID)
	}
	return s.store.RemoveFavorite(ctx, userID, restaurantID)
}

func (s *RestaurantService) ListFavorites(ctx context.Context, userID string) ([]string, error) {
	if userID == "" {
		return nil, apperror.NotAuthenticated("see your favorites")
	}
	return s.store.ListFavorites(ctx, userID)
}
