// Package mutation performs the gated writes: adding a restaurant, adding a
// review and toggling a favorite.
//
// Every submit runs the same checks in the same order:
//
//  1. the session gate must allow mutation (NotAuthenticated otherwise, and
//     the store is never contacted)
//  2. the draft must validate
//  3. the same action must not already be in flight (double submit)
//  4. the store call, bounded by Options.Timeout when set
//
// A successful write is folded back into the catalog so the discovery view
// reflects it. Failures are returned to the caller as they are; nothing is
// retried, and since drafts are passed by value the caller's form is never
// cleared by a failed attempt.
package mutation

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sakif/halal-finder/internal/apperror"
	"github.com/sakif/halal-finder/internal/catalog"
	"github.com/sakif/halal-finder/internal/metrics"
	"github.com/sakif/halal-finder/internal/model"
	"github.com/sakif/halal-finder/internal/repository"
	"github.com/sakif/halal-finder/internal/session"
)

// Gate is the part of session.Gate the coordinator reads.
type Gate interface {
	State() session.State
}

// Strategy selects how a successful write reaches the catalog.
type Strategy int

const (
	// FoldEcho folds the record echoed by the store into the catalog. When the
	// store echoes nothing usable it falls back to Refetch.
	FoldEcho Strategy = iota
	// Refetch replaces the affected catalog slice with a fresh read.
	Refetch
)

func (s Strategy) String() string {
	if s == Refetch {
		return "refetch"
	}
	return "fold-echo"
}

// Options configures a Coordinator. The zero value is FoldEcho, no timeout,
// the default logger and no metrics.
type Options struct {
	Strategy Strategy
	// Timeout bounds each store round trip, including any refetch. Zero
	// means no limit beyond the caller's context.
	Timeout time.Duration
	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Metric outcome labels.
const (
	outcomeOK               = "ok"
	outcomeNotAuthenticated = "not_authenticated"
	outcomeValidation       = "validation"
	outcomeInFlight         = "in_flight"
	outcomeTimeout          = "timeout"
	outcomeStore            = "store"
)

type Coordinator struct {
	gate    Gate
	store   repository.Store
	catalog *catalog.Catalog
	opts    Options
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	inFlight map[string]struct{}
}

func New(gate Gate, store repository.Store, cat *catalog.Catalog, opts Options) *Coordinator {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		gate:     gate,
		store:    store,
		catalog:  cat,
		opts:     opts,
		logger:   logger,
		metrics:  opts.Metrics,
		inFlight: make(map[string]struct{}),
	}
}

// SubmitNewRestaurant inserts draft and folds the result into the catalog.
// It returns the record as the catalog now holds it.
func (c *Coordinator) SubmitNewRestaurant(ctx context.Context, draft model.RestaurantDraft) (*model.Restaurant, error) {
	const action = "restaurant"

	user, err := c.authorize(action, "add a restaurant")
	if err != nil {
		return nil, err
	}
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		c.metrics.RecordMutation(action, outcomeValidation)
		return nil, err
	}
	release, err := c.acquire(action, "adding a restaurant")
	if err != nil {
		return nil, err
	}
	defer release()

	opCtx, cancel := c.withTimeout(ctx)
	defer cancel()
	start := time.Now()

	echo, err := c.store.InsertRestaurant(opCtx, user.ID, draft)
	if err != nil {
		return nil, c.storeError(ctx, opCtx, action, "insert restaurant", err)
	}

	var result model.Restaurant
	if c.opts.Strategy == FoldEcho && echo != nil && echo.ID != "" {
		result = *echo
		c.catalog.AppendRestaurant(result)
	} else {
		c.logger.Debug("mutation: refetching restaurants",
			slog.String("strategy", c.opts.Strategy.String()),
			slog.Bool("echo", echo != nil),
		)
		list, err := c.store.ListRestaurants(opCtx)
		if err != nil {
			return nil, c.storeError(ctx, opCtx, action, "refresh restaurants", err)
		}
		c.catalog.ReplaceRestaurants(list)
		result = findInserted(list, echo, draft, user.ID)
	}

	c.metrics.RecordMutation(action, outcomeOK)
	c.metrics.RecordMutationDuration(action, time.Since(start))
	c.logger.Info("restaurant added",
		slog.String("id", result.ID),
		slog.String("name", result.Name),
		slog.String("user_id", user.ID),
	)
	return &result, nil
}

// SubmitReview inserts a review for restaurantID. The catalog's cached review
// list for that restaurant, if any, gains the new review at the front.
func (c *Coordinator) SubmitReview(ctx context.Context, restaurantID string, draft model.ReviewDraft) (*model.Review, error) {
	const action = "review"

	user, err := c.authorize(action, "add a review")
	if err != nil {
		return nil, err
	}
	draft = draft.Normalize()
	if err := draft.Validate(); err != nil {
		c.metrics.RecordMutation(action, outcomeValidation)
		return nil, err
	}
	if restaurantID == "" {
		c.metrics.RecordMutation(action, outcomeValidation)
		return nil, apperror.ValidationFailed("restaurantId", "restaurantId is required")
	}
	release, err := c.acquire("review:"+restaurantID, "adding a review")
	if err != nil {
		return nil, err
	}
	defer release()

	opCtx, cancel := c.withTimeout(ctx)
	defer cancel()
	start := time.Now()

	echo, err := c.store.InsertReview(opCtx, user.ID, restaurantID, draft)
	if err != nil {
		return nil, c.storeError(ctx, opCtx, action, "insert review", err)
	}

	var result model.Review
	if c.opts.Strategy == FoldEcho && echo != nil && echo.ID != "" {
		result = *echo
		c.catalog.PrependReview(result)
	} else {
		list, err := c.store.ListReviews(opCtx, restaurantID)
		if err != nil {
			return nil, c.storeError(ctx, opCtx, action, "refresh reviews", err)
		}
		catalog.SortReviews(list)
		c.catalog.SetReviews(restaurantID, list)
		result = findInsertedReview(list, echo, restaurantID, draft, user.ID)
	}

	c.metrics.RecordMutation(action, outcomeOK)
	c.metrics.RecordMutationDuration(action, time.Since(start))
	c.logger.Info("review added",
		slog.String("id", result.ID),
		slog.String("restaurant_id", restaurantID),
		slog.String("user_id", user.ID),
	)
	return &result, nil
}

// ToggleFavorite flips the favorite flag for restaurantID and returns the new
// value. If the catalog has not loaded the user's favorites yet they are
// fetched first, so the flip starts from what the store holds.
func (c *Coordinator) ToggleFavorite(ctx context.Context, restaurantID string) (bool, error) {
	const action = "favorite"

	user, err := c.authorize(action, "save a favorite")
	if err != nil {
		return false, err
	}
	if restaurantID == "" {
		c.metrics.RecordMutation(action, outcomeValidation)
		return false, apperror.ValidationFailed("restaurantId", "restaurantId is required")
	}
	release, err := c.acquire("favorite:"+restaurantID, "updating this favorite")
	if err != nil {
		return false, err
	}
	defer release()

	opCtx, cancel := c.withTimeout(ctx)
	defer cancel()

	if !c.catalog.FavoritesLoaded() {
		gen := c.catalog.FavoritesGeneration()
		ids, err := c.store.ListFavorites(opCtx, user.ID)
		if err != nil {
			return false, c.storeError(ctx, opCtx, action, "list favorites", err)
		}
		c.catalog.ReplaceFavoritesIf(gen, ids)
	}

	want := !c.catalog.IsFavorite(restaurantID)
	if want {
		err = c.store.AddFavorite(opCtx, user.ID, restaurantID)
	} else {
		err = c.store.RemoveFavorite(opCtx, user.ID, restaurantID)
	}
	if err != nil {
		return !want, c.storeError(ctx, opCtx, action, "update favorite", err)
	}
	c.catalog.SetFavorite(restaurantID, want)
	c.metrics.RecordMutation(action, outcomeOK)
	return want, nil
}

func (c *Coordinator) authorize(action, verb string) (*model.User, error) {
	s := c.gate.State()
	if !s.MutationAllowed() {
		c.metrics.RecordMutation(action, outcomeNotAuthenticated)
		return nil, apperror.NotAuthenticated(verb)
	}
	return s.User, nil
}

// acquire claims key in the in-flight set. The returned func releases it.
func (c *Coordinator) acquire(key, what string) (release func(), err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[key]; busy {
		c.metrics.RecordMutation(actionOf(key), outcomeInFlight)
		return nil, apperror.InFlight(what)
	}
	c.inFlight[key] = struct{}{}
	return func() {
		c.mu.Lock()
		delete(c.inFlight, key)
		c.mu.Unlock()
	}, nil
}

func actionOf(key string) string {
	action, _, _ := strings.Cut(key, ":")
	return action
}

func (c *Coordinator) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.Timeout > 0 {
		return context.WithTimeout(ctx, c.opts.Timeout)
	}
	return context.WithCancel(ctx)
}

// storeError classifies a failed store call. Only our own deadline counts as
// a Timeout; a caller's deadline or cancellation is a store failure with the
// context error as its cause.
func (c *Coordinator) storeError(parent, opCtx context.Context, action, op string, err error) error {
	if c.opts.Timeout > 0 && parent.Err() == nil && errors.Is(opCtx.Err(), context.DeadlineExceeded) {
		c.metrics.RecordMutation(action, outcomeTimeout)
		c.logger.Warn("mutation timed out",
			slog.String("op", op),
			slog.Duration("timeout", c.opts.Timeout),
		)
		return apperror.Timeout(op)
	}
	c.metrics.RecordMutation(action, outcomeStore)
	c.logger.Warn("mutation failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return apperror.StoreFailed(op, err)
}

// findInserted picks the new record out of a refetched list. With an ID we
// match on it; otherwise the most recent record with the draft's name by this
// author. If neither is found the draft itself is returned, without an ID.
func findInserted(list []model.Restaurant, echo *model.Restaurant, draft model.RestaurantDraft, userID string) model.Restaurant {
	if echo != nil && echo.ID != "" {
		for _, r := range list {
			if r.ID == echo.ID {
				return r
			}
		}
		return *echo
	}
	for i := len(list) - 1; i >= 0; i-- {
		if list[i].Name == draft.Name && list[i].CreatedBy == userID {
			return list[i]
		}
	}
	return draft.ToRestaurant(userID)
}

// findInsertedReview does the same for reviews. The list is newest first.
func findInsertedReview(list []model.Review, echo *model.Review, restaurantID string, draft model.ReviewDraft, userID string) model.Review {
	if echo != nil && echo.ID != "" {
		for _, r := range list {
			if r.ID == echo.ID {
				return r
			}
		}
		return *echo
	}
	for _, r := range list {
		if r.AuthorID != nil && *r.AuthorID == userID && r.Comment == draft.Comment && r.Rating == draft.Rating {
			return r
		}
	}
	author := userID
	return model.Review{
		RestaurantID: restaurantID,
		AuthorID:     &author,
		Rating:       draft.Rating,
		Comment:      draft.Comment,
	}
}
