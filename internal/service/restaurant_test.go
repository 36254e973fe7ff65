package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/halal-finder/internal/apperror"
	"github.com/sakif/halal-finder/internal/discovery"
	"github.com/sakif/halal-finder/internal/model"
	"github.com/sakif/halal-finder/internal/repository/sqlite"
)

// newTestRestaurantService runs against a real in-memory database. It also
// returns one registered user, since reviews and favorites reference users.
func newTestRestaurantService(t *testing.T) (*RestaurantService, *sqlite.DB, string) {
	t.Helper()
	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	user := &model.User{Email: "alice@example.com", Login: "alice"}
	require.NoError(t, db.Create(context.Background(), user))

	return NewRestaurantService(db, testLogger()), db, user.ID
}

func TestRestaurantService_Create(t *testing.T) {
	svc, _, userID := newTestRestaurantService(t)
	ctx := context.Background()

	r, err := svc.Create(ctx, userID, model.RestaurantDraft{Name: "  Amber House ", Rating: 4})
	require.NoError(t, err)
	assert.Equal(t, "Amber House", r.Name, "name is trimmed")
	assert.Equal(t, userID, r.CreatedBy)

	got, err := svc.Get(ctx, r.ID)
	require.NoError(t, err)
	assert.Equal(t, r.ID, got.ID)
}

func TestRestaurantService_CreateRules(t *testing.T) {
	svc, _, userID := newTestRestaurantService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "", model.RestaurantDraft{Name: "X"})
	assert.ErrorIs(t, err, apperror.ErrNotAuthenticated)

	_, err = svc.Create(ctx, userID, model.RestaurantDraft{Name: ""})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.Create(ctx, userID, model.RestaurantDraft{Name: "X", Rating: 6})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRestaurantService_View(t *testing.T) {
	svc, db, _ := newTestRestaurantService(t)
	ctx := context.Background()
	_, err := db.Seed(ctx)
	require.NoError(t, err)

	vm, err := svc.View(ctx, model.QueryState{
		SortOption:          model.SortByRating,
		CertificationFilter: model.CertificationAll,
		GroupingKey:         model.GroupByCuisine,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"Afghani", "Pakistani", "Lebanese"}, vm.Labels(), "groups follow rating order")
	assert.Equal(t, len(sqlite.SampleRestaurants), vm.Len())

	vm, err = svc.View(ctx, model.QueryState{SearchTerm: "karahi"})
	require.NoError(t, err)
	rs, ok := vm.Group(discovery.LabelAll)
	require.True(t, ok)
	require.Len(t, rs, 1)
	assert.Equal(t, "Lahore Karahi", rs[0].Name)
}

func TestRestaurantService_Get(t *testing.T) {
	svc, _, _ := newTestRestaurantService(t)

	_, err := svc.Get(context.Background(), " ")
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestRestaurantService_Reviews(t *testing.T) {
	svc, _, userID := newTestRestaurantService(t)
	ctx := context.Background()
	r, err := svc.Create(ctx, userID, model.RestaurantDraft{Name: "Maroush", Rating: 4})
	require.NoError(t, err)

	_, err = svc.AddReview(ctx, "", r.ID, model.ReviewDraft{Rating: 5, Comment: "Great"})
	assert.ErrorIs(t, err, apperror.ErrNotAuthenticated)

	_, err = svc.AddReview(ctx, userID, r.ID, model.ReviewDraft{Rating: 9, Comment: "Great"})
	assert.ErrorIs(t, err, apperror.ErrValidation)

	_, err = svc.AddReview(ctx, userID, "missing", model.ReviewDraft{Rating: 5, Comment: "Great"})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	rev, err := svc.AddReview(ctx, userID, r.ID, model.ReviewDraft{Rating: 5, Comment: "Great shawarma"})
	require.NoError(t, err)

	reviews, err := svc.ListReviews(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, reviews, 1)
	assert.Equal(t, rev.ID, reviews[0].ID)

	mine, err := svc.ListReviewsByAuthor(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = svc.ListReviews(ctx, "missing")
	assert.True(t, errors.Is(err, apperror.ErrNotFound))
}

func TestRestaurantService_Favorites(t *testing.T) {
	svc, _, userID := newTestRestaurantService(t)
	ctx := context.Background()
	r, err := svc.Create(ctx, userID, model.RestaurantDraft{Name: "Maroush"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.SetFavorite(ctx, "", r.ID, true), apperror.ErrNotAuthenticated)

	require.NoError(t, svc.SetFavorite(ctx, userID, r.ID, true))
	require.NoError(t, svc.SetFavorite(ctx, userID, r.ID, true))
	ids, err := svc.ListFavorites(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, []string{r.ID}, ids)

	require.NoError(t, svc.SetFavorite(ctx, userID, r.ID, false))
	ids, err = svc.ListFavorites(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}
