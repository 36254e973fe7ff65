package catalog

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/halal-finder/internal/model"
)

func TestRestaurants_ReturnsCopy(t *testing.T) {
	c := New(0)
	c.ReplaceRestaurants([]model.Restaurant{{ID: "a", Name: "Maroush"}})

	got := c.Restaurants()
	got[0].Name = "changed"

	again := c.Restaurants()
	assert.Equal(t, "Maroush", again[0].Name)
	assert.True(t, c.Loaded())
}

func TestAppendRestaurant(t *testing.T) {
	c := New(0)
	c.ReplaceRestaurants([]model.Restaurant{{ID: "a", Name: "Maroush"}})

	c.AppendRestaurant(model.Restaurant{ID: "b", Name: "Noor"})
	c.AppendRestaurant(model.Restaurant{ID: "a", Name: "Maroush Edgware"})

	got := c.Restaurants()
	require.Len(t, got, 2)
	assert.Equal(t, "Maroush Edgware", got[0].Name, "same ID replaces wholesale")
	assert.Equal(t, "Noor", got[1].Name, "new records are appended")

	r, ok := c.Restaurant("b")
	assert.True(t, ok)
	assert.Equal(t, "Noor", r.Name)
}

func TestSetReviews_SortsNewestFirst(t *testing.T) {
	c := New(0)
	now := time.Now()
	c.SetReviews("r1", []model.Review{
		{ID: "old", RestaurantID: "r1", CreatedAt: now.Add(-time.Hour)},
		{ID: "new", RestaurantID: "r1", CreatedAt: now},
	})

	got, ok := c.Reviews("r1")
	require.True(t, ok)
	assert.Equal(t, "new", got[0].ID)
	assert.Equal(t, "old", got[1].ID)
}

func TestPrependReview(t *testing.T) {
	c := New(0)
	now := time.Now()
	c.SetReviews("r1", []model.Review{{ID: "x", RestaurantID: "r1", CreatedAt: now.Add(-time.Minute)}})

	c.PrependReview(model.Review{ID: "y", RestaurantID: "r1", CreatedAt: now})

	got, _ := c.Reviews("r1")
	require.Len(t, got, 2)
	assert.Equal(t, "y", got[0].ID)

	t.Run("not cached is a no-op", func(t *testing.T) {
		c.PrependReview(model.Review{ID: "z", RestaurantID: "r2"})
		_, ok := c.Reviews("r2")
		assert.False(t, ok)
	})
}

func TestReviews_Expire(t *testing.T) {
	c := New(10 * time.Millisecond)
	c.SetReviews("r1", []model.Review{{ID: "x", RestaurantID: "r1"}})

	time.Sleep(30 * time.Millisecond)
	_, ok := c.Reviews("r1")
	assert.False(t, ok)
}

func TestFavorites(t *testing.T) {
	c := New(0)
	c.ReplaceFavorites([]string{"a", "b"})
	c.SetFavorite("c", true)
	c.SetFavorite("a", false)

	assert.ElementsMatch(t, []string{"b", "c"}, c.Favorites())
	assert.True(t, c.IsFavorite("b"))
	assert.False(t, c.IsFavorite("a"))

	c.ClearUserState()
	assert.Empty(t, c.Favorites())
}

func TestFavoritesLoaded(t *testing.T) {
	c := New(0)
	assert.False(t, c.FavoritesLoaded())

	c.ReplaceFavorites(nil)
	assert.True(t, c.FavoritesLoaded())

	c.ClearUserState()
	assert.False(t, c.FavoritesLoaded())
}

func TestReplaceFavoritesIf_SkipsStaleFetch(t *testing.T) {
	c := New(0)
	gen := c.FavoritesGeneration()

	// A toggle lands while the fetch is out.
	c.SetFavorite("b", true)

	assert.False(t, c.ReplaceFavoritesIf(gen, []string{"a"}))
	assert.ElementsMatch(t, []string{"b"}, c.Favorites())

	gen = c.FavoritesGeneration()
	assert.True(t, c.ReplaceFavoritesIf(gen, []string{"a"}))
	assert.ElementsMatch(t, []string{"a"}, c.Favorites())
	assert.True(t, c.FavoritesLoaded())
}
