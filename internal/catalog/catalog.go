// Package catalog holds the client's local copy of the record store: the
// restaurant list the discovery pipeline reads, per-restaurant review lists,
// and the signed-in user's favorites.
//
// Writers replace records wholesale. Readers always get copies, so a caller
// can sort or filter what it receives without disturbing anyone else.
package catalog

import (
	"cmp"
	"slices"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/sakif/halal-finder/internal/model"
)

// DefaultReviewTTL bounds how long a fetched review list is trusted before
// the next read goes back to the store.
const DefaultReviewTTL = 5 * time.Minute

type Catalog struct {
	mu          sync.RWMutex
	restaurants []model.Restaurant
	loaded      bool

	favorites       map[string]bool
	favoritesLoaded bool
	favoritesGen    uint64 // bumped on every favorites write

	// reviews maps restaurant ID → []model.Review (newest first).
	// No janitor goroutine: expired entries are skipped by Get and swept on
	// the next write.
	reviews *cache.Cache
}

// New returns an empty catalog whose review lists expire after reviewTTL.
// A non-positive TTL means DefaultReviewTTL.
func New(reviewTTL time.Duration) *Catalog {
	if reviewTTL <= 0 {
		reviewTTL = DefaultReviewTTL
	}
	return &Catalog{
		favorites: make(map[string]bool),
		reviews:   cache.New(reviewTTL, 0),
	}
}

// Restaurants returns a copy of the local restaurant list in store order.
func (c *Catalog) Restaurants() []model.Restaurant {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.restaurants)
}

// Loaded reports whether the restaurant list has been fetched at least once.
func (c *Catalog) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// Restaurant looks up one restaurant by ID.
func (c *Catalog) Restaurant(id string) (model.Restaurant, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, r := range c.restaurants {
		if r.ID == id {
			return r, true
		}
	}
	return model.Restaurant{}, false
}

// ReplaceRestaurants installs a freshly fetched list.
func (c *Catalog) ReplaceRestaurants(rs []model.Restaurant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.restaurants = slices.Clone(rs)
	c.loaded = true
}

// AppendRestaurant folds a newly inserted record into the list. A record whose
// ID is already present replaces the old copy in place instead of duplicating
// it.
func (c *Catalog) AppendRestaurant(r model.Restaurant) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.restaurants {
		if c.restaurants[i].ID == r.ID {
			c.restaurants[i] = r
			return
		}
	}
	c.restaurants = append(c.restaurants, r)
}

// Reviews returns the cached reviews for a restaurant, newest first.
// ok is false when nothing is cached or the entry has expired.
func (c *Catalog) Reviews(restaurantID string) (reviews []model.Review, ok bool) {
	v, found := c.reviews.Get(restaurantID)
	if !found {
		return nil, false
	}
	return slices.Clone(v.([]model.Review)), true
}

// SetReviews caches a fetched review list, re-sorting it newest first so a
// store that ignores ordering still yields the documented order.
func (c *Catalog) SetReviews(restaurantID string, reviews []model.Review) {
	sorted := slices.Clone(reviews)
	SortReviews(sorted)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reviews.DeleteExpired()
	c.reviews.SetDefault(restaurantID, sorted)
}

// PrependReview folds a newly inserted review into the cached list. If no
// list is cached there is nothing to fold into; the next read fetches the
// full list, which already contains the review.
func (c *Catalog) PrependReview(r model.Review) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, found := c.reviews.Get(r.RestaurantID)
	if !found {
		return
	}
	existing := v.([]model.Review)
	next := make([]model.Review, 0, len(existing)+1)
	next = append(next, r)
	for _, e := range existing {
		if e.ID != r.ID {
			next = append(next, e)
		}
	}
	c.reviews.SetDefault(r.RestaurantID, next)
}

// InvalidateReviews drops the cached list for one restaurant.
func (c *Catalog) InvalidateReviews(restaurantID string) {
	c.reviews.Delete(restaurantID)
}

// IsFavorite reports whether the current user saved the restaurant.
func (c *Catalog) IsFavorite(restaurantID string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.favorites[restaurantID]
}

// FavoritesLoaded reports whether the favorite set came from the store since
// the last ClearUserState. Until then IsFavorite answers false for everything.
func (c *Catalog) FavoritesLoaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.favoritesLoaded
}

// FavoritesGeneration changes on every favorites write. Take it before a
// fetch and hand it to ReplaceFavoritesIf.
func (c *Catalog) FavoritesGeneration() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.favoritesGen
}

// ReplaceFavorites installs the favorite set fetched for the current user.
func (c *Catalog) ReplaceFavorites(restaurantIDs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaceFavoritesLocked(restaurantIDs)
}

// ReplaceFavoritesIf installs restaurantIDs only if no favorites write
// happened since gen was taken. It reports whether the set was installed.
func (c *Catalog) ReplaceFavoritesIf(gen uint64, restaurantIDs []string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.favoritesGen != gen {
		return false
	}
	c.replaceFavoritesLocked(restaurantIDs)
	return true
}

func (c *Catalog) replaceFavoritesLocked(restaurantIDs []string) {
	c.favorites = make(map[string]bool, len(restaurantIDs))
	for _, id := range restaurantIDs {
		c.favorites[id] = true
	}
	c.favoritesLoaded = true
	c.favoritesGen++
}

// SetFavorite records one toggle.
func (c *Catalog) SetFavorite(restaurantID string, on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.favoritesGen++
	if on {
		c.favorites[restaurantID] = true
		return
	}
	delete(c.favorites, restaurantID)
}

// Favorites lists favorite restaurant IDs in no particular order.
func (c *Catalog) Favorites() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.favorites))
	for id := range c.favorites {
		ids = append(ids, id)
	}
	return ids
}

// ClearUserState forgets everything tied to the signed-in user. Called on
// sign-out so one user's favorites never show under the next session.
func (c *Catalog) ClearUserState() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.favorites = make(map[string]bool)
	c.favoritesLoaded = false
	c.favoritesGen++
}

// SortReviews orders reviews newest first; equal timestamps keep their order.
func SortReviews(reviews []model.Review) {
	slices.SortStableFunc(reviews, func(a, b model.Review) int {
		return cmp.Compare(b.CreatedAt.UnixNano(), a.CreatedAt.UnixNano())
	})
}
