// Package directory is the surface a front end drives: it owns the query
// state, the local catalog, the session gate and the mutation coordinator,
// and hands out view models computed from them.
//
// LIFECYCLE:
//
//	d := directory.New(store, provider, directory.Options{Logger: logger})
//	if err := d.Open(ctx); err != nil { ... }
//	defer d.Close()
//
// Open loads the restaurant list and resolves the session in parallel. Close
// tears everything down; results that arrive afterwards are dropped, and
// every later mutation fails with ErrClosed.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/sakif/halal-finder/internal/apperror"
	"github.com/sakif/halal-finder/internal/catalog"
	"github.com/sakif/halal-finder/internal/discovery"
	"github.com/sakif/halal-finder/internal/metrics"
	"github.com/sakif/halal-finder/internal/model"
	"github.com/sakif/halal-finder/internal/mutation"
	"github.com/sakif/halal-finder/internal/repository"
	"github.com/sakif/halal-finder/internal/session"
)

// ErrClosed is returned by operations on a closed Directory.
var ErrClosed = errors.New("directory: closed")

type Options struct {
	// Locale drives name collation. The zero value is language.Und.
	Locale language.Tag
	// Strategy and Timeout are passed to the mutation coordinator.
	Strategy mutation.Strategy
	Timeout  time.Duration
	// ReviewTTL bounds how long fetched review lists are reused.
	ReviewTTL time.Duration
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
}

type Directory struct {
	store   repository.Store
	gate    *session.Gate
	catalog *catalog.Catalog
	coord   *mutation.Coordinator
	locale  language.Tag
	logger  *slog.Logger
	metrics *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	query     model.QueryState
	opened    bool
	closed    bool
	listeners map[int]func()
	nextID    int
	stopGate  func()
	// favoritesOf is the user whose favorites the catalog holds.
	favoritesOf string
}

func New(store repository.Store, provider session.Provider, opts Options) *Directory {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	gate := session.NewGate(provider, logger)
	cat := catalog.New(opts.ReviewTTL)
	ctx, cancel := context.WithCancel(context.Background())
	return &Directory{
		store:   store,
		gate:    gate,
		catalog: cat,
		coord: mutation.New(gate, store, cat, mutation.Options{
			Strategy: opts.Strategy,
			Timeout:  opts.Timeout,
			Logger:   logger,
			Metrics:  opts.Metrics,
		}),
		locale:    opts.Locale,
		logger:    logger,
		metrics:   opts.Metrics,
		ctx:       ctx,
		cancel:    cancel,
		query:     model.DefaultQuery(),
		listeners: make(map[int]func()),
	}
}

// Open fetches the restaurant list and resolves the session concurrently,
// then loads the user's favorites if someone is signed in. It returns once
// both have finished or ctx is done.
//
// A failed restaurant load is returned as a store error; the session gate
// keeps running, so Close must still be called.
func (d *Directory) Open(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrClosed
	}
	if d.opened {
		d.mu.Unlock()
		return nil
	}
	d.opened = true
	d.mu.Unlock()

	cancelWatch := d.gate.OnChange(d.handleSession)
	// The gate outlives Open, so it runs on the directory's own context.
	stop := d.gate.Start(d.ctx)
	d.mu.Lock()
	d.stopGate = func() {
		cancelWatch()
		stop()
	}
	d.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return d.loadRestaurants(gctx)
	})
	g.Go(func() error {
		select {
		case <-d.gate.Resolved():
			return nil
		case <-gctx.Done():
			return gctx.Err()
		}
	})
	err := g.Wait()

	d.logger.Info("directory opened",
		slog.Int("restaurants", len(d.catalog.Restaurants())),
		slog.String("session", string(d.gate.State().Status)),
	)
	return err
}

func (d *Directory) loadRestaurants(ctx context.Context) error {
	list, err := d.store.ListRestaurants(ctx)
	if err != nil {
		d.logger.Warn("directory: loading restaurants failed", slog.String("error", err.Error()))
		return apperror.StoreFailed("list restaurants", err)
	}
	if d.isClosed() {
		return ErrClosed
	}
	d.catalog.ReplaceRestaurants(list)
	d.emit()
	return nil
}

// handleSession reacts to gate transitions. It runs on whichever goroutine
// caused the change, so anything slow is pushed to a tracked goroutine.
func (d *Directory) handleSession(s session.State) {
	d.metrics.RecordSessionChange(string(s.Status))
	switch s.Status {
	case session.StatusAnonymous:
		d.setFavoritesOf("")
		d.catalog.ClearUserState()
	case session.StatusAuthenticated:
		// A token refresh keeps the loaded set; a different user starts empty.
		if d.setFavoritesOf(s.User.ID) {
			d.catalog.ClearUserState()
		}
		gen := d.catalog.FavoritesGeneration()
		d.goTracked(func(ctx context.Context) {
			d.loadFavorites(ctx, s.User.ID, gen)
		})
	}
	d.emit()
}

// setFavoritesOf records whose favorites the catalog holds and reports
// whether that changed.
func (d *Directory) setFavoritesOf(userID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	changed := d.favoritesOf != userID
	d.favoritesOf = userID
	return changed
}

// loadFavorites installs the user's favorites unless a toggle or another load
// touched them after gen was taken.
func (d *Directory) loadFavorites(ctx context.Context, userID string, gen uint64) {
	ids, err := d.store.ListFavorites(ctx, userID)
	if err != nil {
		if ctx.Err() == nil {
			d.logger.Warn("directory: loading favorites failed",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
		return
	}
	// The session may have moved on while we were fetching.
	if u := d.gate.CurrentUser(); u == nil || u.ID != userID || d.isClosed() {
		return
	}
	if !d.catalog.ReplaceFavoritesIf(gen, ids) {
		d.logger.Debug("directory: favorites changed during load, keeping local set",
			slog.String("user_id", userID),
		)
		return
	}
	d.emit()
}

// goTracked runs fn on a goroutine Close waits for. It does nothing once the
// directory is closed.
func (d *Directory) goTracked(fn func(ctx context.Context)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		fn(d.ctx)
	}()
}

// Close releases the session subscription, cancels outstanding background
// work and waits for it. Calling it again is a no-op.
func (d *Directory) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	stop := d.stopGate
	d.listeners = make(map[int]func())
	d.mu.Unlock()

	d.cancel()
	if stop != nil {
		stop()
	}
	d.gate.Close()
	d.wg.Wait()
	d.logger.Debug("directory closed")
}

func (d *Directory) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// =========================================================================
// READ SIDE
// =========================================================================

// ViewModel computes the grouped, filtered and sorted restaurant list for the
// current query.
func (d *Directory) ViewModel() discovery.ViewModel {
	d.metrics.RecordViewComputation()
	return discovery.ComputeViewLocale(d.locale, d.catalog.Restaurants(), d.Query())
}

func (d *Directory) SessionState() session.State {
	return d.gate.State()
}

func (d *Directory) Query() model.QueryState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.query
}

// Restaurant returns one restaurant, from the catalog when present and from
// the store otherwise.
func (d *Directory) Restaurant(ctx context.Context, id string) (*model.Restaurant, error) {
	if r, ok := d.catalog.Restaurant(id); ok {
		return &r, nil
	}
	r, err := d.store.GetRestaurant(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, err
		}
		return nil, apperror.StoreFailed("get restaurant", err)
	}
	return r, nil
}

// Reviews returns a restaurant's reviews newest first. A cached list is
// reused until it expires.
func (d *Directory) Reviews(ctx context.Context, restaurantID string) ([]model.Review, error) {
	if cached, ok := d.catalog.Reviews(restaurantID); ok {
		return cached, nil
	}
	list, err := d.store.ListReviews(ctx, restaurantID)
	if err != nil {
		return nil, apperror.StoreFailed("list reviews", err)
	}
	d.catalog.SetReviews(restaurantID, list)
	cached, _ := d.catalog.Reviews(restaurantID)
	return cached, nil
}

// MyReviews lists the signed-in user's reviews, newest first.
func (d *Directory) MyReviews(ctx context.Context) ([]model.Review, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	s := d.gate.State()
	if !s.MutationAllowed() {
		return nil, apperror.NotAuthenticated("see your reviews")
	}
	list, err := d.store.ListReviewsByAuthor(ctx, s.User.ID)
	if err != nil {
		return nil, apperror.StoreFailed("list my reviews", err)
	}
	catalog.SortReviews(list)
	return list, nil
}

// LoadFavorites fetches the signed-in user's favorites and waits for them.
// Open starts the same load in the background after sign-in; callers that
// toggle right away use this to know the current flags first.
func (d *Directory) LoadFavorites(ctx context.Context) error {
	if d.isClosed() {
		return ErrClosed
	}
	s := d.gate.State()
	if !s.MutationAllowed() {
		return apperror.NotAuthenticated("see your favorites")
	}
	gen := d.catalog.FavoritesGeneration()
	ids, err := d.store.ListFavorites(ctx, s.User.ID)
	if err != nil {
		return apperror.StoreFailed("list favorites", err)
	}
	if d.catalog.ReplaceFavoritesIf(gen, ids) {
		d.emit()
	}
	return nil
}

// IsFavorite reports whether the signed-in user saved the restaurant.
func (d *Directory) IsFavorite(restaurantID string) bool {
	return d.catalog.IsFavorite(restaurantID)
}

// Refresh re-reads the restaurant list and drops every cached review list.
func (d *Directory) Refresh(ctx context.Context) error {
	if d.isClosed() {
		return ErrClosed
	}
	for _, r := range d.catalog.Restaurants() {
		d.catalog.InvalidateReviews(r.ID)
	}
	return d.loadRestaurants(ctx)
}

// =========================================================================
// QUERY STATE
// =========================================================================

func (d *Directory) SetSearchTerm(term string) {
	d.updateQuery(func(q *model.QueryState) { q.SearchTerm = term })
}

func (d *Directory) SetSortOption(opt model.SortOption) {
	d.updateQuery(func(q *model.QueryState) { q.SortOption = opt })
}

func (d *Directory) SetCertificationFilter(cert string) {
	d.updateQuery(func(q *model.QueryState) { q.CertificationFilter = cert })
}

func (d *Directory) SetGroupingKey(key model.GroupingKey) {
	d.updateQuery(func(q *model.QueryState) { q.GroupingKey = key })
}

func (d *Directory) updateQuery(fn func(*model.QueryState)) {
	d.mu.Lock()
	before := d.query
	fn(&d.query)
	changed := d.query != before
	d.mu.Unlock()
	if changed {
		d.emit()
	}
}

// =========================================================================
// MUTATIONS
// =========================================================================

func (d *Directory) SubmitNewRestaurant(ctx context.Context, draft model.RestaurantDraft) (*model.Restaurant, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	r, err := d.coord.SubmitNewRestaurant(ctx, draft)
	if err != nil {
		return nil, err
	}
	d.emit()
	return r, nil
}

func (d *Directory) SubmitReview(ctx context.Context, restaurantID string, draft model.ReviewDraft) (*model.Review, error) {
	if d.isClosed() {
		return nil, ErrClosed
	}
	r, err := d.coord.SubmitReview(ctx, restaurantID, draft)
	if err != nil {
		return nil, err
	}
	d.emit()
	return r, nil
}

func (d *Directory) ToggleFavorite(ctx context.Context, restaurantID string) (bool, error) {
	if d.isClosed() {
		return false, ErrClosed
	}
	on, err := d.coord.ToggleFavorite(ctx, restaurantID)
	if err != nil {
		return on, err
	}
	d.emit()
	return on, nil
}

// =========================================================================
// CHANGE NOTIFICATION
// =========================================================================

// OnChange registers cb to run whenever the view model or session may have
// changed. cb should re-read what it displays. The returned func removes it.
func (d *Directory) OnChange(cb func()) (cancel func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextID
	d.nextID++
	d.listeners[id] = cb
	return func() {
		d.mu.Lock()
		delete(d.listeners, id)
		d.mu.Unlock()
	}
}

func (d *Directory) emit() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	cbs := make([]func(), 0, len(d.listeners))
	for _, cb := range d.listeners {
		cbs = append(cbs, cb)
	}
	d.mu.Unlock()

	for _, cb := range cbs {
		cb()
	}
}
