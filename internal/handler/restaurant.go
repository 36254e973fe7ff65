package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sakif/halal-finder/internal/auth"
	"github.com/sakif/halal-finder/internal/model"
	"github.com/sakif/halal-finder/internal/service"
)

// Query parameters that switch GET /api/restaurants to a discovery view.
const (
	paramSearch = "search"
	paramSort   = "sort"
	paramCert   = "cert"
	paramGroup  = "group"
)

// RestaurantHandler serves restaurants, reviews and favorites.
type RestaurantHandler struct {
	svc    *service.RestaurantService
	logger *slog.Logger
}

func NewRestaurantHandler(svc *service.RestaurantService, logger *slog.Logger) *RestaurantHandler {
	return &RestaurantHandler{svc: svc, logger: logger}
}

// HandleList returns every restaurant in insertion order, or a grouped view
// when any discovery parameter is present.
//
// HTTP: GET /api/restaurants
//
//	GET /api/restaurants                         → [{"id": ...}, ...]
//	GET /api/restaurants?sort=rating&group=cuisine → {"groups": [{"label": "Afghani", "restaurants": [...]}]}
func (h *RestaurantHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	q, isView := queryFromRequest(r)
	if !isView {
		list, err := h.svc.List(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, nonNil(list))
		return
	}

	vm, err := h.svc.View(r.Context(), q)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, vm)
}

// queryFromRequest starts from the default query and overrides whatever the
// request names. isView is false when no discovery parameter is present.
func queryFromRequest(r *http.Request) (q model.QueryState, isView bool) {
	q = model.DefaultQuery()
	values := r.URL.Query()
	if values.Has(paramSearch) {
		q.SearchTerm = values.Get(paramSearch)
		isView = true
	}
	if values.Has(paramSort) {
		q.SortOption = model.SortOption(values.Get(paramSort))
		isView = true
	}
	if values.Has(paramCert) {
		q.CertificationFilter = values.Get(paramCert)
		isView = true
	}
	if values.Has(paramGroup) {
		q.GroupingKey = model.GroupingKey(values.Get(paramGroup))
		isView = true
	}
	return q, isView
}

// HandleGet returns one restaurant.
//
// HTTP: GET /api/restaurants/{id}
func (h *RestaurantHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	rest, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rest)
}

// HandleCreate adds a restaurant for the signed-in user.
//
// HTTP: POST /api/restaurants
// Auth: Required
func (h *RestaurantHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var draft model.RestaurantDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		writeError(w, err)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	rest, err := h.svc.Create(r.Context(), userID, draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rest)
}

// HandleListReviews returns a restaurant's reviews, newest first.
//
// HTTP: GET /api/restaurants/{id}/reviews
func (h *RestaurantHandler) HandleListReviews(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.svc.ListReviews(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(reviews))
}

// HandleCreateReview adds a review.
//
// HTTP: POST /api/restaurants/{id}/reviews
// Auth: Required
func (h *RestaurantHandler) HandleCreateReview(w http.ResponseWriter, r *http.Request) {
	var draft model.ReviewDraft
	if err := decodeJSON(w, r, &draft); err != nil {
		writeError(w, err)
		return
	}
	userID, _ := auth.UserIDFromContext(r.Context())
	review, err := h.svc.AddReview(r.Context(), userID, chi.URLParam(r, "id"), draft)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, review)
}

// HandleMyReviews lists the caller's reviews.
//
// HTTP: GET /api/me/reviews
// Auth: Required
func (h *RestaurantHandler) HandleMyReviews(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	reviews, err := h.svc.ListReviewsByAuthor(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(reviews))
}

// HandleMyFavorites lists the caller's favorite restaurant IDs.
//
// HTTP: GET /api/me/favorites
// Auth: Required
func (h *RestaurantHandler) HandleMyFavorites(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())
	ids, err := h.svc.ListFavorites(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(ids))
}

// HandlePutFavorite and HandleDeleteFavorite are idempotent.
//
// HTTP: PUT|DELETE /api/me/favorites/{id}
// Auth: Required
func (h *RestaurantHandler) HandlePutFavorite(w http.ResponseWriter, r *http.Request) {
	h.setFavorite(w, r, true)
}

func (h *RestaurantHandler) HandleDeleteFavorite(w http.ResponseWriter, r *http.Request) {
	h.setFavorite(w, r, false)
}

func (h *RestaurantHandler) setFavorite(w http.ResponseWriter, r *http.Request, on bool) {
	userID, _ := auth.UserIDFromContext(r.Context())
	if err := h.svc.SetFavorite(r.Context(), userID, chi.URLParam(r, "id"), on); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// nonNil makes empty results encode as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
