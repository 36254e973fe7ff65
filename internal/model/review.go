package model

import "time"

// Review is a user's rating and comment for one restaurant.
// Reviews are append-only from the client's point of view and are read newest
// first.
type Review struct {
	ID           string    `json:"id"`
	RestaurantID string    `json:"restaurantId"`
	AuthorID     *string   `json:"authorId"` // nil for legacy anonymous reviews
	Rating       int       `json:"rating"`   // 1–5
	Comment      string    `json:"comment"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ReviewDraft is the review form's pending input.
type ReviewDraft struct {
	Rating  int    `json:"rating"  validate:"gte=1,lte=5"`
	Comment string `json:"comment" validate:"required,max=2000"`
}

// Favorite marks a restaurant as saved by a user.
type Favorite struct {
	UserID       string    `json:"userId"`
	RestaurantID string    `json:"restaurantId"`
	CreatedAt    time.Time `json:"createdAt"`
}
