package sqlite

import (
	"context"
	"fmt"

	"github.com/sakif/halal-finder/internal/model"
)

// SampleRestaurants is the starter data shipped with the app.
var SampleRestaurants = []model.RestaurantDraft{
	{
		Name:          "Kabul Darbar Restaurant",
		Description:   "Excellent food and service. The lamb is perfectly cooked.",
		Address:       "55 Charing Cross Rd, London WC2H 0BL",
		Rating:        4.5,
		Certification: model.CertHMS,
		Cuisine:       "Afghani",
		Location:      "London",
		ImageRef:      "https://example.com/restaurant1.jpg",
	},
	{
		Name:          "Lahore Karahi",
		Description:   "Best karahi in town. A bit spicy, but delicious.",
		Address:       "1 Tooting High St, London SW17 0SN",
		Rating:        4.2,
		Certification: model.CertHFSAA,
		Cuisine:       "Pakistani",
		Location:      "London",
		ImageRef:      "https://example.com/restaurant2.jpg",
	},
	{
		Name:          "Maroush",
		Description:   "Lebanese classics on Edgware Road.",
		Address:       "21 Edgware Rd, London W2 2JE",
		Rating:        4,
		Certification: model.CertSelfReported,
		Cuisine:       "Lebanese",
		Location:      "London",
		ImageRef:      "https://example.com/restaurant3.jpg",
	},
}

// Seed inserts SampleRestaurants when the restaurants table is empty.
// It reports how many rows it inserted.
func (db *DB) Seed(ctx context.Context) (int, error) {
	n, err := db.CountRestaurants(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	for i, draft := range SampleRestaurants {
		if _, err := db.InsertRestaurant(ctx, "", draft); err != nil {
			return i, fmt.Errorf("sqlite: seeding %q: %w", draft.Name, err)
		}
	}
	return len(SampleRestaurants), nil
}
