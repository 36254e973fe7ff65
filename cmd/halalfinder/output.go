package main

import (
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/sakif/halal-finder/internal/discovery"
	"github.com/sakif/halal-finder/internal/model"
)

// stars renders a 0–5 rating rounded to the nearest half star.
func stars(rating float64) string {
	halves := int(math.Round(rating * 2))
	halves = max(0, min(halves, 10))
	s := strings.Repeat("★", halves/2)
	if halves%2 == 1 {
		s += "½"
	}
	return fmt.Sprintf("%-6s %.1f", s, rating)
}

func displayName(u *model.User) string {
	if u.Login != "" {
		return u.Login
	}
	return u.Email
}

func certLabel(c model.Certification) string {
	if c == model.CertUnset {
		return "uncertified"
	}
	return string(c)
}

func printView(w io.Writer, vm discovery.ViewModel, isFavorite func(id string) bool) {
	if vm.Len() == 0 {
		fmt.Fprintln(w, "no restaurants match")
		return
	}
	for i, g := range vm.Groups {
		if len(vm.Groups) > 1 || g.Label != discovery.LabelAll {
			if i > 0 {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "%s (%d)\n", g.Label, len(g.Restaurants))
		}
		for _, r := range g.Restaurants {
			mark := " "
			if isFavorite(r.ID) {
				mark = "♥"
			}
			fmt.Fprintf(w, "%s %s  %-30s %-13s %s  [%s]\n",
				mark, stars(r.Rating), r.Name, certLabel(r.Certification), place(r), r.ID)
		}
	}
}

func place(r model.Restaurant) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{r.Cuisine, r.Location} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

func printRestaurant(w io.Writer, r model.Restaurant, reviews []model.Review) {
	fmt.Fprintf(w, "%s\n%s\n", r.Name, strings.Repeat("=", len([]rune(r.Name))))
	fmt.Fprintf(w, "rating:        %s\n", stars(r.Rating))
	fmt.Fprintf(w, "certification: %s\n", certLabel(r.Certification))
	for _, field := range []struct{ label, value string }{
		{"cuisine", r.Cuisine},
		{"location", r.Location},
		{"address", r.Address},
		{"hours", r.Hours},
		{"phone", r.Phone},
		{"map", r.ExternalMapLink},
	} {
		if field.value != "" {
			fmt.Fprintf(w, "%-14s %s\n", field.label+":", field.value)
		}
	}
	if r.Description != "" {
		fmt.Fprintf(w, "\n%s\n", r.Description)
	}

	fmt.Fprintf(w, "\nreviews (%d)\n", len(reviews))
	if len(reviews) == 0 {
		fmt.Fprintln(w, "  no reviews yet")
	}
	for _, rv := range reviews {
		fmt.Fprintf(w, "  %s  %s  %s\n", stars(float64(rv.Rating)), rv.CreatedAt.Format("2006-01-02"), rv.Comment)
	}
}

func printMyReviews(w io.Writer, reviews []model.Review, vm discovery.ViewModel) {
	if len(reviews) == 0 {
		fmt.Fprintln(w, "you have not written any reviews")
		return
	}
	names := make(map[string]string, vm.Len())
	for _, g := range vm.Groups {
		for _, r := range g.Restaurants {
			names[r.ID] = r.Name
		}
	}
	for _, rv := range reviews {
		name, ok := names[rv.RestaurantID]
		if !ok {
			name = rv.RestaurantID
		}
		fmt.Fprintf(w, "%s  %-30s %s\n", stars(float64(rv.Rating)), name, rv.Comment)
	}
}
