// Package discovery turns a raw restaurant collection plus the user's live
// query into the grouped, sorted, filtered projection the UI renders.
//
// PURE FUNCTION:
// ComputeView has no side effects and reads nothing but its two arguments.
// Given the same records and the same QueryState it always returns the same
// ViewModel, which is what lets it be tested without any store, session or
// network. It never returns an error: unknown sort options mean "leave the
// order alone" and unknown grouping keys mean "no grouping".
//
// The pipeline runs in a fixed order:
//
//	filter → stable sort → group (in first-encounter order)
package discovery

import (
	"cmp"
	"slices"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/sakif/halal-finder/internal/model"
)

const (
	// LabelAll is the single group produced when grouping is off.
	LabelAll = "All"
	// LabelOthers collects records whose grouping field is empty.
	LabelOthers = "Others"
)

// Group is one labelled bucket of restaurants, in display order.
type Group struct {
	Label       string             `json:"label"`
	Restaurants []model.Restaurant `json:"restaurants"`
}

// ViewModel is the derived presentation of a restaurant collection. It is
// recomputed on every input change and never stored.
type ViewModel struct {
	Groups []Group `json:"groups"`
}

// Labels returns the group labels in iteration order.
func (v ViewModel) Labels() []string {
	labels := make([]string, len(v.Groups))
	for i, g := range v.Groups {
		labels[i] = g.Label
	}
	return labels
}

// Group returns the restaurants under label.
func (v ViewModel) Group(label string) ([]model.Restaurant, bool) {
	for _, g := range v.Groups {
		if g.Label == label {
			return g.Restaurants, true
		}
	}
	return nil, false
}

// Len counts restaurants across all groups.
func (v ViewModel) Len() int {
	n := 0
	for _, g := range v.Groups {
		n += len(g.Restaurants)
	}
	return n
}

// ComputeView projects records through q using root-locale collation for
// name ordering.
func ComputeView(records []model.Restaurant, q model.QueryState) ViewModel {
	return ComputeViewLocale(language.Und, records, q)
}

// ComputeViewLocale is ComputeView with an explicit collation language, so a
// Turkish or Swedish user sees names ordered the way their alphabet expects.
func ComputeViewLocale(tag language.Tag, records []model.Restaurant, q model.QueryState) ViewModel {
	filtered := Filter(records, q)
	Sort(tag, filtered, q.SortOption)
	return GroupBy(filtered, q.GroupingKey)
}

// Filter returns the records matching the search term and certification
// filter, in their original order. The input slice is not modified.
func Filter(records []model.Restaurant, q model.QueryState) []model.Restaurant {
	term := strings.ToLower(q.SearchTerm)
	out := make([]model.Restaurant, 0, len(records))
	for _, r := range records {
		if !matchesSearch(r, term) {
			continue
		}
		if q.FiltersCertification() && string(r.Certification) != q.CertificationFilter {
			continue
		}
		out = append(out, r)
	}
	return out
}

func matchesSearch(r model.Restaurant, lowerTerm string) bool {
	if lowerTerm == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.Name), lowerTerm) ||
		strings.Contains(strings.ToLower(r.Description), lowerTerm) ||
		strings.Contains(strings.ToLower(r.Address), lowerTerm)
}

// Sort orders records in place. Both orderings are stable: records that
// compare equal keep their relative order, so equal ratings never shuffle
// between renders.
func Sort(tag language.Tag, records []model.Restaurant, opt model.SortOption) {
	switch opt {
	case model.SortByRating:
		slices.SortStableFunc(records, func(a, b model.Restaurant) int {
			return cmp.Compare(b.Rating, a.Rating) // descending
		})
	case model.SortByName:
		// A Collator keeps scratch buffers, so each call builds its own
		// and Sort stays safe to call from many goroutines.
		c := collate.New(tag, collate.IgnoreCase)
		slices.SortStableFunc(records, func(a, b model.Restaurant) int {
			return c.CompareString(a.Name, b.Name)
		})
	}
}

// GroupBy buckets already-sorted records. Groups appear in the order their
// first member was encountered, not alphabetically, so re-sorting moves
// groups only when their leading member changes.
func GroupBy(records []model.Restaurant, key model.GroupingKey) ViewModel {
	field := groupField(key)
	if field == nil {
		return ViewModel{Groups: []Group{{Label: LabelAll, Restaurants: records}}}
	}

	groups := make([]Group, 0)
	index := make(map[string]int)
	for _, r := range records {
		label := field(r)
		if label == "" {
			label = LabelOthers
		}
		i, ok := index[label]
		if !ok {
			i = len(groups)
			index[label] = i
			groups = append(groups, Group{Label: label})
		}
		groups[i].Restaurants = append(groups[i].Restaurants, r)
	}
	return ViewModel{Groups: groups}
}

// groupField returns the accessor for key, or nil for "none" and any value
// this version does not know about.
func groupField(key model.GroupingKey) func(model.Restaurant) string {
	switch key {
	case model.GroupByLocation:
		return func(r model.Restaurant) string { return strings.TrimSpace(r.Location) }
	case model.GroupByCuisine:
		return func(r model.Restaurant) string { return strings.TrimSpace(r.Cuisine) }
	}
	return nil
}
