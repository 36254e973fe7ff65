package model

// SortOption selects the ordering applied by the discovery pipeline.
type SortOption string

const (
	SortByName   SortOption = "name"
	SortByRating SortOption = "rating"
)

// GroupingKey selects the field restaurants are bucketed by.
type GroupingKey string

const (
	GroupByNone     GroupingKey = "none"
	GroupByLocation GroupingKey = "location"
	GroupByCuisine  GroupingKey = "cuisine"
)

// CertificationAll disables the certification filter.
const CertificationAll = "all"

// QueryState is the live set of user-supplied discovery parameters.
// It is a plain value: copy it, change it, pass it to discovery.ComputeView.
type QueryState struct {
	SearchTerm          string      `json:"searchTerm"`
	SortOption          SortOption  `json:"sortOption"`
	CertificationFilter string      `json:"certificationFilter"` // a Certification or "all"
	GroupingKey         GroupingKey `json:"groupingKey"`
}

// DefaultQuery is the state a fresh view starts from.
func DefaultQuery() QueryState {
	return QueryState{
		SortOption:          SortByName,
		CertificationFilter: CertificationAll,
		GroupingKey:         GroupByNone,
	}
}

// FiltersCertification reports whether the certification filter is active.
// The empty string is treated like "all", which is what the filter form's
// "All Halal Types" option submits.
func (q QueryState) FiltersCertification() bool {
	return q.CertificationFilter != "" && q.CertificationFilter != CertificationAll
}
