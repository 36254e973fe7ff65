// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, with `json:"..."` tags telling
// encoding/json how each field appears on the wire.
package model

import "time"

// Certification identifies which body certified a restaurant as halal.
type Certification string

const (
	CertHMS          Certification = "HMS"           // Halal Monitoring Services
	CertHFSAA        Certification = "HFSAA"         // Halal Food Standards Alliance of America
	CertSelfReported Certification = "Self-Reported" // owner's own claim
	CertUnset        Certification = ""
)

// Certifications lists the known values in display order.
var Certifications = []Certification{CertHMS, CertHFSAA, CertSelfReported}

// Valid reports whether c is a known certification or unset.
func (c Certification) Valid() bool {
	switch c {
	case CertHMS, CertHFSAA, CertSelfReported, CertUnset:
		return true
	}
	return false
}

// Restaurant is a persisted restaurant record.
//
// Records are immutable once fetched. The client never edits one in place; a
// fresher copy from the store replaces it wholesale.
type Restaurant struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Description     string        `json:"description"`
	Address         string        `json:"address"`
	Rating          float64       `json:"rating"` // 0–5
	Certification   Certification `json:"certification"`
	ImageRef        string        `json:"imageRef,omitempty"`
	ExternalMapLink string        `json:"externalMapLink,omitempty"` // e.g. a Google Maps URL
	Hours           string        `json:"hours,omitempty"`
	Phone           string        `json:"phone,omitempty"`
	Cuisine         string        `json:"cuisine,omitempty"`
	Location        string        `json:"location,omitempty"`
	CreatedBy       string        `json:"createdBy,omitempty"` // user ID of the submitter
	CreatedAt       time.Time     `json:"createdAt"`
}

// RestaurantDraft is a not-yet-persisted restaurant supplied by a user action.
//
// Drafts travel by value. Nothing downstream of the form can clear or rewrite
// the caller's copy, so a failed submission leaves the pending form intact.
type RestaurantDraft struct {
	Name            string        `json:"name"            validate:"required,max=100"`
	Description     string        `json:"description"     validate:"max=2000"`
	Address         string        `json:"address"         validate:"max=300"`
	Rating          float64       `json:"rating"          validate:"gte=0,lte=5"`
	Certification   Certification `json:"certification"   validate:"omitempty,oneof=HMS HFSAA Self-Reported"`
	ImageRef        string        `json:"imageRef"        validate:"omitempty,url"`
	ExternalMapLink string        `json:"externalMapLink" validate:"omitempty,url"`
	Hours           string        `json:"hours"           validate:"max=200"`
	Phone           string        `json:"phone"           validate:"max=40"`
	Cuisine         string        `json:"cuisine"         validate:"max=60"`
	Location        string        `json:"location"        validate:"max=100"`
}

// ToRestaurant builds the record a store would persist for this draft.
// ID and CreatedAt are left for the store to assign.
func (d RestaurantDraft) ToRestaurant(createdBy string) Restaurant {
	return Restaurant{
		Name:            d.Name,
		Description:     d.Description,
		Address:         d.Address,
		Rating:          d.Rating,
		Certification:   d.Certification,
		ImageRef:        d.ImageRef,
		ExternalMapLink: d.ExternalMapLink,
		Hours:           d.Hours,
		Phone:           d.Phone,
		Cuisine:         d.Cuisine,
		Location:        d.Location,
		CreatedBy:       createdBy,
	}
}
