// Package model defines the records that flow through the lead
// qualification pipeline: Business candidates from the extractor,
// ScoringResults from the scorer, and persisted Leads.
package model

// Business is a candidate discovered by the extractor. Instances are
// created once per extraction pass and never mutated; ownership moves
// to the scorer by value.
type Business struct {
	// PlaceID is the stable external identifier and the primary key
	// of any Lead derived from this candidate.
	PlaceID string `json:"place_id"`

	// CID is an alternate external identifier, present for some
	// listings instead of (or alongside) a place ID.
	CID string `json:"cid,omitempty"`

	Name    string `json:"name"`
	Website string `json:"website,omitempty"` // absence is itself a signal
	Address string `json:"address,omitempty"`
	Phone   string `json:"phone,omitempty"`

	// ReviewCount is -1 when the listing showed no review figure.
	ReviewCount int `json:"review_count"`

	City     string `json:"city"`
	Category string `json:"category"`
}

// HasWebsite reports whether the candidate listed a website.
func (b Business) HasWebsite() bool { return b.Website != "" }
