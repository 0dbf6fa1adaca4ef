package model

import "time"

// Lead tiers, in descending order of urgency.
const (
	TierHot  = "hot"
	TierWarm = "warm"
	TierCool = "cool"
	TierSkip = "skip"
)

// Export tiers. Pro buyers get a short exclusivity window on leads
// that meet the quality bar; basic exports must respect that window.
const (
	ExportTierBasic = "basic"
	ExportTierPro   = "pro"
)

// TierFor maps a score to a lead tier. Boundaries are inclusive.
func TierFor(score int) string {
	switch {
	case score >= 80:
		return TierHot
	case score >= 60:
		return TierWarm
	case score >= 40:
		return TierCool
	}
	return TierSkip
}

// Lead is the persisted record: a Business plus its scoring outcome
// and export bookkeeping. place_id is the primary key.
type Lead struct {
	PlaceID     string `json:"place_id"`
	CID         string `json:"cid,omitempty"`
	Name        string `json:"name"`
	Website     string `json:"website,omitempty"`
	Address     string `json:"address,omitempty"`
	Phone       string `json:"phone,omitempty"`
	ReviewCount int    `json:"review_count"`
	City        string `json:"city"`
	Category    string `json:"category"`

	Score   int      `json:"score"`
	Reasons []string `json:"reasons"`
	Tier    string   `json:"lead_tier"`

	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`

	ExportedCount   int        `json:"exported_count"`
	ExportedBasicAt *time.Time `json:"exported_basic_at,omitempty"`
	ExportedProAt   *time.Time `json:"exported_pro_at,omitempty"`

	ExclusiveTier  string     `json:"exclusive_tier,omitempty"`
	ExclusiveUntil *time.Time `json:"exclusive_until,omitempty"`
}

// FromBusiness seeds a Lead from an extractor candidate and its
// scoring result. Timestamps and export fields are left for the store.
func FromBusiness(b Business, r ScoringResult) Lead {
	return Lead{
		PlaceID:     b.PlaceID,
		CID:         b.CID,
		Name:        b.Name,
		Website:     b.Website,
		Address:     b.Address,
		Phone:       b.Phone,
		ReviewCount: b.ReviewCount,
		City:        b.City,
		Category:    b.Category,
		Score:       r.Score,
		Reasons:     r.Reasons,
		Tier:        TierFor(r.Score),
	}
}

// Unverified reports whether the lead's evaluation could not be
// confirmed (the scorer appended the unverified marker).
func (l Lead) Unverified() bool {
	for _, t := range l.Reasons {
		if t == ReasonUnverified {
			return true
		}
	}
	return false
}

// QualifiesForExclusivity reports whether the lead meets the bar for a
// pro-exclusivity grant: strong score, enough reviews to signal a real
// operating business, a live website, and a verified evaluation.
func (l Lead) QualifiesForExclusivity(minScore, minReviews int) bool {
	return l.Score >= minScore &&
		l.ReviewCount >= minReviews &&
		l.Website != "" &&
		!l.Unverified()
}

// ExclusivityActive reports whether a pro exclusivity window covers
// the given instant.
func (l Lead) ExclusivityActive(now time.Time) bool {
	return l.ExclusiveTier == ExportTierPro &&
		l.ExclusiveUntil != nil &&
		l.ExclusiveUntil.After(now)
}
