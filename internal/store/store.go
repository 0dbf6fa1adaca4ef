// Package store persists leads, run history, and the engagement trail
// behind tiered exports.
package store

import (
	"context"
	"time"

	"github.com/sells-group/leadscout/internal/model"
)

// Engagement event types recorded against a lead.
const (
	EventEmailOpened = "email_opened"
	EventPageView    = "page_view"
	EventCTAClick    = "cta_click"
)

// Engagement weights. An unsubscribe overrides everything else.
const (
	weightEmailOpened      = 5
	weightPageView         = 25
	weightCTAClick         = 50
	unsubscribedEngagement = -100
)

// RunStats summarizes one pipeline run for the run history table.
type RunStats struct {
	QueriesAttempted int `json:"queries_attempted"`
	QueriesSucceeded int `json:"queries_succeeded"`
	BusinessesFound  int `json:"businesses_found"`
	LeadsExported    int `json:"leads_exported"`
	EmailsSent       int `json:"emails_sent"`
	Errors           int `json:"errors"`
}

// Run is a row from the run history.
type Run struct {
	ID          string     `json:"run_id"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Status      string     `json:"status"`
	Stats       RunStats   `json:"stats"`
	Error       string     `json:"error,omitempty"`
}

// Export records one delivery to a subscriber.
type Export struct {
	RunID           string    `json:"run_id"`
	SubscriberEmail string    `json:"subscriber_email"`
	LeadCount       int       `json:"lead_count"`
	CSVPath         string    `json:"csv_path,omitempty"`
	SentAt          time.Time `json:"sent_at"`
	Tier            string    `json:"tier,omitempty"`
	ExportType      string    `json:"export_type,omitempty"`
}

// Audit is a generated site-audit page for a lead.
type Audit struct {
	PlaceID     string    `json:"place_id"`
	AuditURL    string    `json:"audit_url"`
	HTMLPath    string    `json:"audit_html_path,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
	IssuesJSON  string    `json:"issues_json,omitempty"`
}

// Contact is the best email found for a lead.
type Contact struct {
	PlaceID    string    `json:"place_id"`
	Email      string    `json:"email"`
	Source     string    `json:"source"`
	Confidence float64   `json:"confidence"`
	FoundAt    time.Time `json:"found_at"`
}

// OutreachCandidate is a lead joined with its audit and contact,
// ready for a first-touch email.
type OutreachCandidate struct {
	PlaceID    string  `json:"place_id"`
	Name       string  `json:"name"`
	Website    string  `json:"website"`
	Score      int     `json:"score"`
	Email      string  `json:"email"`
	Confidence float64 `json:"confidence"`
	AuditURL   string  `json:"audit_url"`
}

// WarmLead is a contacted lead whose engagement cleared the warm bar.
type WarmLead struct {
	Lead            model.Lead `json:"lead"`
	Email           string     `json:"email"`
	AuditURL        string     `json:"audit_url"`
	EngagementScore int        `json:"engagement_score"`
}

// Stats summarizes the database for status reporting.
type Stats struct {
	TotalLeads     int  `json:"total_leads"`
	UniqueWebsites int  `json:"unique_websites"`
	TotalRuns      int  `json:"total_runs"`
	LastRun        *Run `json:"last_run,omitempty"`
}

// Store defines persistence for the lead pipeline.
type Store interface {
	// Leads
	UpsertLead(ctx context.Context, lead model.Lead) (bool, error)
	IsDuplicate(ctx context.Context, placeID, website string) (bool, error)
	GetLead(ctx context.Context, placeID string) (*model.Lead, error)
	UnexportedLeads(ctx context.Context, minScore int, tier string, limit int) ([]model.Lead, error)
	UnverifiedLeads(ctx context.Context, limit int) ([]model.Lead, error)
	MarkExported(ctx context.Context, placeIDs []string, tier string) error
	CleanupOldLeads(ctx context.Context, olderThan time.Duration) (int, error)

	// Run history
	StartRun(ctx context.Context, runID string) error
	CompleteRun(ctx context.Context, runID string, stats RunStats, runErr error) error
	LastRun(ctx context.Context) (*Run, error)

	// Exports
	RecordExport(ctx context.Context, rec Export) error

	// Audits
	RecordAudit(ctx context.Context, a Audit) error
	LeadsWithoutAudits(ctx context.Context, minScore int) ([]model.Lead, error)

	// Contacts
	RecordContact(ctx context.Context, c Contact) error
	GetContact(ctx context.Context, placeID string) (*Contact, error)
	LeadsWithoutContacts(ctx context.Context) ([]model.Lead, error)

	// Outreach
	RecordOutreach(ctx context.Context, placeID, email, auditURL string, success bool, errMsg string) error
	RecordFollowup(ctx context.Context, placeID string, success bool, errMsg string) error
	LeadsReadyForOutreach(ctx context.Context, minScore int) ([]OutreachCandidate, error)

	// Engagement
	RecordEvent(ctx context.Context, placeID, eventType, ipAddress, userAgent string) error
	EngagementScore(ctx context.Context, placeID string) (int, error)
	WarmLeads(ctx context.Context, minEngagement int) ([]WarmLead, error)

	// Unsubscribes and suppression
	AddUnsubscribe(ctx context.Context, placeID, email string) error
	IsUnsubscribed(ctx context.Context, placeID string) (bool, error)
	AddSuppression(ctx context.Context, email, reason string) error
	IsSuppressed(ctx context.Context, email string) (bool, error)

	// Lifecycle
	Stats(ctx context.Context) (*Stats, error)
	Migrate(ctx context.Context) error
	Close() error
}
