package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadscout/internal/config"
	"github.com/sells-group/leadscout/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db           *sql.DB
	dedupeWindow time.Duration
}

// NewSQLite opens a SQLite database at the configured path with WAL
// mode. A single connection serializes writers, which SQLite wants.
func NewSQLite(cfg config.StoreConfig) (*SQLiteStore, error) {
	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, eris.Wrap(err, "sqlite: create data dir")
		}
	}
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{
		db:           db,
		dedupeWindow: time.Duration(cfg.DedupeWindowDays) * 24 * time.Hour,
	}, nil
}

// Ordered migrations. PRAGMA user_version records the last applied
// entry; new schema changes append to the list.
var sqliteMigrations = []string{sqliteSchemaV1}

const sqliteSchemaV1 = `
CREATE TABLE IF NOT EXISTS leads (
	place_id          TEXT PRIMARY KEY,
	cid               TEXT,
	name              TEXT NOT NULL,
	website           TEXT,
	address           TEXT,
	phone             TEXT,
	review_count      INTEGER,
	city              TEXT NOT NULL,
	category          TEXT NOT NULL,
	score             INTEGER NOT NULL,
	reasons           TEXT,
	lead_tier         TEXT,
	first_seen        DATETIME NOT NULL,
	last_seen         DATETIME NOT NULL,
	exported_count    INTEGER NOT NULL DEFAULT 0,
	last_exported     DATETIME,
	exported_basic_at DATETIME,
	exported_pro_at   DATETIME,
	exclusive_until   DATETIME,
	exclusive_tier    TEXT
);

CREATE INDEX IF NOT EXISTS idx_leads_website ON leads(website);
CREATE INDEX IF NOT EXISTS idx_leads_last_seen ON leads(last_seen);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(score);

CREATE TABLE IF NOT EXISTS runs (
	run_id            TEXT PRIMARY KEY,
	started_at        DATETIME NOT NULL,
	completed_at      DATETIME,
	status            TEXT NOT NULL,
	queries_attempted INTEGER NOT NULL DEFAULT 0,
	queries_succeeded INTEGER NOT NULL DEFAULT 0,
	businesses_found  INTEGER NOT NULL DEFAULT 0,
	leads_exported    INTEGER NOT NULL DEFAULT 0,
	emails_sent       INTEGER NOT NULL DEFAULT 0,
	errors            INTEGER NOT NULL DEFAULT 0,
	error_message     TEXT
);

CREATE TABLE IF NOT EXISTS exports (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id           TEXT NOT NULL,
	subscriber_email TEXT NOT NULL,
	lead_count       INTEGER NOT NULL,
	csv_path         TEXT,
	sent_at          DATETIME NOT NULL,
	tier             TEXT,
	export_type      TEXT
);

CREATE INDEX IF NOT EXISTS idx_exports_subscriber ON exports(subscriber_email);

CREATE TABLE IF NOT EXISTS audits (
	place_id        TEXT PRIMARY KEY,
	audit_url       TEXT,
	audit_html_path TEXT,
	generated_at    DATETIME,
	issues_json     TEXT
);

CREATE TABLE IF NOT EXISTS contacts (
	place_id   TEXT PRIMARY KEY,
	email      TEXT,
	source     TEXT,
	confidence REAL,
	found_at   DATETIME
);

CREATE TABLE IF NOT EXISTS outreach (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	place_id          TEXT,
	email             TEXT,
	audit_url         TEXT,
	sent_at           DATETIME,
	success           BOOLEAN,
	error             TEXT,
	followup_sent_at  DATETIME,
	followup_success  BOOLEAN,
	followup_error    TEXT,
	UNIQUE(place_id, email)
);

CREATE INDEX IF NOT EXISTS idx_outreach_place_id ON outreach(place_id);

CREATE TABLE IF NOT EXISTS engagement_events (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	place_id   TEXT,
	event_type TEXT,
	ip_address TEXT,
	user_agent TEXT,
	timestamp  DATETIME
);

CREATE INDEX IF NOT EXISTS idx_engagement_place_id ON engagement_events(place_id);
CREATE INDEX IF NOT EXISTS idx_engagement_type ON engagement_events(event_type);

CREATE TABLE IF NOT EXISTS unsubscribes (
	place_id        TEXT PRIMARY KEY,
	email           TEXT,
	unsubscribed_at DATETIME
);

CREATE TABLE IF NOT EXISTS suppression (
	email         TEXT PRIMARY KEY,
	reason        TEXT,
	suppressed_at DATETIME
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return eris.Wrap(err, "sqlite: read schema version")
	}
	for i := version; i < len(sqliteMigrations); i++ {
		if _, err := s.db.ExecContext(ctx, sqliteMigrations[i]); err != nil {
			return eris.Wrapf(err, "sqlite: apply migration %d", i+1)
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", i+1)); err != nil {
			return eris.Wrapf(err, "sqlite: record schema version %d", i+1)
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const leadColumns = `place_id, cid, name, website, address, phone, review_count,
	city, category, score, reasons, lead_tier, first_seen, last_seen,
	exported_count, exported_basic_at, exported_pro_at, exclusive_until, exclusive_tier`

// UpsertLead inserts a new lead or refreshes one whose dedupe window
// has lapsed. It reports whether the lead was accepted; a fresh
// duplicate leaves the stored row untouched and returns false.
// first_seen survives every refresh.
func (s *SQLiteStore) UpsertLead(ctx context.Context, lead model.Lead) (bool, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-s.dedupeWindow)

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO leads (
			place_id, cid, name, website, address, phone, review_count,
			city, category, score, reasons, lead_tier,
			exclusive_until, exclusive_tier, first_seen, last_seen
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(place_id) DO UPDATE SET
			cid             = excluded.cid,
			name            = excluded.name,
			website         = excluded.website,
			address         = excluded.address,
			phone           = excluded.phone,
			review_count    = excluded.review_count,
			city            = excluded.city,
			category        = excluded.category,
			score           = excluded.score,
			reasons         = excluded.reasons,
			lead_tier       = excluded.lead_tier,
			exclusive_until = excluded.exclusive_until,
			exclusive_tier  = excluded.exclusive_tier,
			last_seen       = excluded.last_seen
		WHERE leads.last_seen <= ?
		RETURNING place_id`,
		lead.PlaceID, nullStr(lead.CID), lead.Name, nullStr(lead.Website),
		nullStr(lead.Address), nullStr(lead.Phone), nullReviewCount(lead.ReviewCount),
		lead.City, lead.Category, lead.Score, marshalReasons(lead.Reasons),
		nullStr(lead.Tier), nullTime(lead.ExclusiveUntil), nullStr(lead.ExclusiveTier),
		now, now, cutoff,
	)

	var id string
	err := row.Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: upsert lead %s", lead.PlaceID)
	}
	return true, nil
}

// IsDuplicate reports whether the lead was already seen inside the
// dedupe window, by place_id first and website as a fallback.
func (s *SQLiteStore) IsDuplicate(ctx context.Context, placeID, website string) (bool, error) {
	cutoff := time.Now().UTC().Add(-s.dedupeWindow)

	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM leads WHERE place_id = ? AND last_seen > ?`,
		placeID, cutoff,
	).Scan(&one)
	if err == nil {
		return true, nil
	}
	if err != sql.ErrNoRows {
		return false, eris.Wrap(err, "sqlite: duplicate check")
	}

	if website == "" {
		return false, nil
	}
	err = s.db.QueryRowContext(ctx,
		`SELECT 1 FROM leads WHERE website = ? AND last_seen > ?`,
		website, cutoff,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "sqlite: duplicate check by website")
	}
	return true, nil
}

func (s *SQLiteStore) GetLead(ctx context.Context, placeID string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE place_id = ?`, placeID)
	lead, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", placeID)
	}
	return lead, nil
}

// UnexportedLeads returns leads above minScore never exported for the
// given tier. Basic exports skip leads inside a live pro-exclusivity
// window; pro exports see everything.
func (s *SQLiteStore) UnexportedLeads(ctx context.Context, minScore int, tier string, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 500
	}

	var rows *sql.Rows
	var err error
	if strings.EqualFold(tier, model.ExportTierPro) {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+leadColumns+` FROM leads
			WHERE score >= ? AND website IS NOT NULL
			  AND exported_pro_at IS NULL
			ORDER BY score DESC, first_seen ASC
			LIMIT ?`, minScore, limit)
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+leadColumns+` FROM leads
			WHERE score >= ? AND website IS NOT NULL
			  AND exported_basic_at IS NULL
			  AND (
				exclusive_until IS NULL
				OR exclusive_until < ?
				OR exclusive_tier IS NULL
				OR exclusive_tier != 'pro'
			  )
			ORDER BY score DESC, first_seen ASC
			LIMIT ?`, minScore, time.Now().UTC(), limit)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: unexported leads tier %s", tier)
	}
	defer rows.Close()
	return collectLeads(rows)
}

// UnverifiedLeads returns never-exported leads flagged unverified, for
// manual review.
func (s *SQLiteStore) UnverifiedLeads(ctx context.Context, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE reasons LIKE '%unverified%' AND exported_count = 0
		ORDER BY score DESC, first_seen ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: unverified leads")
	}
	defer rows.Close()
	return collectLeads(rows)
}

func (s *SQLiteStore) MarkExported(ctx context.Context, placeIDs []string, tier string) error {
	now := time.Now().UTC()
	column := "exported_basic_at"
	if strings.EqualFold(tier, model.ExportTierPro) {
		column = "exported_pro_at"
	}
	for _, pid := range placeIDs {
		_, err := s.db.ExecContext(ctx,
			`UPDATE leads SET exported_count = exported_count + 1, last_exported = ?, `+column+` = ? WHERE place_id = ?`,
			now, now, pid,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: mark exported %s", pid)
		}
	}
	return nil
}

// CleanupOldLeads removes never-exported leads not seen within the
// retention period.
func (s *SQLiteStore) CleanupOldLeads(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM leads WHERE last_seen < ? AND exported_count = 0`, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: cleanup old leads")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: cleanup rows affected")
}

func (s *SQLiteStore) StartRun(ctx context.Context, runID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (run_id, started_at, status) VALUES (?, ?, 'running')`,
		runID, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: start run %s", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, stats RunStats, runErr error) error {
	status := "completed"
	var errMsg any
	if runErr != nil {
		status = "failed"
		errMsg = runErr.Error()
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET
			completed_at = ?, status = ?,
			queries_attempted = ?, queries_succeeded = ?, businesses_found = ?,
			leads_exported = ?, emails_sent = ?, errors = ?, error_message = ?
		WHERE run_id = ?`,
		time.Now().UTC(), status,
		stats.QueriesAttempted, stats.QueriesSucceeded, stats.BusinessesFound,
		stats.LeadsExported, stats.EmailsSent, stats.Errors, errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) LastRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, started_at, completed_at, status,
		       queries_attempted, queries_succeeded, businesses_found,
		       leads_exported, emails_sent, errors, error_message
		FROM runs ORDER BY started_at DESC LIMIT 1`)

	var r Run
	var completedAt sql.NullTime
	var errMsg sql.NullString
	err := row.Scan(&r.ID, &r.StartedAt, &completedAt, &r.Status,
		&r.Stats.QueriesAttempted, &r.Stats.QueriesSucceeded, &r.Stats.BusinessesFound,
		&r.Stats.LeadsExported, &r.Stats.EmailsSent, &r.Stats.Errors, &errMsg)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: last run")
	}
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	r.Error = errMsg.String
	return &r, nil
}

func (s *SQLiteStore) RecordExport(ctx context.Context, rec Export) error {
	sentAt := rec.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exports (run_id, subscriber_email, lead_count, csv_path, sent_at, tier, export_type)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.SubscriberEmail, rec.LeadCount, nullStr(rec.CSVPath),
		sentAt, nullStr(rec.Tier), nullStr(rec.ExportType),
	)
	return eris.Wrap(err, "sqlite: record export")
}

func (s *SQLiteStore) RecordAudit(ctx context.Context, a Audit) error {
	generatedAt := a.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO audits (place_id, audit_url, audit_html_path, generated_at, issues_json)
		VALUES (?, ?, ?, ?, ?)`,
		a.PlaceID, a.AuditURL, nullStr(a.HTMLPath), generatedAt, nullStr(a.IssuesJSON),
	)
	return eris.Wrapf(err, "sqlite: record audit %s", a.PlaceID)
}

func (s *SQLiteStore) LeadsWithoutAudits(ctx context.Context, minScore int) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixedLeadColumns("l")+`
		FROM leads l
		LEFT JOIN audits a ON l.place_id = a.place_id
		WHERE l.score >= ? AND l.website IS NOT NULL AND a.place_id IS NULL
		ORDER BY l.score DESC`, minScore)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: leads without audits")
	}
	defer rows.Close()
	return collectLeads(rows)
}

func (s *SQLiteStore) RecordContact(ctx context.Context, c Contact) error {
	foundAt := c.FoundAt
	if foundAt.IsZero() {
		foundAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO contacts (place_id, email, source, confidence, found_at)
		VALUES (?, ?, ?, ?, ?)`,
		c.PlaceID, c.Email, c.Source, c.Confidence, foundAt,
	)
	return eris.Wrapf(err, "sqlite: record contact %s", c.PlaceID)
}

func (s *SQLiteStore) GetContact(ctx context.Context, placeID string) (*Contact, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT place_id, email, source, confidence, found_at FROM contacts WHERE place_id = ?`,
		placeID)

	var c Contact
	err := row.Scan(&c.PlaceID, &c.Email, &c.Source, &c.Confidence, &c.FoundAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get contact %s", placeID)
	}
	return &c, nil
}

func (s *SQLiteStore) LeadsWithoutContacts(ctx context.Context) ([]model.Lead, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+prefixedLeadColumns("l")+`
		FROM leads l
		LEFT JOIN contacts c ON l.place_id = c.place_id
		WHERE l.website IS NOT NULL AND c.place_id IS NULL
		ORDER BY l.score DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: leads without contacts")
	}
	defer rows.Close()
	return collectLeads(rows)
}

func (s *SQLiteStore) RecordOutreach(ctx context.Context, placeID, email, auditURL string, success bool, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO outreach (place_id, email, audit_url, sent_at, success, error)
		VALUES (?, ?, ?, ?, ?, ?)`,
		placeID, email, auditURL, time.Now().UTC(), success, nullStr(errMsg),
	)
	return eris.Wrapf(err, "sqlite: record outreach %s", placeID)
}

func (s *SQLiteStore) RecordFollowup(ctx context.Context, placeID string, success bool, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE outreach SET followup_sent_at = ?, followup_success = ?, followup_error = ?
		WHERE place_id = ?`,
		time.Now().UTC(), success, nullStr(errMsg), placeID,
	)
	return eris.Wrapf(err, "sqlite: record followup %s", placeID)
}

// LeadsReadyForOutreach returns leads with an audit and a confident
// contact that were never contacted and never unsubscribed.
func (s *SQLiteStore) LeadsReadyForOutreach(ctx context.Context, minScore int) ([]OutreachCandidate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT l.place_id, l.name, l.website, l.score,
		       c.email, c.confidence, a.audit_url
		FROM leads l
		INNER JOIN audits a ON l.place_id = a.place_id
		INNER JOIN contacts c ON l.place_id = c.place_id
		LEFT JOIN outreach o ON l.place_id = o.place_id
		LEFT JOIN unsubscribes u ON l.place_id = u.place_id
		WHERE l.score >= ?
		  AND c.confidence >= 0.7
		  AND o.place_id IS NULL
		  AND u.place_id IS NULL
		ORDER BY l.score DESC, c.confidence DESC`, minScore)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: leads ready for outreach")
	}
	defer rows.Close()

	var out []OutreachCandidate
	for rows.Next() {
		var c OutreachCandidate
		var website sql.NullString
		if err := rows.Scan(&c.PlaceID, &c.Name, &website, &c.Score, &c.Email, &c.Confidence, &c.AuditURL); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan outreach candidate")
		}
		c.Website = website.String
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: outreach candidates iterate")
}

func (s *SQLiteStore) RecordEvent(ctx context.Context, placeID, eventType, ipAddress, userAgent string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO engagement_events (place_id, event_type, ip_address, user_agent, timestamp)
		VALUES (?, ?, ?, ?, ?)`,
		placeID, eventType, nullStr(ipAddress), nullStr(userAgent), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: record event %s/%s", placeID, eventType)
}

// EngagementScore weighs a lead's recorded events. An unsubscribed
// lead always scores -100 regardless of prior engagement.
func (s *SQLiteStore) EngagementScore(ctx context.Context, placeID string) (int, error) {
	unsubscribed, err := s.IsUnsubscribed(ctx, placeID)
	if err != nil {
		return 0, err
	}
	if unsubscribed {
		return unsubscribedEngagement, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT event_type, COUNT(*) FROM engagement_events
		WHERE place_id = ? GROUP BY event_type`, placeID)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: engagement score %s", placeID)
	}
	defer rows.Close()

	score := 0
	for rows.Next() {
		var eventType string
		var count int
		if err := rows.Scan(&eventType, &count); err != nil {
			return 0, eris.Wrap(err, "sqlite: scan engagement counts")
		}
		switch eventType {
		case EventEmailOpened:
			score += weightEmailOpened * count
		case EventPageView:
			score += weightPageView * count
		case EventCTAClick:
			score += weightCTAClick * count
		}
	}
	return score, eris.Wrap(rows.Err(), "sqlite: engagement counts iterate")
}

// WarmLeads returns successfully contacted leads whose engagement
// score cleared minEngagement, best engaged first.
func (s *SQLiteStore) WarmLeads(ctx context.Context, minEngagement int) ([]WarmLead, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT `+prefixedLeadColumns("l")+`, c.email, a.audit_url
		FROM leads l
		INNER JOIN outreach o ON l.place_id = o.place_id
		INNER JOIN contacts c ON l.place_id = c.place_id
		INNER JOIN audits a ON l.place_id = a.place_id
		LEFT JOIN unsubscribes u ON l.place_id = u.place_id
		WHERE o.success = 1 AND u.place_id IS NULL`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: warm leads")
	}
	defer rows.Close()

	var candidates []WarmLead
	for rows.Next() {
		var w WarmLead
		if err := scanLeadInto(rows, &w.Lead, &w.Email, &w.AuditURL); err != nil {
			return nil, err
		}
		candidates = append(candidates, w)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: warm leads iterate")
	}

	var warm []WarmLead
	for _, w := range candidates {
		score, err := s.EngagementScore(ctx, w.Lead.PlaceID)
		if err != nil {
			return nil, err
		}
		if score >= minEngagement {
			w.EngagementScore = score
			warm = append(warm, w)
		}
	}
	sort.Slice(warm, func(i, j int) bool {
		return warm[i].EngagementScore > warm[j].EngagementScore
	})
	return warm, nil
}

func (s *SQLiteStore) AddUnsubscribe(ctx context.Context, placeID, email string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO unsubscribes (place_id, email, unsubscribed_at)
		VALUES (?, ?, ?)`,
		placeID, nullStr(email), time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: add unsubscribe %s", placeID)
}

func (s *SQLiteStore) IsUnsubscribed(ctx context.Context, placeID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM unsubscribes WHERE place_id = ?`, placeID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: unsubscribe check %s", placeID)
	}
	return true, nil
}

func (s *SQLiteStore) AddSuppression(ctx context.Context, email, reason string) error {
	if email == "" {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO suppression (email, reason, suppressed_at)
		VALUES (?, ?, ?)`,
		email, reason, time.Now().UTC(),
	)
	return eris.Wrapf(err, "sqlite: add suppression %s", email)
}

func (s *SQLiteStore) IsSuppressed(ctx context.Context, email string) (bool, error) {
	if email == "" {
		return false, nil
	}
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM suppression WHERE email = ?`, email).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: suppression check %s", email)
	}
	return true, nil
}

// Stats summarizes the database for the status command.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`).Scan(&st.TotalLeads); err != nil {
		return nil, eris.Wrap(err, "sqlite: count leads")
	}
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(DISTINCT website) FROM leads WHERE website IS NOT NULL`,
	).Scan(&st.UniqueWebsites); err != nil {
		return nil, eris.Wrap(err, "sqlite: count websites")
	}
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&st.TotalRuns); err != nil {
		return nil, eris.Wrap(err, "sqlite: count runs")
	}
	lastRun, err := s.LastRun(ctx)
	if err != nil {
		return nil, err
	}
	st.LastRun = lastRun
	return &st, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullReviewCount(n int) any {
	if n < 0 {
		return nil
	}
	return n
}

func marshalReasons(reasons []string) string {
	if reasons == nil {
		reasons = []string{}
	}
	b, err := json.Marshal(reasons)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// prefixedLeadColumns qualifies leadColumns with a table alias for
// joined queries.
func prefixedLeadColumns(alias string) string {
	cols := strings.Split(leadColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable, extra ...any) (*model.Lead, error) {
	var l model.Lead
	if err := scanLeadInto(row, &l, extra...); err != nil {
		return nil, err
	}
	return &l, nil
}

func scanLeadInto(row scannable, l *model.Lead, extra ...any) error {
	var (
		cid, website, address, phone   sql.NullString
		tier, exclusiveTier            sql.NullString
		reviewCount                    sql.NullInt64
		reasonsJSON                    sql.NullString
		exportedBasicAt, exportedProAt sql.NullTime
		exclusiveUntil                 sql.NullTime
	)

	dest := []any{
		&l.PlaceID, &cid, &l.Name, &website, &address, &phone, &reviewCount,
		&l.City, &l.Category, &l.Score, &reasonsJSON, &tier,
		&l.FirstSeen, &l.LastSeen,
		&l.ExportedCount, &exportedBasicAt, &exportedProAt,
		&exclusiveUntil, &exclusiveTier,
	}
	dest = append(dest, extra...)

	if err := row.Scan(dest...); err != nil {
		return err
	}

	l.CID = cid.String
	l.Website = website.String
	l.Address = address.String
	l.Phone = phone.String
	l.Tier = tier.String
	l.ExclusiveTier = exclusiveTier.String
	l.ReviewCount = -1
	if reviewCount.Valid {
		l.ReviewCount = int(reviewCount.Int64)
	}
	if reasonsJSON.Valid && reasonsJSON.String != "" {
		if err := json.Unmarshal([]byte(reasonsJSON.String), &l.Reasons); err != nil {
			return eris.Wrapf(err, "sqlite: unmarshal reasons for %s", l.PlaceID)
		}
	}
	if exportedBasicAt.Valid {
		t := exportedBasicAt.Time
		l.ExportedBasicAt = &t
	}
	if exportedProAt.Valid {
		t := exportedProAt.Time
		l.ExportedProAt = &t
	}
	if exclusiveUntil.Valid {
		t := exclusiveUntil.Time
		l.ExclusiveUntil = &t
	}
	return nil
}

func collectLeads(rows *sql.Rows) ([]model.Lead, error) {
	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: leads iterate")
}
