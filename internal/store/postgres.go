package store

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadscout/internal/config"
	"github.com/sells-group/leadscout/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs. pgxmock
// implements it for tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool         Pool
	dedupeWindow time.Duration
	closeFn      func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, cfg config.StoreConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{
		pool:         pool,
		dedupeWindow: time.Duration(cfg.DedupeWindowDays) * 24 * time.Hour,
		closeFn:      pool.Close,
	}, nil
}

// NewPostgresWithPool wraps an existing pool. Used by tests.
func NewPostgresWithPool(pool Pool, dedupeWindow time.Duration) *PostgresStore {
	return &PostgresStore{pool: pool, dedupeWindow: dedupeWindow}
}

// Ordered migrations, tracked in schema_migrations.
var postgresMigrations = []string{postgresSchemaV1}

const postgresSchemaV1 = `
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
	first_seen        TIMESTAMPTZ NOT NULL,
	last_seen         TIMESTAMPTZ NOT NULL,
	exported_count    INTEGER NOT NULL DEFAULT 0,
	last_exported     TIMESTAMPTZ,
	exported_basic_at TIMESTAMPTZ,
	exported_pro_at   TIMESTAMPTZ,
	exclusive_until   TIMESTAMPTZ,
	exclusive_tier    TEXT
);

CREATE INDEX IF NOT EXISTS idx_leads_website ON leads(website);
CREATE INDEX IF NOT EXISTS idx_leads_last_seen ON leads(last_seen);
CREATE INDEX IF NOT EXISTS idx_leads_score ON leads(score);

CREATE TABLE IF NOT EXISTS runs (
	run_id            TEXT PRIMARY KEY,
	started_at        TIMESTAMPTZ NOT NULL,
	completed_at      TIMESTAMPTZ,
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
	id               BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	run_id           TEXT NOT NULL,
	subscriber_email TEXT NOT NULL,
	lead_count       INTEGER NOT NULL,
	csv_path         TEXT,
	sent_at          TIMESTAMPTZ NOT NULL,
	tier             TEXT,
	export_type      TEXT
);

CREATE INDEX IF NOT EXISTS idx_exports_subscriber ON exports(subscriber_email);

CREATE TABLE IF NOT EXISTS audits (
	place_id        TEXT PRIMARY KEY,
	audit_url       TEXT,
	audit_html_path TEXT,
	generated_at    TIMESTAMPTZ,
	issues_json     TEXT
);

CREATE TABLE IF NOT EXISTS contacts (
	place_id   TEXT PRIMARY KEY,
	email      TEXT,
	source     TEXT,
	confidence DOUBLE PRECISION,
	found_at   TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS outreach (
	id               BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	place_id         TEXT,
	email            TEXT,
	audit_url        TEXT,
	sent_at          TIMESTAMPTZ,
	success          BOOLEAN,
	error            TEXT,
	followup_sent_at TIMESTAMPTZ,
	followup_success BOOLEAN,
	followup_error   TEXT,
	UNIQUE(place_id, email)
);

CREATE INDEX IF NOT EXISTS idx_outreach_place_id ON outreach(place_id);

CREATE TABLE IF NOT EXISTS engagement_events (
	id         BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	place_id   TEXT,
	event_type TEXT,
	ip_address TEXT,
	user_agent TEXT,
	timestamp  TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_engagement_place_id ON engagement_events(place_id);
CREATE INDEX IF NOT EXISTS idx_engagement_type ON engagement_events(event_type);

CREATE TABLE IF NOT EXISTS unsubscribes (
	place_id        TEXT PRIMARY KEY,
	email           TEXT,
	unsubscribed_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS suppression (
	email         TEXT PRIMARY KEY,
	reason        TEXT,
	suppressed_at TIMESTAMPTZ
);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`)
	if err != nil {
		return eris.Wrap(err, "postgres: create schema_migrations")
	}

	var version int
	if err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM schema_migrations`).Scan(&version); err != nil {
		return eris.Wrap(err, "postgres: read schema version")
	}
	for i := version; i < len(postgresMigrations); i++ {
		if _, err := s.pool.Exec(ctx, postgresMigrations[i]); err != nil {
			return eris.Wrapf(err, "postgres: apply migration %d", i+1)
		}
		if _, err := s.pool.Exec(ctx,
			`INSERT INTO schema_migrations (version) VALUES ($1)`, i+1); err != nil {
			return eris.Wrapf(err, "postgres: record schema version %d", i+1)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertLead(ctx context.Context, lead model.Lead) (bool, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-s.dedupeWindow)

	row := s.pool.QueryRow(ctx, `
		INSERT INTO leads (
			place_id, cid, name, website, address, phone, review_count,
			city, category, score, reasons, lead_tier,
			exclusive_until, exclusive_tier, first_seen, last_seen
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
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
		WHERE leads.last_seen <= $17
		RETURNING place_id`,
		lead.PlaceID, nullStr(lead.CID), lead.Name, nullStr(lead.Website),
		nullStr(lead.Address), nullStr(lead.Phone), nullReviewCount(lead.ReviewCount),
		lead.City, lead.Category, lead.Score, marshalReasons(lead.Reasons),
		nullStr(lead.Tier), nullTime(lead.ExclusiveUntil), nullStr(lead.ExclusiveTier),
		now, now, cutoff,
	)

	var id string
	err := row.Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: upsert lead %s", lead.PlaceID)
	}
	return true, nil
}

func (s *PostgresStore) IsDuplicate(ctx context.Context, placeID, website string) (bool, error) {
	cutoff := time.Now().UTC().Add(-s.dedupeWindow)

	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM leads WHERE place_id = $1 AND last_seen > $2`,
		placeID, cutoff,
	).Scan(&one)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, eris.Wrap(err, "postgres: duplicate check")
	}

	if website == "" {
		return false, nil
	}
	err = s.pool.QueryRow(ctx,
		`SELECT 1 FROM leads WHERE website = $1 AND last_seen > $2`,
		website, cutoff,
	).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrap(err, "postgres: duplicate check by website")
	}
	return true, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, placeID string) (*model.Lead, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE place_id = $1`, placeID)
	lead, err := scanLead(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", placeID)
	}
	return lead, nil
}

func (s *PostgresStore) UnexportedLeads(ctx context.Context, minScore int, tier string, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 500
	}

	var rows pgx.Rows
	var err error
	if strings.EqualFold(tier, model.ExportTierPro) {
		rows, err = s.pool.Query(ctx, `
			SELECT `+leadColumns+` FROM leads
			WHERE score >= $1 AND website IS NOT NULL
			  AND exported_pro_at IS NULL
			ORDER BY score DESC, first_seen ASC
			LIMIT $2`, minScore, limit)
	} else {
		rows, err = s.pool.Query(ctx, `
			SELECT `+leadColumns+` FROM leads
			WHERE score >= $1 AND website IS NOT NULL
			  AND exported_basic_at IS NULL
			  AND (
				exclusive_until IS NULL
				OR exclusive_until < $2
				OR exclusive_tier IS NULL
				OR exclusive_tier != 'pro'
			  )
			ORDER BY score DESC, first_seen ASC
			LIMIT $3`, minScore, time.Now().UTC(), limit)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: unexported leads tier %s", tier)
	}
	defer rows.Close()
	return collectLeadsPgx(rows)
}

func (s *PostgresStore) UnverifiedLeads(ctx context.Context, limit int) ([]model.Lead, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+leadColumns+` FROM leads
		WHERE reasons LIKE '%unverified%' AND exported_count = 0
		ORDER BY score DESC, first_seen ASC
		LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: unverified leads")
	}
	defer rows.Close()
	return collectLeadsPgx(rows)
}

func (s *PostgresStore) MarkExported(ctx context.Context, placeIDs []string, tier string) error {
	now := time.Now().UTC()
	column := "exported_basic_at"
	if strings.EqualFold(tier, model.ExportTierPro) {
		column = "exported_pro_at"
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE leads SET exported_count = exported_count + 1, last_exported = $1, `+column+` = $1 WHERE place_id = ANY($2)`,
		now, placeIDs,
	)
	return eris.Wrapf(err, "postgres: mark exported tier %s", tier)
}

func (s *PostgresStore) CleanupOldLeads(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM leads WHERE last_seen < $1 AND exported_count = 0`, cutoff)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: cleanup old leads")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) StartRun(ctx context.Context, runID string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (run_id, started_at, status) VALUES ($1, $2, 'running')`,
		runID, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: start run %s", runID)
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, stats RunStats, runErr error) error {
	status := "completed"
	var errMsg any
	if runErr != nil {
		status = "failed"
		errMsg = runErr.Error()
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE runs SET
			completed_at = $1, status = $2,
			queries_attempted = $3, queries_succeeded = $4, businesses_found = $5,
			leads_exported = $6, emails_sent = $7, errors = $8, error_message = $9
		WHERE run_id = $10`,
		time.Now().UTC(), status,
		stats.QueriesAttempted, stats.QueriesSucceeded, stats.BusinessesFound,
		stats.LeadsExported, stats.EmailsSent, stats.Errors, errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) LastRun(ctx context.Context) (*Run, error) {
	row := s.pool.QueryRow(ctx, `
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
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: last run")
	}
	if completedAt.Valid {
		t := completedAt.Time
		r.CompletedAt = &t
	}
	r.Error = errMsg.String
	return &r, nil
}

func (s *PostgresStore) RecordExport(ctx context.Context, rec Export) error {
	sentAt := rec.SentAt
	if sentAt.IsZero() {
		sentAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO exports (run_id, subscriber_email, lead_count, csv_path, sent_at, tier, export_type)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rec.RunID, rec.SubscriberEmail, rec.LeadCount, nullStr(rec.CSVPath),
		sentAt, nullStr(rec.Tier), nullStr(rec.ExportType),
	)
	return eris.Wrap(err, "postgres: record export")
}

func (s *PostgresStore) RecordAudit(ctx context.Context, a Audit) error {
	generatedAt := a.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audits (place_id, audit_url, audit_html_path, generated_at, issues_json)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT(place_id) DO UPDATE SET
			audit_url = excluded.audit_url,
			audit_html_path = excluded.audit_html_path,
			generated_at = excluded.generated_at,
			issues_json = excluded.issues_json`,
		a.PlaceID, a.AuditURL, nullStr(a.HTMLPath), generatedAt, nullStr(a.IssuesJSON),
	)
	return eris.Wrapf(err, "postgres: record audit %s", a.PlaceID)
}

func (s *PostgresStore) LeadsWithoutAudits(ctx context.Context, minScore int) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+prefixedLeadColumns("l")+`
		FROM leads l
		LEFT JOIN audits a ON l.place_id = a.place_id
		WHERE l.score >= $1 AND l.website IS NOT NULL AND a.place_id IS NULL
		ORDER BY l.score DESC`, minScore)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: leads without audits")
	}
	defer rows.Close()
	return collectLeadsPgx(rows)
}

func (s *PostgresStore) RecordContact(ctx context.Context, c Contact) error {
	foundAt := c.FoundAt
	if foundAt.IsZero() {
		foundAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO contacts (place_id, email, source, confidence, found_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT(place_id) DO UPDATE SET
			email = excluded.email,
			source = excluded.source,
			confidence = excluded.confidence,
			found_at = excluded.found_at`,
		c.PlaceID, c.Email, c.Source, c.Confidence, foundAt,
	)
	return eris.Wrapf(err, "postgres: record contact %s", c.PlaceID)
}

func (s *PostgresStore) GetContact(ctx context.Context, placeID string) (*Contact, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT place_id, email, source, confidence, found_at FROM contacts WHERE place_id = $1`,
		placeID)

	var c Contact
	err := row.Scan(&c.PlaceID, &c.Email, &c.Source, &c.Confidence, &c.FoundAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get contact %s", placeID)
	}
	return &c, nil
}

func (s *PostgresStore) LeadsWithoutContacts(ctx context.Context) ([]model.Lead, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+prefixedLeadColumns("l")+`
		FROM leads l
		LEFT JOIN contacts c ON l.place_id = c.place_id
		WHERE l.website IS NOT NULL AND c.place_id IS NULL
		ORDER BY l.score DESC`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: leads without contacts")
	}
	defer rows.Close()
	return collectLeadsPgx(rows)
}

func (s *PostgresStore) RecordOutreach(ctx context.Context, placeID, email, auditURL string, success bool, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO outreach (place_id, email, audit_url, sent_at, success, error)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		placeID, email, auditURL, time.Now().UTC(), success, nullStr(errMsg),
	)
	return eris.Wrapf(err, "postgres: record outreach %s", placeID)
}

func (s *PostgresStore) RecordFollowup(ctx context.Context, placeID string, success bool, errMsg string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outreach SET followup_sent_at = $1, followup_success = $2, followup_error = $3
		WHERE place_id = $4`,
		time.Now().UTC(), success, nullStr(errMsg), placeID,
	)
	return eris.Wrapf(err, "postgres: record followup %s", placeID)
}

func (s *PostgresStore) LeadsReadyForOutreach(ctx context.Context, minScore int) ([]OutreachCandidate, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT l.place_id, l.name, l.website, l.score,
		       c.email, c.confidence, a.audit_url
		FROM leads l
		INNER JOIN audits a ON l.place_id = a.place_id
		INNER JOIN contacts c ON l.place_id = c.place_id
		LEFT JOIN outreach o ON l.place_id = o.place_id
		LEFT JOIN unsubscribes u ON l.place_id = u.place_id
		WHERE l.score >= $1
		  AND c.confidence >= 0.7
		  AND o.place_id IS NULL
		  AND u.place_id IS NULL
		ORDER BY l.score DESC, c.confidence DESC`, minScore)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: leads ready for outreach")
	}
	defer rows.Close()

	var out []OutreachCandidate
	for rows.Next() {
		var c OutreachCandidate
		var website sql.NullString
		if err := rows.Scan(&c.PlaceID, &c.Name, &website, &c.Score, &c.Email, &c.Confidence, &c.AuditURL); err != nil {
			return nil, eris.Wrap(err, "postgres: scan outreach candidate")
		}
		c.Website = website.String
		out = append(out, c)
	}
	return out, eris.Wrap(rows.Err(), "postgres: outreach candidates iterate")
}

func (s *PostgresStore) RecordEvent(ctx context.Context, placeID, eventType, ipAddress, userAgent string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO engagement_events (place_id, event_type, ip_address, user_agent, timestamp)
		VALUES ($1, $2, $3, $4, $5)`,
		placeID, eventType, nullStr(ipAddress), nullStr(userAgent), time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: record event %s/%s", placeID, eventType)
}

func (s *PostgresStore) EngagementScore(ctx context.Context, placeID string) (int, error) {
	unsubscribed, err := s.IsUnsubscribed(ctx, placeID)
	if err != nil {
		return 0, err
	}
	if unsubscribed {
		return unsubscribedEngagement, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT event_type, COUNT(*) FROM engagement_events
		WHERE place_id = $1 GROUP BY event_type`, placeID)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: engagement score %s", placeID)
	}
	defer rows.Close()

	score := 0
	for rows.Next() {
		var eventType string
		var count int
		if err := rows.Scan(&eventType, &count); err != nil {
			return 0, eris.Wrap(err, "postgres: scan engagement counts")
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
	return score, eris.Wrap(rows.Err(), "postgres: engagement counts iterate")
}

func (s *PostgresStore) WarmLeads(ctx context.Context, minEngagement int) ([]WarmLead, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT DISTINCT `+prefixedLeadColumns("l")+`, c.email, a.audit_url
		FROM leads l
		INNER JOIN outreach o ON l.place_id = o.place_id
		INNER JOIN contacts c ON l.place_id = c.place_id
		INNER JOIN audits a ON l.place_id = a.place_id
		LEFT JOIN unsubscribes u ON l.place_id = u.place_id
		WHERE o.success = true AND u.place_id IS NULL`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: warm leads")
	}
	defer rows.Close()

	var candidates []WarmLead
	for rows.Next() {
		var w WarmLead
		if err := scanLeadInto(rows, &w.Lead, &w.Email, &w.AuditURL); err != nil {
			return nil, eris.Wrap(err, "postgres: scan warm lead")
		}
		candidates = append(candidates, w)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: warm leads iterate")
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

func (s *PostgresStore) AddUnsubscribe(ctx context.Context, placeID, email string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO unsubscribes (place_id, email, unsubscribed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT(place_id) DO UPDATE SET
			email = excluded.email,
			unsubscribed_at = excluded.unsubscribed_at`,
		placeID, nullStr(email), time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: add unsubscribe %s", placeID)
}

func (s *PostgresStore) IsUnsubscribed(ctx context.Context, placeID string) (bool, error) {
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM unsubscribes WHERE place_id = $1`, placeID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: unsubscribe check %s", placeID)
	}
	return true, nil
}

func (s *PostgresStore) AddSuppression(ctx context.Context, email, reason string) error {
	if email == "" {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO suppression (email, reason, suppressed_at)
		VALUES ($1, $2, $3)
		ON CONFLICT(email) DO UPDATE SET
			reason = excluded.reason,
			suppressed_at = excluded.suppressed_at`,
		email, reason, time.Now().UTC(),
	)
	return eris.Wrapf(err, "postgres: add suppression %s", email)
}

func (s *PostgresStore) IsSuppressed(ctx context.Context, email string) (bool, error) {
	if email == "" {
		return false, nil
	}
	var one int
	err := s.pool.QueryRow(ctx,
		`SELECT 1 FROM suppression WHERE email = $1`, email).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: suppression check %s", email)
	}
	return true, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads`).Scan(&st.TotalLeads); err != nil {
		return nil, eris.Wrap(err, "postgres: count leads")
	}
	if err := s.pool.QueryRow(ctx,
		`SELECT COUNT(DISTINCT website) FROM leads WHERE website IS NOT NULL`,
	).Scan(&st.UniqueWebsites); err != nil {
		return nil, eris.Wrap(err, "postgres: count websites")
	}
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM runs`).Scan(&st.TotalRuns); err != nil {
		return nil, eris.Wrap(err, "postgres: count runs")
	}
	lastRun, err := s.LastRun(ctx)
	if err != nil {
		return nil, err
	}
	st.LastRun = lastRun
	return &st, nil
}

func collectLeadsPgx(rows pgx.Rows) ([]model.Lead, error) {
	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan lead")
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: leads iterate")
}
