package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadscout/internal/config"
	"github.com/sells-group/leadscout/internal/model"
)

var _ Store = (*SQLiteStore)(nil)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	cfg := config.StoreConfig{
		Driver:           "sqlite",
		Path:             filepath.Join(t.TempDir(), "test.db"),
		DedupeWindowDays: 90,
		RetentionDays:    180,
	}
	st, err := NewSQLite(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testLead(placeID string, score int) model.Lead {
	return model.Lead{
		PlaceID:     placeID,
		Name:        "Biz " + placeID,
		Website:     "https://" + placeID + ".example",
		Address:     "123 Main St",
		Phone:       "(512) 555-0100",
		ReviewCount: 20,
		City:        "Austin, TX",
		Category:    "plumber",
		Score:       score,
		Reasons:     []string{"copyright_2015", "no_viewport"},
		Tier:        model.TierFor(score),
	}
}

// ageLead pushes a lead's last_seen into the past, beyond any window.
func ageLead(t *testing.T, st *SQLiteStore, placeID string, age time.Duration) {
	t.Helper()
	_, err := st.db.Exec(`UPDATE leads SET last_seen = ? WHERE place_id = ?`,
		time.Now().UTC().Add(-age), placeID)
	require.NoError(t, err)
}

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// A second migration pass is a no-op.
	require.NoError(t, st.Migrate(ctx))

	var version int
	require.NoError(t, st.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, len(sqliteMigrations), version)
}

// --- Upsert / dedupe ---

func TestSQLite_UpsertLead_New(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	isNew, err := st.UpsertLead(ctx, testLead("p1", 75))
	require.NoError(t, err)
	assert.True(t, isNew)

	got, err := st.GetLead(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 75, got.Score)
	assert.Equal(t, []string{"copyright_2015", "no_viewport"}, got.Reasons)
	assert.Equal(t, 20, got.ReviewCount)
	assert.False(t, got.FirstSeen.IsZero())
	assert.False(t, got.LastSeen.IsZero())
}

func TestSQLite_UpsertLead_FreshDuplicateRejected(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertLead(ctx, testLead("p1", 75))
	require.NoError(t, err)

	// Same lead inside the window: rejected, stored row untouched.
	updated := testLead("p1", 90)
	isNew, err := st.UpsertLead(ctx, updated)
	require.NoError(t, err)
	assert.False(t, isNew)

	got, err := st.GetLead(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 75, got.Score)
}

func TestSQLite_UpsertLead_WindowLapseRefreshes(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertLead(ctx, testLead("p1", 75))
	require.NoError(t, err)
	before, err := st.GetLead(ctx, "p1")
	require.NoError(t, err)

	ageLead(t, st, "p1", 91*24*time.Hour)

	isNew, err := st.UpsertLead(ctx, testLead("p1", 90))
	require.NoError(t, err)
	assert.True(t, isNew)

	got, err := st.GetLead(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 90, got.Score)
	// first_seen survives the refresh.
	assert.WithinDuration(t, before.FirstSeen, got.FirstSeen, time.Second)
	assert.True(t, got.LastSeen.After(got.FirstSeen))
}

func TestSQLite_UpsertLead_MissingReviewCount(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead := testLead("p1", 60)
	lead.ReviewCount = -1
	_, err := st.UpsertLead(ctx, lead)
	require.NoError(t, err)

	got, err := st.GetLead(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, -1, got.ReviewCount)
}

func TestSQLite_GetLead_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetLead(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_IsDuplicate(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertLead(ctx, testLead("p1", 75))
	require.NoError(t, err)

	dup, err := st.IsDuplicate(ctx, "p1", "")
	require.NoError(t, err)
	assert.True(t, dup)

	// Website fallback catches a re-derived place id.
	dup, err = st.IsDuplicate(ctx, "different-id", "https://p1.example")
	require.NoError(t, err)
	assert.True(t, dup)

	dup, err = st.IsDuplicate(ctx, "different-id", "https://other.example")
	require.NoError(t, err)
	assert.False(t, dup)
}

func TestSQLite_IsDuplicate_ExpiredWindow(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertLead(ctx, testLead("p1", 75))
	require.NoError(t, err)
	ageLead(t, st, "p1", 91*24*time.Hour)

	dup, err := st.IsDuplicate(ctx, "p1", "https://p1.example")
	require.NoError(t, err)
	assert.False(t, dup)
}

// --- Exports and exclusivity ---

func TestSQLite_UnexportedLeads_BasicRespectsExclusivity(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	open := testLead("open", 85)
	_, err := st.UpsertLead(ctx, open)
	require.NoError(t, err)

	exclusive := testLead("locked", 95)
	until := time.Now().UTC().Add(7 * 24 * time.Hour)
	exclusive.ExclusiveTier = model.ExportTierPro
	exclusive.ExclusiveUntil = &until
	_, err = st.UpsertLead(ctx, exclusive)
	require.NoError(t, err)

	basic, err := st.UnexportedLeads(ctx, 40, model.ExportTierBasic, 0)
	require.NoError(t, err)
	require.Len(t, basic, 1)
	assert.Equal(t, "open", basic[0].PlaceID)

	pro, err := st.UnexportedLeads(ctx, 40, model.ExportTierPro, 0)
	require.NoError(t, err)
	assert.Len(t, pro, 2)
	// Best score first.
	assert.Equal(t, "locked", pro[0].PlaceID)
}

func TestSQLite_UnexportedLeads_ExpiredExclusivityVisible(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead := testLead("was-locked", 85)
	until := time.Now().UTC().Add(-time.Hour)
	lead.ExclusiveTier = model.ExportTierPro
	lead.ExclusiveUntil = &until
	_, err := st.UpsertLead(ctx, lead)
	require.NoError(t, err)

	basic, err := st.UnexportedLeads(ctx, 40, model.ExportTierBasic, 0)
	require.NoError(t, err)
	assert.Len(t, basic, 1)
}

func TestSQLite_UnexportedLeads_NoWebsiteExcluded(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	lead := testLead("no-site", 85)
	lead.Website = ""
	_, err := st.UpsertLead(ctx, lead)
	require.NoError(t, err)

	leads, err := st.UnexportedLeads(ctx, 40, model.ExportTierBasic, 0)
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestSQLite_MarkExported_PerTier(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertLead(ctx, testLead("p1", 85))
	require.NoError(t, err)

	require.NoError(t, st.MarkExported(ctx, []string{"p1"}, model.ExportTierBasic))

	basic, err := st.UnexportedLeads(ctx, 40, model.ExportTierBasic, 0)
	require.NoError(t, err)
	assert.Empty(t, basic)

	// Pro export track is independent of the basic one.
	pro, err := st.UnexportedLeads(ctx, 40, model.ExportTierPro, 0)
	require.NoError(t, err)
	assert.Len(t, pro, 1)

	require.NoError(t, st.MarkExported(ctx, []string{"p1"}, model.ExportTierPro))
	pro, err = st.UnexportedLeads(ctx, 40, model.ExportTierPro, 0)
	require.NoError(t, err)
	assert.Empty(t, pro)

	got, err := st.GetLead(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, got.ExportedCount)
	assert.NotNil(t, got.ExportedBasicAt)
	assert.NotNil(t, got.ExportedProAt)
}

func TestSQLite_UnverifiedLeads(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	unverified := testLead("u1", 39)
	unverified.Reasons = []string{"timeout", "unverified"}
	_, err := st.UpsertLead(ctx, unverified)
	require.NoError(t, err)

	_, err = st.UpsertLead(ctx, testLead("v1", 75))
	require.NoError(t, err)

	leads, err := st.UnverifiedLeads(ctx, 0)
	require.NoError(t, err)
	require.Len(t, leads, 1)
	assert.Equal(t, "u1", leads[0].PlaceID)

	// Exported unverified leads leave the review queue.
	require.NoError(t, st.MarkExported(ctx, []string{"u1"}, model.ExportTierBasic))
	leads, err = st.UnverifiedLeads(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, leads)
}

func TestSQLite_CleanupOldLeads(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertLead(ctx, testLead("old-unexported", 50))
	require.NoError(t, err)
	_, err = st.UpsertLead(ctx, testLead("old-exported", 50))
	require.NoError(t, err)
	_, err = st.UpsertLead(ctx, testLead("fresh", 50))
	require.NoError(t, err)

	require.NoError(t, st.MarkExported(ctx, []string{"old-exported"}, model.ExportTierBasic))
	ageLead(t, st, "old-unexported", 200*24*time.Hour)
	ageLead(t, st, "old-exported", 200*24*time.Hour)

	n, err := st.CleanupOldLeads(ctx, 180*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := st.GetLead(ctx, "old-exported")
	require.NoError(t, err)
	assert.NotNil(t, got)
}

// --- Run history ---

func TestSQLite_RunLifecycle(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.StartRun(ctx, "run-1"))

	run, err := st.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, "running", run.Status)
	assert.Nil(t, run.CompletedAt)

	stats := RunStats{
		QueriesAttempted: 10,
		QueriesSucceeded: 9,
		BusinessesFound:  42,
		LeadsExported:    7,
		EmailsSent:       3,
		Errors:           1,
	}
	require.NoError(t, st.CompleteRun(ctx, "run-1", stats, nil))

	run, err = st.LastRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "completed", run.Status)
	assert.NotNil(t, run.CompletedAt)
	assert.Equal(t, stats, run.Stats)
}

func TestSQLite_CompleteRun_Failed(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.StartRun(ctx, "run-1"))
	require.NoError(t, st.CompleteRun(ctx, "run-1", RunStats{}, assert.AnError))

	run, err := st.LastRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, "failed", run.Status)
	assert.Equal(t, assert.AnError.Error(), run.Error)
}

func TestSQLite_CompleteRun_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.CompleteRun(context.Background(), "nope", RunStats{}, nil)
	assert.Error(t, err)
}

func TestSQLite_LastRun_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)
	run, err := st.LastRun(context.Background())
	require.NoError(t, err)
	assert.Nil(t, run)
}

// --- Audits, contacts, outreach ---

func TestSQLite_AuditFlow(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertLead(ctx, testLead("p1", 85))
	require.NoError(t, err)
	_, err = st.UpsertLead(ctx, testLead("p2", 60))
	require.NoError(t, err)

	missing, err := st.LeadsWithoutAudits(ctx, 40)
	require.NoError(t, err)
	assert.Len(t, missing, 2)

	require.NoError(t, st.RecordAudit(ctx, Audit{
		PlaceID:  "p1",
		AuditURL: "https://audits.example/p1",
	}))

	missing, err = st.LeadsWithoutAudits(ctx, 40)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, "p2", missing[0].PlaceID)
}

func TestSQLite_ContactFlow(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertLead(ctx, testLead("p1", 85))
	require.NoError(t, err)

	missing, err := st.LeadsWithoutContacts(ctx)
	require.NoError(t, err)
	assert.Len(t, missing, 1)

	require.NoError(t, st.RecordContact(ctx, Contact{
		PlaceID:    "p1",
		Email:      "owner@p1.example",
		Source:     "website",
		Confidence: 0.9,
	}))

	missing, err = st.LeadsWithoutContacts(ctx)
	require.NoError(t, err)
	assert.Empty(t, missing)

	c, err := st.GetContact(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, "owner@p1.example", c.Email)
	assert.InDelta(t, 0.9, c.Confidence, 0.001)
}

func TestSQLite_LeadsReadyForOutreach(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seed := func(placeID string, confidence float64) {
		_, err := st.UpsertLead(ctx, testLead(placeID, 85))
		require.NoError(t, err)
		require.NoError(t, st.RecordAudit(ctx, Audit{PlaceID: placeID, AuditURL: "https://audits.example/" + placeID}))
		require.NoError(t, st.RecordContact(ctx, Contact{
			PlaceID: placeID, Email: placeID + "@example.com", Source: "website", Confidence: confidence,
		}))
	}
	seed("ready", 0.9)
	seed("low-confidence", 0.5)
	seed("contacted", 0.9)
	seed("unsubscribed", 0.9)

	require.NoError(t, st.RecordOutreach(ctx, "contacted", "contacted@example.com", "", true, ""))
	require.NoError(t, st.AddUnsubscribe(ctx, "unsubscribed", "unsubscribed@example.com"))

	ready, err := st.LeadsReadyForOutreach(ctx, 40)
	require.NoError(t, err)
	require.Len(t, ready, 1)
	assert.Equal(t, "ready", ready[0].PlaceID)
	assert.Equal(t, "ready@example.com", ready[0].Email)
	assert.Equal(t, "https://audits.example/ready", ready[0].AuditURL)
}

func TestSQLite_RecordFollowup(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.RecordOutreach(ctx, "p1", "a@example.com", "", true, ""))
	require.NoError(t, st.RecordFollowup(ctx, "p1", false, "bounced"))

	var followupErr string
	err := st.db.QueryRow(`SELECT followup_error FROM outreach WHERE place_id = ?`, "p1").Scan(&followupErr)
	require.NoError(t, err)
	assert.Equal(t, "bounced", followupErr)
}

// --- Engagement ---

func TestSQLite_EngagementScore(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.RecordEvent(ctx, "p1", EventEmailOpened, "", ""))
	require.NoError(t, st.RecordEvent(ctx, "p1", EventEmailOpened, "", ""))
	require.NoError(t, st.RecordEvent(ctx, "p1", EventPageView, "1.2.3.4", "agent"))
	require.NoError(t, st.RecordEvent(ctx, "p1", EventCTAClick, "", ""))

	score, err := st.EngagementScore(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2*5+25+50, score)
}

func TestSQLite_EngagementScore_UnsubscribeOverrides(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.RecordEvent(ctx, "p1", EventCTAClick, "", ""))
	require.NoError(t, st.AddUnsubscribe(ctx, "p1", "a@example.com"))

	score, err := st.EngagementScore(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, -100, score)
}

func TestSQLite_EngagementScore_NoEvents(t *testing.T) {
	st := newTestSQLiteStore(t)
	score, err := st.EngagementScore(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, 0, score)
}

func TestSQLite_WarmLeads(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	seed := func(placeID string) {
		_, err := st.UpsertLead(ctx, testLead(placeID, 85))
		require.NoError(t, err)
		require.NoError(t, st.RecordAudit(ctx, Audit{PlaceID: placeID, AuditURL: "https://audits.example/" + placeID}))
		require.NoError(t, st.RecordContact(ctx, Contact{
			PlaceID: placeID, Email: placeID + "@example.com", Source: "website", Confidence: 0.9,
		}))
		require.NoError(t, st.RecordOutreach(ctx, placeID, placeID+"@example.com", "", true, ""))
	}
	seed("engaged")
	seed("cold")
	seed("hot")

	require.NoError(t, st.RecordEvent(ctx, "engaged", EventPageView, "", ""))
	require.NoError(t, st.RecordEvent(ctx, "hot", EventCTAClick, "", ""))
	require.NoError(t, st.RecordEvent(ctx, "hot", EventPageView, "", ""))

	warm, err := st.WarmLeads(ctx, 25)
	require.NoError(t, err)
	require.Len(t, warm, 2)
	// Most engaged first.
	assert.Equal(t, "hot", warm[0].Lead.PlaceID)
	assert.Equal(t, 75, warm[0].EngagementScore)
	assert.Equal(t, "engaged", warm[1].Lead.PlaceID)
}

// --- Suppression ---

func TestSQLite_Suppression(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.AddSuppression(ctx, "bad@example.com", "hard_bounce"))

	suppressed, err := st.IsSuppressed(ctx, "bad@example.com")
	require.NoError(t, err)
	assert.True(t, suppressed)

	suppressed, err = st.IsSuppressed(ctx, "good@example.com")
	require.NoError(t, err)
	assert.False(t, suppressed)

	// Empty addresses never suppress.
	suppressed, err = st.IsSuppressed(ctx, "")
	require.NoError(t, err)
	assert.False(t, suppressed)
}

// --- Stats ---

func TestSQLite_Stats(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.UpsertLead(ctx, testLead("p1", 85))
	require.NoError(t, err)
	_, err = st.UpsertLead(ctx, testLead("p2", 60))
	require.NoError(t, err)
	require.NoError(t, st.StartRun(ctx, "run-1"))

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalLeads)
	assert.Equal(t, 2, stats.UniqueWebsites)
	assert.Equal(t, 1, stats.TotalRuns)
	require.NotNil(t, stats.LastRun)
	assert.Equal(t, "run-1", stats.LastRun.ID)
}

func TestSQLite_RecordExport(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, st.StartRun(ctx, "run-1"))
	require.NoError(t, st.RecordExport(ctx, Export{
		RunID:           "run-1",
		SubscriberEmail: "sub@example.com",
		LeadCount:       12,
		CSVPath:         "/tmp/leads.csv",
		Tier:            model.ExportTierBasic,
		ExportType:      "weekly",
	}))

	var count int
	err := st.db.QueryRow(`SELECT lead_count FROM exports WHERE subscriber_email = ?`, "sub@example.com").Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 12, count)
}

func TestSQLite_RecordExport_ManualWithoutRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	// Manual exports have no pipeline run behind them; the history row
	// must still land.
	require.NoError(t, st.RecordExport(ctx, Export{
		LeadCount:  3,
		CSVPath:    "/tmp/leads_basic.csv",
		SentAt:     time.Now().UTC(),
		Tier:       model.ExportTierBasic,
		ExportType: "manual",
	}))

	var runID string
	err := st.db.QueryRow(`SELECT run_id FROM exports WHERE export_type = ?`, "manual").Scan(&runID)
	require.NoError(t, err)
	assert.Empty(t, runID)
}
