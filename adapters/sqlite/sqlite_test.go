package sqlite_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/artpar/coreplane/adapters/sqlite"
	"github.com/artpar/coreplane/domain/breakglass"
	"github.com/artpar/coreplane/domain/project"
	"github.com/artpar/coreplane/domain/quota"
	"github.com/artpar/coreplane/domain/usage"
	"github.com/artpar/coreplane/ports"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T) (*sqlite.DB, func()) {
	t.Helper()

	f, err := os.CreateTemp("", "coreplane-test-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	path := f.Name()
	f.Close()

	db, err := sqlite.Open(path)
	if err != nil {
		os.Remove(path)
		t.Fatalf("open database: %v", err)
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		os.Remove(path)
		t.Fatalf("migrate: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.Remove(path)
	}

	return db, cleanup
}

func seedProject(t *testing.T, db *sqlite.DB, id string, status project.Status) {
	t.Helper()

	store := sqlite.NewProjectStore(db)
	err := store.Create(context.Background(), project.Project{
		ID:       id,
		TenantID: "tenant-1",
		Name:     "test project",
		Status:   status,
		Services: map[project.Service]bool{
			project.ServiceDB:      true,
			project.ServiceStorage: false,
		},
		CreatedAt: testNow,
		UpdatedAt: testNow,
	})
	if err != nil {
		t.Fatalf("seed project: %v", err)
	}
}

// -----------------------------------------------------------------------------
// ProjectStore Tests
// -----------------------------------------------------------------------------

func TestProjectStore_CreateAndGet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	seedProject(t, db, "proj-1", project.StatusActive)

	store := sqlite.NewProjectStore(db)
	p, err := store.Get(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if p.Status != project.StatusActive {
		t.Errorf("Status = %s", p.Status)
	}
	if !p.Services[project.ServiceDB] {
		t.Error("db_queries toggle lost")
	}
	if p.Services[project.ServiceStorage] {
		t.Error("storage toggle should be off")
	}
}

func TestProjectStore_NotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewProjectStore(db)
	_, err := store.Get(context.Background(), "missing")
	if !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProjectStore_UpdateStatusIf(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	seedProject(t, db, "proj-1", project.StatusActive)
	store := sqlite.NewProjectStore(db)
	ctx := context.Background()

	applied, err := store.UpdateStatusIf(ctx, "proj-1", project.StatusActive, project.StatusSuspended, testNow)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !applied {
		t.Fatal("expected CAS to apply")
	}

	// Second identical CAS loses the guard.
	applied, err = store.UpdateStatusIf(ctx, "proj-1", project.StatusActive, project.StatusSuspended, testNow)
	if err != nil {
		t.Fatalf("second update: %v", err)
	}
	if applied {
		t.Error("CAS with stale from-status must not apply")
	}

	p, _ := store.Get(ctx, "proj-1")
	if p.Status != project.StatusSuspended {
		t.Errorf("Status = %s, want SUSPENDED", p.Status)
	}
}

func TestProjectStore_UpdateStatusIf_MissingProject(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewProjectStore(db)
	_, err := store.UpdateStatusIf(context.Background(), "missing", project.StatusActive, project.StatusSuspended, testNow)
	if !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestProjectStore_ListIDsWithQuotas(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	seedProject(t, db, "proj-1", project.StatusActive)
	seedProject(t, db, "proj-2", project.StatusActive)

	quotas := sqlite.NewQuotaStore(db)
	err := quotas.Upsert(context.Background(), quota.Quota{
		ProjectID: "proj-1", Service: project.ServiceDB, HardCap: 1000, ResetAt: testNow.AddDate(0, 1, 0),
	})
	if err != nil {
		t.Fatalf("upsert quota: %v", err)
	}

	store := sqlite.NewProjectStore(db)
	ids, err := store.ListIDsWithQuotas(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 1 || ids[0] != "proj-1" {
		t.Errorf("ids = %v, want [proj-1]", ids)
	}
}

// -----------------------------------------------------------------------------
// QuotaStore Tests
// -----------------------------------------------------------------------------

func TestQuotaStore_UpsertAndGet(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	seedProject(t, db, "proj-1", project.StatusActive)
	store := sqlite.NewQuotaStore(db)
	ctx := context.Background()

	resetAt := testNow.AddDate(0, 1, 0)
	q := quota.Quota{ProjectID: "proj-1", Service: project.ServiceDB, MonthlyLimit: 500, HardCap: 1000, ResetAt: resetAt}
	if err := store.Upsert(ctx, q); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := store.Get(ctx, "proj-1", project.ServiceDB)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.HardCap != 1000 || got.MonthlyLimit != 500 {
		t.Errorf("got %+v", got)
	}
	if !got.ResetAt.Equal(resetAt) {
		t.Errorf("ResetAt = %v, want %v", got.ResetAt, resetAt)
	}

	// Upsert replaces.
	q.HardCap = 2000
	if err := store.Upsert(ctx, q); err != nil {
		t.Fatalf("re-upsert: %v", err)
	}
	got, _ = store.Get(ctx, "proj-1", project.ServiceDB)
	if got.HardCap != 2000 {
		t.Errorf("HardCap after upsert = %d", got.HardCap)
	}
}

func TestQuotaStore_SetHardCap(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	seedProject(t, db, "proj-1", project.StatusActive)
	store := sqlite.NewQuotaStore(db)
	ctx := context.Background()

	err := store.SetHardCap(ctx, "proj-1", project.ServiceDB, 5000)
	if !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("SetHardCap on missing row: expected ErrNotFound, got %v", err)
	}

	store.Upsert(ctx, quota.Quota{ProjectID: "proj-1", Service: project.ServiceDB, HardCap: 1000, ResetAt: testNow})
	if err := store.SetHardCap(ctx, "proj-1", project.ServiceDB, 5000); err != nil {
		t.Fatalf("set hard cap: %v", err)
	}
	got, _ := store.Get(ctx, "proj-1", project.ServiceDB)
	if got.HardCap != 5000 {
		t.Errorf("HardCap = %d, want 5000", got.HardCap)
	}
}

// -----------------------------------------------------------------------------
// UsageStore Tests
// -----------------------------------------------------------------------------

func TestUsageStore_InsertIdempotency(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewUsageStore(db)
	ctx := context.Background()

	r := usage.Record{
		ID:             "rec-1",
		ProjectID:      "proj-1",
		Service:        project.ServiceDB,
		MetricType:     usage.MetricRequests,
		Amount:         10,
		IdempotencyKey: "evt-abc",
		RecordedAt:     testNow,
	}

	inserted, id, err := store.Insert(ctx, r)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !inserted || id != "rec-1" {
		t.Errorf("first insert: inserted=%v id=%s", inserted, id)
	}

	// Same key, different record id: no-op returning the original id.
	dup := r
	dup.ID = "rec-2"
	inserted, id, err = store.Insert(ctx, dup)
	if err != nil {
		t.Fatalf("duplicate insert: %v", err)
	}
	if inserted {
		t.Error("duplicate idempotency key must not insert")
	}
	if id != "rec-1" {
		t.Errorf("duplicate insert id = %s, want rec-1", id)
	}

	total, err := store.SumPeriod(ctx, "proj-1", project.ServiceDB, testNow.Add(-time.Hour), testNow.Add(time.Hour))
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if total != 10 {
		t.Errorf("total = %d, want 10 (amount counted exactly once)", total)
	}
}

func TestUsageStore_NoKeyRecordsAreIndependent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewUsageStore(db)
	ctx := context.Background()

	for i, id := range []string{"rec-1", "rec-2"} {
		inserted, _, err := store.Insert(ctx, usage.Record{
			ID: id, ProjectID: "proj-1", Service: project.ServiceDB,
			MetricType: usage.MetricRequests, Amount: int64(i + 1), RecordedAt: testNow,
		})
		if err != nil || !inserted {
			t.Fatalf("insert %s: inserted=%v err=%v", id, inserted, err)
		}
	}

	total, _ := store.SumPeriod(ctx, "proj-1", project.ServiceDB, testNow.Add(-time.Hour), testNow.Add(time.Hour))
	if total != 3 {
		t.Errorf("total = %d, want 3", total)
	}
}

func TestUsageStore_SumPeriodBounds(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewUsageStore(db)
	ctx := context.Background()

	times := []time.Time{
		testNow.AddDate(0, -2, 0), // before period
		testNow,                   // inside
		testNow.AddDate(0, 1, 0),  // at end boundary (excluded)
	}
	for i, at := range times {
		store.Insert(ctx, usage.Record{
			ID: "rec-" + string(rune('a'+i)), ProjectID: "proj-1", Service: project.ServiceDB,
			MetricType: usage.MetricRequests, Amount: 100, RecordedAt: at,
		})
	}

	start := testNow.AddDate(0, -1, 0)
	end := testNow.AddDate(0, 1, 0)
	total, err := store.SumPeriod(ctx, "proj-1", project.ServiceDB, start, end)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if total != 100 {
		t.Errorf("total = %d, want 100 (only in-period record)", total)
	}
}

// -----------------------------------------------------------------------------
// SuspensionStore Tests
// -----------------------------------------------------------------------------

func TestSuspensionStore_OneActivePerProject(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewSuspensionStore(db)
	ctx := context.Background()

	first := ports.Suspension{
		ID: "susp-1", ProjectID: "proj-1", CapExceeded: project.ServiceDB,
		CurrentValue: 950, LimitExceeded: 1000, SuspendedAt: testNow,
	}
	created, err := store.CreateIfNoneActive(ctx, first)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created {
		t.Fatal("first suspension must be created")
	}

	second := first
	second.ID = "susp-2"
	created, err = store.CreateIfNoneActive(ctx, second)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if created {
		t.Error("second active suspension must be a no-op")
	}

	active, err := store.GetActive(ctx, "proj-1")
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active.ID != "susp-1" {
		t.Errorf("active.ID = %s", active.ID)
	}
	if active.CurrentValue != 950 || active.LimitExceeded != 1000 {
		t.Errorf("breach numbers lost: %+v", active)
	}
}

func TestSuspensionStore_ResolveAllowsNewSuspension(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewSuspensionStore(db)
	ctx := context.Background()

	store.CreateIfNoneActive(ctx, ports.Suspension{
		ID: "susp-1", ProjectID: "proj-1", CapExceeded: project.ServiceDB, SuspendedAt: testNow,
	})

	resolved, err := store.Resolve(ctx, "susp-1", testNow.Add(time.Hour), "quota period reset")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !resolved {
		t.Fatal("expected resolve to apply")
	}

	// Resolving again is a no-op, not an error.
	resolved, err = store.Resolve(ctx, "susp-1", testNow.Add(2*time.Hour), "")
	if err != nil {
		t.Fatalf("second resolve: %v", err)
	}
	if resolved {
		t.Error("second resolve must not apply")
	}

	if _, err := store.GetActive(ctx, "proj-1"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("expected no active suspension, got %v", err)
	}

	created, err := store.CreateIfNoneActive(ctx, ports.Suspension{
		ID: "susp-2", ProjectID: "proj-1", CapExceeded: project.ServiceStorage, SuspendedAt: testNow.Add(3 * time.Hour),
	})
	if err != nil || !created {
		t.Errorf("new suspension after resolve: created=%v err=%v", created, err)
	}
}

func TestSuspensionStore_ListActiveAutomatic(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewSuspensionStore(db)
	ctx := context.Background()

	store.CreateIfNoneActive(ctx, ports.Suspension{
		ID: "susp-auto", ProjectID: "proj-1", CapExceeded: project.ServiceDB, SuspendedAt: testNow,
	})
	store.CreateIfNoneActive(ctx, ports.Suspension{
		ID: "susp-manual", ProjectID: "proj-2", Manual: true, Notes: "abuse report", SuspendedAt: testNow,
	})

	list, err := store.ListActiveAutomatic(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != "susp-auto" {
		t.Errorf("list = %+v, want only susp-auto", list)
	}
}

// -----------------------------------------------------------------------------
// BreakGlassStore Tests
// -----------------------------------------------------------------------------

func TestBreakGlassStore_CreateAndLookup(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewBreakGlassStore(db)
	ctx := context.Background()

	raw, sess, err := breakglass.Generate("admin-1", "incident-42", "cli", "admin-2", testNow, 30*time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}

	prefix, _ := breakglass.ValidateFormat(raw)
	matches, err := store.GetByPrefix(ctx, prefix)
	if err != nil {
		t.Fatalf("get by prefix: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("matches = %d, want 1", len(matches))
	}
	got := matches[0]
	if got.AdminID != "admin-1" || got.GrantedBy != "admin-2" {
		t.Errorf("session fields lost: %+v", got)
	}
	if !breakglass.MatchToken(got, raw) {
		t.Error("stored hash must match the raw token")
	}
}

func TestBreakGlassStore_DeleteExpired(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewBreakGlassStore(db)
	ctx := context.Background()

	_, expired, _ := breakglass.Generate("admin-1", "old", "cli", "", testNow.Add(-2*time.Hour), time.Hour)
	_, live, _ := breakglass.Generate("admin-1", "new", "cli", "", testNow, time.Hour)
	store.Create(ctx, expired)
	store.Create(ctx, live)

	n, err := store.DeleteExpired(ctx, testNow)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if n != 1 {
		t.Errorf("deleted %d, want 1", n)
	}
}

// -----------------------------------------------------------------------------
// ActionLogStore Tests
// -----------------------------------------------------------------------------

func TestActionLogStore_AppendAndList(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	store := sqlite.NewActionLogStore(db)
	ctx := context.Background()

	for i, action := range []string{"unlock", "override_suspension"} {
		err := store.Append(ctx, ports.ActionRecord{
			ID:        "act-" + string(rune('a'+i)),
			SessionID: "bgs-1",
			AdminID:   "admin-1",
			Action:    action,
			ProjectID: "proj-1",
			Before:    `{"status":"SUSPENDED"}`,
			After:     `{"status":"ACTIVE"}`,
			CreatedAt: testNow.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	records, err := store.ListByProject(ctx, "proj-1", 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("records = %d, want 2", len(records))
	}
	if records[0].Action != "override_suspension" {
		t.Errorf("newest first expected, got %s", records[0].Action)
	}
}

// -----------------------------------------------------------------------------
// Migration Tests
// -----------------------------------------------------------------------------

func TestMigration_Idempotent(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	// Running migrations again must be a no-op.
	if err := db.Migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
}
