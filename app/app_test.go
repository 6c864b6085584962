package app_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/artpar/coreplane/adapters/clock"
	"github.com/artpar/coreplane/adapters/idgen"
	"github.com/artpar/coreplane/adapters/memory"
	"github.com/artpar/coreplane/app"
	"github.com/artpar/coreplane/domain/project"
	"github.com/artpar/coreplane/domain/quota"
	"github.com/artpar/coreplane/domain/usage"
	"github.com/rs/zerolog"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

// testEnv wires every service against in-memory stores with a fake clock
// and deterministic ids.
type testEnv struct {
	clock       *clock.Fake
	projects    *memory.ProjectStore
	quotas      *memory.QuotaStore
	usage       *memory.UsageStore
	suspensions *memory.SuspensionStore
	sessions    *memory.BreakGlassStore
	actions     *memory.ActionLogStore
	cache       *memory.SnapshotCache
	notifier    *memory.Notifier

	snapshots  *app.SnapshotService
	quotaSvc   *app.QuotaService
	suspSvc    *app.SuspensionService
	breakglass *app.BreakGlassService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		clock:       clock.NewFake(testNow),
		projects:    memory.NewProjectStore(),
		quotas:      memory.NewQuotaStore(),
		usage:       memory.NewUsageStore(),
		suspensions: memory.NewSuspensionStore(),
		sessions:    memory.NewBreakGlassStore(),
		actions:     memory.NewActionLogStore(),
		notifier:    memory.NewNotifier(),
	}
	env.cache = memory.NewSnapshotCache(env.clock)

	log := zerolog.Nop()
	ids := idgen.NewSequential("id")

	env.snapshots = app.NewSnapshotService(app.SnapshotDeps{
		Projects: env.projects,
		Quotas:   env.quotas,
		Usage:    env.usage,
		Cache:    env.cache,
		Clock:    env.clock,
		Log:      log,
	}, app.SnapshotConfig{TTL: 45 * time.Second})

	env.suspSvc = app.NewSuspensionService(app.SuspensionDeps{
		Projects:    env.projects,
		Quotas:      env.quotas,
		Usage:       env.usage,
		Suspensions: env.suspensions,
		Notifier:    env.notifier,
		Clock:       env.clock,
		IDGen:       ids,
		Log:         log,
	})

	env.quotaSvc = app.NewQuotaService(app.QuotaDeps{
		Projects: env.projects,
		Quotas:   env.quotas,
		Usage:    env.usage,
		Clock:    env.clock,
		IDGen:    ids,
		Log:      log,
	}, app.QuotaConfig{})

	env.breakglass = app.NewBreakGlassService(app.BreakGlassDeps{
		Sessions:    env.sessions,
		Projects:    env.projects,
		Quotas:      env.quotas,
		Suspensions: env.suspensions,
		Actions:     env.actions,
		Notifier:    env.notifier,
		Clock:       env.clock,
		IDGen:       ids,
		Log:         log,
	})

	return env
}

func (env *testEnv) seedProject(t *testing.T, id string, status project.Status) {
	t.Helper()
	err := env.projects.Create(context.Background(), project.Project{
		ID:       id,
		TenantID: "tenant-1",
		Name:     "test project",
		Status:   status,
		Services: map[project.Service]bool{
			project.ServiceDB:      true,
			project.ServiceStorage: true,
		},
		CreatedAt: testNow,
		UpdatedAt: testNow,
	})
	if err != nil {
		t.Fatalf("seed project %s: %v", id, err)
	}
}

func (env *testEnv) seedQuota(t *testing.T, projectID string, svc project.Service, monthlyLimit, hardCap int64) {
	t.Helper()
	err := env.quotas.Upsert(context.Background(), quota.Quota{
		ProjectID:    projectID,
		Service:      svc,
		MonthlyLimit: monthlyLimit,
		HardCap:      hardCap,
		ResetAt:      testNow.AddDate(0, 0, 15), // mid-period
	})
	if err != nil {
		t.Fatalf("seed quota: %v", err)
	}
	env.projects.MarkHasQuotas(projectID)
}

func (env *testEnv) seedUsage(t *testing.T, projectID string, svc project.Service, amount int64) {
	t.Helper()
	inserted, _, err := env.usage.Insert(context.Background(), usage.Record{
		ID:         fmt.Sprintf("seed-%s-%s-%d", projectID, svc, env.usage.Count()),
		ProjectID:  projectID,
		Service:    svc,
		MetricType: usage.MetricRequests,
		Amount:     amount,
		RecordedAt: testNow.Add(-time.Hour),
	})
	if err != nil || !inserted {
		t.Fatalf("seed usage: inserted=%v err=%v", inserted, err)
	}
}
