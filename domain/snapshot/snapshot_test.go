package snapshot

import (
	"errors"
	"testing"
	"time"

	"github.com/artpar/coreplane/domain/project"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func activeProject() project.Project {
	return project.Project{
		ID:       "proj-1",
		TenantID: "tenant-1",
		Status:   project.StatusActive,
		Services: map[project.Service]bool{
			project.ServiceDB:      true,
			project.ServiceStorage: true,
		},
	}
}

func TestAssemble_ActiveProject(t *testing.T) {
	s := Assemble(activeProject(), nil, testNow)

	if s.ProjectID != "proj-1" || s.Status != project.StatusActive {
		t.Fatalf("unexpected snapshot identity: %+v", s)
	}
	if len(s.Services) != len(project.Services) {
		t.Errorf("expected %d service entries, got %d", len(project.Services), len(s.Services))
	}
	if !s.Services[project.ServiceDB].Enabled {
		t.Error("db_queries should be enabled")
	}
	if s.Services[project.ServiceRealtime].Enabled {
		t.Error("realtime toggle is off, flag must be disabled")
	}
	if !s.GeneratedAt.Equal(testNow) {
		t.Errorf("GeneratedAt = %v, want %v", s.GeneratedAt, testNow)
	}
}

func TestAssemble_SuspendedForcesAllFlagsOff(t *testing.T) {
	p := activeProject()
	p.Status = project.StatusSuspended

	s := Assemble(p, nil, testNow)
	for svc, state := range s.Services {
		if state.Enabled {
			t.Errorf("suspended project: %s must be disabled", svc)
		}
	}
}

func TestValidate_OK(t *testing.T) {
	s := Assemble(activeProject(), []QuotaSummary{
		{Service: project.ServiceDB, MonthlyLimit: 500, HardCap: 1000, CurrentUsage: 10, ResetAt: testNow},
	}, testNow)

	if err := Validate(s); err != nil {
		t.Errorf("expected valid snapshot, got %v", err)
	}
}

func TestValidate_Violations(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Snapshot)
	}{
		{"empty project id", func(s *Snapshot) { s.ProjectID = "" }},
		{"unknown status", func(s *Snapshot) { s.Status = "PAUSED" }},
		{"zero generated at", func(s *Snapshot) { s.GeneratedAt = time.Time{} }},
		{"missing service entry", func(s *Snapshot) { delete(s.Services, project.ServiceAuth) }},
		{"unknown service entry", func(s *Snapshot) { s.Services["lambda"] = ServiceState{} }},
		{"negative quota", func(s *Snapshot) { s.Quotas[0].HardCap = -1 }},
		{"duplicate quota", func(s *Snapshot) { s.Quotas = append(s.Quotas, s.Quotas[0]) }},
		{"enabled while suspended", func(s *Snapshot) {
			s.Status = project.StatusSuspended
			s.Services[project.ServiceDB] = ServiceState{Enabled: true}
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Assemble(activeProject(), []QuotaSummary{
				{Service: project.ServiceDB, MonthlyLimit: 500, HardCap: 1000, ResetAt: testNow},
			}, testNow)
			tc.mutate(&s)

			err := Validate(s)
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("expected *ValidationError, got %T", err)
			}
		})
	}
}
