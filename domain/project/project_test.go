package project

import (
	"errors"
	"testing"
)

func TestTransition_ValidTable(t *testing.T) {
	valid := []struct{ from, to Status }{
		{StatusCreated, StatusActive},
		{StatusCreated, StatusDeleted},
		{StatusActive, StatusSuspended},
		{StatusActive, StatusArchived},
		{StatusActive, StatusDeleted},
		{StatusSuspended, StatusActive},
		{StatusSuspended, StatusArchived},
		{StatusSuspended, StatusDeleted},
	}

	for _, tc := range valid {
		got, err := Transition(tc.from, tc.to)
		if err != nil {
			t.Errorf("Transition(%s, %s): unexpected error %v", tc.from, tc.to, err)
		}
		if got != tc.to {
			t.Errorf("Transition(%s, %s) = %s, want %s", tc.from, tc.to, got, tc.to)
		}
	}
}

func TestTransition_RejectsEverythingElse(t *testing.T) {
	all := []Status{StatusCreated, StatusActive, StatusSuspended, StatusArchived, StatusDeleted}

	validCount := 0
	for _, from := range all {
		for _, to := range all {
			if CanTransition(from, to) {
				validCount++
				continue
			}
			got, err := Transition(from, to)
			if err == nil {
				t.Errorf("Transition(%s, %s): expected error", from, to)
				continue
			}
			var inv *InvalidTransitionError
			if !errors.As(err, &inv) {
				t.Errorf("Transition(%s, %s): expected InvalidTransitionError, got %T", from, to, err)
			}
			if got != from {
				t.Errorf("Transition(%s, %s): status changed to %s on rejection", from, to, got)
			}
		}
	}

	if validCount != 8 {
		t.Errorf("expected 8 valid transitions, table has %d", validCount)
	}
}

func TestTransition_TerminalStates(t *testing.T) {
	for _, from := range []Status{StatusArchived, StatusDeleted} {
		for _, to := range []Status{StatusCreated, StatusActive, StatusSuspended, StatusArchived, StatusDeleted} {
			if CanTransition(from, to) {
				t.Errorf("terminal status %s must not transition to %s", from, to)
			}
		}
	}
}

func TestServiceEnabled_ForcedOffWhenNotServing(t *testing.T) {
	p := Project{
		ID:     "proj-1",
		Status: StatusSuspended,
		Services: map[Service]bool{
			ServiceDB:      true,
			ServiceStorage: true,
		},
	}

	for _, s := range Services {
		if p.ServiceEnabled(s) {
			t.Errorf("suspended project must report %s disabled", s)
		}
	}

	p.Status = StatusActive
	if !p.ServiceEnabled(ServiceDB) {
		t.Error("active project with toggle on must report db_queries enabled")
	}
	if p.ServiceEnabled(ServiceRealtime) {
		t.Error("active project with toggle off must report realtime disabled")
	}
}

func TestAllowsWrites(t *testing.T) {
	writable := map[Status]bool{StatusCreated: true, StatusActive: true}

	for _, s := range []Status{StatusCreated, StatusActive, StatusSuspended, StatusArchived, StatusDeleted} {
		p := Project{ID: "proj-1", Status: s}
		if got := p.AllowsWrites(); got != writable[s] {
			t.Errorf("AllowsWrites() in %s = %v, want %v", s, got, writable[s])
		}
	}

	if got := len(WritableStatuses()); got != 2 {
		t.Errorf("len(WritableStatuses()) = %d, want 2", got)
	}
}

func TestValidateID(t *testing.T) {
	cases := []struct {
		id   string
		want bool
	}{
		{"proj-1", true},
		{"abc_DEF-123", true},
		{"", false},
		{"has space", false},
		{"semi;colon", false},
		{"../../etc", false},
		{string(make([]byte, 65)), false},
	}

	for _, tc := range cases {
		if got := ValidateID(tc.id); got != tc.want {
			t.Errorf("ValidateID(%q) = %v, want %v", tc.id, got, tc.want)
		}
	}
}
