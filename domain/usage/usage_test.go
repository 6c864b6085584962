package usage

import (
	"testing"
	"time"

	"github.com/artpar/coreplane/domain/project"
)

func validRecord() Record {
	return Record{
		ID:         "rec-1",
		ProjectID:  "proj-1",
		Service:    project.ServiceDB,
		MetricType: MetricRequests,
		Amount:     10,
		RecordedAt: time.Now().UTC(),
	}
}

func TestValidate_OK(t *testing.T) {
	if reason := Validate(validRecord()); reason != "" {
		t.Errorf("expected valid, got reason %q", reason)
	}
}

func TestValidate_Reasons(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Record)
		want   string
	}{
		{"bad project id", func(r *Record) { r.ProjectID = "no spaces" }, ReasonInvalidProjectID},
		{"empty project id", func(r *Record) { r.ProjectID = "" }, ReasonInvalidProjectID},
		{"unknown service", func(r *Record) { r.Service = "lambda" }, ReasonUnknownService},
		{"unknown metric", func(r *Record) { r.MetricType = "cpu_cycles" }, ReasonUnknownMetric},
		{"negative amount", func(r *Record) { r.Amount = -1 }, ReasonNegativeAmount},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := validRecord()
			tc.mutate(&r)
			if got := Validate(r); got != tc.want {
				t.Errorf("Validate = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestValidate_ZeroAmountAllowed(t *testing.T) {
	r := validRecord()
	r.Amount = 0
	if reason := Validate(r); reason != "" {
		t.Errorf("amount=0 must be valid, got %q", reason)
	}
}

func TestValidMetric_ClosedEnum(t *testing.T) {
	for _, m := range []MetricType{MetricRequests, MetricStorageBytes, MetricEgressBytes, MetricConnections, MetricExecutions} {
		if !ValidMetric(m) {
			t.Errorf("expected %s valid", m)
		}
	}
	if ValidMetric("") || ValidMetric("REQUESTS") {
		t.Error("unknown metric types must be rejected")
	}
}
