package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

var projectIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]{1,64}$`)

func init() {
	validate.RegisterValidation("project_id", func(fl validator.FieldLevel) bool {
		return projectIDRegex.MatchString(fl.Field().String())
	})
}

// QuotaCheckRequest is the body of POST /v1/quota/check.
type QuotaCheckRequest struct {
	ProjectID string `json:"project_id" validate:"required,project_id"`
	Service   string `json:"service" validate:"required,oneof=db_queries auth storage realtime graphql"`
	Amount    int64  `json:"amount" validate:"gte=0"`
}

// UsageRequest is the body of POST /v1/usage.
type UsageRequest struct {
	ProjectID      string `json:"project_id" validate:"required,project_id"`
	Service        string `json:"service" validate:"required,oneof=db_queries auth storage realtime graphql"`
	MetricType     string `json:"metric_type" validate:"required,oneof=requests storage_bytes egress_bytes connections executions"`
	Amount         int64  `json:"amount" validate:"gte=0"`
	IdempotencyKey string `json:"idempotency_key,omitempty" validate:"omitempty,max=128"`

	// Async queues the record instead of writing it inline; the response
	// acknowledges acceptance, not persistence.
	Async bool `json:"async,omitempty"`
}

// UnlockRequest is the body of the break-glass unlock and regenerate-keys
// endpoints.
type UnlockRequest struct {
	ProjectID string `json:"project_id" validate:"required,project_id"`
}

// OverrideRequest is the body of POST /v1/breakglass/override. Exactly one
// of new_hard_cap or increase_pct selects the new enforcement boundary.
type OverrideRequest struct {
	ProjectID   string  `json:"project_id" validate:"required,project_id"`
	NewHardCap  int64   `json:"new_hard_cap,omitempty" validate:"omitempty,gt=0"`
	IncreasePct float64 `json:"increase_pct,omitempty" validate:"omitempty,gt=0"`
}

// decode parses and validates a JSON request body into v.
func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation error: %w", err)
	}
	return nil
}
