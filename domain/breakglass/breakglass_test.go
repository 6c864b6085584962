package breakglass

import (
	"strings"
	"testing"
	"time"
)

var testNow = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

func TestValidateFormat(t *testing.T) {
	raw, _, err := Generate("admin-1", "incident", "cli", "", testNow, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	prefix, ok := ValidateFormat(raw)
	if !ok {
		t.Fatal("generated token must pass format validation")
	}
	if prefix != raw[:PrefixLen] {
		t.Errorf("prefix = %q, want %q", prefix, raw[:PrefixLen])
	}

	bad := []string{
		"",
		"bg_",
		"bg_short",
		"ak_" + strings.Repeat("a", 64),         // wrong scheme
		"Bearer " + strings.Repeat("a", 64),     // regular bearer token
		"bg_" + strings.Repeat("a", 63),         // too short
		"bg_" + strings.Repeat("a", 65),         // too long
		"bg_" + strings.Repeat("Z", 64),         // not hex
		strings.Repeat("a", 67),                 // no prefix
	}
	for _, token := range bad {
		if _, ok := ValidateFormat(token); ok {
			t.Errorf("ValidateFormat(%q) = true, want false", token)
		}
	}
}

func TestValidate_Expired(t *testing.T) {
	_, s, err := Generate("admin-1", "incident", "cli", "", testNow, 30*time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	// Exactly at expiry: invalid, no grace period.
	v := Validate(s, s.ExpiresAt)
	if v.Valid {
		t.Error("session at expiry instant must be invalid")
	}
	if v.Reason != ReasonExpired {
		t.Errorf("Reason = %q, want %q", v.Reason, ReasonExpired)
	}

	v = Validate(s, s.ExpiresAt.Add(time.Second))
	if v.Valid || v.Reason != ReasonExpired {
		t.Errorf("expired session: got %+v", v)
	}
}

func TestValidate_ValidWithRemaining(t *testing.T) {
	_, s, err := Generate("admin-1", "incident", "cli", "admin-2", testNow, 30*time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	v := Validate(s, testNow)
	if !v.Valid {
		t.Fatalf("expected valid, got %+v", v)
	}
	if v.AdminID != "admin-1" {
		t.Errorf("AdminID = %q", v.AdminID)
	}
	if v.ExpiresInSeconds != 30*60 {
		t.Errorf("ExpiresInSeconds = %d, want 1800", v.ExpiresInSeconds)
	}
	if v.Warning != "" {
		t.Errorf("unexpected warning %q", v.Warning)
	}
}

func TestValidate_ExpiringSoonWarning(t *testing.T) {
	_, s, err := Generate("admin-1", "incident", "cli", "", testNow, 30*time.Minute)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	v := Validate(s, s.ExpiresAt.Add(-4*time.Minute))
	if !v.Valid {
		t.Fatal("session inside warning window is still valid")
	}
	if v.Warning != WarningExpiringSoon {
		t.Errorf("Warning = %q, want %q", v.Warning, WarningExpiringSoon)
	}
}

func TestMatchToken(t *testing.T) {
	raw, s, err := Generate("admin-1", "incident", "cli", "", testNow, time.Hour)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if !MatchToken(s, raw) {
		t.Error("raw token must match its own hash")
	}
	if MatchToken(s, "bg_"+strings.Repeat("0", 64)) {
		t.Error("different token must not match")
	}
}

func TestGenerate_RejectsNonPositiveTTL(t *testing.T) {
	if _, _, err := Generate("admin-1", "incident", "cli", "", testNow, 0); err == nil {
		t.Error("ttl=0 must be rejected")
	}
}
