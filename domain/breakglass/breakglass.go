// Package breakglass provides break-glass session value types and pure
// validation functions. This package has NO dependencies on I/O.
package breakglass

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// TokenPrefix marks break-glass tokens. The prefix keeps the scheme
// distinguishable from regular bearer tokens; a normal auth token can never
// pass format validation.
const TokenPrefix = "bg_"

// PrefixLen is the number of leading token characters stored in clear for
// store lookup.
const PrefixLen = 12

// ExpiryWarningWindow is how close to expiry a session may be before
// validation flags it as expiring soon.
const ExpiryWarningWindow = 5 * time.Minute

// Session represents a short-lived human-override session (value type).
// ExpiresAt is never extended after creation.
type Session struct {
	ID           string
	AdminID      string
	TokenHash    []byte // bcrypt hash of the full token
	TokenPrefix  string // first PrefixLen chars for lookup
	Reason       string
	AccessMethod string
	GrantedBy    string // empty when self-elevated
	ExpiresAt    time.Time
	CreatedAt    time.Time
}

// Validation failure reasons, machine-readable. ReasonUnavailable marks a
// failed store lookup so outages stay out of the not_found anomaly channel.
const (
	ReasonExpired       = "expired"
	ReasonNotFound      = "not_found"
	ReasonInvalidFormat = "invalid_format"
	ReasonNoToken       = "no_token"
	ReasonUnavailable   = "store_unavailable"
)

// Warnings carried on valid results.
const WarningExpiringSoon = "expiring_soon"

// Validation represents the outcome of validating a session token
// (value type).
type Validation struct {
	Valid            bool
	Reason           string // populated only if Valid=false
	Warning          string // populated only if Valid=true and near expiry
	AdminID          string
	SessionID        string
	ExpiresInSeconds int64
}

// ValidateFormat structurally checks a raw token before any store lookup.
// Returns the lookup prefix and whether the format is acceptable.
// This is a PURE function.
func ValidateFormat(rawToken string) (prefix string, ok bool) {
	if !strings.HasPrefix(rawToken, TokenPrefix) {
		return "", false
	}
	// bg_ + 64 hex chars
	if len(rawToken) != len(TokenPrefix)+64 {
		return "", false
	}
	for _, c := range rawToken[len(TokenPrefix):] {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return "", false
		}
	}
	return rawToken[:PrefixLen], true
}

// Validate checks a session at the given instant.
// Expiry is absolute: a session past ExpiresAt is invalid with no grace
// period, regardless of when the request was constructed.
// This is a PURE function.
func Validate(s Session, now time.Time) Validation {
	if !now.Before(s.ExpiresAt) {
		return Validation{Valid: false, Reason: ReasonExpired}
	}

	v := Validation{
		Valid:            true,
		AdminID:          s.AdminID,
		SessionID:        s.ID,
		ExpiresInSeconds: int64(s.ExpiresAt.Sub(now) / time.Second),
	}
	if s.ExpiresAt.Sub(now) <= ExpiryWarningWindow {
		v.Warning = WarningExpiringSoon
	}
	return v
}

// MatchToken checks a raw token against a stored hash.
func MatchToken(s Session, rawToken string) bool {
	return bcrypt.CompareHashAndPassword(s.TokenHash, []byte(rawToken)) == nil
}

// Generate creates a new session token. Returns the raw token (to hand to
// the operator once) and the Session fields derived from it.
func Generate(adminID, reason, accessMethod, grantedBy string, now time.Time, ttl time.Duration) (rawToken string, s Session, err error) {
	if ttl <= 0 {
		return "", Session{}, fmt.Errorf("session ttl must be positive")
	}

	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", Session{}, fmt.Errorf("generate token: %w", err)
	}
	rawToken = TokenPrefix + hex.EncodeToString(randomBytes)

	hash, err := bcrypt.GenerateFromPassword([]byte(rawToken), bcrypt.DefaultCost)
	if err != nil {
		return "", Session{}, fmt.Errorf("hash token: %w", err)
	}

	idBytes := make([]byte, 8)
	if _, err := rand.Read(idBytes); err != nil {
		return "", Session{}, fmt.Errorf("generate session id: %w", err)
	}

	s = Session{
		ID:           "bgs_" + hex.EncodeToString(idBytes),
		AdminID:      adminID,
		TokenHash:    hash,
		TokenPrefix:  rawToken[:PrefixLen],
		Reason:       reason,
		AccessMethod: accessMethod,
		GrantedBy:    grantedBy,
		ExpiresAt:    now.Add(ttl),
		CreatedAt:    now,
	}
	return rawToken, s, nil
}
