// Package access issues, stores and validates the bearer tokens that gate
// viewer access to pitches.
package access

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/basit/pitchvault-backend/models"
)

// Reason is the closed set of denial codes.
type Reason string

const (
	ReasonNotFound          Reason = "NOT_FOUND"
	ReasonRevoked           Reason = "REVOKED"
	ReasonExpired           Reason = "EXPIRED"
	ReasonUsageLimitReached Reason = "USAGE_LIMIT_REACHED"
	ReasonPitchUnavailable  Reason = "PITCH_UNAVAILABLE"
)

// Message is the human-readable text shown to a denied viewer.
func (r Reason) Message() string {
	switch r {
	case ReasonNotFound:
		return "Token not found"
	case ReasonRevoked:
		return "Token has been revoked"
	case ReasonExpired:
		return "Token has expired"
	case ReasonUsageLimitReached:
		return "Token usage limit reached"
	case ReasonPitchUnavailable:
		return "This pitch is not available"
	default:
		return "Access denied"
	}
}

// Decision is the outcome of Validate. Token and PitchID are set only when
// Granted is true.
type Decision struct {
	Granted bool
	Reason  Reason
	Token   *models.AccessToken
	PitchID uuid.UUID
}

func denied(r Reason) Decision {
	return Decision{Reason: r}
}

// Lookup is the read side of the token store. Both methods return nil, nil
// when the record does not exist.
type Lookup interface {
	TokenByValue(ctx context.Context, value string) (*models.AccessToken, error)
	PitchByID(ctx context.Context, id uuid.UUID) (*models.Pitch, error)
}

// Validator decides whether a token string grants access. It never writes.
type Validator struct {
	lookup Lookup
	now    func() time.Time
}

func NewValidator(lookup Lookup) *Validator {
	return &Validator{lookup: lookup, now: time.Now}
}

// WithClock replaces the time source used for expiry checks.
func (v *Validator) WithClock(now func() time.Time) *Validator {
	v.now = now
	return v
}

// Validate runs the checks in a fixed order and stops at the first failure:
// existence, revocation, expiry, usage limit, pitch availability. Token-level
// failures are always reported before anything about the pitch.
// A non-nil error means the store failed, not that access was denied.
func (v *Validator) Validate(ctx context.Context, token string) (Decision, error) {
	if token == "" {
		return denied(ReasonNotFound), nil
	}

	record, err := v.lookup.TokenByValue(ctx, token)
	if err != nil {
		return Decision{}, err
	}
	if record == nil {
		return denied(ReasonNotFound), nil
	}

	if record.IsRevoked {
		return denied(ReasonRevoked), nil
	}

	if record.ExpiresAt != nil && *record.ExpiresAt < v.now().Unix() {
		return denied(ReasonExpired), nil
	}

	if record.MaxUses != nil && record.UseCount >= *record.MaxUses {
		return denied(ReasonUsageLimitReached), nil
	}

	pitch, err := v.lookup.PitchByID(ctx, record.PitchID)
	if err != nil {
		return Decision{}, err
	}
	if pitch == nil || !pitch.IsPublished {
		return denied(ReasonPitchUnavailable), nil
	}

	return Decision{Granted: true, Token: record, PitchID: record.PitchID}, nil
}
