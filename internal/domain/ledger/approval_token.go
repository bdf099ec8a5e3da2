package ledger

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/finledger/backend/internal/domain/shared"
)

// Default token lifetimes. Both are configurable per call site; batches are
// time-sensitive while individual requests tolerate longer latency.
const (
	DefaultTransactionTokenTTL = 7 * 24 * time.Hour
	DefaultBatchTokenTTL       = 48 * time.Hour
)

// ApprovalToken is a single-use, time-boxed capability embedded by
// composition in any entity that can be routed to an external approver.
// A zero Value means no token is attached.
type ApprovalToken struct {
	Value     string     `json:"value,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// MintApprovalToken generates a cryptographically random opaque token that
// expires after the given ttl.
func MintApprovalToken(ttl time.Duration) ApprovalToken {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic("ledger: reading random bytes: " + err.Error())
	}
	expiresAt := time.Now().Add(ttl)
	return ApprovalToken{
		Value:     base64.RawURLEncoding.EncodeToString(buf),
		ExpiresAt: &expiresAt,
	}
}

// IsPresent returns true if a token is attached
func (t ApprovalToken) IsPresent() bool {
	return t.Value != ""
}

// IsExpired returns true if the token has an expiry in the past
func (t ApprovalToken) IsExpired(now time.Time) bool {
	return t.ExpiresAt != nil && t.ExpiresAt.Before(now)
}

// Cleared returns an empty token, used when consuming a token atomically
// with the status change it authorized.
func (t ApprovalToken) Cleared() ApprovalToken {
	return ApprovalToken{}
}

// TokenHolder is implemented by any entity carrying an approval token.
// It lets token resolution work generically over transactions and batches.
type TokenHolder interface {
	Token() ApprovalToken
	// AwaitingTokenAction reports whether the entity is still in the
	// status the token was issued for.
	AwaitingTokenAction() bool
}

// ValidateToken checks a resolved holder's token against the clock and the
// holder's status. The expiry check deliberately runs before the status
// check so an expired token never reports INVALID_STATE.
func ValidateToken(h TokenHolder, now time.Time) error {
	token := h.Token()
	if !token.IsPresent() {
		return shared.ErrTokenNotFound
	}
	if token.IsExpired(now) {
		return shared.ErrTokenExpired
	}
	if !h.AwaitingTokenAction() {
		return shared.ErrInvalidState
	}
	return nil
}
