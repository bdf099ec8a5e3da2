package ledger

import (
	"github.com/google/uuid"
)

// ExternalActorEmail is the sentinel identity recorded when a magic-link
// actor acts without providing an email address.
const ExternalActorEmail = "external-approver"

// Actor identifies who performs an operation. Authenticated users carry a
// user ID; magic-link actors are identified by email only.
type Actor struct {
	ID    *uuid.UUID
	Email string
}

// UserActor creates an actor for an authenticated user
func UserActor(id uuid.UUID, email string) Actor {
	return Actor{ID: &id, Email: email}
}

// ExternalActor creates an actor for an unauthenticated magic-link caller
func ExternalActor(email string) Actor {
	if email == "" {
		email = ExternalActorEmail
	}
	return Actor{Email: email}
}

// IsExternal returns true if the actor has no authenticated user identity
func (a Actor) IsExternal() bool {
	return a.ID == nil
}
