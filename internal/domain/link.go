package domain

import "time"

// AccountLink binds a game account to an external platform actor. A link
// starts unverified with a hashed single-use secret; it becomes verified
// once an actor presents a secret matching the stored hash.
type AccountLink struct {
	AccountID       uint32
	GMName          string
	ActorID         *string
	Verified        bool
	SecretHash      *string
	SecretExpiresAt *time.Time
	UpdatedAt       time.Time
}

// HasPendingSecret reports whether a secret is set and unexpired.
func (l AccountLink) HasPendingSecret(now time.Time) bool {
	return l.SecretHash != nil && l.SecretExpiresAt != nil && now.Before(*l.SecretExpiresAt)
}
