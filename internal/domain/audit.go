package domain

import "time"

// AuditRecord is one write-only row describing the outcome of an inbox
// action. Never read by the relay itself.
type AuditRecord struct {
	ID        int64
	ActorID   string
	AccountID uint32
	Action    string
	Category  string
	Status    string
	Detail    string
	Payload   string
	CreatedAt time.Time
}
