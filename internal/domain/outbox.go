package domain

import "time"

// OutboxEventType enumerates domain events relayed to the chat platform.
type OutboxEventType string

const (
	EventTicketCreate  OutboxEventType = "ticket_create"
	EventTicketUpdate  OutboxEventType = "ticket_update"
	EventTicketClose   OutboxEventType = "ticket_close"
	EventTicketStatus  OutboxEventType = "ticket_status"
	EventTicketResolve OutboxEventType = "ticket_resolve"
	EventGMWhisper     OutboxEventType = "gm_whisper"
	EventPlayerWhisper OutboxEventType = "player_whisper"
	EventCommandResult OutboxEventType = "command_result"
)

// IsTicketEvent reports whether the event carries a ticket envelope.
func (t OutboxEventType) IsTicketEvent() bool {
	switch t {
	case EventTicketCreate, EventTicketUpdate, EventTicketClose, EventTicketStatus, EventTicketResolve:
		return true
	}
	return false
}

// IsWhisperEvent reports whether the event carries a whisper envelope.
func (t OutboxEventType) IsWhisperEvent() bool {
	return t == EventGMWhisper || t == EventPlayerWhisper
}

// OutboxEvent is a queued domain-to-platform event. Rows are immutable
// after creation except for the dispatched flag.
type OutboxEvent struct {
	ID           int64
	EventType    OutboxEventType
	Payload      string
	Dispatched   bool
	CreatedAt    time.Time
	DispatchedAt *time.Time
}
