package domain

import "time"

// TicketRoom maps a ticket to the external channel mirroring it. Created
// exactly once per ticket; archived_at is set once on close; rows are
// never deleted by the relay.
type TicketRoom struct {
	TicketID   uint32
	ChannelID  string
	GuildID    string
	CreatedAt  time.Time
	ArchivedAt *time.Time
}

// Archived reports whether the room has reached its terminal state.
func (r TicketRoom) Archived() bool {
	return r.ArchivedAt != nil
}
