package domain

import "time"

// InboxActionKind enumerates platform-originated actions.
type InboxActionKind string

const (
	ActionAuth         InboxActionKind = "auth"
	ActionCommand      InboxActionKind = "command"
	ActionWhisper      InboxActionKind = "whisper"
	ActionTicketAssign InboxActionKind = "ticket_assign"
)

// InboxState tracks the single pending -> processing -> done progression
// of an inbox action. The processing state is a crash-visible marker for
// actions handed to the command engine.
type InboxState string

const (
	InboxPending    InboxState = "pending"
	InboxProcessing InboxState = "processing"
	InboxDone       InboxState = "done"
)

// Terminal statuses written to an inbox action's result.
const (
	StatusOK            = "ok"
	StatusError         = "error"
	StatusInvalid       = "invalid"
	StatusForbidden     = "forbidden"
	StatusNotLinked     = "not_linked"
	StatusNotVerified   = "not_verified"
	StatusRateLimited   = "rate_limited"
	StatusDisabled      = "disabled"
	StatusPlayerOffline = "player_offline"
	StatusQueued        = "queued"
)

// InboxAction is a queued platform-to-domain action.
type InboxAction struct {
	ID                  int64
	ActorID             string
	Action              InboxActionKind
	Payload             string
	State               InboxState
	Status              string
	Result              string
	CreatedAt           time.Time
	ProcessingStartedAt *time.Time
	ProcessedAt         *time.Time
}
