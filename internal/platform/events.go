package platform

// Interaction is an inbound slash-command invocation.
type Interaction struct {
	ActorID string
	GuildID string
	Command string
	Options map[string]string
	RoleIDs []string
}

// ThreadMessage is an inbound message posted inside a thread.
type ThreadMessage struct {
	ThreadID    string
	ActorID     string
	DisplayName string
	Content     string
}
