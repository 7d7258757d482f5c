package domain

import "time"

// WhisperSession routes an in-game reply back to the actor who last
// whispered under a given GM display name. The target name is a
// case-insensitive key; the most recent writer wins.
type WhisperSession struct {
	TargetName string
	ActorID    string
	GMName     string
	UpdatedAt  time.Time
}
