package state

import (
	"time"

	"github.com/google/uuid"
)

// Transition sources.
const (
	SourceClient   = "client"
	SourceRemote   = "remote"
	SourceVoice    = "voice"
	SourceSafety   = "system/safety"
	SourceShutdown = "system/shutdown"
)

// Transition records one mode change request.
type Transition struct {
	ID     uuid.UUID `json:"id"`
	Seq    uint64    `json:"seq"`
	From   Mode      `json:"from"`
	To     Mode      `json:"to"`
	Source string    `json:"source"`
	Reason string    `json:"reason,omitempty"`
	At     time.Time `json:"at"`
}

// Changed reports whether the mode actually changed.
func (t Transition) Changed() bool {
	return t.From != t.To
}

// Forced reports whether the transition came from the system rather than an operator.
func (t Transition) Forced() bool {
	return t.Source == SourceSafety || t.Source == SourceShutdown
}
