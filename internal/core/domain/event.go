package domain

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventPollCreated EventType = "poll.created"
	EventVoteCast    EventType = "vote.cast"
	EventPollDeleted EventType = "poll.deleted"
)

type PollEvent struct {
	Type       EventType  `json:"type"`
	PollID     uuid.UUID  `json:"pollId"`
	OptionID   *uuid.UUID `json:"optionId,omitempty"`
	ActorID    uuid.UUID  `json:"actorId"`
	OccurredAt time.Time  `json:"occurredAt"`
}
