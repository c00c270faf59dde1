package domain

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinTitleLength = 5
	MinOptions     = 2

	AnonymousName = "Anonymous"
)

type Identity struct {
	ID          uuid.UUID `json:"id"`
	DisplayName string    `json:"displayName"`
}

type Poll struct {
	ID          uuid.UUID    `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Options     []PollOption `json:"options"`
	TotalVotes  int64        `json:"totalVotes"`
	CreatedBy   Identity     `json:"createdBy"`
	CreatedAt   time.Time    `json:"createdAt"`
	ExpiresAt   *time.Time   `json:"expiresAt,omitempty"`
	IsActive    bool         `json:"isActive"`
}

type PollOption struct {
	ID     uuid.UUID `json:"id"`
	PollID uuid.UUID `json:"pollId"`
	Text   string    `json:"text"`
	Votes  int64     `json:"votes"`
}

// NewPoll holds the fields a store needs to create a poll row.
type NewPoll struct {
	Title       string
	Description string
	CreatedBy   Identity
	ExpiresAt   *time.Time
}

// ClosedAt reports whether a poll with the given expiry no longer accepts
// votes at now. A poll expiring exactly at now is still active.
func ClosedAt(expiresAt *time.Time, now time.Time) bool {
	return expiresAt != nil && expiresAt.Before(now)
}

// Tally recomputes TotalVotes from the options and refreshes IsActive.
func (p *Poll) Tally(now time.Time) {
	var total int64
	for _, o := range p.Options {
		total += o.Votes
	}
	p.TotalVotes = total
	p.IsActive = !ClosedAt(p.ExpiresAt, now)
	if p.CreatedBy.DisplayName == "" {
		p.CreatedBy.DisplayName = AnonymousName
	}
}

// Assemble groups options by poll id and attaches them to polls in their
// existing order, recomputing totals. Polls without options get an empty,
// non-nil slice.
func Assemble(polls []*Poll, options []PollOption, now time.Time) []*Poll {
	byPoll := make(map[uuid.UUID][]PollOption, len(polls))
	for _, o := range options {
		byPoll[o.PollID] = append(byPoll[o.PollID], o)
	}
	for _, p := range polls {
		p.Options = byPoll[p.ID]
		if p.Options == nil {
			p.Options = []PollOption{}
		}
		p.Tally(now)
	}
	return polls
}
