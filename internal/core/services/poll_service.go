package services

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/polling-app/internal/core/domain"
	"github.com/vncsmyrnk/polling-app/internal/core/ports"
)

const publishTimeout = 2 * time.Second

type pollService struct {
	repo     ports.PollRepository
	cache    ports.PollCache
	events   ports.EventPublisher
	recorder ports.OperationRecorder
	now      func() time.Time
}

// NewPollService wires the poll rules to a repository. cache, events and
// recorder are optional and may be nil.
func NewPollService(repo ports.PollRepository, cache ports.PollCache, events ports.EventPublisher, recorder ports.OperationRecorder) ports.PollService {
	return &pollService{
		repo:     repo,
		cache:    cache,
		events:   events,
		recorder: recorder,
		now:      time.Now,
	}
}

func (s *pollService) Create(ctx context.Context, requester *domain.Identity, input ports.CreatePollInput) (poll *domain.Poll, err error) {
	defer s.observe("create", time.Now(), &err)

	if requester == nil {
		return nil, domain.ErrLoginRequired
	}

	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, domain.ErrTitleRequired
	}
	if utf8.RuneCountInString(title) < domain.MinTitleLength {
		return nil, domain.ErrTitleTooShort
	}

	options := make([]string, 0, len(input.Options))
	for _, text := range input.Options {
		if text = strings.TrimSpace(text); text != "" {
			options = append(options, text)
		}
	}
	if len(options) < domain.MinOptions {
		return nil, domain.ErrNotEnoughOptions
	}

	if input.ExpiresAt != nil && !input.ExpiresAt.After(s.now()) {
		return nil, domain.ErrExpiryInPast
	}

	poll, err = s.repo.CreatePoll(ctx, domain.NewPoll{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		CreatedBy:   *requester,
		ExpiresAt:   input.ExpiresAt,
	})
	if err != nil {
		return nil, domain.StoreError("create poll", err)
	}

	created, err := s.repo.CreateOptions(ctx, poll.ID, options)
	if err != nil {
		// The poll row stays behind without options until the orphan sweep
		// removes it.
		slog.Error("poll created without options", "poll_id", poll.ID, "error", err)
		return nil, domain.StoreError("create poll options", err)
	}

	poll.Options = created
	poll.Tally(s.now())

	s.afterWrite(ctx, domain.PollEvent{
		Type:    domain.EventPollCreated,
		PollID:  poll.ID,
		ActorID: requester.ID,
	})

	slog.Info("poll created", "poll_id", poll.ID, "created_by", requester.ID, "options", len(created))
	return poll, nil
}

func (s *pollService) ListPolls(ctx context.Context) []*domain.Poll {
	defer s.observe("list", time.Now(), nil)

	now := s.now()
	fill := false
	var generation int64
	if s.cache != nil {
		polls, ok, err := s.cache.GetPolls(ctx)
		if err != nil {
			slog.Warn("failed to read poll listing from cache", "error", err)
		} else if ok {
			for _, p := range polls {
				p.Tally(now)
			}
			return polls
		}

		// The generation must be read before the store so a write landing
		// in between makes the fill below a no-op.
		if generation, err = s.cache.Generation(ctx); err != nil {
			slog.Warn("failed to read poll cache generation", "error", err)
		} else {
			fill = true
		}
	}

	polls := s.repo.ListPolls(ctx)
	for _, p := range polls {
		p.Tally(now)
	}

	// An empty listing may be a degraded store read; never cache it.
	if fill && len(polls) > 0 {
		if err := s.cache.SetPolls(ctx, polls, generation); err != nil {
			slog.Warn("failed to cache poll listing", "error", err)
		}
	}

	return polls
}

func (s *pollService) GetPoll(ctx context.Context, id string) (poll *domain.Poll, err error) {
	defer s.observe("get", time.Now(), &err)

	pollID, err := parseID(id, domain.ErrPollIDRequired, domain.ErrInvalidPollID)
	if err != nil {
		return nil, err
	}

	poll, err = s.repo.GetPoll(ctx, pollID)
	if err != nil {
		return nil, domain.StoreError("get poll", err)
	}
	poll.Tally(s.now())

	return poll, nil
}

func (s *pollService) ListMyPolls(ctx context.Context, requester *domain.Identity) (polls []*domain.Poll, err error) {
	defer s.observe("list_mine", time.Now(), &err)

	if requester == nil {
		return nil, domain.ErrLoginRequired
	}

	polls, err = s.repo.ListPollsByOwner(ctx, requester.ID)
	if err != nil {
		return nil, domain.StoreError("list polls by owner", err)
	}

	now := s.now()
	for _, p := range polls {
		p.Tally(now)
	}
	return polls, nil
}

func (s *pollService) Vote(ctx context.Context, requester *domain.Identity, input ports.VoteInput) (err error) {
	defer s.observe("vote", time.Now(), &err)

	if requester == nil {
		return domain.ErrLoginRequired
	}

	pollID, err := parseID(input.PollID, domain.ErrPollIDRequired, domain.ErrInvalidPollID)
	if err != nil {
		return err
	}
	optionID, err := parseID(input.OptionID, domain.ErrOptionIDRequired, domain.ErrInvalidOptionID)
	if err != nil {
		return err
	}

	expiresAt, err := s.repo.GetPollExpiry(ctx, pollID)
	if err != nil {
		return domain.StoreError("get poll expiry", err)
	}
	if domain.ClosedAt(expiresAt, s.now()) {
		return domain.ErrPollHasClosed
	}

	// Votes are not deduplicated per identity: every call adds exactly one.
	if err := s.repo.IncrementVote(ctx, pollID, optionID); err != nil {
		return domain.StoreError("record vote", err)
	}

	s.afterWrite(ctx, domain.PollEvent{
		Type:     domain.EventVoteCast,
		PollID:   pollID,
		OptionID: &optionID,
		ActorID:  requester.ID,
	})

	return nil
}

func (s *pollService) Delete(ctx context.Context, requester *domain.Identity, id string) (err error) {
	defer s.observe("delete", time.Now(), &err)

	if requester == nil {
		return domain.ErrLoginRequired
	}

	pollID, err := parseID(id, domain.ErrPollIDRequired, domain.ErrInvalidPollID)
	if err != nil {
		return err
	}

	owner, err := s.repo.GetPollOwner(ctx, pollID)
	if err != nil {
		return domain.StoreError("get poll owner", err)
	}
	if owner == nil {
		return domain.ErrPollNotFound
	}
	if owner.ID != requester.ID {
		slog.Info("poll delete rejected", "poll_id", pollID, "owner", owner.ID, "requester", requester.ID)
		return domain.ErrNotPollOwner
	}

	if err := s.repo.DeletePoll(ctx, pollID); err != nil {
		return domain.StoreError("delete poll", err)
	}

	s.afterWrite(ctx, domain.PollEvent{
		Type:    domain.EventPollDeleted,
		PollID:  pollID,
		ActorID: requester.ID,
	})

	slog.Info("poll deleted", "poll_id", pollID, "deleted_by", requester.ID)
	return nil
}

// afterWrite drops the cached listing and announces the change. Neither step
// can fail the write that already happened.
func (s *pollService) afterWrite(ctx context.Context, event domain.PollEvent) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx); err != nil {
			slog.Warn("failed to invalidate poll cache", "error", err)
		}
	}

	if s.events != nil {
		event.OccurredAt = s.now()
		if err := s.events.Publish(ctx, event); err != nil {
			slog.Warn("failed to publish poll event", "type", event.Type, "poll_id", event.PollID, "error", err)
		}
	}
}

func (s *pollService) observe(operation string, start time.Time, err *error) {
	if s.recorder == nil {
		return
	}
	var opErr error
	if err != nil {
		opErr = *err
	}
	s.recorder.Observe(operation, opErr, time.Since(start))
}

func parseID(raw string, missing, invalid error) (uuid.UUID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return uuid.Nil, missing
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, invalid
	}
	return id, nil
}
