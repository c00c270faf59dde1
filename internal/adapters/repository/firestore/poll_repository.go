package firestore

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	gcfirestore "cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"github.com/vncsmyrnk/polling-app/internal/core/domain"
	"github.com/vncsmyrnk/polling-app/internal/core/ports"
)

type pollDoc struct {
	Title         string     `firestore:"title"`
	Description   string     `firestore:"description"`
	CreatedBy     string     `firestore:"createdBy"`
	CreatedByName string     `firestore:"createdByName"`
	CreatedAt     time.Time  `firestore:"createdAt"`
	ExpiresAt     *time.Time `firestore:"expiresAt"`
}

type optionDoc struct {
	PollID   string `firestore:"pollId"`
	Text     string `firestore:"text"`
	Votes    int64  `firestore:"votes"`
	Position int    `firestore:"position"`
}

type pollRepository struct {
	client *gcfirestore.Client
	now    func() time.Time
}

func NewPollRepository(client *gcfirestore.Client) ports.PollRepository {
	return &pollRepository{client: client, now: time.Now}
}

func (r *pollRepository) polls() *gcfirestore.CollectionRef {
	return r.client.Collection(pollsCollection)
}

func (r *pollRepository) options(pollID uuid.UUID) *gcfirestore.CollectionRef {
	return r.polls().Doc(pollID.String()).Collection(optionsCollection)
}

func (r *pollRepository) ListPolls(ctx context.Context) []*domain.Poll {
	docs, err := r.polls().OrderBy("createdAt", gcfirestore.Desc).Documents(ctx).GetAll()
	if err != nil {
		slog.Error("failed to list polls", "error", err)
		return []*domain.Poll{}
	}

	polls, err := decodePolls(docs)
	if err != nil {
		slog.Error("failed to list polls", "error", err)
		return []*domain.Poll{}
	}

	optionDocs, err := r.client.CollectionGroup(optionsCollection).Documents(ctx).GetAll()
	if err != nil {
		slog.Error("failed to list poll options", "error", err)
		return []*domain.Poll{}
	}
	options, err := decodeOptions(optionDocs)
	if err != nil {
		slog.Error("failed to list poll options", "error", err)
		return []*domain.Poll{}
	}

	return domain.Assemble(polls, options, r.now())
}

func (r *pollRepository) GetPoll(ctx context.Context, id uuid.UUID) (*domain.Poll, error) {
	doc, err := r.polls().Doc(id.String()).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrPollNotFound
		}
		return nil, domain.StoreError("get poll", err)
	}

	polls, err := decodePolls([]*gcfirestore.DocumentSnapshot{doc})
	if err != nil {
		return nil, domain.StoreError("get poll", err)
	}
	if err := r.attachOptions(ctx, polls); err != nil {
		return nil, domain.StoreError("get poll", err)
	}
	return polls[0], nil
}

func (r *pollRepository) ListPollsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Poll, error) {
	docs, err := r.polls().Where("createdBy", "==", ownerID.String()).Documents(ctx).GetAll()
	if err != nil {
		return nil, domain.StoreError("list polls by owner", err)
	}

	polls, err := decodePolls(docs)
	if err != nil {
		return nil, domain.StoreError("list polls by owner", err)
	}
	// Sorted here to avoid a composite index on (createdBy, createdAt).
	sort.SliceStable(polls, func(i, j int) bool {
		return polls[i].CreatedAt.After(polls[j].CreatedAt)
	})

	if err := r.attachOptions(ctx, polls); err != nil {
		return nil, domain.StoreError("list polls by owner", err)
	}
	return polls, nil
}

func (r *pollRepository) CreatePoll(ctx context.Context, p domain.NewPoll) (*domain.Poll, error) {
	poll := &domain.Poll{
		ID:          uuid.New(),
		Title:       p.Title,
		Description: p.Description,
		CreatedBy:   p.CreatedBy,
		CreatedAt:   r.now().UTC().Truncate(time.Microsecond),
		ExpiresAt:   p.ExpiresAt,
		Options:     []domain.PollOption{},
	}

	_, err := r.polls().Doc(poll.ID.String()).Create(ctx, pollDoc{
		Title:         poll.Title,
		Description:   poll.Description,
		CreatedBy:     poll.CreatedBy.ID.String(),
		CreatedByName: poll.CreatedBy.DisplayName,
		CreatedAt:     poll.CreatedAt,
		ExpiresAt:     poll.ExpiresAt,
	})
	if err != nil {
		return nil, domain.StoreError("create poll", fmt.Errorf("failed to insert poll: %w", err))
	}

	poll.Tally(r.now())
	return poll, nil
}

func (r *pollRepository) CreateOptions(ctx context.Context, pollID uuid.UUID, texts []string) ([]domain.PollOption, error) {
	options := make([]domain.PollOption, 0, len(texts))
	for _, text := range texts {
		options = append(options, domain.PollOption{ID: uuid.New(), PollID: pollID, Text: text})
	}

	pollRef := r.polls().Doc(pollID.String())
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *gcfirestore.Transaction) error {
		if _, err := tx.Get(pollRef); err != nil {
			return fmt.Errorf("failed to read poll %s: %w", pollID, err)
		}
		for i, opt := range options {
			ref := pollRef.Collection(optionsCollection).Doc(opt.ID.String())
			if err := tx.Create(ref, optionDoc{PollID: pollID.String(), Text: opt.Text, Position: i}); err != nil {
				return fmt.Errorf("failed to insert option: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, domain.StoreError("create poll options", err)
	}
	return options, nil
}

func (r *pollRepository) GetPollExpiry(ctx context.Context, pollID uuid.UUID) (*time.Time, error) {
	doc, err := r.polls().Doc(pollID.String()).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, domain.ErrPollNotFound
		}
		return nil, domain.StoreError("get poll expiry", err)
	}

	var p pollDoc
	if err := doc.DataTo(&p); err != nil {
		return nil, domain.StoreError("get poll expiry", err)
	}
	return p.ExpiresAt, nil
}

// IncrementVote applies a server-side increment to the option document. The
// document path includes the poll id, so an option of another poll is a
// missing document.
func (r *pollRepository) IncrementVote(ctx context.Context, pollID, optionID uuid.UUID) error {
	_, err := r.options(pollID).Doc(optionID.String()).Update(ctx, []gcfirestore.Update{
		{Path: "votes", Value: gcfirestore.Increment(1)},
	})
	if err != nil {
		if isNotFound(err) {
			return domain.ErrOptionNotFound
		}
		return domain.StoreError("record vote", err)
	}
	return nil
}

func (r *pollRepository) DeletePoll(ctx context.Context, pollID uuid.UUID) error {
	pollRef := r.polls().Doc(pollID.String())
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *gcfirestore.Transaction) error {
		optionDocs, err := tx.Documents(pollRef.Collection(optionsCollection)).GetAll()
		if err != nil {
			return fmt.Errorf("failed to read options: %w", err)
		}
		for _, doc := range optionDocs {
			if err := tx.Delete(doc.Ref); err != nil {
				return err
			}
		}
		return tx.Delete(pollRef)
	})
	if err != nil {
		return domain.StoreError("delete poll", err)
	}
	return nil
}

func (r *pollRepository) GetPollOwner(ctx context.Context, pollID uuid.UUID) (*domain.Identity, error) {
	doc, err := r.polls().Doc(pollID.String()).Get(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, domain.StoreError("get poll owner", err)
	}

	var p pollDoc
	if err := doc.DataTo(&p); err != nil {
		return nil, domain.StoreError("get poll owner", err)
	}
	ownerID, err := uuid.Parse(p.CreatedBy)
	if err != nil {
		return nil, domain.StoreError("get poll owner", fmt.Errorf("malformed owner id %q: %w", p.CreatedBy, err))
	}
	return &domain.Identity{ID: ownerID, DisplayName: p.CreatedByName}, nil
}

func (r *pollRepository) ListOrphanPolls(ctx context.Context, createdBefore time.Time) ([]uuid.UUID, error) {
	docs, err := r.polls().Where("createdAt", "<", createdBefore).OrderBy("createdAt", gcfirestore.Asc).Documents(ctx).GetAll()
	if err != nil {
		return nil, domain.StoreError("list orphan polls", err)
	}

	var ids []uuid.UUID
	for _, doc := range docs {
		first, err := doc.Ref.Collection(optionsCollection).Limit(1).Documents(ctx).GetAll()
		if err != nil {
			return nil, domain.StoreError("list orphan polls", err)
		}
		if len(first) > 0 {
			continue
		}
		id, err := uuid.Parse(doc.Ref.ID)
		if err != nil {
			slog.Warn("skipping poll with malformed id", "id", doc.Ref.ID)
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *pollRepository) attachOptions(ctx context.Context, polls []*domain.Poll) error {
	var options []domain.PollOption
	for _, p := range polls {
		docs, err := r.options(p.ID).Documents(ctx).GetAll()
		if err != nil {
			return fmt.Errorf("failed to get poll options: %w", err)
		}
		opts, err := decodeOptions(docs)
		if err != nil {
			return err
		}
		options = append(options, opts...)
	}
	domain.Assemble(polls, options, r.now())
	return nil
}

func decodePolls(docs []*gcfirestore.DocumentSnapshot) ([]*domain.Poll, error) {
	polls := make([]*domain.Poll, 0, len(docs))
	for _, doc := range docs {
		var d pollDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to decode poll %s: %w", doc.Ref.ID, err)
		}
		id, err := uuid.Parse(doc.Ref.ID)
		if err != nil {
			return nil, fmt.Errorf("malformed poll id %q: %w", doc.Ref.ID, err)
		}
		ownerID, err := uuid.Parse(d.CreatedBy)
		if err != nil {
			return nil, fmt.Errorf("malformed owner id %q: %w", d.CreatedBy, err)
		}
		polls = append(polls, &domain.Poll{
			ID:          id,
			Title:       d.Title,
			Description: d.Description,
			CreatedBy:   domain.Identity{ID: ownerID, DisplayName: d.CreatedByName},
			CreatedAt:   d.CreatedAt,
			ExpiresAt:   d.ExpiresAt,
		})
	}
	return polls, nil
}

// decodeOptions returns options sorted by poll and creation position.
func decodeOptions(docs []*gcfirestore.DocumentSnapshot) ([]domain.PollOption, error) {
	type positioned struct {
		opt domain.PollOption
		pos int
	}

	decoded := make([]positioned, 0, len(docs))
	for _, doc := range docs {
		var d optionDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, fmt.Errorf("failed to decode option %s: %w", doc.Ref.ID, err)
		}
		id, err := uuid.Parse(doc.Ref.ID)
		if err != nil {
			return nil, fmt.Errorf("malformed option id %q: %w", doc.Ref.ID, err)
		}
		pollID, err := uuid.Parse(d.PollID)
		if err != nil {
			return nil, fmt.Errorf("malformed poll id %q: %w", d.PollID, err)
		}
		decoded = append(decoded, positioned{
			opt: domain.PollOption{ID: id, PollID: pollID, Text: d.Text, Votes: d.Votes},
			pos: d.Position,
		})
	}

	sort.SliceStable(decoded, func(i, j int) bool {
		if decoded[i].opt.PollID != decoded[j].opt.PollID {
			return decoded[i].opt.PollID.String() < decoded[j].opt.PollID.String()
		}
		return decoded[i].pos < decoded[j].pos
	})

	options := make([]domain.PollOption, 0, len(decoded))
	for _, d := range decoded {
		options = append(options, d.opt)
	}
	return options, nil
}
