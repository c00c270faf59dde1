package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/vncsmyrnk/polling-app/internal/core/domain"
	"github.com/vncsmyrnk/polling-app/internal/core/ports"
)

type pollRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewPollRepository(db *sql.DB) ports.PollRepository {
	return &pollRepository{
		db:  db,
		now: time.Now,
	}
}

const pollColumns = `id, title, description, created_by, created_by_name, created_at, expires_at`

func (r *pollRepository) ListPolls(ctx context.Context) []*domain.Poll {
	query := `SELECT ` + pollColumns + ` FROM polls ORDER BY created_at DESC`

	polls, err := r.queryPolls(ctx, query)
	if err != nil {
		slog.Error("failed to list polls", "error", err)
		return []*domain.Poll{}
	}
	return polls
}

func (r *pollRepository) GetPoll(ctx context.Context, id uuid.UUID) (*domain.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE id = $1`

	polls, err := r.queryPolls(ctx, query, id)
	if err != nil {
		return nil, domain.StoreError("get poll", err)
	}
	if len(polls) == 0 {
		return nil, domain.ErrPollNotFound
	}
	return polls[0], nil
}

func (r *pollRepository) ListPollsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE created_by = $1 ORDER BY created_at DESC`

	polls, err := r.queryPolls(ctx, query, ownerID)
	if err != nil {
		return nil, domain.StoreError("list polls by owner", err)
	}
	return polls, nil
}

func (r *pollRepository) CreatePoll(ctx context.Context, p domain.NewPoll) (*domain.Poll, error) {
	query := `
		INSERT INTO polls (title, description, created_by, created_by_name, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`

	poll := &domain.Poll{
		Title:       p.Title,
		Description: p.Description,
		CreatedBy:   p.CreatedBy,
		ExpiresAt:   p.ExpiresAt,
		Options:     []domain.PollOption{},
	}
	err := r.db.QueryRowContext(ctx, query, p.Title, p.Description, p.CreatedBy.ID, p.CreatedBy.DisplayName, p.ExpiresAt).
		Scan(&poll.ID, &poll.CreatedAt)
	if err != nil {
		return nil, domain.StoreError("create poll", fmt.Errorf("failed to insert poll: %w", err))
	}

	poll.Tally(r.now())
	return poll, nil
}

func (r *pollRepository) CreateOptions(ctx context.Context, pollID uuid.UUID, texts []string) ([]domain.PollOption, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.StoreError("create poll options", fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO poll_options (poll_id, text, position)
		VALUES ($1, $2, $3)
		RETURNING id
	`)
	if err != nil {
		return nil, domain.StoreError("create poll options", fmt.Errorf("failed to prepare option statement: %w", err))
	}
	defer stmt.Close()

	options := make([]domain.PollOption, 0, len(texts))
	for i, text := range texts {
		opt := domain.PollOption{PollID: pollID, Text: text}
		if err := stmt.QueryRowContext(ctx, pollID, text, i).Scan(&opt.ID); err != nil {
			return nil, domain.StoreError("create poll options", fmt.Errorf("failed to insert option: %w", err))
		}
		options = append(options, opt)
	}

	if err := tx.Commit(); err != nil {
		return nil, domain.StoreError("create poll options", fmt.Errorf("failed to commit transaction: %w", err))
	}
	return options, nil
}

func (r *pollRepository) GetPollExpiry(ctx context.Context, pollID uuid.UUID) (*time.Time, error) {
	var expiresAt sql.NullTime
	err := r.db.QueryRowContext(ctx, `SELECT expires_at FROM polls WHERE id = $1`, pollID).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPollNotFound
		}
		return nil, domain.StoreError("get poll expiry", err)
	}
	if !expiresAt.Valid {
		return nil, nil
	}
	return &expiresAt.Time, nil
}

// IncrementVote bumps the counter in a single statement. Scoping the update
// by poll id rejects options that belong to a different poll.
func (r *pollRepository) IncrementVote(ctx context.Context, pollID, optionID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE poll_options SET votes = votes + 1 WHERE id = $1 AND poll_id = $2`,
		optionID, pollID,
	)
	if err != nil {
		return domain.StoreError("record vote", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return domain.StoreError("record vote", err)
	}
	if n == 0 {
		return domain.ErrOptionNotFound
	}
	return nil
}

func (r *pollRepository) DeletePoll(ctx context.Context, pollID uuid.UUID) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM polls WHERE id = $1`, pollID); err != nil {
		return domain.StoreError("delete poll", err)
	}
	return nil
}

func (r *pollRepository) GetPollOwner(ctx context.Context, pollID uuid.UUID) (*domain.Identity, error) {
	owner := &domain.Identity{}
	err := r.db.QueryRowContext(ctx, `SELECT created_by, created_by_name FROM polls WHERE id = $1`, pollID).
		Scan(&owner.ID, &owner.DisplayName)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, domain.StoreError("get poll owner", err)
	}
	return owner, nil
}

func (r *pollRepository) ListOrphanPolls(ctx context.Context, createdBefore time.Time) ([]uuid.UUID, error) {
	query := `
		SELECT p.id
		FROM polls p
		WHERE p.created_at < $1
		  AND NOT EXISTS (SELECT 1 FROM poll_options o WHERE o.poll_id = p.id)
		ORDER BY p.created_at
	`
	rows, err := r.db.QueryContext(ctx, query, createdBefore)
	if err != nil {
		return nil, domain.StoreError("list orphan polls", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, domain.StoreError("list orphan polls", fmt.Errorf("failed to scan poll id: %w", err))
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreError("list orphan polls", err)
	}
	return ids, nil
}

// queryPolls runs a poll query and attaches the options of every returned
// poll with one extra query.
func (r *pollRepository) queryPolls(ctx context.Context, query string, args ...any) ([]*domain.Poll, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query polls: %w", err)
	}
	defer rows.Close()

	polls := []*domain.Poll{}
	ids := []string{}
	for rows.Next() {
		var poll domain.Poll
		err := rows.Scan(
			&poll.ID, &poll.Title, &poll.Description,
			&poll.CreatedBy.ID, &poll.CreatedBy.DisplayName,
			&poll.CreatedAt, &poll.ExpiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan poll: %w", err)
		}
		polls = append(polls, &poll)
		ids = append(ids, poll.ID.String())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating polls: %w", err)
	}
	if len(polls) == 0 {
		return polls, nil
	}

	options, err := r.fetchOptions(ctx, ids)
	if err != nil {
		return nil, err
	}
	return domain.Assemble(polls, options, r.now()), nil
}

func (r *pollRepository) fetchOptions(ctx context.Context, pollIDs []string) ([]domain.PollOption, error) {
	query := `
		SELECT id, poll_id, text, votes
		FROM poll_options
		WHERE poll_id = ANY($1::uuid[])
		ORDER BY poll_id, position
	`
	rows, err := r.db.QueryContext(ctx, query, pq.StringArray(pollIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to get poll options: %w", err)
	}
	defer rows.Close()

	var options []domain.PollOption
	for rows.Next() {
		var opt domain.PollOption
		if err := rows.Scan(&opt.ID, &opt.PollID, &opt.Text, &opt.Votes); err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		options = append(options, opt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating options: %w", err)
	}
	return options, nil
}
