package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/vncsmyrnk/polling-app/internal/core/domain"
	"github.com/vncsmyrnk/polling-app/internal/core/ports"
)

type pollRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewPollRepository(db *sql.DB) ports.PollRepository {
	return &pollRepository{db: db, now: time.Now}
}

const pollColumns = `id, title, description, created_by, created_by_name, created_at, expires_at`

func (r *pollRepository) ListPolls(ctx context.Context) []*domain.Poll {
	polls, err := r.queryPolls(ctx, `SELECT `+pollColumns+` FROM polls ORDER BY created_at DESC, rowid DESC`)
	if err != nil {
		slog.Error("failed to list polls", "error", err)
		return []*domain.Poll{}
	}
	return polls
}

func (r *pollRepository) GetPoll(ctx context.Context, id uuid.UUID) (*domain.Poll, error) {
	polls, err := r.queryPolls(ctx, `SELECT `+pollColumns+` FROM polls WHERE id = ?`, id)
	if err != nil {
		return nil, domain.StoreError("get poll", err)
	}
	if len(polls) == 0 {
		return nil, domain.ErrPollNotFound
	}
	return polls[0], nil
}

func (r *pollRepository) ListPollsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Poll, error) {
	query := `SELECT ` + pollColumns + ` FROM polls WHERE created_by = ? ORDER BY created_at DESC, rowid DESC`

	polls, err := r.queryPolls(ctx, query, ownerID)
	if err != nil {
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
		CreatedAt:   fromMicros(toMicros(r.now())),
		ExpiresAt:   p.ExpiresAt,
		Options:     []domain.PollOption{},
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO polls (id, title, description, created_by, created_by_name, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		poll.ID, poll.Title, poll.Description, poll.CreatedBy.ID, poll.CreatedBy.DisplayName,
		toMicros(poll.CreatedAt), nullMicros(poll.ExpiresAt),
	)
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

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO poll_options (id, poll_id, text, position) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return nil, domain.StoreError("create poll options", fmt.Errorf("failed to prepare option statement: %w", err))
	}
	defer stmt.Close()

	options := make([]domain.PollOption, 0, len(texts))
	for i, text := range texts {
		opt := domain.PollOption{ID: uuid.New(), PollID: pollID, Text: text}
		if _, err := stmt.ExecContext(ctx, opt.ID, pollID, text, i); err != nil {
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
	var expiresAt sql.NullInt64
	err := r.db.QueryRowContext(ctx, `SELECT expires_at FROM polls WHERE id = ?`, pollID).Scan(&expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrPollNotFound
		}
		return nil, domain.StoreError("get poll expiry", err)
	}
	return timeFromNull(expiresAt), nil
}

func (r *pollRepository) IncrementVote(ctx context.Context, pollID, optionID uuid.UUID) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE poll_options SET votes = votes + 1 WHERE id = ? AND poll_id = ?`,
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
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.StoreError("delete poll", err)
	}
	defer tx.Rollback()

	// Explicit option delete so databases opened without foreign_keys stay consistent.
	if _, err := tx.ExecContext(ctx, `DELETE FROM poll_options WHERE poll_id = ?`, pollID); err != nil {
		return domain.StoreError("delete poll", fmt.Errorf("failed to delete options: %w", err))
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM polls WHERE id = ?`, pollID); err != nil {
		return domain.StoreError("delete poll", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.StoreError("delete poll", fmt.Errorf("failed to commit transaction: %w", err))
	}
	return nil
}

func (r *pollRepository) GetPollOwner(ctx context.Context, pollID uuid.UUID) (*domain.Identity, error) {
	owner := &domain.Identity{}
	err := r.db.QueryRowContext(ctx, `SELECT created_by, created_by_name FROM polls WHERE id = ?`, pollID).
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
	rows, err := r.db.QueryContext(ctx, `
		SELECT p.id
		FROM polls p
		WHERE p.created_at < ?
		  AND NOT EXISTS (SELECT 1 FROM poll_options o WHERE o.poll_id = p.id)
		ORDER BY p.created_at`,
		toMicros(createdBefore),
	)
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

func (r *pollRepository) queryPolls(ctx context.Context, query string, args ...any) ([]*domain.Poll, error) {
	polls, err := r.scanPolls(ctx, query, args...)
	if err != nil || len(polls) == 0 {
		return polls, err
	}

	ids := make([]any, 0, len(polls))
	for _, p := range polls {
		ids = append(ids, p.ID)
	}
	options, err := r.fetchOptions(ctx, ids)
	if err != nil {
		return nil, err
	}
	return domain.Assemble(polls, options, r.now()), nil
}

// scanPolls reads every poll row and releases the connection before options
// are fetched; the pool holds a single connection.
func (r *pollRepository) scanPolls(ctx context.Context, query string, args ...any) ([]*domain.Poll, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query polls: %w", err)
	}
	defer rows.Close()

	polls := []*domain.Poll{}
	for rows.Next() {
		var (
			poll      domain.Poll
			createdAt int64
			expiresAt sql.NullInt64
		)
		err := rows.Scan(
			&poll.ID, &poll.Title, &poll.Description,
			&poll.CreatedBy.ID, &poll.CreatedBy.DisplayName,
			&createdAt, &expiresAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan poll: %w", err)
		}
		poll.CreatedAt = fromMicros(createdAt)
		poll.ExpiresAt = timeFromNull(expiresAt)
		polls = append(polls, &poll)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating polls: %w", err)
	}
	return polls, nil
}

func (r *pollRepository) fetchOptions(ctx context.Context, pollIDs []any) ([]domain.PollOption, error) {
	query := `
		SELECT id, poll_id, text, votes
		FROM poll_options
		WHERE poll_id IN (` + placeholders(len(pollIDs)) + `)
		ORDER BY poll_id, position`

	rows, err := r.db.QueryContext(ctx, query, pollIDs...)
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
