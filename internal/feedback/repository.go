package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/strata-vc/dealdesk/pkg/pagination"
	"github.com/strata-vc/dealdesk/pkg/repository"
)

const projection = `
	SELECT id, record_id, verdict, agreement, comment, reviewer, signature, created_at
	FROM feedback_entries`

type repo struct {
	db         *sql.DB
	logger     *slog.Logger
	pagination pagination.Config
}

// New creates a feedback repository implementing the System interface.
func New(db *sql.DB, logger *slog.Logger, pagination pagination.Config) System {
	return &repo{
		db:         db,
		logger:     logger.With("system", "feedback"),
		pagination: pagination,
	}
}

func (r *repo) Handler() *Handler {
	return NewHandler(r, r.logger, r.pagination)
}

func scanEntry(s repository.Scanner) (Entry, error) {
	var (
		e        Entry
		comment  sql.NullString
		reviewer sql.NullString
	)
	if err := s.Scan(
		&e.ID, &e.RecordID, &e.Verdict, &e.Agreement,
		&comment, &reviewer, &e.Signature, &e.CreatedAt,
	); err != nil {
		return Entry{}, err
	}
	e.Comment = comment.String
	e.Reviewer = reviewer.String
	return e, nil
}

func (r *repo) Append(ctx context.Context, cmd AppendCommand) (*Entry, error) {
	if err := cmd.validate(); err != nil {
		return nil, err
	}

	signature := cmd.Signature()

	insert := `
		INSERT INTO feedback_entries(record_id, verdict, agreement, comment, reviewer, signature)
		VALUES ($1, $2, $3, NULLIF($4, ''), NULLIF($5, ''), $6)
		RETURNING id, record_id, verdict, agreement, comment, reviewer, signature, created_at`

	entry, err := repository.QueryOne(ctx, r.db, insert, []any{
		cmd.RecordID, cmd.Verdict, cmd.Agreement, cmd.Comment, cmd.Reviewer, signature,
	}, scanEntry)
	if err != nil {
		if !repository.IsDuplicate(err) {
			return nil, fmt.Errorf("append feedback: %w", err)
		}
		return r.findBySignature(ctx, signature)
	}

	r.logger.Info("feedback recorded", "record", cmd.RecordID, "agreement", cmd.Agreement)
	return &entry, nil
}

// findBySignature serves the duplicate-write path: an identical submission
// returns the already stored entry instead of an error.
func (r *repo) findBySignature(ctx context.Context, signature string) (*Entry, error) {
	q := projection + ` WHERE signature = $1`

	entry, err := repository.QueryOne(ctx, r.db, q, []any{signature}, scanEntry)
	if err != nil {
		return nil, repository.MapError(err, ErrNotFound, ErrDuplicate)
	}
	return &entry, nil
}

func (r *repo) List(ctx context.Context, page pagination.PageRequest) (*pagination.PageResult[Entry], error) {
	page.Normalize(r.pagination)

	var total int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM feedback_entries`).Scan(&total); err != nil {
		return nil, fmt.Errorf("count feedback: %w", err)
	}

	q := projection + ` ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	items, err := repository.QueryMany(ctx, r.db, q, []any{page.PageSize, page.Offset()}, scanEntry)
	if err != nil {
		return nil, fmt.Errorf("query feedback: %w", err)
	}

	result := pagination.NewPageResult(items, total, page.Page, page.PageSize)
	return &result, nil
}
