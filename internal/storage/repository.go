package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pmo-suite/change-request-service/internal/changerequest"
)

const changeRequestColumns = `id, project_id, type, status, details, rejection_reason,
	requested_by, reviewed_by, reviewed_at, created_at, updated_at`

// Repository is the Postgres Store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) CreateChangeRequest(ctx context.Context, cr changerequest.ChangeRequest) (changerequest.ChangeRequest, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO change_requests (project_id, type, status, details, requested_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+changeRequestColumns,
		cr.ProjectID, string(cr.Type), string(cr.Status), cr.Details, cr.RequestedBy,
	)
	created, err := scanChangeRequest(row)
	if err != nil {
		return changerequest.ChangeRequest{}, errors.Wrap(err, "insert change request")
	}
	return created, nil
}

func (r *Repository) GetChangeRequest(ctx context.Context, id int64) (changerequest.ChangeRequest, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+changeRequestColumns+` FROM change_requests WHERE id = $1`, id)
	cr, err := scanChangeRequest(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return changerequest.ChangeRequest{}, ErrChangeRequestNotFound
		}
		return changerequest.ChangeRequest{}, errors.Wrap(err, "get change request")
	}
	return cr, nil
}

func (r *Repository) ListChangeRequests(ctx context.Context, filter ListFilter) ([]changerequest.ChangeRequest, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.Statuses) > 0 {
		statuses := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			statuses = append(statuses, string(s))
		}
		args = append(args, statuses)
		where = append(where, fmt.Sprintf("status = ANY($%d)", len(args)))
	}
	if filter.ProjectID != 0 {
		args = append(args, filter.ProjectID)
		where = append(where, fmt.Sprintf("project_id = $%d", len(args)))
	}
	if filter.RequestedBy != "" {
		args = append(args, filter.RequestedBy)
		where = append(where, fmt.Sprintf("requested_by = $%d", len(args)))
	}

	var q strings.Builder
	q.WriteString(`SELECT ` + changeRequestColumns + ` FROM change_requests`)
	if len(where) > 0 {
		q.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	q.WriteString(" ORDER BY created_at DESC, id DESC")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&q, " LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, q.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "list change requests")
	}
	defer rows.Close()

	var out []changerequest.ChangeRequest
	for rows.Next() {
		cr, err := scanChangeRequest(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan change request")
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateStatus(ctx context.Context, id int64, expected changerequest.Status, patch StatusPatch) (changerequest.ChangeRequest, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE change_requests
		SET status = $3,
		    rejection_reason = $4,
		    reviewed_by = COALESCE($5, reviewed_by),
		    reviewed_at = COALESCE($6, reviewed_at),
		    details = COALESCE($7, details),
		    updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+changeRequestColumns,
		id, string(expected), string(patch.Status), patch.RejectionReason,
		patch.ReviewedBy, patch.ReviewedAt, patch.Details,
	)
	updated, err := scanChangeRequest(row)
	if err == nil {
		return updated, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return changerequest.ChangeRequest{}, errors.Wrap(err, "update change request status")
	}

	var current string
	err = r.pool.QueryRow(ctx, `SELECT status FROM change_requests WHERE id = $1`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return changerequest.ChangeRequest{}, ErrChangeRequestNotFound
		}
		return changerequest.ChangeRequest{}, errors.Wrap(err, "reload change request status")
	}
	return changerequest.ChangeRequest{}, ErrStaleState
}

func (r *Repository) CreateComment(ctx context.Context, c Comment) (Comment, error) {
	if !c.EntityType.Valid() {
		return Comment{}, ErrCommentTargetInvalid
	}
	var changes []byte
	if len(c.Changes) > 0 {
		changes = c.Changes
	}
	err := r.pool.QueryRow(ctx, `
		INSERT INTO comments (entity_type, entity_id, user_id, content, is_system, changes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		string(c.EntityType), c.EntityID, c.UserID, c.Content, c.System, changes,
	).Scan(&c.ID, &c.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23514" {
			return Comment{}, ErrCommentTargetInvalid
		}
		return Comment{}, errors.Wrap(err, "insert comment")
	}
	return c, nil
}

func (r *Repository) ListComments(ctx context.Context, entityType EntityType, entityID int64) ([]Comment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, entity_type, entity_id, user_id, content, is_system, changes, created_at
		FROM comments
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at, id`,
		string(entityType), entityID,
	)
	if err != nil {
		return nil, errors.Wrap(err, "list comments")
	}
	defer rows.Close()

	var out []Comment
	for rows.Next() {
		var (
			c       Comment
			typ     string
			changes []byte
		)
		if err := rows.Scan(&c.ID, &typ, &c.EntityID, &c.UserID, &c.Content, &c.System, &changes, &c.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan comment")
		}
		c.EntityType = EntityType(typ)
		c.Changes = changes
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanChangeRequest(row pgx.Row) (changerequest.ChangeRequest, error) {
	var (
		cr         changerequest.ChangeRequest
		typ        string
		status     string
		reviewedAt *time.Time
	)
	err := row.Scan(
		&cr.ID,
		&cr.ProjectID,
		&typ,
		&status,
		&cr.Details,
		&cr.RejectionReason,
		&cr.RequestedBy,
		&cr.ReviewedBy,
		&reviewedAt,
		&cr.CreatedAt,
		&cr.UpdatedAt,
	)
	if err != nil {
		return changerequest.ChangeRequest{}, err
	}
	cr.Type = changerequest.Type(typ)
	cr.Status = changerequest.Status(status)
	if reviewedAt != nil {
		at := reviewedAt.UTC()
		cr.ReviewedAt = &at
	}
	cr.CreatedAt = cr.CreatedAt.UTC()
	cr.UpdatedAt = cr.UpdatedAt.UTC()
	return cr, nil
}
