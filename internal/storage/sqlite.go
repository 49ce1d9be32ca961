package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/pmo-suite/change-request-service/internal/changerequest"
)

// SQLiteRepository is the embedded Store used for local runs and tests.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) CreateChangeRequest(ctx context.Context, cr changerequest.ChangeRequest) (changerequest.ChangeRequest, error) {
	now := formatTime(r.now())
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO change_requests (project_id, type, status, details, requested_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		cr.ProjectID, string(cr.Type), string(cr.Status), cr.Details, cr.RequestedBy, now, now,
	)
	if err != nil {
		return changerequest.ChangeRequest{}, errors.Wrap(err, "insert change request")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return changerequest.ChangeRequest{}, errors.Wrap(err, "insert change request")
	}
	return r.GetChangeRequest(ctx, id)
}

func (r *SQLiteRepository) GetChangeRequest(ctx context.Context, id int64) (changerequest.ChangeRequest, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+changeRequestColumns+` FROM change_requests WHERE id = ?`, id)
	cr, err := scanSQLiteChangeRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return changerequest.ChangeRequest{}, ErrChangeRequestNotFound
		}
		return changerequest.ChangeRequest{}, errors.Wrap(err, "get change request")
	}
	return cr, nil
}

func (r *SQLiteRepository) ListChangeRequests(ctx context.Context, filter ListFilter) ([]changerequest.ChangeRequest, error) {
	var (
		where []string
		args  []any
	)
	if len(filter.Statuses) > 0 {
		marks := make([]string, 0, len(filter.Statuses))
		for _, s := range filter.Statuses {
			marks = append(marks, "?")
			args = append(args, string(s))
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if filter.ProjectID != 0 {
		where = append(where, "project_id = ?")
		args = append(args, filter.ProjectID)
	}
	if filter.RequestedBy != "" {
		where = append(where, "requested_by = ?")
		args = append(args, filter.RequestedBy)
	}

	var q strings.Builder
	q.WriteString(`SELECT ` + changeRequestColumns + ` FROM change_requests`)
	if len(where) > 0 {
		q.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	q.WriteString(" ORDER BY created_at DESC, id DESC")
	if filter.Limit > 0 {
		fmt.Fprintf(&q, " LIMIT %d", filter.Limit)
	}

	rows, err := r.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, errors.Wrap(err, "list change requests")
	}
	defer rows.Close()

	var out []changerequest.ChangeRequest
	for rows.Next() {
		cr, err := scanSQLiteChangeRequest(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan change request")
		}
		out = append(out, cr)
	}
	return out, rows.Err()
}

func (r *SQLiteRepository) UpdateStatus(ctx context.Context, id int64, expected changerequest.Status, patch StatusPatch) (changerequest.ChangeRequest, error) {
	var reviewedAt *string
	if patch.ReviewedAt != nil {
		s := formatTime(*patch.ReviewedAt)
		reviewedAt = &s
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE change_requests
		SET status = ?,
		    rejection_reason = ?,
		    reviewed_by = COALESCE(?, reviewed_by),
		    reviewed_at = COALESCE(?, reviewed_at),
		    details = COALESCE(?, details),
		    updated_at = ?
		WHERE id = ? AND status = ?`,
		string(patch.Status), patch.RejectionReason, patch.ReviewedBy, reviewedAt, patch.Details,
		formatTime(r.now()), id, string(expected),
	)
	if err != nil {
		return changerequest.ChangeRequest{}, errors.Wrap(err, "update change request status")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return changerequest.ChangeRequest{}, errors.Wrap(err, "update change request status")
	}
	if n == 0 {
		if _, err := r.GetChangeRequest(ctx, id); err != nil {
			return changerequest.ChangeRequest{}, err
		}
		return changerequest.ChangeRequest{}, ErrStaleState
	}
	return r.GetChangeRequest(ctx, id)
}

func (r *SQLiteRepository) CreateComment(ctx context.Context, c Comment) (Comment, error) {
	if !c.EntityType.Valid() {
		return Comment{}, ErrCommentTargetInvalid
	}
	c.CreatedAt = r.now()
	var changes *string
	if len(c.Changes) > 0 {
		s := string(c.Changes)
		changes = &s
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO comments (entity_type, entity_id, user_id, content, is_system, changes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		string(c.EntityType), c.EntityID, c.UserID, c.Content, c.System, changes, formatTime(c.CreatedAt),
	)
	if err != nil {
		return Comment{}, errors.Wrap(err, "insert comment")
	}
	if c.ID, err = res.LastInsertId(); err != nil {
		return Comment{}, errors.Wrap(err, "insert comment")
	}
	return c, nil
}

func (r *SQLiteRepository) ListComments(ctx context.Context, entityType EntityType, entityID int64) ([]Comment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, entity_type, entity_id, user_id, content, is_system, changes, created_at
		FROM comments
		WHERE entity_type = ? AND entity_id = ?
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
			c         Comment
			typ       string
			changes   sql.NullString
			createdAt string
		)
		if err := rows.Scan(&c.ID, &typ, &c.EntityID, &c.UserID, &c.Content, &c.System, &changes, &createdAt); err != nil {
			return nil, errors.Wrap(err, "scan comment")
		}
		c.EntityType = EntityType(typ)
		if changes.Valid {
			c.Changes = []byte(changes.String)
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteChangeRequest(row rowScanner) (changerequest.ChangeRequest, error) {
	var (
		cr         changerequest.ChangeRequest
		typ        string
		status     string
		reason     sql.NullString
		reviewedBy sql.NullString
		reviewedAt sql.NullString
		createdAt  string
		updatedAt  string
	)
	err := row.Scan(
		&cr.ID,
		&cr.ProjectID,
		&typ,
		&status,
		&cr.Details,
		&reason,
		&cr.RequestedBy,
		&reviewedBy,
		&reviewedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return changerequest.ChangeRequest{}, err
	}
	cr.Type = changerequest.Type(typ)
	cr.Status = changerequest.Status(status)
	if reason.Valid {
		cr.RejectionReason = &reason.String
	}
	if reviewedBy.Valid {
		cr.ReviewedBy = &reviewedBy.String
	}
	if reviewedAt.Valid {
		at, err := parseTime(reviewedAt.String)
		if err != nil {
			return changerequest.ChangeRequest{}, err
		}
		cr.ReviewedAt = &at
	}
	if cr.CreatedAt, err = parseTime(createdAt); err != nil {
		return changerequest.ChangeRequest{}, err
	}
	if cr.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return changerequest.ChangeRequest{}, err
	}
	return cr, nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "parse timestamp %q", s)
	}
	return t, nil
}
