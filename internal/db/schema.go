package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pmo-suite/change-request-service/internal/changerequest"
)

func quoted[T ~string](values []T) string {
	parts := make([]string, 0, len(values))
	for _, v := range values {
		parts = append(parts, "'"+string(v)+"'")
	}
	return strings.Join(parts, ",")
}

var schemaStatements = []string{
	fmt.Sprintf(`CREATE TABLE IF NOT EXISTS change_requests (
		id BIGSERIAL PRIMARY KEY,
		project_id BIGINT NOT NULL,
		type TEXT NOT NULL CHECK (type IN (%s)),
		status TEXT NOT NULL DEFAULT 'Pending' CHECK (status IN (%s)),
		details TEXT NOT NULL,
		rejection_reason TEXT,
		requested_by TEXT NOT NULL,
		reviewed_by TEXT,
		reviewed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`, quoted(changerequest.Types()), quoted(changerequest.Statuses())),
	`CREATE TABLE IF NOT EXISTS comments (
		id BIGSERIAL PRIMARY KEY,
		entity_type TEXT NOT NULL CHECK (entity_type IN ('task','assignment','change_request')),
		entity_id BIGINT NOT NULL,
		user_id TEXT NOT NULL,
		content TEXT NOT NULL,
		is_system BOOLEAN NOT NULL DEFAULT FALSE,
		changes JSONB,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_change_requests_status ON change_requests(status)`,
	`CREATE INDEX IF NOT EXISTS idx_change_requests_project ON change_requests(project_id)`,
	`CREATE INDEX IF NOT EXISTS idx_change_requests_requested_by ON change_requests(requested_by)`,
	`CREATE INDEX IF NOT EXISTS idx_comments_entity ON comments(entity_type, entity_id, created_at)`,
}

func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}
