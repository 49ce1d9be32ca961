package storage

import (
	"context"

	"github.com/pmo-suite/change-request-service/internal/changerequest"
)

// Store persists change requests and comments.
//
// UpdateStatus is a compare-and-set: it applies patch only while the stored status equals
// expected, and returns ErrStaleState when another writer got there first.
type Store interface {
	CreateChangeRequest(ctx context.Context, cr changerequest.ChangeRequest) (changerequest.ChangeRequest, error)
	GetChangeRequest(ctx context.Context, id int64) (changerequest.ChangeRequest, error)
	ListChangeRequests(ctx context.Context, filter ListFilter) ([]changerequest.ChangeRequest, error)
	UpdateStatus(ctx context.Context, id int64, expected changerequest.Status, patch StatusPatch) (changerequest.ChangeRequest, error)
	CreateComment(ctx context.Context, c Comment) (Comment, error)
	ListComments(ctx context.Context, entityType EntityType, entityID int64) ([]Comment, error)
	Ping(ctx context.Context) error
}

var (
	_ Store = (*Repository)(nil)
	_ Store = (*SQLiteRepository)(nil)
)
