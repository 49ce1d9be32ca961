package storage

import "errors"

var (
	ErrChangeRequestNotFound = errors.New("change request not found")
	ErrStaleState            = errors.New("change request status changed concurrently")
	ErrCommentTargetInvalid  = errors.New("comment target is invalid")
)
