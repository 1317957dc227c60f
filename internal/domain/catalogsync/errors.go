package catalogsync

import "errors"

// ---------------------------------------------------------------------------
// Catalog Sync Errors
// ---------------------------------------------------------------------------

var (
	ErrInvalidRunKind   = errors.New("catalogsync: invalid run kind")
	ErrRunNotFound      = errors.New("catalogsync: sync run not found")
	ErrRunAlreadyClosed = errors.New("catalogsync: sync run already finished")
	ErrSyncInProgress   = errors.New("catalogsync: sync already in progress")
)
