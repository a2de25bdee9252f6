package ingest

import "errors"

var (
	ErrNotFound         = errors.New("item not found")
	ErrConflict         = errors.New("update conflicts with current state")
	ErrUnknownReference = errors.New("unknown reference key")
	ErrNotWritable      = errors.New("resource does not accept writes")
)
