package record

import (
	"errors"
)

var (
	ErrNotFound         = errors.New("record not found")
	ErrUnknownDomain    = errors.New("unknown record domain")
	ErrReadOnlyDomain   = errors.New("record domain is read-only")
	ErrInvalidPayload   = errors.New("invalid record payload")
	ErrUnknownUpdate    = errors.New("unknown update type")
	ErrImmutableField   = errors.New("immutable field changed")
	ErrServerIDConflict = errors.New("server id already assigned")
)
