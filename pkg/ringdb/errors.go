package ringdb

import "errors"

// Domain error sentinels. Classify with errors.Is; wrap with fmt.Errorf and
// %w when adding context. Kept distinct from each other (rather than one
// generic error with a code field) so a transport layer can map each to a
// stable wire error kind without inspecting message text.
var (
	ErrSeriesNotFound       = errors.New("ringdb: series not found")
	ErrSeriesAlreadyExists  = errors.New("ringdb: series already exists")
	ErrInvalidSlug          = errors.New("ringdb: invalid slug")
	ErrNoSuitableArchive    = errors.New("ringdb: no suitable archive")
	ErrInvalidConfig        = errors.New("ringdb: invalid config")
	ErrTimestampNotMonotonic = errors.New("ringdb: timestamp not monotonic")
	ErrNegativeValueForAverage = errors.New("ringdb: negative value for average archive")
	ErrSeriesLocked         = errors.New("ringdb: series file locked by another process")
	ErrClosed               = errors.New("ringdb: series is closed")
	ErrInternal             = errors.New("ringdb: internal error")
)
