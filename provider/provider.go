// Package provider defines the capability surface the reconciliation engine
// consumes. The engine never constructs backend requests itself; pagination,
// field mapping and auth handshakes belong to the concrete connectors.
package provider

import (
	"context"
	"errors"
	"fmt"
	"time"

	"timesync/timereg"
)

var (
	// ErrNotAuthenticated is returned by connectors when credentials are
	// absent or no longer valid.
	ErrNotAuthenticated = errors.New("provider is not authenticated")

	// ErrCreateNotSupported is returned when CreateEntry is called on a
	// fetch-only provider.
	ErrCreateNotSupported = errors.New("provider cannot create time registration entries")
)

// MissingIdentificationError reports an entry lacking an identification key a
// downstream step requires. This is a contract violation by a connector and
// must never be silently defaulted.
type MissingIdentificationError struct {
	Key string
}

func (e *MissingIdentificationError) Error() string {
	return fmt.Sprintf("entry is missing required identification %q", e.Key)
}

// TimeProvider is one time-tracking backend. Every call is an individually
// blocking round trip; the engine issues them one at a time.
type TimeProvider interface {
	// Name identifies the provider in logs and prompts.
	Name() string

	// IsAuthenticated reports whether stored credentials are usable.
	IsAuthenticated(ctx context.Context) bool

	// LoggedInIdentity returns identification key/value pairs of the signed
	// in user, e.g. FullName or AtlassianID.
	LoggedInIdentity(ctx context.Context) (map[string]string, error)

	// FetchEntries returns the registrant's entries for the inclusive range.
	// Entries are produced fresh on every call.
	FetchEntries(ctx context.Context, registrant *timereg.Registrant, from, to time.Time) ([]timereg.Entry, error)

	// CanCreate reports whether the provider accepts new entries.
	CanCreate() bool

	// CreateEntry writes one entry to the backend.
	CreateEntry(ctx context.Context, entry timereg.Entry) error
}
