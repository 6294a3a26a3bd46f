package ports

import (
	"context"

	"github.com/galah-project/galah-cli/internal/domain"
)

// StateStore persists the session record and the raw manifest cache. The
// session is the only writer; implementations must keep the session
// record readable by its owner only.
type StateStore interface {
	// LoadSession returns the persisted session state. ok is false when
	// no state has been persisted yet, which is not an error.
	LoadSession(ctx context.Context) (state domain.SessionState, ok bool, err error)
	SaveSession(ctx context.Context, state domain.SessionState) error
	ClearSession(ctx context.Context) error

	// LoadManifest returns the verbatim bytes of the last successful
	// manifest fetch. ok is false when nothing is cached.
	LoadManifest(ctx context.Context) (raw []byte, ok bool, err error)
	SaveManifest(ctx context.Context, raw []byte) error
	ClearManifest(ctx context.Context) error
}
