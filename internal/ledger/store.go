package ledger

import (
	"context"
	"errors"

	"orcamento/internal/core"
)

// ErrConflict is returned by a Store when another writer committed since the
// version the caller last saw.
var ErrConflict = errors.New("ledger changed by another writer")

// State is everything a Store persists.
type State struct {
	Working core.WorkingMonth
	History []core.MonthlyData
	// Version counts committed writes. Zero means nothing was saved.
	Version uint64
}

// Store persists ledger state. Every write carries the version the caller
// loaded; the store applies it only when that is still the stored version,
// bumps the version by one, and otherwise returns ErrConflict. ArchiveMonth
// must be atomic: either both the snapshot and the reset working month are
// saved or neither is.
type Store interface {
	// Load returns the saved state. found is false when nothing was saved yet.
	Load(ctx context.Context) (state State, found bool, err error)
	// Version returns the stored version without loading the state.
	Version(ctx context.Context) (uint64, error)
	SaveWorking(ctx context.Context, w core.WorkingMonth, version uint64) error
	ArchiveMonth(ctx context.Context, snapshot core.MonthlyData, next core.WorkingMonth, version uint64) error
	DeleteMonth(ctx context.Context, id string, version uint64) error
}

// nopStore keeps nothing; the Manager's own memory is the only copy.
type nopStore struct{}

func (nopStore) Load(context.Context) (State, bool, error)                    { return State{}, false, nil }
func (nopStore) Version(context.Context) (uint64, error)                      { return 0, errNoVersion }
func (nopStore) SaveWorking(context.Context, core.WorkingMonth, uint64) error { return nil }
func (nopStore) ArchiveMonth(context.Context, core.MonthlyData, core.WorkingMonth, uint64) error {
	return nil
}
func (nopStore) DeleteMonth(context.Context, string, uint64) error { return nil }

// errNoVersion tells Refresh the store has nothing newer to offer.
var errNoVersion = errors.New("store does not track versions")
