package knockout

import (
	"fmt"

	"github.com/voteparty/knockout/party"
	"github.com/voteparty/knockout/store"
)

// Open builds an engine for the given party, resuming from the snapshot in st
// when one exists.
func Open(st store.Store, params party.Parameters, opts ...party.Option) (*party.Engine, error) {
	snap, ok, err := st.Load()
	if err != nil {
		return nil, fmt.Errorf("loading snapshot: %w", err)
	}
	if ok {
		return party.Restore(params, snap, opts...)
	}
	return party.New(params, opts...)
}
