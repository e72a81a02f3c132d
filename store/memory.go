package store

import (
	"encoding/json"
	"sync"

	"github.com/voteparty/knockout/party"
)

// Memory keeps the latest snapshot in memory. Intended for tests and
// ephemeral parties.
type Memory struct {
	mtx  sync.Mutex
	data []byte
}

var _ Store = (*Memory)(nil)

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{}
}

func (s *Memory) Save(snap *party.Snapshot) error {
	// store the encoded form so the caller cannot mutate what was saved
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.data = data
	return nil
}

func (s *Memory) Load() (*party.Snapshot, bool, error) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if s.data == nil {
		return nil, false, nil
	}
	var snap party.Snapshot
	if err := json.Unmarshal(s.data, &snap); err != nil {
		return nil, false, err
	}
	return &snap, true, nil
}

func (s *Memory) Close() error { return nil }
