package store

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"

	"github.com/voteparty/knockout/party"
)

var snapshotKey = []byte("party/snapshot")

// LevelDB persists snapshots in a goleveldb database on disk.
type LevelDB struct {
	db *leveldb.DB
}

var _ Store = (*LevelDB)(nil)

// OpenLevelDB opens (or creates) the database at path.
func OpenLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("opening leveldb at %s: %w", path, err)
	}
	return &LevelDB{db: db}, nil
}

func (s *LevelDB) Save(snap *party.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	if err := s.db.Put(snapshotKey, data, nil); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	return nil
}

func (s *LevelDB) Load() (*party.Snapshot, bool, error) {
	data, err := s.db.Get(snapshotKey, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading snapshot: %w", err)
	}
	var snap party.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, false, fmt.Errorf("decoding snapshot: %w", err)
	}
	return &snap, true, nil
}

func (s *LevelDB) Close() error {
	return s.db.Close()
}
