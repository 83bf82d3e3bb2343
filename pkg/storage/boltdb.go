package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"path/filepath"

	bolt "go.etcd.io/bbolt"
)

var (
	bucketStable    = []byte("stable")
	bucketSnapshot  = []byte("snapshot")
	keyStableState  = []byte("state")
	keySnapshotMeta = []byte("meta")
	keySnapshotData = []byte("data")
)

// BoltStore implements Store using BoltDB, matching the single-file,
// bucket-per-concern layout of the example corpus's BoltDB stores.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a BoltDB file under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "curp.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, bucket := range [][]byte{bucketStable, bucketSnapshot} {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("storage: create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

type stableStateWire struct {
	CurrentTerm uint64 `json:"current_term"`
	VotedFor    string `json:"voted_for"`
	VotedForSet bool   `json:"voted_for_set"`
}

// SaveStableState persists current_term and voted_for. Called before a
// node replies to Vote or steps down to a higher term — a server must
// never forget a vote it has already cast.
func (s *BoltStore) SaveStableState(state StableState) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStable)
		data, err := json.Marshal(stableStateWire{
			CurrentTerm: state.CurrentTerm,
			VotedFor:    state.VotedFor,
			VotedForSet: state.VotedForSet,
		})
		if err != nil {
			return err
		}
		return b.Put(keyStableState, data)
	})
}

// LoadStableState returns the zero value (term 0, no vote) if nothing
// has ever been persisted, matching a brand-new node's starting state.
func (s *BoltStore) LoadStableState() (StableState, error) {
	var out StableState
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketStable)
		data := b.Get(keyStableState)
		if data == nil {
			return nil
		}
		var wire stableStateWire
		if err := json.Unmarshal(data, &wire); err != nil {
			return fmt.Errorf("storage: decode stable state: %w", err)
		}
		out = StableState{CurrentTerm: wire.CurrentTerm, VotedFor: wire.VotedFor, VotedForSet: wire.VotedForSet}
		return nil
	})
	return out, err
}

// SaveSnapshot persists the most recent snapshot, replacing whatever
// was stored before — only one snapshot generation is ever kept
// durable, per §4.7's "interrupted streams restart from offset 0, no
// resumption" rule: there is nothing to resume from a partial write.
func (s *BoltStore) SaveSnapshot(rec SnapshotRecord) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSnapshot)
		meta := make([]byte, 16)
		binary.BigEndian.PutUint64(meta[0:8], rec.LastIncludedIndex)
		binary.BigEndian.PutUint64(meta[8:16], rec.LastIncludedTerm)
		if err := b.Put(keySnapshotMeta, meta); err != nil {
			return err
		}
		return b.Put(keySnapshotData, rec.Data)
	})
}

// LoadSnapshot returns the persisted snapshot, if any.
func (s *BoltStore) LoadSnapshot() (SnapshotRecord, bool, error) {
	var out SnapshotRecord
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketSnapshot)
		meta := b.Get(keySnapshotMeta)
		if meta == nil {
			return nil
		}
		found = true
		out.LastIncludedIndex = binary.BigEndian.Uint64(meta[0:8])
		out.LastIncludedTerm = binary.BigEndian.Uint64(meta[8:16])
		data := b.Get(keySnapshotData)
		out.Data = append([]byte(nil), data...)
		return nil
	})
	return out, found, err
}
