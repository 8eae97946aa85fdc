package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/soundprediction/chronograph/pkg/types"
)

// Key layout. Timestamps are zero-padded nanoseconds so that lexicographic
// key order equals chronological order; a uuid suffix keeps entries with
// identical timestamps distinct.
const (
	snapshotPrefix = "snapshot/"
	changePrefix   = "change/"
)

// BadgerStore persists snapshots and changes in an embedded Badger database.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a Badger database at path.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func timeKey(ts time.Time) string {
	return fmt.Sprintf("%020d", ts.UnixNano())
}

func snapshotKey(tenantID string, ts time.Time) []byte {
	return []byte(snapshotPrefix + tenantID + "/" + timeKey(ts) + "/" + uuid.NewString())
}

func changeKey(tenantID string, ts time.Time) []byte {
	return []byte(changePrefix + tenantID + "/" + timeKey(ts) + "/" + uuid.NewString())
}

// SaveSnapshot implements Store.
func (s *BadgerStore) SaveSnapshot(ctx context.Context, snapshot *types.Snapshot) error {
	if snapshot.TenantID == "" {
		return types.ErrEmptyTenantID
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(snapshotKey(snapshot.TenantID, snapshot.Timestamp), data)
	})
}

// AppendChange implements Store.
func (s *BadgerStore) AppendChange(ctx context.Context, tenantID string, change *types.Change) error {
	if tenantID == "" {
		return types.ErrEmptyTenantID
	}
	if err := change.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("failed to marshal change: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(changeKey(tenantID, change.Timestamp), data)
	})
}

// LoadSnapshots implements Store.
func (s *BadgerStore) LoadSnapshots(ctx context.Context, tenantID string) ([]*types.Snapshot, error) {
	var snapshots []*types.Snapshot
	err := s.scan([]byte(snapshotPrefix+tenantID+"/"), func(value []byte) error {
		var snap types.Snapshot
		if err := json.Unmarshal(value, &snap); err != nil {
			return fmt.Errorf("failed to unmarshal snapshot: %w", err)
		}
		snapshots = append(snapshots, &snap)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(snapshots, func(i, j int) bool {
		return snapshots[i].Timestamp.Before(snapshots[j].Timestamp)
	})
	return snapshots, nil
}

// LoadChanges implements Store.
func (s *BadgerStore) LoadChanges(ctx context.Context, tenantID string) ([]*types.Change, error) {
	var changes []*types.Change
	err := s.scan([]byte(changePrefix+tenantID+"/"), func(value []byte) error {
		var change types.Change
		if err := json.Unmarshal(value, &change); err != nil {
			return fmt.Errorf("failed to unmarshal change: %w", err)
		}
		changes = append(changes, &change)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(changes, func(i, j int) bool {
		return changes[i].Timestamp.Before(changes[j].Timestamp)
	})
	return changes, nil
}

// DeleteSnapshotsBefore implements Store. The change log is never touched.
func (s *BadgerStore) DeleteSnapshotsBefore(ctx context.Context, tenantID string, cutoff time.Time) (int, error) {
	prefix := []byte(snapshotPrefix + tenantID + "/")
	boundary := []byte(snapshotPrefix + tenantID + "/" + timeKey(cutoff))

	var stale [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			key := it.Item().KeyCopy(nil)
			if string(key) < string(boundary) {
				stale = append(stale, key)
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(stale) == 0 {
		return 0, nil
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(stale), nil
}

func (s *BadgerStore) scan(prefix []byte, visit func(value []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: prefix, PrefetchValues: true})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			if err := visit(value); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close implements Store.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
