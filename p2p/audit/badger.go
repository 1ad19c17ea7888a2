package audit

import (
	"sort"
	"sync"

	"github.com/dgraph-io/badger"
)

// BadgerStore is the on-disk Store, grounded on ethdb/badger.go's
// Put/Get/Delete wrapping of a badger handle but rebuilt against the
// transactional badger.DB API (Open, Update, View) that v1.6.2 actually
// exposes, rather than the retired badger.KV handle ethdb/badger.go calls.
type BadgerStore struct {
	db *badger.DB

	mu   sync.Mutex
	next map[string]uint64
}

// OpenBadgerStore opens (creating if necessary) a badger database rooted
// at dir.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.SyncWrites = true
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db, next: make(map[string]uint64)}, nil
}

func (s *BadgerStore) allocateSequence(peerID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq, ok := s.next[peerID]
	if !ok {
		// First record for peerID since Open: continue after any records
		// already on disk instead of overwriting them from sequence 0.
		prefix := append([]byte(peerID), '/')
		_ = s.db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			defer it.Close()
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				seq = sequenceFromKey(it.Item().Key(), len(prefix)) + 1
			}
			return nil
		})
	}
	s.next[peerID] = seq + 1
	return seq
}

func (s *BadgerStore) append(peerID string, r Record) error {
	seq := s.allocateSequence(peerID)
	r.PeerID = peerID
	r.Sequence = seq
	key := encodeKey(peerID, seq)
	value := compress(encodeRecord(r))
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// RecordConnectionMessage implements Store.
func (s *BadgerStore) RecordConnectionMessage(peerID string, incoming bool, raw []byte) error {
	return s.append(peerID, Record{Kind: RecordConnectionMessage, Incoming: incoming, Payload: raw})
}

// RecordMetadataMessage implements Store.
func (s *BadgerStore) RecordMetadataMessage(peerID string, incoming bool, raw []byte) error {
	return s.append(peerID, Record{Kind: RecordMetadataMessage, Incoming: incoming, Payload: raw})
}

// RecordPeerMessage implements Store. Its parameters differ from
// p2p/peer.AuditSink's method of the same name (a tag and encoded bytes
// rather than an encoding.PeerMessage); a Peer reaches it through the
// PeerSink adapter in adapter.go.
func (s *BadgerStore) RecordPeerMessage(peerID string, incoming bool, tag byte, raw []byte) error {
	return s.append(peerID, Record{Kind: RecordPeerMessage, Incoming: incoming, Tag: tag, Payload: raw})
}

// ForPeer implements Store.
func (s *BadgerStore) ForPeer(peerID string) ([]Record, error) {
	prefix := append([]byte(peerID), '/')
	var records []Record
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			item := it.Item()
			seq := sequenceFromKey(item.Key(), len(prefix))
			var record Record
			err := item.Value(func(v []byte) error {
				plain, err := decompress(v)
				if err != nil {
					return err
				}
				decoded, err := decodeRecord(peerID, seq, plain)
				if err != nil {
					return err
				}
				record = decoded
				return nil
			})
			if err != nil {
				return err
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Sequence < records[j].Sequence })
	return records, nil
}

// Close implements Store.
func (s *BadgerStore) Close() error { return s.db.Close() }

func sequenceFromKey(key []byte, prefixLen int) uint64 {
	if len(key) < prefixLen+8 {
		return 0
	}
	var seq uint64
	for _, b := range key[prefixLen : prefixLen+8] {
		seq = seq<<8 | uint64(b)
	}
	return seq
}
