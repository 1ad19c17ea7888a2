package audit

import "sync"

// MemoryStore is an in-process Store for tests, avoiding a real badger
// database on disk.
type MemoryStore struct {
	mu      sync.Mutex
	next    map[string]uint64
	records map[string][]Record
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{next: make(map[string]uint64), records: make(map[string][]Record)}
}

func (s *MemoryStore) append(peerID string, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r.PeerID = peerID
	r.Sequence = s.next[peerID]
	s.next[peerID]++
	r.Payload = append([]byte(nil), r.Payload...)
	s.records[peerID] = append(s.records[peerID], r)
	return nil
}

// RecordConnectionMessage implements Store.
func (s *MemoryStore) RecordConnectionMessage(peerID string, incoming bool, raw []byte) error {
	return s.append(peerID, Record{Kind: RecordConnectionMessage, Incoming: incoming, Payload: raw})
}

// RecordMetadataMessage implements Store.
func (s *MemoryStore) RecordMetadataMessage(peerID string, incoming bool, raw []byte) error {
	return s.append(peerID, Record{Kind: RecordMetadataMessage, Incoming: incoming, Payload: raw})
}

// RecordPeerMessage implements Store.
func (s *MemoryStore) RecordPeerMessage(peerID string, incoming bool, tag byte, raw []byte) error {
	return s.append(peerID, Record{Kind: RecordPeerMessage, Incoming: incoming, Tag: tag, Payload: raw})
}

// ForPeer implements Store.
func (s *MemoryStore) ForPeer(peerID string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Record, len(s.records[peerID]))
	copy(out, s.records[peerID])
	return out, nil
}

// Close implements Store; a MemoryStore holds nothing worth releasing.
func (s *MemoryStore) Close() error { return nil }
