package encoding

// PeerMessage tags identify the operational messages exchanged once a
// session is established. Tags outside this set decode as
// ErrUnsupportedTag rather than failing the whole read.
const (
	TagGetCurrentBranch byte = 0x10
	TagCurrentBranch    byte = 0x11
	TagGetBlockHeaders  byte = 0x13
	TagBlockHeader      byte = 0x14
	TagGetOperations    byte = 0x21
	TagOperation        byte = 0x22
)

// PeerMessage is any concrete operational message.
type PeerMessage interface {
	Tag() byte
	MarshalBinary() ([]byte, error)
}

// GetCurrentBranchMessage requests the remote's current branch.
type GetCurrentBranchMessage struct {
	ChainID [4]byte
}

func (m GetCurrentBranchMessage) Tag() byte { return TagGetCurrentBranch }
func (m GetCurrentBranchMessage) MarshalBinary() ([]byte, error) {
	return append([]byte(nil), m.ChainID[:]...), nil
}

// CurrentBranchMessage answers GetCurrentBranchMessage with a head and the
// locator hashes leading to it.
type CurrentBranchMessage struct {
	ChainID      [4]byte
	CurrentHead  BlockHeader
	HistoryHashes [][32]byte
}

func (m CurrentBranchMessage) Tag() byte { return TagCurrentBranch }
func (m CurrentBranchMessage) MarshalBinary() ([]byte, error) {
	headBytes, err := m.CurrentHead.MarshalBinary()
	if err != nil {
		return nil, err
	}
	buf := append([]byte(nil), m.ChainID[:]...)
	buf = appendUint32(buf, uint32(len(headBytes)))
	buf = append(buf, headBytes...)
	buf = appendUint32(buf, uint32(len(m.HistoryHashes)))
	for _, h := range m.HistoryHashes {
		buf = append(buf, h[:]...)
	}
	return buf, nil
}

// GetBlockHeadersMessage requests block headers by hash.
type GetBlockHeadersMessage struct {
	Hashes [][32]byte
}

func (m GetBlockHeadersMessage) Tag() byte { return TagGetBlockHeaders }
func (m GetBlockHeadersMessage) MarshalBinary() ([]byte, error) {
	buf := appendUint32(nil, uint32(len(m.Hashes)))
	for _, h := range m.Hashes {
		buf = append(buf, h[:]...)
	}
	return buf, nil
}

// BlockHeaderMessage carries a single block header.
type BlockHeaderMessage struct {
	Header BlockHeader
}

func (m BlockHeaderMessage) Tag() byte { return TagBlockHeader }
func (m BlockHeaderMessage) MarshalBinary() ([]byte, error) { return m.Header.MarshalBinary() }

// GetOperationsMessage requests operations by hash.
type GetOperationsMessage struct {
	Hashes [][32]byte
}

func (m GetOperationsMessage) Tag() byte { return TagGetOperations }
func (m GetOperationsMessage) MarshalBinary() ([]byte, error) {
	buf := appendUint32(nil, uint32(len(m.Hashes)))
	for _, h := range m.Hashes {
		buf = append(buf, h[:]...)
	}
	return buf, nil
}

// OperationMessage carries a single opaque operation; this core never
// interprets Data.
type OperationMessage struct {
	BranchHash [32]byte
	Data       []byte
}

func (m OperationMessage) Tag() byte { return TagOperation }
func (m OperationMessage) MarshalBinary() ([]byte, error) {
	buf := append([]byte(nil), m.BranchHash[:]...)
	return append(buf, m.Data...), nil
}

// DecodePeerMessage dispatches on tag, returning ErrUnsupportedTag for any
// tag this core doesn't recognize.
func DecodePeerMessage(tag byte, body []byte) (PeerMessage, error) {
	switch tag {
	case TagGetCurrentBranch:
		var m GetCurrentBranchMessage
		b, _, err := takeBytes(body, 4, "get_current_branch.chain_id")
		if err != nil {
			return nil, err
		}
		copy(m.ChainID[:], b)
		return m, nil
	case TagCurrentBranch:
		return decodeCurrentBranch(body)
	case TagGetBlockHeaders:
		hashes, err := decodeHashList(body, "get_block_headers.hashes")
		if err != nil {
			return nil, err
		}
		return GetBlockHeadersMessage{Hashes: hashes}, nil
	case TagBlockHeader:
		var h BlockHeader
		if err := h.UnmarshalBinary(body); err != nil {
			return nil, err
		}
		return BlockHeaderMessage{Header: h}, nil
	case TagGetOperations:
		hashes, err := decodeHashList(body, "get_operations.hashes")
		if err != nil {
			return nil, err
		}
		return GetOperationsMessage{Hashes: hashes}, nil
	case TagOperation:
		branch, rest, err := takeBytes(body, 32, "operation.branch_hash")
		if err != nil {
			return nil, err
		}
		var m OperationMessage
		copy(m.BranchHash[:], branch)
		m.Data = append([]byte(nil), rest...)
		return m, nil
	default:
		return nil, &ErrUnsupportedTag{Tag: tag}
	}
}

func decodeCurrentBranch(body []byte) (PeerMessage, error) {
	chainID, body, err := takeBytes(body, 4, "current_branch.chain_id")
	if err != nil {
		return nil, err
	}
	headLen, body, err := takeUint32(body, "current_branch.head_len")
	if err != nil {
		return nil, err
	}
	headBytes, body, err := takeBytes(body, int(headLen), "current_branch.head")
	if err != nil {
		return nil, err
	}
	var head BlockHeader
	if err := head.UnmarshalBinary(headBytes); err != nil {
		return nil, err
	}
	hashes, err := decodeHashList(body, "current_branch.history")
	if err != nil {
		return nil, err
	}
	var m CurrentBranchMessage
	copy(m.ChainID[:], chainID)
	m.CurrentHead = head
	m.HistoryHashes = hashes
	return m, nil
}

// EncodePeerMessage prefixes the message's tag byte onto its marshaled body,
// giving a self-describing envelope suitable for writing to a session.
func EncodePeerMessage(m PeerMessage) ([]byte, error) {
	body, err := m.MarshalBinary()
	if err != nil {
		return nil, err
	}
	return append([]byte{m.Tag()}, body...), nil
}

// DecodePeerMessageEnvelope reads the tag byte off raw and dispatches the
// remainder to DecodePeerMessage.
func DecodePeerMessageEnvelope(raw []byte) (PeerMessage, error) {
	if len(raw) == 0 {
		return nil, &ErrTruncated{Field: "peer_message.tag"}
	}
	return DecodePeerMessage(raw[0], raw[1:])
}

func decodeHashList(body []byte, field string) ([][32]byte, error) {
	count, body, err := takeUint32(body, field+".count")
	if err != nil {
		return nil, err
	}
	hashes := make([][32]byte, 0, count)
	for i := uint32(0); i < count; i++ {
		var h []byte
		h, body, err = takeBytes(body, 32, field+".elem")
		if err != nil {
			return nil, err
		}
		var arr [32]byte
		copy(arr[:], h)
		hashes = append(hashes, arr)
	}
	if len(body) != 0 {
		return nil, &ErrMalformed{Reason: field + ": trailing bytes"}
	}
	return hashes, nil
}
