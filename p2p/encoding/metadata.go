package encoding

// MetadataMessage is exchanged encrypted partway through the handshake:
// two one-byte booleans.
type MetadataMessage struct {
	DisableMempool bool
	PrivateNode    bool
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// MarshalBinary encodes the metadata message.
func (m MetadataMessage) MarshalBinary() ([]byte, error) {
	return []byte{boolByte(m.DisableMempool), boolByte(m.PrivateNode)}, nil
}

// UnmarshalBinary decodes a metadata message.
func (m *MetadataMessage) UnmarshalBinary(b []byte) error {
	if len(b) != 2 {
		return &ErrMalformed{Reason: "metadata message must be exactly 2 bytes"}
	}
	m.DisableMempool = b[0] != 0
	m.PrivateNode = b[1] != 0
	return nil
}
