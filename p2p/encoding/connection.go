package encoding

// ConnectionMessage is the first handshake frame, unencrypted. Wire layout:
//
//	u16 port
//	u16 pk_len, pk_len bytes public_key
//	u16 pow_len, pow_len bytes proof_of_work_stamp
//	24  bytes nonce
//	u32 versions_list_len_bytes, then Version records filling that many bytes
type ConnectionMessage struct {
	Port              uint16
	PublicKey         []byte
	ProofOfWorkStamp  []byte
	MessageNonce      [24]byte
	SupportedVersions []Version
}

// MarshalBinary encodes the connection message.
func (m ConnectionMessage) MarshalBinary() ([]byte, error) {
	var buf []byte
	buf = appendUint16(buf, m.Port)
	buf = appendUint16(buf, uint16(len(m.PublicKey)))
	buf = append(buf, m.PublicKey...)
	buf = appendUint16(buf, uint16(len(m.ProofOfWorkStamp)))
	buf = append(buf, m.ProofOfWorkStamp...)
	buf = append(buf, m.MessageNonce[:]...)

	var versions []byte
	for _, v := range m.SupportedVersions {
		versions = encodeVersion(versions, v)
	}
	buf = appendUint32(buf, uint32(len(versions)))
	buf = append(buf, versions...)
	return buf, nil
}

// UnmarshalBinary decodes a connection message, failing on any truncation
// or trailing garbage: a connection message establishes the peer's
// identity, so a malformed one aborts the handshake rather than proceeding
// with an undefined identity.
func (m *ConnectionMessage) UnmarshalBinary(b []byte) error {
	port, b, err := takeUint16(b, "connection.port")
	if err != nil {
		return err
	}
	pkLen, b, err := takeUint16(b, "connection.pk_len")
	if err != nil {
		return err
	}
	pk, b, err := takeBytes(b, int(pkLen), "connection.public_key")
	if err != nil {
		return err
	}
	powLen, b, err := takeUint16(b, "connection.pow_len")
	if err != nil {
		return err
	}
	pow, b, err := takeBytes(b, int(powLen), "connection.proof_of_work_stamp")
	if err != nil {
		return err
	}
	nonce, b, err := takeBytes(b, 24, "connection.nonce")
	if err != nil {
		return err
	}
	versionsLen, b, err := takeUint32(b, "connection.versions_len")
	if err != nil {
		return err
	}
	versionsBlock, b, err := takeBytes(b, int(versionsLen), "connection.versions")
	if err != nil {
		return err
	}
	if len(b) != 0 {
		return &ErrMalformed{Reason: "trailing bytes after connection message"}
	}

	var versions []Version
	for len(versionsBlock) > 0 {
		var v Version
		v, versionsBlock, err = decodeVersion(versionsBlock)
		if err != nil {
			return err
		}
		versions = append(versions, v)
	}

	m.Port = port
	m.PublicKey = append([]byte(nil), pk...)
	m.ProofOfWorkStamp = append([]byte(nil), pow...)
	copy(m.MessageNonce[:], nonce)
	m.SupportedVersions = versions
	return nil
}
