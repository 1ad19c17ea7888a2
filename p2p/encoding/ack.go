package encoding

// AckMessage outcome tags.
const (
	ackTagAck    byte = 0x00
	ackTagNackV0 byte = 0x01
	ackTagNack   byte = 0x02
)

// AckKind discriminates the AckMessage union.
type AckKind int

const (
	AckKindAck AckKind = iota
	AckKindNackV0
	AckKindNack
)

// NackInfo carries a refusal motive plus fallback peers for discovery.
type NackInfo struct {
	Motive                   uint16
	PotentialPeersToConnect []string
}

// AckMessage is the final handshake step message: Ack, NackV0, or
// Nack(NackInfo).
type AckMessage struct {
	Kind AckKind
	Nack NackInfo // valid only when Kind == AckKindNack
}

// Ack is the accept outcome.
func Ack() AckMessage { return AckMessage{Kind: AckKindAck} }

// NackV0 is the bare refusal outcome (no motive, no peers).
func NackV0() AckMessage { return AckMessage{Kind: AckKindNackV0} }

// Nack is the refusal-with-reason outcome.
func Nack(info NackInfo) AckMessage { return AckMessage{Kind: AckKindNack, Nack: info} }

// MarshalBinary encodes the ack message.
func (m AckMessage) MarshalBinary() ([]byte, error) {
	switch m.Kind {
	case AckKindAck:
		return []byte{ackTagAck}, nil
	case AckKindNackV0:
		return []byte{ackTagNackV0}, nil
	case AckKindNack:
		buf := []byte{ackTagNack}
		buf = appendUint16(buf, m.Nack.Motive)
		buf = appendUint16(buf, uint16(len(m.Nack.PotentialPeersToConnect)))
		for _, peer := range m.Nack.PotentialPeersToConnect {
			buf = appendUint16(buf, uint16(len(peer)))
			buf = append(buf, peer...)
		}
		return buf, nil
	default:
		return nil, &ErrMalformed{Reason: "unknown ack kind"}
	}
}

// UnmarshalBinary decodes an ack message.
func (m *AckMessage) UnmarshalBinary(b []byte) error {
	if len(b) == 0 {
		return &ErrTruncated{Field: "ack.tag"}
	}
	tag, rest := b[0], b[1:]
	switch tag {
	case ackTagAck:
		*m = Ack()
		return nil
	case ackTagNackV0:
		*m = NackV0()
		return nil
	case ackTagNack:
		motive, rest, err := takeUint16(rest, "ack.nack.motive")
		if err != nil {
			return err
		}
		count, rest, err := takeUint16(rest, "ack.nack.peer_count")
		if err != nil {
			return err
		}
		peers := make([]string, 0, count)
		for i := 0; i < int(count); i++ {
			var plen uint16
			plen, rest, err = takeUint16(rest, "ack.nack.peer_len")
			if err != nil {
				return err
			}
			var peerBytes []byte
			peerBytes, rest, err = takeBytes(rest, int(plen), "ack.nack.peer")
			if err != nil {
				return err
			}
			peers = append(peers, string(peerBytes))
		}
		if len(rest) != 0 {
			return &ErrMalformed{Reason: "trailing bytes after nack info"}
		}
		*m = Nack(NackInfo{Motive: motive, PotentialPeersToConnect: peers})
		return nil
	default:
		return &ErrUnsupportedTag{Tag: tag}
	}
}
