package encoding

import "encoding/binary"

// Locally supported minima. These are the floor every remote-advertised
// version must clear, independent of what the local node itself
// advertises.
const (
	MinDistributedDBVersion uint16 = 0
	MinP2PVersion           uint16 = 1
)

// Version is the (chain_name, distributed_db_version, p2p_version) triple
// advertised by each side during the handshake.
type Version struct {
	ChainName            string
	DistributedDBVersion uint16
	P2PVersion           uint16
}

// Supports reports whether remote is compatible with local: equal chain
// names, and remote's numeric fields at or above the locally supported
// minima. The predicate checks remote against the fixed minima, not
// against local's own advertised numeric fields.
func Supports(local, remote Version) bool {
	if local.ChainName != remote.ChainName {
		return false
	}
	return remote.DistributedDBVersion >= MinDistributedDBVersion &&
		remote.P2PVersion >= MinP2PVersion
}

func encodeVersion(buf []byte, v Version) []byte {
	buf = appendUint16(buf, uint16(len(v.ChainName)))
	buf = append(buf, v.ChainName...)
	buf = appendUint16(buf, v.DistributedDBVersion)
	buf = appendUint16(buf, v.P2PVersion)
	return buf
}

func decodeVersion(b []byte) (Version, []byte, error) {
	nameLen, b, err := takeUint16(b, "version.chain_name_len")
	if err != nil {
		return Version{}, nil, err
	}
	name, b, err := takeBytes(b, int(nameLen), "version.chain_name")
	if err != nil {
		return Version{}, nil, err
	}
	ddb, b, err := takeUint16(b, "version.distributed_db_version")
	if err != nil {
		return Version{}, nil, err
	}
	p2p, b, err := takeUint16(b, "version.p2p_version")
	if err != nil {
		return Version{}, nil, err
	}
	return Version{ChainName: string(name), DistributedDBVersion: ddb, P2PVersion: p2p}, b, nil
}

func appendUint16(buf []byte, v uint16) []byte {
	var tmp [2]byte
	binary.BigEndian.PutUint16(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendUint32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func takeUint16(b []byte, field string) (uint16, []byte, error) {
	if len(b) < 2 {
		return 0, nil, &ErrTruncated{Field: field}
	}
	return binary.BigEndian.Uint16(b), b[2:], nil
}

func takeUint32(b []byte, field string) (uint32, []byte, error) {
	if len(b) < 4 {
		return 0, nil, &ErrTruncated{Field: field}
	}
	return binary.BigEndian.Uint32(b), b[4:], nil
}

func takeBytes(b []byte, n int, field string) ([]byte, []byte, error) {
	if len(b) < n {
		return nil, nil, &ErrTruncated{Field: field}
	}
	return b[:n], b[n:], nil
}
