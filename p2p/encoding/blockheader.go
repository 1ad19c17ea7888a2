package encoding

// BlockHeader is the concrete payload carried by the BlockHeaderMessage
// variant. This core never interprets ProtocolData, it only round-trips it.
type BlockHeader struct {
	Level           int32
	Proto           uint8
	Predecessor     [32]byte
	Timestamp       int64
	ValidationPass  uint8
	OperationsHash  [32]byte
	Fitness         [][]byte
	Context         [32]byte
	ProtocolData    []byte
}

// MarshalBinary encodes a block header.
func (h BlockHeader) MarshalBinary() ([]byte, error) {
	var buf []byte
	buf = appendInt32(buf, h.Level)
	buf = append(buf, h.Proto)
	buf = append(buf, h.Predecessor[:]...)
	buf = appendInt64(buf, h.Timestamp)
	buf = append(buf, h.ValidationPass)
	buf = append(buf, h.OperationsHash[:]...)

	var fitness []byte
	for _, f := range h.Fitness {
		fitness = appendUint32(fitness, uint32(len(f)))
		fitness = append(fitness, f...)
	}
	buf = appendUint32(buf, uint32(len(fitness)))
	buf = append(buf, fitness...)

	buf = append(buf, h.Context[:]...)
	buf = append(buf, h.ProtocolData...)
	return buf, nil
}

// UnmarshalBinary decodes a block header. ProtocolData consumes whatever
// bytes remain after the fixed-shape fields and fitness list: it is
// opaque and has no further internal length prefix.
func (h *BlockHeader) UnmarshalBinary(b []byte) error {
	level, b, err := takeInt32(b, "block_header.level")
	if err != nil {
		return err
	}
	proto, b, err := takeByte(b, "block_header.proto")
	if err != nil {
		return err
	}
	pred, b, err := takeBytes(b, 32, "block_header.predecessor")
	if err != nil {
		return err
	}
	ts, b, err := takeInt64(b, "block_header.timestamp")
	if err != nil {
		return err
	}
	valPass, b, err := takeByte(b, "block_header.validation_pass")
	if err != nil {
		return err
	}
	opsHash, b, err := takeBytes(b, 32, "block_header.operations_hash")
	if err != nil {
		return err
	}
	fitnessLen, b, err := takeUint32(b, "block_header.fitness_len")
	if err != nil {
		return err
	}
	fitnessBlock, b, err := takeBytes(b, int(fitnessLen), "block_header.fitness")
	if err != nil {
		return err
	}
	context, b, err := takeBytes(b, 32, "block_header.context")
	if err != nil {
		return err
	}

	var fitness [][]byte
	for len(fitnessBlock) > 0 {
		var elemLen uint32
		elemLen, fitnessBlock, err = takeUint32(fitnessBlock, "block_header.fitness.elem_len")
		if err != nil {
			return err
		}
		var elem []byte
		elem, fitnessBlock, err = takeBytes(fitnessBlock, int(elemLen), "block_header.fitness.elem")
		if err != nil {
			return err
		}
		fitness = append(fitness, append([]byte(nil), elem...))
	}

	h.Level = level
	h.Proto = proto
	copy(h.Predecessor[:], pred)
	h.Timestamp = ts
	h.ValidationPass = valPass
	copy(h.OperationsHash[:], opsHash)
	h.Fitness = fitness
	copy(h.Context[:], context)
	h.ProtocolData = append([]byte(nil), b...)
	return nil
}

func appendInt32(buf []byte, v int32) []byte  { return appendUint32(buf, uint32(v)) }
func appendInt64(buf []byte, v int64) []byte  { return appendUint64(buf, uint64(v)) }

func appendUint64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	for i := 7; i >= 0; i-- {
		tmp[i] = byte(v)
		v >>= 8
	}
	return append(buf, tmp[:]...)
}

func takeByte(b []byte, field string) (byte, []byte, error) {
	if len(b) < 1 {
		return 0, nil, &ErrTruncated{Field: field}
	}
	return b[0], b[1:], nil
}

func takeInt32(b []byte, field string) (int32, []byte, error) {
	v, rest, err := takeUint32(b, field)
	return int32(v), rest, err
}

func takeInt64(b []byte, field string) (int64, []byte, error) {
	if len(b) < 8 {
		return 0, nil, &ErrTruncated{Field: field}
	}
	var v uint64
	for i := 0; i < 8; i++ {
		v = v<<8 | uint64(b[i])
	}
	return int64(v), b[8:], nil
}
