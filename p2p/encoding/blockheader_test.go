package encoding

import (
	"encoding/hex"
	"testing"
)

const fixtureBlockHeaderHex = "00006d6e0102dd00defaf70c53e180ea148b349a6feb4795610b2abc7b07fe91ce50a90814000000005c1276780432bc1d3a28df9a67b363aa1638f807214bb8987e5f9c0abcbd69531facffd1c80000001100000001000000000800000000000c15ef15a6f54021cb353780e2847fb9c546f1d72c1dc17c3db510f45553ce501ce1de000000000003c762c7df00a856b8bfcaf0676f069f825ca75f37f2bee9fe55ba109cec3d1d041d8c03519626c0c0faa557e778cb09d2e0c729e8556ed6a7a518c84982d1f2682bc6aa753f"

func TestBlockHeaderDecodesKnownFixture(t *testing.T) {
	raw, err := hex.DecodeString(fixtureBlockHeaderHex)
	if err != nil {
		t.Fatal(err)
	}

	var h BlockHeader
	if err := h.UnmarshalBinary(raw); err != nil {
		t.Fatal(err)
	}

	if h.Level != 28014 {
		t.Fatalf("level: got %d want 28014", h.Level)
	}
	if h.Proto != 1 {
		t.Fatalf("proto: got %d want 1", h.Proto)
	}
	if h.ValidationPass != 4 {
		t.Fatalf("validation_pass: got %d want 4", h.ValidationPass)
	}
	if len(h.Fitness) != 2 {
		t.Fatalf("fitness length: got %d want 2", len(h.Fitness))
	}
	if hex.EncodeToString(h.Fitness[0]) != "00" {
		t.Fatalf("fitness[0]: got %x want 00", h.Fitness[0])
	}
	if hex.EncodeToString(h.Fitness[1]) != "00000000000c15ef" {
		t.Fatalf("fitness[1]: got %x want 00000000000c15ef", h.Fitness[1])
	}

	wantProtocolData := "000000000003c762c7df00a856b8bfcaf0676f069f825ca75f37f2bee9fe55ba109cec3d1d041d8c03519626c0c0faa557e778cb09d2e0c729e8556ed6a7a518c84982d1f2682bc6aa753f"
	if hex.EncodeToString(h.ProtocolData) != wantProtocolData {
		t.Fatalf("protocol_data: got %x", h.ProtocolData)
	}
}

func TestBlockHeaderRoundTrip(t *testing.T) {
	raw, err := hex.DecodeString(fixtureBlockHeaderHex)
	if err != nil {
		t.Fatal(err)
	}
	var h BlockHeader
	if err := h.UnmarshalBinary(raw); err != nil {
		t.Fatal(err)
	}

	out, err := h.MarshalBinary()
	if err != nil {
		t.Fatal(err)
	}
	if hex.EncodeToString(out) != fixtureBlockHeaderHex {
		t.Fatalf("re-encoded header does not match the original bytes")
	}
}

func TestBlockHeaderTruncated(t *testing.T) {
	var h BlockHeader
	if err := h.UnmarshalBinary([]byte{0x00, 0x00}); err == nil {
		t.Fatal("expected an error decoding a truncated block header")
	}
}
