package boxcrypto

import (
	"bytes"
	"testing"
)

func TestNonceAdvanceIsMonotonic(t *testing.T) {
	var n Nonce
	for i := 1; i <= 300; i++ {
		n.Advance()
		want := make([]byte, NonceSize)
		want[NonceSize-2] = byte(i >> 8)
		want[NonceSize-1] = byte(i)
		if !bytes.Equal(n.Bytes(), want) {
			t.Fatalf("after %d advances: got %x want %x", i, n.Bytes(), want)
		}
	}
}

func TestNonceAdvanceCarries(t *testing.T) {
	var n Nonce
	n[NonceSize-1] = 0xff
	n.Advance()
	if n[NonceSize-1] != 0 || n[NonceSize-2] != 1 {
		t.Fatalf("carry did not propagate: %x", n.Bytes())
	}
}

func TestGeneratePairSymmetry(t *testing.T) {
	chunkA := []byte("connection message sent by A (the dialer)")
	chunkB := []byte("connection message sent by B (the acceptor)")

	// A dialed out: A's own chunk is "sent", B's chunk arrived as "recv".
	aLocal, aRemote := GeneratePair(chunkA, chunkB, false)
	// B accepted: B's own chunk is "sent", A's chunk arrived as "recv".
	bLocal, bRemote := GeneratePair(chunkB, chunkA, true)

	if aLocal != bRemote {
		t.Fatalf("A.local != B.remote: %x vs %x", aLocal, bRemote)
	}
	if aRemote != bLocal {
		t.Fatalf("A.remote != B.local: %x vs %x", aRemote, bLocal)
	}
}

func TestGeneratePairDeterministic(t *testing.T) {
	sent, recv := []byte("s"), []byte("r")
	l1, r1 := GeneratePair(sent, recv, true)
	l2, r2 := GeneratePair(sent, recv, true)
	if l1 != l2 || r1 != r2 {
		t.Fatal("GeneratePair is not deterministic")
	}
}
