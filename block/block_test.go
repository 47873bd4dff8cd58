package block

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"testing"

	"raichain/primitives"
)

func newKeypair(t *testing.T) (primitives.Account, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	var acc primitives.Account
	copy(acc[:], pub)
	return acc, priv
}

func sampleSend(t *testing.T) (*Block, ed25519.PrivateKey) {
	t.Helper()
	acc, priv := newKeypair(t)
	dest, _ := newKeypair(t)
	rep, _ := newKeypair(t)
	b := &Block{
		Kind:           KindTx,
		Opcode:         OpSend,
		Credit:         1,
		Counter:        1,
		Timestamp:      1541128318,
		Height:         1,
		Account:        acc,
		Previous:       primitives.ZeroHash,
		Representative: rep,
		Balance:        primitives.NewAmountFromUint64(1),
		Note:           &Note{Type: 1, Encode: 1, Data: []byte("raicoin")},
	}
	copy(b.Link[:], dest[:])
	b.Sign(priv)
	return b, priv
}

func TestBlockEncodeDecodeRoundTrip(t *testing.T) {
	b, _ := sampleSend(t)
	enc := b.Encode()
	got, err := Decode(enc)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !b.Equal(got) {
		t.Fatalf("round trip mismatch:\n got  %+v\n want %+v", got, b)
	}
}

func TestBlockHashExcludesSignature(t *testing.T) {
	b, _ := sampleSend(t)
	h1 := b.Hash()
	b.Signature[0] ^= 0xFF // alter the signature; the hash must not depend on it
	h2 := b.Hash()
	if h1 != h2 {
		t.Fatalf("hash changed after re-signing: %x vs %x", h1, h2)
	}
}

func TestBlockSignatureVerifies(t *testing.T) {
	b, _ := sampleSend(t)
	if !b.VerifySignature() {
		t.Fatalf("expected signature to verify")
	}
	b.Timestamp++
	if b.VerifySignature() {
		t.Fatalf("expected signature to fail after mutation")
	}
}

func TestBlockJSONRoundTrip(t *testing.T) {
	b, _ := sampleSend(t)
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got Block
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !b.Equal(&got) {
		t.Fatalf("json round trip mismatch:\n got  %+v\n want %+v", got, b)
	}
}

func TestBlockJSONRejectsBadBalance(t *testing.T) {
	b, _ := sampleSend(t)
	data, err := json.Marshal(b)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal to map: %v", err)
	}
	raw["balance"] = "01"
	mutated, err := json.Marshal(raw)
	if err != nil {
		t.Fatalf("marshal mutated: %v", err)
	}
	var out Block
	if err := json.Unmarshal(mutated, &out); err == nil {
		t.Fatalf("expected error decoding leading-zero balance")
	}
}

func TestOpcodeDomainPerKind(t *testing.T) {
	if OpcodeValidFor(KindRep, OpChange) {
		t.Fatalf("CHANGE must not be valid for rep blocks")
	}
	if !OpcodeValidFor(KindTx, OpBind) {
		t.Fatalf("BIND must be valid for tx blocks")
	}
	if OpcodeValidFor(KindAd, OpSend) {
		t.Fatalf("SEND must not be valid for ad blocks")
	}
}

func TestForkWithDetectsDivergence(t *testing.T) {
	b1, _ := sampleSend(t)
	b2 := *b1
	b2.Timestamp = b1.Timestamp + 1
	if !b1.ForkWith(&b2) {
		t.Fatalf("expected fork detection for divergent same-height blocks")
	}
	b3 := *b1
	if b1.ForkWith(&b3) {
		t.Fatalf("identical blocks must not be reported as a fork")
	}
}

func TestFirstBlockCounter(t *testing.T) {
	if c, ok := FirstBlockCounter(OpReward); !ok || c != 0 {
		t.Fatalf("REWARD first counter = (%d,%v), want (0,true)", c, ok)
	}
	if c, ok := FirstBlockCounter(OpReceive); !ok || c != 1 {
		t.Fatalf("RECEIVE first counter = (%d,%v), want (1,true)", c, ok)
	}
	if _, ok := FirstBlockCounter(OpSend); ok {
		t.Fatalf("SEND must not be a legal first block")
	}
}
