package bootstrap

import (
	"testing"

	"raichain/primitives"
)

func TestRequestEncodeDecodeRoundTrip(t *testing.T) {
	var account primitives.Account
	account[0] = 0x42
	req := Request{Mode: ModeLight, CursorAccount: account, CursorHeight: 7, Max: 256}
	got, err := decodeRequest(encodeRequest(req))
	if err != nil {
		t.Fatalf("decodeRequest: %v", err)
	}
	if got != req {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, req)
	}
}

func TestDecodeRequestRejectsWrongLength(t *testing.T) {
	if _, err := decodeRequest([]byte{0, 1, 2}); err == nil {
		t.Fatalf("expected short payload to be rejected")
	}
}

func TestAccountEntryEncodeDecodeRoundTrip(t *testing.T) {
	var account primitives.Account
	account[1] = 0x9
	var head primitives.Hash
	head[2] = 0x7
	e := AccountEntry{Account: account, HeadHash: head, HeadHeight: 99}
	got, err := decodeAccountEntry(encodeAccountEntry(e))
	if err != nil {
		t.Fatalf("decodeAccountEntry: %v", err)
	}
	if got != e {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, e)
	}
}

func TestEndOfAccountBatchSentinel(t *testing.T) {
	if endOfAccountBatch.HeadHeight != InvalidHeight {
		t.Fatalf("expected the end-of-batch sentinel to carry InvalidHeight")
	}
}

func TestModeString(t *testing.T) {
	cases := map[Mode]string{ModeFull: "full", ModeLight: "light", ModeFork: "fork", Mode(99): "unknown"}
	for mode, want := range cases {
		if got := mode.String(); got != want {
			t.Fatalf("Mode(%d).String() = %q, want %q", mode, got, want)
		}
	}
}
