package decode

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestDecodeAddress(t *testing.T) {
	want := common.HexToAddress("0x00000000000000000000000000000000deadbeef")
	word := common.LeftPadBytes(want.Bytes(), 32)
	word[0] = 0xff // high bytes ignored

	out, err := Decode([][]byte{word}, Address)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if len(out) != 32 {
		t.Fatalf("expected 32-byte encoding, got %d", len(out))
	}
	got, err := UnpackAddress(out)
	if err != nil {
		t.Fatalf("UnpackAddress failed: %v", err)
	}
	if got != want {
		t.Errorf("expected %s, got %s", want.Hex(), got.Hex())
	}
}

func TestDecodeSupply(t *testing.T) {
	word := common.LeftPadBytes(big.NewInt(42).Bytes(), 32)
	out, err := Decode([][]byte{word}, Supply)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	s, err := UnpackString(out)
	if err != nil {
		t.Fatalf("UnpackString failed: %v", err)
	}
	if s != "42 subdomains" {
		t.Errorf("expected %q, got %q", "42 subdomains", s)
	}

	out, _ = Decode([][]byte{make([]byte, 32)}, Supply)
	if s, _ := UnpackString(out); s != "0 subdomains" {
		t.Errorf("expected zero supply, got %q", s)
	}
}

func TestDecodePassthrough(t *testing.T) {
	val := []byte("ipfs://example")
	out, err := Decode([][]byte{val, []byte("ignored")}, Passthrough)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	got, err := UnpackBytes(out)
	if err != nil {
		t.Fatalf("UnpackBytes failed: %v", err)
	}
	if !bytes.Equal(got, val) {
		t.Errorf("expected %q, got %q", val, got)
	}

	// abi bytes and string share an encoding, text callers read it as string
	s, err := UnpackString(out)
	if err != nil || s != string(val) {
		t.Errorf("expected string view %q, got %q (err=%v)", val, s, err)
	}
}

func TestDecodeNoValues(t *testing.T) {
	for _, k := range []Kind{Address, Supply, Passthrough} {
		if _, err := Decode(nil, k); !errors.Is(err, ErrNoValues) {
			t.Errorf("%s: expected ErrNoValues, got %v", k, err)
		}
	}
}

func TestDecodeUnknownKind(t *testing.T) {
	if _, err := Decode([][]byte{{1}}, Kind(99)); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestEncodeEmptyBytes(t *testing.T) {
	out, err := EncodeBytes(nil)
	if err != nil {
		t.Fatalf("EncodeBytes failed: %v", err)
	}
	// offset word + zero length word
	if len(out) != 64 {
		t.Errorf("expected 64 bytes, got %d", len(out))
	}
}
